package mail

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/jhoicas/acumulus-sync/internal/application/billing"
)

var _ billing.Notifier = (*Notifier)(nil)

// Config parámetros SMTP del correo de resultados.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       string
}

// Notifier envía el correo de resultado de un envío a Acumulus vía SMTP.
type Notifier struct {
	cfg    Config
	dialer *gomail.Dialer
}

// NewNotifier construye el notificador.
func NewNotifier(cfg Config) *Notifier {
	return &Notifier{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
	}
}

// SendInvoiceAddResult envía el resumen del resultado al operador.
func (n *Notifier) SendInvoiceAddResult(ctx context.Context, result *billing.SendResult) error {
	if n.cfg.To == "" {
		return fmt.Errorf("mail: destinatario no configurado")
	}
	// gomail no acepta contexto; se respeta la cancelación antes de marcar.
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.From)
	m.SetHeader("To", n.cfg.To)
	m.SetHeader("Subject", subject(result))
	m.SetBody("text/plain", body(result))

	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("mail: enviar resultado: %w", err)
	}
	return nil
}

func subject(result *billing.SendResult) string {
	switch {
	case result.HasError():
		return "[acumulus] ERROR al enviar " + result.Source.Label()
	case result.HasWarning():
		return "[acumulus] avisos al enviar " + result.Source.Label()
	default:
		return "[acumulus] " + result.Source.Label() + " enviada"
	}
}

func body(result *billing.SendResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Fuente:   %s\n", result.Source.Label())
	fmt.Fprintf(&b, "Estado:   %s\n", result.Status)
	if result.EntryID != 0 {
		fmt.Fprintf(&b, "Entry:    %d\n", result.EntryID)
	}
	if result.ConceptID != 0 {
		fmt.Fprintf(&b, "Concepto: %d\n", result.ConceptID)
	}
	if len(result.Messages) > 0 {
		fmt.Fprintf(&b, "\nMensajes:\n%s\n", result.Messages.Join("\n"))
	}
	return b.String()
}
