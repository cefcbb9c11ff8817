package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jhoicas/acumulus-sync/internal/application/billing"
	infraacu "github.com/jhoicas/acumulus-sync/internal/infrastructure/acumulus"
	"github.com/jhoicas/acumulus-sync/internal/infrastructure/mail"
	"github.com/jhoicas/acumulus-sync/internal/infrastructure/postgres"
	"github.com/jhoicas/acumulus-sync/internal/infrastructure/shop"
	"github.com/jhoicas/acumulus-sync/pkg/config"
	"github.com/jhoicas/acumulus-sync/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "acumulus-batch",
	Short: "Envío masivo y consulta de estado contra Acumulus desde la línea de comandos",
	Long: `acumulus-batch opera el subsistema de facturación sin pasar por la API HTTP:
envía rangos de pedidos o notas crédito a Acumulus y consulta el estado remoto
real de una fuente concreta.

La configuración se lee del entorno igual que el servidor (DATABASE_URL,
ACUMULUS_CONTRACT_CODE, ACUMULUS_USER, ACUMULUS_PASSWORD, SMTP_*, ...).`,
}

// deps dependencias compartidas por los subcomandos.
type deps struct {
	manager    *billing.InvoiceManager
	reconciler *billing.StatusReconciler
	orders     billing.OrderReader
	log        *logger.Logger
	close      func()
}

// buildDeps carga configuración y construye el grafo completo, igual que el
// servidor pero sin capa HTTP.
func buildDeps(ctx context.Context) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("cargar configuración: %w", err)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: "info"})

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("conexión a PostgreSQL: %w", err)
	}

	entryRepo := postgres.NewEntryRepository(pool)
	orderReader := postgres.NewOrderReader(pool)
	acuClient := infraacu.NewClient(infraacu.Config{
		BaseURL:      cfg.Acumulus.BaseURL,
		ContractCode: cfg.Acumulus.ContractCode,
		UserName:     cfg.Acumulus.UserName,
		Password:     cfg.Acumulus.Password,
	})
	invoiceBuilder := shop.NewInvoiceBuilder(orderReader, cfg.Acumulus.SendAsConcept)
	notifier := mail.NewNotifier(mail.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		User:     cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		To:       cfg.SMTP.To,
	})

	billingCfg := billing.Config{
		TestMode:               cfg.Acumulus.TestMode,
		SendEmptyInvoices:      cfg.Acumulus.SendEmpty,
		AlwaysNotify:           cfg.Acumulus.AlwaysNotify,
		LockTTL:                cfg.Acumulus.LockTTL,
		TriggerOrderStatuses:   cfg.Acumulus.TriggerOrderStatuses,
		TriggerOnInvoiceCreate: cfg.Acumulus.TriggerOnInvoiceCreate,
		TriggerOnInvoiceSend:   cfg.Acumulus.TriggerOnInvoiceSend,
		BatchSourceTimeout:     cfg.Acumulus.BatchSourceTimeout,
	}
	engine := billing.NewSendEngine(entryRepo, acuClient, invoiceBuilder, notifier, billingCfg, log)

	return &deps{
		manager:    billing.NewInvoiceManager(engine, billingCfg, log),
		reconciler: billing.NewStatusReconciler(entryRepo, acuClient, orderReader, log),
		orders:     orderReader,
		log:        log,
		close:      pool.Close,
	}, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
