package billing

import (
	"context"
	"time"

	domacu "github.com/jhoicas/acumulus-sync/internal/domain/acumulus"
	"github.com/jhoicas/acumulus-sync/internal/domain/entity"
)

// InvoiceBuilder colaborador del host: mapea una fuente del shop al documento
// wire de Acumulus. Las reglas de contenido (IVA, líneas, cliente) viven en el
// host; el motor solo inspecciona el resultado. Los problemas de construcción
// se devuelven como mensajes; error solo para fallos de infraestructura.
type InvoiceBuilder interface {
	BuildInvoice(ctx context.Context, source entity.InvoiceSource) (*entity.Invoice, domacu.Messages, error)
}

// Notifier sink de notificaciones post-envío (correo al operador).
// El formato del contenido es responsabilidad de la implementación.
type Notifier interface {
	SendInvoiceAddResult(ctx context.Context, result *SendResult) error
}

// OrderReader acceso de solo lectura a pedidos y notas crédito del shop.
// Resuelve fuentes individuales, rangos de id y rangos de fecha para el batch.
type OrderReader interface {
	GetOrder(ctx context.Context, source entity.InvoiceSource) (*entity.ShopOrder, error)
	ListSourcesByID(ctx context.Context, typ entity.SourceType, fromID, toID string) ([]entity.InvoiceSource, error)
	ListSourcesByDate(ctx context.Context, typ entity.SourceType, from, to time.Time) ([]entity.InvoiceSource, error)
}

// Config opciones de envío del subsistema Acumulus.
type Config struct {
	// TestMode nunca toca el entry store ni envía de verdad.
	TestMode bool
	// SendEmptyInvoices permite enviar facturas con total cero.
	SendEmptyInvoices bool
	// AlwaysNotify envía el correo de resultado aunque no haya errores ni avisos.
	AlwaysNotify bool
	// LockTTL edad a partir de la cual un lock se considera expirado.
	LockTTL time.Duration
	// TriggerOrderStatuses estados de pedido que disparan el envío. Las notas
	// crédito no pasan por este gate.
	TriggerOrderStatuses []string
	// TriggerOnInvoiceCreate enviar cuando el shop crea su propia factura.
	TriggerOnInvoiceCreate bool
	// TriggerOnInvoiceSend enviar cuando el shop manda la factura al cliente.
	TriggerOnInvoiceSend bool
	// BatchSourceTimeout presupuesto de tiempo por fuente dentro del batch.
	BatchSourceTimeout time.Duration
}

// Valores por defecto cuando la configuración no los fija.
const (
	DefaultLockTTL            = 40 * time.Second
	DefaultBatchSourceTimeout = 60 * time.Second
)

// withDefaults completa los campos de duración no configurados.
func (c Config) withDefaults() Config {
	if c.LockTTL <= 0 {
		c.LockTTL = DefaultLockTTL
	}
	if c.BatchSourceTimeout <= 0 {
		c.BatchSourceTimeout = DefaultBatchSourceTimeout
	}
	return c
}
