package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estado de pago que el shop conoce para la fuente.
const (
	PaymentStatusDue  = 1 // pendiente de pago
	PaymentStatusPaid = 2 // pagada
)

// Invoice documento de factura ya completado, listo para invoice_add.
// La construcción del contenido (mapeo de líneas y cliente del shop a este
// formato) es responsabilidad del colaborador InvoiceBuilder del host; el
// motor de envío solo inspecciona líneas y totales.
type Invoice struct {
	Customer      InvoiceCustomer
	Number        string
	Description   string
	IssueDate     time.Time
	Concept       bool // pedir a Acumulus que la registre como concepto
	PaymentStatus int
	PaymentDate   time.Time
	Lines         []InvoiceLine
}

// InvoiceCustomer datos mínimos del cliente en el documento.
type InvoiceCustomer struct {
	ContactID   string
	CompanyName string
	FullName    string
	Email       string
	CountryCode string
	VATNumber   string
}

// InvoiceLine línea del documento.
type InvoiceLine struct {
	ItemNumber string
	Product    string
	Quantity   decimal.Decimal
	UnitPrice  decimal.Decimal // sin IVA
	VATRate    decimal.Decimal // porcentaje, ej. 21
}

// AmountInc importe de la línea IVA incluido.
func (l InvoiceLine) AmountInc() decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(l.VATRate.Div(decimal.NewFromInt(100)))
	return l.Quantity.Mul(l.UnitPrice).Mul(factor)
}

// HasLines indica si el documento tiene al menos una línea.
func (i *Invoice) HasLines() bool {
	return len(i.Lines) > 0
}

// TotalInc total del documento IVA incluido (suma de líneas).
func (i *Invoice) TotalInc() decimal.Decimal {
	total := decimal.Zero
	for _, l := range i.Lines {
		total = total.Add(l.AmountInc())
	}
	return total
}

// IsZeroAmount indica si el total es cero (candidata a supresión si la
// configuración no permite enviar facturas vacías).
func (i *Invoice) IsZeroAmount() bool {
	return i.TotalInc().IsZero()
}
