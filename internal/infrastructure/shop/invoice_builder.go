package shop

import (
	"context"
	"fmt"

	"github.com/jhoicas/acumulus-sync/internal/application/billing"
	domacu "github.com/jhoicas/acumulus-sync/internal/domain/acumulus"
	"github.com/jhoicas/acumulus-sync/internal/domain/entity"
)

var _ billing.InvoiceBuilder = (*InvoiceBuilder)(nil)

// InvoiceBuilder implementación de referencia del colaborador de construcción:
// mapea el pedido del shop al documento wire de Acumulus. Las reglas finas de
// contenido (exenciones, IVA extranjero, descuentos) pertenecen al host; esta
// versión cubre el caso directo pedido → factura.
type InvoiceBuilder struct {
	orders billing.OrderReader
	// AsConcept pide a Acumulus registrar los documentos como concepto para
	// revisión humana antes de numerarlos.
	asConcept bool
}

// NewInvoiceBuilder construye el builder sobre el lector de pedidos del shop.
func NewInvoiceBuilder(orders billing.OrderReader, asConcept bool) *InvoiceBuilder {
	return &InvoiceBuilder{orders: orders, asConcept: asConcept}
}

// BuildInvoice construye el documento de la fuente. Los problemas de datos se
// reportan como mensajes; error solo si el shop no se pudo leer.
func (b *InvoiceBuilder) BuildInvoice(ctx context.Context, source entity.InvoiceSource) (*entity.Invoice, domacu.Messages, error) {
	var msgs domacu.Messages

	order, err := b.orders.GetOrder(ctx, source)
	if err != nil {
		return nil, msgs, fmt.Errorf("leer pedido del shop: %w", err)
	}
	if order == nil {
		msgs.AddError(domacu.CodeLocal, "la fuente "+source.Label()+" no existe en el shop")
		return &entity.Invoice{}, msgs, nil
	}
	if order.CustomerEmail == "" {
		msgs.AddWarning(domacu.CodeLocal, "pedido sin email de cliente: Acumulus no podrá enviar la factura")
	}

	inv := &entity.Invoice{
		Customer: entity.InvoiceCustomer{
			ContactID:   order.Source.ID,
			FullName:    order.CustomerName,
			Email:       order.CustomerEmail,
			CountryCode: order.CountryCode,
		},
		Description:   source.Label() + " (" + order.Reference + ")",
		IssueDate:     order.Date,
		Concept:       b.asConcept,
		PaymentStatus: order.PaymentStatus,
		PaymentDate:   order.PaymentDate,
	}

	for _, l := range order.Lines {
		qty := l.Quantity
		price := l.UnitPrice
		// Una nota crédito viaja como factura con importes negados.
		if source.Type == entity.SourceTypeCreditNote {
			price = price.Neg()
		}
		inv.Lines = append(inv.Lines, entity.InvoiceLine{
			ItemNumber: l.SKU,
			Product:    l.Product,
			Quantity:   qty,
			UnitPrice:  price,
			VATRate:    l.VATRate,
		})
	}
	return inv, msgs, nil
}
