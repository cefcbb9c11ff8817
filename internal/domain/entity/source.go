package entity

import "fmt"

// SourceType tipo de documento del shop que origina un envío a Acumulus.
type SourceType string

const (
	// SourceTypeOrder pedido del shop.
	SourceTypeOrder SourceType = "Order"
	// SourceTypeCreditNote nota crédito (siempre elegible para envío, sin gate de estado).
	SourceTypeCreditNote SourceType = "CreditNote"
)

// Valid indica si el tipo es uno de los conocidos.
func (t SourceType) Valid() bool {
	return t == SourceTypeOrder || t == SourceTypeCreditNote
}

// InvoiceSource referencia inmutable a un pedido o nota crédito del shop.
// La identidad (Type, ID) es propiedad del shop; este subsistema solo la lee.
type InvoiceSource struct {
	Type SourceType
	ID   string
}

// Label referencia legible para logs y correos ("Order 1042").
func (s InvoiceSource) Label() string {
	return fmt.Sprintf("%s %s", s.Type, s.ID)
}
