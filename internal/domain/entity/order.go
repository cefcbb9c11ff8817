package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ShopOrder vista de solo lectura de un pedido o nota crédito del shop.
// Es la base para construir el documento Invoice y para el cruce de importes
// del reconciliador de estado.
type ShopOrder struct {
	Source        InvoiceSource
	Reference     string // número visible para el operador (ej. "2024-0042")
	Status        string
	Date          time.Time
	TotalInc      decimal.Decimal // total IVA incluido según el shop
	PaymentStatus int
	PaymentDate   time.Time
	CustomerName  string
	CustomerEmail string
	CountryCode   string
	Lines         []ShopOrderLine
}

// ShopOrderLine línea del pedido tal como la conoce el shop.
type ShopOrderLine struct {
	SKU       string
	Product   string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	VATRate   decimal.Decimal
}
