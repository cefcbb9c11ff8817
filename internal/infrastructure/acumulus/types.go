package acumulus

import (
	"context"

	"github.com/shopspring/decimal"

	domacu "github.com/jhoicas/acumulus-sync/internal/domain/acumulus"
	"github.com/jhoicas/acumulus-sync/internal/domain/entity"
)

// ── Puerto (interfaz) ──────────────────────────────────────────────────────────

// EntryDeleteStatus estado de borrado a fijar sobre un entry remoto.
type EntryDeleteStatus int

const (
	// EntryUndelete restaura un entry marcado como borrado.
	EntryUndelete EntryDeleteStatus = 0
	// EntryDelete marca el entry como borrado (no lo elimina físicamente).
	EntryDelete EntryDeleteStatus = 1
)

// InvoiceAddResult resultado de invoice_add. Un envío aceptado trae entryid y
// token reales, o solo conceptid si Acumulus la registró como concepto
// provisional. Los rechazos vienen en Messages, no como error de Go.
type InvoiceAddResult struct {
	EntryID   int
	Token     string
	ConceptID int
	Messages  domacu.Messages
}

// EntryInfo estado actual de un entry real según entry_info.
type EntryInfo struct {
	EntryID              int
	Token                string
	InvoiceNumber        string
	EntryDate            string
	Deleted              bool
	PaymentStatus        int
	PaymentDate          string
	TotalValue           decimal.Decimal // IVA incluido
	TotalValueExclVAT    decimal.Decimal
	TotalValueForeignVAT decimal.Decimal
	VATReverseCharge     bool
	Messages             domacu.Messages
}

// ConceptInfo estado de un concepto según concept_info. EntryIDs vacío
// significa que el concepto aún no fue convertido en factura real; más de un
// id significa que el operador lo dividió en varias facturas.
type ConceptInfo struct {
	ConceptID int
	EntryIDs  []int
	Messages  domacu.Messages
}

// DeleteStatusResult resultado de entry_deletestatus_set.
type DeleteStatusResult struct {
	EntryID  int
	Deleted  bool
	Messages domacu.Messages
}

// ApiClient define el puerto de salida hacia el servicio Acumulus.
// Los fallos de comunicación (red, timeout) se devuelven como error de Go;
// los rechazos y avisos del servicio viajan dentro del resultado.
// Para tests se inyecta un fake.
type ApiClient interface {
	// InvoiceAdd envía el documento de factura de la fuente.
	InvoiceAdd(ctx context.Context, inv *entity.Invoice, source entity.InvoiceSource) (*InvoiceAddResult, error)

	// SetDeleteStatus marca o desmarca un entry como borrado.
	SetDeleteStatus(ctx context.Context, entryID int, status EntryDeleteStatus) (*DeleteStatusResult, error)

	// GetEntry consulta un entry real. token es la credencial opaca guardada
	// al enviar la factura.
	GetEntry(ctx context.Context, entryID int, token string) (*EntryInfo, error)

	// GetConceptInfo consulta a qué entries reales fue convertido un concepto.
	GetConceptInfo(ctx context.Context, conceptID int) (*ConceptInfo, error)
}
