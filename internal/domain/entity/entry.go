package entity

import "time"

// Estados del registro de envío (entry) de una fuente hacia Acumulus.
// "Absent" no tiene constante: se representa con registro nil.
type EntryState int

const (
	// EntryStateLocked hay un envío en curso para la fuente.
	EntryStateLocked EntryState = iota + 1
	// EntryStateConcept la factura existe en Acumulus solo como concepto provisional.
	EntryStateConcept
	// EntryStateFinal la factura tiene entry real numerado y token de consulta.
	EntryStateFinal
)

// EntryRecord hecho durable "la fuente X corresponde al entry remoto Y con token Z".
// Como máximo existe un registro por (SourceType, SourceID); el adaptador de
// persistencia lo garantiza con insert-or-update sobre esa clave.
//
// La transición final→concept nunca ocurre. concept→final es la única transición
// hacia adelante que el reconciliador reconoce.
type EntryRecord struct {
	ID         string
	SourceType SourceType
	SourceID   string
	State      EntryState
	EntryID    int    // solo con State == EntryStateFinal
	ConceptID  int    // solo con State == EntryStateConcept
	Token      string // credencial opaca para entry_info; solo en estado final
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Source reconstruye la referencia a la fuente del shop.
func (e *EntryRecord) Source() InvoiceSource {
	return InvoiceSource{Type: e.SourceType, ID: e.SourceID}
}

// IsLock indica si el registro es un marcador de envío en curso.
func (e *EntryRecord) IsLock() bool {
	return e.State == EntryStateLocked
}

// LockExpired indica si un lock superó su TTL. La edad se calcula desde
// CreatedAt: un proceso que murió a mitad de envío deja el lock y cualquier
// caller posterior puede recuperarlo pasado el TTL.
func (e *EntryRecord) LockExpired(now time.Time, ttl time.Duration) bool {
	return e.IsLock() && now.Sub(e.CreatedAt) >= ttl
}
