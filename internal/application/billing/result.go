package billing

import (
	"fmt"
	"strconv"

	domacu "github.com/jhoicas/acumulus-sync/internal/domain/acumulus"
	"github.com/jhoicas/acumulus-sync/internal/domain/entity"
)

// SendStatus decisión del motor de envío para una fuente, en orden de
// prioridad de evaluación. Solo los estados "Will send" llegan a construir y
// enviar el documento; los demás cortan sin efectos laterales más allá del log.
type SendStatus int

const (
	SendStatusUnknown SendStatus = iota

	// SendStatusTestMode modo test global: se simula el envío completo.
	SendStatusTestMode
	// SendStatusNew no existe registro para la fuente: primer envío.
	SendStatusNew
	// SendStatusForced reenvío forzado pese a existir registro.
	SendStatusForced
	// SendStatusLockExpired había un lock pero superó el TTL: se recupera.
	SendStatusLockExpired

	// SendStatusNotSentAlreadySent ya hay entry real o concepto y no se forzó.
	SendStatusNotSentAlreadySent
	// SendStatusNotSentAlreadyLocked otro proceso tiene el envío en curso.
	SendStatusNotSentAlreadyLocked
	// SendStatusNotSentLockNotAcquired otro proceso ganó el lock en la carrera.
	SendStatusNotSentLockNotAcquired
	// SendStatusNotSentTriggerDisabled el evento disparador está deshabilitado.
	SendStatusNotSentTriggerDisabled
	// SendStatusNotSentDryRun se pidió simulación sin envío.
	SendStatusNotSentDryRun
	// SendStatusNotSentLocalErrors la construcción local reportó errores.
	SendStatusNotSentLocalErrors
	// SendStatusNotSentNoLines el documento no tiene líneas.
	SendStatusNotSentNoLines
	// SendStatusNotSentZeroAmount total cero y el envío de vacías está apagado.
	SendStatusNotSentZeroAmount
)

// WillSend indica si el estado habilita construir y enviar el documento.
func (s SendStatus) WillSend() bool {
	switch s {
	case SendStatusTestMode, SendStatusNew, SendStatusForced, SendStatusLockExpired:
		return true
	default:
		return false
	}
}

// String etiqueta estable para logs.
func (s SendStatus) String() string {
	switch s {
	case SendStatusTestMode:
		return "sent_test_mode"
	case SendStatusNew:
		return "send_new"
	case SendStatusForced:
		return "send_forced"
	case SendStatusLockExpired:
		return "send_lock_expired"
	case SendStatusNotSentAlreadySent:
		return "not_sent_already_sent"
	case SendStatusNotSentAlreadyLocked:
		return "not_sent_already_locked"
	case SendStatusNotSentLockNotAcquired:
		return "not_sent_lock_not_acquired"
	case SendStatusNotSentTriggerDisabled:
		return "not_sent_trigger_not_enabled"
	case SendStatusNotSentDryRun:
		return "not_sent_dry_run"
	case SendStatusNotSentLocalErrors:
		return "not_sent_local_errors"
	case SendStatusNotSentNoLines:
		return "not_sent_no_invoice_lines"
	case SendStatusNotSentZeroAmount:
		return "not_sent_empty_invoice"
	default:
		return "unknown"
	}
}

// SendResult resultado estructurado de un intento de envío. Todos los fallos
// de negocio viajan en Messages; el motor solo devuelve error de Go ante
// fallos inesperados de infraestructura.
type SendResult struct {
	Source   entity.InvoiceSource
	Status   SendStatus
	Messages domacu.Messages

	// Submitted true si se llamó invoice_add de verdad.
	Submitted bool
	// EntryID / Token presentes si el remoto creó un entry real.
	EntryID int
	Token   string
	// ConceptID presente si el remoto la registró como concepto.
	ConceptID int
}

// HasError indica si el resultado lleva al menos un error.
func (r *SendResult) HasError() bool { return r.Messages.HasError() }

// HasWarning indica si el resultado lleva al menos una advertencia.
func (r *SendResult) HasWarning() bool { return r.Messages.HasWarning() }

// NeedsNotification aplica la política de correo: siempre con errores o
// avisos, o incondicional si la configuración lo pide.
func (r *SendResult) NeedsNotification(alwaysNotify bool) bool {
	return alwaysNotify || r.HasError() || r.HasWarning()
}

// Summary línea legible por el operador, independiente del detalle interno.
func (r *SendResult) Summary() string {
	switch {
	case r.HasError():
		return fmt.Sprintf("%s: error: %s", r.Source.Label(), r.Messages.Join("; "))
	case !r.Status.WillSend():
		return fmt.Sprintf("%s: omitida (%s)", r.Source.Label(), r.Status)
	case r.Status == SendStatusTestMode:
		return fmt.Sprintf("%s: simulada (modo test)", r.Source.Label())
	case r.HasWarning():
		return fmt.Sprintf("%s: enviada con avisos: %s", r.Source.Label(), r.Messages.Join("; "))
	case r.ConceptID != 0 && r.EntryID == 0:
		return fmt.Sprintf("%s: enviada como concepto %s", r.Source.Label(), strconv.Itoa(r.ConceptID))
	case r.EntryID != 0:
		return fmt.Sprintf("%s: enviada, entry %s", r.Source.Label(), strconv.Itoa(r.EntryID))
	default:
		return fmt.Sprintf("%s: enviada", r.Source.Label())
	}
}
