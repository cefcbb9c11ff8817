package billing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	domacu "github.com/jhoicas/acumulus-sync/internal/domain/acumulus"
	"github.com/jhoicas/acumulus-sync/internal/domain/entity"
	"github.com/jhoicas/acumulus-sync/internal/domain/repository"
	infraacu "github.com/jhoicas/acumulus-sync/internal/infrastructure/acumulus"
	"github.com/jhoicas/acumulus-sync/pkg/logger"
)

// EntryStatus estado real del entry remoto, visto desde el panel de estado.
type EntryStatus int

const (
	EntryStatusUnknown EntryStatus = iota
	// EntryStatusNotSent no hay registro local para la fuente.
	EntryStatusNotSent
	// EntryStatusSent entry real y vivo en Acumulus.
	EntryStatusSent
	// EntryStatusSentConcept enviada como concepto; detalle ya no recuperable
	// o ambiguo (varios entries desde un concepto).
	EntryStatusSentConcept
	// EntryStatusSentConceptNoInvoice el concepto aún no fue convertido.
	EntryStatusSentConceptNoInvoice
	// EntryStatusDeleted el entry existe pero está marcado como borrado.
	EntryStatusDeleted
	// EntryStatusNonExisting el remoto confirma que el entry no existe.
	EntryStatusNonExisting
	// EntryStatusCommunicationError fallo transitorio consultando el remoto.
	EntryStatusCommunicationError
	// EntryStatusLocalError fallo persistiendo la reparación local.
	EntryStatusLocalError
)

// String etiqueta estable para logs y la UI.
func (s EntryStatus) String() string {
	switch s {
	case EntryStatusNotSent:
		return "not_sent"
	case EntryStatusSent:
		return "sent"
	case EntryStatusSentConcept:
		return "sent_concept"
	case EntryStatusSentConceptNoInvoice:
		return "sent_concept_no_invoice"
	case EntryStatusDeleted:
		return "deleted"
	case EntryStatusNonExisting:
		return "non_existing"
	case EntryStatusCommunicationError:
		return "communication_error"
	case EntryStatusLocalError:
		return "local_error"
	default:
		return "unknown"
	}
}

// StatusInfo estado para el panel. Todos los campos de texto provenientes del
// remoto llegan ya saneados (coerción de tipo, fechas reparseadas, HTML
// escapado): la respuesta del API es entrada externa aunque sea "de confianza".
type StatusInfo struct {
	Source    entity.InvoiceSource
	Status    EntryStatus
	EntryID   int
	ConceptID int

	InvoiceNumber string
	EntryDate     string
	PaymentStatus int
	PaymentDate   string

	// Cruce de importes contra el total que conoce el shop.
	AmountLocal  decimal.Decimal
	AmountRemote decimal.Decimal
	AmountMatch  string

	Messages domacu.Messages
}

// StatusReconciler consulta el estado remoto real de un entry previamente
// enviado y repara el registro local cuando quedó desfasado: concept→final es
// la única transición hacia adelante que reconoce; un entry confirmado como
// inexistente borra el registro local para no repetir el error.
type StatusReconciler struct {
	entries repository.EntryRepository
	client  infraacu.ApiClient
	orders  OrderReader
	log     *logger.Logger
}

// NewStatusReconciler construye el reconciliador.
func NewStatusReconciler(
	entries repository.EntryRepository,
	client infraacu.ApiClient,
	orders OrderReader,
	log *logger.Logger,
) *StatusReconciler {
	return &StatusReconciler{entries: entries, client: client, orders: orders, log: log}
}

// Reconcile determina el estado remoto actual de la fuente y repara el
// registro local si corresponde. Ante fallo de comunicación no muta nada:
// puede ser transitorio y es seguro reintentar en la próxima vista.
func (r *StatusReconciler) Reconcile(ctx context.Context, source entity.InvoiceSource) (*StatusInfo, error) {
	info := &StatusInfo{Source: source}

	rec, err := r.entries.GetBySource(ctx, source)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		info.Status = EntryStatusNotSent
		return info, nil
	}
	if rec.IsLock() {
		info.Status = EntryStatusNotSent
		info.Messages.AddNotice("hay un envío en curso para esta fuente")
		return info, nil
	}

	if rec.State == entity.EntryStateConcept {
		return r.reconcileConcept(ctx, info, rec)
	}
	return r.reconcileEntry(ctx, info, rec.EntryID, rec.Token)
}

// reconcileConcept resuelve el estado de un registro en fase concepto.
func (r *StatusReconciler) reconcileConcept(ctx context.Context, info *StatusInfo, rec *entity.EntryRecord) (*StatusInfo, error) {
	info.ConceptID = rec.ConceptID

	ci, err := r.client.GetConceptInfo(ctx, rec.ConceptID)
	if err != nil {
		return r.communicationError(info, err), nil
	}
	info.Messages = append(info.Messages, ci.Messages...)

	if ci.Messages.HasError() {
		if ci.Messages.HasCode(domacu.CodeNotFound) || ci.Messages.HasCode(domacu.CodeConceptTooOld) {
			// Detalle irrecuperable: informativo, sin reparación posible.
			info.Status = EntryStatusSentConcept
			info.Messages.AddNotice("el concepto ya no es consultable en Acumulus")
			return info, nil
		}
		info.Status = EntryStatusCommunicationError
		return info, nil
	}

	switch {
	case len(ci.EntryIDs) == 0:
		info.Status = EntryStatusSentConceptNoInvoice
		return info, nil

	case len(ci.EntryIDs) > 1:
		// Ambigüedad: no se puede elegir uno con seguridad. Se deja al operador.
		info.Status = EntryStatusSentConcept
		info.Messages.AddWarning(domacu.CodeRemote,
			fmt.Sprintf("el concepto %d fue convertido en %d facturas; resolver manualmente", rec.ConceptID, len(ci.EntryIDs)))
		return info, nil
	}

	// Exactamente un entry: consultar y, si trae token válido, promover el
	// registro local a final.
	entryID := ci.EntryIDs[0]
	ei, err := r.client.GetEntry(ctx, entryID, "")
	if err != nil {
		return r.communicationError(info, err), nil
	}
	if ei.Messages.HasError() {
		info.Messages = append(info.Messages, ei.Messages...)
		info.Status = EntryStatusCommunicationError
		return info, nil
	}
	if ei.Token == "" {
		info.Status = EntryStatusSentConcept
		info.Messages.AddWarning(domacu.CodeRemote, "entry_info sin token: no se puede promover el registro local")
		return info, nil
	}

	if _, err := r.entries.SaveFinal(ctx, info.Source, entryID, ei.Token); err != nil {
		info.Status = EntryStatusLocalError
		info.Messages.AddError(domacu.CodeLocal, "no se pudo promover el registro a final: "+err.Error())
		return info, nil
	}
	r.log.Info().Str("source", info.Source.Label()).Int("entry_id", entryID).
		Msg("concepto promovido a entry final")

	// Reevaluar como entry final con la información ya obtenida.
	return r.fillFromEntry(ctx, info, ei), nil
}

// reconcileEntry resuelve el estado de un registro en fase final.
func (r *StatusReconciler) reconcileEntry(ctx context.Context, info *StatusInfo, entryID int, token string) (*StatusInfo, error) {
	info.EntryID = entryID

	ei, err := r.client.GetEntry(ctx, entryID, token)
	if err != nil {
		return r.communicationError(info, err), nil
	}

	if ei.Messages.HasCode(domacu.CodeNotFound) {
		// El remoto confirma la inexistencia: borrar el registro local para
		// no repetir este error en cada vista.
		info.Status = EntryStatusNonExisting
		info.Messages = append(info.Messages, ei.Messages...)
		if err := r.entries.Delete(ctx, info.Source); err != nil {
			info.Messages.AddWarning(domacu.CodeLocal, "no se pudo borrar el registro local obsoleto: "+err.Error())
		}
		return info, nil
	}
	if ei.Messages.HasError() {
		info.Messages = append(info.Messages, ei.Messages...)
		info.Status = EntryStatusCommunicationError
		return info, nil
	}

	return r.fillFromEntry(ctx, info, ei), nil
}

// fillFromEntry completa StatusInfo desde un entry_info vivo, con saneado de
// todos los valores remotos y cruce de importes contra el shop.
func (r *StatusReconciler) fillFromEntry(ctx context.Context, info *StatusInfo, ei *infraacu.EntryInfo) *StatusInfo {
	info.EntryID = ei.EntryID

	if ei.Deleted {
		info.Status = EntryStatusDeleted
		return info
	}

	info.Status = EntryStatusSent
	info.InvoiceNumber = domacu.SanitizeText(ei.InvoiceNumber)
	info.EntryDate = domacu.SanitizeDate(ei.EntryDate)
	info.PaymentDate = domacu.SanitizeDate(ei.PaymentDate)
	if ei.PaymentStatus == entity.PaymentStatusDue || ei.PaymentStatus == entity.PaymentStatusPaid {
		info.PaymentStatus = ei.PaymentStatus
	}
	info.AmountRemote = ei.TotalValue

	order, err := r.orders.GetOrder(ctx, info.Source)
	if err != nil || order == nil {
		info.Messages.AddWarning(domacu.CodeLocal, "no se pudo leer el pedido del shop para el cruce de importes")
		return info
	}
	info.AmountLocal = order.TotalInc
	info.AmountMatch = domacu.ClassifyAmountDiff(order.TotalInc, ei.TotalValue).String()
	if info.AmountMatch != domacu.AmountMatchEqual.String() {
		info.Messages.AddWarning(domacu.CodeLocal, fmt.Sprintf(
			"importe local %s vs remoto %s (%s)",
			order.TotalInc.StringFixed(2), ei.TotalValue.StringFixed(2), info.AmountMatch))
	}
	return info
}

// communicationError marca el fallo transitorio sin mutar el registro local.
func (r *StatusReconciler) communicationError(info *StatusInfo, err error) *StatusInfo {
	info.Status = EntryStatusCommunicationError
	info.Messages.AddError(domacu.CodeRemote, "fallo de comunicación con Acumulus: "+err.Error())
	r.log.Warn().Err(err).Str("source", info.Source.Label()).Msg("reconciliación sin respuesta remota")
	return info
}
