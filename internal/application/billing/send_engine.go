package billing

import (
	"context"
	"errors"
	"time"

	"github.com/jhoicas/acumulus-sync/internal/domain"
	domacu "github.com/jhoicas/acumulus-sync/internal/domain/acumulus"
	"github.com/jhoicas/acumulus-sync/internal/domain/entity"
	"github.com/jhoicas/acumulus-sync/internal/domain/repository"
	infraacu "github.com/jhoicas/acumulus-sync/internal/infrastructure/acumulus"
	"github.com/jhoicas/acumulus-sync/pkg/logger"
)

// SendEngine orquesta el ciclo de envío de una fuente a Acumulus:
//
//	decidir → construir → lock → invoice_add → persistir entry → unlock → notificar
//
// La única coordinación entre envíos concurrentes de la MISMA fuente es el
// lock advisory del entry store; es una disciplina optimista, no exclusión
// mutua: dos procesos pueden observar "sin registro" a la vez, y el perdedor
// se retira cuando no consigue insertar el lock o cuando DeleteLock le
// reporta LockBecameRealEntry.
type SendEngine struct {
	entries  repository.EntryRepository
	client   infraacu.ApiClient
	builder  InvoiceBuilder
	notifier Notifier
	cfg      Config
	log      *logger.Logger
	now      func() time.Time
}

// NewSendEngine construye el motor con todas sus dependencias.
func NewSendEngine(
	entries repository.EntryRepository,
	client infraacu.ApiClient,
	builder InvoiceBuilder,
	notifier Notifier,
	cfg Config,
	log *logger.Logger,
) *SendEngine {
	return &SendEngine{
		entries:  entries,
		client:   client,
		builder:  builder,
		notifier: notifier,
		cfg:      cfg.withDefaults(),
		log:      log,
		now:      time.Now,
	}
}

// Send intenta enviar la factura de la fuente. forceSend reenvía aunque ya
// exista registro; dryRun construye y valida sin tocar ni el store ni el API.
// Los fallos de negocio van dentro del SendResult; error de Go solo ante
// fallos inesperados de infraestructura local.
func (e *SendEngine) Send(ctx context.Context, source entity.InvoiceSource, forceSend, dryRun bool) (*SendResult, error) {
	result := &SendResult{Source: source}

	status, existing, err := e.decideStatus(ctx, source, forceSend)
	if err != nil {
		return nil, err
	}
	result.Status = status

	if !status.WillSend() {
		result.Messages.AddNotice("envío omitido: " + status.String())
		e.log.Info().Str("source", source.Label()).Str("status", status.String()).
			Msg("envío omitido")
		e.notify(ctx, result)
		return result, nil
	}

	// Construcción del documento. No tiene efectos laterales, así que ocurre
	// antes de tomar el lock: un dry run o una factura inválida no deben
	// dejar rastro en el entry store.
	inv, buildMsgs, err := e.builder.BuildInvoice(ctx, source)
	result.Messages = append(result.Messages, buildMsgs...)
	if err != nil {
		return nil, err
	}

	if blocked := e.preSubmitCheck(result, inv, dryRun); blocked {
		e.log.Info().Str("source", source.Label()).Str("status", result.Status.String()).
			Msg("envío cortado antes de la llamada remota")
		e.notify(ctx, result)
		return result, nil
	}

	if status == SendStatusTestMode {
		// Modo test global: se simula todo el ciclo sin tocar store ni API.
		result.Messages.AddNotice("modo test: envío simulado, sin llamada al API ni registro local")
		e.log.Info().Str("source", source.Label()).Msg("modo test: envío simulado")
		e.notify(ctx, result)
		return result, nil
	}

	// Protocolo de lock. El lock es una inserción pura sobre la clave natural:
	// solo puede tomarse cuando no existe fila para la fuente, así que jamás
	// pisa un entry recién guardado por un proceso que ganó la carrera. El
	// reenvío forzado no toma lock: su registro previo se conserva intacto
	// hasta que el nuevo envío sea aceptado.
	if status == SendStatusLockExpired {
		delRes, err := e.entries.DeleteLock(ctx, source)
		if err != nil {
			return nil, err
		}
		if delRes == repository.LockBecameRealEntry {
			// Otro proceso terminó el envío mientras este decidía.
			result.Status = SendStatusNotSentAlreadySent
			result.Messages.AddNotice("el lock expirado se convirtió en entry real: ya enviada por otro proceso")
			e.notify(ctx, result)
			return result, nil
		}
		e.log.Warn().Str("source", source.Label()).Msg("lock expirado recuperado")
	}

	acquired := false
	if status == SendStatusNew || status == SendStatusLockExpired {
		if _, err := e.entries.AcquireLock(ctx, source); err != nil {
			if errors.Is(err, domain.ErrLockNotAcquired) {
				result.Status = SendStatusNotSentLockNotAcquired
				result.Messages.AddNotice("otro proceso adquirió el lock primero")
				e.notify(ctx, result)
				return result, nil
			}
			return nil, err
		}
		acquired = true
	}

	e.submit(ctx, result, inv, existing, acquired)

	e.notify(ctx, result)
	return result, nil
}

// decideStatus evalúa la máquina de estados básica, en orden de prioridad.
func (e *SendEngine) decideStatus(ctx context.Context, source entity.InvoiceSource, forceSend bool) (SendStatus, *entity.EntryRecord, error) {
	if e.cfg.TestMode {
		return SendStatusTestMode, nil, nil
	}
	existing, err := e.entries.GetBySource(ctx, source)
	if err != nil {
		return SendStatusUnknown, nil, err
	}
	switch {
	case existing == nil:
		return SendStatusNew, nil, nil
	case forceSend:
		return SendStatusForced, existing, nil
	case existing.LockExpired(e.now(), e.cfg.LockTTL):
		return SendStatusLockExpired, existing, nil
	case existing.IsLock():
		return SendStatusNotSentAlreadyLocked, existing, nil
	default:
		return SendStatusNotSentAlreadySent, existing, nil
	}
}

// preSubmitCheck aplica los cortes previos a la llamada remota. Devuelve true
// si el envío queda bloqueado (el Status del resultado ya queda actualizado).
func (e *SendEngine) preSubmitCheck(result *SendResult, inv *entity.Invoice, dryRun bool) bool {
	switch {
	case dryRun:
		result.Status = SendStatusNotSentDryRun
		result.Messages.AddNotice("dry run: no se envía ni se persiste nada")
	case result.Messages.HasError():
		result.Status = SendStatusNotSentLocalErrors
	case !inv.HasLines():
		result.Status = SendStatusNotSentNoLines
		result.Messages.AddNotice("documento sin líneas: no se envía")
	case inv.IsZeroAmount() && !e.cfg.SendEmptyInvoices:
		result.Status = SendStatusNotSentZeroAmount
		result.Messages.AddNotice("total cero y el envío de facturas vacías está deshabilitado")
	default:
		return false
	}
	return true
}

// submit hace la llamada remota y persiste el desenlace. acquired indica si
// este proceso tomó el lock (envío nuevo o lock expirado recuperado); en el
// reenvío forzado no hay lock y el registro previo sobrevive a todo fracaso.
// Todas las salidas dejan el entry store en un estado del que un intento
// futuro puede recuperarse.
func (e *SendEngine) submit(ctx context.Context, result *SendResult, inv *entity.Invoice, previous *entity.EntryRecord, acquired bool) {
	addRes, err := e.client.InvoiceAdd(ctx, inv, result.Source)
	if err != nil {
		// Fallo de transporte: desenlace desconocido (la factura pudo haber
		// sido aceptada). Ni el lock ni el registro previo se tocan.
		if acquired {
			result.Messages.AddError(domacu.CodeLocal,
				"fallo de comunicación con Acumulus, desenlace desconocido; lock retenido para revisión manual: "+err.Error())
		} else {
			result.Messages.AddError(domacu.CodeLocal,
				"fallo de comunicación con Acumulus, desenlace desconocido; el registro previo se conserva: "+err.Error())
		}
		e.log.Error().Err(err).Str("source", result.Source.Label()).
			Msg("invoice_add sin respuesta")
		return
	}
	result.Submitted = true
	result.Messages = append(result.Messages, addRes.Messages...)

	if addRes.Messages.HasError() {
		// Rechazo del API: liberar el lock (si este proceso lo tomó) para que
		// un intento futuro no quede bloqueado de forma permanente. En el
		// reenvío forzado el registro previo queda vigente tal cual.
		if acquired {
			e.releaseLock(ctx, result)
		}
		return
	}

	switch {
	case addRes.EntryID != 0 && addRes.Token != "":
		if _, err := e.entries.SaveFinal(ctx, result.Source, addRes.EntryID, addRes.Token); err != nil {
			result.Messages.AddError(domacu.CodeLocal, "la factura fue aceptada pero no se pudo guardar el entry local: "+err.Error())
			if acquired {
				e.releaseLock(ctx, result)
			}
			return
		}
		result.EntryID = addRes.EntryID
		result.Token = addRes.Token
	case addRes.ConceptID != 0:
		if _, err := e.entries.SaveConcept(ctx, result.Source, addRes.ConceptID); err != nil {
			result.Messages.AddError(domacu.CodeLocal, "la factura fue aceptada como concepto pero no se pudo guardar el registro local: "+err.Error())
			if acquired {
				e.releaseLock(ctx, result)
			}
			return
		}
		result.ConceptID = addRes.ConceptID
	default:
		// Respuesta ambigua (API antiguo): no se avanza el registro local.
		result.Messages.AddWarning(domacu.CodeRemote,
			"respuesta sin entryid ni conceptid; registro local sin avanzar, revisar en Acumulus")
		e.log.Warn().Str("source", result.Source.Label()).
			Msg("invoice_add sin entryid ni conceptid")
		return
	}

	e.log.Info().Str("source", result.Source.Label()).
		Int("entry_id", result.EntryID).Int("concept_id", result.ConceptID).
		Msg("factura registrada en Acumulus")

	// Reenvío forzado: intentar marcar borrado el entry anterior para no dejar
	// duplicados sin tachar en la contabilidad. Su fallo degrada a aviso.
	if result.Status == SendStatusForced && previous != nil && previous.State == entity.EntryStateFinal {
		e.cleanupSuperseded(ctx, result, previous.EntryID)
	}
}

// releaseLock borra el lock tras un fallo. Si el borrado no es limpio se pide
// revisión manual: aquí la reconciliación automática no puede probar nada.
func (e *SendEngine) releaseLock(ctx context.Context, result *SendResult) {
	delRes, err := e.entries.DeleteLock(ctx, result.Source)
	if err != nil {
		result.Messages.AddWarning(domacu.CodeLocal,
			"no se pudo liberar el lock tras el fallo; revisar estado local y remoto manualmente: "+err.Error())
		return
	}
	if delRes != repository.LockDeleted {
		result.Messages.AddWarning(domacu.CodeLocal,
			"al liberar el lock el registro ya no era un lock; revisar estado remoto manualmente")
	}
}

// cleanupSuperseded marca borrado el entry reemplazado por un reenvío forzado.
func (e *SendEngine) cleanupSuperseded(ctx context.Context, result *SendResult, oldEntryID int) {
	delRes, err := e.client.SetDeleteStatus(ctx, oldEntryID, infraacu.EntryDelete)
	if err != nil {
		result.Messages.AddWarning(domacu.CodeRemote,
			"el nuevo envío fue aceptado pero no se pudo marcar borrado el entry anterior: "+err.Error())
		return
	}
	if delRes.Messages.HasError() {
		// Típicamente "ya no existe": aviso, no error — el envío nuevo es válido.
		result.Messages.AddWarning(domacu.CodeRemote,
			"no se pudo marcar borrado el entry anterior "+delRes.Messages.Join("; "))
		return
	}
	result.Messages.AddNotice("entry anterior marcado como borrado en Acumulus")
}

// notify dispara el correo de resultado según la política de notificación.
// Un fallo del correo nunca altera el desenlace del envío.
func (e *SendEngine) notify(ctx context.Context, result *SendResult) {
	if e.notifier == nil || !result.NeedsNotification(e.cfg.AlwaysNotify) {
		return
	}
	if err := e.notifier.SendInvoiceAddResult(ctx, result); err != nil {
		e.log.Error().Err(err).Str("source", result.Source.Label()).
			Msg("no se pudo enviar el correo de resultado")
	}
}
