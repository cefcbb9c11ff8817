package billing

import (
	"context"
	"slices"

	"github.com/jhoicas/acumulus-sync/internal/domain/entity"
	"github.com/jhoicas/acumulus-sync/pkg/logger"
)

// InvoiceManager decide, por evento disparador, si el motor de envío debe
// correr, y conduce el envío masivo sobre muchas fuentes.
type InvoiceManager struct {
	engine *SendEngine
	cfg    Config
	log    *logger.Logger
}

// NewInvoiceManager construye el manager sobre el motor de envío.
func NewInvoiceManager(engine *SendEngine, cfg Config, log *logger.Logger) *InvoiceManager {
	return &InvoiceManager{engine: engine, cfg: cfg.withDefaults(), log: log}
}

// Send envío directo (botón manual del operador).
func (m *InvoiceManager) Send(ctx context.Context, source entity.InvoiceSource, forceSend, dryRun bool) (*SendResult, error) {
	return m.engine.Send(ctx, source, forceSend, dryRun)
}

// SourceStatusChange evento "el pedido alcanzó un nuevo estado". Las notas
// crédito no pasan por el gate de estados: siempre son elegibles.
func (m *InvoiceManager) SourceStatusChange(ctx context.Context, source entity.InvoiceSource, newStatus string) (*SendResult, error) {
	if source.Type != entity.SourceTypeCreditNote &&
		!slices.Contains(m.cfg.TriggerOrderStatuses, newStatus) {
		return m.triggerDisabled(source, "estado de pedido no configurado para envío: "+newStatus), nil
	}
	return m.engine.Send(ctx, source, false, false)
}

// InvoiceCreated evento "el shop creó su propia factura".
func (m *InvoiceManager) InvoiceCreated(ctx context.Context, source entity.InvoiceSource) (*SendResult, error) {
	if !m.cfg.TriggerOnInvoiceCreate {
		return m.triggerDisabled(source, "disparador 'factura creada' deshabilitado"), nil
	}
	return m.engine.Send(ctx, source, false, false)
}

// InvoiceSent evento "el shop envió la factura al cliente".
func (m *InvoiceManager) InvoiceSent(ctx context.Context, source entity.InvoiceSource) (*SendResult, error) {
	if !m.cfg.TriggerOnInvoiceSend {
		return m.triggerDisabled(source, "disparador 'factura enviada' deshabilitado"), nil
	}
	return m.engine.Send(ctx, source, false, false)
}

// SendBatch envía una lista de fuentes en secuencia estricta, una llamada de
// red a la vez. El fallo de una fuente no aborta las siguientes; el éxito
// global es "ninguna fuente produjo error duro". Devuelve además una línea de
// log legible por fuente para mostrar al operador.
func (m *InvoiceManager) SendBatch(ctx context.Context, sources []entity.InvoiceSource, forceSend, dryRun bool) (bool, map[string]string) {
	success := true
	perSource := make(map[string]string, len(sources))
	budgetWarned := false

	for _, source := range sources {
		// Muchas llamadas pequeñas en serie pueden superar el deadline del
		// caller; cada iteración se desacopla de él con su propio timeout.
		// Si el caller ya canceló, se sigue con su contexto y se avisa una
		// sola vez para no inundar el log.
		iterCtx, cancel := m.extendBudget(ctx, &budgetWarned)

		res, err := m.engine.Send(iterCtx, source, forceSend, dryRun)
		cancel()
		if err != nil {
			success = false
			perSource[source.ID] = source.Label() + ": error interno: " + err.Error()
			m.log.Error().Err(err).Str("source", source.Label()).Msg("fallo interno en batch")
			continue
		}
		if res.HasError() {
			success = false
		}
		perSource[source.ID] = res.Summary()
		m.log.Info().Str("source", source.Label()).Str("outcome", res.Summary()).Msg("batch")
	}
	return success, perSource
}

// extendBudget desacopla la iteración del deadline del caller (best-effort).
func (m *InvoiceManager) extendBudget(ctx context.Context, warned *bool) (context.Context, context.CancelFunc) {
	if ctx.Err() != nil {
		if !*warned {
			m.log.Warn().Msg("no se pudo extender el presupuesto de tiempo del batch: contexto ya cancelado")
			*warned = true
		}
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(context.WithoutCancel(ctx), m.cfg.BatchSourceTimeout)
}

// triggerDisabled resultado sin efectos para un gate cerrado.
func (m *InvoiceManager) triggerDisabled(source entity.InvoiceSource, reason string) *SendResult {
	result := &SendResult{Source: source, Status: SendStatusNotSentTriggerDisabled}
	result.Messages.AddNotice(reason)
	m.log.Info().Str("source", source.Label()).Str("reason", reason).Msg("disparador deshabilitado")
	return result
}
