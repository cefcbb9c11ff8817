package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/acumulus-sync/internal/application/billing"
	"github.com/jhoicas/acumulus-sync/internal/application/dto"
	"github.com/jhoicas/acumulus-sync/internal/domain/entity"
)

// InvoiceHandler maneja el envío manual y masivo a Acumulus (protegido).
type InvoiceHandler struct {
	manager *billing.InvoiceManager
	orders  billing.OrderReader
}

// NewInvoiceHandler construye el handler.
func NewInvoiceHandler(manager *billing.InvoiceManager, orders billing.OrderReader) *InvoiceHandler {
	return &InvoiceHandler{manager: manager, orders: orders}
}

// Send envía (o simula) una fuente a Acumulus.
// POST /api/acumulus/send
func (h *InvoiceHandler) Send(c *fiber.Ctx) error {
	var in dto.SendInvoiceRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	source, ok := parseSource(in.SourceType, in.SourceID)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "source_type debe ser Order o CreditNote y source_id no vacío"})
	}
	result, err := h.manager.Send(c.Context(), source, in.Force, in.DryRun)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(dto.FromSendResult(result))
}

// Batch envía un rango de fuentes en secuencia.
// POST /api/acumulus/batch
func (h *InvoiceHandler) Batch(c *fiber.Ctx) error {
	var in dto.BatchSendRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	typ := entity.SourceType(in.SourceType)
	if !typ.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "source_type debe ser Order o CreditNote"})
	}

	sources, err := h.resolveRange(c, typ, in)
	if err != nil {
		if fe, ok := err.(*fiber.Error); ok {
			return c.Status(fe.Code).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: fe.Message})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}

	ok, perSource := h.manager.SendBatch(c.Context(), sources, in.Force, in.DryRun)
	return c.JSON(dto.BatchSendResponse{Success: ok, PerSource: perSource})
}

// resolveRange traduce el request a la lista concreta de fuentes. Un rango de
// ids tiene prioridad sobre el rango de fechas.
func (h *InvoiceHandler) resolveRange(c *fiber.Ctx, typ entity.SourceType, in dto.BatchSendRequest) ([]entity.InvoiceSource, error) {
	if in.FromID != "" && in.ToID != "" {
		return h.orders.ListSourcesByID(c.Context(), typ, in.FromID, in.ToID)
	}
	if in.FromDate != "" && in.ToDate != "" {
		from, err := time.Parse("2006-01-02", in.FromDate)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "from_date inválida (YYYY-MM-DD)")
		}
		to, err := time.Parse("2006-01-02", in.ToDate)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "to_date inválida (YYYY-MM-DD)")
		}
		return h.orders.ListSourcesByDate(c.Context(), typ, from, to)
	}
	return nil, fiber.NewError(fiber.StatusBadRequest, "se requiere rango de ids (from_id/to_id) o de fechas (from_date/to_date)")
}

// parseSource valida tipo e id de una fuente.
func parseSource(typ, id string) (entity.InvoiceSource, bool) {
	source := entity.InvoiceSource{Type: entity.SourceType(typ), ID: id}
	if !source.Type.Valid() || source.ID == "" {
		return entity.InvoiceSource{}, false
	}
	return source, true
}
