package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/acumulus-sync/internal/application/billing"
	"github.com/jhoicas/acumulus-sync/internal/application/dto"
	"github.com/jhoicas/acumulus-sync/internal/domain/entity"
)

// WebhookHandler recibe los eventos disparadores del shop. Cada webhook
// delega en el manager, que decide según configuración si el evento dispara
// un envío real; un disparador apagado responde 200 con el motivo.
type WebhookHandler struct {
	manager *billing.InvoiceManager
}

// NewWebhookHandler construye el handler.
func NewWebhookHandler(manager *billing.InvoiceManager) *WebhookHandler {
	return &WebhookHandler{manager: manager}
}

// OrderStatusChange evento "el pedido cambió de estado".
// POST /api/acumulus/webhooks/order-status
func (h *WebhookHandler) OrderStatusChange(c *fiber.Ctx) error {
	var in dto.OrderStatusWebhookRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	source, ok := parseSource(in.SourceType, in.SourceID)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "fuente inválida"})
	}
	result, err := h.manager.SourceStatusChange(c.Context(), source, in.NewStatus)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(dto.FromSendResult(result))
}

// InvoiceCreated evento "el shop creó su propia factura".
// POST /api/acumulus/webhooks/invoice-created
func (h *WebhookHandler) InvoiceCreated(c *fiber.Ctx) error {
	return h.invoiceEvent(c, h.manager.InvoiceCreated)
}

// InvoiceSent evento "el shop envió la factura al cliente".
// POST /api/acumulus/webhooks/invoice-sent
func (h *WebhookHandler) InvoiceSent(c *fiber.Ctx) error {
	return h.invoiceEvent(c, h.manager.InvoiceSent)
}

// invoiceEvent cuerpo común de los webhooks de eventos de factura.
func (h *WebhookHandler) invoiceEvent(c *fiber.Ctx, trigger func(context.Context, entity.InvoiceSource) (*billing.SendResult, error)) error {
	var in dto.InvoiceEventWebhookRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	source, ok := parseSource(in.SourceType, in.SourceID)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "fuente inválida"})
	}
	result, err := trigger(c.Context(), source)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(dto.FromSendResult(result))
}
