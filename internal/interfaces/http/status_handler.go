package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/acumulus-sync/internal/application/billing"
	"github.com/jhoicas/acumulus-sync/internal/application/dto"
)

// StatusHandler expone el panel de estado: qué sabe Acumulus realmente de una
// fuente, reconciliando el registro local contra el remoto.
type StatusHandler struct {
	reconciler *billing.StatusReconciler
}

// NewStatusHandler construye el handler.
func NewStatusHandler(reconciler *billing.StatusReconciler) *StatusHandler {
	return &StatusHandler{reconciler: reconciler}
}

// Get estado reconciliado de una fuente.
// GET /api/acumulus/status/:type/:id
func (h *StatusHandler) Get(c *fiber.Ctx) error {
	source, ok := parseSource(c.Params("type"), c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "tipo debe ser Order o CreditNote e id no vacío"})
	}
	info, err := h.reconciler.Reconcile(c.Context(), source)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(dto.FromStatusInfo(info))
}
