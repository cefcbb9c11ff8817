package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/acumulus-sync/internal/application/billing"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Manager    *billing.InvoiceManager
	Reconciler *billing.StatusReconciler
	Orders     billing.OrderReader
	JWTSecret  string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Webhooks del shop (protegidos: el shop presenta su propio token)
	webhooks := api.Group("/acumulus/webhooks", AuthMiddleware(deps.JWTSecret), RequireRole("operator"))
	webhookHandler := NewWebhookHandler(deps.Manager)
	webhooks.Post("/order-status", webhookHandler.OrderStatusChange)
	webhooks.Post("/invoice-created", webhookHandler.InvoiceCreated)
	webhooks.Post("/invoice-sent", webhookHandler.InvoiceSent)

	// Rutas protegidas del operador (requieren Bearer Token)
	protected := api.Group("/acumulus", AuthMiddleware(deps.JWTSecret))

	// Envío manual y masivo (solo operador)
	invoiceHandler := NewInvoiceHandler(deps.Manager, deps.Orders)
	protected.Post("/send", RequireRole("operator"), invoiceHandler.Send)
	protected.Post("/batch", RequireRole("operator"), invoiceHandler.Batch)

	// Panel de estado (lectura: operador e integraciones de solo lectura)
	statusHandler := NewStatusHandler(deps.Reconciler)
	protected.Get("/status/:type/:id", RequireRole("operator", "viewer"), statusHandler.Get)
}
