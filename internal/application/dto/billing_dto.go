package dto

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/acumulus-sync/internal/application/billing"
	domacu "github.com/jhoicas/acumulus-sync/internal/domain/acumulus"
)

// SendInvoiceRequest body para POST /api/acumulus/send.
type SendInvoiceRequest struct {
	SourceType string `json:"source_type"` // "Order" | "CreditNote"
	SourceID   string `json:"source_id"`
	Force      bool   `json:"force,omitempty"`    // reenviar aunque ya exista registro
	DryRun     bool   `json:"dry_run,omitempty"`  // evaluar sin enviar ni persistir
}

// BatchSendRequest body para POST /api/acumulus/batch. Se usa un rango de ids
// o un rango de fechas, no ambos.
type BatchSendRequest struct {
	SourceType string `json:"source_type"`
	FromID     string `json:"from_id,omitempty"`
	ToID       string `json:"to_id,omitempty"`
	FromDate   string `json:"from_date,omitempty"` // YYYY-MM-DD
	ToDate     string `json:"to_date,omitempty"`
	Force      bool   `json:"force,omitempty"`
	DryRun     bool   `json:"dry_run,omitempty"`
}

// OrderStatusWebhookRequest body para POST /api/acumulus/webhooks/order-status.
type OrderStatusWebhookRequest struct {
	SourceType string `json:"source_type"`
	SourceID   string `json:"source_id"`
	NewStatus  string `json:"new_status"`
}

// InvoiceEventWebhookRequest body para los webhooks de eventos de factura del
// shop (creada / enviada al cliente).
type InvoiceEventWebhookRequest struct {
	SourceType string `json:"source_type"`
	SourceID   string `json:"source_id"`
}

// MessageDTO mensaje de negocio en respuestas.
type MessageDTO struct {
	Severity string `json:"severity"` // notice | warning | error
	Code     string `json:"code,omitempty"`
	Text     string `json:"text"`
}

// SendResultResponse resultado de un intento de envío.
type SendResultResponse struct {
	SourceType string       `json:"source_type"`
	SourceID   string       `json:"source_id"`
	Status     string       `json:"status"`
	Submitted  bool         `json:"submitted"`
	EntryID    int          `json:"entry_id,omitempty"`
	ConceptID  int          `json:"concept_id,omitempty"`
	Messages   []MessageDTO `json:"messages,omitempty"`
}

// BatchSendResponse resultado agregado del envío masivo.
type BatchSendResponse struct {
	Success   bool              `json:"success"`
	PerSource map[string]string `json:"per_source"`
}

// EntryStatusResponse estado remoto reconciliado de una fuente.
// GET /api/acumulus/status/:type/:id
type EntryStatusResponse struct {
	SourceType    string          `json:"source_type"`
	SourceID      string          `json:"source_id"`
	Status        string          `json:"status"`
	EntryID       int             `json:"entry_id,omitempty"`
	ConceptID     int             `json:"concept_id,omitempty"`
	InvoiceNumber string          `json:"invoice_number,omitempty"`
	EntryDate     string          `json:"entry_date,omitempty"`
	PaymentStatus int             `json:"payment_status,omitempty"`
	PaymentDate   string          `json:"payment_date,omitempty"`
	AmountLocal   decimal.Decimal `json:"amount_local,omitempty"`
	AmountRemote  decimal.Decimal `json:"amount_remote,omitempty"`
	AmountMatch   string          `json:"amount_match,omitempty"`
	Messages      []MessageDTO    `json:"messages,omitempty"`
}

// FromMessages mapea los mensajes de dominio al DTO.
func FromMessages(msgs domacu.Messages) []MessageDTO {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageDTO{Severity: m.Severity.String(), Code: m.Code, Text: m.Text})
	}
	return out
}

// FromSendResult mapea el resultado del motor al DTO.
func FromSendResult(r *billing.SendResult) SendResultResponse {
	return SendResultResponse{
		SourceType: string(r.Source.Type),
		SourceID:   r.Source.ID,
		Status:     r.Status.String(),
		Submitted:  r.Submitted,
		EntryID:    r.EntryID,
		ConceptID:  r.ConceptID,
		Messages:   FromMessages(r.Messages),
	}
}

// FromStatusInfo mapea el estado reconciliado al DTO.
func FromStatusInfo(info *billing.StatusInfo) EntryStatusResponse {
	return EntryStatusResponse{
		SourceType:    string(info.Source.Type),
		SourceID:      info.Source.ID,
		Status:        info.Status.String(),
		EntryID:       info.EntryID,
		ConceptID:     info.ConceptID,
		InvoiceNumber: info.InvoiceNumber,
		EntryDate:     info.EntryDate,
		PaymentStatus: info.PaymentStatus,
		PaymentDate:   info.PaymentDate,
		AmountLocal:   info.AmountLocal,
		AmountRemote:  info.AmountRemote,
		AmountMatch:   info.AmountMatch,
		Messages:      FromMessages(info.Messages),
	}
}
