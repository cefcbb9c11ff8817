package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/acumulus-sync/internal/application/billing"
	"github.com/jhoicas/acumulus-sync/internal/domain/entity"
)

var _ billing.OrderReader = (*OrderReader)(nil)

// OrderReader acceso de solo lectura al esquema del shop (pedidos y notas
// crédito). Resuelve fuentes individuales y rangos para el batch, y los
// totales/estado de pago para el cruce del reconciliador.
type OrderReader struct {
	q Querier
}

// NewOrderReader construye el adaptador. Pasar pool o tx (Querier).
func NewOrderReader(q Querier) *OrderReader {
	return &OrderReader{q: q}
}

// GetOrder devuelve el pedido con sus líneas, o nil si no existe.
func (r *OrderReader) GetOrder(ctx context.Context, source entity.InvoiceSource) (*entity.ShopOrder, error) {
	query := `
		SELECT id, doc_type, reference, status, date, total_inc,
		       payment_status, COALESCE(payment_date, date),
		       customer_name, COALESCE(customer_email, ''), COALESCE(country_code, '')
		FROM shop_orders WHERE doc_type = $1 AND id = $2`
	var o entity.ShopOrder
	var docType string
	err := r.q.QueryRow(ctx, query, string(source.Type), source.ID).Scan(
		&o.Source.ID, &docType, &o.Reference, &o.Status, &o.Date, &o.TotalInc,
		&o.PaymentStatus, &o.PaymentDate,
		&o.CustomerName, &o.CustomerEmail, &o.CountryCode,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get shop order: %w", err)
	}
	o.Source.Type = entity.SourceType(docType)

	lines, err := r.getLines(ctx, source)
	if err != nil {
		return nil, err
	}
	o.Lines = lines
	return &o, nil
}

func (r *OrderReader) getLines(ctx context.Context, source entity.InvoiceSource) ([]entity.ShopOrderLine, error) {
	query := `
		SELECT COALESCE(sku, ''), product, quantity, unit_price, vat_rate
		FROM shop_order_lines WHERE order_id = $1 ORDER BY position`
	rows, err := r.q.Query(ctx, query, source.ID)
	if err != nil {
		return nil, fmt.Errorf("list shop order lines: %w", err)
	}
	defer rows.Close()
	var list []entity.ShopOrderLine
	for rows.Next() {
		var l entity.ShopOrderLine
		if err := rows.Scan(&l.SKU, &l.Product, &l.Quantity, &l.UnitPrice, &l.VATRate); err != nil {
			return nil, fmt.Errorf("scan shop order line: %w", err)
		}
		list = append(list, l)
	}
	return list, rows.Err()
}

// ListSourcesByID devuelve las fuentes del tipo dado con id en [fromID, toID].
func (r *OrderReader) ListSourcesByID(ctx context.Context, typ entity.SourceType, fromID, toID string) ([]entity.InvoiceSource, error) {
	query := `
		SELECT id FROM shop_orders
		WHERE doc_type = $1 AND id >= $2 AND id <= $3 ORDER BY id`
	return r.listSources(ctx, typ, query, string(typ), fromID, toID)
}

// ListSourcesByDate devuelve las fuentes del tipo dado con fecha en [from, to].
func (r *OrderReader) ListSourcesByDate(ctx context.Context, typ entity.SourceType, from, to time.Time) ([]entity.InvoiceSource, error) {
	query := `
		SELECT id FROM shop_orders
		WHERE doc_type = $1 AND date >= $2 AND date <= $3 ORDER BY date, id`
	return r.listSources(ctx, typ, query, string(typ), from, to)
}

func (r *OrderReader) listSources(ctx context.Context, typ entity.SourceType, query string, args ...any) ([]entity.InvoiceSource, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()
	var list []entity.InvoiceSource
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan source id: %w", err)
		}
		list = append(list, entity.InvoiceSource{Type: typ, ID: id})
	}
	return list, rows.Err()
}
