package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/invorya-gst/internal/domain"
	"github.com/jhoicas/invorya-gst/internal/domain/entity"
	"github.com/jhoicas/invorya-gst/internal/domain/repository"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo implementación de InvoiceRepository (usable con pool o tx).
// Emisor, cliente, líneas e impuestos se guardan como JSONB; los importes como NUMERIC.
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

const invoiceColumns = `id, number, business, client, items, currency, tax, notes, date, due_date,
	status, is_recurring, parent_invoice_id, subtotal, tax_total, grand_total, created_at, updated_at`

// Create persiste la factura.
func (r *InvoiceRepo) Create(ctx context.Context, inv *entity.Invoice) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	items := inv.Items
	if items == nil {
		items = []entity.InvoiceItem{}
	}
	query := `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	_, err := r.q.Exec(ctx, query,
		inv.ID, inv.Number, inv.Business, inv.Client, items, inv.Currency, inv.Tax,
		nullIfEmpty(inv.Notes), inv.Date, inv.DueDate, inv.Status, inv.IsRecurring,
		nullIfEmpty(inv.ParentInvoiceID), inv.Subtotal, inv.TaxTotal, inv.GrandTotal,
		inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: número de factura %s", domain.ErrDuplicate, inv.Number)
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

// GetByID obtiene una factura por ID. Retorna (nil, nil) si no existe.
func (r *InvoiceRepo) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	inv, err := scanInvoice(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return inv, nil
}

// ListByParent facturas generadas por una plantilla, en orden de generación.
func (r *InvoiceRepo) ListByParent(ctx context.Context, templateID string) ([]*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE parent_invoice_id = $1 ORDER BY seq`
	rows, err := r.q.Query(ctx, query, templateID)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	list := []*entity.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		list = append(list, inv)
	}
	return list, rows.Err()
}

func scanInvoice(row pgx.Row) (*entity.Invoice, error) {
	var inv entity.Invoice
	var notes, parent *string
	err := row.Scan(
		&inv.ID, &inv.Number, &inv.Business, &inv.Client, &inv.Items, &inv.Currency, &inv.Tax,
		&notes, &inv.Date, &inv.DueDate, &inv.Status, &inv.IsRecurring, &parent,
		&inv.Subtotal, &inv.TaxTotal, &inv.GrandTotal, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.Notes = derefStr(notes)
	inv.ParentInvoiceID = derefStr(parent)
	return &inv, nil
}
