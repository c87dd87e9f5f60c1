package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/invorya-gst/internal/domain"
	"github.com/jhoicas/invorya-gst/internal/domain/entity"
	"github.com/jhoicas/invorya-gst/internal/domain/repository"
)

var _ repository.RecurringTemplateRepository = (*RecurringTemplateRepo)(nil)

// RecurringTemplateRepo implementación de RecurringTemplateRepository (usable con pool o tx).
// Dentro de una transacción GetByID bloquea la fila (FOR UPDATE) para serializar generaciones.
type RecurringTemplateRepo struct {
	q         Querier
	forUpdate bool
}

// NewRecurringTemplateRepository construye el adaptador. Pasar pool o tx (Querier).
func NewRecurringTemplateRepository(q Querier) *RecurringTemplateRepo {
	return &RecurringTemplateRepo{q: q}
}

func newLockingTemplateRepository(tx pgx.Tx) *RecurringTemplateRepo {
	return &RecurringTemplateRepo{q: tx, forUpdate: true}
}

const templateColumns = `id, base_invoice, frequency, interval_count, start_date, end_date, max_occurrences,
	next_generation_date, is_active, generated_invoice_ids, last_generated_at, last_error, created_at, updated_at`

// Create persiste una plantilla nueva.
func (r *RecurringTemplateRepo) Create(ctx context.Context, t *entity.RecurringTemplate) error {
	query := `
		INSERT INTO recurring_templates (` + templateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.q.Exec(ctx, query, templateArgs(t)...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: plantilla %s o número base %s", domain.ErrDuplicate, t.ID, t.BaseInvoice.Number)
		}
		return fmt.Errorf("insert recurring template: %w", err)
	}
	return nil
}

// GetByID obtiene una plantilla. Retorna (nil, nil) si no existe.
func (r *RecurringTemplateRepo) GetByID(ctx context.Context, id string) (*entity.RecurringTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM recurring_templates WHERE id = $1`
	if r.forUpdate {
		query += ` FOR UPDATE`
	}
	t, err := scanTemplate(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get recurring template: %w", err)
	}
	return t, nil
}

// Save reemplaza el estado de una plantilla existente.
func (r *RecurringTemplateRepo) Save(ctx context.Context, t *entity.RecurringTemplate) error {
	query := `
		UPDATE recurring_templates
		SET base_invoice          = $2,
		    frequency             = $3,
		    interval_count        = $4,
		    start_date            = $5,
		    end_date              = $6,
		    max_occurrences       = $7,
		    next_generation_date  = $8,
		    is_active             = $9,
		    generated_invoice_ids = $10,
		    last_generated_at     = $11,
		    last_error            = $12,
		    updated_at            = $13
		WHERE id = $1`
	args := templateArgs(t)
	args = append(args[:12], args[13]) // sin created_at
	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: número base %s", domain.ErrDuplicate, t.BaseInvoice.Number)
		}
		return fmt.Errorf("update recurring template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete elimina la plantilla; las facturas generadas no se tocan.
func (r *RecurringTemplateRepo) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM recurring_templates WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete recurring template: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListActive plantillas activas en orden de creación.
func (r *RecurringTemplateRepo) ListActive(ctx context.Context) ([]*entity.RecurringTemplate, error) {
	return r.list(ctx, `WHERE is_active ORDER BY seq`)
}

// ListDue plantillas activas con next_generation_date <= now que no superaron sus límites.
func (r *RecurringTemplateRepo) ListDue(ctx context.Context, now time.Time) ([]*entity.RecurringTemplate, error) {
	return r.list(ctx, `
		WHERE is_active
		  AND next_generation_date <= $1
		  AND (end_date IS NULL OR end_date >= $1)
		  AND (max_occurrences IS NULL OR cardinality(generated_invoice_ids) < max_occurrences)
		ORDER BY seq`, now)
}

// List página de plantillas en orden de creación.
func (r *RecurringTemplateRepo) List(ctx context.Context, limit, offset int) ([]*entity.RecurringTemplate, error) {
	return r.list(ctx, `ORDER BY seq LIMIT $1 OFFSET $2`, limit, offset)
}

func (r *RecurringTemplateRepo) list(ctx context.Context, clause string, args ...any) ([]*entity.RecurringTemplate, error) {
	rows, err := r.q.Query(ctx, `SELECT `+templateColumns+` FROM recurring_templates `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("list recurring templates: %w", err)
	}
	defer rows.Close()

	list := []*entity.RecurringTemplate{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring template: %w", err)
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

func templateArgs(t *entity.RecurringTemplate) []any {
	ids := t.GeneratedInvoiceIDs
	if ids == nil {
		ids = []string{}
	}
	var maxOcc *int32
	if t.Config.MaxOccurrences != nil {
		v := int32(*t.Config.MaxOccurrences)
		maxOcc = &v
	}
	return []any{
		t.ID, t.BaseInvoice, string(t.Config.Frequency), int32(t.Config.Interval),
		t.Config.StartDate, t.Config.EndDate, maxOcc, t.Config.NextGenerationDate,
		t.Config.IsActive, ids, t.LastGeneratedAt, nullIfEmpty(t.LastError),
		t.CreatedAt, t.UpdatedAt,
	}
}

func scanTemplate(row pgx.Row) (*entity.RecurringTemplate, error) {
	var t entity.RecurringTemplate
	var frequency string
	var interval int32
	var maxOcc *int32
	var lastError *string
	err := row.Scan(
		&t.ID, &t.BaseInvoice, &frequency, &interval, &t.Config.StartDate, &t.Config.EndDate, &maxOcc,
		&t.Config.NextGenerationDate, &t.Config.IsActive, &t.GeneratedInvoiceIDs, &t.LastGeneratedAt,
		&lastError, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Config.Frequency = entity.Frequency(frequency)
	t.Config.Interval = int(interval)
	if maxOcc != nil {
		v := int(*maxOcc)
		t.Config.MaxOccurrences = &v
	}
	if t.GeneratedInvoiceIDs == nil {
		t.GeneratedInvoiceIDs = []string{}
	}
	t.LastError = derefStr(lastError)
	return &t, nil
}
