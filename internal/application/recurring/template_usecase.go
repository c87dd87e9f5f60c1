package recurring

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/invorya-gst/internal/application/dto"
	"github.com/jhoicas/invorya-gst/internal/domain"
	"github.com/jhoicas/invorya-gst/internal/domain/entity"
	"github.com/jhoicas/invorya-gst/internal/domain/repository"
)

// TemplateUseCase casos de uso de administración de plantillas recurrentes.
type TemplateUseCase struct {
	templates repository.RecurringTemplateRepository
	invoices  repository.InvoiceRepository
	tx        GenerationTxRunner
	generator InvoiceGenerator
	now       Clock
}

// NewTemplateUseCase construye el caso de uso. Las ediciones de plantillas existentes
// se hacen dentro de tx, con la fila bloqueada. now nil usa time.Now.
func NewTemplateUseCase(templates repository.RecurringTemplateRepository, invoices repository.InvoiceRepository, tx GenerationTxRunner, generator InvoiceGenerator, now Clock) *TemplateUseCase {
	if now == nil {
		now = time.Now
	}
	return &TemplateUseCase{templates: templates, invoices: invoices, tx: tx, generator: generator, now: now}
}

// Create crea una plantilla con una copia de la factura base; next_generation_date = start_date.
func (uc *TemplateUseCase) Create(ctx context.Context, in dto.CreateTemplateRequest) (*dto.TemplateResponse, error) {
	if strings.TrimSpace(in.BaseInvoice.Number) == "" {
		return nil, fmt.Errorf("%w: base_invoice.number requerido", domain.ErrInvalidInput)
	}
	start, err := parseDate(in.StartDate)
	if err != nil {
		return nil, fmt.Errorf("%w: start_date: %v", domain.ErrInvalidInput, err)
	}
	cfg := entity.RecurringConfig{
		Frequency:          entity.Frequency(strings.ToLower(in.Frequency)),
		Interval:           in.Interval,
		StartDate:          start,
		NextGenerationDate: start,
		IsActive:           in.IsActive == nil || *in.IsActive,
	}
	if in.EndDate != "" {
		end, err := parseDate(in.EndDate)
		if err != nil {
			return nil, fmt.Errorf("%w: end_date: %v", domain.ErrInvalidInput, err)
		}
		cfg.EndDate = &end
	}
	if in.MaxOccurrences != nil {
		max := *in.MaxOccurrences
		cfg.MaxOccurrences = &max
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := uc.now()
	base := invoiceFromRequest(in.BaseInvoice)
	base.ID = uuid.New().String()
	base.Status = entity.InvoiceStatusDraft
	base.IsRecurring = true
	base.Date = start
	base.CreatedAt = now
	base.UpdatedAt = now
	rc := cfg.Clone()
	base.RecurringConfig = &rc

	tpl := &entity.RecurringTemplate{
		ID:                  uuid.New().String(),
		BaseInvoice:         *base,
		Config:              cfg,
		GeneratedInvoiceIDs: []string{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := uc.templates.Create(ctx, tpl); err != nil {
		return nil, err
	}
	return toTemplateResponse(tpl), nil
}

// Get obtiene una plantilla.
func (uc *TemplateUseCase) Get(ctx context.Context, id string) (*dto.TemplateResponse, error) {
	tpl, err := uc.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return toTemplateResponse(tpl), nil
}

// List lista plantillas en orden de creación.
func (uc *TemplateUseCase) List(ctx context.Context, limit, offset int) ([]*dto.TemplateResponse, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	list, err := uc.templates.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.TemplateResponse, 0, len(list))
	for _, t := range list {
		out = append(out, toTemplateResponse(t))
	}
	return out, nil
}

// Update actualiza la factura base y/o la recurrencia. El historial de generación no cambia.
func (uc *TemplateUseCase) Update(ctx context.Context, id string, in dto.UpdateTemplateRequest) (*dto.TemplateResponse, error) {
	if id == "" {
		return nil, domain.ErrInvalidInput
	}
	var end, next *time.Time
	if in.EndDate != nil && *in.EndDate != "" {
		t, err := parseDate(*in.EndDate)
		if err != nil {
			return nil, fmt.Errorf("%w: end_date: %v", domain.ErrInvalidInput, err)
		}
		end = &t
	}
	if in.NextGenerationDate != nil {
		t, err := parseDate(*in.NextGenerationDate)
		if err != nil {
			return nil, fmt.Errorf("%w: next_generation_date: %v", domain.ErrInvalidInput, err)
		}
		next = &t
	}
	if in.BaseInvoice != nil && strings.TrimSpace(in.BaseInvoice.Number) == "" {
		return nil, fmt.Errorf("%w: base_invoice.number requerido", domain.ErrInvalidInput)
	}

	tpl, err := mutateTemplate(ctx, uc.tx, id, func(tpl *entity.RecurringTemplate) (bool, error) {
		cfg := tpl.Config.Clone()
		if in.Frequency != nil {
			cfg.Frequency = entity.Frequency(strings.ToLower(*in.Frequency))
		}
		if in.Interval != nil {
			cfg.Interval = *in.Interval
		}
		if in.EndDate != nil {
			cfg.EndDate = end
		}
		if in.MaxOccurrences != nil {
			if *in.MaxOccurrences == 0 {
				cfg.MaxOccurrences = nil
			} else {
				max := *in.MaxOccurrences
				cfg.MaxOccurrences = &max
			}
		}
		if next != nil {
			cfg.NextGenerationDate = *next
		}
		if err := cfg.Validate(); err != nil {
			return false, err
		}
		if cfg.MaxOccurrences != nil && len(tpl.GeneratedInvoiceIDs) > *cfg.MaxOccurrences {
			return false, fmt.Errorf("%w: max_occurrences menor que las facturas ya generadas", domain.ErrInvalidInput)
		}

		now := uc.now()
		if in.BaseInvoice != nil {
			base := invoiceFromRequest(*in.BaseInvoice)
			base.ID = tpl.BaseInvoice.ID
			base.Status = tpl.BaseInvoice.Status
			base.IsRecurring = true
			base.Date = tpl.BaseInvoice.Date
			base.CreatedAt = tpl.BaseInvoice.CreatedAt
			tpl.BaseInvoice = *base
		}
		rc := cfg.Clone()
		tpl.BaseInvoice.RecurringConfig = &rc
		tpl.BaseInvoice.UpdatedAt = now
		tpl.Config = cfg
		tpl.LastError = ""
		tpl.UpdatedAt = now
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return toTemplateResponse(tpl), nil
}

// Pause desactiva la plantilla.
func (uc *TemplateUseCase) Pause(ctx context.Context, id string) (*dto.TemplateResponse, error) {
	return uc.setActive(ctx, id, false)
}

// Resume reactiva la plantilla. Falla con ErrConflict si ya terminó (fecha fin u ocurrencias).
func (uc *TemplateUseCase) Resume(ctx context.Context, id string) (*dto.TemplateResponse, error) {
	return uc.setActive(ctx, id, true)
}

func (uc *TemplateUseCase) setActive(ctx context.Context, id string, active bool) (*dto.TemplateResponse, error) {
	if id == "" {
		return nil, domain.ErrInvalidInput
	}
	tpl, err := mutateTemplate(ctx, uc.tx, id, func(tpl *entity.RecurringTemplate) (bool, error) {
		now := uc.now()
		if active && tpl.Completed(now) {
			return false, fmt.Errorf("%w: la plantilla ya completó su recurrencia", domain.ErrConflict)
		}
		tpl.Config.IsActive = active
		tpl.UpdatedAt = now
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return toTemplateResponse(tpl), nil
}

// Delete elimina la plantilla; las facturas generadas conservan su parent_invoice_id.
func (uc *TemplateUseCase) Delete(ctx context.Context, id string) error {
	ok, err := uc.templates.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	return nil
}

// ListInvoices facturas generadas por la plantilla, en orden de generación.
func (uc *TemplateUseCase) ListInvoices(ctx context.Context, id string) ([]*entity.Invoice, error) {
	if _, err := uc.load(ctx, id); err != nil {
		return nil, err
	}
	return uc.invoices.ListByParent(ctx, id)
}

// GenerateNow genera una factura de la plantilla si está debida (sin reintentos).
func (uc *TemplateUseCase) GenerateNow(ctx context.Context, id string) (*entity.Invoice, error) {
	return uc.generator.Generate(ctx, id)
}

func (uc *TemplateUseCase) load(ctx context.Context, id string) (*entity.RecurringTemplate, error) {
	if id == "" {
		return nil, domain.ErrInvalidInput
	}
	tpl, err := uc.templates.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, domain.ErrNotFound
	}
	return tpl, nil
}

func invoiceFromRequest(in dto.InvoiceRequest) *entity.Invoice {
	items := make([]entity.InvoiceItem, len(in.Items))
	copy(items, in.Items)
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "INR"
	}
	return &entity.Invoice{
		Number:     strings.TrimSpace(in.Number),
		Business:   in.Business,
		Client:     in.Client,
		Items:      items,
		Currency:   currency,
		Tax:        in.Tax,
		Notes:      in.Notes,
		Subtotal:   in.Subtotal,
		TaxTotal:   in.TaxTotal,
		GrandTotal: in.Total,
	}
}

func toTemplateResponse(t *entity.RecurringTemplate) *dto.TemplateResponse {
	ids := append([]string{}, t.GeneratedInvoiceIDs...)
	return &dto.TemplateResponse{
		ID:                  t.ID,
		BaseInvoice:         t.BaseInvoice.Clone(),
		Frequency:           string(t.Config.Frequency),
		Interval:            t.Config.Interval,
		StartDate:           t.Config.StartDate,
		EndDate:             t.Config.EndDate,
		MaxOccurrences:      t.Config.MaxOccurrences,
		NextGenerationDate:  t.Config.NextGenerationDate,
		IsActive:            t.Config.IsActive,
		GeneratedInvoiceIDs: ids,
		GeneratedCount:      len(ids),
		LastGeneratedAt:     t.LastGeneratedAt,
		LastError:           t.LastError,
		CreatedAt:           t.CreatedAt,
		UpdatedAt:           t.UpdatedAt,
	}
}

// parseDate acepta YYYY-MM-DD (UTC) o RFC3339.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("fecha vacía")
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
