package memory

import (
	"context"
	"time"

	"github.com/jhoicas/invorya-gst/internal/domain"
	"github.com/jhoicas/invorya-gst/internal/domain/entity"
)

// txState cambios pendientes de una transacción.
type txState struct {
	s         *Store
	templates map[string]*entity.RecurringTemplate
	created   []*entity.RecurringTemplate
	deleted   map[string]bool
	invoices  []*entity.Invoice
}

func (tx *txState) commit() {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	for _, t := range tx.created {
		tx.s.nextSeq++
		tx.s.templateSeq[t.ID] = tx.s.nextSeq
		tx.s.templates[t.ID] = t
	}
	for id, t := range tx.templates {
		if _, ok := tx.s.templates[id]; ok {
			tx.s.templates[id] = t
		}
	}
	for id := range tx.deleted {
		tx.s.deleteTemplate(id)
	}
	for _, inv := range tx.invoices {
		_ = tx.s.createInvoice(inv)
	}
}

func (tx *txState) lookup(id string) *entity.RecurringTemplate {
	if tx.deleted[id] {
		return nil
	}
	if t, ok := tx.templates[id]; ok {
		return t
	}
	for _, t := range tx.created {
		if t.ID == id {
			return t
		}
	}
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	return tx.s.templates[id]
}

type txTemplateRepo struct {
	tx *txState
}

func (r *txTemplateRepo) Create(ctx context.Context, t *entity.RecurringTemplate) error {
	if r.tx.lookup(t.ID) != nil {
		return domain.ErrDuplicate
	}
	if err := r.checkBaseNumber(ctx, t); err != nil {
		return err
	}
	r.tx.created = append(r.tx.created, t.Clone())
	return nil
}

func (r *txTemplateRepo) GetByID(_ context.Context, id string) (*entity.RecurringTemplate, error) {
	return r.tx.lookup(id).Clone(), nil
}

func (r *txTemplateRepo) Save(ctx context.Context, t *entity.RecurringTemplate) error {
	if r.tx.lookup(t.ID) == nil {
		return domain.ErrNotFound
	}
	if err := r.checkBaseNumber(ctx, t); err != nil {
		return err
	}
	r.tx.templates[t.ID] = t.Clone()
	return nil
}

func (r *txTemplateRepo) Delete(_ context.Context, id string) (bool, error) {
	if r.tx.lookup(id) == nil {
		return false, nil
	}
	r.tx.deleted[id] = true
	return true, nil
}

func (r *txTemplateRepo) ListActive(ctx context.Context) ([]*entity.RecurringTemplate, error) {
	return r.list(ctx, func(t *entity.RecurringTemplate) bool { return t.Config.IsActive })
}

func (r *txTemplateRepo) ListDue(ctx context.Context, now time.Time) ([]*entity.RecurringTemplate, error) {
	return r.list(ctx, func(t *entity.RecurringTemplate) bool { return t.IsDue(now) })
}

// checkBaseNumber rechaza un número base ya usado por otra plantilla, confirmada o pendiente.
func (r *txTemplateRepo) checkBaseNumber(ctx context.Context, t *entity.RecurringTemplate) error {
	if t.BaseInvoice.Number == "" {
		return nil
	}
	others, err := r.list(ctx, func(o *entity.RecurringTemplate) bool {
		return o.ID != t.ID && o.BaseInvoice.Number == t.BaseInvoice.Number
	})
	if err != nil {
		return err
	}
	if len(others) > 0 {
		return domain.ErrDuplicate
	}
	return nil
}

func (r *txTemplateRepo) List(ctx context.Context, limit, offset int) ([]*entity.RecurringTemplate, error) {
	all, err := r.list(ctx, func(*entity.RecurringTemplate) bool { return true })
	if err != nil {
		return nil, err
	}
	return page(all, limit, offset), nil
}

// list combina el estado confirmado con los cambios pendientes.
func (r *txTemplateRepo) list(_ context.Context, keep func(*entity.RecurringTemplate) bool) ([]*entity.RecurringTemplate, error) {
	r.tx.s.mu.RLock()
	base := r.tx.s.filter(func(*entity.RecurringTemplate) bool { return true })
	r.tx.s.mu.RUnlock()

	out := []*entity.RecurringTemplate{}
	for _, t := range append(base, r.tx.created...) {
		cur := r.tx.lookup(t.ID)
		if cur != nil && keep(cur) {
			out = append(out, cur.Clone())
		}
	}
	return out, nil
}

type txInvoiceRepo struct {
	tx *txState
}

func (r *txInvoiceRepo) Create(_ context.Context, inv *entity.Invoice) error {
	for _, p := range r.tx.invoices {
		if p.ID == inv.ID || p.Number == inv.Number {
			return domain.ErrDuplicate
		}
	}
	r.tx.s.mu.RLock()
	exists := r.tx.s.invoiceExists(inv)
	r.tx.s.mu.RUnlock()
	if exists {
		return domain.ErrDuplicate
	}
	r.tx.invoices = append(r.tx.invoices, inv.Clone())
	return nil
}

func (r *txInvoiceRepo) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	for _, inv := range r.tx.invoices {
		if inv.ID == id {
			return inv.Clone(), nil
		}
	}
	return r.tx.s.Invoices().GetByID(ctx, id)
}

func (r *txInvoiceRepo) ListByParent(ctx context.Context, templateID string) ([]*entity.Invoice, error) {
	out, err := r.tx.s.Invoices().ListByParent(ctx, templateID)
	if err != nil {
		return nil, err
	}
	for _, inv := range r.tx.invoices {
		if inv.ParentInvoiceID == templateID {
			out = append(out, inv.Clone())
		}
	}
	return out, nil
}
