// Package memory implementa los puertos de persistencia en memoria (desarrollo y tests).
// Las lecturas devuelven copias: mutar una plantilla obtenida no altera el almacén hasta Save.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jhoicas/invorya-gst/internal/application/recurring"
	"github.com/jhoicas/invorya-gst/internal/domain"
	"github.com/jhoicas/invorya-gst/internal/domain/entity"
	"github.com/jhoicas/invorya-gst/internal/domain/repository"
)

var (
	_ repository.RecurringTemplateRepository = (*TemplateRepo)(nil)
	_ repository.InvoiceRepository           = (*InvoiceRepo)(nil)
	_ recurring.GenerationTxRunner           = (*Store)(nil)
)

// Store guarda plantillas y facturas. Las transacciones se serializan con txMu.
type Store struct {
	txMu sync.Mutex

	mu           sync.RWMutex
	templates    map[string]*entity.RecurringTemplate
	templateSeq  map[string]int64 // orden de inserción
	nextSeq      int64
	invoices     map[string]*entity.Invoice
	invoiceOrder []string
	numbers      map[string]bool // números de factura usados
}

// NewStore crea un almacén vacío.
func NewStore() *Store {
	return &Store{
		templates:   make(map[string]*entity.RecurringTemplate),
		templateSeq: make(map[string]int64),
		invoices:    make(map[string]*entity.Invoice),
		numbers:     make(map[string]bool),
	}
}

// Templates repositorio de plantillas fuera de transacción.
func (s *Store) Templates() *TemplateRepo { return &TemplateRepo{s: s} }

// Invoices repositorio de facturas fuera de transacción.
func (s *Store) Invoices() *InvoiceRepo { return &InvoiceRepo{s: s} }

// RunGeneration ejecuta fn con repositorios que acumulan los cambios y los aplican
// juntos solo si fn retorna nil.
func (s *Store) RunGeneration(ctx context.Context, fn func(
	templates repository.RecurringTemplateRepository,
	invoices repository.InvoiceRepository,
) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &txState{
		s:         s,
		templates: make(map[string]*entity.RecurringTemplate),
		deleted:   make(map[string]bool),
	}
	if err := fn(&txTemplateRepo{tx: tx}, &txInvoiceRepo{tx: tx}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// ── Plantillas ───────────────────────────────────────────────────────────────

// TemplateRepo implementación en memoria de RecurringTemplateRepository.
type TemplateRepo struct {
	s *Store
}

// Create guarda una nueva plantilla.
func (r *TemplateRepo) Create(_ context.Context, t *entity.RecurringTemplate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.createTemplate(t)
}

// GetByID devuelve una copia o nil si no existe.
func (r *TemplateRepo) GetByID(_ context.Context, id string) (*entity.RecurringTemplate, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.templates[id].Clone(), nil
}

// Save reemplaza la plantilla.
func (r *TemplateRepo) Save(_ context.Context, t *entity.RecurringTemplate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.saveTemplate(t)
}

// Delete elimina la plantilla; las facturas generadas se conservan.
func (r *TemplateRepo) Delete(_ context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.deleteTemplate(id), nil
}

// ListActive plantillas activas en orden de inserción.
func (r *TemplateRepo) ListActive(_ context.Context) ([]*entity.RecurringTemplate, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.filter(func(t *entity.RecurringTemplate) bool { return t.Config.IsActive }), nil
}

// ListDue plantillas debidas en now: activas, con next_generation_date <= now y sin
// haber alcanzado end_date ni max_occurrences.
func (r *TemplateRepo) ListDue(_ context.Context, now time.Time) ([]*entity.RecurringTemplate, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.filter(func(t *entity.RecurringTemplate) bool { return t.IsDue(now) }), nil
}

// List todas las plantillas paginadas.
func (r *TemplateRepo) List(_ context.Context, limit, offset int) ([]*entity.RecurringTemplate, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	all := r.s.filter(func(*entity.RecurringTemplate) bool { return true })
	return page(all, limit, offset), nil
}

func (s *Store) createTemplate(t *entity.RecurringTemplate) error {
	if _, ok := s.templates[t.ID]; ok {
		return domain.ErrDuplicate
	}
	if s.baseNumberTaken(t.ID, t.BaseInvoice.Number) {
		return domain.ErrDuplicate
	}
	s.nextSeq++
	s.templateSeq[t.ID] = s.nextSeq
	s.templates[t.ID] = t.Clone()
	return nil
}

func (s *Store) saveTemplate(t *entity.RecurringTemplate) error {
	if _, ok := s.templates[t.ID]; !ok {
		return domain.ErrNotFound
	}
	if s.baseNumberTaken(t.ID, t.BaseInvoice.Number) {
		return domain.ErrDuplicate
	}
	s.templates[t.ID] = t.Clone()
	return nil
}

// baseNumberTaken indica si otra plantilla usa ya number como número base. Los números
// de las facturas generadas derivan de él, así que debe ser único. Requiere mu tomado.
func (s *Store) baseNumberTaken(id, number string) bool {
	if number == "" {
		return false
	}
	for _, other := range s.templates {
		if other.ID != id && other.BaseInvoice.Number == number {
			return true
		}
	}
	return false
}

func (s *Store) deleteTemplate(id string) bool {
	if _, ok := s.templates[id]; !ok {
		return false
	}
	delete(s.templates, id)
	delete(s.templateSeq, id)
	return true
}

// filter devuelve copias ordenadas por inserción. Requiere mu tomado.
func (s *Store) filter(keep func(*entity.RecurringTemplate) bool) []*entity.RecurringTemplate {
	out := make([]*entity.RecurringTemplate, 0, len(s.templates))
	for _, t := range s.templates {
		if keep(t) {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.templateSeq[out[i].ID] < s.templateSeq[out[j].ID] })
	return out
}

func page[T any](list []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(list) {
		return []T{}
	}
	end := len(list)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return list[offset:end]
}

// ── Facturas ─────────────────────────────────────────────────────────────────

// InvoiceRepo implementación en memoria de InvoiceRepository.
type InvoiceRepo struct {
	s *Store
}

// Create guarda la factura.
func (r *InvoiceRepo) Create(_ context.Context, inv *entity.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.createInvoice(inv)
}

// GetByID devuelve una copia o nil si no existe.
func (r *InvoiceRepo) GetByID(_ context.Context, id string) (*entity.Invoice, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.invoices[id].Clone(), nil
}

// ListByParent facturas generadas desde templateID en orden de generación.
func (r *InvoiceRepo) ListByParent(_ context.Context, templateID string) ([]*entity.Invoice, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*entity.Invoice{}
	for _, id := range r.s.invoiceOrder {
		if inv := r.s.invoices[id]; inv.ParentInvoiceID == templateID {
			out = append(out, inv.Clone())
		}
	}
	return out, nil
}

// Count número total de facturas guardadas.
func (r *InvoiceRepo) Count() int {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.invoices)
}

func (s *Store) createInvoice(inv *entity.Invoice) error {
	if s.invoiceExists(inv) {
		return domain.ErrDuplicate
	}
	s.invoices[inv.ID] = inv.Clone()
	s.numbers[inv.Number] = true
	s.invoiceOrder = append(s.invoiceOrder, inv.ID)
	return nil
}

// invoiceExists indica si ya hay una factura con el mismo ID o número. Requiere mu tomado.
func (s *Store) invoiceExists(inv *entity.Invoice) bool {
	_, ok := s.invoices[inv.ID]
	return ok || s.numbers[inv.Number]
}
