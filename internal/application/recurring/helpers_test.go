package recurring_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/invorya-gst/internal/domain"
	"github.com/jhoicas/invorya-gst/internal/domain/entity"
	"github.com/jhoicas/invorya-gst/internal/domain/repository"
	"github.com/jhoicas/invorya-gst/internal/infrastructure/memory"
)

// fakeClock reloj controlable desde el test.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type templateOpt func(*entity.RecurringTemplate)

func withMax(n int) templateOpt {
	return func(t *entity.RecurringTemplate) { t.Config.MaxOccurrences = &n }
}

func withEnd(end time.Time) templateOpt {
	return func(t *entity.RecurringTemplate) { t.Config.EndDate = &end }
}

func withNext(next time.Time) templateOpt {
	return func(t *entity.RecurringTemplate) { t.Config.NextGenerationDate = next }
}

func withNumber(n string) templateOpt {
	return func(t *entity.RecurringTemplate) { t.BaseInvoice.Number = n }
}

func inactive() templateOpt {
	return func(t *entity.RecurringTemplate) { t.Config.IsActive = false }
}

// seedTemplate crea una plantilla mensual que empieza el 2024-01-01 con número base "INV-<id>".
func seedTemplate(t *testing.T, store *memory.Store, id string, opts ...templateOpt) *entity.RecurringTemplate {
	t.Helper()
	start := day(2024, 1, 1)
	tpl := &entity.RecurringTemplate{
		ID: id,
		BaseInvoice: entity.Invoice{
			ID:          "base-" + id,
			Number:      "INV-" + id,
			Business:    entity.BusinessInfo{Name: "Acme Traders", GSTIN: "27AAPFU0939F1ZV", State: "27"},
			Client:      entity.ClientInfo{Name: "Globex", Email: "billing@globex.example"},
			Items:       []entity.InvoiceItem{{Description: "Soporte mensual", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(1000), TaxRate: decimal.NewFromInt(18), Amount: decimal.NewFromInt(1000)}},
			Currency:    "INR",
			Tax:         entity.TaxConfig{Type: entity.TaxTypeCGSTSGST, Rate: decimal.NewFromInt(18)},
			Status:      entity.InvoiceStatusDraft,
			IsRecurring: true,
			Subtotal:    decimal.NewFromInt(1000),
			TaxTotal:    decimal.NewFromInt(180),
			GrandTotal:  decimal.NewFromInt(1180),
		},
		Config: entity.RecurringConfig{
			Frequency:          entity.FrequencyMonthly,
			Interval:           1,
			StartDate:          start,
			NextGenerationDate: start,
			IsActive:           true,
		},
		GeneratedInvoiceIDs: []string{},
		CreatedAt:           start,
		UpdatedAt:           start,
	}
	for _, opt := range opts {
		opt(tpl)
	}
	require.NoError(t, store.Templates().Create(context.Background(), tpl))
	return tpl
}

func getTemplate(t *testing.T, store *memory.Store, id string) *entity.RecurringTemplate {
	t.Helper()
	tpl, err := store.Templates().GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, tpl)
	return tpl
}

// recordingNotifier registra las notificaciones; err se devuelve en cada llamada.
type recordingNotifier struct {
	mu         sync.Mutex
	recipients []string
	numbers    []string
	err        error
}

func (n *recordingNotifier) NotifyGenerated(_ context.Context, inv *entity.Invoice, recipient string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.recipients = append(n.recipients, recipient)
	n.numbers = append(n.numbers, inv.Number)
	return n.err
}

// brokenTemplates repositorio cuyo listado falla.
type brokenTemplates struct {
	repository.RecurringTemplateRepository
}

func (brokenTemplates) ListDue(context.Context, time.Time) ([]*entity.RecurringTemplate, error) {
	return nil, domain.ErrConflict
}
