package recurring_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/invorya-gst/internal/application/recurring"
	"github.com/jhoicas/invorya-gst/internal/domain"
	"github.com/jhoicas/invorya-gst/internal/domain/entity"
	"github.com/jhoicas/invorya-gst/internal/domain/repository"
	"github.com/jhoicas/invorya-gst/internal/infrastructure/memory"
)

func newGenerator(store *memory.Store, clock *fakeClock, notifier recurring.Notifier) *recurring.Generator {
	return recurring.NewGenerator(store, notifier, zerolog.Nop(), recurring.GeneratorConfig{Now: clock.Now})
}

func TestGenerate_SecuenciaYAvance(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	clock := newClock(day(2024, 1, 1).Add(9 * time.Hour))
	seedTemplate(t, store, "tpl-1", withNumber("INV-001"))
	gen := newGenerator(store, clock, nil)

	first, err := gen.Generate(ctx, "tpl-1")
	require.NoError(t, err)
	assert.Equal(t, "INV-001-001", first.Number)
	assert.Equal(t, entity.InvoiceStatusDraft, first.Status)
	assert.Equal(t, "tpl-1", first.ParentInvoiceID)
	assert.False(t, first.IsRecurring)
	assert.Nil(t, first.RecurringConfig)
	assert.Equal(t, clock.Now(), first.Date)
	assert.Equal(t, clock.Now().AddDate(0, 0, 30), first.DueDate)
	assert.NotEqual(t, "base-tpl-1", first.ID)

	afterFirst := getTemplate(t, store, "tpl-1")
	assert.Equal(t, day(2024, 2, 1), afterFirst.Config.NextGenerationDate)
	assert.Equal(t, []string{first.ID}, afterFirst.GeneratedInvoiceIDs)
	require.NotNil(t, afterFirst.LastGeneratedAt)

	clock.Set(day(2024, 2, 1).Add(time.Hour))
	second, err := gen.Generate(ctx, "tpl-1")
	require.NoError(t, err)
	assert.Equal(t, "INV-001-002", second.Number)
	assert.NotEqual(t, first.ID, second.ID)

	afterSecond := getTemplate(t, store, "tpl-1")
	assert.True(t, afterSecond.Config.NextGenerationDate.After(afterFirst.Config.NextGenerationDate))
	assert.Equal(t, []string{first.ID, second.ID}, afterSecond.GeneratedInvoiceIDs)

	children, err := store.Invoices().ListByParent(ctx, "tpl-1")
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "INV-001-001", children[0].Number)
	assert.Equal(t, "INV-001-002", children[1].Number)
}

func TestGenerate_NoDebidaNoModifica(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	clock := newClock(day(2023, 12, 31))
	before := seedTemplate(t, store, "tpl-1")
	gen := newGenerator(store, clock, nil)

	inv, err := gen.Generate(ctx, "tpl-1")
	assert.Nil(t, inv)
	assert.ErrorIs(t, err, domain.ErrNotDue)
	assert.True(t, recurring.IsSkip(err))

	after := getTemplate(t, store, "tpl-1")
	assert.Equal(t, before.Config.NextGenerationDate, after.Config.NextGenerationDate)
	assert.Empty(t, after.GeneratedInvoiceIDs)
	assert.Zero(t, store.Invoices().Count())
}

func TestGenerate_LimitesAlcanzados(t *testing.T) {
	ctx := context.Background()
	clock := newClock(day(2024, 3, 15))

	t.Run("max_occurrences", func(t *testing.T) {
		store := memory.NewStore()
		seedTemplate(t, store, "tpl-1", withMax(1))
		gen := newGenerator(store, clock, nil)
		_, err := gen.Generate(ctx, "tpl-1")
		require.NoError(t, err)
		_, err = gen.Generate(ctx, "tpl-1")
		assert.ErrorIs(t, err, domain.ErrNotDue)
		assert.Equal(t, 1, store.Invoices().Count())
	})

	t.Run("end_date", func(t *testing.T) {
		store := memory.NewStore()
		seedTemplate(t, store, "tpl-1", withEnd(day(2024, 3, 1)))
		_, err := newGenerator(store, clock, nil).Generate(ctx, "tpl-1")
		assert.ErrorIs(t, err, domain.ErrNotDue)
		assert.Zero(t, store.Invoices().Count())
	})
}

func TestGenerate_InexistenteOPausada(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	clock := newClock(day(2024, 1, 5))
	seedTemplate(t, store, "paused", inactive())
	gen := newGenerator(store, clock, nil)

	_, err := gen.Generate(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = gen.Generate(ctx, "paused")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, err, domain.ErrTemplateInactive)
	assert.Zero(t, store.Invoices().Count())
}

func TestGenerate_FalloDeNotificacionNoRevierte(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	clock := newClock(day(2024, 1, 1))
	seedTemplate(t, store, "tpl-1", withNumber("INV-001"))
	notifier := &recordingNotifier{err: errors.New("smtp caído")}

	inv, err := newGenerator(store, clock, notifier).Generate(ctx, "tpl-1")
	require.NoError(t, err)
	require.NotNil(t, inv)
	assert.Equal(t, []string{"billing@globex.example"}, notifier.recipients)
	assert.Equal(t, []string{"INV-001-001"}, notifier.numbers)
	assert.Equal(t, 1, store.Invoices().Count())
	assert.Len(t, getTemplate(t, store, "tpl-1").GeneratedInvoiceIDs, 1)
}

func TestGenerate_NumeroBaseVacioEsPermanente(t *testing.T) {
	store := memory.NewStore()
	clock := newClock(day(2024, 1, 1))
	seedTemplate(t, store, "tpl-1", withNumber(""))

	_, err := newGenerator(store, clock, nil).Generate(context.Background(), "tpl-1")
	assert.True(t, domain.IsPermanent(err))
	assert.Zero(t, store.Invoices().Count())
	assert.Equal(t, day(2024, 1, 1), getTemplate(t, store, "tpl-1").Config.NextGenerationDate)
}

func TestGenerate_NumeroYaUsadoEsPermanente(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	clock := newClock(day(2024, 1, 1))
	seedTemplate(t, store, "tpl-1", withNumber("INV-001"))
	require.NoError(t, store.Invoices().Create(ctx, &entity.Invoice{ID: "manual", Number: "INV-001-001"}))

	_, err := newGenerator(store, clock, nil).Generate(ctx, "tpl-1")
	require.Error(t, err)
	assert.True(t, domain.IsPermanent(err), "reintentar repetiría el mismo número")
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	tpl := getTemplate(t, store, "tpl-1")
	assert.Equal(t, day(2024, 1, 1), tpl.Config.NextGenerationDate)
	assert.Empty(t, tpl.GeneratedInvoiceIDs)
	assert.Equal(t, 1, store.Invoices().Count())
}

// failingInvoices simula un fallo de almacenamiento al guardar la factura.
type failingInvoices struct {
	repository.InvoiceRepository
}

func (failingInvoices) Create(context.Context, *entity.Invoice) error {
	return errors.New("disco lleno")
}

type failingTx struct{ store *memory.Store }

func (f failingTx) RunGeneration(ctx context.Context, fn func(repository.RecurringTemplateRepository, repository.InvoiceRepository) error) error {
	return f.store.RunGeneration(ctx, func(tpls repository.RecurringTemplateRepository, invs repository.InvoiceRepository) error {
		return fn(tpls, failingInvoices{invs})
	})
}

func TestGenerate_FalloDeAlmacenamientoRevierteTodo(t *testing.T) {
	store := memory.NewStore()
	clock := newClock(day(2024, 1, 1))
	seedTemplate(t, store, "tpl-1")
	gen := recurring.NewGenerator(failingTx{store}, nil, zerolog.Nop(), recurring.GeneratorConfig{Now: clock.Now})

	_, err := gen.Generate(context.Background(), "tpl-1")
	require.Error(t, err)
	assert.False(t, domain.IsPermanent(err))

	tpl := getTemplate(t, store, "tpl-1")
	assert.Equal(t, day(2024, 1, 1), tpl.Config.NextGenerationDate)
	assert.Empty(t, tpl.GeneratedInvoiceIDs)
	assert.Nil(t, tpl.LastGeneratedAt)
}
