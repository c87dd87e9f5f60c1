package recurring_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/invorya-gst/internal/application/dto"
	"github.com/jhoicas/invorya-gst/internal/application/recurring"
	"github.com/jhoicas/invorya-gst/internal/domain"
	"github.com/jhoicas/invorya-gst/internal/domain/entity"
	"github.com/jhoicas/invorya-gst/internal/infrastructure/memory"
)

func newTemplateUseCase(store *memory.Store, clock *fakeClock) *recurring.TemplateUseCase {
	return recurring.NewTemplateUseCase(store.Templates(), store.Invoices(), store, newGenerator(store, clock, nil), clock.Now)
}

func createRequest() dto.CreateTemplateRequest {
	return dto.CreateTemplateRequest{
		BaseInvoice: dto.InvoiceRequest{
			Number:   "INV-001",
			Business: entity.BusinessInfo{Name: "Acme Traders", GSTIN: "27AAPFU0939F1ZV"},
			Client:   entity.ClientInfo{Name: "Globex", Email: "billing@globex.example"},
			Items:    []entity.InvoiceItem{{Description: "Hosting", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(500)}},
			Tax:      entity.TaxConfig{Type: entity.TaxTypeIGST, Rate: decimal.NewFromInt(18)},
			Total:    decimal.NewFromInt(590),
		},
		Frequency: "Monthly",
		Interval:  1,
		StartDate: "2024-01-01",
	}
}

func TestTemplateUseCase_Create(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	uc := newTemplateUseCase(store, newClock(day(2023, 12, 20)))

	max := 3
	req := createRequest()
	req.MaxOccurrences = &max
	out, err := uc.Create(ctx, req)
	require.NoError(t, err)

	assert.NotEmpty(t, out.ID)
	assert.Equal(t, "monthly", out.Frequency)
	assert.Equal(t, day(2024, 1, 1), out.NextGenerationDate)
	assert.True(t, out.IsActive)
	assert.Equal(t, 3, *out.MaxOccurrences)
	assert.Empty(t, out.GeneratedInvoiceIDs)
	require.NotNil(t, out.BaseInvoice)
	assert.Equal(t, "INR", out.BaseInvoice.Currency)
	assert.True(t, out.BaseInvoice.IsRecurring)
	assert.Equal(t, entity.InvoiceStatusDraft, out.BaseInvoice.Status)
	require.NotNil(t, out.BaseInvoice.RecurringConfig)
	assert.Equal(t, entity.FrequencyMonthly, out.BaseInvoice.RecurringConfig.Frequency)

	stored := getTemplate(t, store, out.ID)
	assert.Equal(t, "INV-001", stored.BaseInvoice.Number)
}

func TestTemplateUseCase_CreateInvalido(t *testing.T) {
	ctx := context.Background()
	uc := newTemplateUseCase(memory.NewStore(), newClock(day(2024, 1, 1)))

	req := createRequest()
	req.Interval = 0
	_, err := uc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidInterval)

	req = createRequest()
	req.Frequency = "daily"
	_, err = uc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidFrequency)

	req = createRequest()
	req.EndDate = "2023-06-01"
	_, err = uc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	req = createRequest()
	req.StartDate = "01/01/2024"
	_, err = uc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	req = createRequest()
	req.BaseInvoice.Number = " "
	_, err = uc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestTemplateUseCase_NumeroBaseUnico(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	uc := newTemplateUseCase(store, newClock(day(2024, 1, 1)))

	_, err := uc.Create(ctx, createRequest())
	require.NoError(t, err)
	_, err = uc.Create(ctx, createRequest())
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	seedTemplate(t, store, "tpl-2")
	base := createRequest().BaseInvoice
	_, err = uc.Update(ctx, "tpl-2", dto.UpdateTemplateRequest{BaseInvoice: &base})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
	assert.Equal(t, "INV-tpl-2", getTemplate(t, store, "tpl-2").BaseInvoice.Number)
}

func TestTemplateUseCase_UpdateParcial(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	uc := newTemplateUseCase(store, newClock(day(2024, 1, 1)))
	seedTemplate(t, store, "tpl-1", withEnd(day(2024, 12, 31)), withMax(12))

	freq, interval, noEnd, noMax := "quarterly", 2, "", 0
	out, err := uc.Update(ctx, "tpl-1", dto.UpdateTemplateRequest{
		Frequency:      &freq,
		Interval:       &interval,
		EndDate:        &noEnd,
		MaxOccurrences: &noMax,
	})
	require.NoError(t, err)
	assert.Equal(t, "quarterly", out.Frequency)
	assert.Equal(t, 2, out.Interval)
	assert.Nil(t, out.EndDate)
	assert.Nil(t, out.MaxOccurrences)
	assert.Equal(t, "INV-tpl-1", out.BaseInvoice.Number)

	bad := 0
	_, err = uc.Update(ctx, "tpl-1", dto.UpdateTemplateRequest{Interval: &bad})
	assert.ErrorIs(t, err, domain.ErrInvalidInterval)

	_, err = uc.Update(ctx, "missing", dto.UpdateTemplateRequest{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTemplateUseCase_UpdateMaxMenorQueGeneradas(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	clock := newClock(day(2024, 3, 5))
	uc := newTemplateUseCase(store, clock)
	seedTemplate(t, store, "tpl-1")

	for _, d := range []time.Time{day(2024, 1, 1), day(2024, 2, 1)} {
		clock.Set(d)
		_, err := uc.GenerateNow(ctx, "tpl-1")
		require.NoError(t, err)
	}
	one := 1
	_, err := uc.Update(ctx, "tpl-1", dto.UpdateTemplateRequest{MaxOccurrences: &one})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestTemplateUseCase_PauseResume(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	clock := newClock(day(2024, 1, 1))
	uc := newTemplateUseCase(store, clock)
	seedTemplate(t, store, "tpl-1")
	seedTemplate(t, store, "done", withMax(1))

	out, err := uc.Pause(ctx, "tpl-1")
	require.NoError(t, err)
	assert.False(t, out.IsActive)
	_, err = uc.GenerateNow(ctx, "tpl-1")
	assert.ErrorIs(t, err, domain.ErrTemplateInactive)

	out, err = uc.Resume(ctx, "tpl-1")
	require.NoError(t, err)
	assert.True(t, out.IsActive)

	_, err = uc.GenerateNow(ctx, "done")
	require.NoError(t, err)
	_, err = uc.Pause(ctx, "done")
	require.NoError(t, err)
	_, err = uc.Resume(ctx, "done")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestTemplateUseCase_ListYFacturas(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	clock := newClock(day(2024, 1, 1))
	uc := newTemplateUseCase(store, clock)
	seedTemplate(t, store, "a")
	seedTemplate(t, store, "b")
	seedTemplate(t, store, "c")

	page, err := uc.List(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "b", page[0].ID)
	assert.Equal(t, "c", page[1].ID)

	inv, err := uc.GenerateNow(ctx, "a")
	require.NoError(t, err)
	invoices, err := uc.ListInvoices(ctx, "a")
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, inv.ID, invoices[0].ID)

	_, err = uc.ListInvoices(ctx, "zzz")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTemplateUseCase_Delete(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	clock := newClock(day(2024, 1, 1))
	uc := newTemplateUseCase(store, clock)
	seedTemplate(t, store, "tpl-1")
	inv, err := uc.GenerateNow(ctx, "tpl-1")
	require.NoError(t, err)

	require.NoError(t, uc.Delete(ctx, "tpl-1"))
	assert.ErrorIs(t, uc.Delete(ctx, "tpl-1"), domain.ErrNotFound)
	_, err = uc.Get(ctx, "tpl-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	kept, err := store.Invoices().GetByID(ctx, inv.ID)
	require.NoError(t, err)
	require.NotNil(t, kept)
	assert.Equal(t, "tpl-1", kept.ParentInvoiceID)
}
