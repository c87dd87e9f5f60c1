package recurring_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/invorya-gst/internal/application/recurring"
	"github.com/jhoicas/invorya-gst/internal/domain"
	"github.com/jhoicas/invorya-gst/internal/domain/entity"
)

// scriptedGenerator devuelve los errores de steps en orden; después, éxito.
type scriptedGenerator struct {
	mu    sync.Mutex
	calls int
	steps []error
	panic bool
}

func (g *scriptedGenerator) Generate(_ context.Context, id string) (*entity.Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.panic {
		panic("boom")
	}
	if g.calls <= len(g.steps) {
		return nil, g.steps[g.calls-1]
	}
	return &entity.Invoice{ID: "inv-" + id, Number: fmt.Sprintf("INV-%03d", g.calls)}, nil
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
	err    error
}

func (s *sleepRecorder) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return s.err
}

var errTransient = errors.New("conexión reiniciada")

func TestRetryPolicy_Delay(t *testing.T) {
	p := recurring.DefaultRetryPolicy()
	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
}

func TestRunWithRetry_ExitoTrasDosFallos(t *testing.T) {
	gen := &scriptedGenerator{steps: []error{errTransient, errTransient}}
	sleeper := &sleepRecorder{}
	ex := recurring.NewExecutor(gen, recurring.DefaultRetryPolicy(), sleeper.Sleep, zerolog.Nop())

	out := ex.RunWithRetry(context.Background(), "tpl-1")
	assert.True(t, out.Succeeded())
	assert.Equal(t, 3, out.Attempts)
	assert.Empty(t, out.Err)
	require.NotNil(t, out.Invoice)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.delays)
}

func TestRunWithRetry_AgotaIntentos(t *testing.T) {
	gen := &scriptedGenerator{steps: []error{errTransient, errTransient, errTransient, errTransient}}
	sleeper := &sleepRecorder{}
	ex := recurring.NewExecutor(gen, recurring.DefaultRetryPolicy(), sleeper.Sleep, zerolog.Nop())

	out := ex.RunWithRetry(context.Background(), "tpl-1")
	assert.Equal(t, recurring.OutcomeFailed, out.Status)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, 3, gen.calls)
	assert.Equal(t, errTransient.Error(), out.Err)
	assert.False(t, out.Permanent)
	assert.Len(t, sleeper.delays, 2)
}

func TestRunWithRetry_PermanenteNoSeReintenta(t *testing.T) {
	gen := &scriptedGenerator{steps: []error{fmt.Errorf("%w: intervalo 0", domain.ErrInvalidInterval)}}
	sleeper := &sleepRecorder{}
	ex := recurring.NewExecutor(gen, recurring.DefaultRetryPolicy(), sleeper.Sleep, zerolog.Nop())

	out := ex.RunWithRetry(context.Background(), "tpl-1")
	assert.Equal(t, recurring.OutcomeFailed, out.Status)
	assert.True(t, out.Permanent)
	assert.Equal(t, 1, out.Attempts)
	assert.Empty(t, sleeper.delays)
}

func TestRunWithRetry_Omitidas(t *testing.T) {
	for _, err := range []error{domain.ErrNotDue, domain.ErrNotFound} {
		gen := &scriptedGenerator{steps: []error{err}}
		sleeper := &sleepRecorder{}
		ex := recurring.NewExecutor(gen, recurring.DefaultRetryPolicy(), sleeper.Sleep, zerolog.Nop())

		out := ex.RunWithRetry(context.Background(), "tpl-1")
		assert.Equal(t, recurring.OutcomeSkipped, out.Status, err.Error())
		assert.Equal(t, 1, out.Attempts)
		assert.Empty(t, sleeper.delays)
	}
}

func TestRunWithRetry_PanicSeConvierteEnFallo(t *testing.T) {
	gen := &scriptedGenerator{panic: true}
	sleeper := &sleepRecorder{}
	ex := recurring.NewExecutor(gen, recurring.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, Multiplier: 2}, sleeper.Sleep, zerolog.Nop())

	var out recurring.GenerationOutcome
	require.NotPanics(t, func() { out = ex.RunWithRetry(context.Background(), "tpl-1") })
	assert.Equal(t, recurring.OutcomeFailed, out.Status)
	assert.Equal(t, 2, out.Attempts)
	assert.Contains(t, out.Err, "boom")
}

func TestRunWithRetry_CancelacionDuranteEspera(t *testing.T) {
	gen := &scriptedGenerator{steps: []error{errTransient, errTransient}}
	sleeper := &sleepRecorder{err: context.Canceled}
	ex := recurring.NewExecutor(gen, recurring.DefaultRetryPolicy(), sleeper.Sleep, zerolog.Nop())

	out := ex.RunWithRetry(context.Background(), "tpl-1")
	assert.Equal(t, recurring.OutcomeFailed, out.Status)
	assert.Equal(t, 1, out.Attempts)
	assert.Contains(t, out.Err, "reintento cancelado")
}

func TestRunWithRetry_JitterAcotado(t *testing.T) {
	gen := &scriptedGenerator{steps: []error{errTransient, errTransient}}
	sleeper := &sleepRecorder{}
	policy := recurring.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, Multiplier: 2, Jitter: 0.1}
	ex := recurring.NewExecutor(gen, policy, sleeper.Sleep, zerolog.Nop())

	out := ex.RunWithRetry(context.Background(), "tpl-1")
	require.True(t, out.Succeeded())
	require.Len(t, sleeper.delays, 2)
	assert.InDelta(t, float64(time.Second), float64(sleeper.delays[0]), float64(100*time.Millisecond))
	assert.InDelta(t, float64(2*time.Second), float64(sleeper.delays[1]), float64(200*time.Millisecond))
}

func TestNewExecutor_PoliticaPorDefecto(t *testing.T) {
	ex := recurring.NewExecutor(&scriptedGenerator{}, recurring.RetryPolicy{}, nil, zerolog.Nop())
	p := ex.Policy()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 2.0, p.Multiplier)
}
