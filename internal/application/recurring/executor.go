package recurring

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/invorya-gst/internal/domain"
	"github.com/jhoicas/invorya-gst/internal/domain/entity"
)

// RetryPolicy política de reintentos con backoff exponencial.
type RetryPolicy struct {
	MaxAttempts int           // intentos totales (incluye el primero)
	BaseDelay   time.Duration // espera tras el primer fallo
	Multiplier  float64
	Jitter      float64 // fracción aleatoria ± aplicada a cada espera (0 = sin jitter)
}

// DefaultRetryPolicy 3 intentos con esperas de 1s y 2s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, Multiplier: 2}
}

func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	return p
}

// Delay espera antes del intento attempt+1: BaseDelay × Multiplier^(attempt-1).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1)))
}

// OutcomeStatus resultado de la generación de una plantilla.
type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeFailed    OutcomeStatus = "failed"
	OutcomeSkipped   OutcomeStatus = "skipped" // no debida o inexistente; no se reintenta
)

// GenerationOutcome resultado estructurado de RunWithRetry.
type GenerationOutcome struct {
	TemplateID string
	Status     OutcomeStatus
	Invoice    *entity.Invoice
	Attempts   int
	Err        string
	Permanent  bool
}

// Succeeded indica si se generó la factura.
func (o GenerationOutcome) Succeeded() bool { return o.Status == OutcomeSucceeded }

// SleepFunc espera d o hasta que ctx se cancele.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Executor envuelve un intento de generación con reintentos acotados.
type Executor struct {
	gen    InvoiceGenerator
	policy RetryPolicy
	sleep  SleepFunc
	log    zerolog.Logger
}

var _ TemplateExecutor = (*Executor)(nil)

// NewExecutor construye el ejecutor. sleep nil usa un temporizador que respeta ctx.
func NewExecutor(gen InvoiceGenerator, policy RetryPolicy, sleep SleepFunc, log zerolog.Logger) *Executor {
	if sleep == nil {
		sleep = sleepContext
	}
	return &Executor{
		gen:    gen,
		policy: policy.normalized(),
		sleep:  sleep,
		log:    log.With().Str("component", "retry_executor").Logger(),
	}
}

// Policy política efectiva (con valores por defecto aplicados).
func (e *Executor) Policy() RetryPolicy { return e.policy }

// RunWithRetry nunca retorna error ni propaga panics: el llamador siempre recibe un resultado.
// Los fallos permanentes no se reintentan; "no debida" y "no encontrada" se marcan como omitidas.
func (e *Executor) RunWithRetry(ctx context.Context, templateID string) GenerationOutcome {
	out := GenerationOutcome{TemplateID: templateID}
	for attempt := 1; ; attempt++ {
		out.Attempts = attempt
		inv, err := e.attempt(ctx, templateID)
		if err == nil {
			out.Status = OutcomeSucceeded
			out.Invoice = inv
			out.Err = ""
			return out
		}
		out.Err = err.Error()

		if IsSkip(err) {
			out.Status = OutcomeSkipped
			return out
		}
		out.Status = OutcomeFailed
		if domain.IsPermanent(err) {
			out.Permanent = true
			e.log.Error().Err(err).Str("template_id", templateID).Int("attempt", attempt).
				Msg("fallo permanente, no se reintenta")
			return out
		}
		if attempt >= e.policy.MaxAttempts {
			e.log.Error().Err(err).Str("template_id", templateID).Int("attempts", attempt).
				Msg("reintentos agotados")
			return out
		}

		delay := e.withJitter(e.policy.Delay(attempt))
		e.log.Warn().Err(err).
			Str("template_id", templateID).
			Int("attempt", attempt).
			Int("max_attempts", e.policy.MaxAttempts).
			Dur("delay", delay).
			Msg("generación fallida, reintentando")
		if err := e.sleep(ctx, delay); err != nil {
			out.Err = fmt.Sprintf("%s (reintento cancelado: %v)", out.Err, err)
			return out
		}
	}
}

// attempt ejecuta un intento convirtiendo un panic del generador en error.
func (e *Executor) attempt(ctx context.Context, templateID string) (inv *entity.Invoice, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic en generación: %v", r)
		}
	}()
	return e.gen.Generate(ctx, templateID)
}

func (e *Executor) withJitter(d time.Duration) time.Duration {
	if e.policy.Jitter == 0 || d <= 0 {
		return d
	}
	f := 1 + e.policy.Jitter*(rand.Float64()*2-1)
	return time.Duration(float64(d) * f)
}
