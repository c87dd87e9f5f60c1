package recurring

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/invorya-gst/internal/domain"
	"github.com/jhoicas/invorya-gst/internal/domain/entity"
	"github.com/jhoicas/invorya-gst/internal/domain/repository"
)

// TaskExecutionResult resultado de un lote; se produce en cada ejecución y no se persiste.
type TaskExecutionResult struct {
	Success           bool              `json:"success"`
	ProcessedCount    int               `json:"processed_count"`
	FailedCount       int               `json:"failed_count"`
	SkippedCount      int               `json:"skipped_count"`
	Errors            []string          `json:"errors"`
	GeneratedInvoices []*entity.Invoice `json:"generated_invoices"`
	StartedAt         time.Time         `json:"started_at"`
	FinishedAt        time.Time         `json:"finished_at"`
}

// AlreadyRunning indica si el lote fue rechazado por haber otro en curso.
func (r TaskExecutionResult) AlreadyRunning() bool {
	return !r.Success && len(r.Errors) == 1 && r.Errors[0] == domain.ErrAlreadyRunning.Error()
}

func alreadyRunningResult(now time.Time) TaskExecutionResult {
	return TaskExecutionResult{
		Success:    false,
		Errors:     []string{domain.ErrAlreadyRunning.Error()},
		StartedAt:  now,
		FinishedAt: now,
	}
}

// BatchJob recorre las plantillas debidas y genera sus facturas de forma secuencial.
// Como máximo un lote se ejecuta a la vez en el proceso (y entre instancias si hay BatchLock).
type BatchJob struct {
	templates repository.RecurringTemplateRepository
	tx        GenerationTxRunner
	executor  TemplateExecutor
	lock      BatchLock
	log       zerolog.Logger
	now       Clock
	running   atomic.Bool
}

var _ Batcher = (*BatchJob)(nil)

// NewBatchJob construye el job. tx serializa las escrituras de plantillas con la generación.
// lock puede ser nil (solo exclusión local); now nil usa time.Now.
func NewBatchJob(templates repository.RecurringTemplateRepository, tx GenerationTxRunner, executor TemplateExecutor, lock BatchLock, now Clock, log zerolog.Logger) *BatchJob {
	if now == nil {
		now = time.Now
	}
	return &BatchJob{
		templates: templates,
		tx:        tx,
		executor:  executor,
		lock:      lock,
		log:       log.With().Str("component", "batch_job").Logger(),
		now:       now,
	}
}

// IsRunning indica si hay un lote en curso.
func (b *BatchJob) IsRunning() bool { return b.running.Load() }

// Run ejecuta un lote. Si ya hay uno en curso retorna de inmediato con
// "Task is already running" sin tocar ninguna plantilla. Nunca propaga panics.
func (b *BatchJob) Run(ctx context.Context) (res TaskExecutionResult) {
	start := b.now()
	if !b.running.CompareAndSwap(false, true) {
		b.log.Warn().Msg("lote rechazado: ya hay uno en curso")
		return alreadyRunningResult(start)
	}
	defer b.running.Store(false)

	res = TaskExecutionResult{StartedAt: start, Errors: []string{}, GeneratedInvoices: []*entity.Invoice{}}
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Interface("panic", r).Msg("lote interrumpido por panic")
			res.Errors = append(res.Errors, fmt.Sprintf("lote interrumpido: %v", r))
			res.Success = false
		}
		res.FinishedAt = b.now()
	}()

	if b.lock != nil {
		ok, err := b.lock.TryAcquire(ctx)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("adquirir candado: %v", err))
			return res
		}
		if !ok {
			b.log.Info().Msg("otra instancia está ejecutando el lote")
			return alreadyRunningResult(start)
		}
		defer func() {
			if err := b.lock.Release(context.WithoutCancel(ctx)); err != nil {
				b.log.Error().Err(err).Msg("liberar candado del lote")
			}
		}()
	}

	due, err := b.templates.ListDue(ctx, start)
	if err != nil {
		b.log.Error().Err(err).Msg("listar plantillas debidas")
		res.Errors = append(res.Errors, fmt.Sprintf("listar plantillas: %v", err))
		return res
	}
	b.log.Info().Int("due", len(due)).Msg("lote iniciado")

	for _, tpl := range due {
		if err := ctx.Err(); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("lote cancelado: %v", err))
			break
		}
		out := b.executor.RunWithRetry(ctx, tpl.ID)
		switch out.Status {
		case OutcomeSucceeded:
			res.ProcessedCount++
			res.GeneratedInvoices = append(res.GeneratedInvoices, out.Invoice)
		case OutcomeSkipped:
			res.SkippedCount++
		default:
			res.FailedCount++
			res.Errors = append(res.Errors, fmt.Sprintf("Failed to generate from template %s: %s", templateLabel(tpl), out.Err))
			if out.Permanent {
				b.recordPermanentFailure(ctx, tpl.ID, out.Err)
			}
		}
	}

	res.Success = res.FailedCount == 0 && len(res.Errors) == 0
	b.log.Info().
		Int("processed", res.ProcessedCount).
		Int("failed", res.FailedCount).
		Int("skipped", res.SkippedCount).
		Bool("success", res.Success).
		Msg("lote finalizado")
	return res
}

// AutoPauseCompleted desactiva las plantillas activas cuya end_date ya pasó o que
// alcanzaron max_occurrences. Retorna cuántas se pausaron.
func (b *BatchJob) AutoPauseCompleted(ctx context.Context) (int, error) {
	now := b.now()
	active, err := b.templates.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("listar plantillas activas: %w", err)
	}
	paused := 0
	var errs []error
	for _, candidate := range active {
		if !candidate.Completed(now) {
			continue
		}
		// Se vuelve a comprobar con la fila bloqueada: una edición concurrente puede
		// haber ampliado la recurrencia.
		changed := false
		_, err := mutateTemplate(ctx, b.tx, candidate.ID, func(tpl *entity.RecurringTemplate) (bool, error) {
			if !tpl.Config.IsActive || !tpl.Completed(now) {
				return false, nil
			}
			changed = true
			tpl.Config.IsActive = false
			tpl.UpdatedAt = now
			return true, nil
		})
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("pausar plantilla %s: %w", candidate.ID, err))
			continue
		}
		if !changed {
			continue
		}
		paused++
		b.log.Info().Str("template_id", candidate.ID).Msg("plantilla pausada automáticamente")
	}
	return paused, errors.Join(errs...)
}

// recordPermanentFailure deja el motivo en la plantilla para que un operador la revise.
func (b *BatchJob) recordPermanentFailure(ctx context.Context, templateID, reason string) {
	_, err := mutateTemplate(ctx, b.tx, templateID, func(tpl *entity.RecurringTemplate) (bool, error) {
		tpl.LastError = reason
		tpl.UpdatedAt = b.now()
		return true, nil
	})
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		b.log.Error().Err(err).Str("template_id", templateID).Msg("registrar fallo permanente")
	}
}

func templateLabel(tpl *entity.RecurringTemplate) string {
	if tpl.BaseInvoice.Number != "" {
		return tpl.BaseInvoice.Number
	}
	return tpl.ID
}
