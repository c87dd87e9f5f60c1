package recurring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/invorya-gst/internal/domain"
	"github.com/jhoicas/invorya-gst/pkg/schedule"
)

// Intervalos de sondeo por defecto (minutos).
const (
	DefaultIntervalProduction  = 60
	DefaultIntervalDevelopment = 30
)

// CronJobConfig configuración del programador (una por proceso).
type CronJobConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule"`
	Timezone string `json:"timezone"`
}

// Validate rechaza expresiones cron y zonas horarias inválidas.
func (c CronJobConfig) Validate() error {
	if !schedule.Validate(c.Schedule) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidSchedule, c.Schedule)
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("%w: %q", domain.ErrInvalidTimezone, c.Timezone)
		}
	}
	return nil
}

// RunnerOptions opciones del runner. Los valores cero usan los valores por defecto.
type RunnerOptions struct {
	IntervalMinutes int           // sondeo si Start recibe 0
	Tolerance       time.Duration // ventana de ShouldRunNow
	Now             Clock
	// Tick permite sustituir el temporizador en tests (recibe el intervalo efectivo).
	Tick func(d time.Duration) (<-chan time.Time, func())
}

// RunnerStatus estado calculado bajo demanda.
type RunnerStatus struct {
	Running             bool                 `json:"running"`
	Config              CronJobConfig        `json:"config"`
	IntervalMinutes     int                  `json:"interval_minutes"`
	LastRunTime         *time.Time           `json:"last_run_time,omitempty"`
	NextExecution       *time.Time           `json:"next_execution,omitempty"`
	ScheduleDescription string               `json:"schedule_description"`
	BatchInProgress     bool                 `json:"batch_in_progress"`
	LastResult          *TaskExecutionResult `json:"last_result,omitempty"`
}

// Runner bucle periódico que evalúa la expresión cron y dispara el lote.
// Estados: detenido / en ejecución. Los errores y panics de un tick se registran
// y no detienen el bucle.
type Runner struct {
	batch  Batcher
	log    zerolog.Logger
	now    Clock
	tick   func(d time.Duration) (<-chan time.Time, func())
	parent context.Context

	ctrl sync.Mutex // serializa Start/Stop/UpdateConfig

	mu              sync.Mutex
	cfg             CronJobConfig
	evaluator       *schedule.Evaluator
	tolerance       time.Duration
	defaultInterval int
	interval        int
	cancel          context.CancelFunc
	done            chan struct{}
	lastRun         time.Time
	lastResult      *TaskExecutionResult
	inFlight        int
}

// NewRunner construye el runner en estado detenido. parent acota la vida del bucle.
func NewRunner(parent context.Context, batch Batcher, cfg CronJobConfig, opts RunnerOptions, log zerolog.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Tick == nil {
		opts.Tick = func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		}
	}
	if opts.IntervalMinutes <= 0 {
		opts.IntervalMinutes = DefaultIntervalProduction
	}
	ev, err := schedule.NewEvaluator(cfg.Timezone, opts.Tolerance)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidTimezone, err)
	}
	return &Runner{
		batch:           batch,
		log:             log.With().Str("component", "recurring_runner").Logger(),
		now:             opts.Now,
		tick:            opts.Tick,
		parent:          parent,
		cfg:             cfg,
		evaluator:       ev,
		tolerance:       ev.Tolerance(),
		defaultInterval: opts.IntervalMinutes,
	}, nil
}

// Start ejecuta una comprobación inmediata y arranca el sondeo cada intervalMinutes
// (0 = intervalo por defecto). No hace nada si ya está en ejecución.
func (r *Runner) Start(intervalMinutes int) error {
	r.ctrl.Lock()
	defer r.ctrl.Unlock()
	return r.start(intervalMinutes)
}

func (r *Runner) start(intervalMinutes int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return nil
	}
	if !r.cfg.Enabled {
		return domain.ErrSchedulerOff
	}
	if intervalMinutes <= 0 {
		intervalMinutes = r.defaultInterval
	}
	ctx, cancel := context.WithCancel(r.parent)
	r.cancel = cancel
	r.interval = intervalMinutes
	r.done = make(chan struct{})
	go r.loop(ctx, time.Duration(intervalMinutes)*time.Minute, r.done)

	r.log.Info().
		Int("interval_minutes", intervalMinutes).
		Str("schedule", r.cfg.Schedule).
		Str("timezone", r.cfg.Timezone).
		Msg("programador de facturas recurrentes iniciado")
	return nil
}

// Stop cancela el temporizador y espera a que el bucle termine. Idempotente.
func (r *Runner) Stop() {
	r.ctrl.Lock()
	defer r.ctrl.Unlock()
	r.stop()
}

func (r *Runner) stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	r.log.Info().Msg("programador de facturas recurrentes detenido")
}

// UpdateConfig valida y reemplaza la configuración. Si el runner estaba en ejecución
// se detiene y vuelve a arrancar con la nueva configuración (si sigue habilitado).
func (r *Runner) UpdateConfig(cfg CronJobConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ev, err := schedule.NewEvaluator(cfg.Timezone, r.tolerance)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidTimezone, err)
	}

	r.ctrl.Lock()
	defer r.ctrl.Unlock()

	r.mu.Lock()
	wasRunning := r.cancel != nil
	interval := r.interval
	r.mu.Unlock()

	if wasRunning {
		r.stop()
	}
	r.mu.Lock()
	r.cfg = cfg
	r.evaluator = ev
	r.mu.Unlock()
	r.log.Info().Bool("enabled", cfg.Enabled).Str("schedule", cfg.Schedule).Str("timezone", cfg.Timezone).
		Msg("configuración del programador actualizada")

	if wasRunning && cfg.Enabled {
		return r.start(interval)
	}
	return nil
}

// Config configuración vigente.
func (r *Runner) Config() CronJobConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// Running indica si el bucle está activo.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

// Status estado actual; next_execution solo se informa para expresiones diarias.
func (r *Runner) Status() RunnerStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := RunnerStatus{
		Running:             r.cancel != nil,
		Config:              r.cfg,
		IntervalMinutes:     r.interval,
		ScheduleDescription: schedule.Describe(r.cfg.Schedule),
		BatchInProgress:     r.inFlight > 0,
	}
	if st.IntervalMinutes == 0 {
		st.IntervalMinutes = r.defaultInterval
	}
	from := r.now()
	if !r.lastRun.IsZero() {
		last := r.lastRun
		st.LastRunTime = &last
		from = last
	}
	if next, ok := r.evaluator.NextExecutionTime(r.cfg.Schedule, from); ok {
		st.NextExecution = &next
	}
	if r.lastResult != nil {
		res := *r.lastResult
		st.LastResult = &res
	}
	return st
}

// ForceCheck ejecuta el lote de inmediato, esté o no en marcha el temporizador.
func (r *Runner) ForceCheck(ctx context.Context) TaskExecutionResult {
	return r.runBatch(ctx, "manual")
}

func (r *Runner) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	r.safeTick(ctx, true)

	ticks, stopTicker := r.tick(interval)
	defer stopTicker()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			r.safeTick(ctx, false)
		}
	}
}

// safeTick evalúa si corresponde ejecutar y recupera cualquier panic para no
// detener el bucle.
func (r *Runner) safeTick(ctx context.Context, immediate bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Interface("panic", rec).Msg("error en tick del programador")
		}
	}()
	if ctx.Err() != nil {
		return
	}
	if !immediate && !r.shouldRun() {
		return
	}
	r.runBatch(ctx, "timer")
}

// shouldRun: expresiones no resolubles se ejecutan en cada tick (sondeo); las diarias
// cuando el tick cae en la ventana de tolerancia o cuando la hora ya quedó atrás.
func (r *Runner) shouldRun() bool {
	r.mu.Lock()
	cfg, ev, lastRun := r.cfg, r.evaluator, r.lastRun
	r.mu.Unlock()
	if !cfg.Enabled {
		return false
	}
	now := r.now()
	if _, ok := ev.NextExecutionTime(cfg.Schedule, now); !ok {
		return true
	}
	return ev.ShouldRunNow(cfg.Schedule, lastRun, now) || ev.Missed(cfg.Schedule, lastRun, now)
}

func (r *Runner) runBatch(ctx context.Context, trigger string) (res TaskExecutionResult) {
	r.mu.Lock()
	r.inFlight++
	r.mu.Unlock()

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Interface("panic", rec).Str("trigger", trigger).Msg("lote interrumpido")
			res = TaskExecutionResult{Success: false, Errors: []string{fmt.Sprintf("lote interrumpido: %v", rec)}}
		}
		if !res.AlreadyRunning() {
			now := r.now()
			r.mu.Lock()
			r.lastRun = now
			stored := res
			r.lastResult = &stored
			r.mu.Unlock()
		}
		r.mu.Lock()
		r.inFlight--
		r.mu.Unlock()
	}()

	res = r.batch.Run(ctx)
	if res.AlreadyRunning() {
		return res
	}
	paused, err := r.batch.AutoPauseCompleted(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("autopausa de plantillas")
	}
	r.log.Info().
		Str("trigger", trigger).
		Int("processed", res.ProcessedCount).
		Int("failed", res.FailedCount).
		Int("auto_paused", paused).
		Msg("comprobación de facturas recurrentes completada")
	return res
}
