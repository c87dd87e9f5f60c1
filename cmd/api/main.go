package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"golang.org/x/sync/errgroup"

	_ "github.com/jhoicas/invorya-gst/docs"
	"github.com/jhoicas/invorya-gst/internal/application/recurring"
	"github.com/jhoicas/invorya-gst/internal/domain/repository"
	"github.com/jhoicas/invorya-gst/internal/infrastructure/memory"
	"github.com/jhoicas/invorya-gst/internal/infrastructure/notify"
	"github.com/jhoicas/invorya-gst/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/invorya-gst/internal/interfaces/http"
	"github.com/jhoicas/invorya-gst/pkg/config"
	"github.com/jhoicas/invorya-gst/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
		App:   cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("store", cfg.DB.Driver).
		Msg("iniciando aplicación")

	// Cada componente añade su propio campo "component".
	zl := log.Zerolog()
	apiLog := log.Component("api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		templateRepo repository.RecurringTemplateRepository
		invoiceRepo  repository.InvoiceRepository
		txRunner     recurring.GenerationTxRunner
		batchLock    recurring.BatchLock
	)
	switch cfg.DB.Driver {
	case config.StoreDriverMemory:
		store := memory.NewStore()
		templateRepo, invoiceRepo, txRunner = store.Templates(), store.Invoices(), store
	default:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		templateRepo = postgres.NewRecurringTemplateRepository(pool)
		invoiceRepo = postgres.NewInvoiceRepository(pool)
		txRunner = postgres.NewTxRunner(pool)
		if cfg.Scheduler.DistributedLock {
			batchLock = postgres.NewAdvisoryLock(pool, postgres.BatchLockKey)
		}
	}

	// Notificaciones: SMTP si hay servidor configurado; si no, solo log.
	var notifier recurring.Notifier = notify.NewLogNotifier(zl)
	if cfg.SMTP.Enabled() {
		notifier = notify.NewSMTPNotifier(cfg.SMTP)
	}

	generator := recurring.NewGenerator(txRunner, notifier, zl, recurring.GeneratorConfig{
		PaymentTermsDays: cfg.Invoice.PaymentTermsDays,
	})
	executor := recurring.NewExecutor(generator, recurring.RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   time.Duration(cfg.Retry.BaseDelayMS) * time.Millisecond,
		Multiplier:  cfg.Retry.Multiplier,
		Jitter:      cfg.Retry.Jitter,
	}, nil, zl)
	batch := recurring.NewBatchJob(templateRepo, txRunner, executor, batchLock, nil, zl)

	runner, err := recurring.NewRunner(ctx, batch, recurring.CronJobConfig{
		Enabled:  cfg.Scheduler.Enabled,
		Schedule: cfg.Scheduler.Cron,
		Timezone: cfg.Scheduler.Timezone,
	}, recurring.RunnerOptions{
		IntervalMinutes: cfg.Scheduler.IntervalMinutes,
		Tolerance:       time.Duration(cfg.Scheduler.ToleranceMinutes) * time.Minute,
	}, zl)
	if err != nil {
		log.Fatal().Err(err).Msg("configuración del programador")
	}
	templateUC := recurring.NewTemplateUseCase(templateRepo, invoiceRepo, txRunner, generator, nil)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Invorya GST API",
	}))

	httpRouter.Router(app, httpRouter.RouterDeps{
		Scheduler:  runner,
		TemplateUC: templateUC,
		JWTSecret:  cfg.JWT.Secret,
		AppName:    cfg.App.Name,
	})

	if cfg.Scheduler.Enabled && cfg.Scheduler.AutoStart {
		if err := runner.Start(cfg.Scheduler.IntervalMinutes); err != nil {
			apiLog.Error().Err(err).Msg("arranque del programador")
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Listen(cfg.HTTP.Addr())
	})
	g.Go(func() error {
		<-gctx.Done()
		apiLog.Info().Msg("señal de apagado recibida, cerrando servidor...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := app.ShutdownWithContext(shutdownCtx)
		// Stop espera a que termine el tick en curso.
		runner.Stop()
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		apiLog.Error().Err(err).Msg("servidor HTTP finalizado")
		os.Exit(1)
	}
	apiLog.Info().Msg("aplicación detenida")
}
