package recurring

import (
	"context"
	"time"

	"github.com/jhoicas/invorya-gst/internal/domain/entity"
	"github.com/jhoicas/invorya-gst/internal/domain/repository"
)

// GenerationTxRunner ejecuta fn dentro de una transacción con los repositorios de
// plantillas y facturas atados a ella. Si fn retorna error se hace rollback.
// Las plantillas leídas dentro de fn quedan bloqueadas hasta el final: toda escritura
// de una plantilla existente (generación, pausa, edición) debe pasar por aquí.
type GenerationTxRunner interface {
	RunGeneration(ctx context.Context, fn func(
		templates repository.RecurringTemplateRepository,
		invoices repository.InvoiceRepository,
	) error) error
}

// Notifier avisa al cliente de una factura generada (best-effort).
type Notifier interface {
	NotifyGenerated(ctx context.Context, invoice *entity.Invoice, recipientEmail string) error
}

// BatchLock candado entre instancias del proceso (opcional). TryAcquire no bloquea:
// devuelve false si otra instancia ya tiene el candado.
type BatchLock interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// InvoiceGenerator produce una factura desde una plantilla.
type InvoiceGenerator interface {
	Generate(ctx context.Context, templateID string) (*entity.Invoice, error)
}

// TemplateExecutor ejecuta la generación de una plantilla con reintentos.
type TemplateExecutor interface {
	RunWithRetry(ctx context.Context, templateID string) GenerationOutcome
}

// Batcher ejecuta un lote completo y la autopausa de plantillas terminadas.
type Batcher interface {
	Run(ctx context.Context) TaskExecutionResult
	AutoPauseCompleted(ctx context.Context) (int, error)
}

// Clock devuelve la hora actual; se inyecta en tests.
type Clock func() time.Time
