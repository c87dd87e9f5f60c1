package repository

import (
	"context"
	"time"

	"github.com/jhoicas/invorya-gst/internal/domain/entity"
)

// RecurringTemplateRepository define el puerto de persistencia de plantillas recurrentes.
// Los listados respetan el orden de inserción (created_at, id).
type RecurringTemplateRepository interface {
	Create(ctx context.Context, template *entity.RecurringTemplate) error
	// GetByID devuelve nil, nil si no existe.
	GetByID(ctx context.Context, id string) (*entity.RecurringTemplate, error)
	// Save reemplaza el estado completo de la plantilla.
	Save(ctx context.Context, template *entity.RecurringTemplate) error
	// Delete devuelve false si la plantilla no existía.
	Delete(ctx context.Context, id string) (bool, error)
	ListActive(ctx context.Context) ([]*entity.RecurringTemplate, error)
	// ListDue plantillas activas con next_generation_date <= now.
	ListDue(ctx context.Context, now time.Time) ([]*entity.RecurringTemplate, error)
	List(ctx context.Context, limit, offset int) ([]*entity.RecurringTemplate, error)
}
