package recurring

import (
	"context"

	"github.com/jhoicas/invorya-gst/internal/domain"
	"github.com/jhoicas/invorya-gst/internal/domain/entity"
	"github.com/jhoicas/invorya-gst/internal/domain/repository"
)

// mutateTemplate lee la plantilla id bloqueada, aplica fn y la guarda en la misma
// transacción. Si fn devuelve false no se guarda nada. Devuelve la plantilla resultante.
func mutateTemplate(ctx context.Context, tx GenerationTxRunner, id string, fn func(*entity.RecurringTemplate) (bool, error)) (*entity.RecurringTemplate, error) {
	var out *entity.RecurringTemplate
	err := tx.RunGeneration(ctx, func(templates repository.RecurringTemplateRepository, _ repository.InvoiceRepository) error {
		tpl, err := templates.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if tpl == nil {
			return domain.ErrNotFound
		}
		changed, err := fn(tpl)
		if err != nil {
			return err
		}
		out = tpl
		if !changed {
			return nil
		}
		return templates.Save(ctx, tpl)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
