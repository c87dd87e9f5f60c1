package repository

import (
	"context"

	"github.com/jhoicas/invorya-gst/internal/domain/entity"
)

// InvoiceRepository define el puerto de persistencia de facturas que usa el motor recurrente.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *entity.Invoice) error
	// GetByID devuelve nil, nil si no existe.
	GetByID(ctx context.Context, id string) (*entity.Invoice, error)
	// ListByParent lista las facturas generadas desde una plantilla, en orden de generación.
	ListByParent(ctx context.Context, templateID string) ([]*entity.Invoice, error)
}
