package recurring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/invorya-gst/internal/domain"
	"github.com/jhoicas/invorya-gst/internal/domain/entity"
	domrecurring "github.com/jhoicas/invorya-gst/internal/domain/recurring"
	"github.com/jhoicas/invorya-gst/internal/domain/repository"
)

// DefaultPaymentTermsDays plazo de pago de las facturas generadas.
const DefaultPaymentTermsDays = 30

// GeneratorConfig opciones del generador. Now nil usa time.Now.
type GeneratorConfig struct {
	PaymentTermsDays int
	Now              Clock
}

// Generator crea una factura concreta desde una plantilla debida y avanza su programación.
type Generator struct {
	txRunner     GenerationTxRunner
	notifier     Notifier
	log          zerolog.Logger
	now          Clock
	paymentTerms int
}

var _ InvoiceGenerator = (*Generator)(nil)

// NewGenerator construye el generador. notifier puede ser nil (sin notificaciones).
func NewGenerator(txRunner GenerationTxRunner, notifier Notifier, log zerolog.Logger, cfg GeneratorConfig) *Generator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.PaymentTermsDays <= 0 {
		cfg.PaymentTermsDays = DefaultPaymentTermsDays
	}
	return &Generator{
		txRunner:     txRunner,
		notifier:     notifier,
		log:          log.With().Str("component", "invoice_generator").Logger(),
		now:          cfg.Now,
		paymentTerms: cfg.PaymentTermsDays,
	}
}

// Generate produce una factura desde la plantilla templateID.
//
// Devuelve domain.ErrNotFound si la plantilla no existe o está pausada y domain.ErrNotDue
// si aún no corresponde generar; en ambos casos no hay mutación. La factura, el avance de
// next_generation_date y el historial se guardan en una sola transacción. La notificación
// al cliente ocurre después del commit y su fallo no revierte la generación.
func (g *Generator) Generate(ctx context.Context, templateID string) (*entity.Invoice, error) {
	now := g.now()
	var inv *entity.Invoice

	err := g.txRunner.RunGeneration(ctx, func(
		templates repository.RecurringTemplateRepository,
		invoices repository.InvoiceRepository,
	) error {
		tpl, err := templates.GetByID(ctx, templateID)
		if err != nil {
			return fmt.Errorf("obtener plantilla: %w", err)
		}
		if tpl == nil {
			return domain.ErrNotFound
		}
		if !tpl.Config.IsActive {
			return fmt.Errorf("%w: %w", domain.ErrNotFound, domain.ErrTemplateInactive)
		}
		if !tpl.IsDue(now) {
			return domain.ErrNotDue
		}

		next, err := domrecurring.NextDate(tpl.Config.NextGenerationDate, tpl.Config.Frequency, tpl.Config.Interval)
		if err != nil {
			return fmt.Errorf("calcular próxima fecha: %w", err)
		}
		number, err := SequenceNumber(tpl.BaseInvoice.Number, tpl.NextSequence())
		if err != nil {
			return err
		}

		inv = g.buildInvoice(tpl, number, now)
		if err := invoices.Create(ctx, inv); err != nil {
			if errors.Is(err, domain.ErrDuplicate) {
				// Reintentar produciría el mismo número.
				return fmt.Errorf("%w: número %s ya existe: %w", domain.ErrPermanent, number, err)
			}
			return fmt.Errorf("guardar factura: %w", err)
		}

		tpl.GeneratedInvoiceIDs = append(tpl.GeneratedInvoiceIDs, inv.ID)
		tpl.LastGeneratedAt = &now
		tpl.Config.NextGenerationDate = next
		tpl.LastError = ""
		tpl.UpdatedAt = now
		if err := templates.Save(ctx, tpl); err != nil {
			return fmt.Errorf("actualizar plantilla: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	g.log.Info().
		Str("template_id", templateID).
		Str("invoice_id", inv.ID).
		Str("number", inv.Number).
		Msg("factura recurrente generada")

	g.notify(ctx, inv)
	return inv, nil
}

func (g *Generator) buildInvoice(tpl *entity.RecurringTemplate, number string, now time.Time) *entity.Invoice {
	inv := tpl.BaseInvoice.Clone()
	inv.ID = uuid.New().String()
	inv.Number = number
	inv.Date = now
	inv.DueDate = now.AddDate(0, 0, g.paymentTerms)
	inv.Status = entity.InvoiceStatusDraft
	inv.IsRecurring = false
	inv.RecurringConfig = nil
	inv.ParentInvoiceID = tpl.ID
	inv.CreatedAt = now
	inv.UpdatedAt = now
	return inv
}

func (g *Generator) notify(ctx context.Context, inv *entity.Invoice) {
	if g.notifier == nil || inv.Client.Email == "" {
		return
	}
	if err := g.notifier.NotifyGenerated(ctx, inv, inv.Client.Email); err != nil {
		g.log.Warn().Err(err).
			Str("invoice_id", inv.ID).
			Str("recipient", inv.Client.Email).
			Msg("no se pudo notificar la factura generada")
	}
}

// IsSkip indica si el error de Generate significa "no hay nada que hacer" (no reintentar).
func IsSkip(err error) bool {
	return errors.Is(err, domain.ErrNotDue) || errors.Is(err, domain.ErrNotFound)
}
