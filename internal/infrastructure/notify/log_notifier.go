package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/jhoicas/invorya-gst/internal/application/recurring"
	"github.com/jhoicas/invorya-gst/internal/domain/entity"
)

var _ recurring.Notifier = (*LogNotifier)(nil)

// LogNotifier solo registra la notificación (sin SMTP configurado).
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier construye el notificador.
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With().Str("component", "notifier").Logger()}
}

func (n *LogNotifier) NotifyGenerated(_ context.Context, inv *entity.Invoice, recipient string) error {
	n.log.Info().
		Str("invoice_id", inv.ID).
		Str("number", inv.Number).
		Str("recipient", recipient).
		Msg("notificación de factura (sin SMTP)")
	return nil
}
