package notify

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/jhoicas/invorya-gst/internal/application/recurring"
	"github.com/jhoicas/invorya-gst/internal/domain/entity"
	"github.com/jhoicas/invorya-gst/pkg/config"
)

var _ recurring.Notifier = (*SMTPNotifier)(nil)

// dialer permite sustituir el envío real en tests.
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPNotifier envía un correo al cliente por cada factura generada.
type SMTPNotifier struct {
	d    dialer
	from string
}

// NewSMTPNotifier construye el notificador con el servidor de cfg.
func NewSMTPNotifier(cfg config.SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{
		d:    gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from: cfg.From,
	}
}

// NotifyGenerated envía el aviso. gomail no acepta contexto: solo se comprueba antes de enviar.
func (n *SMTPNotifier) NotifyGenerated(ctx context.Context, inv *entity.Invoice, recipient string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := buildMessage(n.from, recipient, inv)
	if err := n.d.DialAndSend(m); err != nil {
		return fmt.Errorf("enviar correo a %s: %w", recipient, err)
	}
	return nil
}

func buildMessage(from, to string, inv *entity.Invoice) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", fmt.Sprintf("Invoice %s from %s", inv.Number, inv.Business.Name))
	m.SetBody("text/plain", messageBody(inv))
	return m
}

func messageBody(inv *entity.Invoice) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", inv.Client.Name)
	fmt.Fprintf(&b, "A new invoice has been issued by %s.\n\n", inv.Business.Name)
	fmt.Fprintf(&b, "Invoice number: %s\n", inv.Number)
	fmt.Fprintf(&b, "Invoice date:   %s\n", inv.Date.Format("2006-01-02"))
	fmt.Fprintf(&b, "Due date:       %s\n", inv.DueDate.Format("2006-01-02"))
	fmt.Fprintf(&b, "Amount due:     %s %s\n", inv.Currency, inv.GrandTotal.StringFixed(2))
	if inv.Business.GSTIN != "" {
		fmt.Fprintf(&b, "Supplier GSTIN: %s\n", inv.Business.GSTIN)
	}
	return b.String()
}
