package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/invorya-gst/internal/domain/entity"
)

// InvoiceRequest factura base de una plantilla (POST/PUT /api/recurring-templates).
type InvoiceRequest struct {
	Number   string               `json:"number"`
	Business entity.BusinessInfo  `json:"business"`
	Client   entity.ClientInfo    `json:"client"`
	Items    []entity.InvoiceItem `json:"items"`
	Currency string               `json:"currency"`
	Tax      entity.TaxConfig     `json:"tax"`
	Notes    string               `json:"notes,omitempty"`
	Subtotal decimal.Decimal      `json:"subtotal"`
	TaxTotal decimal.Decimal      `json:"tax_total"`
	Total    decimal.Decimal      `json:"grand_total"`
}

// CreateTemplateRequest body para crear una plantilla recurrente.
// Fechas en formato YYYY-MM-DD o RFC3339.
type CreateTemplateRequest struct {
	BaseInvoice    InvoiceRequest `json:"base_invoice"`
	Frequency      string         `json:"frequency"`
	Interval       int            `json:"interval"`
	StartDate      string         `json:"start_date"`
	EndDate        string         `json:"end_date,omitempty"`
	MaxOccurrences *int           `json:"max_occurrences,omitempty"`
	IsActive       *bool          `json:"is_active,omitempty"` // por defecto true
}

// UpdateTemplateRequest actualización parcial: los campos nil no cambian.
type UpdateTemplateRequest struct {
	BaseInvoice        *InvoiceRequest `json:"base_invoice,omitempty"`
	Frequency          *string         `json:"frequency,omitempty"`
	Interval           *int            `json:"interval,omitempty"`
	EndDate            *string         `json:"end_date,omitempty"`        // "" elimina la fecha fin
	MaxOccurrences     *int            `json:"max_occurrences,omitempty"` // 0 elimina el límite
	NextGenerationDate *string         `json:"next_generation_date,omitempty"`
}

// TemplateResponse plantilla en respuestas.
type TemplateResponse struct {
	ID                  string          `json:"id"`
	BaseInvoice         *entity.Invoice `json:"base_invoice"`
	Frequency           string          `json:"frequency"`
	Interval            int             `json:"interval"`
	StartDate           time.Time       `json:"start_date"`
	EndDate             *time.Time      `json:"end_date,omitempty"`
	MaxOccurrences      *int            `json:"max_occurrences,omitempty"`
	NextGenerationDate  time.Time       `json:"next_generation_date"`
	IsActive            bool            `json:"is_active"`
	GeneratedInvoiceIDs []string        `json:"generated_invoice_ids"`
	GeneratedCount      int             `json:"generated_count"`
	LastGeneratedAt     *time.Time      `json:"last_generated_at,omitempty"`
	LastError           string          `json:"last_error,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// UpdateSchedulerConfigRequest body para PUT /api/scheduler/config.
type UpdateSchedulerConfigRequest struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule"`
	Timezone string `json:"timezone"`
}

// StartSchedulerRequest body opcional para POST /api/scheduler/start.
type StartSchedulerRequest struct {
	IntervalMinutes int `json:"interval_minutes,omitempty"`
}
