package entity

import (
	"fmt"
	"time"

	"github.com/jhoicas/invorya-gst/internal/domain"
)

// Frequency periodicidad de una plantilla recurrente.
type Frequency string

const (
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

// Valid indica si la frecuencia es una de las soportadas.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
		return true
	}
	return false
}

// RecurringConfig configuración de recurrencia y estado de programación de la plantilla.
type RecurringConfig struct {
	Frequency          Frequency  `json:"frequency"`
	Interval           int        `json:"interval"`
	StartDate          time.Time  `json:"start_date"`
	EndDate            *time.Time `json:"end_date,omitempty"`
	MaxOccurrences     *int       `json:"max_occurrences,omitempty"`
	NextGenerationDate time.Time  `json:"next_generation_date"`
	IsActive           bool       `json:"is_active"`
}

// Clone copia la configuración sin compartir los punteros opcionales.
func (c RecurringConfig) Clone() RecurringConfig {
	out := c
	if c.EndDate != nil {
		end := *c.EndDate
		out.EndDate = &end
	}
	if c.MaxOccurrences != nil {
		max := *c.MaxOccurrences
		out.MaxOccurrences = &max
	}
	return out
}

// Validate comprueba los invariantes de la configuración.
func (c RecurringConfig) Validate() error {
	if !c.Frequency.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidFrequency, c.Frequency)
	}
	if c.Interval < 1 {
		return domain.ErrInvalidInterval
	}
	if c.StartDate.IsZero() {
		return fmt.Errorf("%w: start_date requerido", domain.ErrInvalidInput)
	}
	if c.EndDate != nil && !c.EndDate.After(c.StartDate) {
		return fmt.Errorf("%w: end_date debe ser posterior a start_date", domain.ErrInvalidInput)
	}
	if c.MaxOccurrences != nil && *c.MaxOccurrences < 1 {
		return fmt.Errorf("%w: max_occurrences debe ser positivo", domain.ErrInvalidInput)
	}
	if c.NextGenerationDate.Before(c.StartDate) {
		return fmt.Errorf("%w: next_generation_date anterior a start_date", domain.ErrInvalidInput)
	}
	return nil
}

// RecurringTemplate plantilla de factura recurrente con su historial de generación.
// Es la única dueña de GeneratedInvoiceIDs (orden de inserción = orden de generación).
type RecurringTemplate struct {
	ID                  string
	BaseInvoice         Invoice
	Config              RecurringConfig
	GeneratedInvoiceIDs []string
	LastGeneratedAt     *time.Time
	LastError           string // último fallo permanente; se limpia al generar con éxito
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// OccurrencesExhausted indica si ya se alcanzó MaxOccurrences.
func (t *RecurringTemplate) OccurrencesExhausted() bool {
	return t.Config.MaxOccurrences != nil && len(t.GeneratedInvoiceIDs) >= *t.Config.MaxOccurrences
}

// Ended indica si EndDate ya pasó respecto a now.
func (t *RecurringTemplate) Ended(now time.Time) bool {
	return t.Config.EndDate != nil && now.After(*t.Config.EndDate)
}

// IsDue: activa, fecha alcanzada, dentro de EndDate y sin agotar ocurrencias.
func (t *RecurringTemplate) IsDue(now time.Time) bool {
	if !t.Config.IsActive {
		return false
	}
	if now.Before(t.Config.NextGenerationDate) {
		return false
	}
	return !t.Ended(now) && !t.OccurrencesExhausted()
}

// Completed indica si la plantilla debe pausarse automáticamente.
func (t *RecurringTemplate) Completed(now time.Time) bool {
	return t.Ended(now) || t.OccurrencesExhausted()
}

// NextSequence índice (1-based) de la próxima factura generada.
func (t *RecurringTemplate) NextSequence() int {
	return len(t.GeneratedInvoiceIDs) + 1
}

// Clone copia profunda de la plantilla.
func (t *RecurringTemplate) Clone() *RecurringTemplate {
	if t == nil {
		return nil
	}
	out := *t
	out.BaseInvoice = *t.BaseInvoice.Clone()
	out.Config = t.Config.Clone()
	out.GeneratedInvoiceIDs = append([]string(nil), t.GeneratedInvoiceIDs...)
	if t.LastGeneratedAt != nil {
		last := *t.LastGeneratedAt
		out.LastGeneratedAt = &last
	}
	return &out
}
