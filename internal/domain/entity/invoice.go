package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de la factura. El motor recurrente solo crea facturas en borrador;
// el resto del ciclo de vida (envío, pago) lo gestiona el módulo de facturación.
const (
	InvoiceStatusDraft     = "draft"
	InvoiceStatusSent      = "sent"
	InvoiceStatusPaid      = "paid"
	InvoiceStatusOverdue   = "overdue"
	InvoiceStatusCancelled = "cancelled"
)

// Tipos de impuesto GST (India).
const (
	TaxTypeCGSTSGST = "CGST_SGST" // operación intraestatal: CGST + SGST a partes iguales
	TaxTypeIGST     = "IGST"      // operación interestatal
	TaxTypeNone     = "NONE"
)

// Invoice representa una factura GST completa. La plantilla recurrente guarda
// una copia como base; cada generación produce una nueva Invoice a partir de ella.
type Invoice struct {
	ID              string           `json:"id"`
	Number          string           `json:"number"`
	Business        BusinessInfo     `json:"business"`
	Client          ClientInfo       `json:"client"`
	Items           []InvoiceItem    `json:"items"`
	Currency        string           `json:"currency"`
	Tax             TaxConfig        `json:"tax"`
	Notes           string           `json:"notes,omitempty"`
	Date            time.Time        `json:"date"`
	DueDate         time.Time        `json:"due_date"`
	Status          string           `json:"status"`
	IsRecurring     bool             `json:"is_recurring"`
	ParentInvoiceID string           `json:"parent_invoice_id,omitempty"` // plantilla de origen (solo auditoría)
	RecurringConfig *RecurringConfig `json:"recurring_config,omitempty"`
	Subtotal        decimal.Decimal  `json:"subtotal"`
	TaxTotal        decimal.Decimal  `json:"tax_total"`
	GrandTotal      decimal.Decimal  `json:"grand_total"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// TaxConfig configuración de impuestos de la factura.
type TaxConfig struct {
	Type          string          `json:"type"`
	Rate          decimal.Decimal `json:"rate"`
	PlaceOfSupply string          `json:"place_of_supply,omitempty"` // código de estado GST
	ReverseCharge bool            `json:"reverse_charge,omitempty"`
}

// Clone devuelve una copia profunda: las líneas y la configuración recurrente no se comparten.
func (inv *Invoice) Clone() *Invoice {
	if inv == nil {
		return nil
	}
	out := *inv
	if inv.Items != nil {
		out.Items = make([]InvoiceItem, len(inv.Items))
		copy(out.Items, inv.Items)
	}
	if inv.RecurringConfig != nil {
		rc := inv.RecurringConfig.Clone()
		out.RecurringConfig = &rc
	}
	return &out
}
