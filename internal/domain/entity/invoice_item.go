package entity

import "github.com/shopspring/decimal"

// InvoiceItem representa una línea de la factura.
type InvoiceItem struct {
	Description string          `json:"description"`
	HSNCode     string          `json:"hsn_code,omitempty"` // código HSN/SAC
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	Amount      decimal.Decimal `json:"amount"`
}
