package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/jhoicas/invorya-gst/internal/application/dto"
	"github.com/jhoicas/invorya-gst/internal/domain/entity"
)

// Columnas esperadas en la cabecera del CSV (el orden puede variar).
var requiredColumns = []string{
	"number", "business_name", "client_name", "description",
	"quantity", "unit_price", "frequency", "interval", "start_date",
}

var hundred = decimal.NewFromInt(100)

// parseTemplates lee el CSV y agrupa las filas por número de factura: cada grupo es
// una plantilla y cada fila una línea. latin1 decodifica exportaciones ISO-8859-1.
func parseTemplates(r io.Reader, latin1 bool) ([]dto.CreateTemplateRequest, error) {
	if latin1 {
		r = transform.NewReader(r, charmap.ISO8859_1.NewDecoder())
	}
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("leer cabecera: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("falta la columna %q", name)
		}
	}
	get := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []dto.CreateTemplateRequest
	index := map[string]int{}
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("línea %d: %w", line, err)
		}
		item, err := parseItem(rec, get)
		if err != nil {
			return nil, fmt.Errorf("línea %d: %w", line, err)
		}

		number := get(rec, "number")
		if i, ok := index[number]; ok {
			out[i].BaseInvoice.Items = append(out[i].BaseInvoice.Items, item)
			continue
		}
		req, err := parseHeader(rec, get)
		if err != nil {
			return nil, fmt.Errorf("línea %d: %w", line, err)
		}
		req.BaseInvoice.Items = []entity.InvoiceItem{item}
		index[number] = len(out)
		out = append(out, req)
	}
	for i := range out {
		computeTotals(&out[i].BaseInvoice)
	}
	return out, nil
}

func parseHeader(rec []string, get func([]string, string) string) (dto.CreateTemplateRequest, error) {
	interval, err := strconv.Atoi(get(rec, "interval"))
	if err != nil {
		return dto.CreateTemplateRequest{}, fmt.Errorf("interval: %w", err)
	}
	taxRate, err := decimalOrZero(get(rec, "tax_rate"))
	if err != nil {
		return dto.CreateTemplateRequest{}, fmt.Errorf("tax_rate: %w", err)
	}
	taxType := strings.ToUpper(get(rec, "tax_type"))
	if taxType == "" {
		taxType = entity.TaxTypeIGST
		if get(rec, "business_state") != "" && get(rec, "business_state") == get(rec, "client_state") {
			taxType = entity.TaxTypeCGSTSGST
		}
	}
	req := dto.CreateTemplateRequest{
		BaseInvoice: dto.InvoiceRequest{
			Number: get(rec, "number"),
			Business: entity.BusinessInfo{
				Name:  get(rec, "business_name"),
				GSTIN: get(rec, "business_gstin"),
				State: get(rec, "business_state"),
			},
			Client: entity.ClientInfo{
				Name:  get(rec, "client_name"),
				GSTIN: get(rec, "client_gstin"),
				Email: get(rec, "client_email"),
				State: get(rec, "client_state"),
			},
			Currency: get(rec, "currency"),
			Tax:      entity.TaxConfig{Type: taxType, Rate: taxRate, PlaceOfSupply: get(rec, "client_state")},
		},
		Frequency: get(rec, "frequency"),
		Interval:  interval,
		StartDate: get(rec, "start_date"),
		EndDate:   get(rec, "end_date"),
	}
	if v := get(rec, "max_occurrences"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("max_occurrences: %w", err)
		}
		req.MaxOccurrences = &n
	}
	return req, nil
}

func parseItem(rec []string, get func([]string, string) string) (entity.InvoiceItem, error) {
	qty, err := decimal.NewFromString(get(rec, "quantity"))
	if err != nil {
		return entity.InvoiceItem{}, fmt.Errorf("quantity: %w", err)
	}
	price, err := decimal.NewFromString(get(rec, "unit_price"))
	if err != nil {
		return entity.InvoiceItem{}, fmt.Errorf("unit_price: %w", err)
	}
	rate, err := decimalOrZero(get(rec, "tax_rate"))
	if err != nil {
		return entity.InvoiceItem{}, fmt.Errorf("tax_rate: %w", err)
	}
	return entity.InvoiceItem{
		Description: get(rec, "description"),
		HSNCode:     get(rec, "hsn_code"),
		Quantity:    qty,
		UnitPrice:   price,
		TaxRate:     rate,
		Amount:      qty.Mul(price).Round(2),
	}, nil
}

func computeTotals(inv *dto.InvoiceRequest) {
	subtotal, tax := decimal.Zero, decimal.Zero
	for _, it := range inv.Items {
		subtotal = subtotal.Add(it.Amount)
		tax = tax.Add(it.Amount.Mul(it.TaxRate).Div(hundred))
	}
	if inv.Tax.Type == entity.TaxTypeNone {
		tax = decimal.Zero
	}
	inv.Subtotal = subtotal.Round(2)
	inv.TaxTotal = tax.Round(2)
	inv.Total = inv.Subtotal.Add(inv.TaxTotal)
}

func decimalOrZero(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
