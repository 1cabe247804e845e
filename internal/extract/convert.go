package extract

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vendorlens/reconciler/internal/domain"
)

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// invoicePayload is the wire shape the provider returns for invoices.
// Money fields arrive as decimal strings per the schema.
type invoicePayload struct {
	InvoiceNumber string            `json:"invoice_number"`
	VendorName    string            `json:"vendor_name"`
	InvoiceDate   string            `json:"invoice_date"`
	DueDate       string            `json:"due_date,omitempty"`
	PaymentTerms  string            `json:"payment_terms,omitempty"`
	Subtotal      string            `json:"subtotal"`
	TaxAmount     string            `json:"tax_amount"`
	TotalAmount   string            `json:"total_amount"`
	LineItems     []lineItemPayload `json:"line_items"`
	Confidence    float64           `json:"confidence"`
	Rationale     string            `json:"rationale,omitempty"`
}

type lineItemPayload struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	TotalPrice  string `json:"total_price"`
	Unit        string `json:"unit,omitempty"`
}

type contractPayload struct {
	Vendor       VendorData `json:"vendor"`
	PaymentTerms string     `json:"payment_terms"`
	Pricing      []struct {
		Item        string `json:"item"`
		UnitPrice   string `json:"unit_price"`
		Unit        string `json:"unit,omitempty"`
		MinOrderQty string `json:"min_order_qty,omitempty"`
		MaxOrderQty string `json:"max_order_qty,omitempty"`
	} `json:"pricing"`
	Discounts []struct {
		ThresholdAmount string `json:"threshold_amount"`
		DiscountPct     string `json:"discount_pct"`
		Conditions      string `json:"conditions,omitempty"`
	} `json:"discounts,omitempty"`
	TaxRate        string  `json:"tax_rate"`
	EffectiveDate  string  `json:"effective_date"`
	ExpirationDate string  `json:"expiration_date,omitempty"`
	Confidence     float64 `json:"confidence"`
}

// DecodeInvoice converts a sanitized, schema-valid invoice payload into the
// domain record, returning the rationale narrative alongside.
func DecodeInvoice(raw []byte) (domain.ExtractedInvoice, string, error) {
	var p invoicePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.ExtractedInvoice{}, "", fmt.Errorf("unmarshal invoice payload: %w", err)
	}

	inv := domain.ExtractedInvoice{
		InvoiceNumber:        p.InvoiceNumber,
		VendorName:           p.VendorName,
		Date:                 p.InvoiceDate,
		DueDate:              p.DueDate,
		PaymentTerms:         p.PaymentTerms,
		ExtractionConfidence: p.Confidence,
	}

	var err error
	if inv.Subtotal, err = decimal.NewFromString(p.Subtotal); err != nil {
		return inv, "", fmt.Errorf("subtotal %q: %w", p.Subtotal, err)
	}
	if inv.TaxAmount, err = decimal.NewFromString(p.TaxAmount); err != nil {
		return inv, "", fmt.Errorf("tax_amount %q: %w", p.TaxAmount, err)
	}
	if inv.TotalAmount, err = decimal.NewFromString(p.TotalAmount); err != nil {
		return inv, "", fmt.Errorf("total_amount %q: %w", p.TotalAmount, err)
	}

	inv.LineItems = make([]domain.LineItem, 0, len(p.LineItems))
	for i, li := range p.LineItems {
		item := domain.LineItem{Description: li.Description, Unit: li.Unit}
		if item.Quantity, err = decimal.NewFromString(li.Quantity); err != nil {
			return inv, "", fmt.Errorf("line_items[%d].quantity %q: %w", i, li.Quantity, err)
		}
		if item.UnitPrice, err = decimal.NewFromString(li.UnitPrice); err != nil {
			return inv, "", fmt.Errorf("line_items[%d].unit_price %q: %w", i, li.UnitPrice, err)
		}
		if item.TotalPrice, err = decimal.NewFromString(li.TotalPrice); err != nil {
			return inv, "", fmt.Errorf("line_items[%d].total_price %q: %w", i, li.TotalPrice, err)
		}
		inv.LineItems = append(inv.LineItems, item)
	}
	return inv, p.Rationale, nil
}

// DecodeContract converts a sanitized, schema-valid contract payload.
func DecodeContract(raw []byte) (ContractExtraction, error) {
	var p contractPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return ContractExtraction{}, fmt.Errorf("unmarshal contract payload: %w", err)
	}

	out := ContractExtraction{
		Vendor:     p.Vendor,
		Confidence: p.Confidence,
		Raw:        raw,
	}
	out.Terms.PaymentTerms = p.PaymentTerms

	var err error
	if out.Terms.TaxRate, err = decimal.NewFromString(p.TaxRate); err != nil {
		return out, fmt.Errorf("tax_rate %q: %w", p.TaxRate, err)
	}
	if out.Terms.EffectiveDate, err = parseDate(p.EffectiveDate); err != nil {
		return out, fmt.Errorf("effective_date %q: %w", p.EffectiveDate, err)
	}
	if p.ExpirationDate != "" {
		exp, err := parseDate(p.ExpirationDate)
		if err != nil {
			return out, fmt.Errorf("expiration_date %q: %w", p.ExpirationDate, err)
		}
		out.Terms.ExpirationDate = &exp
	}

	for i, pt := range p.Pricing {
		term := domain.PricingTerm{Item: pt.Item, Unit: pt.Unit}
		if term.UnitPrice, err = decimal.NewFromString(pt.UnitPrice); err != nil {
			return out, fmt.Errorf("pricing[%d].unit_price %q: %w", i, pt.UnitPrice, err)
		}
		if pt.MinOrderQty != "" {
			q, err := decimal.NewFromString(pt.MinOrderQty)
			if err != nil {
				return out, fmt.Errorf("pricing[%d].min_order_qty %q: %w", i, pt.MinOrderQty, err)
			}
			term.MinOrderQty = &q
		}
		if pt.MaxOrderQty != "" {
			q, err := decimal.NewFromString(pt.MaxOrderQty)
			if err != nil {
				return out, fmt.Errorf("pricing[%d].max_order_qty %q: %w", i, pt.MaxOrderQty, err)
			}
			term.MaxOrderQty = &q
		}
		out.Terms.Pricing = append(out.Terms.Pricing, term)
	}
	for i, dt := range p.Discounts {
		term := domain.DiscountTerm{Conditions: dt.Conditions}
		if term.ThresholdAmount, err = decimal.NewFromString(dt.ThresholdAmount); err != nil {
			return out, fmt.Errorf("discounts[%d].threshold_amount %q: %w", i, dt.ThresholdAmount, err)
		}
		if term.DiscountPct, err = decimal.NewFromString(dt.DiscountPct); err != nil {
			return out, fmt.Errorf("discounts[%d].discount_pct %q: %w", i, dt.DiscountPct, err)
		}
		out.Terms.Discounts = append(out.Terms.Discounts, term)
	}
	return out, nil
}
