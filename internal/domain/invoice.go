package domain

import (
	"github.com/shopspring/decimal"
)

// LineItem is a single billed row on an extracted invoice.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	Unit        string          `json:"unit"`
}

// ExtractedInvoice is the structured output of document extraction.
type ExtractedInvoice struct {
	InvoiceNumber        string          `json:"invoice_number"`
	VendorName           string          `json:"vendor_name"`
	Date                 string          `json:"date"` // YYYY-MM-DD
	DueDate              string          `json:"due_date,omitempty"`
	PaymentTerms         string          `json:"payment_terms,omitempty"`
	Subtotal             decimal.Decimal `json:"subtotal"`
	TaxAmount            decimal.Decimal `json:"tax_amount"`
	TotalAmount          decimal.Decimal `json:"total_amount"`
	LineItems            []LineItem      `json:"line_items"`
	ExtractionConfidence float64         `json:"extraction_confidence"` // 0..1
}

// ArithmeticDelta returns total - (subtotal + tax). A non-zero delta beyond
// rounding tolerance is surfaced as a discrepancy, never silently corrected.
func (inv *ExtractedInvoice) ArithmeticDelta() decimal.Decimal {
	return inv.TotalAmount.Sub(inv.Subtotal.Add(inv.TaxAmount))
}
