package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vendorlens/reconciler/internal/domain"
)

// MockConfidence is the fixed confidence reported by the sample analyzer.
const MockConfidence = 0.95

// MockAnalyzer returns fixed, realistic samples so the rest of the pipeline is
// testable without the external provider and without network variance. Output
// is a pure function of the request filename.
type MockAnalyzer struct {
	log *slog.Logger
}

func NewMockAnalyzer(log *slog.Logger) *MockAnalyzer {
	if log == nil {
		log = slog.Default()
	}
	return &MockAnalyzer{log: log}
}

var _ Analyzer = (*MockAnalyzer)(nil)

func (m *MockAnalyzer) AnalyzeInvoice(_ context.Context, req Request) (InvoiceExtraction, error) {
	seed := filenameSeed(req.Filename)
	inv := domain.ExtractedInvoice{
		InvoiceNumber:        fmt.Sprintf("INV-%06d", seed%1000000),
		VendorName:           "Cascade Supply Co.",
		Date:                 "2026-03-15",
		DueDate:              "2026-04-14",
		PaymentTerms:         "Net 30",
		ExtractionConfidence: MockConfidence,
	}

	if req.Terms != nil && len(req.Terms.Pricing) > 0 {
		// Build lines from the governing terms so the comparator has matched
		// items to work with; the first line is marked up to exercise the
		// price check deterministically.
		markup := decimal.NewFromFloat(3.50)
		for i, p := range req.Terms.Pricing {
			qty := decimal.NewFromInt(int64(5 + i*3))
			unitPrice := p.UnitPrice
			if i == 0 {
				unitPrice = unitPrice.Add(markup)
			}
			inv.LineItems = append(inv.LineItems, domain.LineItem{
				Description: p.Item,
				Quantity:    qty,
				UnitPrice:   unitPrice,
				TotalPrice:  unitPrice.Mul(qty),
				Unit:        p.Unit,
			})
		}
		inv.PaymentTerms = req.Terms.PaymentTerms
		inv.Subtotal = decimal.Zero
		for _, li := range inv.LineItems {
			inv.Subtotal = inv.Subtotal.Add(li.TotalPrice)
		}
		inv.TaxAmount = inv.Subtotal.Mul(req.Terms.TaxRate).Round(2)
	} else {
		inv.LineItems = []domain.LineItem{
			{Description: "Copy paper, letter", Quantity: decimal.NewFromInt(25), UnitPrice: decimal.RequireFromString("42.00"), TotalPrice: decimal.RequireFromString("1050.00"), Unit: "case"},
			{Description: "Toner cartridge, black", Quantity: decimal.NewFromInt(10), UnitPrice: decimal.RequireFromString("89.50"), TotalPrice: decimal.RequireFromString("895.00"), Unit: "each"},
			{Description: "Hanging folders", Quantity: decimal.NewFromInt(40), UnitPrice: decimal.RequireFromString("17.00"), TotalPrice: decimal.RequireFromString("680.00"), Unit: "box"},
		}
		inv.Subtotal = decimal.RequireFromString("2625.00")
		inv.TaxAmount = decimal.RequireFromString("223.13")
	}
	inv.TotalAmount = inv.Subtotal.Add(inv.TaxAmount)

	raw, _ := json.Marshal(inv)
	m.log.Debug("extract.mock.invoice", "filename", req.Filename, "invoice_number", inv.InvoiceNumber)
	return InvoiceExtraction{
		Invoice:   inv,
		Rationale: "",
		Model:     "mock",
		Raw:       raw,
	}, nil
}

func (m *MockAnalyzer) AnalyzeContract(_ context.Context, req Request) (ContractExtraction, error) {
	minQty := decimal.NewFromInt(10)
	maxQty := decimal.NewFromInt(500)
	effective := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	expiration := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)

	out := ContractExtraction{
		Vendor: VendorData{
			Name:         "Cascade Supply Co.",
			Address:      "4100 Industry Dr, Tacoma, WA 98424",
			ContactEmail: "billing@cascadesupply.example",
		},
		Terms: domain.ContractTermSet{
			PaymentTerms: "Net 30",
			Pricing: []domain.PricingTerm{
				{Item: "Copy paper, letter", UnitPrice: decimal.RequireFromString("42.00"), Unit: "case", MinOrderQty: &minQty, MaxOrderQty: &maxQty},
				{Item: "Toner cartridge, black", UnitPrice: decimal.RequireFromString("89.50"), Unit: "each"},
				{Item: "Hanging folders", UnitPrice: decimal.RequireFromString("17.00"), Unit: "box"},
			},
			Discounts: []domain.DiscountTerm{
				{ThresholdAmount: decimal.RequireFromString("5000.00"), DiscountPct: decimal.RequireFromString("5"), Conditions: "orders over $5,000"},
			},
			TaxRate:        decimal.RequireFromString("0.085"),
			EffectiveDate:  effective,
			ExpirationDate: &expiration,
		},
		Confidence: MockConfidence,
		Model:      "mock",
	}
	out.Raw, _ = json.Marshal(out.Terms)
	m.log.Debug("extract.mock.contract", "filename", req.Filename, "vendor", out.Vendor.Name)
	return out, nil
}

func filenameSeed(name string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return h.Sum32()
}
