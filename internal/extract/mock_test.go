package extract

import (
	"context"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vendorlens/reconciler/internal/domain"
)

func TestMockAnalyzerIsDeterministic(t *testing.T) {
	m := NewMockAnalyzer(nil)
	req := Request{Filename: "invoice-march.png", ContentType: "image/png"}

	first, err := m.AnalyzeInvoice(context.Background(), req)
	if err != nil {
		t.Fatalf("AnalyzeInvoice: %v", err)
	}
	second, err := m.AnalyzeInvoice(context.Background(), req)
	if err != nil {
		t.Fatalf("AnalyzeInvoice: %v", err)
	}
	if !reflect.DeepEqual(first.Invoice, second.Invoice) {
		t.Fatal("same filename produced different invoices")
	}

	other, err := m.AnalyzeInvoice(context.Background(), Request{Filename: "invoice-april.png"})
	if err != nil {
		t.Fatalf("AnalyzeInvoice: %v", err)
	}
	if other.Invoice.InvoiceNumber == first.Invoice.InvoiceNumber {
		t.Error("different filenames should yield different invoice numbers")
	}
}

func TestMockAnalyzerConfidence(t *testing.T) {
	m := NewMockAnalyzer(nil)
	out, err := m.AnalyzeInvoice(context.Background(), Request{Filename: "x.png"})
	if err != nil {
		t.Fatalf("AnalyzeInvoice: %v", err)
	}
	if out.Invoice.ExtractionConfidence != MockConfidence {
		t.Fatalf("confidence = %v, want %v", out.Invoice.ExtractionConfidence, MockConfidence)
	}
	if out.Model != "mock" {
		t.Errorf("model = %q, want mock", out.Model)
	}
}

func TestMockAnalyzerInvoiceIsInternallyConsistent(t *testing.T) {
	m := NewMockAnalyzer(nil)
	out, err := m.AnalyzeInvoice(context.Background(), Request{Filename: "x.png"})
	if err != nil {
		t.Fatalf("AnalyzeInvoice: %v", err)
	}
	inv := out.Invoice

	sum := decimal.Zero
	for _, li := range inv.LineItems {
		if !li.TotalPrice.Equal(li.UnitPrice.Mul(li.Quantity)) {
			t.Errorf("line %q total %s != unit*qty", li.Description, li.TotalPrice)
		}
		sum = sum.Add(li.TotalPrice)
	}
	if !inv.Subtotal.Equal(sum) {
		t.Errorf("subtotal %s != line sum %s", inv.Subtotal, sum)
	}
	if !inv.TotalAmount.Equal(inv.Subtotal.Add(inv.TaxAmount)) {
		t.Errorf("total %s != subtotal+tax", inv.TotalAmount)
	}
}

func TestMockAnalyzerBuildsLinesFromTerms(t *testing.T) {
	m := NewMockAnalyzer(nil)
	terms := domain.ContractTermSet{
		PaymentTerms: "Net 45",
		TaxRate:      decimal.RequireFromString("0.1"),
		Pricing: []domain.PricingTerm{
			{Item: "Bulk solvent", UnitPrice: decimal.RequireFromString("100.00")},
			{Item: "Drum liner", UnitPrice: decimal.RequireFromString("4.00")},
		},
	}

	out, err := m.AnalyzeInvoice(context.Background(), Request{Filename: "x.png", Terms: &terms})
	if err != nil {
		t.Fatalf("AnalyzeInvoice: %v", err)
	}
	inv := out.Invoice
	if len(inv.LineItems) != 2 {
		t.Fatalf("got %d line items, want 2", len(inv.LineItems))
	}
	// First contracted item carries the deliberate markup.
	if !inv.LineItems[0].UnitPrice.Equal(decimal.RequireFromString("103.50")) {
		t.Errorf("first line price = %s, want 103.50", inv.LineItems[0].UnitPrice)
	}
	if !inv.LineItems[1].UnitPrice.Equal(terms.Pricing[1].UnitPrice) {
		t.Errorf("second line price = %s, want contracted %s", inv.LineItems[1].UnitPrice, terms.Pricing[1].UnitPrice)
	}
	if inv.PaymentTerms != "Net 45" {
		t.Errorf("payment terms = %q, want contracted terms", inv.PaymentTerms)
	}
	if !inv.TaxAmount.Equal(inv.Subtotal.Mul(terms.TaxRate).Round(2)) {
		t.Errorf("tax %s not derived from contracted rate", inv.TaxAmount)
	}
}

func TestMockAnalyzerContract(t *testing.T) {
	m := NewMockAnalyzer(nil)
	out, err := m.AnalyzeContract(context.Background(), Request{Filename: "contract.pdf"})
	if err != nil {
		t.Fatalf("AnalyzeContract: %v", err)
	}
	if out.Vendor.Name == "" {
		t.Error("vendor name should be set")
	}
	if len(out.Terms.Pricing) == 0 {
		t.Error("pricing terms should be set")
	}
	if out.Confidence != MockConfidence {
		t.Errorf("confidence = %v, want %v", out.Confidence, MockConfidence)
	}
	if err := out.Terms.Validate(); err != nil {
		t.Errorf("mock terms should validate: %v", err)
	}
}
