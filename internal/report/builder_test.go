package report

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendorlens/reconciler/internal/compare"
	"github.com/vendorlens/reconciler/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleInvoice() domain.ExtractedInvoice {
	return domain.ExtractedInvoice{
		InvoiceNumber:        "INV-77",
		VendorName:           "Acme",
		Date:                 "2025-06-15",
		TotalAmount:          d("162.00"),
		ExtractionConfidence: 0.9,
	}
}

func sampleTerms() domain.ContractTermSet {
	return domain.ContractTermSet{
		ID:       uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		VendorID: uuid.MustParse("22222222-2222-2222-2222-222222222222"),
	}
}

func disc(sev domain.Severity, impact string) domain.Discrepancy {
	return domain.Discrepancy{
		Type:            domain.DiscrepancyPrice,
		Severity:        sev,
		FinancialImpact: d(impact),
		Relevance:       domain.RelevancePending,
	}
}

func TestBuildTotalsOnlyOvercharges(t *testing.T) {
	res := compare.Result{
		Discrepancies: []domain.Discrepancy{
			disc(domain.SeverityMedium, "25.00"),
			disc(domain.SeverityLow, "-40.00"), // undercharge never nets against exposure
			disc(domain.SeverityLow, "5.00"),
		},
	}

	r := Build(uuid.New(), sampleInvoice(), sampleTerms(), res, Metadata{Model: "gpt-4o-mini"})
	if !r.TotalDiscrepancyAmount.Equal(d("30")) {
		t.Fatalf("total = %s, want 30", r.TotalDiscrepancyAmount)
	}
	if !r.HasDiscrepancies {
		t.Error("HasDiscrepancies should be true")
	}
}

func TestBuildPriorityFromWorstSeverity(t *testing.T) {
	tests := []struct {
		name       string
		severities []domain.Severity
		want       domain.Priority
	}{
		{"no findings", nil, domain.PriorityNone},
		{"only low", []domain.Severity{domain.SeverityLow}, domain.PriorityLow},
		{"medium beats low", []domain.Severity{domain.SeverityLow, domain.SeverityMedium}, domain.PriorityMedium},
		{"high wins", []domain.Severity{domain.SeverityMedium, domain.SeverityHigh, domain.SeverityLow}, domain.PriorityHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var res compare.Result
			for _, sev := range tt.severities {
				res.Discrepancies = append(res.Discrepancies, disc(sev, "1.00"))
			}
			r := Build(uuid.New(), sampleInvoice(), sampleTerms(), res, Metadata{})
			if r.Priority != tt.want {
				t.Errorf("priority = %s, want %s", r.Priority, tt.want)
			}
		})
	}
}

func TestBuildInitialReviewState(t *testing.T) {
	invoiceID := uuid.New()
	supersedes := uuid.New()
	terms := sampleTerms()

	r := Build(invoiceID, sampleInvoice(), terms, compare.Result{}, Metadata{
		Model:          "gpt-4o-mini",
		ProcessingTime: 1500 * time.Millisecond,
		Supersedes:     &supersedes,
	})

	if r.ID == uuid.Nil {
		t.Error("report id should be assigned")
	}
	if r.InvoiceID != invoiceID {
		t.Error("invoice id not carried over")
	}
	if r.ContractTermSetID != terms.ID || r.VendorID != terms.VendorID {
		t.Error("term set linkage not carried over")
	}
	if r.ReadStatus != domain.ReadStatusUnread {
		t.Errorf("read status = %s, want unread", r.ReadStatus)
	}
	if r.Relevance != domain.RelevancePending {
		t.Errorf("relevance = %s, want pending", r.Relevance)
	}
	if r.SupersedesReportID == nil || *r.SupersedesReportID != supersedes {
		t.Error("supersedes link not carried over")
	}
	if r.Metadata.AIModel != "gpt-4o-mini" || r.Metadata.ProcessingTimeSeconds != 1.5 {
		t.Errorf("metadata = %+v", r.Metadata)
	}
}

func TestBuildRationale(t *testing.T) {
	t.Run("model rationale wins", func(t *testing.T) {
		r := Build(uuid.New(), sampleInvoice(), sampleTerms(), compare.Result{}, Metadata{
			Rationale: "The invoice matches the contract in every checked category.",
		})
		if !strings.Contains(r.RationaleText, "every checked category") {
			t.Errorf("rationale = %q", r.RationaleText)
		}
	})

	t.Run("fallback mentions the invoice", func(t *testing.T) {
		res := compare.Result{Discrepancies: []domain.Discrepancy{disc(domain.SeverityHigh, "100.00")}}
		r := Build(uuid.New(), sampleInvoice(), sampleTerms(), res, Metadata{})
		if !strings.Contains(r.RationaleText, "INV-77") {
			t.Errorf("rationale should reference the invoice number: %q", r.RationaleText)
		}
		if !strings.Contains(r.RationaleText, "100.00") {
			t.Errorf("rationale should reference the exposure: %q", r.RationaleText)
		}
	})
}
