package report

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendorlens/reconciler/internal/compare"
	"github.com/vendorlens/reconciler/internal/domain"
)

// Metadata carries extraction provenance into the report.
type Metadata struct {
	Model          string
	ProcessingTime time.Duration
	Rationale      string
	Supersedes     *uuid.UUID
}

// Build assembles comparator output, extraction confidence and the rationale
// narrative into an immutable report record. Pure construction; persistence
// is the caller's responsibility.
func Build(invoiceID uuid.UUID, inv domain.ExtractedInvoice, terms domain.ContractTermSet, res compare.Result, meta Metadata) domain.ReconciliationReport {
	total := decimal.Zero
	worst := domain.PriorityNone
	for _, d := range res.Discrepancies {
		// Only overcharges count toward exposure; undercharges never net
		// against it.
		if d.FinancialImpact.IsPositive() {
			total = total.Add(d.FinancialImpact)
		}
		worst = escalate(worst, d.Severity)
	}

	rationale := meta.Rationale
	if rationale == "" {
		rationale = fallbackRationale(inv, res, total)
	}

	return domain.ReconciliationReport{
		ID:                     uuid.New(),
		InvoiceID:              invoiceID,
		ContractTermSetID:      terms.ID,
		VendorID:               terms.VendorID,
		InvoiceNumber:          inv.InvoiceNumber,
		InvoiceDate:            inv.Date,
		InvoiceTotal:           inv.TotalAmount,
		HasDiscrepancies:       len(res.Discrepancies) > 0,
		TotalDiscrepancyAmount: total,
		Discrepancies:          res.Discrepancies,
		Checklist:              res.Checklist,
		RationaleText:          rationale,
		Metadata: domain.ReportMetadata{
			AIModel:               meta.Model,
			ProcessingTimeSeconds: meta.ProcessingTime.Seconds(),
		},
		Priority:           worst,
		ReadStatus:         domain.ReadStatusUnread,
		Relevance:          domain.RelevancePending,
		SupersedesReportID: meta.Supersedes,
		CreatedAt:          time.Now().UTC(),
	}
}

func escalate(current domain.Priority, sev domain.Severity) domain.Priority {
	rank := map[domain.Priority]int{
		domain.PriorityNone: 0, domain.PriorityLow: 1, domain.PriorityMedium: 2, domain.PriorityHigh: 3,
	}
	var candidate domain.Priority
	switch sev {
	case domain.SeverityHigh:
		candidate = domain.PriorityHigh
	case domain.SeverityMedium:
		candidate = domain.PriorityMedium
	default:
		candidate = domain.PriorityLow
	}
	if rank[candidate] > rank[current] {
		return candidate
	}
	return current
}

// fallbackRationale is the deterministic narrative used when the extraction
// round trip did not supply one (mock mode, or terms absent at extraction).
func fallbackRationale(inv domain.ExtractedInvoice, res compare.Result, total decimal.Decimal) string {
	if len(res.Discrepancies) == 0 {
		return fmt.Sprintf(
			"Invoice %s from %s was reconciled against the governing contract terms. All %d compliance checks passed; line item prices, quantities, tax and payment terms are consistent with the contract.",
			inv.InvoiceNumber, inv.VendorName, len(res.Checklist))
	}
	return fmt.Sprintf(
		"Invoice %s from %s was reconciled against the governing contract terms. %d discrepancy(ies) were detected with a combined overcharge exposure of %s. Review the itemized findings; low-confidence findings are surfaced for reviewer judgment rather than hidden.",
		inv.InvoiceNumber, inv.VendorName, len(res.Discrepancies), total.StringFixed(2))
}
