package compare

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vendorlens/reconciler/internal/domain"
)

// Tolerances tune the comparator's thresholds. The zero value is usable:
// unset fields fall back to the defaults below, except PriceOveragePct whose
// default really is zero (any overage counts).
type Tolerances struct {
	PriceOveragePct   decimal.Decimal // fraction; overage below this share of the contracted price is ignored
	PriceAbsoluteHigh decimal.Decimal // overage impact above this is always high severity
	TaxTolerance      decimal.Decimal // allowed |actual - expected| tax delta
	TaxHighDelta      decimal.Decimal // tax delta above this escalates to medium
	AmountTolerance   decimal.Decimal // rounding tolerance for the subtotal/tax/total identity
}

func (t Tolerances) withDefaults() Tolerances {
	if t.PriceAbsoluteHigh.IsZero() {
		t.PriceAbsoluteHigh = decimal.NewFromInt(500)
	}
	if t.TaxTolerance.IsZero() {
		// Deltas up to one currency unit count as rounding, not a mismatch.
		t.TaxTolerance = decimal.RequireFromString("1.00")
	}
	if t.TaxHighDelta.IsZero() {
		t.TaxHighDelta = decimal.NewFromInt(10)
	}
	if t.AmountTolerance.IsZero() {
		t.AmountTolerance = decimal.RequireFromString("0.01")
	}
	return t
}

// Result is the comparator output: typed discrepancies plus the compliance
// checklist, one item per check category.
type Result struct {
	Discrepancies []domain.Discrepancy
	Checklist     []domain.ChecklistItem
}

// Comparator detects mismatches between an extracted invoice and a contract
// term set. Pure and deterministic; no I/O.
type Comparator struct {
	tol Tolerances
}

func New(tol Tolerances) *Comparator {
	return &Comparator{tol: tol.withDefaults()}
}

// check category labels, one checklist item each.
const (
	checkPricing    = "Contract pricing"
	checkQuantity   = "Quantity limits"
	checkDiscount   = "Volume discounts"
	checkTax        = "Tax calculation"
	checkTerms      = "Payment terms"
	checkArithmetic = "Invoice arithmetic"
)

var checkOrder = []string{checkPricing, checkQuantity, checkDiscount, checkTax, checkTerms, checkArithmetic}

// Compare runs every check and assembles the checklist. Calling it twice on
// identical inputs yields identical results.
func (c *Comparator) Compare(inv domain.ExtractedInvoice, terms domain.ContractTermSet) Result {
	run := &checkRun{
		confidence: inv.ExtractionConfidence,
		failed:     make(map[string]bool),
		details:    make(map[string]string),
	}

	c.checkLineItems(inv, terms, run)
	c.checkDiscounts(inv, terms, run)
	c.checkTax(inv, terms, run)
	c.checkPaymentTerms(inv, terms, run)
	c.checkEffectivity(inv, terms, run)
	c.checkArithmetic(inv, run)

	checklist := make([]domain.ChecklistItem, 0, len(checkOrder))
	for _, item := range checkOrder {
		passed := !run.failed[item]
		details := run.details[item]
		if details == "" {
			details = "No issues found"
		}
		checklist = append(checklist, domain.ChecklistItem{
			Item:       item,
			Passed:     passed,
			Details:    details,
			Confidence: run.confidence,
		})
	}
	return Result{Discrepancies: run.discrepancies, Checklist: checklist}
}

// checkRun accumulates discrepancies and per-category outcomes.
type checkRun struct {
	discrepancies []domain.Discrepancy
	confidence    float64
	failed        map[string]bool
	details       map[string]string
}

func (r *checkRun) emit(category string, d domain.Discrepancy) {
	if d.Relevance == "" {
		d.Relevance = domain.RelevancePending
	}
	r.discrepancies = append(r.discrepancies, d)
	r.failed[category] = true
	if r.details[category] == "" {
		r.details[category] = d.Description
	} else {
		r.details[category] += "; " + d.Description
	}
}

// checkLineItems covers the price and quantity checks plus unrecognized items.
func (c *Comparator) checkLineItems(inv domain.ExtractedInvoice, terms domain.ContractTermSet, run *checkRun) {
	for i, li := range inv.LineItems {
		idx, _ := matchPricingTerm(li.Description, terms.Pricing)
		if idx < 0 {
			run.emit(checkPricing, domain.Discrepancy{
				Type:            domain.DiscrepancyTerms,
				Severity:        domain.SeverityLow,
				Field:           fmt.Sprintf("lineItems[%d].description", i),
				Expected:        "a contracted item",
				Actual:          li.Description,
				FinancialImpact: decimal.Zero,
				Confidence:      inv.ExtractionConfidence,
				Description:     fmt.Sprintf("Unrecognized line item %q has no matching contract pricing term", li.Description),
				Recommendation:  "Verify this item is covered by the contract or request an updated term set",
			})
			continue
		}
		term := terms.Pricing[idx]
		c.checkPrice(i, li, term, inv.ExtractionConfidence, run)
		c.checkQuantity(i, li, term, inv.ExtractionConfidence, run)
	}
}

func (c *Comparator) checkPrice(i int, li domain.LineItem, term domain.PricingTerm, conf float64, run *checkRun) {
	overage := li.UnitPrice.Sub(term.UnitPrice)
	if !overage.IsPositive() {
		return
	}
	allowed := term.UnitPrice.Mul(c.tol.PriceOveragePct)
	if overage.LessThanOrEqual(allowed) {
		return
	}

	impact := overage.Mul(li.Quantity)
	severity := domain.SeverityMedium
	tenPct := term.UnitPrice.Mul(decimal.RequireFromString("0.1"))
	if overage.GreaterThan(tenPct) || impact.GreaterThan(c.tol.PriceAbsoluteHigh) {
		severity = domain.SeverityHigh
	}

	run.emit(checkPricing, domain.Discrepancy{
		Type:            domain.DiscrepancyPrice,
		Severity:        severity,
		Field:           fmt.Sprintf("lineItems[%d].unitPrice", i),
		Expected:        term.UnitPrice.StringFixed(2),
		Actual:          li.UnitPrice.StringFixed(2),
		FinancialImpact: impact,
		Confidence:      conf,
		Description: fmt.Sprintf("%s billed at %s against contracted price %s",
			li.Description, li.UnitPrice.StringFixed(2), term.UnitPrice.StringFixed(2)),
		Recommendation: "Request a credit for the unit price overage",
	})
}

func (c *Comparator) checkQuantity(i int, li domain.LineItem, term domain.PricingTerm, conf float64, run *checkRun) {
	if term.MinOrderQty != nil && li.Quantity.LessThan(*term.MinOrderQty) {
		run.emit(checkQuantity, domain.Discrepancy{
			Type:            domain.DiscrepancyQuantity,
			Severity:        domain.SeverityLow,
			Field:           fmt.Sprintf("lineItems[%d].quantity", i),
			Expected:        ">= " + term.MinOrderQty.String(),
			Actual:          li.Quantity.String(),
			FinancialImpact: decimal.Zero,
			Confidence:      conf,
			Description: fmt.Sprintf("%s quantity %s is below the contractual minimum order of %s",
				li.Description, li.Quantity.String(), term.MinOrderQty.String()),
			Recommendation: "Confirm the order meets the contracted minimum or consolidate orders",
		})
	}
	if term.MaxOrderQty != nil && li.Quantity.GreaterThan(*term.MaxOrderQty) {
		run.emit(checkQuantity, domain.Discrepancy{
			Type:            domain.DiscrepancyQuantity,
			Severity:        domain.SeverityMedium,
			Field:           fmt.Sprintf("lineItems[%d].quantity", i),
			Expected:        "<= " + term.MaxOrderQty.String(),
			Actual:          li.Quantity.String(),
			FinancialImpact: decimal.Zero,
			Confidence:      conf,
			Description: fmt.Sprintf("%s quantity %s exceeds the contractual maximum order of %s",
				li.Description, li.Quantity.String(), term.MaxOrderQty.String()),
			Recommendation: "Check whether the overage was authorized outside the contract",
		})
	}
}

// checkDiscounts verifies that an earned volume discount is reflected in the
// billed prices for matched items.
func (c *Comparator) checkDiscounts(inv domain.ExtractedInvoice, terms domain.ContractTermSet, run *checkRun) {
	if len(terms.Discounts) == 0 {
		return
	}

	// Highest tier whose threshold the subtotal crosses.
	var tier *domain.DiscountTerm
	for i := range terms.Discounts {
		d := &terms.Discounts[i]
		if inv.Subtotal.GreaterThanOrEqual(d.ThresholdAmount) {
			if tier == nil || d.ThresholdAmount.GreaterThan(tier.ThresholdAmount) {
				tier = d
			}
		}
	}
	if tier == nil {
		return
	}

	contracted := decimal.Zero
	billed := decimal.Zero
	for _, li := range inv.LineItems {
		idx, _ := matchPricingTerm(li.Description, terms.Pricing)
		if idx < 0 {
			continue
		}
		contracted = contracted.Add(terms.Pricing[idx].UnitPrice.Mul(li.Quantity))
		billed = billed.Add(li.UnitPrice.Mul(li.Quantity))
	}
	if contracted.IsZero() {
		return
	}

	pctFraction := tier.DiscountPct.Div(decimal.NewFromInt(100))
	expected := contracted.Mul(decimal.NewFromInt(1).Sub(pctFraction))
	if billed.LessThanOrEqual(expected.Add(c.tol.AmountTolerance)) {
		return
	}

	run.emit(checkDiscount, domain.Discrepancy{
		Type:            domain.DiscrepancyDiscount,
		Severity:        domain.SeverityMedium,
		Field:           "subtotal",
		Expected:        expected.StringFixed(2),
		Actual:          billed.StringFixed(2),
		FinancialImpact: billed.Sub(expected),
		Confidence:      inv.ExtractionConfidence,
		Description: fmt.Sprintf("Order subtotal %s crosses the %s discount threshold but the %s%% discount is not reflected",
			inv.Subtotal.StringFixed(2), tier.ThresholdAmount.StringFixed(2), tier.DiscountPct.String()),
		Recommendation: "Request the contracted volume discount be applied",
	})
}

func (c *Comparator) checkTax(inv domain.ExtractedInvoice, terms domain.ContractTermSet, run *checkRun) {
	expected := inv.Subtotal.Mul(terms.TaxRate)
	delta := inv.TaxAmount.Sub(expected)
	if delta.Abs().LessThanOrEqual(c.tol.TaxTolerance) {
		return
	}

	severity := domain.SeverityLow
	if delta.Abs().GreaterThan(c.tol.TaxHighDelta) {
		severity = domain.SeverityMedium
	}

	run.emit(checkTax, domain.Discrepancy{
		Type:            domain.DiscrepancyTax,
		Severity:        severity,
		Field:           "taxAmount",
		Expected:        expected.StringFixed(2),
		Actual:          inv.TaxAmount.StringFixed(2),
		FinancialImpact: delta,
		Confidence:      inv.ExtractionConfidence,
		Description: fmt.Sprintf("Invoice tax %s differs from expected %s at the contracted rate %s",
			inv.TaxAmount.StringFixed(2), expected.StringFixed(2), terms.TaxRate.String()),
		Recommendation: "Verify the applied tax rate against the contract",
	})
}

func (c *Comparator) checkPaymentTerms(inv domain.ExtractedInvoice, terms domain.ContractTermSet, run *checkRun) {
	if inv.PaymentTerms == "" || terms.PaymentTerms == "" {
		return
	}
	if normalizeTerms(inv.PaymentTerms) == normalizeTerms(terms.PaymentTerms) {
		return
	}
	run.emit(checkTerms, domain.Discrepancy{
		Type:            domain.DiscrepancyTerms,
		Severity:        domain.SeverityLow,
		Field:           "paymentTerms",
		Expected:        terms.PaymentTerms,
		Actual:          inv.PaymentTerms,
		FinancialImpact: decimal.Zero,
		Confidence:      inv.ExtractionConfidence,
		Description: fmt.Sprintf("Invoice payment terms %q do not match contracted terms %q",
			inv.PaymentTerms, terms.PaymentTerms),
		Recommendation: "Pay according to the contracted terms and flag the mismatch to the vendor",
	})
}

// checkEffectivity flags invoices dated outside the term set's window. The
// remaining checks still run against the supplied terms.
func (c *Comparator) checkEffectivity(inv domain.ExtractedInvoice, terms domain.ContractTermSet, run *checkRun) {
	day, err := time.Parse("2006-01-02", inv.Date)
	if err != nil {
		return
	}
	if terms.InEffectOn(day) {
		return
	}
	window := "from " + terms.EffectiveDate.Format("2006-01-02")
	if terms.ExpirationDate != nil {
		window += " to " + terms.ExpirationDate.Format("2006-01-02")
	}
	run.emit(checkTerms, domain.Discrepancy{
		Type:            domain.DiscrepancyTerms,
		Severity:        domain.SeverityMedium,
		Field:           "date",
		Expected:        window,
		Actual:          inv.Date,
		FinancialImpact: decimal.Zero,
		Confidence:      inv.ExtractionConfidence,
		Description:     fmt.Sprintf("Invoice date %s falls outside the contract effectivity window (%s)", inv.Date, window),
		Recommendation:  "Confirm which contract version governs this invoice",
	})
}

// checkArithmetic verifies total == subtotal + tax within rounding tolerance.
// Internal inconsistency is always worth a human look regardless of terms.
func (c *Comparator) checkArithmetic(inv domain.ExtractedInvoice, run *checkRun) {
	delta := inv.ArithmeticDelta()
	if delta.Abs().LessThanOrEqual(c.tol.AmountTolerance) {
		return
	}
	expected := inv.Subtotal.Add(inv.TaxAmount)
	run.emit(checkArithmetic, domain.Discrepancy{
		Type:            domain.DiscrepancyOther,
		Severity:        domain.SeverityHigh,
		Field:           "totalAmount",
		Expected:        expected.StringFixed(2),
		Actual:          inv.TotalAmount.StringFixed(2),
		FinancialImpact: delta,
		Confidence:      inv.ExtractionConfidence,
		Description: fmt.Sprintf("Invoice total %s does not equal subtotal plus tax (%s)",
			inv.TotalAmount.StringFixed(2), expected.StringFixed(2)),
		Recommendation: "Review the source document; the invoice is internally inconsistent",
	})
}
