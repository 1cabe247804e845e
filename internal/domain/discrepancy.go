package domain

import "github.com/shopspring/decimal"

// DiscrepancyType classifies a detected mismatch.
type DiscrepancyType string

const (
	DiscrepancyPrice    DiscrepancyType = "price"
	DiscrepancyQuantity DiscrepancyType = "quantity"
	DiscrepancyTax      DiscrepancyType = "tax"
	DiscrepancyTerms    DiscrepancyType = "terms"
	DiscrepancyDiscount DiscrepancyType = "discount"
	DiscrepancyOther    DiscrepancyType = "other"
)

// Severity ranks how urgently a discrepancy needs review.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Relevance is a reviewer-assigned classification layered on top of
// severity/confidence; it never replaces them.
type Relevance string

const (
	RelevancePending     Relevance = "pending"
	RelevanceRelevant    Relevance = "relevant"
	RelevanceNotRelevant Relevance = "not_relevant"
)

// Discrepancy is one detected mismatch between invoice data and contract terms.
type Discrepancy struct {
	Type            DiscrepancyType `json:"type"`
	Severity        Severity        `json:"severity"`
	Field           string          `json:"field"` // dotted path, e.g. lineItems[0].unitPrice
	Expected        string          `json:"expected"`
	Actual          string          `json:"actual"`
	FinancialImpact decimal.Decimal `json:"financial_impact"` // signed; positive = overcharge
	Confidence      float64         `json:"confidence"`       // 0..1
	Description     string          `json:"description"`
	Recommendation  string          `json:"recommendation"`
	Relevance       Relevance       `json:"relevance"`
}

// ChecklistItem is one compliance rule outcome.
type ChecklistItem struct {
	Item       string  `json:"item"`
	Passed     bool    `json:"passed"`
	Details    string  `json:"details"`
	Confidence float64 `json:"confidence"`
}
