package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendorlens/reconciler/internal/common"
)

// PricingTerm is one contracted item price.
type PricingTerm struct {
	Item        string           `json:"item"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	Unit        string           `json:"unit"`
	MinOrderQty *decimal.Decimal `json:"min_order_qty,omitempty"`
	MaxOrderQty *decimal.Decimal `json:"max_order_qty,omitempty"`
}

// DiscountTerm is a volume discount tier.
type DiscountTerm struct {
	ThresholdAmount decimal.Decimal `json:"threshold_amount"`
	DiscountPct     decimal.Decimal `json:"discount_pct"`
	Conditions      string          `json:"conditions"`
}

// ContractTermSet is the governing terms for a vendor contract at a point in
// time. Once a finalized report references a term set it is never mutated;
// re-analysis creates a new version.
type ContractTermSet struct {
	ID             uuid.UUID       `json:"id"`
	VendorID       uuid.UUID       `json:"vendor_id"`
	PaymentTerms   string          `json:"payment_terms"`
	Pricing        []PricingTerm   `json:"pricing"`
	Discounts      []DiscountTerm  `json:"discounts"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	EffectiveDate  time.Time       `json:"effective_date"`
	ExpirationDate *time.Time      `json:"expiration_date,omitempty"`
	Version        int             `json:"version"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Validate checks structural invariants on the term set.
func (t *ContractTermSet) Validate() error {
	if t.ExpirationDate != nil && t.EffectiveDate.After(*t.ExpirationDate) {
		return common.ValidationErrorf("effective date %s is after expiration date %s",
			t.EffectiveDate.Format("2006-01-02"), t.ExpirationDate.Format("2006-01-02"))
	}
	if t.TaxRate.IsNegative() {
		return common.ValidationErrorf("tax rate must not be negative")
	}
	return nil
}

// InEffectOn reports whether the terms govern the given date.
func (t *ContractTermSet) InEffectOn(day time.Time) bool {
	if day.Before(t.EffectiveDate) {
		return false
	}
	if t.ExpirationDate != nil && day.After(*t.ExpirationDate) {
		return false
	}
	return true
}
