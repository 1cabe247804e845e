package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vendorlens/reconciler/internal/domain"
)

// ReportFilter selects reports for listing, counting and export.
type ReportFilter struct {
	From       *time.Time
	To         *time.Time
	VendorID   *uuid.UUID
	Priority   string
	Relevance  string
	ReadStatus string
}

// ReportStore persists reconciliation reports. Reports are write-once;
// superseding reports are inserted fresh, never updated in place.
type ReportStore interface {
	Save(ctx context.Context, r domain.ReconciliationReport) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ReconciliationReport, error)
	Count(ctx context.Context, f ReportFilter) (int, error)
	List(ctx context.Context, f ReportFilter, limit, offset int) ([]domain.ReconciliationReport, error)
}

// TermSetStore loads governing contract terms.
type TermSetStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ContractTermSet, error)
	LoadForVendor(ctx context.Context, vendorID uuid.UUID) (*domain.ContractTermSet, error)
}
