package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/vendorlens/reconciler/internal/common"
	"github.com/vendorlens/reconciler/internal/domain"
)

// MemoryReportStore keeps reports in memory. Used in mock/offline mode and in
// tests; satisfies the same write-once contract as the Postgres store.
type MemoryReportStore struct {
	mu      sync.RWMutex
	reports map[uuid.UUID]domain.ReconciliationReport
}

func NewMemoryReportStore() *MemoryReportStore {
	return &MemoryReportStore{reports: make(map[uuid.UUID]domain.ReconciliationReport)}
}

var _ ReportStore = (*MemoryReportStore)(nil)

func (s *MemoryReportStore) Save(_ context.Context, r domain.ReconciliationReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.reports[r.ID]; exists {
		return common.ValidationErrorf("report %s already exists; reports are immutable", r.ID)
	}
	s.reports[r.ID] = r
	return nil
}

func (s *MemoryReportStore) GetByID(_ context.Context, id uuid.UUID) (*domain.ReconciliationReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, common.WrapError(common.ErrNotFound, "report "+id.String())
	}
	return &r, nil
}

func (s *MemoryReportStore) Count(_ context.Context, f ReportFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.reports {
		if matchesFilter(r, f) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryReportStore) List(_ context.Context, f ReportFilter, limit, offset int) ([]domain.ReconciliationReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ReconciliationReport
	for _, r := range s.reports {
		if matchesFilter(r, f) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matchesFilter(r domain.ReconciliationReport, f ReportFilter) bool {
	if f.From != nil && r.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && r.CreatedAt.After(*f.To) {
		return false
	}
	if f.VendorID != nil && r.VendorID != *f.VendorID {
		return false
	}
	if f.Priority != "" && string(r.Priority) != f.Priority {
		return false
	}
	if f.Relevance != "" && string(r.Relevance) != f.Relevance {
		return false
	}
	if f.ReadStatus != "" && string(r.ReadStatus) != f.ReadStatus {
		return false
	}
	return true
}

// MemoryTermSetStore keeps term sets in memory, newest version first.
type MemoryTermSetStore struct {
	mu    sync.RWMutex
	terms map[uuid.UUID]domain.ContractTermSet
}

func NewMemoryTermSetStore() *MemoryTermSetStore {
	return &MemoryTermSetStore{terms: make(map[uuid.UUID]domain.ContractTermSet)}
}

var _ TermSetStore = (*MemoryTermSetStore)(nil)

// Put registers a term set version.
func (s *MemoryTermSetStore) Put(t domain.ContractTermSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terms[t.ID] = t
}

func (s *MemoryTermSetStore) GetByID(_ context.Context, id uuid.UUID) (*domain.ContractTermSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.terms[id]
	if !ok {
		return nil, common.WrapError(common.ErrNotFound, "term set "+id.String())
	}
	return &t, nil
}

func (s *MemoryTermSetStore) LoadForVendor(_ context.Context, vendorID uuid.UUID) (*domain.ContractTermSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *domain.ContractTermSet
	for id := range s.terms {
		t := s.terms[id]
		if t.VendorID != vendorID {
			continue
		}
		if best == nil || t.Version > best.Version {
			best = &t
		}
	}
	if best == nil {
		return nil, common.WrapError(common.ErrNotFound, "term set for vendor "+vendorID.String())
	}
	return best, nil
}
