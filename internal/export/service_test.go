package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendorlens/reconciler/internal/common"
	"github.com/vendorlens/reconciler/internal/domain"
	"github.com/vendorlens/reconciler/internal/job"
	"github.com/vendorlens/reconciler/internal/repository"
)

func newTestService(t *testing.T, cfg Config) (*Service, *job.Manager, *repository.MemoryReportStore) {
	t.Helper()
	jobs := job.NewManager(nil)
	t.Cleanup(jobs.Close)
	queue := job.NewQueue(nil, job.WithWorkers(1))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		queue.Shutdown(ctx)
	})
	reports := repository.NewMemoryReportStore()
	return NewService(nil, jobs, queue, reports, cfg), jobs, reports
}

func seedReports(t *testing.T, store *repository.MemoryReportStore, n int) {
	t.Helper()
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		err := store.Save(context.Background(), domain.ReconciliationReport{
			ID:                     uuid.New(),
			InvoiceID:              uuid.New(),
			VendorID:               uuid.New(),
			InvoiceNumber:          fmt.Sprintf("INV-%04d", i),
			InvoiceDate:            "2025-05-01",
			InvoiceTotal:           decimal.NewFromInt(int64(100 + i)),
			TotalDiscrepancyAmount: decimal.Zero,
			Priority:               domain.PriorityNone,
			ReadStatus:             domain.ReadStatusUnread,
			Relevance:              domain.RelevancePending,
			CreatedAt:              base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("seed report %d: %v", i, err)
		}
	}
}

func waitForDone(t *testing.T, m *job.Manager, id uuid.UUID) job.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		j, err := m.Snapshot(id)
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		if j.Status.Terminal() {
			return j
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("export job never finished")
	return job.Job{}
}

func TestExportRejectsEmptyResult(t *testing.T) {
	svc, _, _ := newTestService(t, Config{})

	_, err := svc.StartJob(context.Background(), Request{})
	if !errors.Is(err, common.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestExportRejectsOversizedResult(t *testing.T) {
	svc, _, reports := newTestService(t, Config{MaxRecords: 3})
	seedReports(t, reports, 5)

	_, err := svc.StartJob(context.Background(), Request{})
	if !errors.Is(err, common.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestExportRejectsBadFilter(t *testing.T) {
	svc, _, reports := newTestService(t, Config{})
	seedReports(t, reports, 1)

	tests := []struct {
		name string
		req  Request
	}{
		{"bad date", Request{Filter: Filter{From: "June 1st"}}},
		{"bad vendor id", Request{Filter: Filter{VendorID: "not-a-uuid"}}},
		{"bad priority", Request{Filter: Filter{Priority: "urgent"}}},
		{"bad format", Request{Format: "pdf"}},
		{"inverted range", Request{Filter: Filter{From: "2025-06-01", To: "2025-05-01"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.StartJob(context.Background(), tt.req); !errors.Is(err, common.ErrValidation) {
				t.Fatalf("err = %v, want validation error", err)
			}
		})
	}
}

func TestExportXLSXEndToEnd(t *testing.T) {
	svc, jobs, reports := newTestService(t, Config{})
	seedReports(t, reports, 5)

	j, err := svc.StartJob(context.Background(), Request{ChunkSize: 2})
	if err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	if j.Kind != job.KindBulkExport || len(j.Steps) != 4 {
		t.Fatalf("job = kind %s with %d steps", j.Kind, len(j.Steps))
	}

	done := waitForDone(t, jobs, j.ID)
	if done.Status != job.StatusCompleted {
		t.Fatalf("status = %s (error %q)", done.Status, done.Error)
	}
	if done.ProgressPct != 100 || done.TotalRecords != 5 || done.ProcessedRecords != 5 {
		t.Fatalf("progress=%d total=%d processed=%d", done.ProgressPct, done.TotalRecords, done.ProcessedRecords)
	}

	name, contentType, data, err := jobs.Artifact(j.ID)
	if err != nil {
		t.Fatalf("Artifact: %v", err)
	}
	if contentType != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("content type = %q", contentType)
	}
	if name == "" || len(data) == 0 {
		t.Fatalf("artifact = %q with %d bytes", name, len(data))
	}
	// XLSX containers are zip archives.
	if !bytes.HasPrefix(data, []byte("PK")) {
		t.Error("artifact does not look like an xlsx file")
	}
}

func TestExportCSVContainsAllRows(t *testing.T) {
	svc, jobs, reports := newTestService(t, Config{})
	seedReports(t, reports, 3)

	j, err := svc.StartJob(context.Background(), Request{Format: FormatCSV})
	if err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	done := waitForDone(t, jobs, j.ID)
	if done.Status != job.StatusCompleted {
		t.Fatalf("status = %s (error %q)", done.Status, done.Error)
	}

	_, contentType, data, err := jobs.Artifact(j.ID)
	if err != nil {
		t.Fatalf("Artifact: %v", err)
	}
	if contentType != "text/csv" {
		t.Errorf("content type = %q, want text/csv", contentType)
	}

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 4 { // header + 3 records
		t.Fatalf("csv has %d rows, want 4", len(rows))
	}
	if rows[0][0] != "Report ID" {
		t.Errorf("header = %v", rows[0])
	}
}

func TestExportRetryUnknownJob(t *testing.T) {
	svc, _, reports := newTestService(t, Config{})
	seedReports(t, reports, 1)

	if _, err := svc.Retry(context.Background(), uuid.New()); !errors.Is(err, common.ErrJobState) {
		t.Fatalf("err = %v, want job state error", err)
	}
}
