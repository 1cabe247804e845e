package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendorlens/reconciler/internal/domain"
)

func TestWriterSeverityCountColumns(t *testing.T) {
	r := domain.ReconciliationReport{
		ID:                     uuid.New(),
		VendorID:               uuid.New(),
		InvoiceNumber:          "INV-9001",
		InvoiceDate:            "2025-07-01",
		InvoiceTotal:           decimal.RequireFromString("812.40"),
		TotalDiscrepancyAmount: decimal.RequireFromString("55.00"),
		Discrepancies: []domain.Discrepancy{
			{Type: domain.DiscrepancyPrice, Severity: domain.SeverityHigh},
			{Type: domain.DiscrepancyPrice, Severity: domain.SeverityHigh},
			{Type: domain.DiscrepancyTax, Severity: domain.SeverityMedium},
			{Type: domain.DiscrepancyQuantity, Severity: domain.SeverityLow},
		},
		Priority:   domain.PriorityHigh,
		ReadStatus: domain.ReadStatusUnread,
		Relevance:  domain.RelevancePending,
		CreatedAt:  time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC),
	}

	w, err := newWriter(FormatCSV)
	if err != nil {
		t.Fatalf("newWriter: %v", err)
	}
	if err := w.add(r); err != nil {
		t.Fatalf("add: %v", err)
	}
	data, _, _, err := w.finish()
	if err != nil {
		t.Fatalf("finish: %v", err)
	}

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	header, row := rows[0], rows[1]

	col := func(name string) string {
		t.Helper()
		for i, h := range header {
			if h == name {
				return row[i]
			}
		}
		t.Fatalf("column %q missing from header %v", name, header)
		return ""
	}
	if got := col("Discrepancy Count"); got != "4" {
		t.Errorf("Discrepancy Count = %s, want 4", got)
	}
	if got := col("High Severity"); got != "2" {
		t.Errorf("High Severity = %s, want 2", got)
	}
	if got := col("Medium Severity"); got != "1" {
		t.Errorf("Medium Severity = %s, want 1", got)
	}
	if got := col("Low Severity"); got != "1" {
		t.Errorf("Low Severity = %s, want 1", got)
	}
	if got := col("Overcharge Amount"); got != "55.00" {
		t.Errorf("Overcharge Amount = %s, want 55.00", got)
	}
}
