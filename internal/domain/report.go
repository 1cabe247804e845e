package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Priority summarizes a report for reviewer triage, derived from the worst
// discrepancy severity at build time.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
	PriorityNone   Priority = "none"
)

// ReadStatus tracks whether a reviewer has opened the report.
type ReadStatus string

const (
	ReadStatusUnread ReadStatus = "unread"
	ReadStatusRead   ReadStatus = "read"
)

// ReportMetadata records how the report was produced.
type ReportMetadata struct {
	AIModel               string  `json:"ai_model"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
}

// ReconciliationReport is the persisted comparison of one invoice against its
// governing contract terms. Reports are immutable once created; a superseding
// report is created fresh and linked, never edited in place.
type ReconciliationReport struct {
	ID                     uuid.UUID       `json:"id"`
	InvoiceID              uuid.UUID       `json:"invoice_id"`
	ContractTermSetID      uuid.UUID       `json:"contract_term_set_id"`
	VendorID               uuid.UUID       `json:"vendor_id"`
	InvoiceNumber          string          `json:"invoice_number"`
	InvoiceDate            string          `json:"invoice_date"`
	InvoiceTotal           decimal.Decimal `json:"invoice_total"`
	HasDiscrepancies       bool            `json:"has_discrepancies"`
	TotalDiscrepancyAmount decimal.Decimal `json:"total_discrepancy_amount"`
	Discrepancies          []Discrepancy   `json:"discrepancies"`
	Checklist              []ChecklistItem `json:"checklist"`
	RationaleText          string          `json:"rationale_text"`
	Metadata               ReportMetadata  `json:"metadata"`
	Priority               Priority        `json:"priority"`
	ReadStatus             ReadStatus      `json:"read_status"`
	Relevance              Relevance       `json:"relevance"`
	SupersedesReportID     *uuid.UUID      `json:"supersedes_report_id,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
}
