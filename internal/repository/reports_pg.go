package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vendorlens/reconciler/internal/common"
	"github.com/vendorlens/reconciler/internal/domain"
)

type pgReportStore struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewPGReportStore returns a Postgres-backed ReportStore.
func NewPGReportStore(pool *pgxpool.Pool, log *slog.Logger) ReportStore {
	return &pgReportStore{pool: pool, log: log}
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func (s *pgReportStore) Save(ctx context.Context, r domain.ReconciliationReport) error {
	discrepancies, err := json.Marshal(r.Discrepancies)
	if err != nil {
		return fmt.Errorf("marshal discrepancies: %w", err)
	}
	checklist, err := json.Marshal(r.Checklist)
	if err != nil {
		return fmt.Errorf("marshal checklist: %w", err)
	}

	query, args, err := psql.Insert("reconciliation_reports").
		Columns("id", "invoice_id", "contract_term_set_id", "vendor_id",
			"invoice_number", "invoice_date", "invoice_total",
			"has_discrepancies", "total_discrepancy_amount",
			"discrepancies", "checklist", "rationale_text",
			"ai_model", "processing_time_seconds",
			"priority", "read_status", "relevance", "supersedes_report_id", "created_at").
		Values(r.ID, r.InvoiceID, r.ContractTermSetID, r.VendorID,
			r.InvoiceNumber, r.InvoiceDate, r.InvoiceTotal,
			r.HasDiscrepancies, r.TotalDiscrepancyAmount,
			discrepancies, checklist, r.RationaleText,
			r.Metadata.AIModel, r.Metadata.ProcessingTimeSeconds,
			r.Priority, r.ReadStatus, r.Relevance, r.SupersedesReportID, r.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		s.log.Error("report save failed", "report_id", r.ID, "err", err)
		return common.WrapError(err, "insert report")
	}
	s.log.Info("report saved", "report_id", r.ID, "invoice_number", r.InvoiceNumber,
		"has_discrepancies", r.HasDiscrepancies)
	return nil
}

func (s *pgReportStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ReconciliationReport, error) {
	query, args, err := selectReports().Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	row := s.pool.QueryRow(ctx, query, args...)
	r, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.WrapError(common.ErrNotFound, "report "+id.String())
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *pgReportStore) Count(ctx context.Context, f ReportFilter) (int, error) {
	q := psql.Select("COUNT(*)").From("reconciliation_reports")
	q = applyFilter(q, f)
	query, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var n int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, common.WrapError(err, "count reports")
	}
	return n, nil
}

func (s *pgReportStore) List(ctx context.Context, f ReportFilter, limit, offset int) ([]domain.ReconciliationReport, error) {
	q := applyFilter(selectReports(), f).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset))
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, common.WrapError(err, "list reports")
	}
	defer rows.Close()

	var out []domain.ReconciliationReport
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func selectReports() sq.SelectBuilder {
	return psql.Select("id", "invoice_id", "contract_term_set_id", "vendor_id",
		"invoice_number", "invoice_date", "invoice_total",
		"has_discrepancies", "total_discrepancy_amount",
		"discrepancies", "checklist", "rationale_text",
		"ai_model", "processing_time_seconds",
		"priority", "read_status", "relevance", "supersedes_report_id", "created_at").
		From("reconciliation_reports")
}

func applyFilter(q sq.SelectBuilder, f ReportFilter) sq.SelectBuilder {
	if f.From != nil {
		q = q.Where(sq.GtOrEq{"created_at": *f.From})
	}
	if f.To != nil {
		q = q.Where(sq.LtOrEq{"created_at": *f.To})
	}
	if f.VendorID != nil {
		q = q.Where(sq.Eq{"vendor_id": *f.VendorID})
	}
	if f.Priority != "" {
		q = q.Where(sq.Eq{"priority": f.Priority})
	}
	if f.Relevance != "" {
		q = q.Where(sq.Eq{"relevance": f.Relevance})
	}
	if f.ReadStatus != "" {
		q = q.Where(sq.Eq{"read_status": f.ReadStatus})
	}
	return q
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*domain.ReconciliationReport, error) {
	var r domain.ReconciliationReport
	var discrepancies, checklist []byte
	var total, invoiceTotal string

	err := row.Scan(&r.ID, &r.InvoiceID, &r.ContractTermSetID, &r.VendorID,
		&r.InvoiceNumber, &r.InvoiceDate, &invoiceTotal,
		&r.HasDiscrepancies, &total,
		&discrepancies, &checklist, &r.RationaleText,
		&r.Metadata.AIModel, &r.Metadata.ProcessingTimeSeconds,
		&r.Priority, &r.ReadStatus, &r.Relevance, &r.SupersedesReportID, &r.CreatedAt)
	if err != nil {
		return nil, err
	}

	if r.InvoiceTotal, err = decimal.NewFromString(invoiceTotal); err != nil {
		return nil, fmt.Errorf("parse invoice_total: %w", err)
	}
	if r.TotalDiscrepancyAmount, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parse total_discrepancy_amount: %w", err)
	}
	if err := json.Unmarshal(discrepancies, &r.Discrepancies); err != nil {
		return nil, fmt.Errorf("unmarshal discrepancies: %w", err)
	}
	if err := json.Unmarshal(checklist, &r.Checklist); err != nil {
		return nil, fmt.Errorf("unmarshal checklist: %w", err)
	}
	return &r, nil
}
