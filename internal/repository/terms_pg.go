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

type pgTermSetStore struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewPGTermSetStore returns a Postgres-backed TermSetStore.
func NewPGTermSetStore(pool *pgxpool.Pool, log *slog.Logger) TermSetStore {
	return &pgTermSetStore{pool: pool, log: log}
}

func (s *pgTermSetStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ContractTermSet, error) {
	q, args, err := selectTerms().Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	t, err := s.queryOne(ctx, q, args)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.WrapError(common.ErrNotFound, "term set "+id.String())
	}
	return t, err
}

// LoadForVendor returns the vendor's latest term set version.
func (s *pgTermSetStore) LoadForVendor(ctx context.Context, vendorID uuid.UUID) (*domain.ContractTermSet, error) {
	q, args, err := selectTerms().
		Where(sq.Eq{"vendor_id": vendorID}).
		OrderBy("version DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	t, err := s.queryOne(ctx, q, args)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.WrapError(common.ErrNotFound, "term set for vendor "+vendorID.String())
	}
	return t, err
}

func selectTerms() sq.SelectBuilder {
	return psql.Select("id", "vendor_id", "payment_terms", "pricing", "discounts",
		"tax_rate", "effective_date", "expiration_date", "version", "created_at").
		From("contract_term_sets")
}

func (s *pgTermSetStore) queryOne(ctx context.Context, query string, args []any) (*domain.ContractTermSet, error) {
	var t domain.ContractTermSet
	var pricing, discounts []byte
	var taxRate string

	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&t.ID, &t.VendorID, &t.PaymentTerms, &pricing, &discounts,
		&taxRate, &t.EffectiveDate, &t.ExpirationDate, &t.Version, &t.CreatedAt)
	if err != nil {
		return nil, err
	}

	if t.TaxRate, err = decimal.NewFromString(taxRate); err != nil {
		return nil, fmt.Errorf("parse tax_rate: %w", err)
	}
	if err := json.Unmarshal(pricing, &t.Pricing); err != nil {
		return nil, fmt.Errorf("unmarshal pricing: %w", err)
	}
	if len(discounts) > 0 {
		if err := json.Unmarshal(discounts, &t.Discounts); err != nil {
			return nil, fmt.Errorf("unmarshal discounts: %w", err)
		}
	}
	return &t, nil
}
