package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendorlens/reconciler/internal/compare"
	"github.com/vendorlens/reconciler/internal/config"
	"github.com/vendorlens/reconciler/internal/domain"
	"github.com/vendorlens/reconciler/internal/export"
	"github.com/vendorlens/reconciler/internal/extract"
	"github.com/vendorlens/reconciler/internal/extract/openai"
	"github.com/vendorlens/reconciler/internal/job"
	"github.com/vendorlens/reconciler/internal/logging"
	"github.com/vendorlens/reconciler/internal/process"
	"github.com/vendorlens/reconciler/internal/repository"
	"github.com/vendorlens/reconciler/internal/server"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		reports repository.ReportStore
		terms   repository.TermSetStore
	)
	if cfg.Database.DSN != "" {
		pool, err := repository.Open(ctx, repository.DBConfig{
			DSN:             cfg.Database.DSN,
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
			DialTimeout:     cfg.Database.DialTimeout,
		}, logger)
		if err != nil {
			logger.Error("database connection failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := repository.HealthCheck(ctx, pool, cfg.Database.DialTimeout, logger); err != nil {
			logger.Error("database health check failed", "error", err)
			os.Exit(1)
		}
		reports = repository.NewPGReportStore(pool, logger)
		terms = repository.NewPGTermSetStore(pool, logger)
	} else {
		logger.Warn("no DB_URL configured, using in-memory stores")
		reports = repository.NewMemoryReportStore()
		memTerms := repository.NewMemoryTermSetStore()
		if cfg.Extraction.MockMode {
			seedDemoTerms(memTerms)
		}
		terms = memTerms
	}

	var analyzer extract.Analyzer
	if cfg.Extraction.MockMode {
		logger.Warn("extraction mock mode enabled, no live model calls will be made")
		analyzer = extract.NewMockAnalyzer(logger)
	} else {
		analyzer = openai.NewClient(openai.Config{
			APIKey:      cfg.Extraction.APIKey,
			BaseURL:     cfg.Extraction.BaseURL,
			Model:       cfg.Extraction.Model,
			Temperature: cfg.Extraction.Temperature,
			MaxTokens:   cfg.Extraction.MaxTokens,
			Timeout:     cfg.Extraction.Timeout,
		}, logger)
	}

	jobs := job.NewManager(logger, job.WithRetention(cfg.Jobs.RetentionTTL))
	defer jobs.Close()

	queue := job.NewQueue(logger,
		job.WithWorkers(cfg.Jobs.Workers),
		job.WithQueueSize(cfg.Jobs.QueueSize),
		job.WithTaskTimeout(cfg.Jobs.ProcessTimeout),
	)

	comparator := compare.New(compare.Tolerances{})
	processor := process.NewProcessor(logger, jobs, queue, analyzer, comparator, reports, terms, cfg.Extraction.Model)
	exporter := export.NewService(logger, jobs, queue, reports, export.Config{
		MaxRecords:       cfg.Export.MaxRecords,
		DefaultChunkSize: cfg.Export.DefaultChunk,
		MaxChunkSize:     cfg.Export.MaxChunk,
	})

	srv := server.New(logger, processor, exporter, jobs, reports)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(cfg.Server.Addr) }()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("server stopped unexpectedly", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	queue.Shutdown(shutdownCtx)
	logger.Info("shutdown complete")
}

// seedDemoTerms loads a small contract term set so mock-mode runs reconcile
// against something without a database.
func seedDemoTerms(store *repository.MemoryTermSetStore) {
	vendorID := uuid.MustParse("6f1c1f6e-3f44-4f5a-9c39-2f0e6cbb0a01")
	expires := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	store.Put(domain.ContractTermSet{
		ID:             uuid.MustParse("b3d0a7a2-55f1-4f7e-8a6a-64f4f4b1d9b2"),
		VendorID:       vendorID,
		Version:        1,
		PaymentTerms:   "Net 30",
		TaxRate:        decimal.NewFromFloat(0.085),
		EffectiveDate:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		ExpirationDate: &expires,
		CreatedAt:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Pricing: []domain.PricingTerm{
			{Item: "Industrial Solvent 55gal", UnitPrice: decimal.NewFromFloat(412.50)},
			{Item: "Safety Gloves (box)", UnitPrice: decimal.NewFromFloat(18.75)},
			{Item: "Steel Brackets 4in", UnitPrice: decimal.NewFromFloat(3.20)},
		},
		Discounts: []domain.DiscountTerm{
			{ThresholdAmount: decimal.NewFromInt(5000), DiscountPct: decimal.NewFromInt(5)},
		},
	})
}
