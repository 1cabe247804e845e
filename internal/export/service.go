package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/vendorlens/reconciler/internal/common"
	"github.com/vendorlens/reconciler/internal/job"
	"github.com/vendorlens/reconciler/internal/repository"
)

const (
	StepValidate = "validate"
	StepChunk    = "chunk"
	StepWrite    = "write"
	StepFinalize = "finalize"
)

var exportSteps = []job.StepDef{
	{ID: StepValidate, Name: "Validating export request", EstimatedSeconds: 1},
	{ID: StepChunk, Name: "Counting matching records", EstimatedSeconds: 2},
	{ID: StepWrite, Name: "Writing records", EstimatedSeconds: 20},
	{ID: StepFinalize, Name: "Finalizing export file", EstimatedSeconds: 2},
}

// Filter narrows which reports an export includes. All fields are optional;
// dates use the YYYY-MM-DD form the reports themselves carry.
type Filter struct {
	From       string `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To         string `json:"to" validate:"omitempty,datetime=2006-01-02"`
	VendorID   string `json:"vendor_id" validate:"omitempty,uuid"`
	Priority   string `json:"priority" validate:"omitempty,oneof=high medium low none"`
	Relevance  string `json:"relevance" validate:"omitempty,oneof=pending relevant not_relevant"`
	ReadStatus string `json:"read_status" validate:"omitempty,oneof=unread read"`
}

// Request describes one bulk export.
type Request struct {
	Filter    Filter `json:"filter"`
	ChunkSize int    `json:"chunk_size" validate:"omitempty,min=1"`
	Format    Format `json:"format" validate:"omitempty,oneof=xlsx csv"`
}

// Config bounds export size and chunking.
type Config struct {
	MaxRecords       int
	DefaultChunkSize int
	MaxChunkSize     int
}

func (c Config) withDefaults() Config {
	if c.MaxRecords <= 0 {
		c.MaxRecords = 10000
	}
	if c.DefaultChunkSize <= 0 {
		c.DefaultChunkSize = 200
	}
	if c.MaxChunkSize <= 0 {
		c.MaxChunkSize = 1000
	}
	return c
}

// runArgs is everything needed to rerun an export after a failure.
type runArgs struct {
	filter repository.ReportFilter
	count  int
	chunk  int
	format Format
}

// Service runs bulk report exports as background jobs and attaches the
// produced file to the job for download.
type Service struct {
	logger   *slog.Logger
	jobs     *job.Manager
	queue    *job.Queue
	reports  repository.ReportStore
	validate *validator.Validate
	cfg      Config

	mu     sync.Mutex
	inputs map[uuid.UUID]runArgs
}

func NewService(logger *slog.Logger, jobs *job.Manager, queue *job.Queue, reports repository.ReportStore, cfg Config) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger:   logger,
		jobs:     jobs,
		queue:    queue,
		reports:  reports,
		validate: validator.New(),
		cfg:      cfg.withDefaults(),
		inputs:   make(map[uuid.UUID]runArgs),
	}
}

// StartJob validates the request and record count up front. Requests that
// match nothing, or more than the configured maximum, are rejected before any
// job is created.
func (s *Service) StartJob(ctx context.Context, req Request) (job.Job, error) {
	if err := s.validate.Struct(req); err != nil {
		return job.Job{}, common.ValidationErrorf("invalid export request: %v", err)
	}

	filter, err := s.storeFilter(req.Filter)
	if err != nil {
		return job.Job{}, err
	}

	count, err := s.reports.Count(ctx, filter)
	if err != nil {
		return job.Job{}, common.WrapError(err, "count reports")
	}
	if count == 0 {
		return job.Job{}, common.ValidationErrorf("no reports match the export filters")
	}
	if count > s.cfg.MaxRecords {
		return job.Job{}, common.ValidationErrorf("export matches %d reports, maximum is %d; narrow the filters", count, s.cfg.MaxRecords)
	}

	chunk := req.ChunkSize
	if chunk <= 0 {
		chunk = s.cfg.DefaultChunkSize
	}
	if chunk > s.cfg.MaxChunkSize {
		chunk = s.cfg.MaxChunkSize
	}

	id, err := s.jobs.Create(job.KindBulkExport, exportSteps)
	if err != nil {
		return job.Job{}, err
	}

	args := runArgs{filter: filter, count: count, chunk: chunk, format: req.Format}
	s.mu.Lock()
	s.inputs[id] = args
	s.mu.Unlock()

	if err := s.queue.Enqueue(ctx, job.Task{
		JobID:       id,
		SubmittedAt: time.Now().UTC(),
		Run: func(runCtx context.Context) error {
			return s.run(runCtx, id, args, true)
		},
	}); err != nil {
		s.abandon(id, "worker queue unavailable")
		return job.Job{}, err
	}

	s.logger.Info("export.job.queued", "job_id", id, "records", count, "chunk_size", chunk, "format", req.Format)
	return s.jobs.Snapshot(id)
}

// Retry resets a failed export and queues it to run again with the same
// filters. The record count is not re-evaluated.
func (s *Service) Retry(ctx context.Context, jobID uuid.UUID) (job.Job, error) {
	s.mu.Lock()
	args, ok := s.inputs[jobID]
	s.mu.Unlock()
	if !ok {
		return job.Job{}, common.JobStateErrorf("job %s input is no longer available for retry", jobID)
	}

	if err := s.jobs.Retry(jobID); err != nil {
		return job.Job{}, err
	}
	if err := s.queue.Enqueue(ctx, job.Task{
		JobID:       jobID,
		SubmittedAt: time.Now().UTC(),
		Run: func(runCtx context.Context) error {
			return s.run(runCtx, jobID, args, false)
		},
	}); err != nil {
		s.abandon(jobID, "worker queue unavailable")
		return job.Job{}, err
	}
	s.logger.Info("export.job.retry_queued", "job_id", jobID)
	return s.jobs.Snapshot(jobID)
}

// abandon fails a job that could not be handed to the worker pool so it does
// not linger pending forever. A job from the retry path is already processing.
func (s *Service) abandon(jobID uuid.UUID, reason string) {
	if err := s.jobs.Start(jobID); err != nil && !errors.Is(err, common.ErrJobState) {
		s.logger.Error("export.job.abandon", "job_id", jobID, "error", err)
		return
	}
	if err := s.jobs.FailStep(jobID, StepValidate, reason); err != nil {
		s.logger.Error("export.job.abandon", "job_id", jobID, "error", err)
	}
	s.mu.Lock()
	delete(s.inputs, jobID)
	s.mu.Unlock()
}

// run executes the step sequence. A fresh job still needs starting; a retried
// job is already back in the processing state.
func (s *Service) run(ctx context.Context, jobID uuid.UUID, args runArgs, fresh bool) error {
	filter, count, chunk, format := args.filter, args.count, args.chunk, args.format

	if fresh {
		if err := s.jobs.Start(jobID); err != nil {
			if errors.Is(err, common.ErrJobState) {
				s.logger.Info("export.job.skipped", "job_id", jobID, "reason", "not startable")
				return nil
			}
			return err
		}
	}

	if err := s.jobs.CompleteStep(jobID, StepValidate, nil, fmt.Sprintf("filters validated, format %s", formatName(format))); err != nil {
		return s.stepHalt(jobID, StepValidate, err)
	}

	if err := s.jobs.SetTotalRecords(jobID, count); err != nil {
		return s.stepHalt(jobID, StepChunk, err)
	}
	chunks := (count + chunk - 1) / chunk
	if err := s.jobs.CompleteStep(jobID, StepChunk, nil, fmt.Sprintf("%d records in %d chunks", count, chunks)); err != nil {
		return s.stepHalt(jobID, StepChunk, err)
	}

	w, err := newWriter(format)
	if err != nil {
		return s.failJob(jobID, StepWrite, err)
	}

	processed := 0
	for offset := 0; offset < count; offset += chunk {
		batch, err := s.reports.List(ctx, filter, chunk, offset)
		if err != nil {
			return s.failJob(jobID, StepWrite, common.WrapError(err, "list reports"))
		}
		if len(batch) == 0 {
			break
		}
		for _, r := range batch {
			if err := w.add(r); err != nil {
				return s.failJob(jobID, StepWrite, common.WrapError(err, "write row"))
			}
		}
		processed += len(batch)
		if err := s.jobs.MarkRecordProgress(jobID, processed); err != nil {
			return s.stepHalt(jobID, StepWrite, err)
		}
	}
	if err := s.jobs.CompleteStep(jobID, StepWrite, nil, fmt.Sprintf("%d records written", processed)); err != nil {
		return s.stepHalt(jobID, StepWrite, err)
	}

	data, name, contentType, err := w.finish()
	if err != nil {
		return s.failJob(jobID, StepFinalize, common.WrapError(err, "finalize file"))
	}
	if err := s.jobs.AttachResult(jobID, name, contentType, data); err != nil {
		return s.stepHalt(jobID, StepFinalize, err)
	}
	if err := s.jobs.CompleteStep(jobID, StepFinalize, nil, fmt.Sprintf("%s (%d bytes)", name, len(data))); err != nil {
		return s.stepHalt(jobID, StepFinalize, err)
	}

	s.mu.Lock()
	delete(s.inputs, jobID)
	s.mu.Unlock()

	s.logger.Info("export.job.completed", "job_id", jobID, "records", processed, "file", name, "bytes", len(data))
	return nil
}

func (s *Service) storeFilter(f Filter) (repository.ReportFilter, error) {
	var out repository.ReportFilter
	if f.From != "" {
		t, err := time.Parse("2006-01-02", f.From)
		if err != nil {
			return out, common.ValidationErrorf("invalid from date %q", f.From)
		}
		out.From = &t
	}
	if f.To != "" {
		t, err := time.Parse("2006-01-02", f.To)
		if err != nil {
			return out, common.ValidationErrorf("invalid to date %q", f.To)
		}
		end := t.Add(24*time.Hour - time.Nanosecond)
		out.To = &end
	}
	if out.From != nil && out.To != nil && out.From.After(*out.To) {
		return out, common.ValidationErrorf("from date is after to date")
	}
	if f.VendorID != "" {
		id, err := uuid.Parse(f.VendorID)
		if err != nil {
			return out, common.ValidationErrorf("invalid vendor id %q", f.VendorID)
		}
		out.VendorID = &id
	}
	out.Priority = f.Priority
	out.Relevance = f.Relevance
	out.ReadStatus = f.ReadStatus
	return out, nil
}

// stepHalt handles a rejected transition mid-run. A state error means the job
// was cancelled, so the partially built file is discarded without failing.
func (s *Service) stepHalt(jobID uuid.UUID, stepID string, err error) error {
	if errors.Is(err, common.ErrJobState) {
		s.logger.Info("export.job.result_discarded", "job_id", jobID, "step", stepID)
		return nil
	}
	return err
}

func (s *Service) failJob(jobID uuid.UUID, stepID string, cause error) error {
	s.logger.Error("export.step.failed", "job_id", jobID, "step", stepID, "error", cause)
	if err := s.jobs.FailStep(jobID, stepID, cause.Error()); err != nil {
		if errors.Is(err, common.ErrJobState) {
			return nil
		}
		return err
	}
	return cause
}

func formatName(f Format) string {
	if f == "" {
		return string(FormatXLSX)
	}
	return string(f)
}
