package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vendorlens/reconciler/internal/common"
	"github.com/vendorlens/reconciler/internal/compare"
	"github.com/vendorlens/reconciler/internal/domain"
	"github.com/vendorlens/reconciler/internal/extract"
	"github.com/vendorlens/reconciler/internal/job"
	"github.com/vendorlens/reconciler/internal/report"
	"github.com/vendorlens/reconciler/internal/repository"
)

const (
	StepUpload    = "upload"
	StepExtract   = "extract"
	StepReconcile = "reconcile"
)

var processingSteps = []job.StepDef{
	{ID: StepUpload, Name: "Uploading document", EstimatedSeconds: 2},
	{ID: StepExtract, Name: "Extracting invoice data", EstimatedSeconds: 30, ModelBacked: true},
	{ID: StepReconcile, Name: "Reconciling against contract terms", EstimatedSeconds: 5},
}

var allowedContentTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/webp":      true,
	"application/pdf": true,
}

// Request describes one invoice document to run through the pipeline.
type Request struct {
	Image       []byte
	Filename    string
	ContentType string
	VendorID    uuid.UUID
	TermSetID   *uuid.UUID
}

// Processor runs the upload, extract and reconcile steps for a document
// against the job engine and persists the resulting report.
type Processor struct {
	logger     *slog.Logger
	jobs       *job.Manager
	queue      *job.Queue
	analyzer   extract.Analyzer
	comparator *compare.Comparator
	reports    repository.ReportStore
	terms      repository.TermSetStore
	modelName  string

	// inputs retains the original document per job so a failed job can be
	// retried without re-uploading. Entries are dropped on success.
	mu     sync.Mutex
	inputs map[uuid.UUID]Request
}

func NewProcessor(
	logger *slog.Logger,
	jobs *job.Manager,
	queue *job.Queue,
	analyzer extract.Analyzer,
	comparator *compare.Comparator,
	reports repository.ReportStore,
	terms repository.TermSetStore,
	modelName string,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		logger:     logger,
		jobs:       jobs,
		queue:      queue,
		analyzer:   analyzer,
		comparator: comparator,
		reports:    reports,
		terms:      terms,
		modelName:  modelName,
		inputs:     make(map[uuid.UUID]Request),
	}
}

// StartJob validates the request, registers a job and queues it for
// background execution. The returned snapshot is in the pending state.
func (p *Processor) StartJob(ctx context.Context, req Request) (job.Job, error) {
	if len(req.Image) == 0 {
		return job.Job{}, common.ValidationErrorf("document is empty")
	}
	if strings.TrimSpace(req.Filename) == "" {
		return job.Job{}, common.ValidationErrorf("filename is required")
	}
	if !allowedContentTypes[req.ContentType] {
		return job.Job{}, common.ValidationErrorf("unsupported content type %q", req.ContentType)
	}
	if req.VendorID == uuid.Nil && req.TermSetID == nil {
		return job.Job{}, common.ValidationErrorf("vendor id or term set id is required")
	}

	id, err := p.jobs.Create(job.KindDocumentProcessing, processingSteps)
	if err != nil {
		return job.Job{}, err
	}

	p.mu.Lock()
	p.inputs[id] = req
	p.mu.Unlock()

	if err := p.queue.Enqueue(ctx, job.Task{
		JobID:       id,
		SubmittedAt: time.Now().UTC(),
		Run: func(runCtx context.Context) error {
			return p.run(runCtx, id, req)
		},
	}); err != nil {
		p.abandon(id, "worker queue unavailable")
		return job.Job{}, err
	}

	p.logger.Info("process.job.queued", "job_id", id, "filename", req.Filename, "vendor_id", req.VendorID)
	return p.jobs.Snapshot(id)
}

// Retry resets a failed job and queues it to run again with its original
// document. The input is only retained until the job first succeeds.
func (p *Processor) Retry(ctx context.Context, jobID uuid.UUID) (job.Job, error) {
	p.mu.Lock()
	req, ok := p.inputs[jobID]
	p.mu.Unlock()
	if !ok {
		return job.Job{}, common.JobStateErrorf("job %s input is no longer available for retry", jobID)
	}

	if err := p.jobs.Retry(jobID); err != nil {
		return job.Job{}, err
	}
	if err := p.queue.Enqueue(ctx, job.Task{
		JobID:       jobID,
		SubmittedAt: time.Now().UTC(),
		Run: func(runCtx context.Context) error {
			return p.rerun(runCtx, jobID, req)
		},
	}); err != nil {
		p.abandon(jobID, "worker queue unavailable")
		return job.Job{}, err
	}
	p.logger.Info("process.job.retry_queued", "job_id", jobID)
	return p.jobs.Snapshot(jobID)
}

// abandon fails a job that could not be handed to the worker pool so it does
// not linger pending forever. A job from the retry path is already processing.
func (p *Processor) abandon(jobID uuid.UUID, reason string) {
	if err := p.jobs.Start(jobID); err != nil && !errors.Is(err, common.ErrJobState) {
		p.logger.Error("process.job.abandon", "job_id", jobID, "error", err)
		return
	}
	if err := p.jobs.FailStep(jobID, StepUpload, reason); err != nil {
		p.logger.Error("process.job.abandon", "job_id", jobID, "error", err)
	}
	p.mu.Lock()
	delete(p.inputs, jobID)
	p.mu.Unlock()
}

func (p *Processor) run(ctx context.Context, jobID uuid.UUID, req Request) error {
	if err := p.jobs.Start(jobID); err != nil {
		// Start fails when the job was cancelled while queued.
		if errors.Is(err, common.ErrJobState) {
			p.logger.Info("process.job.skipped", "job_id", jobID, "reason", "not startable")
			return nil
		}
		return err
	}
	return p.execute(ctx, jobID, req)
}

// rerun assumes Retry already moved the job back into the processing state.
func (p *Processor) rerun(ctx context.Context, jobID uuid.UUID, req Request) error {
	return p.execute(ctx, jobID, req)
}

func (p *Processor) execute(ctx context.Context, jobID uuid.UUID, req Request) error {
	startedAt := time.Now().UTC()

	// Step 1: upload. Bytes are already in hand, this step records receipt.
	if err := p.jobs.CompleteStep(jobID, StepUpload, nil, fmt.Sprintf("received %s (%d bytes)", req.Filename, len(req.Image))); err != nil {
		return p.stepHalt(jobID, StepUpload, err)
	}

	terms, err := p.loadTerms(ctx, req)
	if err != nil {
		return p.failJob(jobID, StepExtract, err)
	}

	// Step 2: extract.
	extraction, err := p.analyzer.AnalyzeInvoice(ctx, extract.Request{
		Image:       req.Image,
		Filename:    req.Filename,
		ContentType: req.ContentType,
		Terms:       &terms,
	})
	if err != nil {
		return p.failJob(jobID, StepExtract, err)
	}
	conf := extraction.Invoice.ExtractionConfidence
	if err := p.jobs.CompleteStep(jobID, StepExtract, &conf, fmt.Sprintf("extracted invoice %s", extraction.Invoice.InvoiceNumber)); err != nil {
		return p.stepHalt(jobID, StepExtract, err)
	}

	// Step 3: reconcile and persist.
	result := p.comparator.Compare(extraction.Invoice, terms)
	rpt := report.Build(uuid.New(), extraction.Invoice, terms, result, report.Metadata{
		Model:          p.model(extraction.Model),
		ProcessingTime: time.Since(startedAt),
		Rationale:      extraction.Rationale,
	})
	if err := p.reports.Save(ctx, rpt); err != nil {
		return p.failJob(jobID, StepReconcile, common.WrapError(err, "save report"))
	}
	if err := p.jobs.CompleteStep(jobID, StepReconcile, nil, fmt.Sprintf("report %s: %d discrepancies", rpt.ID, len(rpt.Discrepancies))); err != nil {
		return p.stepHalt(jobID, StepReconcile, err)
	}

	p.mu.Lock()
	delete(p.inputs, jobID)
	p.mu.Unlock()

	p.logger.Info("process.job.completed",
		"job_id", jobID,
		"report_id", rpt.ID,
		"discrepancies", len(rpt.Discrepancies),
		"duration", time.Since(startedAt))
	return nil
}

func (p *Processor) loadTerms(ctx context.Context, req Request) (domain.ContractTermSet, error) {
	var (
		ts  *domain.ContractTermSet
		err error
	)
	if req.TermSetID != nil {
		ts, err = p.terms.GetByID(ctx, *req.TermSetID)
	} else {
		ts, err = p.terms.LoadForVendor(ctx, req.VendorID)
	}
	if err != nil {
		return domain.ContractTermSet{}, common.WrapError(err, "load contract terms")
	}
	return *ts, nil
}

// stepHalt handles a CompleteStep rejection. A state error means the job
// was cancelled mid-flight, so the result is discarded without failing.
func (p *Processor) stepHalt(jobID uuid.UUID, stepID string, err error) error {
	if errors.Is(err, common.ErrJobState) {
		p.logger.Info("process.job.result_discarded", "job_id", jobID, "step", stepID)
		return nil
	}
	return err
}

func (p *Processor) failJob(jobID uuid.UUID, stepID string, cause error) error {
	p.logger.Error("process.step.failed", "job_id", jobID, "step", stepID, "error", cause, "retryable", common.IsRetryable(cause))
	if err := p.jobs.FailStep(jobID, stepID, cause.Error()); err != nil {
		if errors.Is(err, common.ErrJobState) {
			return nil
		}
		return err
	}
	return cause
}

func (p *Processor) model(fromExtraction string) string {
	if fromExtraction != "" {
		return fromExtraction
	}
	return p.modelName
}
