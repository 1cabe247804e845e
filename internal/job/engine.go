package job

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vendorlens/reconciler/internal/common"
)

// Manager owns the live job registry and validates every state transition.
// Each job has a single logical writer; polling via Snapshot never mutates.
type Manager struct {
	mu     sync.RWMutex
	jobs   map[uuid.UUID]*Job
	log    *slog.Logger
	ttl    time.Duration
	closed bool
	done   chan struct{}
	once   sync.Once
}

type Option func(*Manager)

// WithRetention controls how long terminal jobs stay available for polling
// and artifact download before the janitor prunes them.
func WithRetention(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.ttl = d
		}
	}
}

func NewManager(log *slog.Logger, opts ...Option) *Manager {
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{
		jobs: make(map[uuid.UUID]*Job),
		log:  log,
		ttl:  time.Hour,
		done: make(chan struct{}),
	}
	for _, o := range opts {
		o(m)
	}
	go m.janitor()
	return m
}

// Create registers a new pending job with the declared step sequence.
func (m *Manager) Create(kind Kind, defs []StepDef) (uuid.UUID, error) {
	if len(defs) == 0 {
		return uuid.Nil, common.ValidationErrorf("job requires at least one step")
	}

	steps := make([]Step, 0, len(defs))
	for _, d := range defs {
		w := d.EstimatedSeconds
		if w <= 0 {
			w = 1
		}
		steps = append(steps, Step{ID: d.ID, Name: d.Name, Status: StepPending, Weight: w})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return uuid.Nil, common.JobStateErrorf("manager is shut down")
	}

	now := time.Now().UTC()
	j := &Job{
		ID:        uuid.New(),
		Kind:      kind,
		Status:    StatusPending,
		Steps:     steps,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.jobs[j.ID] = j
	m.log.Info("job.created", "job_id", j.ID, "kind", kind, "steps", len(steps))
	return j.ID, nil
}

// Start moves a pending job into processing and activates its first step.
func (m *Manager) Start(id uuid.UUID) error {
	return m.mutate(id, func(j *Job) error {
		if j.Status != StatusPending {
			return common.JobStateErrorf("cannot start job in status %s", j.Status)
		}
		j.Status = StatusProcessing
		j.Steps[0].Status = StepInProgress
		m.log.Info("job.started", "job_id", j.ID, "kind", j.Kind)
		return nil
	})
}

// CompleteStep finishes the given in-progress step, attaches a confidence for
// model-backed steps, advances progress and activates the next step. The last
// step completing completes the job.
func (m *Manager) CompleteStep(id uuid.UUID, stepID string, confidence *float64, detail string) error {
	return m.mutate(id, func(j *Job) error {
		if j.Status != StatusProcessing {
			return common.JobStateErrorf("cannot complete step on job in status %s", j.Status)
		}
		i := j.stepIndex(stepID)
		if i < 0 {
			return common.JobStateErrorf("unknown step %q", stepID)
		}
		if j.Steps[i].Status != StepInProgress {
			return common.JobStateErrorf("step %q is %s, not in_progress", stepID, j.Steps[i].Status)
		}

		j.Steps[i].Status = StepCompleted
		j.Steps[i].Detail = detail
		if confidence != nil {
			c := *confidence
			j.Steps[i].Confidence = &c
		}

		if i == len(j.Steps)-1 {
			j.Status = StatusCompleted
			j.ProgressPct = 100
			m.log.Info("job.completed", "job_id", j.ID, "kind", j.Kind)
			return nil
		}
		j.Steps[i+1].Status = StepInProgress
		j.ProgressPct = maxInt(j.ProgressPct, stepProgress(j))
		m.log.Info("job.step.completed", "job_id", j.ID, "step", stepID, "progress_pct", j.ProgressPct)
		return nil
	})
}

// FailStep marks the given step failed and the whole job failed. Subsequent
// steps stay pending; they are never silently marked completed.
func (m *Manager) FailStep(id uuid.UUID, stepID, message string) error {
	return m.mutate(id, func(j *Job) error {
		if j.Status != StatusProcessing {
			return common.JobStateErrorf("cannot fail step on job in status %s", j.Status)
		}
		i := j.stepIndex(stepID)
		if i < 0 {
			return common.JobStateErrorf("unknown step %q", stepID)
		}
		if j.Steps[i].Status != StepInProgress {
			return common.JobStateErrorf("step %q is %s, not in_progress", stepID, j.Steps[i].Status)
		}
		j.Steps[i].Status = StepError
		j.Steps[i].Detail = message
		j.Status = StatusFailed
		j.Error = message
		m.log.Warn("job.failed", "job_id", j.ID, "step", stepID, "error", message)
		return nil
	})
}

// Cancel is only legal while the job is processing. The in-flight step is
// marked error with a cancellation detail; remaining steps stay pending.
// Irreversible: a cancelled job cannot be resumed or retried.
func (m *Manager) Cancel(id uuid.UUID) error {
	return m.mutate(id, func(j *Job) error {
		if j.Status != StatusProcessing {
			return common.JobStateErrorf("cannot cancel job in status %s", j.Status)
		}
		for i := range j.Steps {
			if j.Steps[i].Status == StepInProgress {
				j.Steps[i].Status = StepError
				j.Steps[i].Detail = "cancelled"
			}
		}
		j.Status = StatusCancelled
		m.log.Info("job.cancelled", "job_id", j.ID, "kind", j.Kind)
		return nil
	})
}

// Retry is only legal on a failed job. It restarts the whole step sequence
// because step outputs are not individually persisted.
func (m *Manager) Retry(id uuid.UUID) error {
	return m.mutate(id, func(j *Job) error {
		if j.Status != StatusFailed {
			return common.JobStateErrorf("cannot retry job in status %s", j.Status)
		}
		for i := range j.Steps {
			j.Steps[i].Status = StepPending
			j.Steps[i].Confidence = nil
			j.Steps[i].Detail = ""
		}
		j.Status = StatusProcessing
		j.Steps[0].Status = StepInProgress
		j.ProgressPct = 0
		j.ProcessedRecords = 0
		j.Error = ""
		j.Result = nil
		j.ResultName = ""
		j.ResultContentType = ""
		m.log.Info("job.retried", "job_id", j.ID, "kind", j.Kind)
		return nil
	})
}

// SetTotalRecords declares the record universe for count-based progress.
func (m *Manager) SetTotalRecords(id uuid.UUID, total int) error {
	return m.mutate(id, func(j *Job) error {
		if j.Status != StatusProcessing {
			return common.JobStateErrorf("cannot set totals on job in status %s", j.Status)
		}
		if total < 0 {
			return common.ValidationErrorf("total records must not be negative")
		}
		j.TotalRecords = total
		return nil
	})
}

// MarkRecordProgress advances count-based progress. Going backwards is
// rejected so observed progress stays monotonic.
func (m *Manager) MarkRecordProgress(id uuid.UUID, processed int) error {
	return m.mutate(id, func(j *Job) error {
		if j.Status != StatusProcessing {
			return common.JobStateErrorf("cannot mark progress on job in status %s", j.Status)
		}
		if processed < j.ProcessedRecords {
			return common.JobStateErrorf("record progress cannot move backwards (%d < %d)", processed, j.ProcessedRecords)
		}
		j.ProcessedRecords = processed
		if j.TotalRecords > 0 {
			j.ProgressPct = maxInt(j.ProgressPct, recordProgress(j))
		}
		return nil
	})
}

// AttachResult stores a produced artifact on the job for later download.
func (m *Manager) AttachResult(id uuid.UUID, name, contentType string, data []byte) error {
	return m.mutate(id, func(j *Job) error {
		if j.Status != StatusProcessing {
			return common.JobStateErrorf("cannot attach result to job in status %s", j.Status)
		}
		j.Result = data
		j.ResultName = name
		j.ResultContentType = contentType
		return nil
	})
}

// Snapshot returns a copy of the current job state. Idempotent; never mutates.
func (m *Manager) Snapshot(id uuid.UUID) (Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return Job{}, common.WrapError(common.ErrNotFound, "job "+id.String())
	}
	return j.clone(), nil
}

// Artifact returns a completed job's produced file.
func (m *Manager) Artifact(id uuid.UUID) (name, contentType string, data []byte, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return "", "", nil, common.WrapError(common.ErrNotFound, "job "+id.String())
	}
	if j.Status != StatusCompleted || len(j.Result) == 0 {
		return "", "", nil, common.JobStateErrorf("job %s has no artifact in status %s", id, j.Status)
	}
	return j.ResultName, j.ResultContentType, j.Result, nil
}

// Close stops accepting new jobs and stops the janitor.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.once.Do(func() { close(m.done) })
}

func (m *Manager) mutate(id uuid.UUID, fn func(*Job) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return common.WrapError(common.ErrNotFound, "job "+id.String())
	}
	if err := fn(j); err != nil {
		return err
	}
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// janitor prunes terminal jobs past the retention TTL so the registry and
// retained artifacts do not grow unboundedly.
func (m *Manager) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-m.ttl)
			m.mu.Lock()
			for id, j := range m.jobs {
				if j.Status.Terminal() && j.UpdatedAt.Before(cutoff) {
					delete(m.jobs, id)
					m.log.Debug("job.pruned", "job_id", id)
				}
			}
			m.mu.Unlock()
		}
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
