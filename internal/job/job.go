package job

import (
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes the two flows sharing the engine.
type Kind string

const (
	KindDocumentProcessing Kind = "document_processing"
	KindBulkExport         Kind = "bulk_export"
)

// Status is the job lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transitions are legal.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// StepStatus is the per-step state.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepError      StepStatus = "error"
)

// StepDef declares one step of a job's sequence up front.
type StepDef struct {
	ID               string
	Name             string
	EstimatedSeconds int
	ModelBacked      bool // completion attaches a confidence score
}

// Step is the live state of one declared step.
type Step struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Status     StepStatus `json:"status"`
	Weight     int        `json:"-"`
	Confidence *float64   `json:"confidence,omitempty"`
	Detail     string     `json:"detail,omitempty"`
}

// Job is one asynchronous, progress-tracked, cancellable unit of work.
// Mutation goes through the Manager; readers get copies via Snapshot.
type Job struct {
	ID               uuid.UUID `json:"id"`
	Kind             Kind      `json:"kind"`
	Status           Status    `json:"status"`
	Steps            []Step    `json:"steps"`
	ProgressPct      int       `json:"progress_pct"`
	ProcessedRecords int       `json:"processed_records"`
	TotalRecords     int       `json:"total_records"`
	Error            string    `json:"error,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	// Result holds a produced artifact (export file) until the job is pruned.
	Result            []byte `json:"-"`
	ResultName        string `json:"result_name,omitempty"`
	ResultContentType string `json:"-"`
}

func (j *Job) clone() Job {
	cp := *j
	cp.Steps = make([]Step, len(j.Steps))
	copy(cp.Steps, j.Steps)
	for i, s := range j.Steps {
		if s.Confidence != nil {
			c := *s.Confidence
			cp.Steps[i].Confidence = &c
		}
	}
	// The artifact is not copied into snapshots; download goes through
	// Manager.Artifact.
	cp.Result = nil
	return cp
}

func (j *Job) stepIndex(stepID string) int {
	for i := range j.Steps {
		if j.Steps[i].ID == stepID {
			return i
		}
	}
	return -1
}
