package job

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/vendorlens/reconciler/internal/common"
)

func threeEqualSteps() []StepDef {
	return []StepDef{
		{ID: "alpha", Name: "Alpha", EstimatedSeconds: 10},
		{ID: "beta", Name: "Beta", EstimatedSeconds: 10},
		{ID: "gamma", Name: "Gamma", EstimatedSeconds: 10},
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(nil)
	t.Cleanup(m.Close)
	return m
}

func mustCreate(t *testing.T, m *Manager, defs []StepDef) uuid.UUID {
	t.Helper()
	id, err := m.Create(KindDocumentProcessing, defs)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return id
}

func snapshot(t *testing.T, m *Manager, id uuid.UUID) Job {
	t.Helper()
	j, err := m.Snapshot(id)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	return j
}

func TestCreateRequiresSteps(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Create(KindDocumentProcessing, nil); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestStepProgressIsWeighted(t *testing.T) {
	m := newTestManager(t)
	id := mustCreate(t, m, threeEqualSteps())

	if err := m.Start(id); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := snapshot(t, m, id); got.Status != StatusProcessing || got.ProgressPct != 0 {
		t.Fatalf("after start: status=%s progress=%d", got.Status, got.ProgressPct)
	}

	// One of three equal steps done: floor(100/3).
	if err := m.CompleteStep(id, "alpha", nil, ""); err != nil {
		t.Fatalf("CompleteStep alpha: %v", err)
	}
	if got := snapshot(t, m, id); got.ProgressPct != 33 {
		t.Fatalf("after step 1: progress=%d, want 33", got.ProgressPct)
	}

	if err := m.CompleteStep(id, "beta", nil, ""); err != nil {
		t.Fatalf("CompleteStep beta: %v", err)
	}
	if got := snapshot(t, m, id); got.ProgressPct != 66 {
		t.Fatalf("after step 2: progress=%d, want 66", got.ProgressPct)
	}

	if err := m.CompleteStep(id, "gamma", nil, ""); err != nil {
		t.Fatalf("CompleteStep gamma: %v", err)
	}
	got := snapshot(t, m, id)
	if got.Status != StatusCompleted || got.ProgressPct != 100 {
		t.Fatalf("after last step: status=%s progress=%d", got.Status, got.ProgressPct)
	}
}

func TestCompleteStepActivatesNext(t *testing.T) {
	m := newTestManager(t)
	id := mustCreate(t, m, threeEqualSteps())
	if err := m.Start(id); err != nil {
		t.Fatalf("Start: %v", err)
	}

	conf := 0.87
	if err := m.CompleteStep(id, "alpha", &conf, "done"); err != nil {
		t.Fatalf("CompleteStep: %v", err)
	}
	got := snapshot(t, m, id)
	if got.Steps[0].Status != StepCompleted {
		t.Errorf("step 0 = %s, want completed", got.Steps[0].Status)
	}
	if got.Steps[0].Confidence == nil || *got.Steps[0].Confidence != 0.87 {
		t.Errorf("step 0 confidence = %v, want 0.87", got.Steps[0].Confidence)
	}
	if got.Steps[0].Detail != "done" {
		t.Errorf("step 0 detail = %q", got.Steps[0].Detail)
	}
	if got.Steps[1].Status != StepInProgress {
		t.Errorf("step 1 = %s, want in_progress", got.Steps[1].Status)
	}
	if got.Steps[2].Status != StepPending {
		t.Errorf("step 2 = %s, want pending", got.Steps[2].Status)
	}
}

func TestCompleteStepOutOfOrderRejected(t *testing.T) {
	m := newTestManager(t)
	id := mustCreate(t, m, threeEqualSteps())
	if err := m.Start(id); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := m.CompleteStep(id, "beta", nil, ""); !errors.Is(err, common.ErrJobState) {
		t.Fatalf("err = %v, want job state error", err)
	}
	// Rejected transition leaves state unchanged.
	got := snapshot(t, m, id)
	if got.Steps[1].Status != StepPending || got.ProgressPct != 0 {
		t.Fatalf("state mutated by rejected transition: %+v", got.Steps)
	}
}

func TestCancelMidStep(t *testing.T) {
	m := newTestManager(t)
	id := mustCreate(t, m, threeEqualSteps())
	if err := m.Start(id); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.CompleteStep(id, "alpha", nil, ""); err != nil {
		t.Fatalf("CompleteStep: %v", err)
	}

	if err := m.Cancel(id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	got := snapshot(t, m, id)
	if got.Status != StatusCancelled {
		t.Fatalf("status = %s, want cancelled", got.Status)
	}
	if got.Steps[0].Status != StepCompleted {
		t.Errorf("finished step rewritten to %s", got.Steps[0].Status)
	}
	if got.Steps[1].Status != StepError || got.Steps[1].Detail != "cancelled" {
		t.Errorf("in-flight step = %s/%q, want error/cancelled", got.Steps[1].Status, got.Steps[1].Detail)
	}
	if got.Steps[2].Status != StepPending {
		t.Errorf("unstarted step = %s, want pending", got.Steps[2].Status)
	}

	// Cancelled is terminal: no completion, no retry, no second cancel.
	if err := m.CompleteStep(id, "beta", nil, ""); !errors.Is(err, common.ErrJobState) {
		t.Errorf("CompleteStep after cancel: err = %v, want job state error", err)
	}
	if err := m.Retry(id); !errors.Is(err, common.ErrJobState) {
		t.Errorf("Retry after cancel: err = %v, want job state error", err)
	}
	if err := m.Cancel(id); !errors.Is(err, common.ErrJobState) {
		t.Errorf("second Cancel: err = %v, want job state error", err)
	}
}

func TestCancelPendingRejected(t *testing.T) {
	m := newTestManager(t)
	id := mustCreate(t, m, threeEqualSteps())
	if err := m.Cancel(id); !errors.Is(err, common.ErrJobState) {
		t.Fatalf("err = %v, want job state error", err)
	}
}

func TestFailAndRetry(t *testing.T) {
	m := newTestManager(t)
	id := mustCreate(t, m, threeEqualSteps())
	if err := m.Start(id); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.CompleteStep(id, "alpha", nil, ""); err != nil {
		t.Fatalf("CompleteStep: %v", err)
	}
	if err := m.FailStep(id, "beta", "provider timeout"); err != nil {
		t.Fatalf("FailStep: %v", err)
	}

	got := snapshot(t, m, id)
	if got.Status != StatusFailed || got.Error != "provider timeout" {
		t.Fatalf("status=%s error=%q", got.Status, got.Error)
	}
	if got.Steps[1].Status != StepError {
		t.Errorf("failed step = %s, want error", got.Steps[1].Status)
	}
	if got.Steps[2].Status != StepPending {
		t.Errorf("later step = %s, want pending", got.Steps[2].Status)
	}

	// Retry restarts the whole sequence from a clean slate.
	if err := m.Retry(id); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	got = snapshot(t, m, id)
	if got.Status != StatusProcessing || got.ProgressPct != 0 || got.Error != "" {
		t.Fatalf("after retry: status=%s progress=%d error=%q", got.Status, got.ProgressPct, got.Error)
	}
	if got.Steps[0].Status != StepInProgress {
		t.Errorf("step 0 = %s, want in_progress", got.Steps[0].Status)
	}
	for i := 1; i < 3; i++ {
		if got.Steps[i].Status != StepPending {
			t.Errorf("step %d = %s, want pending", i, got.Steps[i].Status)
		}
	}
}

func TestRetryOnlyFromFailed(t *testing.T) {
	m := newTestManager(t)
	id := mustCreate(t, m, threeEqualSteps())

	if err := m.Retry(id); !errors.Is(err, common.ErrJobState) {
		t.Errorf("retry pending: err = %v, want job state error", err)
	}
	if err := m.Start(id); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Retry(id); !errors.Is(err, common.ErrJobState) {
		t.Errorf("retry processing: err = %v, want job state error", err)
	}
}

func TestRecordProgress(t *testing.T) {
	m := newTestManager(t)
	id := mustCreate(t, m, []StepDef{{ID: "write", Name: "Writing"}})
	if err := m.Start(id); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.SetTotalRecords(id, 400); err != nil {
		t.Fatalf("SetTotalRecords: %v", err)
	}

	if err := m.MarkRecordProgress(id, 200); err != nil {
		t.Fatalf("MarkRecordProgress: %v", err)
	}
	if got := snapshot(t, m, id); got.ProgressPct != 50 {
		t.Fatalf("progress = %d, want 50", got.ProgressPct)
	}

	// Progress never moves backwards.
	if err := m.MarkRecordProgress(id, 100); !errors.Is(err, common.ErrJobState) {
		t.Fatalf("backwards progress: err = %v, want job state error", err)
	}

	// All records written but the job is not terminal yet: clamp below 100.
	if err := m.MarkRecordProgress(id, 400); err != nil {
		t.Fatalf("MarkRecordProgress: %v", err)
	}
	if got := snapshot(t, m, id); got.ProgressPct != 99 {
		t.Fatalf("progress = %d, want 99 before completion", got.ProgressPct)
	}

	if err := m.CompleteStep(id, "write", nil, ""); err != nil {
		t.Fatalf("CompleteStep: %v", err)
	}
	if got := snapshot(t, m, id); got.Status != StatusCompleted || got.ProgressPct != 100 {
		t.Fatalf("status=%s progress=%d", got.Status, got.ProgressPct)
	}
}

func TestArtifactLifecycle(t *testing.T) {
	m := newTestManager(t)
	id := mustCreate(t, m, []StepDef{{ID: "write", Name: "Writing"}})
	if err := m.Start(id); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// No artifact while processing.
	if _, _, _, err := m.Artifact(id); !errors.Is(err, common.ErrJobState) {
		t.Fatalf("Artifact while processing: err = %v, want job state error", err)
	}

	payload := []byte("csv,data")
	if err := m.AttachResult(id, "out.csv", "text/csv", payload); err != nil {
		t.Fatalf("AttachResult: %v", err)
	}
	if err := m.CompleteStep(id, "write", nil, ""); err != nil {
		t.Fatalf("CompleteStep: %v", err)
	}

	name, contentType, data, err := m.Artifact(id)
	if err != nil {
		t.Fatalf("Artifact: %v", err)
	}
	if name != "out.csv" || contentType != "text/csv" || string(data) != "csv,data" {
		t.Fatalf("artifact = %s/%s/%q", name, contentType, data)
	}

	// Snapshots never carry the payload.
	if got := snapshot(t, m, id); got.Result != nil {
		t.Error("snapshot should not include the artifact bytes")
	}
}

func TestSnapshotUnknownJob(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Snapshot(uuid.New()); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}
