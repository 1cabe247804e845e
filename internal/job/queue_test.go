package job

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vendorlens/reconciler/internal/common"
)

func TestQueueRunsTasks(t *testing.T) {
	q := NewQueue(nil, WithWorkers(2), WithQueueSize(8))

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		err := q.Enqueue(context.Background(), Task{
			JobID: uuid.New(),
			Run: func(context.Context) error {
				ran.Add(1)
				return nil
			},
		})
		if err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)
	if got := ran.Load(); got != 5 {
		t.Fatalf("ran %d tasks, want 5", got)
	}
}

func TestQueueShutdownStopsIntake(t *testing.T) {
	q := NewQueue(nil, WithWorkers(1))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	q.Shutdown(ctx)

	// Enqueue after shutdown is rejected so the caller can fail its job.
	var ran atomic.Bool
	err := q.Enqueue(context.Background(), Task{
		JobID: uuid.New(),
		Run: func(context.Context) error {
			ran.Store(true)
			return nil
		},
	})
	if !errors.Is(err, common.ErrInternal) {
		t.Fatalf("Enqueue after shutdown = %v, want internal error", err)
	}
	if ran.Load() {
		t.Fatal("task ran after shutdown")
	}
}

func TestQueueTaskTimeout(t *testing.T) {
	q := NewQueue(nil, WithWorkers(1), WithTaskTimeout(20*time.Millisecond))

	got := make(chan error, 1)
	err := q.Enqueue(context.Background(), Task{
		JobID: uuid.New(),
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			got <- ctx.Err()
			return ctx.Err()
		},
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	select {
	case err := <-got:
		if err != context.DeadlineExceeded {
			t.Fatalf("ctx err = %v, want deadline exceeded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("task context never expired")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	q.Shutdown(ctx)
}
