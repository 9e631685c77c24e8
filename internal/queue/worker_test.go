package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/codebuildervaibhav/meeting-insights/internal/logger"
)

type runnerFunc struct {
	mu     sync.Mutex
	run    func(ctx context.Context, job *Job) error
	failed []string
}

func (r *runnerFunc) Run(ctx context.Context, job *Job) error { return r.run(ctx, job) }

func (r *runnerFunc) Fail(ctx context.Context, job *Job, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, job.ID)
}

func TestWorkerPoolProcessesAndDrains(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	r := &runnerFunc{run: func(ctx context.Context, job *Job) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, job.ID)
		return nil
	}}

	wp := NewWorkerPool(2, 10, r, logger.Discard())
	wp.Start()
	for _, id := range []string{"a", "b", "c"} {
		if err := wp.Enqueue(&Job{ID: id}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := wp.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if len(seen) != 3 {
		t.Fatalf("processed %v", seen)
	}
	if err := wp.Enqueue(&Job{ID: "late"}); err != ErrStopped {
		t.Fatalf("Enqueue after stop = %v", err)
	}
}

func TestWorkerPoolRecoversPanic(t *testing.T) {
	r := &runnerFunc{run: func(ctx context.Context, job *Job) error {
		if job.ID == "bad" {
			panic("boom")
		}
		return nil
	}}

	wp := NewWorkerPool(1, 10, r, logger.Discard())
	wp.Start()
	_ = wp.Enqueue(&Job{ID: "bad"})
	_ = wp.Enqueue(&Job{ID: "good"})
	_ = wp.Stop(context.Background())

	if len(r.failed) != 1 || r.failed[0] != "bad" {
		t.Fatalf("failed = %v", r.failed)
	}
}

func TestWorkerPoolQueueFull(t *testing.T) {
	block := make(chan struct{})
	r := &runnerFunc{run: func(ctx context.Context, job *Job) error {
		<-block
		return nil
	}}

	// not started: nothing drains the buffer
	wp := NewWorkerPool(1, 1, r, logger.Discard())
	if err := wp.Enqueue(&Job{ID: "1"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := wp.Enqueue(&Job{ID: "2"}); err != ErrQueueFull {
		t.Fatalf("Enqueue = %v, want ErrQueueFull", err)
	}
	close(block)
	wp.Start()
	_ = wp.Stop(context.Background())
}
