package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

var (
	// ErrQueueFull is returned when the job buffer has no room
	ErrQueueFull = errors.New("job queue is full")
	// ErrStopped is returned after Stop
	ErrStopped = errors.New("worker pool stopped")
)

// Runner processes one job and records terminal failures
type Runner interface {
	Run(ctx context.Context, job *Job) error
	Fail(ctx context.Context, job *Job, err error)
}

// WorkerPool manages a pool of workers processing pipeline jobs
type WorkerPool struct {
	jobQueue    chan *Job
	workerCount int
	runner      Runner
	logger      *slog.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(workerCount, queueSize int, runner Runner, logger *slog.Logger) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		jobQueue:    make(chan *Job, queueSize),
		workerCount: workerCount,
		runner:      runner,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start initializes all workers
func (wp *WorkerPool) Start() {
	wp.logger.Info("starting worker pool", "workers", wp.workerCount)
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Enqueue adds a job to the queue without blocking
func (wp *WorkerPool) Enqueue(job *Job) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.stopped {
		return ErrStopped
	}
	select {
	case wp.jobQueue <- job:
		wp.logger.Debug("job enqueued", "job_id", job.ID, "filename", job.Filename)
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop refuses new jobs and waits for queued ones to drain. When ctx ends
// first, in-flight jobs are cancelled.
func (wp *WorkerPool) Stop(ctx context.Context) error {
	wp.mu.Lock()
	if !wp.stopped {
		wp.stopped = true
		close(wp.jobQueue)
	}
	wp.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.cancel()
		return nil
	case <-ctx.Done():
		wp.cancel()
		<-done
		return ctx.Err()
	}
}

// worker processes jobs from the queue
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	wp.logger.Debug("worker started", "worker", id)

	for job := range wp.jobQueue {
		wp.process(id, job)
	}
}

func (wp *WorkerPool) process(id int, job *Job) {
	defer func() {
		if r := recover(); r != nil {
			wp.logger.Error("worker panic",
				"worker", id,
				"job_id", job.ID,
				"panic", r,
				"stack", string(debug.Stack()))
			wp.runner.Fail(wp.ctx, job, types.E(types.KindUnknown, "worker", fmt.Errorf("panic: %v", r)))
		}
	}()

	if err := wp.runner.Run(wp.ctx, job); err != nil {
		wp.logger.Debug("job ended with error", "worker", id, "job_id", job.ID, "error", err)
	}
}
