package cleanup

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

// AbandonedMessage is stored on rows the sweep gives up on
const AbandonedMessage = "processing abandoned"

// JobSweeper finds and settles jobs stuck in processing
type JobSweeper interface {
	ListStaleJobs(ctx context.Context, before time.Time) ([]*types.AudioJob, error)
	MarkAbandoned(ctx context.Context, id string, before time.Time, msg string) error
}

// Tracker reports jobs a worker is still running
type Tracker interface {
	Owns(jobID string) bool
	Prune() int
}

// Config wires a Scheduler
type Config struct {
	TempDir        string
	Interval       time.Duration
	MaxAge         time.Duration
	AbandonedAfter time.Duration
	Jobs           JobSweeper
	Tracker        Tracker
	Logger         *slog.Logger
}

// Scheduler removes old staged audio and settles abandoned jobs
type Scheduler struct {
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler creates a new cleanup scheduler
func NewScheduler(cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Minute
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 24 * time.Hour
	}
	if cfg.AbandonedAfter <= 0 {
		cfg.AbandonedAfter = 30 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Scheduler{
		cfg:      cfg,
		logger:   cfg.Logger,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Start runs one sweep immediately, then one per interval
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("running initial cleanup")
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.RunOnce(ctx)
			case <-s.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	s.logger.Info("cleanup scheduler started",
		"interval", s.cfg.Interval,
		"max_age", s.cfg.MaxAge,
		"abandoned_after", s.cfg.AbandonedAfter)
}

// Stop stops the cleanup scheduler
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	s.logger.Info("cleanup scheduler stopped")
}

// RunOnce performs every sweep once
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.cleanOldFiles()
	s.sweepAbandoned(ctx)
	if s.cfg.Tracker != nil {
		if n := s.cfg.Tracker.Prune(); n > 0 {
			s.logger.Debug("pruned settled progress entries", "count", n)
		}
	}
}

// sweepAbandoned moves rows stuck in processing to error unless a worker still owns them
func (s *Scheduler) sweepAbandoned(ctx context.Context) {
	if s.cfg.Jobs == nil {
		return
	}
	before := s.now().Add(-s.cfg.AbandonedAfter)

	stale, err := s.cfg.Jobs.ListStaleJobs(ctx, before)
	if err != nil {
		s.logger.Error("failed to list stale jobs", "error", err)
		return
	}

	for _, job := range stale {
		if s.cfg.Tracker != nil && s.cfg.Tracker.Owns(job.ID) {
			continue
		}
		if err := s.cfg.Jobs.MarkAbandoned(ctx, job.ID, before, AbandonedMessage); err != nil {
			s.logger.Warn("failed to mark job abandoned", "job_id", job.ID, "error", err)
			continue
		}
		s.logger.Info("marked job abandoned", "job_id", job.ID, "user_id", job.UserID, "updated_at", job.UpdatedAt)
	}
}

// cleanOldFiles removes files older than MaxAge from the temp directory
func (s *Scheduler) cleanOldFiles() {
	if s.cfg.TempDir == "" {
		return
	}
	now := s.now()

	var deletedCount int
	var deletedSize int64

	err := filepath.Walk(s.cfg.TempDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped
		}
		if info.IsDir() {
			return nil
		}

		age := now.Sub(info.ModTime())
		if age <= s.cfg.MaxAge {
			return nil
		}
		size := info.Size()
		if err := os.Remove(path); err != nil {
			s.logger.Warn("failed to delete old file", "path", path, "error", err)
			return nil
		}
		deletedCount++
		deletedSize += size
		s.logger.Debug("deleted old temp file",
			"file", filepath.Base(path),
			"age", age.Round(time.Hour),
			"size_kb", size/1024)
		return nil
	})
	if err != nil {
		s.logger.Error("error during cleanup", "error", err)
	}

	if deletedCount > 0 {
		s.logger.Info("cleanup complete",
			"files_deleted", deletedCount,
			"mb_freed", float64(deletedSize)/(1024*1024))
	}
}

// EnsureDir creates dir if it doesn't exist
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}
