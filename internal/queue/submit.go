package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/codebuildervaibhav/meeting-insights/internal/storage"
	"github.com/codebuildervaibhav/meeting-insights/internal/transcription"
	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

// Gate decides whether a user may start another transcription
type Gate interface {
	Allow(ctx context.Context, userID string) (types.Limit, error)
}

// JobWriter creates, resets and fails job rows
type JobWriter interface {
	CreateJob(ctx context.Context, job *types.AudioJob) error
	ResetJob(ctx context.Context, id string) error
	UpdateJobStatus(ctx context.Context, id string, status types.JobStatus, errMsg string) error
}

// Stager keeps uploaded audio on local disk until the pipeline is done with it
type Stager interface {
	StageAudio(jobID, filename string, r io.Reader, limit int64) (string, int64, error)
	Exists(path string) bool
	Remove(path string) error
}

// Enqueuer hands jobs to workers
type Enqueuer interface {
	Enqueue(job *Job) error
}

// Submission is one recording offered for processing
type Submission struct {
	UserID   string
	Filename string
	MIMEType string
	// Size is the declared size; -1 when unknown until the body is read
	Size   int64
	Body   io.Reader
	Retry  bool
	Source string
	// SourceRef names the remote file for imports; it replaces name and size
	// in the duplicate guard
	SourceRef string
}

// Submitter accepts recordings and starts the pipeline
type Submitter struct {
	validator transcription.Validator
	gate      Gate
	jobs      JobWriter
	stager    Stager
	tracker   *Tracker
	queue     Enqueuer
	logger    *slog.Logger
	probe     func(ctx context.Context, path string) string
	now       func() time.Time
}

// NewSubmitter creates a submitter
func NewSubmitter(validator transcription.Validator, gate Gate, jobs JobWriter, stager Stager, tracker *Tracker, queue Enqueuer, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{
		validator: validator,
		gate:      gate,
		jobs:      jobs,
		stager:    stager,
		tracker:   tracker,
		queue:     queue,
		logger:    logger,
		probe:     transcription.ProbeDuration,
		now:       time.Now,
	}
}

// Submit validates, gates and stages a recording, creates its row and enqueues it.
// Nothing is persisted when validation or the gate rejects the file.
func (s *Submitter) Submit(ctx context.Context, sub Submission) (*types.AudioJob, error) {
	mimeType := transcription.NormalizeMIME(sub.MIMEType)
	size := sub.Size
	if size < 0 {
		size = 0
	}
	if err := s.validator.Validate(size, mimeType); err != nil {
		return nil, types.E(types.KindValidation, "submit", err)
	}

	if _, err := s.gate.Allow(ctx, sub.UserID); err != nil {
		return nil, err
	}

	jobID := uuid.New().String()
	key := SubmissionKey(sub.UserID, sub.Filename, sub.Size, sub.SourceRef)
	if err := s.tracker.Begin(jobID, sub.UserID, key); err != nil {
		if errors.Is(err, ErrInFlight) {
			return nil, types.E(types.KindConflict, "submit", err)
		}
		return nil, err
	}

	path, n, err := s.stager.StageAudio(jobID, sub.Filename, sub.Body, s.validator.MaxBytes)
	if err != nil {
		s.tracker.Discard(jobID)
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, types.E(types.KindValidation, "submit", transcription.ErrFileTooLarge)
		}
		return nil, types.E(types.KindUnknown, "stage audio", err)
	}

	source := sub.Source
	if source == "" {
		source = types.SourceUpload
	}
	now := s.now().UTC()
	job := &types.AudioJob{
		ID:         jobID,
		UserID:     sub.UserID,
		Filename:   sub.Filename,
		FileSize:   n,
		MIMEType:   mimeType,
		Duration:   s.probe(ctx, path),
		SourceType: source,
		Status:     types.StatusProcessing,
		AudioPath:  path,
		SourceRef:  sub.SourceRef,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		s.tracker.Discard(jobID)
		_ = s.stager.Remove(path)
		return nil, types.E(types.KindPersistence, "create job", err)
	}

	if err := s.enqueue(ctx, job, sub.Retry); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "job submitted",
		"job_id", job.ID,
		"user_id", job.UserID,
		"filename", job.Filename,
		"size", job.FileSize,
		"source", job.SourceType)
	return job, nil
}

// Retry re-runs a failed job from transcription using its staged audio
func (s *Submitter) Retry(ctx context.Context, job *types.AudioJob, retry bool) error {
	if job.Status != types.StatusError {
		return types.Errorf(types.KindConflict, "retry", "job is %s, not error", job.Status)
	}
	if job.AudioPath == "" || !s.stager.Exists(job.AudioPath) {
		return types.Errorf(types.KindConflict, "retry", "staged audio is no longer available")
	}

	if _, err := s.gate.Allow(ctx, job.UserID); err != nil {
		return err
	}

	if err := s.tracker.Begin(job.ID, job.UserID, SubmissionKey(job.UserID, job.Filename, job.FileSize, job.SourceRef)); err != nil {
		if errors.Is(err, ErrInFlight) || errors.Is(err, ErrBadTransition) {
			return types.E(types.KindConflict, "retry", err)
		}
		return err
	}

	if err := s.jobs.ResetJob(ctx, job.ID); err != nil {
		s.tracker.Discard(job.ID)
		if errors.Is(err, storage.ErrNotFound) {
			return types.E(types.KindConflict, "retry", err)
		}
		return types.E(types.KindPersistence, "retry", err)
	}
	job.Status = types.StatusProcessing
	job.Transcript = ""
	job.Error = ""

	return s.enqueue(ctx, job, retry)
}

func (s *Submitter) enqueue(ctx context.Context, job *types.AudioJob, retry bool) error {
	qjob := NewJob(job.ID, job.UserID, job.Filename, job.MIMEType, job.AudioPath, retry)
	if err := s.queue.Enqueue(qjob); err != nil {
		s.logger.ErrorContext(ctx, "enqueue failed", "job_id", job.ID, "error", err)
		failure := types.E(types.KindTransport, "enqueue", err)
		if uerr := s.jobs.UpdateJobStatus(ctx, job.ID, types.StatusError, types.MessageOf(failure)); uerr != nil {
			s.logger.ErrorContext(ctx, "failed to record enqueue error", "job_id", job.ID, "error", uerr)
		}
		s.tracker.Fail(job.ID, types.KindTransport, types.MessageOf(failure), "", nil)
		return failure
	}
	return nil
}
