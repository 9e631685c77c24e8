package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/codebuildervaibhav/meeting-insights/internal/logger"
	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

const jobColumns = `id, user_id, filename, file_size, mime_type, duration, source_type, status,
	transcript, error, audio_path, source_ref, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*types.AudioJob, error) {
	var job types.AudioJob
	err := row.Scan(&job.ID, &job.UserID, &job.Filename, &job.FileSize, &job.MIMEType,
		&job.Duration, &job.SourceType, &job.Status, &job.Transcript, &job.Error,
		&job.AudioPath, &job.SourceRef, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// CreateJob inserts a new job. CreatedAt and UpdatedAt are set when zero.
func (s *Store) CreateJob(ctx context.Context, job *types.AudioJob) error {
	now := s.now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = job.CreatedAt
	}

	_, err := s.exec(ctx, `
	INSERT INTO audio_jobs (`+jobColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.UserID, job.Filename, job.FileSize, job.MIMEType, job.Duration,
		job.SourceType, job.Status, job.Transcript, job.Error, job.AudioPath, job.SourceRef,
		job.CreatedAt.UTC(), job.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	logger.FromContext(ctx).DebugContext(ctx, "job created", "job_id", job.ID, "user_id", job.UserID)
	return nil
}

// GetJob returns one job by id
func (s *Store) GetJob(ctx context.Context, id string) (*types.AudioJob, error) {
	job, err := scanJob(s.queryRow(ctx, `SELECT `+jobColumns+` FROM audio_jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ListJobs returns the user's jobs, newest first
func (s *Store) ListJobs(ctx context.Context, userID string, limit int) ([]*types.AudioJob, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.query(ctx, `
	SELECT `+jobColumns+` FROM audio_jobs
	WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*types.AudioJob, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateJobStatus sets the status and error message
func (s *Store) UpdateJobStatus(ctx context.Context, id string, status types.JobStatus, errMsg string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	res, err := s.exec(ctx, `
	UPDATE audio_jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		status, errMsg, s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	return affectedOne(res)
}

// SetJobTranscript stores the transcript without changing the status
func (s *Store) SetJobTranscript(ctx context.Context, id, transcript string) error {
	res, err := s.exec(ctx, `
	UPDATE audio_jobs SET transcript = ?, updated_at = ? WHERE id = ?`,
		transcript, s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}
	return affectedOne(res)
}

// CompleteJob marks the job completed and clears any previous error
func (s *Store) CompleteJob(ctx context.Context, id string) error {
	res, err := s.exec(ctx, `
	UPDATE audio_jobs SET status = ?, error = '', updated_at = ?
	WHERE id = ? AND transcript <> ''`,
		types.StatusCompleted, s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return affectedOne(res)
}

// ResetJob prepares a failed job for another run. It succeeds only while the
// job is in error, so two concurrent retries cannot both start.
func (s *Store) ResetJob(ctx context.Context, id string) error {
	res, err := s.exec(ctx, `
	UPDATE audio_jobs SET status = ?, error = '', transcript = '', updated_at = ?
	WHERE id = ? AND status = ?`,
		types.StatusProcessing, s.now(), id, types.StatusError)
	if err != nil {
		return fmt.Errorf("failed to reset job: %w", err)
	}
	return affectedOne(res)
}

// DeleteJob removes a job with its summary and chat thread
func (s *Store) DeleteJob(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM chat_messages WHERE audio_job_id = ?`,
		`DELETE FROM summaries WHERE audio_job_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, s.rebind(q), id); err != nil {
			return fmt.Errorf("failed to delete job children: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM audio_jobs WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	if err := affectedOne(res); err != nil {
		return err
	}
	return tx.Commit()
}

// ListStaleJobs returns processing jobs not updated since before
func (s *Store) ListStaleJobs(ctx context.Context, before time.Time) ([]*types.AudioJob, error) {
	rows, err := s.query(ctx, `
	SELECT `+jobColumns+` FROM audio_jobs
	WHERE status = ? AND updated_at < ? ORDER BY updated_at`,
		types.StatusProcessing, before.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list stale jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*types.AudioJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// MarkAbandoned moves a processing job to error if it is still stale
func (s *Store) MarkAbandoned(ctx context.Context, id string, before time.Time, msg string) error {
	res, err := s.exec(ctx, `
	UPDATE audio_jobs SET status = ?, error = ?, updated_at = ?
	WHERE id = ? AND status = ? AND updated_at < ?`,
		types.StatusError, msg, s.now(), id, types.StatusProcessing, before.UTC())
	if err != nil {
		return fmt.Errorf("failed to mark job abandoned: %w", err)
	}
	return affectedOne(res)
}
