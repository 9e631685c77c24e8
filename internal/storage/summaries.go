package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

// SaveSummary stores the summary for a job. A job has at most one summary;
// saving again overwrites its content and keeps the original id.
func (s *Store) SaveSummary(ctx context.Context, sum *types.Summary) error {
	bullets, topics, actions, err := encodeLists(sum.SummaryContent)
	if err != nil {
		return err
	}

	now := s.now()
	if sum.CreatedAt.IsZero() {
		sum.CreatedAt = now
	}
	sum.UpdatedAt = sum.CreatedAt

	_, err = s.exec(ctx, `
	INSERT INTO summaries (id, audio_job_id, main_summary, bullet_points, key_topics, action_items, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (audio_job_id) DO UPDATE SET
		main_summary = excluded.main_summary,
		bullet_points = excluded.bullet_points,
		key_topics = excluded.key_topics,
		action_items = excluded.action_items,
		updated_at = excluded.updated_at`,
		sum.ID, sum.AudioJobID, sum.MainSummary, bullets, topics, actions,
		sum.CreatedAt.UTC(), sum.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}
	return nil
}

// GetSummary returns the summary for a job
func (s *Store) GetSummary(ctx context.Context, jobID string) (*types.Summary, error) {
	var (
		sum                      types.Summary
		bullets, topics, actions string
	)
	err := s.queryRow(ctx, `
	SELECT id, audio_job_id, main_summary, bullet_points, key_topics, action_items, created_at, updated_at
	FROM summaries WHERE audio_job_id = ?`, jobID).
		Scan(&sum.ID, &sum.AudioJobID, &sum.MainSummary, &bullets, &topics, &actions, &sum.CreatedAt, &sum.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}

	if err := decodeList(bullets, &sum.BulletPoints); err != nil {
		return nil, err
	}
	if err := decodeList(topics, &sum.KeyTopics); err != nil {
		return nil, err
	}
	if err := decodeList(actions, &sum.ActionItems); err != nil {
		return nil, err
	}
	return &sum, nil
}

// ReplaceSummary overwrites the content of an existing summary in place
func (s *Store) ReplaceSummary(ctx context.Context, jobID string, content types.SummaryContent) (*types.Summary, error) {
	bullets, topics, actions, err := encodeLists(content)
	if err != nil {
		return nil, err
	}

	res, err := s.exec(ctx, `
	UPDATE summaries SET main_summary = ?, bullet_points = ?, key_topics = ?, action_items = ?, updated_at = ?
	WHERE audio_job_id = ?`,
		content.MainSummary, bullets, topics, actions, s.now(), jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to replace summary: %w", err)
	}
	if err := affectedOne(res); err != nil {
		return nil, err
	}
	return s.GetSummary(ctx, jobID)
}

func encodeLists(c types.SummaryContent) (string, string, string, error) {
	var out [3]string
	for i, list := range [][]string{c.BulletPoints, c.KeyTopics, c.ActionItems} {
		if list == nil {
			list = []string{}
		}
		b, err := json.Marshal(list)
		if err != nil {
			return "", "", "", fmt.Errorf("failed to encode summary list: %w", err)
		}
		out[i] = string(b)
	}
	return out[0], out[1], out[2], nil
}

func decodeList(raw string, dst *[]string) error {
	if raw == "" {
		*dst = []string{}
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("failed to decode summary list: %w", err)
	}
	if *dst == nil {
		*dst = []string{}
	}
	return nil
}
