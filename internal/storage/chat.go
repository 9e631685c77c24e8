package storage

import (
	"context"
	"fmt"

	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

// AppendChatMessage adds one message to a job's thread
func (s *Store) AppendChatMessage(ctx context.Context, msg *types.ChatMessage) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	_, err := s.exec(ctx, `
	INSERT INTO chat_messages (id, audio_job_id, role, content, created_at)
	VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.AudioJobID, msg.Role, msg.Content, msg.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("failed to save chat message: %w", err)
	}
	return nil
}

// ListChatMessages returns a job's thread, oldest first
func (s *Store) ListChatMessages(ctx context.Context, jobID string) ([]*types.ChatMessage, error) {
	rows, err := s.query(ctx, `
	SELECT id, audio_job_id, role, content, created_at
	FROM chat_messages WHERE audio_job_id = ? ORDER BY created_at, id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]*types.ChatMessage, 0)
	for rows.Next() {
		var m types.ChatMessage
		if err := rows.Scan(&m.ID, &m.AudioJobID, &m.Role, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}
