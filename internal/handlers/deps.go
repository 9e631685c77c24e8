package handlers

import (
	"context"

	"github.com/codebuildervaibhav/meeting-insights/internal/insights"
	"github.com/codebuildervaibhav/meeting-insights/internal/queue"
	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

// Store is the datastore surface the handlers read and edit
type Store interface {
	GetJob(ctx context.Context, id string) (*types.AudioJob, error)
	ListJobs(ctx context.Context, userID string, limit int) ([]*types.AudioJob, error)
	DeleteJob(ctx context.Context, id string) error
	GetSummary(ctx context.Context, jobID string) (*types.Summary, error)
	ReplaceSummary(ctx context.Context, jobID string, content types.SummaryContent) (*types.Summary, error)
	ListChatMessages(ctx context.Context, jobID string) ([]*types.ChatMessage, error)
}

// Submitter starts and restarts pipeline runs
type Submitter interface {
	Submit(ctx context.Context, sub queue.Submission) (*types.AudioJob, error)
	Retry(ctx context.Context, job *types.AudioJob, retry bool) error
}

// Progress exposes in-memory pipeline progress
type Progress interface {
	Snapshot(jobID string) (queue.Snapshot, bool)
	Subscribe(jobID string) (<-chan queue.Snapshot, func(), bool)
	Owns(jobID string) bool
}

// Asker answers questions about a meeting
type Asker interface {
	Ask(ctx context.Context, job *types.AudioJob, summary *types.SummaryContent, question string) (insights.Answer, error)
}

// LimitChecker reports a user's entitlement
type LimitChecker interface {
	CheckLimit(ctx context.Context, userID string) (types.Limit, error)
}

// CheckoutCreator opens billing checkouts
type CheckoutCreator interface {
	CreateSession(ctx context.Context, userID, email, priceID, origin string) (string, error)
}

// WebhookHandler applies signed billing events
type WebhookHandler interface {
	Handle(ctx context.Context, payload []byte, signature string) error
}

// AudioRemover deletes staged recordings
type AudioRemover interface {
	Remove(path string) error
}
