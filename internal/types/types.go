package types

import "time"

// JobStatus is the persisted processing status of an AudioJob row
type JobStatus string

// Job status constants
const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusError      JobStatus = "error"
)

// Valid reports whether s is one of the persisted statuses
func (s JobStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusError:
		return true
	default:
		return false
	}
}

// Source type constants
const (
	SourceUpload = "upload"
	SourceGDrive = "gdrive"
)

// AudioJob is one uploaded recording and its processing lifecycle
type AudioJob struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Filename   string    `json:"filename"`
	FileSize   int64     `json:"file_size"`
	MIMEType   string    `json:"mime_type"`
	Duration   string    `json:"duration"`
	SourceType string    `json:"source_type"`
	Status     JobStatus `json:"status"`
	Transcript string    `json:"transcript,omitempty"`
	Error      string    `json:"error,omitempty"`
	// AudioPath is the staged recording kept for retries
	AudioPath string `json:"-"`
	// SourceRef identifies the remote file an import came from, such as a Drive file id
	SourceRef string    `json:"source_ref,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SummaryContent is the structured output of the summarization model
type SummaryContent struct {
	MainSummary  string   `json:"mainSummary"`
	BulletPoints []string `json:"bulletPoints"`
	KeyTopics    []string `json:"keyTopics"`
	ActionItems  []string `json:"actionItems"`
}

// Summary is the persisted summary of a completed job
type Summary struct {
	ID         string `json:"id"`
	AudioJobID string `json:"audio_job_id"`
	SummaryContent
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Role identifies the author of a chat message
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// ChatMessage is one append-only entry in a job's Q&A thread
type ChatMessage struct {
	ID         string    `json:"id"`
	AudioJobID string    `json:"audio_job_id"`
	Role       Role      `json:"type"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

// Transcript is the output of the speech-to-text provider
type Transcript struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	Words    []Word  `json:"words,omitempty"`
}

// Word is a single word with timing, as returned by the provider
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// JobDetail bundles a job with its summary, if any
type JobDetail struct {
	Job     AudioJob `json:"job"`
	Summary *Summary `json:"summary,omitempty"`
}
