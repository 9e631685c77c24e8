package queue

import (
	"fmt"
	"time"
)

// Job is one unit of pipeline work
type Job struct {
	ID        string
	UserID    string
	Filename  string
	MIMEType  string
	AudioPath string
	// Retry enables bounded retries of transient provider failures
	Retry     bool
	CreatedAt time.Time
}

// NewJob creates a new job with default values
func NewJob(id, userID, filename, mimeType, audioPath string, retry bool) *Job {
	return &Job{
		ID:        id,
		UserID:    userID,
		Filename:  filename,
		MIMEType:  mimeType,
		AudioPath: audioPath,
		Retry:     retry,
		CreatedAt: time.Now(),
	}
}

// SubmissionKey identifies a file for the duplicate in-flight guard. Imports
// are keyed on their remote reference; uploads on name and size.
func SubmissionKey(userID, filename string, size int64, sourceRef string) string {
	if sourceRef != "" {
		return fmt.Sprintf("%s|ref:%s", userID, sourceRef)
	}
	return fmt.Sprintf("%s|%s|%d", userID, filename, size)
}
