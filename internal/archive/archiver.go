package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

// Uploader stores a file remotely and returns a link to it
type Uploader interface {
	Upload(ctx context.Context, name, mimeType string, data []byte) (string, error)
}

// LocalSaver writes an export to local disk
type LocalSaver interface {
	SaveExport(name string, data []byte) (string, error)
}

// Result records where an archived export ended up
type Result struct {
	LocalPath string
	DriveURL  string
}

// Archiver files finished meetings locally and, when configured, on Google Drive
type Archiver struct {
	local    LocalSaver
	drive    Uploader
	logger   *slog.Logger
	attempts int
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewArchiver creates an archiver. drive may be nil.
func NewArchiver(local LocalSaver, drive Uploader, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		local:    local,
		drive:    drive,
		logger:   logger,
		attempts: 3,
		sleep:    wait,
	}
}

// Archive renders the job and saves it. A failed Drive upload is logged and
// does not fail the archive once the local copy exists.
func (a *Archiver) Archive(ctx context.Context, job *types.AudioJob, summary *types.SummaryContent) (Result, error) {
	var res Result

	data, err := RenderDocxBytes(job, summary)
	if err != nil {
		return res, fmt.Errorf("render export: %w", err)
	}

	name := ExportName(job)
	res.LocalPath, err = a.local.SaveExport(name, data)
	if err != nil {
		return res, err
	}

	if a.drive == nil {
		return res, nil
	}

	for attempt := 1; attempt <= a.attempts; attempt++ {
		res.DriveURL, err = a.drive.Upload(ctx, name, DocxMIMEType, data)
		if err == nil {
			break
		}
		a.logger.WarnContext(ctx, "drive upload failed", "job_id", job.ID,
			"attempt", attempt, "max_attempts", a.attempts, "error", err)
		if attempt < a.attempts {
			if werr := a.sleep(ctx, time.Duration(attempt*attempt)*time.Second); werr != nil {
				break
			}
		}
	}
	if err != nil {
		a.logger.WarnContext(ctx, "drive upload gave up, keeping local copy only", "job_id", job.ID, "local_path", res.LocalPath)
	}

	a.logger.InfoContext(ctx, "meeting archived", "job_id", job.ID, "local_path", res.LocalPath, "drive_url", res.DriveURL)
	return res, nil
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
