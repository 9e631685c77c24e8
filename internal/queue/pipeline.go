package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/codebuildervaibhav/meeting-insights/internal/archive"
	"github.com/codebuildervaibhav/meeting-insights/internal/logger"
	"github.com/codebuildervaibhav/meeting-insights/internal/transcription"
	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

// JobStore is the persistence the pipeline writes to
type JobStore interface {
	SetJobTranscript(ctx context.Context, id, transcript string) error
	SaveSummary(ctx context.Context, sum *types.Summary) error
	CompleteJob(ctx context.Context, id string) error
	UpdateJobStatus(ctx context.Context, id string, status types.JobStatus, errMsg string) error
	GetJob(ctx context.Context, id string) (*types.AudioJob, error)
	AppendChatMessage(ctx context.Context, msg *types.ChatMessage) error
}

// Summarizer turns a transcript into a structured summary
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (*types.SummaryContent, error)
}

// UsageCounter records completed transcriptions
type UsageCounter interface {
	Increment(ctx context.Context, userID string) (int, error)
}

// AudioSource reads and removes staged recordings
type AudioSource interface {
	ReadAudio(path string) ([]byte, error)
	Remove(path string) error
}

// Archiver files a finished meeting
type Archiver interface {
	Archive(ctx context.Context, job *types.AudioJob, summary *types.SummaryContent) (archive.Result, error)
}

// PipelineConfig wires a Pipeline
type PipelineConfig struct {
	Store       JobStore
	Transcriber transcription.Transcriber
	Summarizer  Summarizer
	Usage       UsageCounter
	Audio       AudioSource
	Tracker     *Tracker
	// Archiver is optional
	Archiver Archiver
	Retry    RetryPolicy
	Logger   *slog.Logger
}

// Pipeline runs transcribe -> summarize -> persist for one job
type Pipeline struct {
	store       JobStore
	transcriber transcription.Transcriber
	summarizer  Summarizer
	usage       UsageCounter
	audio       AudioSource
	tracker     *Tracker
	archiver    Archiver
	retry       RetryPolicy
	logger      *slog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewPipeline creates a pipeline
func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Retry.Attempts <= 0 {
		cfg.Retry.Attempts = 3
	}
	if cfg.Retry.BaseDelay <= 0 {
		cfg.Retry.BaseDelay = time.Second
	}
	return &Pipeline{
		store:       cfg.Store,
		transcriber: cfg.Transcriber,
		summarizer:  cfg.Summarizer,
		usage:       cfg.Usage,
		audio:       cfg.Audio,
		tracker:     cfg.Tracker,
		archiver:    cfg.Archiver,
		retry:       cfg.Retry,
		logger:      cfg.Logger,
		tracer:      otel.Tracer("queue"),
		now:         time.Now,
	}
}

// Run processes one job. Every failure leaves the row in error with a user
// message and keeps the staged audio for a manual retry.
func (p *Pipeline) Run(ctx context.Context, job *Job) error {
	log := p.logger.With("job_id", job.ID, "user_id", job.UserID)
	ctx = logger.WithContext(ctx, log)

	stop := p.tracker.Heartbeat(job.ID)
	defer stop()

	log.InfoContext(ctx, "processing job", "filename", job.Filename)

	p.tracker.SetMessage(job.ID, "Transcribing audio...")
	transcript, err := p.transcribe(ctx, job)
	if err != nil {
		return p.fail(ctx, job, err, "", nil)
	}

	if err := p.persist(ctx, "save transcript", func(ctx context.Context) error {
		return p.store.SetJobTranscript(ctx, job.ID, transcript)
	}); err != nil {
		return p.fail(ctx, job, err, transcript, nil)
	}
	p.tracker.SetTranscript(job.ID, transcript)

	p.tracker.SetMessage(job.ID, "Generating AI summary...")
	summary, err := p.summarize(ctx, job, transcript)
	if err != nil {
		return p.fail(ctx, job, err, transcript, nil)
	}

	stop()
	p.tracker.SetMessage(job.ID, "Saving results...")

	if err := p.save(ctx, job, summary); err != nil {
		return p.fail(ctx, job, err, transcript, summary)
	}

	// the counter moves only after every result write succeeded
	if _, err := p.usage.Increment(ctx, job.UserID); err != nil {
		log.ErrorContext(ctx, "failed to record usage", "error", err)
	}

	if err := p.store.AppendChatMessage(ctx, &types.ChatMessage{
		ID:         uuid.New().String(),
		AudioJobID: job.ID,
		Role:       types.RoleAI,
		Content:    InitialMessage(summary),
		Timestamp:  p.now().UTC(),
	}); err != nil {
		log.WarnContext(ctx, "failed to save initial chat message", "error", err)
	}

	p.tracker.Complete(job.ID)

	if err := p.audio.Remove(job.AudioPath); err != nil {
		log.WarnContext(ctx, "failed to remove staged audio", "path", job.AudioPath, "error", err)
	}

	p.archive(ctx, job.ID, summary)

	log.InfoContext(ctx, "job completed")
	return nil
}

func (p *Pipeline) transcribe(ctx context.Context, job *Job) (string, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.transcribe")
	defer span.End()
	span.SetAttributes(attribute.String("job_id", job.ID), attribute.String("mime_type", job.MIMEType))

	audio, err := p.audio.ReadAudio(job.AudioPath)
	if err != nil {
		return "", endSpan(span, types.E(types.KindUnknown, "transcribe", err))
	}

	var text string
	err = p.retry.Do(ctx, func(ctx context.Context) error {
		result, err := p.transcriber.Transcribe(ctx, audio, job.MIMEType, job.Filename)
		if err != nil {
			return err
		}
		text = strings.TrimSpace(result.Text)
		return nil
	}, p.modelRetryable(ctx, job, "transcribe"))
	if err != nil {
		return "", endSpan(span, err)
	}

	if text == "" {
		return "", endSpan(span, types.E(types.KindUnintelligibleInput, "transcribe", errors.New("empty transcript")))
	}
	span.SetAttributes(attribute.Int("transcript_chars", len(text)))
	return text, nil
}

func (p *Pipeline) summarize(ctx context.Context, job *Job, transcript string) (*types.SummaryContent, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.summarize")
	defer span.End()
	span.SetAttributes(attribute.String("job_id", job.ID))

	var summary *types.SummaryContent
	err := p.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		summary, err = p.summarizer.Summarize(ctx, transcript)
		return err
	}, p.modelRetryable(ctx, job, "summarize"))
	if err != nil {
		return nil, endSpan(span, err)
	}
	return summary, nil
}

// save writes the summary then marks the job completed
func (p *Pipeline) save(ctx context.Context, job *Job, summary *types.SummaryContent) error {
	ctx, span := p.tracer.Start(ctx, "pipeline.persist")
	defer span.End()
	span.SetAttributes(attribute.String("job_id", job.ID))

	row := &types.Summary{
		ID:             uuid.New().String(),
		AudioJobID:     job.ID,
		SummaryContent: *summary,
	}
	if err := p.persist(ctx, "save summary", func(ctx context.Context) error {
		return p.store.SaveSummary(ctx, row)
	}); err != nil {
		return endSpan(span, err)
	}

	if err := p.persist(ctx, "complete job", func(ctx context.Context) error {
		return p.store.CompleteJob(ctx, job.ID)
	}); err != nil {
		return endSpan(span, err)
	}
	return nil
}

// persist retries a datastore write with the pipeline policy
func (p *Pipeline) persist(ctx context.Context, op string, write func(ctx context.Context) error) error {
	attempt := 0
	err := p.retry.Do(ctx, func(ctx context.Context) error {
		attempt++
		return write(ctx)
	}, func(err error) bool {
		logger.FromContext(ctx).WarnContext(ctx, "datastore write failed", "op", op, "attempt", attempt, "error", err)
		return true
	})
	if err != nil {
		return types.E(types.KindPersistence, op, err)
	}
	return nil
}

func (p *Pipeline) modelRetryable(ctx context.Context, job *Job, stage string) func(error) bool {
	attempt := 0
	return func(err error) bool {
		attempt++
		ok := job.Retry && types.KindOf(err).Retryable()
		if ok {
			logger.FromContext(ctx).WarnContext(ctx, "retrying provider call", "stage", stage, "attempt", attempt, "error", err)
		}
		return ok
	}
}

func (p *Pipeline) archive(ctx context.Context, jobID string, summary *types.SummaryContent) {
	if p.archiver == nil {
		return
	}
	job, err := p.store.GetJob(ctx, jobID)
	if err != nil {
		logger.FromContext(ctx).WarnContext(ctx, "archive skipped", "error", err)
		return
	}
	if _, err := p.archiver.Archive(ctx, job, summary); err != nil {
		logger.FromContext(ctx).WarnContext(ctx, "archive failed", "error", err)
	}
}

// Fail records err as the job's terminal state
func (p *Pipeline) Fail(ctx context.Context, job *Job, err error) {
	p.fail(ctx, job, err, "", nil)
}

func (p *Pipeline) fail(ctx context.Context, job *Job, err error, transcript string, summary *types.SummaryContent) error {
	kind := types.KindOf(err)
	msg := types.MessageOf(err)

	logger.FromContext(ctx).ErrorContext(ctx, "job failed", "kind", kind.String(), "error", err)

	// the caller's context may already be done; the error state must still land
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if werr := p.persist(writeCtx, "mark failed", func(ctx context.Context) error {
		return p.store.UpdateJobStatus(ctx, job.ID, types.StatusError, msg)
	}); werr != nil {
		logger.FromContext(ctx).ErrorContext(ctx, "failed to record job error", "error", werr)
	}

	p.tracker.Fail(job.ID, kind, msg, transcript, summary)
	return fmt.Errorf("job %s: %w", job.ID, err)
}

func endSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, types.KindOf(err).String())
	return err
}

// InitialMessage is the first AI turn of a meeting's chat thread
func InitialMessage(summary *types.SummaryContent) string {
	var points strings.Builder
	for i, point := range summary.BulletPoints {
		if i > 0 {
			points.WriteString("\n")
		}
		points.WriteString("• " + point)
	}

	return fmt.Sprintf("I've analyzed your meeting and here's what I found:\n\n**Summary:** %s\n\n**Key Points:**\n%s\n\nFeel free to ask me any specific questions about the meeting!",
		summary.MainSummary, points.String())
}
