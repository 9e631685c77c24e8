package handlers

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/meeting-insights/internal/auth"
	"github.com/codebuildervaibhav/meeting-insights/internal/queue"
	"github.com/codebuildervaibhav/meeting-insights/internal/storage"
	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

const defaultListLimit = 50

// JobsHandler serves job history, status and lifecycle actions
type JobsHandler struct {
	store     Store
	progress  Progress
	submitter Submitter
	audio     AudioRemover
	logger    *slog.Logger
}

// NewJobsHandler creates a jobs handler
func NewJobsHandler(store Store, progress Progress, submitter Submitter, audio AudioRemover, logger *slog.Logger) *JobsHandler {
	return &JobsHandler{
		store:     store,
		progress:  progress,
		submitter: submitter,
		audio:     audio,
		logger:    logger,
	}
}

// StatusResponse is the polled progress of a job
type StatusResponse struct {
	JobID     string          `json:"job_id"`
	Status    types.JobStatus `json:"status"`
	Stage     types.Stage     `json:"stage"`
	Progress  int             `json:"progress"`
	Message   string          `json:"message,omitempty"`
	ErrorCode string          `json:"error_code,omitempty"`
	// Transcript and Summary are set when results were computed but not saved
	Transcript string                `json:"transcript,omitempty"`
	Summary    *types.SummaryContent `json:"summary,omitempty"`
}

// loadOwned fetches the :id job and hides jobs owned by someone else
func loadOwned(c *fiber.Ctx, store Store) (*types.AudioJob, error) {
	job, err := store.GetJob(c.UserContext(), c.Params("id"))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, types.Errorf(types.KindNotFound, "load job", "job %s not found", c.Params("id"))
	}
	if err != nil {
		return nil, types.E(types.KindPersistence, "load job", err)
	}
	if job.UserID != auth.UserID(c) {
		return nil, types.Errorf(types.KindNotFound, "load job", "job %s not found", job.ID)
	}
	return job, nil
}

// summaryOf returns the job's summary or nil when it has none
func summaryOf(c *fiber.Ctx, store Store, jobID string) (*types.Summary, error) {
	sum, err := store.GetSummary(c.UserContext(), jobID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, types.E(types.KindPersistence, "load summary", err)
	}
	return sum, nil
}

// List returns the caller's jobs, newest first, with summaries
func (h *JobsHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultListLimit)
	if limit <= 0 || limit > 200 {
		limit = defaultListLimit
	}

	jobs, err := h.store.ListJobs(c.UserContext(), auth.UserID(c), limit)
	if err != nil {
		return respondError(c, h.logger, types.E(types.KindPersistence, "list jobs", err))
	}

	details := make([]types.JobDetail, 0, len(jobs))
	for _, job := range jobs {
		sum, err := summaryOf(c, h.store, job.ID)
		if err != nil {
			return respondError(c, h.logger, err)
		}
		details = append(details, types.JobDetail{Job: *job, Summary: sum})
	}
	return c.JSON(fiber.Map{"jobs": details})
}

// Get returns one job with its summary and chat thread
func (h *JobsHandler) Get(c *fiber.Ctx) error {
	job, err := loadOwned(c, h.store)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	sum, err := summaryOf(c, h.store, job.ID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	messages, err := h.store.ListChatMessages(c.UserContext(), job.ID)
	if err != nil {
		return respondError(c, h.logger, types.E(types.KindPersistence, "list messages", err))
	}
	if messages == nil {
		messages = []*types.ChatMessage{}
	}

	return c.JSON(fiber.Map{
		"job":      job,
		"summary":  sum,
		"messages": messages,
	})
}

// Status reports live progress, falling back to the stored row
func (h *JobsHandler) Status(c *fiber.Ctx) error {
	job, err := loadOwned(c, h.store)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(statusOf(job, h.progress))
}

func statusOf(job *types.AudioJob, progress Progress) StatusResponse {
	resp := StatusResponse{
		JobID:   job.ID,
		Status:  job.Status,
		Stage:   types.StageForStatus(job.Status),
		Message: job.Error,
	}
	if job.Status == types.StatusCompleted {
		resp.Progress = 100
	}

	if snap, ok := progress.Snapshot(job.ID); ok {
		resp.Stage = snap.Stage
		resp.Progress = snap.Progress
		resp.Message = snap.Message
		resp.ErrorCode = snap.ErrorCode
		resp.Transcript = snap.Transcript
		resp.Summary = snap.Summary
		resp.Status = statusForStage(snap, job.Status)
	}
	return resp
}

// statusForStage derives the row status a snapshot implies
func statusForStage(snap queue.Snapshot, fallback types.JobStatus) types.JobStatus {
	switch snap.Stage {
	case types.StageProcessing:
		return types.StatusProcessing
	case types.StageCompleted:
		return types.StatusCompleted
	case types.StageError:
		return types.StatusError
	default:
		return fallback
	}
}

// Delete removes a job that is not being processed
func (h *JobsHandler) Delete(c *fiber.Ctx) error {
	job, err := loadOwned(c, h.store)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if h.progress.Owns(job.ID) {
		return respondError(c, h.logger, types.Errorf(types.KindConflict, "delete", "job %s is still processing", job.ID))
	}

	if err := h.store.DeleteJob(c.UserContext(), job.ID); err != nil {
		return respondError(c, h.logger, types.E(types.KindPersistence, "delete job", err))
	}
	if job.AudioPath != "" && h.audio != nil {
		if err := h.audio.Remove(job.AudioPath); err != nil {
			h.logger.WarnContext(c.UserContext(), "failed to remove staged audio", "job_id", job.ID, "error", err)
		}
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ReplaceSummary overwrites the summary of a completed job
func (h *JobsHandler) ReplaceSummary(c *fiber.Ctx) error {
	job, err := loadOwned(c, h.store)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	var content types.SummaryContent
	if err := c.BodyParser(&content); err != nil {
		return badRequest(c, "Invalid request body")
	}
	content.MainSummary = strings.TrimSpace(content.MainSummary)
	if content.MainSummary == "" {
		return badRequest(c, "mainSummary is required")
	}
	for _, list := range []*[]string{&content.BulletPoints, &content.KeyTopics, &content.ActionItems} {
		if *list == nil {
			*list = []string{}
		}
	}

	sum, err := h.store.ReplaceSummary(c.UserContext(), job.ID, content)
	if errors.Is(err, storage.ErrNotFound) {
		return respondError(c, h.logger, types.Errorf(types.KindConflict, "replace summary", "job %s has no summary", job.ID))
	}
	if err != nil {
		return respondError(c, h.logger, types.E(types.KindPersistence, "replace summary", err))
	}
	return c.JSON(sum)
}

// Retry restarts a failed job from transcription
func (h *JobsHandler) Retry(c *fiber.Ctx) error {
	job, err := loadOwned(c, h.store)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	var req struct {
		Retry bool `json:"retry"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}

	if err := h.submitter.Retry(c.UserContext(), job, req.Retry); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id": job.ID,
		"status": types.StatusProcessing,
	})
}
