package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/meeting-insights/internal/auth"
	"github.com/codebuildervaibhav/meeting-insights/internal/tasks"
	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

// taskScanLimit bounds how many recent meetings feed the task board
const taskScanLimit = 200

// TasksHandler projects action items into tasks on every request
type TasksHandler struct {
	store  Store
	logger *slog.Logger
}

// NewTasksHandler creates a tasks handler
func NewTasksHandler(store Store, logger *slog.Logger) *TasksHandler {
	return &TasksHandler{store: store, logger: logger}
}

// List returns tasks across the caller's completed meetings
func (h *TasksHandler) List(c *fiber.Ctx) error {
	jobs, err := h.store.ListJobs(c.UserContext(), auth.UserID(c), taskScanLimit)
	if err != nil {
		return respondError(c, h.logger, types.E(types.KindPersistence, "list jobs", err))
	}

	var details []types.JobDetail
	for _, job := range jobs {
		if job.Status != types.StatusCompleted {
			continue
		}
		sum, err := summaryOf(c, h.store, job.ID)
		if err != nil {
			return respondError(c, h.logger, err)
		}
		details = append(details, types.JobDetail{Job: *job, Summary: sum})
	}
	return c.JSON(fiber.Map{"tasks": tasks.Project(details)})
}

// ForJob returns the tasks of one meeting
func (h *TasksHandler) ForJob(c *fiber.Ctx) error {
	job, err := loadOwned(c, h.store)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	sum, err := summaryOf(c, h.store, job.ID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"tasks": tasks.Project([]types.JobDetail{{Job: *job, Summary: sum}})})
}
