package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/codebuildervaibhav/meeting-insights/internal/queue"
)

// StreamHandler pushes job progress over a websocket
type StreamHandler struct {
	store    Store
	progress Progress
	logger   *slog.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(store Store, progress Progress, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{
		store:    store,
		progress: progress,
		logger:   logger,
	}
}

// Upgrade checks ownership and the upgrade header before the handshake
func (h *StreamHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	job, err := loadOwned(c, h.store)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	c.Locals("job", statusOf(job, h.progress))
	return c.Next()
}

// Handle sends the current status, then every change until the job settles
// or the client goes away
func (h *StreamHandler) Handle(c *websocket.Conn) {
	defer c.Close()

	initial, _ := c.Locals("job").(StatusResponse)
	jobID := initial.JobID
	log := h.logger.With("job_id", jobID)

	updates, cancel, ok := h.progress.Subscribe(jobID)
	if !ok {
		// nothing in flight; the stored row is all there is
		if err := c.WriteJSON(initial); err != nil {
			log.Debug("websocket write failed", "error", err)
		}
		return
	}
	defer cancel()

	go func() {
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	log.Debug("websocket stream opened")
	var last queue.Snapshot
	for snap := range updates {
		last = snap
		if err := c.WriteJSON(frame(initial, snap)); err != nil {
			log.Debug("websocket write failed", "error", err)
			return
		}
	}

	// the channel also closes on cancel; make sure the client ends on the settled state
	if !last.Stage.Terminal() {
		if snap, ok := h.progress.Snapshot(jobID); ok && snap.Stage.Terminal() {
			if err := c.WriteJSON(frame(initial, snap)); err != nil {
				log.Debug("websocket write failed", "error", err)
			}
		}
	}
	log.Debug("websocket stream closed")
}

func frame(initial StatusResponse, snap queue.Snapshot) StatusResponse {
	resp := initial
	resp.Stage = snap.Stage
	resp.Progress = snap.Progress
	resp.Message = snap.Message
	resp.ErrorCode = snap.ErrorCode
	resp.Transcript = snap.Transcript
	resp.Summary = snap.Summary
	resp.Status = statusForStage(snap, initial.Status)
	return resp
}
