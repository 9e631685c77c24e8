package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// Handlers bundles every route handler
type Handlers struct {
	Upload  *UploadHandler
	GDrive  *GDriveHandler
	Jobs    *JobsHandler
	Chat    *ChatHandler
	Tasks   *TasksHandler
	Usage   *UsageHandler
	Billing *BillingHandler
	Export  *ExportHandler
	Stream  *StreamHandler
	DB      Pinger
}

// Register mounts the API. Everything except health and the billing webhook
// goes through requireAuth.
func Register(app *fiber.App, h Handlers, requireAuth fiber.Handler) {
	app.Get("/health", Health(h.DB))

	api := app.Group("/api/v1")
	// registered ahead of the auth group; it answers without calling Next
	api.Post("/billing/webhook", h.Billing.Webhook)

	secured := api.Group("", requireAuth)
	secured.Post("/jobs", h.Upload.Handle)
	secured.Post("/jobs/import", h.GDrive.Handle)
	secured.Get("/jobs", h.Jobs.List)
	secured.Get("/jobs/:id", h.Jobs.Get)
	secured.Get("/jobs/:id/status", h.Jobs.Status)
	secured.Delete("/jobs/:id", h.Jobs.Delete)
	secured.Put("/jobs/:id/summary", h.Jobs.ReplaceSummary)
	secured.Post("/jobs/:id/retry", h.Jobs.Retry)
	secured.Post("/jobs/:id/questions", h.Chat.Ask)
	secured.Get("/jobs/:id/messages", h.Chat.Messages)
	secured.Get("/jobs/:id/tasks", h.Tasks.ForJob)
	secured.Get("/jobs/:id/export", h.Export.Handle)
	secured.Get("/tasks", h.Tasks.List)
	secured.Get("/usage", h.Usage.Get)
	secured.Post("/billing/checkout", h.Billing.Checkout)

	app.Get("/ws/jobs/:id", requireAuth, h.Stream.Upgrade, websocket.New(h.Stream.Handle))
}
