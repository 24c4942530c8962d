package admin

import (
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	intakeapp "github.com/sngm3741/form-intake/api/internal/intake/application"
)

// Handler wires admin HTTP endpoints to application services.
type Handler struct {
	logger   logrus.FieldLogger
	queries  intakeapp.SubmissionQueryService
	commands intakeapp.SubmissionCommandService
}

// Config provides dependencies for Handler.
type Config struct {
	Logger   logrus.FieldLogger
	Queries  intakeapp.SubmissionQueryService
	Commands intakeapp.SubmissionCommandService
}

// NewHandler constructs an admin HTTP handler set.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		logger:   logger,
		queries:  cfg.Queries,
		commands: cfg.Commands,
	}
}

// Register mounts admin routes onto router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/submissions/{id}", h.submissionDetailHandler())
	r.Get("/submissions/{id}/markdown", h.submissionMarkdownHandler())
	r.Get("/failed-deliveries", h.failedDeliveryListHandler())
	r.Post("/failed-deliveries/{id}/retry", h.failedDeliveryRetryHandler())
}
