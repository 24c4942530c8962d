package public

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	intakeapp "github.com/sngm3741/form-intake/api/internal/intake/application"
	"github.com/sngm3741/form-intake/api/internal/interfaces/http/common"
)

// Handler wires public HTTP endpoints to application services.
type Handler struct {
	logger         logrus.FieldLogger
	submissions    intakeapp.SubmissionCommandService
	uploads        intakeapp.UploadService
	maxUploadBytes int64
}

// Config defines dependencies required by Handler.
type Config struct {
	Logger         logrus.FieldLogger
	Submissions    intakeapp.SubmissionCommandService
	Uploads        intakeapp.UploadService
	MaxUploadBytes int64
}

// NewHandler constructs a public HTTP handler set.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = common.DefaultMaxUploadBytes
	}
	return &Handler{
		logger:         logger,
		submissions:    cfg.Submissions,
		uploads:        cfg.Uploads,
		maxUploadBytes: maxUpload,
	}
}

// Register mounts all public routes onto the router. uploadLimiter may be nil.
func (h *Handler) Register(r chi.Router, uploadLimiter func(http.Handler) http.Handler) {
	r.Post("/api/submit", h.submitHandler())
	if uploadLimiter != nil {
		r.With(uploadLimiter).Post("/api/upload", h.uploadHandler())
		return
	}
	r.Post("/api/upload", h.uploadHandler())
}
