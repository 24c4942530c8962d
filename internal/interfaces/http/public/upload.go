package public

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/sngm3741/form-intake/api/internal/intake/application"
	"github.com/sngm3741/form-intake/api/internal/interfaces/http/common"
)

func (h *Handler) uploadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := strings.TrimSpace(r.URL.Query().Get("filename"))
		if r.ContentLength > h.maxUploadBytes {
			common.WriteError(h.logger, w, http.StatusRequestEntityTooLarge, "File upload failed: file too large")
			return
		}

		body := &limitedBody{r: http.MaxBytesReader(w, r.Body, h.maxUploadBytes)}
		object, err := h.uploads.Upload(r.Context(), application.UploadCommand{
			Filename:    filename,
			ContentType: r.Header.Get("Content-Type"),
			Body:        body,
		})
		switch {
		case err == nil:
			common.WriteJSON(h.logger, w, http.StatusOK, object)
		case errors.Is(err, application.ErrBlobNotConfigured):
			common.WriteError(h.logger, w, http.StatusInternalServerError, "Configuration error: blob storage is not configured.")
		case errors.Is(err, application.ErrMissingFilename):
			common.WriteError(h.logger, w, http.StatusBadRequest, "A filename must be provided.")
		case errors.Is(err, application.ErrEmptyBody):
			common.WriteJSON(h.logger, w, http.StatusBadRequest, messageResponse{Message: "No file to upload."})
		case body.exceeded:
			common.WriteError(h.logger, w, http.StatusRequestEntityTooLarge, "File upload failed: file too large")
		default:
			h.logger.Printf("ブロブへのアップロードに失敗: %v", err)
			common.WriteError(h.logger, w, http.StatusInternalServerError, "File upload failed: "+err.Error())
		}
	}
}

// limitedBody remembers whether the size limit was hit, since the blob client may wrap the read error.
type limitedBody struct {
	r        io.Reader
	exceeded bool
}

func (b *limitedBody) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	var tooLarge *http.MaxBytesError
	if err != nil && errors.As(err, &tooLarge) {
		b.exceeded = true
	}
	return n, err
}
