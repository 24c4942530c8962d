package public

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/sngm3741/form-intake/api/internal/intake/application"
	"github.com/sngm3741/form-intake/api/internal/intake/domain"
	"github.com/sngm3741/form-intake/api/internal/interfaces/http/common"
)

func (h *Handler) submitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, common.MaxSubmitRequestBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				common.WriteError(h.logger, w, http.StatusRequestEntityTooLarge, "Submission failed: request body too large")
				return
			}
			common.WriteError(h.logger, w, http.StatusBadRequest, "Submission failed: could not read request body")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), common.RequestTimeout)
		defer cancel()

		record, err := h.submissions.Submit(ctx, body)
		switch {
		case err == nil:
			common.WriteJSON(h.logger, w, http.StatusOK, submitResponse{Message: "Success", SubmissionID: record.ID})
		case errors.Is(err, domain.ErrInvalidPayload):
			common.WriteError(h.logger, w, http.StatusBadRequest, "Submission failed: "+err.Error())
		case errors.Is(err, application.ErrMissingID):
			common.WriteError(h.logger, w, http.StatusBadRequest, "Submission failed: "+err.Error())
		default:
			h.logger.Printf("送信の処理に失敗: %v", err)
			common.WriteError(h.logger, w, http.StatusInternalServerError, "Submission failed: "+err.Error())
		}
	}
}
