package admin

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	intakeapp "github.com/sngm3741/form-intake/api/internal/intake/application"
	"github.com/sngm3741/form-intake/api/internal/interfaces/http/common"
)

const defaultFailureLimit = 50

func (h *Handler) failedDeliveryListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		page, _ := common.ParsePositiveInt(query.Get("page"), 1)
		limit, _ := common.ParsePositiveInt(query.Get("limit"), defaultFailureLimit)
		if limit > common.AdminPageLimit {
			limit = common.AdminPageLimit
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		failures, err := h.queries.Failures(ctx, intakeapp.Paging{Page: page, Limit: limit})
		if err != nil {
			h.logger.Printf("admin failed delivery list fetch failed: %v", err)
			common.WriteError(h.logger, w, http.StatusInternalServerError, "失敗記録の取得に失敗しました")
			return
		}

		items := make([]failedDeliveryResponse, 0, len(failures))
		for _, failure := range failures {
			items = append(items, toFailedDeliveryResponse(failure))
		}
		common.WriteJSON(h.logger, w, http.StatusOK, failedDeliveryListResponse{Items: items, Page: page, Limit: limit})
	}
}

func (h *Handler) failedDeliveryRetryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "id"))
		if id == "" {
			common.WriteError(h.logger, w, http.StatusBadRequest, "失敗記録IDが指定されていません")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), common.RequestTimeout)
		defer cancel()

		err := h.commands.Retry(ctx, id)
		switch {
		case err == nil:
			if user, ok := common.AdminFromContext(r.Context()); ok {
				h.logger.WithFields(logrus.Fields{"failureId": id, "admin": user.ID}).Info("failed delivery resolved")
			}
			common.WriteJSON(h.logger, w, http.StatusOK, retryResponse{Status: "resolved", ID: id})
		case errors.Is(err, intakeapp.ErrNotFound):
			common.WriteError(h.logger, w, http.StatusNotFound, "失敗記録が見つかりません")
		case errors.Is(err, intakeapp.ErrAlreadyResolved):
			common.WriteError(h.logger, w, http.StatusConflict, "この失敗記録は再送済みです")
		case errors.Is(err, intakeapp.ErrUnknownSink):
			common.WriteError(h.logger, w, http.StatusConflict, err.Error())
		default:
			h.logger.Printf("admin retry failed id=%s err=%v", id, err)
			common.WriteError(h.logger, w, http.StatusBadGateway, "再送に失敗しました: "+err.Error())
		}
	}
}
