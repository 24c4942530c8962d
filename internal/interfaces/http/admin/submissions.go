package admin

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	intakeapp "github.com/sngm3741/form-intake/api/internal/intake/application"
	"github.com/sngm3741/form-intake/api/internal/interfaces/http/common"
)

func (h *Handler) submissionDetailHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "id"))
		if id == "" {
			common.WriteError(h.logger, w, http.StatusBadRequest, "送信IDが指定されていません")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		stored, err := h.queries.Detail(ctx, id)
		if err != nil {
			if errors.Is(err, intakeapp.ErrNotFound) {
				common.WriteError(h.logger, w, http.StatusNotFound, "送信が見つかりません")
				return
			}
			h.logger.Printf("admin submission detail fetch failed id=%s err=%v", id, err)
			common.WriteError(h.logger, w, http.StatusInternalServerError, "送信の取得に失敗しました")
			return
		}
		common.WriteJSON(h.logger, w, http.StatusOK, stored)
	}
}

func (h *Handler) submissionMarkdownHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "id"))
		if id == "" {
			common.WriteError(h.logger, w, http.StatusBadRequest, "送信IDが指定されていません")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		markdown, err := h.queries.Markdown(ctx, id)
		if err != nil {
			if errors.Is(err, intakeapp.ErrNotFound) {
				common.WriteError(h.logger, w, http.StatusNotFound, "Markdown が見つかりません")
				return
			}
			h.logger.Printf("admin submission markdown fetch failed id=%s err=%v", id, err)
			common.WriteError(h.logger, w, http.StatusInternalServerError, "Markdown の取得に失敗しました")
			return
		}

		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(markdown)); err != nil {
			h.logger.Printf("Markdown の書き込みに失敗: %v", err)
		}
	}
}
