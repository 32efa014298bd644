package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pharmaflow/reservation-service/internal/notification/domain"
)

// Inbox is the slice of the notification store exposed over HTTP.
type Inbox interface {
	ListByUser(ctx context.Context, userID int64) ([]domain.Notification, error)
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	DeleteAll(ctx context.Context, userID int64) (int64, error)
}

type Handler struct {
	log   *slog.Logger
	inbox Inbox
}

func NewHandler(log *slog.Logger, inbox Inbox) *Handler {
	return &Handler{log: log, inbox: inbox}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Post("/read", h.markAllRead)
	r.Delete("/", h.deleteAll)
	return r
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	notifications, err := h.inbox.ListByUser(r.Context(), userID)
	if err != nil {
		h.fail(w, err)
		return
	}
	if notifications == nil {
		notifications = []domain.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": notifications})
}

func (h *Handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	updated, err := h.inbox.MarkAllRead(r.Context(), userID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "all marked as read", "updated": updated})
}

func (h *Handler) deleteAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	deleted, err := h.inbox.DeleteAll(r.Context(), userID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "notifications deleted", "deleted": deleted})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	h.log.Error("inbox request failed", "err", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal error"})
}

func actor(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "missing or invalid user identity"})
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
