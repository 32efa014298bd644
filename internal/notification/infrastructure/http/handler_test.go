package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaflow/reservation-service/internal/notification/domain"
)

type stubInbox struct {
	notifications []domain.Notification
	err           error
	markedFor     int64
	deletedFor    int64
}

func (s *stubInbox) ListByUser(_ context.Context, userID int64) ([]domain.Notification, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []domain.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *stubInbox) MarkAllRead(_ context.Context, userID int64) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.markedFor = userID
	return 2, nil
}

func (s *stubInbox) DeleteAll(_ context.Context, userID int64) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.deletedFor = userID
	return 3, nil
}

func serve(t *testing.T, inbox Inbox, method, target, user string) *httptest.ResponseRecorder {
	t.Helper()
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), inbox)
	req := httptest.NewRequest(method, target, nil)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func TestListReturnsOwnNotifications(t *testing.T) {
	inbox := &stubInbox{notifications: []domain.Notification{
		{ID: 1, UserID: 7, Title: "Order update", CreatedAt: time.Now()},
		{ID: 2, UserID: 8, Title: "Someone else's"},
	}}

	rec := serve(t, inbox, http.MethodGet, "/", "7")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []domain.Notification `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, int64(1), body.Data[0].ID)
}

func TestListEmptyInboxIsAnArray(t *testing.T) {
	rec := serve(t, &stubInbox{}, http.MethodGet, "/", "7")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)
}

func TestMarkAllRead(t *testing.T) {
	inbox := &stubInbox{}
	rec := serve(t, inbox, http.MethodPost, "/read", "7")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), inbox.markedFor)
	assert.Contains(t, rec.Body.String(), `"updated":2`)
}

func TestDeleteAll(t *testing.T) {
	inbox := &stubInbox{}
	rec := serve(t, inbox, http.MethodDelete, "/", "7")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), inbox.deletedFor)
	assert.Contains(t, rec.Body.String(), `"deleted":3`)
}

func TestRequiresIdentity(t *testing.T) {
	rec := serve(t, &stubInbox{}, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStoreErrorIsOpaque(t *testing.T) {
	rec := serve(t, &stubInbox{err: errors.New("pg down")}, http.MethodGet, "/", "7")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal error")
}
