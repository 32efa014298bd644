package idempotency

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRecorder struct {
	seen     map[string]bool
	seenErr  error
	recorded []string
}

func newMemRecorder() *memRecorder {
	return &memRecorder{seen: map[string]bool{}}
}

func (m *memRecorder) Key(method, path, requestKey string) string {
	return fmt.Sprintf("idem:%s:%s:%s", method, path, requestKey)
}

func (m *memRecorder) Seen(_ context.Context, key string) (bool, error) {
	if m.seenErr != nil {
		return false, m.seenErr
	}
	return m.seen[key], nil
}

func (m *memRecorder) Record(_ context.Context, key string) error {
	m.seen[key] = true
	m.recorded = append(m.recorded, key)
	return nil
}

func post(t *testing.T, h http.Handler, idemKey string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/reservations", nil)
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func statusHandler(status *int, calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.WriteHeader(*status)
	})
}

func TestKeyFormat(t *testing.T) {
	store := NewStore(nil, 0)
	assert.Equal(t, "idem:POST:/reservations:req-123", store.Key("POST", "/reservations", "req-123"))
}

func TestMiddlewarePassesThroughWithoutHeader(t *testing.T) {
	calls := 0
	status := http.StatusNoContent
	// store is never consulted when the header is absent
	h := Middleware(NewStore(nil, 0))(statusHandler(&status, &calls))

	rec := post(t, h, "")
	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMiddlewareRejectsDuplicateAfterSuccess(t *testing.T) {
	store := newMemRecorder()
	calls := 0
	status := http.StatusCreated
	h := Middleware(store)(statusHandler(&status, &calls))

	rec := post(t, h, "req-123")
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, []string{"idem:POST:/reservations:req-123"}, store.recorded)

	rec = post(t, h, "req-123")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "duplicate request")
	assert.Equal(t, 1, calls)
}

func TestMiddlewareAllowsRetryAfterFailedResponse(t *testing.T) {
	store := newMemRecorder()
	calls := 0
	status := http.StatusConflict
	h := Middleware(store)(statusHandler(&status, &calls))

	// first attempt fails in the handler, e.g. insufficient stock
	rec := post(t, h, "req-123")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, store.recorded)

	// the retry must reach the handler, not be answered as a duplicate
	status = http.StatusCreated
	rec = post(t, h, "req-123")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 2, calls)
	assert.Len(t, store.recorded, 1)
}

func TestMiddlewareFailsOpenOnStoreError(t *testing.T) {
	store := newMemRecorder()
	store.seenErr = errors.New("redis down")
	calls := 0
	status := http.StatusCreated
	h := Middleware(store)(statusHandler(&status, &calls))

	rec := post(t, h, "req-123")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, calls)
}
