package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store remembers the keys of successfully handled requests for a bounded
// window so retried mutations can be detected.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) Key(method, path, requestKey string) string {
	return fmt.Sprintf("idem:%s:%s:%s", method, path, requestKey)
}

// Seen reports whether an earlier request already recorded the key.
func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Record marks the key as handled. First writer wins via SetNX.
func (s *Store) Record(ctx context.Context, key string) error {
	return s.rdb.SetNX(ctx, key, "1", s.ttl).Err()
}

// Recorder is the store surface the middleware needs.
type Recorder interface {
	Key(method, path, requestKey string) string
	Seen(ctx context.Context, key string) (bool, error)
	Record(ctx context.Context, key string) error
}

// Middleware rejects a repeated Idempotency-Key with 409 before the handler
// runs. A key is recorded only after the handler responds below 400, so a
// failed request can be retried under the same key. Requests without the
// header pass through untouched; a Redis outage fails open rather than
// blocking writes.
func Middleware(store Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestKey := r.Header.Get("Idempotency-Key")
			if requestKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			key := store.Key(r.Method, r.URL.Path, requestKey)
			seen, err := store.Seen(r.Context(), key)
			if err == nil && seen {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusConflict)
				_ = json.NewEncoder(w).Encode(map[string]string{"message": "duplicate request"})
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status < http.StatusBadRequest {
				_ = store.Record(r.Context(), key)
			}
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
