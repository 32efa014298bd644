package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu      sync.Mutex
	pending []Event
	sent    []int64
	failed  map[int64]string
}

func newMemStore(events ...Event) *memStore {
	return &memStore{pending: events, failed: map[int64]string{}}
}

func (s *memStore) LockBatch(_ context.Context, relayID string, batchSize int, _ time.Duration) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := batchSize
	if n > len(s.pending) {
		n = len(s.pending)
	}
	batch := make([]Event, n)
	copy(batch, s.pending[:n])
	s.pending = s.pending[n:]
	for i := range batch {
		batch[i].Status = StatusInProgress
		batch[i].RelayID = relayID
	}
	return batch, nil
}

func (s *memStore) MarkSent(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, ids...)
	return nil
}

func (s *memStore) MarkFailed(_ context.Context, id int64, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[id] = errMsg
	return nil
}

func (s *memStore) ExtendLease(context.Context, string, []int64, time.Duration) error {
	return nil
}

func (s *memStore) snapshot() (sent []int64, failed map[int64]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sent = append(sent, s.sent...)
	failed = map[int64]string{}
	for k, v := range s.failed {
		failed[k] = v
	}
	return sent, failed
}

type memProducer struct {
	mu       sync.Mutex
	failKeys map[string]bool
	written  []kafka.Message
}

func (p *memProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range msgs {
		if p.failKeys[string(m.Key)] {
			return errors.New("broker unavailable")
		}
		p.written = append(p.written, m)
	}
	return nil
}

func (p *memProducer) messages() []kafka.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]kafka.Message(nil), p.written...)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runRelay(t *testing.T, store *memStore, producer *memProducer, d time.Duration) {
	t.Helper()
	relay := NewRelay(discard(), store, NewDispatcher(discard(), producer, "reservation.events"), "test-relay").
		WithInterval(5 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	require.NoError(t, relay.Run(ctx))
}

func TestRelayDeliversAndMarksSent(t *testing.T) {
	store := newMemStore(
		Event{ID: 1, AggregateID: "41", Type: "reservation.created", Payload: []byte(`{"id":41}`), Headers: map[string]string{"source": "reservation-service"}},
		Event{ID: 2, AggregateID: "42", Type: "reservation.status_changed", Payload: []byte(`{"id":42}`), Traceparent: "00-abc-def-01"},
	)
	producer := &memProducer{}

	runRelay(t, store, producer, 100*time.Millisecond)

	sent, failed := store.snapshot()
	assert.ElementsMatch(t, []int64{1, 2}, sent)
	assert.Empty(t, failed)

	msgs := producer.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "reservation.events", msgs[0].Topic)
	assert.Equal(t, []byte("41"), msgs[0].Key)
	assert.Equal(t, []byte(`{"id":41}`), msgs[0].Value)

	headers := map[string]string{}
	for _, h := range msgs[0].Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "reservation.created", headers["event_type"])
	assert.Equal(t, "reservation-service", headers["source"])

	headers = map[string]string{}
	for _, h := range msgs[1].Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "00-abc-def-01", headers["traceparent"])
}

func TestRelayMarksFailedAndKeepsGoing(t *testing.T) {
	store := newMemStore(
		Event{ID: 1, AggregateID: "bad", Type: "reservation.created", Payload: []byte(`{}`)},
		Event{ID: 2, AggregateID: "good", Type: "reservation.created", Payload: []byte(`{}`)},
	)
	producer := &memProducer{failKeys: map[string]bool{"bad": true}}

	runRelay(t, store, producer, 100*time.Millisecond)

	sent, failed := store.snapshot()
	assert.Equal(t, []int64{2}, sent)
	assert.Equal(t, "broker unavailable", failed[1])
	require.Len(t, producer.messages(), 1)
}

func TestRelayStopsOnContextCancel(t *testing.T) {
	store := newMemStore()
	relay := NewRelay(discard(), store, NewDispatcher(discard(), &memProducer{}, "t"), "test-relay").
		WithInterval(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}
