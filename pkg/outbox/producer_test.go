package outbox

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWriterDurabilitySettings(t *testing.T) {
	w := NewWriter([]string{"localhost:9092"}, "reservation-service")
	defer w.Close()

	assert.Equal(t, kafka.RequireAll, w.RequiredAcks)
	assert.IsType(t, &kafka.LeastBytes{}, w.Balancer)

	tr, ok := w.Transport.(*kafka.Transport)
	require.True(t, ok)
	assert.Equal(t, "reservation-service", tr.ClientID)
}

func TestNewWriterSatisfiesProducer(t *testing.T) {
	var _ Producer = NewWriter([]string{"localhost:9092"}, "reservation-service")
}
