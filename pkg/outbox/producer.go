package outbox

import "github.com/segmentio/kafka-go"

// NewWriter builds the broker connection the dispatcher publishes through.
// The topic rides on each message, so one writer serves every event stream;
// full acks keep the relay's mark-sent honest.
func NewWriter(brokers []string, clientID string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Transport:    &kafka.Transport{ClientID: clientID},
	}
}
