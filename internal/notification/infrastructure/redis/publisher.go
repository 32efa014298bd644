package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Publisher pushes realtime events over Redis pub/sub. Subscribed clients
// hold the other end through the gateway's websocket bridge.
type Publisher struct {
	log *slog.Logger
	rdb *redis.Client
}

func NewPublisher(log *slog.Logger, rdb *redis.Client) *Publisher {
	return &Publisher{log: log, rdb: rdb}
}

type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func (p *Publisher) Publish(ctx context.Context, channel, event string, payload any) error {
	body, err := json.Marshal(envelope{Event: event, Data: payload})
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("realtime publish to %s: %w", channel, err)
	}
	return nil
}
