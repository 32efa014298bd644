package domain

import (
	"encoding/json"
	"time"
)

type Category string

const (
	CategoryOrderCreated Category = "order_created"
	CategoryNewOrder     Category = "order"
	CategoryStatusUpdate Category = "status_update"
)

// Notification is a persisted inbox entry. Once written, only the read flag
// changes; it survives regardless of realtime or push delivery.
type Notification struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Title     string          `json:"title"`
	Body      string          `json:"body"`
	Read      bool            `json:"read"`
	Category  Category        `json:"category"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
