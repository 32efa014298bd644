package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
)

var (
	ErrNotFound          = errors.New("reservation not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrNotRedeemable     = errors.New("reservation not accepted or not found")
	ErrWrongPharmacy     = errors.New("reservation belongs to another pharmacy")
)

// CodePrefix is the fixed prefix carried by every reservation code. Scanners
// sometimes strip it client-side, so lookups must tolerate both forms.
const CodePrefix = "RES-"

type Reservation struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	StockID    int64     `json:"stock_id"`
	PharmacyID int64     `json:"pharmacy_id"`
	Quantity   int       `json:"quantity"`
	Status     Status    `json:"status"`
	Code       string    `json:"code"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Terminal reports whether no further status transition is expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// statusLabels maps caller-supplied labels to internal statuses. "cancelled"
// is the client-side synonym for a rejection.
var statusLabels = map[string]Status{
	"pending":   StatusPending,
	"accepted":  StatusAccepted,
	"completed": StatusCompleted,
	"rejected":  StatusRejected,
	"cancelled": StatusRejected,
}

// ParseStatus maps a caller-supplied status label to an internal status.
// Unrecognized labels are an input error, never a silent default.
func ParseStatus(label string) (Status, error) {
	s, ok := statusLabels[strings.ToLower(strings.TrimSpace(label))]
	if !ok {
		return "", ErrInvalidStatus
	}
	return s, nil
}

// HumanLabel is the fixed status wording used in notification texts.
func (s Status) HumanLabel() string {
	switch s {
	case StatusAccepted:
		return "accepted ✅"
	case StatusCompleted:
		return "completed 🏁"
	case StatusRejected:
		return "rejected ❌"
	default:
		return "pending ⏳"
	}
}

// NewCode generates a shareable reservation code. Collision-resistant is
// enough here; codes identify reservations for scanning, they do not
// authorize anything.
func NewCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return CodePrefix + raw[:12]
}

// CodeVariants returns the lookup candidates for a scanned code, in priority
// order: the raw input first, then the prefixed form for clients that send
// the bare suffix.
func CodeVariants(raw string) []string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, CodePrefix) {
		return []string{raw}
	}
	return []string{raw, CodePrefix + raw}
}
