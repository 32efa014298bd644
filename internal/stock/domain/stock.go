package domain

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("stock item not found")

// StockItem is the per-pharmacy, per-medication inventory row. Quantity is
// only mutated by the reservation flow: decremented on create, incremented
// as compensation when a pending reservation is rejected.
type StockItem struct {
	ID           int64     `json:"id"`
	PharmacyID   int64     `json:"pharmacy_id"`
	MedicationID int64     `json:"medication_id"`
	Quantity     int       `json:"quantity"`
	PriceCents   int64     `json:"price_cents"`
	Available    bool      `json:"available"`
	UpdatedAt    time.Time `json:"updated_at"`
}
