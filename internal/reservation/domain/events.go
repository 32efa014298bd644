package domain

type ReservationCreated struct {
	ReservationID int64  `json:"reservation_id"`
	UserID        int64  `json:"user_id"`
	StockID       int64  `json:"stock_id"`
	PharmacyID    int64  `json:"pharmacy_id"`
	Quantity      int    `json:"quantity"`
	Code          string `json:"code"`
}

type ReservationStatusChanged struct {
	ReservationID int64  `json:"reservation_id"`
	UserID        int64  `json:"user_id"`
	OldStatus     Status `json:"old_status"`
	NewStatus     Status `json:"new_status"`
}
