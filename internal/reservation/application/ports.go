package application

import (
	"context"

	"github.com/pharmaflow/reservation-service/internal/catalog"
	"github.com/pharmaflow/reservation-service/internal/identity"
	notifapp "github.com/pharmaflow/reservation-service/internal/notification/application"
	"github.com/pharmaflow/reservation-service/internal/reservation/domain"
	stockdom "github.com/pharmaflow/reservation-service/internal/stock/domain"
)

type CreateInput struct {
	UserID     int64
	StockID    int64
	PharmacyID int64
	Quantity   int
}

// ReservationStore persists reservations. Create is a single transaction
// covering the stock check-and-decrement and the reservation insert; it
// fails with domain.ErrInsufficientStock leaving no trace. UpdateStatus is
// an unconditional overwrite; the transition guard lives in the service.
type ReservationStore interface {
	Create(ctx context.Context, in CreateInput) (domain.Reservation, error)
	GetByID(ctx context.Context, id int64) (domain.Reservation, error)
	FindByCode(ctx context.Context, code string) (domain.Reservation, error)
	UpdateStatus(ctx context.Context, id int64, status domain.Status) (domain.Reservation, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Reservation, error)
	ListByPharmacy(ctx context.Context, pharmacyID int64) ([]domain.Reservation, error)
}

// StockLedger is the compensation and read surface of the stock rows. The
// decrement path is not exposed here; it only exists inside the store's
// create transaction.
type StockLedger interface {
	Release(ctx context.Context, stockID int64, quantity int) error
	Get(ctx context.Context, stockID int64) (stockdom.StockItem, error)
}

type Catalog interface {
	MedicationName(ctx context.Context, medicationID int64) (string, error)
	Pharmacy(ctx context.Context, pharmacyID int64) (catalog.Pharmacy, error)
}

type Identity interface {
	User(ctx context.Context, userID int64) (identity.User, error)
	PharmacistFor(ctx context.Context, pharmacyID int64) (identity.User, bool, error)
}

type Notifier interface {
	Send(ctx context.Context, msg notifapp.Message) []notifapp.ChannelResult
	Publish(ctx context.Context, channel, event string, payload any) notifapp.ChannelResult
}
