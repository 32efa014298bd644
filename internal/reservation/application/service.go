package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pharmaflow/reservation-service/internal/identity"
	notifapp "github.com/pharmaflow/reservation-service/internal/notification/application"
	notifdom "github.com/pharmaflow/reservation-service/internal/notification/domain"
	"github.com/pharmaflow/reservation-service/internal/reservation/domain"
)

var ErrInvalidQuantity = errors.New("quantity must be a positive integer")

// Label used when the catalog cannot resolve a medication name. Notification
// text degrades, data fields never do.
const fallbackMedicationName = "Medication"

type Service struct {
	log      *slog.Logger
	store    ReservationStore
	ledger   StockLedger
	catalog  Catalog
	identity Identity
	notifier Notifier
}

func NewService(log *slog.Logger, store ReservationStore, ledger StockLedger, cat Catalog, ident Identity, notifier Notifier) *Service {
	return &Service{log: log, store: store, ledger: ledger, catalog: cat, identity: ident, notifier: notifier}
}

// Create reserves stock and persists the reservation as one atomic unit,
// then fans out notifications best-effort. A fan-out failure never fails the
// create; an insufficient-stock failure leaves no side effects at all.
func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Reservation, error) {
	if in.Quantity < 1 {
		return domain.Reservation{}, ErrInvalidQuantity
	}

	res, err := s.store.Create(ctx, in)
	if err != nil {
		return domain.Reservation{}, err
	}

	s.notifyCreated(ctx, res)
	return res, nil
}

// UpdateStatus maps the caller-supplied label, compensates stock when a
// still-pending reservation is rejected, persists the new status and fans
// out the update. The pending guard is what makes compensation exactly-once:
// a retried rejection finds the status already moved and releases nothing.
func (s *Service) UpdateStatus(ctx context.Context, id int64, label string) (domain.Reservation, error) {
	newStatus, err := domain.ParseStatus(label)
	if err != nil {
		return domain.Reservation{}, err
	}

	res, err := s.store.GetByID(ctx, id)
	if err != nil {
		return domain.Reservation{}, err
	}

	if newStatus == domain.StatusRejected && res.Status == domain.StatusPending {
		if err := s.ledger.Release(ctx, res.StockID, res.Quantity); err != nil {
			return domain.Reservation{}, fmt.Errorf("restore stock for reservation %d: %w", id, err)
		}
	}

	updated, err := s.store.UpdateStatus(ctx, id, newStatus)
	if err != nil {
		return domain.Reservation{}, err
	}

	s.notifyStatusChanged(ctx, updated)
	return updated, nil
}

type ScanResult struct {
	Reservation    domain.Reservation `json:"reservation"`
	MedicationName string             `json:"medication_name"`
	ClientName     string             `json:"client_name,omitempty"`
}

// Scan resolves a code presented at the counter. Only an accepted
// reservation is redeemable; pending, rejected, completed and unknown codes
// all collapse into the same not-redeemable outcome. A reservation held by
// another pharmacy is an authorization failure, not a lookup miss.
func (s *Service) Scan(ctx context.Context, rawCode string, actorID int64) (ScanResult, error) {
	actor, err := s.identity.User(ctx, actorID)
	if err != nil {
		return ScanResult{}, err
	}
	if actor.Role != identity.RolePharmacist {
		return ScanResult{}, domain.ErrWrongPharmacy
	}

	res, err := s.store.FindByCode(ctx, rawCode)
	if errors.Is(err, domain.ErrNotFound) {
		return ScanResult{}, domain.ErrNotRedeemable
	}
	if err != nil {
		return ScanResult{}, err
	}
	if res.Status != domain.StatusAccepted {
		return ScanResult{}, domain.ErrNotRedeemable
	}
	if actor.PharmacyID == nil || *actor.PharmacyID != res.PharmacyID {
		return ScanResult{}, domain.ErrWrongPharmacy
	}

	out := ScanResult{Reservation: res, MedicationName: s.medicationName(ctx, res.StockID)}
	if client, err := s.identity.User(ctx, res.UserID); err == nil {
		out.ClientName = client.Name
	}
	return out, nil
}

type ReservationView struct {
	domain.Reservation
	MedicationName  string `json:"medication_name"`
	PharmacyName    string `json:"pharmacy_name,omitempty"`
	PharmacyAddress string `json:"pharmacy_address,omitempty"`
	PharmacyPhone   string `json:"pharmacy_phone,omitempty"`
}

// List returns the actor's reservations, newest first. Pharmacists see their
// pharmacy's queue; everyone else sees their own orders enriched with the
// pharmacy contact details.
func (s *Service) List(ctx context.Context, actorID int64) ([]ReservationView, error) {
	actor, err := s.identity.User(ctx, actorID)
	if err != nil {
		return nil, err
	}

	if actor.Role == identity.RolePharmacist {
		if actor.PharmacyID == nil {
			return []ReservationView{}, nil
		}
		list, err := s.store.ListByPharmacy(ctx, *actor.PharmacyID)
		if err != nil {
			return nil, err
		}
		return s.enrich(ctx, list, false), nil
	}

	list, err := s.store.ListByUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, list, true), nil
}

func (s *Service) enrich(ctx context.Context, list []domain.Reservation, withPharmacy bool) []ReservationView {
	views := make([]ReservationView, 0, len(list))
	for _, res := range list {
		v := ReservationView{Reservation: res, MedicationName: s.medicationName(ctx, res.StockID)}
		if withPharmacy {
			if ph, err := s.catalog.Pharmacy(ctx, res.PharmacyID); err == nil {
				v.PharmacyName = ph.Name
				v.PharmacyAddress = ph.Address
				v.PharmacyPhone = ph.Phone
			} else {
				s.log.Warn("pharmacy lookup failed", "pharmacy_id", res.PharmacyID, "err", err)
			}
		}
		views = append(views, v)
	}
	return views
}

func (s *Service) medicationName(ctx context.Context, stockID int64) string {
	item, err := s.ledger.Get(ctx, stockID)
	if err != nil {
		s.log.Warn("stock lookup failed", "stock_id", stockID, "err", err)
		return fallbackMedicationName
	}
	name, err := s.catalog.MedicationName(ctx, item.MedicationID)
	if err != nil {
		s.log.Warn("medication lookup failed", "medication_id", item.MedicationID, "err", err)
		return fallbackMedicationName
	}
	return name
}

func (s *Service) notifyCreated(ctx context.Context, res domain.Reservation) {
	medName := s.medicationName(ctx, res.StockID)

	clientName := "A client"
	if client, err := s.identity.User(ctx, res.UserID); err == nil && client.Name != "" {
		clientName = client.Name
	}

	s.notifier.Send(ctx, notifapp.Message{
		RecipientID: res.UserID,
		Title:       "Order sent ✅",
		Body:        fmt.Sprintf("Your order for %s is awaiting confirmation.", medName),
		Category:    notifdom.CategoryOrderCreated,
		Data:        map[string]any{"reservation_id": res.ID},
		Channel:     notifapp.UserChannel(res.UserID),
		Event:       notifapp.EventStatusUpdate,
	})

	if pharmacist, ok, err := s.identity.PharmacistFor(ctx, res.PharmacyID); err != nil {
		s.log.Warn("pharmacist lookup failed", "pharmacy_id", res.PharmacyID, "err", err)
	} else if ok {
		s.notifier.Send(ctx, notifapp.Message{
			RecipientID: pharmacist.ID,
			Title:       "New order 💊",
			Body:        fmt.Sprintf("%s ordered %s", clientName, medName),
			Category:    notifdom.CategoryNewOrder,
			Data: map[string]any{
				"reservation_id":  res.ID,
				"client_name":     clientName,
				"medication_name": medName,
			},
		})
	}

	s.notifier.Publish(ctx, notifapp.PharmacyChannel(res.PharmacyID), notifapp.EventNewReservation, map[string]any{
		"id":              res.ID,
		"user_id":         res.UserID,
		"stock_id":        res.StockID,
		"pharmacy_id":     res.PharmacyID,
		"quantity":        res.Quantity,
		"status":          res.Status,
		"code":            res.Code,
		"created_at":      res.CreatedAt,
		"medication_name": medName,
	})
}

func (s *Service) notifyStatusChanged(ctx context.Context, res domain.Reservation) {
	medName := s.medicationName(ctx, res.StockID)
	title := "Order update"
	body := fmt.Sprintf("Your order (%s) is %s", medName, res.Status.HumanLabel())

	s.notifier.Send(ctx, notifapp.Message{
		RecipientID: res.UserID,
		Title:       title,
		Body:        body,
		Category:    notifdom.CategoryStatusUpdate,
		Data:        map[string]any{"reservation_id": res.ID},
		Channel:     notifapp.UserChannel(res.UserID),
		Event:       notifapp.EventStatusUpdate,
		RealtimePayload: map[string]any{
			"id":              res.ID,
			"title":           title,
			"message":         body,
			"status":          res.Status,
			"medication_name": medName,
		},
	})
}
