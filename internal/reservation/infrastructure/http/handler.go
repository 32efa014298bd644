package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/pharmaflow/reservation-service/internal/identity"
	"github.com/pharmaflow/reservation-service/internal/reservation/application"
	"github.com/pharmaflow/reservation-service/internal/reservation/domain"
	stockdom "github.com/pharmaflow/reservation-service/internal/stock/domain"
)

// ReservationService is the slice of the orchestrator the HTTP layer needs.
type ReservationService interface {
	Create(ctx context.Context, in application.CreateInput) (domain.Reservation, error)
	UpdateStatus(ctx context.Context, id int64, label string) (domain.Reservation, error)
	Scan(ctx context.Context, code string, actorID int64) (application.ScanResult, error)
	List(ctx context.Context, actorID int64) ([]application.ReservationView, error)
}

type Handler struct {
	log     *slog.Logger
	service ReservationService
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service ReservationService) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("reservation-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Patch("/{id}/status", h.updateStatus)
	r.Get("/scan/{code}", h.scan)
	return r
}

type createReservationReq struct {
	StockID    int64 `json:"stock_id"`
	PharmacyID int64 `json:"pharmacy_id"`
	Quantity   int   `json:"quantity"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateReservation")
	defer span.End()

	actorID, ok := actor(w, r)
	if !ok {
		return
	}

	var req createReservationReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid body")
		return
	}

	res, err := h.service.Create(ctx, application.CreateInput{
		UserID:     actorID,
		StockID:    req.StockID,
		PharmacyID: req.PharmacyID,
		Quantity:   req.Quantity,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, "reservation created", res)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListReservations")
	defer span.End()

	actorID, ok := actor(w, r)
	if !ok {
		return
	}

	views, err := h.service.List(ctx, actorID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, "", views)
}

type updateStatusReq struct {
	Status string `json:"status"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateReservationStatus")
	defer span.End()

	if _, ok := actor(w, r); !ok {
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid reservation id")
		return
	}

	var req updateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid body")
		return
	}

	res, err := h.service.UpdateStatus(ctx, id, req.Status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, "status updated", res)
}

func (h *Handler) scan(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ScanReservation")
	defer span.End()

	actorID, ok := actor(w, r)
	if !ok {
		return
	}

	result, err := h.service.Scan(ctx, chi.URLParam(r, "code"), actorID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, "", result)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, application.ErrInvalidQuantity), errors.Is(err, domain.ErrInvalidStatus):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		writeMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrWrongPharmacy):
		writeMessage(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrNotRedeemable),
		errors.Is(err, stockdom.ErrNotFound),
		errors.Is(err, identity.ErrNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	default:
		h.log.Error("request failed", "err", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

// actor reads the authenticated user from the gateway-set header. Auth
// itself is out of scope for this service.
func actor(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
	if err != nil || id <= 0 {
		writeMessage(w, http.StatusUnauthorized, "missing or invalid user identity")
		return 0, false
	}
	return id, true
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}

func writeData(w http.ResponseWriter, status int, msg string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]any{"data": data}
	if msg != "" {
		body["message"] = msg
	}
	_ = json.NewEncoder(w).Encode(body)
}
