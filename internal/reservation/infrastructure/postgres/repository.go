package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/pharmaflow/reservation-service/internal/reservation/application"
	"github.com/pharmaflow/reservation-service/internal/reservation/domain"
	stockpg "github.com/pharmaflow/reservation-service/internal/stock/postgres"
)

const reservationColumns = `id, user_id, stock_id, pharmacy_id, quantity, status, code, created_at, updated_at`

type Repository struct {
	log    *slog.Logger
	pool   *pgxpool.Pool
	ledger *stockpg.Ledger
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool, ledger *stockpg.Ledger) *Repository {
	return &Repository{log: log, pool: pool, ledger: ledger}
}

// Create runs the whole reserve flow in one transaction: lock and decrement
// the stock row, insert the reservation, queue the domain event. Either all
// three land or none do.
func (r *Repository) Create(ctx context.Context, in application.CreateInput) (domain.Reservation, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Reservation{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := r.ledger.TryReserve(ctx, tx, in.StockID, in.Quantity); err != nil {
		return domain.Reservation{}, err
	}

	var res domain.Reservation
	err = tx.QueryRow(ctx, `
		INSERT INTO reservations (user_id, stock_id, pharmacy_id, quantity, status, code, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now(),now())
		RETURNING `+reservationColumns,
		in.UserID, in.StockID, in.PharmacyID, in.Quantity, domain.StatusPending, domain.NewCode()).
		Scan(&res.ID, &res.UserID, &res.StockID, &res.PharmacyID, &res.Quantity, &res.Status, &res.Code, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return domain.Reservation{}, err
	}

	payload, err := json.Marshal(domain.ReservationCreated{
		ReservationID: res.ID,
		UserID:        res.UserID,
		StockID:       res.StockID,
		PharmacyID:    res.PharmacyID,
		Quantity:      res.Quantity,
		Code:          res.Code,
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	if err := r.queueEvent(ctx, tx, res.ID, "ReservationCreated", payload); err != nil {
		return domain.Reservation{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Reservation{}, err
	}
	return res, nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (domain.Reservation, error) {
	return r.scanOne(r.pool.QueryRow(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id=$1`, id))
}

// FindByCode tries the raw code, its prefixed variant and finally the bare
// numeric identifier, in that priority order.
func (r *Repository) FindByCode(ctx context.Context, code string) (domain.Reservation, error) {
	for _, candidate := range domain.CodeVariants(code) {
		res, err := r.scanOne(r.pool.QueryRow(ctx,
			`SELECT `+reservationColumns+` FROM reservations WHERE code=$1`, candidate))
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.Reservation{}, err
		}
	}
	if id, err := strconv.ParseInt(code, 10, 64); err == nil {
		return r.GetByID(ctx, id)
	}
	return domain.Reservation{}, domain.ErrNotFound
}

// UpdateStatus overwrites the status unconditionally and queues the change
// event in the same transaction. Transition rules are the orchestrator's
// concern, not the store's.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status domain.Status) (domain.Reservation, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Reservation{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var old domain.Status
	err = tx.QueryRow(ctx, `SELECT status FROM reservations WHERE id=$1 FOR UPDATE`, id).Scan(&old)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Reservation{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Reservation{}, err
	}

	res, err := r.scanOne(tx.QueryRow(ctx, `
		UPDATE reservations SET status=$2, updated_at=now() WHERE id=$1
		RETURNING `+reservationColumns, id, status))
	if err != nil {
		return domain.Reservation{}, err
	}

	payload, err := json.Marshal(domain.ReservationStatusChanged{
		ReservationID: res.ID,
		UserID:        res.UserID,
		OldStatus:     old,
		NewStatus:     res.Status,
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	if err := r.queueEvent(ctx, tx, res.ID, "ReservationStatusChanged", payload); err != nil {
		return domain.Reservation{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Reservation{}, err
	}
	return res, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID int64) ([]domain.Reservation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE user_id=$1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	return r.scanAll(rows)
}

func (r *Repository) ListByPharmacy(ctx context.Context, pharmacyID int64) ([]domain.Reservation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE pharmacy_id=$1 ORDER BY created_at DESC, id DESC`, pharmacyID)
	if err != nil {
		return nil, err
	}
	return r.scanAll(rows)
}

func (r *Repository) queueEvent(ctx context.Context, tx pgx.Tx, reservationID int64, eventType string, payload []byte) error {
	headers := map[string]string{"source": "reservation-service"}
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
		"reservation", strconv.FormatInt(reservationID, 10), eventType, payload, headers, traceparentFromContext(ctx))
	return err
}

func (r *Repository) scanOne(row pgx.Row) (domain.Reservation, error) {
	var res domain.Reservation
	err := row.Scan(&res.ID, &res.UserID, &res.StockID, &res.PharmacyID, &res.Quantity, &res.Status, &res.Code, &res.CreatedAt, &res.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Reservation{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Reservation{}, err
	}
	return res, nil
}

func (r *Repository) scanAll(rows pgx.Rows) ([]domain.Reservation, error) {
	defer rows.Close()
	var out []domain.Reservation
	for rows.Next() {
		var res domain.Reservation
		if err := rows.Scan(&res.ID, &res.UserID, &res.StockID, &res.PharmacyID, &res.Quantity, &res.Status, &res.Code, &res.CreatedAt, &res.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func traceparentFromContext(ctx context.Context) string {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier["traceparent"]
}
