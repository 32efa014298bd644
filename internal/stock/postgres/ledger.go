package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	resdom "github.com/pharmaflow/reservation-service/internal/reservation/domain"
	"github.com/pharmaflow/reservation-service/internal/stock/domain"
)

// Ledger guards the only hard invariant in the system: a stock quantity is
// never observed below zero, under any interleaving of concurrent writers.
type Ledger struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewLedger(log *slog.Logger, pool *pgxpool.Pool) *Ledger {
	return &Ledger{log: log, pool: pool}
}

// TryReserve locks the stock row inside the caller's transaction, checks the
// requested quantity against the available one and decrements on success.
// The row lock is held until the caller commits, so the check and the
// reservation insert are one atomic unit.
func (l *Ledger) TryReserve(ctx context.Context, tx pgx.Tx, stockID int64, quantity int) error {
	var available int
	var open bool
	err := tx.QueryRow(ctx,
		`SELECT quantity, available FROM stock_items WHERE id=$1 FOR UPDATE`,
		stockID).Scan(&available, &open)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	if !open || available < quantity {
		return resdom.ErrInsufficientStock
	}
	_, err = tx.Exec(ctx,
		`UPDATE stock_items SET quantity = quantity - $1, updated_at = now() WHERE id=$2`,
		quantity, stockID)
	return err
}

// Release puts a previously reserved quantity back. The caller is
// responsible for invoking this at most once per reservation; the pending
// status guard in the orchestrator provides that.
func (l *Ledger) Release(ctx context.Context, stockID int64, quantity int) error {
	ct, err := l.pool.Exec(ctx,
		`UPDATE stock_items SET quantity = quantity + $1, updated_at = now() WHERE id=$2`,
		quantity, stockID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	l.log.Info("stock released", "stock_id", stockID, "quantity", quantity)
	return nil
}

func (l *Ledger) Get(ctx context.Context, stockID int64) (domain.StockItem, error) {
	var it domain.StockItem
	err := l.pool.QueryRow(ctx,
		`SELECT id, pharmacy_id, medication_id, quantity, price_cents, available, updated_at
		 FROM stock_items WHERE id=$1`, stockID).
		Scan(&it.ID, &it.PharmacyID, &it.MedicationID, &it.Quantity, &it.PriceCents, &it.Available, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.StockItem{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.StockItem{}, err
	}
	return it, nil
}
