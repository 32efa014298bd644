package integration

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaflow/reservation-service/internal/reservation/application"
	"github.com/pharmaflow/reservation-service/internal/reservation/domain"
	respg "github.com/pharmaflow/reservation-service/internal/reservation/infrastructure/postgres"
	stockpg "github.com/pharmaflow/reservation-service/internal/stock/postgres"
	"github.com/pharmaflow/reservation-service/pkg/idempotency"
)

func TestReservationFlow(t *testing.T) {
	if os.Getenv("INTEGRATION") == "" {
		t.Skip("set INTEGRATION=1 to run container-backed tests")
	}

	ctx := context.Background()
	env, err := Setup(ctx)
	require.NoError(t, err)
	defer env.Teardown(ctx)

	pool, err := pgxpool.New(ctx, env.PGURL)
	require.NoError(t, err)
	defer pool.Close()

	require.NoError(t, respg.Migrate(ctx, pool))

	var stockID int64
	err = pool.QueryRow(ctx, `
		INSERT INTO stock_items (pharmacy_id, medication_id, quantity, price_cents, available)
		VALUES (10, 100, 5, 450, TRUE) RETURNING id`).Scan(&stockID)
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger := stockpg.NewLedger(log, pool)
	repo := respg.NewRepository(log, pool, ledger)

	quantityOf := func() int {
		item, err := ledger.Get(ctx, stockID)
		require.NoError(t, err)
		return item.Quantity
	}

	// reserve decrements stock and queues a domain event atomically
	res, err := repo.Create(ctx, application.CreateInput{UserID: 7, StockID: stockID, PharmacyID: 10, Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, res.Status)
	assert.Equal(t, 2, quantityOf())

	var outboxCount int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT count(*) FROM outbox WHERE aggregate_type='reservation' AND status='pending'`).Scan(&outboxCount))
	assert.Equal(t, 1, outboxCount)

	// an oversized reserve leaves no trace at all
	_, err = repo.Create(ctx, application.CreateInput{UserID: 7, StockID: stockID, PharmacyID: 10, Quantity: 3})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 2, quantityOf())

	var reservationCount int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM reservations`).Scan(&reservationCount))
	assert.Equal(t, 1, reservationCount)

	// code lookup tolerates raw code, bare suffix and numeric id
	found, err := repo.FindByCode(ctx, res.Code)
	require.NoError(t, err)
	assert.Equal(t, res.ID, found.ID)
	found, err = repo.FindByCode(ctx, res.Code[len(domain.CodePrefix):])
	require.NoError(t, err)
	assert.Equal(t, res.ID, found.ID)

	// compensation: release restores the decremented quantity
	updated, err := repo.UpdateStatus(ctx, res.ID, domain.StatusRejected)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, updated.Status)
	require.NoError(t, ledger.Release(ctx, stockID, res.Quantity))
	assert.Equal(t, 5, quantityOf())
}

func TestIdempotencyStore(t *testing.T) {
	if os.Getenv("INTEGRATION") == "" {
		t.Skip("set INTEGRATION=1 to run container-backed tests")
	}

	ctx := context.Background()
	env, err := Setup(ctx)
	require.NoError(t, err)
	defer env.Teardown(ctx)

	opts, err := redis.ParseURL(env.RedisAddr)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	store := idempotency.NewStore(rdb, time.Minute)
	key := store.Key("POST", "/reservations", "req-123")

	seen, err := store.Seen(ctx, key)
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, store.Record(ctx, key))

	seen, err = store.Seen(ctx, key)
	require.NoError(t, err)
	assert.True(t, seen)
}
