package postgres

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmaflow/reservation-service/internal/notification/domain"
)

type Store struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	return &Store{log: log, pool: pool}
}

func (s *Store) Insert(ctx context.Context, userID int64, title, body string, category domain.Category, data map[string]any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO notifications (user_id, title, body, read, category, payload, created_at)
		VALUES ($1,$2,$3,false,$4,$5,now())`,
		userID, title, body, category, payload)
	return err
}

// ListByUser returns the full inbox, read and unread alike, newest first.
func (s *Store) ListByUser(ctx context.Context, userID int64) ([]domain.Notification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, title, body, read, category, payload, created_at
		FROM notifications
		WHERE user_id=$1
		ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var payload []byte
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &n.Read, &n.Category, &payload, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Payload = payload
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkAllRead flips the read flag on unread rows only; nothing is removed.
func (s *Store) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	ct, err := s.pool.Exec(ctx,
		`UPDATE notifications SET read=true WHERE user_id=$1 AND read=false`, userID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// DeleteAll hard-deletes the user's inbox.
func (s *Store) DeleteAll(ctx context.Context, userID int64) (int64, error) {
	ct, err := s.pool.Exec(ctx, `DELETE FROM notifications WHERE user_id=$1`, userID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}
