// Package identity is a typed read client for the identity store. It covers
// the three things the reservation core needs to know about a user: who they
// are, which pharmacy they act for, and where to push.
package identity

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("user not found")

type Role string

const (
	RoleClient     Role = "client"
	RolePharmacist Role = "pharmacist"
)

type User struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Role        Role   `json:"role"`
	PharmacyID  *int64 `json:"pharmacy_id,omitempty"`
	DeviceToken string `json:"-"`
}

type Client struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewClient(log *slog.Logger, pool *pgxpool.Pool) *Client {
	return &Client{log: log, pool: pool}
}

func (c *Client) User(ctx context.Context, userID int64) (User, error) {
	var u User
	var token *string
	err := c.pool.QueryRow(ctx,
		`SELECT id, name, role, pharmacy_id, device_token FROM users WHERE id=$1`, userID).
		Scan(&u.ID, &u.Name, &u.Role, &u.PharmacyID, &token)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	if token != nil {
		u.DeviceToken = *token
	}
	return u, nil
}

// PharmacistFor returns the pharmacist operating the given pharmacy, if one
// exists. Absence is a normal outcome, not an error.
func (c *Client) PharmacistFor(ctx context.Context, pharmacyID int64) (User, bool, error) {
	var u User
	var token *string
	err := c.pool.QueryRow(ctx,
		`SELECT id, name, role, pharmacy_id, device_token
		 FROM users WHERE pharmacy_id=$1 AND role=$2 LIMIT 1`,
		pharmacyID, RolePharmacist).
		Scan(&u.ID, &u.Name, &u.Role, &u.PharmacyID, &token)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, err
	}
	if token != nil {
		u.DeviceToken = *token
	}
	return u, true, nil
}

// DeviceToken looks up a user's push token. An empty token means the user
// has no registered device; push is silently skipped in that case.
func (c *Client) DeviceToken(ctx context.Context, userID int64) (string, error) {
	var token *string
	err := c.pool.QueryRow(ctx,
		`SELECT device_token FROM users WHERE id=$1`, userID).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if token == nil {
		return "", nil
	}
	return *token, nil
}
