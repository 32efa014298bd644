// Package catalog is a typed read client for the pharmacy catalog store.
// The catalog lives in a separately-addressable database owned by another
// service; the reservation core only reads human-facing names from it.
package catalog

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("catalog record not found")

type Pharmacy struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

type Client struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewClient(log *slog.Logger, pool *pgxpool.Pool) *Client {
	return &Client{log: log, pool: pool}
}

func (c *Client) MedicationName(ctx context.Context, medicationID int64) (string, error) {
	var name string
	err := c.pool.QueryRow(ctx,
		`SELECT name FROM medications WHERE id=$1`, medicationID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return name, nil
}

func (c *Client) Pharmacy(ctx context.Context, pharmacyID int64) (Pharmacy, error) {
	var p Pharmacy
	err := c.pool.QueryRow(ctx,
		`SELECT id, name, address, phone FROM pharmacies WHERE id=$1`, pharmacyID).
		Scan(&p.ID, &p.Name, &p.Address, &p.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return Pharmacy{}, ErrNotFound
	}
	if err != nil {
		return Pharmacy{}, err
	}
	return p, nil
}
