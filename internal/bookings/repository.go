// Package bookings archives successfully booked appointments. Rows are
// terminal records: insert-only, one per confirmed booking.
package bookings

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ConfirmedBooking is one archived booking row.
type ConfirmedBooking struct {
	ID            string    `json:"id"`
	CallID        string    `json:"call_id"`
	CustomerID    int64     `json:"customer_id"`
	AppointmentID string    `json:"appointment_id"`
	ProviderName  string    `json:"provider_name"`
	Location      string    `json:"location"`
	StartTime     time.Time `json:"start_time"`
	CreatedAt     time.Time `json:"created_at"`
}

// Repository persists confirmed bookings.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repository over an open database handle.
func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		panic("bookings: db handle required")
	}
	return &Repository{db: db}
}

// RecordConfirmed inserts one confirmed booking and returns the stored row.
func (r *Repository) RecordConfirmed(ctx context.Context, b ConfirmedBooking) (*ConfirmedBooking, error) {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO confirmed_bookings
			(id, call_id, customer_id, appointment_id, provider_name, location, start_time, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	var start any
	if !b.StartTime.IsZero() {
		start = b.StartTime
	}
	_, err := r.db.ExecContext(ctx, query,
		b.ID, b.CallID, b.CustomerID, b.AppointmentID, b.ProviderName, b.Location, start, b.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("bookings: insert confirmed: %w", err)
	}
	return &b, nil
}

// ListRecent returns the newest confirmed bookings, up to limit.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]ConfirmedBooking, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, call_id, customer_id, appointment_id, provider_name, location, start_time, created_at
		FROM confirmed_bookings
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("bookings: list recent: %w", err)
	}
	defer rows.Close()

	var out []ConfirmedBooking
	for rows.Next() {
		var b ConfirmedBooking
		var start sql.NullTime
		if err := rows.Scan(&b.ID, &b.CallID, &b.CustomerID, &b.AppointmentID,
			&b.ProviderName, &b.Location, &start, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("bookings: scan row: %w", err)
		}
		if start.Valid {
			b.StartTime = start.Time
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
