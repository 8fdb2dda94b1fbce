package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository looks customers up in the customers table.
type PostgresRepository struct {
	pool rowQuerier
}

// NewPostgresRepository creates a repository over a pgx pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("identity: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func newPostgresRepositoryWithQuerier(q rowQuerier) *PostgresRepository {
	if q == nil {
		panic("identity: querier required")
	}
	return &PostgresRepository{pool: q}
}

// FindCustomer matches on the last ten phone digits plus the SSN fragment and
// date of birth. A miss returns (nil, nil).
func (r *PostgresRepository) FindCustomer(ctx context.Context, phoneLast10, last4, dob string) (*CustomerRecord, error) {
	query := `
		SELECT id, first_name, last_name, phone, last4_ssn, dob, zip_code, plan, status, email
		FROM customers
		WHERE right(regexp_replace(phone, '\D', '', 'g'), 10) = $1
		  AND last4_ssn = $2
		  AND dob = $3
		LIMIT 1
	`
	var c CustomerRecord
	err := r.pool.QueryRow(ctx, query, phoneLast10, last4, dob).Scan(
		&c.ID, &c.FirstName, &c.LastName, &c.Phone, &c.Last4SSN,
		&c.DOB, &c.ZipCode, &c.Plan, &c.Status, &c.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("identity: find customer: %w", err)
	}
	return &c, nil
}
