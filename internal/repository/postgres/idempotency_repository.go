package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdempotencyEntry stores a replayable response for an Idempotency-Key.
type IdempotencyEntry struct {
	Key            string
	MerchantID     string
	ResponseBody   string
	ResponseStatus int
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// IdempotencyRepository persists idempotency entries in PostgreSQL.
type IdempotencyRepository struct {
	pool *pgxpool.Pool
}

// NewIdempotencyRepository creates a new IdempotencyRepository.
func NewIdempotencyRepository(pool *pgxpool.Pool) *IdempotencyRepository {
	return &IdempotencyRepository{pool: pool}
}

// Get returns the stored entry for a key, or nil when absent or expired.
func (r *IdempotencyRepository) Get(ctx context.Context, merchantID, key string) (*IdempotencyEntry, error) {
	var e IdempotencyEntry
	err := r.pool.QueryRow(ctx,
		`SELECT key, merchant_id, response_body, response_status, created_at, expires_at
		 FROM idempotency_keys
		 WHERE key = $1 AND merchant_id = $2 AND expires_at > now()`,
		key, merchantID,
	).Scan(&e.Key, &e.MerchantID, &e.ResponseBody, &e.ResponseStatus, &e.CreatedAt, &e.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency entry: %w", err)
	}
	return &e, nil
}

// Set stores an entry, overwriting a previous expired one.
func (r *IdempotencyRepository) Set(ctx context.Context, e *IdempotencyEntry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO idempotency_keys (key, merchant_id, response_body, response_status, created_at, expires_at)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (key, merchant_id) DO UPDATE
		 SET response_body = EXCLUDED.response_body,
		     response_status = EXCLUDED.response_status,
		     created_at = EXCLUDED.created_at,
		     expires_at = EXCLUDED.expires_at`,
		e.Key, e.MerchantID, e.ResponseBody, e.ResponseStatus, e.CreatedAt, e.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("set idempotency entry: %w", err)
	}
	return nil
}
