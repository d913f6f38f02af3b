package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OutboxEntry is one merchant-facing event awaiting publication. Terminal
// tracker updates append here inside the same transaction; the worker
// publishes to Redis streams and marks rows off.
type OutboxEntry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	MerchantID    string
	EventType     string
	Payload       map[string]any
	Status        string
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

// OutboxRepository persists outbox entries in PostgreSQL.
type OutboxRepository struct {
	pool *pgxpool.Pool
}

// NewOutboxRepository creates a new OutboxRepository.
func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

func (r *OutboxRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Insert appends an event, intended to run inside the tracker transaction.
func (r *OutboxRepository) Insert(ctx context.Context, e *OutboxEntry) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	_, err = r.db(ctx).Exec(ctx,
		`INSERT INTO outbox_events (id, aggregate_type, aggregate_id, merchant_id, event_type, payload, status, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,'pending',$7)`,
		e.ID, e.AggregateType, e.AggregateID, e.MerchantID, e.EventType, payload, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

// GetPending returns unpublished entries, oldest first, locked for this tx.
func (r *OutboxRepository) GetPending(ctx context.Context, limit int) ([]*OutboxEntry, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, aggregate_type, aggregate_id, merchant_id, event_type, payload, status, created_at, published_at
		 FROM outbox_events
		 WHERE status = 'pending'
		 ORDER BY created_at ASC
		 LIMIT $1
		 FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending outbox events: %w", err)
	}
	defer rows.Close()

	var entries []*OutboxEntry
	for rows.Next() {
		var (
			e       OutboxEntry
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.MerchantID,
			&e.EventType, &payload, &e.Status, &e.CreatedAt, &e.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &e.Payload); err != nil {
				return nil, fmt.Errorf("unmarshal outbox payload: %w", err)
			}
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// MarkPublished marks an entry as published.
func (r *OutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	_, err := r.db(ctx).Exec(ctx,
		`UPDATE outbox_events SET status = 'published', published_at = $1 WHERE id = $2`,
		time.Now(), id)
	if err != nil {
		return fmt.Errorf("mark outbox event published: %w", err)
	}
	return nil
}

// MarkFailed marks an entry as failed so it is retried on the next poll.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	_, err := r.db(ctx).Exec(ctx,
		`UPDATE outbox_events SET status = 'pending' WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark outbox event failed: %w", err)
	}
	return nil
}
