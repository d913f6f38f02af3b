package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	domainErrors "github.com/cassiomorais/switchboard/internal/domain/errors"
	"github.com/cassiomorais/switchboard/internal/domain/payments"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolationCode = "23505"

const intentColumns = `id, merchant_id, amount, currency, amount_captured, status, capture_method,
	client_secret, client_secret_expires_at, active_attempt_id, attempt_count,
	description, return_url, customer_id, setup_future_usage, metadata, created_at, updated_at`

// IntentRepository persists PaymentIntents in PostgreSQL.
type IntentRepository struct {
	pool *pgxpool.Pool
}

// NewIntentRepository creates a new IntentRepository.
func NewIntentRepository(pool *pgxpool.Pool) *IntentRepository {
	return &IntentRepository{pool: pool}
}

func (r *IntentRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Insert creates a new payment intent row.
func (r *IntentRepository) Insert(ctx context.Context, p *payments.PaymentIntent) error {
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = r.db(ctx).Exec(ctx,
		`INSERT INTO payment_intents
		 (`+intentColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		p.ID, p.MerchantID, p.Amount.ValueMinor, p.Amount.Currency, p.AmountCaptured,
		string(p.Status), string(p.CaptureMethod), p.ClientSecret, p.ClientSecretExpiresAt,
		p.ActiveAttemptID, p.AttemptCount, p.Description, p.ReturnURL, p.CustomerID,
		p.SetupFutureUsage, metadata, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return domainErrors.ErrUniqueViolation
		}
		return fmt.Errorf("insert payment intent: %w", err)
	}
	return nil
}

// Update applies a typed update's changeset and returns the updated intent.
func (r *IntentRepository) Update(ctx context.Context, p *payments.PaymentIntent, update payments.IntentUpdate) (*payments.PaymentIntent, error) {
	cs := update.IntentChangeset()

	query := `UPDATE payment_intents SET updated_at = $1`
	args := []any{cs.UpdatedAt}
	argIdx := 2

	if cs.Status != nil {
		query += fmt.Sprintf(", status = $%d", argIdx)
		args = append(args, string(*cs.Status))
		argIdx++
	}
	if cs.ActiveAttemptID != nil {
		query += fmt.Sprintf(", active_attempt_id = $%d", argIdx)
		args = append(args, *cs.ActiveAttemptID)
		argIdx++
	}
	if cs.AttemptCountIncr {
		query += ", attempt_count = attempt_count + 1"
	}
	if cs.AmountCaptured != nil {
		query += fmt.Sprintf(", amount_captured = $%d", argIdx)
		args = append(args, *cs.AmountCaptured)
		argIdx++
	}

	query += fmt.Sprintf(" WHERE id = $%d AND merchant_id = $%d RETURNING ", argIdx, argIdx+1) + intentColumns
	args = append(args, p.ID, p.MerchantID)

	updated, err := r.scanIntent(r.db(ctx).QueryRow(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// FindByID retrieves an intent scoped to its merchant.
func (r *IntentRepository) FindByID(ctx context.Context, merchantID string, id uuid.UUID) (*payments.PaymentIntent, error) {
	return r.scanIntent(r.db(ctx).QueryRow(ctx,
		`SELECT `+intentColumns+` FROM payment_intents WHERE id = $1 AND merchant_id = $2`,
		id, merchantID))
}

func (r *IntentRepository) scanIntent(row scanner) (*payments.PaymentIntent, error) {
	var (
		p        payments.PaymentIntent
		status   string
		capture  string
		metadata []byte
	)
	err := row.Scan(
		&p.ID, &p.MerchantID, &p.Amount.ValueMinor, &p.Amount.Currency, &p.AmountCaptured,
		&status, &capture, &p.ClientSecret, &p.ClientSecretExpiresAt,
		&p.ActiveAttemptID, &p.AttemptCount, &p.Description, &p.ReturnURL, &p.CustomerID,
		&p.SetupFutureUsage, &metadata, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("scan payment intent: %w", err)
	}
	p.Status = payments.IntentStatus(status)
	p.CaptureMethod = payments.CaptureMethod(capture)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &p, nil
}
