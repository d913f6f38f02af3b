package postgres

import (
	"context"
	"errors"
	"fmt"

	domainErrors "github.com/cassiomorais/switchboard/internal/domain/errors"
	"github.com/cassiomorais/switchboard/internal/domain/payments"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const attemptColumns = `id, payment_id, merchant_id, status, amount, currency, connector,
	merchant_connector_id, connector_transaction_id, connector_reference_id,
	payment_method, error_code, error_message, error_reason, mandate_id, created_at, updated_at`

// AttemptRepository persists PaymentAttempts in PostgreSQL.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

func (r *AttemptRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Insert creates a new attempt row.
func (r *AttemptRepository) Insert(ctx context.Context, a *payments.PaymentAttempt) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO payment_attempts (`+attemptColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		a.ID, a.PaymentID, a.MerchantID, string(a.Status),
		a.Amount.ValueMinor, a.Amount.Currency, a.Connector,
		a.MerchantConnectorID, a.ConnectorTransactionID, a.ConnectorReferenceID,
		a.PaymentMethod, a.ErrorCode, a.ErrorMessage, a.ErrorReason, a.MandateID,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return domainErrors.ErrUniqueViolation
		}
		return fmt.Errorf("insert payment attempt: %w", err)
	}
	return nil
}

// Update applies a typed update's changeset and returns the updated attempt.
func (r *AttemptRepository) Update(ctx context.Context, a *payments.PaymentAttempt, update payments.AttemptUpdate) (*payments.PaymentAttempt, error) {
	cs := update.AttemptChangeset()

	query := `UPDATE payment_attempts SET updated_at = $1`
	args := []any{cs.UpdatedAt}
	argIdx := 2

	set := func(col string, v any) {
		query += fmt.Sprintf(", %s = $%d", col, argIdx)
		args = append(args, v)
		argIdx++
	}

	if cs.Status != nil {
		set("status", string(*cs.Status))
	}
	if cs.Connector != nil {
		set("connector", *cs.Connector)
	}
	if cs.MerchantConnectorID != nil {
		set("merchant_connector_id", *cs.MerchantConnectorID)
	}
	if cs.ConnectorTransactionID != nil {
		set("connector_transaction_id", *cs.ConnectorTransactionID)
	}
	if cs.ConnectorReferenceID != nil {
		set("connector_reference_id", *cs.ConnectorReferenceID)
	}
	if cs.PaymentMethod != nil {
		set("payment_method", *cs.PaymentMethod)
	}
	if cs.ErrorCode != nil {
		set("error_code", *cs.ErrorCode)
	}
	if cs.ErrorMessage != nil {
		set("error_message", *cs.ErrorMessage)
	}
	if cs.ErrorReason != nil {
		set("error_reason", *cs.ErrorReason)
	}
	if cs.MandateID != nil {
		set("mandate_id", *cs.MandateID)
	}

	query += fmt.Sprintf(" WHERE id = $%d RETURNING ", argIdx) + attemptColumns
	args = append(args, a.ID)

	return r.scanAttempt(r.db(ctx).QueryRow(ctx, query, args...))
}

// FindByID retrieves an attempt by id.
func (r *AttemptRepository) FindByID(ctx context.Context, id uuid.UUID) (*payments.PaymentAttempt, error) {
	return r.scanAttempt(r.db(ctx).QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM payment_attempts WHERE id = $1`, id))
}

// FindByConnectorTransactionID resolves a webhook object reference.
func (r *AttemptRepository) FindByConnectorTransactionID(ctx context.Context, merchantID, connectorTxnID string) (*payments.PaymentAttempt, error) {
	return r.scanAttempt(r.db(ctx).QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM payment_attempts
		 WHERE merchant_id = $1 AND connector_transaction_id = $2`,
		merchantID, connectorTxnID))
}

// ListNonTerminal returns attempts awaiting a terminal status, oldest first.
// Used by the sync worker.
func (r *AttemptRepository) ListNonTerminal(ctx context.Context, limit int) ([]*payments.PaymentAttempt, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+attemptColumns+` FROM payment_attempts
		 WHERE status IN ('pending', 'authorizing', 'authentication_pending')
		   AND connector_transaction_id IS NOT NULL
		 ORDER BY updated_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list non-terminal attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*payments.PaymentAttempt
	for rows.Next() {
		a, err := r.scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func (r *AttemptRepository) scanAttempt(row scanner) (*payments.PaymentAttempt, error) {
	var (
		a      payments.PaymentAttempt
		status string
	)
	err := row.Scan(
		&a.ID, &a.PaymentID, &a.MerchantID, &status,
		&a.Amount.ValueMinor, &a.Amount.Currency, &a.Connector,
		&a.MerchantConnectorID, &a.ConnectorTransactionID, &a.ConnectorReferenceID,
		&a.PaymentMethod, &a.ErrorCode, &a.ErrorMessage, &a.ErrorReason, &a.MandateID,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrAttemptNotFound
		}
		return nil, fmt.Errorf("scan payment attempt: %w", err)
	}
	a.Status = payments.AttemptStatus(status)
	return &a, nil
}
