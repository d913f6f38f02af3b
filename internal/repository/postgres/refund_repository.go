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

const refundColumns = `id, payment_id, attempt_id, merchant_id, connector, connector_refund_id,
	amount, currency, status, reason, error_code, error_message, created_at, updated_at`

// RefundRepository persists Refunds in PostgreSQL.
type RefundRepository struct {
	pool *pgxpool.Pool
}

// NewRefundRepository creates a new RefundRepository.
func NewRefundRepository(pool *pgxpool.Pool) *RefundRepository {
	return &RefundRepository{pool: pool}
}

func (r *RefundRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Insert creates a new refund row.
func (r *RefundRepository) Insert(ctx context.Context, rf *payments.Refund) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO refunds (`+refundColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		rf.ID, rf.PaymentID, rf.AttemptID, rf.MerchantID, rf.Connector, rf.ConnectorRefundID,
		rf.Amount.ValueMinor, rf.Amount.Currency, string(rf.Status), rf.Reason,
		rf.ErrorCode, rf.ErrorMessage, rf.CreatedAt, rf.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return domainErrors.ErrUniqueViolation
		}
		return fmt.Errorf("insert refund: %w", err)
	}
	return nil
}

// Update applies a typed refund update's changeset.
func (r *RefundRepository) Update(ctx context.Context, rf *payments.Refund, update payments.RefundUpdate) (*payments.Refund, error) {
	cs := update.RefundChangeset()

	query := `UPDATE refunds SET updated_at = $1`
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
	if cs.ConnectorRefundID != nil {
		set("connector_refund_id", *cs.ConnectorRefundID)
	}
	if cs.ErrorCode != nil {
		set("error_code", *cs.ErrorCode)
	}
	if cs.ErrorMessage != nil {
		set("error_message", *cs.ErrorMessage)
	}

	query += fmt.Sprintf(" WHERE id = $%d RETURNING ", argIdx) + refundColumns
	args = append(args, rf.ID)

	return r.scanRefund(r.db(ctx).QueryRow(ctx, query, args...))
}

// FindByID retrieves a refund scoped to its merchant.
func (r *RefundRepository) FindByID(ctx context.Context, merchantID string, id uuid.UUID) (*payments.Refund, error) {
	return r.scanRefund(r.db(ctx).QueryRow(ctx,
		`SELECT `+refundColumns+` FROM refunds WHERE id = $1 AND merchant_id = $2`,
		id, merchantID))
}

// AmountRefunded sums the amount of succeeded or in-flight refunds.
func (r *RefundRepository) AmountRefunded(ctx context.Context, paymentID uuid.UUID) (int64, error) {
	var total int64
	err := r.db(ctx).QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM refunds
		 WHERE payment_id = $1 AND status IN ('pending', 'success', 'manual_review')`,
		paymentID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum refunded amount: %w", err)
	}
	return total, nil
}

// ListNonTerminal returns refunds awaiting a terminal status, oldest first.
func (r *RefundRepository) ListNonTerminal(ctx context.Context, limit int) ([]*payments.Refund, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+refundColumns+` FROM refunds
		 WHERE status IN ('pending', 'manual_review') AND connector_refund_id IS NOT NULL
		 ORDER BY updated_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list non-terminal refunds: %w", err)
	}
	defer rows.Close()

	var refunds []*payments.Refund
	for rows.Next() {
		rf, err := r.scanRefund(rows)
		if err != nil {
			return nil, err
		}
		refunds = append(refunds, rf)
	}
	return refunds, rows.Err()
}

func (r *RefundRepository) scanRefund(row scanner) (*payments.Refund, error) {
	var (
		rf     payments.Refund
		status string
	)
	err := row.Scan(
		&rf.ID, &rf.PaymentID, &rf.AttemptID, &rf.MerchantID, &rf.Connector, &rf.ConnectorRefundID,
		&rf.Amount.ValueMinor, &rf.Amount.Currency, &status, &rf.Reason,
		&rf.ErrorCode, &rf.ErrorMessage, &rf.CreatedAt, &rf.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrRefundNotFound
		}
		return nil, fmt.Errorf("scan refund: %w", err)
	}
	rf.Status = payments.RefundStatus(status)
	return &rf, nil
}
