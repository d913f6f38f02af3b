package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/switchboard/internal/domain/errors"
	"github.com/cassiomorais/switchboard/internal/domain/payments"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const mandateColumns = `id, merchant_id, customer_id, connector, merchant_connector_id,
	connector_mandate_id, status, created_at, updated_at`

// MandateRepository persists Mandates in PostgreSQL.
type MandateRepository struct {
	pool *pgxpool.Pool
}

// NewMandateRepository creates a new MandateRepository.
func NewMandateRepository(pool *pgxpool.Pool) *MandateRepository {
	return &MandateRepository{pool: pool}
}

func (r *MandateRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Insert creates a new mandate row.
func (r *MandateRepository) Insert(ctx context.Context, m *payments.Mandate) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO mandates (`+mandateColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		m.ID, m.MerchantID, m.CustomerID, m.Connector, m.MerchantConnectorID,
		m.ConnectorMandateID, string(m.Status), m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return domainErrors.ErrUniqueViolation
		}
		return fmt.Errorf("insert mandate: %w", err)
	}
	return nil
}

// FindByID retrieves a mandate scoped to its merchant.
func (r *MandateRepository) FindByID(ctx context.Context, merchantID string, id uuid.UUID) (*payments.Mandate, error) {
	return r.scanMandate(r.db(ctx).QueryRow(ctx,
		`SELECT `+mandateColumns+` FROM mandates WHERE id = $1 AND merchant_id = $2`,
		id, merchantID))
}

// FindActive returns the newest active mandate for a customer on one
// merchant connector account.
func (r *MandateRepository) FindActive(ctx context.Context, merchantID, customerID, merchantConnectorID string) (*payments.Mandate, error) {
	return r.scanMandate(r.db(ctx).QueryRow(ctx,
		`SELECT `+mandateColumns+` FROM mandates
		 WHERE merchant_id = $1 AND customer_id = $2 AND merchant_connector_id = $3 AND status = 'active'
		 ORDER BY created_at DESC LIMIT 1`,
		merchantID, customerID, merchantConnectorID))
}

// FindByConnectorMandateID resolves a webhook mandate reference.
func (r *MandateRepository) FindByConnectorMandateID(ctx context.Context, merchantID, connectorMandateID string) (*payments.Mandate, error) {
	return r.scanMandate(r.db(ctx).QueryRow(ctx,
		`SELECT `+mandateColumns+` FROM mandates WHERE merchant_id = $1 AND connector_mandate_id = $2`,
		merchantID, connectorMandateID))
}

// UpdateStatus moves a mandate's status.
func (r *MandateRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status payments.MandateStatus) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE mandates SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now(), id)
	if err != nil {
		return fmt.Errorf("update mandate status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrMandateNotFound
	}
	return nil
}

func (r *MandateRepository) scanMandate(row scanner) (*payments.Mandate, error) {
	var (
		m      payments.Mandate
		status string
	)
	err := row.Scan(
		&m.ID, &m.MerchantID, &m.CustomerID, &m.Connector, &m.MerchantConnectorID,
		&m.ConnectorMandateID, &status, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrMandateNotFound
		}
		return nil, fmt.Errorf("scan mandate: %w", err)
	}
	m.Status = payments.MandateStatus(status)
	return &m, nil
}
