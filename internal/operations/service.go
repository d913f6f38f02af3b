package operations

import (
	"context"
	"time"

	"github.com/cassiomorais/switchboard/internal/config"
	"github.com/cassiomorais/switchboard/internal/connector"
	domainErrors "github.com/cassiomorais/switchboard/internal/domain/errors"
	"github.com/cassiomorais/switchboard/internal/domain/payments"
	"github.com/cassiomorais/switchboard/internal/observability"
	"github.com/cassiomorais/switchboard/internal/repository/postgres"
	"github.com/cassiomorais/switchboard/internal/routing"
	"github.com/cassiomorais/switchboard/internal/tokens"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Dispatcher drives the execution engine over a routing decision.
// Satisfied by *routing.Dispatcher.
type Dispatcher interface {
	Call(ctx context.Context, callType routing.ConnectorCallType, rd *connector.RouterData) (*connector.RouterData, error)
}

// TransactionManager wraps tracker writes that must commit together.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// OutboxWriter appends merchant-facing events inside the tracker transaction.
type OutboxWriter interface {
	Insert(ctx context.Context, entry *postgres.OutboxEntry) error
}

// Service carries the collaborators shared by every operation.
type Service struct {
	Intents    payments.IntentRepository
	Attempts   payments.AttemptRepository
	Refunds    payments.RefundRepository
	Mandates   payments.MandateRepository
	Outbox     OutboxWriter
	Tx         TransactionManager
	Dispatcher Dispatcher
	Registry   *connector.Registry
	Tokens     *tokens.Cache
	Accounts   map[string]config.ConnectorAccount
	Routing    routing.MerchantRouting
	Scheme     payments.StorageScheme
	SecretTTL  time.Duration
	Logger     zerolog.Logger
	Metrics    *observability.Metrics
}

// AuthFor builds the credential set for a connector account. Fails with the
// configuration kind when the account is absent.
func (s *Service) AuthFor(connectorName string) (connector.AuthType, error) {
	acct, ok := s.Accounts[connectorName]
	if !ok {
		return connector.AuthType{}, connector.NewInvalidConnectorConfig("no account configured for connector " + connectorName)
	}
	return connector.AuthType{
		Kind:      connector.AuthKind(acct.AuthKind),
		APIKey:    acct.APIKey,
		Key1:      acct.Key1,
		APISecret: acct.APISecret,
	}, nil
}

// resolveCandidates attaches per-candidate credentials to a routing decision
// and, when the payment method is known, drops candidates that cannot process
// it. Every candidate that survives carries its own Auth, so a fallback is
// never dispatched with the primary's credentials.
func (s *Service) resolveCandidates(callType routing.ConnectorCallType, method *connector.PaymentMethodData) (routing.ConnectorCallType, error) {
	resolved := routing.ConnectorCallType{
		Kind:       callType.Kind,
		Candidates: make([]routing.Candidate, 0, len(callType.Candidates)),
	}
	for _, cand := range callType.Candidates {
		conn, err := s.Registry.Get(cand.ConnectorName)
		if err != nil {
			return routing.ConnectorCallType{}, err
		}
		if method != nil && !conn.Capabilities().SupportsPaymentMethod(method.Type) {
			continue
		}
		auth, err := s.AuthFor(cand.ConnectorName)
		if err != nil {
			return routing.ConnectorCallType{}, err
		}
		cand.Auth = auth
		resolved.Candidates = append(resolved.Candidates, cand)
	}
	if len(resolved.Candidates) == 0 {
		if method != nil {
			return routing.ConnectorCallType{}, connector.NewNotSupported("payment method " + string(method.Type) + " is not supported by any routable connector")
		}
		return routing.ConnectorCallType{}, domainErrors.ErrConnectorNotFound
	}
	return resolved, nil
}

// PrepareConnectorCall is the dispatcher's per-candidate pre-step. It runs
// the access-token exchange for connectors that need one; the token flow
// itself dispatches through the same hook, so it is a no-op there.
func (s *Service) PrepareConnectorCall(ctx context.Context, conn connector.Connector, rd *connector.RouterData) error {
	if rd.Flow == connector.FlowAccessTokenAuth {
		return nil
	}
	return s.ensureAccessToken(ctx, conn, rd)
}

// WebhookSecretFor returns the merchant's webhook secret for a connector.
func (s *Service) WebhookSecretFor(connectorName string) []byte {
	return []byte(s.Accounts[connectorName].WebhookSecret)
}

// guard enforces the per-operation allowed-status set. This is the single
// authoritative check against re-entrant or out-of-order mutation.
func (s *Service) guard(op Operation, intent *payments.PaymentIntent) error {
	for _, allowed := range op.AllowedStatuses() {
		if intent.Status == allowed {
			return nil
		}
	}
	allowed := make([]string, 0, len(op.AllowedStatuses()))
	for _, a := range op.AllowedStatuses() {
		allowed = append(allowed, string(a))
	}
	s.Metrics.StateGuardRejections.WithLabelValues(op.Name(), string(intent.Status)).Inc()
	return domainErrors.NewUnexpectedState(op.Name(), string(intent.Status), allowed)
}

// loadIntent fetches and verifies ownership of an intent for an operation.
func (s *Service) loadIntent(ctx context.Context, merchantID string, id uuid.UUID, clientSecret string) (*payments.PaymentIntent, error) {
	intent, err := s.Intents.FindByID(ctx, merchantID, id, s.Scheme)
	if err != nil {
		return nil, err
	}
	if clientSecret != "" {
		if err := intent.VerifyClientSecret(clientSecret, time.Now()); err != nil {
			return nil, err
		}
	}
	return intent, nil
}

// ensureAccessToken runs the AccessTokenAuth pre-step for connectors that
// need a token, reading the external cache first. The token call goes through
// the same engine as every other flow.
func (s *Service) ensureAccessToken(ctx context.Context, conn connector.Connector, rd *connector.RouterData) error {
	if !conn.Capabilities().SupportsFlow(connector.FlowAccessTokenAuth) {
		return nil
	}

	cached, err := s.Tokens.Get(ctx, rd.MerchantID, conn.Name())
	if err != nil {
		s.Logger.Warn().Err(err).Str("connector", conn.Name()).Msg("token cache read failed")
	}
	if cached != nil {
		rd.AccessToken = cached
		return nil
	}

	tokenRD := &connector.RouterData{
		Flow:                connector.FlowAccessTokenAuth,
		MerchantID:          rd.MerchantID,
		PaymentID:           rd.PaymentID,
		AttemptID:           rd.AttemptID,
		MerchantConnectorID: rd.MerchantConnectorID,
		Auth:                rd.Auth,
		Status:              rd.Status,
		Request:             connector.AccessTokenRequest{},
	}
	out, err := s.Dispatcher.Call(ctx, routing.Single(routing.Candidate{
		ConnectorName:       conn.Name(),
		MerchantConnectorID: rd.MerchantConnectorID,
	}), tokenRD)
	if err != nil {
		return err
	}
	if out.Error != nil {
		return &connector.Error{Kind: out.Error.Kind, Code: out.Error.Code, Message: out.Error.Message}
	}
	resp, ok := out.Response.(connector.AccessTokenResponse)
	if !ok {
		return connector.NewInvalidConnectorConfig("connector returned no access token")
	}
	if err := s.Tokens.Set(ctx, rd.MerchantID, conn.Name(), &resp.Token); err != nil {
		s.Logger.Warn().Err(err).Str("connector", conn.Name()).Msg("token cache write failed")
	}
	rd.AccessToken = &resp.Token
	return nil
}

// appendEvent records a merchant-facing event in the outbox; failures are
// logged, not fatal, because events are best-effort relative to trackers.
func (s *Service) appendEvent(ctx context.Context, aggregateType string, aggregateID uuid.UUID, merchantID, eventType string, payload map[string]any) {
	if s.Outbox == nil {
		return
	}
	err := s.Outbox.Insert(ctx, &postgres.OutboxEntry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		MerchantID:    merchantID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     time.Now(),
	})
	if err != nil {
		s.Logger.Error().Err(err).Str("event_type", eventType).Msg("outbox append failed")
	}
}
