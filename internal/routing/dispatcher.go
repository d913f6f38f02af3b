package routing

import (
	"context"
	"errors"
	"time"

	"github.com/cassiomorais/switchboard/internal/connector"
	domainErrors "github.com/cassiomorais/switchboard/internal/domain/errors"
	"github.com/cassiomorais/switchboard/internal/observability"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// Executor runs one connector call; satisfied by *engine.Engine.
type Executor interface {
	Execute(ctx context.Context, conn connector.Connector, rd *connector.RouterData) *connector.RouterData
}

// Dispatcher resolves routing candidates against the registry and drives the
// engine, with one circuit breaker per connector. An open breaker counts as
// connector-unavailable and advances a Retryable list the same way a
// transport failure does; a business decline never advances.
type Dispatcher struct {
	registry *connector.Registry
	executor Executor
	breakers map[string]*gobreaker.CircuitBreaker[*connector.RouterData]
	logger   zerolog.Logger
	metrics  *observability.Metrics

	// Prepare, when set, runs before each candidate call with the candidate's
	// own envelope (the access-token pre-step). A Prepare failure resolves the
	// candidate as failed and advances the list under the usual rules.
	Prepare func(ctx context.Context, conn connector.Connector, rd *connector.RouterData) error
}

// NewDispatcher creates a dispatcher with a breaker per registered connector.
func NewDispatcher(registry *connector.Registry, executor Executor, logger zerolog.Logger, metrics *observability.Metrics) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		executor: executor,
		breakers: make(map[string]*gobreaker.CircuitBreaker[*connector.RouterData]),
		logger:   logger,
		metrics:  metrics,
	}
	for _, name := range registry.Names() {
		name := name
		d.breakers[name] = gobreaker.NewCircuitBreaker[*connector.RouterData](gobreaker.Settings{
			Name:        name,
			MaxRequests: 10,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 10 && failureRatio >= 0.6
			},
			OnStateChange: func(_ string, _, to gobreaker.State) {
				metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			},
		})
	}
	return d
}

// Call invokes the engine against the candidates in order. The returned
// RouterData is always resolved (success or structured error); the last
// candidate's outcome wins when the list is exhausted.
func (d *Dispatcher) Call(ctx context.Context, callType ConnectorCallType, rd *connector.RouterData) (*connector.RouterData, error) {
	if len(callType.Candidates) == 0 {
		return nil, domainErrors.ErrConnectorNotFound
	}

	var out *connector.RouterData
	for i, candidate := range callType.Candidates {
		conn, err := d.registry.Get(candidate.ConnectorName)
		if err != nil {
			// Fail closed on unknown names, even mid-list.
			return nil, err
		}

		attempt := *rd
		attempt.ConnectorName = candidate.ConnectorName
		attempt.MerchantConnectorID = candidate.MerchantConnectorID
		if candidate.Auth.Kind != "" {
			attempt.Auth = candidate.Auth
		}

		out = nil
		if d.Prepare != nil {
			// Any token obtained for an earlier candidate belongs to that
			// candidate's account.
			attempt.AccessToken = nil
			if err := d.Prepare(ctx, conn, &attempt); err != nil {
				attempt.Fail(connector.ErrorResponseFrom(err))
				out = &attempt
			}
		}
		if out == nil {
			out = d.callThroughBreaker(ctx, conn, &attempt)
		}

		if out.Error == nil || !out.Error.ShouldAdvance() {
			return out, nil
		}
		if i+1 < len(callType.Candidates) {
			next := callType.Candidates[i+1]
			d.metrics.ConnectorRetries.WithLabelValues(candidate.ConnectorName, next.ConnectorName).Inc()
			d.logger.Warn().
				Str("from", candidate.ConnectorName).
				Str("to", next.ConnectorName).
				Str("error_code", out.Error.Code).
				Str("payment_id", rd.PaymentID.String()).
				Msg("connector unavailable, trying next candidate")
		}
	}
	return out, nil
}

func (d *Dispatcher) callThroughBreaker(ctx context.Context, conn connector.Connector, rd *connector.RouterData) *connector.RouterData {
	breaker, ok := d.breakers[conn.Name()]
	if !ok {
		return d.executor.Execute(ctx, conn, rd)
	}

	out, err := breaker.Execute(func() (*connector.RouterData, error) {
		result := d.executor.Execute(ctx, conn, rd)
		// Only transport-class failures count against the breaker; declines
		// are healthy connector behavior.
		if result.Error != nil && result.Error.Kind == connector.KindTransport {
			return result, domainErrors.ErrConnectorUnavailable
		}
		return result, nil
	})
	if err != nil {
		d.metrics.CircuitBreakerRequests.WithLabelValues(conn.Name(), "failure").Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			rd.Fail(connector.ErrorResponse{
				Kind:    connector.KindTransport,
				Code:    connector.CodeCircuitOpen,
				Message: "connector circuit breaker is open",
			})
			return rd
		}
		// Transport failure recorded by the breaker; out carries the details.
		return out
	}
	d.metrics.CircuitBreakerRequests.WithLabelValues(conn.Name(), "success").Inc()
	return out
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
