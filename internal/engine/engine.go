package engine

import (
	"context"
	"errors"
	"time"

	"github.com/cassiomorais/switchboard/internal/connector"
	"github.com/cassiomorais/switchboard/internal/connector/connhttp"
	"github.com/cassiomorais/switchboard/internal/observability"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Transport abstracts the HTTP client so tests can stub the wire.
type Transport interface {
	Do(ctx context.Context, req *connhttp.Request) (*connhttp.Response, error)
}

// Engine performs the build → send → parse → classify sequence for one
// connector call. It is the single normalization point: it always returns a
// RouterData whose Response or Error is populated, and nothing
// connector-specific escapes past it.
type Engine struct {
	transport Transport
	logger    zerolog.Logger
	metrics   *observability.Metrics
	tracer    trace.Tracer
}

// New creates an execution engine.
func New(transport Transport, logger zerolog.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{
		transport: transport,
		logger:    logger,
		metrics:   metrics,
		tracer:    otel.Tracer("switchboard/engine"),
	}
}

// Execute runs one connector call. Every failure branch resolves rd to a
// structured error; the caller never sees an unhandled fault and a timed-out
// call still yields a deterministic error state for UpdateTracker.
func (e *Engine) Execute(ctx context.Context, conn connector.Connector, rd *connector.RouterData) *connector.RouterData {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "connector.call",
		trace.WithAttributes(
			attribute.String("connector", conn.Name()),
			attribute.String("flow", rd.Flow.String()),
		))
	defer span.End()
	defer func() { e.emit(conn.Name(), rd, time.Since(start)) }()

	integration, err := conn.Integration(rd.Flow)
	if err != nil {
		rd.Fail(connector.ErrorResponseFrom(err))
		return rd
	}

	req, err := integration.BuildRequest(ctx, rd)
	if err != nil {
		rd.Fail(connector.ErrorResponseFrom(err))
		return rd
	}
	if req == nil {
		// No network call needed; the pipeline's current state already holds.
		return rd
	}

	resp, err := e.transport.Do(ctx, req)
	if err != nil {
		rd.Fail(transportErrorResponse(err))
		return rd
	}

	switch {
	case resp.IsSuccess():
		if err := integration.HandleResponse(rd, resp); err != nil {
			rd.Fail(connector.ErrorResponse{
				Kind:       connector.KindBusiness,
				StatusCode: resp.StatusCode,
				Code:       connector.CodeResponseDecodingFailed,
				Message:    err.Error(),
				RawBody:    resp.Body,
			})
		}
	case resp.IsServerError():
		if h, ok := integration.(connector.ServerErrorHandler); ok {
			rd.Fail(h.Handle5xxErrorResponse(resp))
		} else {
			rd.Fail(connector.ErrorResponse{
				Kind:       connector.KindTransport,
				StatusCode: resp.StatusCode,
				Code:       connector.CodeConnectionFailure,
				Message:    "connector returned a server error",
				RawBody:    resp.Body,
			})
		}
	default:
		rd.Fail(integration.HandleErrorResponse(resp))
	}

	return rd
}

// emit records the observability event for the call, on every branch.
func (e *Engine) emit(connectorName string, rd *connector.RouterData, elapsed time.Duration) {
	status := "success"
	if rd.Error != nil {
		status = "error"
		e.metrics.ConnectorErrors.WithLabelValues(connectorName, rd.Flow.String(), string(rd.Error.Kind)).Inc()
	}
	e.metrics.ConnectorCallsTotal.WithLabelValues(connectorName, rd.Flow.String(), status).Inc()
	e.metrics.ConnectorCallDuration.WithLabelValues(connectorName, rd.Flow.String()).Observe(elapsed.Seconds())

	evt := e.logger.Info()
	if rd.Error != nil {
		evt = e.logger.Warn().Str("error_kind", string(rd.Error.Kind)).Str("error_code", rd.Error.Code)
	}
	evt.
		Str("connector", connectorName).
		Str("flow", rd.Flow.String()).
		Str("payment_id", rd.PaymentID.String()).
		Str("status", string(rd.Status)).
		Dur("latency", elapsed).
		Msg("connector call")
}

func transportErrorResponse(err error) connector.ErrorResponse {
	code := connector.CodeConnectionFailure
	var te *connhttp.TransportError
	if errors.As(err, &te) && te.Kind == connhttp.TransportTimeout {
		code = connector.CodeRequestTimeout
	}
	return connector.ErrorResponse{
		Kind:    connector.KindTransport,
		Code:    code,
		Message: err.Error(),
	}
}
