package testutil

import (
	"context"

	"github.com/cassiomorais/switchboard/internal/connector"
	"github.com/cassiomorais/switchboard/internal/connector/connhttp"
	"github.com/cassiomorais/switchboard/internal/domain/payments"
)

// StubConnector is a configurable connector.Connector for tests.
type StubConnector struct {
	ConnectorName string
	Caps          connector.Capability
	Integrations  map[connector.Flow]connector.Integration
}

// NewStubConnector builds a connector with consistent capabilities: every
// flow with a registered integration is declared, and vice versa.
func NewStubConnector(name string, integrations map[connector.Flow]connector.Integration) *StubConnector {
	flows := make([]connector.Flow, 0, len(integrations))
	for f := range integrations {
		flows = append(flows, f)
	}
	return &StubConnector{
		ConnectorName: name,
		Caps: connector.Capability{
			DisplayName:    name,
			Flows:          flows,
			PaymentMethods: []connector.PaymentMethodType{connector.MethodCard},
			CaptureMethods: []payments.CaptureMethod{payments.CaptureAutomatic, payments.CaptureManual},
			SupportsRefunds: true,
		},
		Integrations: integrations,
	}
}

func (c *StubConnector) Name() string { return c.ConnectorName }

func (c *StubConnector) Capabilities() connector.Capability { return c.Caps }

func (c *StubConnector) Integration(flow connector.Flow) (connector.Integration, error) {
	if i, ok := c.Integrations[flow]; ok {
		return i, nil
	}
	return nil, connector.NewFlowNotSupported(flow, c.ConnectorName)
}

// StubIntegration overrides individual integration methods; unset functions
// fall back to the no-request behavior.
type StubIntegration struct {
	connector.NoRequestIntegration
	BuildRequestFn  func(ctx context.Context, rd *connector.RouterData) (*connhttp.Request, error)
	HandleRespFn    func(rd *connector.RouterData, resp *connhttp.Response) error
	HandleErrRespFn func(resp *connhttp.Response) connector.ErrorResponse
}

func (s *StubIntegration) BuildRequest(ctx context.Context, rd *connector.RouterData) (*connhttp.Request, error) {
	if s.BuildRequestFn != nil {
		return s.BuildRequestFn(ctx, rd)
	}
	return s.NoRequestIntegration.BuildRequest(ctx, rd)
}

func (s *StubIntegration) HandleResponse(rd *connector.RouterData, resp *connhttp.Response) error {
	if s.HandleRespFn != nil {
		return s.HandleRespFn(rd, resp)
	}
	return nil
}

func (s *StubIntegration) HandleErrorResponse(resp *connhttp.Response) connector.ErrorResponse {
	if s.HandleErrRespFn != nil {
		return s.HandleErrRespFn(resp)
	}
	return s.NoRequestIntegration.HandleErrorResponse(resp)
}

// StubTransport satisfies engine.Transport with canned responses.
type StubTransport struct {
	Requests []*connhttp.Request
	Response *connhttp.Response
	Err      error
}

func (t *StubTransport) Do(_ context.Context, req *connhttp.Request) (*connhttp.Response, error) {
	t.Requests = append(t.Requests, req)
	if t.Err != nil {
		return nil, t.Err
	}
	return t.Response, nil
}
