package engine_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/cassiomorais/switchboard/internal/connector"
	"github.com/cassiomorais/switchboard/internal/connector/connhttp"
	"github.com/cassiomorais/switchboard/internal/engine"
	"github.com/cassiomorais/switchboard/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(transport engine.Transport) *engine.Engine {
	return engine.New(transport, zerolog.New(io.Discard), testutil.NewTestMetrics())
}

func authorizeRD() *connector.RouterData {
	return &connector.RouterData{
		Flow:    connector.FlowAuthorize,
		Request: connector.PaymentsRequest{AmountMinor: 1000, Currency: "USD"},
	}
}

func TestExecute_UnsupportedFlowFailsWithoutNetworkCall(t *testing.T) {
	transport := &testutil.StubTransport{}
	conn := testutil.NewStubConnector("stubpay", nil)

	rd := newEngine(transport).Execute(context.Background(), conn, authorizeRD())

	require.NotNil(t, rd.Error)
	assert.Equal(t, connector.KindCapability, rd.Error.Kind)
	assert.Equal(t, connector.CodeFlowNotSupported, rd.Error.Code)
	assert.Empty(t, transport.Requests)
}

func TestExecute_BuildErrorShortCircuits(t *testing.T) {
	transport := &testutil.StubTransport{}
	conn := testutil.NewStubConnector("stubpay", map[connector.Flow]connector.Integration{
		connector.FlowAuthorize: &testutil.StubIntegration{
			BuildRequestFn: func(ctx context.Context, rd *connector.RouterData) (*connhttp.Request, error) {
				return nil, connector.NewMissingRequiredField("payment_method")
			},
		},
	})

	rd := newEngine(transport).Execute(context.Background(), conn, authorizeRD())

	require.NotNil(t, rd.Error)
	assert.Equal(t, connector.KindConfiguration, rd.Error.Kind)
	assert.Equal(t, connector.CodeMissingRequiredField, rd.Error.Code)
	assert.Empty(t, transport.Requests)
}

func TestExecute_NilRequestIsPassThrough(t *testing.T) {
	transport := &testutil.StubTransport{}
	conn := testutil.NewStubConnector("stubpay", map[connector.Flow]connector.Integration{
		connector.FlowAuthorize: &testutil.StubIntegration{
			BuildRequestFn: func(ctx context.Context, rd *connector.RouterData) (*connhttp.Request, error) {
				return nil, nil
			},
		},
	})

	rd := newEngine(transport).Execute(context.Background(), conn, authorizeRD())

	assert.True(t, rd.Succeeded())
	assert.Nil(t, rd.Response)
	assert.Empty(t, transport.Requests)
}

func TestExecute_TransportTimeout(t *testing.T) {
	transport := &testutil.StubTransport{
		Err: &connhttp.TransportError{Kind: connhttp.TransportTimeout, Err: errors.New("deadline exceeded")},
	}
	conn := testutil.NewStubConnector("stubpay", map[connector.Flow]connector.Integration{
		connector.FlowAuthorize: &testutil.StubIntegration{
			BuildRequestFn: func(ctx context.Context, rd *connector.RouterData) (*connhttp.Request, error) {
				return &connhttp.Request{Method: "POST", URL: "https://stubpay.test/authorize"}, nil
			},
		},
	})

	rd := newEngine(transport).Execute(context.Background(), conn, authorizeRD())

	require.NotNil(t, rd.Error)
	assert.Equal(t, connector.KindTransport, rd.Error.Kind)
	assert.Equal(t, connector.CodeRequestTimeout, rd.Error.Code)
	assert.True(t, rd.Error.ShouldAdvance())
}

func TestExecute_TransportConnectionFailure(t *testing.T) {
	transport := &testutil.StubTransport{
		Err: &connhttp.TransportError{Kind: connhttp.TransportConnectionFailure, Err: errors.New("connection refused")},
	}
	conn := testutil.NewStubConnector("stubpay", map[connector.Flow]connector.Integration{
		connector.FlowAuthorize: &testutil.StubIntegration{
			BuildRequestFn: func(ctx context.Context, rd *connector.RouterData) (*connhttp.Request, error) {
				return &connhttp.Request{Method: "POST", URL: "https://stubpay.test/authorize"}, nil
			},
		},
	})

	rd := newEngine(transport).Execute(context.Background(), conn, authorizeRD())

	require.NotNil(t, rd.Error)
	assert.Equal(t, connector.CodeConnectionFailure, rd.Error.Code)
}

func TestExecute_SuccessResolvesResponse(t *testing.T) {
	transport := &testutil.StubTransport{
		Response: &connhttp.Response{StatusCode: 200, Body: []byte(`{"id":"txn_1"}`)},
	}
	conn := testutil.NewStubConnector("stubpay", map[connector.Flow]connector.Integration{
		connector.FlowAuthorize: &testutil.StubIntegration{
			BuildRequestFn: func(ctx context.Context, rd *connector.RouterData) (*connhttp.Request, error) {
				return &connhttp.Request{Method: "POST", URL: "https://stubpay.test/authorize"}, nil
			},
			HandleRespFn: func(rd *connector.RouterData, resp *connhttp.Response) error {
				rd.Resolve(connector.PaymentsResponse{ResourceID: "txn_1", ConnectorTransactionID: "txn_1"})
				return nil
			},
		},
	})

	rd := newEngine(transport).Execute(context.Background(), conn, authorizeRD())

	require.True(t, rd.Succeeded())
	resp, ok := rd.Response.(connector.PaymentsResponse)
	require.True(t, ok)
	assert.Equal(t, "txn_1", resp.ConnectorTransactionID)
	assert.Len(t, transport.Requests, 1)
}

func TestExecute_SuccessDecodeFailure(t *testing.T) {
	transport := &testutil.StubTransport{
		Response: &connhttp.Response{StatusCode: 200, Body: []byte("not json")},
	}
	conn := testutil.NewStubConnector("stubpay", map[connector.Flow]connector.Integration{
		connector.FlowAuthorize: &testutil.StubIntegration{
			BuildRequestFn: func(ctx context.Context, rd *connector.RouterData) (*connhttp.Request, error) {
				return &connhttp.Request{Method: "POST", URL: "https://stubpay.test/authorize"}, nil
			},
			HandleRespFn: func(rd *connector.RouterData, resp *connhttp.Response) error {
				return errors.New("invalid character 'o'")
			},
		},
	})

	rd := newEngine(transport).Execute(context.Background(), conn, authorizeRD())

	require.NotNil(t, rd.Error)
	assert.Equal(t, connector.KindBusiness, rd.Error.Kind)
	assert.Equal(t, connector.CodeResponseDecodingFailed, rd.Error.Code)
	assert.Equal(t, []byte("not json"), rd.Error.RawBody)
}

func TestExecute_ServerErrorDefaultsToTransport(t *testing.T) {
	transport := &testutil.StubTransport{
		Response: &connhttp.Response{StatusCode: 503, Body: []byte("bad gateway")},
	}
	conn := testutil.NewStubConnector("stubpay", map[connector.Flow]connector.Integration{
		connector.FlowAuthorize: &testutil.StubIntegration{
			BuildRequestFn: func(ctx context.Context, rd *connector.RouterData) (*connhttp.Request, error) {
				return &connhttp.Request{Method: "POST", URL: "https://stubpay.test/authorize"}, nil
			},
		},
	})

	rd := newEngine(transport).Execute(context.Background(), conn, authorizeRD())

	require.NotNil(t, rd.Error)
	assert.Equal(t, connector.KindTransport, rd.Error.Kind)
	assert.Equal(t, connector.CodeConnectionFailure, rd.Error.Code)
	assert.Equal(t, 503, rd.Error.StatusCode)
}

type serverErrorIntegration struct {
	testutil.StubIntegration
}

func (s *serverErrorIntegration) Handle5xxErrorResponse(resp *connhttp.Response) connector.ErrorResponse {
	return connector.ErrorResponse{
		Kind:       connector.KindBusiness,
		StatusCode: resp.StatusCode,
		Code:       "api_error",
		Message:    "decoded from 5xx body",
	}
}

func TestExecute_ServerErrorHandlerOverride(t *testing.T) {
	transport := &testutil.StubTransport{
		Response: &connhttp.Response{StatusCode: 500, Body: []byte(`{"error":{"type":"api_error"}}`)},
	}
	integ := &serverErrorIntegration{}
	integ.BuildRequestFn = func(ctx context.Context, rd *connector.RouterData) (*connhttp.Request, error) {
		return &connhttp.Request{Method: "POST", URL: "https://stubpay.test/authorize"}, nil
	}
	conn := testutil.NewStubConnector("stubpay", map[connector.Flow]connector.Integration{
		connector.FlowAuthorize: integ,
	})

	rd := newEngine(transport).Execute(context.Background(), conn, authorizeRD())

	require.NotNil(t, rd.Error)
	assert.Equal(t, connector.KindBusiness, rd.Error.Kind)
	assert.Equal(t, "api_error", rd.Error.Code)
	assert.False(t, rd.Error.ShouldAdvance())
}

func TestExecute_ClientErrorUsesHandleErrorResponse(t *testing.T) {
	declined := connector.ErrorResponse{
		Kind:       connector.KindBusiness,
		StatusCode: 402,
		Code:       "card_declined",
		Message:    "Your card was declined.",
	}
	transport := &testutil.StubTransport{
		Response: &connhttp.Response{StatusCode: 402, Body: []byte(`{"error":{"code":"card_declined"}}`)},
	}
	conn := testutil.NewStubConnector("stubpay", map[connector.Flow]connector.Integration{
		connector.FlowAuthorize: &testutil.StubIntegration{
			BuildRequestFn: func(ctx context.Context, rd *connector.RouterData) (*connhttp.Request, error) {
				return &connhttp.Request{Method: "POST", URL: "https://stubpay.test/authorize"}, nil
			},
			HandleErrRespFn: func(resp *connhttp.Response) connector.ErrorResponse {
				return declined
			},
		},
	})

	rd := newEngine(transport).Execute(context.Background(), conn, authorizeRD())

	require.NotNil(t, rd.Error)
	assert.Equal(t, "card_declined", rd.Error.Code)
	assert.Equal(t, "Your card was declined.", rd.Error.Message)
}
