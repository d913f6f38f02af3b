package connector_test

import (
	"testing"

	"github.com/cassiomorais/switchboard/internal/connector"
	domainErrors "github.com/cassiomorais/switchboard/internal/domain/errors"
	"github.com/cassiomorais/switchboard/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Get_UnknownName(t *testing.T) {
	r := connector.NewRegistry()
	_, err := r.Get("acme")
	require.Error(t, err)
	assert.ErrorIs(t, err, domainErrors.ErrConnectorNotFound)
}

func TestRegistry_Get_Known(t *testing.T) {
	stub := testutil.NewStubConnector("stubpay", map[connector.Flow]connector.Integration{
		connector.FlowAuthorize: &testutil.StubIntegration{},
	})
	r := connector.NewRegistry(stub)

	got, err := r.Get("stubpay")
	require.NoError(t, err)
	assert.Equal(t, "stubpay", got.Name())
}

func TestRegistry_ValidateCapabilities_Complete(t *testing.T) {
	stub := testutil.NewStubConnector("stubpay", map[connector.Flow]connector.Integration{
		connector.FlowAuthorize: &testutil.StubIntegration{},
		connector.FlowPSync:     &testutil.StubIntegration{},
	})
	r := connector.NewRegistry(stub)
	require.NoError(t, r.ValidateCapabilities())
}

func TestRegistry_ValidateCapabilities_DeclaredFlowMissing(t *testing.T) {
	stub := testutil.NewStubConnector("stubpay", map[connector.Flow]connector.Integration{
		connector.FlowAuthorize: &testutil.StubIntegration{},
	})
	// Declare a flow the adapter cannot resolve.
	stub.Caps.Flows = append(stub.Caps.Flows, connector.FlowCapture)

	r := connector.NewRegistry(stub)
	err := r.ValidateCapabilities()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Capture")
}

func TestRegistry_ValidateCapabilities_UndeclaredFlowResolves(t *testing.T) {
	stub := testutil.NewStubConnector("stubpay", map[connector.Flow]connector.Integration{
		connector.FlowAuthorize: &testutil.StubIntegration{},
		connector.FlowCapture:   &testutil.StubIntegration{},
	})
	// Hide Capture from the declared matrix while keeping the integration.
	stub.Caps.Flows = []connector.Flow{connector.FlowAuthorize}

	r := connector.NewRegistry(stub)
	err := r.ValidateCapabilities()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undeclared")
}

func TestRegistry_GetWebhook_NoSupport(t *testing.T) {
	stub := testutil.NewStubConnector("stubpay", map[connector.Flow]connector.Integration{
		connector.FlowAuthorize: &testutil.StubIntegration{},
	})
	r := connector.NewRegistry(stub)

	_, err := r.GetWebhook("stubpay")
	require.Error(t, err)
	assert.ErrorIs(t, err, domainErrors.ErrConnectorNotFound)
}

func TestRegistry_Names_Sorted(t *testing.T) {
	a := testutil.NewStubConnector("zeta", nil)
	b := testutil.NewStubConnector("alpha", nil)
	r := connector.NewRegistry(a, b)
	assert.Equal(t, []string{"alpha", "zeta"}, r.Names())
}
