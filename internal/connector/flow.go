package connector

// Flow identifies the kind of operation performed against a connector.
// It is a closed set; adapters expose one Integration per flow they support
// and the registry checks the set against each adapter's capability matrix
// at startup.
type Flow string

const (
	FlowAuthorize               Flow = "Authorize"
	FlowCapture                 Flow = "Capture"
	FlowVoid                    Flow = "Void"
	FlowPSync                   Flow = "PSync"
	FlowExecuteRefund           Flow = "ExecuteRefund"
	FlowRSync                   Flow = "RSync"
	FlowSession                 Flow = "Session"
	FlowSetupMandate            Flow = "SetupMandate"
	FlowAccessTokenAuth         Flow = "AccessTokenAuth"
	FlowCreateConnectorCustomer Flow = "CreateConnectorCustomer"
	FlowPayoutCreate            Flow = "PayoutCreate"
	FlowPreAuthentication       Flow = "PreAuthentication"
	FlowAuthentication          Flow = "Authentication"
	FlowPostAuthentication      Flow = "PostAuthentication"
)

// AllFlows lists every flow the framework dispatches.
var AllFlows = []Flow{
	FlowAuthorize,
	FlowCapture,
	FlowVoid,
	FlowPSync,
	FlowExecuteRefund,
	FlowRSync,
	FlowSession,
	FlowSetupMandate,
	FlowAccessTokenAuth,
	FlowCreateConnectorCustomer,
	FlowPayoutCreate,
	FlowPreAuthentication,
	FlowAuthentication,
	FlowPostAuthentication,
}

func (f Flow) String() string { return string(f) }
