package routing

import (
	"github.com/cassiomorais/switchboard/internal/connector"
	domainErrors "github.com/cassiomorais/switchboard/internal/domain/errors"
	"github.com/cassiomorais/switchboard/internal/domain/payments"
)

// Candidate is one routable connector account, carrying its own credential
// set. Every candidate in a Retryable list is dispatched with its own Auth,
// never the primary's.
type Candidate struct {
	ConnectorName       string
	MerchantConnectorID string
	Auth                connector.AuthType
}

// CallKind names the routing decision shapes.
type CallKind string

const (
	// KindSingle is the common one-candidate case from merchant config.
	KindSingle CallKind = "single"
	// KindPreDetermined reuses the connector the attempt already recorded
	// (idempotent retry, multi-step flows).
	KindPreDetermined CallKind = "pre_determined"
	// KindRetryable carries an ordered fallback list.
	KindRetryable CallKind = "retryable"
)

// ConnectorCallType is the routing decision for one pipeline run. Computed
// once by the Domain stage and consumed exactly once by the dispatcher.
type ConnectorCallType struct {
	Kind       CallKind
	Candidates []Candidate
}

// Single routes to exactly one candidate.
func Single(c Candidate) ConnectorCallType {
	return ConnectorCallType{Kind: KindSingle, Candidates: []Candidate{c}}
}

// PreDetermined routes to the connector the attempt already recorded.
func PreDetermined(c Candidate) ConnectorCallType {
	return ConnectorCallType{Kind: KindPreDetermined, Candidates: []Candidate{c}}
}

// Retryable routes through an ordered fallback list.
func Retryable(candidates []Candidate) ConnectorCallType {
	return ConnectorCallType{Kind: KindRetryable, Candidates: candidates}
}

// MerchantRouting is the merchant-configured routing rule set.
type MerchantRouting struct {
	DefaultConnector string
	// Fallbacks, when non-empty, turns the decision into a Retryable list
	// headed by the default connector.
	Fallbacks []string
	// AccountIDs maps connector name to the merchant connector account id.
	AccountIDs map[string]string
}

func (m MerchantRouting) candidate(name string) Candidate {
	return Candidate{ConnectorName: name, MerchantConnectorID: m.AccountIDs[name]}
}

// Decide computes the ConnectorCallType for one Domain stage invocation. An
// attempt that already recorded a connector pins the decision to it.
func Decide(attempt *payments.PaymentAttempt, routing MerchantRouting) (ConnectorCallType, error) {
	if attempt != nil && attempt.Connector != nil && *attempt.Connector != "" {
		mcid := ""
		if attempt.MerchantConnectorID != nil {
			mcid = *attempt.MerchantConnectorID
		}
		return PreDetermined(Candidate{ConnectorName: *attempt.Connector, MerchantConnectorID: mcid}), nil
	}

	if routing.DefaultConnector == "" {
		return ConnectorCallType{}, domainErrors.ErrConnectorNotFound
	}

	if len(routing.Fallbacks) == 0 {
		return Single(routing.candidate(routing.DefaultConnector)), nil
	}

	candidates := make([]Candidate, 0, len(routing.Fallbacks)+1)
	candidates = append(candidates, routing.candidate(routing.DefaultConnector))
	for _, name := range routing.Fallbacks {
		if name == routing.DefaultConnector {
			continue
		}
		candidates = append(candidates, routing.candidate(name))
	}
	return Retryable(candidates), nil
}
