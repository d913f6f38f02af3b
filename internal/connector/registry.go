package connector

import (
	"fmt"
	"sort"

	domainErrors "github.com/cassiomorais/switchboard/internal/domain/errors"
)

// Registry resolves connector names to adapter instances. Built once at
// startup, never mutated afterwards, shared read-only across tasks.
type Registry struct {
	adapters map[string]Connector
}

// NewRegistry builds a registry from the given adapters.
func NewRegistry(adapters ...Connector) *Registry {
	r := &Registry{adapters: make(map[string]Connector, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

// Get resolves a connector name. Resolution fails closed: an unknown name is
// an error, never a default adapter.
func (r *Registry) Get(name string) (Connector, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("connector %q: %w", name, domainErrors.ErrConnectorNotFound)
	}
	return a, nil
}

// GetWebhook resolves a connector that handles incoming webhooks.
func (r *Registry) GetWebhook(name string) (WebhookConnector, error) {
	a, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	wc, ok := a.(WebhookConnector)
	if !ok || !a.Capabilities().SupportsWebhooks {
		return nil, fmt.Errorf("connector %q has no webhook support: %w", name, domainErrors.ErrConnectorNotFound)
	}
	return wc, nil
}

// Names returns the registered connector names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// All returns every registered adapter in name order.
func (r *Registry) All() []Connector {
	names := r.Names()
	out := make([]Connector, 0, len(names))
	for _, n := range names {
		out = append(out, r.adapters[n])
	}
	return out
}

// ValidateCapabilities checks every adapter's declared matrix at startup:
// each declared flow must resolve to a non-nil integration, and no undeclared
// flow may resolve. A mismatch is a wiring bug and must stop the process.
func (r *Registry) ValidateCapabilities() error {
	for _, name := range r.Names() {
		adapter := r.adapters[name]
		caps := adapter.Capabilities()

		for _, flow := range AllFlows {
			integration, err := adapter.Integration(flow)
			if caps.SupportsFlow(flow) {
				if err != nil {
					return fmt.Errorf("connector %q declares flow %s but resolves none: %w", name, flow, err)
				}
				if integration == nil {
					return fmt.Errorf("connector %q declares flow %s but returned a nil integration", name, flow)
				}
				continue
			}
			if err == nil {
				return fmt.Errorf("connector %q resolves undeclared flow %s", name, flow)
			}
			if !IsFlowNotSupported(err) {
				return fmt.Errorf("connector %q flow %s: expected FlowNotSupported, got: %w", name, flow, err)
			}
		}
	}
	return nil
}
