package controller

import (
	"net/http"

	"github.com/cassiomorais/switchboard/internal/connector"
)

// ConnectorController exposes the registered capability matrices so merchant
// dashboards can render what each connector supports.
type ConnectorController struct {
	registry *connector.Registry
}

// NewConnectorController creates a new ConnectorController.
func NewConnectorController(registry *connector.Registry) *ConnectorController {
	return &ConnectorController{registry: registry}
}

// ListConnectors handles GET /api/v1/connectors
func (h *ConnectorController) ListConnectors(w http.ResponseWriter, r *http.Request) {
	out := make([]*ConnectorResponse, 0)
	for _, conn := range h.registry.All() {
		out = append(out, FromCapability(conn.Name(), conn.Capabilities()))
	}
	writeJSON(w, http.StatusOK, out)
}
