package handlers

import (
	"net/http"

	"github.com/toolgate/toolgate/internal/domain/tool"
	"github.com/toolgate/toolgate/internal/version"
)

// DiscoveryHandler serves the tool catalogue from the sealed registry.
type DiscoveryHandler struct {
	registry *tool.Registry
}

func NewDiscoveryHandler(registry *tool.Registry) *DiscoveryHandler {
	return &DiscoveryHandler{registry: registry}
}

type discoveryResponse struct {
	Server  string          `json:"server"`
	Version string          `json:"version"`
	Tools   []tool.Metadata `json:"tools"`
}

// ListTools handles GET /api/v1/tools. Tools appear in registration order.
func (h *DiscoveryHandler) ListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, discoveryResponse{
		Server:  "toolgate",
		Version: version.Version,
		Tools:   h.registry.ListMetadata(),
	})
}
