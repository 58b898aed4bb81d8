package handlers

import (
	"net/http"

	"github.com/toolgate/toolgate/internal/domain/audit"
)

// AuditHandler exposes the persisted execution trail.
type AuditHandler struct {
	service *audit.Service
}

func NewAuditHandler(service *audit.Service) *AuditHandler {
	return &AuditHandler{service: service}
}

// ListEvents handles GET /api/v1/audit. Newest events first.
func (h *AuditHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.ListRecent(r.Context(), parseLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list audit events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": events,
		"meta": map[string]int{"total": len(events)},
	})
}
