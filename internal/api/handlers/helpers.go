// Handler helper functions and context access.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/toolgate/toolgate/internal/api/ctxkeys"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 500
)

// getAgentID retrieves agent_id from context.
// Uses ctxkeys.AgentID — same type+value as the Auth middleware injection.
func getAgentID(ctx context.Context) (string, error) {
	id, ok := ctx.Value(ctxkeys.AgentID).(string)
	if !ok || id == "" {
		return "", fmt.Errorf("agent_id not found in context")
	}
	return id, nil
}

// getModel retrieves the model from context. Empty when not set.
func getModel(ctx context.Context) string {
	model, _ := ctx.Value(ctxkeys.Model).(string)
	return model
}

// getGrants retrieves the comma-separated grant list from context. Empty when not set.
func getGrants(ctx context.Context) string {
	grants, _ := ctx.Value(ctxkeys.Grants).(string)
	return grants
}

// parseLimit extracts and clamps ?limit from URL query params.
func parseLimit(r *http.Request) int {
	limit := defaultAuditLimit
	if lim, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && lim > 0 {
		if lim > maxAuditLimit {
			lim = maxAuditLimit
		}
		limit = lim
	}
	return limit
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// writeError writes a JSON error response with the given status code.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
