package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/toolgate/toolgate/internal/domain/exec"
)

// InvokeHandler exposes tool execution over HTTP. All gateway semantics
// (validation, policy, timeout, hooks) live in the coordinator; this
// handler only decodes the request and maps wire codes to HTTP statuses.
type InvokeHandler struct {
	coord *exec.Coordinator
}

func NewInvokeHandler(coord *exec.Coordinator) *InvokeHandler {
	return &InvokeHandler{coord: coord}
}

type invokeRequest struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

type invokeResponse struct {
	Tool   string         `json:"tool"`
	Output map[string]any `json:"output"`
}

// Invoke handles POST /api/v1/invoke.
func (h *InvokeHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	agentID, err := getAgentID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing agent identity")
		return
	}

	var req invokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	identity := exec.Identity{
		AgentID: agentID,
		Model:   getModel(r.Context()),
	}
	if grants := getGrants(r.Context()); grants != "" {
		identity.Metadata = map[string]string{"grants": grants}
	}

	output, werr := h.coord.Execute(r.Context(), exec.Request{
		Tool:      req.Tool,
		Arguments: req.Arguments,
		Identity:  identity,
	})
	if werr != nil {
		writeJSON(w, statusForCode(werr.Code), werr)
		return
	}

	writeJSON(w, http.StatusOK, invokeResponse{Tool: req.Tool, Output: output})
}

// statusForCode maps the closed wire code set onto HTTP statuses.
func statusForCode(code string) int {
	switch code {
	case exec.CodeInvalidInput:
		return http.StatusBadRequest
	case exec.CodeToolNotFound:
		return http.StatusNotFound
	case exec.CodePolicyDenied:
		return http.StatusForbidden
	case exec.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
