// Bearer JWT and API-key AuthMiddleware.
// Resolves the caller's agent identity and injects it into the request context.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/toolgate/toolgate/internal/api/ctxkeys"
	"github.com/toolgate/toolgate/internal/infra/config"
	pkgauth "github.com/toolgate/toolgate/pkg/auth"
)

// Auth validates the caller's credentials and injects identity into context.
// Used on all /api/v1/* routes.
//
// Two credential schemes are accepted:
//  1. "Authorization: Bearer <jwt>" — claims carry agent_id, model, grants
//  2. "X-API-Key: <key>" + "X-Agent-ID: <id>" — key is bcrypt-verified
//     against the configured agent's hash, identity comes from config
//
// On success ctxkeys.AgentID, ctxkeys.Model and ctxkeys.Grants are set.
// Any failure is a uniform 401; the response never says which check failed.
func Auth(agents []config.AgentConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := extractBearerToken(r); token != "" {
				claims, err := pkgauth.ParseJWT(token)
				if err != nil {
					writeUnauthorized(w, "invalid or expired token")
					return
				}
				ctx := withIdentity(r.Context(), claims.AgentID, claims.Model, claims.Grants)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if key := r.Header.Get("X-API-Key"); key != "" {
				agent, ok := lookupAgent(agents, r.Header.Get("X-Agent-ID"))
				if !ok || !pkgauth.VerifyAPIKey(agent.APIKeyHash, key) {
					writeUnauthorized(w, "invalid agent credentials")
					return
				}
				ctx := withIdentity(r.Context(), agent.ID, agent.Model, agent.Grants)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			writeUnauthorized(w, "missing or invalid credentials")
		})
	}
}

// withIdentity injects the resolved identity using typed keys.
func withIdentity(ctx context.Context, agentID, model, grants string) context.Context {
	ctx = ctxkeys.WithValue(ctx, ctxkeys.AgentID, agentID)
	ctx = ctxkeys.WithValue(ctx, ctxkeys.Model, model)
	ctx = ctxkeys.WithValue(ctx, ctxkeys.Grants, grants)
	return ctx
}

// lookupAgent finds a configured agent by ID. Empty IDs never match.
func lookupAgent(agents []config.AgentConfig, id string) (config.AgentConfig, bool) {
	if id == "" {
		return config.AgentConfig{}, false
	}
	for _, a := range agents {
		if a.ID == id {
			return a, true
		}
	}
	return config.AgentConfig{}, false
}

// extractBearerToken extracts the token from "Authorization: Bearer <token>".
// Returns empty string if header is missing, wrong scheme, or token is empty.
// Extracted for testability and to reduce cyclomatic complexity of Auth.
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	// Must start with "Bearer " (case-sensitive per RFC 7235)
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}

	token := strings.TrimPrefix(header, prefix)
	token = strings.TrimSpace(token)
	return token
}

// writeUnauthorized writes a 401 JSON response.
// Uses consistent format with writeError in handlers package.
func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message}) //nolint:errcheck
}
