// Package ctxkeys holds the shared context keys for the API layer.
// Extracted to a leaf package to avoid import cycles between api and api/handlers.
package ctxkeys

import "context"

// Key is the unexported named type for all API context keys.
// Using a named type avoids collisions with string keys from other packages
// at runtime (context.Value compares both type and value).
type Key string

const (
	// AgentID is the context key for the authenticated agent.
	// Injected by AuthMiddleware from JWT claims or API-key lookup, read by all handlers.
	AgentID Key = "agent_id"

	// Model is the context key for the model driving the agent. May be empty.
	Model Key = "model"

	// Grants is the context key for the agent's comma-separated grant list.
	Grants Key = "grants"
)

// WithValue adds a ctxkeys.Key value to the context.
// Helper used by AuthMiddleware to inject identity using typed keys.
func WithValue(ctx context.Context, key Key, value string) context.Context {
	return context.WithValue(ctx, key, value)
}
