// Package tool holds the registry of callable capabilities. A Tool is a
// named handler with declared input/output contracts, a timeout, and an
// idempotency flag; the registry owns every Tool and freezes on Seal so it
// can be read concurrently without locks while serving traffic.
package tool

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/toolgate/toolgate/internal/domain/schema"
)

var (
	ErrDuplicateName     = errors.New("tool name already registered")
	ErrNotFound          = errors.New("tool not found")
	ErrRegistrySealed    = errors.New("registry is sealed")
	ErrRegistryUnsealed  = errors.New("registry is not sealed")
	ErrInvalidDefinition = errors.New("invalid tool definition")
)

// DefaultTimeout applies when a definition declares no timeout.
const DefaultTimeout = 30 * time.Second

// AgentContext identifies the remote caller of one invocation. It is built
// fresh per invocation from transport-supplied identity data and is
// untrusted input, never a credential. Handlers receive it only when their
// registered signature asks for it.
type AgentContext struct {
	AgentID   string
	Model     string
	RequestID string
	Metadata  map[string]string
}

// Grants returns the capability grants carried in the agent metadata under
// the "grants" key, comma-separated. Missing or empty means no grants.
func (c *AgentContext) Grants() []string {
	if c == nil {
		return nil
	}
	raw := strings.TrimSpace(c.Metadata["grants"])
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Clone returns a deep copy safe to hand to hooks.
func (c *AgentContext) Clone() *AgentContext {
	if c == nil {
		return nil
	}
	out := *c
	if c.Metadata != nil {
		out.Metadata = make(map[string]string, len(c.Metadata))
		maps.Copy(out.Metadata, c.Metadata)
	}
	return &out
}

// Handler is a tool backend that needs only its validated input.
type Handler func(ctx context.Context, input map[string]any) (map[string]any, error)

// AgentHandler is a tool backend that additionally receives the caller's
// AgentContext. Which shape a tool uses is fixed at registration time;
// handlers never get ambient access to raw transport data.
type AgentHandler func(ctx context.Context, agent *AgentContext, input map[string]any) (map[string]any, error)

// Definition is the registration-time description of a tool. Exactly one
// of Handler and AgentHandler must be set.
type Definition struct {
	Name                string
	Description         string
	InputSchema         *schema.Contract
	OutputSchema        *schema.Contract
	Timeout             time.Duration
	Idempotent          bool
	RequiredPermissions []string
	Handler             Handler
	AgentHandler        AgentHandler
}

// Tool is the registry-owned record of a registered capability. Immutable
// after registration.
type Tool struct {
	name                string
	description         string
	inputSchema         *schema.Contract
	outputSchema        *schema.Contract
	timeout             time.Duration
	idempotent          bool
	requiredPermissions []string

	// call is the normalized invocation path. The agent-context injection
	// decision is made once here, at registration, not per call.
	call AgentHandler
}

func (t *Tool) Name() string                  { return t.name }
func (t *Tool) Description() string           { return t.description }
func (t *Tool) InputSchema() *schema.Contract { return t.inputSchema }
func (t *Tool) OutputSchema() *schema.Contract {
	return t.outputSchema
}
func (t *Tool) Timeout() time.Duration { return t.timeout }
func (t *Tool) Idempotent() bool       { return t.idempotent }

// RequiredPermissions returns a copy of the grants a caller must hold.
func (t *Tool) RequiredPermissions() []string {
	out := make([]string, len(t.requiredPermissions))
	copy(out, t.requiredPermissions)
	return out
}

// Call invokes the handler with the typed input. For tools registered with
// a plain Handler the agent context is dropped here, so the backend never
// sees it.
func (t *Tool) Call(ctx context.Context, agent *AgentContext, input map[string]any) (map[string]any, error) {
	return t.call(ctx, agent, input)
}

// Metadata is the public projection of a Tool: everything discovery needs,
// with the handler stripped out. Derived once at registration and never
// updated afterwards.
type Metadata struct {
	Name                string         `json:"name"`
	Description         string         `json:"description,omitempty"`
	InputSchema         map[string]any `json:"input_schema"`
	OutputSchema        map[string]any `json:"output_schema"`
	TimeoutMs           int64          `json:"timeout_ms"`
	Idempotent          bool           `json:"idempotent"`
	RequiredPermissions []string       `json:"required_permissions,omitempty"`
}

func newTool(def Definition) (*Tool, error) {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidDefinition)
	}
	if def.Handler == nil && def.AgentHandler == nil {
		return nil, fmt.Errorf("%w: a handler is required", ErrInvalidDefinition)
	}
	if def.Handler != nil && def.AgentHandler != nil {
		return nil, fmt.Errorf("%w: exactly one handler shape allowed", ErrInvalidDefinition)
	}
	if def.InputSchema == nil || def.OutputSchema == nil {
		return nil, fmt.Errorf("%w: input and output contracts are required", ErrInvalidDefinition)
	}

	timeout := def.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	call := def.AgentHandler
	if call == nil {
		plain := def.Handler
		call = func(ctx context.Context, _ *AgentContext, input map[string]any) (map[string]any, error) {
			return plain(ctx, input)
		}
	}

	perms := make([]string, len(def.RequiredPermissions))
	copy(perms, def.RequiredPermissions)

	return &Tool{
		name:                name,
		description:         def.Description,
		inputSchema:         def.InputSchema,
		outputSchema:        def.OutputSchema,
		timeout:             timeout,
		idempotent:          def.Idempotent,
		requiredPermissions: perms,
		call:                call,
	}, nil
}
