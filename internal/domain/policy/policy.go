// Package policy gates tool execution. An Engine holds an ordered list of
// policy functions; all must allow for an invocation to proceed, and the
// first deny is authoritative. A policy that errors or panics counts as a
// deny — the gate fails closed.
package policy

import (
	"context"

	"github.com/toolgate/toolgate/internal/domain/tool"
)

// ReasonPolicyError is the reserved deny reason used when a policy fails
// internally instead of returning a decision.
const ReasonPolicyError = "policy evaluation failed"

// Decision is the outcome of evaluating one policy (or the whole engine):
// allow, or deny with a reason. Decisions are per-invocation values and
// are never cached.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow returns an allowing decision.
func Allow() Decision { return Decision{Allowed: true} }

// Deny returns a denying decision with the given reason.
func Deny(reason string) Decision { return Decision{Reason: reason} }

// Func is a single policy. It sees the caller identity, the tool name and
// the validated arguments, and may block on its own I/O (an external
// authorization call, say). Returning an error denies the invocation.
type Func func(ctx context.Context, agent *tool.AgentContext, toolName string, args map[string]any) (Decision, error)

// Engine evaluates policies strictly in registration order. The policy
// list is fixed at construction and read-only afterwards, so Evaluate is
// safe for concurrent use.
type Engine struct {
	policies []Func
}

// NewEngine builds an engine over the given policies, in order. An engine
// with no policies allows everything.
func NewEngine(policies ...Func) *Engine {
	e := &Engine{policies: make([]Func, len(policies))}
	copy(e.policies, policies)
	return e
}

// Evaluate runs the policies in order and returns the first deny, or an
// allow if every policy allowed. Policies after a deny are not invoked,
// so a policy with side effects (audit logging) only observes invocations
// that reach it.
func (e *Engine) Evaluate(ctx context.Context, agent *tool.AgentContext, toolName string, args map[string]any) Decision {
	for _, p := range e.policies {
		decision := evaluateOne(ctx, p, agent, toolName, args)
		if !decision.Allowed {
			return decision
		}
	}
	return Allow()
}

// evaluateOne isolates a single policy call so a panic inside a policy
// denies the invocation instead of unwinding the coordinator.
func evaluateOne(ctx context.Context, p Func, agent *tool.AgentContext, toolName string, args map[string]any) (decision Decision) {
	defer func() {
		if recover() != nil {
			decision = Deny(ReasonPolicyError)
		}
	}()

	decision, err := p(ctx, agent, toolName, args)
	if err != nil {
		return Deny(ReasonPolicyError)
	}
	return decision
}

// RequireGrants returns a policy that checks the caller's grants against
// the tool's required permissions. A caller holding any one of the
// required permissions, or the "tools:*" wildcard, is allowed. Tools that
// require nothing are open to every authenticated caller.
func RequireGrants(registry *tool.Registry) Func {
	return func(_ context.Context, agent *tool.AgentContext, toolName string, _ map[string]any) (Decision, error) {
		t, err := registry.Lookup(toolName)
		if err != nil {
			// Fail closed: an unresolvable tool is never allowed through.
			return Decision{}, err
		}

		required := t.RequiredPermissions()
		if len(required) == 0 {
			return Allow(), nil
		}

		held := make(map[string]struct{})
		for _, g := range agent.Grants() {
			held[g] = struct{}{}
		}
		if _, ok := held["tools:*"]; ok {
			return Allow(), nil
		}
		for _, req := range required {
			if _, ok := held[req]; ok {
				return Allow(), nil
			}
		}
		return Deny("missing permission for tool " + toolName), nil
	}
}

// DenyTools returns a policy that denies the listed tool names outright.
func DenyTools(names ...string) Func {
	blocked := make(map[string]struct{}, len(names))
	for _, n := range names {
		blocked[n] = struct{}{}
	}
	return func(_ context.Context, _ *tool.AgentContext, toolName string, _ map[string]any) (Decision, error) {
		if _, ok := blocked[toolName]; ok {
			return Deny("tool is disabled by policy"), nil
		}
		return Allow(), nil
	}
}
