// Package exec orchestrates one tool invocation end to end: registry
// lookup, input validation, policy evaluation, handler execution under a
// deadline, output validation, and the lifecycle hook contract. It owns
// the execution state machine and the mapping of internal failures onto
// the reserved wire error taxonomy.
package exec

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/toolgate/toolgate/internal/domain/hook"
	"github.com/toolgate/toolgate/internal/domain/policy"
	"github.com/toolgate/toolgate/internal/domain/schema"
	"github.com/toolgate/toolgate/internal/domain/tool"
	"github.com/toolgate/toolgate/pkg/uuid"
)

// Identity is the caller identity the transport resolved out-of-band.
// It feeds the per-invocation AgentContext and is treated as untrusted.
type Identity struct {
	AgentID  string
	Model    string
	Metadata map[string]string
}

// Request is one decoded invocation: a tool name plus raw, unvalidated
// arguments.
type Request struct {
	Tool      string
	Arguments map[string]any
	Identity  Identity
}

// Coordinator drives the execution pipeline. All collaborators are
// instance state — multiple independent coordinators can coexist in one
// process, each over its own registry, policies and hooks.
type Coordinator struct {
	registry *tool.Registry
	policies *policy.Engine
	hooks    *hook.Dispatcher
	log      *slog.Logger

	executions metric.Int64Counter
	duration   metric.Float64Histogram
}

// NewCoordinator wires a coordinator over a sealed registry, a policy
// engine and a hook dispatcher. A nil logger disables logging.
func NewCoordinator(registry *tool.Registry, policies *policy.Engine, hooks *hook.Dispatcher, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	meter := otel.Meter("github.com/toolgate/toolgate/internal/domain/exec")
	executions, _ := meter.Int64Counter("toolgate.executions",
		metric.WithDescription("Tool invocations by tool and outcome code"))
	duration, _ := meter.Float64Histogram("toolgate.execution.duration",
		metric.WithDescription("End-to-end invocation duration"),
		metric.WithUnit("ms"))

	return &Coordinator{
		registry:   registry,
		policies:   policies,
		hooks:      hooks,
		log:        log,
		executions: executions,
		duration:   duration,
	}
}

// Execute runs one invocation through the state machine and returns either
// the validated typed output or a wire error. Validation and policy
// failures never reach the handler; handler failures never propagate past
// this method.
func (c *Coordinator) Execute(ctx context.Context, req Request) (map[string]any, *WireError) {
	rec := newRecord(req.Tool, req.Arguments)
	emitter := c.hooks.Emitter()

	fail := func(cause error) (map[string]any, *WireError) {
		rec.Err = cause
		rec.State = StateFailed
		we := MapError(cause)
		emitter.Error(hook.Event{
			Tool:      rec.Tool,
			RequestID: requestID(rec.Agent),
			AgentID:   req.Identity.AgentID,
			Input:     rec.Input,
			Code:      we.Code,
			Detail:    cause.Error(),
			Duration:  time.Since(rec.StartedAt),
		})
		c.observe(ctx, rec, we.Code)
		c.log.Warn("tool execution failed",
			"tool", rec.Tool,
			"agent_id", req.Identity.AgentID,
			"request_id", requestID(rec.Agent),
			"code", we.Code,
			"state", string(rec.State),
		)
		return nil, &we
	}

	// INIT: resolve the tool.
	t, err := c.registry.Lookup(req.Tool)
	if err != nil {
		return fail(err)
	}
	if err := rec.Advance(StateValidatingInput); err != nil {
		return fail(err)
	}

	// Input validation against the declared contract.
	input, err := schema.Validate(req.Arguments, t.InputSchema())
	if err != nil {
		return fail(err)
	}
	rec.Input = input

	// AgentContext is constructed fresh per invocation; RequestID is
	// unique for the process lifetime and used for audit correlation.
	rec.Agent = &tool.AgentContext{
		AgentID:   req.Identity.AgentID,
		Model:     req.Identity.Model,
		RequestID: uuid.NewV7().String(),
		Metadata:  cloneStringMap(req.Identity.Metadata),
	}

	if err := rec.Advance(StatePolicyCheck); err != nil {
		return fail(err)
	}
	decision := c.policies.Evaluate(ctx, rec.Agent, t.Name(), input)
	if !decision.Allowed {
		return fail(&DeniedError{Reason: decision.Reason})
	}

	if err := rec.Advance(StateExecuting); err != nil {
		return fail(err)
	}
	// The start hook fires here, immediately before the handler, never
	// before validation and policy have passed.
	emitter.Start(hook.Event{
		Tool:      rec.Tool,
		RequestID: rec.Agent.RequestID,
		AgentID:   rec.Agent.AgentID,
		Input:     input,
	})

	output, err := c.invoke(ctx, t, rec.Agent, input)
	if err != nil {
		return fail(err)
	}
	if err := rec.Advance(StateValidatingOutput); err != nil {
		return fail(err)
	}

	typed, err := schema.Validate(output, t.OutputSchema())
	if err != nil {
		// The handler broke its own contract; this is never the
		// caller's fault.
		return fail(&OutputContractError{Cause: err})
	}
	rec.Output = typed

	if err := rec.Advance(StateCompleted); err != nil {
		return fail(err)
	}
	emitter.End(hook.Event{
		Tool:      rec.Tool,
		RequestID: rec.Agent.RequestID,
		AgentID:   rec.Agent.AgentID,
		Input:     input,
		Output:    typed,
		Duration:  time.Since(rec.StartedAt),
	})
	c.observe(ctx, rec, "OK")
	c.log.Info("tool executed",
		"tool", rec.Tool,
		"agent_id", rec.Agent.AgentID,
		"request_id", rec.Agent.RequestID,
		"duration_ms", time.Since(rec.StartedAt).Milliseconds(),
	)
	return typed, nil
}

type callResult struct {
	output map[string]any
	err    error
}

// invoke runs the handler on its own goroutine bounded by the tool's
// declared timeout. On deadline expiry the caller gets TIMEOUT
// immediately; the abandoned worker may run to completion but its result
// is discarded (the result channel is buffered so it never blocks). This
// is best-effort reclaim, not an abort guarantee — callers registering
// non-idempotent tools must account for it.
func (c *Coordinator) invoke(ctx context.Context, t *tool.Tool, agent *tool.AgentContext, input map[string]any) (map[string]any, error) {
	tctx, cancel := context.WithTimeout(ctx, t.Timeout())
	defer cancel()

	results := make(chan callResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				results <- callResult{err: fmt.Errorf("handler panic: %v", r)}
			}
		}()
		output, err := t.Call(tctx, agent, input)
		results <- callResult{output: output, err: err}
	}()

	select {
	case res := <-results:
		if res.err != nil {
			return nil, fmt.Errorf("tool %q: %w", t.Name(), res.err)
		}
		return res.output, nil
	case <-tctx.Done():
		return nil, fmt.Errorf("tool %q: %w", t.Name(), tctx.Err())
	}
}

func (c *Coordinator) observe(ctx context.Context, rec *Record, code string) {
	attrs := metric.WithAttributes(
		attribute.String("tool", rec.Tool),
		attribute.String("code", code),
	)
	if c.executions != nil {
		c.executions.Add(ctx, 1, attrs)
	}
	if c.duration != nil {
		c.duration.Record(ctx, float64(time.Since(rec.StartedAt).Milliseconds()), attrs)
	}
}

func requestID(agent *tool.AgentContext) string {
	if agent == nil {
		return ""
	}
	return agent.RequestID
}

func cloneStringMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	maps.Copy(out, in)
	return out
}
