package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/toolgate/toolgate/internal/domain/hook"
	"github.com/toolgate/toolgate/internal/infra/eventbus"
)

// Topic is the event bus topic lifecycle events are published on.
const Topic = "execution.lifecycle"

// Recorder bridges the hook path to the audit store. Its Hook publishes
// each lifecycle event onto the bus and returns immediately; a consumer
// goroutine (Start) drains the topic into sqlite. A slow or failing store
// therefore cannot stall an invocation or corrupt its visible result.
type Recorder struct {
	service *Service
	bus     eventbus.EventBus
	log     *slog.Logger
}

// NewRecorder wires a recorder over the audit service and bus.
func NewRecorder(service *Service, bus eventbus.EventBus, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Recorder{service: service, bus: bus, log: log}
}

// Hook returns the lifecycle hook that feeds the recorder.
func (r *Recorder) Hook() hook.Func {
	return func(ev hook.Event) {
		r.bus.Publish(Topic, ev)
	}
}

// Start consumes lifecycle events from the bus until ctx is done.
// Run it on its own goroutine.
func (r *Recorder) Start(ctx context.Context) {
	events := r.bus.Subscribe(Topic)
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-events:
			ev, ok := evt.Payload.(hook.Event)
			if !ok {
				continue
			}
			if err := r.service.Log(ctx, toAuditEvent(ev)); err != nil {
				r.log.Warn("audit write failed", "tool", ev.Tool, "request_id", ev.RequestID, "err", err)
			}
		}
	}
}

func toAuditEvent(ev hook.Event) *Event {
	details, _ := json.Marshal(map[string]any{
		"duration_ms": ev.Duration.Milliseconds(),
		"detail":      ev.Detail,
	})
	return &Event{
		RequestID: ev.RequestID,
		AgentID:   ev.AgentID,
		Tool:      ev.Tool,
		Lifecycle: string(ev.Type),
		Outcome:   outcomeFor(ev),
		Code:      ev.Code,
		Details:   details,
		CreatedAt: ev.At,
	}
}

func outcomeFor(ev hook.Event) Outcome {
	switch ev.Type {
	case hook.EventExecuteError:
		if ev.Code == "POLICY_DENIED" {
			return OutcomeDenied
		}
		return OutcomeError
	default:
		return OutcomeSuccess
	}
}
