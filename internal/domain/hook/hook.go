// Package hook dispatches execution lifecycle events. The dispatcher
// guarantees the firing contract: the start event fires at most once and
// only immediately before the handler runs; exactly one terminal event
// (end or error) fires per invocation. Hooks observe read-only snapshots
// and cannot alter the invocation's visible outcome — a hook that panics
// is contained and the remaining hooks still fire.
package hook

import (
	"sync"
	"time"
)

// EventType identifies a lifecycle event.
type EventType string

const (
	EventExecuteStart EventType = "execute_start"
	EventExecuteEnd   EventType = "execute_end"
	EventExecuteError EventType = "execute_error"
)

// Event is the read-only snapshot delivered to hooks. Input and Output are
// copies; mutating them has no effect on the invocation.
type Event struct {
	Type      EventType
	Tool      string
	RequestID string
	AgentID   string
	Input     map[string]any
	Output    map[string]any
	Code      string // reserved wire code, error events only
	Detail    string // internal failure detail, never serialized to the wire
	At        time.Time
	Duration  time.Duration
}

// Func observes one lifecycle event. Return values do not exist by design:
// hooks cannot influence the execution result.
type Func func(Event)

// Dispatcher holds the ordered hook list. Built once at startup and
// read-only afterwards.
type Dispatcher struct {
	hooks []Func
}

// NewDispatcher builds a dispatcher over the given hooks, in order.
func NewDispatcher(hooks ...Func) *Dispatcher {
	d := &Dispatcher{hooks: make([]Func, len(hooks))}
	copy(d.hooks, hooks)
	return d
}

// Emitter returns the per-invocation emitter that enforces the firing
// contract for one execution record.
func (d *Dispatcher) Emitter() *Emitter {
	return &Emitter{dispatcher: d}
}

// Emitter tracks hook state for a single invocation: at most one start,
// exactly one terminal event.
type Emitter struct {
	dispatcher *Dispatcher
	startOnce  sync.Once
	endOnce    sync.Once
}

// Start fires the execute_start event. Additional calls are ignored.
func (e *Emitter) Start(ev Event) {
	e.startOnce.Do(func() {
		ev.Type = EventExecuteStart
		e.dispatcher.fire(ev)
	})
}

// End fires the execute_end terminal event, unless a terminal event
// already fired for this invocation.
func (e *Emitter) End(ev Event) {
	e.endOnce.Do(func() {
		ev.Type = EventExecuteEnd
		e.dispatcher.fire(ev)
	})
}

// Error fires the execute_error terminal event, unless a terminal event
// already fired for this invocation.
func (e *Emitter) Error(ev Event) {
	e.endOnce.Do(func() {
		ev.Type = EventExecuteError
		e.dispatcher.fire(ev)
	})
}

// fire snapshots the event payload once, then delivers to every hook in
// order. Each hook call is isolated so a panicking hook cannot stop the
// remaining hooks or reach the coordinator.
func (d *Dispatcher) fire(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	ev.Input = cloneMap(ev.Input)
	ev.Output = cloneMap(ev.Output)

	for _, h := range d.hooks {
		func() {
			defer func() {
				_ = recover()
			}()
			h(ev)
		}()
	}
}

// cloneMap copies one level deep plus nested maps and slices, which covers
// every value shape the validator produces.
func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
