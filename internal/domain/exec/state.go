package exec

import (
	"fmt"
	"time"

	"github.com/toolgate/toolgate/internal/domain/tool"
)

// State is a stage of the execution pipeline. The success path visits
// every state below in order exactly once; failure moves to StateFailed
// from any non-terminal state.
type State string

const (
	StateInit             State = "init"
	StateValidatingInput  State = "validating_input"
	StatePolicyCheck      State = "policy_check"
	StateExecuting        State = "executing"
	StateValidatingOutput State = "validating_output"
	StateCompleted        State = "completed"
	StateFailed           State = "failed"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

var allowedTransitions = map[State]map[State]struct{}{
	StateInit:             {StateValidatingInput: {}, StateFailed: {}},
	StateValidatingInput:  {StatePolicyCheck: {}, StateFailed: {}},
	StatePolicyCheck:      {StateExecuting: {}, StateFailed: {}},
	StateExecuting:        {StateValidatingOutput: {}, StateFailed: {}},
	StateValidatingOutput: {StateCompleted: {}, StateFailed: {}},
	StateCompleted:        {},
	StateFailed:           {},
}

// ErrInvalidTransition reports a state machine violation. Seeing it means
// a coordinator bug, not a caller fault.
var ErrInvalidTransition = fmt.Errorf("invalid execution state transition")

func validTransition(from, to State) error {
	allowed, ok := allowedTransitions[from]
	if !ok {
		return fmt.Errorf("%w: unknown source state %q", ErrInvalidTransition, from)
	}
	if _, ok := allowed[to]; !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// Record is the transient per-invocation state. It is owned by the
// coordinator for the invocation's duration and discarded after the
// terminal hook fires; nothing is persisted here.
type Record struct {
	Tool         string
	RawArguments map[string]any
	Input        map[string]any
	Output       map[string]any
	Agent        *tool.AgentContext
	State        State
	Err          error
	StartedAt    time.Time
}

func newRecord(toolName string, rawArgs map[string]any) *Record {
	return &Record{
		Tool:         toolName,
		RawArguments: rawArgs,
		State:        StateInit,
		StartedAt:    time.Now().UTC(),
	}
}

// Advance moves the record to the next state, enforcing the transition
// table. Every record reaches exactly one terminal state.
func (r *Record) Advance(to State) error {
	if err := validTransition(r.State, to); err != nil {
		return err
	}
	r.State = to
	return nil
}
