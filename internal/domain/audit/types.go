package audit

import (
	"encoding/json"
	"time"
)

// Outcome classifies what an audited lifecycle event reports.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeDenied  Outcome = "denied"
	OutcomeError   Outcome = "error"
)

// Event is a single audit log entry for one execution lifecycle event.
// Append-only and immutable: once written it is never modified.
type Event struct {
	ID        string          `json:"id"`
	RequestID string          `json:"request_id"`
	AgentID   string          `json:"agent_id"`
	Tool      string          `json:"tool"`
	Lifecycle string          `json:"lifecycle"` // execute_start | execute_end | execute_error
	Outcome   Outcome         `json:"outcome"`
	Code      string          `json:"code,omitempty"` // reserved wire code on failures
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
