// Package audit persists the execution audit trail. Every lifecycle event
// the gateway emits is recorded as an immutable row; this is the
// observability side of the pipeline, fed asynchronously so audit health
// never affects a caller-visible result.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/toolgate/toolgate/pkg/uuid"
)

// Service provides append-only audit logging. No updates, no deletes.
type Service struct {
	db *sql.DB
}

// NewService creates an audit service over the given database.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Log appends one audit event. The only write path into audit_event.
func (s *Service) Log(ctx context.Context, event *Event) error {
	if event.ID == "" {
		event.ID = uuid.NewV7().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	details := event.Details
	if len(details) == 0 {
		details = json.RawMessage(`{}`)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_event (
			id, request_id, agent_id, tool, lifecycle, outcome, code, details, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID,
		event.RequestID,
		event.AgentID,
		event.Tool,
		event.Lifecycle,
		string(event.Outcome),
		event.Code,
		[]byte(details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: log event: %w", err)
	}
	return nil
}

// ListRecent returns the newest events first, capped at limit.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]*Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, agent_id, tool, lifecycle, outcome, code, details, created_at
		FROM audit_event
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: list events: %w", err)
	}
	defer rows.Close()

	out := make([]*Event, 0, limit)
	for rows.Next() {
		var (
			item    Event
			outcome string
			details []byte
		)
		if err := rows.Scan(
			&item.ID,
			&item.RequestID,
			&item.AgentID,
			&item.Tool,
			&item.Lifecycle,
			&outcome,
			&item.Code,
			&details,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		item.Outcome = Outcome(outcome)
		item.Details = json.RawMessage(details)
		out = append(out, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CountByOutcome returns how many events carry the given outcome.
func (s *Service) CountByOutcome(ctx context.Context, outcome Outcome) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM audit_event WHERE outcome = ?
	`, string(outcome)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("audit: count by outcome: %w", err)
	}
	return n, nil
}
