package tool

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/toolgate/toolgate/internal/domain/schema"
)

// Built-in tool names.
const (
	BuiltinEcho   = "echo"
	BuiltinNow    = "time.now"
	BuiltinHash   = "text.hash"
	BuiltinWhoami = "agent.whoami"
)

// Builtins returns the definitions of the gateway's built-in tools. They
// are small on purpose: each one exists to exercise a distinct part of the
// pipeline (plain handler, agent-context handler, composite output) and to
// give a fresh deployment something to invoke.
func Builtins() []Definition {
	return []Definition{
		{
			Name:        BuiltinEcho,
			Description: "Return the input text unchanged",
			InputSchema: schema.MustNew(
				schema.Field{Name: "text", Type: schema.KindString, Required: true},
			),
			OutputSchema: schema.MustNew(
				schema.Field{Name: "text", Type: schema.KindString, Required: true},
			),
			Timeout:             5 * time.Second,
			Idempotent:          true,
			RequiredPermissions: []string{"tools:echo"},
			Handler:             echoHandler,
		},
		{
			Name:        BuiltinNow,
			Description: "Current server time in UTC",
			InputSchema: schema.MustNew(),
			OutputSchema: schema.MustNew(
				schema.Field{Name: "iso", Type: schema.KindString, Required: true},
				schema.Field{Name: "unix", Type: schema.KindInteger, Required: true},
			),
			Timeout:             5 * time.Second,
			Idempotent:          true,
			RequiredPermissions: []string{"tools:time"},
			Handler:             nowHandler,
		},
		{
			Name:        BuiltinHash,
			Description: "SHA-256 digest of the input text",
			InputSchema: schema.MustNew(
				schema.Field{Name: "text", Type: schema.KindString, Required: true},
			),
			OutputSchema: schema.MustNew(
				schema.Field{Name: "algorithm", Type: schema.KindString, Required: true},
				schema.Field{Name: "digest", Type: schema.KindString, Required: true},
			),
			Timeout:             5 * time.Second,
			Idempotent:          true,
			RequiredPermissions: []string{"tools:hash"},
			Handler:             hashHandler,
		},
		{
			Name:        BuiltinWhoami,
			Description: "Echo back the caller identity the gateway resolved",
			InputSchema: schema.MustNew(),
			OutputSchema: schema.MustNew(
				schema.Field{Name: "agent_id", Type: schema.KindString, Required: true},
				schema.Field{Name: "request_id", Type: schema.KindString, Required: true},
				schema.Field{Name: "model", Type: schema.KindString},
			),
			Timeout:             5 * time.Second,
			Idempotent:          true,
			RequiredPermissions: []string{"tools:whoami"},
			AgentHandler:        whoamiHandler,
		},
	}
}

func echoHandler(_ context.Context, input map[string]any) (map[string]any, error) {
	return map[string]any{"text": input["text"]}, nil
}

func nowHandler(_ context.Context, _ map[string]any) (map[string]any, error) {
	now := time.Now().UTC()
	return map[string]any{
		"iso":  now.Format(time.RFC3339),
		"unix": now.Unix(),
	}, nil
}

func hashHandler(_ context.Context, input map[string]any) (map[string]any, error) {
	text, ok := input["text"].(string)
	if !ok {
		return nil, fmt.Errorf("text must be a string")
	}
	sum := sha256.Sum256([]byte(text))
	return map[string]any{
		"algorithm": "sha256",
		"digest":    hex.EncodeToString(sum[:]),
	}, nil
}

func whoamiHandler(_ context.Context, agent *AgentContext, _ map[string]any) (map[string]any, error) {
	if agent == nil {
		return nil, fmt.Errorf("no agent context supplied")
	}
	out := map[string]any{
		"agent_id":   agent.AgentID,
		"request_id": agent.RequestID,
	}
	if agent.Model != "" {
		out["model"] = agent.Model
	}
	return out, nil
}
