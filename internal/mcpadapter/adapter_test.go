package mcpadapter

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/toolgate/toolgate/internal/domain/exec"
	"github.com/toolgate/toolgate/internal/domain/hook"
	"github.com/toolgate/toolgate/internal/domain/policy"
	"github.com/toolgate/toolgate/internal/domain/schema"
	"github.com/toolgate/toolgate/internal/domain/tool"
)

func sealedRegistry(t *testing.T) *tool.Registry {
	t.Helper()
	registry := tool.NewRegistry()
	for _, def := range tool.Builtins() {
		if err := registry.Register(def); err != nil {
			t.Fatalf("register builtin: %v", err)
		}
	}
	registry.Seal()
	return registry
}

func TestNew_BuildsServerFromCatalogue(t *testing.T) {
	t.Parallel()

	registry := sealedRegistry(t)
	coord := exec.NewCoordinator(registry, policy.NewEngine(), hook.NewDispatcher(), nil)

	a, err := New(coord, registry, exec.Identity{AgentID: "agent-mcp"}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if a.server == nil {
		t.Fatal("adapter has no server")
	}
}

func TestDecodeArguments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		wantErr bool
		wantLen int
	}{
		{"empty raw", "", false, 0},
		{"null", "null", false, 0},
		{"object", `{"text":"hi"}`, false, 1},
		{"array", `[1,2]`, true, 0},
		{"scalar", `42`, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			args, err := decodeArguments(json.RawMessage(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeArguments(%q) failed: %v", tt.raw, err)
			}
			if args == nil {
				t.Fatal("arguments must never be nil")
			}
			if len(args) != tt.wantLen {
				t.Errorf("len = %d; want %d", len(args), tt.wantLen)
			}
		})
	}
}

func TestErrorResult_CarriesWireError(t *testing.T) {
	t.Parallel()

	res := errorResult(exec.WireError{Code: exec.CodeToolNotFound, Message: "tool not found"})

	if !res.IsError {
		t.Error("IsError should be set")
	}
	if len(res.Content) != 1 {
		t.Fatalf("expected one content block, got %d", len(res.Content))
	}
	text := res.Content[0]
	data, err := json.Marshal(text)
	if err != nil {
		t.Fatalf("marshal content: %v", err)
	}
	if !strings.Contains(string(data), "TOOL_NOT_FOUND") {
		t.Errorf("content should carry the wire code, got %s", data)
	}
}

func TestToJSONSchema_RoundTrip(t *testing.T) {
	t.Parallel()

	contract := schema.MustNew(
		schema.Field{Name: "text", Type: schema.KindString, Required: true},
		schema.Field{Name: "count", Type: schema.KindInteger},
	)

	s, err := toJSONSchema(contract.JSON())
	if err != nil {
		t.Fatalf("toJSONSchema failed: %v", err)
	}
	if s.Type != "object" {
		t.Errorf("schema type = %q; want object", s.Type)
	}
	if _, ok := s.Properties["text"]; !ok {
		t.Error("schema should carry the 'text' property")
	}
	if len(s.Required) != 1 || s.Required[0] != "text" {
		t.Errorf("schema required = %v; want [text]", s.Required)
	}
}
