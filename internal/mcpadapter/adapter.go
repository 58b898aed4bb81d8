// Package mcpadapter exposes the sealed tool catalogue as an MCP server
// over stdio, using the official MCP Go SDK. Every call is routed through
// the execution coordinator, so MCP callers get the same validation,
// policy and timeout semantics as HTTP callers.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/toolgate/toolgate/internal/domain/exec"
	"github.com/toolgate/toolgate/internal/domain/tool"
	"github.com/toolgate/toolgate/internal/version"
)

// Adapter bridges an MCP session onto the coordinator. The identity is
// fixed per adapter: a stdio session has exactly one peer, resolved at
// startup from configuration.
type Adapter struct {
	coord    *exec.Coordinator
	identity exec.Identity
	log      *slog.Logger
	server   *mcp.Server
}

// New builds an MCP server over the registry's sealed catalogue. The
// registry must be sealed before this is called; tools registered later
// would never reach the MCP surface.
func New(coord *exec.Coordinator, registry *tool.Registry, identity exec.Identity, log *slog.Logger) (*Adapter, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	a := &Adapter{
		coord:    coord,
		identity: identity,
		log:      log,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "toolgate",
			Version: version.Version,
		}, nil),
	}

	for _, meta := range registry.ListMetadata() {
		inputSchema, err := toJSONSchema(meta.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("mcpadapter: tool %q: %w", meta.Name, err)
		}
		outputSchema, err := toJSONSchema(meta.OutputSchema)
		if err != nil {
			return nil, fmt.Errorf("mcpadapter: tool %q: %w", meta.Name, err)
		}

		a.server.AddTool(&mcp.Tool{
			Name:         meta.Name,
			Description:  meta.Description,
			InputSchema:  inputSchema,
			OutputSchema: outputSchema,
		}, a.handlerFor(meta.Name))
	}

	return a, nil
}

// Run serves the MCP session over stdio until ctx is cancelled or the
// peer disconnects.
func (a *Adapter) Run(ctx context.Context) error {
	a.log.Info("starting MCP stdio server", "agent_id", a.identity.AgentID)
	if err := a.server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("mcpadapter: %w", err)
	}
	return nil
}

// handlerFor returns the MCP tool handler delegating to the coordinator.
// Wire errors become tool-level errors (IsError), never protocol errors:
// the session must survive a failed invocation.
func (a *Adapter) handlerFor(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := decodeArguments(req.Params.Arguments)
		if err != nil {
			return errorResult(exec.WireError{
				Code:    exec.CodeInvalidInput,
				Message: "arguments must be a JSON object",
			}), nil
		}

		output, werr := a.coord.Execute(ctx, exec.Request{
			Tool:      name,
			Arguments: args,
			Identity:  a.identity,
		})
		if werr != nil {
			return errorResult(*werr), nil
		}

		text, err := json.Marshal(output)
		if err != nil {
			return nil, fmt.Errorf("mcpadapter: encode output: %w", err)
		}
		return &mcp.CallToolResult{
			Content:           []mcp.Content{&mcp.TextContent{Text: string(text)}},
			StructuredContent: output,
		}, nil
	}
}

// decodeArguments parses the raw MCP arguments into the coordinator's
// input shape. Absent arguments mean an empty object.
func decodeArguments(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// errorResult encodes a wire error as a failed tool call.
func errorResult(we exec.WireError) *mcp.CallToolResult {
	encoded, _ := json.Marshal(we)
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(encoded)}},
		IsError: true,
	}
}

// toJSONSchema converts a contract's JSON-Schema map into the SDK's
// schema type via a JSON round trip.
func toJSONSchema(m map[string]any) (*jsonschema.Schema, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return &s, nil
}
