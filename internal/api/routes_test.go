// Wiring tests for NewRouter: route registration, auth enforcement,
// and end-to-end invocation through the coordinator.
package api

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/toolgate/toolgate/internal/domain/audit"
	"github.com/toolgate/toolgate/internal/domain/exec"
	"github.com/toolgate/toolgate/internal/domain/hook"
	"github.com/toolgate/toolgate/internal/domain/policy"
	"github.com/toolgate/toolgate/internal/domain/tool"
	"github.com/toolgate/toolgate/internal/infra/sqlite"
	pkgauth "github.com/toolgate/toolgate/pkg/auth"
)

func TestMain(m *testing.M) {
	// Auth middleware reads JWT_SECRET — must be set for protected routes.
	os.Setenv("JWT_SECRET", "test-secret-key-32-chars-min!!!") //nolint:errcheck
	os.Exit(m.Run())
}

// mustOpenAPITestDB opens an in-memory SQLite DB with all migrations applied.
func mustOpenAPITestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.NewDB(":memory:")
	if err != nil {
		t.Fatalf("mustOpenAPITestDB: NewDB: %v", err)
	}
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("mustOpenAPITestDB: MigrateUp: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// newTestRouter wires a full gateway over the builtin tools.
func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()
	db := mustOpenAPITestDB(t)

	registry := tool.NewRegistry()
	for _, def := range tool.Builtins() {
		if err := registry.Register(def); err != nil {
			t.Fatalf("register builtin: %v", err)
		}
	}
	registry.Seal()

	engine := policy.NewEngine(
		policy.DenyTools("agent.whoami"),
		policy.RequireGrants(registry),
	)
	coord := exec.NewCoordinator(registry, engine, hook.NewDispatcher(), nil)

	return NewRouter(Deps{
		Coordinator: coord,
		Registry:    registry,
		Audit:       audit.NewService(db),
	})
}

// bearerFor mints a JWT for the given grants.
func bearerFor(t *testing.T, grants string) string {
	t.Helper()
	token, err := pkgauth.GenerateJWT("agent-test", "claude-sonnet", grants)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	return "Bearer " + token
}

// TestNewRouter_HealthEndpoint verifies that NewRouter registers the /health route.
func TestNewRouter_HealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 from /health, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ok") {
		t.Errorf("expected body to contain 'ok', got %q", w.Body.String())
	}
}

// TestNewRouter_ProtectedRoutesRequireAuth verifies /api/v1/* returns 401 bare.
func TestNewRouter_ProtectedRoutesRequireAuth(t *testing.T) {
	router := newTestRouter(t)

	for _, tc := range []struct {
		method, path string
	}{
		{http.MethodPost, "/api/v1/invoke"},
		{http.MethodGet, "/api/v1/tools"},
		{http.MethodGet, "/api/v1/audit"},
	} {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401 without credentials, got %d", tc.method, tc.path, w.Code)
		}
	}
}

// TestNewRouter_InvokeEcho runs one echo invocation end to end.
func TestNewRouter_InvokeEcho(t *testing.T) {
	router := newTestRouter(t)

	body := `{"tool":"echo","arguments":{"text":"hello"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoke", strings.NewReader(body))
	req.Header.Set("Authorization", bearerFor(t, "tools:*"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Tool   string         `json:"tool"`
		Output map[string]any `json:"output"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Output["text"] != "hello" {
		t.Errorf("expected echoed text 'hello', got %v", resp.Output["text"])
	}
}

// TestNewRouter_InvokeUnknownTool maps TOOL_NOT_FOUND to 404.
func TestNewRouter_InvokeUnknownTool(t *testing.T) {
	router := newTestRouter(t)

	body := `{"tool":"ghost","arguments":{}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoke", strings.NewReader(body))
	req.Header.Set("Authorization", bearerFor(t, "tools:*"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "TOOL_NOT_FOUND") {
		t.Errorf("expected TOOL_NOT_FOUND code in body, got %q", w.Body.String())
	}
}

// TestNewRouter_InvokeBadInput maps INVALID_INPUT to 400.
func TestNewRouter_InvokeBadInput(t *testing.T) {
	router := newTestRouter(t)

	body := `{"tool":"echo","arguments":{"text":42}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoke", strings.NewReader(body))
	req.Header.Set("Authorization", bearerFor(t, "tools:*"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "INVALID_INPUT") {
		t.Errorf("expected INVALID_INPUT code in body, got %q", w.Body.String())
	}
}

// TestNewRouter_InvokeDeniedTool maps POLICY_DENIED to 403.
func TestNewRouter_InvokeDeniedTool(t *testing.T) {
	router := newTestRouter(t)

	body := `{"tool":"agent.whoami","arguments":{}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoke", strings.NewReader(body))
	req.Header.Set("Authorization", bearerFor(t, "tools:*"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "POLICY_DENIED") {
		t.Errorf("expected POLICY_DENIED code in body, got %q", w.Body.String())
	}
}

// TestNewRouter_InvokeWithoutGrants maps missing grants to 403.
func TestNewRouter_InvokeWithoutGrants(t *testing.T) {
	router := newTestRouter(t)

	body := `{"tool":"echo","arguments":{"text":"hi"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoke", strings.NewReader(body))
	req.Header.Set("Authorization", bearerFor(t, ""))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for agent without grants, got %d: %s", w.Code, w.Body.String())
	}
}

// TestNewRouter_Discovery lists the sealed catalogue in registration order.
func TestNewRouter_Discovery(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tools", nil)
	req.Header.Set("Authorization", bearerFor(t, "tools:*"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Server string `json:"server"`
		Tools  []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Server != "toolgate" {
		t.Errorf("expected server 'toolgate', got %q", resp.Server)
	}
	if len(resp.Tools) != 4 {
		t.Fatalf("expected 4 builtin tools, got %d", len(resp.Tools))
	}
	if resp.Tools[0].Name != tool.BuiltinEcho {
		t.Errorf("expected first tool %q, got %q", tool.BuiltinEcho, resp.Tools[0].Name)
	}
}

// TestNewRouter_AuditEndpoint returns the (initially empty) trail.
func TestNewRouter_AuditEndpoint(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil)
	req.Header.Set("Authorization", bearerFor(t, "tools:*"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"total":0`) {
		t.Errorf("expected empty trail, got %q", w.Body.String())
	}
}

// TestNewRouter_InvokeMalformedBody rejects non-JSON bodies before the coordinator.
func TestNewRouter_InvokeMalformedBody(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoke", strings.NewReader("{not json"))
	req.Header.Set("Authorization", bearerFor(t, "tools:*"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", w.Code)
	}
}
