// Tests for the Bearer JWT and API-key AuthMiddleware.
// Covers: credentials absent, invalid, expired, valid — and context injection.
package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/toolgate/toolgate/internal/api/ctxkeys"
	"github.com/toolgate/toolgate/internal/api/middleware"
	"github.com/toolgate/toolgate/internal/infra/config"
	pkgauth "github.com/toolgate/toolgate/pkg/auth"
)

// TestMain sets JWT_SECRET before any test runs.
// pkgauth.GenerateJWT panics if JWT_SECRET is not set.
func TestMain(m *testing.M) {
	os.Setenv("JWT_SECRET", "test-secret-key-32-chars-min!!!") //nolint:errcheck
	os.Exit(m.Run())
}

// ===== HELPERS =====

// nextHandler returns an http.Handler that sets called=true and records the context.
func nextHandler(called *bool, capturedCtx *context.Context) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		if capturedCtx != nil {
			ctx := r.Context()
			*capturedCtx = ctx
		}
		w.WriteHeader(http.StatusOK)
	})
}

// makeRequest creates a POST request with an optional Authorization header.
func makeRequest(token string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoke", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

// testAgents returns a one-agent config with the given plaintext key hashed.
func testAgents(t *testing.T, key string) []config.AgentConfig {
	t.Helper()
	hash, err := pkgauth.HashAPIKey(key)
	if err != nil {
		t.Fatalf("HashAPIKey failed: %v", err)
	}
	return []config.AgentConfig{{
		ID:         "agent-researcher",
		Model:      "claude-sonnet",
		APIKeyHash: hash,
		Grants:     "tools:echo,tools:hash",
	}}
}

// ===== TESTS: CREDENTIALS ABSENT =====

// TestAuth_NoCredentials verifies that a bare request returns 401.
func TestAuth_NoCredentials(t *testing.T) {
	t.Parallel()

	called := false
	handler := middleware.Auth(nil)(nextHandler(&called, nil))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, makeRequest(""))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d; want %d", rr.Code, http.StatusUnauthorized)
	}

	if called {
		t.Error("next handler should NOT be called without credentials")
	}
}

// TestAuth_EmptyBearerValue verifies that "Bearer " with empty token returns 401.
func TestAuth_EmptyBearerValue(t *testing.T) {
	t.Parallel()

	called := false
	handler := middleware.Auth(nil)(nextHandler(&called, nil))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoke", nil)
	req.Header.Set("Authorization", "Bearer ")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d; want %d", rr.Code, http.StatusUnauthorized)
	}
	if called {
		t.Error("next handler should NOT be called with empty bearer value")
	}
}

// TestAuth_WrongScheme verifies that non-Bearer schemes are rejected.
func TestAuth_WrongScheme(t *testing.T) {
	t.Parallel()

	called := false
	handler := middleware.Auth(nil)(nextHandler(&called, nil))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoke", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d; want %d", rr.Code, http.StatusUnauthorized)
	}
	if called {
		t.Error("next handler should NOT be called with wrong scheme")
	}
}

// ===== TESTS: INVALID TOKEN =====

// TestAuth_InvalidToken verifies that a garbage token returns 401.
func TestAuth_InvalidToken(t *testing.T) {
	t.Parallel()

	called := false
	handler := middleware.Auth(nil)(nextHandler(&called, nil))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, makeRequest("not.a.jwt"))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d; want %d", rr.Code, http.StatusUnauthorized)
	}
	if called {
		t.Error("next handler should NOT be called with invalid token")
	}
}

// TestAuth_ExpiredToken verifies that an expired token returns 401.
func TestAuth_ExpiredToken(t *testing.T) {
	t.Parallel()

	// Sign an already-expired token with the test secret.
	claims := &pkgauth.Claims{
		AgentID: "agent-researcher",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-1 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(os.Getenv("JWT_SECRET")))
	if err != nil {
		t.Fatalf("failed to sign expired token: %v", err)
	}

	called := false
	handler := middleware.Auth(nil)(nextHandler(&called, nil))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, makeRequest(signed))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d; want %d", rr.Code, http.StatusUnauthorized)
	}
	if called {
		t.Error("next handler should NOT be called with expired token")
	}
}

// ===== TESTS: VALID TOKEN =====

// TestAuth_ValidToken verifies that a valid token passes and injects identity.
func TestAuth_ValidToken(t *testing.T) {
	t.Parallel()

	token, err := pkgauth.GenerateJWT("agent-researcher", "claude-sonnet", "tools:echo")
	if err != nil {
		t.Fatalf("GenerateJWT failed: %v", err)
	}

	called := false
	var captured context.Context
	handler := middleware.Auth(nil)(nextHandler(&called, &captured))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, makeRequest(token))

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d; want %d", rr.Code, http.StatusOK)
	}
	if !called {
		t.Fatal("next handler should be called with valid token")
	}

	if got, _ := captured.Value(ctxkeys.AgentID).(string); got != "agent-researcher" {
		t.Errorf("AgentID in context = %q; want agent-researcher", got)
	}
	if got, _ := captured.Value(ctxkeys.Model).(string); got != "claude-sonnet" {
		t.Errorf("Model in context = %q; want claude-sonnet", got)
	}
	if got, _ := captured.Value(ctxkeys.Grants).(string); got != "tools:echo" {
		t.Errorf("Grants in context = %q; want tools:echo", got)
	}
}

// ===== TESTS: API KEY =====

// TestAuth_APIKey_Valid verifies that a configured key passes and injects identity.
func TestAuth_APIKey_Valid(t *testing.T) {
	t.Parallel()

	agents := testAgents(t, "tk-live-secret")

	called := false
	var captured context.Context
	handler := middleware.Auth(agents)(nextHandler(&called, &captured))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoke", nil)
	req.Header.Set("X-API-Key", "tk-live-secret")
	req.Header.Set("X-Agent-ID", "agent-researcher")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; want %d", rr.Code, http.StatusOK)
	}
	if !called {
		t.Fatal("next handler should be called with valid API key")
	}

	if got, _ := captured.Value(ctxkeys.AgentID).(string); got != "agent-researcher" {
		t.Errorf("AgentID in context = %q; want agent-researcher", got)
	}
	if got, _ := captured.Value(ctxkeys.Grants).(string); got != "tools:echo,tools:hash" {
		t.Errorf("Grants in context = %q; want configured grants", got)
	}
}

// TestAuth_APIKey_WrongKey verifies that a wrong key returns 401.
func TestAuth_APIKey_WrongKey(t *testing.T) {
	t.Parallel()

	agents := testAgents(t, "tk-live-secret")

	called := false
	handler := middleware.Auth(agents)(nextHandler(&called, nil))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoke", nil)
	req.Header.Set("X-API-Key", "tk-live-wrong")
	req.Header.Set("X-Agent-ID", "agent-researcher")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d; want %d", rr.Code, http.StatusUnauthorized)
	}
	if called {
		t.Error("next handler should NOT be called with wrong key")
	}
}

// TestAuth_APIKey_UnknownAgent verifies that an unknown agent ID returns 401.
func TestAuth_APIKey_UnknownAgent(t *testing.T) {
	t.Parallel()

	agents := testAgents(t, "tk-live-secret")

	called := false
	handler := middleware.Auth(agents)(nextHandler(&called, nil))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoke", nil)
	req.Header.Set("X-API-Key", "tk-live-secret")
	req.Header.Set("X-Agent-ID", "ghost")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d; want %d", rr.Code, http.StatusUnauthorized)
	}
	if called {
		t.Error("next handler should NOT be called for unknown agent")
	}
}

// TestAuth_APIKey_MissingAgentID verifies that a key without X-Agent-ID returns 401.
func TestAuth_APIKey_MissingAgentID(t *testing.T) {
	t.Parallel()

	agents := testAgents(t, "tk-live-secret")

	called := false
	handler := middleware.Auth(agents)(nextHandler(&called, nil))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoke", nil)
	req.Header.Set("X-API-Key", "tk-live-secret")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d; want %d", rr.Code, http.StatusUnauthorized)
	}
	if called {
		t.Error("next handler should NOT be called without agent ID")
	}
}
