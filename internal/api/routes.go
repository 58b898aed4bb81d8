// Route registration and go-chi router setup.
// Public routes (/health) vs credential-protected routes (/api/v1/*).
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/toolgate/toolgate/internal/api/handlers"
	apmiddleware "github.com/toolgate/toolgate/internal/api/middleware"
	"github.com/toolgate/toolgate/internal/domain/audit"
	"github.com/toolgate/toolgate/internal/domain/exec"
	"github.com/toolgate/toolgate/internal/domain/tool"
	"github.com/toolgate/toolgate/internal/infra/config"
)

// Deps carries the wired gateway services into the router. Construction
// happens in main; the router only binds them to paths.
type Deps struct {
	Coordinator *exec.Coordinator
	Registry    *tool.Registry
	Audit       *audit.Service
	Agents      []config.AgentConfig
}

// NewRouter creates and configures a new chi router with all routes.
func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (runs on all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// ===== PUBLIC ROUTES (no auth required) =====

	// Health check — unauthenticated, used by load balancers and health probes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})

	// ===== PROTECTED ROUTES (credentials required via Auth middleware) =====

	invokeHandler := handlers.NewInvokeHandler(deps.Coordinator)
	discoveryHandler := handlers.NewDiscoveryHandler(deps.Registry)
	auditHandler := handlers.NewAuditHandler(deps.Audit)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(apmiddleware.Auth(deps.Agents))

		r.Post("/invoke", invokeHandler.Invoke)
		r.Get("/tools", discoveryHandler.ListTools)
		r.Get("/audit", auditHandler.ListEvents)
	})

	return r
}
