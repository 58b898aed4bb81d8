// toolgate - tool execution gateway for AI agents
// Entry point: flag handling, service wiring, and lifecycle.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/toolgate/toolgate/internal/api"
	"github.com/toolgate/toolgate/internal/domain/audit"
	"github.com/toolgate/toolgate/internal/domain/exec"
	"github.com/toolgate/toolgate/internal/domain/hook"
	"github.com/toolgate/toolgate/internal/domain/policy"
	"github.com/toolgate/toolgate/internal/domain/tool"
	"github.com/toolgate/toolgate/internal/infra/config"
	"github.com/toolgate/toolgate/internal/infra/eventbus"
	"github.com/toolgate/toolgate/internal/infra/sqlite"
	"github.com/toolgate/toolgate/internal/mcpadapter"
	"github.com/toolgate/toolgate/internal/server"
	"github.com/toolgate/toolgate/internal/version"
)

const shutdownGrace = 10 * time.Second

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("toolgate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	showVersion := fs.Bool("version", false, "Show version information")
	showHelp := fs.Bool("help", false, "Show help")
	configPath := fs.String("config", "", "Path to YAML config file")
	serveMode := fs.Bool("serve", false, "Start the gateway")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Fprintln(out, version.String()) //nolint:errcheck
		return 0
	}

	if *showHelp {
		printHelp(out)
		return 0
	}

	if *serveMode {
		if err := serve(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "toolgate: %v\n", err)
			return 1
		}
		return 0
	}

	// Default: print version
	fmt.Fprintln(out, version.String()) //nolint:errcheck
	return 0
}

// serve wires the gateway and blocks until SIGINT/SIGTERM.
func serve(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Server.LogLevel.Slog(),
	}))
	slog.SetDefault(log)

	db, err := sqlite.NewDB(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := sqlite.MigrateUp(db); err != nil {
		return err
	}

	registry := tool.NewRegistry()
	for _, def := range tool.Builtins() {
		if err := registry.Register(def); err != nil {
			return fmt.Errorf("register builtin: %w", err)
		}
	}
	registry.Seal()

	engine := policy.NewEngine(
		policy.DenyTools(cfg.Policy.DisabledTools...),
		policy.RequireGrants(registry),
	)

	bus := eventbus.New()
	auditService := audit.NewService(db)
	recorder := audit.NewRecorder(auditService, bus, log)
	hooks := hook.NewDispatcher(recorder.Hook())

	coord := exec.NewCoordinator(registry, engine, hooks, log)

	router := api.NewRouter(api.Deps{
		Coordinator: coord,
		Registry:    registry,
		Audit:       auditService,
		Agents:      cfg.Agents,
	})
	srv := server.NewServer(router, server.DefaultConfig(cfg.Server.ListenAddr), log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		recorder.Start(gctx)
		return nil
	})

	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.MCP.Enabled {
		adapter, err := mcpadapter.New(coord, registry, exec.Identity{
			AgentID:  "mcp-peer",
			Metadata: map[string]string{"grants": "tools:*"},
		}, log)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return adapter.Run(gctx)
		})
	}

	log.Info("toolgate started",
		"version", version.Version,
		"addr", cfg.Server.ListenAddr,
		"tools", registry.Len(),
		"mcp", cfg.MCP.Enabled,
	)

	return g.Wait()
}

func printHelp(out io.Writer) {
	helpText := `toolgate - tool execution gateway for AI agents

Usage:
  toolgate [options]

Options:
  --version        Show version information
  --serve          Start the gateway
  --config <path>  Path to YAML config file (optional; env vars override)
  --help           Show this help message

Environment:
  TOOLGATE_LISTEN_ADDR   HTTP listen address (default :8080)
  TOOLGATE_DB_PATH       SQLite database path (default toolgate.db)
  TOOLGATE_LOG_LEVEL     debug, info, warn, error (default info)
  TOOLGATE_MCP_ENABLED   Serve MCP over stdio alongside HTTP (true/false)

Examples:
  toolgate --version
  toolgate --serve --config toolgate.yaml
  TOOLGATE_LISTEN_ADDR=:9090 toolgate --serve`
	fmt.Fprintln(out, helpText) //nolint:errcheck
}
