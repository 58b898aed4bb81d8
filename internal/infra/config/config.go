// Package config provides the configuration schema and loader for the gateway.
// Configuration is read from a YAML file with env var overrides, and every
// field has a safe default so the binary runs locally without any setup.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LogLevel controls log verbosity for the gateway.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Slog maps l to the corresponding slog level. Unrecognised values map to Info.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const (
	envKeyListenAddr = "TOOLGATE_LISTEN_ADDR"
	envKeyDBPath     = "TOOLGATE_DB_PATH"
	envKeyLogLevel   = "TOOLGATE_LOG_LEVEL"
	envKeyMCPEnabled = "TOOLGATE_MCP_ENABLED"
)

// Config is the root configuration structure for the gateway.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	MCP      MCPConfig      `yaml:"mcp"`
	Agents   []AgentConfig  `yaml:"agents"`
	Policy   PolicyConfig   `yaml:"policy"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// DatabaseConfig holds SQLite settings for the audit trail.
type DatabaseConfig struct {
	// Path is the SQLite database file path. ":memory:" keeps the trail in RAM.
	Path string `yaml:"path"`
}

// MCPConfig controls the MCP stdio adapter.
type MCPConfig struct {
	// Enabled starts the MCP stdio server alongside the HTTP server.
	Enabled bool `yaml:"enabled"`
}

// AgentConfig declares a known agent identity and its credentials.
type AgentConfig struct {
	// ID is the stable agent identifier carried through audit records.
	ID string `yaml:"id"`

	// Model names the model driving the agent, if any.
	Model string `yaml:"model"`

	// APIKeyHash is the bcrypt hash of the agent's API key.
	APIKeyHash string `yaml:"api_key_hash"`

	// Grants is a comma-separated list of permission grants
	// (e.g., "tools:echo,tools:hash" or "tools:*").
	Grants string `yaml:"grants"`
}

// PolicyConfig holds static policy inputs evaluated before every execution.
type PolicyConfig struct {
	// DisabledTools lists tool names denied for every agent.
	DisabledTools []string `yaml:"disabled_tools"`
}

// Default returns a Config with all defaults applied and no agents configured.
func Default() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr: ":8080",
			LogLevel:   LogInfo,
		},
		Database: DatabaseConfig{
			Path: "toolgate.db",
		},
	}
}

// Load reads the YAML configuration file at path and returns a validated Config
// with env var overrides applied. An empty path yields the defaults (plus env
// overrides), so the binary runs without a config file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()

		cfg, err = LoadFromReader(f)
		if err != nil {
			return Config{}, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := Validate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of the defaults.
// Useful in tests where configs are constructed from string literals.
// Unknown YAML keys are rejected.
func LoadFromReader(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode yaml: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides file values with TOOLGATE_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv(envKeyListenAddr); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv(envKeyDBPath); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv(envKeyLogLevel); v != "" {
		cfg.Server.LogLevel = LogLevel(v)
	}
	if v := os.Getenv(envKeyMCPEnabled); v != "" {
		cfg.MCP.Enabled = v == "true" || v == "1"
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}
	if cfg.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}

	idsSeen := make(map[string]int, len(cfg.Agents))
	for i, a := range cfg.Agents {
		prefix := fmt.Sprintf("agents[%d]", i)
		if a.ID == "" {
			errs = append(errs, fmt.Errorf("%s.id is required", prefix))
		} else {
			if prev, ok := idsSeen[a.ID]; ok {
				errs = append(errs, fmt.Errorf("%s.id %q is a duplicate of agents[%d]", prefix, a.ID, prev))
			}
			idsSeen[a.ID] = i
		}
		if a.APIKeyHash == "" {
			errs = append(errs, fmt.Errorf("%s.api_key_hash is required", prefix))
		} else if !strings.HasPrefix(a.APIKeyHash, "$2") {
			errs = append(errs, fmt.Errorf("%s.api_key_hash does not look like a bcrypt hash", prefix))
		}
		if a.Grants == "" {
			slog.Warn("agent has no grants configured; every tool call will be denied", "agent", a.ID)
		}
	}

	for i, name := range cfg.Policy.DisabledTools {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, fmt.Errorf("policy.disabled_tools[%d] is empty", i))
		}
	}

	return errors.Join(errs...)
}

// AgentByID returns the configured agent with the given ID, or false.
func (c *Config) AgentByID(id string) (AgentConfig, bool) {
	for _, a := range c.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return AgentConfig{}, false
}
