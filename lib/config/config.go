// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the variable [Load] reads the config path
// from.
const EnvironmentVariable = "BUREAU_CONTEXT_CONFIG"

// DefaultPath is where the deployment mounts the config file.
const DefaultPath = "/config/config.yaml"

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the configuration of the context service.
type Config struct {
	// Environment selects which override section applies.
	Environment Environment `yaml:"environment"`

	Server        ServerConfig        `yaml:"server"`
	Log           LogConfig           `yaml:"log"`
	Store         StoreConfig         `yaml:"store"`
	Collaborators CollaboratorsConfig `yaml:"collaborators"`

	// Per-environment overrides, applied after the base config is
	// loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains the sections an environment may override.
// Only non-zero fields replace base values.
type ConfigOverrides struct {
	Server        *ServerConfig        `yaml:"server,omitempty"`
	Log           *LogConfig           `yaml:"log,omitempty"`
	Store         *StoreConfig         `yaml:"store,omitempty"`
	Collaborators *CollaboratorsConfig `yaml:"collaborators,omitempty"`
}

// ServerConfig configures the gRPC listener.
type ServerConfig struct {
	// Address is the TCP listen address. Default: ":9001".
	Address string `yaml:"address"`

	// ShutdownTimeout bounds graceful drain of in-flight calls.
	// Default: 10s.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Default: info.
	Level string `yaml:"level"`

	// Format is "text" or "json". Production always uses json.
	Format string `yaml:"format"`
}

// StoreConfig configures the user store.
type StoreConfig struct {
	// Path is the SQLite database file.
	Path string `yaml:"path"`

	// PoolSize is the number of SQLite connections. Default: 4.
	PoolSize int `yaml:"pool_size"`

	// SealingKeyPath is a file holding the age identity that seals
	// environment variable values at rest.
	SealingKeyPath string `yaml:"sealing_key_path"`
}

// CollaboratorsConfig locates the provisioning collaborators.
type CollaboratorsConfig struct {
	// Unix socket paths, one per collaborator.
	ContextResolver  string `yaml:"context_resolver"`
	WorkspaceFactory string `yaml:"workspace_factory"`
	InstanceStarter  string `yaml:"instance_starter"`

	// TokenPath is a file holding the service token presented to
	// collaborators as the "token" field of every request. This service
	// only passes it through; each collaborator verifies it
	// (bureau-provision-mock does so with --token-path). Empty sends
	// unauthenticated requests.
	TokenPath string `yaml:"token_path"`

	// CallTimeout bounds each collaborator call. Default: 30s.
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// Default returns the base configuration that the file is merged into.
func Default() *Config {
	return &Config{
		Environment: Development,
		Server: ServerConfig{
			Address:         ":9001",
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Store: StoreConfig{
			Path:           "/var/lib/bureau/context/users.db",
			PoolSize:       4,
			SealingKeyPath: "/run/secrets/bureau-context/sealing-key",
		},
		Collaborators: CollaboratorsConfig{
			ContextResolver:  "/run/bureau/context-resolver.sock",
			WorkspaceFactory: "/run/bureau/workspace-factory.sock",
			InstanceStarter:  "/run/bureau/instance-starter.sock",
			CallTimeout:      30 * time.Second,
		},
	}
}

// Load loads the file named by BUREAU_CONTEXT_CONFIG, or DefaultPath
// when the variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		path = DefaultPath
	}
	return LoadFile(path)
}

// LoadFile loads, overrides, expands, and validates the file at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse is LoadFile without the file read.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}

	if overrides != nil {
		if overrides.Server != nil {
			setString(&c.Server.Address, overrides.Server.Address)
			setDuration(&c.Server.ShutdownTimeout, overrides.Server.ShutdownTimeout)
		}
		if overrides.Log != nil {
			setString(&c.Log.Level, overrides.Log.Level)
			setString(&c.Log.Format, overrides.Log.Format)
		}
		if overrides.Store != nil {
			setString(&c.Store.Path, overrides.Store.Path)
			setString(&c.Store.SealingKeyPath, overrides.Store.SealingKeyPath)
			if overrides.Store.PoolSize > 0 {
				c.Store.PoolSize = overrides.Store.PoolSize
			}
		}
		if overrides.Collaborators != nil {
			setString(&c.Collaborators.ContextResolver, overrides.Collaborators.ContextResolver)
			setString(&c.Collaborators.WorkspaceFactory, overrides.Collaborators.WorkspaceFactory)
			setString(&c.Collaborators.InstanceStarter, overrides.Collaborators.InstanceStarter)
			setString(&c.Collaborators.TokenPath, overrides.Collaborators.TokenPath)
			setDuration(&c.Collaborators.CallTimeout, overrides.Collaborators.CallTimeout)
		}
	}

	// Production logs are machine-read.
	if c.Environment == Production {
		c.Log.Format = "json"
	}
}

func setString(target *string, value string) {
	if value != "" {
		*target = value
	}
}

func setDuration(target *time.Duration, value time.Duration) {
	if value != 0 {
		*target = value
	}
}

func (c *Config) expandVariables() {
	for _, field := range []*string{
		&c.Store.Path,
		&c.Store.SealingKeyPath,
		&c.Collaborators.ContextResolver,
		&c.Collaborators.WorkspaceFactory,
		&c.Collaborators.InstanceStarter,
		&c.Collaborators.TokenPath,
	} {
		*field = expandVars(*field)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} from the process
// environment. An unset or empty variable without a default expands to
// the empty string.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate checks the configuration for errors, reporting all of them.
func (c *Config) Validate() error {
	var errs []error

	switch c.Environment {
	case Development, Staging, Production:
	default:
		errs = append(errs, fmt.Errorf("invalid environment: %q", c.Environment))
	}

	if c.Server.Address == "" {
		errs = append(errs, errors.New("server.address is required"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	if c.Store.Path == "" {
		errs = append(errs, errors.New("store.path is required"))
	}
	if c.Store.SealingKeyPath == "" {
		errs = append(errs, errors.New("store.sealing_key_path is required"))
	}
	if c.Store.PoolSize <= 0 {
		errs = append(errs, errors.New("store.pool_size must be positive"))
	}

	if c.Collaborators.ContextResolver == "" {
		errs = append(errs, errors.New("collaborators.context_resolver is required"))
	}
	if c.Collaborators.WorkspaceFactory == "" {
		errs = append(errs, errors.New("collaborators.workspace_factory is required"))
	}
	if c.Collaborators.InstanceStarter == "" {
		errs = append(errs, errors.New("collaborators.instance_starter is required"))
	}
	if c.Collaborators.CallTimeout <= 0 {
		errs = append(errs, errors.New("collaborators.call_timeout must be positive"))
	}

	return errors.Join(errs...)
}

// NewLogger builds the process logger writing to w.
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	options := &slog.HandlerOptions{Level: level}
	switch l.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, options)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, options)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", l.Format)
	}
}

func parseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("unknown level %q", name)
	}
	return level, nil
}
