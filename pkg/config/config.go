// Package config loads and validates the curator.yaml configuration.
// YAML values are merged over built-in defaults; environment variables
// are expanded with {{.VAR}} template syntax before parsing.
package config

import (
	"time"

	"github.com/kbforge/curator/pkg/breaker"
	"github.com/kbforge/curator/pkg/discovery"
	"github.com/kbforge/curator/pkg/orchestrator"
	"github.com/kbforge/curator/pkg/scoring"
)

// Config is the umbrella configuration object returned by Initialize
// and used throughout the application.
type Config struct {
	configDir string

	Server       *ServerConfig
	Storage      *StorageConfig
	Discovery    *DiscoveryConfig
	AI           *AIConfig
	Breakers     map[string]breaker.Config
	Freshness    scoring.FreshnessRequirements
	Orchestrator orchestrator.Config
	Queue        *QueueConfig
	Retention    *RetentionConfig
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DefaultServerConfig returns the built-in server defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host: "0.0.0.0",
		Port: 8080,
	}
}

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// StorageConfig selects the persistence backend. Postgres connection
// parameters come from the DB_* environment variables, not YAML.
type StorageConfig struct {
	Backend string `yaml:"backend"`
}

// DefaultStorageConfig returns the built-in storage defaults.
func DefaultStorageConfig() *StorageConfig {
	return &StorageConfig{Backend: BackendMemory}
}

// ExternalClientConfig configures one discovery client. APIKeyEnv
// names the environment variable holding the credential; the value is
// read at client construction, never stored in YAML.
type ExternalClientConfig struct {
	Enabled   *bool  `yaml:"enabled,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
	Mailto    string `yaml:"mailto,omitempty"`
}

// On reports whether the client is enabled (default true).
func (c ExternalClientConfig) On() bool {
	return c.Enabled == nil || *c.Enabled
}

// DiscoveryConfig holds discovery fan-out and client settings.
type DiscoveryConfig struct {
	PerClientLimit   int           `yaml:"per_client_limit"`
	PerClientTimeout time.Duration `yaml:"per_client_timeout"`
	Concurrency      int           `yaml:"concurrency"`

	WebSearch ExternalClientConfig `yaml:"web_search"`
	Academic  ExternalClientConfig `yaml:"academic"`
	News      ExternalClientConfig `yaml:"news"`
}

// DefaultDiscoveryConfig returns the built-in discovery defaults.
func DefaultDiscoveryConfig() *DiscoveryConfig {
	opts := discovery.DefaultOptions()
	return &DiscoveryConfig{
		PerClientLimit:   opts.PerClientLimit,
		PerClientTimeout: opts.PerClientTimeout,
		Concurrency:      opts.Concurrency,
		WebSearch:        ExternalClientConfig{APIKeyEnv: "WEB_SEARCH_API_KEY"},
		Academic:         ExternalClientConfig{},
		News:             ExternalClientConfig{APIKeyEnv: "NEWS_API_KEY"},
	}
}

// Options converts the fan-out settings to discovery.Options.
func (c *DiscoveryConfig) Options() discovery.Options {
	return discovery.Options{
		PerClientLimit:   c.PerClientLimit,
		PerClientTimeout: c.PerClientTimeout,
		Concurrency:      c.Concurrency,
	}
}

// AIConfig holds the AI scoring service settings. When disabled (or
// the service is unreachable) the scorer falls back to deterministic
// textual assessment.
type AIConfig struct {
	Enabled  *bool  `yaml:"enabled,omitempty"`
	GRPCAddr string `yaml:"grpc_addr"`
}

// On reports whether the AI path is enabled (default false).
func (c *AIConfig) On() bool {
	return c.Enabled != nil && *c.Enabled
}

// DefaultAIConfig returns the built-in AI defaults.
func DefaultAIConfig() *AIConfig {
	return &AIConfig{GRPCAddr: "localhost:50051"}
}

// QueueConfig contains worker pool configuration for run execution.
type QueueConfig struct {
	// WorkerCount is the number of worker goroutines executing runs.
	WorkerCount int `yaml:"worker_count"`

	// QueueSize is the submission channel capacity. Submissions beyond
	// it are rejected rather than blocked.
	QueueSize int `yaml:"queue_size"`

	// GracefulShutdownTimeout is the max time to wait for active runs
	// to finish during shutdown.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`
}

// DefaultQueueConfig returns the built-in queue defaults.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		WorkerCount:             3,
		QueueSize:               64,
		GracefulShutdownTimeout: 30 * time.Second,
	}
}

// RetentionConfig controls research run retention and cleanup.
type RetentionConfig struct {
	// RunRetentionDays is how many days to keep terminal runs before
	// deleting them together with everything they own.
	RunRetentionDays int `yaml:"run_retention_days"`

	// CleanupInterval is how often the cleanup loop runs.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	// BatchSize caps runs deleted per cleanup pass.
	BatchSize int `yaml:"batch_size"`
}

// DefaultRetentionConfig returns the built-in retention defaults.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		RunRetentionDays: 180,
		CleanupInterval:  12 * time.Hour,
		BatchSize:        100,
	}
}
