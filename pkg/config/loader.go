package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/kbforge/curator/pkg/breaker"
	"github.com/kbforge/curator/pkg/orchestrator"
	"github.com/kbforge/curator/pkg/scoring"
)

// configFileName is the single YAML file curator reads.
const configFileName = "curator.yaml"

// CuratorYAMLConfig represents the complete curator.yaml file
// structure. Every section is optional; unset sections and fields fall
// back to built-in defaults.
type CuratorYAMLConfig struct {
	Server       *ServerConfig                  `yaml:"server"`
	Storage      *StorageConfig                 `yaml:"storage"`
	Discovery    *DiscoveryConfig               `yaml:"discovery"`
	AI           *AIConfig                      `yaml:"ai"`
	Breakers     map[string]breaker.Config      `yaml:"breakers"`
	Freshness    *scoring.FreshnessRequirements `yaml:"freshness"`
	Orchestrator *orchestrator.Config           `yaml:"orchestrator"`
	Queue        *QueueConfig                   `yaml:"queue"`
	Retention    *RetentionConfig               `yaml:"retention"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load curator.yaml from configDir (missing file = all defaults)
//  2. Expand environment variables
//  3. Merge user values over built-in defaults
//  4. Validate the resolved configuration
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("Configuration initialized successfully",
		"storage_backend", cfg.Storage.Backend,
		"ai_enabled", cfg.AI.On(),
		"queue_workers", cfg.Queue.WorkerCount)

	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	var yamlCfg CuratorYAMLConfig
	if err := loadYAML(filepath.Join(configDir, configFileName), &yamlCfg); err != nil {
		return nil, NewLoadError(configFileName, err)
	}

	server := DefaultServerConfig()
	if yamlCfg.Server != nil {
		if err := mergo.Merge(server, yamlCfg.Server, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge server config: %w", err)
		}
	}

	storage := DefaultStorageConfig()
	if yamlCfg.Storage != nil {
		if err := mergo.Merge(storage, yamlCfg.Storage, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge storage config: %w", err)
		}
	}

	disc := DefaultDiscoveryConfig()
	if yamlCfg.Discovery != nil {
		if err := mergo.Merge(disc, yamlCfg.Discovery, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge discovery config: %w", err)
		}
	}

	ai := DefaultAIConfig()
	if yamlCfg.AI != nil {
		if err := mergo.Merge(ai, yamlCfg.AI, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge ai config: %w", err)
		}
	}

	freshness := scoring.DefaultFreshnessRequirements()
	if yamlCfg.Freshness != nil {
		if err := mergo.Merge(&freshness, yamlCfg.Freshness, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge freshness config: %w", err)
		}
	}

	orch := orchestrator.DefaultConfig()
	if yamlCfg.Orchestrator != nil {
		if err := mergo.Merge(&orch, yamlCfg.Orchestrator, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge orchestrator config: %w", err)
		}
	}

	queue := DefaultQueueConfig()
	if yamlCfg.Queue != nil {
		if err := mergo.Merge(queue, yamlCfg.Queue, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge queue config: %w", err)
		}
	}

	retention := DefaultRetentionConfig()
	if yamlCfg.Retention != nil {
		if err := mergo.Merge(retention, yamlCfg.Retention, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge retention config: %w", err)
		}
	}

	// Breaker table entries are complete per-service overrides; the
	// registry applies breaker.DefaultConfig() to services without an
	// entry, so only named entries are filled in here.
	breakers := make(map[string]breaker.Config, len(yamlCfg.Breakers))
	for name, userCfg := range yamlCfg.Breakers {
		resolved := breaker.DefaultConfig()
		if err := mergo.Merge(&resolved, userCfg, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge breaker config %q: %w", name, err)
		}
		breakers[name] = resolved
	}

	return &Config{
		configDir:    configDir,
		Server:       server,
		Storage:      storage,
		Discovery:    disc,
		AI:           ai,
		Breakers:     breakers,
		Freshness:    freshness,
		Orchestrator: orch,
		Queue:        queue,
		Retention:    retention,
	}, nil
}

// loadYAML reads, env-expands, and parses one YAML file. A missing
// file is not an error: the caller proceeds on built-in defaults.
func loadYAML(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("Configuration file not found, using defaults", "path", path)
			return nil
		}
		return err
	}

	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}
