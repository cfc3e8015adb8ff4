package config

import (
	"fmt"
)

// ConfigValidator validates resolved configuration with clear error
// messages.
type ConfigValidator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *ConfigValidator {
	return &ConfigValidator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast, stops at
// the first error).
func (v *ConfigValidator) ValidateAll() error {
	if err := v.validateServer(); err != nil {
		return fmt.Errorf("server validation failed: %w", err)
	}
	if err := v.validateStorage(); err != nil {
		return fmt.Errorf("storage validation failed: %w", err)
	}
	if err := v.validateDiscovery(); err != nil {
		return fmt.Errorf("discovery validation failed: %w", err)
	}
	if err := v.validateAI(); err != nil {
		return fmt.Errorf("ai validation failed: %w", err)
	}
	if err := v.validateBreakers(); err != nil {
		return fmt.Errorf("breaker validation failed: %w", err)
	}
	if err := v.validateFreshness(); err != nil {
		return fmt.Errorf("freshness validation failed: %w", err)
	}
	if err := v.validateQueue(); err != nil {
		return fmt.Errorf("queue validation failed: %w", err)
	}
	if err := v.validateRetention(); err != nil {
		return fmt.Errorf("retention validation failed: %w", err)
	}
	return nil
}

func (v *ConfigValidator) validateServer() error {
	if v.cfg.Server.Port < 1 || v.cfg.Server.Port > 65535 {
		return NewValidationError("server", "port", fmt.Errorf("%w: %d", ErrInvalidValue, v.cfg.Server.Port))
	}
	return nil
}

func (v *ConfigValidator) validateStorage() error {
	switch v.cfg.Storage.Backend {
	case BackendMemory, BackendPostgres:
		return nil
	}
	return NewValidationError("storage", "backend",
		fmt.Errorf("%w: %q (expected %q or %q)", ErrInvalidValue, v.cfg.Storage.Backend, BackendMemory, BackendPostgres))
}

func (v *ConfigValidator) validateDiscovery() error {
	d := v.cfg.Discovery
	if d.PerClientLimit < 1 {
		return NewValidationError("discovery", "per_client_limit", fmt.Errorf("must be at least 1"))
	}
	if d.Concurrency < 1 {
		return NewValidationError("discovery", "concurrency", fmt.Errorf("must be at least 1"))
	}
	if d.PerClientTimeout <= 0 {
		return NewValidationError("discovery", "per_client_timeout", fmt.Errorf("must be positive"))
	}
	if !d.WebSearch.On() && !d.Academic.On() && !d.News.On() {
		return NewValidationError("discovery", "", fmt.Errorf("at least one client must be enabled"))
	}
	return nil
}

func (v *ConfigValidator) validateAI() error {
	if v.cfg.AI.On() && v.cfg.AI.GRPCAddr == "" {
		return NewValidationError("ai", "grpc_addr", fmt.Errorf("required when ai is enabled"))
	}
	return nil
}

func (v *ConfigValidator) validateBreakers() error {
	for name, b := range v.cfg.Breakers {
		if b.FailureThreshold < 1 {
			return NewValidationError("breakers", name, fmt.Errorf("failure_threshold must be at least 1"))
		}
		if b.SuccessThreshold < 1 {
			return NewValidationError("breakers", name, fmt.Errorf("success_threshold must be at least 1"))
		}
		if b.OpenTimeout <= 0 {
			return NewValidationError("breakers", name, fmt.Errorf("open_timeout must be positive"))
		}
		if b.HalfOpenMaxRequests < 1 {
			return NewValidationError("breakers", name, fmt.Errorf("half_open_max_requests must be at least 1"))
		}
	}
	return nil
}

func (v *ConfigValidator) validateFreshness() error {
	f := v.cfg.Freshness
	for field, days := range map[string]int{
		"news_days":    f.NewsDays,
		"tech_days":    f.TechDays,
		"science_days": f.ScienceDays,
		"default_days": f.DefaultDays,
	} {
		if days < 1 {
			return NewValidationError("freshness", field, fmt.Errorf("must be at least 1"))
		}
	}
	return nil
}

func (v *ConfigValidator) validateQueue() error {
	q := v.cfg.Queue
	if q.WorkerCount < 1 {
		return NewValidationError("queue", "worker_count", fmt.Errorf("must be at least 1"))
	}
	if q.QueueSize < 1 {
		return NewValidationError("queue", "queue_size", fmt.Errorf("must be at least 1"))
	}
	return nil
}

func (v *ConfigValidator) validateRetention() error {
	r := v.cfg.Retention
	if r.RunRetentionDays < 1 {
		return NewValidationError("retention", "run_retention_days", fmt.Errorf("must be at least 1"))
	}
	if r.CleanupInterval <= 0 {
		return NewValidationError("retention", "cleanup_interval", fmt.Errorf("must be positive"))
	}
	if r.BatchSize < 1 {
		return NewValidationError("retention", "batch_size", fmt.Errorf("must be at least 1"))
	}
	return nil
}
