package config

import "fmt"

// Validator validates configuration comprehensively with clear error messages.
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll performs comprehensive validation, stopping at the first error.
func (v *Validator) ValidateAll() error {
	if err := v.validateServer(); err != nil {
		return fmt.Errorf("server validation failed: %w", err)
	}
	if err := v.validateDatabase(); err != nil {
		return fmt.Errorf("database validation failed: %w", err)
	}
	if err := v.validateBackup(); err != nil {
		return fmt.Errorf("backup validation failed: %w", err)
	}
	if err := v.validateRateLimits(); err != nil {
		return fmt.Errorf("rate limit validation failed: %w", err)
	}
	if err := v.validateOrchestrator(); err != nil {
		return fmt.Errorf("orchestrator validation failed: %w", err)
	}
	return nil
}

func (v *Validator) validateServer() error {
	s := v.cfg.Server
	if s.Port < 1 || s.Port > 65535 {
		return NewValidationError("server", "port", fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidValue, s.Port))
	}
	return nil
}

func (v *Validator) validateDatabase() error {
	d := v.cfg.Database
	if d.Password == "" {
		return NewValidationError("database", "password", fmt.Errorf("%w", ErrMissingRequiredField))
	}
	if d.MaxIdleConns > d.MaxOpenConns {
		return NewValidationError("database", "max_idle_conns",
			fmt.Errorf("%w: max_idle_conns (%d) cannot exceed max_open_conns (%d)", ErrInvalidValue, d.MaxIdleConns, d.MaxOpenConns))
	}
	if d.MaxOpenConns < 1 {
		return NewValidationError("database", "max_open_conns", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	return nil
}

func (v *Validator) validateBackup() error {
	b := v.cfg.Backup
	if b.Root == "" {
		return NewValidationError("backup", "root", fmt.Errorf("%w", ErrMissingRequiredField))
	}
	if b.Retention <= 0 {
		return NewValidationError("backup", "retention", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if b.CleanupInterval <= 0 {
		return NewValidationError("backup", "cleanup_interval", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	return nil
}

func (v *Validator) validateRateLimits() error {
	for key, bucket := range v.cfg.RateLimits {
		if bucket.Capacity < 1 {
			return NewValidationError("rate_limits", key, fmt.Errorf("%w: capacity must be at least 1, got %d", ErrInvalidValue, bucket.Capacity))
		}
		if bucket.RefillPerSecond <= 0 {
			return NewValidationError("rate_limits", key, fmt.Errorf("%w: refill_per_second must be positive, got %v", ErrInvalidValue, bucket.RefillPerSecond))
		}
		if bucket.MaxWait < 0 {
			return NewValidationError("rate_limits", key, fmt.Errorf("%w: max_wait cannot be negative", ErrInvalidValue))
		}
	}
	return nil
}

func (v *Validator) validateOrchestrator() error {
	o := v.cfg.Orchestrator
	if o.BrowserTimeout <= 0 {
		return NewValidationError("orchestrator", "browser_timeout", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if o.TextLLMTimeout <= 0 {
		return NewValidationError("orchestrator", "text_llm_timeout", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if o.VisionLLMTimeout <= 0 {
		return NewValidationError("orchestrator", "vision_llm_timeout", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if o.MapsTimeout <= 0 {
		return NewValidationError("orchestrator", "maps_timeout", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if o.ProspectBudget <= 0 {
		return NewValidationError("orchestrator", "prospect_budget", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if o.ProspectBudget < o.BrowserTimeout+o.TextLLMTimeout {
		return NewValidationError("orchestrator", "prospect_budget",
			fmt.Errorf("%w: must be at least browser_timeout+text_llm_timeout to let one enrichment pass complete", ErrInvalidValue))
	}
	return nil
}
