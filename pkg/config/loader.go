package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/codeready-toolchain/prospecting-engine/pkg/ratelimit"
	"github.com/codeready-toolchain/prospecting-engine/pkg/repository"
	"github.com/codeready-toolchain/prospecting-engine/pkg/stage"
)

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load prospector.yaml from configDir
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Merge built-in + user-defined rate limits and related industries
//  5. Resolve durations, provider API keys, and defaults
//  6. Validate all configuration
//  7. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("configuration initialized successfully",
		"rate_limit_keys", stats.RateLimitKeys,
		"related_industries", stats.RelatedIndustries,
		"platforms", stats.Platforms)

	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	raw, err := loader.loadProspectorYAML()
	if err != nil {
		return nil, NewLoadError("prospector.yaml", err)
	}

	rateLimits := mergeRateLimits(defaultRateLimits(), raw.RateLimits)
	resolvedRateLimits, err := resolveRateLimits(rateLimits)
	if err != nil {
		return nil, fmt.Errorf("resolving rate_limits: %w", err)
	}

	relatedIndustries := mergeRelatedIndustries(nil, raw.RelatedIndustries)

	server := resolveServerConfig(raw.Server)
	database, err := resolveDatabaseConfig(raw.Database)
	if err != nil {
		return nil, fmt.Errorf("resolving database config: %w", err)
	}
	backup, err := resolveBackupConfig(raw.Backup)
	if err != nil {
		return nil, fmt.Errorf("resolving backup config: %w", err)
	}
	providers := resolveProvidersConfig(raw.Providers)
	promptsDir := resolvePromptsDir(raw.Prompts)
	platforms := resolvePlatforms(raw.Social)
	orchestratorCfg, err := resolveOrchestratorConfig(raw.Orchestrator)
	if err != nil {
		return nil, fmt.Errorf("resolving orchestrator config: %w", err)
	}
	runDefaults := resolveRunDefaults(raw.Defaults)

	return &Config{
		configDir:         configDir,
		Server:            server,
		Database:          database,
		Backup:            backup,
		Providers:         providers,
		RateLimits:        resolvedRateLimits,
		PromptsDir:        promptsDir,
		Platforms:         platforms,
		RelatedIndustries: relatedIndustries,
		Orchestrator:      orchestratorCfg,
		RunDefaults:       runDefaults,
	}, nil
}

func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	// Note: ExpandEnv substitutes $VAR/${VAR} references from the
	// environment and cannot fail; unset variables expand to the empty
	// string before the YAML parser sees the content.
	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadProspectorYAML() (*ProspectorYAMLConfig, error) {
	var raw ProspectorYAMLConfig
	if err := l.loadYAML("prospector.yaml", &raw); err != nil {
		return nil, err
	}
	return &raw, nil
}

func resolveServerConfig(sys *ServerYAMLConfig) ServerConfig {
	cfg := ServerConfig{Port: DefaultServerPort}
	if sys == nil {
		return cfg
	}
	if sys.Port != 0 {
		cfg.Port = sys.Port
	}
	cfg.AllowedOrigins = sys.AllowedOrigins
	return cfg
}

// resolveDatabaseConfig starts from production-ready defaults, parses the
// YAML duration fields, then merges the result onto the defaults with
// mergo so that any zero-valued field the operator left unset keeps its
// default rather than zeroing it out.
func resolveDatabaseConfig(raw *DatabaseYAMLConfig) (repository.Config, error) {
	cfg := repository.Config{
		Host:            "localhost",
		Port:            5432,
		User:            "prospector",
		Database:        "prospector",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 1 * time.Hour,
		ConnMaxIdleTime: 15 * time.Minute,
	}
	if raw == nil {
		return cfg, nil
	}

	user := repository.Config{
		Host:     raw.Host,
		Port:     raw.Port,
		User:     raw.User,
		Password: raw.Password,
		Database: raw.Database,
		SSLMode:  raw.SSLMode,

		MaxOpenConns: raw.MaxOpenConns,
		MaxIdleConns: raw.MaxIdleConns,
	}
	if raw.ConnMaxLifetime != "" {
		d, err := time.ParseDuration(raw.ConnMaxLifetime)
		if err != nil {
			return repository.Config{}, fmt.Errorf("invalid conn_max_lifetime %q: %w", raw.ConnMaxLifetime, err)
		}
		user.ConnMaxLifetime = d
	}
	if raw.ConnMaxIdleTime != "" {
		d, err := time.ParseDuration(raw.ConnMaxIdleTime)
		if err != nil {
			return repository.Config{}, fmt.Errorf("invalid conn_max_idle_time %q: %w", raw.ConnMaxIdleTime, err)
		}
		user.ConnMaxIdleTime = d
	}

	if err := mergo.Merge(&cfg, user, mergo.WithOverride); err != nil {
		return repository.Config{}, fmt.Errorf("merging database config: %w", err)
	}
	return cfg, nil
}

func resolveBackupConfig(raw *BackupYAMLConfig) (BackupConfig, error) {
	cfg := BackupConfig{
		Root:            DefaultBackupRoot,
		Retention:       DefaultBackupRetention,
		CleanupInterval: DefaultCleanupInterval,
	}
	if raw == nil {
		return cfg, nil
	}

	user := BackupConfig{Root: raw.Root}
	if raw.Retention != "" {
		d, err := time.ParseDuration(raw.Retention)
		if err != nil {
			return BackupConfig{}, fmt.Errorf("invalid retention %q: %w", raw.Retention, err)
		}
		user.Retention = d
	}
	if raw.CleanupInterval != "" {
		d, err := time.ParseDuration(raw.CleanupInterval)
		if err != nil {
			return BackupConfig{}, fmt.Errorf("invalid cleanup_interval %q: %w", raw.CleanupInterval, err)
		}
		user.CleanupInterval = d
	}

	if err := mergo.Merge(&cfg, user, mergo.WithOverride); err != nil {
		return BackupConfig{}, fmt.Errorf("merging backup config: %w", err)
	}
	return cfg, nil
}

func resolveProvidersConfig(raw *ProvidersYAMLConfig) ProvidersConfig {
	var cfg ProvidersConfig
	if raw == nil {
		return cfg
	}
	if raw.Maps != nil {
		cfg.Maps = MapsProviderConfig{
			APIKey:  os.Getenv(raw.Maps.APIKeyEnv),
			BaseURL: raw.Maps.BaseURL,
		}
	}
	if raw.TextLLM != nil {
		cfg.TextLLM = LLMProviderConfig{Addr: raw.TextLLM.Addr, Model: raw.TextLLM.Model}
	}
	if raw.VisionLLM != nil {
		cfg.VisionLLM = LLMProviderConfig{Addr: raw.VisionLLM.Addr, Model: raw.VisionLLM.Model}
	}
	return cfg
}

func resolvePromptsDir(raw *PromptsYAMLConfig) string {
	if raw != nil && raw.Dir != "" {
		return raw.Dir
	}
	return DefaultPromptsDir
}

func resolvePlatforms(raw *SocialYAMLConfig) []string {
	if raw == nil || len(raw.Platforms) == 0 {
		out := make([]string, len(stage.DefaultPlatforms))
		for i, p := range stage.DefaultPlatforms {
			out[i] = string(p)
		}
		return out
	}
	return raw.Platforms
}

func resolveOrchestratorConfig(raw *OrchestratorYAMLConfig) (OrchestratorConfig, error) {
	cfg := defaultOrchestratorConfig()
	if raw == nil {
		return cfg, nil
	}

	parse := func(field, value string, dst *time.Duration) error {
		if value == "" {
			return nil
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", field, value, err)
		}
		*dst = d
		return nil
	}
	if err := parse("browser_timeout", raw.BrowserTimeout, &cfg.BrowserTimeout); err != nil {
		return OrchestratorConfig{}, err
	}
	if err := parse("text_llm_timeout", raw.TextLLMTimeout, &cfg.TextLLMTimeout); err != nil {
		return OrchestratorConfig{}, err
	}
	if err := parse("vision_llm_timeout", raw.VisionLLMTimeout, &cfg.VisionLLMTimeout); err != nil {
		return OrchestratorConfig{}, err
	}
	if err := parse("maps_timeout", raw.MapsTimeout, &cfg.MapsTimeout); err != nil {
		return OrchestratorConfig{}, err
	}
	if err := parse("prospect_budget", raw.ProspectBudget, &cfg.ProspectBudget); err != nil {
		return OrchestratorConfig{}, err
	}
	if raw.MaxDiscoveredPages != 0 {
		cfg.MaxDiscoveredPages = raw.MaxDiscoveredPages
	}
	if raw.ProgressBuffer != 0 {
		cfg.ProgressBuffer = raw.ProgressBuffer
	}
	return cfg, nil
}

func resolveRunDefaults(raw *RunDefaultsYAMLConfig) RunDefaultsConfig {
	if raw == nil {
		return RunDefaultsConfig{}
	}
	return RunDefaultsConfig{
		ScrapeWebsites:    raw.ScrapeWebsites,
		UseVisionFallback: raw.UseVisionFallback,
		ScrapeSocial:      raw.ScrapeSocial,
		CheckRelevance:    raw.CheckRelevance,
		FilterIrrelevant:  raw.FilterIrrelevant,
		MaxConcurrent:     raw.MaxConcurrent,
		RequestDelayMs:    raw.RequestDelayMs,
	}
}

func resolveRateLimits(raw map[string]RateLimitYAML) (map[string]ratelimit.BucketConfig, error) {
	out := make(map[string]ratelimit.BucketConfig, len(raw))
	for key, cfg := range raw {
		bucket := ratelimit.BucketConfig{Capacity: cfg.Capacity, RefillPerSecond: cfg.RefillPerSecond}
		if cfg.MaxWait != "" {
			d, err := time.ParseDuration(cfg.MaxWait)
			if err != nil {
				return nil, fmt.Errorf("%s: invalid max_wait %q: %w", key, cfg.MaxWait, err)
			}
			bucket.MaxWait = d
		}
		out[key] = bucket
	}
	return out, nil
}
