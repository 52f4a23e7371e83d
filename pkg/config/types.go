package config

import (
	"time"

	"github.com/codeready-toolchain/prospecting-engine/pkg/model"
	"github.com/codeready-toolchain/prospecting-engine/pkg/orchestrator"
	"github.com/codeready-toolchain/prospecting-engine/pkg/ratelimit"
	"github.com/codeready-toolchain/prospecting-engine/pkg/repository"
)

// ProspectorYAMLConfig represents the complete prospector.yaml file structure.
type ProspectorYAMLConfig struct {
	Server            *ServerYAMLConfig             `yaml:"server"`
	Database          *DatabaseYAMLConfig           `yaml:"database"`
	Backup            *BackupYAMLConfig             `yaml:"backup"`
	Providers         *ProvidersYAMLConfig          `yaml:"providers"`
	RateLimits        map[string]RateLimitYAML      `yaml:"rate_limits"`
	Prompts           *PromptsYAMLConfig            `yaml:"prompts"`
	Social            *SocialYAMLConfig             `yaml:"social"`
	RelatedIndustries map[string][]string           `yaml:"related_industries"`
	Orchestrator      *OrchestratorYAMLConfig       `yaml:"orchestrator"`
	Defaults          *RunDefaultsYAMLConfig        `yaml:"defaults"`
}

// ServerYAMLConfig holds HTTP trigger surface settings.
type ServerYAMLConfig struct {
	Port           int      `yaml:"port,omitempty"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
}

// DatabaseYAMLConfig mirrors repository.Config, read from YAML with
// ${ENV} expansion rather than raw DB_* environment variables.
type DatabaseYAMLConfig struct {
	Host            string `yaml:"host,omitempty"`
	Port            int    `yaml:"port,omitempty"`
	User            string `yaml:"user,omitempty"`
	Password        string `yaml:"password,omitempty"`
	Database        string `yaml:"database,omitempty"`
	SSLMode         string `yaml:"sslmode,omitempty"`
	MaxOpenConns    int    `yaml:"max_open_conns,omitempty"`
	MaxIdleConns    int    `yaml:"max_idle_conns,omitempty"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime,omitempty"` // parsed to time.Duration
	ConnMaxIdleTime string `yaml:"conn_max_idle_time,omitempty"`
}

// BackupYAMLConfig configures the local backup store and its reaper.
type BackupYAMLConfig struct {
	Root            string `yaml:"root,omitempty"`
	Retention       string `yaml:"retention,omitempty"`        // parsed to time.Duration
	CleanupInterval string `yaml:"cleanup_interval,omitempty"` // parsed to time.Duration
}

// ProvidersYAMLConfig configures the Maps, text LLM, and vision LLM
// provider clients.
type ProvidersYAMLConfig struct {
	Maps      *MapsProviderYAML `yaml:"maps"`
	TextLLM   *LLMProviderYAML  `yaml:"text_llm"`
	VisionLLM *LLMProviderYAML  `yaml:"vision_llm"`
}

// MapsProviderYAML configures the business-discovery provider. APIKeyEnv
// names the environment variable holding the key rather than embedding
// the key directly in YAML.
type MapsProviderYAML struct {
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
	BaseURL   string `yaml:"base_url,omitempty"`
}

// LLMProviderYAML configures a gRPC-backed LLM sidecar connection.
type LLMProviderYAML struct {
	Addr  string `yaml:"addr,omitempty"`
	Model string `yaml:"model,omitempty"`
}

// RateLimitYAML is one provider key's token-bucket configuration, with
// MaxWait expressed as a duration string.
type RateLimitYAML struct {
	Capacity        int     `yaml:"capacity,omitempty"`
	RefillPerSecond float64 `yaml:"refill_per_second,omitempty"`
	MaxWait         string  `yaml:"max_wait,omitempty"`
}

// PromptsYAMLConfig points at the on-disk prompt template directory.
type PromptsYAMLConfig struct {
	Dir string `yaml:"dir,omitempty"`
}

// SocialYAMLConfig overrides the default platform set Social Discovery
// searches against.
type SocialYAMLConfig struct {
	Platforms []string `yaml:"platforms,omitempty"`
}

// OrchestratorYAMLConfig overrides the orchestrator's per-call timeouts
// and tunables (§5); omitted fields keep orchestrator.Config's built-in
// defaults.
type OrchestratorYAMLConfig struct {
	BrowserTimeout     string `yaml:"browser_timeout,omitempty"`
	TextLLMTimeout     string `yaml:"text_llm_timeout,omitempty"`
	VisionLLMTimeout   string `yaml:"vision_llm_timeout,omitempty"`
	MapsTimeout        string `yaml:"maps_timeout,omitempty"`
	ProspectBudget     string `yaml:"prospect_budget,omitempty"`
	MaxDiscoveredPages int    `yaml:"max_discovered_pages,omitempty"`
	ProgressBuffer     int    `yaml:"progress_buffer,omitempty"`
}

// RunDefaultsYAMLConfig overrides model.DefaultRunOptions() for runs that
// omit individual option fields. Pointers distinguish "unset" (keep
// built-in default) from an explicit false/zero.
type RunDefaultsYAMLConfig struct {
	ScrapeWebsites    *bool `yaml:"scrape_websites,omitempty"`
	UseVisionFallback *bool `yaml:"use_vision_fallback,omitempty"`
	ScrapeSocial      *bool `yaml:"scrape_social,omitempty"`
	CheckRelevance    *bool `yaml:"check_relevance,omitempty"`
	FilterIrrelevant  *bool `yaml:"filter_irrelevant,omitempty"`
	MaxConcurrent     int   `yaml:"max_concurrent,omitempty"`
	RequestDelayMs    int   `yaml:"request_delay_ms,omitempty"`
}

// Config is the fully resolved, ready-to-use application configuration
// returned by Initialize. Every duration and API key has already been
// parsed/expanded; callers construct provider clients, the repository,
// the backup store, and the orchestrator directly from its fields.
type Config struct {
	configDir string

	Server            ServerConfig
	Database          repository.Config
	Backup            BackupConfig
	Providers         ProvidersConfig
	RateLimits        map[string]ratelimit.BucketConfig
	PromptsDir        string
	Platforms         []string
	RelatedIndustries map[string][]string
	Orchestrator      OrchestratorConfig
	RunDefaults       RunDefaultsConfig
}

// ConfigDir returns the directory Config was loaded from.
func (c *Config) ConfigDir() string { return c.configDir }

// ServerConfig holds resolved HTTP trigger surface settings.
type ServerConfig struct {
	Port           int
	AllowedOrigins []string
}

// BackupConfig holds resolved local backup store settings.
type BackupConfig struct {
	Root            string
	Retention       time.Duration
	CleanupInterval time.Duration
}

// ProvidersConfig holds resolved provider client settings.
type ProvidersConfig struct {
	Maps      MapsProviderConfig
	TextLLM   LLMProviderConfig
	VisionLLM LLMProviderConfig
}

// MapsProviderConfig holds the resolved Maps provider key (read from the
// environment variable APIKeyEnv names) and base URL.
type MapsProviderConfig struct {
	APIKey  string
	BaseURL string
}

// LLMProviderConfig holds one gRPC LLM sidecar's resolved address/model.
type LLMProviderConfig struct {
	Addr  string
	Model string
}

// OrchestratorConfig mirrors orchestrator.Config's tunables so the
// loader can build one without importing provider/repo wiring concerns
// into this package.
type OrchestratorConfig struct {
	BrowserTimeout     time.Duration
	TextLLMTimeout     time.Duration
	VisionLLMTimeout   time.Duration
	MapsTimeout        time.Duration
	ProspectBudget     time.Duration
	MaxDiscoveredPages int
	ProgressBuffer     int
}

// ToOrchestratorConfig copies the resolved tunables into an
// orchestrator.Config's timeout/tunable fields, leaving every
// provider/repo/prompt field for the caller to set.
func (o OrchestratorConfig) ToOrchestratorConfig() orchestrator.Config {
	return orchestrator.Config{
		BrowserTimeout:     o.BrowserTimeout,
		TextLLMTimeout:     o.TextLLMTimeout,
		VisionLLMTimeout:   o.VisionLLMTimeout,
		MapsTimeout:        o.MapsTimeout,
		ProspectBudget:     o.ProspectBudget,
		MaxDiscoveredPages: o.MaxDiscoveredPages,
		ProgressBuffer:     o.ProgressBuffer,
	}
}

// RunDefaultsConfig overrides model.DefaultRunOptions() fields that were
// left unset on a run-trigger request.
type RunDefaultsConfig struct {
	ScrapeWebsites    *bool
	UseVisionFallback *bool
	ScrapeSocial      *bool
	CheckRelevance    *bool
	FilterIrrelevant  *bool
	MaxConcurrent     int
	RequestDelayMs    int
}

// EffectiveRunOptions overlays the operator-configured process-wide
// defaults on top of model.DefaultRunOptions(), producing the baseline
// every run-trigger request's own options are merged onto.
func (r RunDefaultsConfig) EffectiveRunOptions() model.RunOptions {
	opts := model.DefaultRunOptions()
	if r.ScrapeWebsites != nil {
		opts.ScrapeWebsites = *r.ScrapeWebsites
	}
	if r.UseVisionFallback != nil {
		opts.UseVisionFallback = *r.UseVisionFallback
	}
	if r.ScrapeSocial != nil {
		opts.ScrapeSocial = *r.ScrapeSocial
	}
	if r.CheckRelevance != nil {
		opts.CheckRelevance = *r.CheckRelevance
	}
	if r.FilterIrrelevant != nil {
		opts.FilterIrrelevant = *r.FilterIrrelevant
	}
	if r.MaxConcurrent != 0 {
		opts.MaxConcurrent = r.MaxConcurrent
	}
	if r.RequestDelayMs != 0 {
		opts.RequestDelayMs = r.RequestDelayMs
	}
	return opts
}

// Stats summarizes a loaded configuration for a single startup log line.
type Stats struct {
	RateLimitKeys      int
	RelatedIndustries  int
	Platforms          int
}

// Stats computes the summary used by Initialize's startup log.
func (c *Config) Stats() Stats {
	return Stats{
		RateLimitKeys:     len(c.RateLimits),
		RelatedIndustries: len(c.RelatedIndustries),
		Platforms:         len(c.Platforms),
	}
}
