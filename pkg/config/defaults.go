package config

import (
	"time"

	"github.com/codeready-toolchain/prospecting-engine/pkg/orchestrator"
)

// DefaultServerPort is used when server.port is omitted from YAML.
const DefaultServerPort = 8080

// DefaultPromptsDir is used when prompts.dir is omitted; LoadBuiltin
// bypasses this entirely, so this only matters for callers that load
// prompts from disk.
const DefaultPromptsDir = "./prompts"

// DefaultBackupRoot, DefaultBackupRetention and DefaultCleanupInterval
// are used when backup.* is omitted from YAML.
const (
	DefaultBackupRoot        = "./data/backups"
	DefaultBackupRetention   = 7 * 24 * time.Hour
	DefaultCleanupInterval   = 1 * time.Hour
)

// defaultRateLimits is the built-in token-bucket configuration applied
// per provider key when rate_limits omits that key entirely. Capacities
// are conservative starting points for a single-process deployment;
// operators raise them once they know their quota.
func defaultRateLimits() map[string]RateLimitYAML {
	return map[string]RateLimitYAML{
		"maps":       {Capacity: 10, RefillPerSecond: 1, MaxWait: "5s"},
		"text-llm":   {Capacity: 5, RefillPerSecond: 0.5, MaxWait: "10s"},
		"vision-llm": {Capacity: 2, RefillPerSecond: 0.2, MaxWait: "15s"},
		"browser":    {Capacity: 3, RefillPerSecond: 0.5, MaxWait: "10s"},
	}
}

// defaultOrchestratorConfig gives the loader something to fall back to
// even without an orchestrator section in YAML. The timeouts and prospect
// budget are orchestrator's own exported defaults; ProgressBuffer (64) is
// set here, as the orchestrator exports no default for it.
func defaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		BrowserTimeout:     orchestrator.DefaultBrowserTimeout,
		TextLLMTimeout:     orchestrator.DefaultTextLLMTimeout,
		VisionLLMTimeout:   orchestrator.DefaultVisionLLMTimeout,
		MapsTimeout:        orchestrator.DefaultMapsTimeout,
		ProspectBudget:     orchestrator.DefaultProspectBudget,
		MaxDiscoveredPages: 0, // orchestrator.Config.applyDefaults fills this in
		ProgressBuffer:     64,
	}
}
