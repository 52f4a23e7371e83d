// Command prospector runs the prospecting pipeline's HTTP trigger
// surface: it loads configuration, wires every provider client and
// supporting service, and serves the run-trigger/query API.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/codeready-toolchain/prospecting-engine/pkg/api"
	"github.com/codeready-toolchain/prospecting-engine/pkg/backup"
	"github.com/codeready-toolchain/prospecting-engine/pkg/config"
	"github.com/codeready-toolchain/prospecting-engine/pkg/cost"
	"github.com/codeready-toolchain/prospecting-engine/pkg/dedup"
	"github.com/codeready-toolchain/prospecting-engine/pkg/orchestrator"
	"github.com/codeready-toolchain/prospecting-engine/pkg/prompt"
	"github.com/codeready-toolchain/prospecting-engine/pkg/provider"
	"github.com/codeready-toolchain/prospecting-engine/pkg/ratelimit"
	"github.com/codeready-toolchain/prospecting-engine/pkg/repository"
	"github.com/codeready-toolchain/prospecting-engine/pkg/stage"
)

// version is stamped at build time via -ldflags; "dev" otherwise.
var version = "dev"

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	gin.SetMode(getEnv("GIN_MODE", "debug"))

	ctx := context.Background()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("Failed to initialize configuration: %v", err)
	}
	stats := cfg.Stats()
	log.Printf("Configuration loaded: %d rate limit buckets, %d related-industry entries, %d platforms",
		stats.RateLimitKeys, stats.RelatedIndustries, stats.Platforms)

	repo, err := repository.NewRepository(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to repository: %v", err)
	}
	defer repo.Close()
	log.Println("Connected to Postgres and applied migrations")

	limiter := ratelimit.New(cfg.RateLimits)
	tracker := cost.New()

	mapsClient := provider.NewMapsClient(limiter, tracker, cfg.Providers.Maps.APIKey, cfg.Providers.Maps.BaseURL)

	textLLM, err := provider.NewTextLLMClient(limiter, tracker, cfg.Providers.TextLLM.Addr, cfg.Providers.TextLLM.Model)
	if err != nil {
		log.Fatalf("Failed to dial text LLM provider: %v", err)
	}

	browserClient := provider.NewBrowserClient(limiter, tracker)

	promptRegistry, err := prompt.Load(cfg.PromptsDir)
	if err != nil {
		log.Printf("No prompt override directory at %s (%v); using builtin prompts", cfg.PromptsDir, err)
		promptRegistry, err = prompt.LoadBuiltin()
		if err != nil {
			log.Fatalf("Failed to load builtin prompts: %v", err)
		}
	}

	backupStore, err := backup.New(cfg.Backup.Root)
	if err != nil {
		log.Fatalf("Failed to open local backup store: %v", err)
	}
	reaper := backup.NewReaper(backupStore, cfg.Backup.Retention, cfg.Backup.CleanupInterval)
	reaper.Start(ctx)
	defer reaper.Stop()

	dedupResolver := dedup.NewResolver(repo)

	platforms := make([]stage.Platform, len(cfg.Platforms))
	for i, p := range cfg.Platforms {
		platforms[i] = stage.Platform(p)
	}

	orchCfg := cfg.Orchestrator.ToOrchestratorConfig()
	orchCfg.Maps = mapsClient
	orchCfg.TextLLM = textLLM
	orchCfg.Browser = browserClient
	orchCfg.Prompts = promptRegistry
	orchCfg.RelatedIndustries = cfg.RelatedIndustries
	orchCfg.Repo = repo
	orchCfg.DedupResolver = dedupResolver
	orchCfg.BackupStore = backupStore
	orchCfg.Cost = tracker
	orchCfg.Platforms = platforms
	orchCfg.HTTPClient = &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error { return http.ErrUseLastResponse },
	}

	if cfg.Providers.VisionLLM.Addr != "" {
		visionLLM, err := provider.NewVisionLLMClient(limiter, tracker, cfg.Providers.VisionLLM.Addr, cfg.Providers.VisionLLM.Model)
		if err != nil {
			log.Fatalf("Failed to dial vision LLM provider: %v", err)
		}
		orchCfg.VisionLLM = visionLLM
	} else {
		log.Println("No vision LLM address configured; Vision fallback disabled for this process")
	}

	orch := orchestrator.New(orchCfg)

	server := api.NewServer(orch, repo, version, cfg.RunDefaults.EffectiveRunOptions())

	httpPort := getEnv("HTTP_PORT", strconv.Itoa(cfg.Server.Port))

	log.Printf("Starting prospecting engine")
	log.Printf("HTTP server listening on :%s", httpPort)
	if err := server.Start(":" + httpPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
