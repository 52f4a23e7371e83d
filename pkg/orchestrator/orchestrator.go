// Package orchestrator drives one run end to end: it resolves the
// effective brief, loops Maps Discovery batches through the dedup
// branch and the seven-stage pipeline per candidate, persists each
// Prospect via the local backup store and the repository, and reports
// progress on a bounded Progress Channel (§4.9).
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/prospecting-engine/pkg/backup"
	"github.com/codeready-toolchain/prospecting-engine/pkg/cost"
	"github.com/codeready-toolchain/prospecting-engine/pkg/dedup"
	"github.com/codeready-toolchain/prospecting-engine/pkg/model"
	"github.com/codeready-toolchain/prospecting-engine/pkg/progress"
	"github.com/codeready-toolchain/prospecting-engine/pkg/prompt"
	"github.com/codeready-toolchain/prospecting-engine/pkg/repository"
	"github.com/codeready-toolchain/prospecting-engine/pkg/stage"
)

// Repository is the narrow persistence surface the orchestrator needs.
// *repository.Repository satisfies it directly.
type Repository interface {
	GetProjectConfig(ctx context.Context, projectID string) (*repository.ProjectConfig, error)
	SaveProjectIcpAndPrompts(ctx context.Context, projectID string, brief model.Brief, prompts map[string]string) error
	SaveProspectingConfig(ctx context.Context, projectID string, modelSelections map[string]string) error
	InsertProspect(ctx context.Context, p *model.Prospect) error
	LinkProspectToProject(ctx context.Context, link model.ProjectProspect) error
	SaveDiscoveryQuery(ctx context.Context, q model.DiscoveryQuery) error
}

// Default per-call timeouts and per-prospect budget (§5).
const (
	DefaultBrowserTimeout   = 30 * time.Second
	DefaultTextLLMTimeout   = 30 * time.Second
	DefaultVisionLLMTimeout = 60 * time.Second
	DefaultMapsTimeout      = 10 * time.Second
	DefaultProspectBudget   = 180 * time.Second
)

// Config wires every dependency and tunable the orchestrator needs. The
// provider-facing fields reuse pkg/stage's own narrow interfaces so a
// fake satisfying one also satisfies the other.
type Config struct {
	Maps      stage.Maps
	TextLLM   stage.TextLLM
	VisionLLM stage.VisionLLM // optional; nil disables Vision fallback
	Browser   stage.Browser
	WebSearch stage.WebSearch // optional third social-discovery source
	HTTPClient stage.HTTPDoer // used for Website Verification and Data Extraction's secondary-page crawl

	Prompts           *prompt.Registry
	RelatedIndustries map[string][]string

	Repo          Repository
	DedupResolver *dedup.Resolver
	BackupStore   *backup.Store
	Cost          *cost.Tracker

	Platforms []stage.Platform

	BrowserTimeout     time.Duration
	TextLLMTimeout     time.Duration
	VisionLLMTimeout   time.Duration
	MapsTimeout        time.Duration
	ProspectBudget     time.Duration
	MaxDiscoveredPages int
	ProgressBuffer     int
}

func (c *Config) applyDefaults() {
	if c.BrowserTimeout <= 0 {
		c.BrowserTimeout = DefaultBrowserTimeout
	}
	if c.TextLLMTimeout <= 0 {
		c.TextLLMTimeout = DefaultTextLLMTimeout
	}
	if c.VisionLLMTimeout <= 0 {
		c.VisionLLMTimeout = DefaultVisionLLMTimeout
	}
	if c.MapsTimeout <= 0 {
		c.MapsTimeout = DefaultMapsTimeout
	}
	if c.ProspectBudget <= 0 {
		c.ProspectBudget = DefaultProspectBudget
	}
	if c.MaxDiscoveredPages <= 0 {
		c.MaxDiscoveredPages = stage.DefaultMaxDiscoveredPages
	}
}

// Orchestrator runs prospecting pipelines. One instance is shared across
// concurrent runs; each Run call gets its own run id and Progress
// Channel (§5).
type Orchestrator struct {
	cfg Config
}

// New builds an Orchestrator over cfg, filling in documented defaults
// for any zero-valued timeout or buffer size.
func New(cfg Config) *Orchestrator {
	cfg.applyDefaults()
	return &Orchestrator{cfg: cfg}
}

// Run validates brief synchronously (so the caller can reject a bad
// request before opening a stream), then starts the run in the
// background and returns its Progress Channel publisher immediately.
func (o *Orchestrator) Run(ctx context.Context, brief model.Brief, options model.RunOptions) (*progress.Publisher, error) {
	brief.ApplyDefaults()
	if err := brief.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	pub := progress.NewPublisher(runID, o.cfg.ProgressBuffer)

	go o.run(ctx, runID, brief, options, pub)

	return pub, nil
}

// run executes the full algorithm of §4.9 and always closes pub when
// done, having emitted exactly one of "error" or "complete" as its
// final event.
func (o *Orchestrator) run(ctx context.Context, runID string, brief model.Brief, options model.RunOptions, pub *progress.Publisher) {
	defer pub.Close()
	start := time.Now()
	log := slog.With("run_id", runID)

	effectiveBrief, promptsSnapshot, modelSnapshot, err := o.resolveConfig(ctx, runID, brief, options)
	if err != nil {
		log.Error("resolving effective config failed", "error", err)
		pub.Publish(progress.Event{Type: progress.EventError, Payload: progress.ErrorPayload{Message: err.Error()}})
		return
	}

	pub.Publish(progress.Event{Type: progress.EventStarted, Payload: progress.StartedPayload{
		RunID: runID, Brief: effectiveBrief, Options: options,
	}})

	quCtx, quCancel := context.WithTimeout(ctx, o.cfg.TextLLMTimeout)
	qu, quEvents, err := stage.QueryUnderstanding(quCtx, o.cfg.TextLLM, stage.QueryUnderstandingInput{
		RunID: runID, Brief: effectiveBrief, Prompts: o.cfg.Prompts,
	})
	quCancel()
	o.emitStageEvents(pub, "", quEvents)
	if err != nil {
		log.Error("query understanding failed", "error", err)
		pub.Publish(progress.Event{Type: progress.EventError, Payload: progress.ErrorPayload{Message: err.Error()}})
		return
	}
	pub.Publish(progress.Event{Type: progress.EventProgress, Payload: progress.ProgressPayload{
		Stage: "query_understanding", CurrentStep: 1, TotalSteps: 7, Phase: "completed",
	}})

	run := &runState{
		runID: runID, brief: effectiveBrief, options: options,
		promptsSnapshot: promptsSnapshot, modelSnapshot: modelSnapshot,
		query: qu.Query, location: qu.Location,
	}

	o.discoveryLoop(ctx, run, pub, log)

	summary := run.summary(runID, o.cfg.Cost, time.Since(start))
	pub.Publish(progress.Event{Type: progress.EventComplete, Payload: summary})
}

// resolveConfig implements §4.9 step 1: merge project.icp_brief with the
// request brief and first-run-lock the prompts/model-selection
// snapshot, when a project id is present. Outside a project context the
// request brief is used as-is and the snapshot reflects the engine's
// current prompt versions.
func (o *Orchestrator) resolveConfig(ctx context.Context, runID string, brief model.Brief, options model.RunOptions) (model.Brief, map[string]string, map[string]string, error) {
	currentPrompts := map[string]string{}
	if o.cfg.Prompts != nil {
		currentPrompts = o.cfg.Prompts.Versions()
	}
	currentModels := currentModelSelections(o.cfg.TextLLM, o.cfg.VisionLLM)

	if options.ProjectID == "" || o.cfg.Repo == nil {
		return brief, currentPrompts, currentModels, nil
	}

	projectCfg, err := o.cfg.Repo.GetProjectConfig(ctx, options.ProjectID)
	if err != nil {
		return model.Brief{}, nil, nil, fmt.Errorf("orchestrator: loading project config: %w", err)
	}

	effective := brief
	if projectCfg.ICPBrief != nil {
		effective, err = mergeBriefs(*projectCfg.ICPBrief, brief)
		if err != nil {
			return model.Brief{}, nil, nil, fmt.Errorf("orchestrator: merging project brief: %w", err)
		}
	}

	if projectCfg.ProspectingPrompts == nil {
		if err := o.cfg.Repo.SaveProjectIcpAndPrompts(ctx, options.ProjectID, effective, currentPrompts); err != nil {
			return model.Brief{}, nil, nil, fmt.Errorf("orchestrator: first-run prompt lock: %w", err)
		}
	} else {
		currentPrompts = projectCfg.ProspectingPrompts
	}

	if projectCfg.ProspectingModelSelections == nil {
		if err := o.cfg.Repo.SaveProspectingConfig(ctx, options.ProjectID, currentModels); err != nil {
			return model.Brief{}, nil, nil, fmt.Errorf("orchestrator: first-run model lock: %w", err)
		}
	} else {
		currentModels = projectCfg.ProspectingModelSelections
	}

	return effective, currentPrompts, currentModels, nil
}

// currentModelSelections has no model-name getter on the provider
// clients to introspect (they are configured once at construction), so
// the snapshot records only which provider slots are wired, which is
// what a reproducibility snapshot actually needs to distinguish.
func currentModelSelections(llm stage.TextLLM, vision stage.VisionLLM) map[string]string {
	out := map[string]string{}
	if llm != nil {
		out["text_llm"] = "configured"
	}
	if vision != nil {
		out["vision_llm"] = "configured"
	}
	return out
}

// emitStageEvents forwards each stage.Event onto the Progress Channel as
// a Progress frame; company is empty before a candidate is selected.
func (o *Orchestrator) emitStageEvents(pub *progress.Publisher, company string, events []stage.Event) {
	for _, evt := range events {
		pub.Publish(progress.Event{Type: progress.EventProgress, Payload: progress.ProgressPayload{
			Stage: evt.Stage, Company: company, Phase: evt.Level,
		}})
	}
}
