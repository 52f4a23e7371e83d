package orchestrator

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"dario.cat/mergo"
	"github.com/google/uuid"

	"github.com/codeready-toolchain/prospecting-engine/pkg/dedup"
	"github.com/codeready-toolchain/prospecting-engine/pkg/model"
	"github.com/codeready-toolchain/prospecting-engine/pkg/progress"
	"github.com/codeready-toolchain/prospecting-engine/pkg/provider"
	"github.com/codeready-toolchain/prospecting-engine/pkg/stage"
)

func marshalProspect(p *model.Prospect) (json.RawMessage, error) {
	return json.Marshal(p)
}

// runState accumulates everything the discovery loop threads through
// successive Maps Discovery batches and candidates, plus the tallies the
// final summary reports.
type runState struct {
	runID   string
	brief   model.Brief
	options model.RunOptions

	promptsSnapshot map[string]string
	modelSnapshot   map[string]string
	query           string
	location        string

	iteration int
	queue     []provider.DetailedCandidate
	goalCount int // number counted toward brief.Count: persisted, reused, or linked

	prospectsFound      int
	prospectsEnriched   int
	websitesScraped     int
	emailsFound         int
	phonesFound         int
	socialProfilesFound int
	scoreSum            int
	scoreCount          int
}

func (r *runState) goalMet() bool {
	return r.goalCount >= r.brief.Count
}

func (r *runState) summary(runID string, tracker costTotaler, elapsed time.Duration) progress.CompletePayload {
	avg := 0.0
	if r.scoreCount > 0 {
		avg = float64(r.scoreSum) / float64(r.scoreCount)
	}
	cost := 0.0
	if tracker != nil {
		cost = tracker.TotalUSD(runID)
	}
	return progress.CompletePayload{
		ProspectsFound:      r.prospectsFound,
		ProspectsEnriched:   r.prospectsEnriched,
		WebsitesScraped:     r.websitesScraped,
		EmailsFound:         r.emailsFound,
		PhonesFound:         r.phonesFound,
		SocialProfilesFound: r.socialProfilesFound,
		AverageICPScore:     avg,
		TotalCostUSD:        cost,
		TotalTimeMs:         elapsed.Milliseconds(),
		RunID:               runID,
	}
}

// costTotaler is the narrow surface of *cost.Tracker the summary needs.
type costTotaler interface {
	TotalUSD(runID string) float64
}

// discoveryLoop runs step 4 of §4.9: refill from Maps Discovery as
// needed, resolve each candidate's dedup decision, and either record a
// cheap outcome (skip/reuse/link) or run the full enrichment pipeline,
// until the brief's Count is satisfied, discovery is exhausted, or ctx
// is cancelled.
func (o *Orchestrator) discoveryLoop(ctx context.Context, run *runState, pub *progress.Publisher, log *slog.Logger) {
	for !run.goalMet() {
		if ctx.Err() != nil {
			log.Warn("run cancelled", "error", ctx.Err())
			return
		}

		if len(run.queue) == 0 {
			if !o.refill(ctx, run, pub, log) {
				return // discovery exhausted
			}
			if len(run.queue) == 0 {
				return
			}
		}

		candidate := run.queue[0]
		run.queue = run.queue[1:]

		o.processCandidate(ctx, run, pub, log, candidate)
	}
}

// refill runs one Maps Discovery batch and appends its survivors to the
// queue. Returns false when discovery is exhausted (an empty batch) or
// errors, in which case the run should stop without an Error event —
// an empty result set is a normal, non-fatal end of supply (§4.8.2).
func (o *Orchestrator) refill(ctx context.Context, run *runState, pub *progress.Publisher, log *slog.Logger) bool {
	run.iteration++
	mctx, cancel := context.WithTimeout(ctx, o.cfg.MapsTimeout)
	defer cancel()

	out, events, err := stage.MapsDiscovery(mctx, o.cfg.Maps, stage.MapsDiscoveryInput{
		RunID:        run.runID,
		Query:        run.query,
		Location:     run.location,
		RadiusMeters: run.brief.RadiusMeters,
		MinRating:    run.brief.MinRating,
		Remaining:    run.brief.Count - run.goalCount,
		ProjectID:    run.options.ProjectID,
		Iteration:    run.iteration,
	})
	o.emitStageEvents(pub, "", events)
	if err != nil {
		log.Error("maps discovery failed", "error", err)
		pub.Publish(progress.Event{Type: progress.EventProgress, Payload: progress.ProgressPayload{Stage: "maps_discovery", Phase: "warn"}})
		return false
	}

	if o.cfg.Repo != nil {
		if err := o.cfg.Repo.SaveDiscoveryQuery(ctx, out.History); err != nil {
			log.Warn("saving discovery query history failed", "error", err)
		}
	}

	if len(out.Candidates) == 0 {
		log.Info("discovery exhausted", "iteration", run.iteration)
		return false
	}

	run.queue = append(run.queue, out.Candidates...)
	return true
}

// processCandidate resolves one candidate's dedup decision and advances
// the run's counters/events accordingly, running the full enrichment
// pipeline only for NewWork.
func (o *Orchestrator) processCandidate(ctx context.Context, run *runState, pub *progress.Publisher, log *slog.Logger, candidate provider.DetailedCandidate) {
	identity := dedup.Identity{
		CompanyName:   candidate.Name,
		Website:       candidate.Website,
		GooglePlaceID: candidate.PlaceID,
	}

	decision, err := o.cfg.DedupResolver.Check(ctx, identity, run.options.ProjectID)
	if err != nil {
		log.Error("dedup check failed", "company", candidate.Name, "error", err)
		pub.Publish(progress.Event{Type: progress.EventProgress, Payload: progress.ProgressPayload{Stage: "dedup", Company: candidate.Name, Phase: "warn"}})
		return
	}

	switch decision.Kind {
	case dedup.SkipContacted:
		pub.Publish(progress.Event{Type: progress.EventSkipped, Payload: progress.SkippedPayload{
			Company: candidate.Name, Reason: "already contacted",
		}})

	case dedup.UseExistingLead:
		run.goalCount++
		pub.Publish(progress.Event{Type: progress.EventReused, Payload: progress.ReusedPayload{
			Company: candidate.Name, ReusedFrom: "lead",
		}})

	case dedup.UseExistingProspect:
		run.goalCount++
		pub.Publish(progress.Event{Type: progress.EventReused, Payload: progress.ReusedPayload{
			Company: candidate.Name, ProspectID: decision.ExistingProspect.ID, ReusedFrom: "prospect",
		}})

	case dedup.LinkOnly:
		run.goalCount++
		if o.cfg.Repo != nil {
			link := model.ProjectProspect{
				ProjectID:              run.options.ProjectID,
				ProspectID:             decision.ExistingProspect.ID,
				RunID:                  run.runID,
				ICPBriefSnapshot:       run.brief,
				PromptsSnapshot:        run.promptsSnapshot,
				ModelSelectionsSnapshot: run.modelSnapshot,
				Status:                 model.StatusLinkOnly,
				AddedAt:                time.Now(),
			}
			if err := o.cfg.Repo.LinkProspectToProject(ctx, link); err != nil {
				log.Error("linking existing prospect failed", "company", candidate.Name, "error", err)
			}
		}
		pub.Publish(progress.Event{Type: progress.EventLinked, Payload: progress.LinkedPayload{
			Company: candidate.Name, ProspectID: decision.ExistingProspect.ID,
		}})

	case dedup.NewWork:
		o.enrichAndPersist(ctx, run, pub, log, candidate)
	}
}

// enrichAndPersist runs stages 3 through 7 against one candidate under a
// hard per-prospect ceiling (§5): on timeout the prospect is dropped and
// the run advances without counting it toward the goal.
func (o *Orchestrator) enrichAndPersist(ctx context.Context, run *runState, pub *progress.Publisher, log *slog.Logger, candidate provider.DetailedCandidate) {
	pctx, cancel := context.WithTimeout(ctx, o.cfg.ProspectBudget)
	defer cancel()

	run.prospectsFound++
	start := time.Now()

	p := &model.Prospect{
		ID:                      uuid.NewString(),
		GooglePlaceID:           candidate.PlaceID,
		CompanyName:             candidate.Name,
		Address:                 candidate.Address,
		City:                    candidate.City,
		State:                   candidate.State,
		Website:                 candidate.Website,
		ContactPhone:            candidate.Phone,
		GoogleRating:            candidate.Rating,
		GoogleReviewCount:       candidate.ReviewCount,
		RunID:                   run.runID,
		Source:                  model.ProspectingEngineSource,
		Status:                  model.StatusCandidate,
		ICPBriefSnapshot:        run.brief,
		PromptsSnapshot:         run.promptsSnapshot,
		ModelSelectionsSnapshot: run.modelSnapshot,
		CreatedAt:               time.Now(),
		UpdatedAt:               time.Now(),
	}
	if len(candidate.RecentReviewDates) > 0 {
		p.MostRecentReviewDate = &candidate.RecentReviewDates[0]
	}

	step := 2
	progressStep := func(name string) {
		step++
		pub.Publish(progress.Event{Type: progress.EventProgress, Payload: progress.ProgressPayload{
			Stage: name, Company: p.CompanyName, CurrentStep: step, TotalSteps: 7, Phase: "completed",
		}})
	}

	if run.options.ScrapeWebsites {
		wv, events, err := stage.WebsiteVerification(pctx, o.cfg.HTTPClient, stage.WebsiteVerificationInput{
			Website: p.Website, Timeout: o.cfg.BrowserTimeout,
		})
		o.emitStageEvents(pub, p.CompanyName, events)
		if err == nil {
			p.WebsiteStatus = wv.Status
			if wv.Status == model.WebsiteActive {
				run.websitesScraped++
			}
		}
	}
	progressStep("website_verification")

	if pctx.Err() != nil {
		o.dropProspect(pub, p, log)
		return
	}

	var extraction stage.DataExtractionOutput
	if run.options.ScrapeWebsites && p.WebsiteStatus == model.WebsiteActive {
		var err error
		var events []stage.Event
		// Render (desktop+mobile) carries its own explicit RenderTimeout per
		// call; the outer deadline here only needs to additionally cover the
		// optional Vision fallback that follows it.
		dectx, dcancel := context.WithTimeout(pctx, o.cfg.BrowserTimeout+o.cfg.VisionLLMTimeout)
		extraction, events, err = stage.DataExtraction(dectx, o.cfg.Browser, o.cfg.VisionLLM, stage.DataExtractionInput{
			RunID: run.runID, Website: p.Website, Prompts: o.cfg.Prompts,
			UseVisionFallback:   run.options.UseVisionFallback && o.cfg.VisionLLM != nil,
			ConfidenceThreshold: stage.DefaultExtractionConfidenceThreshold,
			RenderTimeout:       o.cfg.BrowserTimeout,
			PageClient:          o.cfg.HTTPClient,
			MaxPages:            o.cfg.MaxDiscoveredPages,
		})
		dcancel()
		o.emitStageEvents(pub, p.CompanyName, events)
		if err == nil {
			p.ContactEmail = firstNonEmpty(extraction.Email, p.ContactEmail)
			p.ContactPhone = firstNonEmpty(extraction.Phone, p.ContactPhone)
			p.Description = extraction.Description
			p.Services = extraction.Services
			if p.ContactEmail != "" {
				run.emailsFound++
			}
			if p.ContactPhone != "" {
				run.phonesFound++
			}
		}
	}
	p.Status = model.StatusExtracted
	progressStep("data_extraction")

	if pctx.Err() != nil {
		o.dropProspect(pub, p, log)
		return
	}

	if run.options.ScrapeSocial {
		sd, events, err := stage.SocialDiscovery(pctx, o.cfg.WebSearch, stage.SocialDiscoveryInput{
			CompanyName: p.CompanyName, HTMLLinks: extraction.OutboundLinks, Platforms: o.cfg.Platforms,
		})
		o.emitStageEvents(pub, p.CompanyName, events)
		if err == nil && len(sd.Profiles) > 0 {
			p.SocialProfiles = sd.Profiles
			run.socialProfilesFound += len(sd.Profiles)

			sm, smEvents, smErr := stage.SocialMetadata(pctx, o.cfg.Browser, stage.SocialMetadataInput{
				RunID: run.runID, Profiles: sd.Profiles, RenderTimeout: o.cfg.BrowserTimeout,
			})
			o.emitStageEvents(pub, p.CompanyName, smEvents)
			if smErr == nil {
				p.SocialMetadata = sm.Metadata
			}
		}
	}
	p.Status = model.StatusSocialized
	progressStep("social_discovery")

	if pctx.Err() != nil {
		o.dropProspect(pub, p, log)
		return
	}

	if run.options.CheckRelevance {
		rsctx, rscancel := context.WithTimeout(pctx, o.cfg.TextLLMTimeout)
		rs, events, err := stage.RelevanceScoring(rsctx, o.cfg.TextLLM, stage.RelevanceScoringInput{
			RunID: run.runID, Brief: run.brief, RelatedIndustries: o.cfg.RelatedIndustries, Prompts: o.cfg.Prompts,
			CompanyName: p.CompanyName, CompanyCity: p.City, CompanyState: p.State,
			Rating: p.GoogleRating, Website: p.Website, SocialProfiles: p.SocialProfiles,
			Email: p.ContactEmail, Phone: p.ContactPhone, Description: p.Description,
			Services: p.Services, Address: p.Address,
		})
		rscancel()
		o.emitStageEvents(pub, p.CompanyName, events)
		if err == nil {
			p.ApplyRelevance(rs.Breakdown, rs.Reasoning)
			run.scoreSum += p.ICPMatchScore
			run.scoreCount++
		}
	}
	p.Status = model.StatusScored
	progressStep("relevance_scoring")

	if run.options.FilterIrrelevant && run.options.CheckRelevance && !p.IsRelevant {
		pub.Publish(progress.Event{Type: progress.EventSkipped, Payload: progress.SkippedPayload{
			Company: p.CompanyName, Reason: "below relevance threshold",
		}})
		return
	}

	p.DiscoveryTimeMs = time.Since(start).Milliseconds()
	o.persist(ctx, run, pub, log, p)
}

// persist backs the finished Prospect up to the local store first, then
// inserts it via the repository; a repository failure is recorded but
// does not abort the run (§7).
func (o *Orchestrator) persist(ctx context.Context, run *runState, pub *progress.Publisher, log *slog.Logger, p *model.Prospect) {
	var backupPath string
	if o.cfg.BackupStore != nil {
		data, err := marshalProspect(p)
		if err == nil {
			backupPath, err = o.cfg.BackupStore.Save(p.ID, data)
			if err != nil {
				log.Warn("backing up prospect failed", "company", p.CompanyName, "error", err)
			}
		}
	}

	if o.cfg.Repo == nil {
		run.prospectsEnriched++
		run.goalCount++
		pub.Publish(progress.Event{Type: progress.EventCompanyComplete, Payload: progress.CompanyCompletePayload{Prospect: p}})
		return
	}

	p.Status = model.StatusPersisted
	if err := o.cfg.Repo.InsertProspect(ctx, p); err != nil {
		log.Error("inserting prospect failed", "company", p.CompanyName, "error", err)
		if backupPath != "" {
			if _, markErr := o.cfg.BackupStore.MarkFailed(backupPath, err); markErr != nil {
				log.Warn("marking backup failed record failed", "error", markErr)
			}
		}
		return
	}
	if backupPath != "" {
		if err := o.cfg.BackupStore.MarkUploaded(backupPath, p.ID); err != nil {
			log.Warn("marking backup uploaded failed", "error", err)
		}
	}

	if run.options.ProjectID != "" {
		link := model.ProjectProspect{
			ProjectID:               run.options.ProjectID,
			ProspectID:              p.ID,
			RunID:                   run.runID,
			ICPBriefSnapshot:        run.brief,
			PromptsSnapshot:         run.promptsSnapshot,
			ModelSelectionsSnapshot: run.modelSnapshot,
			RelevanceReasoning:      p.RelevanceReasoning,
			DiscoveryCostUSD:        p.DiscoveryCostUSD,
			DiscoveryTimeMs:         p.DiscoveryTimeMs,
			Status:                  model.StatusLinked,
			AddedAt:                 time.Now(),
		}
		if err := o.cfg.Repo.LinkProspectToProject(ctx, link); err != nil {
			log.Warn("linking new prospect to project failed", "error", err)
		}
		p.Status = model.StatusLinked
	}

	run.prospectsEnriched++
	run.goalCount++
	pub.Publish(progress.Event{Type: progress.EventCompanyComplete, Payload: progress.CompanyCompletePayload{Prospect: p}})
}

// dropProspect records a per-prospect budget overrun as a Skipped event
// (§5, §7 RunTimeout) and advances the loop without counting the
// candidate toward the goal.
func (o *Orchestrator) dropProspect(pub *progress.Publisher, p *model.Prospect, log *slog.Logger) {
	p.Status = model.StatusDropped
	log.Warn("prospect dropped: per-prospect budget exceeded", "company", p.CompanyName)
	pub.Publish(progress.Event{Type: progress.EventSkipped, Payload: progress.SkippedPayload{
		Company: p.CompanyName, Reason: "processing budget exceeded",
	}})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// mergeBriefs overlays request fields on top of the project's stored
// brief: a zero-valued request field defers to the stored value, letting
// a caller override only what it sets.
func mergeBriefs(stored, request model.Brief) (model.Brief, error) {
	merged := stored
	if err := mergo.Merge(&merged, request, mergo.WithOverride); err != nil {
		return model.Brief{}, err
	}
	return merged, nil
}
