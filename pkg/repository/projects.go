package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/codeready-toolchain/prospecting-engine/pkg/model"
)

// ProjectConfig is the subset of Project fields the orchestrator's
// first-run config lock reads and writes.
type ProjectConfig struct {
	ICPBrief                   *model.Brief
	ProspectingPrompts         map[string]string
	ProspectingModelSelections map[string]string
}

// GetProjectConfig reads the current config-lock fields for a project.
func (r *Repository) GetProjectConfig(ctx context.Context, projectID string) (*ProjectConfig, error) {
	var briefRaw, promptsRaw, modelsRaw []byte
	err := r.pool.QueryRow(ctx, `
		SELECT icp_brief, prospecting_prompts, prospecting_model_selections
		FROM projects WHERE id = $1`, projectID).Scan(&briefRaw, &promptsRaw, &modelsRaw)
	if err != nil {
		return nil, fmt.Errorf("repository: reading project config %s: %w", projectID, err)
	}

	cfg := &ProjectConfig{}
	if len(briefRaw) > 0 {
		var brief model.Brief
		if err := json.Unmarshal(briefRaw, &brief); err == nil {
			cfg.ICPBrief = &brief
		}
	}
	_ = json.Unmarshal(promptsRaw, &cfg.ProspectingPrompts)
	_ = json.Unmarshal(modelsRaw, &cfg.ProspectingModelSelections)
	return cfg, nil
}

// SaveProjectIcpAndPrompts writes icp_brief and prospecting_prompts only
// if they are currently NULL on the project row (first-run lock, §3).
func (r *Repository) SaveProjectIcpAndPrompts(ctx context.Context, projectID string, brief model.Brief, prompts map[string]string) error {
	briefRaw, err := json.Marshal(brief)
	if err != nil {
		return fmt.Errorf("repository: marshaling icp_brief: %w", err)
	}
	promptsRaw, err := json.Marshal(prompts)
	if err != nil {
		return fmt.Errorf("repository: marshaling prospecting_prompts: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		UPDATE projects
		SET icp_brief = COALESCE(icp_brief, $2),
		    prospecting_prompts = COALESCE(prospecting_prompts, $3)
		WHERE id = $1`, projectID, briefRaw, promptsRaw)
	if err != nil {
		return fmt.Errorf("repository: saving icp/prompts for project %s: %w", projectID, err)
	}
	return nil
}

// SaveProspectingConfig writes prospecting_model_selections only if it is
// currently NULL on the project row (first-run lock, §3).
func (r *Repository) SaveProspectingConfig(ctx context.Context, projectID string, modelSelections map[string]string) error {
	raw, err := json.Marshal(modelSelections)
	if err != nil {
		return fmt.Errorf("repository: marshaling model selections: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		UPDATE projects
		SET prospecting_model_selections = COALESCE(prospecting_model_selections, $2)
		WHERE id = $1`, projectID, raw)
	if err != nil {
		return fmt.Errorf("repository: saving model selections for project %s: %w", projectID, err)
	}
	return nil
}
