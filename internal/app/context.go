package app

import (
	"context"
	"errors"
	"fmt"

	"pecpulse/internal/config"
	"pecpulse/internal/engine"
	"pecpulse/internal/repo"
)

// ResolveOrgAndConfig picks the active organization and ensures it and its config
// exist in the DB. It prefers the override, then a single-organization DB.
// A missing organization is created on the fly, seeded from pulse.yml when the
// workspace has one and from the built-in defaults otherwise.
func ResolveOrgAndConfig(ctx context.Context, workspace, orgOverride, actorID string, r repo.Repo) (string, *config.Config, error) {
	orgID := orgOverride
	if orgID == "" {
		if o, err := r.SingleOrganization(ctx); err == nil {
			orgID = o.ID
		} else if fileCfg, ferr := config.LoadOptional(workspace); ferr == nil && fileCfg != nil {
			orgID = fileCfg.Organization.ID
		} else {
			return "", nil, fmt.Errorf("organization not specified; use --org")
		}
	}
	seedCfg, err := seedConfig(workspace, orgID)
	if err != nil {
		return "", nil, err
	}

	if _, err := r.GetOrganization(ctx, orgID); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return "", nil, err
		}
		eng := engine.New(r.DB, seedCfg)
		if _, err := eng.InitOrganization(ctx, orgID, seedCfg.Organization.Name, actorID); err != nil {
			return "", nil, fmt.Errorf("create organization: %w", err)
		}
	}
	cfg, err := r.GetOrgConfig(ctx, orgID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return "", nil, err
		}
		if err := r.UpsertOrgConfig(ctx, nil, orgID, seedCfg); err != nil {
			return "", nil, fmt.Errorf("seed organization config: %w", err)
		}
		cfg = seedCfg
	}
	cfg.Organization.ID = orgID
	return orgID, cfg, nil
}

// seedConfig prefers a workspace pulse.yml that names the same organization.
func seedConfig(workspace, orgID string) (*config.Config, error) {
	fileCfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", config.Path(workspace), err)
	}
	if fileCfg != nil && fileCfg.Organization.ID == orgID {
		return fileCfg, nil
	}
	return config.Default(orgID), nil
}

