package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"pecpulse/internal/config"
	"pecpulse/internal/repo"
)

// ForbiddenError indicates missing permission.
type ForbiddenError struct {
	Permission string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("permission %s required", e.Permission)
}

// Service resolves permissions from role assignments stored in SQL and role
// definitions from the organization config.
type Service struct {
	Repo   repo.Repo
	Config *config.Config
}

func (s Service) EnsureActor(ctx context.Context, tx *sql.Tx, actorID string) error {
	if actorID == "" {
		return errors.New("actor_id required")
	}
	return s.Repo.EnsureActor(ctx, tx, actorID, time.Now().UTC().Format(time.RFC3339))
}

func (s Service) ActorRoles(ctx context.Context, tx *sql.Tx, orgID, actorID string) ([]string, error) {
	return s.Repo.ActorRoles(ctx, tx, orgID, actorID)
}

func (s Service) ActorPermissions(ctx context.Context, tx *sql.Tx, orgID, actorID string) ([]string, error) {
	roles, err := s.ActorRoles(ctx, tx, orgID, actorID)
	if err != nil {
		return nil, err
	}
	return s.RolePermissions(roles), nil
}

// RolePermissions expands role ids into their sorted permission set.
func (s Service) RolePermissions(roles []string) []string {
	if s.Config == nil {
		return nil
	}
	perms := s.Config.Permissions(roles)
	sort.Strings(perms)
	return perms
}

func (s Service) ActorHasPermission(ctx context.Context, tx *sql.Tx, orgID, actorID, perm string) (bool, error) {
	perms, err := s.ActorPermissions(ctx, tx, orgID, actorID)
	if err != nil {
		return false, err
	}
	return HasPermission(perms, perm), nil
}

// Grant assigns a configured role to an actor, creating the actor if needed.
func (s Service) Grant(ctx context.Context, tx *sql.Tx, orgID, actorID, role string) error {
	if s.Config == nil {
		return errors.New("config not loaded")
	}
	if _, ok := s.Config.RBAC.Roles[role]; !ok {
		return fmt.Errorf("unknown role %s", role)
	}
	if err := s.EnsureActor(ctx, tx, actorID); err != nil {
		return err
	}
	return s.Repo.AssignRole(ctx, tx, orgID, actorID, role)
}

func HasPermission(perms []string, perm string) bool {
	for _, p := range perms {
		if p == perm {
			return true
		}
	}
	return false
}
