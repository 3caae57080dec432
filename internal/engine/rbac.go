package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pecpulse/internal/domain"
	"pecpulse/internal/engine/auth"
	"pecpulse/internal/events"
	"pecpulse/internal/repo"
)

// Who describes an actor's standing in the organization.
type Who struct {
	ActorID     string   `json:"actor_id"`
	OrgID       string   `json:"org_id"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

func (e Engine) WhoAmI(ctx context.Context, actorID string) (Who, error) {
	if actorID == "" {
		return Who{}, errors.New("actor_id required")
	}
	roles, err := e.Auth.ActorRoles(ctx, nil, e.orgID(), actorID)
	if err != nil {
		return Who{}, err
	}
	if roles == nil {
		roles = []string{}
	}
	perms := e.Auth.RolePermissions(roles)
	if perms == nil {
		perms = []string{}
	}
	return Who{ActorID: actorID, OrgID: e.orgID(), Roles: roles, Permissions: perms}, nil
}

// RequirePermission returns auth.ForbiddenError when actorID lacks perm.
func (e Engine) RequirePermission(ctx context.Context, actorID, perm string) error {
	ok, err := e.Auth.ActorHasPermission(ctx, nil, e.orgID(), actorID, perm)
	if err != nil {
		return err
	}
	if !ok {
		return auth.ForbiddenError{Permission: perm}
	}
	return nil
}

// GrantRole assigns role to target. The granting actor needs rbac.manage.
func (e Engine) GrantRole(ctx context.Context, actorID, target, role string) error {
	if target == "" || role == "" {
		return errors.New("actor_id and role_id are required")
	}
	if err := e.RequirePermission(ctx, actorID, "rbac.manage"); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Auth.Grant(ctx, tx, e.orgID(), target, role); err != nil {
		return err
	}
	if err := e.appendEvent(ctx, tx, "rbac.role_granted", "rbac", target, actorID, events.Payload{"role": role}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) RevokeRole(ctx context.Context, actorID, target, role string) error {
	if target == "" || role == "" {
		return errors.New("actor_id and role_id are required")
	}
	if err := e.RequirePermission(ctx, actorID, "rbac.manage"); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.RevokeRole(ctx, tx, e.orgID(), target, role); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("actor %s does not hold role %s: %w", target, role, err)
		}
		return err
	}
	if err := e.appendEvent(ctx, tx, "rbac.role_revoked", "rbac", target, actorID, events.Payload{"role": role}); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateAPIKey issues a key for actorID. The plaintext key is only returned here;
// the store keeps its hash.
func (e Engine) CreateAPIKey(ctx context.Context, actorID, name string) (domain.APIKey, string, error) {
	if actorID == "" {
		return domain.APIKey{}, "", errors.New("actor_id required")
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return domain.APIKey{}, "", fmt.Errorf("generate key: %w", err)
	}
	plain := "pk_" + hex.EncodeToString(buf)
	key := domain.APIKey{
		ID:        uuid.New().String(),
		ActorID:   actorID,
		Name:      name,
		KeyHash:   repo.HashAPIKey(plain),
		CreatedAt: e.stamp(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.APIKey{}, "", err
	}
	defer tx.Rollback()
	if err := e.Auth.EnsureActor(ctx, tx, actorID); err != nil {
		return domain.APIKey{}, "", err
	}
	if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
		return domain.APIKey{}, "", err
	}
	if err := e.appendEvent(ctx, tx, "apikey.created", "api_key", key.ID, actorID, events.Payload{"name": name}); err != nil {
		return domain.APIKey{}, "", err
	}
	if err := tx.Commit(); err != nil {
		return domain.APIKey{}, "", err
	}
	return key, plain, nil
}
