package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"pecpulse/internal/config"
	"pecpulse/internal/domain"
	"pecpulse/internal/engine/auth"
	"pecpulse/internal/events"
	"pecpulse/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Auth   auth.Service
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	r := repo.Repo{DB: db}
	return Engine{
		DB:     db,
		Repo:   r,
		Events: events.Writer{},
		Auth:   auth.Service{Repo: r, Config: cfg},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

// today is the current date in the organization's zone.
func (e Engine) today() string {
	loc := time.Local
	if e.Config != nil {
		loc = e.Config.Location()
	}
	return e.now().In(loc).Format("2006-01-02")
}

func (e Engine) orgID() string {
	if e.Config == nil {
		return ""
	}
	return e.Config.Organization.ID
}

func (e Engine) appendEvent(ctx context.Context, tx *sql.Tx, evtType, entityKind, entityID, actorID string, payload events.Payload) error {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w.Append(ctx, tx, events.Entry{
		Type:       evtType,
		OrgID:      e.orgID(),
		EntityKind: entityKind,
		EntityID:   entityID,
		ActorID:    actorID,
		Payload:    payload,
	})
}

// InitOrganization creates the organization, stores its config and makes the
// actor an admin.
func (e Engine) InitOrganization(ctx context.Context, orgID, name, actorID string) (domain.Organization, error) {
	if strings.TrimSpace(orgID) == "" {
		return domain.Organization{}, errors.New("organization id is required")
	}
	cfg := e.Config
	if cfg == nil {
		cfg = config.Default(orgID)
	}
	if name == "" {
		name = cfg.Organization.Name
	}
	if actorID == "" {
		actorID = "local-user"
	}
	now := e.stamp()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Organization{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.EnsureOrg(ctx, tx, orgID, name, now); err != nil {
		return domain.Organization{}, fmt.Errorf("insert organization: %w", err)
	}
	if err := e.Repo.UpsertOrgConfig(ctx, tx, orgID, cfg); err != nil {
		return domain.Organization{}, fmt.Errorf("insert organization config: %w", err)
	}
	svc := auth.Service{Repo: e.Repo, Config: cfg}
	if err := svc.Grant(ctx, tx, orgID, actorID, "admin"); err != nil {
		return domain.Organization{}, fmt.Errorf("assign admin role: %w", err)
	}
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	if err := w.Append(ctx, tx, events.Entry{
		Type: "organization.init", OrgID: orgID, EntityKind: "organization", EntityID: orgID, ActorID: actorID,
		Payload: events.Payload{"name": name},
	}); err != nil {
		return domain.Organization{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Organization{}, err
	}
	return domain.Organization{ID: orgID, Name: name, CreatedAt: now}, nil
}

// WorkbodyCreateOptions are parameters for creating a workbody.
type WorkbodyCreateOptions struct {
	ID          string
	Name        string
	Type        string
	Description string
	ActorID     string
}

func (e Engine) CreateWorkbody(ctx context.Context, opts WorkbodyCreateOptions) (domain.Workbody, error) {
	if e.Config == nil {
		return domain.Workbody{}, errors.New("config not loaded")
	}
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return domain.Workbody{}, errors.New("name is required")
	}
	if opts.Type == "" {
		opts.Type = e.Config.Workbodies.Types[0]
	}
	if !e.Config.HasWorkbodyType(opts.Type) {
		return domain.Workbody{}, fmt.Errorf("invalid workbody type %s", opts.Type)
	}
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := e.stamp()
	w := domain.Workbody{
		ID:          id,
		OrgID:       e.orgID(),
		Name:        name,
		Type:        opts.Type,
		Description: opts.Description,
		Status:      "active",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Workbody{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertWorkbody(ctx, tx, w); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return domain.Workbody{}, fmt.Errorf("workbody %q already exists: %w", name, repo.ErrConflict)
		}
		return domain.Workbody{}, err
	}
	if err := e.appendEvent(ctx, tx, "workbody.created", "workbody", w.ID, opts.ActorID, events.Payload{"name": w.Name, "type": w.Type}); err != nil {
		return domain.Workbody{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Workbody{}, err
	}
	return w, nil
}

// WorkbodyUpdateOptions encapsulates allowed updates; nil fields are untouched.
type WorkbodyUpdateOptions struct {
	ID          string
	Name        *string
	Type        *string
	Description *string
	Status      *string
	ActorID     string
}

var workbodyStatuses = map[string]bool{"active": true, "dormant": true, "dissolved": true}

func (e Engine) UpdateWorkbody(ctx context.Context, opts WorkbodyUpdateOptions) (domain.Workbody, error) {
	if e.Config == nil {
		return domain.Workbody{}, errors.New("config not loaded")
	}
	w, err := e.Repo.GetWorkbody(ctx, opts.ID)
	if err != nil {
		return w, err
	}
	before := w
	if opts.Name != nil {
		name := strings.TrimSpace(*opts.Name)
		if name == "" {
			return before, errors.New("name is required")
		}
		w.Name = name
	}
	if opts.Type != nil {
		if !e.Config.HasWorkbodyType(*opts.Type) {
			return before, fmt.Errorf("invalid workbody type %s", *opts.Type)
		}
		w.Type = *opts.Type
	}
	if opts.Description != nil {
		w.Description = *opts.Description
	}
	if opts.Status != nil {
		if !workbodyStatuses[*opts.Status] {
			return before, fmt.Errorf("invalid workbody status %s", *opts.Status)
		}
		w.Status = *opts.Status
	}
	w.UpdatedAt = e.stamp()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return before, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateWorkbody(ctx, tx, w); err != nil {
		return before, err
	}
	if err := e.appendEvent(ctx, tx, "workbody.updated", "workbody", w.ID, opts.ActorID, events.Payload{
		"from": map[string]string{"name": before.Name, "type": before.Type, "status": before.Status},
		"to":   map[string]string{"name": w.Name, "type": w.Type, "status": w.Status},
	}); err != nil {
		return before, err
	}
	if err := tx.Commit(); err != nil {
		return before, err
	}
	return w, nil
}

// DeleteWorkbody removes a workbody. Workbodies with meetings are kept unless force is set.
func (e Engine) DeleteWorkbody(ctx context.Context, id, actorID string, force bool) error {
	w, err := e.Repo.GetWorkbody(ctx, id)
	if err != nil {
		return err
	}
	if !force {
		n, err := e.Repo.CountMeetings(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("workbody %s has %d meetings; dissolve it or delete with force: %w", w.Name, n, repo.ErrConflict)
		}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteWorkbody(ctx, tx, id); err != nil {
		return err
	}
	if err := e.appendEvent(ctx, tx, "workbody.deleted", "workbody", id, actorID, events.Payload{"name": w.Name, "force": force}); err != nil {
		return err
	}
	return tx.Commit()
}

// Summary returns the dashboard counters for the organization.
func (e Engine) Summary(ctx context.Context) (domain.Summary, error) {
	orgID := e.orgID()
	today := e.today()
	byType, err := e.Repo.CountWorkbodiesByType(ctx, orgID)
	if err != nil {
		return domain.Summary{}, err
	}
	total := 0
	for _, n := range byType {
		total += n
	}
	upcoming, err := e.Repo.CountUpcomingMeetings(ctx, orgID, today)
	if err != nil {
		return domain.Summary{}, err
	}
	actions, err := e.Repo.CountActionsByStatus(ctx, orgID)
	if err != nil {
		return domain.Summary{}, err
	}
	overdue, err := e.Repo.CountOverdueActions(ctx, orgID, today)
	if err != nil {
		return domain.Summary{}, err
	}
	return domain.Summary{
		OrgID:            orgID,
		Workbodies:       total,
		WorkbodiesByType: byType,
		UpcomingMeetings: upcoming,
		ActionsByStatus:  actions,
		OverdueActions:   overdue,
	}, nil
}
