package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"pecpulse/internal/config"
	"pecpulse/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r Repo) with(tx *sql.Tx) execer {
	if tx != nil {
		return tx
	}
	return r.DB
}

// --- organizations & config ---

func (r Repo) GetOrganization(ctx context.Context, id string) (domain.Organization, error) {
	var o domain.Organization
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,created_at FROM organizations WHERE id=?`, id).Scan(&o.ID, &o.Name, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return o, ErrNotFound
	}
	return o, err
}

func (r Repo) SingleOrganization(ctx context.Context) (domain.Organization, error) {
	orgs, err := r.ListOrganizations(ctx)
	if err != nil {
		return domain.Organization{}, err
	}
	if len(orgs) == 0 {
		return domain.Organization{}, ErrNotFound
	}
	if len(orgs) > 1 {
		return domain.Organization{}, fmt.Errorf("multiple organizations exist; specify --org")
	}
	return orgs[0], nil
}

func (r Repo) ListOrganizations(ctx context.Context) ([]domain.Organization, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,created_at FROM organizations ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Organization
	for rows.Next() {
		var o domain.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

func (r Repo) EnsureOrg(ctx context.Context, tx *sql.Tx, orgID, name, now string) error {
	if name == "" {
		name = orgID
	}
	_, err := r.with(tx).ExecContext(ctx, `INSERT OR IGNORE INTO organizations(id, name, created_at) VALUES (?,?,?)`, orgID, name, now)
	return err
}

func (r Repo) UpsertOrgConfig(ctx context.Context, tx *sql.Tx, orgID string, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config nil")
	}
	cfg.Organization.ID = orgID
	if err := cfg.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = r.with(tx).ExecContext(ctx, `INSERT INTO org_configs(org_id,config_json,created_at,updated_at) VALUES (?,?,?,?)
ON CONFLICT(org_id) DO UPDATE SET config_json=excluded.config_json, updated_at=excluded.updated_at`, orgID, string(payload), now, now)
	return err
}

func (r Repo) GetOrgConfig(ctx context.Context, orgID string) (*config.Config, error) {
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT config_json FROM org_configs WHERE org_id=?`, orgID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return nil, err
	}
	if cfg.Organization.ID == "" {
		cfg.Organization.ID = orgID
	}
	return &cfg, cfg.Validate()
}

// --- workbodies ---

const workbodyColumns = `id,org_id,name,type,COALESCE(description,''),status,created_at,updated_at`

func scanWorkbody(s interface{ Scan(...any) error }) (domain.Workbody, error) {
	var w domain.Workbody
	err := s.Scan(&w.ID, &w.OrgID, &w.Name, &w.Type, &w.Description, &w.Status, &w.CreatedAt, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return w, ErrNotFound
	}
	return w, err
}

func (r Repo) InsertWorkbody(ctx context.Context, tx *sql.Tx, w domain.Workbody) error {
	_, err := r.with(tx).ExecContext(ctx, `INSERT INTO workbodies(id,org_id,name,type,description,status,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		w.ID, w.OrgID, w.Name, w.Type, nullable(w.Description), w.Status, w.CreatedAt, w.UpdatedAt)
	return mapConstraint(err)
}

func (r Repo) UpdateWorkbody(ctx context.Context, tx *sql.Tx, w domain.Workbody) error {
	res, err := r.with(tx).ExecContext(ctx, `UPDATE workbodies SET name=?, type=?, description=?, status=?, updated_at=? WHERE id=?`,
		w.Name, w.Type, nullable(w.Description), w.Status, w.UpdatedAt, w.ID)
	if err != nil {
		return mapConstraint(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	// keep the denormalized copy on meetings in step
	_, err = r.with(tx).ExecContext(ctx, `UPDATE meetings SET workbody_name=? WHERE workbody_id=?`, w.Name, w.ID)
	return err
}

func (r Repo) DeleteWorkbody(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := r.with(tx).ExecContext(ctx, `DELETE FROM workbodies WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetWorkbody(ctx context.Context, id string) (domain.Workbody, error) {
	return scanWorkbody(r.DB.QueryRowContext(ctx, `SELECT `+workbodyColumns+` FROM workbodies WHERE id=?`, id))
}

type WorkbodyFilters struct {
	OrgID  string
	Type   string
	Status string
}

func (r Repo) ListWorkbodies(ctx context.Context, f WorkbodyFilters) ([]domain.Workbody, error) {
	var clauses []string
	var args []any
	if f.OrgID != "" {
		clauses = append(clauses, "org_id=?")
		args = append(args, f.OrgID)
	}
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	query := `SELECT ` + workbodyColumns + ` FROM workbodies` + where(clauses) + ` ORDER BY name ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Workbody
	for rows.Next() {
		w, err := scanWorkbody(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, w)
	}
	return res, rows.Err()
}

func (r Repo) CountWorkbodiesByType(ctx context.Context, orgID string) (map[string]int, error) {
	return countBy(ctx, r.DB, `SELECT type, count(*) FROM workbodies WHERE org_id=? GROUP BY type`, orgID)
}

// --- helpers ---

func countBy(ctx context.Context, q execer, query string, args ...any) (map[string]int, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		res[key] = count
	}
	return res, rows.Err()
}

func where(clauses []string) string {
	if len(clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(clauses, " AND ")
}

// mapConstraint turns unique-constraint failures into ErrConflict.
func mapConstraint(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %s", ErrConflict, err.Error())
	}
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
