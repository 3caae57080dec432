package repo

import (
	"context"
	"database/sql"

	"pecpulse/internal/domain"
)

const eventColumns = `id,ts,type,org_id,entity_kind,entity_id,actor_id,payload_json`

type EventFilters struct {
	OrgID      string
	Type       string
	EntityKind string
	EntityID   string
	Before     int64
	Limit      int
}

// LatestEvents returns events newest first; Before is an exclusive id cursor.
func (r Repo) LatestEvents(ctx context.Context, f EventFilters) ([]domain.Event, error) {
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
	if f.EntityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, f.EntityKind)
	}
	if f.EntityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, f.EntityID)
	}
	if f.Before > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, f.Before)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	return r.queryEvents(ctx, `SELECT `+eventColumns+` FROM events`+where(clauses)+` ORDER BY id DESC LIMIT ?`, args...)
}

// EventsAfter returns events with IDs greater than the cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64, orgID string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	var clauses []string
	var args []any
	if orgID != "" {
		clauses = append(clauses, "org_id=?")
		args = append(args, orgID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id>?")
		args = append(args, cursor)
	}
	args = append(args, limit)
	return r.queryEvents(ctx, `SELECT `+eventColumns+` FROM events`+where(clauses)+` ORDER BY id ASC LIMIT ?`, args...)
}

// LatestEventID returns the most recent event ID for an organization.
func (r Repo) LatestEventID(ctx context.Context, orgID string) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events WHERE org_id=?`, orgID).Scan(&id)
	return id, err
}

func (r Repo) queryEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Event{}
	for rows.Next() {
		var e domain.Event
		var orgID, entityID sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &orgID, &e.EntityKind, &entityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		e.OrgID = orgID.String
		e.EntityID = entityID.String
		res = append(res, e)
	}
	return res, rows.Err()
}
