package repo

import (
	"context"
	"database/sql"

	"pecpulse/internal/domain"
)

const actionColumns = `a.id,a.workbody_id,a.meeting_id,a.title,a.description,a.owner,a.due_date,a.status,a.created_at,a.updated_at,a.completed_at`

func scanAction(s interface{ Scan(...any) error }) (domain.Action, error) {
	var a domain.Action
	var meetingID, description, owner, dueDate, completedAt sql.NullString
	err := s.Scan(&a.ID, &a.WorkbodyID, &meetingID, &a.Title, &description, &owner, &dueDate, &a.Status, &a.CreatedAt, &a.UpdatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	a.MeetingID = stringPtr(meetingID)
	a.Description = description.String
	a.Owner = owner.String
	a.DueDate = stringPtr(dueDate)
	a.CompletedAt = stringPtr(completedAt)
	return a, nil
}

func (r Repo) InsertAction(ctx context.Context, tx *sql.Tx, a domain.Action) error {
	_, err := r.with(tx).ExecContext(ctx, `INSERT INTO actions(id,workbody_id,meeting_id,title,description,owner,due_date,status,created_at,updated_at,completed_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.WorkbodyID, nullableStringPtr(a.MeetingID), a.Title, nullable(a.Description), nullable(a.Owner),
		nullableStringPtr(a.DueDate), a.Status, a.CreatedAt, a.UpdatedAt, nullableStringPtr(a.CompletedAt))
	return err
}

func (r Repo) UpdateAction(ctx context.Context, tx *sql.Tx, a domain.Action) error {
	res, err := r.with(tx).ExecContext(ctx, `UPDATE actions SET title=?, description=?, owner=?, due_date=?, status=?, updated_at=?, completed_at=? WHERE id=?`,
		a.Title, nullable(a.Description), nullable(a.Owner), nullableStringPtr(a.DueDate), a.Status, a.UpdatedAt, nullableStringPtr(a.CompletedAt), a.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetAction(ctx context.Context, id string) (domain.Action, error) {
	return scanAction(r.DB.QueryRowContext(ctx, `SELECT `+actionColumns+` FROM actions a WHERE a.id=?`, id))
}

type ActionFilters struct {
	OrgID      string
	WorkbodyID string
	MeetingID  string
	Status     string
	Owner      string
	Limit      int
}

func (r Repo) ListActions(ctx context.Context, f ActionFilters) ([]domain.Action, error) {
	var clauses []string
	var args []any
	if f.OrgID != "" {
		clauses = append(clauses, "w.org_id=?")
		args = append(args, f.OrgID)
	}
	if f.WorkbodyID != "" {
		clauses = append(clauses, "a.workbody_id=?")
		args = append(args, f.WorkbodyID)
	}
	if f.MeetingID != "" {
		clauses = append(clauses, "a.meeting_id=?")
		args = append(args, f.MeetingID)
	}
	if f.Status != "" {
		clauses = append(clauses, "a.status=?")
		args = append(args, f.Status)
	}
	if f.Owner != "" {
		clauses = append(clauses, "a.owner=?")
		args = append(args, f.Owner)
	}
	query := `SELECT ` + actionColumns + ` FROM actions a JOIN workbodies w ON w.id=a.workbody_id` + where(clauses) +
		` ORDER BY CASE WHEN a.due_date IS NULL THEN 1 ELSE 0 END, a.due_date ASC, a.created_at ASC, a.id ASC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Action{}
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) CountActionsByStatus(ctx context.Context, orgID string) (map[string]int, error) {
	return countBy(ctx, r.DB, `SELECT a.status, count(*) FROM actions a JOIN workbodies w ON w.id=a.workbody_id WHERE w.org_id=? GROUP BY a.status`, orgID)
}

// CountOverdueActions counts unfinished actions due strictly before today.
func (r Repo) CountOverdueActions(ctx context.Context, orgID, today string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM actions a JOIN workbodies w ON w.id=a.workbody_id
WHERE w.org_id=? AND a.due_date IS NOT NULL AND a.due_date<? AND a.status NOT IN ('completed','canceled')`, orgID, today).Scan(&n)
	return n, err
}
