package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"pecpulse/internal/domain"
	"pecpulse/internal/schedule"
)

const meetingColumns = `m.id,m.workbody_id,m.workbody_name,m.date,m.time,m.location,m.agenda_json,
m.notification_file,m.notification_file_path,m.agenda_file,m.agenda_file_path,m.created_at,m.updated_at`

func scanMeeting(s interface{ Scan(...any) error }) (domain.ScheduledMeeting, error) {
	var m domain.ScheduledMeeting
	var agenda string
	var notifFile, notifPath, agendaFile, agendaPath sql.NullString
	err := s.Scan(&m.ID, &m.WorkbodyID, &m.WorkbodyName, &m.Date, &m.Time, &m.Location, &agenda,
		&notifFile, &notifPath, &agendaFile, &agendaPath, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	m.NotificationFile = notifFile.String
	m.NotificationFilePath = notifPath.String
	m.AgendaFile = agendaFile.String
	m.AgendaFilePath = agendaPath.String
	// an unreadable agenda is tolerated on read
	if agenda != "" {
		_ = json.Unmarshal([]byte(agenda), &m.AgendaItems)
	}
	if m.AgendaItems == nil {
		m.AgendaItems = []string{}
	}
	return m, nil
}

func marshalAgenda(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("marshal agenda: %w", err)
	}
	return string(b), nil
}

func (r Repo) InsertMeeting(ctx context.Context, tx *sql.Tx, m domain.ScheduledMeeting) error {
	agenda, err := marshalAgenda(m.AgendaItems)
	if err != nil {
		return err
	}
	_, err = r.with(tx).ExecContext(ctx, `INSERT INTO meetings(id,workbody_id,workbody_name,date,time,location,location_key,agenda_json,
notification_file,notification_file_path,agenda_file,agenda_file_path,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		m.ID, m.WorkbodyID, m.WorkbodyName, m.Date, m.Time, m.Location, schedule.NormalizeLocation(m.Location), agenda,
		nullable(m.NotificationFile), nullable(m.NotificationFilePath), nullable(m.AgendaFile), nullable(m.AgendaFilePath),
		m.CreatedAt, m.UpdatedAt)
	return mapConstraint(err)
}

func (r Repo) UpdateMeeting(ctx context.Context, tx *sql.Tx, m domain.ScheduledMeeting) error {
	agenda, err := marshalAgenda(m.AgendaItems)
	if err != nil {
		return err
	}
	res, err := r.with(tx).ExecContext(ctx, `UPDATE meetings SET workbody_id=?, workbody_name=?, date=?, time=?, location=?, location_key=?, agenda_json=?,
notification_file=?, notification_file_path=?, agenda_file=?, agenda_file_path=?, updated_at=? WHERE id=?`,
		m.WorkbodyID, m.WorkbodyName, m.Date, m.Time, m.Location, schedule.NormalizeLocation(m.Location), agenda,
		nullable(m.NotificationFile), nullable(m.NotificationFilePath), nullable(m.AgendaFile), nullable(m.AgendaFilePath),
		m.UpdatedAt, m.ID)
	if err != nil {
		return mapConstraint(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteMeeting(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := r.with(tx).ExecContext(ctx, `DELETE FROM meetings WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetMeeting(ctx context.Context, id string) (domain.ScheduledMeeting, error) {
	return scanMeeting(r.DB.QueryRowContext(ctx, `SELECT `+meetingColumns+` FROM meetings m WHERE m.id=?`, id))
}

type MeetingFilters struct {
	OrgID      string
	WorkbodyID string
	From       string // inclusive YYYY-MM-DD
	To         string // inclusive YYYY-MM-DD
	Limit      int
}

func (r Repo) ListMeetings(ctx context.Context, f MeetingFilters) ([]domain.ScheduledMeeting, error) {
	var clauses []string
	var args []any
	if f.OrgID != "" {
		clauses = append(clauses, "w.org_id=?")
		args = append(args, f.OrgID)
	}
	if f.WorkbodyID != "" {
		clauses = append(clauses, "m.workbody_id=?")
		args = append(args, f.WorkbodyID)
	}
	if f.From != "" {
		clauses = append(clauses, "m.date>=?")
		args = append(args, f.From)
	}
	if f.To != "" {
		clauses = append(clauses, "m.date<=?")
		args = append(args, f.To)
	}
	query := `SELECT ` + meetingColumns + ` FROM meetings m JOIN workbodies w ON w.id=m.workbody_id` + where(clauses) +
		` ORDER BY m.date ASC, m.time ASC, m.created_at ASC, m.id ASC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return r.queryMeetings(ctx, query, args...)
}

// FetchExisting returns every stored meeting. Conflict detection is global,
// so the snapshot is not filtered by workbody.
func (r Repo) FetchExisting(ctx context.Context) ([]domain.ScheduledMeeting, error) {
	return r.queryMeetings(ctx, `SELECT `+meetingColumns+` FROM meetings m ORDER BY m.date ASC, m.time ASC, m.created_at ASC, m.id ASC`)
}

func (r Repo) CountMeetings(ctx context.Context, workbodyID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM meetings WHERE workbody_id=?`, workbodyID).Scan(&n)
	return n, err
}

func (r Repo) CountUpcomingMeetings(ctx context.Context, orgID, today string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM meetings m JOIN workbodies w ON w.id=m.workbody_id WHERE w.org_id=? AND m.date>=?`,
		orgID, today).Scan(&n)
	return n, err
}

func (r Repo) queryMeetings(ctx context.Context, query string, args ...any) ([]domain.ScheduledMeeting, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.ScheduledMeeting{}
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

var _ schedule.Source = Repo{}
