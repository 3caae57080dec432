package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"pecpulse/internal/domain"
	"pecpulse/internal/events"
	"pecpulse/internal/repo"
	"pecpulse/internal/schedule"
)

// ValidationError carries a failed validation result. Duplicate is set when
// the candidate collides with an existing meeting.
type ValidationError struct {
	Result    schedule.Result
	Duplicate *domain.ScheduledMeeting
}

func (e *ValidationError) Error() string {
	return "meeting validation failed: " + strings.Join(e.Result.Errors, "; ")
}

// Validator returns the meeting validator bound to the engine clock and the
// organization's zone.
func (e Engine) Validator() schedule.Validator {
	v := schedule.Validator{Now: e.now}
	if e.Config != nil {
		v.Location = e.Config.Location()
	}
	return v
}

// Check is the outcome of a dry-run validation.
type Check struct {
	Result    schedule.Result
	Conflicts []domain.ScheduledMeeting
	Duplicate *domain.ScheduledMeeting
}

// ValidateMeeting validates a candidate against every stored meeting without saving it.
func (e Engine) ValidateMeeting(ctx context.Context, c domain.CandidateMeeting) (Check, error) {
	c = normalizeCandidate(c)
	c, err := e.resolveWorkbody(ctx, c)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return Check{}, err
	}
	existing, err := e.Repo.FetchExisting(ctx)
	if err != nil {
		return Check{}, fmt.Errorf("fetch existing meetings: %w", err)
	}
	return e.check(c, existing), nil
}

// CheckDuplicate reports the first stored meeting identical to the candidate.
func (e Engine) CheckDuplicate(ctx context.Context, c domain.CandidateMeeting) (domain.ScheduledMeeting, bool, error) {
	c = normalizeCandidate(c)
	c, err := e.resolveWorkbody(ctx, c)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return domain.ScheduledMeeting{}, false, err
	}
	existing, err := e.Repo.FetchExisting(ctx)
	if err != nil {
		return domain.ScheduledMeeting{}, false, fmt.Errorf("fetch existing meetings: %w", err)
	}
	m, ok := schedule.FindDuplicate(c, existing)
	return m, ok, nil
}

// ScheduleMeeting validates and stores a new meeting. Warnings do not block
// and are returned alongside the stored meeting.
func (e Engine) ScheduleMeeting(ctx context.Context, c domain.CandidateMeeting, actorID string) (domain.ScheduledMeeting, []string, error) {
	c = normalizeCandidate(c)
	c, err := e.resolveWorkbody(ctx, c)
	if err != nil {
		return domain.ScheduledMeeting{}, nil, err
	}
	existing, err := e.Repo.FetchExisting(ctx)
	if err != nil {
		return domain.ScheduledMeeting{}, nil, fmt.Errorf("fetch existing meetings: %w", err)
	}
	chk := e.check(c, existing)
	if !chk.Result.IsValid {
		return domain.ScheduledMeeting{}, chk.Result.Warnings, &ValidationError{Result: chk.Result, Duplicate: chk.Duplicate}
	}
	now := e.stamp()
	m := domain.ScheduledMeeting{
		ID:               uuid.New().String(),
		CandidateMeeting: c,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ScheduledMeeting{}, nil, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertMeeting(ctx, tx, m); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return domain.ScheduledMeeting{}, nil, &ValidationError{Result: duplicateResult(chk.Result)}
		}
		return domain.ScheduledMeeting{}, nil, err
	}
	if err := e.appendEvent(ctx, tx, "meeting.scheduled", "meeting", m.ID, actorID, events.Payload{
		"workbody_id": m.WorkbodyID,
		"date":        m.Date,
		"time":        m.Time,
		"location":    m.Location,
		"warnings":    chk.Result.Warnings,
	}); err != nil {
		return domain.ScheduledMeeting{}, nil, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ScheduledMeeting{}, nil, err
	}
	return m, chk.Result.Warnings, nil
}

// RescheduleMeeting replaces the details of a stored meeting. The meeting
// itself is left out of the snapshot so keeping its own slot is allowed.
func (e Engine) RescheduleMeeting(ctx context.Context, id string, c domain.CandidateMeeting, actorID string) (domain.ScheduledMeeting, []string, error) {
	current, err := e.Repo.GetMeeting(ctx, id)
	if err != nil {
		return domain.ScheduledMeeting{}, nil, err
	}
	c = normalizeCandidate(c)
	c, err = e.resolveWorkbody(ctx, c)
	if err != nil {
		return domain.ScheduledMeeting{}, nil, err
	}
	existing, err := e.Repo.FetchExisting(ctx)
	if err != nil {
		return domain.ScheduledMeeting{}, nil, fmt.Errorf("fetch existing meetings: %w", err)
	}
	chk := e.check(c, schedule.Without(existing, id))
	if !chk.Result.IsValid {
		return current, chk.Result.Warnings, &ValidationError{Result: chk.Result, Duplicate: chk.Duplicate}
	}
	m := domain.ScheduledMeeting{
		ID:               id,
		CandidateMeeting: c,
		CreatedAt:        current.CreatedAt,
		UpdatedAt:        e.stamp(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return current, nil, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateMeeting(ctx, tx, m); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return current, nil, &ValidationError{Result: duplicateResult(chk.Result)}
		}
		return current, nil, err
	}
	if err := e.appendEvent(ctx, tx, "meeting.rescheduled", "meeting", id, actorID, events.Payload{
		"from":     map[string]string{"date": current.Date, "time": current.Time, "location": current.Location},
		"to":       map[string]string{"date": m.Date, "time": m.Time, "location": m.Location},
		"warnings": chk.Result.Warnings,
	}); err != nil {
		return current, nil, err
	}
	if err := tx.Commit(); err != nil {
		return current, nil, err
	}
	return m, chk.Result.Warnings, nil
}

func (e Engine) CancelMeeting(ctx context.Context, id, actorID string) error {
	m, err := e.Repo.GetMeeting(ctx, id)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteMeeting(ctx, tx, id); err != nil {
		return err
	}
	if err := e.appendEvent(ctx, tx, "meeting.canceled", "meeting", id, actorID, events.Payload{
		"workbody_id": m.WorkbodyID,
		"date":        m.Date,
		"time":        m.Time,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) check(c domain.CandidateMeeting, existing []domain.ScheduledMeeting) Check {
	chk := Check{
		Result:    e.Validator().Validate(c, existing),
		Conflicts: schedule.FindConflicts(c, existing),
	}
	if dup, ok := schedule.FindDuplicate(c, existing); ok {
		chk.Duplicate = &dup
	}
	if chk.Conflicts == nil {
		chk.Conflicts = []domain.ScheduledMeeting{}
	}
	return chk
}

// resolveWorkbody fills the workbody id or name from the stored workbody.
// Candidates naming no workbody are returned unchanged for the validator to reject.
func (e Engine) resolveWorkbody(ctx context.Context, c domain.CandidateMeeting) (domain.CandidateMeeting, error) {
	switch {
	case c.WorkbodyID != "":
		w, err := e.Repo.GetWorkbody(ctx, c.WorkbodyID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return c, fmt.Errorf("workbody %s: %w", c.WorkbodyID, err)
			}
			return c, err
		}
		c.WorkbodyName = w.Name
	case c.WorkbodyName != "":
		items, err := e.Repo.ListWorkbodies(ctx, repo.WorkbodyFilters{OrgID: e.orgID()})
		if err != nil {
			return c, err
		}
		for _, w := range items {
			if strings.EqualFold(w.Name, c.WorkbodyName) {
				c.WorkbodyID = w.ID
				c.WorkbodyName = w.Name
				return c, nil
			}
		}
		return c, fmt.Errorf("workbody %q: %w", c.WorkbodyName, repo.ErrNotFound)
	}
	return c, nil
}

// normalizeCandidate trims form input and drops blank agenda items.
func normalizeCandidate(c domain.CandidateMeeting) domain.CandidateMeeting {
	c.WorkbodyID = strings.TrimSpace(c.WorkbodyID)
	c.WorkbodyName = strings.TrimSpace(c.WorkbodyName)
	c.Date = strings.TrimSpace(c.Date)
	c.Time = strings.TrimSpace(c.Time)
	c.Location = strings.TrimSpace(c.Location)
	agenda := make([]string, 0, len(c.AgendaItems))
	for _, item := range c.AgendaItems {
		if item = strings.TrimSpace(item); item != "" {
			agenda = append(agenda, item)
		}
	}
	c.AgendaItems = agenda
	return c
}

// duplicateResult is used when the unique index catches a duplicate that was
// inserted between validation and commit.
func duplicateResult(r schedule.Result) schedule.Result {
	errs := append([]string{}, r.Errors...)
	errs = append(errs, schedule.ErrDuplicate)
	return schedule.Result{IsValid: false, Errors: errs, Warnings: r.Warnings}
}
