// Package schedule decides whether a candidate meeting may be saved against
// the meetings already on the calendar.
package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pecpulse/internal/domain"
)

const (
	ErrWorkbodyRequired = "Workbody selection is required"
	ErrDateRequired     = "Meeting date is required"
	ErrTimeRequired     = "Meeting time is required"
	ErrLocationRequired = "Meeting location is required"
	ErrAgendaRequired   = "At least one agenda item is required"
	ErrDuplicate        = "A meeting with identical details already exists"

	WarnPast = "Meeting is scheduled in the past"

	softConflictFormat = "Another meeting for this workbody is scheduled at the same time but in a different location (%s)"
)

// Result is the outcome of validating one candidate. IsValid is true iff Errors is empty.
type Result struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Source supplies the snapshot of existing meetings to validate against.
type Source interface {
	FetchExisting(ctx context.Context) ([]domain.ScheduledMeeting, error)
}

// Validator is stateless apart from its clock and zone; the zero value uses
// time.Now and time.Local.
type Validator struct {
	Now      func() time.Time
	Location *time.Location
}

func (v Validator) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

func (v Validator) location() *time.Location {
	if v.Location != nil {
		return v.Location
	}
	return time.Local
}

// Validate runs the required-field, duplicate, soft-conflict and past checks in
// that order. It never mutates its inputs.
func (v Validator) Validate(c domain.CandidateMeeting, existing []domain.ScheduledMeeting) Result {
	errs := []string{}
	warnings := []string{}

	if strings.TrimSpace(c.WorkbodyID) == "" && strings.TrimSpace(c.WorkbodyName) == "" {
		errs = append(errs, ErrWorkbodyRequired)
	}
	if strings.TrimSpace(c.Date) == "" {
		errs = append(errs, ErrDateRequired)
	}
	if strings.TrimSpace(c.Time) == "" {
		errs = append(errs, ErrTimeRequired)
	}
	if NormalizeLocation(c.Location) == "" {
		errs = append(errs, ErrLocationRequired)
	}
	if len(c.AgendaItems) == 0 {
		errs = append(errs, ErrAgendaRequired)
	}

	if comparable(c) {
		if _, ok := FindDuplicate(c, existing); ok {
			errs = append(errs, ErrDuplicate)
		}
		if conflict, ok := firstConflict(c, existing); ok {
			warnings = append(warnings, fmt.Sprintf(softConflictFormat, conflict.Location))
		}
	}

	if start, ok := v.StartsAt(c); ok && start.Before(v.now()) {
		warnings = append(warnings, WarnPast)
	}

	return Result{IsValid: len(errs) == 0, Errors: errs, Warnings: warnings}
}

// Check fetches the existing meetings from src and validates c against them.
func (v Validator) Check(ctx context.Context, src Source, c domain.CandidateMeeting) (Result, error) {
	existing, err := src.FetchExisting(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("fetch existing meetings: %w", err)
	}
	return v.Validate(c, existing), nil
}

// StartsAt combines the candidate's date and time in the validator's zone.
// It reports false when either is missing or unparseable.
func (v Validator) StartsAt(c domain.CandidateMeeting) (time.Time, bool) {
	return ParseStart(c.Date, c.Time, v.location())
}

// FindDuplicate returns the first existing meeting with the same workbody,
// date, time and normalized location.
func FindDuplicate(c domain.CandidateMeeting, existing []domain.ScheduledMeeting) (domain.ScheduledMeeting, bool) {
	if !comparable(c) {
		return domain.ScheduledMeeting{}, false
	}
	loc := NormalizeLocation(c.Location)
	for _, m := range existing {
		if sameSlot(c, m) && NormalizeLocation(m.Location) == loc {
			return m, true
		}
	}
	return domain.ScheduledMeeting{}, false
}

// FindConflicts returns every existing meeting of the same workbody in the
// same slot but at a different location, in input order. Validate only
// reports the first of these.
func FindConflicts(c domain.CandidateMeeting, existing []domain.ScheduledMeeting) []domain.ScheduledMeeting {
	var out []domain.ScheduledMeeting
	if !comparable(c) {
		return out
	}
	loc := NormalizeLocation(c.Location)
	for _, m := range existing {
		if sameSlot(c, m) && NormalizeLocation(m.Location) != loc {
			out = append(out, m)
		}
	}
	return out
}

// Without returns a copy of existing minus the meeting with the given id.
func Without(existing []domain.ScheduledMeeting, id string) []domain.ScheduledMeeting {
	out := make([]domain.ScheduledMeeting, 0, len(existing))
	for _, m := range existing {
		if m.ID == id {
			continue
		}
		out = append(out, m)
	}
	return out
}

// NormalizeLocation is the comparison key for locations.
func NormalizeLocation(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ParseStart parses a YYYY-MM-DD date and an HH:MM[:SS] time in loc.
func ParseStart(date, clock string, loc *time.Location) (time.Time, bool) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if date == "" || clock == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, date+" "+clock, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func firstConflict(c domain.CandidateMeeting, existing []domain.ScheduledMeeting) (domain.ScheduledMeeting, bool) {
	loc := NormalizeLocation(c.Location)
	for _, m := range existing {
		if sameSlot(c, m) && NormalizeLocation(m.Location) != loc {
			return m, true
		}
	}
	return domain.ScheduledMeeting{}, false
}

// comparable reports whether c carries every field the slot checks depend on.
func comparable(c domain.CandidateMeeting) bool {
	return strings.TrimSpace(c.WorkbodyID) != "" &&
		strings.TrimSpace(c.Date) != "" &&
		strings.TrimSpace(c.Time) != "" &&
		NormalizeLocation(c.Location) != ""
}

func sameSlot(c domain.CandidateMeeting, m domain.ScheduledMeeting) bool {
	return m.WorkbodyID == c.WorkbodyID && m.Date == c.Date && m.Time == c.Time
}
