package schedule_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"pecpulse/internal/domain"
	"pecpulse/internal/schedule"
)

var fixedNow = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

func newValidator() schedule.Validator {
	return schedule.Validator{
		Now:      func() time.Time { return fixedNow },
		Location: time.UTC,
	}
}

func candidate() domain.CandidateMeeting {
	return domain.CandidateMeeting{
		WorkbodyID:   "W1",
		WorkbodyName: "Finance Committee",
		Date:         "2025-06-01",
		Time:         "10:00",
		Location:     "Room A",
		AgendaItems:  []string{"x"},
	}
}

func existing(id, workbodyID, date, clock, location string) domain.ScheduledMeeting {
	return domain.ScheduledMeeting{
		ID: id,
		CandidateMeeting: domain.CandidateMeeting{
			WorkbodyID:   workbodyID,
			WorkbodyName: "wb-" + workbodyID,
			Date:         date,
			Time:         clock,
			Location:     location,
			AgendaItems:  []string{"item"},
		},
	}
}

func contains(items []string, want string) bool {
	for _, it := range items {
		if it == want {
			return true
		}
	}
	return false
}

func TestEmptyCandidateYieldsFiveErrors(t *testing.T) {
	res := newValidator().Validate(domain.CandidateMeeting{}, nil)
	if res.IsValid {
		t.Fatalf("expected invalid result")
	}
	if len(res.Errors) != 5 {
		t.Fatalf("expected 5 errors, got %d: %v", len(res.Errors), res.Errors)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", res.Warnings)
	}
	for _, want := range []string{
		schedule.ErrWorkbodyRequired,
		schedule.ErrDateRequired,
		schedule.ErrTimeRequired,
		schedule.ErrLocationRequired,
		schedule.ErrAgendaRequired,
	} {
		if !contains(res.Errors, want) {
			t.Fatalf("missing error %q in %v", want, res.Errors)
		}
	}
}

func TestEmptyCandidateIgnoresEmptyExistingMeeting(t *testing.T) {
	res := newValidator().Validate(domain.CandidateMeeting{}, []domain.ScheduledMeeting{{ID: "blank"}})
	if len(res.Errors) != 5 || len(res.Warnings) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRequiredFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*domain.CandidateMeeting)
		want   string
	}{
		{"workbody", func(c *domain.CandidateMeeting) { c.WorkbodyID, c.WorkbodyName = "", "" }, schedule.ErrWorkbodyRequired},
		{"date", func(c *domain.CandidateMeeting) { c.Date = "" }, schedule.ErrDateRequired},
		{"time", func(c *domain.CandidateMeeting) { c.Time = "" }, schedule.ErrTimeRequired},
		{"blank location", func(c *domain.CandidateMeeting) { c.Location = "   " }, schedule.ErrLocationRequired},
		{"agenda", func(c *domain.CandidateMeeting) { c.AgendaItems = nil }, schedule.ErrAgendaRequired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := candidate()
			tc.mutate(&c)
			res := newValidator().Validate(c, nil)
			if res.IsValid {
				t.Fatalf("expected invalid")
			}
			if len(res.Errors) != 1 || res.Errors[0] != tc.want {
				t.Fatalf("expected only %q, got %v", tc.want, res.Errors)
			}
		})
	}
}

func TestWorkbodyNameAloneSatisfiesSelection(t *testing.T) {
	c := candidate()
	c.WorkbodyID = ""
	res := newValidator().Validate(c, nil)
	if !res.IsValid {
		t.Fatalf("expected valid, got %v", res.Errors)
	}
}

func TestExactDuplicate(t *testing.T) {
	c := candidate()
	dup := existing("m1", "W1", "2025-06-01", "10:00", "Room A")
	meetings := []domain.ScheduledMeeting{existing("m0", "W2", "2025-06-01", "10:00", "Room A"), dup}

	res := newValidator().Validate(c, meetings)
	if res.IsValid || !contains(res.Errors, schedule.ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %+v", res)
	}
	found, ok := schedule.FindDuplicate(c, meetings)
	if !ok || found.ID != "m1" {
		t.Fatalf("expected duplicate m1, got %+v (%v)", found, ok)
	}
}

func TestDuplicateIgnoresCaseAndWhitespace(t *testing.T) {
	c := candidate()
	c.Location = " room a "
	meetings := []domain.ScheduledMeeting{existing("m1", "W1", "2025-06-01", "10:00", "Room A")}
	res := newValidator().Validate(c, meetings)
	if !contains(res.Errors, schedule.ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %+v", res)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("duplicate must not also be a soft conflict: %v", res.Warnings)
	}
}

func TestSoftConflictIsWarningOnly(t *testing.T) {
	meetings := []domain.ScheduledMeeting{existing("m1", "W1", "2025-06-01", "10:00", "Room B")}
	res := newValidator().Validate(candidate(), meetings)
	if !res.IsValid || len(res.Errors) != 0 {
		t.Fatalf("expected valid, got %+v", res)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "Room B") {
		t.Fatalf("expected one warning mentioning Room B, got %v", res.Warnings)
	}
	if _, ok := schedule.FindDuplicate(candidate(), meetings); ok {
		t.Fatalf("soft conflict must not be a duplicate")
	}
}

func TestSoftConflictReportsFirstMatchOnly(t *testing.T) {
	meetings := []domain.ScheduledMeeting{
		existing("m1", "W1", "2025-06-01", "10:00", "Room C"),
		existing("m2", "W1", "2025-06-01", "10:00", "Room B"),
	}
	res := newValidator().Validate(candidate(), meetings)
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "Room C") {
		t.Fatalf("expected warning for Room C, got %v", res.Warnings)
	}
	all := schedule.FindConflicts(candidate(), meetings)
	if len(all) != 2 || all[0].ID != "m1" || all[1].ID != "m2" {
		t.Fatalf("expected both conflicts in order, got %+v", all)
	}
}

func TestOtherWorkbodyIsUnconstrained(t *testing.T) {
	meetings := []domain.ScheduledMeeting{
		existing("m1", "W2", "2025-06-01", "10:00", "Room A"),
		existing("m2", "W2", "2025-06-01", "10:00", "Room B"),
	}
	res := newValidator().Validate(candidate(), meetings)
	if !res.IsValid || len(res.Errors) != 0 || len(res.Warnings) != 0 {
		t.Fatalf("expected clean result, got %+v", res)
	}
}

func TestSameDayDifferentTimeIsAllowed(t *testing.T) {
	meetings := []domain.ScheduledMeeting{existing("m1", "W1", "2025-06-01", "14:00", "Room A")}
	res := newValidator().Validate(candidate(), meetings)
	if !res.IsValid || len(res.Warnings) != 0 {
		t.Fatalf("expected clean result, got %+v", res)
	}
}

func TestPastWarning(t *testing.T) {
	v := newValidator()
	past := candidate()
	past.Date = "2025-04-30"
	res := v.Validate(past, nil)
	if !res.IsValid || !contains(res.Warnings, schedule.WarnPast) {
		t.Fatalf("expected past warning, got %+v", res)
	}

	future := candidate()
	res = v.Validate(future, nil)
	if contains(res.Warnings, schedule.WarnPast) {
		t.Fatalf("unexpected past warning for future meeting")
	}

	exact := candidate()
	exact.Date, exact.Time = "2025-05-01", "09:00:00"
	res = v.Validate(exact, nil)
	if contains(res.Warnings, schedule.WarnPast) {
		t.Fatalf("meeting starting exactly now is not in the past")
	}
}

func TestPastCheckUsesValidatorLocation(t *testing.T) {
	zone := time.FixedZone("UTC+3", 3*60*60)
	v := schedule.Validator{Now: func() time.Time { return fixedNow }, Location: zone}
	c := candidate()
	// 11:30 at UTC+3 is 08:30 UTC, before fixedNow.
	c.Date, c.Time = "2025-05-01", "11:30"
	res := v.Validate(c, nil)
	if !contains(res.Warnings, schedule.WarnPast) {
		t.Fatalf("expected past warning in UTC+3, got %+v", res)
	}
}

func TestUnparseableDateSkipsPastCheck(t *testing.T) {
	c := candidate()
	c.Date = "01/06/2020"
	res := newValidator().Validate(c, nil)
	if !res.IsValid || len(res.Warnings) != 0 {
		t.Fatalf("expected clean result for unparseable date, got %+v", res)
	}
	c = candidate()
	c.Time = "late"
	res = newValidator().Validate(c, nil)
	if !res.IsValid || len(res.Warnings) != 0 {
		t.Fatalf("expected clean result for unparseable time, got %+v", res)
	}
}

func TestMissingTimeSkipsPastCheck(t *testing.T) {
	c := candidate()
	c.Date = "2020-01-01"
	c.Time = ""
	res := newValidator().Validate(c, nil)
	if len(res.Errors) != 1 || res.Errors[0] != schedule.ErrTimeRequired {
		t.Fatalf("expected only time error, got %v", res.Errors)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", res.Warnings)
	}
}

func TestOrderIndependence(t *testing.T) {
	a := existing("m1", "W1", "2025-06-01", "10:00", "room a")
	b := existing("m2", "W3", "2025-06-01", "10:00", "Room A")
	c := existing("m3", "W1", "2025-06-01", "10:00", "Room B")
	forward := newValidator().Validate(candidate(), []domain.ScheduledMeeting{a, b, c})
	backward := newValidator().Validate(candidate(), []domain.ScheduledMeeting{c, b, a})
	if forward.IsValid != backward.IsValid {
		t.Fatalf("validity differs")
	}
	if strings.Join(forward.Errors, "|") != strings.Join(backward.Errors, "|") {
		t.Fatalf("errors differ: %v vs %v", forward.Errors, backward.Errors)
	}
	if len(forward.Warnings) != len(backward.Warnings) {
		t.Fatalf("warnings differ: %v vs %v", forward.Warnings, backward.Warnings)
	}
}

func TestValidateDoesNotMutateInputs(t *testing.T) {
	c := candidate()
	c.Location = "  Room A "
	meetings := []domain.ScheduledMeeting{existing("m1", "W1", "2025-06-01", "10:00", " ROOM A")}
	_ = newValidator().Validate(c, meetings)
	if c.Location != "  Room A " || meetings[0].Location != " ROOM A" {
		t.Fatalf("inputs were mutated")
	}
}

func TestValidityMatchesErrors(t *testing.T) {
	inputs := []domain.CandidateMeeting{{}, candidate(), {WorkbodyName: "x", Location: "y"}}
	for _, in := range inputs {
		res := newValidator().Validate(in, []domain.ScheduledMeeting{existing("m1", "W1", "2025-06-01", "10:00", "Room A")})
		if res.IsValid != (len(res.Errors) == 0) {
			t.Fatalf("IsValid=%v with errors %v", res.IsValid, res.Errors)
		}
	}
}

func TestWithoutDropsMeeting(t *testing.T) {
	meetings := []domain.ScheduledMeeting{
		existing("m1", "W1", "2025-06-01", "10:00", "Room A"),
		existing("m2", "W1", "2025-06-02", "10:00", "Room A"),
	}
	rest := schedule.Without(meetings, "m1")
	if len(rest) != 1 || rest[0].ID != "m2" || len(meetings) != 2 {
		t.Fatalf("unexpected result %+v", rest)
	}
}

type stubSource struct {
	meetings []domain.ScheduledMeeting
	err      error
}

func (s stubSource) FetchExisting(context.Context) ([]domain.ScheduledMeeting, error) {
	return s.meetings, s.err
}

func TestCheckUsesSource(t *testing.T) {
	src := stubSource{meetings: []domain.ScheduledMeeting{existing("m1", "W1", "2025-06-01", "10:00", "Room A")}}
	res, err := newValidator().Check(context.Background(), src, candidate())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !contains(res.Errors, schedule.ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %+v", res)
	}

	boom := errors.New("boom")
	if _, err := newValidator().Check(context.Background(), stubSource{err: boom}, candidate()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped fetch error, got %v", err)
	}
}
