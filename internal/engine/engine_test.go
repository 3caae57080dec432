package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"pecpulse/internal/config"
	"pecpulse/internal/db"
	"pecpulse/internal/domain"
	"pecpulse/internal/engine"
	"pecpulse/internal/engine/auth"
	"pecpulse/internal/migrate"
	"pecpulse/internal/repo"
	"pecpulse/internal/schedule"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("org-1")
	cfg.Organization.Timezone = "UTC"
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	if _, err := eng.InitOrganization(ctx, "org-1", "PEC", "tester"); err != nil {
		t.Fatalf("init organization: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

func (env testEnv) workbody(t *testing.T, name string) domain.Workbody {
	t.Helper()
	w, err := env.Engine.CreateWorkbody(env.Ctx, engine.WorkbodyCreateOptions{Name: name, ActorID: "tester"})
	if err != nil {
		t.Fatalf("create workbody %s: %v", name, err)
	}
	return w
}

func candidate(w domain.Workbody, date, clock, location string) domain.CandidateMeeting {
	return domain.CandidateMeeting{
		WorkbodyID:  w.ID,
		Date:        date,
		Time:        clock,
		Location:    location,
		AgendaItems: []string{"Approve minutes"},
	}
}

func TestCreateWorkbodyDefaultsAndConflicts(t *testing.T) {
	env := newTestEnv(t)
	w := env.workbody(t, "Finance Committee")
	if w.Type != "committee" || w.Status != "active" || w.OrgID != "org-1" {
		t.Fatalf("unexpected defaults: %+v", w)
	}
	_, err := env.Engine.CreateWorkbody(env.Ctx, engine.WorkbodyCreateOptions{Name: "Finance Committee"})
	if !errors.Is(err, repo.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := env.Engine.CreateWorkbody(env.Ctx, engine.WorkbodyCreateOptions{Name: "X", Type: "senate"}); err == nil {
		t.Fatalf("expected unknown type error")
	}
	if _, err := env.Engine.CreateWorkbody(env.Ctx, engine.WorkbodyCreateOptions{Name: "  "}); err == nil {
		t.Fatalf("expected name required error")
	}
}

func TestUpdateWorkbodyRenamesMeetings(t *testing.T) {
	env := newTestEnv(t)
	w := env.workbody(t, "Finance")
	m, _, err := env.Engine.ScheduleMeeting(env.Ctx, candidate(w, "2025-06-10", "10:00", "Room A"), "tester")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	name := "Budget Committee"
	status := "dormant"
	w, err = env.Engine.UpdateWorkbody(env.Ctx, engine.WorkbodyUpdateOptions{ID: w.ID, Name: &name, Status: &status, ActorID: "tester"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if w.Name != name || w.Status != "dormant" {
		t.Fatalf("unexpected workbody: %+v", w)
	}
	got, err := env.Engine.Repo.GetMeeting(env.Ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.WorkbodyName != name {
		t.Fatalf("meeting kept stale workbody name %q", got.WorkbodyName)
	}
	bad := "archived"
	if _, err := env.Engine.UpdateWorkbody(env.Ctx, engine.WorkbodyUpdateOptions{ID: w.ID, Status: &bad}); err == nil {
		t.Fatalf("expected invalid status error")
	}
}

func TestDeleteWorkbodyWithMeetingsNeedsForce(t *testing.T) {
	env := newTestEnv(t)
	w := env.workbody(t, "Finance")
	if _, _, err := env.Engine.ScheduleMeeting(env.Ctx, candidate(w, "2025-06-10", "10:00", "Room A"), "tester"); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	err := env.Engine.DeleteWorkbody(env.Ctx, w.ID, "tester", false)
	if !errors.Is(err, repo.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := env.Engine.DeleteWorkbody(env.Ctx, w.ID, "tester", true); err != nil {
		t.Fatalf("forced delete: %v", err)
	}
	existing, err := env.Engine.Repo.FetchExisting(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(existing) != 0 {
		t.Fatalf("expected meetings removed with workbody, got %d", len(existing))
	}
	if err := env.Engine.DeleteWorkbody(env.Ctx, w.ID, "tester", false); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestScheduleMeetingStoresNormalizedCandidate(t *testing.T) {
	env := newTestEnv(t)
	w := env.workbody(t, "Finance")
	c := domain.CandidateMeeting{
		WorkbodyName: " finance ",
		Date:         " 2025-06-10 ",
		Time:         "10:00 ",
		Location:     " Room A",
		AgendaItems:  []string{"Budget", "  ", "Hiring"},
	}
	m, warnings, err := env.Engine.ScheduleMeeting(env.Ctx, c, "tester")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if m.WorkbodyID != w.ID || m.WorkbodyName != "Finance" {
		t.Fatalf("workbody not resolved: %+v", m)
	}
	if m.Date != "2025-06-10" || m.Time != "10:00" || m.Location != "Room A" {
		t.Fatalf("candidate not trimmed: %+v", m)
	}
	if len(m.AgendaItems) != 2 {
		t.Fatalf("expected blank agenda items dropped, got %v", m.AgendaItems)
	}
	got, err := env.Engine.Repo.GetMeeting(env.Ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Location != "Room A" || len(got.AgendaItems) != 2 {
		t.Fatalf("stored meeting mismatch: %+v", got)
	}
}

func TestScheduleMeetingRejectsDuplicate(t *testing.T) {
	env := newTestEnv(t)
	w := env.workbody(t, "Finance")
	first, _, err := env.Engine.ScheduleMeeting(env.Ctx, candidate(w, "2025-06-10", "10:00", "Room A"), "tester")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	_, _, err = env.Engine.ScheduleMeeting(env.Ctx, candidate(w, "2025-06-10", "10:00", "room a "), "tester")
	var verr *engine.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if verr.Result.IsValid || len(verr.Result.Errors) != 1 || verr.Result.Errors[0] != schedule.ErrDuplicate {
		t.Fatalf("unexpected result: %+v", verr.Result)
	}
	if verr.Duplicate == nil || verr.Duplicate.ID != first.ID {
		t.Fatalf("expected duplicate %s, got %+v", first.ID, verr.Duplicate)
	}
	dup, found, err := env.Engine.CheckDuplicate(env.Ctx, candidate(w, "2025-06-10", "10:00", "ROOM A"))
	if err != nil || !found || dup.ID != first.ID {
		t.Fatalf("check duplicate: found=%v id=%s err=%v", found, dup.ID, err)
	}
}

func TestScheduleMeetingSoftConflictWarns(t *testing.T) {
	env := newTestEnv(t)
	w := env.workbody(t, "Finance")
	if _, _, err := env.Engine.ScheduleMeeting(env.Ctx, candidate(w, "2025-06-10", "10:00", "Room A"), "tester"); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	m, warnings, err := env.Engine.ScheduleMeeting(env.Ctx, candidate(w, "2025-06-10", "10:00", "Room B"), "tester")
	if err != nil {
		t.Fatalf("soft conflict must not block: %v", err)
	}
	if m.ID == "" || len(warnings) != 1 {
		t.Fatalf("expected one warning, got %v", warnings)
	}
	other := env.workbody(t, "Audit")
	_, warnings, err = env.Engine.ScheduleMeeting(env.Ctx, candidate(other, "2025-06-10", "10:00", "Room A"), "tester")
	if err != nil || len(warnings) != 0 {
		t.Fatalf("other workbodies are unconstrained: warnings=%v err=%v", warnings, err)
	}
}

func TestScheduleMeetingPastWarning(t *testing.T) {
	env := newTestEnv(t)
	w := env.workbody(t, "Finance")
	_, warnings, err := env.Engine.ScheduleMeeting(env.Ctx, candidate(w, "2025-04-30", "10:00", "Room A"), "tester")
	if err != nil {
		t.Fatalf("past meetings are allowed: %v", err)
	}
	if len(warnings) != 1 || warnings[0] != schedule.WarnPast {
		t.Fatalf("expected past warning, got %v", warnings)
	}
}

func TestScheduleMeetingMissingFields(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.Engine.ScheduleMeeting(env.Ctx, domain.CandidateMeeting{}, "tester")
	var verr *engine.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(verr.Result.Errors) != 5 {
		t.Fatalf("expected five errors, got %v", verr.Result.Errors)
	}
	_, _, err = env.Engine.ScheduleMeeting(env.Ctx, domain.CandidateMeeting{WorkbodyID: "nope", Date: "2025-06-10", Time: "10:00", Location: "A", AgendaItems: []string{"x"}}, "tester")
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected unknown workbody, got %v", err)
	}
}

func TestValidateMeetingListsConflicts(t *testing.T) {
	env := newTestEnv(t)
	w := env.workbody(t, "Finance")
	for _, room := range []string{"Room A", "Room B"} {
		if _, _, err := env.Engine.ScheduleMeeting(env.Ctx, candidate(w, "2025-06-10", "10:00", room), "tester"); err != nil {
			t.Fatalf("schedule %s: %v", room, err)
		}
	}
	chk, err := env.Engine.ValidateMeeting(env.Ctx, candidate(w, "2025-06-10", "10:00", "Room C"))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !chk.Result.IsValid || len(chk.Result.Warnings) != 1 {
		t.Fatalf("unexpected result: %+v", chk.Result)
	}
	if len(chk.Conflicts) != 2 || chk.Duplicate != nil {
		t.Fatalf("expected two conflicts and no duplicate, got %+v", chk)
	}
	existing, _ := env.Engine.Repo.FetchExisting(env.Ctx)
	if len(existing) != 2 {
		t.Fatalf("validate must not store, got %d meetings", len(existing))
	}
}

func TestRescheduleMeeting(t *testing.T) {
	env := newTestEnv(t)
	w := env.workbody(t, "Finance")
	a, _, err := env.Engine.ScheduleMeeting(env.Ctx, candidate(w, "2025-06-10", "10:00", "Room A"), "tester")
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := env.Engine.ScheduleMeeting(env.Ctx, candidate(w, "2025-06-11", "10:00", "Room A"), "tester")
	if err != nil {
		t.Fatal(err)
	}
	// keeping its own slot is not a duplicate
	same := candidate(w, "2025-06-10", "10:00", "Room A")
	same.AgendaItems = []string{"Budget"}
	m, warnings, err := env.Engine.RescheduleMeeting(env.Ctx, a.ID, same, "tester")
	if err != nil || len(warnings) != 0 {
		t.Fatalf("reschedule in place: warnings=%v err=%v", warnings, err)
	}
	if m.CreatedAt != a.CreatedAt || m.AgendaItems[0] != "Budget" {
		t.Fatalf("unexpected meeting: %+v", m)
	}
	_, _, err = env.Engine.RescheduleMeeting(env.Ctx, a.ID, candidate(w, b.Date, b.Time, b.Location), "tester")
	var verr *engine.ValidationError
	if !errors.As(err, &verr) || verr.Duplicate == nil || verr.Duplicate.ID != b.ID {
		t.Fatalf("expected duplicate of %s, got %v", b.ID, err)
	}
	if _, _, err := env.Engine.RescheduleMeeting(env.Ctx, "missing", same, "tester"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCancelMeetingDetachesActions(t *testing.T) {
	env := newTestEnv(t)
	w := env.workbody(t, "Finance")
	m, _, err := env.Engine.ScheduleMeeting(env.Ctx, candidate(w, "2025-06-10", "10:00", "Room A"), "tester")
	if err != nil {
		t.Fatal(err)
	}
	a, err := env.Engine.CreateAction(env.Ctx, engine.ActionCreateOptions{WorkbodyID: w.ID, MeetingID: m.ID, Title: "Circulate minutes"})
	if err != nil {
		t.Fatalf("create action: %v", err)
	}
	if err := env.Engine.CancelMeeting(env.Ctx, m.ID, "tester"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := env.Engine.Repo.GetMeeting(env.Ctx, m.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected meeting removed, got %v", err)
	}
	got, err := env.Engine.Repo.GetAction(env.Ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.MeetingID != nil {
		t.Fatalf("expected action detached, got meeting %s", *got.MeetingID)
	}
	// the slot is free again
	if _, _, err := env.Engine.ScheduleMeeting(env.Ctx, candidate(w, "2025-06-10", "10:00", "Room A"), "tester"); err != nil {
		t.Fatalf("reschedule freed slot: %v", err)
	}
}

func TestActionStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	w := env.workbody(t, "Finance")
	a, err := env.Engine.CreateAction(env.Ctx, engine.ActionCreateOptions{WorkbodyID: w.ID, Title: "Draft budget", DueDate: "2025-05-15"})
	if err != nil {
		t.Fatalf("create action: %v", err)
	}
	if a.Status != "open" || a.DueDate == nil || *a.DueDate != "2025-05-15" {
		t.Fatalf("unexpected action: %+v", a)
	}
	a, err = env.Engine.UpdateAction(env.Ctx, engine.ActionUpdateOptions{ID: a.ID, Status: "in_progress", ActorID: "tester"})
	if err != nil || a.Status != "in_progress" {
		t.Fatalf("to in_progress: %v", err)
	}
	a, err = env.Engine.UpdateAction(env.Ctx, engine.ActionUpdateOptions{ID: a.ID, Status: "completed", ActorID: "tester"})
	if err != nil || a.Status != "completed" || a.CompletedAt == nil {
		t.Fatalf("to completed: %+v %v", a, err)
	}
	if _, err := env.Engine.UpdateAction(env.Ctx, engine.ActionUpdateOptions{ID: a.ID, Status: "canceled"}); err == nil {
		t.Fatalf("expected invalid transition")
	}
	a, err = env.Engine.UpdateAction(env.Ctx, engine.ActionUpdateOptions{ID: a.ID, Status: "open"})
	if err != nil || a.CompletedAt != nil {
		t.Fatalf("reopen: %+v %v", a, err)
	}
	a, err = env.Engine.UpdateAction(env.Ctx, engine.ActionUpdateOptions{ID: a.ID, Status: "completed", Force: true})
	if err != nil || a.Status != "completed" {
		t.Fatalf("forced completion: %v", err)
	}
}

func TestCreateActionValidation(t *testing.T) {
	env := newTestEnv(t)
	w := env.workbody(t, "Finance")
	other := env.workbody(t, "Audit")
	m, _, err := env.Engine.ScheduleMeeting(env.Ctx, candidate(other, "2025-06-10", "10:00", "Room A"), "tester")
	if err != nil {
		t.Fatal(err)
	}
	cases := []engine.ActionCreateOptions{
		{WorkbodyID: w.ID},
		{WorkbodyID: "missing", Title: "x"},
		{WorkbodyID: w.ID, Title: "x", MeetingID: m.ID},
		{WorkbodyID: w.ID, Title: "x", DueDate: "15/05/2025"},
	}
	for i, opts := range cases {
		if _, err := env.Engine.CreateAction(env.Ctx, opts); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestSummaryCounts(t *testing.T) {
	env := newTestEnv(t)
	w := env.workbody(t, "Finance")
	if _, _, err := env.Engine.ScheduleMeeting(env.Ctx, candidate(w, "2025-06-10", "10:00", "Room A"), "tester"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := env.Engine.ScheduleMeeting(env.Ctx, candidate(w, "2025-04-01", "10:00", "Room A"), "tester"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateAction(env.Ctx, engine.ActionCreateOptions{WorkbodyID: w.ID, Title: "late", DueDate: "2025-04-20"}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateAction(env.Ctx, engine.ActionCreateOptions{WorkbodyID: w.ID, Title: "later", DueDate: "2025-07-01"}); err != nil {
		t.Fatal(err)
	}
	s, err := env.Engine.Summary(env.Ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if s.Workbodies != 1 || s.WorkbodiesByType["committee"] != 1 {
		t.Fatalf("workbody counts: %+v", s)
	}
	if s.UpcomingMeetings != 1 {
		t.Fatalf("expected one upcoming meeting, got %d", s.UpcomingMeetings)
	}
	if s.ActionsByStatus["open"] != 2 || s.OverdueActions != 1 {
		t.Fatalf("action counts: %+v", s)
	}
}

func TestEventsRecorded(t *testing.T) {
	env := newTestEnv(t)
	w := env.workbody(t, "Finance")
	if _, _, err := env.Engine.ScheduleMeeting(env.Ctx, candidate(w, "2025-06-10", "10:00", "Room A"), "alice"); err != nil {
		t.Fatal(err)
	}
	evts, err := env.Engine.Repo.LatestEvents(env.Ctx, repo.EventFilters{OrgID: "org-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(evts) != 3 {
		t.Fatalf("expected init, workbody and meeting events, got %d", len(evts))
	}
	if evts[0].Type != "meeting.scheduled" || evts[0].ActorID != "alice" || evts[0].EntityKind != "meeting" {
		t.Fatalf("unexpected latest event: %+v", evts[0])
	}
}

func TestGrantAndRevokeRoles(t *testing.T) {
	env := newTestEnv(t)
	if err := env.Engine.GrantRole(env.Ctx, "tester", "bob", "secretary"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	who, err := env.Engine.WhoAmI(env.Ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(who.Roles) != 1 || who.Roles[0] != "secretary" {
		t.Fatalf("unexpected roles: %v", who.Roles)
	}
	if err := env.Engine.RequirePermission(env.Ctx, "bob", "meeting.write"); err != nil {
		t.Fatalf("secretary should schedule meetings: %v", err)
	}
	var forbidden auth.ForbiddenError
	if err := env.Engine.GrantRole(env.Ctx, "bob", "bob", "admin"); !errors.As(err, &forbidden) || forbidden.Permission != "rbac.manage" {
		t.Fatalf("expected rbac.manage forbidden, got %v", err)
	}
	if err := env.Engine.GrantRole(env.Ctx, "tester", "bob", "emperor"); err == nil {
		t.Fatalf("expected unknown role error")
	}
	if err := env.Engine.RevokeRole(env.Ctx, "tester", "bob", "secretary"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := env.Engine.RevokeRole(env.Ctx, "tester", "bob", "secretary"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found on second revoke, got %v", err)
	}
	if err := env.Engine.RequirePermission(env.Ctx, "bob", "meeting.read"); !errors.As(err, &forbidden) {
		t.Fatalf("expected forbidden after revoke, got %v", err)
	}
}

func TestCreateAPIKeyStoresHash(t *testing.T) {
	env := newTestEnv(t)
	key, plain, err := env.Engine.CreateAPIKey(env.Ctx, "ci-bot", "pipeline")
	if err != nil {
		t.Fatalf("create key: %v", err)
	}
	if !strings.HasPrefix(plain, "pk_") || key.KeyHash == plain {
		t.Fatalf("unexpected key material: %q %+v", plain, key)
	}
	stored, err := env.Engine.Repo.GetAPIKeyByHash(env.Ctx, repo.HashAPIKey(plain))
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if stored.ID != key.ID || stored.ActorID != "ci-bot" {
		t.Fatalf("unexpected stored key: %+v", stored)
	}
	if _, _, err := env.Engine.CreateAPIKey(env.Ctx, "", "x"); err == nil {
		t.Fatalf("expected actor required error")
	}
}
