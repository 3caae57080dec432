package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default("pec")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Organization.ID != "pec" {
		t.Fatalf("org id = %q", cfg.Organization.ID)
	}
	if !cfg.HasWorkbodyType("task_force") {
		t.Fatalf("expected task_force type")
	}
	if cfg.MeetingDuration() != time.Hour {
		t.Fatalf("duration = %s", cfg.MeetingDuration())
	}
	if cfg.Location() != time.Local {
		t.Fatalf("expected local zone")
	}
}

func TestPermissionsUnion(t *testing.T) {
	cfg := Default("pec")
	perms := cfg.Permissions([]string{"viewer", "secretary", "unknown"})
	want := map[string]bool{"meeting.write": true, "workbody.read": true, "event.read": true}
	got := map[string]bool{}
	for _, p := range perms {
		if got[p] {
			t.Fatalf("duplicate permission %s", p)
		}
		got[p] = true
	}
	for p := range want {
		if !got[p] {
			t.Fatalf("missing %s in %v", p, perms)
		}
	}
	if got["rbac.manage"] {
		t.Fatalf("secretary must not manage rbac")
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"missing org":  "organization:\n  id: \"\"\nworkbodies:\n  types: [committee]\n",
		"bad timezone": "organization:\n  id: pec\n  timezone: Mars/Olympus\nworkbodies:\n  types: [committee]\n",
		"no types":     "organization:\n  id: pec\n",
		"dup types":    "organization:\n  id: pec\nworkbodies:\n  types: [committee, committee]\n",
		"no admin":     "organization:\n  id: pec\nworkbodies:\n  types: [committee]\nrbac:\n  roles:\n    viewer:\n      permissions: [meeting.read]\n",
		"webhook url":  "organization:\n  id: pec\nworkbodies:\n  types: [committee]\nwebhooks:\n  - events: [meeting.scheduled]\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := FromYAML([]byte(doc)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestTimezone(t *testing.T) {
	cfg, err := FromYAML([]byte("organization:\n  id: pec\n  timezone: UTC\nworkbodies:\n  types: [committee]\nmeetings:\n  default_duration_minutes: 90\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Location().String() != "UTC" {
		t.Fatalf("location = %s", cfg.Location())
	}
	if cfg.MeetingDuration() != 90*time.Minute {
		t.Fatalf("duration = %s", cfg.MeetingDuration())
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	if err != nil || cfg != nil {
		t.Fatalf("expected nil,nil got %v,%v", cfg, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "pulse.yml"), []byte(GenerateDefault("pec")), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadOptional(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Organization.ID != "pec" {
		t.Fatalf("org id = %q", cfg.Organization.ID)
	}
	if _, err := Load(t.TempDir()); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}
