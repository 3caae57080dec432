package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"pecpulse/internal/domain"
	"pecpulse/internal/events"
)

var actionStatuses = map[string]bool{"open": true, "in_progress": true, "completed": true, "canceled": true}

// ActionCreateOptions are parameters for recording a follow-up action.
type ActionCreateOptions struct {
	ID          string
	WorkbodyID  string
	MeetingID   string
	Title       string
	Description string
	Owner       string
	DueDate     string
	ActorID     string
}

func (e Engine) CreateAction(ctx context.Context, opts ActionCreateOptions) (domain.Action, error) {
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		return domain.Action{}, errors.New("title is required")
	}
	if opts.WorkbodyID == "" {
		return domain.Action{}, errors.New("workbody_id is required")
	}
	if _, err := e.Repo.GetWorkbody(ctx, opts.WorkbodyID); err != nil {
		return domain.Action{}, err
	}
	var meetingID *string
	if opts.MeetingID != "" {
		m, err := e.Repo.GetMeeting(ctx, opts.MeetingID)
		if err != nil {
			return domain.Action{}, err
		}
		if m.WorkbodyID != opts.WorkbodyID {
			return domain.Action{}, fmt.Errorf("meeting %s does not belong to workbody %s", m.ID, opts.WorkbodyID)
		}
		meetingID = &m.ID
	}
	dueDate, err := parseDueDate(opts.DueDate)
	if err != nil {
		return domain.Action{}, err
	}
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := e.stamp()
	a := domain.Action{
		ID:          id,
		WorkbodyID:  opts.WorkbodyID,
		MeetingID:   meetingID,
		Title:       title,
		Description: opts.Description,
		Owner:       opts.Owner,
		DueDate:     dueDate,
		Status:      "open",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Action{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertAction(ctx, tx, a); err != nil {
		return domain.Action{}, err
	}
	if err := e.appendEvent(ctx, tx, "action.created", "action", a.ID, opts.ActorID, events.Payload{
		"workbody_id": a.WorkbodyID,
		"meeting_id":  a.MeetingID,
		"title":       a.Title,
		"owner":       a.Owner,
	}); err != nil {
		return domain.Action{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Action{}, err
	}
	return a, nil
}

// ActionUpdateOptions encapsulates allowed updates; nil and empty fields are untouched.
type ActionUpdateOptions struct {
	ID          string
	Title       *string
	Description *string
	Owner       *string
	DueDate     *string
	Status      string
	Force       bool
	ActorID     string
}

func (e Engine) UpdateAction(ctx context.Context, opts ActionUpdateOptions) (domain.Action, error) {
	a, err := e.Repo.GetAction(ctx, opts.ID)
	if err != nil {
		return a, err
	}
	before := a
	if opts.Title != nil {
		title := strings.TrimSpace(*opts.Title)
		if title == "" {
			return before, errors.New("title is required")
		}
		a.Title = title
	}
	if opts.Description != nil {
		a.Description = *opts.Description
	}
	if opts.Owner != nil {
		a.Owner = *opts.Owner
	}
	if opts.DueDate != nil {
		due, err := parseDueDate(*opts.DueDate)
		if err != nil {
			return before, err
		}
		a.DueDate = due
	}
	if opts.Status != "" && opts.Status != a.Status {
		if !actionStatuses[opts.Status] {
			return before, fmt.Errorf("invalid action status %s", opts.Status)
		}
		if err := ensureActionTransition(a.Status, opts.Status, opts.Force); err != nil {
			return before, err
		}
		a.Status = opts.Status
		if a.Status == "completed" {
			done := e.stamp()
			a.CompletedAt = &done
		} else {
			a.CompletedAt = nil
		}
	}
	a.UpdatedAt = e.stamp()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return before, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateAction(ctx, tx, a); err != nil {
		return before, err
	}
	evtType := "action.updated"
	payload := events.Payload{"title": a.Title}
	if before.Status != a.Status {
		evtType = "action.status_changed"
		payload = events.Payload{"from": before.Status, "to": a.Status, "force": opts.Force}
	}
	if err := e.appendEvent(ctx, tx, evtType, "action", a.ID, opts.ActorID, payload); err != nil {
		return before, err
	}
	if err := tx.Commit(); err != nil {
		return before, err
	}
	return a, nil
}

// SetActionStatus moves an action to status, honoring the transition rules unless force is set.
func (e Engine) SetActionStatus(ctx context.Context, id, status, actorID string, force bool) (domain.Action, error) {
	if status == "" {
		return domain.Action{}, errors.New("status is required")
	}
	return e.UpdateAction(ctx, ActionUpdateOptions{ID: id, Status: status, Force: force, ActorID: actorID})
}

func ensureActionTransition(oldStatus, newStatus string, force bool) error {
	if force {
		return nil
	}
	switch oldStatus {
	case "open":
		if newStatus == "in_progress" || newStatus == "canceled" {
			return nil
		}
	case "in_progress":
		if newStatus == "completed" || newStatus == "canceled" || newStatus == "open" {
			return nil
		}
	case "completed":
		if newStatus == "open" {
			return nil
		}
	}
	return fmt.Errorf("invalid action status transition %s -> %s", oldStatus, newStatus)
}

// parseDueDate accepts YYYY-MM-DD; blank clears the due date.
func parseDueDate(in string) (*string, error) {
	in = strings.TrimSpace(in)
	if in == "" {
		return nil, nil
	}
	if _, err := time.Parse("2006-01-02", in); err != nil {
		return nil, fmt.Errorf("invalid due date %q: expected YYYY-MM-DD", in)
	}
	return &in, nil
}
