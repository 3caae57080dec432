package server

import (
	"encoding/json"

	"pecpulse/internal/domain"
	"pecpulse/internal/schedule"
)

// Request payloads

type CreateWorkbodyRequest struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

type UpdateWorkbodyRequest struct {
	Name        *string `json:"name,omitempty"`
	Type        *string `json:"type,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty" enum:"active,dormant,dissolved"`
}

// MeetingRequest is a candidate meeting as submitted by the scheduling form.
// Every field is optional on the wire so that missing fields are reported by
// the meeting validator rather than by schema validation.
type MeetingRequest struct {
	WorkbodyID           string   `json:"workbody_id,omitempty"`
	WorkbodyName         string   `json:"workbody_name,omitempty"`
	Date                 string   `json:"date,omitempty" example:"2025-06-10"`
	Time                 string   `json:"time,omitempty" example:"10:00"`
	Location             string   `json:"location,omitempty"`
	AgendaItems          []string `json:"agenda_items,omitempty"`
	NotificationFile     string   `json:"notification_file,omitempty"`
	NotificationFilePath string   `json:"notification_file_path,omitempty"`
	AgendaFile           string   `json:"agenda_file,omitempty"`
	AgendaFilePath       string   `json:"agenda_file_path,omitempty"`
}

func (m MeetingRequest) candidate() domain.CandidateMeeting {
	return domain.CandidateMeeting{
		WorkbodyID:           m.WorkbodyID,
		WorkbodyName:         m.WorkbodyName,
		Date:                 m.Date,
		Time:                 m.Time,
		Location:             m.Location,
		AgendaItems:          m.AgendaItems,
		NotificationFile:     m.NotificationFile,
		NotificationFilePath: m.NotificationFilePath,
		AgendaFile:           m.AgendaFile,
		AgendaFilePath:       m.AgendaFilePath,
	}
}

// UpdateMeetingRequest patches a stored meeting; nil fields keep their value.
type UpdateMeetingRequest struct {
	WorkbodyID           *string  `json:"workbody_id,omitempty"`
	Date                 *string  `json:"date,omitempty"`
	Time                 *string  `json:"time,omitempty"`
	Location             *string  `json:"location,omitempty"`
	AgendaItems          []string `json:"agenda_items,omitempty"`
	NotificationFile     *string  `json:"notification_file,omitempty"`
	NotificationFilePath *string  `json:"notification_file_path,omitempty"`
	AgendaFile           *string  `json:"agenda_file,omitempty"`
	AgendaFilePath       *string  `json:"agenda_file_path,omitempty"`
}

func (u UpdateMeetingRequest) apply(m domain.ScheduledMeeting) domain.CandidateMeeting {
	c := m.CandidateMeeting
	if u.WorkbodyID != nil {
		c.WorkbodyID = *u.WorkbodyID
		c.WorkbodyName = ""
	}
	setIf(&c.Date, u.Date)
	setIf(&c.Time, u.Time)
	setIf(&c.Location, u.Location)
	if u.AgendaItems != nil {
		c.AgendaItems = u.AgendaItems
	}
	setIf(&c.NotificationFile, u.NotificationFile)
	setIf(&c.NotificationFilePath, u.NotificationFilePath)
	setIf(&c.AgendaFile, u.AgendaFile)
	setIf(&c.AgendaFilePath, u.AgendaFilePath)
	return c
}

type CreateActionRequest struct {
	ID          string `json:"id,omitempty"`
	WorkbodyID  string `json:"workbody_id"`
	MeetingID   string `json:"meeting_id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Owner       string `json:"owner,omitempty"`
	DueDate     string `json:"due_date,omitempty" format:"date"`
}

type UpdateActionRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Owner       *string `json:"owner,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
	Status      string  `json:"status,omitempty" enum:"open,in_progress,completed,canceled"`
	Force       bool    `json:"force,omitempty"`
}

type ActionStatusRequest struct {
	Status string `json:"status" enum:"open,in_progress,completed,canceled"`
	Force  bool   `json:"force,omitempty"`
}

type RoleChangeRequest struct {
	ActorID string `json:"actor_id"`
	RoleID  string `json:"role_id"`
}

// Response payloads

type ScheduleMeetingResponse struct {
	Meeting  domain.ScheduledMeeting `json:"meeting"`
	Warnings []string                `json:"warnings"`
}

type ValidateMeetingResponse struct {
	schedule.Result
	Conflicts []domain.ScheduledMeeting `json:"conflicts"`
	Duplicate *domain.ScheduledMeeting  `json:"duplicate,omitempty"`
}

type DuplicateResponse struct {
	Found   bool                     `json:"found"`
	Meeting *domain.ScheduledMeeting `json:"meeting,omitempty"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	OrgID      string         `json:"org_id,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type WhoAmIResponse struct {
	ActorID     string   `json:"actor_id"`
	OrgID       string   `json:"org_id,omitempty"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	Source      string   `json:"source,omitempty"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Conversion helpers

func eventResponse(evt domain.Event) EventResponse {
	return EventResponse{
		ID:         evt.ID,
		TS:         evt.TS,
		Type:       evt.Type,
		OrgID:      evt.OrgID,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		ActorID:    evt.ActorID,
		Payload:    decodeJSONMap(evt.Payload),
	}
}

func decodeJSONMap(raw string) map[string]any {
	out := map[string]any{}
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]any{"raw": raw}
	}
	return out
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func setIf(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
