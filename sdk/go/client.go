package pulsesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Pulse HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Workbody is a committee, working group or task force.
type Workbody struct {
	ID          string `json:"id"`
	OrgID       string `json:"org_id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
}

// Meeting is both the candidate sent for scheduling and the stored meeting.
type Meeting struct {
	ID                   string   `json:"id,omitempty"`
	WorkbodyID           string   `json:"workbody_id,omitempty"`
	WorkbodyName         string   `json:"workbody_name,omitempty"`
	Date                 string   `json:"date,omitempty"`
	Time                 string   `json:"time,omitempty"`
	Location             string   `json:"location,omitempty"`
	AgendaItems          []string `json:"agenda_items,omitempty"`
	NotificationFile     string   `json:"notification_file,omitempty"`
	NotificationFilePath string   `json:"notification_file_path,omitempty"`
	AgendaFile           string   `json:"agenda_file,omitempty"`
	AgendaFilePath       string   `json:"agenda_file_path,omitempty"`
}

// Scheduled is returned by ScheduleMeeting and RescheduleMeeting.
type Scheduled struct {
	Meeting  Meeting  `json:"meeting"`
	Warnings []string `json:"warnings"`
}

// Validation is the dry-run outcome for a candidate meeting.
type Validation struct {
	IsValid   bool      `json:"is_valid"`
	Errors    []string  `json:"errors"`
	Warnings  []string  `json:"warnings"`
	Conflicts []Meeting `json:"conflicts"`
	Duplicate *Meeting  `json:"duplicate,omitempty"`
}

// Action is a follow-up owned by a workbody.
type Action struct {
	ID          string  `json:"id"`
	WorkbodyID  string  `json:"workbody_id"`
	MeetingID   *string `json:"meeting_id,omitempty"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Owner       string  `json:"owner,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
	Status      string  `json:"status"`
	CompletedAt *string `json:"completed_at,omitempty"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	OrgID      string         `json:"org_id"`
	EntityID   string         `json:"entity_id"`
	EntityKind string         `json:"entity_kind"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// Principal is the caller as seen by the server.
type Principal struct {
	ActorID     string   `json:"actor_id"`
	OrgID       string   `json:"org_id"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	Source      string   `json:"source"`
}

// APIError wraps non-2xx responses. Code and Details are filled from the
// error envelope when the body carries one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]any
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Errors returns the meeting validation errors carried by a 409 or 422.
func (e *APIError) Errors() []string {
	raw, _ := e.Details["errors"].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// CreateWorkbody creates a workbody; an empty type selects the first configured one.
func (c *Client) CreateWorkbody(ctx context.Context, name, wbType string) (Workbody, error) {
	body := map[string]any{"name": name}
	if wbType != "" {
		body["type"] = wbType
	}
	var resp Workbody
	err := c.do(ctx, http.MethodPost, "workbodies", body, &resp)
	return resp, err
}

func (c *Client) ListWorkbodies(ctx context.Context) ([]Workbody, error) {
	var resp []Workbody
	err := c.do(ctx, http.MethodGet, "workbodies", nil, &resp)
	return resp, err
}

// ScheduleMeeting validates and stores m. A rejected meeting comes back as
// *APIError with status 422, or 409 for an exact duplicate.
func (c *Client) ScheduleMeeting(ctx context.Context, m Meeting) (Scheduled, error) {
	var resp Scheduled
	err := c.do(ctx, http.MethodPost, "meetings", m, &resp)
	return resp, err
}

// RescheduleMeeting sends only the non-empty fields of patch.
func (c *Client) RescheduleMeeting(ctx context.Context, id string, patch Meeting) (Scheduled, error) {
	patch.ID = ""
	var resp Scheduled
	err := c.do(ctx, http.MethodPatch, "meetings/"+url.PathEscape(id), patch, &resp)
	return resp, err
}

func (c *Client) CancelMeeting(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "meetings/"+url.PathEscape(id), nil, nil)
}

func (c *Client) GetMeeting(ctx context.Context, id string) (Meeting, error) {
	var resp Meeting
	err := c.do(ctx, http.MethodGet, "meetings/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ListMeetings lists meetings, optionally for one workbody.
func (c *Client) ListMeetings(ctx context.Context, workbodyID string) ([]Meeting, error) {
	endpoint := "meetings"
	if workbodyID != "" {
		endpoint += "?workbody_id=" + url.QueryEscape(workbodyID)
	}
	var resp []Meeting
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ValidateMeeting runs the scheduling checks without saving.
func (c *Client) ValidateMeeting(ctx context.Context, m Meeting) (Validation, error) {
	var resp Validation
	err := c.do(ctx, http.MethodPost, "meetings/validate", m, &resp)
	return resp, err
}

// FindDuplicate returns the stored meeting identical to m, if any.
func (c *Client) FindDuplicate(ctx context.Context, m Meeting) (*Meeting, error) {
	var resp struct {
		Found   bool     `json:"found"`
		Meeting *Meeting `json:"meeting"`
	}
	if err := c.do(ctx, http.MethodPost, "meetings/duplicate", m, &resp); err != nil {
		return nil, err
	}
	if !resp.Found {
		return nil, nil
	}
	return resp.Meeting, nil
}

// Calendar downloads the iCalendar feed.
func (c *Client) Calendar(ctx context.Context, workbodyID string) ([]byte, error) {
	endpoint := "meetings/calendar.ics"
	if workbodyID != "" {
		endpoint += "?workbody_id=" + url.QueryEscape(workbodyID)
	}
	var buf bytes.Buffer
	err := c.do(ctx, http.MethodGet, endpoint, nil, &buf)
	return buf.Bytes(), err
}

// CreateAction records a follow-up; meetingID and dueDate may be empty.
func (c *Client) CreateAction(ctx context.Context, workbodyID, meetingID, title, dueDate string) (Action, error) {
	body := map[string]any{"workbody_id": workbodyID, "title": title}
	if meetingID != "" {
		body["meeting_id"] = meetingID
	}
	if dueDate != "" {
		body["due_date"] = dueDate
	}
	var resp Action
	err := c.do(ctx, http.MethodPost, "actions", body, &resp)
	return resp, err
}

func (c *Client) SetActionStatus(ctx context.Context, id, status string, force bool) (Action, error) {
	var resp Action
	err := c.do(ctx, http.MethodPost, "actions/"+url.PathEscape(id)+"/status", map[string]any{"status": status, "force": force}, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Me returns the authenticated principal.
func (c *Client) Me(ctx context.Context) (Principal, error) {
	var resp Principal
	err := c.do(ctx, http.MethodGet, "me", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/v0/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return newAPIError(resp.StatusCode, b)
	}
	switch dst := out.(type) {
	case nil:
		return nil
	case *bytes.Buffer:
		_, err := io.Copy(dst, resp.Body)
		return err
	default:
		return json.NewDecoder(resp.Body).Decode(out)
	}
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: string(body)}
	var env struct {
		Error struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &env) == nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
		apiErr.Details = env.Error.Details
	}
	return apiErr
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
