package pulsesdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestScheduleMeetingSendsCandidate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v0/meetings" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("X-Api-Key"); got != "pk_test" {
			t.Errorf("api key header %q", got)
		}
		var m Meeting
		if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
			t.Errorf("decode: %v", err)
		}
		m.ID = "m-1"
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Scheduled{Meeting: m, Warnings: []string{"Meeting is scheduled in the past"}})
	}))
	defer srv.Close()

	c := New(srv.URL + "/")
	c.APIKey = "pk_test"
	got, err := c.ScheduleMeeting(context.Background(), Meeting{
		WorkbodyID:  "wb-1",
		Date:        "2025-06-10",
		Time:        "10:00",
		Location:    "Room A",
		AgendaItems: []string{"Budget"},
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if got.Meeting.ID != "m-1" || got.Meeting.Location != "Room A" || len(got.Warnings) != 1 {
		t.Fatalf("unexpected response: %+v", got)
	}
}

func TestAPIErrorCarriesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("authorization header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":{"code":"duplicate_meeting","message":"A meeting with identical details already exists","details":{"errors":["A meeting with identical details already exists"],"meeting_id":"m-1"}}}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.BearerToken = "tok"
	_, err := c.ScheduleMeeting(context.Background(), Meeting{WorkbodyID: "wb-1"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusConflict || apiErr.Code != "duplicate_meeting" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
	if errs := apiErr.Errors(); len(errs) != 1 || apiErr.Details["meeting_id"] != "m-1" {
		t.Fatalf("unexpected details: %+v", apiErr.Details)
	}
}

func TestFindDuplicateNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"found":false}`))
	}))
	defer srv.Close()

	m, err := New(srv.URL).FindDuplicate(context.Background(), Meeting{WorkbodyID: "wb-1"})
	if err != nil || m != nil {
		t.Fatalf("expected no duplicate, got %+v %v", m, err)
	}
}

func TestCalendarReturnsRawBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("workbody_id") != "wb-1" {
			t.Errorf("missing workbody filter: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"))
	}))
	defer srv.Close()

	data, err := New(srv.URL).Calendar(context.Background(), "wb-1")
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	if string(data) != "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n" {
		t.Fatalf("unexpected body %q", string(data))
	}
}

func TestEventsPageQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("limit") != "5" || q.Get("cursor") != "42" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"items":[{"id":41,"type":"meeting.scheduled"}],"next_cursor":"41"}`))
	}))
	defer srv.Close()

	page, err := New(srv.URL).EventsPage(context.Background(), 5, "42")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(page.Items) != 1 || page.NextCursor != "41" || page.Items[0].Type != "meeting.scheduled" {
		t.Fatalf("unexpected page: %+v", page)
	}
}
