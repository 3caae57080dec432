package domain

type Organization struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Workbody struct {
	ID          string `json:"id"`
	OrgID       string `json:"org_id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status" enum:"active,dormant,dissolved"`
	CreatedAt   string `json:"created_at" format:"date-time"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

// CandidateMeeting is a meeting that has not been persisted yet.
// Date is YYYY-MM-DD and Time is HH:MM or HH:MM:SS, both in the organization's zone.
type CandidateMeeting struct {
	WorkbodyID           string   `json:"workbody_id"`
	WorkbodyName         string   `json:"workbody_name"`
	Date                 string   `json:"date"`
	Time                 string   `json:"time"`
	Location             string   `json:"location"`
	AgendaItems          []string `json:"agenda_items"`
	NotificationFile     string   `json:"notification_file,omitempty"`
	NotificationFilePath string   `json:"notification_file_path,omitempty"`
	AgendaFile           string   `json:"agenda_file,omitempty"`
	AgendaFilePath       string   `json:"agenda_file_path,omitempty"`
}

type ScheduledMeeting struct {
	ID string `json:"id"`
	CandidateMeeting
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

type Action struct {
	ID          string  `json:"id"`
	WorkbodyID  string  `json:"workbody_id"`
	MeetingID   *string `json:"meeting_id,omitempty"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Owner       string  `json:"owner,omitempty"`
	DueDate     *string `json:"due_date,omitempty" format:"date"`
	Status      string  `json:"status" enum:"open,in_progress,completed,canceled"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
	CompletedAt *string `json:"completed_at,omitempty" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	OrgID      string `json:"org_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Summary holds the dashboard counters.
type Summary struct {
	OrgID            string         `json:"org_id"`
	Workbodies       int            `json:"workbodies"`
	WorkbodiesByType map[string]int `json:"workbodies_by_type"`
	UpcomingMeetings int            `json:"upcoming_meetings"`
	ActionsByStatus  map[string]int `json:"actions_by_status"`
	OverdueActions   int            `json:"overdue_actions"`
}
