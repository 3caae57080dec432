// Package calendar renders scheduled meetings as an iCalendar feed.
package calendar

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"pecpulse/internal/domain"
	"pecpulse/internal/schedule"
)

const productID = "-//PEC//pulse//EN"

// Options controls how meetings are rendered.
type Options struct {
	OrgID    string
	Name     string         // X-WR-CALNAME, optional
	Location *time.Location // zone meeting dates and times are written in
	Duration time.Duration  // assumed meeting length, one hour when zero
	Now      time.Time      // DTSTAMP, current time when zero
}

// Export builds a VCALENDAR with one VEVENT per meeting. Meetings whose date or
// time cannot be parsed are skipped and returned in the second value.
func Export(meetings []domain.ScheduledMeeting, opts Options) ([]byte, []domain.ScheduledMeeting) {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	dur := opts.Duration
	if dur <= 0 {
		dur = time.Hour
	}
	stamp := opts.Now
	if stamp.IsZero() {
		stamp = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}

	var skipped []domain.ScheduledMeeting
	for _, m := range meetings {
		start, ok := schedule.ParseStart(m.Date, m.Time, loc)
		if !ok {
			skipped = append(skipped, m)
			continue
		}
		ev := cal.AddEvent(UID(m.ID, opts.OrgID))
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(start)
		ev.SetEndAt(start.Add(dur))
		ev.SetSummary(m.WorkbodyName)
		ev.SetLocation(m.Location)
		if len(m.AgendaItems) > 0 {
			ev.SetDescription(strings.Join(m.AgendaItems, "\n"))
		}
	}
	return []byte(cal.Serialize()), skipped
}

// UID is the stable event identifier for a meeting.
func UID(meetingID, orgID string) string {
	if orgID == "" {
		return meetingID
	}
	return fmt.Sprintf("%s@%s", meetingID, orgID)
}
