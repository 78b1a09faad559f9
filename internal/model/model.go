package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Layout is the wall-clock form used on the wire: second precision, no zone.
const Layout = "2006-01-02T15:04:05"

// Timestamp is a resolved wall-clock instant. UTC marks a value that was
// shifted to UTC on request; it is rendered with a trailing "Z".
type Timestamp struct {
	Time time.Time
	UTC  bool
}

// String renders the timestamp as ISO-8601 local wall clock, or with a "Z"
// designator when UTC is set.
func (t Timestamp) String() string {
	s := t.Time.Format(Layout)
	if t.UTC {
		s += "Z"
	}
	return s
}

// ParseTimestamp accepts the forms String produces, plus "2006-01-02 15:04"
// style values typed by hand.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	utc := strings.HasSuffix(s, "Z")
	body := strings.TrimSuffix(s, "Z")
	for _, layout := range []string{Layout, "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if tm, err := time.ParseInLocation(layout, body, time.Local); err == nil {
			return Timestamp{Time: tm, UTC: utc}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("invalid timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	ts, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = ts
	return nil
}

// EventRecord is the output of one pipeline run. Nil pointers mean "absent".
// A record without a title or start time is incomplete; callers decide
// whether to reject it.
type EventRecord struct {
	Title           string     `json:"title"`
	StartTime       *Timestamp `json:"start_time"`
	EndTime         *Timestamp `json:"end_time"`
	Location        *string    `json:"location"`
	ReminderMinutes *int       `json:"reminder_minutes"`
}

// Complete reports whether the record carries both a title and a start time.
func (r EventRecord) Complete() bool {
	return strings.TrimSpace(r.Title) != "" && r.StartTime != nil
}

// Event is a stored row. Times are local wall clock.
type Event struct {
	ID              int64      `json:"id"`
	UID             string     `json:"uid"`
	Title           string     `json:"title"`
	Start           time.Time  `json:"start_time"`
	End             *time.Time `json:"end_time,omitempty"`
	Location        string     `json:"location,omitempty"`
	ReminderMinutes int        `json:"reminder_minutes"`
	Reminded        bool       `json:"reminded"`
	// Source is "" for events typed by the user and "ics:<id>" for events
	// pulled from a subscription.
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FromRecord builds a row from a complete record. UTC timestamps are moved
// back to local wall clock.
func FromRecord(r EventRecord) (Event, error) {
	if !r.Complete() {
		return Event{}, fmt.Errorf("record needs a title and a start time")
	}
	ev := Event{
		Title: strings.TrimSpace(r.Title),
		Start: wallClock(*r.StartTime),
	}
	if r.EndTime != nil {
		end := wallClock(*r.EndTime)
		ev.End = &end
	}
	if r.Location != nil {
		ev.Location = strings.TrimSpace(*r.Location)
	}
	if r.ReminderMinutes != nil && *r.ReminderMinutes > 0 {
		ev.ReminderMinutes = *r.ReminderMinutes
	}
	return ev, nil
}

// Record converts a stored row back to its exchange shape.
func (e Event) Record() EventRecord {
	start := Timestamp{Time: e.Start}
	r := EventRecord{Title: e.Title, StartTime: &start}
	if e.End != nil {
		end := Timestamp{Time: *e.End}
		r.EndTime = &end
	}
	if e.Location != "" {
		loc := e.Location
		r.Location = &loc
	}
	if e.ReminderMinutes > 0 {
		n := e.ReminderMinutes
		r.ReminderMinutes = &n
	}
	return r
}

// UTCOffset is the fixed local offset assumed when converting to and from UTC.
const UTCOffset = 7 * time.Hour

func wallClock(ts Timestamp) time.Time {
	t := ts.Time
	if ts.UTC {
		t = t.Add(UTCOffset)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.Local)
}
