// Package archive reads and writes the JSON exchange format for events.
package archive

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"vnsched/internal/model"
)

// ErrNotArray is returned when the document is not a JSON array.
var ErrNotArray = errors.New("archive: document must be a JSON array")

// entry is one exported event. "event" is the key older exports used for
// the title.
type entry struct {
	Title           string  `json:"title"`
	LegacyTitle     string  `json:"event,omitempty"`
	StartTime       string  `json:"start_time"`
	EndTime         *string `json:"end_time"`
	Location        *string `json:"location"`
	ReminderMinutes *int    `json:"reminder_minutes"`
}

// Export renders events as an indented JSON array. Vietnamese text is written
// as-is rather than \u-escaped.
func Export(events []model.Event) ([]byte, error) {
	out := make([]model.EventRecord, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Record())
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("encode events: %w", err)
	}
	return buf.Bytes(), nil
}

// Skipped describes an entry Import could not use.
type Skipped struct {
	Index  int
	Reason string
}

// Import parses an exported document. Entries without a title or a parsable
// start time are skipped and reported; the rest are returned ready to store.
// Reminded flags and IDs are never imported.
func Import(data []byte) ([]model.Event, []Skipped, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, nil, ErrNotArray
	}

	var entries []entry
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, nil, fmt.Errorf("decode events: %w", err)
	}

	var (
		events  []model.Event
		skipped []Skipped
	)
	for i, e := range entries {
		ev, err := e.event()
		if err != nil {
			skipped = append(skipped, Skipped{Index: i, Reason: err.Error()})
			continue
		}
		events = append(events, ev)
	}
	return events, skipped, nil
}

func (e entry) event() (model.Event, error) {
	title := strings.TrimSpace(e.Title)
	if title == "" {
		title = strings.TrimSpace(e.LegacyTitle)
	}
	if title == "" {
		return model.Event{}, errors.New("missing title")
	}
	if strings.TrimSpace(e.StartTime) == "" {
		return model.Event{}, errors.New("missing start_time")
	}
	start, err := model.ParseTimestamp(e.StartTime)
	if err != nil {
		return model.Event{}, err
	}

	rec := model.EventRecord{
		Title:           title,
		StartTime:       &start,
		Location:        e.Location,
		ReminderMinutes: e.ReminderMinutes,
	}
	if e.EndTime != nil && strings.TrimSpace(*e.EndTime) != "" {
		end, err := model.ParseTimestamp(*e.EndTime)
		if err != nil {
			return model.Event{}, err
		}
		rec.EndTime = &end
	}
	return model.FromRecord(rec)
}
