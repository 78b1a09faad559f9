package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "vnsched/internal/log"
	"vnsched/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// Location is the zone whose wall clock imported events are stored in.
	// If nil, time.Local is used.
	Location *time.Location

	// RangeStart / RangeEnd bound the occurrences kept.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps a single RRULE. Zero means
	// defaultMaxOccurrencesPerEvent.
	MaxOccurrencesPerEvent int
}

// expand turns parsed VEVENTs into stored events inside the configured
// window. Every occurrence of a recurring event gets its own UID so that
// occurrences can live side by side in the store.
func expand(events []vevent, cfg ExpandConfig) ([]model.Event, error) {
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return nil, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	bases := make(map[string][]vevent)
	overrides := make(map[string][]vevent)
	var order []string
	for _, ev := range events {
		if ev.isOverride() {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		if _, seen := bases[ev.UID]; !seen {
			order = append(order, ev.UID)
		}
		bases[ev.UID] = append(bases[ev.UID], ev)
	}

	out := make([]model.Event, 0)
	for _, uid := range order {
		for _, ev := range bases[uid] {
			if ev.RawRRule == "" {
				out = append(out, expandSingle(ev, overrides[uid], cfg)...)
				continue
			}
			occ, truncated := expandRecurring(ev, overrides[uid], cfg)
			if truncated {
				appLog.Warn("ics expand truncated", "uid", uid, "cap", cfg.MaxOccurrencesPerEvent)
			}
			out = append(out, occ...)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func expandSingle(ev vevent, overrides []vevent, cfg ExpandConfig) []model.Event {
	if !inWindow(ev.Start, cfg) {
		return nil
	}
	start, end := ev.Start, ev.End
	if o, ok := findOverride(overrides, start); ok {
		ev, start, end = o, o.Start, o.End
	}
	return []model.Event{toEvent(ev, ev.UID, start, end, cfg.Location)}
}

func expandRecurring(ev vevent, overrides []vevent, cfg ExpandConfig) ([]model.Event, bool) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("ics expand: bad RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	loc := ev.Start.Location()
	times := set.Between(cfg.RangeStart.In(loc), cfg.RangeEnd.In(loc), true)

	truncated := false
	if len(times) > cfg.MaxOccurrencesPerEvent {
		times = times[:cfg.MaxOccurrencesPerEvent]
		truncated = true
	}

	dur := ev.End.Sub(ev.Start)
	out := make([]model.Event, 0, len(times))
	for _, occStart := range times {
		base, start, end := ev, occStart, occStart.Add(dur)
		if o, ok := findOverride(overrides, occStart); ok {
			base, start, end = o, o.Start, o.End
			if base.ReminderMinutes == 0 {
				base.ReminderMinutes = ev.ReminderMinutes
			}
		}
		uid := ev.UID + "#" + occStart.UTC().Format("20060102T150405Z")
		out = append(out, toEvent(base, uid, start, end, cfg.Location))
	}
	return out, truncated
}

// findOverride returns the override whose RECURRENCE-ID is start.
func findOverride(overrides []vevent, start time.Time) (vevent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return vevent{}, false
}

func inWindow(start time.Time, cfg ExpandConfig) bool {
	return !start.Before(cfg.RangeStart) && !start.After(cfg.RangeEnd)
}

func toEvent(ev vevent, uid string, start, end time.Time, loc *time.Location) model.Event {
	s, e := start.In(loc), end.In(loc)
	if ev.AllDay {
		// All-day dates keep their calendar day whatever the zone.
		days := int(end.Sub(start).Hours()+12) / 24
		if days < 1 {
			days = 1
		}
		s = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
		e = s.AddDate(0, 0, days)
	}
	title := ev.Summary
	if title == "" {
		title = "(không tiêu đề)"
	}
	return model.Event{
		UID:             uid,
		Title:           title,
		Start:           s,
		End:             &e,
		Location:        ev.Location,
		ReminderMinutes: ev.ReminderMinutes,
	}
}
