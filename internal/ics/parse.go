package ics

import (
	"bytes"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "vnsched/internal/log"
)

// vevent is one VEVENT as read from a calendar, before recurrence expansion.
type vevent struct {
	UID      string
	Summary  string
	Location string

	Start  time.Time
	End    time.Time
	AllDay bool

	// ReminderMinutes comes from the first VALARM with a relative
	// "-PT..." trigger; 0 when there is none.
	ReminderMinutes int

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID of an overridden instance
}

func (v vevent) isOverride() bool { return v.Recurrence != nil }

// parse reads every VEVENT of body. A VEVENT that cannot be read is logged
// and skipped; the rest of the calendar is still returned.
func parse(sourceID string, body []byte) ([]vevent, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	events := make([]vevent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "source", sourceID, "err", perr)
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "source", sourceID, "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (vevent, error) {
	var out vevent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = strings.TrimSpace(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = strings.TrimSpace(p.Value)
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	out.AllDay = isDateValue(dtStart)

	var err error
	if out.AllDay {
		out.Start, err = ve.GetAllDayStartAt()
	} else {
		out.Start, err = ve.GetStartAt()
	}
	if err != nil {
		return out, err
	}

	if out.AllDay {
		out.End, err = ve.GetAllDayEndAt()
	} else {
		out.End, err = ve.GetEndAt()
	}
	if err != nil || !out.End.After(out.Start) {
		// No usable DTEND: an hour, or the whole day.
		if out.AllDay {
			out.End = out.Start.AddDate(0, 0, 1)
		} else {
			out.End = out.Start.Add(time.Hour)
		}
	}

	out.ReminderMinutes = alarmMinutes(ve)

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		loc := propLocation(p)
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, loc); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRecurrenceId); p != nil {
		if t, err := parseICSTime(p.Value, propLocation(p)); err == nil {
			out.Recurrence = &t
		}
	}

	return out, nil
}

// isDateValue reports VALUE=DATE or a bare YYYYMMDD value.
func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// "-PT15M", "-P1D", "-PT1H30M". Only triggers before the start count.
var triggerRe = regexp.MustCompile(`^-P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

func alarmMinutes(ve *ical.VEvent) int {
	for _, alarm := range ve.Alarms() {
		p := alarm.GetProperty(ical.ComponentPropertyTrigger)
		if p == nil {
			continue
		}
		if n, ok := parseTrigger(p.Value); ok {
			return n
		}
	}
	return 0
}

func parseTrigger(v string) (int, bool) {
	m := triggerRe.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(v)))
	if m == nil {
		return 0, false
	}
	mult := []int{7 * 24 * 60, 24 * 60, 60, 1}
	total := 0
	for i, f := range mult {
		if m[i+1] == "" {
			continue
		}
		n, _ := strconv.Atoi(m[i+1])
		total += n * f
	}
	// Seconds round up to a whole minute.
	if m[5] != "" {
		if s, _ := strconv.Atoi(m[5]); s > 0 {
			total += (s + 59) / 60
		}
	}
	return total, total > 0
}

// propLocation is the zone named by a TZID parameter, or time.Local.
func propLocation(p *ical.IANAProperty) *time.Location {
	if vs, ok := p.ICalParameters["TZID"]; ok && len(vs) == 1 {
		if loc, err := time.LoadLocation(vs[0]); err == nil {
			return loc
		}
	}
	return time.Local
}

// parseICSTime parses DATE, floating DATE-TIME and UTC DATE-TIME values.
// Floating values are read in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
