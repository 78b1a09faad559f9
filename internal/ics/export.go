// Package ics reads and writes iCalendar data: export of stored events,
// and subscription import with recurrence expansion.
package ics

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"vnsched/internal/model"
)

const productID = "-//vnsched//Vietnamese Event Scheduler//VI"

// Export renders events as a VCALENDAR. Events without an end last one
// hour; a positive reminder becomes a DISPLAY alarm.
func Export(events []model.Event, now time.Time) string {
	cal := ical.NewCalendarFor("vnsched")
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)
	cal.SetCalscale("GREGORIAN")

	for _, ev := range events {
		uid := ev.UID
		if uid == "" {
			uid = fmt.Sprintf("%d@vnsched", ev.ID)
		}
		vev := cal.AddEvent(uid)
		vev.SetDtStampTime(now)
		vev.SetStartAt(ev.Start)
		if ev.End != nil {
			vev.SetEndAt(*ev.End)
		} else {
			vev.SetEndAt(ev.Start.Add(time.Hour))
		}
		vev.SetSummary(ev.Title)
		if ev.Location != "" {
			vev.SetLocation(ev.Location)
		}
		if ev.ReminderMinutes > 0 {
			alarm := vev.AddAlarm()
			alarm.SetAction(ical.ActionDisplay)
			alarm.SetProperty(ical.ComponentPropertyDescription, ev.Title)
			alarm.SetTrigger(fmt.Sprintf("-PT%dM", ev.ReminderMinutes))
		}
	}
	return cal.Serialize()
}

// Import parses an uploaded calendar and expands it inside cfg's window.
func Import(body []byte, cfg ExpandConfig) ([]model.Event, error) {
	parsed, err := parse("upload", body)
	if err != nil {
		return nil, err
	}
	return expand(parsed, cfg)
}
