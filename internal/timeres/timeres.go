// Package timeres turns a Vietnamese time phrase into a wall-clock timestamp
// relative to a reference instant.
//
// Resolution runs in three independent steps: the hour and minute, the
// period-of-day adjustment, and the date. Missing parts fall back to 08:00 and
// the reference date.
package timeres

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"vnsched/internal/model"
	"vnsched/internal/wordre"
)

// Options tune a single resolution.
type Options struct {
	// ToUTC shifts the result by the fixed local offset and marks it UTC.
	ToUTC bool
	// SameDay keeps the reference date unless the phrase names an explicit
	// dd/mm date. Used for end phrases that copied the start's day words.
	SameDay bool
}

const (
	defaultHour   = 8
	defaultMinute = 0
)

var (
	hourRe = regexp.MustCompile(`(\d{1,2})\s*(?:giờ\s*(\d{1,2})?|h\s*(\d{1,2})?|:\s*(\d{1,2})?)`)
	dateRe = regexp.MustCompile(`(\d{1,2})[/-](\d{1,2})(?:[/-](\d{4}|\d{2}))?`)

	weekdayRe = wordre.MustCompile(`(?:thứ\s*(hai|ba|tư|năm|sáu|bảy|[2-7])|chủ\s*nhật|cn)`, wordre.Both)
)

var weekdayIndex = map[string]int{
	"2": 0, "hai": 0,
	"3": 1, "ba": 1,
	"4": 2, "tư": 2,
	"5": 3, "năm": 3,
	"6": 4, "sáu": 4,
	"7": 5, "bảy": 5,
}

// Resolve returns the timestamp phrase denotes relative to ref. ok is false
// only when phrase is blank.
func Resolve(phrase string, ref time.Time, opts Options) (model.Timestamp, bool) {
	text := strings.ToLower(strings.TrimSpace(phrase))
	if text == "" {
		return model.Timestamp{}, false
	}

	hour, minute := clock(text)
	hour = applyPeriod(text, hour)

	y, m, d := resolveDate(text, ref, opts.SameDay)
	t := time.Date(y, m, d, hour, minute, 0, 0, ref.Location())

	ts := model.Timestamp{Time: t}
	if opts.ToUTC {
		ts = UTC(ts)
	}
	return ts, true
}

// UTC shifts a local timestamp back by the fixed offset. Already-UTC values
// are returned unchanged.
func UTC(ts model.Timestamp) model.Timestamp {
	if ts.UTC {
		return ts
	}
	s := ts.Time.Add(-model.UTCOffset)
	return model.Timestamp{
		Time: time.Date(s.Year(), s.Month(), s.Day(), s.Hour(), s.Minute(), s.Second(), 0, time.UTC),
		UTC:  true,
	}
}

// clock extracts "H giờ M", "HhM" or "H:M". A minute followed by "/" is the
// start of a date, not a minute.
func clock(text string) (int, int) {
	loc := hourRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return defaultHour, defaultMinute
	}
	hour, _ := strconv.Atoi(text[loc[2]:loc[3]])
	minute := defaultMinute
	for g := 2; g <= 4; g++ {
		start, end := loc[2*g], loc[2*g+1]
		if start < 0 || start == end {
			continue
		}
		if end < len(text) && text[end] == '/' {
			break
		}
		minute, _ = strconv.Atoi(text[start:end])
		break
	}
	return hour, minute
}

// applyPeriod is a heuristic, not a 12-hour conversion. The first period word
// present decides.
func applyPeriod(text string, hour int) int {
	switch {
	case strings.Contains(text, "sáng"):
	case strings.Contains(text, "trưa"):
		if hour < 11 {
			hour = 11
		}
	case strings.Contains(text, "chiều"):
		if hour < 12 {
			hour += 12
		}
	case strings.Contains(text, "tối"):
		if hour != 19 && hour < 12 {
			hour += 12
		}
	}
	return hour
}

func resolveDate(text string, ref time.Time, sameDay bool) (int, time.Month, int) {
	y, m, d := ref.Date()

	if dy, dm, dd, ok := explicitDate(text, y); ok {
		return dy, dm, dd
	}
	if sameDay {
		return y, m, d
	}

	switch {
	case strings.Contains(text, "mai"):
		return shift(ref, 1)
	case strings.Contains(text, "hôm nay"), strings.Contains(text, "hnay"):
		return y, m, d
	case strings.Contains(text, "mốt"), strings.Contains(text, "ngày kia"):
		return shift(ref, 2)
	}

	if target, ok := weekday(text); ok {
		current := mondayIndex(ref.Weekday())
		ahead := (target - current + 7) % 7
		if strings.Contains(text, "tuần sau") || strings.Contains(text, "tuần tới") {
			// A target still inside this week moves to the next one; the
			// modulo result already lands there otherwise.
			if ahead <= 6-current {
				ahead += 7
			}
		}
		return shift(ref, ahead)
	}
	return y, m, d
}

// explicitDate parses dd/mm[/yy|yyyy]. Impossible dates such as 31/4 are
// rejected as a whole.
func explicitDate(text string, refYear int) (int, time.Month, int, bool) {
	m := dateRe.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, 0, false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year := refYear
	if m[3] != "" {
		year, _ = strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return 0, 0, 0, false
	}
	return year, time.Month(month), day, true
}

func weekday(text string) (int, bool) {
	m := weekdayRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	if m[1] == "" {
		return 6, true
	}
	return weekdayIndex[m[1]], true
}

// mondayIndex maps time.Weekday to Monday=0 ... Sunday=6.
func mondayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

func shift(ref time.Time, days int) (int, time.Month, int) {
	return ref.AddDate(0, 0, days).Date()
}
