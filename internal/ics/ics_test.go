package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vnsched/internal/model"
	"vnsched/internal/store/sqlite"
)

var ict = time.FixedZone("ICT", 7*60*60)

func calendar(lines ...string) []byte {
	all := append([]string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//EN"}, lines...)
	all = append(all, "END:VCALENDAR", "")
	return []byte(strings.Join(all, "\r\n"))
}

var recurring = calendar(
	"BEGIN:VEVENT",
	"UID:standup@example.com",
	"DTSTAMP:20250101T000000Z",
	"DTSTART:20250106T020000Z",
	"DTEND:20250106T021500Z",
	"SUMMARY:standup",
	"RRULE:FREQ=DAILY;COUNT=5",
	"EXDATE:20250108T020000Z",
	"BEGIN:VALARM",
	"ACTION:DISPLAY",
	"DESCRIPTION:standup",
	"TRIGGER:-PT10M",
	"END:VALARM",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:standup@example.com",
	"DTSTAMP:20250101T000000Z",
	"RECURRENCE-ID:20250109T020000Z",
	"DTSTART:20250109T040000Z",
	"DTEND:20250109T041500Z",
	"SUMMARY:standup dời giờ",
	"END:VEVENT",
)

func TestExport(t *testing.T) {
	end := time.Date(2025, 1, 7, 11, 0, 0, 0, ict)
	events := []model.Event{
		{UID: "a@vnsched", Title: "họp nhóm", Start: time.Date(2025, 1, 7, 10, 0, 0, 0, ict), End: &end, Location: "phòng 301", ReminderMinutes: 15},
		{ID: 7, Title: "nộp bài", Start: time.Date(2025, 1, 8, 8, 0, 0, 0, ict)},
	}
	out := Export(events, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC))

	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "METHOD:PUBLISH")
	assert.Contains(t, out, "CALSCALE:GREGORIAN")
	assert.Contains(t, out, "UID:a@vnsched")
	assert.Contains(t, out, "DTSTART:20250107T030000Z")
	assert.Contains(t, out, "DTEND:20250107T040000Z")
	assert.Contains(t, out, "SUMMARY:họp nhóm")
	assert.Contains(t, out, "LOCATION:phòng 301")
	assert.Contains(t, out, "TRIGGER:-PT15M")
	assert.Contains(t, out, "ACTION:DISPLAY")
	assert.Equal(t, 1, strings.Count(out, "BEGIN:VALARM"))

	// No end: one hour.
	assert.Contains(t, out, "UID:7@vnsched")
	assert.Contains(t, out, "DTEND:20250108T020000Z")
}

func TestExportRoundTrip(t *testing.T) {
	start := time.Date(2025, 1, 7, 10, 0, 0, 0, ict)
	out := Export([]model.Event{{UID: "x@vnsched", Title: "học", Start: start, ReminderMinutes: 30}}, start)

	parsed, err := parse("test", []byte(out))
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Equal(t, "x@vnsched", parsed[0].UID)
	assert.Equal(t, "học", parsed[0].Summary)
	assert.True(t, parsed[0].Start.Equal(start))
	assert.Equal(t, 30, parsed[0].ReminderMinutes)
}

func TestParseTrigger(t *testing.T) {
	cases := map[string]int{
		"-PT15M":   15,
		"-PT1H30M": 90,
		"-P1D":     1440,
		"-P1W":     10080,
		"-PT30S":   1,
	}
	for in, want := range cases {
		got, ok := parseTrigger(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"PT15M", "-PT0M", "", "20250107T030000Z"} {
		_, ok := parseTrigger(in)
		assert.False(t, ok, in)
	}
}

func TestParseSkipsBrokenEvents(t *testing.T) {
	body := calendar(
		"BEGIN:VEVENT",
		"SUMMARY:no uid",
		"DTSTART:20250106T020000Z",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:ok",
		"SUMMARY:fine",
		"DTSTART:20250106T020000Z",
		"END:VEVENT",
	)
	parsed, err := parse("test", body)
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Equal(t, "ok", parsed[0].UID)
	assert.Equal(t, time.Hour, parsed[0].End.Sub(parsed[0].Start))

	_, err = parse("test", []byte("  "))
	assert.Error(t, err)
}

func TestExpandRecurring(t *testing.T) {
	parsed, err := parse("test", recurring)
	require.NoError(t, err)

	events, err := expand(parsed, ExpandConfig{
		Location:   ict,
		RangeStart: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, events, 4)

	uids := map[string]bool{}
	for _, ev := range events {
		uids[ev.UID] = true
		assert.Equal(t, 10, ev.ReminderMinutes)
	}
	assert.Len(t, uids, 4)

	assert.Equal(t, "2025-01-06T09:00:00", events[0].Start.Format(model.Layout))
	assert.Equal(t, "2025-01-07T09:00:00", events[1].Start.Format(model.Layout))
	// 8th is excluded, 9th is moved.
	assert.Equal(t, "2025-01-09T11:00:00", events[2].Start.Format(model.Layout))
	assert.Equal(t, "standup dời giờ", events[2].Title)
	assert.Equal(t, "2025-01-10T09:00:00", events[3].Start.Format(model.Layout))
	require.NotNil(t, events[3].End)
	assert.Equal(t, 15*time.Minute, events[3].End.Sub(events[3].Start))
}

func TestExpandWindow(t *testing.T) {
	parsed, err := parse("test", recurring)
	require.NoError(t, err)

	events, err := expand(parsed, ExpandConfig{
		Location:   ict,
		RangeStart: time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "2025-01-07T09:00:00", events[0].Start.Format(model.Layout))

	_, err = expand(parsed, ExpandConfig{
		RangeStart: time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC),
	})
	assert.Error(t, err)
}

func TestImportAllDay(t *testing.T) {
	body := calendar(
		"BEGIN:VEVENT",
		"UID:tet",
		"DTSTART;VALUE=DATE:20250129",
		"DTEND;VALUE=DATE:20250201",
		"SUMMARY:Tết",
		"END:VEVENT",
	)
	events, err := Import(body, ExpandConfig{
		Location:   ict,
		RangeStart: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "2025-01-29T00:00:00", events[0].Start.Format(model.Layout))
	require.NotNil(t, events[0].End)
	assert.Equal(t, "2025-02-01T00:00:00", events[0].End.Format(model.Layout))
}

func TestFetcherRevalidates(t *testing.T) {
	var hits, conditional int
	fail := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if fail {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			conditional++
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write(recurring)
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client())
	src := Source{ID: "work", URL: srv.URL + "/private/token.ics"}

	res, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, recurring, res.Body)

	res, err = f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, 1, conditional)
	assert.Equal(t, recurring, res.Body)

	fail = true
	res, err = f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, res.FromCache)

	_, err = f.FetchOne(context.Background(), Source{ID: "other", URL: srv.URL + "/other.ics"})
	assert.Error(t, err)
	assert.Equal(t, 4, hits)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://calendar.example.com/...(redacted)", redactURL("https://calendar.example.com/private/abc.ics?token=x"))
	assert.Equal(t, "ics://...(redacted)", redactURL("not a url"))
}

func TestSyncerReplacesSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(recurring)
	}))
	defer srv.Close()

	st, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	own := model.Event{Title: "việc riêng", Start: time.Date(2025, 1, 6, 12, 0, 0, 0, time.Local)}
	require.NoError(t, st.Create(ctx, &own))

	s := NewSyncer(st, []Source{{ID: "work", URL: srv.URL}}, SyncOptions{
		Location: time.Local,
		Fetcher:  NewFetcher(srv.Client()),
		Now:      func() time.Time { return time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC) },
	})

	require.NoError(t, s.SyncAll(ctx))
	require.NoError(t, s.SyncAll(ctx))

	all, err := st.List(ctx)
	require.NoError(t, err)
	imported := 0
	for _, ev := range all {
		if ev.Source == SourceKey("work") {
			imported++
		}
	}
	assert.Equal(t, 4, imported)
	assert.Len(t, all, 5)
}

func TestSyncerReportsFailures(t *testing.T) {
	st, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	s := NewSyncer(st, []Source{{ID: "broken", URL: "http://127.0.0.1:1/cal.ics"}}, SyncOptions{})
	err = s.SyncAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}
