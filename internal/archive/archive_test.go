package archive

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vnsched/internal/model"
)

func TestExport(t *testing.T) {
	end := time.Date(2025, 1, 7, 11, 0, 0, 0, time.Local)
	events := []model.Event{
		{ID: 1, Title: "họp nhóm", Start: time.Date(2025, 1, 7, 10, 0, 0, 0, time.Local), End: &end, Location: "phòng 301", ReminderMinutes: 15, Reminded: true},
		{ID: 2, Title: "nộp bài", Start: time.Date(2025, 1, 8, 8, 0, 0, 0, time.Local)},
	}

	data, err := Export(events)
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, `"title": "họp nhóm"`)
	assert.Contains(t, out, "\n    {")
	assert.NotContains(t, out, `\u`)
	assert.NotContains(t, out, `"reminded"`)
	assert.NotContains(t, out, `"id"`)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "2025-01-07T10:00:00", decoded[0]["start_time"])
	assert.Equal(t, "2025-01-07T11:00:00", decoded[0]["end_time"])
	assert.Equal(t, float64(15), decoded[0]["reminder_minutes"])
	assert.Nil(t, decoded[1]["end_time"])
	assert.Nil(t, decoded[1]["location"])
}

func TestExportImportKeepsFields(t *testing.T) {
	end := time.Date(2025, 1, 7, 11, 0, 0, 0, time.Local)
	in := []model.Event{{Title: "họp", Start: time.Date(2025, 1, 7, 10, 0, 0, 0, time.Local), End: &end, Location: "a", ReminderMinutes: 5}}

	data, err := Export(in)
	require.NoError(t, err)
	out, skipped, err := Import(data)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, out, 1)
	assert.Equal(t, in[0].Title, out[0].Title)
	assert.True(t, in[0].Start.Equal(out[0].Start))
	require.NotNil(t, out[0].End)
	assert.True(t, end.Equal(*out[0].End))
	assert.Equal(t, "a", out[0].Location)
	assert.Equal(t, 5, out[0].ReminderMinutes)
}

func TestImportLegacyAndSkips(t *testing.T) {
	doc := `[
		{"event": "đi chợ", "start_time": "2025-01-07T08:00:00", "location": null, "reminder_minutes": null},
		{"title": "", "start_time": "2025-01-07T08:00:00"},
		{"title": "no start"},
		{"title": "bad start", "start_time": "mai"},
		{"title": "utc", "start_time": "2025-01-07T03:00:00Z", "end_time": ""}
	]`

	events, skipped, err := Import([]byte(doc))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "đi chợ", events[0].Title)
	assert.Equal(t, "utc", events[1].Title)
	assert.Equal(t, 10, events[1].Start.Hour())
	assert.Nil(t, events[1].End)

	require.Len(t, skipped, 3)
	assert.Equal(t, 1, skipped[0].Index)
	assert.Equal(t, "missing title", skipped[0].Reason)
	assert.Equal(t, 2, skipped[1].Index)
	assert.Equal(t, 3, skipped[2].Index)
}

func TestImportRejectsNonArray(t *testing.T) {
	_, _, err := Import([]byte(`{"title": "x"}`))
	assert.ErrorIs(t, err, ErrNotArray)

	_, _, err = Import([]byte(strings.Repeat(" ", 3)))
	assert.ErrorIs(t, err, ErrNotArray)

	_, _, err = Import([]byte(`[{"title": 1}]`))
	assert.Error(t, err)
}
