package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampString(t *testing.T) {
	tm := time.Date(2025, 1, 7, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-01-07T10:00:00", Timestamp{Time: tm}.String())
	assert.Equal(t, "2025-01-07T10:00:00Z", Timestamp{Time: tm, UTC: true}.String())
}

func TestParseTimestamp(t *testing.T) {
	for _, in := range []string{"2025-01-07T10:00:00", "2025-01-07T10:00", "2025-01-07 10:00:00", "2025-01-07 10:00"} {
		ts, err := ParseTimestamp(in)
		require.NoError(t, err, in)
		assert.Equal(t, "2025-01-07T10:00:00", ts.String())
		assert.False(t, ts.UTC)
	}

	ts, err := ParseTimestamp("2025-01-07T03:00:00Z")
	require.NoError(t, err)
	assert.True(t, ts.UTC)

	_, err = ParseTimestamp("mai")
	assert.Error(t, err)
}

func TestEventRecordJSON(t *testing.T) {
	start, _ := ParseTimestamp("2025-01-07T10:00:00")
	loc := "phòng 301"
	n := 15
	rec := EventRecord{Title: "họp nhóm", StartTime: &start, Location: &loc, ReminderMinutes: &n}

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"họp nhóm","start_time":"2025-01-07T10:00:00","end_time":null,"location":"phòng 301","reminder_minutes":15}`, string(data))

	var back EventRecord
	require.NoError(t, json.Unmarshal(data, &back))
	require.NotNil(t, back.StartTime)
	assert.Equal(t, start.String(), back.StartTime.String())
	assert.Nil(t, back.EndTime)
}

func TestFromRecord(t *testing.T) {
	start, _ := ParseTimestamp("2025-01-07T03:00:00Z")
	zero := 0
	ev, err := FromRecord(EventRecord{Title: " họp ", StartTime: &start, ReminderMinutes: &zero})
	require.NoError(t, err)

	assert.Equal(t, "họp", ev.Title)
	assert.Equal(t, "2025-01-07T10:00:00", ev.Start.Format(Layout))
	assert.Zero(t, ev.ReminderMinutes)

	back := ev.Record()
	assert.Nil(t, back.ReminderMinutes)
	assert.Nil(t, back.Location)

	_, err = FromRecord(EventRecord{Title: "họp"})
	assert.Error(t, err)
}
