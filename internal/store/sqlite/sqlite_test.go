package sqlite

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vnsched/internal/model"
	"vnsched/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func at(hour, minute int) time.Time {
	return time.Date(2025, 1, 7, hour, minute, 0, 0, time.Local)
}

func TestCreateGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	end := at(11, 0)
	ev := &model.Event{Title: "họp nhóm", Start: at(10, 0), End: &end, Location: "phòng 301", ReminderMinutes: 15}
	require.NoError(t, s.Create(ctx, ev))
	assert.NotZero(t, ev.ID)
	assert.True(t, strings.HasSuffix(ev.UID, "@vnsched"))

	got, err := s.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "họp nhóm", got.Title)
	assert.True(t, got.Start.Equal(at(10, 0)))
	require.NotNil(t, got.End)
	assert.True(t, got.End.Equal(end))
	assert.Equal(t, "phòng 301", got.Location)
	assert.Equal(t, 15, got.ReminderMinutes)
	assert.False(t, got.Reminded)
}

func TestCreateRejectsIncomplete(t *testing.T) {
	s := newTestStore(t)

	err := s.Create(context.Background(), &model.Event{Start: at(9, 0)})
	assert.True(t, errors.Is(err, store.ErrInvalidInput))
}

func TestNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, 42)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, 42), store.ErrNotFound)
	assert.ErrorIs(t, s.MarkReminded(ctx, 42), store.ErrNotFound)
	assert.ErrorIs(t, s.Update(ctx, &model.Event{ID: 42, Title: "x", Start: at(9, 0)}), store.ErrNotFound)
}

func TestListOrderAndRange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, ev := range []*model.Event{
		{Title: "c", Start: at(15, 0)},
		{Title: "a", Start: at(8, 0)},
		{Title: "b", Start: at(10, 30)},
	} {
		require.NoError(t, s.Create(ctx, ev))
	}

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{all[0].Title, all[1].Title, all[2].Title})

	morning, err := s.ListRange(ctx, at(8, 0), at(12, 0))
	require.NoError(t, err)
	require.Len(t, morning, 2)
	assert.Equal(t, "a", morning[0].Title)
	assert.Equal(t, "b", morning[1].Title)
}

func TestDueForReminder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	due := &model.Event{Title: "due", Start: at(10, 0), ReminderMinutes: 15}
	early := &model.Event{Title: "early", Start: at(11, 0), ReminderMinutes: 15}
	noReminder := &model.Event{Title: "none", Start: at(10, 0)}
	past := &model.Event{Title: "past", Start: at(9, 0), ReminderMinutes: 15}
	for _, ev := range []*model.Event{due, early, noReminder, past} {
		require.NoError(t, s.Create(ctx, ev))
	}

	now := at(9, 50)
	got, err := s.DueForReminder(ctx, now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "due", got[0].Title)

	require.NoError(t, s.MarkReminded(ctx, due.ID))
	got, err = s.DueForReminder(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, got)

	// Editing resets the reminded flag.
	due.Title = "due again"
	require.NoError(t, s.Update(ctx, due))
	got, err = s.DueForReminder(ctx, now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "due again", got[0].Title)
}

func TestDueForReminderWindowEdge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, &model.Event{Title: "x", Start: at(10, 0), ReminderMinutes: 15}))

	got, err := s.DueForReminder(ctx, at(9, 45))
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = s.DueForReminder(ctx, at(9, 44))
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.DueForReminder(ctx, at(10, 0))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReplaceSource(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, &model.Event{Title: "mine", Start: at(8, 0)}))
	require.NoError(t, s.ReplaceSource(ctx, "ics:work", []model.Event{
		{UID: "a@x", Title: "standup", Start: at(9, 0), ReminderMinutes: 5},
		{UID: "b@x", Title: "review", Start: at(14, 0)},
	}))

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.NoError(t, s.MarkReminded(ctx, all[1].ID))

	require.NoError(t, s.ReplaceSource(ctx, "ics:work", []model.Event{
		{UID: "a@x", Title: "standup", Start: at(9, 0), ReminderMinutes: 5},
	}))

	all, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "mine", all[0].Title)
	assert.Equal(t, "", all[0].Source)
	assert.Equal(t, "standup", all[1].Title)
	assert.Equal(t, "ics:work", all[1].Source)
	assert.True(t, all[1].Reminded)
}
