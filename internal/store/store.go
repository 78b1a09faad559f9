// Package store defines persistence for parsed events.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vnsched/internal/model"
)

var (
	// ErrNotFound is returned when no event has the requested ID.
	ErrNotFound = errors.New("store: event not found")
	// ErrInvalidInput is returned for rows that cannot be stored, such as an
	// event without a title or start time.
	ErrInvalidInput = errors.New("store: invalid input")
)

// EventStore is the event repository. Times are local wall clock.
type EventStore interface {
	// Create inserts ev and fills in its ID, UID (when empty) and CreatedAt.
	Create(ctx context.Context, ev *model.Event) error

	// Update replaces the editable fields of ev.ID and clears its reminded
	// flag so an edited reminder fires again.
	Update(ctx context.Context, ev *model.Event) error

	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*model.Event, error)

	// List returns every event ordered by start time.
	List(ctx context.Context) ([]model.Event, error)

	// ListRange returns events starting in [from, to), ordered by start time.
	ListRange(ctx context.Context, from, to time.Time) ([]model.Event, error)

	// DueForReminder returns events not yet reminded, with a positive lead
	// time, that have not started and whose reminder window has opened.
	DueForReminder(ctx context.Context, now time.Time) ([]model.Event, error)

	MarkReminded(ctx context.Context, id int64) error

	// ReplaceSource atomically swaps every event of source for events.
	ReplaceSource(ctx context.Context, source string, events []model.Event) error

	Close() error
}

// Validate checks the fields every stored event needs.
func Validate(ev *model.Event) error {
	switch {
	case ev == nil:
		return ErrInvalidInput
	case ev.Title == "":
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	case ev.Start.IsZero():
		return fmt.Errorf("%w: start time is required", ErrInvalidInput)
	case ev.ReminderMinutes < 0:
		return fmt.Errorf("%w: reminder minutes must not be negative", ErrInvalidInput)
	}
	return nil
}
