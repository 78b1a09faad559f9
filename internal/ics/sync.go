package ics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "vnsched/internal/log"
	"vnsched/internal/metrics"
	"vnsched/internal/store"
)

// SyncOptions configures a Syncer.
type SyncOptions struct {
	// Location is the wall clock imported events are stored in.
	Location *time.Location
	// HorizonDays bounds recurrence expansion into the future.
	HorizonDays int
	// Fetcher defaults to NewFetcher(nil).
	Fetcher *Fetcher
	// Now defaults to time.Now.
	Now func() time.Time
}

// Syncer refreshes subscribed calendars into the event store. Each source
// owns the rows stored under "ics:<id>" and replaces them wholesale.
type Syncer struct {
	store   store.EventStore
	sources []Source
	opts    SyncOptions
	cron    *cron.Cron
}

func NewSyncer(st store.EventStore, sources []Source, opts SyncOptions) *Syncer {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = 60
	}
	if opts.Fetcher == nil {
		opts.Fetcher = NewFetcher(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Syncer{store: st, sources: sources, opts: opts}
}

// SourceKey is the store source tag of a subscription.
func SourceKey(id string) string { return "ics:" + id }

// SyncAll refreshes every source. A failing source does not stop the others.
func (s *Syncer) SyncAll(ctx context.Context) error {
	var errs []error
	for _, src := range s.sources {
		if _, err := s.SyncOne(ctx, src); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", src.ID, err))
		}
	}
	return errors.Join(errs...)
}

// SyncOne refreshes one source and returns how many events were stored.
func (s *Syncer) SyncOne(ctx context.Context, src Source) (int, error) {
	n, err := s.syncOne(ctx, src)
	if err != nil {
		metrics.ICSSyncTotal.WithLabelValues(src.ID, "error").Inc()
		appLog.Error("ics sync failed", err, "id", src.ID, "url", redactURL(src.URL))
		return 0, err
	}
	metrics.ICSSyncTotal.WithLabelValues(src.ID, "ok").Inc()
	metrics.ICSEvents.WithLabelValues(src.ID).Set(float64(n))
	appLog.Info("ics sync completed", "id", src.ID, "events", n)
	return n, nil
}

func (s *Syncer) syncOne(ctx context.Context, src Source) (int, error) {
	res, err := s.opts.Fetcher.FetchOne(ctx, src)
	if err != nil {
		return 0, err
	}
	parsed, err := parse(src.ID, res.Body)
	if err != nil {
		return 0, err
	}

	now := s.opts.Now().In(s.opts.Location)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.opts.Location)
	events, err := expand(parsed, ExpandConfig{
		Location:   s.opts.Location,
		RangeStart: dayStart,
		RangeEnd:   dayStart.AddDate(0, 0, s.opts.HorizonDays),
	})
	if err != nil {
		return 0, err
	}

	// A feed may repeat a UID; the store wants them unique.
	seen := make(map[string]bool, len(events))
	unique := events[:0]
	for _, ev := range events {
		if seen[ev.UID] {
			continue
		}
		seen[ev.UID] = true
		unique = append(unique, ev)
	}

	if err := s.store.ReplaceSource(ctx, SourceKey(src.ID), unique); err != nil {
		return 0, err
	}
	return len(unique), nil
}

// Start runs SyncAll once and then on the given cron schedule.
func (s *Syncer) Start(ctx context.Context, spec string) error {
	if len(s.sources) == 0 {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { _ = s.SyncAll(ctx) }); err != nil {
		return fmt.Errorf("invalid ics sync schedule %q: %w", spec, err)
	}
	s.cron = c
	go func() { _ = s.SyncAll(ctx) }()
	c.Start()
	return nil
}

// Stop halts the schedule and waits for a running refresh.
func (s *Syncer) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}
