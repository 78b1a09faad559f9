// Package reminder delivers due reminders for stored events.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "vnsched/internal/log"
	"vnsched/internal/metrics"
	"vnsched/internal/model"
	"vnsched/internal/store"
)

// Notifier delivers one reminder.
type Notifier interface {
	Notify(ctx context.Context, ev model.Event, text string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev model.Event, text string) error

func (f NotifierFunc) Notify(ctx context.Context, ev model.Event, text string) error {
	return f(ctx, ev, text)
}

// LogNotifier writes reminders to the application log.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, ev model.Event, text string) error {
	appLog.Info("reminder", "id", ev.ID, "text", text)
	return nil
}

// Multi delivers to every notifier and fails if any of them did.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev model.Event, text string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ev, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Scanner polls the store for due reminders.
type Scanner struct {
	store    store.EventStore
	notifier Notifier
	now      func() time.Time

	mu   sync.Mutex // one Check at a time
	cron *cron.Cron
}

// NewScanner builds a Scanner. now supplies the wall clock events are
// compared against; nil means time.Now.
func NewScanner(st store.EventStore, n Notifier, now func() time.Time) *Scanner {
	if now == nil {
		now = time.Now
	}
	if n == nil {
		n = LogNotifier{}
	}
	return &Scanner{store: st, notifier: n, now: now}
}

// Check delivers every due reminder and marks it sent. An event whose
// delivery failed stays pending and is retried on the next Check.
func (s *Scanner) Check(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	due, err := s.store.DueForReminder(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to load due reminders: %w", err)
	}

	sent := 0
	for _, ev := range due {
		if err := s.notifier.Notify(ctx, ev, Format(ev)); err != nil {
			metrics.RemindersTotal.WithLabelValues("failed").Inc()
			appLog.Error("reminder delivery failed", err, "id", ev.ID)
			continue
		}
		if err := s.store.MarkReminded(ctx, ev.ID); err != nil {
			// Already delivered; it may be delivered again next time.
			appLog.Error("reminder mark failed", err, "id", ev.ID)
			continue
		}
		metrics.RemindersTotal.WithLabelValues("sent").Inc()
		sent++
	}
	return sent, nil
}

// Start runs Check on the given cron schedule until Stop.
func (s *Scanner) Start(ctx context.Context, spec string) error {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if _, err := s.Check(ctx); err != nil {
			appLog.Error("reminder check failed", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", spec, err)
	}
	s.cron = c
	c.Start()
	return nil
}

func (s *Scanner) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Format renders the reminder text shown to the user.
func Format(ev model.Event) string {
	var b strings.Builder
	b.WriteString("Sự kiện sắp diễn ra!\n")
	b.WriteString("Nội dung: " + ev.Title + "\n")
	b.WriteString("Thời gian: " + When(ev) + "\n")
	loc := ev.Location
	if loc == "" {
		loc = "Không có"
	}
	b.WriteString("Địa điểm: " + loc)
	return b.String()
}

// When renders an event's time span. A same-day end shows only its clock.
func When(ev model.Event) string {
	if ev.End == nil {
		return ev.Start.Format("15:04 ngày 02/01/2006")
	}
	end := *ev.End
	if sameDay(ev.Start, end) {
		return ev.Start.Format("15:04") + " - " + end.Format("15:04") + " ngày " + ev.Start.Format("02/01/2006")
	}
	return ev.Start.Format("15:04 02/01") + " - " + end.Format("15:04 02/01")
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
