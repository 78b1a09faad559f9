// Package pipeline turns one Vietnamese sentence into an EventRecord.
//
// The stages run in a fixed order: normalize, restore diacritics, extract
// entities, apply the title/offset rules, then resolve the start and end
// phrases. A Pipeline holds only read-only tables and is safe for concurrent
// use.
package pipeline

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"vnsched/internal/entity"
	appLog "vnsched/internal/log"
	"vnsched/internal/model"
	"vnsched/internal/rules"
	"vnsched/internal/textnorm"
	"vnsched/internal/timeres"
)

// ErrInvalidInput is returned when the raw text is not valid UTF-8. It is a
// caller error, distinct from a sentence that could not be parsed.
var ErrInvalidInput = errors.New("pipeline: input is not valid UTF-8")

// Pipeline parses sentences into event records.
type Pipeline struct {
	restorer *textnorm.Restorer
	ents     *entity.Extractor
	rules    *rules.Extractor
	now      func() time.Time

	tagger     entity.Tagger
	dictionary map[string]string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTagger injects the statistical tagger. Without one only the regex
// fallback contributes candidates.
func WithTagger(t entity.Tagger) Option {
	return func(p *Pipeline) { p.tagger = t }
}

// WithClock overrides time.Now as the default reference instant.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithDictionary replaces the bundled abbreviation dictionary.
func WithDictionary(dict map[string]string) Option {
	return func(p *Pipeline) { p.dictionary = dict }
}

// New builds a Pipeline with the bundled tables.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	if p.dictionary != nil {
		p.restorer = textnorm.NewRestorerWithDictionary(p.dictionary)
	} else {
		p.restorer = textnorm.NewRestorer()
	}
	p.ents = entity.NewExtractor(p.tagger, nil)
	p.rules = rules.New(p.ents)
	return p
}

// RunOptions are per-call settings. A zero Reference means "now".
type RunOptions struct {
	Reference time.Time
	ToUTC     bool
}

// Run parses raw. It only fails on ErrInvalidInput; a sentence it cannot
// make sense of yields a record with absent fields.
func (p *Pipeline) Run(raw string, opts RunOptions) (model.EventRecord, error) {
	if !utf8.ValidString(raw) {
		return model.EventRecord{}, ErrInvalidInput
	}
	ref := opts.Reference
	if ref.IsZero() {
		ref = p.now()
	}

	text := p.restorer.Restore(textnorm.Normalize(raw))
	ents := p.ents.Extract(text)
	rr := p.rules.Extract(text)
	appLog.Debug("pipeline entities", "text", text, "time", ents.Time, "end", ents.EndTime, "location", ents.Location)

	rec := model.EventRecord{
		Title:           rr.Title,
		ReminderMinutes: rr.ReminderMinutes,
	}

	start, ok := timeres.Resolve(ents.Time, ref, timeres.Options{})
	if ok {
		rec.StartTime = &start
	}
	if ents.EndTime != "" {
		// The end is read relative to the start so "đến 9h tối" lands on the
		// start's day.
		endRef := ref
		if ok {
			endRef = start.Time
		}
		if end, ok := timeres.Resolve(ents.EndTime, endRef, timeres.Options{SameDay: ents.EndInherited}); ok {
			rec.EndTime = &end
		}
	}

	loc := ents.Location
	if loc == "" && strings.Contains(text, "ở") {
		if locs := p.ents.Scanner().Locations(text); len(locs) > 0 {
			loc = locs[0]
		}
	}
	if loc != "" {
		rec.Location = &loc
	}

	if opts.ToUTC {
		if rec.StartTime != nil {
			s := timeres.UTC(*rec.StartTime)
			rec.StartTime = &s
		}
		if rec.EndTime != nil {
			e := timeres.UTC(*rec.EndTime)
			rec.EndTime = &e
		}
	}
	return rec, nil
}

// ResolveManual resolves hand-edited fields: a date ("20/11/2025"), a start
// clock ("9h30") and an optional end clock. The end is read on the start's
// date. ok is false when date or clock is blank.
func (p *Pipeline) ResolveManual(date, clock, endClock string, ref time.Time) (start model.Timestamp, end *model.Timestamp, ok bool) {
	date, clock, endClock = strings.TrimSpace(date), strings.TrimSpace(clock), strings.TrimSpace(endClock)
	if date == "" || clock == "" {
		return model.Timestamp{}, nil, false
	}
	if ref.IsZero() {
		ref = p.now()
	}
	start, ok = timeres.Resolve(date+" "+clock, ref, timeres.Options{})
	if !ok {
		return model.Timestamp{}, nil, false
	}
	if endClock != "" {
		if e, eok := timeres.Resolve(date+" "+endClock, start.Time, timeres.Options{SameDay: true}); eok {
			end = &e
		}
	}
	return start, end, true
}
