package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"vnsched/internal/archive"
	"vnsched/internal/ics"
	appLog "vnsched/internal/log"
	"vnsched/internal/metrics"
	"vnsched/internal/model"
	"vnsched/internal/pipeline"
	"vnsched/internal/store"
)

const (
	maxJSONBody   = 1 << 20
	maxImportBody = 10 << 20
)

// eventView is the JSON shape of a stored event.
type eventView struct {
	ID              int64            `json:"id"`
	UID             string           `json:"uid"`
	Title           string           `json:"title"`
	StartTime       model.Timestamp  `json:"start_time"`
	EndTime         *model.Timestamp `json:"end_time"`
	Location        string           `json:"location"`
	ReminderMinutes int              `json:"reminder_minutes"`
	Reminded        bool             `json:"reminded"`
	Source          string           `json:"source,omitempty"`
}

func viewOf(ev model.Event) eventView {
	v := eventView{
		ID:              ev.ID,
		UID:             ev.UID,
		Title:           ev.Title,
		StartTime:       model.Timestamp{Time: ev.Start},
		Location:        ev.Location,
		ReminderMinutes: ev.ReminderMinutes,
		Reminded:        ev.Reminded,
		Source:          ev.Source,
	}
	if ev.End != nil {
		v.EndTime = &model.Timestamp{Time: *ev.End}
	}
	return v
}

func viewsOf(events []model.Event) []eventView {
	out := make([]eventView, 0, len(events))
	for _, ev := range events {
		out = append(out, viewOf(ev))
	}
	return out
}

// reference is "now" as wall clock in the configured zone.
func (s *Server) reference() time.Time {
	return s.now().In(s.cfg.Location())
}

// localWall re-expresses t's wall clock in time.Local, the zone rows are
// read back in.
func localWall(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.Local)
}

type parseRequest struct {
	Text      string `json:"text"`
	Reference string `json:"reference,omitempty"`
	UTC       bool   `json:"utc,omitempty"`
}

// handleParse runs the pipeline without storing anything.
//
// POST /api/parse {"text": "...", "reference": "2025-01-06T09:00", "utc": false}
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := pipeline.RunOptions{Reference: s.reference(), ToUTC: req.UTC}
	if req.Reference != "" {
		ts, err := model.ParseTimestamp(req.Reference)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid reference time")
			return
		}
		opts.Reference = ts.Time
	}

	rec, err := s.run(req.Text, opts)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) run(text string, opts pipeline.RunOptions) (model.EventRecord, error) {
	started := time.Now()
	rec, err := s.pipeline.Run(text, opts)
	metrics.ParseDuration.Observe(time.Since(started).Seconds())

	switch {
	case err != nil:
		metrics.ParseTotal.WithLabelValues("error").Inc()
	case rec.Complete():
		metrics.ParseTotal.WithLabelValues("complete").Inc()
	default:
		metrics.ParseTotal.WithLabelValues("incomplete").Inc()
	}
	return rec, err
}

// handleListEvents lists stored events.
//
// GET /api/events?view=today|week|month&from=...&to=...&q=...
//   - view: window relative to now; weeks run Monday to Sunday
//   - from/to: explicit window on start time, to exclusive
//   - q: case-insensitive match on title or location
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	from, to, ranged, err := s.window(q.Get("view"), q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var events []model.Event
	if ranged {
		events, err = s.store.ListRange(ctx, from, to)
	} else {
		events, err = s.store.List(ctx)
	}
	if err != nil {
		appLog.Error("api list events failed", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	if needle := strings.ToLower(strings.TrimSpace(q.Get("q"))); needle != "" {
		filtered := events[:0]
		for _, ev := range events {
			if strings.Contains(strings.ToLower(ev.Title), needle) ||
				strings.Contains(strings.ToLower(ev.Location), needle) {
				filtered = append(filtered, ev)
			}
		}
		events = filtered
	}

	writeJSON(w, http.StatusOK, viewsOf(events))
}

func (s *Server) window(view, fromStr, toStr string) (from, to time.Time, ranged bool, err error) {
	now := localWall(s.reference())
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)

	switch view {
	case "", "all":
	case "today":
		return today, today.AddDate(0, 0, 1), true, nil
	case "week":
		monday := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))
		return monday, monday.AddDate(0, 0, 7), true, nil
	case "month":
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.Local)
		return first, first.AddDate(0, 1, 0), true, nil
	default:
		return from, to, false, fmt.Errorf("unknown view %q", view)
	}

	if fromStr == "" && toStr == "" {
		return from, to, false, nil
	}
	from = time.Date(1, 1, 1, 0, 0, 0, 0, time.Local)
	to = time.Date(9999, 12, 31, 0, 0, 0, 0, time.Local)
	if fromStr != "" {
		ts, perr := model.ParseTimestamp(fromStr)
		if perr != nil {
			return from, to, false, errors.New("invalid from")
		}
		from = localWall(ts.Time)
	}
	if toStr != "" {
		ts, perr := model.ParseTimestamp(toStr)
		if perr != nil {
			return from, to, false, errors.New("invalid to")
		}
		to = localWall(ts.Time)
	}
	return from, to, true, nil
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	ev, ok := s.loadEvent(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(*ev))
}

// createRequest is either a sentence to parse or an explicit record.
type createRequest struct {
	Text string `json:"text"`
	model.EventRecord
}

type incompleteResponse struct {
	Error  string            `json:"error"`
	Record model.EventRecord `json:"record"`
}

// handleCreateEvent stores an event. Only records with a title and a start
// time are accepted; anything else is 422 with the partial record.
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec := req.EventRecord
	if strings.TrimSpace(req.Text) != "" {
		var err error
		rec, err = s.run(req.Text, pipeline.RunOptions{Reference: s.reference()})
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if !rec.Complete() {
		writeJSON(w, http.StatusUnprocessableEntity, incompleteResponse{
			Error:  "title and start time are required",
			Record: rec,
		})
		return
	}

	ev, err := model.FromRecord(rec)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := s.store.Create(r.Context(), &ev); err != nil {
		s.storeError(w, "create", err)
		return
	}
	appLog.Info("event created", "id", ev.ID, "title", ev.Title)
	writeJSON(w, http.StatusCreated, viewOf(ev))
}

// updateRequest carries the fields to change. Date, Clock and EndClock are
// free text ("20/11", "9h30") resolved the same way as parsed sentences and
// take precedence over start_time/end_time.
type updateRequest struct {
	Title           *string          `json:"title"`
	StartTime       *model.Timestamp `json:"start_time"`
	EndTime         *model.Timestamp `json:"end_time"`
	Location        *string          `json:"location"`
	ReminderMinutes *int             `json:"reminder_minutes"`

	Date     string `json:"date"`
	Clock    string `json:"time"`
	EndClock string `json:"end_clock"`
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	ev, ok := s.loadEvent(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec := ev.Record()
	if req.Title != nil {
		rec.Title = *req.Title
	}
	if req.StartTime != nil {
		rec.StartTime = req.StartTime
	}
	if req.EndTime != nil {
		rec.EndTime = req.EndTime
	}
	if req.Location != nil {
		rec.Location = req.Location
	}
	if req.ReminderMinutes != nil {
		rec.ReminderMinutes = req.ReminderMinutes
	}
	if req.Date != "" || req.Clock != "" {
		start, end, ok := s.pipeline.ResolveManual(req.Date, req.Clock, req.EndClock, s.reference())
		if !ok {
			writeError(w, http.StatusUnprocessableEntity, "could not resolve date and time")
			return
		}
		rec.StartTime, rec.EndTime = &start, end
	}

	updated, err := model.FromRecord(rec)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	updated.ID, updated.UID, updated.Source, updated.CreatedAt = ev.ID, ev.UID, ev.Source, ev.CreatedAt
	if err := s.store.Update(r.Context(), &updated); err != nil {
		s.storeError(w, "update", err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(updated))
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.storeError(w, "delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.List(r.Context())
	if err != nil {
		s.storeError(w, "export", err)
		return
	}
	data, err := archive.Export(events)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="events.json"`)
	_, _ = w.Write(data)
}

func (s *Server) handleExportICS(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.List(r.Context())
	if err != nil {
		s.storeError(w, "export", err)
		return
	}
	// Rows are wall clock; pin them to the configured zone so UTC output
	// is right whatever the host zone is.
	loc := s.cfg.Location()
	for i := range events {
		events[i].Start = inZone(events[i].Start, loc)
		if events[i].End != nil {
			end := inZone(*events[i].End, loc)
			events[i].End = &end
		}
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="events.ics"`)
	_, _ = io.WriteString(w, ics.Export(events, s.now()))
}

func inZone(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc)
}

type skippedView struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

type importResponse struct {
	Imported int           `json:"imported"`
	Skipped  []skippedView `json:"skipped"`
}

func (s *Server) handleImportJSON(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "import too large")
		return
	}
	events, skipped, err := archive.Import(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := importResponse{Skipped: make([]skippedView, 0, len(skipped))}
	for _, sk := range skipped {
		resp.Skipped = append(resp.Skipped, skippedView{Index: sk.Index, Reason: sk.Reason})
	}
	resp.Imported = s.createAll(r, events, func(i int, err error) {
		resp.Skipped = append(resp.Skipped, skippedView{Index: i, Reason: err.Error()})
	})
	writeJSON(w, http.StatusOK, resp)
}

// handleImportICS stores the events of an uploaded calendar. Recurring
// events are expanded over the configured horizon.
func (s *Server) handleImportICS(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "import too large")
		return
	}

	now := s.reference()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	events, err := ics.Import(body, ics.ExpandConfig{
		Location:   now.Location(),
		RangeStart: dayStart.AddDate(-1, 0, 0),
		RangeEnd:   dayStart.AddDate(0, 0, s.cfg.HorizonDays),
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := importResponse{Skipped: []skippedView{}}
	resp.Imported = s.createAll(r, events, func(i int, err error) {
		resp.Skipped = append(resp.Skipped, skippedView{Index: i, Reason: err.Error()})
	})
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) createAll(r *http.Request, events []model.Event, skip func(int, error)) int {
	n := 0
	for i := range events {
		if err := s.store.Create(r.Context(), &events[i]); err != nil {
			skip(i, err)
			continue
		}
		n++
	}
	appLog.Info("events imported", "imported", n, "total", len(events))
	return n
}

func (s *Server) loadEvent(w http.ResponseWriter, r *http.Request) (*model.Event, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil, false
	}
	ev, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.storeError(w, "get", err)
		return nil, false
	}
	return ev, true
}

func (s *Server) storeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "event not found")
	case errors.Is(err, store.ErrInvalidInput):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		appLog.Error("api store "+op+" failed", err)
		writeError(w, http.StatusInternalServerError, "failed to "+op+" event")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
