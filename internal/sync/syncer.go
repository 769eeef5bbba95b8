package sync

import (
	"context"
	"errors"
	"sort"
	"time"

	goical "github.com/emersion/go-ical"
	"github.com/sirupsen/logrus"

	"github.com/jooooscha/minicaldav/caldav"
)

// Source fetches the events of a calendar. *caldav.Client implements it.
type Source interface {
	FetchEventsInRange(ctx context.Context, cal caldav.Calendar, start, end time.Time) ([]caldav.Event, []*caldav.ResourceError, error)
}

// Report describes what changed in one calendar since the previous sync.
type Report struct {
	Calendar caldav.Calendar

	// Unchanged is set when the calendar's ctag matched the stored one and
	// nothing was fetched.
	Unchanged bool

	// Hrefs of calendar object resources, sorted.
	Added   []string
	Changed []string
	Removed []string

	// Events holds every event fetched this run.
	Events []caldav.Event
	Failed []*caldav.ResourceError

	// Err is set when the calendar could not be fetched at all. Its stored
	// state is left untouched.
	Err error
}

// Empty reports whether nothing was added, changed or removed.
func (r Report) Empty() bool {
	return len(r.Added) == 0 && len(r.Changed) == 0 && len(r.Removed) == 0
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithWindow limits fetching to whole weeks around the current one:
// weeksPast weeks before it and weeks weeks starting with it. Zero weeks
// means no limit.
func WithWindow(weeks, weeksPast int) Option {
	return func(s *Syncer) {
		s.windowWeeks = weeks
		s.windowWeeksPast = weeksPast
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) {
		s.now = now
	}
}

// Syncer detects changes in calendars between runs using ctags and etags.
type Syncer struct {
	source Source
	store  StateStore
	log    *logrus.Entry

	windowWeeks     int
	windowWeeksPast int
	now             func() time.Time
}

// NewSyncer creates a new Syncer instance.
func NewSyncer(source Source, store StateStore, log *logrus.Entry, opts ...Option) *Syncer {
	s := &Syncer{
		source: source,
		store:  store,
		log:    log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Window returns the time range fetched for each calendar. Both times are
// zero when no window is configured.
func (s *Syncer) Window() (time.Time, time.Time) {
	if s.windowWeeks == 0 {
		return time.Time{}, time.Time{}
	}

	now := s.now()

	// Find the start of the current week (Monday)
	weekday := int(now.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday = 7
	}
	startOfCurrentWeek := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	startOfCurrentWeek = startOfCurrentWeek.AddDate(0, 0, -(weekday - 1))

	// The window ends at the Monday after the last included week, so that
	// [timeMin, timeMax) covers whole days.
	timeMin := startOfCurrentWeek.AddDate(0, 0, -7*s.windowWeeksPast)
	timeMax := startOfCurrentWeek.AddDate(0, 0, 7*s.windowWeeks)
	return timeMin, timeMax
}

// Sync compares each calendar with the stored state, fetches the ones that
// changed and saves the new state.
//
// Authentication failures abort the run; the state gathered so far is
// still saved. Other per-calendar failures are reported in Report.Err.
func (s *Syncer) Sync(ctx context.Context, calendars []caldav.Calendar) ([]Report, error) {
	s.log.Info("Starting sync...")

	state, err := s.store.Load()
	if err != nil {
		return nil, err
	}

	timeMin, timeMax := s.Window()
	if !timeMin.IsZero() {
		s.log.WithFields(logrus.Fields{
			"from": timeMin.Format("2006-01-02"),
			"to":   timeMax.Format("2006-01-02"),
		}).Info("Using sync window")
	}

	var (
		reports []Report
		fatal   error
	)
	for _, cal := range calendars {
		log := s.log.WithField("calendar", cal.Name())
		prev, known := state.Calendars[cal.URL]

		if known && cal.CTag != "" && cal.CTag == prev.CTag {
			log.Debug("ctag unchanged, skipping fetch")
			reports = append(reports, Report{Calendar: cal, Unchanged: true})
			continue
		}

		events, failed, err := s.source.FetchEventsInRange(ctx, cal, timeMin, timeMax)
		if err != nil {
			log.WithError(err).Warn("failed to fetch events")
			reports = append(reports, Report{Calendar: cal, Err: err})
			if caldav.IsAuthError(err) || errors.Is(err, context.Canceled) {
				fatal = err
				break
			}
			continue
		}

		report, next := diff(cal, prev, events, failed, timeMin, timeMax)
		next.SyncedAt = s.now().UTC()
		state.Calendars[cal.URL] = next
		reports = append(reports, report)

		log.WithFields(logrus.Fields{
			"added":   len(report.Added),
			"changed": len(report.Changed),
			"removed": len(report.Removed),
			"failed":  len(report.Failed),
		}).Info("Calendar synced")
	}

	if err := s.store.Save(state); err != nil {
		if fatal != nil {
			return reports, fatal
		}
		return reports, err
	}

	s.log.Info("Sync complete.")
	return reports, fatal
}

// diff compares the fetched resources with the previous etags. Resources
// that failed this time keep their previous etag so that a transient
// error does not look like a deletion. With a window, a resource that was
// not returned is only removed when its remembered span lies inside
// [timeMin, timeMax); one that merely aged out of the window is kept.
func diff(cal caldav.Calendar, prev CalendarState, events []caldav.Event, failed []*caldav.ResourceError, timeMin, timeMax time.Time) (Report, CalendarState) {
	report := Report{Calendar: cal, Events: events, Failed: failed}
	next := CalendarState{
		CTag:  cal.CTag,
		ETags: make(map[string]string),
		Spans: make(map[string]Span),
	}

	dated := make(map[string]bool)
	for _, ev := range events {
		next.ETags[ev.Href] = ev.ETag
		sp, ok := eventSpan(ev)
		if !ok {
			continue
		}
		if dated[ev.Href] {
			sp = widen(next.Spans[ev.Href], sp)
		}
		next.Spans[ev.Href] = sp
		dated[ev.Href] = true
	}
	for _, f := range failed {
		if etag, ok := prev.ETags[f.Href]; ok {
			next.ETags[f.Href] = etag
			if sp, ok := prev.Spans[f.Href]; ok {
				next.Spans[f.Href] = sp
			}
		}
	}

	for href, etag := range next.ETags {
		old, ok := prev.ETags[href]
		switch {
		case !ok:
			report.Added = append(report.Added, href)
		case etag == "" || etag != old:
			if !failedHref(failed, href) {
				report.Changed = append(report.Changed, href)
			}
		}
	}
	windowed := !timeMin.IsZero() || !timeMax.IsZero()
	for href, etag := range prev.ETags {
		if _, ok := next.ETags[href]; ok {
			continue
		}
		if sp, ok := prev.Spans[href]; windowed && ok && !sp.Overlaps(timeMin, timeMax) {
			next.ETags[href] = etag
			next.Spans[href] = sp
			continue
		}
		report.Removed = append(report.Removed, href)
	}

	sort.Strings(report.Added)
	sort.Strings(report.Changed)
	sort.Strings(report.Removed)
	return report, next
}

// eventSpan returns the time an event covers. Recurring events are open
// ended. ok is false when the event has no start.
func eventSpan(ev caldav.Event) (Span, bool) {
	if ev.Start == nil {
		return Span{}, false
	}
	sp := Span{Start: ev.Start.Time.UTC(), End: ev.Start.Time.UTC()}
	switch {
	case ev.Component != nil && (ev.Component.Prop(goical.PropRecurrenceRule) != nil || ev.Component.Prop(goical.PropRecurrenceDates) != nil):
		sp.End = time.Time{}
	case ev.End != nil:
		sp.End = ev.End.Time.UTC()
	case ev.Start.DateOnly:
		sp.End = sp.Start.AddDate(0, 0, 1)
	}
	return sp, true
}

func widen(a, b Span) Span {
	if b.Start.Before(a.Start) {
		a.Start = b.Start
	}
	if a.End.IsZero() || b.End.IsZero() {
		a.End = time.Time{}
	} else if b.End.After(a.End) {
		a.End = b.End
	}
	return a
}

func failedHref(failed []*caldav.ResourceError, href string) bool {
	for _, f := range failed {
		if f.Href == href {
			return true
		}
	}
	return false
}
