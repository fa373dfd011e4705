package engine

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/chronos-cal/chronos/internal/calendar"
)

// SeriesDecision says whether an event may be patched and why not.
type SeriesDecision int

const (
	// SeriesPatchable: the event (master or future instance) may be
	// rewritten.
	SeriesPatchable SeriesDecision = iota
	// SeriesPastInstance: the occurrence lies entirely in the past and
	// must never be touched.
	SeriesPastInstance
)

// resolveSeries decides whether the event is patchable today.
//
// An instance override is judged by its own start date. A recurring
// master is judged by whether the series still produces an occurrence
// today or later; a fully elapsed series is left alone. Unparseable
// recurrence rules are reported, not guessed at.
func resolveSeries(ev calendar.Event, today time.Time) (SeriesDecision, error) {
	if ev.IsInstanceOverride() {
		if beforeDay(ev.Start, today) {
			return SeriesPastInstance, nil
		}
		return SeriesPatchable, nil
	}
	if ev.RRule == "" {
		if beforeDay(ev.Start, today) {
			return SeriesPastInstance, nil
		}
		return SeriesPatchable, nil
	}

	opt, err := rrule.StrToROption(ev.RRule)
	if err != nil {
		return SeriesPastInstance, fmt.Errorf("parse rrule %q: %w", ev.RRule, err)
	}
	opt.Dtstart = ev.Start
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return SeriesPastInstance, fmt.Errorf("build rrule %q: %w", ev.RRule, err)
	}

	dayStart := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	next := r.After(dayStart, true)
	if next.IsZero() {
		return SeriesPastInstance, nil
	}
	return SeriesPatchable, nil
}

// nextOccurrence returns the first occurrence of the event on or after
// today, for warning scheduling. For non-recurring events that is the
// start itself when it has not passed.
func nextOccurrence(ev calendar.Event, today time.Time) (time.Time, bool) {
	dayStart := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	if ev.RRule == "" || ev.IsInstanceOverride() {
		if beforeDay(ev.Start, today) {
			return time.Time{}, false
		}
		return ev.Start, true
	}
	opt, err := rrule.StrToROption(ev.RRule)
	if err != nil {
		return time.Time{}, false
	}
	opt.Dtstart = ev.Start
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return time.Time{}, false
	}
	next := r.After(dayStart, true)
	if next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}
