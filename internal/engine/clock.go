package engine

import "time"

// Clock supplies the engine's notion of "today". Injected so past-instance
// protection, age computation, and warning placement are testable against a
// fixed date.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// ClockAt returns a Clock reporting wall time in loc, so day-boundary
// decisions follow the configured calendar timezone rather than the
// process-local zone.
func ClockAt(loc *time.Location) Clock {
	return locationClock{loc: loc}
}

type locationClock struct {
	loc *time.Location
}

func (c locationClock) Now() time.Time { return time.Now().In(c.loc) }

// sameOrAfterDay reports whether a falls on the same calendar day as b or
// later, ignoring the time of day.
func sameOrAfterDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay > by
	}
	if am != bm {
		return am > bm
	}
	return ad >= bd
}

// beforeDay reports whether a falls on an earlier calendar day than b.
func beforeDay(a, b time.Time) bool {
	return !sameOrAfterDay(a, b)
}

// sameDay reports whether a and b fall on the same calendar day.
func sameDay(a, b time.Time) bool {
	return sameOrAfterDay(a, b) && sameOrAfterDay(b, a)
}
