// Package calendar defines the boundary between the repair engine and an
// externally-owned calendar store.
//
// The external store is the source of truth and may be mutated by other
// clients at any time. The engine therefore never caches events across sync
// passes and only mutates through conditional operations carrying the
// event's current concurrency token (an ETag or equivalent).
//
// Adapter implementations exist per backend protocol:
//   - memorycal: in-memory store for tests, the scenario harness, and dry runs
//   - sqlitecal: local sqlite-backed calendar
//   - caldav:    CalDAV/Radicale over HTTP
package calendar

import (
	"context"
	"time"
)

// Event is a snapshot of a single calendar entry as observed at fetch time.
//
// Events are fetched fresh each sync pass. The Etag is only valid for
// conditional operations until the next observed mutation of the resource.
type Event struct {
	// ID uniquely identifies the event within its calendar.
	ID string

	// Etag is the concurrency token supplied by the store. It changes
	// whenever the resource is mutated by any client.
	Etag string

	// Title is the event summary line.
	Title string

	Start  time.Time
	End    time.Time
	AllDay bool

	// RRule is the raw recurrence expression ("" = non-recurring).
	// An event with a non-empty RRule and no RecurrenceID is a series master.
	RRule string

	// RecurrenceID is set when this event is an override for a single
	// occurrence of a recurring series.
	RecurrenceID *time.Time

	// Props is the private per-event extension bag. Keys are namespaced
	// (see keys.go); values are opaque strings.
	Props map[string]string
}

// IsMaster reports whether the event is a recurring series definition.
func (e Event) IsMaster() bool {
	return e.RRule != "" && e.RecurrenceID == nil
}

// IsInstanceOverride reports whether the event overrides a single occurrence
// of a recurring series.
func (e Event) IsInstanceOverride() bool {
	return e.RecurrenceID != nil
}

// Prop returns the extension-bag value for key, or "" when absent.
func (e Event) Prop(key string) string {
	if e.Props == nil {
		return ""
	}
	return e.Props[key]
}

// Patch describes a conditional mutation of a single event.
//
// A patch is applied as one atomic request against the store: either every
// field in it lands, or none do. Nil fields are left untouched.
type Patch struct {
	// Title, when non-nil, replaces the event summary.
	Title *string

	// Start and End, when non-nil, move the event. The engine uses this
	// to re-anchor a generated warning after its primary's date changed.
	Start *time.Time
	End   *time.Time

	// SetProps are extension-bag entries to write. Existing keys are
	// overwritten; keys not mentioned are preserved.
	SetProps map[string]string

	// DelProps are extension-bag keys to remove.
	DelProps []string

	// SuppressNotify asks the backend not to notify other participants
	// about this mutation. Backends without participant notification
	// semantics ignore it.
	SuppressNotify bool
}

// Adapter is the capability set the repair engine requires from a calendar
// backend. All mutating operations are conditional on the caller-supplied
// concurrency token and fail distinguishably on token mismatch
// (ErrConflict), missing resource (ErrNotFound), and denied permission
// (ErrReadOnly).
type Adapter interface {
	// ID identifies the calendar for logs and reports.
	ID() string

	// List returns all events whose start falls within [from, to), plus
	// all series masters whose recurrence intersects the window.
	List(ctx context.Context, from, to time.Time) ([]Event, error)

	// Fetch returns the current state of a single event, including a
	// fresh concurrency token.
	Fetch(ctx context.Context, id string) (Event, error)

	// Update applies a conditional patch. The etag must be the token from
	// the most recent observation of the event. On success the refreshed
	// event (with its new token) is returned.
	Update(ctx context.Context, id, etag string, p Patch) (Event, error)

	// Create inserts a new event and returns it with its assigned token.
	Create(ctx context.Context, ev Event) (Event, error)

	// Delete removes an event, conditional on the supplied token.
	Delete(ctx context.Context, id, etag string) error
}
