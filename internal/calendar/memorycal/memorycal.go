// Package memorycal provides an in-memory calendar Adapter.
//
// It implements full optimistic-concurrency semantics (version-counter
// etags, conditional updates and deletes) so engine behavior under conflict
// can be exercised without a network. Tests simulate a concurrent external
// client with ExternalEdit.
package memorycal

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chronos-cal/chronos/internal/calendar"
)

type record struct {
	ev      calendar.Event
	version int64
}

// Store is an in-memory calendar. Safe for concurrent use.
type Store struct {
	id string

	mu       sync.Mutex
	events   map[string]*record
	readOnly bool

	// beforeUpdate, when set, runs inside Update before the token check.
	// Tests use it to interleave an external edit between fetch and patch.
	beforeUpdate func(id string)
}

// New creates an empty in-memory calendar with the given id.
func New(id string) *Store {
	return &Store{
		id:     id,
		events: make(map[string]*record),
	}
}

// ID implements calendar.Adapter.
func (s *Store) ID() string { return s.id }

// SetReadOnly toggles rejection of all mutating operations.
func (s *Store) SetReadOnly(ro bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readOnly = ro
}

// OnBeforeUpdate installs a hook that runs at the start of every Update,
// before the concurrency-token check. Pass nil to remove it.
func (s *Store) OnBeforeUpdate(fn func(id string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeUpdate = fn
}

// Seed inserts an event directly, bypassing read-only and token checks.
// Intended for test fixtures. A missing ID is assigned.
func (s *Store) Seed(ev calendar.Event) calendar.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	rec := &record{ev: ev, version: 1}
	rec.ev.Etag = etag(rec.version)
	s.events[ev.ID] = rec
	return cloneEvent(rec.ev)
}

// ExternalEdit mutates an event the way an independent client would:
// the edit applies unconditionally and bumps the concurrency token.
func (s *Store) ExternalEdit(id string, edit func(ev *calendar.Event)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.events[id]
	if !ok {
		return fmt.Errorf("external edit %s: %w", id, calendar.ErrNotFound)
	}
	edit(&rec.ev)
	rec.version++
	rec.ev.Etag = etag(rec.version)
	return nil
}

// List implements calendar.Adapter. Series masters are always reported;
// other events are filtered to starts within [from, to).
func (s *Store) List(ctx context.Context, from, to time.Time) ([]calendar.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]calendar.Event, 0, len(s.events))
	for _, rec := range s.events {
		if rec.ev.IsMaster() || inWindow(rec.ev.Start, from, to) {
			out = append(out, cloneEvent(rec.ev))
		}
	}
	// Deterministic order for tests and golden files.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Fetch implements calendar.Adapter.
func (s *Store) Fetch(ctx context.Context, id string) (calendar.Event, error) {
	if err := ctx.Err(); err != nil {
		return calendar.Event{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.events[id]
	if !ok {
		return calendar.Event{}, fmt.Errorf("fetch %s: %w", id, calendar.ErrNotFound)
	}
	return cloneEvent(rec.ev), nil
}

// Update implements calendar.Adapter.
func (s *Store) Update(ctx context.Context, id, tok string, p calendar.Patch) (calendar.Event, error) {
	if err := ctx.Err(); err != nil {
		return calendar.Event{}, err
	}
	s.mu.Lock()
	hook := s.beforeUpdate
	s.mu.Unlock()
	if hook != nil {
		hook(id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readOnly {
		return calendar.Event{}, fmt.Errorf("update %s: %w", id, calendar.ErrReadOnly)
	}
	rec, ok := s.events[id]
	if !ok {
		return calendar.Event{}, fmt.Errorf("update %s: %w", id, calendar.ErrNotFound)
	}
	if rec.ev.Etag != tok {
		return calendar.Event{}, fmt.Errorf("update %s: have %s want %s: %w", id, tok, rec.ev.Etag, calendar.ErrConflict)
	}

	if p.Title != nil {
		rec.ev.Title = *p.Title
	}
	if p.Start != nil {
		rec.ev.Start = *p.Start
	}
	if p.End != nil {
		rec.ev.End = *p.End
	}
	if len(p.SetProps) > 0 && rec.ev.Props == nil {
		rec.ev.Props = make(map[string]string, len(p.SetProps))
	}
	for k, v := range p.SetProps {
		rec.ev.Props[k] = v
	}
	for _, k := range p.DelProps {
		delete(rec.ev.Props, k)
	}
	rec.version++
	rec.ev.Etag = etag(rec.version)
	return cloneEvent(rec.ev), nil
}

// Create implements calendar.Adapter.
func (s *Store) Create(ctx context.Context, ev calendar.Event) (calendar.Event, error) {
	if err := ctx.Err(); err != nil {
		return calendar.Event{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readOnly {
		return calendar.Event{}, fmt.Errorf("create: %w", calendar.ErrReadOnly)
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if _, exists := s.events[ev.ID]; exists {
		return calendar.Event{}, fmt.Errorf("create %s: already exists: %w", ev.ID, calendar.ErrConflict)
	}
	rec := &record{ev: ev, version: 1}
	rec.ev.Etag = etag(rec.version)
	s.events[ev.ID] = rec
	return cloneEvent(rec.ev), nil
}

// Delete implements calendar.Adapter.
func (s *Store) Delete(ctx context.Context, id, tok string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readOnly {
		return fmt.Errorf("delete %s: %w", id, calendar.ErrReadOnly)
	}
	rec, ok := s.events[id]
	if !ok {
		return fmt.Errorf("delete %s: %w", id, calendar.ErrNotFound)
	}
	if rec.ev.Etag != tok {
		return fmt.Errorf("delete %s: %w", id, calendar.ErrConflict)
	}
	delete(s.events, id)
	return nil
}

// Len returns the number of stored events.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func inWindow(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

func etag(version int64) string {
	return "v" + strconv.FormatInt(version, 10)
}

func cloneEvent(ev calendar.Event) calendar.Event {
	out := ev
	if ev.Props != nil {
		out.Props = make(map[string]string, len(ev.Props))
		for k, v := range ev.Props {
			out.Props[k] = v
		}
	}
	if ev.RecurrenceID != nil {
		rid := *ev.RecurrenceID
		out.RecurrenceID = &rid
	}
	return out
}
