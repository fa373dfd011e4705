package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_Kinds(t *testing.T) {
	master := Event{ID: "m", RRule: "FREQ=YEARLY"}
	assert.True(t, master.IsMaster())
	assert.False(t, master.IsInstanceOverride())

	rid := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	override := Event{ID: "m#2025", RecurrenceID: &rid}
	assert.False(t, override.IsMaster())
	assert.True(t, override.IsInstanceOverride())

	plain := Event{ID: "p"}
	assert.False(t, plain.IsMaster())
	assert.False(t, plain.IsInstanceOverride())
}

func TestEvent_Prop(t *testing.T) {
	ev := Event{Props: map[string]string{KeyRuleID: "bday"}}
	assert.Equal(t, "bday", ev.Prop(KeyRuleID))
	assert.Equal(t, "", ev.Prop(KeySignature))

	var empty Event
	assert.Equal(t, "", empty.Prop(KeyRuleID))
}

type stubAdapter struct {
	updated int
	created int
	deleted int
}

func (s *stubAdapter) ID() string { return "stub" }
func (s *stubAdapter) List(ctx context.Context, from, to time.Time) ([]Event, error) {
	return []Event{{ID: "e1"}}, nil
}
func (s *stubAdapter) Fetch(ctx context.Context, id string) (Event, error) {
	return Event{ID: id}, nil
}
func (s *stubAdapter) Update(ctx context.Context, id, etag string, p Patch) (Event, error) {
	s.updated++
	return Event{ID: id}, nil
}
func (s *stubAdapter) Create(ctx context.Context, ev Event) (Event, error) {
	s.created++
	return ev, nil
}
func (s *stubAdapter) Delete(ctx context.Context, id, etag string) error {
	s.deleted++
	return nil
}

func TestReadOnly_RefusesWritesPassesReads(t *testing.T) {
	stub := &stubAdapter{}
	ro := ReadOnly(stub)
	ctx := context.Background()

	assert.Equal(t, "stub", ro.ID())

	events, err := ro.List(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, events, 1)

	_, err = ro.Fetch(ctx, "e1")
	assert.NoError(t, err)

	_, err = ro.Update(ctx, "e1", "v1", Patch{})
	assert.ErrorIs(t, err, ErrReadOnly)
	_, err = ro.Create(ctx, Event{})
	assert.ErrorIs(t, err, ErrReadOnly)
	err = ro.Delete(ctx, "e1", "v1")
	assert.ErrorIs(t, err, ErrReadOnly)

	assert.Zero(t, stub.updated)
	assert.Zero(t, stub.created)
	assert.Zero(t, stub.deleted)
}
