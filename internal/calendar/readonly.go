package calendar

import (
	"context"
	"fmt"
	"time"
)

// readOnlyAdapter wraps an Adapter and refuses every mutation with
// ErrReadOnly while passing reads through unchanged.
type readOnlyAdapter struct {
	inner Adapter
}

// ReadOnly returns a view of the adapter that rejects writes. Used when
// a calendar is configured read-only regardless of backend permissions.
func ReadOnly(inner Adapter) Adapter {
	return &readOnlyAdapter{inner: inner}
}

func (r *readOnlyAdapter) ID() string { return r.inner.ID() }

func (r *readOnlyAdapter) List(ctx context.Context, from, to time.Time) ([]Event, error) {
	return r.inner.List(ctx, from, to)
}

func (r *readOnlyAdapter) Fetch(ctx context.Context, id string) (Event, error) {
	return r.inner.Fetch(ctx, id)
}

func (r *readOnlyAdapter) Update(ctx context.Context, id, etag string, p Patch) (Event, error) {
	return Event{}, fmt.Errorf("update %s: %w", id, ErrReadOnly)
}

func (r *readOnlyAdapter) Create(ctx context.Context, ev Event) (Event, error) {
	return Event{}, fmt.Errorf("create: %w", ErrReadOnly)
}

func (r *readOnlyAdapter) Delete(ctx context.Context, id, etag string) error {
	return fmt.Errorf("delete %s: %w", id, ErrReadOnly)
}
