package engine

import (
	"context"
	"errors"

	"github.com/chronos-cal/chronos/internal/calendar"
)

// writeBack applies the repair patch under the etag observed during the
// listing. The marker rides in the same patch as the title so the two
// can never diverge on the server.
//
// On a concurrency conflict the event is refetched exactly once. If its
// identity (title, start, rrule) is byte-for-byte what the pass computed
// over, only the etag moved and the patch is retried once under the
// fresh token. Any other drift means a human or another client touched
// the event mid-pass; the patch is abandoned without a marker write.
func writeBack(ctx context.Context, cal calendar.Adapter, ev calendar.Event, sig string, patch calendar.Patch) (Outcome, error) {
	patch.SuppressNotify = true

	_, err := cal.Update(ctx, ev.ID, ev.Etag, patch)
	if err == nil {
		return OutcomeSucceeded, nil
	}

	switch {
	case errors.Is(err, calendar.ErrReadOnly):
		return OutcomeReadOnly, nil
	case errors.Is(err, calendar.ErrConflict):
		fresh, ferr := cal.Fetch(ctx, ev.ID)
		if ferr != nil {
			return OutcomeConflict, nil
		}
		if EventSignature(fresh) != sig {
			return OutcomeConflict, nil
		}
		if _, rerr := cal.Update(ctx, fresh.ID, fresh.Etag, patch); rerr != nil {
			return OutcomeConflict, nil
		}
		return OutcomeSucceeded, nil
	default:
		return OutcomeError, err
	}
}
