package calendar

import "errors"

// Sentinel errors returned by Adapter implementations. The engine branches
// on these with errors.Is, so adapters must wrap rather than replace them.
var (
	// ErrConflict indicates the supplied concurrency token no longer
	// matches the stored resource (another client mutated it).
	ErrConflict = errors.New("calendar: concurrency token mismatch")

	// ErrReadOnly indicates the backend refused the mutation due to
	// missing write permission on the target calendar.
	ErrReadOnly = errors.New("calendar: target is read-only")

	// ErrNotFound indicates the event does not exist.
	ErrNotFound = errors.New("calendar: event not found")
)
