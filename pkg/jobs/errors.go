package jobs

import "errors"

var (
	// ErrNotFound is returned when the requested job does not exist.
	ErrNotFound = errors.New("job not found")

	// ErrInvalidTransition is returned when a status change is attempted
	// that the transition table does not permit. It indicates a caller bug
	// and is never silently coerced into success.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrStoreUnavailable is returned when the backing store cannot be
	// reached or written. The store performs no automatic retries; the
	// error carries enough detail for the caller to retry at a higher
	// level.
	ErrStoreUnavailable = errors.New("job store unavailable")
)

// ValidationError reports bad input that was rejected before any job was
// created.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }
