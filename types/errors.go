package types

import "errors"

var (
	// ErrValidation marks a malformed identifier, date, month, or range. It is
	// a caller error; nothing was sent to the store.
	ErrValidation = errors.New("validation error")

	// ErrStoreUnavailable marks a connectivity, throttling, or timeout
	// failure talking to the store. Safe to retry with backoff.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrStoreWriteConflict marks a conditional write rejected by the store,
	// such as a Create whose key already exists.
	ErrStoreWriteConflict = errors.New("store write conflict")
)

// IsRetryable reports whether err is a transient store failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
