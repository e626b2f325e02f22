package mvcc

import "github.com/cockroachdb/errors"

// Expected-failure sentinels. Callers match these with errors.Is. The
// Manager annotates ErrIllegalState with a message (illegalStatef) without
// changing the sentinel identity; ErrTimedOut and ErrAborted are returned
// as-is.
var (
	// ErrIllegalState is returned when a caller asks for a timestamp that
	// is already below the clean watermark, or reserves a timestamp that
	// is already in flight.
	ErrIllegalState = errors.New("mvcc: illegal state")
	// ErrTimedOut is returned by the wait APIs when their deadline elapses
	// before the requested condition is satisfied.
	ErrTimedOut = errors.New("mvcc: timed out waiting for condition")
	// ErrAborted is returned to every outstanding waiter when the Manager
	// is shut down while callers are still blocked.
	ErrAborted = errors.New("mvcc: manager shutting down")
)

func illegalStatef(format string, args ...interface{}) error {
	return errors.WithMessagef(ErrIllegalState, format, args...)
}

// fatalf reports an invariant violation. These are programming errors in
// the caller (committing a non-Applying timestamp, double-abort, ...) and
// are never meant to be recovered from; the Manager never swallows them.
func fatalf(format string, args ...interface{}) {
	panic(errors.AssertionFailedf(format, args...))
}
