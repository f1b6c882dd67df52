package domain

import "errors"

// Failure kinds the sync path distinguishes. Wrap with fmt.Errorf("...: %w", ...)
// and classify with errors.Is.
var (
	// ErrPersistence: the local durable store failed to write. Fatal to the
	// current checkout attempt; the order is not guaranteed captured.
	ErrPersistence = errors.New("local persistence failed")

	// ErrNetwork: the server was unreachable (or timed out). Recoverable;
	// the order stays queued and is retried on the next online transition.
	ErrNetwork = errors.New("network unreachable")

	// ErrRejected: the server was reachable but refused the payload. Not
	// retried automatically.
	ErrRejected = errors.New("order rejected by server")
)
