package domain

import "errors"

var (
	// ErrNoPendingOrders means there was nothing to reconcile. A legitimate
	// empty result, reported distinctly from success; no cashout is created.
	ErrNoPendingOrders = errors.New("no pending orders to reconcile")

	// ErrPartialCommit means a cashout record was persisted but linking its
	// members failed and the record could not be rolled back. The cashout is
	// invalid and needs manual cleanup.
	ErrPartialCommit = errors.New("cashout persisted without members")

	// ErrConflict means another cashout lifecycle operation was in flight.
	ErrConflict = errors.New("concurrent cashout operation in progress")

	// ErrNotFound means the referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable wraps persistence failures. Never retried: a
	// partially applied multi-step write must not be applied twice.
	ErrStoreUnavailable = errors.New("store unavailable")
)
