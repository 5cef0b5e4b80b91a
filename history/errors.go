/*
errors.go - Centralized error types for the history engine

All failures recoverable at the service boundary are wrapped in one of these
sentinels so callers can classify them with errors.Is without knowing which
backend produced them.
*/
package history

import "errors"

var (
	// ErrStoreUnavailable wraps snapshot-store or ledger query failures
	// (network/auth/backend fault). Not retried by the engine; the caller
	// reports it and keeps the previously displayed series, if any.
	ErrStoreUnavailable = errors.New("history store unavailable")

	// ErrBackfillFailed wraps a failed backfill batch insert. The batch is
	// atomic, so the next read re-detects zero rows and retries.
	ErrBackfillFailed = errors.New("snapshot backfill failed")

	// ErrBalanceUnavailable wraps a failure to read the live balance.
	ErrBalanceUnavailable = errors.New("current balance unavailable")

	// ErrNoBalance is returned by Ledger implementations when no balance has
	// ever been materialized for the user. The replayer maps it to an empty
	// series rather than an error.
	ErrNoBalance = errors.New("no balance recorded")

	// ErrInvalidScale is returned for an unrecognized time scale.
	ErrInvalidScale = errors.New("invalid time scale")
)
