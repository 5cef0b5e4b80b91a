/*
ledger.go - Append-only transaction log interface

The Ledger is the source of truth for balance mutations. Every deposit,
withdrawal, and bill payment is recorded here, and the materialized live
balance is kept alongside it. Entries are immutable once written.
*/
package history

import (
	"context"
	"time"
)

// Ledger exposes the signed transaction log plus the live balance.
type Ledger interface {
	// InRange returns transactions with TransactionDate in [from, to],
	// ascending by TransactionDate.
	InRange(ctx context.Context, userID UserID, from, to time.Time) ([]Transaction, error)

	// CurrentBalance returns the materialized live balance. Implementations
	// return ErrNoBalance when the user has never had one recorded.
	CurrentBalance(ctx context.Context, userID UserID) (Amount, error)

	// Append records one transaction. This is the only write operation.
	Append(ctx context.Context, tx Transaction) error
}
