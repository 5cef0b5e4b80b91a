/*
Package history reconstructs dense, evenly spaced balance series from sparse
observations.

PURPOSE:
  A dashboard chart needs exactly one value per canonical interval boundary,
  but the underlying data is irregular: a user may deposit twice in an hour
  and then touch nothing for weeks. This package turns either of two data
  sources into a chart-ready series:

    - balance snapshots: point-in-time observations written every time the
      balance changes (SnapshotStore + Reconstructor)
    - the transaction ledger: signed deltas replayed backward from the live
      balance (Ledger + Replayer)

  Both backends implement the Source interface and must agree on the final
  (current) data point.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: a decimal balance with its ledger currency
  - Transaction: an immutable signed ledger entry
  - Point: one resolved chart value

DESIGN PRINCIPLES:
  1. Immutability: snapshots and transactions are never updated or deleted
  2. Precision: decimal.Decimal, never float64, for money
  3. Determinism: every time read goes through an injected Clock

SEE ALSO:
  - scale.go:          canonical interval boundaries per time scale
  - resolver.go:       carry-forward/carry-backward gap filling
  - reconstruction.go: snapshot-backed series with lazy backfill
  - replay.go:         ledger-backed series
*/
package history

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type SnapshotID string
type TransactionID string

// =============================================================================
// AMOUNT - Decimal value in the user's ledger currency
// =============================================================================

type Amount struct {
	Value    decimal.Decimal
	Currency string
}

func NewAmount(value float64, currency string) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Currency: currency}
}

func NewAmountFromInt(value int, currency string) Amount {
	return Amount{Value: decimal.NewFromInt(int64(value)), Currency: currency}
}

func (a Amount) Add(d decimal.Decimal) Amount { return Amount{Value: a.Value.Add(d), Currency: a.Currency} }
func (a Amount) Sub(d decimal.Decimal) Amount { return Amount{Value: a.Value.Sub(d), Currency: a.Currency} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) IsPositive() bool             { return a.Value.IsPositive() }

// =============================================================================
// TRANSACTION - Immutable signed ledger entry
// =============================================================================

// TransactionType implies the sign of a ledger entry: deposits increase the
// balance, withdrawals and payments decrease it. Amount itself is unsigned.
type TransactionType string

const (
	TxDeposit  TransactionType = "deposit"
	TxWithdraw TransactionType = "withdraw"
	TxPayment  TransactionType = "payment"
)

type Transaction struct {
	ID              TransactionID
	UserID          UserID
	Type            TransactionType
	Amount          Amount // unsigned; sign implied by Type
	TransactionDate time.Time
	Description     string
	CreatedAt       time.Time
}

// Effect returns the signed delta this transaction applies to the balance.
func (t Transaction) Effect() decimal.Decimal {
	if t.Type == TxDeposit {
		return t.Amount.Value
	}
	return t.Amount.Value.Neg()
}

// =============================================================================
// POINT - One resolved chart value
// =============================================================================

// Point is the unit the chart consumes. An empty series means "no data" and
// must render as an explicit empty state, never as a zero line.
type Point struct {
	Label   string          `json:"label"`
	Balance decimal.Decimal `json:"balance"`
}
