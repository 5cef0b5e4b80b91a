/*
wallet.go - Balance-mutation workflow

Every mutation follows the same sequence:
  1. validate the amount and currency against the current balance
  2. append one immutable ledger transaction and update the materialized
     balance as one atomic store write
  3. record a balance snapshot (the history chart's data feed)

Step 2 is all-or-nothing: a mutation that fails there leaves neither a
ledger row nor a balance change. Step 3 failing does not fail the mutation:
the ledger is already correct and the chart merely shows stale history
until the next capture cycle.
*/
package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ledgerline/billing-engine/history"
)

// Store is what the wallet needs from persistence: the ledger plus the
// combined transaction-append and balance write.
type Store interface {
	history.Ledger

	// ApplyTransaction appends tx and updates the materialized balance as
	// one atomic unit: a failed balance write (unknown user) must leave no
	// ledger row behind.
	ApplyTransaction(ctx context.Context, tx history.Transaction, newBalance history.Amount) error
}

// Snapshotter records the post-mutation balance for the history chart.
type Snapshotter interface {
	CreateSnapshot(ctx context.Context, userID history.UserID, amount history.Amount) (history.Snapshot, error)
}

// Wallet applies balance mutations for a single-currency ledger per user.
type Wallet struct {
	store     Store
	snapshots Snapshotter
	clock     history.Clock
	logger    *zap.Logger
}

func NewWallet(store Store, snapshots Snapshotter, clock history.Clock, logger *zap.Logger) *Wallet {
	if clock == nil {
		clock = history.SystemClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Wallet{store: store, snapshots: snapshots, clock: clock, logger: logger}
}

// Deposit adds funds to the user's balance.
func (w *Wallet) Deposit(ctx context.Context, userID history.UserID, amount history.Amount, description string) (history.Transaction, history.Amount, error) {
	return w.apply(ctx, userID, history.TxDeposit, amount, description)
}

// Withdraw removes funds; rejected when it would overdraw the balance.
func (w *Wallet) Withdraw(ctx context.Context, userID history.UserID, amount history.Amount, description string) (history.Transaction, history.Amount, error) {
	return w.apply(ctx, userID, history.TxWithdraw, amount, description)
}

// Pay records a bill payment; rejected when it would overdraw the balance.
func (w *Wallet) Pay(ctx context.Context, userID history.UserID, amount history.Amount, description string) (history.Transaction, history.Amount, error) {
	return w.apply(ctx, userID, history.TxPayment, amount, description)
}

func (w *Wallet) apply(ctx context.Context, userID history.UserID, txType history.TransactionType, amount history.Amount, description string) (history.Transaction, history.Amount, error) {
	if !amount.IsPositive() {
		return history.Transaction{}, history.Amount{}, ErrInvalidAmount
	}

	current, err := w.store.CurrentBalance(ctx, userID)
	switch {
	case errors.Is(err, history.ErrNoBalance):
		current = history.Amount{Value: decimal.Zero, Currency: amount.Currency}
	case err != nil:
		return history.Transaction{}, history.Amount{}, fmt.Errorf("read balance: %w", err)
	}

	if current.Currency != "" && amount.Currency != "" && current.Currency != amount.Currency {
		return history.Transaction{}, history.Amount{}, fmt.Errorf("%w: have %s, got %s",
			ErrCurrencyMismatch, current.Currency, amount.Currency)
	}

	now := w.clock.Now()
	tx := history.Transaction{
		ID:              history.TransactionID(uuid.NewString()),
		UserID:          userID,
		Type:            txType,
		Amount:          amount,
		TransactionDate: now,
		Description:     description,
		CreatedAt:       now,
	}

	next := current.Add(tx.Effect())
	if next.IsNegative() {
		return history.Transaction{}, history.Amount{}, &InsufficientFundsError{
			UserID:    userID,
			Available: current,
			Requested: amount,
		}
	}

	if err := w.store.ApplyTransaction(ctx, tx, next); err != nil {
		return history.Transaction{}, history.Amount{}, fmt.Errorf("apply transaction: %w", err)
	}

	if _, err := w.snapshots.CreateSnapshot(ctx, userID, next); err != nil {
		w.logger.Warn("balance snapshot hook failed",
			zap.String("user", string(userID)),
			zap.String("tx", string(tx.ID)),
			zap.Error(err))
	}

	return tx, next, nil
}
