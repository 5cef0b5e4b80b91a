// Package store provides in-memory implementations of the history
// persistence interfaces, for tests and local development.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ledgerline/billing-engine/history"
)

// Memory implements history.SnapshotStore and history.Ledger, plus the
// balance write the wallet workflow needs.
type Memory struct {
	mu        sync.RWMutex
	snapshots map[history.UserID][]history.Snapshot
	txs       map[history.UserID][]history.Transaction
	balances  map[history.UserID]history.Amount
}

func NewMemory() *Memory {
	return &Memory{
		snapshots: make(map[history.UserID][]history.Snapshot),
		txs:       make(map[history.UserID][]history.Transaction),
		balances:  make(map[history.UserID]history.Amount),
	}
}

// =============================================================================
// SNAPSHOT STORE
// =============================================================================

func (m *Memory) Since(_ context.Context, userID history.UserID, from time.Time) ([]history.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []history.Snapshot
	for _, snap := range m.snapshots[userID] {
		if !snap.SnapshotDate.Before(from) {
			result = append(result, snap)
		}
	}
	return result, nil
}

func (m *Memory) Insert(_ context.Context, snap history.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertSnapshotLocked(snap)
	return nil
}

// InsertBatch is atomic by construction: the lock is held for the whole
// batch and individual inserts cannot fail.
func (m *Memory) InsertBatch(_ context.Context, snaps []history.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, snap := range snaps {
		m.insertSnapshotLocked(snap)
	}
	return nil
}

func (m *Memory) insertSnapshotLocked(snap history.Snapshot) {
	snaps := m.snapshots[snap.UserID]

	// Binary search keeps the slice ordered by SnapshotDate on insert.
	i := sort.Search(len(snaps), func(i int) bool {
		return snaps[i].SnapshotDate.After(snap.SnapshotDate)
	})
	snaps = append(snaps, history.Snapshot{})
	copy(snaps[i+1:], snaps[i:])
	snaps[i] = snap
	m.snapshots[snap.UserID] = snaps
}

// =============================================================================
// LEDGER
// =============================================================================

func (m *Memory) InRange(_ context.Context, userID history.UserID, from, to time.Time) ([]history.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []history.Transaction
	for _, tx := range m.txs[userID] {
		if !tx.TransactionDate.Before(from) && !tx.TransactionDate.After(to) {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (m *Memory) CurrentBalance(_ context.Context, userID history.UserID) (history.Amount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	balance, ok := m.balances[userID]
	if !ok {
		return history.Amount{}, history.ErrNoBalance
	}
	return balance, nil
}

func (m *Memory) Append(_ context.Context, tx history.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.appendLocked(tx)
	return nil
}

// ApplyTransaction appends the transaction and updates the balance under one
// lock hold, mirroring the single-write semantics of the SQL store.
func (m *Memory) ApplyTransaction(_ context.Context, tx history.Transaction, newBalance history.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.appendLocked(tx)
	m.balances[tx.UserID] = newBalance
	return nil
}

func (m *Memory) appendLocked(tx history.Transaction) {
	txs := m.txs[tx.UserID]
	i := sort.Search(len(txs), func(i int) bool {
		return txs[i].TransactionDate.After(tx.TransactionDate)
	})
	txs = append(txs, history.Transaction{})
	copy(txs[i+1:], txs[i:])
	txs[i] = tx
	m.txs[tx.UserID] = txs
}

func (m *Memory) SetBalance(_ context.Context, userID history.UserID, amount history.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] = amount
	return nil
}
