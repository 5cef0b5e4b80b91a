/*
reconstruction.go - Snapshot-backed series with lazy backfill

ALGORITHM:
  1. start = now - horizon(scale); query snapshots since start, ascending
  2. zero rows -> backfill one zero-valued synthetic snapshot per granularity
     unit across [start, now] as a single atomic batch, then re-query
  3. keep the latest snapshot per bucket key, run the gap-fill resolver
  4. map resolved values to labeled chart points

BACKFILL SAFETY:
  The batch insert only runs when the range query returned zero rows, so a
  retried or repeated call cannot duplicate history: after one successful
  batch the precondition no longer holds. Two concurrent first reads for the
  same user are serialized by a per-user lock that re-checks the precondition
  before inserting. Even if a duplicate batch slipped through it would waste
  storage, not corrupt the chart - resolution always takes the latest
  snapshot per bucket.
*/
package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultCurrency is used for synthetic backfill rows, where no real
// observation exists to carry a currency.
const DefaultCurrency = "USD"

// Reconstructor derives the history chart from stored balance snapshots.
type Reconstructor struct {
	store  SnapshotStore
	clock  Clock
	logger *zap.Logger

	// Currency stamped on synthetic backfill snapshots.
	Currency string

	mu        sync.Mutex
	backfills map[UserID]*sync.Mutex
}

func NewReconstructor(store SnapshotStore, clock Clock, logger *zap.Logger) *Reconstructor {
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconstructor{
		store:     store,
		clock:     clock,
		logger:    logger,
		Currency:  DefaultCurrency,
		backfills: make(map[UserID]*sync.Mutex),
	}
}

// History returns one labeled point per canonical boundary for the scale.
// An empty (non-nil) series means "no data" and is not an error.
func (r *Reconstructor) History(ctx context.Context, userID UserID, scale Scale) ([]Point, error) {
	now := r.clock.Now()
	start := now.Add(-scale.Horizon())

	snaps, err := r.store.Since(ctx, userID, start)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if len(snaps) == 0 {
		if err := r.backfill(ctx, userID, scale, start, now); err != nil {
			return nil, err
		}
		snaps, err = r.store.Since(ctx, userID, start)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	if len(snaps) == 0 {
		// Store inconsistency after a successful backfill. Treat as no data
		// rather than failing the chart.
		r.logger.Warn("empty snapshot range after backfill", zap.String("user", string(userID)))
		return []Point{}, nil
	}

	buckets := scale.Buckets(now)
	resolved := Resolve(LatestByBucket(snaps, scale, buckets), buckets)
	points := make([]Point, len(resolved))
	for i, rp := range resolved {
		points[i] = Point{Label: rp.Bucket.Label, Balance: rp.Amount.Value}
	}
	return points, nil
}

// CreateSnapshot records a fresh balance observation stamped now. The
// balance-mutation workflow must call this after every deposit, withdrawal,
// and payment; if it does not, the chart shows stale history until the next
// capture cycle.
func (r *Reconstructor) CreateSnapshot(ctx context.Context, userID UserID, amount Amount) (Snapshot, error) {
	now := r.clock.Now()
	snap := Snapshot{
		ID:           SnapshotID(uuid.NewString()),
		UserID:       userID,
		Amount:       amount,
		SnapshotDate: now,
		CreatedAt:    now,
	}
	if err := r.store.Insert(ctx, snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return snap, nil
}

// backfill seeds an empty horizon with zero-valued synthetic snapshots, one
// per granularity unit, as a single atomic batch.
func (r *Reconstructor) backfill(ctx context.Context, userID UserID, scale Scale, start, now time.Time) error {
	lock := r.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	// Re-check under the lock: a concurrent request may have backfilled.
	snaps, err := r.store.Since(ctx, userID, start)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(snaps) > 0 {
		return nil
	}

	var batch []Snapshot
	for at := start; !at.After(now); at = at.Add(scale.Unit()) {
		batch = append(batch, Snapshot{
			ID:           SnapshotID(uuid.NewString()),
			UserID:       userID,
			Amount:       Amount{Value: decimal.Zero, Currency: r.Currency},
			SnapshotDate: at,
			CreatedAt:    now,
			Synthetic:    true,
		})
	}
	if err := r.store.InsertBatch(ctx, batch); err != nil {
		return fmt.Errorf("%w: %v", ErrBackfillFailed, err)
	}

	r.logger.Info("backfilled empty balance history",
		zap.String("user", string(userID)),
		zap.String("scale", string(scale)),
		zap.Int("snapshots", len(batch)))
	return nil
}

func (r *Reconstructor) userLock(userID UserID) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.backfills[userID]
	if !ok {
		lock = &sync.Mutex{}
		r.backfills[userID] = lock
	}
	return lock
}
