/*
snapshot.go - Balance observations and their store

A Snapshot is an observed (or synthesized) balance at a specific instant.
Snapshots are written:
  - by the balance-mutation workflow after every deposit/withdraw/payment
    (value = the new live balance)
  - by the lazy backfill when a user has no data for a requested horizon
    (value = 0, Synthetic = true)
  - by the scheduled capture job, one per user per cycle

History is immutable and append-only: snapshots are never updated or deleted.
Multiple snapshots may land in the same bucket; resolution always takes the
latest one.
*/
package history

import (
	"context"
	"sort"
	"time"
)

type Snapshot struct {
	ID           SnapshotID
	UserID       UserID
	Amount       Amount
	SnapshotDate time.Time
	CreatedAt    time.Time

	// Synthetic marks a zero-valued backfill row. The chart treats it like
	// any other observation, but the flag keeps "known zero" distinguishable
	// from "account was actually at zero" in the stored history.
	Synthetic bool
}

// SnapshotStore persists balance observations. Append-only: no update, no
// delete. Corrections come from newer observations.
type SnapshotStore interface {
	// Since returns all snapshots for the user with SnapshotDate >= from,
	// ascending by SnapshotDate.
	Since(ctx context.Context, userID UserID, from time.Time) ([]Snapshot, error)

	// Insert persists one snapshot.
	Insert(ctx context.Context, snap Snapshot) error

	// InsertBatch persists snapshots atomically: either all rows are written
	// or none are. Backfill relies on this to stay retryable.
	InsertBatch(ctx context.Context, snaps []Snapshot) error
}

// LatestByBucket assigns each snapshot to its canonical bucket and keeps,
// per bucket, the snapshot with the latest SnapshotDate. This is the
// resolver's input map.
//
// On the hourly and daily scales every truncated snapshot date is itself a
// boundary. On the sparsified month and quarter strides it usually is not:
// a snapshot between two boundaries belongs to the first boundary at or
// after it, and a snapshot past the last boundary folds into the final
// bucket. Without this assignment, off-stride observations would match no
// bucket at all and the window would resolve as empty.
func LatestByBucket(snaps []Snapshot, scale Scale, buckets []Bucket) map[string]Snapshot {
	byKey := make(map[string]Snapshot, len(snaps))
	for _, snap := range snaps {
		b, ok := bucketFor(scale.Truncate(snap.SnapshotDate), buckets)
		if !ok {
			continue
		}
		cur, seen := byKey[b.Key]
		if !seen || snap.SnapshotDate.After(cur.SnapshotDate) {
			byKey[b.Key] = snap
		}
	}
	return byKey
}

// bucketFor returns the first bucket at or after t, or the final bucket
// when t lies past the end of the window.
func bucketFor(t time.Time, buckets []Bucket) (Bucket, bool) {
	if len(buckets) == 0 {
		return Bucket{}, false
	}
	i := sort.Search(len(buckets), func(i int) bool {
		return !buckets[i].At.Before(t)
	})
	if i == len(buckets) {
		return buckets[len(buckets)-1], true
	}
	return buckets[i], true
}
