/*
resolver.go - Gap filling between sparse observations

PURPOSE:
  Given the latest snapshot per bucket and the canonical boundary list,
  produce exactly one value per boundary. Balances are step functions between
  observations, so carry-forward is the economically correct fill: the
  balance does not change until a transaction occurs. Carry-backward exists
  only for the unresolvable left edge and is never preferred when an earlier
  value is available.

POLICY (per boundary, in order):
  1. exact match on the bucket key
  2. carry-forward from the nearest earlier bucket with a value
  3. carry-backward from the nearest later bucket with a value
  4. omit (only possible when the user has no snapshots at all; the
     reconstruction service prevents this via backfill)

COMPLEXITY:
  O(boundaries x scan distance); bucket counts are at most ~30.
*/
package history

// ResolvedPoint is a bucket resolved to a concrete value. Key is the bucket
// key of an exact observation, or "generated-<bucket key>" for a fill.
type ResolvedPoint struct {
	Bucket Bucket
	Key    string
	Amount Amount
}

// Generated reports whether this point was synthesized by a fill rather than
// observed directly.
func (p ResolvedPoint) Generated() bool {
	return p.Key != p.Bucket.Key
}

// Resolve maps every canonical bucket to one value using the fill policy
// above. Buckets resolvable in neither direction are omitted.
func Resolve(byKey map[string]Snapshot, buckets []Bucket) []ResolvedPoint {
	points := make([]ResolvedPoint, 0, len(buckets))
	for i, b := range buckets {
		if snap, ok := byKey[b.Key]; ok {
			points = append(points, ResolvedPoint{Bucket: b, Key: b.Key, Amount: snap.Amount})
			continue
		}
		if snap, ok := nearest(byKey, buckets, i, -1); ok {
			points = append(points, ResolvedPoint{Bucket: b, Key: "generated-" + b.Key, Amount: snap.Amount})
			continue
		}
		if snap, ok := nearest(byKey, buckets, i, +1); ok {
			points = append(points, ResolvedPoint{Bucket: b, Key: "generated-" + b.Key, Amount: snap.Amount})
		}
	}
	return points
}

// nearest scans from bucket i in the given direction for the closest bucket
// that has an observed value.
func nearest(byKey map[string]Snapshot, buckets []Bucket, i, dir int) (Snapshot, bool) {
	for j := i + dir; j >= 0 && j < len(buckets); j += dir {
		if snap, ok := byKey[buckets[j].Key]; ok {
			return snap, true
		}
	}
	return Snapshot{}, false
}
