package history_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/billing-engine/history"
)

func weekBuckets(t *testing.T) []history.Bucket {
	t.Helper()
	now := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
	buckets := history.ScaleWeek.Buckets(now)
	require.Len(t, buckets, 8)
	return buckets
}

func snapAt(day time.Time, value int) history.Snapshot {
	return history.Snapshot{
		ID:           history.SnapshotID(day.Format("2006-01-02")),
		UserID:       "u-1",
		Amount:       history.NewAmountFromInt(value, "USD"),
		SnapshotDate: day,
	}
}

func TestResolve_ExactMatchesWin(t *testing.T) {
	// GIVEN: An observation in every bucket
	// WHEN: Resolving
	// THEN: Every point is exact, none is marked generated

	buckets := weekBuckets(t)
	byKey := make(map[string]history.Snapshot)
	for i, b := range buckets {
		byKey[b.Key] = snapAt(b.At, (i+1)*100)
	}

	points := history.Resolve(byKey, buckets)
	require.Len(t, points, 8)
	for i, p := range points {
		assert.False(t, p.Generated(), "point %d should be exact", i)
		assert.Equal(t, int64((i+1)*100), p.Amount.Value.IntPart())
	}
}

func TestResolve_PrefersCarryForwardOverCarryBackward(t *testing.T) {
	// GIVEN: Observations of 100 early in the window and 300 late, with a
	//        gap between them
	// WHEN: Resolving the gap bucket
	// THEN: The gap carries the earlier 100 forward; the later 300 is never
	//       pulled backward across an earlier observation

	buckets := weekBuckets(t)
	byKey := map[string]history.Snapshot{
		buckets[1].Key: snapAt(buckets[1].At, 100),
		buckets[5].Key: snapAt(buckets[5].At, 300),
	}

	points := history.Resolve(byKey, buckets)
	require.Len(t, points, 8)

	// buckets[2..4] sit between the two observations.
	for i := 2; i <= 4; i++ {
		assert.True(t, points[i].Generated())
		assert.Equal(t, int64(100), points[i].Amount.Value.IntPart(),
			"bucket %d must carry 100 forward, not 300 backward", i)
	}

	// buckets[6..7] are after the last observation.
	for i := 6; i <= 7; i++ {
		assert.Equal(t, int64(300), points[i].Amount.Value.IntPart())
	}
}

func TestResolve_LeftEdgeCarriesBackward(t *testing.T) {
	// GIVEN: The earliest observation is in the middle of the window
	// WHEN: Resolving buckets before it
	// THEN: They borrow the first later value (no earlier value exists)

	buckets := weekBuckets(t)
	byKey := map[string]history.Snapshot{
		buckets[3].Key: snapAt(buckets[3].At, 500),
	}

	points := history.Resolve(byKey, buckets)
	require.Len(t, points, 8)

	for i := 0; i < 3; i++ {
		assert.True(t, points[i].Generated())
		assert.Equal(t, int64(500), points[i].Amount.Value.IntPart())
	}
	assert.False(t, points[3].Generated())
}

func TestResolve_NoObservations_OmitsEverything(t *testing.T) {
	// GIVEN: No observations at all
	// THEN: The resolved series is empty, not zero-filled

	points := history.Resolve(map[string]history.Snapshot{}, weekBuckets(t))
	assert.Empty(t, points)
}

func TestResolve_GeneratedPointsCarryTaggedKey(t *testing.T) {
	// GIVEN: One observation
	// THEN: Filled points carry a "generated-" prefixed key so downstream
	//       consumers can tell fills from observations

	buckets := weekBuckets(t)
	byKey := map[string]history.Snapshot{
		buckets[0].Key: snapAt(buckets[0].At, 100),
	}

	points := history.Resolve(byKey, buckets)
	require.Len(t, points, 8)

	assert.Equal(t, buckets[0].Key, points[0].Key)
	for i := 1; i < 8; i++ {
		assert.Equal(t, "generated-"+buckets[i].Key, points[i].Key)
	}
}

func TestLatestByBucket_KeepsNewestPerBucket(t *testing.T) {
	// GIVEN: Two observations in the same day bucket
	// WHEN: Building the resolver input
	// THEN: Only the later observation survives

	now := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
	buckets := history.ScaleWeek.Buckets(now)

	morning := time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC)
	evening := time.Date(2025, time.June, 10, 18, 0, 0, 0, time.UTC)

	byKey := history.LatestByBucket([]history.Snapshot{
		snapAt(morning, 100),
		snapAt(evening, 250),
	}, history.ScaleWeek, buckets)

	require.Len(t, byKey, 1)
	snap := byKey[history.ScaleWeek.BucketKey(morning)]
	assert.Equal(t, int64(250), snap.Amount.Value.IntPart())
}

func TestLatestByBucket_OffStrideObservationJoinsNextBoundary(t *testing.T) {
	// GIVEN: A month-scale window (3-day stride) and an observation on a
	//        day that is not itself a boundary
	// WHEN: Building the resolver input
	// THEN: The observation is assigned to the first boundary at or after
	//       it instead of matching no bucket at all

	now := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
	buckets := history.ScaleMonth.Buckets(now)
	require.Len(t, buckets, 11)

	// June 13 falls between the June 12 boundary and the final June 15 one.
	offStride := time.Date(2025, time.June, 13, 9, 0, 0, 0, time.UTC)

	byKey := history.LatestByBucket([]history.Snapshot{
		snapAt(offStride, 300),
	}, history.ScaleMonth, buckets)

	require.Len(t, byKey, 1)
	snap, ok := byKey[buckets[10].Key]
	require.True(t, ok, "observation must land on the June 15 bucket")
	assert.Equal(t, int64(300), snap.Amount.Value.IntPart())

	points := history.Resolve(byKey, buckets)
	assert.Len(t, points, 11, "one off-stride observation must still resolve the full window")
}
