package history_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/billing-engine/history"
	"github.com/ledgerline/billing-engine/history/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testNow = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

func newTestReconstructor() (*history.Reconstructor, *store.Memory) {
	mem := store.NewMemory()
	recon := history.NewReconstructor(mem, history.FixedClock(testNow), nil)
	return recon, mem
}

func insertSnapshot(t *testing.T, mem *store.Memory, userID history.UserID, at time.Time, value int) {
	t.Helper()
	err := mem.Insert(context.Background(), history.Snapshot{
		ID:           history.SnapshotID(at.Format(time.RFC3339)),
		UserID:       userID,
		Amount:       history.NewAmountFromInt(value, "USD"),
		SnapshotDate: at,
		CreatedAt:    at,
	})
	require.NoError(t, err)
}

// =============================================================================
// GAP FILLING
// =============================================================================

func TestReconstructor_History_CarriesObservationsAcrossGaps(t *testing.T) {
	// GIVEN: A user observed at 500 six days ago and 800 yesterday
	// WHEN: Requesting the week series
	// THEN: 8 points; the left edge borrows 500 backward, the gap carries
	//       500 forward, and the tail carries 800 forward to today

	recon, mem := newTestReconstructor()
	insertSnapshot(t, mem, "u-1", testNow.Add(-6*24*time.Hour), 500)
	insertSnapshot(t, mem, "u-1", testNow.Add(-1*24*time.Hour), 800)

	points, err := recon.History(context.Background(), "u-1", history.ScaleWeek)
	require.NoError(t, err)
	require.Len(t, points, 8)

	want := []int64{500, 500, 500, 500, 500, 500, 800, 800}
	for i, p := range points {
		assert.Equal(t, want[i], p.Balance.IntPart(), "point %d (%s)", i, p.Label)
	}
}

func TestReconstructor_History_WeekWithSparseObservations(t *testing.T) {
	// GIVEN: Snapshots of 500 six and three days ago and 800 today
	// WHEN: Requesting the week series
	// THEN: Seven points at 500 (left edge borrowed, gaps carried forward)
	//       and the final point at 800

	recon, mem := newTestReconstructor()
	insertSnapshot(t, mem, "u-1", testNow.Add(-6*24*time.Hour), 500)
	insertSnapshot(t, mem, "u-1", testNow.Add(-3*24*time.Hour), 500)
	insertSnapshot(t, mem, "u-1", testNow, 800)

	points, err := recon.History(context.Background(), "u-1", history.ScaleWeek)
	require.NoError(t, err)
	require.Len(t, points, 8)

	for i := 0; i < 7; i++ {
		assert.Equal(t, int64(500), points[i].Balance.IntPart(), "point %d (%s)", i, points[i].Label)
	}
	assert.Equal(t, int64(800), points[7].Balance.IntPart())
}

func TestReconstructor_History_MonthScaleOffStrideObservation(t *testing.T) {
	// GIVEN: A single observation two days ago, which is not a 3-day stride
	//        boundary of the month window
	// WHEN: Requesting the month series
	// THEN: The full 11-point window resolves, every point carrying the
	//       observed value, and the final point equals it

	recon, mem := newTestReconstructor()
	insertSnapshot(t, mem, "u-1", testNow.Add(-2*24*time.Hour), 300)

	points, err := recon.History(context.Background(), "u-1", history.ScaleMonth)
	require.NoError(t, err)
	require.Len(t, points, 11)

	for i, p := range points {
		assert.Equal(t, int64(300), p.Balance.IntPart(), "point %d (%s)", i, p.Label)
	}
}

func TestReconstructor_History_QuarterScaleArbitraryDays(t *testing.T) {
	// GIVEN: Observations 40 and 7 days ago, neither on the 15-day stride
	// WHEN: Requesting the quarter series
	// THEN: 7 points; the early value fills the left edge and the gap, the
	//       late value owns the final bucket

	recon, mem := newTestReconstructor()
	insertSnapshot(t, mem, "u-1", testNow.Add(-40*24*time.Hour), 500)
	insertSnapshot(t, mem, "u-1", testNow.Add(-7*24*time.Hour), 800)

	points, err := recon.History(context.Background(), "u-1", history.ScaleQuarter)
	require.NoError(t, err)
	require.Len(t, points, 7)

	want := []int64{500, 500, 500, 500, 500, 500, 800}
	for i, p := range points {
		assert.Equal(t, want[i], p.Balance.IntPart(), "point %d (%s)", i, p.Label)
	}
}

func TestReconstructor_History_MultipleObservationsSameDay(t *testing.T) {
	// GIVEN: Two observations on the same day
	// WHEN: Requesting the week series
	// THEN: That day's point reflects the later observation

	recon, mem := newTestReconstructor()
	day := testNow.Add(-2 * 24 * time.Hour)
	insertSnapshot(t, mem, "u-1", day.Add(-3*time.Hour), 100)
	insertSnapshot(t, mem, "u-1", day, 400)

	points, err := recon.History(context.Background(), "u-1", history.ScaleWeek)
	require.NoError(t, err)
	require.Len(t, points, 8)

	assert.Equal(t, int64(400), points[5].Balance.IntPart())
}

// =============================================================================
// LAZY BACKFILL
// =============================================================================

func TestReconstructor_History_BackfillsEmptyHistory(t *testing.T) {
	// GIVEN: A user with no snapshots at all
	// WHEN: Requesting the week series
	// THEN: The horizon is seeded with synthetic zero snapshots and the
	//       series comes back dense and zero-valued

	recon, mem := newTestReconstructor()

	points, err := recon.History(context.Background(), "u-1", history.ScaleWeek)
	require.NoError(t, err)
	require.Len(t, points, 8)
	for i, p := range points {
		assert.True(t, p.Balance.IsZero(), "point %d should be zero", i)
	}

	// The seeded rows are persisted and flagged synthetic.
	snaps, err := mem.Since(context.Background(), "u-1", time.Time{})
	require.NoError(t, err)
	require.NotEmpty(t, snaps)
	for _, snap := range snaps {
		assert.True(t, snap.Synthetic)
		assert.True(t, snap.Amount.Value.IsZero())
		assert.Equal(t, history.DefaultCurrency, snap.Amount.Currency)
	}
}

func TestReconstructor_History_BackfillRunsOnce(t *testing.T) {
	// GIVEN: A user whose empty history was already backfilled
	// WHEN: Requesting the series again
	// THEN: No second batch is written; the precondition (zero rows) no
	//       longer holds

	recon, mem := newTestReconstructor()

	_, err := recon.History(context.Background(), "u-1", history.ScaleWeek)
	require.NoError(t, err)
	first, err := mem.Since(context.Background(), "u-1", time.Time{})
	require.NoError(t, err)

	_, err = recon.History(context.Background(), "u-1", history.ScaleWeek)
	require.NoError(t, err)
	second, err := mem.Since(context.Background(), "u-1", time.Time{})
	require.NoError(t, err)

	assert.Equal(t, len(first), len(second), "repeated reads must not duplicate the backfill")
}

func TestReconstructor_History_NoBackfillWhenDataExists(t *testing.T) {
	// GIVEN: A user with one real observation in the window
	// WHEN: Requesting the series
	// THEN: No synthetic rows are added

	recon, mem := newTestReconstructor()
	insertSnapshot(t, mem, "u-1", testNow.Add(-3*24*time.Hour), 250)

	_, err := recon.History(context.Background(), "u-1", history.ScaleWeek)
	require.NoError(t, err)

	snaps, err := mem.Since(context.Background(), "u-1", time.Time{})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.False(t, snaps[0].Synthetic)
}

// =============================================================================
// SERIES SHAPE
// =============================================================================

func TestReconstructor_History_PointCountPerScale(t *testing.T) {
	// GIVEN: A backfilled user
	// THEN: Every scale yields its canonical point count

	cases := []struct {
		scale history.Scale
		count int
	}{
		{history.ScaleDay, 25},
		{history.ScaleWeek, 8},
		{history.ScaleMonth, 11},
		{history.ScaleQuarter, 7},
	}

	for _, tc := range cases {
		t.Run(string(tc.scale), func(t *testing.T) {
			recon, _ := newTestReconstructor()
			points, err := recon.History(context.Background(), "u-1", tc.scale)
			require.NoError(t, err)
			assert.Len(t, points, tc.count)
		})
	}
}

// =============================================================================
// FAILURE CLASSIFICATION
// =============================================================================

type failingSnapshotStore struct{ err error }

func (f failingSnapshotStore) Since(context.Context, history.UserID, time.Time) ([]history.Snapshot, error) {
	return nil, f.err
}
func (f failingSnapshotStore) Insert(context.Context, history.Snapshot) error { return f.err }
func (f failingSnapshotStore) InsertBatch(context.Context, []history.Snapshot) error {
	return f.err
}

func TestReconstructor_History_WrapsStoreFailures(t *testing.T) {
	// GIVEN: A store whose range query fails
	// WHEN: Requesting a series
	// THEN: The error is classified as ErrStoreUnavailable

	recon := history.NewReconstructor(
		failingSnapshotStore{err: errors.New("disk on fire")},
		history.FixedClock(testNow), nil)

	_, err := recon.History(context.Background(), "u-1", history.ScaleWeek)
	assert.ErrorIs(t, err, history.ErrStoreUnavailable)
}

func TestReconstructor_CreateSnapshot_StampsClock(t *testing.T) {
	// GIVEN: A reconstructor with a pinned clock
	// WHEN: Recording a fresh observation
	// THEN: The snapshot carries the pinned instant and a generated ID

	recon, mem := newTestReconstructor()

	snap, err := recon.CreateSnapshot(context.Background(), "u-1", history.NewAmountFromInt(750, "USD"))
	require.NoError(t, err)
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, testNow, snap.SnapshotDate)
	assert.False(t, snap.Synthetic)

	snaps, err := mem.Since(context.Background(), "u-1", time.Time{})
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}
