/*
scale.go - Canonical interval boundaries per time scale

PURPOSE:
  Maps a chart time scale to the ordered list of boundary timestamps the
  series must cover, from now-horizon to now. Pure: the caller injects now.

SCALES:
  day     24h horizon, hourly step      -> 25 boundaries
  week    7d horizon, daily step        -> 8 boundaries
  month   30d horizon, 3-day stride     -> 11 boundaries (sparsified)
  quarter 90d horizon, 15-day stride    -> 7 boundaries (sparsified)

  The month and quarter windows are sampled at a stride instead of daily so a
  long window does not produce an overly dense chart. The final boundary is
  always exactly now, even when the stride does not divide the horizon.

BUCKET KEYS:
  Each boundary carries a stable key: the timestamp truncated to the scale's
  granularity ("2006-01-02 15:00" for hour buckets, "2006-01-02" for day
  buckets). Snapshots are assigned to buckets with the same truncation, so a
  key can never collide across the window.
*/
package history

import (
	"fmt"
	"time"
)

// Scale selects the charting window and its bucket granularity.
type Scale string

const (
	ScaleDay     Scale = "day"
	ScaleWeek    Scale = "week"
	ScaleMonth   Scale = "month"
	ScaleQuarter Scale = "quarter"
)

// ParseScale validates a user-supplied scale string.
func ParseScale(s string) (Scale, error) {
	switch Scale(s) {
	case ScaleDay, ScaleWeek, ScaleMonth, ScaleQuarter:
		return Scale(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidScale, s)
}

// Granularity is the unit a bucket key is truncated to.
type Granularity int

const (
	GranularityDay Granularity = iota
	GranularityHour
)

const day = 24 * time.Hour

// Chart density targets for the sparsified scales.
const (
	monthChartPoints   = 10
	quarterChartPoints = 6
)

// Horizon returns how far back the window reaches.
func (s Scale) Horizon() time.Duration {
	switch s {
	case ScaleDay:
		return day
	case ScaleWeek:
		return 7 * day
	case ScaleMonth:
		return 30 * day
	case ScaleQuarter:
		return 90 * day
	default:
		return 7 * day
	}
}

// step returns the spacing between canonical boundaries.
func (s Scale) step() time.Duration {
	switch s {
	case ScaleDay:
		return time.Hour
	case ScaleWeek:
		return day
	case ScaleMonth:
		return time.Duration(ceilDiv(30, monthChartPoints)) * day
	case ScaleQuarter:
		return time.Duration(ceilDiv(90, quarterChartPoints)) * day
	default:
		return day
	}
}

// Granularity returns the truncation unit for this scale's bucket keys.
func (s Scale) Granularity() Granularity {
	if s == ScaleDay {
		return GranularityHour
	}
	return GranularityDay
}

// Unit returns the spacing of backfilled synthetic snapshots: one per
// granularity unit across the horizon.
func (s Scale) Unit() time.Duration {
	if s.Granularity() == GranularityHour {
		return time.Hour
	}
	return day
}

// =============================================================================
// BUCKET - One canonical boundary
// =============================================================================

// Bucket is a boundary instant plus its stable map key and display label.
type Bucket struct {
	At    time.Time
	Key   string
	Label string
}

// Buckets returns the canonical ascending boundary list from now-Horizon()
// to now. Boundaries after now are never emitted; the last bucket is always
// exactly now so the series ends on the live balance's bucket.
func (s Scale) Buckets(now time.Time) []Bucket {
	now = now.UTC()
	start := now.Add(-s.Horizon())
	step := s.step()

	var buckets []Bucket
	for at := start; at.Before(now); at = at.Add(step) {
		buckets = append(buckets, s.bucketAt(at))
	}
	return append(buckets, s.bucketAt(now))
}

// BucketKey returns the key a snapshot taken at the given instant falls into.
func (s Scale) BucketKey(at time.Time) string {
	return s.key(s.Truncate(at))
}

// Label formats an instant for chart display ("15:04" for hour buckets,
// "Jan 2" for day buckets).
func (s Scale) Label(at time.Time) string {
	t := s.Truncate(at)
	if s.Granularity() == GranularityHour {
		return t.Format("15:04")
	}
	return t.Format("Jan 2")
}

// Truncate normalizes an instant to this scale's granularity, in UTC.
func (s Scale) Truncate(at time.Time) time.Time {
	at = at.UTC()
	if s.Granularity() == GranularityHour {
		return time.Date(at.Year(), at.Month(), at.Day(), at.Hour(), 0, 0, 0, time.UTC)
	}
	return time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
}

func (s Scale) bucketAt(at time.Time) Bucket {
	t := s.Truncate(at)
	return Bucket{At: t, Key: s.key(t), Label: s.Label(t)}
}

func (s Scale) key(t time.Time) string {
	if s.Granularity() == GranularityHour {
		return t.Format("2006-01-02 15:00")
	}
	return t.Format("2006-01-02")
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }
