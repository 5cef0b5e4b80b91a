package history

import "context"

// Source produces a chart-ready balance series for one user and time scale.
//
// Two interchangeable backends exist:
//   - Reconstructor: forward accumulation from stored balance snapshots,
//     with lazy zero-valued backfill for empty horizons
//   - Replayer: backward replay of the signed ledger from the live balance
//
// They derive history from different data (point observations vs. deltas)
// and may diverge inside the window, but both guarantee that the final point
// equals the live current balance. Which backend serves the dashboard is a
// configuration choice.
type Source interface {
	History(ctx context.Context, userID UserID, scale Scale) ([]Point, error)
}
