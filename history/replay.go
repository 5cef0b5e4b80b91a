/*
replay.go - Ledger-backed series

PURPOSE:
  Derives the same shape of series as the snapshot reconstructor without
  requiring persisted snapshots, by replaying the signed ledger backward from
  the live balance. Serves the aggregate dashboard view.

ALGORITHM:
  1. read the live balance and the transactions inside the window
  2. invert every in-window transaction to recover the balance that existed
     before the window opened (the starting balance)
  3. walk boundary pairs forward: emit the balance as of each boundary start,
     then apply the net effect of transactions in [start, next)
  4. force the final point to the live balance exactly, overriding any
     accumulated rounding

The replay view favors fewer, wider intervals than the snapshot chart: a
month is four 7-day windows, a quarter six 14-day windows.
*/
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Replayer derives the balance series from the transaction ledger.
type Replayer struct {
	ledger Ledger
	clock  Clock
}

func NewReplayer(ledger Ledger, clock Clock) *Replayer {
	if clock == nil {
		clock = SystemClock()
	}
	return &Replayer{ledger: ledger, clock: clock}
}

// replayWindow returns the interval count and width for a scale.
func replayWindow(scale Scale) (intervals int, width time.Duration) {
	switch scale {
	case ScaleDay:
		return 24, time.Hour
	case ScaleWeek:
		return 7, day
	case ScaleMonth:
		return 4, 7 * day
	case ScaleQuarter:
		return 6, 14 * day
	default:
		return 7, day
	}
}

// History returns one point per replay boundary. When the ledger has no
// in-window transactions, or no balance was ever recorded, the series is
// empty: the chart must render its explicit empty state, not a zero line.
func (rp *Replayer) History(ctx context.Context, userID UserID, scale Scale) ([]Point, error) {
	now := rp.clock.Now()
	intervals, width := replayWindow(scale)
	start := now.Add(-time.Duration(intervals) * width)

	current, err := rp.ledger.CurrentBalance(ctx, userID)
	if errors.Is(err, ErrNoBalance) {
		return []Point{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBalanceUnavailable, err)
	}

	txs, err := rp.ledger.InRange(ctx, userID, start, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(txs) == 0 {
		return []Point{}, nil
	}

	// Undo every in-window transaction to recover the starting balance.
	running := current.Value
	for _, tx := range txs {
		running = running.Sub(tx.Effect())
	}

	points := make([]Point, 0, intervals+1)
	at := start
	for i := 0; i < intervals; i++ {
		next := at.Add(width)
		points = append(points, Point{Label: scale.Label(at), Balance: running})
		running = running.Add(netEffect(txs, at, next))
		at = next
	}

	// running now equals the live balance unless something drifted; the last
	// point is pinned to the real value either way.
	return append(points, Point{Label: scale.Label(now), Balance: current.Value}), nil
}

// netEffect sums the signed effect of transactions with a date in [from, to).
func netEffect(txs []Transaction, from, to time.Time) decimal.Decimal {
	net := decimal.Zero
	for _, tx := range txs {
		if !tx.TransactionDate.Before(from) && tx.TransactionDate.Before(to) {
			net = net.Add(tx.Effect())
		}
	}
	return net
}
