/*
scheduler.go - Periodic balance snapshot capture

PURPOSE:
  Records one balance snapshot per user on a cron schedule so history
  charts stay dense even for accounts with no activity. Without it, a
  quiet account's chart would carry the same observation forward for
  weeks.

DESIGN:
  - robfig/cron drives the schedule (default: @daily)
  - Each run lists all users and snapshots their current balance
  - Users without a recorded balance are skipped, not errored
  - A failed user does not abort the run; it is logged and the run
    continues

USAGE:
  scheduler := NewSnapshotScheduler(store, recon, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - history/reconstruction.go: CreateSnapshot
  - cmd/server/main.go: Scheduler startup
*/
package api

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ledgerline/billing-engine/history"
	"github.com/ledgerline/billing-engine/store/sqlite"
)

// SnapshotScheduler captures periodic balance snapshots for all users.
type SnapshotScheduler struct {
	Store     *sqlite.Store
	Snapshots *history.Reconstructor
	Spec      string
	Logger    *zap.Logger

	cron *cron.Cron
}

// NewSnapshotScheduler creates a scheduler with the default daily spec.
func NewSnapshotScheduler(store *sqlite.Store, snapshots *history.Reconstructor, logger *zap.Logger) *SnapshotScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotScheduler{
		Store:     store,
		Snapshots: snapshots,
		Spec:      "@daily",
		Logger:    logger,
	}
}

// Start schedules the capture job. Returns an error when the cron spec
// does not parse.
func (s *SnapshotScheduler) Start() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.Spec, s.captureAll); err != nil {
		return err
	}
	s.cron.Start()
	s.Logger.Info("snapshot scheduler started", zap.String("spec", s.Spec))
	return nil
}

// Stop stops the scheduler and waits for a running capture to finish.
func (s *SnapshotScheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.Logger.Info("snapshot scheduler stopped")
}

// captureAll records one snapshot per user with a known balance.
func (s *SnapshotScheduler) captureAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
	defer cancel()

	users, err := s.Store.ListUsers(ctx)
	if err != nil {
		s.Logger.Error("snapshot capture: failed to list users", zap.Error(err))
		return
	}

	captured := 0
	for _, u := range users {
		balance, err := s.Store.CurrentBalance(ctx, u.ID)
		if errors.Is(err, history.ErrNoBalance) {
			continue
		}
		if err != nil {
			s.Logger.Warn("snapshot capture: balance read failed",
				zap.String("user_id", string(u.ID)), zap.Error(err))
			continue
		}

		if _, err := s.Snapshots.CreateSnapshot(ctx, u.ID, balance); err != nil {
			s.Logger.Warn("snapshot capture: insert failed",
				zap.String("user_id", string(u.ID)), zap.Error(err))
			continue
		}
		captured++
	}

	s.Logger.Info("snapshot capture run finished",
		zap.Int("users", len(users)), zap.Int("captured", captured))
}
