package main

import (
	"context"
	"log/slog"

	"github.com/LiamFranKi/vanguard-canchasintetica/internal/reservations"
	"github.com/LiamFranKi/vanguard-canchasintetica/internal/settings"
)

// refreshingSweeper reloads the settings snapshot before a manual sweep so an
// updated grace period applies without a restart.
type refreshingSweeper struct {
	snap    *settings.Snapshot
	sweeper *reservations.Sweeper
	log     *slog.Logger
}

func (s *refreshingSweeper) Run(ctx context.Context) (reservations.SweepResult, error) {
	if err := s.snap.Refresh(ctx); err != nil {
		s.log.WarnContext(ctx, "settings refresh failed, sweeping with cached values", "error", err)
	}
	return s.sweeper.Run(ctx)
}
