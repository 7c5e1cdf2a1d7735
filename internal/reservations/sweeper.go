package reservations

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// SettingGraceDays is the settings key holding the grace period, in days,
// after which an unpaid pending reservation is cancelled.
const SettingGraceDays = "reservation_grace_days"

// SettingsGetter reads one runtime setting.
type SettingsGetter interface {
	Get(ctx context.Context, key string) (string, error)
}

type SweepResult struct {
	Cutoff    time.Time `json:"cutoff"`
	Examined  int       `json:"examined"`
	Cancelled int       `json:"cancelled"`
	Failed    int       `json:"failed"`
}

// Sweeper cancels pending reservations that stayed unpaid past the grace
// period. Running it twice in a row cancels nothing the second time.
type Sweeper struct {
	svc          *Service
	settings     SettingsGetter
	defaultGrace int
	log          *slog.Logger
}

func NewSweeper(svc *Service, settings SettingsGetter, defaultGraceDays int, log *slog.Logger) *Sweeper {
	if log == nil {
		log = svc.log
	}
	return &Sweeper{svc: svc, settings: settings, defaultGrace: defaultGraceDays, log: log}
}

// GraceDays returns the configured grace period, falling back to the default
// when the setting is missing or malformed.
func (sw *Sweeper) GraceDays(ctx context.Context) int {
	if sw.settings == nil {
		return sw.defaultGrace
	}
	raw, err := sw.settings.Get(ctx, SettingGraceDays)
	if err != nil {
		sw.log.Debug("grace setting unavailable, using default", "error", err, "default", sw.defaultGrace)
		return sw.defaultGrace
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 0 {
		sw.log.Warn("invalid grace setting, using default", "value", raw, "default", sw.defaultGrace)
		return sw.defaultGrace
	}
	return days
}

// Run performs one sweep. A failure on one reservation is logged and counted
// without stopping the sweep.
func (sw *Sweeper) Run(ctx context.Context) (SweepResult, error) {
	ctx, span := tracer.Start(ctx, "reservations.Sweep")
	defer span.End()

	grace := sw.GraceDays(ctx)
	cutoff := sw.svc.clock.Now().Add(-time.Duration(grace) * 24 * time.Hour)
	span.SetAttributes(attribute.Int("grace_days", grace))

	ids, err := sw.svc.repo.ListExpirable(ctx, cutoff)
	if err != nil {
		span.RecordError(err)
		return SweepResult{}, fmt.Errorf("list expirable reservations: %w", err)
	}

	res := SweepResult{Cutoff: cutoff, Examined: len(ids)}
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			sw.log.Warn("sweep interrupted", "error", err, "remaining", len(ids)-i)
			return res, err
		}
		changed, err := sw.svc.expire(ctx, id, cutoff)
		if err != nil {
			res.Failed++
			sw.log.Error("expire reservation failed", "reservation_id", id, "error", err)
			continue
		}
		if changed {
			res.Cancelled++
		}
	}

	sw.log.Info("expiration sweep finished",
		"grace_days", grace,
		"cutoff", cutoff,
		"examined", res.Examined,
		"cancelled", res.Cancelled,
		"failed", res.Failed,
	)
	return res, nil
}
