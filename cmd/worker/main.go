package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/LiamFranKi/vanguard-canchasintetica/internal/clock"
	"github.com/LiamFranKi/vanguard-canchasintetica/internal/config"
	kafkax "github.com/LiamFranKi/vanguard-canchasintetica/internal/kafka"
	"github.com/LiamFranKi/vanguard-canchasintetica/internal/logger"
	"github.com/LiamFranKi/vanguard-canchasintetica/internal/mq"
	"github.com/LiamFranKi/vanguard-canchasintetica/internal/notify"
	"github.com/LiamFranKi/vanguard-canchasintetica/internal/obs"
	"github.com/LiamFranKi/vanguard-canchasintetica/internal/postgres"
	"github.com/LiamFranKi/vanguard-canchasintetica/internal/postgres/migrations"
	"github.com/LiamFranKi/vanguard-canchasintetica/internal/redisx"
	"github.com/LiamFranKi/vanguard-canchasintetica/internal/reservations"
	"github.com/LiamFranKi/vanguard-canchasintetica/internal/settings"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Config{}).Error("load config", "error", err)
		os.Exit(1)
	}
	name := cfg.ServiceName + "-worker"
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: name})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := obs.InitTracer(ctx, obs.TracerConfig{
		Enabled:     cfg.OTelEnabled,
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: name,
		Env:         cfg.Env,
	})
	if err != nil {
		log.Error("init tracer", "error", err)
		os.Exit(1)
	}

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	if err != nil {
		log.Error("db connect", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := migrations.Apply(ctx, db, log.Logger); err != nil {
		log.Error("migrations", "error", err)
		os.Exit(1)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Sweep cancellations are lifecycle events too
	prod := kafkax.NewProducer(cfg.KafkaBrokers, reservations.TopicLifecycle, 1024, log.Logger)
	prod.Start()

	snap := settings.NewSnapshot(&postgres.SettingsRepo{DB: db})
	provider := settings.Layered{snap, settings.Static{
		reservations.SettingGraceDays: strconv.Itoa(cfg.GraceDays),
		notify.SettingCompanyName:     cfg.CompanyName,
	}}

	repo := &postgres.ReservationRepo{DB: db, LockTimeout: cfg.LockTimeout}
	svc := reservations.NewService(repo, clock.NewSystem(),
		reservations.WithPublisher(kafkax.NewLifecyclePublisher(prod, name)),
		reservations.WithLogger(log.Logger),
	)
	sweeper := reservations.NewSweeper(svc, provider, cfg.GraceDays, log.Logger)

	// Notification delivery falls back to the log when the broker is down
	var notifier notify.Notifier
	pub, err := mq.NewPublisher(cfg.RabbitURL, cfg.NotifyExchange)
	if err != nil {
		log.Warn("rabbitmq unavailable, notifications go to the log", "error", err)
		notifier = notify.NewLogNotifier(log.Logger)
	} else {
		defer pub.Close()
		notifier = notify.NewRabbitNotifier(pub)
	}
	dispatcher := notify.NewDispatcher(notifier,
		notify.WithDeduper(redisx.NewDeduper(rdb, cfg.WorkerGroup)),
		notify.WithSettings(provider, cfg.CompanyName),
		notify.WithDispatcherLogger(log.Logger),
	)
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.WorkerGroup, reservations.TopicLifecycle, cfg.WorkerConcurrency, log.Logger)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		log.Info("notification consumer started",
			"group", cfg.WorkerGroup,
			"topic", reservations.TopicLifecycle,
			"workers", cfg.WorkerConcurrency,
		)
		if err := cons.Start(ctx, dispatcher.Handle); err != nil {
			log.Error("consumer exit", "error", err)
			cancel()
		}
	}()
	go func() {
		defer wg.Done()
		runSweeps(ctx, snap, sweeper, cfg.SweepInterval, log.Logger)
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down worker")
	cancel()
	wg.Wait()

	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	prod.Close()
	if err := prod.WaitClosed(ctx2); err != nil {
		log.Warn("kafka producer did not drain", "error", err)
	}
	if err := shutdownTracer(ctx2); err != nil {
		log.Warn("tracer shutdown", "error", err)
	}
}

// runSweeps sweeps once at start and then every interval until ctx ends.
// The settings snapshot is refreshed before each run.
func runSweeps(ctx context.Context, snap *settings.Snapshot, sw *reservations.Sweeper, every time.Duration, log *slog.Logger) {
	sweep := func() {
		if err := snap.Refresh(ctx); err != nil {
			log.Warn("settings refresh failed, sweeping with cached values", "error", err)
		}
		if _, err := sw.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("sweep failed", "error", err)
		}
	}

	sweep()
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			sweep()
		}
	}
}
