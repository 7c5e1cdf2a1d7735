package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/LiamFranKi/vanguard-canchasintetica/internal/auth"
	"github.com/LiamFranKi/vanguard-canchasintetica/internal/clock"
	"github.com/LiamFranKi/vanguard-canchasintetica/internal/config"
	"github.com/LiamFranKi/vanguard-canchasintetica/internal/httpx"
	kafkax "github.com/LiamFranKi/vanguard-canchasintetica/internal/kafka"
	"github.com/LiamFranKi/vanguard-canchasintetica/internal/logger"
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
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: cfg.ServiceName})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := obs.InitTracer(ctx, obs.TracerConfig{
		Enabled:     cfg.OTelEnabled,
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: cfg.ServiceName,
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

	// Kafka producer for lifecycle events
	prod := kafkax.NewProducer(cfg.KafkaBrokers, reservations.TopicLifecycle, 1024, log.Logger)
	prod.Start()

	snap := settings.NewSnapshot(&postgres.SettingsRepo{DB: db})
	if err := snap.Refresh(ctx); err != nil {
		log.Warn("settings refresh failed, using defaults", "error", err)
	}
	provider := settings.Layered{snap, settings.Static{
		reservations.SettingGraceDays: strconv.Itoa(cfg.GraceDays),
	}}

	repo := &postgres.ReservationRepo{DB: db, LockTimeout: cfg.LockTimeout}
	svc := reservations.NewService(repo, clock.NewSystem(),
		reservations.WithPublisher(kafkax.NewLifecyclePublisher(prod, cfg.ServiceName)),
		reservations.WithLogger(log.Logger),
	)
	sweeper := reservations.NewSweeper(svc, provider, cfg.GraceDays, log.Logger)

	router := httpx.NewRouter(httpx.RouterConfig{
		Reservations: svc,
		Sweeper:      &refreshingSweeper{snap: snap, sweeper: sweeper, log: log.Logger},
		Cache:        redisx.NewAvailabilityCache(rdb, cfg.AvailabilityCacheTTL),
		Tokens:       auth.NewSigner(cfg.JWTSecret),
		Log:          log.Logger,
	})

	// HTTP server
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen", "error", err)
			cancel()
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()
	if err := prod.WaitClosed(ctx2); err != nil {
		log.Warn("kafka producer did not drain", "error", err)
	}
	if err := shutdownTracer(ctx2); err != nil {
		log.Warn("tracer shutdown", "error", err)
	}
}
