package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/LeventeLantos/turn-relay/internal/api"
	"github.com/LeventeLantos/turn-relay/internal/cache"
	"github.com/LeventeLantos/turn-relay/internal/client"
	"github.com/LeventeLantos/turn-relay/internal/config"
	"github.com/LeventeLantos/turn-relay/internal/logging"
	"github.com/LeventeLantos/turn-relay/internal/metrics"
	"github.com/LeventeLantos/turn-relay/internal/notify"
	"github.com/LeventeLantos/turn-relay/internal/repo"
	"github.com/LeventeLantos/turn-relay/internal/retention"
	"github.com/LeventeLantos/turn-relay/internal/scheduler"
	"github.com/LeventeLantos/turn-relay/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("turn relay exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("turn relay starting",
		zap.String("addr", cfg.Server.Address),
		zap.String("db", cfg.Database.Driver),
		zap.Duration("interval", cfg.Scheduler.Interval),
		zap.Int("batch", cfg.Scheduler.BatchSize),
		zap.Bool("redis", cfg.Redis.Enabled()),
		zap.Bool("kafka", cfg.Kafka.Enabled()),
	)

	metrics.Register()

	db, err := repo.Open(ctx, repo.Dialect(cfg.Database.Driver), cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	var (
		delivery  cache.DeliveryCache = cache.Nop{}
		notifiers notify.Multi
	)
	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, continuing without delivery cache", zap.Error(err))
		} else {
			delivery = cache.NewRedisCache(rdb, cfg.Redis.TTL)
			notifiers = append(notifiers, notify.NewRedisNotifier(rdb))
		}
	}
	if cfg.Kafka.Enabled() {
		kn, err := notify.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.CommandTopic)
		if err != nil {
			logger.Warn("kafka unavailable, command notifications disabled", zap.Error(err))
		} else {
			defer kn.Close()
			notifiers = append(notifiers, kn)
		}
	}

	chat := client.NewDiscordClient(cfg.Discord.APIBase, cfg.Discord.Token)

	relay, err := service.NewTurnRelay(chat, db, delivery, logger.Named("relay"), service.RelayConfig{
		BatchSize: cfg.Scheduler.BatchSize,
		ClaimTTL:  cfg.Scheduler.ClaimTTL,
	})
	if err != nil {
		return err
	}

	sched, err := scheduler.New("turn-relay", cfg.Scheduler.Interval, relay.Tick, logger)
	if err != nil {
		return err
	}

	commands := service.NewCommandService(db, db, notifiers, logger.Named("commands"), service.CommandConfig{
		RatePerMinute: cfg.Commands.RatePerMinute,
		Burst:         cfg.Commands.Burst,
	})
	pairings := service.NewPairingService(db, logger.Named("pairings"), cfg.Pairing.CodeTTL)

	h := api.NewHandler(api.Deps{
		Scheduler: sched,
		Turns:     relay,
		Commands:  commands,
		Pairings:  pairings,
		DB:        db,
		Log:       logger.Named("api"),
		CodeTTL:   cfg.Pairing.CodeTTL,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           loggingMiddleware(api.Router(h)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if cfg.Scheduler.AutoStart {
		sched.Start()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if cfg.Retention.Enabled() {
		sweeper, err := retention.New(db, retention.Config{
			Cron:   cfg.Retention.Cron,
			MaxAge: cfg.Retention.MaxAge(),
		}, logger.Named("retention"))
		if err != nil {
			return err
		}
		g.Go(func() error { return sweeper.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		sched.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
