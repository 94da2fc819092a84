package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/pflag"

	"github.com/iliyamo/seatsync/internal/cache"
	"github.com/iliyamo/seatsync/internal/config"
	"github.com/iliyamo/seatsync/internal/database"
	"github.com/iliyamo/seatsync/internal/handler"
	"github.com/iliyamo/seatsync/internal/middleware"
	"github.com/iliyamo/seatsync/internal/queue"
	"github.com/iliyamo/seatsync/internal/realtime"
	"github.com/iliyamo/seatsync/internal/repository"
	"github.com/iliyamo/seatsync/internal/router"
	"github.com/iliyamo/seatsync/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "seatsync: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		envFile         string
		addr            string
		shutdownTimeout time.Duration
	)
	pflag.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	pflag.StringVar(&addr, "addr", "", "listen address, overrides APP_PORT")
	pflag.DurationVar(&shutdownTimeout, "shutdown-timeout", 15*time.Second, "grace period for in-flight requests")
	pflag.Parse()

	// A missing file is fine, the environment may already be set.
	_ = godotenv.Load(envFile)

	cfg := config.Load()
	log := newLogger(cfg)
	slog.SetDefault(log)
	if addr == "" {
		addr = ":" + cfg.Port
	}

	db, err := database.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		log.Warn("redis unavailable, running without session cache, rate limit and layout cache")
	} else {
		defer rdb.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := repository.NewEventRepo(db)
	objects := repository.NewEventObjectRepo(db)

	var sessionCache service.Cache
	if rdb != nil {
		sessionCache = cache.NewRedis(rdb)
	}
	sessions := service.NewSessionValidator(repository.NewSessionRepo(db), sessionCache,
		cfg.SessionCachePrefix, cfg.SessionCacheTTLCap, log)
	roles := service.NewRoleResolver(repository.NewWorkspaceMemberRepo(db), log)

	dispatcher := realtime.NewDispatcher(
		service.NewReservationEngine(db, service.FlatPricer{}),
		service.NewReleaseEngine(db),
		service.NewLayoutMutator(db),
		roles,
		log,
	)

	var notifiers realtime.Notifiers
	cacheCfg := config.LoadCacheConfig()
	var invalidator *middleware.CacheInvalidator
	if rdb != nil && cacheCfg.Enabled {
		invalidator = middleware.NewCacheInvalidator(cacheCfg, rdb, router.LayoutPath, log)
		notifiers = append(notifiers, invalidator)
	}
	if qcfg := config.LoadQueueConfig(); qcfg.Enabled {
		pub := queue.NewPublisher(qcfg, log)
		go pub.Run(ctx)
		notifiers = append(notifiers, pub)
		log.Info("seat activity publishing enabled", "queue", qcfg.QueueName)
	}
	var notifier realtime.Notifier
	if len(notifiers) > 0 {
		notifier = notifiers
	}

	registry := realtime.NewRegistry(cfg.WS.RoomBacklog)
	hub := realtime.NewHub(registry, dispatcher, notifier, cfg.WS, log)
	go registry.RunPruner(ctx, cfg.WS.PruneInterval, func(n int) {
		log.Info("pruned idle rooms", "count", n, "remaining", registry.Len())
	})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(requestLogger(log))

	health := &handler.HealthHandler{DB: db}
	var mw router.Middleware
	mw.Identity = middleware.SessionIdentity(sessions)
	if rdb != nil {
		health.Redis = rdb
		tb := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log)
		mw.RateLimit = middleware.RateLimit(tb)
		mw.Cache = middleware.ResponseCache(cacheCfg, rdb, log)
	}
	router.Register(e, router.Handlers{
		Health:    health,
		WebSocket: handler.NewWebSocketHandler(events, roles, hub, cfg.WS, log),
		Layout:    &handler.LayoutHandler{Events: events, Objects: objects},
	}, mw)

	errc := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", addr, "env", cfg.Env, "db", db.Dialect.String())
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "err", err)
	}
	// Hijacked websocket connections are not tracked by the http server.
	hub.Close()
	sessions.Wait()
	if invalidator != nil {
		invalidator.Wait()
	}
	return nil
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	opts.Level = slog.LevelDebug
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func requestLogger(log *slog.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURIPath: true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "path", v.URIPath, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				log.Warn("request", append(attrs, "err", v.Error)...)
				return nil
			}
			log.Debug("request", attrs...)
			return nil
		},
	})
}
