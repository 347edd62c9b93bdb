package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/poslane/api/controllers"
	"github.com/angelmondragon/poslane/api/routes"
	"github.com/angelmondragon/poslane/internal/capture"
	"github.com/angelmondragon/poslane/internal/cartapi"
	"github.com/angelmondragon/poslane/internal/cartcache"
	"github.com/angelmondragon/poslane/internal/carts"
	"github.com/angelmondragon/poslane/internal/reconcile"
	"github.com/angelmondragon/poslane/internal/scan"
	"github.com/angelmondragon/poslane/internal/tabs"
	"github.com/angelmondragon/poslane/pkg/auth"
	"github.com/angelmondragon/poslane/pkg/config"
	"github.com/angelmondragon/poslane/pkg/db"
	"github.com/angelmondragon/poslane/pkg/logger"
	"github.com/angelmondragon/poslane/pkg/metrics"
	"github.com/angelmondragon/poslane/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "terminal"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "terminal",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	storeID, err := uuid.Parse(cfg.Backend.StoreID)
	if err != nil {
		logg.Error(context.Background(), "invalid store id", err)
		os.Exit(1)
	}

	username := cfg.Backend.Username
	if username == "" {
		identity, err := auth.IdentityFromToken(cfg.Backend.APIToken)
		if err != nil {
			logg.Error(context.Background(), "failed to derive identity from api token", err)
			os.Exit(1)
		}
		username = identity.Username
	}

	dbClient, err := db.New(context.Background(), cfg.LocalStore, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap local store", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing local store", err)
		}
	}()

	var cache cartcache.Cache
	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		cache = cartcache.NewRedis(redisClient)
	} else {
		logg.Info(context.Background(), "redis not configured, using in-memory cart cache")
		cache = cartcache.NewMemory()
	}

	apiClient, err := cartapi.NewClient(cfg.Backend)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	scanMetrics := metrics.NewScanPipelineMetrics(registry)
	syncMetrics := metrics.NewSyncMetrics(registry)

	tabStore, err := tabs.NewStore(dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create tab store", err)
		os.Exit(1)
	}

	gate := scan.NewGate()

	reconciler, err := reconcile.New(reconcile.Params{
		API:      apiClient,
		Store:    tabStore,
		Cache:    cache,
		Logger:   logg,
		Metrics:  syncMetrics,
		Interval: cfg.Sync.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciler", err)
		os.Exit(1)
	}

	deletion, err := tabs.NewDeletionController(tabs.DeletionControllerParams{
		Store:      tabStore,
		API:        apiClient,
		Cache:      cache,
		Reconciler: reconciler,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create deletion controller", err)
		os.Exit(1)
	}

	cartSvc, err := carts.New(carts.Params{
		Username: username,
		StoreID:  storeID,
		API:      apiClient,
		Store:    tabStore,
		Cache:    cache,
		Gate:     gate,
		Logger:   logg,
		Metrics:  scanMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	queue, err := scan.NewQueue(scan.QueueParams{
		Username:  username,
		StoreID:   storeID,
		API:       apiClient,
		Store:     tabStore,
		Cache:     cache,
		Gate:      gate,
		Logger:    logg,
		Metrics:   scanMetrics,
		Retention: cfg.Scan.QueueRetention,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create scan queue", err)
		os.Exit(1)
	}

	session, err := scan.NewSession(scan.SessionParams{
		Provider:  capture.Unattached{},
		Debouncer: scan.NewDebouncer(cfg.Scan, scanMetrics, nil),
		Queue:     queue,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create scan session", err)
		os.Exit(1)
	}

	pingers := map[string]controllers.Pinger{
		"local_store":  dbClient,
		"cart_service": apiClient,
		"redis":        nil,
	}
	if redisClient != nil {
		pingers["redis"] = redisClient
	}

	handler := routes.NewRouter(routes.Deps{
		Config:     cfg,
		Logger:     logg,
		Identity:   controllers.Identity{Username: username, StoreID: storeID},
		TabStore:   tabStore,
		Deletion:   deletion,
		Reconciler: reconciler,
		CartSvc:    cartSvc,
		Session:    session,
		Queue:      queue,
		Pingers:    pingers,
		Gatherer:   registry,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := reconciler.Run(ctx, username, storeID); err != nil && ctx.Err() == nil {
			logg.Error(ctx, "reconciler stopped unexpectedly", err)
		}
	}()

	addr := ":" + cfg.App.Port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"username": username,
		"store_id": storeID.String(),
	})
	logg.Info(logCtx, "starting terminal agent")

	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(logCtx, "terminal agent stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(logCtx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		shutdownErr := server.Shutdown(shutdownCtx)
		if serveErr := <-errCh; serveErr != nil && serveErr != http.ErrServerClosed {
			shutdownErr = multierr.Append(shutdownErr, serveErr)
		}
		if shutdownErr != nil {
			logg.Error(logCtx, "error during shutdown", shutdownErr)
			os.Exit(1)
		}
		logg.Info(logCtx, "terminal agent stopped")
	}
}
