// Package main wires together the alert service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jbellec/marketwatch/internal/alert"
	"github.com/jbellec/marketwatch/internal/api"
	"github.com/jbellec/marketwatch/internal/clock/system"
	"github.com/jbellec/marketwatch/internal/config"
	"github.com/jbellec/marketwatch/internal/dispatch"
	marketfetcher "github.com/jbellec/marketwatch/internal/fetcher/market"
	"github.com/jbellec/marketwatch/internal/id/uuid"
	"github.com/jbellec/marketwatch/internal/live"
	"github.com/jbellec/marketwatch/internal/logging"
	"github.com/jbellec/marketwatch/internal/metrics"
	memorypublisher "github.com/jbellec/marketwatch/internal/publisher/memory"
	pubsubpublisher "github.com/jbellec/marketwatch/internal/publisher/pubsub"
	queueMemory "github.com/jbellec/marketwatch/internal/queue/memory"
	"github.com/jbellec/marketwatch/internal/quota"
	"github.com/jbellec/marketwatch/internal/scheduler"
	memoryStorage "github.com/jbellec/marketwatch/internal/storage/memory"
	"github.com/jbellec/marketwatch/internal/storage/postgres"
	"github.com/jbellec/marketwatch/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	var (
		filterStore alert.FilterStore
		alertStore  alert.AlertStore
		dedupStore  alert.DedupStore
	)
	if cfg.DB.DSN != "" {
		pool, err := postgres.Connect(ctx, postgres.Config{
			DSN:         cfg.DB.DSN,
			TablePrefix: cfg.DB.Table,
			MaxConns:    cfg.DB.MaxConns,
			MinConns:    cfg.DB.MinConns,
		})
		if err != nil {
			logger.Fatal("postgres connect failed", zap.Error(err))
		}
		defer pool.Close()
		fs, err := postgres.NewFilterStore(pool, cfg.DB.Table)
		if err != nil {
			logger.Fatal("filter store init failed", zap.Error(err))
		}
		as, err := postgres.NewAlertStore(pool, cfg.DB.Table)
		if err != nil {
			logger.Fatal("alert store init failed", zap.Error(err))
		}
		ds, err := postgres.NewDedupStore(pool, cfg.DB.Table)
		if err != nil {
			logger.Fatal("dedup store init failed", zap.Error(err))
		}
		filterStore, alertStore, dedupStore = fs, as, ds
		logger.Info("using postgres stores", zap.String("table_prefix", cfg.DB.Table))
	} else {
		filterStore = memoryStorage.NewFilterStore()
		alertStore = memoryStorage.NewAlertStore()
		dedupStore = memoryStorage.NewDedupStore()
		logger.Info("using in-memory stores")
	}

	var publisher alert.Publisher
	if cfg.PubSub.Enabled {
		psPublisher, err := pubsubpublisher.New(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName)
		if err != nil {
			logger.Fatal("pubsub publisher init failed", zap.Error(err))
		}
		defer psPublisher.Close()
		publisher = psPublisher
	} else {
		publisher = memorypublisher.New()
	}

	clock := system.New()
	idGen := uuid.New()
	plans := quota.NewPlans()
	ledger := quota.NewLedger(cfg.PlanLimits, plans, filterStore, clock)
	queue := queueMemory.NewQueue(cfg.Pipeline.QueueDepth)
	registry := live.NewRegistry(logger.Named("live"))

	dispatcher := dispatch.New(filterStore, alertStore, registry, publisher, dispatch.Config{
		Topic: cfg.PubSub.TopicName,
	}, logger.Named("dispatch"))

	sched := scheduler.New(filterStore, ledger, queue, clock, scheduler.Config{
		Tick:        cfg.Tick(),
		MinInterval: cfg.MinCheckInterval(),
	}, logger.Named("scheduler"))

	fetcher := marketfetcher.New(marketfetcher.Config{
		BaseURL:       cfg.Marketplace.BaseURL,
		UserAgent:     cfg.Marketplace.UserAgent,
		Timeout:       cfg.FetchTimeout(),
		PerPage:       cfg.Marketplace.PerPage,
		RatePerSecond: cfg.Marketplace.RatePerSecond,
		RateBurst:     cfg.Marketplace.RateBurst,
	}, clock, logger.Named("fetcher"))

	workerCfg := worker.Config{FetchTimeout: cfg.FetchTimeout()}
	var workers []*worker.Worker
	for i := 0; i < cfg.Pipeline.Workers; i++ {
		workers = append(workers, worker.New(
			queue,
			fetcher,
			dedupStore,
			ledger,
			dispatcher,
			sched,
			idGen,
			clock,
			workerCfg,
			logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	pool := worker.NewPool(workers)

	apiServer := api.NewServer(
		filterStore, alertStore, ledger, idGen, clock, registry, cfg, logger.Named("api"),
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("scheduler started", zap.Duration("tick", cfg.Tick()))
		sched.Run(ctx)
	}()

	go func() {
		logger.Info("worker pool started", zap.Int("workers", cfg.Pipeline.Workers))
		pool.Run(ctx)
	}()

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	queue.Close()
	logger.Info("shutdown complete")
}
