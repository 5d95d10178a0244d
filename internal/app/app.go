package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vladislavdragonenkov/storefront/internal/api"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

// Run поднимает витрину: HTTP API, сервер метрик и фоновые воркеры.
// Блокируется до отмены контекста или фатальной ошибки сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	router := api.NewRouter(api.Deps{
		Carts:     deps.CartService,
		Checkout:  deps.CheckoutService,
		Reviews:   deps.ReviewService,
		Orders:    deps.Orders,
		Analytics: deps.Analytics,
		Users:     deps.Users,
		Hub:       deps.Hub,
		Logger:    log.WithField("component", "api"),
	})

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	registerHealthChecks(deps, healthHandler)

	apiSrv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	metricsSrv := newMetricsServer(cfg.MetricsAddr, healthHandler)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.WithField("addr", cfg.HTTPAddr).Info("http api listening")
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		logger.WithField("addr", cfg.MetricsAddr).Info("metrics and health endpoints listening")
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
		return nil
	})

	if deps.Publisher != nil {
		worker := outbox.NewWorker(
			deps.Outbox,
			deps.Publisher,
			outbox.WithLogger(log.WithField("component", "outbox-worker")),
			outbox.WithDLQPublisher(deps.DLQPublisher),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)
		group.Go(func() error {
			worker.Run(groupCtx)
			return nil
		})
	} else {
		logger.Info("kafka disabled, outbox events stay pending until a publisher is configured")
	}

	cleanup := idempotency.NewCleanupWorker(
		deps.Idem,
		idempotency.WithLogger(log.WithField("component", "idempotency-cleanup")),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)
	group.Go(func() error {
		cleanup.Run(groupCtx)
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		return nil
	})

	if err := group.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Пороги backlog, после которых outbox считается degraded.
const (
	outboxMaxPending    = 1000
	outboxMaxPendingAge = 5 * time.Minute
)

func registerHealthChecks(deps *Dependencies, handler *healthcheck.Handler) {
	handler.RegisterChecker("orders", healthcheck.NewSimpleChecker("orders", func() error {
		_, err := deps.Orders.ListAll(1)
		return err
	}))
	handler.RegisterChecker("outbox", healthcheck.NewOutboxChecker("outbox", deps.Outbox.Stats, outboxMaxPending, outboxMaxPendingAge))
	if deps.store != nil {
		handler.RegisterChecker("postgres", healthcheck.NewSimpleChecker("postgres", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return deps.store.Ping(ctx)
		}))
	}
	if deps.redisClient != nil {
		handler.RegisterChecker("redis", healthcheck.NewSimpleChecker("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return deps.redisClient.Ping(ctx).Err()
		}))
	}
}

// newMetricsServer отдаёт /metrics для Prometheus и health-эндпоинты.
func newMetricsServer(addr string, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)

	return &http.Server{Addr: addr, Handler: mux}
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
