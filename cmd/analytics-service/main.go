package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"eventmanager/config"
	"eventmanager/internal/adapters/cache"
	"eventmanager/internal/adapters/messaging"
	"eventmanager/internal/adapters/search"
	"eventmanager/internal/clock"
	"eventmanager/internal/consumer"
	"eventmanager/internal/delivery/http/controllers"
	"eventmanager/internal/delivery/http/middleware"
	"eventmanager/internal/dlq"
	"eventmanager/internal/domain"
	"eventmanager/internal/etl"
	"eventmanager/internal/metrics"
	"eventmanager/internal/repository/mongodb"
	"eventmanager/internal/repository/postgres"
	"eventmanager/internal/tracing"
)

const (
	shutdownTimeout = 10 * time.Second
	checkInBatch    = 500
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := config.NewLogger("analytics-service")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("analytics service failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	clk := clock.NewSystem()
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, "analytics_service")

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Enabled:     cfg.TracingEnabled,
		ServiceName: "analytics-service",
		Environment: cfg.Environment,
		Endpoint:    cfg.OTLPEndpoint,
		SampleRatio: cfg.TraceSampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("trace flush failed", "err", err)
		}
	}()

	mongoClient, mongoDB, err := mongodb.Connect(ctx, cfg.MongoURL, cfg.MongoDB)
	if err != nil {
		return err
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()
	store := mongodb.NewAnalyticsStore(mongoDB)

	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(5)

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	msgCfg := messaging.Config{
		Backend:       cfg.MessagingBackend,
		KafkaBrokers:  cfg.KafkaBrokers,
		ConsumerGroup: cfg.KafkaConsumerGroup,
		Redis:         rdb,
		Logger:        logger,
	}
	sub, err := messaging.NewSubscriber(msgCfg)
	if err != nil {
		return err
	}
	pub, err := messaging.NewPublisher(msgCfg)
	if err != nil {
		return err
	}
	defer pub.Close()
	router, err := messaging.NewRouter(msgCfg)
	if err != nil {
		return err
	}

	queue := dlq.NewQueue(pub, cfg.DLQTopic, logger, m)
	proc := dlq.NewProcessor(queue, cfg.DLQMaxRetries, logger)
	consumer.New(store, logger, m, clk).Register(router, sub, domain.AllTopics, queue, proc)

	scheduler := etl.NewScheduler(logger)
	scheduler.Register(etl.NewEventsToAnalytics(db, store, 2*cfg.ETLInterval, logger, m), cfg.ETLInterval)
	scheduler.Every("drain_checkins", cfg.ETLInterval,
		etl.DrainCheckIns(cache.NewWriteBehindQueue(rdb, cfg.CachePrefix), postgres.NewParticipantRepository(db),
			cache.NewRedisCache(rdb, cfg.CachePrefix), checkInBatch, logger))
	if cfg.ElasticsearchURL != "" {
		es, err := search.Connect(ctx, search.Config{URL: cfg.ElasticsearchURL, Index: cfg.ESEventsIndex, Logger: logger})
		if err != nil {
			logger.Warn("elasticsearch unavailable, search sync disabled", "err", err)
		} else {
			defer es.Stop()
			index := search.NewEventIndex(es, cfg.ESEventsIndex, logger)
			scheduler.Register(etl.NewEventsToSearch(db, index, 2*cfg.ETLInterval, logger, m), cfg.ETLInterval)
		}
	}

	mux := http.NewServeMux()
	health := controllers.NewHealthController(logger, map[string]controllers.Check{
		"mongo": func(ctx context.Context) error {
			return mongoClient.Ping(ctx, readpref.Primary())
		},
		"postgres": db.PingContext,
	})
	mux.HandleFunc("GET /health", health.Health)
	mux.HandleFunc("GET /health/ready", health.Ready)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              ":" + cfg.AnalyticsPort,
		Handler:           middleware.CorrelationID(middleware.Tracing(otel.Tracer("analytics-service"), middleware.LoggingMiddleware(logger, middleware.MetricsMiddleware(m, mux)))),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("consuming topics", "topics", domain.AllTopics, "dlq", cfg.DLQTopic)
		if err := router.Run(gctx); err != nil {
			return fmt.Errorf("message router: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		scheduler.Start(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("analytics service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
		return router.Close()
	})
	return g.Wait()
}
