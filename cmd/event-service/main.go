// @title Event Management API
// @version 1.0
// @description Events, registrations with waitlists, audit trail, search and analytics.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
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

	"github.com/olivere/elastic/v7"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"golang.org/x/crypto/bcrypt"

	"eventmanager/config"
	_ "eventmanager/docs"
	"eventmanager/internal/adapters/auth"
	"eventmanager/internal/adapters/cache"
	"eventmanager/internal/adapters/email"
	"eventmanager/internal/adapters/messaging"
	"eventmanager/internal/adapters/search"
	"eventmanager/internal/clock"
	httpdelivery "eventmanager/internal/delivery/http"
	"eventmanager/internal/delivery/http/controllers"
	"eventmanager/internal/dlq"
	"eventmanager/internal/domain"
	"eventmanager/internal/etl"
	"eventmanager/internal/metrics"
	"eventmanager/internal/ratelimit"
	"eventmanager/internal/repository/postgres"
	"eventmanager/internal/resilience"
	"eventmanager/internal/services"
	"eventmanager/internal/tracing"
	"eventmanager/migrations"
)

const (
	shutdownTimeout      = 10 * time.Second
	fallbackReplayPeriod = time.Minute
	rateLimitPrecision   = 6
	publishQueueSize     = 1024
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := config.NewLogger("event-service")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("event service failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	clk := clock.NewSystem()
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, "event_service")

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Enabled:     cfg.TracingEnabled,
		ServiceName: "event-service",
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

	db, err := openPostgres(ctx, cfg.DBUrl)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := migrations.Apply(ctx, db); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, cache lookups will fall through", "err", err)
	}
	redisCache := cache.NewRedisCache(rdb, cfg.CachePrefix)
	readThrough := cache.NewReadThrough(redisCache, cfg.CacheTTL, logger)

	transport, err := messaging.NewPublisher(messaging.Config{
		Backend:       cfg.MessagingBackend,
		KafkaBrokers:  cfg.KafkaBrokers,
		ConsumerGroup: cfg.KafkaConsumerGroup,
		Redis:         rdb,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	defer transport.Close()
	fallback, err := resilience.NewFileFallback(cfg.FallbackDir, logger)
	if err != nil {
		return fmt.Errorf("fallback dir: %w", err)
	}
	publisher := resilience.NewPublisher(transport, resilience.PublisherConfig{
		Bulkhead: resilience.NewBulkhead(5, 50),
		Breaker: resilience.NewBreaker(resilience.BreakerConfig{
			Name:          cfg.MessagingBackend,
			OnStateChange: resilience.StateListener(m, logger),
		}),
		DLQ:      dlq.NewQueue(transport, cfg.DLQTopic, logger, m),
		Fallback: fallback,
		Logger:   logger,
		Metrics:  m,
	})
	asyncPublisher := resilience.NewAsyncPublisher(publisher, publishQueueSize, resilience.DefaultPublishTimeout)
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := asyncPublisher.Close(drainCtx); err != nil {
			logger.Error("publish queue not drained", "pending", asyncPublisher.Pending(), "err", err)
		}
	}()

	pgSearch := postgres.NewEventSearchRepository(db)
	var (
		searcher domain.EventSearcher = pgSearch
		indexer  domain.EventIndexer  = search.NoopIndexer()
		es       *elastic.Client
	)
	if cfg.ElasticsearchURL != "" {
		es, err = search.Connect(ctx, search.Config{URL: cfg.ElasticsearchURL, Index: cfg.ESEventsIndex, Logger: logger})
		if err == nil {
			err = search.EnsureIndex(ctx, es, cfg.ESEventsIndex)
		}
		if err != nil {
			logger.Warn("elasticsearch unavailable, searching postgres", "err", err)
			if es != nil {
				es.Stop()
				es = nil
			}
		} else {
			defer es.Stop()
			index := search.NewEventIndex(es, cfg.ESEventsIndex, logger)
			searcher = search.NewFallbackSearcher(index, pgSearch, logger)
			indexer = index
		}
	}

	mailer, err := email.NewMailer(email.MailerConfig{
		Provider:    cfg.EmailProvider,
		FromAddress: cfg.EmailFromAddress,
		FromName:    cfg.EmailFromName,
		SES: email.SESConfig{
			Region:             cfg.AWSRegion,
			AccessKeyID:        cfg.AWSAccessKeyID,
			SecretAccessKey:    cfg.AWSSecretKey,
			InsecureSkipVerify: cfg.SESInsecureTLS,
		},
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("mailer: %w", err)
	}

	auditSvc := services.NewAuditService(postgres.NewAuditRepository(db), clk, cfg.ContextTimeout)
	deps := services.Deps{
		Events:       postgres.NewEventRepository(db),
		Participants: postgres.NewParticipantRepository(db),
		Waitlist:     postgres.NewWaitlistRepository(db),
		Tx:           postgres.NewTransactor(db),
		Cache:        readThrough,
		Publisher:    asyncPublisher,
		Indexer:      indexer,
		Audit:        auditSvc,
		Email:        services.NewEmailService(mailer, email.NewTemplateRenderer(), logger),
		CheckIns:     cache.NewWriteBehindQueue(rdb, cfg.CachePrefix),
		Clock:        clk,
		Logger:       logger,
		Timeout:      cfg.ContextTimeout,
	}
	eventSvc := services.NewEventService(deps)
	participantSvc := services.NewParticipantService(deps)
	authSvc := services.NewAuthService(postgres.NewUserRepository(db), auth.NewBcryptHasher(bcrypt.DefaultCost),
		auth.NewJWTIssuer(cfg.JWTSecret), auditSvc, clk, logger, cfg.JWTExpiry, cfg.ContextTimeout)
	analyticsSvc := services.NewAnalyticsService(postgres.NewAnalyticsRepository(db), readThrough, clk, cfg.ContextTimeout)

	checks := map[string]controllers.Check{
		"postgres": db.PingContext,
		"redis":    redisCache.Ping,
	}
	if es != nil {
		checks["elasticsearch"] = func(ctx context.Context) error {
			_, _, err := es.Ping(cfg.ElasticsearchURL).Do(ctx)
			return err
		}
	}

	mux := httpdelivery.NewRouter(httpdelivery.Controllers{
		Events:       controllers.NewEventController(logger, eventSvc),
		Participants: controllers.NewParticipantController(logger, participantSvc),
		Auth:         controllers.NewAuthController(logger, authSvc),
		Audit:        controllers.NewAuditController(logger, auditSvc),
		Cache:        controllers.NewCacheController(logger, redisCache, auditSvc),
		Analytics:    controllers.NewAnalyticsController(logger, analyticsSvc),
		Search:       controllers.NewSearchController(logger, searcher, eventSvc),
		Health:       controllers.NewHealthController(logger, checks),
	}, auth.NewJWTVerifier(cfg.JWTSecret), promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), logger)

	handler := httpdelivery.NewHandler(mux, httpdelivery.HandlerConfig{
		CORSOrigins: cfg.CORSOrigins,
		Limiter:     newLimiter(cfg, rdb, clk),
		Metrics:     m,
		Logger:      logger,
		Tracer:      otel.Tracer("event-service"),
	})

	if n, err := publisher.ReplayFallback(ctx); err != nil {
		logger.Warn("fallback replay failed", "err", err)
	} else if n > 0 {
		logger.Info("replayed fallback messages", "count", n)
	}
	scheduler := etl.NewScheduler(logger)
	scheduler.Every("fallback_replay", fallbackReplayPeriod, func(ctx context.Context) error {
		_, err := publisher.ReplayFallback(ctx)
		return err
	})
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		scheduler.Start(ctx)
	}()

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srvErr := make(chan error, 1)
	go func() {
		logger.Info("event service listening", "addr", server.Addr, "messaging", cfg.MessagingBackend)
		srvErr <- server.ListenAndServe()
	}()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", "err", err)
	}
	<-schedulerDone
	logger.Info("server stopped")
	return nil
}

func openPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// newLimiter picks the rate limiter for RATE_LIMIT_BACKEND: redis, token or memory.
func newLimiter(cfg *config.Config, rdb *redis.Client, clk clock.Clock) ratelimit.Limiter {
	switch cfg.RateLimitBackend {
	case "redis":
		return ratelimit.NewRedisSlidingLog(rdb, cfg.CachePrefix, cfg.RateLimitRequests, cfg.RateLimitWindow, clk)
	case "token":
		rate := float64(cfg.RateLimitRequests) / cfg.RateLimitWindow.Seconds()
		return ratelimit.NewTokenBucket(rate, cfg.RateLimitRequests, clk)
	default:
		return ratelimit.NewSlidingWindow(cfg.RateLimitRequests, cfg.RateLimitWindow, rateLimitPrecision, clk)
	}
}
