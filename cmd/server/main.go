package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	auditmw "medgate/internal/audit/middleware"
	"medgate/internal/audit/recorder"
	"medgate/internal/failsafe"
	identitymw "medgate/internal/identity/middleware"
	"medgate/internal/identity/resolver"
	"medgate/internal/identity/token"
	"medgate/internal/platform/config"
	"medgate/internal/platform/httpserver"
	platformkafka "medgate/internal/platform/kafka"
	"medgate/internal/platform/logger"
	"medgate/internal/platform/metrics"
	"medgate/internal/platform/postgres"
	platformredis "medgate/internal/platform/redis"
	"medgate/internal/platform/telemetry"
	ratelimitmetrics "medgate/internal/ratelimit/metrics"
	ratelimitmw "medgate/internal/ratelimit/middleware"
	"medgate/internal/ratelimit/service/authlockout"
	"medgate/internal/ratelimit/service/requestlimit"
	httptransport "medgate/internal/transport/http"
	"medgate/pkg/platform/audit/consumer"
	auditkafka "medgate/pkg/platform/audit/store/kafka"
	"medgate/pkg/platform/audit/publisher"
	"medgate/pkg/platform/middleware/metadata"
)

const serviceName = "medgate"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("medgate exited", "error", err)
		os.Exit(1)
	}
}

// run wires every component, serves until ctx is cancelled, then drains
// pending records before closing the backing clients.
func run(ctx context.Context) error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	shutdownTracing, err := telemetry.Init(serviceName, cfg.Server.Environment)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	m := metrics.New()

	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}
	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() { _ = db.Close() }()
	}
	producer, err := platformkafka.NewProducer(ctx, cfg.Kafka)
	if err != nil {
		return err
	}
	if producer != nil {
		defer producer.Close()
	}

	rlMetrics := ratelimitmetrics.New(m.Registry)
	counters := counterStore(cfg, redisClient, db, rlMetrics, log)
	limiter, err := requestlimit.New(counters,
		requestlimit.WithConfig(&cfg.RateLimit),
		requestlimit.WithLogger(log),
		requestlimit.WithMetrics(rlMetrics),
	)
	if err != nil {
		return err
	}
	lockout, err := authlockout.New(counters,
		authlockout.WithConfig(&cfg.RateLimit),
		authlockout.WithLogger(log),
		authlockout.WithMetrics(rlMetrics),
	)
	if err != nil {
		return err
	}

	identities, err := identityStore(cfg, db, log)
	if err != nil {
		return err
	}
	tokens := token.New(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.TokenTTL)
	res, err := resolver.New(identities, tokens,
		resolver.WithLogger(log),
		resolver.WithMetrics(resolver.NewMetrics(m.Registry)),
		resolver.WithStoreTimeout(cfg.Auth.StoreTimeout),
	)
	if err != nil {
		return err
	}

	topics := auditkafka.DefaultTopics()
	if producer != nil && cfg.Kafka.EnsureTopics {
		if err := platformkafka.EnsureTopics(ctx, producer, cfg.Kafka, topics.All()...); err != nil {
			return err
		}
	}
	records, materialized := recordStores(cfg, db, producer, topics)

	dispatcher := publisher.NewDispatcher(
		publisher.WithQueueSize(cfg.Audit.QueueSize),
		publisher.WithWorkers(cfg.Audit.Workers),
		publisher.WithTaskTimeout(cfg.Audit.TaskTimeout),
		publisher.WithLogger(log),
		publisher.WithObserver(publisher.NewMetrics(m.Registry)),
	)
	pub := publisher.NewPublisher(records, dispatcher)

	rec := recorder.New(pub,
		recorder.WithLogger(log),
		recorder.WithMetrics(recorder.NewMetrics(m.Registry)),
	)
	errs := failsafe.New(pub,
		failsafe.WithLogger(log),
		failsafe.WithMetrics(failsafe.NewMetrics(m.Registry)),
		failsafe.WithProduction(cfg.IsProduction()),
	)

	clientIP, err := metadata.NewClientResolver(cfg.Server.TrustedProxyList())
	if err != nil {
		return err
	}

	rateLimit := ratelimitmw.New(limiter, log,
		ratelimitmw.WithDisabled(cfg.RateLimit.Disabled),
		ratelimitmw.WithMetrics(rlMetrics),
	)

	router := httptransport.NewRouter(httptransport.Deps{
		Metrics:      m,
		Identity:     identitymw.New(res, log),
		RateLimit:    rateLimit,
		Audit:        auditmw.Audit(rec),
		Failsafe:     errs,
		Auth:         httptransport.NewAuthHandler(identities, tokens, lockout, log),
		Tracing:      telemetry.Middleware(serviceName),
		ClientIP:     clientIP,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, httpserver.New(cfg.Server, router), cfg.Server.ShutdownTimeout, log)
	})
	if materialized != nil {
		consumerClient, err := platformkafka.NewConsumer(cfg.Kafka, topics.All()...)
		if err != nil {
			return err
		}
		defer consumerClient.Close()
		g.Go(func() error {
			return consumer.New(materialized, topics, log).Run(gctx, consumerClient)
		})
	}
	serveErr := g.Wait()

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := pub.Close(drainCtx); err != nil {
		log.Warn("pending records not drained", "error", err)
	}
	log.Info("medgate stopped")
	return serveErr
}
