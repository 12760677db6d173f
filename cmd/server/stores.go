package main

import (
	"database/sql"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"medgate/internal/identity/ports"
	identitymemory "medgate/internal/identity/store/memory"
	identitypostgres "medgate/internal/identity/store/postgres"
	"medgate/internal/platform/config"
	platformredis "medgate/internal/platform/redis"
	ratelimitmetrics "medgate/internal/ratelimit/metrics"
	ratelimitports "medgate/internal/ratelimit/ports"
	"medgate/internal/ratelimit/store/bucket"
	audit "medgate/pkg/platform/audit"
	auditkafka "medgate/pkg/platform/audit/store/kafka"
	auditmemory "medgate/pkg/platform/audit/store/memory"
	auditpostgres "medgate/pkg/platform/audit/store/postgres"
	"medgate/pkg/platform/circuit"
)

// counterStore prefers Redis behind a breaker with per-instance fallback,
// then Postgres when selected, then process memory.
func counterStore(cfg *config.Config, rc *platformredis.Client, db *sql.DB, m *ratelimitmetrics.Metrics, log *slog.Logger) ratelimitports.CounterStore {
	local := bucket.New()
	switch {
	case rc != nil:
		primary := bucket.NewRedis(rc.Client, bucket.WithCallTimeout(cfg.Redis.CallTimeout))
		breaker := circuit.New("ratelimit-redis", circuit.WithFailureThreshold(cfg.Redis.BreakerFailures))
		log.Info("rate limit counters on redis")
		return bucket.NewResilient(primary, local, breaker,
			bucket.WithResilientLogger(log),
			bucket.WithResilientMetrics(m),
			bucket.WithProbeInterval(cfg.Redis.BreakerProbe),
		)
	case db != nil && cfg.Postgres.CounterStore:
		log.Info("rate limit counters on postgres")
		return bucket.NewPostgres(db)
	default:
		log.Info("rate limit counters in memory")
		return local
	}
}

// identityStore reads identities from Postgres when configured. Otherwise it
// keeps them in memory, seeded with the development accounts if enabled.
func identityStore(cfg *config.Config, db *sql.DB, log *slog.Logger) (ports.IdentityStore, error) {
	if db != nil {
		return identitypostgres.New(db), nil
	}
	store := identitymemory.New()
	if cfg.Auth.SeedAccounts {
		if err := store.Seed(identitymemory.DefaultAccounts, cfg.Auth.BcryptCost); err != nil {
			return nil, err
		}
		log.Warn("seeded development accounts", "count", len(identitymemory.DefaultAccounts))
	}
	return store, nil
}

// recordStores returns where the publisher writes and, when the Kafka
// materializer runs, the store it fills from the topics.
func recordStores(cfg *config.Config, db *sql.DB, producer *kgo.Client, topics auditkafka.Topics) (audit.Store, audit.Store) {
	var queryable audit.Store = auditmemory.NewInMemoryStore()
	if db != nil {
		queryable = auditpostgres.New(db)
	}
	if producer == nil {
		return queryable, nil
	}
	sink := auditkafka.New(producer, topics)
	if cfg.Kafka.Materialize {
		return sink, queryable
	}
	if db != nil {
		return audit.Fanout(sink, queryable), nil
	}
	return sink, nil
}
