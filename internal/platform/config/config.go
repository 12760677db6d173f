// Package config assembles the server configuration from defaults, an
// optional .env file and MEDGATE_* environment variables. Nested keys use a
// double underscore: MEDGATE_RATELIMIT__AUTH__CAPACITY=10.
//
// Defaults describe production. A signing key is always required and local
// setups opt into development through .env (see .env.example).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	ratelimitconfig "medgate/internal/ratelimit/config"
	"medgate/pkg/platform/middleware/metadata"
)

const (
	EnvPrefix = "MEDGATE_"

	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"

	// DevSigningKey is accepted only outside production.
	DevSigningKey = "dev-secret-key-change-in-production"
)

type Config struct {
	Server    Server                 `koanf:"server"`
	Log       Log                    `koanf:"log"`
	Auth      Auth                   `koanf:"auth"`
	Redis     RedisConfig            `koanf:"redis"`
	Postgres  Postgres               `koanf:"postgres"`
	Kafka     Kafka                  `koanf:"kafka"`
	Audit     Audit                  `koanf:"audit"`
	RateLimit ratelimitconfig.Config `koanf:"ratelimit"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr              string        `koanf:"addr" validate:"required"`
	Environment       string        `koanf:"environment" validate:"oneof=development production"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	MaxBodyBytes      int64         `koanf:"max_body_bytes" validate:"gt=0"`
	// TrustedProxies is a comma-separated list of CIDRs or addresses whose
	// X-Forwarded-For and X-Real-IP headers are believed.
	TrustedProxies    string        `koanf:"trusted_proxies"`
}

// TrustedProxyList splits TrustedProxies.
func (s Server) TrustedProxyList() []string {
	return splitList(s.TrustedProxies)
}

type Log struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json text"`
}

type Auth struct {
	JWTSigningKey string        `koanf:"jwt_signing_key" validate:"required,min=16"`
	Issuer        string        `koanf:"issuer" validate:"required"`
	Audience      string        `koanf:"audience" validate:"required"`
	TokenTTL      time.Duration `koanf:"token_ttl" validate:"gt=0"`
	StoreTimeout  time.Duration `koanf:"store_timeout" validate:"gt=0"`
	BcryptCost    int           `koanf:"bcrypt_cost" validate:"min=4,max=31"`
	// SeedAccounts loads development logins into the in-memory identity store.
	SeedAccounts bool `koanf:"seed_accounts"`
}

// RedisConfig is empty-URL disabled.
type RedisConfig struct {
	URL             string        `koanf:"url" validate:"omitempty,url"`
	PoolSize        int           `koanf:"pool_size" validate:"min=1"`
	MinIdleConns    int           `koanf:"min_idle_conns" validate:"min=0"`
	DialTimeout     time.Duration `koanf:"dial_timeout" validate:"gt=0"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	CallTimeout     time.Duration `koanf:"call_timeout" validate:"gt=0"`
	BreakerFailures int           `koanf:"breaker_failures" validate:"min=1"`
	BreakerProbe    time.Duration `koanf:"breaker_probe" validate:"gt=0"`
}

// Postgres is empty-DSN disabled.
type Postgres struct {
	DSN             string        `koanf:"dsn"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"min=1"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"gte=0"`
	Migrate         bool          `koanf:"migrate"`
	// CounterStore selects postgres for rate limit windows when Redis is off.
	CounterStore bool `koanf:"counter_store"`
}

// Kafka is empty-brokers disabled. Brokers is a comma-separated list.
type Kafka struct {
	Brokers       string `koanf:"brokers"`
	ClientID      string `koanf:"client_id" validate:"required"`
	EnsureTopics  bool   `koanf:"ensure_topics"`
	Partitions    int32  `koanf:"partitions" validate:"min=1"`
	Replication   int16  `koanf:"replication" validate:"min=1"`
	Materialize   bool   `koanf:"materialize"`
	ConsumerGroup string `koanf:"consumer_group" validate:"required"`
}

// BrokerList splits Brokers.
func (k Kafka) BrokerList() []string {
	return splitList(k.Brokers)
}

func splitList(csv string) []string {
	var out []string
	for _, b := range strings.Split(csv, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Audit sizes the record dispatcher.
type Audit struct {
	QueueSize   int           `koanf:"queue_size" validate:"min=1"`
	Workers     int           `koanf:"workers" validate:"min=1"`
	TaskTimeout time.Duration `koanf:"task_timeout" validate:"gt=0"`
}

// Default returns the production defaults every source overrides. It carries
// no signing key, so Validate fails until one is supplied.
func Default() *Config {
	return &Config{
		Server: Server{
			Addr:              ":8080",
			Environment:       EnvironmentProduction,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			MaxBodyBytes:      1 << 20,
		},
		Log: Log{Level: "info", Format: "json"},
		Auth: Auth{
			Issuer:        "medgate",
			Audience:      "medgate-api",
			TokenTTL:      time.Hour,
			StoreTimeout:  2 * time.Second,
			BcryptCost:    12,
		},
		Redis: RedisConfig{
			PoolSize:        10,
			MinIdleConns:    2,
			DialTimeout:     5 * time.Second,
			ReadTimeout:     3 * time.Second,
			WriteTimeout:    3 * time.Second,
			CallTimeout:     250 * time.Millisecond,
			BreakerFailures: 5,
			BreakerProbe:    time.Second,
		},
		Postgres: Postgres{
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Kafka: Kafka{
			ClientID:      "medgate",
			Partitions:    3,
			Replication:   1,
			ConsumerGroup: "medgate-records",
		},
		Audit: Audit{
			QueueSize:   1024,
			Workers:     4,
			TaskTimeout: 5 * time.Second,
		},
		RateLimit: *ratelimitconfig.DefaultConfig(),
	}
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == EnvironmentProduction
}

// Load reads envFile when it exists, then the environment, over Default.
// Pass "" to skip the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	k := koanf.New(".")
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("invalid rate limit configuration: %w", err)
	}
	if _, err := metadata.NewClientResolver(c.Server.TrustedProxyList()); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.IsProduction() {
		if c.Auth.JWTSigningKey == DevSigningKey {
			return errors.New("invalid configuration: development signing key in production")
		}
		if c.Auth.SeedAccounts {
			return errors.New("invalid configuration: seed accounts enabled in production")
		}
	}
	return nil
}

// envKey maps MEDGATE_RATELIMIT__AUTH__BLOCK_FOR to ratelimit.auth.block_for.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}
