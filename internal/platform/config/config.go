// Package config reads process configuration from the environment so main
// stays lean. Invalid values fall back to defaults and are reported as
// warnings rather than failing startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Migrate         bool
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	GuardTTL     time.Duration
}

type KafkaConfig struct {
	Brokers     []string
	NotifyTopic string
	ClientID    string
}

// MatchingConfig is matching policy.
type MatchingConfig struct {
	VectorDim        int
	SuggestionTTL    time.Duration
	ChatUnlockWindow time.Duration
	RunTimeout       time.Duration
	ExactLimit       int
	MinScore         float64
	SolverSeed       uint64
	SolverIterations int
	SweepInterval    time.Duration
}

// TracingConfig controls OTLP span export. When disabled the global no-op
// tracer provider stays installed.
type TracingConfig struct {
	Enabled       bool
	Endpoint      string
	Insecure      bool
	SamplingRatio float64
	ServiceName   string
}

type AuthConfig struct {
	AdminJWTSigningKey string
	CronSecret         string
}

// Config is the full process configuration.
type Config struct {
	Server   Server
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Matching MatchingConfig
	Tracing  TracingConfig
	Auth     AuthConfig
	LogLevel string
}

// FromEnv builds a Config from environment variables. The returned warnings
// name every variable that was set but could not be parsed.
func FromEnv() (Config, []string) {
	r := &reader{lookup: os.LookupEnv}
	cfg := Config{
		Server: Server{
			Addr:            r.str("MATCHCORE_ADDR", ":8080"),
			ShutdownTimeout: r.duration("MATCHCORE_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			URL:             r.str("DATABASE_URL", ""),
			MaxOpenConns:    r.integer("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    r.integer("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: r.duration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			Migrate:         r.boolean("DB_MIGRATE", true),
		},
		Redis: RedisConfig{
			URL:          r.str("REDIS_URL", ""),
			PoolSize:     r.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: r.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  r.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  r.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: r.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			GuardTTL:     r.duration("MATCH_RUN_GUARD_TTL", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:     r.list("KAFKA_BROKERS"),
			NotifyTopic: r.str("KAFKA_NOTIFY_TOPIC", "matching.events"),
			ClientID:    r.str("KAFKA_CLIENT_ID", "matchcore"),
		},
		Matching: MatchingConfig{
			VectorDim:        r.integer("MATCH_VECTOR_DIM", 50),
			SuggestionTTL:    r.duration("MATCH_SUGGESTION_TTL", 72*time.Hour),
			ChatUnlockWindow: r.duration("MATCH_CHAT_UNLOCK_WINDOW", 48*time.Hour),
			RunTimeout:       r.duration("MATCH_RUN_TIMEOUT", 2*time.Minute),
			ExactLimit:       r.integer("MATCH_EXACT_LIMIT", 50000),
			MinScore:         r.float("MATCH_MIN_SCORE", 0),
			SolverSeed:       r.uint("MATCH_SOLVER_SEED", 0),
			SolverIterations: r.integer("MATCH_SOLVER_ITERATIONS", 5000),
			SweepInterval:    r.duration("MATCH_SWEEP_INTERVAL", 0),
		},
		Tracing: TracingConfig{
			Enabled:       r.boolean("OTEL_TRACING_ENABLED", false),
			Endpoint:      r.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:      r.boolean("OTEL_EXPORTER_OTLP_INSECURE", true),
			SamplingRatio: r.ratio("OTEL_SAMPLING_RATIO", 1),
			ServiceName:   r.str("OTEL_SERVICE_NAME", "matchcore"),
		},
		Auth: AuthConfig{
			AdminJWTSigningKey: r.str("ADMIN_JWT_SIGNING_KEY", ""),
			CronSecret:         r.str("CRON_SECRET", ""),
		},
		LogLevel: r.str("LOG_LEVEL", "info"),
	}
	return cfg, r.warnings
}

type reader struct {
	lookup   func(string) (string, bool)
	warnings []string
}

func (r *reader) raw(key string) (string, bool) {
	v, ok := r.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r *reader) warn(key, value string, def any) {
	r.warnings = append(r.warnings, fmt.Sprintf("%s=%q is invalid, using %v", key, value, def))
}

func (r *reader) str(key, def string) string {
	if v, ok := r.raw(key); ok {
		return v
	}
	return def
}

func (r *reader) list(key string) []string {
	v, ok := r.raw(key)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (r *reader) integer(key string, def int) int {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		r.warn(key, v, def)
		return def
	}
	return n
}

func (r *reader) uint(key string, def uint64) uint64 {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		r.warn(key, v, def)
		return def
	}
	return n
}

func (r *reader) float(key string, def float64) float64 {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || f > 100 {
		r.warn(key, v, def)
		return def
	}
	return f
}

func (r *reader) ratio(key string, def float64) float64 {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || f > 1 {
		r.warn(key, v, def)
		return def
	}
	return f
}

func (r *reader) boolean(key string, def bool) bool {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.warn(key, v, def)
		return def
	}
	return b
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		r.warn(key, v, def)
		return def
	}
	return d
}
