package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr        string
	Environment string
	LogLevel    string

	DatabaseURL string
	Redis       Redis
	Kafka       Kafka

	Ledger   Collaborator
	Verifier Collaborator
	Minter   Collaborator

	Fraud       Fraud
	Attestation Attestation
	RateLimit   RateLimit

	RequirementCacheTTL time.Duration
	MaxBodyBytes        int64
	TrustedProxies      []string
}

// Redis configures the optional requirement lookup cache.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Enabled reports whether a Redis URL was configured.
func (r Redis) Enabled() bool { return r.URL != "" }

// Kafka configures the lifecycle event publisher.
type Kafka struct {
	Brokers     []string
	EventsTopic string
}

// Enabled reports whether brokers were configured.
func (k Kafka) Enabled() bool { return len(k.Brokers) > 0 }

// Collaborator configures one remote dependency. An empty URL selects the
// simulated implementation.
type Collaborator struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Simulated reports whether no remote endpoint was configured.
func (c Collaborator) Simulated() bool { return c.URL == "" }

// Fraud holds the advisory scoring thresholds.
type Fraud struct {
	LargeBatchThreshold int
	LargeBatchPenalty   float64
	UniformMinCount     int
	UniformPenalty      float64
	ReviewThreshold     float64
}

// RateLimit configures per-client API quotas.
type RateLimit struct {
	Disabled  bool
	ReadLimit int
	// WriteLimit covers every non-GET API request.
	WriteLimit int
	Window     time.Duration
}

// Attestation configures signed eligibility attestations.
type Attestation struct {
	SigningKey string
	TTL        time.Duration
	Issuer     string
}

const (
	DefaultLargeBatchThreshold = 500
	DefaultLargeBatchPenalty   = 0.05
	DefaultUniformMinCount     = 3
	DefaultUniformPenalty      = 0.3
	DefaultReviewThreshold     = 0.3

	defaultCollaboratorTimeout = 5 * time.Second
)

// FromEnv builds a Server config from environment variables so main stays lean.
// Invalid values fall back to defaults.
func FromEnv() Server {
	return Server{
		Addr:        getString("NEXUSCRED_ADDR", ":8080"),
		Environment: getString("NEXUSCRED_ENV", "dev"),
		LogLevel:    getString("LOG_LEVEL", "info"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers:     getList("KAFKA_BROKERS"),
			EventsTopic: getString("KAFKA_EVENTS_TOPIC", "nexuscred.events"),
		},
		Ledger: Collaborator{
			URL:     os.Getenv("LEDGER_URL"),
			APIKey:  os.Getenv("LEDGER_API_KEY"),
			Timeout: getDuration("LEDGER_TIMEOUT", defaultCollaboratorTimeout),
		},
		Verifier: Collaborator{
			URL:     os.Getenv("VERIFIER_URL"),
			APIKey:  os.Getenv("VERIFIER_API_KEY"),
			Timeout: getDuration("VERIFIER_TIMEOUT", defaultCollaboratorTimeout),
		},
		Minter: Collaborator{
			URL:     os.Getenv("MINTER_URL"),
			APIKey:  os.Getenv("MINTER_API_KEY"),
			Timeout: getDuration("MINTER_TIMEOUT", defaultCollaboratorTimeout),
		},
		Fraud: Fraud{
			LargeBatchThreshold: getInt("FRAUD_LARGE_BATCH_THRESHOLD", DefaultLargeBatchThreshold),
			LargeBatchPenalty:   getFloat("FRAUD_LARGE_BATCH_PENALTY", DefaultLargeBatchPenalty),
			UniformMinCount:     getInt("FRAUD_UNIFORM_MIN_COUNT", DefaultUniformMinCount),
			UniformPenalty:      getFloat("FRAUD_UNIFORM_PENALTY", DefaultUniformPenalty),
			ReviewThreshold:     getFloat("FRAUD_REVIEW_THRESHOLD", DefaultReviewThreshold),
		},
		Attestation: Attestation{
			// dev default; override in any shared environment
			SigningKey: getString("ATTESTATION_SIGNING_KEY", "dev-attestation-key-change-me"),
			TTL:        getDuration("ATTESTATION_TTL", 24*time.Hour),
			Issuer:     getString("ATTESTATION_ISSUER", "nexuscred"),
		},
		RateLimit: RateLimit{
			Disabled:   getBool("RATE_LIMIT_DISABLED", false),
			ReadLimit:  getInt("RATE_LIMIT_READ", 300),
			WriteLimit: getInt("RATE_LIMIT_WRITE", 60),
			Window:     getDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		RequirementCacheTTL: getDuration("REQUIREMENT_CACHE_TTL", 10*time.Minute),
		MaxBodyBytes:        int64(getInt("MAX_BODY_BYTES", 8<<20)),
		TrustedProxies:      getList("TRUSTED_PROXIES"),
	}
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			return f
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

func getList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
