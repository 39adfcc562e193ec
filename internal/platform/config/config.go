package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	id "covera/pkg/domain"
)

// Server captures process-level configuration for the ledger service.
type Server struct {
	Addr string

	// Arbiter is the sole principal authorized to settle claims. It also
	// receives the processing fee on settlement.
	Arbiter id.PrincipalID

	// TaxPercent is applied to a policy's coverage amount to compute the
	// escrow required when filing a claim. Set once at startup.
	TaxPercent int64

	// ProcessingFeePercent is deducted from a claim payout and transferred
	// to the arbiter on settlement. Set once at startup.
	ProcessingFeePercent int64

	// JWTSigningKey signs the bearer tokens that carry caller principals.
	JWTSigningKey string

	// AdminTokenHash is the bcrypt hash of the arbiter's admin token.
	// Empty disables the admin surface.
	AdminTokenHash string

	// DatabaseURL selects the Postgres stores when set; empty runs in-memory.
	DatabaseURL string

	Redis RedisConfig

	// KafkaBrokers enables the Kafka audit publisher when non-empty.
	KafkaBrokers []string
	KafkaTopic   string
}

// RedisConfig captures connection settings for the listing cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
// Percentages outside [0,100] and a missing arbiter are rejected here, before
// any state exists.
func FromEnv() (Server, error) {
	addr := os.Getenv("COVERA_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	arbiter := id.PrincipalID(os.Getenv("COVERA_ARBITER"))
	if arbiter.IsZero() {
		return Server{}, fmt.Errorf("COVERA_ARBITER is required")
	}

	taxPercent, err := percentFromEnv("COVERA_TAX_PERCENT", 0)
	if err != nil {
		return Server{}, err
	}
	feePercent, err := percentFromEnv("COVERA_PROCESSING_FEE_PERCENT", 0)
	if err != nil {
		return Server{}, err
	}

	jwtSigningKey := os.Getenv("COVERA_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	cfg := Server{
		Addr:                 addr,
		Arbiter:              arbiter,
		TaxPercent:           taxPercent,
		ProcessingFeePercent: feePercent,
		JWTSigningKey:        jwtSigningKey,
		AdminTokenHash:       os.Getenv("COVERA_ADMIN_TOKEN_HASH"),
		DatabaseURL:          os.Getenv("COVERA_DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("COVERA_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		KafkaTopic: os.Getenv("COVERA_KAFKA_TOPIC"),
	}
	if brokers := os.Getenv("COVERA_KAFKA_BROKERS"); brokers != "" {
		for _, broker := range strings.Split(brokers, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, broker)
			}
		}
	}
	return cfg, nil
}

func percentFromEnv(key string, fallback int64) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if value < 0 || value > 100 {
		return 0, fmt.Errorf("%s must be between 0 and 100, got %d", key, value)
	}
	return value, nil
}
