package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"kycstatus/pkg/platform/dedupe"
)

// Upstream sources for raw KYC records.
const (
	SourceFineract = "fineract"
	SourcePostgres = "postgres"
	// SourceFailover reads Fineract and falls back to Postgres while it fails.
	SourceFailover = "failover"
)

// Config captures process level configuration.
type Config struct {
	Addr            string        `env:"KYC_STATUS_ADDR" envDefault:":8080"`
	LogLevel        string        `env:"KYC_STATUS_LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"KYC_STATUS_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	CacheTTL   time.Duration `env:"KYC_STATUS_CACHE_TTL" envDefault:"30s"`
	BatchDelay time.Duration `env:"KYC_STATUS_BATCH_DELAY" envDefault:"50ms"`

	Source string `env:"KYC_STATUS_UPSTREAM_SOURCE" envDefault:"fineract"`

	FineractURL      string        `env:"KYC_STATUS_FINERACT_URL"`
	FineractTenant   string        `env:"KYC_STATUS_FINERACT_TENANT" envDefault:"default"`
	FineractUsername string        `env:"KYC_STATUS_FINERACT_USERNAME"`
	FineractPassword string        `env:"KYC_STATUS_FINERACT_PASSWORD"`
	FineractTimeout  time.Duration `env:"KYC_STATUS_FINERACT_TIMEOUT" envDefault:"10s"`
	FineractRetries  int           `env:"KYC_STATUS_FINERACT_RETRIES" envDefault:"2"`

	PostgresDSN string `env:"KYC_STATUS_POSTGRES_DSN"`

	BreakerFailures      int           `env:"KYC_STATUS_BREAKER_FAILURES" envDefault:"5"`
	BreakerSuccesses     int           `env:"KYC_STATUS_BREAKER_SUCCESSES" envDefault:"3"`
	BreakerProbeInterval time.Duration `env:"KYC_STATUS_BREAKER_PROBE_INTERVAL" envDefault:"10s"`

	KafkaBrokers []string `env:"KYC_STATUS_KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KYC_STATUS_KAFKA_TOPIC" envDefault:"kyc.status.changed"`
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.KafkaBrokers = dedupe.Trimmed(cfg.KafkaBrokers)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the selected upstream source is fully configured.
func (c Config) Validate() error {
	switch c.Source {
	case SourceFineract:
		if c.FineractURL == "" {
			return fmt.Errorf("KYC_STATUS_FINERACT_URL is required for source %q", c.Source)
		}
	case SourcePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("KYC_STATUS_POSTGRES_DSN is required for source %q", c.Source)
		}
	case SourceFailover:
		if c.FineractURL == "" || c.PostgresDSN == "" {
			return fmt.Errorf("source %q needs both KYC_STATUS_FINERACT_URL and KYC_STATUS_POSTGRES_DSN", c.Source)
		}
	default:
		return fmt.Errorf("unknown upstream source %q", c.Source)
	}

	if c.CacheTTL <= 0 {
		return fmt.Errorf("KYC_STATUS_CACHE_TTL must be positive")
	}
	if c.BatchDelay < 0 {
		return fmt.Errorf("KYC_STATUS_BATCH_DELAY must not be negative")
	}
	return nil
}

// KafkaEnabled reports whether status change events should be published.
func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}
