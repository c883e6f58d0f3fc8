// Package config builds the application configuration from environment
// variables. Components receive their slice of this struct at construction;
// nothing reads the environment after startup.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	HTTP     HTTPConfig
	Log      LogConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Stripe   StripeConfig
	Extract  ExtractConfig
	Lookup   LookupConfig
	Kafka    KafkaConfig
}

type HTTPConfig struct {
	Addr string `env:"CASEFLOW_ADDR" env-default:":8080"`
}

type LogConfig struct {
	Level string `env:"CASEFLOW_LOG_LEVEL" env-default:"info"`
}

type DatabaseConfig struct {
	DSN             string        `env:"CASEFLOW_DATABASE_DSN"`
	MaxConns        int32         `env:"CASEFLOW_DATABASE_MAX_CONNS" env-default:"10"`
	MinConns        int32         `env:"CASEFLOW_DATABASE_MIN_CONNS" env-default:"2"`
	MaxConnLifetime time.Duration `env:"CASEFLOW_DATABASE_MAX_CONN_LIFETIME" env-default:"1h"`
}

type RedisConfig struct {
	// URL is optional; without it the in-memory webhook dedup registry is
	// used.
	URL string `env:"CASEFLOW_REDIS_URL"`
}

type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	PriceID       string `env:"STRIPE_PRICE_ID"`
	SiteURL       string `env:"SITE_URL"`
}

type ExtractConfig struct {
	WorkerURL      string        `env:"DOC_EXTRACT_WORKER_URL"`
	Secret         string        `env:"DOC_EXTRACT_SECRET"`
	RequestTimeout time.Duration `env:"DOC_EXTRACT_TIMEOUT" env-default:"30s"`
}

type LookupConfig struct {
	Retries uint64        `env:"CASEFLOW_LOOKUP_RETRIES" env-default:"3"`
	Delay   time.Duration `env:"CASEFLOW_LOOKUP_DELAY" env-default:"1s"`
}

type KafkaConfig struct {
	// Brokers is optional; without it the event relay is not started.
	Brokers       []string      `env:"CASEFLOW_KAFKA_BROKERS" env-separator:","`
	Topic         string        `env:"CASEFLOW_KAFKA_TOPIC" env-default:"caseflow.events"`
	RelayInterval time.Duration `env:"CASEFLOW_RELAY_INTERVAL" env-default:"5s"`
}

// FromEnv reads the full configuration from the environment.
func FromEnv() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read environment config: %w", err)
	}
	return cfg, nil
}
