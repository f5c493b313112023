package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	SentryDSN        string  `envconfig:"SENTRY_DSN"`
	SentrySampleRate float64 `envconfig:"SENTRY_SAMPLE_RATE" default:"0.1"`
	Environment      string  `envconfig:"ENVIRONMENT" default:"development"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"agentkb-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	// Reconciliation worker for chunks whose vector index write failed.
	ReindexInterval  time.Duration `envconfig:"REINDEX_INTERVAL" default:"30s"`
	ReindexBatchSize int           `envconfig:"REINDEX_BATCH_SIZE" default:"100"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("AGENTKB", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}
