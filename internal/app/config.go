package app

import (
	"errors"
	"time"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// ListenAddr is the HTTP listen address, e.g. ":8080".
	ListenAddr string
	// ChartsPath is the directory holding the chart manifests.
	ChartsPath string
	// BucketURL is the artifact bucket's base URL.
	BucketURL string
	// StorageToken optionally authenticates bucket writes.
	StorageToken string
	// SubgraphURL is the GraphQL endpoint chart units query.
	SubgraphURL string
	// MaxAge is the artifact staleness window.
	MaxAge time.Duration
	// Concurrency bounds per-request parallel chart refreshes.
	Concurrency int

	LogFormat string
	LogLevel  string
}

// NewConfig validates a Config. Defaults for optional fields are applied by
// the CLI layer; the required fields have no sensible defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ChartsPath == "" {
		return nil, errors.New("ChartsPath is a required configuration field and cannot be empty")
	}
	if cfg.BucketURL == "" {
		return nil, errors.New("BucketURL is a required configuration field and cannot be empty")
	}
	if cfg.SubgraphURL == "" {
		return nil, errors.New("SubgraphURL is a required configuration field and cannot be empty")
	}
	return &cfg, nil
}
