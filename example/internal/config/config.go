package config

import (
	"os"
	"time"
)

// Config holds runtime settings for the sample app.
type Config struct {
	// DataDir is where the local outbox database lives.
	DataDir string
	// OwnerID is the acting user; drains are gated on it.
	OwnerID string
	// BackendURL is the hosted table API base (REST writer).
	BackendURL string
	// BackendAPIKey and BackendToken authenticate against the table API.
	BackendAPIKey string
	BackendToken  string
	// BackendDSN selects the direct Postgres writer instead of REST.
	BackendDSN string
	// UploadQueueURL is the media-ingestion FIFO queue; empty disables
	// upload replay.
	UploadQueueURL string
	// SQSEndpoint overrides the SQS endpoint (LocalStack).
	SQSEndpoint string
	// DrainInterval adds a periodic drain on top of the startup trigger.
	DrainInterval time.Duration
	// Retention bounds how long any record may sit in the outbox.
	Retention time.Duration
}

// Load reads env vars and returns Config with sensible defaults for a local
// run against docker-compose.
func Load() Config {
	cfg := Config{
		DataDir:       "./data",
		OwnerID:       "demo-user",
		BackendURL:    "http://localhost:8081/rest/v1",
		DrainInterval: 30 * time.Second,
		Retention:     7 * 24 * time.Hour,
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("OWNER_ID"); v != "" {
		cfg.OwnerID = v
	}
	if v := os.Getenv("BACKEND_URL"); v != "" {
		cfg.BackendURL = v
	}
	if v := os.Getenv("BACKEND_API_KEY"); v != "" {
		cfg.BackendAPIKey = v
	}
	if v := os.Getenv("BACKEND_TOKEN"); v != "" {
		cfg.BackendToken = v
	}
	if v := os.Getenv("BACKEND_DSN"); v != "" {
		cfg.BackendDSN = v
	}
	if v := os.Getenv("UPLOAD_QUEUE_URL"); v != "" {
		cfg.UploadQueueURL = v
	}
	if v := os.Getenv("SQS_ENDPOINT"); v != "" {
		cfg.SQSEndpoint = v
	}
	if v := os.Getenv("DRAIN_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.DrainInterval = d
		}
	}
	if v := os.Getenv("RETENTION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Retention = d
		}
	}
	return cfg
}
