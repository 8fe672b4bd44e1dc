package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port    int
	DataDir string

	// Storage selects the repository backend: "sqlite" or "memory".
	Storage string

	LogLevel string

	// Queue manager
	AdmissionInterval time.Duration
	ShutdownGrace     time.Duration

	// Scheduler
	StuckInterval    time.Duration
	StuckTimeout     time.Duration
	RequeueInterval  time.Duration
	RequeueBatchSize int
	CleanupInterval  time.Duration
	JobRetention     time.Duration
	RollupInterval   time.Duration
}

func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("PORT", "7891"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	storage := getEnv("STORAGE", "sqlite")
	if storage != "sqlite" && storage != "memory" {
		return nil, fmt.Errorf("invalid STORAGE %q: must be sqlite or memory", storage)
	}

	requeueBatch, err := strconv.Atoi(getEnv("REQUEUE_BATCH_SIZE", "50"))
	if err != nil {
		return nil, fmt.Errorf("invalid REQUEUE_BATCH_SIZE: %w", err)
	}

	cfg := &Config{
		Port:             port,
		DataDir:          getEnv("DATA_DIR", "/data"),
		Storage:          storage,
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		RequeueBatchSize: requeueBatch,
	}

	durations := []struct {
		key string
		dst *time.Duration
		def time.Duration
	}{
		{"ADMISSION_INTERVAL", &cfg.AdmissionInterval, 5 * time.Second},
		{"SHUTDOWN_GRACE", &cfg.ShutdownGrace, 30 * time.Second},
		{"STUCK_INTERVAL", &cfg.StuckInterval, 5 * time.Minute},
		{"STUCK_TIMEOUT", &cfg.StuckTimeout, 30 * time.Minute},
		{"REQUEUE_INTERVAL", &cfg.RequeueInterval, 10 * time.Minute},
		{"CLEANUP_INTERVAL", &cfg.CleanupInterval, time.Hour},
		{"JOB_RETENTION", &cfg.JobRetention, 7 * 24 * time.Hour},
		{"ROLLUP_INTERVAL", &cfg.RollupInterval, 30 * time.Minute},
	}
	for _, d := range durations {
		v, err := getDuration(d.key, d.def)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
