package config

import (
	"strings"
	"time"

	"github.com/cdpfgl/cdpfgl-go/pkg/hashchunk"
)

// ApplyDefaults fills unset fields with sensible defaults. Zero values are
// replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
	applyServerDefaults(&cfg.Server)
	applyMongoDefaults(&cfg.MongoDBBackend)
	applyMinioDefaults(&cfg.MinioBackend)
	applyMonitorDefaults(&cfg.Monitor)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
}

func applyMongoDefaults(cfg *MongoDBBackendConfig) {
	if cfg.Port == 0 {
		cfg.Port = 27017
	}
}

func applyMinioDefaults(cfg *MinioBackendConfig) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.BucketData == "" {
		cfg.BucketData = "cdpfgl-data"
	}
	if cfg.BucketFilemeta == "" {
		cfg.BucketFilemeta = "cdpfgl-filemeta"
	}
}

func applyMonitorDefaults(cfg *MonitorConfig) {
	if cfg.BlockSize == 0 {
		cfg.BlockSize = hashchunk.DefaultBlockSize
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 10 * time.Second
	}
}
