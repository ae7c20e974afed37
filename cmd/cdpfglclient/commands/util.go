package commands

import (
	"fmt"

	"github.com/cdpfgl/cdpfgl-go/internal/logger"
	"github.com/cdpfgl/cdpfgl-go/pkg/client"
	"github.com/cdpfgl/cdpfgl-go/pkg/config"
	"github.com/cdpfgl/cdpfgl-go/pkg/dedupcache"
	"github.com/cdpfgl/cdpfgl-go/pkg/metrics"
)

// loadConfig loads configuration and applies the --server/--host overrides
// common to every subcommand.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(Flags.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	if Flags.ServerURL != "" {
		cfg.Monitor.ServerURL = Flags.ServerURL
	}
	if Flags.Host != "" {
		cfg.Monitor.Host = Flags.Host
	}
	return cfg, nil
}

// newPipeline constructs a client.Pipeline from cfg. When cfg.Monitor.CacheDir
// is set, the dedup cache is backed by an on-disk store so known hashes
// survive between invocations; otherwise every run starts cold and relies
// entirely on the server's NeededHashes confirmation.
func newPipeline(cfg *config.Config) (*client.Pipeline, error) {
	api := client.NewAPIClient(cfg.Monitor.ServerURL)

	var (
		cache *dedupcache.Cache
		err   error
	)
	if cfg.Monitor.CacheDir != "" {
		cache, err = dedupcache.NewPersistent(cfg.Monitor.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("open dedup cache at %q: %w", cfg.Monitor.CacheDir, err)
		}
	} else {
		cache = dedupcache.New()
	}

	return client.NewPipeline(api, cache, cfg.Monitor.Host, int(cfg.Monitor.BlockSize), (*metrics.Metrics)(nil)), nil
}
