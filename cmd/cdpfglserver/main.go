// Command cdpfglserver runs the dispatcher HTTP server: it loads
// configuration, opens the configured metadata and data backends, validates
// that together they cover the five-operation contract, and serves the REST
// API until an interrupt signal arrives. A single "start" action covers the
// whole lifecycle (config load, logger init, signal-driven graceful
// shutdown) since this binary has no daemon/user/group subcommands.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cdpfgl/cdpfgl-go/internal/logger"
	"github.com/cdpfgl/cdpfgl-go/pkg/backend"
	"github.com/cdpfgl/cdpfgl-go/pkg/backend/docstore"
	"github.com/cdpfgl/cdpfgl-go/pkg/backend/memdoc"
	"github.com/cdpfgl/cdpfgl-go/pkg/backend/objectstore"
	"github.com/cdpfgl/cdpfgl-go/pkg/config"
	"github.com/cdpfgl/cdpfgl-go/pkg/metrics"
	"github.com/cdpfgl/cdpfgl-go/pkg/server"
)

// Exit codes per the configured-pair capability contract: 0 success, 1
// missing capability, 2 config error, 3 fatal backend init failure.
const (
	exitOK = iota
	exitMissingCapability
	exitConfigError
	exitBackendInit
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	os.Exit(run())
}

func run() int {
	configFile := flag.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/cdpfgl/config.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cdpfglserver: load config: %v\n", err)
		return exitConfigError
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "cdpfglserver: init logger: %v\n", err)
		return exitConfigError
	}

	logger.Info("cdpfglserver starting", "version", version, "commit", commit)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	meta, closeMeta, err := openBackend(ctx, cfg, cfg.Server.BackendMeta)
	if err != nil {
		logger.Error("failed to open metadata backend", "kind", cfg.Server.BackendMeta, "error", err)
		return exitBackendInit
	}
	defer closeMeta()

	data, closeData, err := openBackend(ctx, cfg, cfg.Server.BackendData)
	if err != nil {
		logger.Error("failed to open data backend", "kind", cfg.Server.BackendData, "error", err)
		return exitBackendInit
	}
	defer closeData()

	srv, err := server.NewServer(server.Config{Port: cfg.Server.Port}, meta, data, m)
	if err != nil {
		if errors.Is(err, backend.ErrMissingCapability) {
			logger.Error("configured backend pair does not cover the five-operation contract", "error", err)
			return exitMissingCapability
		}
		logger.Error("failed to construct server", "error", err)
		return exitBackendInit
	}

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		metricsSrv = startMetricsServer(cfg.Metrics.Port, reg)
		defer metricsSrv.Close()
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Start(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("server is running", "port", srv.Port())

	select {
	case <-sigCh:
		signal.Stop(sigCh)
		logger.Info("shutdown signal received, initiating graceful shutdown")
		cancel()
		if err := <-serverDone; err != nil {
			logger.Error("server shutdown error", "error", err)
			return exitBackendInit
		}
	case err := <-serverDone:
		signal.Stop(sigCh)
		if err != nil {
			logger.Error("server error", "error", err)
			return exitBackendInit
		}
	}

	logger.Info("server stopped gracefully")
	return exitOK
}

// openBackend constructs the backend.Backend named by kind ("file",
// "mongodb", or "minio"), returning a no-op closer for backends with
// nothing to release.
func openBackend(ctx context.Context, cfg *config.Config, kind string) (backend.Backend, func(), error) {
	noop := func() {}

	switch kind {
	case "file":
		return memdoc.New(), noop, nil

	case "mongodb":
		b, err := docstore.Open(ctx, docstore.Config{
			URI:        cfg.MongoDBBackend.MongoURI(),
			Database:   cfg.MongoDBBackend.Database,
			HashBase64: cfg.MongoDBBackend.HashBase64,
		})
		if err != nil {
			return nil, noop, err
		}
		return b, func() { _ = b.Close(context.Background()) }, nil

	case "minio":
		b, err := objectstore.Open(ctx, objectstore.Config{
			Endpoint:         cfg.MinioBackend.Hostname,
			Region:           cfg.MinioBackend.Region,
			AccessKeyID:      cfg.MinioBackend.AccessKey,
			SecretAccessKey:  cfg.MinioBackend.SecretKey,
			ForcePathStyle:   cfg.MinioBackend.ForcePathStyle,
			BucketData:       cfg.MinioBackend.BucketData,
			BucketFileMeta:   cfg.MinioBackend.BucketFilemeta,
			AddMissingBucket: cfg.MinioBackend.AddMissingBucket,
		})
		if err != nil {
			return nil, noop, err
		}
		return b, noop, nil

	default:
		return nil, noop, backend.NewError("openBackend", kind, backend.ErrConfigError)
	}
}

func startMetricsServer(port int, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	logger.Info("metrics server listening", "port", port)
	return srv
}
