// Package monitor implements the minimal polling directory watcher that
// drives the client pipeline end to end: periodically walk each configured
// directory and hand every regular file and symlink to a Pipeline, whose
// skip-if-seen check filters out unchanged files. No fsnotify/inotify dependency is introduced — this is a
// deliberate scope decision (see DESIGN.md). Start/Stop follow a
// goroutine + stop-channel lifecycle, idempotent under concurrent calls.
package monitor

import (
	"context"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/cdpfgl/cdpfgl-go/internal/logger"
)

// Archiver is the subset of client.Pipeline the monitor depends on, kept as
// an interface so the monitor is testable without a live server.
type Archiver interface {
	ArchivePath(path string) (skipped bool, err error)
}

// Config configures the monitor's poll loop.
type Config struct {
	// DirList is the set of root directories to walk each tick.
	DirList []string

	// PollInterval is the time between successive walks.
	PollInterval time.Duration
}

// Monitor walks Config.DirList on a fixed interval and archives every
// regular file and symlink it finds, relying on Pipeline's own
// skip-if-seen check to make repeated walks of unchanged files cheap.
type Monitor struct {
	cfg      Config
	archiver Archiver

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// New constructs a Monitor. archiver is typically a *client.Pipeline.
func New(cfg Config, archiver Archiver) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	return &Monitor{cfg: cfg, archiver: archiver}
}

// Start begins the poll loop in a background goroutine. It is a no-op if
// already running.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.stoppedCh = make(chan struct{})
	m.mu.Unlock()

	logger.Info("monitor starting", "dirs", m.cfg.DirList, "interval", m.cfg.PollInterval.String())

	go m.loop(ctx)
}

// Stop signals the poll loop to exit and waits for it to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	stopCh := m.stopCh
	stoppedCh := m.stoppedCh
	m.running = false
	m.mu.Unlock()

	close(stopCh)
	<-stoppedCh
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.stoppedCh)

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	m.walkOnce()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.walkOnce()
		}
	}
}

// walkOnce archives every regular file and symlink under each configured
// directory. Walk errors for individual entries are logged and skipped;
// they do not abort the tick.
func (m *Monitor) walkOnce() {
	for _, root := range m.cfg.DirList {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				logger.Warn("monitor walk error", "path", path, "error", err)
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if d.Type()&fs.ModeSymlink == 0 && !d.Type().IsRegular() {
				return nil
			}

			skipped, err := m.archiver.ArchivePath(path)
			if err != nil {
				logger.Error("archive failed", "path", path, "error", err)
				return nil
			}
			if !skipped {
				logger.Info("archived file", "path", path)
			}
			return nil
		})
		if err != nil {
			logger.Error("monitor walk failed", "root", root, "error", err)
		}
	}
}
