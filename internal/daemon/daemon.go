package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"reflow/internal/api"
	"reflow/internal/archive"
	"reflow/internal/broker"
	"reflow/internal/config"
	"reflow/internal/export"
	"reflow/internal/history"
	"reflow/internal/logging"
	"reflow/internal/pipeline"
	"reflow/internal/registry"
	"reflow/internal/store"
	"reflow/internal/tasks"
)

const shutdownTimeout = 10 * time.Second

// Daemon owns the wired service stack for one data directory.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	lockPath string
	lock     *flock.Flock

	registry *registry.Registry
	tasks    *tasks.Manager
	history  *history.Store
	server   *api.Server

	running atomic.Bool
	serveCh chan error
}

// New constructs a daemon for the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock, loads stored sessions, and begins
// serving the API. It returns once the listener is running.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another reflow daemon instance is already running")
	}

	st, err := store.New(d.cfg, d.logger)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("open session store: %w", err)
	}

	reg, err := registry.New(ctx, d.cfg, st, d.logger)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("load session registry: %w", err)
	}
	d.registry = reg

	hist, err := history.Open(d.cfg)
	if err != nil {
		reg.Close()
		_ = d.lock.Unlock()
		return fmt.Errorf("open run history: %w", err)
	}
	d.history = hist

	events := broker.New()
	heartbeat := time.Duration(d.cfg.Events.HeartbeatSeconds) * time.Second
	d.tasks = tasks.NewManager(events, d.logger, hist, heartbeat)

	d.server = api.NewServer(d.cfg, d.logger, api.Deps{
		Registry: reg,
		Codec:    archive.NewCodec(reg, st, d.logger),
		Tasks:    d.tasks,
		Pipeline: pipeline.New(reg, st, d.logger),
		Exports:  export.NewRegistry(),
		History:  hist,
	})

	d.serveCh = make(chan error, 1)
	go func() {
		d.serveCh <- d.server.ListenAndServe()
	}()

	d.running.Store(true)
	d.logger.Info("reflow daemon started",
		logging.String("lock", d.lockPath),
		logging.String("bind", d.cfg.Paths.APIBind))
	return nil
}

// ServeErr reports a listener failure, if any. It is nil-safe before Start.
func (d *Daemon) ServeErr() <-chan error {
	return d.serveCh
}

// Stop drains the API, cancels running tasks, flushes dirty sessions, and
// releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.server.Shutdown(ctx); err != nil {
		d.logger.Warn("api shutdown", logging.Error(err))
	}

	d.tasks.Close()
	d.registry.Close()
	if err := d.history.Close(); err != nil {
		d.logger.Warn("close run history", logging.Error(err))
	}

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("reflow daemon stopped")
}
