package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"stageplan/internal/archive"
	"stageplan/internal/config"
	"stageplan/internal/core"
	"stageplan/internal/observability"
	"stageplan/pkg/domain"
)

// app carries the per-invocation stack: config, logger, metrics and the
// lazily opened stores.
type app struct {
	out        io.Writer
	configPath string
	verbose    bool

	cfg      *config.Config
	logger   *observability.ZapLogger
	metrics  core.MetricsRecorder
	registry *prometheus.Registry
	expvar   *observability.ExpvarRecorder

	store     domain.SnapshotStore
	ownsStore bool
	archive   *archive.Archive
}

func newApp(out io.Writer) *app {
	return &app{out: out}
}

// setup loads configuration and builds the logger and metrics recorder.
func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}
	a.cfg = cfg
	logger, err := observability.NewLogger(cfg.LogOptions())
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	a.logger = logger
	switch strings.ToLower(cfg.Metrics.Backend) {
	case "prometheus":
		a.registry = prometheus.NewRegistry()
		rec, err := observability.NewPrometheusRecorder(a.registry)
		if err != nil {
			return err
		}
		a.metrics = rec
	case "expvar":
		rec, err := observability.NewExpvarRecorder("")
		if err != nil {
			return err
		}
		a.expvar = rec
		a.metrics = rec
	}
	return nil
}

func (a *app) engineOptions() []core.Option {
	opts := []core.Option{
		core.WithMaxCableConnections(a.cfg.Engine.MaxCableConnections),
		core.WithNotifier(domain.NotifierFunc(func(n domain.Notification) {
			a.logger.Warn("engine notification", "code", n.Code, "severity", n.Severity, "entity", n.Entity, "stage", n.Stage)
		})),
	}
	if a.logger != nil {
		opts = append(opts, core.WithLogger(a.logger))
	}
	if a.metrics != nil {
		opts = append(opts, core.WithMetrics(a.metrics))
	}
	return opts
}

func (a *app) snapshotStore(ctx context.Context) (domain.SnapshotStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := core.OpenSnapshotStore(ctx, a.cfg.StorageOptions())
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	a.store, a.ownsStore = s, true
	return s, nil
}

func (a *app) archiveStore(ctx context.Context) (*archive.Archive, error) {
	if a.archive != nil {
		return a.archive, nil
	}
	ar, err := archive.Open(ctx, a.cfg.ArchiveOptions())
	if err != nil {
		return nil, err
	}
	a.archive = ar
	return ar, nil
}

// close releases owned resources and reports collected metrics.
func (a *app) close() error {
	var err error
	if a.ownsStore && a.store != nil {
		err = a.store.Close()
		a.store, a.ownsStore = nil, false
	}
	if a.logger == nil {
		return err
	}
	if a.registry != nil {
		if mfs, gerr := a.registry.Gather(); gerr == nil {
			a.logger.Debug("metrics gathered", "families", len(mfs))
		}
	}
	if a.expvar != nil {
		if b, jerr := a.expvar.JSON(); jerr == nil {
			a.logger.Debug("metrics gathered", "expvar", a.expvar.Name(), "snapshot", string(b))
		}
	}
	_ = a.logger.Sync()
	return err
}
