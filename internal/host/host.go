// Package host assembles funclibd's services into a running host: the hook
// bus, projects, run configurations, the worker pool, the UI-thread
// dispatcher, the directory index and the function library.
package host

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/funclibd/internal/config"
	"github.com/fyrsmithlabs/funclibd/internal/dispatch"
	"github.com/fyrsmithlabs/funclibd/internal/hooks"
	"github.com/fyrsmithlabs/funclibd/internal/ignore"
	"github.com/fyrsmithlabs/funclibd/internal/library"
	"github.com/fyrsmithlabs/funclibd/internal/logging"
	"github.com/fyrsmithlabs/funclibd/internal/project"
	"github.com/fyrsmithlabs/funclibd/internal/runconfig"
	"github.com/fyrsmithlabs/funclibd/internal/telemetry"
	"github.com/fyrsmithlabs/funclibd/internal/vfs"
)

// Host owns every long-lived service. Build it with New and release it with
// Shutdown.
type Host struct {
	Config     *config.Config
	Logger     *logging.Logger
	Telemetry  *telemetry.Telemetry
	Bus        *hooks.HookManager
	Pool       *dispatch.Pool
	Dispatcher *dispatch.Dispatcher
	Index      *vfs.Index
	Projects   *project.Manager
	RunConfigs *runconfig.Manager
	Library    *library.Manager
	Listener   *library.Listener

	forget hooks.Subscription
}

// Option configures New.
type Option func(*options)

type options struct {
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
}

// WithLogger uses logger instead of building one from config.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTelemetry uses tel instead of building telemetry from config.
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(o *options) { o.telemetry = tel }
}

// New builds a host from cfg:
//  1. Telemetry and the logger
//  2. The hook bus, with disabled hooks from config
//  3. The worker pool and the UI-thread dispatcher
//  4. Project and run configuration managers
//  5. The library manager and its listener, registered on the bus
func New(ctx context.Context, cfg *config.Config, version string, opts ...Option) (*Host, error) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	hookCfg, err := hooks.FromNames(cfg.Hooks.Disabled)
	if err != nil {
		return nil, fmt.Errorf("invalid hooks configuration: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	h := &Host{Config: cfg}

	h.Telemetry = o.telemetry
	if h.Telemetry == nil {
		tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg, version))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		h.Telemetry = tel
	}

	h.Logger = o.logger
	if h.Logger == nil {
		logger, err := newLogger(cfg, h.Telemetry)
		if err != nil {
			_ = h.Telemetry.Shutdown(ctx)
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		h.Logger = logger
	}
	if err := h.Telemetry.Err(); err != nil {
		h.Logger.Warn(ctx, "telemetry degraded, continuing without export", zap.Error(err))
	}

	h.Bus = hooks.NewHookManager(hookCfg)

	h.Pool, err = dispatch.NewPool(cfg.Dispatch.Workers, cfg.Dispatch.QueueSize, h.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to start worker pool: %w", err)
	}
	h.Dispatcher = dispatch.NewDispatcher(h.Logger)
	h.Index = vfs.NewIndex(h.Logger)

	h.Projects = project.NewManager(h.Bus, h.Logger)
	h.RunConfigs = runconfig.NewManager(h.Bus, h.Logger)

	metrics, err := library.NewMetrics(h.Telemetry.Meter(library.InstrumentationName))
	if err != nil {
		h.Logger.Warn(ctx, "library metrics unavailable", zap.Error(err))
	}
	h.Library = library.NewManager(h.Pool, h.Dispatcher, h.Index,
		library.WithManifestFile(cfg.Library.ManifestFile),
		library.WithExtension(cfg.Library.Extension),
		library.WithPathUpdater(runconfig.NewPythonPathUpdater(cfg.RunConfig.ExtraPythonPath, h.Logger)),
		library.WithLogger(h.Logger),
		library.WithTracer(h.Telemetry.Tracer(library.InstrumentationName)),
		library.WithMetrics(metrics),
	)
	h.Listener = library.NewListener(h.Library, h.Logger)
	h.Listener.Register(h.Bus)

	h.forget = h.Bus.Subscribe(hooks.HookProjectClosed, func(_ context.Context, e hooks.Event) error {
		if p, ok := e.Project.(*project.Project); ok {
			h.Index.Forget(p.Path)
		}
		return nil
	})

	h.Logger.Debug(ctx, "host started",
		zap.Int("workers", cfg.Dispatch.Workers),
		zap.String("manifest_file", cfg.Library.ManifestFile),
		zap.Bool("telemetry", h.Telemetry.IsEnabled()))

	return h, nil
}

func newLogger(cfg *config.Config, tel *telemetry.Telemetry) (*logging.Logger, error) {
	logCfg, err := logging.FromAppConfig(cfg.Logging)
	if err != nil {
		return nil, err
	}
	provider := tel.LoggerProvider()
	logCfg.Output.OTEL = provider != nil
	return logging.NewLogger(logCfg, provider)
}

// Watch starts a watcher on an open project, configured from the watch
// section of the config. Paths matched by the project's ignore files are not
// watched. The caller stops the watcher.
func (h *Host) Watch(ctx context.Context, p *project.Project, onChange func(vfs.Change)) (*vfs.Watcher, error) {
	matcher, err := ignore.NewParser(h.Config.Watch.IgnoreFiles, nil).ParseProject(p.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ignore files: %w", err)
	}

	w, err := vfs.NewWatcher(p.Path, h.Index, vfs.WatcherOptions{
		Interval: h.Config.Watch.RefreshInterval.Duration(),
		Burst:    h.Config.Watch.Burst,
		OnChange: onChange,
		Ignore:   matcher.Match,
	}, h.Logger)
	if err != nil {
		return nil, err
	}
	if err := w.Start(logging.WithProject(ctx, p.ID, p.Path)); err != nil {
		w.Stop()
		return nil, fmt.Errorf("failed to watch %s: %w", p.Path, err)
	}
	return w, nil
}

// Shutdown closes every open project (running library cleanup), drains the
// pool and the dispatcher, then flushes telemetry and logs.
func (h *Host) Shutdown(ctx context.Context) error {
	var errs []error

	// Pending writes land before cleanup reads the manifest.
	if err := h.Pool.Close(); err != nil {
		errs = append(errs, fmt.Errorf("pool: %w", err))
	}
	if err := h.Projects.CloseAll(ctx); err != nil {
		errs = append(errs, err)
	}

	h.Listener.Close()
	h.forget.Close()
	h.Dispatcher.Stop()
	_ = h.Index.Close()

	if err := h.Telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}
	_ = h.Logger.Sync() // Best-effort sync on shutdown

	return errors.Join(errs...)
}
