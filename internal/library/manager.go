package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/funclibd/internal/dispatch"
	"github.com/fyrsmithlabs/funclibd/internal/logging"
	"github.com/fyrsmithlabs/funclibd/internal/runconfig"
	"github.com/fyrsmithlabs/funclibd/internal/vfs"
)

const (
	// DefaultManifestFile is the manifest name used when none is configured.
	DefaultManifestFile = "function_manager.py"

	// DefaultExtension is the function file extension used when none is
	// configured.
	DefaultExtension = ".py"
)

// Executor runs background tasks.
type Executor interface {
	Submit(ctx context.Context, task dispatch.Task) error
}

// UIThread runs continuations on the host's single-threaded dispatcher.
type UIThread interface {
	InvokeLater(fn func()) error
}

// Manager writes function files into a project's library and removes them
// again. Writes and cleanups take no locks: concurrent writes of distinct
// names are safe, concurrent writes of one name leave one winner on disk and
// two manifest lines.
type Manager struct {
	manifestFile string
	extension    string

	executor  Executor
	ui        UIThread
	refresher vfs.Refresher
	updater   runconfig.PathUpdater

	logger  *logging.Logger
	tracer  trace.Tracer
	metrics *Metrics
}

// Option configures Manager.
type Option func(*Manager)

// WithManifestFile sets the manifest file name.
func WithManifestFile(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.manifestFile = name
		}
	}
}

// WithExtension sets the function file extension, including the dot.
func WithExtension(ext string) Option {
	return func(m *Manager) {
		if ext != "" {
			m.extension = ext
		}
	}
}

// WithPathUpdater sets the updater run configuration hooks delegate to.
func WithPathUpdater(u runconfig.PathUpdater) Option {
	return func(m *Manager) {
		m.updater = u
	}
}

// WithLogger sets a custom logger for the manager.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithTracer sets the tracer spans are started on.
func WithTracer(t trace.Tracer) Option {
	return func(m *Manager) {
		if t != nil {
			m.tracer = t
		}
	}
}

// WithMetrics sets custom metrics for the manager.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// NewManager creates a library manager. Writes scheduled with WriteToLibrary
// run on executor; the refresh that follows runs on ui. A nil refresher
// skips refreshes and a nil ui runs them inline.
func NewManager(executor Executor, ui UIThread, refresher vfs.Refresher, opts ...Option) *Manager {
	metrics, _ := NewMetrics(nil)

	m := &Manager{
		manifestFile: DefaultManifestFile,
		extension:    DefaultExtension,
		executor:     executor,
		ui:           ui,
		refresher:    refresher,
		logger:       logging.NewNop(),
		tracer:       otel.Tracer(InstrumentationName),
		metrics:      metrics,
	}

	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.Named("library")

	return m
}

// FunctionPath returns where the function called name is stored under root.
// Names are not validated: separators in name reach the filesystem.
func (m *Manager) FunctionPath(root, name string) string {
	return filepath.Join(root, name+m.extension)
}

// ManifestPath returns the manifest location under root.
func (m *Manager) ManifestPath(root string) string {
	return filepath.Join(root, m.manifestFile)
}

// WriteToLibrary schedules Write on the executor and returns at once. When
// the write finishes, successfully or not, a recursive asynchronous refresh of
// root is queued on the UI thread. The returned Pending reports the write
// error.
//
// Scheduled writes are not cancelled by ctx; ctx only bounds the wait for
// queue space.
func (m *Manager) WriteToLibrary(ctx context.Context, root, name, code string) *Pending {
	opID := uuid.New().String()
	pending := newPending(opID)
	taskCtx := logging.WithOperationID(context.WithoutCancel(ctx), opID)

	task := func(context.Context) {
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("write of %s panicked: %v", name, r)
				m.metrics.RecordError(taskCtx, "write")
				m.logger.Error(taskCtx, "function write panicked",
					zap.String("function", name),
					zap.Any("panic", r))
			}
			m.scheduleRefresh(taskCtx, root, func() { pending.complete(err) })
		}()

		err = m.Write(taskCtx, root, name, code)
		if err != nil {
			m.logger.Error(taskCtx, "failed to write function",
				zap.String("function", name),
				zap.String("root", root),
				zap.Error(err))
		}
	}

	if m.executor == nil {
		task(taskCtx)
		return pending
	}
	if err := m.executor.Submit(ctx, task); err != nil {
		m.metrics.RecordError(taskCtx, "write")
		m.logger.Error(taskCtx, "failed to schedule function write",
			zap.String("function", name),
			zap.Error(err))
		pending.complete(fmt.Errorf("schedule write of %s: %w", name, err))
	}
	return pending
}

// Write stores code as the function called name under root, replacing any
// previous version, and appends its import statement to the manifest.
func (m *Manager) Write(ctx context.Context, root, name, code string) (err error) {
	ctx, span := m.tracer.Start(ctx, "library.Write", trace.WithAttributes(
		attribute.String("library.root", root),
		attribute.String("library.function", name),
	))
	start := time.Now()
	defer func() {
		if err != nil {
			m.metrics.RecordError(ctx, "write")
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			m.metrics.RecordWrite(ctx, time.Since(start))
		}
		span.End()
	}()

	path := m.FunctionPath(root, name)
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return fmt.Errorf("write function %s: %w", name, err)
	}

	manifest, err := os.OpenFile(m.ManifestPath(root), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open manifest: %w", err)
	}
	if _, err := manifest.WriteString(ImportStatement(name)); err != nil {
		_ = manifest.Close()
		return fmt.Errorf("append manifest entry for %s: %w", name, err)
	}
	if err := manifest.Close(); err != nil {
		return fmt.Errorf("close manifest: %w", err)
	}

	m.logger.Debug(ctx, "function written", zap.String("function", name), zap.String("path", path))
	return nil
}

// scheduleRefresh queues a refresh of root on the UI thread and calls done
// once it has been requested.
func (m *Manager) scheduleRefresh(ctx context.Context, root string, done func()) {
	refresh := func() {
		defer done()
		if m.refresher == nil {
			return
		}
		err := m.refresher.Refresh(ctx, root, vfs.RefreshOptions{Recursive: true, Async: true}, func(change vfs.Change, err error) {
			if err != nil {
				m.logger.Warn(ctx, "library refresh failed", zap.String("root", root), zap.Error(err))
				return
			}
			m.logger.Trace(ctx, "library refreshed",
				zap.String("root", root),
				zap.Strings("added", change.Added),
				zap.Strings("modified", change.Modified))
		})
		if err != nil {
			m.logger.Warn(ctx, "failed to request library refresh", zap.String("root", root), zap.Error(err))
		}
	}

	if m.ui == nil {
		refresh()
		return
	}
	if err := m.ui.InvokeLater(refresh); err != nil {
		m.logger.Warn(ctx, "failed to queue library refresh", zap.String("root", root), zap.Error(err))
		done()
	}
}

// FailedFile is a function file cleanup could not remove.
type FailedFile struct {
	Path string `json:"path" yaml:"path"`
	Err  error  `json:"-" yaml:"-"`
}

// CleanupReport describes what DeleteLibraryFiles did.
type CleanupReport struct {
	Deleted         []string      `json:"deleted" yaml:"deleted"`
	Missing         []string      `json:"missing" yaml:"missing"`
	Failed          []FailedFile  `json:"failed" yaml:"failed"`
	Skipped         []SkippedLine `json:"skipped" yaml:"skipped"`
	ManifestRemoved bool          `json:"manifest_removed" yaml:"manifest_removed"`
}

// DeleteLibraryFiles removes every function file named in root's manifest,
// then the manifest itself. Files already gone count as missing, not as
// failures. A file that cannot be removed does not stop the others, nor the
// removal of the manifest; such failures are returned joined.
//
// A root without a manifest yields an empty report and no error.
func (m *Manager) DeleteLibraryFiles(ctx context.Context, root string) (report CleanupReport, err error) {
	ctx, span := m.tracer.Start(ctx, "library.DeleteLibraryFiles", trace.WithAttributes(
		attribute.String("library.root", root),
	))
	defer func() {
		span.SetAttributes(
			attribute.Int("library.deleted", len(report.Deleted)),
			attribute.Int("library.missing", len(report.Missing)),
			attribute.Int("library.failed", len(report.Failed)),
		)
		m.metrics.RecordDeletes(ctx, len(report.Deleted))
		if err != nil {
			m.metrics.RecordError(ctx, "delete")
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	manifestPath := m.ManifestPath(root)
	names, skipped, err := m.readManifest(manifestPath)
	if errors.Is(err, os.ErrNotExist) {
		m.logger.Debug(ctx, "no manifest, nothing to clean", zap.String("root", root))
		return report, nil
	}
	report.Skipped = skipped
	for _, s := range skipped {
		m.logger.Warn(ctx, "skipping malformed manifest line",
			zap.String("manifest", manifestPath),
			zap.Int("line", s.Number),
			zap.String("text", s.Text))
	}

	var errs []error
	if err != nil {
		// Keep the manifest so a later cleanup can finish the job.
		m.logger.Error(ctx, "failed to read manifest", zap.String("manifest", manifestPath), zap.Error(err))
		errs = append(errs, err)
	}

	for _, name := range names {
		path := m.FunctionPath(root, name)
		rmErr := os.Remove(path)
		switch {
		case rmErr == nil:
			report.Deleted = append(report.Deleted, path)
		case errors.Is(rmErr, os.ErrNotExist):
			report.Missing = append(report.Missing, path)
		default:
			m.logger.Error(ctx, "failed to delete function file", zap.String("path", path), zap.Error(rmErr))
			report.Failed = append(report.Failed, FailedFile{Path: path, Err: rmErr})
			errs = append(errs, fmt.Errorf("delete %s: %w", path, rmErr))
		}
	}

	if err == nil {
		rmErr := os.Remove(manifestPath)
		switch {
		case rmErr == nil:
			report.ManifestRemoved = true
		case errors.Is(rmErr, os.ErrNotExist):
		default:
			m.logger.Error(ctx, "failed to delete manifest", zap.String("manifest", manifestPath), zap.Error(rmErr))
			errs = append(errs, fmt.Errorf("delete manifest: %w", rmErr))
		}
	}

	m.logger.Info(ctx, "library cleaned",
		zap.String("root", root),
		zap.Int("deleted", len(report.Deleted)),
		zap.Int("missing", len(report.Missing)),
		zap.Int("failed", len(report.Failed)),
		zap.Int("skipped", len(report.Skipped)))

	return report, errors.Join(errs...)
}

// List returns the function names recorded in root's manifest. A root
// without a manifest has none.
func (m *Manager) List(ctx context.Context, root string) ([]string, error) {
	_, span := m.tracer.Start(ctx, "library.List", trace.WithAttributes(
		attribute.String("library.root", root),
	))
	defer span.End()

	names, _, err := m.readManifest(m.ManifestPath(root))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return names, nil
}

func (m *Manager) readManifest(path string) ([]string, []SkippedLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return ParseManifest(f)
}

// RunConfigurationAdded updates the python path of new run configurations.
func (m *Manager) RunConfigurationAdded(ctx context.Context, settings *runconfig.Settings) error {
	return m.updatePythonPath(ctx, settings)
}

// RunConfigurationChanged updates the python path of changed run
// configurations.
func (m *Manager) RunConfigurationChanged(ctx context.Context, settings *runconfig.Settings) error {
	return m.updatePythonPath(ctx, settings)
}

func (m *Manager) updatePythonPath(ctx context.Context, settings *runconfig.Settings) error {
	if m.updater == nil {
		return nil
	}
	return m.updater.UpdatePythonPath(ctx, settings)
}
