package library

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/funclibd/internal/hooks"
	"github.com/fyrsmithlabs/funclibd/internal/logging"
	"github.com/fyrsmithlabs/funclibd/internal/project"
	"github.com/fyrsmithlabs/funclibd/internal/runconfig"
)

// Listener connects a Manager to the host's lifecycle hooks: closing a
// project cleans its library, and adding or changing a run configuration
// updates its python path.
//
// Handler failures are logged, never returned to the host.
type Listener struct {
	library *Manager
	logger  *logging.Logger

	once sync.Once
	mu   sync.Mutex
	subs []hooks.Subscription
}

// NewListener creates a listener for library.
func NewListener(library *Manager, logger *logging.Logger) *Listener {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Listener{library: library, logger: logger.Named("listener")}
}

// Register subscribes the listener on bus. Only the first call subscribes;
// it reports whether this call did.
func (l *Listener) Register(bus *hooks.HookManager) bool {
	registered := false
	l.once.Do(func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.subs = []hooks.Subscription{
			bus.Subscribe(hooks.HookProjectClosing, l.projectClosing),
			bus.Subscribe(hooks.HookRunConfigurationAdded, l.runConfigurationAdded),
			bus.Subscribe(hooks.HookRunConfigurationChanged, l.runConfigurationChanged),
		}
		registered = true
	})
	return registered
}

// Close removes the listener's subscriptions. It does not allow registering
// again.
func (l *Listener) Close() {
	l.mu.Lock()
	subs := l.subs
	l.subs = nil
	l.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
}

func (l *Listener) projectClosing(ctx context.Context, event hooks.Event) error {
	p, ok := event.Project.(*project.Project)
	if !ok {
		l.logger.Error(ctx, "project_closing without a project", zap.String("type", fmt.Sprintf("%T", event.Project)))
		return nil
	}
	ctx = logging.WithProject(ctx, p.ID, p.Path)

	report, err := l.library.DeleteLibraryFiles(ctx, p.Path)
	if err != nil {
		l.logger.Error(ctx, "library cleanup incomplete",
			zap.Int("failed", len(report.Failed)),
			zap.Error(err))
	}
	return nil
}

func (l *Listener) runConfigurationAdded(ctx context.Context, event hooks.Event) error {
	settings, ok := l.settings(ctx, event)
	if !ok {
		return nil
	}
	if err := l.library.RunConfigurationAdded(ctx, settings); err != nil {
		l.logger.Error(ctx, "failed to update python path", zap.String("runconfig.id", settings.ID), zap.Error(err))
	}
	return nil
}

func (l *Listener) runConfigurationChanged(ctx context.Context, event hooks.Event) error {
	settings, ok := l.settings(ctx, event)
	if !ok {
		return nil
	}
	if err := l.library.RunConfigurationChanged(ctx, settings); err != nil {
		l.logger.Error(ctx, "failed to update python path", zap.String("runconfig.id", settings.ID), zap.Error(err))
	}
	return nil
}

func (l *Listener) settings(ctx context.Context, event hooks.Event) (*runconfig.Settings, bool) {
	settings, ok := event.RunConfiguration.(*runconfig.Settings)
	if !ok || settings == nil {
		l.logger.Error(ctx, "run configuration event without settings",
			zap.String("hook", string(event.Type)),
			zap.String("type", fmt.Sprintf("%T", event.RunConfiguration)))
		return nil, false
	}
	return settings, true
}
