package runconfig

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/funclibd/internal/hooks"
	"github.com/fyrsmithlabs/funclibd/internal/logging"
)

// Manager stores run configurations and publishes their changes on the hook
// bus. Hook handlers edit the settings passed to Add or Change in place; the
// manager stores a copy taken once they return, and Get and List hand out
// copies. It is safe for concurrent use.
type Manager struct {
	bus    *hooks.HookManager
	logger *logging.Logger

	mu      sync.RWMutex
	configs map[string]*Settings
}

// NewManager creates a run configuration manager publishing on bus.
func NewManager(bus *hooks.HookManager, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		bus:     bus,
		logger:  logger.Named("runconfig"),
		configs: make(map[string]*Settings),
	}
}

// Add registers settings, assigning an ID when it has none, then executes
// run_configuration_added. Handler errors are returned but the settings stay
// registered.
func (m *Manager) Add(ctx context.Context, settings *Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	if settings.ID == "" {
		settings.ID = uuid.New().String()
	}

	m.mu.Lock()
	if _, ok := m.configs[settings.ID]; ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRunConfigExists, settings.ID)
	}
	m.configs[settings.ID] = settings.Clone()
	m.mu.Unlock()

	m.logger.Debug(ctx, "run configuration added",
		zap.String("runconfig.id", settings.ID),
		zap.String("runconfig.name", settings.Name))

	err := m.execute(ctx, hooks.HookRunConfigurationAdded, settings)
	m.update(settings)
	return err
}

// Change replaces the registered settings with the same ID and executes
// run_configuration_changed.
func (m *Manager) Change(ctx context.Context, settings *Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	if _, ok := m.configs[settings.ID]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRunConfigNotFound, settings.ID)
	}
	m.configs[settings.ID] = settings.Clone()
	m.mu.Unlock()

	m.logger.Debug(ctx, "run configuration changed", zap.String("runconfig.id", settings.ID))

	err := m.execute(ctx, hooks.HookRunConfigurationChanged, settings)
	m.update(settings)
	return err
}

// update stores a copy of settings as edited by handlers, unless the
// configuration was removed meanwhile.
func (m *Manager) update(settings *Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.configs[settings.ID]; ok {
		m.configs[settings.ID] = settings.Clone()
	}
}

// Remove unregisters the settings and executes run_configuration_removed.
func (m *Manager) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	settings, ok := m.configs[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRunConfigNotFound, id)
	}
	delete(m.configs, id)
	m.mu.Unlock()

	m.logger.Debug(ctx, "run configuration removed", zap.String("runconfig.id", id))

	return m.execute(ctx, hooks.HookRunConfigurationRemoved, settings)
}

// Get returns a copy of the settings registered under id.
func (m *Manager) Get(ctx context.Context, id string) (*Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	settings, ok := m.configs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunConfigNotFound, id)
	}
	return settings.Clone(), nil
}

// List returns copies of all registered settings ordered by name, then ID.
func (m *Manager) List(ctx context.Context) []*Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Settings, 0, len(m.configs))
	for _, s := range m.configs {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *Manager) execute(ctx context.Context, hookType hooks.HookType, settings *Settings) error {
	if m.bus == nil {
		return nil
	}
	if err := m.bus.Execute(ctx, hooks.Event{Type: hookType, RunConfiguration: settings}); err != nil {
		m.logger.Warn(ctx, "run configuration handlers failed",
			zap.String("hook", string(hookType)),
			zap.String("runconfig.id", settings.ID),
			zap.Error(err))
		return err
	}
	return nil
}
