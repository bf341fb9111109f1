package project

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/funclibd/internal/hooks"
	"github.com/fyrsmithlabs/funclibd/internal/logging"
)

// Manager tracks open projects and publishes their lifecycle on the hook bus.
// It is safe for concurrent use.
type Manager struct {
	bus    *hooks.HookManager
	logger *logging.Logger

	mu       sync.RWMutex
	projects map[string]*Project // id -> project
	byPath   map[string]*Project // path -> project
}

// NewManager creates a project manager publishing on bus. A nil logger
// discards output.
func NewManager(bus *hooks.HookManager, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		bus:      bus,
		logger:   logger.Named("project"),
		projects: make(map[string]*Project),
		byPath:   make(map[string]*Project),
	}
}

// Open registers the project rooted at path and executes project_opened.
// The name defaults to the root's base name when empty.
//
// Handler failures are logged; the project stays open.
func (m *Manager) Open(ctx context.Context, name, path string) (*Project, error) {
	if path == "" {
		return nil, ErrInvalidProjectPath
	}
	if name == "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidProjectPath, err)
		}
		name = filepath.Base(abs)
	}

	project, err := NewProject(name, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open project: %w", err)
	}

	m.mu.Lock()
	if existing, ok := m.byPath[project.Path]; ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: project %s already open at path %s", ErrProjectExists, existing.ID, project.Path)
	}
	m.projects[project.ID] = project
	m.byPath[project.Path] = project
	m.mu.Unlock()

	ctx = logging.WithProject(ctx, project.ID, project.Path)
	m.logger.Info(ctx, "project opened", zap.String("name", project.Name))

	if err := m.execute(ctx, hooks.HookProjectOpened, project); err != nil {
		m.logger.Warn(ctx, "project_opened handlers failed", zap.Error(err))
	}
	return project, nil
}

// Get retrieves a project by ID.
func (m *Manager) Get(ctx context.Context, id string) (*Project, error) {
	if id == "" {
		return nil, ErrInvalidProjectID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	project, ok := m.projects[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	return project, nil
}

// GetByPath finds an open project by its root. Relative paths are resolved
// against the working directory.
func (m *Manager) GetByPath(ctx context.Context, path string) (*Project, error) {
	if path == "" {
		return nil, ErrInvalidProjectPath
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProjectPath, err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	project, ok := m.byPath[abs]
	if !ok {
		return nil, fmt.Errorf("%w: no project open at path %s", ErrProjectNotFound, abs)
	}
	return project, nil
}

// List returns all open projects ordered by path.
func (m *Manager) List(ctx context.Context) ([]*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	projects := make([]*Project, 0, len(m.projects))
	for _, p := range m.projects {
		projects = append(projects, p)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].Path < projects[j].Path })
	return projects, nil
}

// Close executes project_closing while the project is still open, removes it,
// then executes project_closed. The project is removed even when handlers
// fail; their errors are returned joined.
func (m *Manager) Close(ctx context.Context, id string) error {
	project, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	ctx = logging.WithProject(ctx, project.ID, project.Path)

	closingErr := m.execute(ctx, hooks.HookProjectClosing, project)

	m.mu.Lock()
	delete(m.projects, project.ID)
	delete(m.byPath, project.Path)
	m.mu.Unlock()

	closedErr := m.execute(ctx, hooks.HookProjectClosed, project)

	if err := errors.Join(closingErr, closedErr); err != nil {
		m.logger.Warn(ctx, "project closed with handler errors", zap.Error(err))
		return fmt.Errorf("close project %s: %w", project.ID, err)
	}
	m.logger.Info(ctx, "project closed")
	return nil
}

// CloseAll closes every open project, as on host shutdown.
func (m *Manager) CloseAll(ctx context.Context) error {
	projects, _ := m.List(ctx)
	var errs []error
	for _, p := range projects {
		if err := m.Close(ctx, p.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) execute(ctx context.Context, hookType hooks.HookType, project *Project) error {
	if m.bus == nil {
		return nil
	}
	return m.bus.Execute(ctx, hooks.Event{Type: hookType, Project: project})
}
