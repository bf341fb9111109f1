// Package hooks provides lifecycle hook management for funclibd.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// HookType represents different lifecycle hooks
type HookType string

const (
	// HookProjectOpened is called after a project is registered with the host.
	HookProjectOpened HookType = "project_opened"

	// HookProjectClosing is called before a project is removed from the host.
	HookProjectClosing HookType = "project_closing"

	// HookProjectClosed is called after a project has been removed.
	HookProjectClosed HookType = "project_closed"

	// HookRunConfigurationAdded is called when a run configuration is created.
	HookRunConfigurationAdded HookType = "run_configuration_added"

	// HookRunConfigurationChanged is called when a run configuration is modified.
	HookRunConfigurationChanged HookType = "run_configuration_changed"

	// HookRunConfigurationRemoved is called when a run configuration is deleted.
	HookRunConfigurationRemoved HookType = "run_configuration_removed"
)

// Event is the payload delivered to hook handlers.
//
// Project and RunConfiguration are typed by the publishing package
// (*project.Project, *runconfig.Settings); handlers assert the type they
// subscribed for.
type Event struct {
	Type             HookType
	Project          any
	RunConfiguration any
}

// HookHandler is a function that handles a hook event
type HookHandler func(ctx context.Context, event Event) error

// HookManager manages lifecycle hooks. It is safe for concurrent use.
type HookManager struct {
	config *Config

	mu       sync.RWMutex
	nextID   uint64
	handlers map[HookType][]registration
}

type registration struct {
	id      uint64
	handler HookHandler
}

// Subscription is returned by Subscribe; Close removes the handler.
type Subscription struct {
	hookType HookType
	id       uint64
	manager  *HookManager
	once     *sync.Once
}

// Close unregisters the handler. Safe to call more than once.
func (s Subscription) Close() {
	if s.manager == nil || s.once == nil {
		return
	}
	s.once.Do(func() {
		s.manager.unsubscribe(s.hookType, s.id)
	})
}

// NewHookManager creates a new hook manager
func NewHookManager(config *Config) *HookManager {
	if config == nil {
		config = DefaultConfig()
	}
	return &HookManager{
		config:   config,
		handlers: make(map[HookType][]registration),
	}
}

// RegisterHandler registers a handler for a hook type for the lifetime of
// the manager.
func (h *HookManager) RegisterHandler(hookType HookType, handler HookHandler) {
	h.Subscribe(hookType, handler)
}

// Subscribe registers a handler and returns a subscription that can remove it.
func (h *HookManager) Subscribe(hookType HookType, handler HookHandler) Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	h.handlers[hookType] = append(h.handlers[hookType], registration{id: id, handler: handler})

	return Subscription{hookType: hookType, id: id, manager: h, once: &sync.Once{}}
}

func (h *HookManager) unsubscribe(hookType HookType, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	regs := h.handlers[hookType]
	for i, r := range regs {
		if r.id == id {
			h.handlers[hookType] = append(regs[:i:i], regs[i+1:]...)
			break
		}
	}
	if len(h.handlers[hookType]) == 0 {
		delete(h.handlers, hookType)
	}
}

// HandlerCount returns how many handlers are subscribed to hookType.
func (h *HookManager) HandlerCount(hookType HookType) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.handlers[hookType])
}

// Execute runs every handler registered for the event's hook type, in
// registration order. A failing or panicking handler does not stop the
// others; their errors are joined.
func (h *HookManager) Execute(ctx context.Context, event Event) error {
	if !h.config.Enabled(event.Type) {
		return nil
	}

	h.mu.RLock()
	regs := make([]registration, len(h.handlers[event.Type]))
	copy(regs, h.handlers[event.Type])
	h.mu.RUnlock()

	var errs []error
	for _, r := range regs {
		if err := invoke(ctx, r.handler, event); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("hook %s failed: %w", event.Type, errors.Join(errs...))
	}
	return nil
}

func invoke(ctx context.Context, handler HookHandler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(ctx, event)
}

// Config returns the hook configuration
func (h *HookManager) Config() *Config {
	return h.config
}
