package project

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Common errors.
var (
	ErrProjectNotFound    = errors.New("project not found")
	ErrProjectExists      = errors.New("project already open")
	ErrInvalidProjectID   = errors.New("invalid project ID")
	ErrInvalidProjectPath = errors.New("invalid project path")
	ErrEmptyProjectID     = errors.New("project ID cannot be empty")
	ErrEmptyProjectName   = errors.New("project name cannot be empty")
	ErrEmptyProjectPath   = errors.New("project path cannot be empty")
)

// Project is an open project: a directory whose root holds the function
// library and its manifest.
type Project struct {
	// ID is the unique project identifier (UUID).
	ID string `json:"id" yaml:"id"`

	// Name is the human-readable project name, the root's base name by default.
	Name string `json:"name" yaml:"name"`

	// Path is the absolute project root.
	Path string `json:"path" yaml:"path"`

	// OpenedAt is when the project was opened.
	OpenedAt time.Time `json:"opened_at" yaml:"opened_at"`
}

// NewProject creates a project with a generated UUID. A relative path is made
// absolute.
func NewProject(name, path string) (*Project, error) {
	if name == "" {
		return nil, ErrEmptyProjectName
	}
	if path == "" {
		return nil, ErrEmptyProjectPath
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Join(ErrInvalidProjectPath, err)
	}

	return &Project{
		ID:       uuid.New().String(),
		Name:     name,
		Path:     abs,
		OpenedAt: time.Now(),
	}, nil
}

// Validate checks if the project has valid fields.
func (p *Project) Validate() error {
	if p.ID == "" {
		return ErrEmptyProjectID
	}
	if _, err := uuid.Parse(p.ID); err != nil {
		return ErrInvalidProjectID
	}
	if p.Name == "" {
		return ErrEmptyProjectName
	}
	if p.Path == "" {
		return ErrEmptyProjectPath
	}
	if !filepath.IsAbs(p.Path) {
		return ErrInvalidProjectPath
	}
	return nil
}
