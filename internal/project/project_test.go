package project

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProject(t *testing.T) {
	tests := []struct {
		name     string
		projName string
		path     string
		wantErr  error
	}{
		{name: "valid project", projName: "my-project", path: "/home/user/projects/my-project"},
		{name: "empty name", projName: "", path: "/home/user/projects/my-project", wantErr: ErrEmptyProjectName},
		{name: "empty path", projName: "my-project", path: "", wantErr: ErrEmptyProjectPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			project, err := NewProject(tt.projName, tt.path)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			_, err = uuid.Parse(project.ID)
			assert.NoError(t, err)
			assert.Equal(t, tt.projName, project.Name)
			assert.Equal(t, tt.path, project.Path)
			assert.False(t, project.OpenedAt.IsZero())
			assert.NoError(t, project.Validate())
		})
	}
}

func TestNewProject_RelativePathMadeAbsolute(t *testing.T) {
	project, err := NewProject("rel", "some/dir")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(project.Path))
	assert.Equal(t, "dir", filepath.Base(project.Path))
}

func TestProject_Validate(t *testing.T) {
	valid := func() *Project {
		return &Project{ID: uuid.New().String(), Name: "p", Path: "/tmp/p"}
	}

	tests := []struct {
		name    string
		mutate  func(p *Project)
		wantErr error
	}{
		{"valid", func(p *Project) {}, nil},
		{"empty id", func(p *Project) { p.ID = "" }, ErrEmptyProjectID},
		{"bad id", func(p *Project) { p.ID = "not-a-uuid" }, ErrInvalidProjectID},
		{"empty name", func(p *Project) { p.Name = "" }, ErrEmptyProjectName},
		{"empty path", func(p *Project) { p.Path = "" }, ErrEmptyProjectPath},
		{"relative path", func(p *Project) { p.Path = "p" }, ErrInvalidProjectPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.mutate(p)
			err := p.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
