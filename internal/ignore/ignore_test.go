package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected string
	}{
		{"empty line", "", ""},
		{"whitespace only", "   ", ""},
		{"comment", "# this is a comment", ""},
		{"negation kept", "!important.txt", "!important.txt"},
		{"trailing whitespace trimmed", "*.log  \r", "*.log"},
		{"directory", "node_modules/", "node_modules/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLine(tt.line))
		})
	}
}

func TestMatcher(t *testing.T) {
	m := NewMatcher([]string{"*.pyc", "build/", "/dist", "logs/*.log", "!logs/keep.log", "*.pyc"})
	assert.Len(t, m.Patterns(), 5)

	tests := []struct {
		path  string
		isDir bool
		want  bool
	}{
		{"f.pyc", false, true},
		{"pkg/f.pyc", false, true},
		{"f.py", false, false},
		{"build", true, true},
		{"src/build", true, true},
		{"build", false, false},
		{"dist", true, true},
		{"src/dist", true, false},
		{"logs/a.log", false, true},
		{"logs/keep.log", false, false},
		{"", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Match(tt.path, tt.isDir))
		})
	}
}

func TestMatcher_Nil(t *testing.T) {
	var m *Matcher
	assert.False(t, m.Match("anything", false))
	assert.Nil(t, m.Patterns())
}

func TestParseProject(t *testing.T) {
	tmpDir := t.TempDir()

	gitignore := `# Build outputs
dist/
build/

# Python
*.pyc
__pycache__/
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".gitignore"), []byte(gitignore), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".funclibignore"), []byte("scratch/\ndist/\n"), 0o644))

	parser := NewParser([]string{".gitignore", ".funclibignore", ".missingignore"}, []string{".venv/"})
	m, err := parser.ParseProject(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, []string{"dist/", "build/", "*.pyc", "__pycache__/", "scratch/"}, m.Patterns())
	assert.True(t, m.Match("scratch", true))
	assert.False(t, m.Match(".venv", true))
}

func TestParseProject_Fallback(t *testing.T) {
	parser := NewParser([]string{".gitignore"}, []string{".venv/", "*.egg-info/"})
	m, err := parser.ParseProject(t.TempDir())
	require.NoError(t, err)
	assert.True(t, m.Match(".venv", true))
	assert.True(t, m.Match("pkg.egg-info", true))
}
