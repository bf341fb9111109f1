// Package ignore reads gitignore-style files so the project watcher can skip
// paths the project ignores.
package ignore

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// Parser reads and parses gitignore-style files.
type Parser struct {
	// IgnoreFiles is the list of ignore file names to look for.
	IgnoreFiles []string

	// FallbackPatterns are used when no ignore files are found.
	FallbackPatterns []string
}

// NewParser creates a new ignore file parser with the given configuration.
func NewParser(ignoreFiles, fallbackPatterns []string) *Parser {
	return &Parser{
		IgnoreFiles:      ignoreFiles,
		FallbackPatterns: fallbackPatterns,
	}
}

// Matcher reports whether a project-relative path is ignored.
type Matcher struct {
	patterns []string
	matcher  gitignore.Matcher
}

// ParseProject reads the ignore files in the project root and returns a
// matcher over their combined patterns. If no ignore files are found, the
// fallback patterns are used.
func (p *Parser) ParseProject(projectRoot string) (*Matcher, error) {
	var lines []string
	foundAny := false

	for _, ignoreFile := range p.IgnoreFiles {
		path := filepath.Join(projectRoot, ignoreFile)
		fileLines, err := parseFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		lines = append(lines, fileLines...)
		foundAny = true
	}

	if !foundAny {
		lines = p.FallbackPatterns
	}
	return NewMatcher(lines), nil
}

// NewMatcher builds a matcher from gitignore pattern lines. Later patterns
// take precedence, negations included.
func NewMatcher(lines []string) *Matcher {
	lines = deduplicate(lines)
	patterns := make([]gitignore.Pattern, 0, len(lines))
	for _, line := range lines {
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return &Matcher{patterns: lines, matcher: gitignore.NewMatcher(patterns)}
}

// Patterns returns the pattern lines the matcher was built from.
func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}
	return m.patterns
}

// Match reports whether rel, a slash-separated path relative to the project
// root, is ignored.
func (m *Matcher) Match(rel string, isDir bool) bool {
	if m == nil || len(m.patterns) == 0 {
		return false
	}
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	if rel == "" || rel == "." {
		return false
	}
	return m.matcher.Match(strings.Split(rel, "/"), isDir)
}

// parseFile reads a single gitignore-style file and returns its pattern lines.
func parseFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		if line := parseLine(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}

// parseLine returns the pattern on a line, or an empty string for comments
// and blank lines.
func parseLine(line string) string {
	line = strings.TrimRight(line, " \t\r")
	if line == "" || strings.HasPrefix(line, "#") {
		return ""
	}
	return line
}

// deduplicate removes duplicate patterns while preserving order.
func deduplicate(patterns []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(patterns))

	for _, p := range patterns {
		if !seen[p] {
			seen[p] = true
			result = append(result, p)
		}
	}

	return result
}
