package runconfig

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/funclibd/internal/logging"
)

// PathUpdater adjusts the interpreter search path of a run configuration.
type PathUpdater interface {
	UpdatePythonPath(ctx context.Context, settings *Settings) error
}

// PythonPathUpdater puts the project root, followed by Extra, at the front of
// the settings' PYTHONPATH so the function library is importable. Entries
// already present are moved, not duplicated.
type PythonPathUpdater struct {
	Extra  []string
	Logger *logging.Logger
}

// NewPythonPathUpdater returns an updater that also prepends extra.
func NewPythonPathUpdater(extra []string, logger *logging.Logger) *PythonPathUpdater {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &PythonPathUpdater{Extra: extra, Logger: logger.Named("pythonpath")}
}

// UpdatePythonPath rewrites settings.Env[PYTHONPATH]. Settings without a
// project path and with no extra entries are left untouched.
func (u *PythonPathUpdater) UpdatePythonPath(ctx context.Context, settings *Settings) error {
	if settings == nil {
		return nil
	}

	var front []string
	if settings.ProjectPath != "" {
		front = append(front, filepath.Clean(settings.ProjectPath))
	}
	for _, e := range u.Extra {
		if e != "" {
			front = append(front, filepath.Clean(e))
		}
	}
	if len(front) == 0 {
		return nil
	}

	if settings.Env == nil {
		settings.Env = make(map[string]string)
	}
	before := settings.Env[PythonPathVar]
	after := mergePathList(front, filepath.SplitList(before))
	settings.Env[PythonPathVar] = after

	if before != after {
		u.logger().Debug(ctx, "python path updated",
			zap.String("runconfig.id", settings.ID),
			zap.String("pythonpath", after))
	}
	return nil
}

func (u *PythonPathUpdater) logger() *logging.Logger {
	if u.Logger == nil {
		return logging.NewNop()
	}
	return u.Logger
}

// mergePathList joins front then rest, keeping the first occurrence of each
// entry and dropping empty ones.
func mergePathList(front, rest []string) string {
	seen := make(map[string]bool, len(front)+len(rest))
	out := make([]string, 0, len(front)+len(rest))
	for _, list := range [][]string{front, rest} {
		for _, e := range list {
			if e == "" {
				continue
			}
			key := filepath.Clean(e)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, e)
		}
	}
	return strings.Join(out, string(os.PathListSeparator))
}
