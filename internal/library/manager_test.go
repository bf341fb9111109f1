package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/goleak"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/funclibd/internal/dispatch"
	"github.com/fyrsmithlabs/funclibd/internal/logging"
	"github.com/fyrsmithlabs/funclibd/internal/runconfig"
	"github.com/fyrsmithlabs/funclibd/internal/telemetry"
	"github.com/fyrsmithlabs/funclibd/internal/vfs"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type refreshCall struct {
	dir  string
	opts vfs.RefreshOptions
}

// recordingRefresher records refresh requests instead of scanning.
type recordingRefresher struct {
	mu    sync.Mutex
	calls []refreshCall
}

func (r *recordingRefresher) Refresh(_ context.Context, dir string, opts vfs.RefreshOptions, callback vfs.RefreshCallback) error {
	r.mu.Lock()
	r.calls = append(r.calls, refreshCall{dir: dir, opts: opts})
	r.mu.Unlock()
	if callback != nil {
		callback(vfs.Change{Dir: dir}, nil)
	}
	return nil
}

func (r *recordingRefresher) Calls() []refreshCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]refreshCall(nil), r.calls...)
}

type harness struct {
	manager    *Manager
	pool       *dispatch.Pool
	dispatcher *dispatch.Dispatcher
	refresher  *recordingRefresher
	logs       *logging.TestLogger
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	logs := logging.NewTestLogger()
	pool, err := dispatch.NewPool(4, 16, logs.Logger)
	require.NoError(t, err)
	dispatcher := dispatch.NewDispatcher(logs.Logger)
	refresher := &recordingRefresher{}

	h := &harness{
		pool:       pool,
		dispatcher: dispatcher,
		refresher:  refresher,
		logs:       logs,
	}
	h.manager = NewManager(pool, dispatcher, refresher, append([]Option{WithLogger(logs.Logger)}, opts...)...)

	t.Cleanup(func() {
		_ = pool.Close()
		dispatcher.Stop()
	})
	return h
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestWrite_RoundTrip(t *testing.T) {
	root := t.TempDir()
	m := NewManager(nil, nil, nil)

	require.NoError(t, m.Write(context.Background(), root, "f", "def f(): pass\n"))

	assert.Equal(t, "def f(): pass\n", readFile(t, filepath.Join(root, "f.py")))
	assert.Equal(t, "from f import f\n", readFile(t, filepath.Join(root, DefaultManifestFile)))
}

func TestWrite_OverwriteAppendsManifestAgain(t *testing.T) {
	root := t.TempDir()
	m := NewManager(nil, nil, nil)
	ctx := context.Background()

	require.NoError(t, m.Write(ctx, root, "f", "def f(): return 1\n"))
	require.NoError(t, m.Write(ctx, root, "f", "def f(): return 2\n"))

	assert.Equal(t, "def f(): return 2\n", readFile(t, filepath.Join(root, "f.py")))
	assert.Equal(t, "from f import f\nfrom f import f\n", readFile(t, filepath.Join(root, DefaultManifestFile)))
}

func TestWrite_CustomNames(t *testing.T) {
	root := t.TempDir()
	m := NewManager(nil, nil, nil, WithManifestFile("__init__.py"), WithExtension(".pyx"))

	require.NoError(t, m.Write(context.Background(), root, "f", "x"))
	assert.FileExists(t, filepath.Join(root, "f.pyx"))
	assert.Equal(t, "from f import f\n", readFile(t, filepath.Join(root, "__init__.py")))
}

func TestWrite_MissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "missing")
	m := NewManager(nil, nil, nil)

	err := m.Write(context.Background(), root, "f", "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NoFileExists(t, filepath.Join(root, DefaultManifestFile))
}

func TestWriteToLibrary(t *testing.T) {
	h := newHarness(t)
	root := t.TempDir()
	ctx := waitCtx(t)

	pending := h.manager.WriteToLibrary(ctx, root, "f", "def f(): pass\n")
	require.NotEmpty(t, pending.OperationID)
	require.NoError(t, pending.Wait(ctx))

	assert.Equal(t, "def f(): pass\n", readFile(t, filepath.Join(root, "f.py")))
	assert.Equal(t, "from f import f\n", readFile(t, filepath.Join(root, DefaultManifestFile)))

	require.NoError(t, h.dispatcher.Flush(ctx))
	calls := h.refresher.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, root, calls[0].dir)
	assert.True(t, calls[0].opts.Recursive)
	assert.True(t, calls[0].opts.Async)
}

func TestWriteToLibrary_FailureStillRefreshes(t *testing.T) {
	h := newHarness(t)
	root := filepath.Join(t.TempDir(), "missing")
	ctx := waitCtx(t)

	err := h.manager.WriteToLibrary(ctx, root, "f", "x").Wait(ctx)
	require.Error(t, err)

	require.NoError(t, h.dispatcher.Flush(ctx))
	assert.Len(t, h.refresher.Calls(), 1)
	h.logs.AssertLogged(t, zapcore.ErrorLevel, "failed to write function")
}

// panickingTracer fails every span start.
type panickingTracer struct{ noop.Tracer }

func (panickingTracer) Start(context.Context, string, ...trace.SpanStartOption) (context.Context, trace.Span) {
	panic("tracer exploded")
}

func TestWriteToLibrary_PanicCompletesPending(t *testing.T) {
	h := newHarness(t, WithTracer(panickingTracer{}))
	ctx := waitCtx(t)

	err := h.manager.WriteToLibrary(ctx, t.TempDir(), "f", "x").Wait(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tracer exploded")

	require.NoError(t, h.dispatcher.Flush(ctx))
	assert.Len(t, h.refresher.Calls(), 1)
	h.logs.AssertLogged(t, zapcore.ErrorLevel, "function write panicked")
}

func TestWriteToLibrary_PoolClosed(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.pool.Close())
	ctx := waitCtx(t)

	err := h.manager.WriteToLibrary(ctx, t.TempDir(), "f", "x").Wait(ctx)
	assert.ErrorIs(t, err, dispatch.ErrPoolClosed)
	h.logs.AssertLogged(t, zapcore.ErrorLevel, "failed to schedule function write")
}

func TestWriteToLibrary_ConcurrentDistinctNames(t *testing.T) {
	h := newHarness(t)
	root := t.TempDir()
	ctx := waitCtx(t)

	const n = 25
	pendings := make([]*Pending, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("f%d", i)
			pendings[i] = h.manager.WriteToLibrary(ctx, root, name, "def "+name+"(): pass\n")
		}(i)
	}
	wg.Wait()
	for _, p := range pendings {
		require.NoError(t, p.Wait(ctx))
	}

	names, err := h.manager.List(ctx, root)
	require.NoError(t, err)
	assert.Len(t, names, n)

	lines := strings.Split(strings.TrimSuffix(readFile(t, filepath.Join(root, DefaultManifestFile)), "\n"), "\n")
	assert.Len(t, lines, n)
	for i := 0; i < n; i++ {
		assert.FileExists(t, filepath.Join(root, fmt.Sprintf("f%d.py", i)))
	}
}

func TestDeleteLibraryFiles(t *testing.T) {
	root := t.TempDir()
	m := NewManager(nil, nil, nil)
	ctx := context.Background()

	require.NoError(t, m.Write(ctx, root, "f", "def f(): pass\n"))
	require.NoError(t, m.Write(ctx, root, "g", "def g(): pass\n"))
	require.NoError(t, m.Write(ctx, root, "f", "def f(): return 1\n"))
	require.NoError(t, m.Write(ctx, root, "h", "def h(): pass\n"))
	require.NoError(t, os.Remove(filepath.Join(root, "h.py")))

	report, err := m.DeleteLibraryFiles(ctx, root)
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(root, "f.py"), filepath.Join(root, "g.py")}, report.Deleted)
	assert.Equal(t, []string{filepath.Join(root, "h.py")}, report.Missing)
	assert.Empty(t, report.Failed)
	assert.True(t, report.ManifestRemoved)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDeleteLibraryFiles_NoManifest(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.py"), []byte("x"), 0o644))
	m := NewManager(nil, nil, nil)

	report, err := m.DeleteLibraryFiles(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, CleanupReport{}, report)
	assert.FileExists(t, filepath.Join(root, "keep.py"))
}

func TestDeleteLibraryFiles_ToleratesUndeletableFile(t *testing.T) {
	root := t.TempDir()
	logs := logging.NewTestLogger()
	m := NewManager(nil, nil, nil, WithLogger(logs.Logger))
	ctx := context.Background()

	require.NoError(t, m.Write(ctx, root, "f", "x"))
	require.NoError(t, m.Write(ctx, root, "h", "x"))
	// g.py is a non-empty directory, so removing it fails.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "g.py", "inner"), 0o755))
	manifest := filepath.Join(root, DefaultManifestFile)
	require.NoError(t, os.WriteFile(manifest, []byte("from f import f\nfrom g import g\nfrom h import h\n"), 0o644))

	report, err := m.DeleteLibraryFiles(ctx, root)
	require.Error(t, err)

	assert.Equal(t, []string{filepath.Join(root, "f.py"), filepath.Join(root, "h.py")}, report.Deleted)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, filepath.Join(root, "g.py"), report.Failed[0].Path)
	assert.True(t, report.ManifestRemoved)
	assert.NoFileExists(t, manifest)
	logs.AssertLogged(t, zapcore.ErrorLevel, "failed to delete function file")
}

func TestDeleteLibraryFiles_MalformedLine(t *testing.T) {
	root := t.TempDir()
	logs := logging.NewTestLogger()
	m := NewManager(nil, nil, nil, WithLogger(logs.Logger))
	ctx := context.Background()

	require.NoError(t, m.Write(ctx, root, "f", "x"))
	require.NoError(t, m.Write(ctx, root, "g", "x"))
	manifest := filepath.Join(root, DefaultManifestFile)
	require.NoError(t, os.WriteFile(manifest, []byte("from f import f\nbroken\nfrom g import g\n"), 0o644))

	report, err := m.DeleteLibraryFiles(ctx, root)
	require.NoError(t, err)
	assert.Len(t, report.Deleted, 2)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, SkippedLine{Number: 2, Text: "broken"}, report.Skipped[0])
	logs.AssertLogged(t, zapcore.WarnLevel, "skipping malformed manifest line")
	assert.NoFileExists(t, manifest)
}

func TestDeleteLibraryFiles_OverlongLineDoesNotStopCleanup(t *testing.T) {
	root := t.TempDir()
	logs := logging.NewTestLogger()
	m := NewManager(nil, nil, nil, WithLogger(logs.Logger))
	ctx := context.Background()

	require.NoError(t, m.Write(ctx, root, "f", "x"))
	require.NoError(t, m.Write(ctx, root, "g", "x"))
	manifest := filepath.Join(root, DefaultManifestFile)
	corrupt := "from f import f\n# " + strings.Repeat("x", 2*maxManifestLine) + "\nfrom g import g\n"
	require.NoError(t, os.WriteFile(manifest, []byte(corrupt), 0o644))

	report, err := m.DeleteLibraryFiles(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "f.py"), filepath.Join(root, "g.py")}, report.Deleted)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, 2, report.Skipped[0].Number)
	assert.True(t, report.ManifestRemoved)
	assert.NoFileExists(t, filepath.Join(root, "g.py"))
	assert.NoFileExists(t, manifest)
}

func TestDeleteLibraryFiles_UnreadableManifestIsKept(t *testing.T) {
	root := t.TempDir()
	logs := logging.NewTestLogger()
	tel := telemetry.NewTestTelemetry()
	metrics, err := NewMetrics(tel.Meter(InstrumentationName))
	require.NoError(t, err)
	m := NewManager(nil, nil, nil, WithLogger(logs.Logger), WithMetrics(metrics))

	// A directory opens but cannot be read as a manifest.
	manifest := filepath.Join(root, DefaultManifestFile)
	require.NoError(t, os.Mkdir(manifest, 0o755))

	report, err := m.DeleteLibraryFiles(context.Background(), root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read manifest")
	assert.False(t, report.ManifestRemoved)
	assert.Empty(t, report.Deleted)
	assert.DirExists(t, manifest)
	logs.AssertLogged(t, zapcore.ErrorLevel, "failed to read manifest")
	assert.Equal(t, int64(1), tel.CounterValue(t, "funclib.errors"))
}

func TestList(t *testing.T) {
	root := t.TempDir()
	m := NewManager(nil, nil, nil)
	ctx := context.Background()

	names, err := m.List(ctx, root)
	require.NoError(t, err)
	assert.Empty(t, names)

	for _, n := range []string{"b", "a", "b"} {
		require.NoError(t, m.Write(ctx, root, n, "x"))
	}
	names, err = m.List(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, names)
}

func TestRunConfigurationHooksDelegate(t *testing.T) {
	m := NewManager(nil, nil, nil, WithPathUpdater(runconfig.NewPythonPathUpdater(nil, nil)))
	ctx := context.Background()

	s := &runconfig.Settings{Name: "main", ProjectPath: "/work/proj"}
	require.NoError(t, m.RunConfigurationAdded(ctx, s))
	assert.Equal(t, "/work/proj", s.Env[runconfig.PythonPathVar])

	s.ProjectPath = "/work/other"
	require.NoError(t, m.RunConfigurationChanged(ctx, s))
	assert.True(t, strings.HasPrefix(s.Env[runconfig.PythonPathVar], "/work/other"))

	bare := NewManager(nil, nil, nil)
	assert.NoError(t, bare.RunConfigurationAdded(ctx, s))
}

func TestTelemetry(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	metrics, err := NewMetrics(tel.Meter(InstrumentationName))
	require.NoError(t, err)
	m := NewManager(nil, nil, nil, WithTracer(tel.Tracer(InstrumentationName)), WithMetrics(metrics))

	ctx := context.Background()
	root := t.TempDir()
	require.NoError(t, m.Write(ctx, root, "f", "x"))
	require.NoError(t, m.Write(ctx, root, "g", "x"))
	require.Error(t, m.Write(ctx, filepath.Join(root, "missing"), "h", "x"))

	_, err = m.DeleteLibraryFiles(ctx, root)
	require.NoError(t, err)

	assert.Equal(t, int64(2), tel.CounterValue(t, "funclib.writes"))
	assert.Equal(t, int64(2), tel.CounterValue(t, "funclib.deletes"))
	assert.Equal(t, int64(1), tel.CounterValue(t, "funclib.errors"))
	assert.Equal(t, int64(1), tel.AttributeCount(t, "funclib.errors", attribute.String("operation", "write")))

	durations := tel.Histogram(t, "funclib.write.duration.seconds")
	assert.Equal(t, uint64(2), durations.Count)
	assert.Equal(t, WriteDurationBuckets, durations.Bounds)

	tel.AssertSpanExists(t, "library.Write")
	tel.AssertSpanAttribute(t, "library.DeleteLibraryFiles", "library.deleted", int64(2))
}
