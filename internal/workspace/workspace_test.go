package workspace

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(slog.Default())
	m.sleep = func(time.Duration) {}
	return m
}

func TestAcquireCreatesEmptyDir(t *testing.T) {
	m := testManager(t)
	m.envDir = t.TempDir() // no .env present

	ws, err := m.Acquire()
	require.NoError(t, err)
	defer os.RemoveAll(ws)

	info, err := os.Stat(ws)
	require.NoError(t, err)
	require.True(t, info.IsDir())

	entries, err := os.ReadDir(ws)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestAcquireStagesEnvFile(t *testing.T) {
	m := testManager(t)

	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, ".env"), []byte("API_KEY=abc\n"), 0o644))
	m.envDir = src

	ws, err := m.Acquire()
	require.NoError(t, err)
	defer os.RemoveAll(ws)

	data, err := os.ReadFile(filepath.Join(ws, ".env"))
	require.NoError(t, err)
	require.Equal(t, "API_KEY=abc\n", string(data))
}

func TestAcquireFailsWhenEnvStagingFails(t *testing.T) {
	m := testManager(t)

	// an unreadable .env must abort acquisition, not silently run the
	// session without credentials; a directory makes the copy fail
	// regardless of the uid running the tests
	src := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(src, ".env"), 0o755))
	m.envDir = src

	_, err := m.Acquire()

	var creationErr *CreationError
	require.ErrorAs(t, err, &creationErr)
}

func TestSnapshotCopiesTreeAndReplacesPrior(t *testing.T) {
	m := testManager(t)

	ws := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(ws, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ws, "src", "app.sql"), []byte("CREATE TABLE foo(id INT);"), 0o644))

	results := t.TempDir()
	// pre-existing out/ from an earlier run must be replaced
	require.NoError(t, os.MkdirAll(filepath.Join(results, "out"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(results, "out", "stale.txt"), []byte("old"), 0o644))

	outDir, err := m.Snapshot(ws, results)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(results, "out"), outDir)

	data, err := os.ReadFile(filepath.Join(outDir, "src", "app.sql"))
	require.NoError(t, err)
	require.Equal(t, "CREATE TABLE foo(id INT);", string(data))

	_, err = os.Stat(filepath.Join(outDir, "stale.txt"))
	require.True(t, os.IsNotExist(err))
}

func TestReleaseRemovesWorkspace(t *testing.T) {
	m := testManager(t)

	ws := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(ws, "file.txt"), []byte("x"), 0o644))

	require.True(t, m.Release(ws))
	_, err := os.Stat(ws)
	require.True(t, os.IsNotExist(err))
}

func TestReleaseIdempotent(t *testing.T) {
	m := testManager(t)
	ws := t.TempDir()

	require.True(t, m.Release(ws))
	require.True(t, m.Release(ws)) // second call on removed path is success
	require.True(t, m.Release(filepath.Join(ws, "never-existed")))
}

func TestReleaseRetriesThenSucceeds(t *testing.T) {
	m := testManager(t)
	ws := t.TempDir()

	var delays []time.Duration
	m.sleep = func(d time.Duration) { delays = append(delays, d) }

	attempts := 0
	m.remove = func(path string) error {
		attempts++
		if attempts < 3 {
			return errors.New("file busy")
		}
		return os.RemoveAll(path)
	}

	// removal within the retry budget reports clean success
	require.True(t, m.Release(ws))
	require.Equal(t, 3, attempts)

	// linear backoff: 1s then 2s
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)

	_, err := os.Stat(ws)
	require.True(t, os.IsNotExist(err))
}

func TestReleaseSecondAttemptSuccessSkipsForcedFallback(t *testing.T) {
	m := testManager(t)
	ws := t.TempDir()

	attempts := 0
	m.remove = func(path string) error {
		attempts++
		if attempts == 1 {
			return errors.New("file busy")
		}
		return os.RemoveAll(path)
	}

	require.True(t, m.Release(ws))
	require.Equal(t, 2, attempts) // no third try, no forced sweep
}

func TestReleaseForcedFallbackAfterBudget(t *testing.T) {
	m := testManager(t)
	ws := t.TempDir()

	attempts := 0
	m.remove = func(path string) error {
		attempts++
		return errors.New("permission denied")
	}

	require.False(t, m.Release(ws))
	require.Equal(t, 4, attempts) // 3 retried attempts + 1 forced sweep
}
