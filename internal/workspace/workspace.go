// Package workspace manages the isolated sandbox directory an agent session
// works in: creation with ambient env staging, a post-session snapshot into
// the results bundle, and removal with retries for files the agent's
// subprocesses may still be holding.
package workspace

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// CreationError reports that the sandbox directory could not be created.
type CreationError struct {
	Err error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("creating workspace: %v", e.Err)
}

func (e *CreationError) Unwrap() error { return e.Err }

// envFileName is the ambient environment-configuration file staged into the
// sandbox so the agent engine can discover credentials.
const envFileName = ".env"

// Manager owns sandbox directories for agent sessions. One sandbox belongs
// to exactly one session for its whole lifetime.
type Manager struct {
	logger *slog.Logger

	// envDir is where Acquire looks for an ambient .env file. Defaults to
	// the invocation directory.
	envDir string

	retries      int
	initialDelay time.Duration

	// injectable for tests
	remove func(string) error
	sleep  func(time.Duration)
}

// NewManager returns a Manager with the default cleanup policy: three
// removal attempts with linearly growing delay, then a forced best-effort
// sweep.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:       logger,
		envDir:       ".",
		retries:      3,
		initialDelay: time.Second,
		remove:       os.RemoveAll,
		sleep:        time.Sleep,
	}
}

// Acquire creates a fresh, uniquely named sandbox directory and stages the
// ambient .env file into it when one exists in the invocation directory.
func (m *Manager) Acquire() (string, error) {
	dir, err := os.MkdirTemp("", "opeval-*")
	if err != nil {
		return "", &CreationError{Err: err}
	}

	envPath := filepath.Join(m.envDir, envFileName)
	if _, err := os.Stat(envPath); err == nil {
		if err := copyFile(envPath, filepath.Join(dir, envFileName)); err != nil {
			_ = os.RemoveAll(dir)
			return "", &CreationError{Err: fmt.Errorf("staging %s: %w", envFileName, err)}
		}
	}

	m.logger.Info("working in isolated directory", "path", dir)
	return dir, nil
}

// Snapshot copies the entire sandbox subtree into destRoot/out, replacing
// any prior contents there, and returns the destination path.
func (m *Manager) Snapshot(ws, destRoot string) (string, error) {
	outDir := filepath.Join(destRoot, "out")

	if err := os.RemoveAll(outDir); err != nil {
		return "", fmt.Errorf("clearing previous snapshot: %w", err)
	}
	if err := os.CopyFS(outDir, os.DirFS(ws)); err != nil {
		return "", fmt.Errorf("copying workspace to %s: %w", outDir, err)
	}

	return outDir, nil
}

// Release removes the sandbox recursively. Transient failures are retried
// with a linearly increasing delay; after the retry budget a forced
// best-effort sweep runs and the incomplete cleanup is reported via the
// return value, never an error. Calling Release on an already-removed path
// is a no-op success.
func (m *Manager) Release(ws string) bool {
	if _, err := os.Stat(ws); os.IsNotExist(err) {
		return true
	}

	for attempt := 1; attempt <= m.retries; attempt++ {
		err := m.remove(ws)
		if err == nil {
			return true
		}

		if attempt < m.retries {
			delay := time.Duration(attempt) * m.initialDelay
			m.logger.Info("workspace cleanup failed, retrying",
				"attempt", attempt, "delay", delay, "error", err)
			m.sleep(delay)
			continue
		}

		m.logger.Warn("could not fully clean up workspace", "path", ws, "error", err)
	}

	// Forced sweep: os.RemoveAll removes everything it can even when it
	// reports an error, so a second pass is the ignore-errors fallback.
	_ = m.remove(ws)
	return false
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
