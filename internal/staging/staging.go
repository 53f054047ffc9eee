// Package staging manages the per-request working directories under the
// download root.
package staging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iconidentify/dlpapi/internal/domain"
	"github.com/iconidentify/dlpapi/internal/metrics"
)

// Dir is one request's staging directory.
type Dir struct {
	ID   domain.RequestID
	Path string
}

// OutputTemplate returns the engine output template <path>/<id>.%(ext)s.
func (d *Dir) OutputTemplate() string {
	return filepath.Join(d.Path, d.ID.String()+".%(ext)s")
}

// FinalPath returns <path>/<id>.<format>.
func (d *Dir) FinalPath(format domain.OutputFormat) string {
	return filepath.Join(d.Path, d.ID.String()+"."+format.String())
}

// Manager allocates and releases staging directories under one root.
type Manager struct {
	root   string
	logger *slog.Logger
}

// NewManager creates a manager rooted at root.
func NewManager(root string, logger *slog.Logger) *Manager {
	return &Manager{
		root:   root,
		logger: logger,
	}
}

// Root returns the download root.
func (m *Manager) Root() string {
	return m.root
}

// NewRequestID returns a random 32-character hex identifier.
func NewRequestID() domain.RequestID {
	id := uuid.New()
	return domain.RequestID(strings.ReplaceAll(id.String(), "-", ""))
}

// Allocate creates root/<id> for a fresh request id, creating root if needed.
func (m *Manager) Allocate() (*Dir, error) {
	id := NewRequestID()
	path := filepath.Join(m.root, id.String())

	if err := os.MkdirAll(m.root, 0755); err != nil {
		return nil, fmt.Errorf("create download root: %w", err)
	}
	// Mkdir rather than MkdirAll so an id collision fails instead of sharing a directory.
	if err := os.Mkdir(path, 0755); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}

	return &Dir{ID: id, Path: path}, nil
}

// LocateOutput returns the regular file in dir whose name starts with prefix.
// When several match, the most recently modified one wins.
func LocateOutput(dir, prefix string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read staging directory: %w", err)
	}

	var (
		latest     string
		latestTime time.Time
	)
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestTime) {
			latest = filepath.Join(dir, e.Name())
			latestTime = info.ModTime()
		}
	}

	if latest == "" {
		return "", domain.ErrNoOutputProduced
	}
	return latest, nil
}

// Release removes dir recursively. Failures are logged, never returned.
func (m *Manager) Release(dir string) {
	if dir == "" {
		return
	}
	if _, err := os.Stat(dir); err != nil {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		metrics.CleanupFailures.Inc()
		m.logger.Warn("failed to remove staging directory", "path", dir, "error", err)
		return
	}
	m.logger.Debug("released staging directory", "path", dir)
}

// Sweep removes request directories under root last modified before now-maxAge.
// It returns how many were removed.
func (m *Manager) Sweep(maxAge time.Duration) int {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn("failed to scan download root", "path", m.root, "error", err)
		}
		return 0
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(m.root, e.Name())
		if err := os.RemoveAll(path); err != nil {
			metrics.CleanupFailures.Inc()
			m.logger.Warn("failed to remove stale staging directory", "path", path, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		m.logger.Info("swept stale staging directories", "removed", removed)
	}
	return removed
}

// RunJanitor sweeps every interval until ctx is done. A non-positive maxAge
// or interval disables it.
func (m *Manager) RunJanitor(ctx context.Context, interval, maxAge time.Duration) error {
	if interval <= 0 || maxAge <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Sweep(maxAge)
		}
	}
}

// Writable reports whether root exists and accepts new files.
func (m *Manager) Writable() error {
	f, err := os.CreateTemp(m.root, ".probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
