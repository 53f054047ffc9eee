package staging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/iconidentify/dlpapi/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func touch(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte("data"), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

func TestNewRequestID(t *testing.T) {
	id := NewRequestID()
	if len(id) != 32 {
		t.Errorf("len(id) = %d, want 32", len(id))
	}
	for _, c := range id {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			t.Fatalf("id %q contains non-hex rune %q", id, c)
		}
	}
}

func TestManager_Allocate_CreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "downloads")
	m := NewManager(root, testLogger())

	dir, err := m.Allocate()
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}

	if dir.Path != filepath.Join(root, dir.ID.String()) {
		t.Errorf("Path = %q, want under %q", dir.Path, root)
	}
	info, err := os.Stat(dir.Path)
	if err != nil || !info.IsDir() {
		t.Fatalf("staging directory not created: %v", err)
	}
	if got, want := dir.OutputTemplate(), filepath.Join(dir.Path, dir.ID.String()+".%(ext)s"); got != want {
		t.Errorf("OutputTemplate() = %q, want %q", got, want)
	}
	if got, want := dir.FinalPath(domain.FormatMP4), filepath.Join(dir.Path, dir.ID.String()+".mp4"); got != want {
		t.Errorf("FinalPath() = %q, want %q", got, want)
	}
}

func TestManager_Allocate_ConcurrentUnique(t *testing.T) {
	m := NewManager(t.TempDir(), testLogger())

	const n = 64
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		ids   = make(map[domain.RequestID]bool)
		paths = make(map[string]bool)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dir, err := m.Allocate()
			if err != nil {
				t.Errorf("Allocate() error = %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			ids[dir.ID] = true
			paths[dir.Path] = true
		}()
	}
	wg.Wait()

	if len(ids) != n || len(paths) != n {
		t.Errorf("got %d ids and %d paths, want %d unique", len(ids), len(paths), n)
	}
}

func TestLocateOutput_Empty(t *testing.T) {
	_, err := LocateOutput(t.TempDir(), "abc")
	if !errors.Is(err, domain.ErrNoOutputProduced) {
		t.Errorf("LocateOutput() error = %v, want ErrNoOutputProduced", err)
	}
}

func TestLocateOutput_PicksNewest(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	touch(t, filepath.Join(dir, "abc.f137.mp4"), now.Add(-time.Minute))
	touch(t, filepath.Join(dir, "abc.webm"), now)

	got, err := LocateOutput(dir, "abc")
	if err != nil {
		t.Fatalf("LocateOutput() error = %v", err)
	}
	if want := filepath.Join(dir, "abc.webm"); got != want {
		t.Errorf("LocateOutput() = %q, want %q", got, want)
	}
}

func TestLocateOutput_IgnoresOtherEntries(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "other.mp4"), time.Now())
	if err := os.Mkdir(filepath.Join(dir, "abc.dir"), 0755); err != nil {
		t.Fatal(err)
	}

	_, err := LocateOutput(dir, "abc")
	if !errors.Is(err, domain.ErrNoOutputProduced) {
		t.Errorf("LocateOutput() error = %v, want ErrNoOutputProduced", err)
	}
}

func TestLocateOutput_MissingDir(t *testing.T) {
	_, err := LocateOutput(filepath.Join(t.TempDir(), "gone"), "abc")
	if err == nil {
		t.Fatal("LocateOutput() should fail for a missing directory")
	}
	if errors.Is(err, domain.ErrNoOutputProduced) {
		t.Error("missing directory should not look like an empty fetch")
	}
}

func TestManager_Release(t *testing.T) {
	m := NewManager(t.TempDir(), testLogger())
	dir, err := m.Allocate()
	if err != nil {
		t.Fatal(err)
	}
	touch(t, filepath.Join(dir.Path, dir.ID.String()+".mp4"), time.Now())

	m.Release(dir.Path)

	if _, err := os.Stat(dir.Path); !os.IsNotExist(err) {
		t.Errorf("staging directory still exists: %v", err)
	}

	// Second release and empty path are no-ops.
	m.Release(dir.Path)
	m.Release("")
}

func TestManager_Sweep(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root, testLogger())

	old, err := m.Allocate()
	if err != nil {
		t.Fatal(err)
	}
	fresh, err := m.Allocate()
	if err != nil {
		t.Fatal(err)
	}
	stale := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(old.Path, stale, stale); err != nil {
		t.Fatal(err)
	}
	touch(t, filepath.Join(root, "stray-file"), stale)

	if got := m.Sweep(time.Hour); got != 1 {
		t.Errorf("Sweep() = %d, want 1", got)
	}
	if _, err := os.Stat(old.Path); !os.IsNotExist(err) {
		t.Error("stale directory should be removed")
	}
	if _, err := os.Stat(fresh.Path); err != nil {
		t.Error("fresh directory should survive")
	}
	if _, err := os.Stat(filepath.Join(root, "stray-file")); err != nil {
		t.Error("files in the root are not staging directories")
	}
}

func TestManager_Sweep_MissingRoot(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "missing"), testLogger())
	if got := m.Sweep(time.Minute); got != 0 {
		t.Errorf("Sweep() = %d, want 0", got)
	}
}

func TestManager_RunJanitor_StopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	m := NewManager(t.TempDir(), testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- m.RunJanitor(ctx, 5*time.Millisecond, time.Hour)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("RunJanitor() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("RunJanitor did not stop after cancel")
	}
}

func TestManager_RunJanitor_Disabled(t *testing.T) {
	m := NewManager(t.TempDir(), testLogger())
	if err := m.RunJanitor(context.Background(), time.Minute, 0); err != nil {
		t.Errorf("RunJanitor() error = %v", err)
	}
}

func TestManager_Writable(t *testing.T) {
	m := NewManager(t.TempDir(), testLogger())
	if err := m.Writable(); err != nil {
		t.Errorf("Writable() error = %v", err)
	}

	missing := NewManager(filepath.Join(t.TempDir(), "missing"), testLogger())
	if err := missing.Writable(); err == nil {
		t.Error("Writable() should fail for a missing root")
	}
}

func TestFreeBytes(t *testing.T) {
	if got := FreeBytes(t.TempDir()); got <= 0 {
		t.Errorf("FreeBytes() = %d, want > 0", got)
	}
	if got := FreeBytes(filepath.Join(t.TempDir(), "missing")); got != 0 {
		t.Errorf("FreeBytes(missing) = %d, want 0", got)
	}
}
