package handler

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/iconidentify/dlpapi/internal/domain"
	"github.com/iconidentify/dlpapi/internal/worker"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeDownloader stages a file with content for every request.
type fakeDownloader struct {
	root    string
	content string
	err     error

	mu       sync.Mutex
	requests []domain.Request
	released chan *domain.Result
}

func newFakeDownloader(root string) *fakeDownloader {
	return &fakeDownloader{
		root:     root,
		content:  "media-bytes",
		released: make(chan *domain.Result, 4),
	}
}

func (f *fakeDownloader) Process(_ context.Context, req domain.Request) (*domain.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	id := domain.RequestID("0123456789abcdef0123456789abcdef")
	dir := filepath.Join(f.root, id.String())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	format := req.Format
	if format == "" {
		format = domain.FormatWebM
	}
	path := filepath.Join(dir, id.String()+"."+format.String())
	if err := os.WriteFile(path, []byte(f.content), 0644); err != nil {
		return nil, err
	}

	return &domain.Result{
		RequestID: id,
		Dir:       dir,
		Path:      path,
		Format:    format,
		Stage:     domain.StageTranscoded,
	}, nil
}

func (f *fakeDownloader) Release(res *domain.Result) {
	os.RemoveAll(res.Dir)
	f.released <- res
}

func (f *fakeDownloader) lastRequest() domain.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

// inlineExecutor runs tasks on the calling goroutine.
type inlineExecutor struct {
	err error
}

func (e inlineExecutor) Do(ctx context.Context, fn worker.Task) error {
	if e.err != nil {
		return e.err
	}
	return fn(ctx)
}

// lateExecutor finishes the task, then reports the caller's context as gone.
type lateExecutor struct{}

func (lateExecutor) Do(_ context.Context, fn worker.Task) error {
	if err := fn(context.Background()); err != nil {
		return err
	}
	return context.Canceled
}

// detachedExecutor returns at once and runs the task after start is closed.
type detachedExecutor struct {
	start chan struct{}
}

func (e detachedExecutor) Do(_ context.Context, fn worker.Task) error {
	go func() {
		<-e.start
		fn(context.Background())
	}()
	return context.Canceled
}

// blockingExecutor waits for the caller's context to end.
type blockingExecutor struct{}

func (blockingExecutor) Do(ctx context.Context, _ worker.Task) error {
	<-ctx.Done()
	return ctx.Err()
}

// fakeStorage is a Storage double.
type fakeStorage struct {
	root string
	err  error
}

func (s fakeStorage) Root() string    { return s.root }
func (s fakeStorage) Writable() error { return s.err }
