package downloader

import (
	"context"

	"github.com/iconidentify/dlpapi/internal/domain"
)

// Engine is the media extraction engine.
type Engine interface {
	// Probe lists the stream variants available for url without downloading.
	Probe(ctx context.Context, url string) ([]domain.StreamDescriptor, error)

	// Fetch downloads url into opts.OutputTemplate. The engine picks the
	// extension and retries transient failures up to opts.Retries times.
	Fetch(ctx context.Context, url string, opts domain.FetchOptions) error
}
