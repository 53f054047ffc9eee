package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/iconidentify/dlpapi/internal/domain"
	"github.com/iconidentify/dlpapi/internal/downloader"
	"github.com/iconidentify/dlpapi/internal/metrics"
	"github.com/iconidentify/dlpapi/internal/selector"
	"github.com/iconidentify/dlpapi/internal/staging"
	"github.com/iconidentify/dlpapi/pkg/ffmpeg"
)

// Transcoder converts a fetched file into the requested format.
type Transcoder interface {
	Transcode(ctx context.Context, input, output, format string) (*ffmpeg.Result, error)
}

// DownloadService runs the allocate, resolve, fetch, locate and transcode
// pipeline for one request at a time. It keeps no state between requests.
type DownloadService struct {
	engine     downloader.Engine
	stage      *staging.Manager
	transcoder Transcoder
	logger     *slog.Logger
}

// NewDownloadService creates a new download service.
func NewDownloadService(
	engine downloader.Engine,
	stage *staging.Manager,
	transcoder Transcoder,
	logger *slog.Logger,
) *DownloadService {
	return &DownloadService{
		engine:     engine,
		stage:      stage,
		transcoder: transcoder,
		logger:     logger,
	}
}

// Process runs the whole pipeline for req and returns the staged artifact.
//
// Fatal failures are returned as *domain.PipelineError. The staging directory
// is left in place on failure; its path is available in PipelineError.Dir.
func (s *DownloadService) Process(ctx context.Context, req domain.Request) (*domain.Result, error) {
	res, err := s.process(ctx, req)
	if err != nil {
		metrics.Requests.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, err
	}
	metrics.Requests.WithLabelValues(metrics.OutcomeSuccess).Inc()
	return res, nil
}

func (s *DownloadService) process(ctx context.Context, req domain.Request) (*domain.Result, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	dir, err := s.stage.Allocate()
	if err != nil {
		return nil, domain.NewPipelineError("", "", domain.StageAllocated, err)
	}
	logger := s.logger.With("request_id", dir.ID.String())
	fail := func(stage domain.Stage, err error) error {
		logger.Error("download pipeline failed", "stage", stage, "error", err)
		return domain.NewPipelineError(dir.ID, dir.Path, stage, err)
	}

	// Resolved
	start := time.Now()
	sel := s.resolveSelector(ctx, req, logger)
	observe("resolve", start)
	logger.Info("resolved format selector", "url", req.URL, "selector", sel)

	// Fetched
	start = time.Now()
	logger.Info("starting download", "url", req.URL)
	if err := s.engine.Fetch(ctx, req.URL, domain.NewFetchOptions(sel, dir.OutputTemplate())); err != nil {
		if !errors.Is(err, domain.ErrFetchFailed) {
			err = fmt.Errorf("%w: %w", domain.ErrFetchFailed, err)
		}
		return nil, fail(domain.StageFetched, err)
	}
	observe("fetch", start)

	// Located
	fetched, err := staging.LocateOutput(dir.Path, dir.ID.String())
	if err != nil {
		return nil, fail(domain.StageLocated, err)
	}
	logger.Debug("located fetched file", "path", fetched)

	result := &domain.Result{
		RequestID: dir.ID,
		Dir:       dir.Path,
		Path:      fetched,
		Format:    domain.FormatOf(fetched),
		Stage:     domain.StagePassThrough,
	}
	if req.Format == "" {
		logger.Info("download ready", "path", result.Path, "stage", result.Stage)
		return result, nil
	}

	// Transcoded or PassThrough
	start = time.Now()
	out, err := s.transcoder.Transcode(ctx, fetched, dir.FinalPath(req.Format), req.Format.String())
	if err != nil {
		return nil, fail(domain.StageTranscoded, fmt.Errorf("%w: %w", domain.ErrTranscodeFailed, err))
	}
	if out.CleanupErr != nil {
		metrics.CleanupFailures.Inc()
	}
	if out.Transcoded {
		observe("transcode", start)
		metrics.Transcodes.WithLabelValues(req.Format.String()).Inc()
		result.Stage = domain.StageTranscoded
	}
	result.Path = out.Path
	result.Format = req.Format

	logger.Info("download ready", "path", result.Path, "stage", result.Stage)
	return result, nil
}

// resolveSelector picks the selector expression for req. Probe failures in
// the least-resolution mode degrade to selector.BestAvailable.
func (s *DownloadService) resolveSelector(ctx context.Context, req domain.Request, logger *slog.Logger) string {
	quality := req.NormalizedQuality()
	if !selector.IsLeastResSentinel(quality) {
		return selector.Build(quality, req.Resolution)
	}

	streams, err := s.engine.Probe(ctx, req.URL)
	if err != nil {
		metrics.SelectorFallbacks.Inc()
		logger.Warn("stream probe failed, using best available", "url", req.URL, "error", err)
		return selector.BestAvailable
	}

	sel := selector.BestAudioLeastRes(streams)
	if sel == selector.BestAvailable {
		metrics.SelectorFallbacks.Inc()
		logger.Warn("no usable streams, using best available", "url", req.URL, "streams", len(streams))
	}
	return sel
}

// Release removes the staging directory of a delivered result.
func (s *DownloadService) Release(res *domain.Result) {
	if res == nil {
		return
	}
	s.stage.Release(res.Dir)
}

func validate(req domain.Request) error {
	if strings.TrimSpace(req.URL) == "" {
		return fmt.Errorf("%w: url is required", domain.ErrInvalidRequest)
	}
	if u, err := url.Parse(req.URL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: url must be a valid http or https URL", domain.ErrInvalidRequest)
	}
	if req.Format != "" && !req.Format.IsKnown() {
		return fmt.Errorf("%w: %w: %q", domain.ErrInvalidRequest, domain.ErrUnsupportedFormat, req.Format)
	}
	if req.Resolution != 0 && (req.Resolution < domain.MinResolution || req.Resolution > domain.MaxResolution) {
		return fmt.Errorf("%w: resolution must be between %d and %d", domain.ErrInvalidRequest, domain.MinResolution, domain.MaxResolution)
	}
	return nil
}

func observe(stage string, start time.Time) {
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
