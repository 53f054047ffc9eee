package downloader

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/lrstanley/go-ytdlp"

	"github.com/iconidentify/dlpapi/internal/config"
	"github.com/iconidentify/dlpapi/internal/domain"
)

// YtDlp implements Engine by driving the yt-dlp executable.
type YtDlp struct {
	executable string
	logger     *slog.Logger
}

// NewYtDlp creates a yt-dlp backed engine.
func NewYtDlp(cfg config.EngineConfig, logger *slog.Logger) *YtDlp {
	return &YtDlp{
		executable: cfg.YtDlpPath,
		logger:     logger,
	}
}

func (e *YtDlp) command() *ytdlp.Command {
	cmd := ytdlp.New()
	if e.executable != "" {
		cmd = cmd.SetExecutable(e.executable)
	}
	return cmd
}

// probeCommand dumps the single-item info JSON without downloading.
func (e *YtDlp) probeCommand() *ytdlp.Command {
	return e.command().
		DumpSingleJSON().
		NoPlaylist().
		Quiet().
		NoWarnings()
}

// fetchCommand maps the fetch policy in opts onto engine flags.
func (e *YtDlp) fetchCommand(opts domain.FetchOptions) *ytdlp.Command {
	cmd := e.command().
		Format(opts.Selector).
		Output(opts.OutputTemplate)
	if opts.NoPlaylist {
		cmd = cmd.NoPlaylist()
	}
	if opts.Retries > 0 {
		cmd = cmd.Retries(strconv.Itoa(opts.Retries))
	}
	if opts.Quiet {
		cmd = cmd.Quiet().NoWarnings()
	}
	return cmd
}

// Probe runs yt-dlp in single-JSON mode and decodes its format list.
func (e *YtDlp) Probe(ctx context.Context, url string) ([]domain.StreamDescriptor, error) {
	res, err := e.probeCommand().Run(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrProbeFailed, err)
	}

	streams, err := parseFormats(res.Stdout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrProbeFailed, err)
	}

	e.logger.Debug("probed streams", "url", url, "count", len(streams))
	return streams, nil
}

// Fetch downloads a single item with the given selector.
func (e *YtDlp) Fetch(ctx context.Context, url string, opts domain.FetchOptions) error {
	e.logger.Info("starting download", "url", url, "format", opts.Selector)

	if _, err := e.fetchCommand(opts).Run(ctx, url); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrFetchFailed, err)
	}
	return nil
}

// parseFormats decodes yt-dlp's info JSON into stream descriptors. Codecs
// reported as "none" come back empty.
func parseFormats(stdout string) ([]domain.StreamDescriptor, error) {
	raw := json.RawMessage(stdout)
	info, err := ytdlp.ParseExtractedInfo(&raw)
	if err != nil {
		return nil, fmt.Errorf("decode info json: %w", err)
	}

	streams := make([]domain.StreamDescriptor, 0, len(info.Formats))
	for _, f := range info.Formats {
		if f == nil {
			continue
		}
		streams = append(streams, domain.StreamDescriptor{
			FormatID:       ptrValue(f.FormatID),
			AudioCodec:     ptrValue(f.ACodec),
			VideoCodec:     ptrValue(f.VCodec),
			Height:         int(ptrValue(f.Height)),
			AverageBitrate: ptrValue(f.ABR),
			TotalBitrate:   ptrValue(f.TBR),
		})
	}
	return streams, nil
}

func ptrValue[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
