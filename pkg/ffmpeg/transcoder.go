package ffmpeg

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Result describes the file a Transcode call left behind.
type Result struct {
	// Path is the file to deliver.
	Path string
	// Transcoded is false when the input was passed through unchanged.
	Transcoded bool
	// CleanupErr is set when the intermediate input could not be removed.
	CleanupErr error
}

// Transcoder converts fetched media into a requested output format.
type Transcoder struct {
	ffmpegPath string
	runner     Runner
	logger     *slog.Logger
}

// NewTranscoder creates a transcoder that runs ffmpegPath through runner.
func NewTranscoder(ffmpegPath string, runner Runner, logger *slog.Logger) *Transcoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Transcoder{
		ffmpegPath: ffmpegPath,
		runner:     runner,
		logger:     logger,
	}
}

// Transcode converts input into output as format.
//
// An empty format, or an input whose extension already equals format, is
// returned unchanged without running ffmpeg. After a successful conversion the
// input is removed; a failed removal is logged and reported in Result.CleanupErr.
func (t *Transcoder) Transcode(ctx context.Context, input, output, format string) (*Result, error) {
	format = strings.ToLower(format)
	if format == "" || extension(input) == format {
		return &Result{Path: input}, nil
	}

	args, err := Args(input, output, format)
	if err != nil {
		return nil, err
	}

	t.logger.Info("running ffmpeg", "command", t.ffmpegPath+" "+strings.Join(args, " "))
	if err := t.runner.Run(ctx, t.ffmpegPath, args...); err != nil {
		return nil, fmt.Errorf("convert to %s: %w", format, err)
	}

	res := &Result{Path: output, Transcoded: true}
	if input != output {
		if err := os.Remove(input); err != nil && !os.IsNotExist(err) {
			t.logger.Warn("failed to remove intermediate file", "path", input, "error", err)
			res.CleanupErr = err
		}
	}
	return res, nil
}

func extension(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}
