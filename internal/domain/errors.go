package domain

import "errors"

// Domain errors.
var (
	// ErrInvalidRequest is returned when a request fails validation.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnsupportedFormat is returned for an output format outside the supported set.
	ErrUnsupportedFormat = errors.New("unsupported output format")

	// ErrProbeFailed is returned when the engine could not list the streams of a URL.
	ErrProbeFailed = errors.New("stream probe failed")

	// ErrFetchFailed is returned when the engine could not retrieve the media.
	ErrFetchFailed = errors.New("media fetch failed")

	// ErrNoOutputProduced is returned when a fetch left no file in the staging directory.
	ErrNoOutputProduced = errors.New("no downloaded files were produced")

	// ErrTranscodeFailed is returned when the transcoding process exits non-zero.
	ErrTranscodeFailed = errors.New("transcode failed")
)

// PipelineError wraps a fatal failure with request context.
type PipelineError struct {
	RequestID RequestID
	// Dir is the staging directory left behind, if one was allocated.
	Dir   string
	Stage Stage
	Err   error
}

func (e *PipelineError) Error() string {
	if e.RequestID != "" {
		return string(e.Stage) + " [" + e.RequestID.String() + "]: " + e.Err.Error()
	}
	return string(e.Stage) + ": " + e.Err.Error()
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError creates a new PipelineError.
func NewPipelineError(requestID RequestID, dir string, stage Stage, err error) *PipelineError {
	return &PipelineError{
		RequestID: requestID,
		Dir:       dir,
		Stage:     stage,
		Err:       err,
	}
}
