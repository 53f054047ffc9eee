package domain

// NoCodec is how the extraction engine marks a track that is not carried.
const NoCodec = "none"

// StreamDescriptor is one variant the extraction engine reports for a URL.
type StreamDescriptor struct {
	FormatID   string
	AudioCodec string
	VideoCodec string
	// Height is zero when the engine did not report one.
	Height         int
	AverageBitrate float64
	TotalBitrate   float64
}

// HasAudio reports whether the stream carries an audio track.
func (s StreamDescriptor) HasAudio() bool {
	return s.AudioCodec != "" && s.AudioCodec != NoCodec
}

// HasVideo reports whether the stream carries a video track.
func (s StreamDescriptor) HasVideo() bool {
	return s.VideoCodec != "" && s.VideoCodec != NoCodec
}

// FetchOptions is the per-call configuration handed to the extraction engine.
type FetchOptions struct {
	// Selector is the format selector expression.
	Selector string
	// OutputTemplate is the engine output path, with an extension placeholder.
	OutputTemplate string
	// NoPlaylist restricts the fetch to a single item.
	NoPlaylist bool
	// Retries is the engine's own retry budget for transient failures.
	Retries int
	// Quiet suppresses verbose engine output.
	Quiet bool
}

// DefaultFetchRetries is the engine retry budget per fetch.
const DefaultFetchRetries = 3

// NewFetchOptions returns the fixed fetch policy for a selector and template.
func NewFetchOptions(selector, outputTemplate string) FetchOptions {
	return FetchOptions{
		Selector:       selector,
		OutputTemplate: outputTemplate,
		NoPlaylist:     true,
		Retries:        DefaultFetchRetries,
		Quiet:          true,
	}
}
