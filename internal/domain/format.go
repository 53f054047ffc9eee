package domain

import (
	"path/filepath"
	"strings"
)

// OutputFormat is a container or codec family a request can ask for.
type OutputFormat string

// Video containers.
const (
	FormatMP4  OutputFormat = "mp4"
	FormatMKV  OutputFormat = "mkv"
	FormatMOV  OutputFormat = "mov"
	FormatAVI  OutputFormat = "avi"
	FormatFLV  OutputFormat = "flv"
	FormatWebM OutputFormat = "webm"
)

// Animated image.
const FormatGIF OutputFormat = "gif"

// Audio formats.
const (
	FormatMP3    OutputFormat = "mp3"
	FormatWAV    OutputFormat = "wav"
	FormatM4A    OutputFormat = "m4a"
	FormatAAC    OutputFormat = "aac"
	FormatFLAC   OutputFormat = "flac"
	FormatOpus   OutputFormat = "opus"
	FormatOGG    OutputFormat = "ogg"
	FormatVorbis OutputFormat = "vorbis"
	FormatALAC   OutputFormat = "alac"
)

// DefaultOutputFormat is applied by the HTTP layer when the field is omitted.
const DefaultOutputFormat = FormatMP4

var (
	videoFormats = map[OutputFormat]bool{
		FormatMP4: true, FormatMKV: true, FormatMOV: true,
		FormatAVI: true, FormatFLV: true, FormatWebM: true,
	}
	audioFormats = map[OutputFormat]bool{
		FormatMP3: true, FormatWAV: true, FormatM4A: true, FormatAAC: true, FormatFLAC: true,
		FormatOpus: true, FormatOGG: true, FormatVorbis: true, FormatALAC: true,
	}
)

// String returns the string representation of the OutputFormat.
func (f OutputFormat) String() string {
	return string(f)
}

// IsVideo reports whether f is a video container.
func (f OutputFormat) IsVideo() bool { return videoFormats[f] }

// IsAudio reports whether f is an audio-only format.
func (f OutputFormat) IsAudio() bool { return audioFormats[f] }

// IsGIF reports whether f is the animated image format.
func (f OutputFormat) IsGIF() bool { return f == FormatGIF }

// IsKnown reports whether f belongs to the closed set of supported formats.
func (f OutputFormat) IsKnown() bool {
	return f.IsVideo() || f.IsAudio() || f.IsGIF()
}

// ParseOutputFormat lowercases and validates s. The empty string is accepted
// and means "keep as fetched".
func ParseOutputFormat(s string) (OutputFormat, error) {
	f := OutputFormat(strings.ToLower(strings.TrimSpace(s)))
	if f == "" || f.IsKnown() {
		return f, nil
	}
	return "", ErrUnsupportedFormat
}

// FormatOf returns the extension of path, lowercased and without the dot.
func FormatOf(path string) OutputFormat {
	return OutputFormat(strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")))
}

// OutputFormats lists every supported format, videos first.
func OutputFormats() []OutputFormat {
	return []OutputFormat{
		FormatMP4, FormatMKV, FormatMOV, FormatWebM, FormatAVI, FormatFLV,
		FormatGIF,
		FormatMP3, FormatWAV, FormatM4A, FormatAAC, FormatFLAC, FormatOpus, FormatOGG, FormatVorbis, FormatALAC,
	}
}
