// Package ffmpeg builds and runs ffmpeg transcoding commands.
package ffmpeg

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedFormat is returned by Args for a format outside the known set.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// gifFilter renders 15 fps, 640 px wide output with a lanczos rescale.
const gifFilter = "fps=15,scale=640:-1:flags=lanczos"

var audioCodecs = map[string]string{
	"mp3":    "libmp3lame",
	"wav":    "pcm_s16le",
	"m4a":    "aac",
	"aac":    "aac",
	"flac":   "flac",
	"opus":   "libopus",
	"ogg":    "libvorbis",
	"vorbis": "libvorbis",
	"alac":   "alac",
}

type videoCodec struct {
	video string
	audio string
}

var videoCodecs = map[string]videoCodec{
	"mp4":  {"libx264", "aac"},
	"mkv":  {"libx264", "aac"},
	"mov":  {"libx264", "aac"},
	"avi":  {"libx264", "aac"},
	"flv":  {"libx264", "aac"},
	"webm": {"libvpx-vp9", "libopus"},
}

// Args returns the ffmpeg arguments that convert input into output as format:
// the overwrite flag, the input, the format-specific codec or filter flags, then
// the output path.
func Args(input, output, format string) ([]string, error) {
	format = strings.ToLower(format)
	args := []string{"-y", "-i", input}

	if codec, ok := audioCodecs[format]; ok {
		args = append(args, "-vn", "-c:a", codec)
	} else if format == "gif" {
		args = append(args, "-vf", gifFilter, "-loop", "0")
	} else if codecs, ok := videoCodecs[format]; ok {
		args = append(args, "-c:v", codecs.video, "-c:a", codecs.audio)
	} else {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	return append(args, output), nil
}
