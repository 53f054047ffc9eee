package selector

import (
	"strings"

	"github.com/iconidentify/dlpapi/internal/domain"
)

// LeastResSentinel is the quality value that asks for the best audio paired
// with the lowest-resolution video.
const LeastResSentinel = "bestaudioleastres"

// IsLeastResSentinel reports whether quality requests probing mode.
func IsLeastResSentinel(quality string) bool {
	return strings.EqualFold(strings.TrimSpace(quality), LeastResSentinel)
}

// BestAudioLeastRes picks the richest audio-only stream and the smallest video
// stream and joins their format ids. It returns BestAvailable when neither
// kind is present. Ties keep the first stream encountered.
func BestAudioLeastRes(streams []domain.StreamDescriptor) string {
	var audio, video *domain.StreamDescriptor

	for i := range streams {
		s := &streams[i]
		switch {
		case s.HasAudio() && !s.HasVideo():
			if audio == nil || audioBetter(s, audio) {
				audio = s
			}
		case s.HasVideo() && s.Height > 0:
			if video == nil || videoSmaller(s, video) {
				video = s
			}
		}
	}

	switch {
	case video != nil && audio != nil:
		return video.FormatID + combineSep + audio.FormatID
	case video != nil:
		return video.FormatID
	case audio != nil:
		return audio.FormatID
	default:
		return BestAvailable
	}
}

func audioBetter(a, b *domain.StreamDescriptor) bool {
	if a.AverageBitrate != b.AverageBitrate {
		return a.AverageBitrate > b.AverageBitrate
	}
	return a.TotalBitrate > b.TotalBitrate
}

// videoSmaller only sees streams with a known height; unknown heights never
// enter the video partition.
func videoSmaller(a, b *domain.StreamDescriptor) bool {
	if a.Height != b.Height {
		return a.Height < b.Height
	}
	return a.TotalBitrate < b.TotalBitrate
}
