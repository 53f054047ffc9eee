package domain

import (
	"strings"
)

// RequestID identifies one download request and its staging directory.
type RequestID string

// String returns the string representation of the RequestID.
func (id RequestID) String() string {
	return string(id)
}

// DefaultQuality is used when a request does not name a quality.
const DefaultQuality = "best"

// Resolution bounds accepted from callers, in pixels of height.
const (
	MinResolution = 144
	MaxResolution = 4320
)

// Request is a single download-and-transcode request.
type Request struct {
	URL     string
	Quality string
	// Resolution caps the video height; zero means no cap.
	Resolution int
	// Format is the desired output format; empty keeps whatever was fetched.
	Format OutputFormat
}

// NormalizedQuality returns the trimmed quality, falling back to DefaultQuality.
func (r Request) NormalizedQuality() string {
	q := strings.TrimSpace(r.Quality)
	if q == "" {
		return DefaultQuality
	}
	return q
}

// Stage names a step of the request lifecycle.
type Stage string

const (
	StageAllocated   Stage = "allocated"
	StageResolved    Stage = "resolved"
	StageFetched     Stage = "fetched"
	StageLocated     Stage = "located"
	StageTranscoded  Stage = "transcoded"
	StagePassThrough Stage = "passthrough"
	StageDelivered   Stage = "delivered"
	StageReleased    Stage = "released"
)

// Result is the outcome of a successful request.
type Result struct {
	RequestID RequestID
	// Dir is the staging directory that owns Path.
	Dir string
	// Path is the final artifact, <Dir>/<RequestID>.<ext>.
	Path string
	// Format is the extension of Path without the leading dot.
	Format OutputFormat
	// Stage is StageTranscoded or StagePassThrough.
	Stage Stage
}
