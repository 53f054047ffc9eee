package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/iconidentify/dlpapi/pkg/ffmpeg"
)

var startTime = time.Now()

// Storage is the part of the staging manager the readiness probe needs.
type Storage interface {
	Root() string
	Writable() error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	storage    Storage
	ffmpegPath string
	freeBytes  func(path string) int64
}

// NewHealthHandler creates a new health handler. An empty ffmpegPath skips
// the ffmpeg lookup in Ready.
func NewHealthHandler(storage Storage, ffmpegPath string, freeBytes func(path string) int64) *HealthHandler {
	return &HealthHandler{
		storage:    storage,
		ffmpegPath: ffmpegPath,
		freeBytes:  freeBytes,
	}
}

// HealthResponse is the JSON response for health checks.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the JSON response for GET /ready.
type ReadyResponse struct {
	Status        string `json:"status"`
	Detail        string `json:"detail,omitempty"`
	Timestamp     string `json:"timestamp"`
	DownloadRoot  string `json:"download_root"`
	FreeBytes     int64  `json:"free_bytes"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	NumGoroutines int    `json:"num_goroutines"`
}

// Live handles GET /health - liveness probe.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready handles GET /ready - readiness probe. It fails when the download root
// cannot take new files or ffmpeg is missing.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	resp := ReadyResponse{
		Status:        "ok",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		DownloadRoot:  h.storage.Root(),
		UptimeSeconds: int64(time.Since(startTime).Seconds()),
		NumGoroutines: runtime.NumGoroutine(),
	}
	if h.freeBytes != nil {
		resp.FreeBytes = h.freeBytes(resp.DownloadRoot)
	}

	if err := h.storage.Writable(); err != nil {
		resp.Status = "error"
		resp.Detail = "download root is not writable: " + err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	if h.ffmpegPath != "" {
		if err := ffmpeg.Available(h.ffmpegPath); err != nil {
			resp.Status = "error"
			resp.Detail = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
