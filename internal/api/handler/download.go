package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/iconidentify/dlpapi/internal/domain"
	"github.com/iconidentify/dlpapi/internal/worker"
)

// Downloader runs the download pipeline and releases its staging directories.
type Downloader interface {
	Process(ctx context.Context, req domain.Request) (*domain.Result, error)
	Release(res *domain.Result)
}

// Executor runs a task on a worker and waits for it.
type Executor interface {
	Do(ctx context.Context, fn worker.Task) error
}

// DownloadHandler handles POST /download.
type DownloadHandler struct {
	svc      Downloader
	pool     Executor
	validate *validator.Validate
	logger   *slog.Logger
}

// NewDownloadHandler creates a new download handler.
func NewDownloadHandler(svc Downloader, pool Executor, logger *slog.Logger) *DownloadHandler {
	return &DownloadHandler{
		svc:      svc,
		pool:     pool,
		validate: NewValidator(),
		logger:   logger,
	}
}

// DownloadRequest is the JSON body of POST /download.
type DownloadRequest struct {
	URL        string `json:"url" validate:"required,http_url"`
	Quality    string `json:"quality"`
	Resolution *int   `json:"resolution" validate:"omitempty,min=144,max=4320"`
	// OutputFormat defaults to mp4; an explicit empty string keeps the fetched format.
	OutputFormat string `json:"output_format" validate:"outputformat"`
}

// NewValidator returns a validator that knows the "outputformat" tag.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("outputformat", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseOutputFormat(fl.Field().String())
		return err == nil
	})
	return v
}

// Download handles POST /download - fetch, transcode and stream back one file.
func (h *DownloadHandler) Download(w http.ResponseWriter, r *http.Request) {
	body := DownloadRequest{
		Quality:      domain.DefaultQuality,
		OutputFormat: string(domain.DefaultOutputFormat),
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, validationDetail(err))
		return
	}

	format, _ := domain.ParseOutputFormat(body.OutputFormat)
	req := domain.Request{
		URL:     body.URL,
		Quality: body.Quality,
		Format:  format,
	}
	if body.Resolution != nil {
		req.Resolution = *body.Resolution
	}

	d := &delivery{}
	err := h.pool.Do(r.Context(), func(ctx context.Context) error {
		out, err := h.svc.Process(ctx, req)
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			// Nobody is waiting for the file any more.
			h.svc.Release(out)
			return ctx.Err()
		}
		if !d.offer(out) {
			h.svc.Release(out)
			return context.Canceled
		}
		return nil
	})
	if err != nil {
		if res := d.abandon(); res != nil {
			go h.svc.Release(res)
		}
		h.writePipelineError(w, r, err)
		return
	}
	res := d.result()

	// Release only after the body has been written.
	defer func() { go h.svc.Release(res) }()

	f, err := os.Open(res.Path)
	if err != nil {
		h.logger.Error("failed to open final file", "request_id", res.RequestID, "path", res.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to open downloaded file")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.logger.Error("failed to stat final file", "request_id", res.RequestID, "path", res.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to open downloaded file")
		return
	}

	label := format.String()
	if label == "" {
		label = res.Format.String()
	}
	name := filepath.Base(res.Path)

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("X-Request-Id", res.RequestID.String())
	w.Header().Set("X-Output-Format", label)
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// delivery hands a finished result from the worker to the waiting request.
// Whichever side gives up first leaves the release to the other.
type delivery struct {
	mu        sync.Mutex
	res       *domain.Result
	abandoned bool
}

// offer stores res, or reports false once the request has stopped waiting.
func (d *delivery) offer(res *domain.Result) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.abandoned {
		return false
	}
	d.res = res
	return true
}

// abandon stops the request waiting and returns any result already offered.
func (d *delivery) abandon() *domain.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.abandoned = true
	res := d.res
	d.res = nil
	return res
}

func (d *delivery) result() *domain.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.res
}

func (h *DownloadHandler) writePipelineError(w http.ResponseWriter, r *http.Request, err error) {
	var pe *domain.PipelineError
	detail := err.Error()
	if errors.As(err, &pe) {
		if pe.RequestID != "" {
			w.Header().Set("X-Request-Id", pe.RequestID.String())
		}
		detail = pe.Err.Error()
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrFetchFailed):
		status = http.StatusBadGateway
	case errors.Is(err, worker.ErrPoolStopped):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	h.logger.Error("download failed", "status", status, "error", err)
	if errors.Is(r.Context().Err(), context.DeadlineExceeded) {
		// The timeout middleware answers 504 itself.
		return
	}
	writeError(w, status, detail)
}

// validationDetail renders validator errors as one readable sentence.
func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", jsonName(fe.Field())))
		case "http_url":
			msgs = append(msgs, "url must be a valid http or https URL")
		case "min", "max":
			msgs = append(msgs, fmt.Sprintf("resolution must be between %d and %d", domain.MinResolution, domain.MaxResolution))
		case "outputformat":
			msgs = append(msgs, "Unsupported output format")
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", jsonName(fe.Field())))
		}
	}
	return strings.Join(msgs, "; ")
}

func jsonName(field string) string {
	switch field {
	case "URL":
		return "url"
	case "OutputFormat":
		return "output_format"
	default:
		return strings.ToLower(field)
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
