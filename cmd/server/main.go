package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iconidentify/dlpapi/internal/api"
	"github.com/iconidentify/dlpapi/internal/api/handler"
	mw "github.com/iconidentify/dlpapi/internal/api/middleware"
	"github.com/iconidentify/dlpapi/internal/config"
	"github.com/iconidentify/dlpapi/internal/downloader"
	"github.com/iconidentify/dlpapi/internal/service"
	"github.com/iconidentify/dlpapi/internal/staging"
	"github.com/iconidentify/dlpapi/internal/worker"
	"github.com/iconidentify/dlpapi/pkg/ffmpeg"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("dlpapi %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Setup logger; the level is raised or lowered once config is loaded.
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	logger.Info("starting dlpapi",
		"version", Version,
		"build_time", BuildTime,
	)

	// Load configuration
	cfg, err := config.Load(*configPath, logger)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	lvl, _ := cfg.SlogLevel()
	level.Set(lvl)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// Ensure the download root exists
	if err := os.MkdirAll(cfg.Storage.DownloadRoot, 0755); err != nil {
		return fmt.Errorf("create download root: %w", err)
	}

	if cfg.Server.AuthToken == "" {
		logger.Warn("No auth token configured. API endpoints will be accessible without a token.")
	}
	if err := ffmpeg.Available(cfg.Transcode.FFmpegPath); err != nil {
		logger.Warn("ffmpeg unavailable, transcoding requests will fail", "error", err)
	}

	// Initialize dependencies
	stage := staging.NewManager(cfg.Storage.DownloadRoot, logger)
	engine := downloader.NewYtDlp(cfg.Engine, logger)
	transcoder := ffmpeg.NewTranscoder(cfg.Transcode.FFmpegPath, ffmpeg.ExecRunner{}, logger)
	downloadSvc := service.NewDownloadService(engine, stage, transcoder, logger)

	pool := worker.NewPool(worker.Config{
		Workers:   cfg.Worker.Count,
		QueueSize: cfg.Worker.QueueSize,
	}, logger)
	pool.Start()

	// Setup router
	router := api.NewRouter(
		handler.NewDownloadHandler(downloadSvc, pool, logger),
		handler.NewHealthHandler(stage, cfg.Transcode.FFmpegPath, staging.FreeBytes),
		cfg.Server.AuthToken,
		mw.RateLimitConfig{
			RequestLimit: cfg.RateLimit.Requests,
			WindowSize:   cfg.RateLimit.Window,
		},
		cfg.Server.RequestTimeout,
		logger,
	)

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting HTTP server", "addr", srv.Addr, "download_root", stage.Root())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return stage.RunJanitor(ctx, cfg.Storage.JanitorInterval, cfg.Storage.MaxAge)
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Stop accepting new requests
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}

		// Stop workers (allow in-flight downloads to complete)
		if err := pool.Stop(shutdownTimeout); err != nil {
			logger.Error("worker pool shutdown error", "error", err)
		}
		return nil
	})

	return g.Wait()
}
