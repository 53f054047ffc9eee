package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names the config file when no -config flag is given.
const ConfigFileEnv = "DLP_API_CONFIG_FILE"

// DefaultConfigFile is read when no path is given and it exists.
const DefaultConfigFile = "config.json"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Engine    EngineConfig    `yaml:"engine"`
	Transcode TranscodeConfig `yaml:"transcode"`
	Worker    WorkerConfig    `yaml:"worker"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	LogLevel  string          `yaml:"log_level" envconfig:"DLP_API_LOG_LEVEL"`

	// Flat keys of the original config.json layout.
	LegacyAuthToken    string `yaml:"auth_token" ignored:"true"`
	LegacyDownloadRoot string `yaml:"download_root" ignored:"true"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `yaml:"host" envconfig:"DLP_API_SERVER_HOST"`
	Port int    `yaml:"port" envconfig:"DLP_API_SERVER_PORT"`
	// AuthToken enables bearer authentication when set.
	AuthToken      string        `yaml:"auth_token" envconfig:"DLP_API_AUTH_TOKEN"`
	ReadTimeout    time.Duration `yaml:"read_timeout" envconfig:"DLP_API_SERVER_READ_TIMEOUT"`
	WriteTimeout   time.Duration `yaml:"write_timeout" envconfig:"DLP_API_SERVER_WRITE_TIMEOUT"`
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"DLP_API_SERVER_REQUEST_TIMEOUT"`
}

// StorageConfig holds staging directory configuration.
type StorageConfig struct {
	DownloadRoot string `yaml:"download_root" envconfig:"DLP_API_DOWNLOAD_ROOT"`
	// MaxAge is how long an abandoned staging directory survives; zero disables the janitor.
	MaxAge          time.Duration `yaml:"max_age" envconfig:"DLP_API_STORAGE_MAX_AGE"`
	JanitorInterval time.Duration `yaml:"janitor_interval" envconfig:"DLP_API_STORAGE_JANITOR_INTERVAL"`
}

// EngineConfig holds extraction engine configuration.
type EngineConfig struct {
	// YtDlpPath overrides the yt-dlp executable looked up in PATH.
	YtDlpPath string `yaml:"ytdlp_path" envconfig:"DLP_API_YTDLP_PATH"`
}

// TranscodeConfig holds transcoder configuration.
type TranscodeConfig struct {
	FFmpegPath string `yaml:"ffmpeg_path" envconfig:"DLP_API_FFMPEG_PATH"`
}

// WorkerConfig holds worker pool configuration.
type WorkerConfig struct {
	Count     int `yaml:"count" envconfig:"DLP_API_WORKER_COUNT"`
	QueueSize int `yaml:"queue_size" envconfig:"DLP_API_WORKER_QUEUE_SIZE"`
}

// RateLimitConfig limits POST /download per client IP. Zero requests disables it.
type RateLimitConfig struct {
	Requests int           `yaml:"requests" envconfig:"DLP_API_RATE_LIMIT_REQUESTS"`
	Window   time.Duration `yaml:"window" envconfig:"DLP_API_RATE_LIMIT_WINDOW"`
}

// Default returns the built-in configuration values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8000,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   60 * time.Minute,
			RequestTimeout: 30 * time.Minute,
		},
		Storage: StorageConfig{
			DownloadRoot:    "downloads",
			MaxAge:          time.Hour,
			JanitorInterval: 10 * time.Minute,
		},
		Transcode: TranscodeConfig{
			FFmpegPath: "ffmpeg",
		},
		Worker: WorkerConfig{
			Count:     4,
			QueueSize: 16,
		},
		RateLimit: RateLimitConfig{
			Requests: 30,
			Window:   time.Minute,
		},
		LogLevel: "INFO",
	}
}

// Load reads configuration from file and environment variables.
// Environment variables override file values, which override Default.
//
// An empty configPath falls back to ConfigFileEnv and then to
// DefaultConfigFile. Only an explicitly named file has to exist; a broken
// fallback file is logged and skipped.
func Load(configPath string, logger *slog.Logger) (*Config, error) {
	cfg := Default()

	explicit := configPath != ""
	if !explicit {
		if env := os.Getenv(ConfigFileEnv); env != "" {
			configPath = env
			explicit = true
		} else {
			configPath = DefaultConfigFile
		}
	}

	if err := loadFile(configPath, cfg); err != nil {
		if explicit {
			return nil, err
		}
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("ignoring config file", "path", configPath, "error", err)
		}
		cfg = Default()
	}
	cfg.applyLegacy()

	// Override with environment variables
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	cfg.LogLevel = strings.ToUpper(strings.TrimSpace(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// loadFile parses YAML, which also accepts the JSON config files of older deployments.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyLegacy() {
	if c.LegacyAuthToken != "" && c.Server.AuthToken == "" {
		c.Server.AuthToken = c.LegacyAuthToken
	}
	if c.LegacyDownloadRoot != "" {
		c.Storage.DownloadRoot = c.LegacyDownloadRoot
	}
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Storage.DownloadRoot == "" {
		return fmt.Errorf("DLP_API_DOWNLOAD_ROOT is required")
	}
	if c.Worker.Count <= 0 {
		return fmt.Errorf("DLP_API_WORKER_COUNT must be positive")
	}
	if c.Transcode.FFmpegPath == "" {
		return fmt.Errorf("DLP_API_FFMPEG_PATH is required")
	}
	if c.RateLimit.Requests > 0 && c.RateLimit.Window <= 0 {
		return fmt.Errorf("DLP_API_RATE_LIMIT_WINDOW must be positive when rate limiting is enabled")
	}
	// The janitor must not sweep a directory a live request is still writing to.
	if c.Storage.MaxAge > 0 && c.Server.RequestTimeout > 0 && c.Storage.MaxAge <= c.Server.RequestTimeout {
		return fmt.Errorf("DLP_API_STORAGE_MAX_AGE (%s) must exceed DLP_API_SERVER_REQUEST_TIMEOUT (%s)",
			c.Storage.MaxAge, c.Server.RequestTimeout)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog level.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch c.LogLevel {
	case "", "INFO":
		return slog.LevelInfo, nil
	case "DEBUG":
		return slog.LevelDebug, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR", "CRITICAL":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown DLP_API_LOG_LEVEL %q", c.LogLevel)
	}
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
