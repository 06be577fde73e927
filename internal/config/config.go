// Package config provides centralized configuration for the knowpipe server.
// Values resolve in three layers: built-in defaults, an optional TOML file,
// then environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration that decodes from TOML/env strings like "30s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for go-toml.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds all server configuration values.
type Config struct {
	// Port is the HTTP server listen port.
	Port string `toml:"port"`

	// DBPath is the path to the SQLite database file.
	DBPath string `toml:"db_path"`

	// OpenAIKey is the API key used for both text generation and
	// speech-to-text. Empty enables the stub model client.
	OpenAIKey string `toml:"-"`

	// OpenAIModel is the model identifier for text generation.
	OpenAIModel string `toml:"openai_model"`

	// WhisperModel is the model identifier for audio transcription.
	WhisperModel string `toml:"whisper_model"`

	// RemoteWorkerURL, when set, enables the remote extraction worker
	// strategy for video URLs before local audio processing.
	RemoteWorkerURL string `toml:"remote_worker_url"`

	// ScrapeTimeout bounds a single static page fetch.
	ScrapeTimeout Duration `toml:"scrape_timeout"`

	// SubtitleTimeout bounds the subtitle download subprocess.
	SubtitleTimeout Duration `toml:"subtitle_timeout"`

	// DownloadTimeout bounds audio/video download subprocesses.
	DownloadTimeout Duration `toml:"download_timeout"`

	// RemoteWorkerTimeout bounds the remote worker offload call.
	RemoteWorkerTimeout Duration `toml:"remote_worker_timeout"`

	// RenderTimeout bounds a headless-browser page render.
	RenderTimeout Duration `toml:"render_timeout"`

	// MaxBodyChars caps extracted body text before truncation.
	MaxBodyChars int `toml:"max_body_chars"`

	// TranscribeLimit is the per-request byte limit of the speech-to-text
	// API; larger audio is chunked.
	TranscribeLimit int64 `toml:"transcribe_limit"`

	// CORSOrigin is the allowed CORS origin. Defaults to "*".
	CORSOrigin string `toml:"cors_origin"`

	// Tool binaries. Overridable for non-standard installs.
	YtDlpBinary     string `toml:"ytdlp_binary"`
	FFmpegBinary    string `toml:"ffmpeg_binary"`
	FFprobeBinary   string `toml:"ffprobe_binary"`
	ChromiumBinary  string `toml:"chromium_binary"`
	PdftoppmBinary  string `toml:"pdftoppm_binary"`
	TesseractBinary string `toml:"tesseract_binary"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:                "8080",
		DBPath:              "knowpipe.db",
		OpenAIModel:         "gpt-4o-mini",
		WhisperModel:        "whisper-1",
		ScrapeTimeout:       Duration(10 * time.Second),
		SubtitleTimeout:     Duration(60 * time.Second),
		DownloadTimeout:     Duration(300 * time.Second),
		RemoteWorkerTimeout: Duration(300 * time.Second),
		RenderTimeout:       Duration(60 * time.Second),
		MaxBodyChars:        100000,
		TranscribeLimit:     25 * 1024 * 1024,
		CORSOrigin:          "*",
		YtDlpBinary:         "yt-dlp",
		FFmpegBinary:        "ffmpeg",
		FFprobeBinary:       "ffprobe",
		ChromiumBinary:      "chromium",
		PdftoppmBinary:      "pdftoppm",
		TesseractBinary:     "tesseract",
	}
}

// Load builds the configuration from defaults, the optional TOML file at
// path (or $KNOWPIPE_CONFIG when path is empty), and the environment.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv("KNOWPIPE_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// UseStubs returns true when no API key is configured.
func (c Config) UseStubs() bool {
	return c.OpenAIKey == ""
}

func (c *Config) applyEnv() {
	c.Port = envOr("PORT", c.Port)
	c.DBPath = envOr("DB_PATH", c.DBPath)
	c.OpenAIKey = envOr("OPENAI_API_KEY", c.OpenAIKey)
	c.OpenAIModel = envOr("OPENAI_MODEL", c.OpenAIModel)
	c.WhisperModel = envOr("WHISPER_MODEL", c.WhisperModel)
	c.RemoteWorkerURL = envOr("REMOTE_WORKER_URL", c.RemoteWorkerURL)
	c.ScrapeTimeout = envDuration("SCRAPE_TIMEOUT", c.ScrapeTimeout)
	c.SubtitleTimeout = envDuration("SUBTITLE_TIMEOUT", c.SubtitleTimeout)
	c.DownloadTimeout = envDuration("DOWNLOAD_TIMEOUT", c.DownloadTimeout)
	c.RemoteWorkerTimeout = envDuration("REMOTE_WORKER_TIMEOUT", c.RemoteWorkerTimeout)
	c.RenderTimeout = envDuration("RENDER_TIMEOUT", c.RenderTimeout)
	c.MaxBodyChars = envInt("MAX_BODY_CHARS", c.MaxBodyChars)
	c.TranscribeLimit = envInt64("TRANSCRIBE_LIMIT", c.TranscribeLimit)
	c.CORSOrigin = envOr("CORS_ORIGIN", c.CORSOrigin)
	c.YtDlpBinary = envOr("YTDLP_BINARY", c.YtDlpBinary)
	c.FFmpegBinary = envOr("FFMPEG_BINARY", c.FFmpegBinary)
	c.FFprobeBinary = envOr("FFPROBE_BINARY", c.FFprobeBinary)
	c.ChromiumBinary = envOr("CHROMIUM_BINARY", c.ChromiumBinary)
	c.PdftoppmBinary = envOr("PDFTOPPM_BINARY", c.PdftoppmBinary)
	c.TesseractBinary = envOr("TESSERACT_BINARY", c.TesseractBinary)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback Duration) Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return Duration(d)
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
