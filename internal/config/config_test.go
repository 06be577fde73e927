package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.TranscribeLimit != 25*1024*1024 {
		t.Errorf("TranscribeLimit = %d", cfg.TranscribeLimit)
	}
	if cfg.CORSOrigin != "*" {
		t.Errorf("CORSOrigin = %q", cfg.CORSOrigin)
	}
}

func TestLoadTOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowpipe.toml")
	body := `
port = "9090"
db_path = "/tmp/test.db"
scrape_timeout = "30s"
max_body_chars = 5000
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.ScrapeTimeout.Std() != 30*time.Second {
		t.Errorf("ScrapeTimeout = %v", cfg.ScrapeTimeout.Std())
	}
	if cfg.MaxBodyChars != 5000 {
		t.Errorf("MaxBodyChars = %d", cfg.MaxBodyChars)
	}
	// Values absent from the file keep their defaults.
	if cfg.WhisperModel != "whisper-1" {
		t.Errorf("WhisperModel = %q", cfg.WhisperModel)
	}
}

func TestLoadInvalidDurationInFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowpipe.toml")
	if err := os.WriteFile(path, []byte(`scrape_timeout = "soon"`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for an unparsable duration")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowpipe.toml")
	if err := os.WriteFile(path, []byte(`port = "9090"`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "7070")
	t.Setenv("DOWNLOAD_TIMEOUT", "2m")
	t.Setenv("TRANSCRIBE_LIMIT", "1048576")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "7070" {
		t.Errorf("Port = %q, want env value to win", cfg.Port)
	}
	if cfg.DownloadTimeout.Std() != 2*time.Minute {
		t.Errorf("DownloadTimeout = %v", cfg.DownloadTimeout.Std())
	}
	if cfg.TranscribeLimit != 1048576 {
		t.Errorf("TranscribeLimit = %d", cfg.TranscribeLimit)
	}
}

func TestEnvInvalidValuesIgnored(t *testing.T) {
	t.Setenv("SCRAPE_TIMEOUT", "soon")
	t.Setenv("MAX_BODY_CHARS", "lots")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ScrapeTimeout.Std() != 10*time.Second {
		t.Errorf("ScrapeTimeout = %v, want default kept", cfg.ScrapeTimeout.Std())
	}
	if cfg.MaxBodyChars != 100000 {
		t.Errorf("MaxBodyChars = %d, want default kept", cfg.MaxBodyChars)
	}
}

func TestUseStubs(t *testing.T) {
	if !(Config{}).UseStubs() {
		t.Error("empty key should enable stubs")
	}
	if (Config{OpenAIKey: "sk-test"}).UseStubs() {
		t.Error("configured key should disable stubs")
	}
}
