package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Acquisition.MaxAttempts != 30 {
		t.Errorf("Expected default max attempts to be 30, got %d", config.Acquisition.MaxAttempts)
	}

	if config.Museums.Topic != "landscape" {
		t.Errorf("Expected default topic to be landscape, got %s", config.Museums.Topic)
	}

	if config.HTTP.Timeout != 15*time.Second {
		t.Errorf("Expected default timeout to be 15s, got %v", config.HTTP.Timeout)
	}

	for _, name := range SourceNames {
		if !config.Source(name).Enabled {
			t.Errorf("Expected source %s to be enabled by default", name)
		}
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Expected default config to be valid, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CANVASFETCH_TOPIC", "seascape")
	t.Setenv("CANVASFETCH_HARVARD_API_KEY", "harvard-key")
	t.Setenv("CANVASFETCH_MET_ENABLED", "false")
	t.Setenv("CANVASFETCH_AIC_BASE_URL", "http://localhost:9999")
	t.Setenv("CANVASFETCH_MAX_ATTEMPTS", "12")
	t.Setenv("CANVASFETCH_IMAGE_DIR", "/tmp/art")
	t.Setenv("CANVASFETCH_HTTP_TIMEOUT", "3s")
	t.Setenv("CANVASFETCH_LOG_LEVEL", "debug")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if config.Museums.Topic != "seascape" {
		t.Errorf("Expected topic to be seascape, got %s", config.Museums.Topic)
	}
	if config.Source("harvard").APIKey != "harvard-key" {
		t.Errorf("Expected harvard api key to be set, got %q", config.Source("harvard").APIKey)
	}
	if !config.Source("harvard").Enabled {
		t.Error("Expected harvard to stay enabled after setting its key")
	}
	if config.Source("met").Enabled {
		t.Error("Expected met to be disabled")
	}
	if config.Source("aic").BaseURL != "http://localhost:9999" {
		t.Errorf("Expected aic base url override, got %s", config.Source("aic").BaseURL)
	}
	if config.Acquisition.MaxAttempts != 12 {
		t.Errorf("Expected max attempts to be 12, got %d", config.Acquisition.MaxAttempts)
	}
	if config.Storage.ImageDir != "/tmp/art" {
		t.Errorf("Expected image dir to be /tmp/art, got %s", config.Storage.ImageDir)
	}
	if config.HTTP.Timeout != 3*time.Second {
		t.Errorf("Expected timeout to be 3s, got %v", config.HTTP.Timeout)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("Expected log level to be debug, got %s", config.Logging.Level)
	}
}

func TestLoadFromEnvInvalidNumber(t *testing.T) {
	t.Setenv("CANVASFETCH_MAX_ATTEMPTS", "many")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err == nil {
		t.Error("Expected error for non-numeric max attempts")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantError bool
	}{
		{
			name:      "valid config",
			mutate:    func(c *Config) {},
			wantError: false,
		},
		{
			name:      "zero budget",
			mutate:    func(c *Config) { c.Acquisition.MaxAttempts = 0 },
			wantError: true,
		},
		{
			name:      "zero page cap",
			mutate:    func(c *Config) { c.Acquisition.MaxPages = 0 },
			wantError: true,
		},
		{
			name:      "bad orientation",
			mutate:    func(c *Config) { c.Acquisition.DefaultOrientation = "square" },
			wantError: true,
		},
		{
			name: "unknown source",
			mutate: func(c *Config) {
				c.Museums.Sources["louvre"] = SourceConfig{Enabled: true}
			},
			wantError: true,
		},
		{
			name:      "empty topic",
			mutate:    func(c *Config) { c.Museums.Topic = " " },
			wantError: true,
		},
		{
			name:      "missing ledger path",
			mutate:    func(c *Config) { c.Storage.LedgerPath = "" },
			wantError: true,
		},
		{
			name:      "invalid log level",
			mutate:    func(c *Config) { c.Logging.Level = "invalid" },
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	config := DefaultConfig()
	config.Acquisition.MaxAttempts = -1
	config.HTTP.Timeout = 0

	err := config.Validate()
	if err == nil {
		t.Fatal("Expected validation error")
	}
	if !strings.Contains(err.Error(), "max attempts") || !strings.Contains(err.Error(), "http timeout") {
		t.Errorf("Expected both problems in error, got %v", err)
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	config := DefaultConfig()

	flags := map[string]interface{}{
		"image-dir":        "/flag/images",
		"ledger":           "/flag/seen.json",
		"max-attempts":     5,
		"timeout":          2 * time.Second,
		"offline-fallback": false,
		"log-level":        "error",
	}

	config.MergeCommandLineFlags(flags)

	if config.Storage.ImageDir != "/flag/images" {
		t.Errorf("Expected image dir to be /flag/images, got %s", config.Storage.ImageDir)
	}
	if config.Storage.LedgerPath != "/flag/seen.json" {
		t.Errorf("Expected ledger to be /flag/seen.json, got %s", config.Storage.LedgerPath)
	}
	if config.Acquisition.MaxAttempts != 5 {
		t.Errorf("Expected max attempts to be 5, got %d", config.Acquisition.MaxAttempts)
	}
	if config.HTTP.Timeout != 2*time.Second {
		t.Errorf("Expected timeout to be 2s, got %v", config.HTTP.Timeout)
	}
	if config.Acquisition.OfflineFallback {
		t.Error("Expected offline fallback to be disabled")
	}
	if config.Logging.Level != "error" {
		t.Errorf("Expected log level to be error, got %s", config.Logging.Level)
	}
}

func TestSaveAndLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "config.yaml")

	config := DefaultConfig()
	config.Museums.Topic = "mountains"
	config.Acquisition.MaxAttempts = 8
	config.Museums.Sources["rijks"] = SourceConfig{Enabled: true, APIKey: "rk"}

	if err := config.Save(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatalf("Expected config file to exist: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected config file mode 0600, got %v", info.Mode().Perm())
	}

	loaded := DefaultConfig()
	if err := loaded.LoadFromFile(configPath); err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loaded.Museums.Topic != "mountains" {
		t.Errorf("Expected topic to be mountains, got %s", loaded.Museums.Topic)
	}
	if loaded.Acquisition.MaxAttempts != 8 {
		t.Errorf("Expected max attempts to be 8, got %d", loaded.Acquisition.MaxAttempts)
	}
	if loaded.Source("rijks").APIKey != "rk" {
		t.Errorf("Expected rijks key to round-trip, got %q", loaded.Source("rijks").APIKey)
	}
	if loaded.HTTP.Timeout != 15*time.Second {
		t.Errorf("Expected timeout to survive yaml, got %v", loaded.HTTP.Timeout)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	config := DefaultConfig()
	if err := config.LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Expected error for explicit missing config file")
	}
}

func TestDerivedPaths(t *testing.T) {
	config := DefaultConfig()
	config.Storage.ImageDir = "/data/art"

	if got := config.RecencyPath(); got != filepath.Join("/data/art", "recency.json") {
		t.Errorf("Unexpected recency path %s", got)
	}

	config.Storage.CatalogFile = "/elsewhere/catalog.json"
	if got := config.CatalogPath(); got != "/elsewhere/catalog.json" {
		t.Errorf("Expected absolute catalog path to be kept, got %s", got)
	}
}
