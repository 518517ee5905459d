package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for canvasfetch
type Config struct {
	// Museum sources and search topic
	Museums MuseumsConfig `yaml:"museums" json:"museums"`

	// Session and engine tuning
	Acquisition AcquisitionConfig `yaml:"acquisition" json:"acquisition"`

	// On-disk locations
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// HTTP transport settings
	HTTP HTTPConfig `yaml:"http" json:"http"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// MuseumsConfig holds per-collection settings
type MuseumsConfig struct {
	Topic   string                  `yaml:"topic" json:"topic"`
	Sources map[string]SourceConfig `yaml:"sources" json:"sources"`
}

// SourceConfig configures a single collection adapter
type SourceConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	APIKey  string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
}

// AcquisitionConfig holds the session budget and defaults
type AcquisitionConfig struct {
	MaxAttempts        int    `yaml:"max_attempts" json:"max_attempts"`
	MaxPages           int    `yaml:"max_pages" json:"max_pages"`
	DefaultOrientation string `yaml:"default_orientation" json:"default_orientation"`
	OfflineFallback    bool   `yaml:"offline_fallback" json:"offline_fallback"`
}

// StorageConfig holds file locations
type StorageConfig struct {
	ImageDir    string `yaml:"image_dir" json:"image_dir"`
	LedgerPath  string `yaml:"ledger_path" json:"ledger_path"`
	RecencyFile string `yaml:"recency_file" json:"recency_file"`
	CatalogFile string `yaml:"catalog_file" json:"catalog_file"`
}

// HTTPConfig holds transport settings
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent     string        `yaml:"user_agent" json:"user_agent"`
	SearchRetries int           `yaml:"search_retries" json:"search_retries"`
	MaxImageBytes int64         `yaml:"max_image_bytes" json:"max_image_bytes"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// Known source names, in registry order
var SourceNames = []string{"met", "aic", "cma", "harvard", "rijks"}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Museums: MuseumsConfig{
			Topic: "landscape",
			Sources: map[string]SourceConfig{
				"met":     {Enabled: true},
				"aic":     {Enabled: true},
				"cma":     {Enabled: true},
				"harvard": {Enabled: true},
				"rijks":   {Enabled: true},
			},
		},
		Acquisition: AcquisitionConfig{
			MaxAttempts:        30,
			MaxPages:           10,
			DefaultOrientation: "any",
			OfflineFallback:    true,
		},
		Storage: StorageConfig{
			ImageDir:    "static",
			LedgerPath:  "seen.json",
			RecencyFile: "recency.json",
			CatalogFile: "catalog.json",
		},
		HTTP: HTTPConfig{
			Timeout:       15 * time.Second,
			UserAgent:     "canvasfetch/1.0",
			SearchRetries: 2,
			MaxImageBytes: 64 << 20,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// Source returns the settings for a named source, or a disabled zero value
func (c *Config) Source(name string) SourceConfig {
	if c.Museums.Sources == nil {
		return SourceConfig{}
	}
	return c.Museums.Sources[name]
}

// setSource updates one field of a source without dropping the others
func (c *Config) setSource(name string, update func(*SourceConfig)) {
	if c.Museums.Sources == nil {
		c.Museums.Sources = make(map[string]SourceConfig)
	}
	sc := c.Museums.Sources[name]
	update(&sc)
	c.Museums.Sources[name] = sc
}

// RecencyPath returns the recency marker file, relative to the image dir unless absolute
func (c *Config) RecencyPath() string {
	return resolveIn(c.Storage.ImageDir, c.Storage.RecencyFile)
}

// CatalogPath returns the metadata catalog file, relative to the image dir unless absolute
func (c *Config) CatalogPath() string {
	return resolveIn(c.Storage.ImageDir, c.Storage.CatalogFile)
}

func resolveIn(dir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if topic := os.Getenv("CANVASFETCH_TOPIC"); topic != "" {
		c.Museums.Topic = topic
	}

	// Per-source API keys and endpoints
	for _, name := range SourceNames {
		prefix := "CANVASFETCH_" + strings.ToUpper(name)
		if key := os.Getenv(prefix + "_API_KEY"); key != "" {
			c.setSource(name, func(sc *SourceConfig) { sc.APIKey = key })
		}
		if base := os.Getenv(prefix + "_BASE_URL"); base != "" {
			c.setSource(name, func(sc *SourceConfig) { sc.BaseURL = base })
		}
		if enabled := os.Getenv(prefix + "_ENABLED"); enabled != "" {
			on := strings.ToLower(enabled) == "true"
			c.setSource(name, func(sc *SourceConfig) { sc.Enabled = on })
		}
	}

	if attempts := os.Getenv("CANVASFETCH_MAX_ATTEMPTS"); attempts != "" {
		val, err := strconv.Atoi(attempts)
		if err != nil {
			return fmt.Errorf("invalid CANVASFETCH_MAX_ATTEMPTS: %w", err)
		}
		c.Acquisition.MaxAttempts = val
	}
	if pages := os.Getenv("CANVASFETCH_MAX_PAGES"); pages != "" {
		val, err := strconv.Atoi(pages)
		if err != nil {
			return fmt.Errorf("invalid CANVASFETCH_MAX_PAGES: %w", err)
		}
		c.Acquisition.MaxPages = val
	}
	if orient := os.Getenv("CANVASFETCH_ORIENTATION"); orient != "" {
		c.Acquisition.DefaultOrientation = orient
	}

	if dir := os.Getenv("CANVASFETCH_IMAGE_DIR"); dir != "" {
		c.Storage.ImageDir = dir
	}
	if ledger := os.Getenv("CANVASFETCH_LEDGER"); ledger != "" {
		c.Storage.LedgerPath = ledger
	}

	if timeout := os.Getenv("CANVASFETCH_HTTP_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid CANVASFETCH_HTTP_TIMEOUT: %w", err)
		}
		c.HTTP.Timeout = d
	}
	if ua := os.Getenv("CANVASFETCH_USER_AGENT"); ua != "" {
		c.HTTP.UserAgent = ua
	}

	if rpm := os.Getenv("CANVASFETCH_REQUESTS_PER_MINUTE"); rpm != "" {
		var val int
		fmt.Sscanf(rpm, "%d", &val)
		if val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}

	if logLevel := os.Getenv("CANVASFETCH_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("CANVASFETCH_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = Locate()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// Locate returns the first config file found in the standard locations, or ""
func Locate() string {
	home := os.Getenv("HOME")
	locations := []string{
		".canvasfetch.yaml",
		".canvasfetch.yml",
		filepath.Join(home, ".config", "canvasfetch", "config.yaml"),
		filepath.Join(home, ".config", "canvasfetch", "config.yml"),
		filepath.Join(home, ".canvasfetch.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Museums.Topic) == "" {
		errs = append(errs, errors.New("search topic is required"))
	}
	known := make(map[string]bool, len(SourceNames))
	for _, name := range SourceNames {
		known[name] = true
	}
	for name := range c.Museums.Sources {
		if !known[name] {
			errs = append(errs, fmt.Errorf("unknown museum source %q", name))
		}
	}

	if c.Acquisition.MaxAttempts <= 0 {
		errs = append(errs, errors.New("max attempts must be positive"))
	}
	if c.Acquisition.MaxPages <= 0 {
		errs = append(errs, errors.New("max pages must be positive"))
	}
	switch strings.ToLower(c.Acquisition.DefaultOrientation) {
	case "", "any", "wide", "tall":
	default:
		errs = append(errs, fmt.Errorf("invalid default orientation %q", c.Acquisition.DefaultOrientation))
	}

	if c.Storage.ImageDir == "" {
		errs = append(errs, errors.New("image directory is required"))
	}
	if c.Storage.LedgerPath == "" {
		errs = append(errs, errors.New("ledger path is required"))
	}
	if c.Storage.RecencyFile == "" {
		errs = append(errs, errors.New("recency file is required"))
	}

	if c.HTTP.Timeout <= 0 {
		errs = append(errs, errors.New("http timeout must be positive"))
	}
	if c.HTTP.SearchRetries < 0 {
		errs = append(errs, errors.New("search retries cannot be negative"))
	}
	if c.HTTP.MaxImageBytes < 0 {
		errs = append(errs, errors.New("max image bytes cannot be negative"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if dir, ok := flags["image-dir"].(string); ok && dir != "" {
		c.Storage.ImageDir = dir
	}
	if ledger, ok := flags["ledger"].(string); ok && ledger != "" {
		c.Storage.LedgerPath = ledger
	}
	if topic, ok := flags["topic"].(string); ok && topic != "" {
		c.Museums.Topic = topic
	}
	if attempts, ok := flags["max-attempts"].(int); ok && attempts > 0 {
		c.Acquisition.MaxAttempts = attempts
	}
	if pages, ok := flags["max-pages"].(int); ok && pages > 0 {
		c.Acquisition.MaxPages = pages
	}
	if timeout, ok := flags["timeout"].(time.Duration); ok && timeout > 0 {
		c.HTTP.Timeout = timeout
	}
	if offline, ok := flags["offline-fallback"].(bool); ok {
		c.Acquisition.OfflineFallback = offline
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".canvasfetch.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
