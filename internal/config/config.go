// Package config provides YAML-based configuration management for the extraction service.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/invoice-extractor/backend/internal/llm"
)

// Provider names accepted in model.provider.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// History drivers accepted in history.driver.
const (
	HistoryMemory = "memory"
	HistoryDuckDB = "duckdb"
	HistoryNone   = "none"
)

// Rate limit strategies accepted in extraction.rate_limit.strategy.
const (
	StrategyWindow      = "window"
	StrategyTokenBucket = "token_bucket"
)

// AppConfig represents the root configuration structure
type AppConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Model      ModelConfig      `yaml:"model"`
	History    HistoryConfig    `yaml:"history"`
	Advanced   AdvancedConfig   `yaml:"advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port              int      `yaml:"port"`
	BindAddress       string   `yaml:"bind_address"`
	AllowOrigins      []string `yaml:"allow_origins"`
	TrustProxyHeaders bool     `yaml:"trust_proxy_headers"`
	ReadTimeout       int      `yaml:"read_timeout_seconds"`
	WriteTimeout      int      `yaml:"write_timeout_seconds"`
	IdleTimeout       int      `yaml:"idle_timeout_seconds"`
	ShutdownTimeout   int      `yaml:"shutdown_timeout_seconds"`
	BodyLimit         string   `yaml:"body_limit"`
	EnableCompression bool     `yaml:"enable_compression"`
	CompressionLevel  int      `yaml:"compression_level"`
}

// ExtractionConfig contains upload validation and throttling settings
type ExtractionConfig struct {
	MaxFileSize         int64           `yaml:"max_file_size_bytes"`
	AllowedTypes        []string        `yaml:"allowed_types"`
	ModelTimeoutSeconds int             `yaml:"model_timeout_seconds"`
	RateLimit           RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig limits /extract calls per client address.
type RateLimitConfig struct {
	Requests               int    `yaml:"requests"`
	WindowSeconds          int    `yaml:"window_seconds"`
	Strategy               string `yaml:"strategy"`
	CleanupIntervalSeconds int    `yaml:"cleanup_interval_seconds"`
}

// ModelConfig selects the generative model and its sampling settings
type ModelConfig struct {
	Provider         string  `yaml:"provider"`
	Name             string  `yaml:"name"`
	APIKey           string  `yaml:"api_key"`
	BaseURL          string  `yaml:"base_url"`
	Temperature      float32 `yaml:"temperature"`
	TopP             float32 `yaml:"top_p"`
	TopK             float32 `yaml:"top_k"`
	MaxOutputTokens  int32   `yaml:"max_output_tokens"`
	ResponseMIMEType string  `yaml:"response_mime_type"`
}

// HistoryConfig controls where finished extractions are recorded
type HistoryConfig struct {
	Driver     string `yaml:"driver"`
	Path       string `yaml:"path"`
	MaxEntries int    `yaml:"max_entries"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel             string `yaml:"log_level"`
	EnableRequestLogging bool   `yaml:"enable_request_logging"`
	ExposeErrorDetails   bool   `yaml:"expose_error_details"`
}

// DefaultAllowedTypes is the upload allow-list used when none is configured.
var DefaultAllowedTypes = []string{
	"image/jpeg",
	"image/png",
	"image/jpg",
	"image/webp",
	"image/heic",
	"image/heif",
	"application/pdf",
	"application/octet-stream",
}

// DefaultAllowOrigins are the frontend origins allowed by CORS.
var DefaultAllowOrigins = []string{
	"http://localhost:3000",
	"http://localhost:3001",
	"http://localhost:3002",
	"https://invoice-extractor-app.vercel.app",
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:              8000,
			BindAddress:       "0.0.0.0",
			AllowOrigins:      append([]string(nil), DefaultAllowOrigins...),
			ReadTimeout:       30,
			WriteTimeout:      120,
			IdleTimeout:       120,
			ShutdownTimeout:   10,
			BodyLimit:         "6M",
			EnableCompression: true,
			CompressionLevel:  5,
		},
		Extraction: ExtractionConfig{
			MaxFileSize:  5 * 1024 * 1024,
			AllowedTypes: append([]string(nil), DefaultAllowedTypes...),
			RateLimit: RateLimitConfig{
				Requests:               10,
				WindowSeconds:          60,
				Strategy:               StrategyWindow,
				CleanupIntervalSeconds: 300,
			},
		},
		Model: ModelConfig{
			Provider:         ProviderGemini,
			Name:             "gemini-2.5-flash-lite",
			Temperature:      0.1,
			TopP:             0.95,
			TopK:             64,
			MaxOutputTokens:  8192,
			ResponseMIMEType: "application/json",
		},
		History: HistoryConfig{
			Driver:     HistoryMemory,
			Path:       "./data/history.duckdb",
			MaxEntries: 500,
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			EnableRequestLogging: true,
			ExposeErrorDetails:   true,
		},
	}
}

// LoadConfig loads configuration from a YAML file.
// A missing file is created with defaults.
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(filepath.Dir(configPath))

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save saves the configuration to a YAML file. The API key is never written.
func (c *AppConfig) Save(configPath string) error {
	out := *c
	out.Model.APIKey = ""

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	header := []byte("# Invoice extractor configuration\n# This file is auto-generated on first run\n\n")
	if err := os.WriteFile(configPath, append(header, data...), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if origins := os.Getenv("ALLOW_ORIGINS"); origins != "" {
		c.Server.AllowOrigins = splitList(origins)
	}

	if provider := os.Getenv("MODEL_PROVIDER"); provider != "" {
		c.Model.Provider = strings.ToLower(provider)
	}
	if name := os.Getenv("MODEL_NAME"); name != "" {
		c.Model.Name = name
	}

	// The key variable follows the provider.
	keyVar := "GOOGLE_API_KEY"
	if c.Model.Provider == ProviderOpenAI {
		keyVar = "OPENAI_API_KEY"
	}
	if key := os.Getenv(keyVar); key != "" {
		c.Model.APIKey = key
	}

	if driver := os.Getenv("HISTORY_DRIVER"); driver != "" {
		c.History.Driver = strings.ToLower(driver)
	}
	if path := os.Getenv("HISTORY_PATH"); path != "" {
		c.History.Path = path
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = level
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if c.History.Path != "" && !filepath.IsAbs(c.History.Path) {
		c.History.Path = filepath.Join(configDir, c.History.Path)
	}
}

// Validate rejects settings the server cannot run with.
func (c *AppConfig) Validate() error {
	switch c.Model.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown model provider: %q", c.Model.Provider)
	}

	switch c.History.Driver {
	case HistoryMemory, HistoryDuckDB, HistoryNone:
	default:
		return fmt.Errorf("unknown history driver: %q", c.History.Driver)
	}

	switch c.Extraction.RateLimit.Strategy {
	case StrategyWindow, StrategyTokenBucket:
	default:
		return fmt.Errorf("unknown rate limit strategy: %q", c.Extraction.RateLimit.Strategy)
	}

	if c.Extraction.MaxFileSize <= 0 {
		return errors.New("extraction.max_file_size_bytes must be positive")
	}
	if c.Extraction.RateLimit.Requests <= 0 || c.Extraction.RateLimit.WindowSeconds <= 0 {
		return errors.New("extraction.rate_limit requests and window_seconds must be positive")
	}
	if len(c.Extraction.AllowedTypes) == 0 {
		return errors.New("extraction.allowed_types must not be empty")
	}
	return nil
}

// APIKeyConfigured reports whether a usable model credential is present.
func (c *AppConfig) APIKeyConfigured() bool {
	return llm.KeyConfigured(c.Model.APIKey)
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// RateWindow returns the rate limit window as a duration.
func (c *AppConfig) RateWindow() time.Duration {
	return time.Duration(c.Extraction.RateLimit.WindowSeconds) * time.Second
}

// ModelTimeout returns the per-call model timeout; zero means no extra deadline.
func (c *AppConfig) ModelTimeout() time.Duration {
	return time.Duration(c.Extraction.ModelTimeoutSeconds) * time.Second
}

// EnsureDirectories creates the directory holding the history database.
func (c *AppConfig) EnsureDirectories() error {
	if c.History.Driver != HistoryDuckDB {
		return nil
	}
	dir := filepath.Dir(c.History.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
