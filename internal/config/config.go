// Package config provides configuration loading for the document converter.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the converter service and CLI.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Conversion    ConversionConfig    `yaml:"conversion"`
	Events        EventsConfig        `yaml:"events"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	AllowedOrigins   []string      `yaml:"allowed_origins"`
}

// StorageConfig holds scratch space and artifact lifecycle settings.
type StorageConfig struct {
	ScratchDir     string        `yaml:"scratch_dir"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	ReapInterval   time.Duration `yaml:"reap_interval"`
}

// ConversionConfig holds classifier, strategy and engine settings.
type ConversionConfig struct {
	SampleLimit      int           `yaml:"sample_limit"`
	DensityThreshold float64       `yaml:"density_threshold"`
	OCRDPI           float64       `yaml:"ocr_dpi"`
	OCRWorkers       int           `yaml:"ocr_workers"`
	OCRLanguage      string        `yaml:"ocr_language"`
	OCRPageTimeout   time.Duration `yaml:"ocr_page_timeout"`
	LayoutTimeout    time.Duration `yaml:"layout_timeout"`
	OfficeTimeout    time.Duration `yaml:"office_timeout"`
	SofficePath      string        `yaml:"soffice_path"`
	TesseractPath    string        `yaml:"tesseract_path"`
}

// EventsConfig holds artifact lifecycle event publishing settings.
type EventsConfig struct {
	Enabled bool        `yaml:"enabled"`
	Channel string      `yaml:"channel"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
	ServiceName    string `yaml:"service_name"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      2 * time.Minute,
			WriteTimeout:     10 * time.Minute,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
			AllowedOrigins:   []string{"*"},
		},
		Storage: StorageConfig{
			ScratchDir:     "/tmp/doc-converter",
			MaxUploadBytes: 50 * 1024 * 1024,
			ReapInterval:   60 * time.Second,
		},
		Conversion: ConversionConfig{
			SampleLimit:      3,
			DensityThreshold: 50,
			OCRDPI:           300,
			OCRWorkers:       4,
			OCRLanguage:      "eng",
			OCRPageTimeout:   2 * time.Minute,
			LayoutTimeout:    300 * time.Second,
			OfficeTimeout:    60 * time.Second,
			SofficePath:      "soffice",
			TesseractPath:    "tesseract",
		},
		Events: EventsConfig{
			Enabled: false,
			Channel: "docconvert.artifacts",
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			LogFormat:      "json",
			ServiceName:    "doc-converter",
			MetricsEnabled: true,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if strings.TrimSpace(c.Storage.ScratchDir) == "" {
		return fmt.Errorf("scratch_dir is required")
	}

	if c.Storage.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive")
	}

	if c.Storage.ReapInterval <= 0 {
		return fmt.Errorf("reap_interval must be positive")
	}

	if c.Conversion.SampleLimit < 1 {
		return fmt.Errorf("sample_limit must be at least 1")
	}

	if c.Conversion.DensityThreshold <= 0 {
		return fmt.Errorf("density_threshold must be positive")
	}

	if c.Conversion.OCRDPI < 300 {
		return fmt.Errorf("ocr_dpi must be at least 300, got %v", c.Conversion.OCRDPI)
	}

	if c.Conversion.OCRWorkers < 1 {
		return fmt.Errorf("ocr_workers must be at least 1")
	}

	if c.Conversion.LayoutTimeout <= 0 || c.Conversion.OfficeTimeout <= 0 {
		return fmt.Errorf("engine timeouts must be positive")
	}

	if c.Events.Enabled && c.Events.Redis.Addr == "" {
		return fmt.Errorf("events enabled but redis addr is empty")
	}

	return nil
}

// Addr returns the host:port the HTTP server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("SCRATCH_DIR"); v != "" {
		cfg.Storage.ScratchDir = v
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Events.Enabled = true
		cfg.Events.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Events.Redis.Password = v
	}

	if v := os.Getenv("SOFFICE_PATH"); v != "" {
		cfg.Conversion.SofficePath = v
	}

	if v := os.Getenv("TESSERACT_PATH"); v != "" {
		cfg.Conversion.TesseractPath = v
	}

	if v := os.Getenv("OCR_LANGUAGE"); v != "" {
		cfg.Conversion.OCRLanguage = v
	}

	if v := os.Getenv("DENSITY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Conversion.DensityThreshold = f
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
