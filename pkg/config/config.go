// Package config loads service settings from an optional .env file, the
// environment (TOPO_ prefix) and an optional config file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Detector names.
const (
	DetectorAzure     = "azure"
	DetectorTesseract = "tesseract"
)

// Config holds all service settings.
type Config struct {
	Port        string `mapstructure:"port"`
	DatabaseURL string `mapstructure:"database_url"`
	LogLevel    string `mapstructure:"log_level"`

	Detector      string `mapstructure:"detector"`
	AzureEndpoint string `mapstructure:"azure_endpoint"`
	AzureKey      string `mapstructure:"azure_key"`
	TesseractLang string `mapstructure:"tesseract_lang"`

	LeftRatio     float64 `mapstructure:"left_ratio"`
	ExtendedRatio float64 `mapstructure:"extended_ratio"`
	FallbackWidth float64 `mapstructure:"fallback_width"`

	CompositeGap int  `mapstructure:"composite_gap"`
	Enhance      bool `mapstructure:"enhance"`

	BatchSize        int           `mapstructure:"batch_size"`
	BatchConcurrency int           `mapstructure:"batch_concurrency"`
	DetectRetries    uint          `mapstructure:"detect_retries"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
}

// Defaults returns the built-in settings.
func Defaults() Config {
	return Config{
		Port:             "8080",
		LogLevel:         "info",
		Detector:         DetectorAzure,
		TesseractLang:    "eng",
		LeftRatio:        0.33,
		ExtendedRatio:    0.50,
		FallbackWidth:    1000,
		CompositeGap:     40,
		BatchSize:        16,
		BatchConcurrency: 4,
		DetectRetries:    3,
		RetryDelay:       500 * time.Millisecond,
	}
}

// Load reads configuration. A missing .env or config file is not an error.
// cfgFile, when set, must exist.
func Load(cfgFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v, Defaults())

	v.SetEnvPrefix("TOPO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("port", d.Port)
	v.SetDefault("database_url", d.DatabaseURL)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("detector", d.Detector)
	v.SetDefault("azure_endpoint", d.AzureEndpoint)
	v.SetDefault("azure_key", d.AzureKey)
	v.SetDefault("tesseract_lang", d.TesseractLang)
	v.SetDefault("left_ratio", d.LeftRatio)
	v.SetDefault("extended_ratio", d.ExtendedRatio)
	v.SetDefault("fallback_width", d.FallbackWidth)
	v.SetDefault("composite_gap", d.CompositeGap)
	v.SetDefault("enhance", d.Enhance)
	v.SetDefault("batch_size", d.BatchSize)
	v.SetDefault("batch_concurrency", d.BatchConcurrency)
	v.SetDefault("detect_retries", d.DetectRetries)
	v.SetDefault("retry_delay", d.RetryDelay)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch c.Detector {
	case DetectorAzure, DetectorTesseract:
	default:
		return fmt.Errorf("unknown detector %q", c.Detector)
	}
	if c.LeftRatio <= 0 || c.LeftRatio > 1 {
		return fmt.Errorf("left_ratio must be in (0, 1], got %g", c.LeftRatio)
	}
	if c.ExtendedRatio < c.LeftRatio || c.ExtendedRatio > 1 {
		return fmt.Errorf("extended_ratio must be in [left_ratio, 1], got %g", c.ExtendedRatio)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.CompositeGap < 0 {
		return fmt.Errorf("composite_gap must not be negative, got %d", c.CompositeGap)
	}
	return nil
}

// Logger builds the process logger at the configured level.
func (c *Config) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
