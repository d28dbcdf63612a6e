package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store         StoreConfig         `yaml:"store" mapstructure:"store"`
	Risk          RiskConfig          `yaml:"risk" mapstructure:"risk"`
	CrossContact  CrossContactConfig  `yaml:"cross_contact" mapstructure:"cross_contact"`
	OpenFoodFacts OpenFoodFactsConfig `yaml:"openfoodfacts" mapstructure:"openfoodfacts"`
	OCR           OCRConfig           `yaml:"ocr" mapstructure:"ocr"`
	Ingredients   IngredientsConfig   `yaml:"ingredients" mapstructure:"ingredients"`
	Anthropic     AnthropicConfig     `yaml:"anthropic" mapstructure:"anthropic"`
	Redis         RedisConfig         `yaml:"redis" mapstructure:"redis"`
	Retry         RetryConfig         `yaml:"retry" mapstructure:"retry"`
	Batch         BatchConfig         `yaml:"batch" mapstructure:"batch"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Log           LogConfig           `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// RiskConfig tunes the risk engine.
type RiskConfig struct {
	TraceWeight         float64 `yaml:"trace_weight" mapstructure:"trace_weight"`
	ProximityEnabled    bool    `yaml:"proximity_enabled" mapstructure:"proximity_enabled"`
	ProximityConfidence float64 `yaml:"proximity_confidence" mapstructure:"proximity_confidence"`
}

// CrossContactConfig holds the Beta prior for facility inference.
type CrossContactConfig struct {
	PriorAlpha float64 `yaml:"prior_alpha" mapstructure:"prior_alpha"`
	PriorBeta  float64 `yaml:"prior_beta" mapstructure:"prior_beta"`
}

// OpenFoodFactsConfig configures the barcode lookup client.
type OpenFoodFactsConfig struct {
	BaseURL              string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent            string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs          int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec           float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst                int     `yaml:"burst" mapstructure:"burst"`
	TracesConfidence     float64 `yaml:"traces_confidence" mapstructure:"traces_confidence"`
	MayContainConfidence float64 `yaml:"may_contain_confidence" mapstructure:"may_contain_confidence"`
}

// OCRConfig configures label text extraction.
type OCRConfig struct {
	Provider           string  `yaml:"provider" mapstructure:"provider"`
	ContainsConfidence float64 `yaml:"contains_confidence" mapstructure:"contains_confidence"`
	OCRSpaceKey        string  `yaml:"ocrspace_api_key" mapstructure:"ocrspace_api_key"`
	OCRSpaceURL        string  `yaml:"ocrspace_url" mapstructure:"ocrspace_url"`
	Language           string  `yaml:"language" mapstructure:"language"`
	TesseractPath      string  `yaml:"tesseract_path" mapstructure:"tesseract_path"`
	TimeoutSecs        int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// IngredientsConfig controls keyword inference over ingredient text.
type IngredientsConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Confidence float64 `yaml:"confidence" mapstructure:"confidence"`
}

// AnthropicConfig holds Anthropic API settings for the vision OCR provider.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// RedisConfig configures the product cache. An empty URL disables caching.
type RedisConfig struct {
	URL      string `yaml:"url" mapstructure:"url"`
	TTLHours int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// RetryConfig configures retries against upstream APIs.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	FailureThreshold int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int     `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrency int `yaml:"max_concurrency" mapstructure:"max_concurrency"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ALLERGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "allergen-risk.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("risk.trace_weight", 0.5)
	v.SetDefault("risk.proximity_enabled", false)
	v.SetDefault("risk.proximity_confidence", 0.42)
	v.SetDefault("cross_contact.prior_alpha", 1.0)
	v.SetDefault("cross_contact.prior_beta", 1.0)
	v.SetDefault("openfoodfacts.base_url", "https://world.openfoodfacts.org")
	v.SetDefault("openfoodfacts.user_agent", "allergen-risk/1.0")
	v.SetDefault("openfoodfacts.timeout_secs", 10)
	v.SetDefault("openfoodfacts.rate_per_sec", 1.5)
	v.SetDefault("openfoodfacts.burst", 3)
	v.SetDefault("openfoodfacts.traces_confidence", 1.0)
	v.SetDefault("openfoodfacts.may_contain_confidence", 0.6)
	v.SetDefault("ocr.provider", "ocrspace")
	v.SetDefault("ocr.contains_confidence", 1.0)
	v.SetDefault("ocr.ocrspace_url", "https://api.ocr.space/parse/image")
	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.tesseract_path", "tesseract")
	v.SetDefault("ocr.timeout_secs", 60)
	v.SetDefault("ingredients.enabled", true)
	v.SetDefault("ingredients.confidence", 0.95)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("redis.ttl_hours", 24)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.failure_threshold", 5)
	v.SetDefault("retry.reset_timeout_secs", 30)
	v.SetDefault("batch.max_concurrency", 4)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
