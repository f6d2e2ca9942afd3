package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vialcheck/vialcheck-cli/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store   store.Config  `yaml:"store" mapstructure:"store"`
	Crawl   CrawlConfig   `yaml:"crawl" mapstructure:"crawl"`
	Extract ExtractConfig `yaml:"extract" mapstructure:"extract"`
	Score   ScoreConfig   `yaml:"score" mapstructure:"score"`
	Serve   ServeConfig   `yaml:"serve" mapstructure:"serve"`
	Export  ExportConfig  `yaml:"export" mapstructure:"export"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// CrawlConfig configures the listing crawler.
type CrawlConfig struct {
	BaseURL             string `yaml:"base_url" mapstructure:"base_url"`
	MaxPages            int    `yaml:"max_pages" mapstructure:"max_pages"`
	MaxItems            int    `yaml:"max_items" mapstructure:"max_items"`
	RequestIntervalSecs int    `yaml:"request_interval_secs" mapstructure:"request_interval_secs"`
	ImageDir            string `yaml:"image_dir" mapstructure:"image_dir"`
	UserAgent           string `yaml:"user_agent" mapstructure:"user_agent"`
	MaxRetries          int    `yaml:"max_retries" mapstructure:"max_retries"`
	MaxConcurrent       int    `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// RequestInterval returns the crawl pacing as a duration.
func (c CrawlConfig) RequestInterval() time.Duration {
	return time.Duration(c.RequestIntervalSecs) * time.Second
}

// ExtractConfig configures the vision extraction backend.
type ExtractConfig struct {
	Provider        string `yaml:"provider" mapstructure:"provider"`
	Model           string `yaml:"model" mapstructure:"model"`
	OpenAIAPIKey    string `yaml:"openai_api_key" mapstructure:"openai_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key" mapstructure:"anthropic_api_key"`
	GoogleAPIKey    string `yaml:"google_api_key" mapstructure:"google_api_key"`
	OllamaBaseURL   string `yaml:"ollama_base_url" mapstructure:"ollama_base_url"`
	RPM             int    `yaml:"rpm" mapstructure:"rpm"`
	MaxConcurrent   int    `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// ScoreConfig configures vendor scoring.
type ScoreConfig struct {
	RecentWindowDays int `yaml:"recent_window_days" mapstructure:"recent_window_days"`
}

// ServeConfig configures the read-only HTTP API.
type ServeConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// ExportConfig configures ranking exports.
type ExportConfig struct {
	Format string `yaml:"format" mapstructure:"format"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from an optional config.yaml in the working
// directory and the VIALCHECK_* environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("VIALCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "vialcheck.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("crawl.base_url", "https://tests.janoshik.com/certificates")
	v.SetDefault("crawl.max_pages", 0)
	v.SetDefault("crawl.max_items", 0)
	v.SetDefault("crawl.request_interval_secs", 3)
	v.SetDefault("crawl.image_dir", "images")
	v.SetDefault("crawl.user_agent", "vialcheck-cli/1.0")
	v.SetDefault("crawl.max_retries", 3)
	v.SetDefault("crawl.max_concurrent", 3)
	v.SetDefault("extract.provider", "anthropic")
	v.SetDefault("extract.ollama_base_url", "http://localhost:11434")
	v.SetDefault("extract.rpm", 30)
	v.SetDefault("extract.max_concurrent", 2)
	v.SetDefault("score.recent_window_days", 90)
	v.SetDefault("serve.addr", ":8080")
	v.SetDefault("export.format", "csv")

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
