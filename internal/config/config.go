// Package config loads application configuration from config.yaml and
// LANDEDCOST_-prefixed environment variables. The resulting Config is
// constructed once at startup and passed to every client; nothing reads
// configuration ambiently afterwards.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Vision     VisionConfig     `yaml:"vision" mapstructure:"vision"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Maps       MapsConfig       `yaml:"maps" mapstructure:"maps"`
	VATLayer   VATLayerConfig   `yaml:"vatlayer" mapstructure:"vatlayer"`
	GeoIP      GeoIPConfig      `yaml:"geoip" mapstructure:"geoip"`
	HTS        HTSConfig        `yaml:"hts" mapstructure:"hts"`
	DuckDuckGo DuckDuckGoConfig `yaml:"duckduckgo" mapstructure:"duckduckgo"`
	Resolve    ResolveConfig    `yaml:"resolve" mapstructure:"resolve"`
	Tax        TaxConfig        `yaml:"tax" mapstructure:"tax"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// AnthropicConfig holds Anthropic API settings for text inference.
type AnthropicConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	Model     string  `yaml:"model" mapstructure:"model"`
	MaxTokens int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	RPS       float64 `yaml:"rps" mapstructure:"rps"`
}

// VisionConfig holds Gemini settings for image label detection.
type VisionConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// SearchConfig holds Google Custom Search credentials for image search.
type SearchConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
	CX  string `yaml:"cx" mapstructure:"cx"`
}

// MapsConfig holds the Google Maps key used for reverse geocoding.
type MapsConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// VATLayerConfig holds the vatlayer credential. An empty key disables the
// vatlayer tax adapter; it is not a startup failure.
type VATLayerConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// GeoIPConfig holds the IP geolocation service settings.
type GeoIPConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// HTSConfig holds the USITC tariff lookup settings.
type HTSConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// DuckDuckGoConfig holds the image-scrape settings.
type DuckDuckGoConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ResolveConfig tunes the cascade runtime.
type ResolveConfig struct {
	AdapterTimeoutSecs int `yaml:"adapter_timeout_secs" mapstructure:"adapter_timeout_secs"`
	RetryAttempts      int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// AdapterTimeout returns the per-adapter timeout as a duration.
func (c ResolveConfig) AdapterTimeout() time.Duration {
	return time.Duration(c.AdapterTimeoutSecs) * time.Second
}

// TaxConfig tunes the tax stage.
type TaxConfig struct {
	// UseStaticTable appends the bundled country-tax table as a last
	// adapter before the unknown terminal.
	UseStaticTable bool `yaml:"use_static_table" mapstructure:"use_static_table"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LANDEDCOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 5000)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.rps", 2)
	v.SetDefault("vision.model", "gemini-3-flash-preview")
	v.SetDefault("vatlayer.base_url", "http://apilayer.net/api")
	v.SetDefault("geoip.base_url", "http://ip-api.com")
	v.SetDefault("hts.base_url", "https://hts.usitc.gov/api")
	v.SetDefault("duckduckgo.base_url", "https://duckduckgo.com")
	v.SetDefault("resolve.adapter_timeout_secs", 20)
	v.SetDefault("resolve.retry_attempts", 2)
	v.SetDefault("tax.use_static_table", false)

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
