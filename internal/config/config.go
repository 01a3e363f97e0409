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
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Geocode      GeocodeConfig      `yaml:"geocode" mapstructure:"geocode"`
	Perplexity   PerplexityConfig   `yaml:"perplexity" mapstructure:"perplexity"`
	Places       PlacesConfig       `yaml:"places" mapstructure:"places"`
	Anthropic    AnthropicConfig    `yaml:"anthropic" mapstructure:"anthropic"`
	Pipeline     PipelineConfig     `yaml:"pipeline" mapstructure:"pipeline"`
	Neighborhood NeighborhoodConfig `yaml:"neighborhood" mapstructure:"neighborhood"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// GeocodeConfig configures the address resolver chain.
type GeocodeConfig struct {
	GoogleKey string  `yaml:"google_key" mapstructure:"google_key"`
	CensusRPS float64 `yaml:"census_rps" mapstructure:"census_rps"`

	// SupportedRegion restricts results to one region code (e.g. "FL").
	// Out-of-region matches are flagged, never rejected.
	SupportedRegion string `yaml:"supported_region" mapstructure:"supported_region"`
}

// PerplexityConfig holds the search-augmented evidence provider settings.
type PerplexityConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Model       string  `yaml:"model" mapstructure:"model"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RPS         float64 `yaml:"rps" mapstructure:"rps"`
}

// PlacesConfig holds the business-directory provider settings.
type PlacesConfig struct {
	Key     string  `yaml:"key" mapstructure:"key"`
	BaseURL string  `yaml:"base_url" mapstructure:"base_url"`
	RPS     float64 `yaml:"rps" mapstructure:"rps"`
}

// AnthropicConfig holds the synthesis provider settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// PipelineConfig configures the enrichment decision policy and matching.
type PipelineConfig struct {
	StaleAfterDays        int     `yaml:"stale_after_days" mapstructure:"stale_after_days"`
	LowQualityThreshold   int     `yaml:"low_quality_threshold" mapstructure:"low_quality_threshold"`
	MatchToleranceDegrees float64 `yaml:"match_tolerance_degrees" mapstructure:"match_tolerance_degrees"`
}

// NeighborhoodConfig configures the geospatial cache.
type NeighborhoodConfig struct {
	TTLDays          int      `yaml:"ttl_days" mapstructure:"ttl_days"`
	ToleranceDegrees float64  `yaml:"tolerance_degrees" mapstructure:"tolerance_degrees"`
	RadiusMeters     int      `yaml:"radius_meters" mapstructure:"radius_meters"`
	Categories       []string `yaml:"categories" mapstructure:"categories"`
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

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("HOA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "hoa-dossier.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("geocode.census_rps", 10)
	v.SetDefault("geocode.supported_region", "FL")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("perplexity.timeout_secs", 60)
	v.SetDefault("perplexity.rps", 2)
	v.SetDefault("places.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("places.rps", 2)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("pipeline.stale_after_days", 30)
	v.SetDefault("pipeline.low_quality_threshold", 30)
	v.SetDefault("pipeline.match_tolerance_degrees", 0.002)
	v.SetDefault("neighborhood.ttl_days", 7)
	v.SetDefault("neighborhood.tolerance_degrees", 0.001)
	v.SetDefault("neighborhood.radius_meters", 1500)
	v.SetDefault("neighborhood.categories", []string{"restaurant", "park", "grocery_store", "coffee_shop", "school", "gym"})

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
