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
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	GeoNames GeoNamesConfig `yaml:"geonames" mapstructure:"geonames"`
	Wikidata WikidataConfig `yaml:"wikidata" mapstructure:"wikidata"`
	Match    MatchConfig    `yaml:"match" mapstructure:"match"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Populate PopulateConfig `yaml:"populate" mapstructure:"populate"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string     `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string     `yaml:"database_url" mapstructure:"database_url"`
	Pool        PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// GeoNamesConfig selects the bulk gazetteer dump. Dataset trades
// completeness against size: cities15000 covers places with population
// >= 15000, cities1000 and cities500 are progressively larger downloads.
type GeoNamesConfig struct {
	Dataset  string `yaml:"dataset" mapstructure:"dataset"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	CacheDir string `yaml:"cache_dir" mapstructure:"cache_dir"`
}

// WikidataConfig configures the SPARQL fallback source.
type WikidataConfig struct {
	Endpoint    string  `yaml:"endpoint" mapstructure:"endpoint"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	MaxQPS      float64 `yaml:"max_qps" mapstructure:"max_qps"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// MatchConfig configures matching thresholds, radii, and worker pools.
type MatchConfig struct {
	RadiusKm          float64 `yaml:"radius_km" mapstructure:"radius_km"`
	FallbackRadiusKm  float64 `yaml:"fallback_radius_km" mapstructure:"fallback_radius_km"`
	FuzzyThreshold    float64 `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`
	FallbackThreshold float64 `yaml:"fallback_threshold" mapstructure:"fallback_threshold"`
	Workers           int     `yaml:"workers" mapstructure:"workers"`
	FallbackWorkers   int     `yaml:"fallback_workers" mapstructure:"fallback_workers"`
}

// BatchConfig configures result write batching.
type BatchConfig struct {
	Size int `yaml:"size" mapstructure:"size"`
}

// PopulateConfig configures snapshot selection.
type PopulateConfig struct {
	OnlyMissing bool `yaml:"only_missing" mapstructure:"only_missing"`
}

// ServerConfig configures the monitoring server.
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
	v.SetEnvPrefix("POPSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 2)
	v.SetDefault("geonames.dataset", "cities15000")
	v.SetDefault("geonames.base_url", "https://download.geonames.org/export/dump")
	v.SetDefault("geonames.cache_dir", "/tmp/popsync")
	v.SetDefault("wikidata.endpoint", "https://query.wikidata.org/sparql")
	v.SetDefault("wikidata.user_agent", "popsync/1.0 (population reconciliation)")
	v.SetDefault("wikidata.max_qps", 2.0)
	v.SetDefault("wikidata.timeout_secs", 30)
	v.SetDefault("match.radius_km", 30.0)
	v.SetDefault("match.fallback_radius_km", 40.0)
	v.SetDefault("match.fuzzy_threshold", 0.94)
	v.SetDefault("match.fallback_threshold", 0.92)
	v.SetDefault("match.workers", 8)
	v.SetDefault("match.fallback_workers", 4)
	v.SetDefault("batch.size", 2000)
	v.SetDefault("populate.only_missing", true)
	v.SetDefault("server.port", 8080)
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
