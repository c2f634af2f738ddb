package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment override (ARGUS_QUERY_MAX_LENGTH)
	EnvPrefix = "ARGUS"
	// MaxQueryLength is the hard query length cap; configuration may only lower it
	MaxQueryLength = 2000
	// MaxCorrelationLimit is the hard cap on results per correlation
	MaxCorrelationLimit = 10000
)

// LoggingConfig holds logger settings
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `mapstructure:"level"`
}

// QueryConfig holds query parsing limits
type QueryConfig struct {
	MaxLength int `mapstructure:"max_length"`
	// PatternTimeout bounds each sanitizer pattern match
	PatternTimeout time.Duration `mapstructure:"pattern_timeout"`
}

// CorrelationConfig holds correlation engine settings
type CorrelationConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	DefaultWeight float64       `mapstructure:"default_weight"`
	// CheckEvery is the number of secondary records between budget checks
	CheckEvery int `mapstructure:"check_every"`
	MaxLimit   int `mapstructure:"max_limit"`
}

// FieldsConfig points at an optional field mapping override
type FieldsConfig struct {
	MappingFile string `mapstructure:"mapping_file"`
}

// GeoConfig sizes the place-name cache
type GeoConfig struct {
	CacheSize int `mapstructure:"cache_size"`
}

// SourceConfig locates the entity collection files
type SourceConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// BatchConfig sizes the batch correlation worker pool
type BatchConfig struct {
	Workers int `mapstructure:"workers"`
}

// Config holds all configuration for argus
type Config struct {
	Logging     LoggingConfig     `mapstructure:"logging"`
	Query       QueryConfig       `mapstructure:"query"`
	Correlation CorrelationConfig `mapstructure:"correlation"`
	Fields      FieldsConfig      `mapstructure:"fields"`
	Geo         GeoConfig         `mapstructure:"geo"`
	Source      SourceConfig      `mapstructure:"source"`
	Batch       BatchConfig       `mapstructure:"batch"`
}

func setDefaults(v *viper.Viper) {
	for key, s := range Schema() {
		v.SetDefault(key, s.Default)
	}
}

func loadFromEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Shorter names for the settings most often overridden
	_ = v.BindEnv("source.data_dir", "ARGUS_DATA_DIR", "ARGUS_SOURCE_DATA_DIR")
	_ = v.BindEnv("logging.level", "ARGUS_LOG_LEVEL", "ARGUS_LOGGING_LEVEL")
}

// LoadConfig loads configuration from file, environment and defaults, in
// that order of precedence. An empty configFile searches for argus.yaml in
// . and ./config; a missing file there is not an error.
func LoadConfig(configFile string) (*Config, error) {
	return Load(viper.GetViper(), configFile)
}

// Load is LoadConfig on a caller-owned viper instance
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("argus")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)
	loadFromEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration with every default applied
func Default() *Config {
	cfg, err := Load(viper.New(), "")
	if err != nil {
		// defaults always validate; only a broken environment gets here
		panic("config: " + err.Error())
	}
	return cfg
}

// Validate rejects out-of-range values
func (c *Config) Validate() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q (must be debug, info, warn or error)", c.Logging.Level)
	}

	ints := []struct {
		key string
		val int
	}{
		{"query.max_length", c.Query.MaxLength},
		{"correlation.check_every", c.Correlation.CheckEvery},
		{"correlation.max_limit", c.Correlation.MaxLimit},
		{"geo.cache_size", c.Geo.CacheSize},
		{"batch.workers", c.Batch.Workers},
	}
	schema := Schema()
	for _, i := range ints {
		if err := schema[i.key].checkInt(i.key, i.val); err != nil {
			return err
		}
	}

	if c.Query.PatternTimeout <= 0 {
		return fmt.Errorf("query.pattern_timeout must be positive")
	}
	if c.Correlation.Timeout <= 0 {
		return fmt.Errorf("correlation.timeout must be positive")
	}
	if c.Correlation.DefaultWeight <= 0 || c.Correlation.DefaultWeight > 1 {
		return fmt.Errorf("correlation.default_weight must be in (0, 1], got %v", c.Correlation.DefaultWeight)
	}
	return nil
}
