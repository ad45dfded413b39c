// Package config loads and validates pmdminer's runtime configuration,
// layering CLI flags over environment variables over defaults via viper.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidWorkers       = errors.New("worker count must be positive")
	ErrInvalidQueueFactor   = errors.New("queue factor must be positive")
	ErrMissingRuleset       = errors.New("ruleset path is required")
	ErrMissingOutputDir     = errors.New("output directory is required")
	ErrInvalidTimeout       = errors.New("timeout must be positive")
	ErrInvalidRetries       = errors.New("retry count must not be negative")
)

// Default configuration values.
const (
	defaultQueueFactor      = 4
	defaultAnalyzeTimeout   = 2 * time.Minute
	defaultReadinessTimeout = 60 * time.Second
	defaultAnalyzerRetries  = 2
	defaultMetricsAddr      = ":9090"
)

// Config holds every tunable for a mining run.
type Config struct {
	Mining   MiningConfig   `mapstructure:"mining"`
	Analyzer AnalyzerConfig `mapstructure:"analyzer"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// MiningConfig holds repository- and scheduler-facing settings.
type MiningConfig struct {
	RepoLocation string   `mapstructure:"repo_location"`
	RulesetPath  string   `mapstructure:"ruleset"`
	OutputDir    string   `mapstructure:"output_dir"`
	AuxJars      []string `mapstructure:"aux_jars"`
	Workers      int      `mapstructure:"workers"`
	QueueFactor  int      `mapstructure:"queue_factor"`
	CachePath    string   `mapstructure:"cache_path"`
}

// AnalyzerConfig holds the HTTP Analyzer Client's connection settings.
type AnalyzerConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	AnalyzeTimeout   time.Duration `mapstructure:"analyze_timeout"`
	ReadinessTimeout time.Duration `mapstructure:"readiness_timeout"`
	MaxRetries       int           `mapstructure:"max_retries"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig controls the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Load builds a Config from defaults, an optional config file, and
// PMDMINER_-prefixed environment variables, in that order of precedence.
func Load(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("pmdminer")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
	}

	viperCfg.SetEnvPrefix("PMDMINER")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// AutomaticEnv only reaches Unmarshal for keys viper already knows
	// about (via a default or an explicit bind); these have neither.
	for _, key := range []string{"mining.ruleset", "mining.output_dir", "mining.aux_jars", "analyzer.base_url"} {
		_ = viperCfg.BindEnv(key)
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("read config file: %w", readErr)
		}
	}

	var cfg Config

	if err := viperCfg.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("mining.workers", runtime.NumCPU())
	viperCfg.SetDefault("mining.queue_factor", defaultQueueFactor)

	viperCfg.SetDefault("analyzer.analyze_timeout", defaultAnalyzeTimeout)
	viperCfg.SetDefault("analyzer.readiness_timeout", defaultReadinessTimeout)
	viperCfg.SetDefault("analyzer.max_retries", defaultAnalyzerRetries)

	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", "json")

	viperCfg.SetDefault("metrics.enabled", false)
	viperCfg.SetDefault("metrics.addr", defaultMetricsAddr)
}

func validate(cfg *Config) error {
	if cfg.Mining.Workers <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, cfg.Mining.Workers)
	}

	if cfg.Mining.QueueFactor <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidQueueFactor, cfg.Mining.QueueFactor)
	}

	if cfg.Mining.RulesetPath == "" {
		return ErrMissingRuleset
	}

	if cfg.Mining.OutputDir == "" {
		return ErrMissingOutputDir
	}

	if cfg.Analyzer.AnalyzeTimeout <= 0 || cfg.Analyzer.ReadinessTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if cfg.Analyzer.MaxRetries < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRetries, cfg.Analyzer.MaxRetries)
	}

	return nil
}
