// Package config loads tablekit settings from an optional YAML file and
// TABLEKIT_* environment variables.
//
// Precedence, highest first: environment, config file, defaults. Command
// line flags are applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/text/language"

	"github.com/roach88/tablekit/internal/fetch"
	"github.com/roach88/tablekit/internal/retry"
)

// EnvPrefix prefixes every environment override: simulation.error_rate is
// read from TABLEKIT_SIMULATION_ERROR_RATE.
const EnvPrefix = "TABLEKIT"

// DefaultFileName is searched for in the working directory when no config
// path is given.
const DefaultFileName = "tablekit.yaml"

// Config is the full tablekit configuration.
type Config struct {
	Dataset    DatasetConfig    `mapstructure:"dataset"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Query      QueryConfig      `mapstructure:"query"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
}

// DatasetConfig selects the row source. DB wins over Path; with neither set
// the embedded sample is served.
type DatasetConfig struct {
	Path string `mapstructure:"path"`
	DB   string `mapstructure:"db"`
}

// SimulationConfig drives the adapter's latency and error injection.
type SimulationConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	ReadLatencyMin  time.Duration `mapstructure:"read_latency_min"`
	ReadLatencyMax  time.Duration `mapstructure:"read_latency_max"`
	WriteLatencyMin time.Duration `mapstructure:"write_latency_min"`
	WriteLatencyMax time.Duration `mapstructure:"write_latency_max"`
	ErrorRate       float64       `mapstructure:"error_rate"`
}

// QueryConfig controls query handling.
type QueryConfig struct {
	// Strict rejects queries that fail validation, such as unknown operators.
	Strict bool `mapstructure:"strict"`
	// Locale is the BCP 47 tag used for string collation.
	Locale string `mapstructure:"locale"`
}

// CacheConfig controls the query cache.
type CacheConfig struct {
	StaleTime time.Duration `mapstructure:"stale_time"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// RetryConfig is the read retry policy.
type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
}

// ServerConfig configures the HTTP facade.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit float64 `mapstructure:"rate_limit"`
	Burst     int     `mapstructure:"burst"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	sim := fetch.DefaultSimulation()
	r := retry.DefaultConfig()
	return Config{
		Simulation: SimulationConfig{
			Enabled:         true,
			ReadLatencyMin:  sim.ReadLatency.Min,
			ReadLatencyMax:  sim.ReadLatency.Max,
			WriteLatencyMin: sim.WriteLatency.Min,
			WriteLatencyMax: sim.WriteLatency.Max,
			ErrorRate:       sim.ErrorRate,
		},
		Query: QueryConfig{Locale: "en"},
		Cache: CacheConfig{StaleTime: 5 * time.Minute},
		Retry: RetryConfig{
			MaxRetries: r.MaxRetries,
			BaseDelay:  r.BaseDelay,
			MaxDelay:   r.MaxDelay,
		},
		Server: ServerConfig{Addr: ":8080", RateLimit: 20, Burst: 40},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the configuration. path names a YAML file that must exist;
// when empty, DefaultFileName in the working directory is used if present.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigFile(DefaultFileName)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
			return Config{}, fmt.Errorf("read config %s: %w", DefaultFileName, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it during
// Unmarshal.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("dataset.path", d.Dataset.Path)
	v.SetDefault("dataset.db", d.Dataset.DB)

	v.SetDefault("simulation.enabled", d.Simulation.Enabled)
	v.SetDefault("simulation.read_latency_min", d.Simulation.ReadLatencyMin)
	v.SetDefault("simulation.read_latency_max", d.Simulation.ReadLatencyMax)
	v.SetDefault("simulation.write_latency_min", d.Simulation.WriteLatencyMin)
	v.SetDefault("simulation.write_latency_max", d.Simulation.WriteLatencyMax)
	v.SetDefault("simulation.error_rate", d.Simulation.ErrorRate)

	v.SetDefault("query.strict", d.Query.Strict)
	v.SetDefault("query.locale", d.Query.Locale)

	v.SetDefault("cache.stale_time", d.Cache.StaleTime)
	v.SetDefault("cache.timeout", d.Cache.Timeout)

	v.SetDefault("retry.max_retries", d.Retry.MaxRetries)
	v.SetDefault("retry.base_delay", d.Retry.BaseDelay)
	v.SetDefault("retry.max_delay", d.Retry.MaxDelay)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.rate_limit", d.Server.RateLimit)
	v.SetDefault("server.burst", d.Server.Burst)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return true
	}
	return errors.Is(err, fs.ErrNotExist)
}

// Validate checks every section and reports all problems at once.
func (c Config) Validate() error {
	var errs []error
	if err := c.FetchSimulation().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("simulation: %w", err))
	}
	if err := c.RetryPolicy().Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := language.Parse(c.Query.Locale); err != nil {
		errs = append(errs, fmt.Errorf("query.locale: %w", err))
	}
	if c.Cache.StaleTime < 0 {
		errs = append(errs, errors.New("cache.stale_time cannot be negative"))
	}
	if c.Cache.Timeout < 0 {
		errs = append(errs, errors.New("cache.timeout cannot be negative"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit cannot be negative"))
	}
	if c.Server.RateLimit > 0 && c.Server.Burst < 1 {
		errs = append(errs, errors.New("server.burst must be at least 1 when rate limiting"))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// FetchSimulation returns the adapter simulation settings.
func (c Config) FetchSimulation() fetch.Simulation {
	if !c.Simulation.Enabled {
		return fetch.NoSimulation()
	}
	return fetch.Simulation{
		ReadLatency:  fetch.LatencyRange{Min: c.Simulation.ReadLatencyMin, Max: c.Simulation.ReadLatencyMax},
		WriteLatency: fetch.LatencyRange{Min: c.Simulation.WriteLatencyMin, Max: c.Simulation.WriteLatencyMax},
		ErrorRate:    c.Simulation.ErrorRate,
	}
}

// RetryPolicy returns the read retry policy.
func (c Config) RetryPolicy() retry.Config {
	return retry.Config{
		MaxRetries: c.Retry.MaxRetries,
		BaseDelay:  c.Retry.BaseDelay,
		MaxDelay:   c.Retry.MaxDelay,
	}
}

// Language returns the collation locale.
func (c Config) Language() language.Tag {
	tag, err := language.Parse(c.Query.Locale)
	if err != nil {
		return language.English
	}
	return tag
}

// LogLevel parses Log.Level.
func (c Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
