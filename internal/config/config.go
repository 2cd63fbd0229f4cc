// Package config loads workdist runtime configuration from YAML and turns
// it into component configurations.
package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	wderrors "github.com/vnykmshr/workdist/pkg/common/errors"
	"github.com/vnykmshr/workdist/pkg/common/validation"
	"github.com/vnykmshr/workdist/pkg/metrics"
	"github.com/vnykmshr/workdist/pkg/scheduler"
	"github.com/vnykmshr/workdist/pkg/sink"
	"github.com/vnykmshr/workdist/pkg/supervisor"
	"github.com/vnykmshr/workdist/pkg/throttle"
)

// Config is the top-level configuration file.
type Config struct {
	Name        string        `yaml:"name"`
	Workers     int           `yaml:"workers"`
	Capacity    int           `yaml:"capacity"`
	TaskTimeout time.Duration `yaml:"task_timeout"`

	// Schedule is an optional cron expression for recurring runs.
	Schedule string `yaml:"schedule"`

	Throttle ThrottleConfig `yaml:"throttle"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Redis    RedisConfig    `yaml:"redis"`
}

// ThrottleConfig paces item submission. A zero Rate disables it.
type ThrottleConfig struct {
	Rate  float64 `yaml:"rate"`
	Burst int     `yaml:"burst"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
	Addr      string `yaml:"addr"`
}

// RedisConfig configures the optional Redis result sink. An empty Addr
// disables it.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	DB       int           `yaml:"db"`
	Password string        `yaml:"password"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.setDefaults()
	return c
}

// Load reads, defaults and validates the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates YAML configuration.
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.setDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Workers == 0 {
		c.Workers = max(1, runtime.NumCPU()-1)
	}
	if c.Capacity == 0 {
		c.Capacity = 2 * c.Workers
	}
	if c.Throttle.Burst == 0 {
		c.Throttle.Burst = 1
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = metrics.DefaultNamespace
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = sink.DefaultRedisConfig().Prefix
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = sink.DefaultRedisConfig().TTL
	}
}

// Validate checks every field after defaults are applied.
func (c *Config) Validate() error {
	if err := validation.ValidatePositive("config", "workers", c.Workers); err != nil {
		return err
	}
	if err := validation.ValidatePositive("config", "capacity", c.Capacity); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeDuration("config", "task_timeout", c.TaskTimeout); err != nil {
		return err
	}
	if c.Throttle.Rate < 0 {
		return wderrors.NewValidationError("config", "throttle.rate", c.Throttle.Rate, "cannot be negative").
			WithHint("use 0 to disable throttling")
	}
	if err := validation.ValidatePositive("config", "throttle.burst", c.Throttle.Burst); err != nil {
		return err
	}
	if c.Schedule != "" {
		if err := scheduler.ValidateExpr(c.Schedule); err != nil {
			return wderrors.NewValidationError("config", "schedule", c.Schedule, "invalid cron expression").
				WithHint("use five fields, an optional leading seconds field, or a descriptor such as @every 1m")
		}
	}
	if err := validation.ValidateOneOf("config", "log.level", c.Log.Level, "debug", "info", "warn", "error"); err != nil {
		return err
	}
	if err := validation.ValidateOneOf("config", "log.format", c.Log.Format, "json", "console"); err != nil {
		return err
	}
	return validation.ValidateNonNegativeDuration("config", "redis.ttl", c.Redis.TTL)
}

// NewLogger builds the zap logger described by Log.
func (c *Config) NewLogger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Log.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	if c.Log.File != "" {
		zc.OutputPaths = []string{c.Log.File}
		zc.ErrorOutputPaths = []string{c.Log.File}
	}
	zc.EncoderConfig.TimeKey = "t"
	zc.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder

	return zc.Build(zap.Fields(zap.String("name", c.Name)))
}

// MetricsRegistry returns the metrics registry registered with reg, or nil
// when metrics are disabled. A nil reg means the Prometheus default registerer.
func (c *Config) MetricsRegistry(reg prometheus.Registerer) *metrics.Registry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return metrics.Config{
		Enabled:   c.Metrics.Enabled,
		Registry:  reg,
		Namespace: c.Metrics.Namespace,
	}.Build()
}

// RedisClient returns a client for the configured server, or nil when
// Redis is not configured.
func (c *Config) RedisClient() *redis.Client {
	if c.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     c.Redis.Addr,
		DB:       c.Redis.DB,
		Password: c.Redis.Password,
	})
}

// RedisSinkConfig returns the sink configuration for client.
func (c *Config) RedisSinkConfig(client redis.UniversalClient) sink.RedisConfig {
	rc := sink.DefaultRedisConfig()
	rc.Redis = client
	rc.Prefix = c.Redis.Prefix
	rc.TTL = c.Redis.TTL
	return rc
}

// Supervisor returns the supervisor configuration described by c.
func Supervisor[R any](c *Config, log *zap.Logger, reg *metrics.Registry, s sink.Sink[R]) (supervisor.Config[R], error) {
	sc := supervisor.Config[R]{
		Capacity:    c.Capacity,
		Workers:     c.Workers,
		TaskTimeout: c.TaskTimeout,
		Name:        c.Name,
		Logger:      log,
		Metrics:     reg,
		Sink:        s,
	}
	if c.Throttle.Rate > 0 {
		limiter, err := throttle.New(throttle.Limit(c.Throttle.Rate), c.Throttle.Burst)
		if err != nil {
			return sc, err
		}
		sc.Limiter = limiter
	}
	return sc, nil
}
