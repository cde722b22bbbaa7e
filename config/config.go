// Package config loads the settings of the pollingclient command from an
// optional YAML file and POLLINGCLIENT_* environment variables.
package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	pollingclient "github.com/shogotsuneto/go-simple-pollingclient"
)

const EnvPrefix = "POLLINGCLIENT"

// Checkpoint backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendS3       = "s3"
)

type Config struct {
	Name         string           `mapstructure:"name"`
	WaitInterval time.Duration    `mapstructure:"wait_interval"`
	Bucket       string           `mapstructure:"bucket"`
	Checkpoint   CheckpointConfig `mapstructure:"checkpoint"`
	Postgres     PostgresConfig   `mapstructure:"postgres"`
	S3           S3Config         `mapstructure:"s3"`
	Metrics      MetricsConfig    `mapstructure:"metrics"`
	Log          LogConfig        `mapstructure:"log"`
}

type CheckpointConfig struct {
	// Name keys the saved checkpoint; defaults to Config.Name.
	Name    string `mapstructure:"name"`
	Backend string `mapstructure:"backend"`
}

type PostgresConfig struct {
	DSN              string `mapstructure:"dsn"`
	CommitsTable     string `mapstructure:"commits_table"`
	CheckpointsTable string `mapstructure:"checkpoints_table"`
	PageSize         int    `mapstructure:"page_size"`
}

type S3Config struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

type MetricsConfig struct {
	// Addr serves /metrics; empty disables the endpoint.
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("name", "polling-client")
	v.SetDefault("wait_interval", pollingclient.DefaultWaitInterval)
	v.SetDefault("bucket", "")
	v.SetDefault("checkpoint.name", "")
	v.SetDefault("checkpoint.backend", BackendPostgres)
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.commits_table", "commits")
	v.SetDefault("postgres.checkpoints_table", "checkpoints")
	v.SetDefault("postgres.page_size", pollingclient.DefaultPageSize)
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.prefix", "")
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Load reads path when it is not empty, then applies environment overrides
// such as POLLINGCLIENT_POSTGRES_DSN, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	if cfg.Checkpoint.Name == "" {
		cfg.Checkpoint.Name = cfg.Name
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Name == "" {
		return errors.New("name must not be empty")
	}
	if c.WaitInterval <= 0 {
		return errors.Newf("wait_interval must be positive, got %s", c.WaitInterval)
	}
	if c.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if c.Postgres.CommitsTable == "" {
		return errors.New("postgres.commits_table must not be empty")
	}
	if c.Postgres.PageSize <= 0 {
		return errors.Newf("postgres.page_size must be positive, got %d", c.Postgres.PageSize)
	}
	switch c.Checkpoint.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Postgres.CheckpointsTable == "" {
			return errors.New("postgres.checkpoints_table must not be empty")
		}
	case BackendS3:
		if c.S3.Bucket == "" {
			return errors.New("s3.bucket is required for the s3 checkpoint backend")
		}
	default:
		return errors.Newf("unknown checkpoint backend %q", c.Checkpoint.Backend)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "invalid log.level")
	}
	return nil
}

// NewLogger builds the process logger from the log section.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, errors.Wrap(err, "invalid log.level")
	}

	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	log, err := zc.Build()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build logger")
	}
	return log.With(zap.String("service", c.Name)), nil
}
