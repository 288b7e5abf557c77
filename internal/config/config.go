// Package config loads settings from flags, MILESTONE_TRACKER_* environment
// variables and an optional config.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable the CLI reads.
const EnvPrefix = "MILESTONE_TRACKER"

type Config struct {
	DB       string         `mapstructure:"db"`
	Backend  string         `mapstructure:"backend"`
	Profile  string         `mapstructure:"profile"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Service  ServiceConfig  `mapstructure:"service"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Log      LoggerConfig   `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
	Evidence EvidenceConfig `mapstructure:"evidence"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type ServiceConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// CatalogConfig points at a JSON catalog replacing the built-in one.
type CatalogConfig struct {
	File string `mapstructure:"file"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// EvidenceConfig addresses object storage for captured videos. With no
// endpoint, captures stay on the device and are referenced by path.
type EvidenceConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Salt      string `mapstructure:"salt"`
	LocalDir  string `mapstructure:"local_dir"`
}

// Dir is where the database and config file live by default.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".milestone-tracker"
	}
	return filepath.Join(home, ".milestone-tracker")
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("db", filepath.Join(Dir(), "tracker.db"))
	v.SetDefault("backend", "sqlite")
	v.SetDefault("profile", "default")
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("service.base_url", "http://localhost:8000")
	v.SetDefault("catalog.file", "")

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", true)

	v.SetDefault("server.addr", ":8787")

	v.SetDefault("evidence.endpoint", "")
	v.SetDefault("evidence.access_key", "")
	v.SetDefault("evidence.secret_key", "")
	v.SetDefault("evidence.bucket", "milestone-evidence")
	v.SetDefault("evidence.region", "us-east-1")
	v.SetDefault("evidence.use_ssl", true)
	v.SetDefault("evidence.salt", "")
	v.SetDefault("evidence.local_dir", filepath.Join(Dir(), "evidence"))
}

// Init prepares v: defaults, environment binding and the config file. An
// explicit configFile must exist; the default search path may come up empty.
func Init(v *viper.Viper, configFile string) error {
	SetDefaults(v)
	if err := initEnv(v); err != nil {
		return err
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(Dir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func initEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Secrets are commonly provided under their conventional names.
	for key, names := range map[string][]string{
		"evidence.access_key": {EnvPrefix + "_EVIDENCE_ACCESS_KEY", "MINIO_ACCESS_KEY"},
		"evidence.secret_key": {EnvPrefix + "_EVIDENCE_SECRET_KEY", "MINIO_SECRET_KEY"},
		"evidence.salt":       {EnvPrefix + "_EVIDENCE_SALT", "VIDEO_HASH_SALT"},
	} {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// FromViper unmarshals and validates the configuration.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the values that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Backend {
	case "sqlite":
		if c.DB == "" {
			return fmt.Errorf("db must be set for the sqlite backend")
		}
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("redis.url must be set for the redis backend")
		}
	default:
		return fmt.Errorf("backend must be sqlite or redis, got %q", c.Backend)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	if c.Service.BaseURL == "" {
		return fmt.Errorf("service.base_url must be set")
	}
	return nil
}
