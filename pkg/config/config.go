// Package config loads and validates the server/client configuration
// surface: viper for file+env loading, a mapstructure decode hook for
// duration conversion, go-playground/validator for struct validation, YAML
// output for `init`-style scaffolding.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for both the server and client binaries.
// Each backend reads only its own group.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	Server        ServerConfig        `mapstructure:"server" yaml:"server"`
	MinioBackend  MinioBackendConfig  `mapstructure:"minio_backend" yaml:"minio_backend"`
	MongoDBBackend MongoDBBackendConfig `mapstructure:"mongodb_backend" yaml:"mongodb_backend"`
	Monitor       MonitorConfig       `mapstructure:"monitor" yaml:"monitor"`
}

// ServerConfig selects the server's listen port and which backend kind
// covers the metadata and data halves of the five-operation contract.
// Each backend reads only its own config group below.
type ServerConfig struct {
	Port int `mapstructure:"port" validate:"required,min=1025,max=65534" yaml:"port"`

	// BackendMeta and BackendData each name one of {file, mongodb, minio}.
	// The pair must together satisfy backend.ValidateCapabilities.
	BackendMeta string `mapstructure:"backend_meta" validate:"required,oneof=file mongodb minio" yaml:"backend_meta"`
	BackendData string `mapstructure:"backend_data" validate:"required,oneof=file mongodb minio" yaml:"backend_data"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// MinioBackendConfig configures the object-store backend (pkg/backend/objectstore).
type MinioBackendConfig struct {
	Hostname       string `mapstructure:"hostname" yaml:"hostname"`
	Region         string `mapstructure:"region" yaml:"region"`
	AccessKey      string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey      string `mapstructure:"secret_key" yaml:"secret_key"`
	ForcePathStyle bool   `mapstructure:"force_path_style" yaml:"force_path_style"`

	BucketData     string `mapstructure:"bucket_data" yaml:"bucket_data"`
	BucketFilemeta string `mapstructure:"bucket_filemeta" yaml:"bucket_filemeta"`

	AddMissingBucket bool `mapstructure:"add_missing_bucket" yaml:"add_missing_bucket"`
	HashBase64       bool `mapstructure:"hash_base64" yaml:"hash_base64"`
}

// MongoDBBackendConfig configures the document-store backend (pkg/backend/docstore).
type MongoDBBackendConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	Database string `mapstructure:"database" yaml:"database"`
	User     string `mapstructure:"user" yaml:"user"`
	Key      string `mapstructure:"key" yaml:"key"`

	HashBase64 bool `mapstructure:"hash_base64" yaml:"hash_base64"`
}

// MongoURI builds a mongodb:// connection string from the discrete fields.
func (c MongoDBBackendConfig) MongoURI() string {
	if c.User == "" {
		return fmt.Sprintf("mongodb://%s:%d", c.Host, c.Port)
	}
	return fmt.Sprintf("mongodb://%s:%s@%s:%d", c.User, c.Key, c.Host, c.Port)
}

// MonitorConfig configures the client's directory-watch pipeline (pkg/monitor + pkg/client).
type MonitorConfig struct {
	DirList   []string `mapstructure:"dir_list" yaml:"dir_list"`
	BlockSize int64    `mapstructure:"block_size" yaml:"block_size"`

	// Host identifies this client to the server's per-host metadata collections.
	Host string `mapstructure:"host" yaml:"host"`

	// ServerURL is the base URL of the server dispatcher's HTTP API.
	ServerURL string `mapstructure:"server_url" yaml:"server_url"`

	// PollInterval is how often the monitor re-stats dir_list for changes.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`

	// CacheDir, if set, backs the client's dedup cache with an on-disk
	// store at this path so known hashes survive process restarts. Empty
	// keeps the cache purely in-memory.
	CacheDir string `mapstructure:"cache_dir" yaml:"cache_dir"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig configures the Prometheus metrics HTTP endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// Load reads the config file when one is found, with CDPFGL_-prefixed
// environment variables overriding the keys that file sets, then fills any
// field still at its zero value from ApplyDefaults and validates the result.
// When no config file is found, environment variables are not applied.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg := &Config{}
	if found {
		if err := v.Unmarshal(cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
			return nil, fmt.Errorf("config: unmarshal: %w", err)
		}
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// Validate runs struct-tag validation over cfg using go-playground/validator.
func Validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}

// SaveConfig writes cfg to path in YAML, for a `<binary> init` scaffolding
// command.
func SaveConfig(cfg *Config, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("config: create directory: %w", err)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("config: write: %w", err)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("CDPFGL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// configDecodeHooks composes the mapstructure decode hooks Load uses to
// accept human-readable durations ("30s") in YAML/env input.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(durationDecodeHook())
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "cdpfgl")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "cdpfgl")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
