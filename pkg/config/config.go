// Package config provides configuration loading and validation for ordtree.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/ordtree/pkg/persist"
)

// Sentinel validation errors.
var (
	ErrInvalidKeyType        = errors.New("invalid key type")
	ErrInvalidShards         = errors.New("shard count must be positive")
	ErrInvalidThreshold      = errors.New("hibernation threshold must not be negative")
	ErrInvalidManifestFormat = errors.New("invalid manifest format")
	ErrInvalidLogLevel       = errors.New("invalid log level")
	ErrInvalidLogFormat      = errors.New("invalid log format")
	ErrInvalidSampleRatio    = errors.New("sample ratio must be within [0, 1]")
)

// EnvPrefix prefixes every environment variable override, e.g. ORDTREE_STORAGE_SHARDS.
const EnvPrefix = "ORDTREE"

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"text", "json"}
	validKeyTypes   = []string{KeyTypeInt, KeyTypeString}
)

// Config holds all configuration for ordtree.
type Config struct {
	Tree      TreeConfig      `mapstructure:"tree"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// TreeConfig holds tree-specific configuration.
type TreeConfig struct {
	KeyType string `mapstructure:"key_type"`
	Unique  bool   `mapstructure:"unique"`
}

// StorageConfig holds arena and snapshot configuration.
type StorageConfig struct {
	SnapshotDir          string `mapstructure:"snapshot_dir"`
	ManifestFormat       string `mapstructure:"manifest_format"`
	Shards               int    `mapstructure:"shards"`
	HibernationThreshold int    `mapstructure:"hibernation_threshold"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds OpenTelemetry configuration.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	Environment  string  `mapstructure:"environment"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
}

// LoadConfig loads configuration from file and environment variables.
// An empty configPath searches ., ./config and /etc/ordtree for config.yaml;
// a missing file is not an error in that case.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	// Set defaults.
	setDefaults(viperCfg)

	// Read config file.
	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("config")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/ordtree")
	}

	// Read environment variables.
	viperCfg.SetEnvPrefix(EnvPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("tree.key_type", DefaultKeyType)
	viperCfg.SetDefault("tree.unique", DefaultUnique)

	viperCfg.SetDefault("storage.shards", DefaultShards)
	viperCfg.SetDefault("storage.hibernation_threshold", DefaultHibernationThreshold)
	viperCfg.SetDefault("storage.snapshot_dir", DefaultSnapshotDir)
	viperCfg.SetDefault("storage.manifest_format", DefaultManifestFormat)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)

	viperCfg.SetDefault("telemetry.otlp_endpoint", DefaultOTLPEndpoint)
	viperCfg.SetDefault("telemetry.otlp_insecure", DefaultOTLPInsecure)
	viperCfg.SetDefault("telemetry.environment", DefaultEnvironment)
	viperCfg.SetDefault("telemetry.sample_ratio", DefaultSampleRatio)
}

// Validate checks the configuration values. Enumerations are normalized to lower case.
func (config *Config) Validate() error {
	config.Tree.KeyType = strings.ToLower(config.Tree.KeyType)
	if !slices.Contains(validKeyTypes, config.Tree.KeyType) {
		return fmt.Errorf("%w: %q", ErrInvalidKeyType, config.Tree.KeyType)
	}

	if config.Storage.Shards <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidShards, config.Storage.Shards)
	}

	if config.Storage.HibernationThreshold < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidThreshold, config.Storage.HibernationThreshold)
	}

	_, codecErr := persist.CodecByName(config.Storage.ManifestFormat)
	if codecErr != nil {
		return fmt.Errorf("%w: %w", ErrInvalidManifestFormat, codecErr)
	}

	config.Logging.Level = strings.ToLower(config.Logging.Level)
	if !slices.Contains(validLogLevels, config.Logging.Level) {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, config.Logging.Level)
	}

	config.Logging.Format = strings.ToLower(config.Logging.Format)
	if !slices.Contains(validLogFormats, config.Logging.Format) {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	}

	if config.Telemetry.SampleRatio < 0 || config.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRatio, config.Telemetry.SampleRatio)
	}

	return nil
}
