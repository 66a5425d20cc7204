// Package config provides configuration loading and validation for deadwood.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidPort           = errors.New("invalid server port")
	ErrInvalidWorkers        = errors.New("scan workers must not be negative")
	ErrInvalidMaxFileSize    = errors.New("invalid scan max file size")
	ErrInvalidCacheEntries   = errors.New("cache max entries must be positive")
	ErrInvalidPackageManager = errors.New("unsupported package manager")
	ErrInvalidInstallTimeout = errors.New("install timeout must be positive")
)

// Default configuration values.
const (
	defaultPort         = 8080
	defaultHost         = "0.0.0.0"
	defaultCacheEntries = 4096
	maxPort             = 65535
)

// packageManagers are the values accepted for cleanup.package_manager.
var packageManagers = map[string]bool{
	"auto": true,
	"npm":  true,
	"yarn": true,
	"pnpm": true,
}

// Config holds all configuration for deadwood.
type Config struct {
	Scan      ScanConfig      `mapstructure:"scan"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Cleanup   CleanupConfig   `mapstructure:"cleanup"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ScanConfig holds project scanning configuration.
type ScanConfig struct {
	// ExcludeDirs are directory names skipped during discovery.
	ExcludeDirs []string `mapstructure:"exclude_dirs"`

	// EntryPoints are project-relative paths never reported as unused.
	EntryPoints []string `mapstructure:"entry_points"`

	// MaxFileSize caps the size of source files handed to the parser,
	// in humanized form (e.g. "5MB"). Larger files contribute no references.
	MaxFileSize string `mapstructure:"max_file_size"`

	// Workers is the parse worker count. Zero means one per CPU.
	Workers int `mapstructure:"workers"`

	// SkipVendored excludes vendored sources from discovery.
	SkipVendored bool `mapstructure:"skip_vendored"`

	// SkipGenerated excludes generated sources from discovery.
	SkipGenerated bool `mapstructure:"skip_generated"`

	// FollowSymlinks enables traversal into symlinked directories.
	FollowSymlinks bool `mapstructure:"follow_symlinks"`
}

// CacheConfig holds reference-cache configuration.
type CacheConfig struct {
	// Directory overrides the default user cache directory.
	Directory string `mapstructure:"directory"`

	// MaxEntries bounds the in-memory LRU front.
	MaxEntries int `mapstructure:"max_entries"`

	// Enabled toggles the cache entirely.
	Enabled bool `mapstructure:"enabled"`
}

// CleanupConfig holds cleanup-specific configuration.
type CleanupConfig struct {
	// PackageManager selects the reinstall tool: auto, npm, yarn, or pnpm.
	// Auto detects from the lockfile present in the project.
	PackageManager string `mapstructure:"package_manager"`

	// InstallTimeout bounds the reinstall subprocess.
	InstallTimeout time.Duration `mapstructure:"install_timeout"`

	// PruneEmptyDirs removes directories left empty after file deletion.
	PruneEmptyDirs bool `mapstructure:"prune_empty_dirs"`

	// SkipInstall leaves node_modules untouched and skips the reinstall.
	SkipInstall bool `mapstructure:"skip_install"`
}

// ServerConfig holds HTTP server configuration for serve mode.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	Port         int           `mapstructure:"port"`
	Enabled      bool          `mapstructure:"enabled"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// TelemetryConfig holds OpenTelemetry export configuration.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	Environment  string  `mapstructure:"environment"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	DebugTrace   bool    `mapstructure:"debug_trace"`
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	// Set defaults.
	setDefaults(viperCfg)

	// Read config file.
	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("deadwood")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/deadwood")
	}

	// Read environment variables.
	viperCfg.SetEnvPrefix("DEADWOOD")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file.
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

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// MaxFileSizeBytes parses the humanized scan.max_file_size value.
// Zero means unlimited.
func (sc ScanConfig) MaxFileSizeBytes() (int64, error) {
	if sc.MaxFileSize == "" {
		return 0, nil
	}

	size, err := humanize.ParseBytes(sc.MaxFileSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMaxFileSize, sc.MaxFileSize)
	}

	return int64(size), nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	// Scan defaults.
	viperCfg.SetDefault("scan.workers", 0)
	viperCfg.SetDefault("scan.exclude_dirs", []string{
		"node_modules", ".git", "dist", "build", "coverage", ".next", "out",
	})
	viperCfg.SetDefault("scan.entry_points", []string{})
	viperCfg.SetDefault("scan.max_file_size", "5MB")
	viperCfg.SetDefault("scan.skip_vendored", true)
	viperCfg.SetDefault("scan.skip_generated", true)
	viperCfg.SetDefault("scan.follow_symlinks", false)

	// Cache defaults.
	viperCfg.SetDefault("cache.enabled", true)
	viperCfg.SetDefault("cache.directory", "")
	viperCfg.SetDefault("cache.max_entries", defaultCacheEntries)

	// Cleanup defaults.
	viperCfg.SetDefault("cleanup.package_manager", "auto")
	viperCfg.SetDefault("cleanup.install_timeout", "10m")
	viperCfg.SetDefault("cleanup.prune_empty_dirs", true)
	viperCfg.SetDefault("cleanup.skip_install", false)

	// Server defaults.
	viperCfg.SetDefault("server.enabled", false)
	viperCfg.SetDefault("server.port", defaultPort)
	viperCfg.SetDefault("server.host", defaultHost)
	viperCfg.SetDefault("server.read_timeout", "30s")
	viperCfg.SetDefault("server.write_timeout", "60s")
	viperCfg.SetDefault("server.idle_timeout", "120s")

	// Logging defaults.
	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", "text")
	viperCfg.SetDefault("logging.output", "stderr")

	// Telemetry defaults.
	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.sample_ratio", 0.0)
	viperCfg.SetDefault("telemetry.debug_trace", false)
	viperCfg.SetDefault("telemetry.environment", "")
}

// validateConfig validates the configuration.
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > maxPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, config.Server.Port)
	}

	if config.Scan.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, config.Scan.Workers)
	}

	if _, err := config.Scan.MaxFileSizeBytes(); err != nil {
		return err
	}

	if config.Cache.MaxEntries <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCacheEntries, config.Cache.MaxEntries)
	}

	if !packageManagers[config.Cleanup.PackageManager] {
		return fmt.Errorf("%w: %q", ErrInvalidPackageManager, config.Cleanup.PackageManager)
	}

	if config.Cleanup.InstallTimeout <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInstallTimeout, config.Cleanup.InstallTimeout)
	}

	return nil
}
