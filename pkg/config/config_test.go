package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/deadwood/pkg/config"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	tmpDir := t.TempDir()

	tmpFile, err := os.CreateTemp(tmpDir, "test-config-*.yaml")
	require.NoError(t, err)

	_, writeErr := tmpFile.WriteString(content)
	require.NoError(t, writeErr)

	tmpFile.Close()

	return tmpFile.Name()
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	// Test loading with no config file (should use defaults).
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	// Check default values.
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 0, cfg.Scan.Workers)
	assert.Contains(t, cfg.Scan.ExcludeDirs, "node_modules")
	assert.Contains(t, cfg.Scan.ExcludeDirs, ".git")
	assert.Empty(t, cfg.Scan.EntryPoints)
	assert.True(t, cfg.Scan.SkipVendored)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 4096, cfg.Cache.MaxEntries)
	assert.Equal(t, "auto", cfg.Cleanup.PackageManager)
	assert.Equal(t, 10*time.Minute, cfg.Cleanup.InstallTimeout)
	assert.True(t, cfg.Cleanup.PruneEmptyDirs)
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Parallel()

	configContent := `
server:
  port: 9000
  host: "127.0.0.1"

scan:
  workers: 4
  entry_points:
    - "src/index.js"
    - "scripts/migrate.js"

cleanup:
  package_manager: "pnpm"

cache:
  directory: "/tmp/test-cache"
`

	path := writeConfigFile(t, configContent)

	// Load config from file.
	cfg, loadErr := config.LoadConfig(path)
	require.NoError(t, loadErr)

	// Check custom values.
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 4, cfg.Scan.Workers)
	assert.Equal(t, []string{"src/index.js", "scripts/migrate.js"}, cfg.Scan.EntryPoints)
	assert.Equal(t, "pnpm", cfg.Cleanup.PackageManager)
	assert.Equal(t, "/tmp/test-cache", cfg.Cache.Directory)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	// Set environment variables.
	t.Setenv("DEADWOOD_SERVER_PORT", "9090")
	t.Setenv("DEADWOOD_SCAN_WORKERS", "8")
	t.Setenv("DEADWOOD_CACHE_DIRECTORY", "/tmp/env-cache")

	// Load config (should pick up environment variables).
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	// Check environment variable values.
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Scan.Workers)
	assert.Equal(t, "/tmp/env-cache", cfg.Cache.Directory)
}

func TestTimeDurationParsing(t *testing.T) {
	t.Parallel()

	configContent := `
server:
  read_timeout: "15s"
  write_timeout: "30s"
  idle_timeout: "2m"

cleanup:
  install_timeout: "5m"
`

	path := writeConfigFile(t, configContent)

	cfg, loadErr := config.LoadConfig(path)
	require.NoError(t, loadErr)

	// Check time durations.
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Server.IdleTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Cleanup.InstallTimeout)
}

func TestValidateConfig_InvalidPort(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "server:\n  port: -1\n")

	_, err := config.LoadConfig(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidPort)
}

func TestValidateConfig_NegativeWorkers(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "scan:\n  workers: -2\n")

	_, err := config.LoadConfig(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidWorkers)
}

func TestValidateConfig_UnknownPackageManager(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "cleanup:\n  package_manager: \"bower\"\n")

	_, err := config.LoadConfig(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidPackageManager)
}

func TestValidateConfig_BadMaxFileSize(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "scan:\n  max_file_size: \"lots\"\n")

	_, err := config.LoadConfig(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidMaxFileSize)
}

func TestMaxFileSizeBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		size    string
		want    int64
		wantErr bool
	}{
		{"empty_unlimited", "", 0, false},
		{"megabytes", "5MB", 5 * 1000 * 1000, false},
		{"kibibytes", "64KiB", 64 * 1024, false},
		{"plain_bytes", "1024", 1024, false},
		{"garbage", "many", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sc := config.ScanConfig{MaxFileSize: tt.size}

			got, err := sc.MaxFileSizeBytes()
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
