package observability_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/deadwood/pkg/observability"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()

	assert.Equal(t, "deadwood", cfg.ServiceName)
	assert.Equal(t, observability.ModeCLI, cfg.Mode)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 5, cfg.ShutdownTimeoutSec)

	// Export is off until an endpoint is configured, and identity
	// fields start unset.
	assert.Empty(t, cfg.OTLPEndpoint)
	assert.False(t, cfg.DebugTrace)
	assert.Empty(t, cfg.ServiceVersion)
	assert.Empty(t, cfg.Environment)
}

// initProviders runs Init with cfg and tears the providers down with
// the test.
func initProviders(t *testing.T, cfg observability.Config) observability.Providers {
	t.Helper()

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	return providers
}

func TestInit_NoopWhenNoEndpoint(t *testing.T) {
	t.Parallel()

	providers := initProviders(t, observability.DefaultConfig())

	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.Logger)
	assert.NotNil(t, providers.Shutdown)
}

func TestInit_NoopSpanIsValid(t *testing.T) {
	t.Parallel()

	providers := initProviders(t, observability.DefaultConfig())

	// Span creation must work even when nothing exports.
	ctx, span := providers.Tracer.Start(context.Background(), "test-op")
	defer span.End()

	assert.NotNil(t, ctx)
	assert.NotNil(t, span)
}

func TestInit_WithResourceAttributes(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = "1.2.3"
	cfg.Environment = "test"
	cfg.Mode = observability.ModeMCP

	providers := initProviders(t, cfg)

	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.Meter)
}

func TestInit_LoggerUsable(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()
	cfg.LogJSON = true

	providers := initProviders(t, cfg)

	require.NotNil(t, providers.Logger)
	providers.Logger.InfoContext(context.Background(), "init test")
}

func TestInit_ShutdownIdempotent(t *testing.T) {
	t.Parallel()

	providers, err := observability.Init(observability.DefaultConfig())
	require.NoError(t, err)

	require.NoError(t, providers.Shutdown(context.Background()))
	require.NoError(t, providers.Shutdown(context.Background()))
}

func TestParseOTLPHeaders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  map[string]string
	}{
		{"empty", "", nil},
		{"single", "key=value", map[string]string{"key": "value"}},
		{"multiple", "k1=v1,k2=v2", map[string]string{"k1": "v1", "k2": "v2"}},
		{"spaces", " k1 = v1 , k2 = v2 ", map[string]string{"k1": "v1", "k2": "v2"}},
		{"no_equals", "invalid", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, observability.ParseOTLPHeaders(tt.input))
		})
	}
}

func TestResource_IncludesAppMode(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()
	cfg.Mode = observability.ModeLSP

	res, err := observability.ResourceFromConfig(cfg)
	require.NoError(t, err)

	var mode string

	for _, attr := range res.Attributes() {
		if string(attr.Key) == "app.mode" {
			mode = attr.Value.AsString()
		}
	}

	assert.Equal(t, "lsp", mode)
}

func TestSampler_EnvSelection(t *testing.T) {
	tests := []struct {
		name    string
		sampler string
		arg     string
		want    bool
	}{
		{"always_on", "always_on", "", true},
		{"always_off", "always_off", "", false},
		{"traceidratio_full", "traceidratio", "1.0", true},
		{"parentbased_always_on", "parentbased_always_on", "", true},
		{"parentbased_always_off", "parentbased_always_off", "", false},
		{"unknown_name_defaults_on", "bogus", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OTEL_TRACES_SAMPLER", tt.sampler)

			if tt.arg != "" {
				t.Setenv("OTEL_TRACES_SAMPLER_ARG", tt.arg)
			}

			assert.Equal(t, tt.want, observability.SamplerProbe(observability.DefaultConfig()))
		})
	}
}

func TestSampler_DebugTraceOverridesEnv(t *testing.T) {
	t.Setenv("OTEL_TRACES_SAMPLER", "always_off")

	cfg := observability.DefaultConfig()
	cfg.DebugTrace = true

	// Debug tracing wins over the environment.
	assert.True(t, observability.SamplerProbe(cfg))
}

func TestSampler_ConfigRatio(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()
	cfg.SampleRatio = 1.0

	assert.True(t, observability.SamplerProbe(cfg))
}

func TestSampler_DefaultSamplesRoots(t *testing.T) {
	t.Parallel()

	assert.True(t, observability.SamplerProbe(observability.DefaultConfig()))
}
