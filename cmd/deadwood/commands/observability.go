package commands

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/Sumatoshi-tech/deadwood/pkg/config"
	"github.com/Sumatoshi-tech/deadwood/pkg/observability"
	"github.com/Sumatoshi-tech/deadwood/pkg/version"
)

const logFormatJSON = "json"

// observabilityInitFunc builds telemetry providers from a config.
// Injected so command tests can run with no-op providers.
type observabilityInitFunc func(observability.Config) (observability.Providers, error)

// commandObservabilityConfig maps the file config onto the telemetry
// config. Standard OTel environment variables fill any gap the file
// leaves, so collector endpoints work without a config file.
func commandObservabilityConfig(cfg *config.Config, mode observability.AppMode, verbose bool) observability.Config {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.Environment = cfg.Telemetry.Environment

	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	if obsCfg.OTLPEndpoint == "" {
		obsCfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}

	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Telemetry.OTLPHeaders)
	if len(obsCfg.OTLPHeaders) == 0 {
		obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	}

	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure || os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"
	obsCfg.SampleRatio = cfg.Telemetry.SampleRatio
	obsCfg.DebugTrace = cfg.Telemetry.DebugTrace
	obsCfg.LogLevel = parseLogLevel(cfg.Logging.Level, verbose)
	obsCfg.LogJSON = cfg.Logging.Format == logFormatJSON

	// Stdio transports carry the protocol on stdout; logs stay
	// machine-readable on stderr.
	if mode == observability.ModeMCP || mode == observability.ModeLSP {
		obsCfg.LogJSON = true
	}

	return obsCfg
}

func parseLogLevel(name string, verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}

	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func shutdownProviders(providers observability.Providers) {
	if providers.Shutdown == nil {
		return
	}

	err := providers.Shutdown(context.Background())
	if err != nil && providers.Logger != nil {
		providers.Logger.Warn("observability shutdown failed", slog.String("error", err.Error()))
	}
}
