// Package observability wires OpenTelemetry tracing and metrics plus
// trace-aware slog logging into every deadwood entry point (CLI, MCP,
// LSP, serve).
package observability

import (
	"log/slog"
	"time"
)

// AppMode names the entry point a process was launched through. It is
// attached to the OTel resource and to every log record.
type AppMode string

const (
	// ModeCLI marks a one-shot command invocation.
	ModeCLI AppMode = "cli"
	// ModeMCP marks the MCP stdio server.
	ModeMCP AppMode = "mcp"
	// ModeLSP marks the LSP stdio server.
	ModeLSP AppMode = "lsp"
	// ModeServe marks the HTTP server.
	ModeServe AppMode = "serve"
)

const (
	defaultServiceName        = "deadwood"
	defaultShutdownTimeoutSec = 5
)

// Config collects every knob Init understands.
type Config struct {
	// ServiceName becomes the OTel resource service name.
	ServiceName string

	// ServiceVersion is the version of the running binary.
	ServiceVersion string

	// Environment labels the deployment ("ci", "dev", ...).
	Environment string

	// Mode identifies the entry point, see AppMode.
	Mode AppMode

	// OTLPEndpoint is the gRPC collector address ("localhost:4317").
	// When empty, trace and metric export is disabled entirely.
	OTLPEndpoint string

	// OTLPHeaders is extra gRPC metadata sent with every export.
	OTLPHeaders map[string]string

	// OTLPInsecure turns off TLS on the collector connection.
	OTLPInsecure bool

	// DebugTrace samples every span and surfaces scrubber warnings.
	DebugTrace bool

	// SampleRatio is the fraction of traces to sample when DebugTrace
	// is off. Zero means parent-based always-on.
	SampleRatio float64

	// LogLevel is the minimum slog severity that gets emitted.
	LogLevel slog.Level

	// LogJSON switches log output from text to JSON.
	LogJSON bool

	// ShutdownTimeoutSec bounds the final telemetry flush, in seconds.
	ShutdownTimeoutSec int
}

// DefaultConfig returns the zero-configuration setup: CLI mode, info
// logging, no export.
func DefaultConfig() Config {
	return Config{
		ServiceName:        defaultServiceName,
		Mode:               ModeCLI,
		LogLevel:           slog.LevelInfo,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}

// shutdownTimeout converts ShutdownTimeoutSec to a duration, falling
// back to the default for zero or negative values.
func (c Config) shutdownTimeout() time.Duration {
	if c.ShutdownTimeoutSec <= 0 {
		return defaultShutdownTimeoutSec * time.Second
	}

	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}
