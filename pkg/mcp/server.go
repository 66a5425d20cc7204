// Package mcp implements a Model Context Protocol server exposing
// deadwood's scan and cleanup-preview capabilities as MCP tools over
// stdio transport.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/deadwood/pkg/config"
	"github.com/Sumatoshi-tech/deadwood/pkg/observability"
	"github.com/Sumatoshi-tech/deadwood/pkg/refcache"
	"github.com/Sumatoshi-tech/deadwood/pkg/version"
)

const (
	// serverName identifies this implementation to MCP clients.
	serverName = "deadwood"

	// mcpSpanPrefix prefixes tool names in span names and metric ops.
	mcpSpanPrefix = "mcp."

	// traceIDMetaKey labels the trace_id line appended to sampled
	// tool responses.
	traceIDMetaKey = "trace_id"
)

// ServerDeps holds injectable dependencies for the MCP server.
// Zero-value fields use production defaults.
type ServerDeps struct {
	// Logger is an optional structured logger. Nil uses slog default.
	Logger *slog.Logger

	// Metrics optionally records per-tool RED metrics.
	Metrics *observability.REDMetrics

	// Tracer optionally opens a span per tool call.
	Tracer trace.Tracer

	// Cache is an optional reference cache shared across tool calls.
	Cache *refcache.Cache

	// Scan configures the scans run by tool calls.
	Scan config.ScanConfig
}

// Server wraps the MCP SDK server with deadwood tool registrations.
type Server struct {
	inner   *mcpsdk.Server
	mu      sync.RWMutex
	tools   []string
	metrics *observability.REDMetrics
	tracer  trace.Tracer
	logger  *slog.Logger
	cache   *refcache.Cache
	scanCfg config.ScanConfig
}

// NewServer creates an MCP server with all deadwood tools registered.
func NewServer(deps ServerDeps) *Server {
	opts := &mcpsdk.ServerOptions{}
	if deps.Logger != nil {
		opts.Logger = deps.Logger
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	srv := &Server{
		inner: mcpsdk.NewServer(
			&mcpsdk.Implementation{Name: serverName, Version: version.Version},
			opts,
		),
		metrics: deps.Metrics,
		tracer:  deps.Tracer,
		logger:  logger,
		cache:   deps.Cache,
		scanCfg: deps.Scan,
	}

	register(srv, ToolNameScan, scanToolDescription, srv.handleScan)
	register(srv, ToolNameCleanPreview, cleanPreviewToolDescription, srv.handleCleanPreview)

	return srv
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := slices.Clone(s.tools)
	slices.Sort(names)

	return names
}

// Run serves MCP over stdio until the context is canceled or the
// connection closes.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport serves MCP over the given transport until the
// context is canceled or the connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	if err := s.inner.Run(ctx, transport); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

// toolFunc is the handler shape every deadwood tool shares.
type toolFunc[In any] func(context.Context, *mcpsdk.CallToolRequest, In) (*mcpsdk.CallToolResult, ToolOutput, error)

// register adds one instrumented tool to the server.
func register[In any](
	s *Server,
	name, description string,
	handler func(context.Context, *mcpsdk.CallToolRequest, In) (*mcpsdk.CallToolResult, ToolOutput, error),
) {
	wrapped := toolFunc[In](handler)

	if s.tracer != nil {
		wrapped = traced(s.tracer, name, wrapped)
	}

	// Metrics wrap outermost so durations cover span handling too.
	if s.metrics != nil {
		wrapped = measured(s.metrics, name, wrapped)
	}

	var h func(context.Context, *mcpsdk.CallToolRequest, In) (*mcpsdk.CallToolResult, ToolOutput, error) = wrapped

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{Name: name, Description: description}, h)

	s.mu.Lock()
	s.tools = append(s.tools, name)
	s.mu.Unlock()
}

// traced opens a server span per invocation. Sampled calls get their
// trace_id appended to the response content for log correlation.
func traced[In any](tracer trace.Tracer, name string, handler toolFunc[In]) toolFunc[In] {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input In) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, mcpSpanPrefix+name,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", name)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)

		if sc := span.SpanContext(); sc.IsSampled() && result != nil {
			result.Content = append(result.Content, &mcpsdk.TextContent{
				Text: traceIDMetaKey + "=" + sc.TraceID().String(),
			})
		}

		return result, output, err
	}
}

// measured records RED metrics per invocation. A handler error or an
// IsError result both count as failures.
func measured[In any](metrics *observability.REDMetrics, name string, handler toolFunc[In]) toolFunc[In] {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input In) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()

		defer metrics.TrackInflight(ctx, mcpSpanPrefix+name)()

		result, output, err := handler(ctx, req, input)

		status := "ok"
		if err != nil || (result != nil && result.IsError) {
			status = "error"
		}

		metrics.RecordRequest(ctx, mcpSpanPrefix+name, status, time.Since(start))

		return result, output, err
	}
}

// Tool description constants.
const (
	scanToolDescription = "Scan a JavaScript or TypeScript project for unused dependencies " +
		"and unused source files. Reports declared packages no source file imports and " +
		"files nothing references, with sizes and last-modified times."

	cleanPreviewToolDescription = "Preview a cleanup of a JavaScript or TypeScript project " +
		"without changing it. Reports the dependencies and files a real cleanup would remove, " +
		"a manifest diff, and the bytes the deletions would free."
)
