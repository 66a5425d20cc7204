package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/deadwood/pkg/analysis"
	"github.com/Sumatoshi-tech/deadwood/pkg/config"
	"github.com/Sumatoshi-tech/deadwood/pkg/observability"
	"github.com/Sumatoshi-tech/deadwood/pkg/refcache"
)

const (
	serveMeterName = "deadwood"

	// shutdownGrace bounds the drain of in-flight requests.
	shutdownGrace = 10 * time.Second
)

var (
	errEmptyScanPath       = errors.New("path is required")
	errScanPathNotAbsolute = errors.New("path must be absolute")
)

// ServeCommand holds the flag state and dependencies for serve.
type ServeCommand struct {
	configPath string
	host       string
	port       int

	obsInit observabilityInitFunc
}

// NewServeCommand creates the HTTP API server command.
func NewServeCommand() *cobra.Command {
	return newServeCommandWithDeps(observability.Init)
}

func newServeCommandWithDeps(obsInit observabilityInitFunc) *cobra.Command {
	vc := &ServeCommand{obsInit: obsInit}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP scan API",
		Long: `Start an HTTP server exposing the scan as a JSON API.

Endpoints:
  POST /api/scan  Scan a project and return the analysis result
  GET  /healthz   Liveness probe
  GET  /metrics   Prometheus scrape endpoint`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          vc.run,
	}

	cmd.Flags().StringVar(&vc.configPath, "config", "", "Config file path")
	cmd.Flags().StringVar(&vc.host, "host", "", "Listen host (empty = config value)")
	cmd.Flags().IntVar(&vc.port, "port", 0, "Listen port (0 = config value)")

	return cmd
}

func (vc *ServeCommand) run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(vc.configPath)
	if err != nil {
		return err
	}

	if vc.host != "" {
		cfg.Server.Host = vc.host
	}

	if vc.port > 0 {
		cfg.Server.Port = vc.port
	}

	providers, err := vc.obsInit(commandObservabilityConfig(cfg, observability.ModeServe, isVerbose(cmd)))
	if err != nil {
		return err
	}
	defer shutdownProviders(providers)

	logger := providers.Logger
	if logger == nil {
		logger = slog.Default()
	}

	handler, err := newServeHandler(cfg, providers.Tracer, logger)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))

	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	logger.Info("scan API listening", slog.String("addr", addr))

	return serveUntilDone(cmd.Context(), logger, server)
}

// serveUntilDone runs the server until it fails or the context is
// cancelled, then drains in-flight requests.
func serveUntilDone(ctx context.Context, logger *slog.Logger, server *http.Server) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)

	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	err := <-errCh
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

// newServeHandler builds the API mux wrapped in tracing middleware.
// Scan metrics are created from the Prometheus-bridged meter so runs
// show up in the scrape output.
func newServeHandler(cfg *config.Config, tracer trace.Tracer, logger *slog.Logger) (http.Handler, error) {
	promHandler, meterProvider, err := observability.PrometheusHandler()
	if err != nil {
		return nil, err
	}

	metrics, err := observability.NewScanMetrics(meterProvider.Meter(serveMeterName))
	if err != nil {
		return nil, err
	}

	api := &scanAPI{
		logger:  logger,
		tracer:  tracer,
		metrics: metrics,
		cache:   openCache(cfg, false, logger),
		scanCfg: cfg.Scan,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/scan", api.handleScan)
	mux.HandleFunc("/healthz", handleHealth)
	mux.Handle("/metrics", promHandler)

	return observability.HTTPMiddleware(tracer, logger, mux), nil
}

// scanAPI serves analysis requests. The cache and metrics are shared
// across requests; a fresh service and git checker are built per
// request because every request names its own project root.
type scanAPI struct {
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *observability.ScanMetrics
	cache   *refcache.Cache
	scanCfg config.ScanConfig
}

// scanRequest is the request body for the scan API endpoint.
type scanRequest struct {
	Path        string   `json:"path"`
	EntryPoints []string `json:"entry_points,omitempty"`
}

// apiError is the error response body for all API endpoints.
type apiError struct {
	Error string `json:"error"`
}

func (api *scanAPI) handleScan(responseWriter http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		http.Error(responseWriter, "Method not allowed", http.StatusMethodNotAllowed)

		return
	}

	var req scanRequest

	decodeErr := json.NewDecoder(request.Body).Decode(&req)
	if decodeErr != nil {
		http.Error(responseWriter, "Invalid request body", http.StatusBadRequest)

		return
	}

	root, validateErr := validateScanPath(req.Path)
	if validateErr != nil {
		writeJSON(request.Context(), responseWriter, http.StatusBadRequest, apiError{Error: validateErr.Error()})

		return
	}

	result, scanErr := api.scan(request.Context(), root, req.EntryPoints)
	if scanErr != nil {
		api.logger.ErrorContext(request.Context(), "scan failed",
			slog.String("root", root),
			slog.String("error", scanErr.Error()))
		writeJSON(request.Context(), responseWriter, http.StatusInternalServerError, apiError{Error: scanErr.Error()})

		return
	}

	writeJSON(request.Context(), responseWriter, http.StatusOK, result)
}

func (api *scanAPI) scan(ctx context.Context, root string, entryPoints []string) (*analysis.Result, error) {
	env := scanEnv{
		logger:  api.logger,
		tracer:  api.tracer,
		metrics: api.metrics,
		cache:   api.cache,
		checker: openChecker(ctx, root, api.logger),
		scanCfg: mergeEntryPoints(api.scanCfg, entryPoints),
	}
	defer env.free()

	return env.scan(ctx, root)
}

func validateScanPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errEmptyScanPath
	}

	if !filepath.IsAbs(path) {
		return "", fmt.Errorf("%w: %s", errScanPathNotAbsolute, path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat project path: %w", err)
	}

	if !info.IsDir() {
		return "", fmt.Errorf("project path %s is not a directory", path)
	}

	return filepath.Clean(path), nil
}

func handleHealth(responseWriter http.ResponseWriter, _ *http.Request) {
	responseWriter.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(responseWriter, "ok")
}

// writeJSON encodes the given value as JSON and writes it with the
// given status code.
func writeJSON(ctx context.Context, responseWriter http.ResponseWriter, status int, value any) {
	responseWriter.Header().Set("Content-Type", "application/json")
	responseWriter.WriteHeader(status)

	encodeErr := json.NewEncoder(responseWriter).Encode(value)
	if encodeErr != nil {
		slog.Default().ErrorContext(ctx, "failed to encode JSON response", slog.String("error", encodeErr.Error()))
	}
}
