package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/deadwood/internal/report"
	"github.com/Sumatoshi-tech/deadwood/pkg/analysis"
	"github.com/Sumatoshi-tech/deadwood/pkg/config"
	"github.com/Sumatoshi-tech/deadwood/pkg/gitsafe"
	"github.com/Sumatoshi-tech/deadwood/pkg/observability"
	"github.com/Sumatoshi-tech/deadwood/pkg/refcache"
)

// ScanRunOptions carries the scan settings resolved from flags.
type ScanRunOptions struct {
	Path        string
	EntryPoints []string
	Workers     int
	NoCache     bool
}

// scanExecutor runs one project analysis. Injected so command tests can
// substitute a stub.
type scanExecutor func(
	ctx context.Context,
	providers observability.Providers,
	cfg *config.Config,
	opts ScanRunOptions,
) (*analysis.Result, error)

// ScanCommand holds the flag state and dependencies for scan.
type ScanCommand struct {
	format      string
	output      string
	configPath  string
	path        string
	entryPoints []string
	workers     int
	silent      bool
	noColor     bool
	noCache     bool

	exec    scanExecutor
	obsInit observabilityInitFunc
}

// NewScanCommand creates the scan command.
func NewScanCommand() *cobra.Command {
	return newScanCommandWithDeps(runScan, observability.Init)
}

func newScanCommandWithDeps(exec scanExecutor, obsInit observabilityInitFunc) *cobra.Command {
	sc := &ScanCommand{
		format:  string(report.FormatText),
		exec:    exec,
		obsInit: obsInit,
	}

	cmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "Scan a project for unused dependencies and files",
		Long: `Scan a JavaScript or TypeScript project and report declared dependencies
no source file imports and source files no other file references.`,
		Args: cobra.MaximumNArgs(1),
		RunE: sc.run,
	}

	cmd.Flags().StringVar(&sc.format, "format", string(report.FormatText), "Output format: text, json, yaml, html")
	cmd.Flags().StringVarP(&sc.output, "output", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().StringVar(&sc.configPath, "config", "", "Config file path (default: deadwood.yaml in the search paths)")
	cmd.Flags().StringVarP(&sc.path, "path", "p", ".", "Project path to scan")
	cmd.Flags().StringSliceVar(&sc.entryPoints, "entry-points", nil, "Additional entry point paths never reported as unused")
	cmd.Flags().IntVar(&sc.workers, "workers", 0, "Number of parse workers (0 = CPU count)")
	cmd.Flags().BoolVar(&sc.silent, "silent", false, "Disable progress output")
	cmd.Flags().BoolVar(&sc.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().BoolVar(&sc.noCache, "no-cache", false, "Bypass the reference cache")

	return cmd
}

func (sc *ScanCommand) run(cmd *cobra.Command, args []string) error {
	path := resolvePath(args, sc.path)
	silent := isSilent(cmd, sc.silent)
	progressWriter := cmd.ErrOrStderr()

	format, err := report.ParseFormat(sc.format)
	if err != nil {
		return err
	}

	if sc.noColor {
		color.NoColor = true
	}

	cfg, err := config.LoadConfig(sc.configPath)
	if err != nil {
		return err
	}

	providers, err := sc.obsInit(commandObservabilityConfig(cfg, observability.ModeCLI, isVerbose(cmd)))
	if err != nil {
		return err
	}
	defer shutdownProviders(providers)

	progressf(silent, progressWriter, "scanning %s", path)

	result, err := sc.exec(cmd.Context(), providers, cfg, ScanRunOptions{
		Path:        path,
		EntryPoints: sc.entryPoints,
		Workers:     sc.workers,
		NoCache:     sc.noCache,
	})
	if err != nil {
		return err
	}

	progressf(silent, progressWriter, "scan completed: %d files scanned, %d unused dependencies, %d unused files",
		result.Stats.FilesScanned, len(result.UnusedDependencies), len(result.UnusedFiles))

	return sc.render(cmd.OutOrStdout(), result, format)
}

func (sc *ScanCommand) render(stdout io.Writer, result *analysis.Result, format report.Format) error {
	if sc.output == "" {
		return report.Render(stdout, result, format)
	}

	file, err := os.Create(sc.output)
	if err != nil {
		return fmt.Errorf("create report file %s: %w", sc.output, err)
	}

	renderErr := report.Render(file, result, format)

	closeErr := file.Close()
	if renderErr != nil {
		return renderErr
	}

	if closeErr != nil {
		return fmt.Errorf("close report file %s: %w", sc.output, closeErr)
	}

	return nil
}

// runScan is the production scan executor.
func runScan(
	ctx context.Context,
	providers observability.Providers,
	cfg *config.Config,
	opts ScanRunOptions,
) (*analysis.Result, error) {
	root, err := filepath.Abs(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve path %s: %w", opts.Path, err)
	}

	env := newScanEnv(ctx, providers, cfg, root, opts)
	defer env.free()

	return env.scan(ctx, root)
}

// scanEnv bundles everything one analysis run needs. The caller owns
// the checker lifecycle via free.
type scanEnv struct {
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *observability.ScanMetrics
	cache   *refcache.Cache
	checker *gitsafe.Checker
	scanCfg config.ScanConfig
}

func newScanEnv(
	ctx context.Context,
	providers observability.Providers,
	cfg *config.Config,
	root string,
	opts ScanRunOptions,
) scanEnv {
	logger := providers.Logger
	if logger == nil {
		logger = slog.Default()
	}

	scanCfg := mergeEntryPoints(cfg.Scan, opts.EntryPoints)
	if opts.Workers > 0 {
		scanCfg.Workers = opts.Workers
	}

	return scanEnv{
		logger:  logger,
		tracer:  providers.Tracer,
		metrics: newScanMetrics(providers, logger),
		cache:   openCache(cfg, opts.NoCache, logger),
		checker: openChecker(ctx, root, logger),
		scanCfg: scanCfg,
	}
}

func (env scanEnv) scan(ctx context.Context, root string) (*analysis.Result, error) {
	svc, err := analysis.NewService(analysis.Options{
		Cache:   env.cache,
		Checker: env.checker,
		Logger:  env.logger,
		Tracer:  env.tracer,
		Config:  env.scanCfg,
	})
	if err != nil {
		return nil, fmt.Errorf("create scanner: %w", err)
	}

	result, err := svc.Scan(ctx, root)
	if err != nil {
		return nil, err
	}

	env.recordRun(ctx, result)

	return result, nil
}

func (env scanEnv) recordRun(ctx context.Context, result *analysis.Result) {
	if env.metrics == nil {
		return
	}

	env.metrics.RecordRun(ctx, observability.ScanStats{
		Files:          int64(result.Stats.FilesScanned),
		ParseFailures:  int64(result.Stats.ParseFailures),
		FileDurations:  result.Stats.FileDurations,
		BytesAnalyzed:  result.Stats.BytesAnalyzed,
		RefCacheHits:   result.Stats.CacheHits,
		RefCacheMisses: result.Stats.CacheMisses,
	})
}

func (env scanEnv) free() {
	if env.checker != nil {
		env.checker.Free()
	}
}

func mergeEntryPoints(cfg config.ScanConfig, extra []string) config.ScanConfig {
	if len(extra) == 0 {
		return cfg
	}

	merged := make([]string, 0, len(cfg.EntryPoints)+len(extra))
	merged = append(merged, cfg.EntryPoints...)
	merged = append(merged, extra...)
	cfg.EntryPoints = merged

	return cfg
}

func newScanMetrics(providers observability.Providers, logger *slog.Logger) *observability.ScanMetrics {
	if providers.Meter == nil {
		return nil
	}

	metrics, err := observability.NewScanMetrics(providers.Meter)
	if err != nil {
		logger.Warn("scan metrics unavailable", slog.String("error", err.Error()))

		return nil
	}

	return metrics
}

func openCache(cfg *config.Config, disabled bool, logger *slog.Logger) *refcache.Cache {
	if disabled || !cfg.Cache.Enabled {
		return nil
	}

	dir := cfg.Cache.Directory
	if dir == "" {
		defaultDir, err := refcache.DefaultDir()
		if err != nil {
			logger.Warn("reference cache unavailable", slog.String("error", err.Error()))

			return nil
		}

		dir = defaultDir
	}

	cache, err := refcache.New(dir, cfg.Cache.MaxEntries)
	if err != nil {
		logger.Warn("reference cache unavailable", slog.String("error", err.Error()))

		return nil
	}

	return cache
}

// openChecker opens the project's git repository for ignore and
// uncommitted-change queries. Projects outside any repository scan
// without one.
func openChecker(ctx context.Context, root string, logger *slog.Logger) *gitsafe.Checker {
	checker, err := gitsafe.Open(root)
	if err != nil {
		if !errors.Is(err, gitsafe.ErrNotRepository) {
			logger.WarnContext(ctx, "git repository unavailable",
				slog.String("root", root),
				slog.String("error", err.Error()))
		}

		return nil
	}

	return checker
}
