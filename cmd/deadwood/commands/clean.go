package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/deadwood/internal/report"
	"github.com/Sumatoshi-tech/deadwood/pkg/analysis"
	"github.com/Sumatoshi-tech/deadwood/pkg/cleanup"
	"github.com/Sumatoshi-tech/deadwood/pkg/config"
	"github.com/Sumatoshi-tech/deadwood/pkg/observability"
)

const summaryYAMLIndent = 2

// errConfirmationRequired gates destructive runs behind an explicit flag.
var errConfirmationRequired = errors.New("refusing to modify the project without --yes (use --dry-run to preview)")

// CleanRunOptions carries the cleanup settings resolved from flags.
type CleanRunOptions struct {
	ScanRunOptions

	DryRun         bool
	Force          bool
	SkipInstall    bool
	InstallTimeout time.Duration
}

// cleanExecutor scans a project and applies the cleanup. It returns the
// summary and the scan result it acted on; the summary may be partial
// when an error is returned.
type cleanExecutor func(
	ctx context.Context,
	providers observability.Providers,
	cfg *config.Config,
	opts CleanRunOptions,
) (*cleanup.Summary, *analysis.Result, error)

// CleanCommand holds the flag state and dependencies for clean.
type CleanCommand struct {
	format      string
	configPath  string
	path        string
	entryPoints []string
	workers     int
	silent      bool
	noColor     bool
	noCache     bool

	dryRun         bool
	yes            bool
	force          bool
	skipInstall    bool
	installTimeout time.Duration

	exec    cleanExecutor
	obsInit observabilityInitFunc
}

// NewCleanCommand creates the clean command.
func NewCleanCommand() *cobra.Command {
	return newCleanCommandWithDeps(runClean, observability.Init)
}

func newCleanCommandWithDeps(exec cleanExecutor, obsInit observabilityInitFunc) *cobra.Command {
	cc := &CleanCommand{
		format:  string(report.FormatText),
		exec:    exec,
		obsInit: obsInit,
	}

	cmd := &cobra.Command{
		Use:   "clean [path]",
		Short: "Remove unused dependencies and files from a project",
		Long: `Scan a JavaScript or TypeScript project, then prune unused dependencies
from package.json, delete unreferenced files, and reinstall node_modules.

Without --yes nothing is modified; --dry-run previews the full cleanup.`,
		Args: cobra.MaximumNArgs(1),
		RunE: cc.run,
	}

	cmd.Flags().StringVar(&cc.format, "format", string(report.FormatText), "Summary format: text, json, yaml")
	cmd.Flags().StringVar(&cc.configPath, "config", "", "Config file path (default: deadwood.yaml in the search paths)")
	cmd.Flags().StringVarP(&cc.path, "path", "p", ".", "Project path to clean")
	cmd.Flags().StringSliceVar(&cc.entryPoints, "entry-points", nil, "Additional entry point paths never reported as unused")
	cmd.Flags().IntVar(&cc.workers, "workers", 0, "Number of parse workers (0 = CPU count)")
	cmd.Flags().BoolVar(&cc.silent, "silent", false, "Disable progress output")
	cmd.Flags().BoolVar(&cc.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().BoolVar(&cc.noCache, "no-cache", false, "Bypass the reference cache")

	cmd.Flags().BoolVar(&cc.dryRun, "dry-run", false, "Preview removals without touching the project")
	cmd.Flags().BoolVar(&cc.yes, "yes", false, "Confirm removal without prompting")
	cmd.Flags().BoolVar(&cc.force, "force", false, "Remove files even when they carry uncommitted changes")
	cmd.Flags().BoolVar(&cc.skipInstall, "skip-install", false, "Keep node_modules and skip the reinstall")
	cmd.Flags().DurationVar(&cc.installTimeout, "install-timeout", 0, "Reinstall timeout (0 = config value)")

	return cmd
}

func (cc *CleanCommand) run(cmd *cobra.Command, args []string) error {
	if !cc.dryRun && !cc.yes {
		return errConfirmationRequired
	}

	format, err := parseSummaryFormat(cc.format)
	if err != nil {
		return err
	}

	path := resolvePath(args, cc.path)
	silent := isSilent(cmd, cc.silent)
	progressWriter := cmd.ErrOrStderr()

	if cc.noColor {
		color.NoColor = true
	}

	cfg, err := config.LoadConfig(cc.configPath)
	if err != nil {
		return err
	}

	providers, err := cc.obsInit(commandObservabilityConfig(cfg, observability.ModeCLI, isVerbose(cmd)))
	if err != nil {
		return err
	}
	defer shutdownProviders(providers)

	progressf(silent, progressWriter, "scanning %s", path)

	summary, result, err := cc.exec(cmd.Context(), providers, cfg, CleanRunOptions{
		ScanRunOptions: ScanRunOptions{
			Path:        path,
			EntryPoints: cc.entryPoints,
			Workers:     cc.workers,
			NoCache:     cc.noCache,
		},
		DryRun:         cc.dryRun,
		Force:          cc.force,
		SkipInstall:    cc.skipInstall,
		InstallTimeout: cc.installTimeout,
	})

	if result != nil {
		progressf(silent, progressWriter, "scan completed: %d unused dependencies, %d unused files",
			len(result.UnusedDependencies), len(result.UnusedFiles))
	}

	// A failed run still renders whatever the cleaner managed to do.
	if summary != nil {
		renderErr := renderSummary(cmd.OutOrStdout(), summary, format, cc.dryRun)
		if err == nil {
			err = renderErr
		}
	}

	return err
}

// runClean is the production clean executor.
func runClean(
	ctx context.Context,
	providers observability.Providers,
	cfg *config.Config,
	opts CleanRunOptions,
) (*cleanup.Summary, *analysis.Result, error) {
	root, err := filepath.Abs(opts.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve path %s: %w", opts.Path, err)
	}

	env := newScanEnv(ctx, providers, cfg, root, opts.ScanRunOptions)
	defer env.free()

	result, err := env.scan(ctx, root)
	if err != nil {
		return nil, nil, err
	}

	timeout := cfg.Cleanup.InstallTimeout
	if opts.InstallTimeout > 0 {
		timeout = opts.InstallTimeout
	}

	cleaner := cleanup.New(cleanup.ExecRunner{Timeout: timeout}, env.checker, env.logger, cleanup.Options{
		Tracer:         env.tracer,
		PackageManager: cfg.Cleanup.PackageManager,
		DryRun:         opts.DryRun,
		Force:          opts.Force,
		SkipInstall:    opts.SkipInstall || cfg.Cleanup.SkipInstall,
		PruneEmptyDirs: cfg.Cleanup.PruneEmptyDirs,
	})

	summary, err := cleaner.Clean(ctx, result)

	return summary, result, err
}

// parseSummaryFormat accepts the subset of report formats a cleanup
// summary can be rendered in.
func parseSummaryFormat(name string) (report.Format, error) {
	format, err := report.ParseFormat(name)
	if err != nil {
		return "", err
	}

	if format == report.FormatHTML {
		return "", fmt.Errorf("%w: %q (summary formats: text, json, yaml)", report.ErrUnknownFormat, name)
	}

	return format, nil
}

func renderSummary(w io.Writer, summary *cleanup.Summary, format report.Format, dryRun bool) error {
	switch format {
	case report.FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")

		return encoder.Encode(summary)
	case report.FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(summaryYAMLIndent)

		if err := encoder.Encode(summary); err != nil {
			return fmt.Errorf("encode summary: %w", err)
		}

		return encoder.Close()
	default:
		return renderSummaryText(w, summary, dryRun)
	}
}

func renderSummaryText(w io.Writer, summary *cleanup.Summary, dryRun bool) error {
	if dryRun {
		color.New(color.FgYellow).Fprintln(w, "Dry run: nothing was modified.")
	}

	if len(summary.RemovedDependencies) == 0 && len(summary.RemovedFiles) == 0 {
		color.New(color.FgGreen).Fprintln(w, "Nothing to remove.")

		return nil
	}

	if len(summary.RemovedDependencies) > 0 {
		fmt.Fprintf(w, "Removed dependencies (%d): %s\n",
			len(summary.RemovedDependencies), strings.Join(summary.RemovedDependencies, ", "))
	}

	if len(summary.RemovedFiles) > 0 {
		fmt.Fprintf(w, "Removed files (%d): %s\n",
			len(summary.RemovedFiles), strings.Join(summary.RemovedFiles, ", "))
	}

	if len(summary.RemovedDirs) > 0 {
		fmt.Fprintf(w, "Removed directories (%d): %s\n",
			len(summary.RemovedDirs), strings.Join(summary.RemovedDirs, ", "))
	}

	for _, skipped := range summary.SkippedFiles {
		color.New(color.FgYellow).Fprintf(w, "Skipped %s (%s)\n", skipped.Path, skipped.Reason)
	}

	if summary.ManifestDiff != "" {
		fmt.Fprintf(w, "\nManifest diff:\n%s\n", summary.ManifestDiff)
	}

	color.New(color.FgYellow).Fprintf(w, "Freed: %s\n", humanize.IBytes(uint64(summary.FreedSpace)))

	return nil
}
