// Package cleanup removes what a scan flagged: it prunes unused
// dependencies from the manifest, deletes unused files, prunes
// directories the deletions emptied, and regenerates node_modules and
// the lockfile through the project's package manager. Deletions are
// best effort; files with uncommitted changes are kept unless forced.
package cleanup

import (
	"context"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/deadwood/pkg/analysis"
	"github.com/Sumatoshi-tech/deadwood/pkg/gitsafe"
	"github.com/Sumatoshi-tech/deadwood/pkg/manifest"
)

const tracerName = "github.com/Sumatoshi-tech/deadwood/pkg/cleanup"

// Skip reasons for files the cleaner refused to delete.
const (
	SkipUncommitted = "uncommitted-changes"
	SkipDeleteError = "delete-error"
)

// Options configures a Cleaner.
type Options struct {
	// Tracer creates the cleanup span. Nil selects the global provider.
	Tracer trace.Tracer

	// PackageManager selects the reinstall tool. "auto" or empty
	// detects from the lockfile.
	PackageManager string

	// DryRun previews every action without touching the filesystem or
	// spawning processes.
	DryRun bool

	// Force deletes files even when they carry uncommitted changes.
	Force bool

	// SkipInstall leaves node_modules in place and skips the reinstall.
	SkipInstall bool

	// PruneEmptyDirs removes directories the deletions emptied.
	PruneEmptyDirs bool
}

// SkippedFile is a flagged file the cleaner kept.
type SkippedFile struct {
	Path   string `json:"path" yaml:"path"`
	Reason string `json:"reason" yaml:"reason"`
}

// Summary reports what a cleanup run changed. FreedSpace counts only
// the bytes of files actually deleted; installed dependency sizes are
// reported by the scan but reclaimed by the reinstall, not counted
// here.
type Summary struct {
	// RemovedDependencies lists manifest entries pruned, sorted.
	RemovedDependencies []string `json:"removedDependencies" yaml:"removedDependencies"`

	// RemovedFiles lists deleted files, project-relative.
	RemovedFiles []string `json:"removedFiles" yaml:"removedFiles"`

	// RemovedDirs lists pruned directories, plus node_modules when it
	// was regenerated.
	RemovedDirs []string `json:"removedDirs" yaml:"removedDirs"`

	// SkippedFiles lists flagged files the cleaner kept.
	SkippedFiles []SkippedFile `json:"skippedFiles,omitempty" yaml:"skippedFiles,omitempty"`

	// ManifestDiff previews the manifest rewrite in dry-run mode.
	ManifestDiff string `json:"manifestDiff,omitempty" yaml:"manifestDiff,omitempty"`

	// FreedSpace sums the byte sizes of deleted files.
	FreedSpace int64 `json:"freedSpace" yaml:"freedSpace"`

	// InstallOutput is the package manager's combined output.
	InstallOutput string `json:"installOutput,omitempty" yaml:"installOutput,omitempty"`
}

// Cleaner applies scan results to a project tree.
type Cleaner struct {
	runner  Runner
	checker *gitsafe.Checker
	logger  *slog.Logger
	tracer  trace.Tracer
	opts    Options
}

// New creates a Cleaner. The checker may be nil when the project is not
// a git repository; uncommitted-change protection is then unavailable.
func New(runner Runner, checker *gitsafe.Checker, logger *slog.Logger, opts Options) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &Cleaner{
		runner:  runner,
		checker: checker,
		logger:  logger,
		tracer:  tracer,
		opts:    opts,
	}
}

// Clean applies the result to the project at result.Root: manifest
// rewrite, file deletion, empty-directory pruning, node_modules
// regeneration. Per-file failures are recorded and skipped; manifest
// and install failures abort with the partial summary.
func (c *Cleaner) Clean(ctx context.Context, result *analysis.Result) (*Summary, error) {
	ctx, span := c.tracer.Start(ctx, "cleanup",
		trace.WithAttributes(
			attribute.String("project.root", result.Root),
			attribute.Bool("cleanup.dry_run", c.opts.DryRun),
		))
	defer span.End()

	summary := &Summary{
		RemovedDependencies: []string{},
		RemovedFiles:        []string{},
		RemovedDirs:         []string{},
	}

	if result.Clean() {
		return summary, nil
	}

	if err := c.pruneManifest(result, summary); err != nil {
		span.RecordError(err)

		return summary, err
	}

	c.removeFiles(ctx, result, summary)

	if c.opts.PruneEmptyDirs && !c.opts.DryRun {
		c.pruneEmptyDirs(result.Root, summary)
	}

	if err := c.reinstall(ctx, result, summary); err != nil {
		span.RecordError(err)

		return summary, err
	}

	slices.Sort(summary.RemovedDirs)

	span.SetAttributes(
		attribute.Int("cleanup.removed_dependencies", len(summary.RemovedDependencies)),
		attribute.Int("cleanup.removed_files", len(summary.RemovedFiles)),
		attribute.Int64("cleanup.freed_bytes", summary.FreedSpace),
	)

	return summary, nil
}

func (c *Cleaner) pruneManifest(result *analysis.Result, summary *Summary) error {
	if len(result.UnusedDependencies) == 0 {
		return nil
	}

	mf, err := manifest.ReadProject(result.Root)
	if err != nil {
		return err
	}

	before, err := mf.Encode()
	if err != nil {
		return err
	}

	names := make([]string, 0, len(result.UnusedDependencies))
	for _, dep := range result.UnusedDependencies {
		names = append(names, dep.Name)
	}

	summary.RemovedDependencies = mf.Prune(names)

	if c.opts.DryRun {
		after, encErr := mf.Encode()
		if encErr != nil {
			return encErr
		}

		summary.ManifestDiff = manifest.Diff(string(before), string(after))

		return nil
	}

	return mf.Write()
}

func (c *Cleaner) removeFiles(ctx context.Context, result *analysis.Result, summary *Summary) {
	for _, file := range result.UnusedFiles {
		if reason := c.skipReason(file.Path); reason != "" {
			summary.SkippedFiles = append(summary.SkippedFiles, SkippedFile{Path: file.Path, Reason: reason})

			c.logger.WarnContext(ctx, "keeping flagged file",
				slog.String("file", file.Path),
				slog.String("reason", reason),
			)

			continue
		}

		if !c.opts.DryRun {
			abs := filepath.Join(result.Root, filepath.FromSlash(file.Path))
			if err := os.Remove(abs); err != nil {
				summary.SkippedFiles = append(summary.SkippedFiles, SkippedFile{Path: file.Path, Reason: SkipDeleteError})

				c.logger.WarnContext(ctx, "delete failed",
					slog.String("file", file.Path),
					slog.String("error", err.Error()),
				)

				continue
			}
		}

		summary.RemovedFiles = append(summary.RemovedFiles, file.Path)
		summary.FreedSpace += file.SizeBytes
	}
}

// skipReason returns why path must be kept, or empty when it is safe to
// delete.
func (c *Cleaner) skipReason(rel string) string {
	if c.opts.Force || c.checker == nil {
		return ""
	}

	dirty, err := c.checker.Uncommitted(rel)
	if err != nil {
		// Unknown safety means keep.
		return SkipDeleteError
	}

	if dirty {
		return SkipUncommitted
	}

	return ""
}

// pruneEmptyDirs ascends from each deleted file's directory toward the
// root, removing directories as they empty out.
func (c *Cleaner) pruneEmptyDirs(root string, summary *Summary) {
	for _, rel := range summary.RemovedFiles {
		for dir := path.Dir(rel); dir != "." && dir != "/"; dir = path.Dir(dir) {
			abs := filepath.Join(root, filepath.FromSlash(dir))

			entries, err := os.ReadDir(abs)
			if err != nil || len(entries) > 0 {
				break
			}

			if err := os.Remove(abs); err != nil {
				break
			}

			summary.RemovedDirs = append(summary.RemovedDirs, dir)
		}
	}
}

func (c *Cleaner) reinstall(ctx context.Context, result *analysis.Result, summary *Summary) error {
	if c.opts.SkipInstall || c.opts.DryRun {
		return nil
	}

	modules := filepath.Join(result.Root, analysis.NodeModulesDir)
	if _, err := os.Stat(modules); err == nil {
		if err := os.RemoveAll(modules); err != nil {
			return err
		}

		summary.RemovedDirs = append(summary.RemovedDirs, analysis.NodeModulesDir)
	}

	pm := ResolvePackageManager(c.opts.PackageManager, result.Root)

	c.logger.InfoContext(ctx, "reinstalling dependencies", slog.String("package_manager", string(pm)))

	out, err := c.runner.Run(ctx, result.Root, string(pm), "install")
	summary.InstallOutput = string(out)

	if err != nil {
		return err
	}

	return nil
}
