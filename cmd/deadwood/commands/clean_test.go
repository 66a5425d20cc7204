package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/deadwood/internal/report"
	"github.com/Sumatoshi-tech/deadwood/pkg/analysis"
	"github.com/Sumatoshi-tech/deadwood/pkg/cleanup"
	"github.com/Sumatoshi-tech/deadwood/pkg/config"
	"github.com/Sumatoshi-tech/deadwood/pkg/observability"
)

func testSummary() *cleanup.Summary {
	return &cleanup.Summary{
		RemovedDependencies: []string{"lodash"},
		RemovedFiles:        []string{"src/orphan.js"},
		RemovedDirs:         []string{},
		FreedSpace:          28,
	}
}

func TestCleanCommand_RequiresConfirmation(t *testing.T) {
	t.Parallel()

	command := newCleanCommandWithDeps(
		func(_ context.Context, _ observability.Providers, _ *config.Config, _ CleanRunOptions) (*cleanup.Summary, *analysis.Result, error) {
			t.Fatal("executor should not be called")

			return nil, nil, nil
		},
		noopObservabilityInit,
	)

	command.SetOut(io.Discard)
	command.SetErr(io.Discard)
	command.SetArgs([]string{})

	err := command.Execute()
	require.ErrorIs(t, err, errConfirmationRequired)
}

func TestCleanCommand_ForwardsCleanupFlags(t *testing.T) {
	t.Parallel()

	var seen CleanRunOptions

	command := newCleanCommandWithDeps(
		func(_ context.Context, _ observability.Providers, _ *config.Config, opts CleanRunOptions) (*cleanup.Summary, *analysis.Result, error) {
			seen = opts

			return testSummary(), testResult(), nil
		},
		noopObservabilityInit,
	)

	command.SetOut(io.Discard)
	command.SetErr(io.Discard)
	command.SetArgs([]string{
		"--dry-run",
		"--silent",
		"--format", "json",
		"--force",
		"--skip-install",
		"--install-timeout", "30s",
	})

	require.NoError(t, command.Execute())
	require.True(t, seen.DryRun)
	require.True(t, seen.Force)
	require.True(t, seen.SkipInstall)
	require.Equal(t, 30*time.Second, seen.InstallTimeout)
}

func TestCleanCommand_JSONSummary(t *testing.T) {
	t.Parallel()

	command := newCleanCommandWithDeps(
		func(_ context.Context, _ observability.Providers, _ *config.Config, _ CleanRunOptions) (*cleanup.Summary, *analysis.Result, error) {
			return testSummary(), testResult(), nil
		},
		noopObservabilityInit,
	)

	var out bytes.Buffer
	command.SetOut(&out)
	command.SetErr(io.Discard)
	command.SetArgs([]string{"--dry-run", "--silent", "--format", "json"})

	require.NoError(t, command.Execute())

	var summary cleanup.Summary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	require.Equal(t, []string{"lodash"}, summary.RemovedDependencies)
	require.Equal(t, int64(28), summary.FreedSpace)
}

func TestCleanCommand_YAMLSummary(t *testing.T) {
	t.Parallel()

	command := newCleanCommandWithDeps(
		func(_ context.Context, _ observability.Providers, _ *config.Config, _ CleanRunOptions) (*cleanup.Summary, *analysis.Result, error) {
			return testSummary(), testResult(), nil
		},
		noopObservabilityInit,
	)

	var out bytes.Buffer
	command.SetOut(&out)
	command.SetErr(io.Discard)
	command.SetArgs([]string{"--dry-run", "--silent", "--format", "yaml"})

	require.NoError(t, command.Execute())
	require.Contains(t, out.String(), "removedDependencies:")
	require.Contains(t, out.String(), "- lodash")
}

func TestCleanCommand_TextSummary(t *testing.T) {
	t.Parallel()

	summary := testSummary()
	summary.SkippedFiles = []cleanup.SkippedFile{{Path: "src/keep.js", Reason: cleanup.SkipUncommitted}}

	command := newCleanCommandWithDeps(
		func(_ context.Context, _ observability.Providers, _ *config.Config, _ CleanRunOptions) (*cleanup.Summary, *analysis.Result, error) {
			return summary, testResult(), nil
		},
		noopObservabilityInit,
	)

	var out bytes.Buffer
	command.SetOut(&out)
	command.SetErr(io.Discard)
	command.SetArgs([]string{"--dry-run", "--silent", "--no-color"})

	require.NoError(t, command.Execute())
	require.Contains(t, out.String(), "Dry run: nothing was modified.")
	require.Contains(t, out.String(), "Removed dependencies (1): lodash")
	require.Contains(t, out.String(), "Removed files (1): src/orphan.js")
	require.Contains(t, out.String(), "Skipped src/keep.js (uncommitted-changes)")
	require.Contains(t, out.String(), "Freed:")
}

func TestCleanCommand_HTMLSummaryRejected(t *testing.T) {
	t.Parallel()

	command := newCleanCommandWithDeps(
		func(_ context.Context, _ observability.Providers, _ *config.Config, _ CleanRunOptions) (*cleanup.Summary, *analysis.Result, error) {
			t.Fatal("executor should not be called")

			return nil, nil, nil
		},
		noopObservabilityInit,
	)

	command.SetOut(io.Discard)
	command.SetErr(io.Discard)
	command.SetArgs([]string{"--dry-run", "--format", "html"})

	err := command.Execute()
	require.ErrorIs(t, err, report.ErrUnknownFormat)
}

func TestCleanCommand_RendersPartialSummaryOnError(t *testing.T) {
	t.Parallel()

	command := newCleanCommandWithDeps(
		func(_ context.Context, _ observability.Providers, _ *config.Config, _ CleanRunOptions) (*cleanup.Summary, *analysis.Result, error) {
			return testSummary(), testResult(), errors.New("install failed")
		},
		noopObservabilityInit,
	)

	var out bytes.Buffer
	command.SetOut(&out)
	command.SetErr(io.Discard)
	command.SetArgs([]string{"--yes", "--silent", "--format", "json"})

	err := command.Execute()
	require.ErrorContains(t, err, "install failed")
	require.Contains(t, out.String(), "src/orphan.js")
}

func TestCleanCommand_EndToEnd_DryRun(t *testing.T) {
	t.Parallel()

	root := writeProject(t)

	command := NewCleanCommand()

	var out bytes.Buffer
	command.SetOut(&out)
	command.SetErr(io.Discard)
	command.SetArgs([]string{root, "--dry-run", "--silent", "--format", "json", "--no-cache"})

	require.NoError(t, command.Execute())

	var summary cleanup.Summary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	require.Equal(t, []string{"lodash"}, summary.RemovedDependencies)
	require.Equal(t, []string{"src/orphan.js"}, summary.RemovedFiles)
	require.Equal(t, int64(len(orphanSource)), summary.FreedSpace)

	// Nothing was touched.
	require.FileExists(t, filepath.Join(root, "src", "orphan.js"))

	data, err := os.ReadFile(filepath.Join(root, "package.json"))
	require.NoError(t, err)
	require.Contains(t, string(data), "lodash")
}

func TestCleanCommand_EndToEnd_Yes(t *testing.T) {
	t.Parallel()

	root := writeProject(t)

	command := NewCleanCommand()

	var out bytes.Buffer
	command.SetOut(&out)
	command.SetErr(io.Discard)
	command.SetArgs([]string{root, "--yes", "--skip-install", "--silent", "--format", "json", "--no-cache"})

	require.NoError(t, command.Execute())
	require.NoFileExists(t, filepath.Join(root, "src", "orphan.js"))
	require.FileExists(t, filepath.Join(root, "src", "app.js"))

	data, err := os.ReadFile(filepath.Join(root, "package.json"))
	require.NoError(t, err)
	require.NotContains(t, string(data), "lodash")
	require.Contains(t, string(data), "chalk")
}
