package analysis_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/deadwood/pkg/analysis"
	"github.com/Sumatoshi-tech/deadwood/pkg/config"
	"github.com/Sumatoshi-tech/deadwood/pkg/refcache"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()

	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func writeManifest(t *testing.T, root, content string) {
	t.Helper()

	writeFile(t, root, "package.json", content)
}

func scanConfig() config.ScanConfig {
	return config.ScanConfig{
		ExcludeDirs:   []string{"node_modules", "dist", "build", "coverage"},
		SkipVendored:  true,
		SkipGenerated: true,
	}
}

func newService(t *testing.T, cfg config.ScanConfig) *analysis.Service {
	t.Helper()

	svc, err := analysis.NewService(analysis.Options{Config: cfg})
	require.NoError(t, err)

	return svc
}

func scan(t *testing.T, svc *analysis.Service, root string) *analysis.Result {
	t.Helper()

	result, err := svc.Scan(context.Background(), root)
	require.NoError(t, err)

	return result
}

func depNames(result *analysis.Result) []string {
	names := make([]string, 0, len(result.UnusedDependencies))
	for _, dep := range result.UnusedDependencies {
		names = append(names, dep.Name)
	}

	return names
}

func filePaths(result *analysis.Result) []string {
	paths := make([]string, 0, len(result.UnusedFiles))
	for _, file := range result.UnusedFiles {
		paths = append(paths, file.Path)
	}

	return paths
}

func TestScan_UnusedDependencyAndFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeManifest(t, root, `{
  "name": "fixture",
  "dependencies": {
    "chalk": "^5.3.0",
    "lodash": "^4.17.21"
  }
}`)
	writeFile(t, root, "a.js", "import chalk from 'chalk';\nconsole.log(chalk.red('hi'));\n")
	writeFile(t, root, "b.js", "export const dead = 1;\n")

	result := scan(t, newService(t, scanConfig()), root)

	assert.Equal(t, "fixture", result.Project)
	assert.Equal(t, []string{"lodash"}, depNames(result))
	assert.Equal(t, []string{"b.js"}, filePaths(result))
	assert.Equal(t, "^4.17.21", result.UnusedDependencies[0].Version)
	assert.False(t, result.Clean())
}

func TestScan_MutualReferencesKeepBothFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeManifest(t, root, `{"name": "fixture"}`)
	writeFile(t, root, "a.js", "import { b } from './b.js';\nexport const a = b + 1;\n")
	writeFile(t, root, "b.js", "import { a } from './a.js';\nexport const b = 2;\n")

	result := scan(t, newService(t, scanConfig()), root)

	assert.Empty(t, result.UnusedFiles)
	assert.True(t, result.Clean())
}

func TestScan_ScopedPackageName(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeManifest(t, root, `{
  "name": "fixture",
  "dependencies": {
    "@scope/pkg": "^1.0.0",
    "@scope/other": "^1.0.0"
  }
}`)
	writeFile(t, root, "index.js", "import pkg from '@scope/pkg/helpers';\nexport default pkg;\n")

	result := scan(t, newService(t, scanConfig()), root)

	assert.Equal(t, []string{"@scope/other"}, depNames(result))
}

func TestScan_SyntaxErrorFileIsSkippedNotUnused(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeManifest(t, root, `{"name": "fixture", "dependencies": {"left-pad": "^1.3.0"}}`)
	writeFile(t, root, "broken.js", "function {{{ nope\n")
	writeFile(t, root, "main.js", "import './other.js';\n")
	writeFile(t, root, "other.js", "export {};\n")

	result := scan(t, newService(t, scanConfig()), root)

	assert.NotContains(t, filePaths(result), "broken.js")

	require.Len(t, result.SkippedFiles, 1)
	assert.Equal(t, "broken.js", result.SkippedFiles[0].Path)
	assert.Equal(t, analysis.SkipParseError, result.SkippedFiles[0].Reason)
	assert.Equal(t, 1, result.Stats.ParseFailures)

	// The broken file contributes no references, so the package it
	// might have imported still counts as unused.
	assert.Equal(t, []string{"left-pad"}, depNames(result))
}

func TestScan_ReferenceToSkippedFileStillResolves(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeManifest(t, root, `{"name": "fixture"}`)
	writeFile(t, root, "main.js", "import './broken.js';\n")
	writeFile(t, root, "broken.js", "const = = =\n")

	result := scan(t, newService(t, scanConfig()), root)

	// broken.js is referenced, so even its unknown status aside it must
	// not be flagged; main.js is a presumed entry point.
	assert.Empty(t, result.UnusedFiles)
	require.Len(t, result.SkippedFiles, 1)
	assert.Equal(t, "broken.js", result.SkippedFiles[0].Path)
}

func TestScan_EntryPointPresumption(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeManifest(t, root, `{"name": "fixture"}`)
	writeFile(t, root, "index.js", "import { helper } from './src/util';\nhelper();\n")
	writeFile(t, root, "src/util.js", "export function helper() {}\n")

	result := scan(t, newService(t, scanConfig()), root)

	// index.js imports but is imported by nothing: presumed entry point.
	// src/util.js is a resolved target. Neither is unused.
	assert.Empty(t, result.UnusedFiles)
}

func TestScan_ConfiguredEntryPointNeverFlagged(t *testing.T) {
	t.Parallel()

	cfg := scanConfig()
	cfg.EntryPoints = []string{"scripts/migrate.js"}

	root := t.TempDir()
	writeManifest(t, root, `{"name": "fixture"}`)
	writeFile(t, root, "scripts/migrate.js", "console.log('standalone');\n")
	writeFile(t, root, "scripts/orphan.js", "console.log('orphan');\n")

	result := scan(t, newService(t, cfg), root)

	assert.Equal(t, []string{"scripts/orphan.js"}, filePaths(result))
}

func TestScan_RoundTripCleanProject(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeManifest(t, root, `{"name": "fixture", "dependencies": {"chalk": "^5.3.0"}}`)
	writeFile(t, root, "index.js", "import chalk from 'chalk';\nimport { helper } from './util.js';\nhelper(chalk);\n")
	writeFile(t, root, "util.js", "import './index.js';\nexport function helper() {}\n")

	result := scan(t, newService(t, scanConfig()), root)

	assert.Empty(t, result.UnusedDependencies)
	assert.Empty(t, result.UnusedFiles)
	assert.True(t, result.Clean())
	assert.Zero(t, result.TotalUnusedBytes())
}

func TestScan_Idempotent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeManifest(t, root, `{"name": "fixture", "dependencies": {"lodash": "^4.17.21"}}`)
	writeFile(t, root, "a.js", "import './b.js';\n")
	writeFile(t, root, "b.js", "export {};\n")
	writeFile(t, root, "c.js", "export const orphan = true;\n")

	svc := newService(t, scanConfig())

	first := scan(t, svc, root)
	second := scan(t, svc, root)

	assert.Equal(t, first.UnusedDependencies, second.UnusedDependencies)
	assert.Equal(t, first.UnusedFiles, second.UnusedFiles)
	assert.Equal(t, first.SkippedFiles, second.SkippedFiles)
}

func TestScan_RequireAndDynamicImportCount(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeManifest(t, root, `{
  "name": "fixture",
  "dependencies": {"express": "^4.19.0", "dayjs": "^1.11.0"}
}`)
	writeFile(t, root, "server.cjs", "const express = require('express');\nmodule.exports = express();\n")
	writeFile(t, root, "lazy.js", "export async function load() {\n  return import('dayjs');\n}\n")

	result := scan(t, newService(t, scanConfig()), root)

	assert.Empty(t, result.UnusedDependencies)
}

func TestScan_ExcludedDirsAreInvisible(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeManifest(t, root, `{"name": "fixture"}`)
	writeFile(t, root, "dist/bundle.js", "export const built = 1;\n")
	writeFile(t, root, "node_modules/chalk/index.js", "module.exports = {};\n")
	writeFile(t, root, ".hidden/tool.js", "export const hidden = 1;\n")

	result := scan(t, newService(t, scanConfig()), root)

	assert.Empty(t, result.UnusedFiles)
	assert.Empty(t, result.SkippedFiles)
	assert.Zero(t, result.Stats.FilesScanned)
}

func TestScan_OversizedFileSkipped(t *testing.T) {
	t.Parallel()

	cfg := scanConfig()
	cfg.MaxFileSize = "10B"

	root := t.TempDir()
	writeManifest(t, root, `{"name": "fixture"}`)
	writeFile(t, root, "big.js", "export const padding = 'xxxxxxxxxxxxxxxxxxxxxxxx';\n")

	result := scan(t, newService(t, cfg), root)

	require.Len(t, result.SkippedFiles, 1)
	assert.Equal(t, "big.js", result.SkippedFiles[0].Path)
	assert.Equal(t, analysis.SkipTooLarge, result.SkippedFiles[0].Reason)
	assert.Empty(t, result.UnusedFiles)
}

func TestScan_GeneratedFileSkipped(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeManifest(t, root, `{"name": "fixture"}`)
	writeFile(t, root, "api.gen.js", "// @generated by protoc-gen-es\nexport const schema = {};\n")

	result := scan(t, newService(t, scanConfig()), root)

	require.Len(t, result.SkippedFiles, 1)
	assert.Equal(t, analysis.SkipGenerated, result.SkippedFiles[0].Reason)
	assert.Empty(t, result.UnusedFiles)
}

func TestScan_GeneratedFileKeptWhenCheckDisabled(t *testing.T) {
	t.Parallel()

	cfg := scanConfig()
	cfg.SkipGenerated = false

	root := t.TempDir()
	writeManifest(t, root, `{"name": "fixture"}`)
	writeFile(t, root, "api.gen.js", "// @generated by protoc-gen-es\nexport const schema = {};\n")

	result := scan(t, newService(t, cfg), root)

	assert.Empty(t, result.SkippedFiles)
	assert.Equal(t, []string{"api.gen.js"}, filePaths(result))
}

func TestScan_MissingManifestFails(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "index.js", "export {};\n")

	svc := newService(t, scanConfig())

	_, err := svc.Scan(context.Background(), root)
	require.Error(t, err)
}

func TestScan_UnusedDependencySize(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeManifest(t, root, `{"name": "fixture", "dependencies": {"lodash": "^4.17.21"}}`)
	writeFile(t, root, "node_modules/lodash/index.js", "module.exports = {};\n")
	writeFile(t, root, "node_modules/lodash/fp.js", "module.exports = {};\n")

	installed := int64(len("module.exports = {};\n") * 2)

	result := scan(t, newService(t, scanConfig()), root)

	require.Len(t, result.UnusedDependencies, 1)
	assert.Equal(t, installed, result.UnusedDependencies[0].SizeBytes)
	assert.Equal(t, installed, result.TotalUnusedBytes())
}

func TestScan_CacheServesSecondRun(t *testing.T) {
	t.Parallel()

	cache, err := refcache.New(t.TempDir(), 0)
	require.NoError(t, err)

	svc, err := analysis.NewService(analysis.Options{
		Config: scanConfig(),
		Cache:  cache,
	})
	require.NoError(t, err)

	root := t.TempDir()
	writeManifest(t, root, `{"name": "fixture", "dependencies": {"chalk": "^5.3.0"}}`)
	writeFile(t, root, "index.js", "import chalk from 'chalk';\nexport default chalk;\n")

	first := scan(t, svc, root)
	second := scan(t, svc, root)

	assert.Equal(t, int64(0), first.Stats.CacheHits)
	assert.Equal(t, int64(1), first.Stats.CacheMisses)
	assert.Equal(t, int64(1), second.Stats.CacheHits)
	assert.Equal(t, first.UnusedDependencies, second.UnusedDependencies)
	assert.Equal(t, first.UnusedFiles, second.UnusedFiles)
}

func TestScan_ResultJSONFieldNames(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeManifest(t, root, `{"name": "fixture", "dependencies": {"lodash": "^4.17.21"}}`)
	writeFile(t, root, "orphan.js", "export const orphan = 1;\n")

	result := scan(t, newService(t, scanConfig()), root)

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Contains(t, decoded, "unusedDependencies")
	assert.Contains(t, decoded, "unusedFiles")

	fileList, ok := decoded["unusedFiles"].([]any)
	require.True(t, ok)
	require.Len(t, fileList, 1)

	entry, ok := fileList[0].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, entry, "path")
	assert.Contains(t, entry, "lastModifiedISO8601")
	assert.Contains(t, entry, "sizeBytes")
}

func TestScan_StatsAccounting(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeManifest(t, root, `{
  "name": "fixture",
  "dependencies": {"chalk": "^5.3.0"},
  "devDependencies": {"vitest": "^2.0.0"}
}`)
	writeFile(t, root, "a.js", "import chalk from 'chalk';\nexport default chalk;\n")
	writeFile(t, root, "broken.js", "class {{{\n")

	result := scan(t, newService(t, scanConfig()), root)

	assert.Equal(t, 1, result.Stats.FilesScanned)
	assert.Equal(t, 1, result.Stats.FilesSkipped)
	assert.Equal(t, 1, result.Stats.ParseFailures)
	assert.Equal(t, 2, result.Stats.DependenciesDeclared)
	assert.Positive(t, result.Stats.BytesAnalyzed)
	assert.Len(t, result.Stats.FileDurations, 1)
}

func TestScan_EmitsPhaseSpans(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeManifest(t, root, `{"name": "fixture", "dependencies": {"chalk": "^5.3.0"}}`)
	writeFile(t, root, "index.js", "import chalk from 'chalk';\nexport default chalk;\n")

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	svc, err := analysis.NewService(analysis.Options{
		Tracer: tp.Tracer("test"),
		Config: scanConfig(),
	})
	require.NoError(t, err)

	scan(t, svc, root)

	names := make(map[string]bool)
	for _, span := range exporter.GetSpans() {
		names[span.Name] = true
	}

	for _, want := range []string{"scan", "scan.discover", "scan.extract", "scan.classify"} {
		assert.True(t, names[want], "missing span %q", want)
	}
}

func TestDirSize(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "12345")
	writeFile(t, dir, "nested/b.txt", "1234567890")

	assert.Equal(t, int64(15), analysis.DirSize(dir))
	assert.Zero(t, analysis.DirSize(filepath.Join(dir, "missing")))
}
