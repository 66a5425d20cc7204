package report_test

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/deadwood/internal/report"
	"github.com/Sumatoshi-tech/deadwood/pkg/analysis"
)

func sampleResult() *analysis.Result {
	return &analysis.Result{
		Project: "webshop",
		Root:    "/tmp/webshop",
		UnusedDependencies: []analysis.UnusedDependency{
			{Name: "@scope/unused", Version: "^2.0.0", SizeBytes: 2048},
			{Name: "lodash", Version: "^4.17.21", SizeBytes: 1400000},
		},
		UnusedFiles: []analysis.UnusedFile{
			{Path: "src/legacy/old-cart.js", LastModified: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), SizeBytes: 4096},
		},
		SkippedFiles: []analysis.SkippedFile{
			{Path: "src/broken.js", Reason: analysis.SkipParseError},
		},
		Stats: analysis.Stats{
			FilesScanned:         12,
			FilesSkipped:         1,
			ParseFailures:        1,
			DependenciesDeclared: 8,
			ElapsedSeconds:       0.42,
		},
	}
}

func cleanResult() *analysis.Result {
	return &analysis.Result{
		Project:            "webshop",
		Root:               "/tmp/webshop",
		UnusedDependencies: []analysis.UnusedDependency{},
		UnusedFiles:        []analysis.UnusedFile{},
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"text", "json", "yaml", "html"} {
		format, err := report.ParseFormat(name)
		require.NoError(t, err)
		assert.Equal(t, report.Format(name), format)
	}

	_, err := report.ParseFormat("xml")
	require.ErrorIs(t, err, report.ErrUnknownFormat)
}

func TestRenderText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, report.Render(&buf, sampleResult(), report.FormatText))

	out := buf.String()
	assert.Contains(t, out, "webshop")
	assert.Contains(t, out, "Unused dependencies (2)")
	assert.Contains(t, out, "lodash")
	assert.Contains(t, out, "@scope/unused")
	assert.Contains(t, out, "Unused files (1)")
	assert.Contains(t, out, "src/legacy/old-cart.js")
	assert.Contains(t, out, "Skipped files (1)")
	assert.Contains(t, out, "parse-error")
	assert.Contains(t, out, "reclaimable space")
}

func TestRenderText_Clean(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, report.Render(&buf, cleanResult(), report.FormatText))

	assert.Contains(t, buf.String(), "No unused dependencies or files found.")
}

func TestRenderJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, report.Render(&buf, sampleResult(), report.FormatJSON))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	assert.Contains(t, decoded, "unusedDependencies")
	assert.Contains(t, decoded, "unusedFiles")
	assert.Contains(t, decoded, "skippedFiles")

	deps, ok := decoded["unusedDependencies"].([]any)
	require.True(t, ok)
	assert.Len(t, deps, 2)
}

func TestRenderYAML(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, report.Render(&buf, sampleResult(), report.FormatYAML))

	out := buf.String()
	assert.Contains(t, out, "unusedDependencies:")
	assert.Contains(t, out, "name: lodash")
	assert.Contains(t, out, "unusedFiles:")
}

func TestRenderHTML(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, report.Render(&buf, sampleResult(), report.FormatHTML))

	out := buf.String()
	assert.Contains(t, out, "echarts.min.js")
	assert.Contains(t, out, "webshop")
	assert.Contains(t, out, "Unused dependency footprint")
	assert.Contains(t, out, "Unused files by size")
	assert.Contains(t, out, "lodash")
}

func TestRenderHTML_Clean(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, report.Render(&buf, cleanResult(), report.FormatHTML))

	out := buf.String()
	assert.Contains(t, out, "No unused dependencies or files found.")
	assert.NotContains(t, out, "Unused dependency footprint")
}

func TestRenderUnknownFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := report.Render(&buf, sampleResult(), report.Format("csv"))
	require.ErrorIs(t, err, report.ErrUnknownFormat)
}
