package lsp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/Sumatoshi-tech/deadwood/pkg/analysis"
	"github.com/Sumatoshi-tech/deadwood/pkg/gitsafe"
	"github.com/Sumatoshi-tech/deadwood/pkg/manifest"
)

// diagnosticSource tags every diagnostic published by this server.
const diagnosticSource = "deadwood"

// publishDiagnosticsMethod is the LSP notification for diagnostics.
const publishDiagnosticsMethod = "textDocument/publishDiagnostics"

// rescan runs a workspace scan and publishes the resulting diagnostics.
// Scan failures are logged; the previous diagnostics stay in place.
func (srv *Server) rescan(ctx *glsp.Context) {
	root := srv.projectRoot()
	if root == "" {
		return
	}

	result, err := srv.scanProject(context.Background(), root)
	if err != nil {
		srv.logger.Error("workspace scan failed",
			slog.String("root", root),
			slog.String("error", err.Error()),
		)

		return
	}

	srv.publish(ctx, srv.collectDiagnostics(result))
}

func (srv *Server) scanProject(ctx context.Context, root string) (*analysis.Result, error) {
	checker, err := gitsafe.Open(root)
	if err != nil && !errors.Is(err, gitsafe.ErrNotRepository) {
		srv.logger.Warn("git repository unavailable",
			slog.String("root", root),
			slog.String("error", err.Error()),
		)
	}

	if checker != nil {
		defer checker.Free()
	}

	svc, err := analysis.NewService(analysis.Options{
		Cache:   srv.cache,
		Checker: checker,
		Logger:  srv.logger,
		Config:  srv.scanCfg,
	})
	if err != nil {
		return nil, fmt.Errorf("create scanner: %w", err)
	}

	return svc.Scan(ctx, root)
}

// collectDiagnostics maps a scan result onto per-URI diagnostics:
// unused dependencies against the manifest, unused files against
// themselves, and parse failures as informational notes.
func (srv *Server) collectDiagnostics(result *analysis.Result) map[string][]protocol.Diagnostic {
	diags := make(map[string][]protocol.Diagnostic)

	if len(result.UnusedDependencies) > 0 {
		manifestPath := filepath.Join(result.Root, manifest.Name)
		uri := uriFromPath(manifestPath)
		text := srv.documentText(uri, manifestPath)

		for _, dep := range result.UnusedDependencies {
			diags[uri] = append(diags[uri], newDiagnostic(
				findNameRange(text, dep.Name),
				protocol.DiagnosticSeverityWarning,
				fmt.Sprintf("dependency %q is declared but never imported", dep.Name),
				[]protocol.DiagnosticTag{protocol.DiagnosticTagUnnecessary},
			))
		}
	}

	for _, file := range result.UnusedFiles {
		uri := uriFromPath(filepath.Join(result.Root, filepath.FromSlash(file.Path)))

		diags[uri] = append(diags[uri], newDiagnostic(
			protocol.Range{},
			protocol.DiagnosticSeverityWarning,
			"file is never referenced by any other source file",
			[]protocol.DiagnosticTag{protocol.DiagnosticTagUnnecessary},
		))
	}

	for _, skipped := range result.SkippedFiles {
		if skipped.Reason != analysis.SkipParseError {
			continue
		}

		uri := uriFromPath(filepath.Join(result.Root, filepath.FromSlash(skipped.Path)))

		message := "file could not be parsed and was excluded from the scan"
		if skipped.Detail != "" {
			message = fmt.Sprintf("%s: %s", message, skipped.Detail)
		}

		diags[uri] = append(diags[uri], newDiagnostic(
			protocol.Range{},
			protocol.DiagnosticSeverityInformation,
			message,
			nil,
		))
	}

	return diags
}

// publish sends the new diagnostics and clears URIs that were flagged
// by the previous scan but are clean now.
func (srv *Server) publish(ctx *glsp.Context, diags map[string][]protocol.Diagnostic) {
	srv.mu.Lock()
	previous := srv.current
	srv.current = diags
	srv.mu.Unlock()

	for uri := range previous {
		if _, still := diags[uri]; !still {
			notifyDiagnostics(ctx, uri, []protocol.Diagnostic{})
		}
	}

	for uri, fileDiags := range diags {
		notifyDiagnostics(ctx, uri, fileDiags)
	}
}

// documentText prefers the open editor buffer over the on-disk content.
func (srv *Server) documentText(uri, path string) string {
	if content, ok := srv.store.Get(uri); ok {
		return content
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}

	return string(data)
}

func notifyDiagnostics(ctx *glsp.Context, uri string, diags []protocol.Diagnostic) {
	ctx.Notify(publishDiagnosticsMethod, &protocol.PublishDiagnosticsParams{
		URI:         protocol.DocumentUri(uri),
		Diagnostics: diags,
	})
}

func newDiagnostic(
	rng protocol.Range,
	severity protocol.DiagnosticSeverity,
	message string,
	tags []protocol.DiagnosticTag,
) protocol.Diagnostic {
	source := diagnosticSource

	return protocol.Diagnostic{
		Range:    rng,
		Severity: &severity,
		Source:   &source,
		Message:  message,
		Tags:     tags,
	}
}

// findNameRange locates the quoted dependency name inside manifest
// text. A zero range points at the start of the document when the name
// is not found.
func findNameRange(text, name string) protocol.Range {
	needle := `"` + name + `"`

	for i, line := range strings.Split(text, "\n") {
		col := strings.Index(line, needle)
		if col < 0 {
			continue
		}

		return protocol.Range{
			Start: protocol.Position{Line: protocol.UInteger(i), Character: protocol.UInteger(col)},
			End:   protocol.Position{Line: protocol.UInteger(i), Character: protocol.UInteger(col + len(needle))},
		}
	}

	return protocol.Range{}
}

// pathFromURI converts a file URI into a filesystem path. Non-file
// URIs yield an empty path.
func pathFromURI(uri string) string {
	parsed, err := url.Parse(uri)
	if err != nil || parsed.Scheme != "file" {
		return ""
	}

	return parsed.Path
}

// uriFromPath converts an absolute filesystem path into a file URI.
func uriFromPath(path string) string {
	parsed := url.URL{Scheme: "file", Path: path}

	return parsed.String()
}
