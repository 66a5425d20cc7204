package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/deadwood/pkg/cleanup"
)

// handleCleanPreview processes deadwood_clean_preview tool calls. The
// preview runs a scan and a dry-run cleanup, so the summary reflects
// exactly what a real cleanup would do, including files kept for
// uncommitted changes.
func (s *Server) handleCleanPreview(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input CleanPreviewInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validateProjectPath(input.ProjectPath)
	if err != nil {
		return errorResult(err)
	}

	checker := s.openChecker(ctx, input.ProjectPath)
	if checker != nil {
		defer checker.Free()
	}

	result, err := s.scanProject(ctx, checker, input.ProjectPath, nil)
	if err != nil {
		return errorResult(err)
	}

	cleaner := cleanup.New(cleanup.ExecRunner{}, checker, s.logger, cleanup.Options{DryRun: true, Tracer: s.tracer})

	summary, err := cleaner.Clean(ctx, result)
	if err != nil {
		return errorResult(fmt.Errorf("preview cleanup: %w", err))
	}

	return jsonResult(summary)
}
