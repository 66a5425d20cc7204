package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/deadwood/pkg/analysis"
	"github.com/Sumatoshi-tech/deadwood/pkg/gitsafe"
)

// handleScan processes deadwood_scan tool calls.
func (s *Server) handleScan(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input ScanInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validateProjectPath(input.ProjectPath)
	if err != nil {
		return errorResult(err)
	}

	checker := s.openChecker(ctx, input.ProjectPath)
	if checker != nil {
		defer checker.Free()
	}

	result, err := s.scanProject(ctx, checker, input.ProjectPath, input.EntryPoints)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(result)
}

// scanProject runs a scan with the server's configuration, extended by
// any per-call entry points.
func (s *Server) scanProject(
	ctx context.Context,
	checker *gitsafe.Checker,
	root string,
	entryPoints []string,
) (*analysis.Result, error) {
	cfg := s.scanCfg
	if len(entryPoints) > 0 {
		merged := make([]string, 0, len(cfg.EntryPoints)+len(entryPoints))
		merged = append(merged, cfg.EntryPoints...)
		merged = append(merged, entryPoints...)
		cfg.EntryPoints = merged
	}

	svc, err := analysis.NewService(analysis.Options{
		Cache:   s.cache,
		Checker: checker,
		Logger:  s.logger,
		Tracer:  s.tracer,
		Config:  cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("create scanner: %w", err)
	}

	return svc.Scan(ctx, root)
}

// openChecker opens the project's git repository for ignore and
// uncommitted-change lookups. Projects outside version control scan
// without one.
func (s *Server) openChecker(ctx context.Context, root string) *gitsafe.Checker {
	checker, err := gitsafe.Open(root)
	if err != nil {
		if !errors.Is(err, gitsafe.ErrNotRepository) {
			s.logger.WarnContext(ctx, "git repository unavailable",
				slog.String("root", root),
				slog.String("error", err.Error()),
			)
		}

		return nil
	}

	return checker
}
