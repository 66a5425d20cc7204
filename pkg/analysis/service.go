// Package analysis orchestrates project scans. A scan reads the
// manifest, discovers source files, extracts module references in
// parallel, merges them into a reference graph, and classifies declared
// dependencies and source files as used or unused. All state is built
// fresh per scan and discarded with the returned Result.
package analysis

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/deadwood/pkg/config"
	"github.com/Sumatoshi-tech/deadwood/pkg/gitsafe"
	"github.com/Sumatoshi-tech/deadwood/pkg/jsparse"
	"github.com/Sumatoshi-tech/deadwood/pkg/refcache"
)

const tracerName = "github.com/Sumatoshi-tech/deadwood/pkg/analysis"

// NodeModulesDir is the dependency install directory name.
const NodeModulesDir = "node_modules"

// Options configures a Service. Zero values select defaults.
type Options struct {
	// Cache persists extracted references across runs. Nil disables
	// caching and every file is parsed.
	Cache *refcache.Cache

	// Checker consults git ignore rules during discovery. Nil skips
	// the consultation, as for projects outside any repository.
	Checker *gitsafe.Checker

	// Logger receives scan diagnostics. Nil selects slog.Default.
	Logger *slog.Logger

	// Tracer creates scan spans. Nil selects the global provider.
	Tracer trace.Tracer

	// Config supplies discovery and parse limits.
	Config config.ScanConfig
}

// Service runs project analyses. Safe for concurrent use.
type Service struct {
	parser  *jsparse.Parser
	cache   *refcache.Cache
	checker *gitsafe.Checker
	logger  *slog.Logger
	tracer  trace.Tracer
	cfg     config.ScanConfig
}

// NewService creates a ready-to-scan service.
func NewService(opts Options) (*Service, error) {
	parser, err := jsparse.NewParser()
	if err != nil {
		return nil, fmt.Errorf("create parser: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &Service{
		parser:  parser,
		cache:   opts.Cache,
		checker: opts.Checker,
		logger:  logger,
		tracer:  tracer,
		cfg:     opts.Config,
	}, nil
}
