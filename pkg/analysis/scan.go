package analysis

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/src-d/enry/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/deadwood/pkg/depgraph"
	"github.com/Sumatoshi-tech/deadwood/pkg/jsparse"
	"github.com/Sumatoshi-tech/deadwood/pkg/manifest"
	"github.com/Sumatoshi-tech/deadwood/pkg/refcache"
)

// fileOutcome is one worker's result for a single candidate. Exactly
// one of scanned or skipReason is set.
type fileOutcome struct {
	contribution depgraph.Contribution
	skipReason   string
	skipDetail   string
	duration     time.Duration
	bytes        int64
	cacheHit     bool
	scanned      bool
}

// Scan analyzes the project rooted at root. The manifest must exist and
// parse; per-file problems degrade to skipped entries instead of
// failing the run. References from every file are accumulated before
// any classification happens, so results do not depend on the order
// files were processed in.
func (s *Service) Scan(ctx context.Context, root string) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "scan",
		trace.WithAttributes(attribute.String("project.root", root)))
	defer span.End()

	started := time.Now()

	mf, err := manifest.ReadProject(root)
	if err != nil {
		span.RecordError(err)

		return nil, err
	}

	maxSize, err := s.cfg.MaxFileSizeBytes()
	if err != nil {
		return nil, err
	}

	_, discoverSpan := s.tracer.Start(ctx, "scan.discover")

	candidates, err := discover(root, s.cfg, s.checker)

	discoverSpan.SetAttributes(attribute.Int("scan.candidates", len(candidates)))
	discoverSpan.End()

	if err != nil {
		span.RecordError(err)

		return nil, err
	}

	paths := make([]string, len(candidates))
	for idx, cand := range candidates {
		paths[idx] = cand.rel
	}

	// Skipped files stay in the set: a reference to one still resolves,
	// its own usage is just never judged.
	files := depgraph.NewFileSet(paths)

	outcomes, err := s.parseAll(ctx, candidates, files, maxSize)
	if err != nil {
		span.RecordError(err)

		return nil, err
	}

	_, classifySpan := s.tracer.Start(ctx, "scan.classify")

	builder := depgraph.NewBuilder()

	for idx := range outcomes {
		if outcomes[idx].scanned {
			builder.Merge(outcomes[idx].contribution)
		}
	}

	graph := builder.Build()

	result := s.assemble(mf, graph, candidates, outcomes, root)

	classifySpan.End()

	result.Stats.Elapsed = time.Since(started)
	result.Stats.ElapsedSeconds = result.Stats.Elapsed.Seconds()

	span.SetAttributes(
		attribute.Int("scan.files", len(candidates)),
		attribute.Int("scan.unused_dependencies", len(result.UnusedDependencies)),
		attribute.Int("scan.unused_files", len(result.UnusedFiles)),
		attribute.Int("scan.skipped_files", len(result.SkippedFiles)),
	)

	s.logger.InfoContext(ctx, "scan complete",
		slog.String("root", root),
		slog.Int("files", len(candidates)),
		slog.Int("unused_dependencies", len(result.UnusedDependencies)),
		slog.Int("unused_files", len(result.UnusedFiles)),
		slog.Int("skipped_files", len(result.SkippedFiles)),
		slog.Duration("elapsed", result.Stats.Elapsed),
	)

	return result, nil
}

// parseAll runs the candidates through a worker pool and returns one
// outcome per candidate, index-aligned. Workers only abort on context
// cancellation; file-level failures land in the outcome.
func (s *Service) parseAll(
	ctx context.Context,
	candidates []candidate,
	files *depgraph.FileSet,
	maxSize int64,
) ([]fileOutcome, error) {
	outcomes := make([]fileOutcome, len(candidates))
	if len(candidates) == 0 {
		return outcomes, nil
	}

	ctx, span := s.tracer.Start(ctx, "scan.extract",
		trace.WithAttributes(attribute.Int("scan.candidates", len(candidates))))
	defer span.End()

	workers := s.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	if workers > len(candidates) {
		workers = len(candidates)
	}

	indexCh := make(chan int, workers)

	var firstErr atomic.Value

	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for idx := range indexCh {
				if firstErr.Load() != nil {
					return
				}

				if cerr := ctx.Err(); cerr != nil {
					firstErr.CompareAndSwap(nil, cerr)

					return
				}

				outcomes[idx] = s.scanFile(ctx, candidates[idx], files, maxSize)
			}
		}()
	}

	for idx := range candidates {
		if firstErr.Load() != nil {
			break
		}

		indexCh <- idx
	}

	close(indexCh)
	wg.Wait()

	if errVal := firstErr.Load(); errVal != nil {
		if err, ok := errVal.(error); ok {
			return nil, err
		}
	}

	return outcomes, nil
}

// scanFile reads and parses one candidate, producing its graph
// contribution or the reason it was set aside.
func (s *Service) scanFile(
	ctx context.Context,
	cand candidate,
	files *depgraph.FileSet,
	maxSize int64,
) fileOutcome {
	if maxSize > 0 && cand.size > maxSize {
		return fileOutcome{skipReason: SkipTooLarge}
	}

	content, err := os.ReadFile(cand.abs)
	if err != nil {
		return fileOutcome{skipReason: SkipReadError, skipDetail: err.Error()}
	}

	out := fileOutcome{bytes: int64(len(content))}

	if enry.IsBinary(content) {
		out.skipReason = SkipBinary

		return out
	}

	if s.cfg.SkipGenerated && isGenerated(content) {
		out.skipReason = SkipGenerated

		return out
	}

	parseStart := time.Now()
	refs, hit, err := s.references(ctx, cand.rel, content)
	out.duration = time.Since(parseStart)

	if err != nil {
		out.skipReason = SkipParseError
		out.skipDetail = err.Error()

		s.logger.DebugContext(ctx, "parse failed",
			slog.String("file", cand.rel),
			slog.String("error", err.Error()),
		)

		return out
	}

	out.cacheHit = hit
	out.scanned = true
	out.contribution = depgraph.Contribute(&jsparse.File{
		Path:       cand.rel,
		Language:   jsparse.LanguageForFile(cand.rel),
		References: refs,
	}, files)

	return out
}

// references returns the module references for content, consulting the
// cache when one is configured. The bool reports a cache hit.
func (s *Service) references(ctx context.Context, rel string, content []byte) ([]jsparse.Reference, bool, error) {
	lang := jsparse.LanguageForFile(rel)

	var key string

	if s.cache != nil {
		key = refcache.Key(lang, content)
		if refs, ok := s.cache.Get(key); ok {
			return refs, true, nil
		}
	}

	parsed, err := s.parser.Parse(ctx, rel, content)
	if err != nil {
		return nil, false, err
	}

	if s.cache != nil {
		if putErr := s.cache.Put(key, parsed.References); putErr != nil {
			s.logger.DebugContext(ctx, "reference cache write failed",
				slog.String("file", rel),
				slog.String("error", putErr.Error()),
			)
		}
	}

	return parsed.References, false, nil
}

// generatedMarkers are conventions emitted by code generators near the
// top of a file.
var generatedMarkers = [][]byte{
	[]byte("@generated"),
	[]byte("Code generated"),
	[]byte("DO NOT EDIT"),
}

const generatedProbeSize = 1024

// isGenerated reports whether the leading bytes carry a generator
// marker.
func isGenerated(content []byte) bool {
	head := content
	if len(head) > generatedProbeSize {
		head = head[:generatedProbeSize]
	}

	for _, marker := range generatedMarkers {
		if bytes.Contains(head, marker) {
			return true
		}
	}

	return false
}
