package analysis

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/deadwood/pkg/depgraph"
	"github.com/Sumatoshi-tech/deadwood/pkg/manifest"
)

// assemble classifies dependencies and files against the built graph
// and folds per-file outcomes into scan statistics.
func (s *Service) assemble(
	mf *manifest.Manifest,
	graph *depgraph.Graph,
	candidates []candidate,
	outcomes []fileOutcome,
	root string,
) *Result {
	declared := mf.Declared()

	result := &Result{
		Project:            mf.ProjectName(),
		Root:               root,
		UnusedDependencies: unusedDependencies(declared, graph, root),
		UnusedFiles:        s.unusedFiles(graph, candidates, outcomes),
	}

	result.Stats.DependenciesDeclared = len(declared)

	for idx := range outcomes {
		out := &outcomes[idx]
		result.Stats.BytesAnalyzed += out.bytes

		if out.scanned {
			result.Stats.FilesScanned++
			result.Stats.FileDurations = append(result.Stats.FileDurations, out.duration)

			if out.cacheHit {
				result.Stats.CacheHits++
			} else if s.cache != nil {
				result.Stats.CacheMisses++
			}

			continue
		}

		result.Stats.FilesSkipped++

		if out.skipReason == SkipParseError {
			result.Stats.ParseFailures++
		}

		result.SkippedFiles = append(result.SkippedFiles, SkippedFile{
			Path:   candidates[idx].rel,
			Reason: out.skipReason,
			Detail: out.skipDetail,
		})
	}

	return result
}

// unusedDependencies returns declared packages no parsed file imports,
// sized by their installed footprint.
func unusedDependencies(declared map[string]string, graph *depgraph.Graph, root string) []UnusedDependency {
	unused := make([]UnusedDependency, 0, len(declared))

	for name, version := range declared {
		if graph.ExternalUsed(name) {
			continue
		}

		unused = append(unused, UnusedDependency{
			Name:      name,
			Version:   version,
			SizeBytes: DirSize(filepath.Join(root, NodeModulesDir, filepath.FromSlash(name))),
		})
	}

	slices.SortFunc(unused, func(a, b UnusedDependency) int {
		return strings.Compare(a.Name, b.Name)
	})

	return unused
}

// unusedFiles returns files no other file resolves to that hold no
// internal references of their own. A file that imports local modules
// but is imported by nothing is presumed to be an entry point and kept.
// Skipped files are never flagged either way.
func (s *Service) unusedFiles(graph *depgraph.Graph, candidates []candidate, outcomes []fileOutcome) []UnusedFile {
	entries := make(map[string]struct{}, len(s.cfg.EntryPoints))
	for _, entry := range s.cfg.EntryPoints {
		entries[depgraph.Normalize(entry)] = struct{}{}
	}

	unused := make([]UnusedFile, 0)

	for idx, cand := range candidates {
		if !outcomes[idx].scanned {
			continue
		}

		if _, isEntry := entries[cand.rel]; isEntry {
			continue
		}

		if graph.InternalTarget(cand.rel) {
			continue
		}

		if graph.InternalRefs(cand.rel) > 0 {
			continue
		}

		unused = append(unused, UnusedFile{
			Path:         cand.rel,
			LastModified: cand.modTime,
			SizeBytes:    cand.size,
		})
	}

	// Candidates arrive sorted, so this stays sorted by path.
	return unused
}
