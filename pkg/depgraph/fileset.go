package depgraph

import (
	"path"
	"path/filepath"
	"slices"
	"strings"
)

// resolutionExts is the probe order for extension-less internal references.
var resolutionExts = []string{".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx", ".mts", ".cts"}

// FileSet indexes the scanned source paths so internal references resolve
// by set membership alone, independent of discovery order and without
// touching the filesystem again.
type FileSet struct {
	paths map[string]struct{}
}

// NewFileSet builds a set from project-relative paths.
func NewFileSet(paths []string) *FileSet {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[Normalize(p)] = struct{}{}
	}

	return &FileSet{paths: set}
}

// Normalize converts a path to the slash-separated clean form used as file
// identity throughout the graph.
func Normalize(p string) string {
	return path.Clean(filepath.ToSlash(p))
}

// Contains reports whether the path is part of the scanned set.
func (fs *FileSet) Contains(p string) bool {
	_, ok := fs.paths[Normalize(p)]

	return ok
}

// Len returns the number of files in the set.
func (fs *FileSet) Len() int {
	return len(fs.paths)
}

// Paths returns the normalized paths in sorted order.
func (fs *FileSet) Paths() []string {
	out := make([]string, 0, len(fs.paths))
	for p := range fs.paths {
		out = append(out, p)
	}

	slices.Sort(out)

	return out
}

// Resolve maps an internal specifier written in fromFile to the scanned file
// it targets. Candidates are probed in require order: the exact path, the
// path with each known extension appended, then an index file inside the
// named directory. ok is false when no scanned file matches.
func (fs *FileSet) Resolve(fromFile, spec string) (string, bool) {
	var base string
	if strings.HasPrefix(spec, "/") {
		// Absolute specifiers are taken as project-root relative.
		base = path.Clean(strings.TrimPrefix(spec, "/"))
	} else {
		base = path.Join(path.Dir(Normalize(fromFile)), spec)
	}

	candidates := make([]string, 0, 1+2*len(resolutionExts))
	candidates = append(candidates, base)

	for _, ext := range resolutionExts {
		candidates = append(candidates, base+ext)
	}

	for _, ext := range resolutionExts {
		candidates = append(candidates, base+"/index"+ext)
	}

	for _, cand := range candidates {
		if _, ok := fs.paths[cand]; ok {
			return cand, true
		}
	}

	return "", false
}
