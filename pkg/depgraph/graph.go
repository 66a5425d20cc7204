package depgraph

import (
	"maps"
	"slices"
	"sync"

	"github.com/Sumatoshi-tech/deadwood/pkg/jsparse"
)

// Contribution is one source file's share of the reference graph. Computing
// a contribution is side-effect free, so files can be processed in parallel
// and the results merged in any order.
type Contribution struct {
	// Source is the normalized path of the contributing file.
	Source string

	// ExternalUsed lists the npm package names the file references.
	ExternalUsed []string

	// InternalTargets lists the scanned files the file references, resolved
	// against the file's own directory.
	InternalTargets []string

	// InternalRefs counts the file's internal references, including ones
	// that resolve to no scanned file.
	InternalRefs int
}

// Contribute converts one parsed file's references into its contribution.
// Builtin and alias specifiers resolve outside the project tree and carry
// nothing into the graph.
func Contribute(file *jsparse.File, files *FileSet) Contribution {
	c := Contribution{Source: Normalize(file.Path)}

	for _, ref := range file.References {
		switch ClassifySpecifier(ref.Specifier) {
		case SpecExternal:
			c.ExternalUsed = append(c.ExternalUsed, PackageName(ref.Specifier))
		case SpecInternal:
			c.InternalRefs++

			if target, ok := files.Resolve(file.Path, ref.Specifier); ok {
				c.InternalTargets = append(c.InternalTargets, target)
			}
		case SpecBuiltin, SpecAlias:
		}
	}

	return c
}

// Builder accumulates contributions until the graph is built. Merge is safe
// for concurrent use and commutative, so worker order never changes the
// resulting graph.
type Builder struct {
	mu              sync.Mutex
	externalUsed    map[string]struct{}
	internalTargets map[string]struct{}
	internalRefs    map[string]int
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		externalUsed:    make(map[string]struct{}),
		internalTargets: make(map[string]struct{}),
		internalRefs:    make(map[string]int),
	}
}

// Merge folds one file's contribution into the accumulated state. Merging
// the same contribution twice is idempotent.
func (b *Builder) Merge(c Contribution) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, name := range c.ExternalUsed {
		b.externalUsed[name] = struct{}{}
	}

	for _, target := range c.InternalTargets {
		b.internalTargets[target] = struct{}{}
	}

	b.internalRefs[c.Source] = c.InternalRefs
}

// Build snapshots the accumulated state into an immutable Graph. Merges
// after Build do not affect graphs already built.
func (b *Builder) Build() *Graph {
	b.mu.Lock()
	defer b.mu.Unlock()

	return &Graph{
		externalUsed:    maps.Clone(b.externalUsed),
		internalTargets: maps.Clone(b.internalTargets),
		internalRefs:    maps.Clone(b.internalRefs),
	}
}

// Graph is the merged reference graph. Read-only once built; classification
// runs against a fully accumulated graph, never a partial one.
type Graph struct {
	externalUsed    map[string]struct{}
	internalTargets map[string]struct{}
	internalRefs    map[string]int
}

// ExternalUsed reports whether any scanned file references the package.
func (g *Graph) ExternalUsed(name string) bool {
	_, ok := g.externalUsed[name]

	return ok
}

// InternalTarget reports whether any scanned file references this path.
func (g *Graph) InternalTarget(p string) bool {
	_, ok := g.internalTargets[Normalize(p)]

	return ok
}

// InternalRefs returns how many internal references the file itself makes.
// A file with local references of its own is presumed to be an entry point
// when nothing references it back.
func (g *Graph) InternalRefs(p string) int {
	return g.internalRefs[Normalize(p)]
}

// ExternalPackages returns the sorted package names in use.
func (g *Graph) ExternalPackages() []string {
	out := slices.Collect(maps.Keys(g.externalUsed))
	slices.Sort(out)

	return out
}
