// Package depgraph builds the project reference graph from parsed source
// files. Each file yields an order-independent contribution; merging all
// contributions produces an immutable graph the classifier reads from.
package depgraph

import "strings"

// SpecKind classifies where a module specifier points.
type SpecKind int

const (
	// SpecExternal is a bare package name resolved from node_modules.
	SpecExternal SpecKind = iota

	// SpecInternal is a relative or absolute path into the project tree.
	SpecInternal

	// SpecBuiltin is a node: protocol reference to a Node.js builtin.
	SpecBuiltin

	// SpecAlias is a #-prefixed subpath alias from the manifest imports map.
	SpecAlias
)

// ClassifySpecifier determines how a module specifier resolves.
func ClassifySpecifier(spec string) SpecKind {
	switch {
	case strings.HasPrefix(spec, "node:"):
		return SpecBuiltin
	case strings.HasPrefix(spec, "#"):
		return SpecAlias
	case spec == "." || spec == ".." ||
		strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") ||
		strings.HasPrefix(spec, "/"):
		return SpecInternal
	default:
		return SpecExternal
	}
}

// PackageName reduces a bare specifier to its npm package name. Deep imports
// keep only the first path segment; scoped specifiers keep the scope and the
// name segment after it.
func PackageName(spec string) string {
	head, rest, found := strings.Cut(spec, "/")
	if !found || !strings.HasPrefix(spec, "@") {
		return head
	}

	name, _, _ := strings.Cut(rest, "/")

	return head + "/" + name
}
