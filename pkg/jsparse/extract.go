package jsparse

import (
	"strings"

	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

// Grammar node types and field names shared by the JavaScript and TypeScript
// grammars.
const (
	nodeImportStatement     = "import_statement"
	nodeExportStatement     = "export_statement"
	nodeImportRequireClause = "import_require_clause"
	nodeCallExpression      = "call_expression"
	nodeIdentifier          = "identifier"
	nodeImport              = "import"
	nodeString              = "string"
	nodeStringFragment      = "string_fragment"

	fieldSource    = "source"
	fieldFunction  = "function"
	fieldArguments = "arguments"

	calleeRequire = "require"
)

// extract walks the parse tree and collects every module reference whose
// target is named by a string literal. Computed specifiers are invisible to
// static analysis and contribute nothing.
func extract(root sitter.Node, content []byte) []Reference {
	var refs []Reference

	stack := []sitter.Node{root}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch n.Type() {
		case nodeImportStatement:
			refs = appendReference(refs, importSource(n), RefStaticImport, n, content)
		case nodeExportStatement:
			refs = appendReference(refs, n.ChildByFieldName(fieldSource), RefReexport, n, content)
		case nodeCallExpression:
			refs = appendCallReference(refs, n, content)
		}

		// Push named children in reverse so the pop order matches source order.
		for idx := n.NamedChildCount(); idx > 0; idx-- {
			stack = append(stack, n.NamedChild(idx-1))
		}
	}

	return refs
}

// importSource finds the module string of an import statement. The plain form
// carries a "source" field directly; the TypeScript import-equals form nests
// it inside an import_require_clause.
func importSource(stmt sitter.Node) sitter.Node {
	if src := stmt.ChildByFieldName(fieldSource); !src.IsNull() {
		return src
	}

	for idx := range stmt.NamedChildCount() {
		child := stmt.NamedChild(idx)
		if child.Type() == nodeImportRequireClause {
			return child.ChildByFieldName(fieldSource)
		}
	}

	return sitter.Node{}
}

// appendCallReference records require("m") and import("m") calls. Only a
// string literal in the first argument position counts; anything else keeps
// the target unknowable at scan time.
func appendCallReference(refs []Reference, call sitter.Node, content []byte) []Reference {
	fn := call.ChildByFieldName(fieldFunction)
	if fn.IsNull() {
		return refs
	}

	var kind RefKind

	switch fn.Type() {
	case nodeImport:
		kind = RefDynamicImport
	case nodeIdentifier:
		if nodeText(fn, content) != calleeRequire {
			return refs
		}

		kind = RefRequire
	default:
		return refs
	}

	args := call.ChildByFieldName(fieldArguments)
	if args.IsNull() || args.NamedChildCount() == 0 {
		return refs
	}

	arg := args.NamedChild(0)
	if arg.Type() != nodeString {
		return refs
	}

	return appendReference(refs, arg, kind, call, content)
}

// appendReference resolves strNode to its literal value and appends a
// Reference located at owner's starting line. Null nodes and empty
// specifiers are dropped.
func appendReference(refs []Reference, strNode sitter.Node, kind RefKind, owner sitter.Node, content []byte) []Reference {
	if strNode.IsNull() {
		return refs
	}

	spec := stringValue(strNode, content)
	if spec == "" {
		return refs
	}

	return append(refs, Reference{
		Specifier: spec,
		Kind:      kind,
		Line:      owner.StartPoint().Row + 1,
	})
}

// stringValue returns the literal content of a string node by concatenating
// its fragment children. Fragment-less strings fall back to trimming the
// quote characters.
func stringValue(strNode sitter.Node, content []byte) string {
	var sb strings.Builder

	for idx := range strNode.NamedChildCount() {
		child := strNode.NamedChild(idx)
		if child.Type() == nodeStringFragment {
			sb.WriteString(nodeText(child, content))
		}
	}

	if sb.Len() > 0 {
		return sb.String()
	}

	text := nodeText(strNode, content)
	if len(text) >= 2 {
		return text[1 : len(text)-1]
	}

	return text
}

// nodeText returns the source bytes a node spans, or the empty string
// when the node's offsets fall outside content.
func nodeText(n sitter.Node, content []byte) string {
	start := n.StartByte()
	end := n.EndByte()

	if end > uint(len(content)) {
		return ""
	}

	return string(content[start:end])
}
