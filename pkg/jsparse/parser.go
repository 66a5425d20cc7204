package jsparse

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

// Sentinel parser errors.
var (
	// ErrUnsupportedFile marks paths whose extension no grammar covers.
	ErrUnsupportedFile = errors.New("jsparse: unsupported file extension")

	// ErrSyntax marks files tree-sitter could not produce a usable tree for.
	// Callers exclude such files from further analysis instead of failing.
	ErrSyntax = errors.New("jsparse: syntax error")

	errLanguageNotAvailable = errors.New("jsparse: tree-sitter language not available")
	errPoolType             = errors.New("jsparse: pool returned unexpected type")
)

// RefKind classifies how a module reference is written in source.
type RefKind int

const (
	// RefStaticImport is an import declaration: import x from "m".
	RefStaticImport RefKind = iota

	// RefDynamicImport is a dynamic import call: import("m").
	RefDynamicImport

	// RefRequire is a CommonJS require call: require("m").
	RefRequire

	// RefReexport is a re-export declaration: export { x } from "m".
	RefReexport
)

// String returns the reference kind name used in reports and span attributes.
func (k RefKind) String() string {
	switch k {
	case RefStaticImport:
		return "import"
	case RefDynamicImport:
		return "dynamic-import"
	case RefRequire:
		return "require"
	case RefReexport:
		return "reexport"
	default:
		return "unknown"
	}
}

// Reference is a single module specifier found in a source file.
type Reference struct {
	// Specifier is the literal module string, e.g. "lodash" or "./util".
	Specifier string

	// Kind records the syntactic form of the reference.
	Kind RefKind

	// Line is the 1-based source line the reference starts on.
	Line uint
}

// File holds the references extracted from one parsed source file.
type File struct {
	// Path is the path the content was read from, as given by the caller.
	Path string

	// Language is the grammar that parsed the file.
	Language string

	// References lists every module specifier in source order.
	References []Reference
}

// Parser extracts module references from JavaScript and TypeScript sources.
// Safe for concurrent use; tree-sitter parsers are pooled per language.
type Parser struct {
	pools map[string]*sync.Pool
}

// NewParser creates a parser with all supported grammars loaded.
func NewParser() (*Parser, error) {
	pools := make(map[string]*sync.Pool, len(languageFuncs))

	for name := range languageFuncs {
		lang := GetLanguage(name)
		if lang == nil {
			return nil, fmt.Errorf("%w: %s", errLanguageNotAvailable, name)
		}

		pools[name] = &sync.Pool{
			New: func() any {
				tsParser := sitter.NewParser()
				tsParser.SetLanguage(lang)

				return tsParser
			},
		}
	}

	return &Parser{pools: pools}, nil
}

// Parse parses content as the language implied by path's extension and
// returns the module references it contains. Returns ErrUnsupportedFile for
// non-JS/TS paths and ErrSyntax when the tree is unusable.
func (p *Parser) Parse(ctx context.Context, path string, content []byte) (*File, error) {
	langName := LanguageForFile(path)
	if langName == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}

	pool := p.pools[langName]

	tsParser, ok := pool.Get().(*sitter.Parser)
	if !ok {
		return nil, errPoolType
	}

	defer pool.Put(tsParser)

	tree, err := tsParser.ParseString(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSyntax, path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.IsNull() || root.HasError() {
		return nil, fmt.Errorf("%w: %s", ErrSyntax, path)
	}

	return &File{
		Path:       path,
		Language:   langName,
		References: extract(root, content),
	}, nil
}
