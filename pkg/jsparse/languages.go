// Package jsparse parses JavaScript and TypeScript sources with tree-sitter
// and extracts the module references each file makes.
package jsparse

import (
	"path/filepath"
	"strings"
	"sync"
	"unsafe"

	"github.com/alexaandru/go-sitter-forest/javascript"
	"github.com/alexaandru/go-sitter-forest/tsx"
	"github.com/alexaandru/go-sitter-forest/typescript"
	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

// Language names used throughout the scanner.
const (
	LangJavaScript = "javascript"
	LangTypeScript = "typescript"
	LangTSX        = "tsx"
)

// languageFuncs maps language names to their tree-sitter GetLanguage functions.
var languageFuncs = map[string]func() unsafe.Pointer{
	LangJavaScript: javascript.GetLanguage,
	LangTypeScript: typescript.GetLanguage,
	LangTSX:        tsx.GetLanguage,
}

// extLanguages maps source file extensions to grammar names. The JavaScript
// grammar handles JSX; TSX needs its own grammar.
var extLanguages = map[string]string{
	".js":  LangJavaScript,
	".jsx": LangJavaScript,
	".mjs": LangJavaScript,
	".cjs": LangJavaScript,
	".ts":  LangTypeScript,
	".mts": LangTypeScript,
	".cts": LangTypeScript,
	".tsx": LangTSX,
}

var languageCache sync.Map

// GetLanguage returns the tree-sitter Language for the given name, or nil if
// not supported.
func GetLanguage(name string) *sitter.Language {
	if cached, ok := languageCache.Load(name); ok {
		lang, castOK := cached.(*sitter.Language)
		if castOK {
			return lang
		}
	}

	fn, ok := languageFuncs[name]
	if !ok {
		return nil
	}

	lang := sitter.NewLanguage(fn())
	languageCache.Store(name, lang)

	return lang
}

// LanguageForFile returns the grammar name for a source path, or "" when the
// extension is not a scannable JavaScript or TypeScript variant.
func LanguageForFile(path string) string {
	return extLanguages[strings.ToLower(filepath.Ext(path))]
}

// Extensions returns the set of scannable source extensions, lowercased with
// leading dots.
func Extensions() []string {
	exts := make([]string, 0, len(extLanguages))
	for ext := range extLanguages {
		exts = append(exts, ext)
	}

	return exts
}
