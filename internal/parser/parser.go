// Package parser provides tree-sitter-based extraction of exported
// declarations (the public surface a repository offers) with language
// detection from file extensions.
package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Declaration kinds.
const (
	KindFunction  = "function"
	KindClass     = "class"
	KindInterface = "interface"
	KindType      = "type"
	KindEnum      = "enum"
	KindConst     = "const"
	KindVariable  = "variable"
	KindMethod    = "method"
	KindNamespace = "namespace"
)

// Declaration is one exported top-level symbol.
type Declaration struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	File string `json:"file"`
	Line int    `json:"line"`
}

type extractor func(root *sitter.Node, source []byte) []Declaration

// langInfo pairs a grammar with the extractor that understands its tree.
type langInfo struct {
	lang    *sitter.Language
	extract extractor
}

// registry maps file extensions to language info for auto-detection.
var registry = map[string]langInfo{
	".ts":  {lang: typescript.GetLanguage(), extract: ecmaExports},
	".mts": {lang: typescript.GetLanguage(), extract: ecmaExports},
	".tsx": {lang: tsx.GetLanguage(), extract: ecmaExports},
	".js":  {lang: javascript.GetLanguage(), extract: ecmaExports},
	".jsx": {lang: javascript.GetLanguage(), extract: ecmaExports},
	".mjs": {lang: javascript.GetLanguage(), extract: ecmaExports},
	".go":  {lang: golang.GetLanguage(), extract: goExports},
}

// Supported reports whether filename has a registered language.
func Supported(filename string) bool {
	_, ok := registry[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Parser wraps tree-sitter to parse source files with automatic language detection.
// A Parser is not safe for concurrent use.
type Parser struct {
	inner *sitter.Parser
}

// NewParser creates a new Parser instance.
func NewParser() *Parser {
	return &Parser{inner: sitter.NewParser()}
}

// Close releases the underlying tree-sitter parser.
func (p *Parser) Close() {
	p.inner.Close()
}

// Parse parses source code from the given filename, auto-detecting the language
// from the file extension. Returns an error for unsupported extensions.
func (p *Parser) Parse(ctx context.Context, filename string, source []byte) (*Tree, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	info, ok := registry[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported file extension %q: language not in registry", ext)
	}

	p.inner.SetLanguage(info.lang)
	sitterTree, err := p.inner.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	return &Tree{tree: sitterTree, source: source, info: info, file: filepath.ToSlash(filename)}, nil
}

// Declarations parses source and returns its exported declarations.
func (p *Parser) Declarations(ctx context.Context, filename string, source []byte) ([]Declaration, error) {
	tree, err := p.Parse(ctx, filename, source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()
	return tree.Declarations(), nil
}

// Tree wraps a parsed tree-sitter syntax tree.
type Tree struct {
	tree   *sitter.Tree
	source []byte
	info   langInfo
	file   string
}

// RootNode returns the root node of the parsed syntax tree.
func (t *Tree) RootNode() *sitter.Node {
	return t.tree.RootNode()
}

// Close releases the syntax tree.
func (t *Tree) Close() {
	t.tree.Close()
}

// Declarations extracts the exported top-level declarations of the tree.
func (t *Tree) Declarations() []Declaration {
	decls := t.info.extract(t.RootNode(), t.source)
	for i := range decls {
		decls[i].File = t.file
	}
	return decls
}

func line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1 // 0-indexed to 1-indexed
}

// namedChildren calls fn for each named child of n.
func namedChildren(n *sitter.Node, fn func(*sitter.Node)) {
	if n == nil {
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c != nil {
			fn(c)
		}
	}
}
