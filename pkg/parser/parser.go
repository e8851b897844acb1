// Package parser wraps tree-sitter to parse source files and extract the
// functions they define.
package parser

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// ErrUnsupportedLanguage is returned for languages without a grammar.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Language represents a supported programming language.
type Language string

const (
	LangGo         Language = "go"
	LangRust       Language = "rust"
	LangPython     Language = "python"
	LangTypeScript Language = "typescript"
	LangJavaScript Language = "javascript"
	LangTSX        Language = "tsx"
	LangJava       Language = "java"
	LangC          Language = "c"
	LangCPP        Language = "cpp"
	LangCSharp     Language = "csharp"
	LangRuby       Language = "ruby"
	LangPHP        Language = "php"
	LangBash       Language = "bash"
	LangUnknown    Language = "unknown"
)

// Parser wraps a tree-sitter parser. A Parser is not safe for concurrent
// use; analyzers keep one per worker.
type Parser struct {
	parser *sitter.Parser
}

// ParseResult contains the parsed AST and metadata.
type ParseResult struct {
	Tree     *sitter.Tree
	Language Language
	Source   []byte
	Path     string
}

// HasErrors reports whether tree-sitter had to recover from syntax errors.
func (r *ParseResult) HasErrors() bool {
	return r.Tree.RootNode().HasError()
}

// New creates a new parser instance.
func New() *Parser {
	return &Parser{
		parser: sitter.NewParser(),
	}
}

// Parse parses source code with a specified language.
func (p *Parser) Parse(ctx context.Context, source []byte, lang Language, path string) (*ParseResult, error) {
	tsLang, err := GetTreeSitterLanguage(lang)
	if err != nil {
		return nil, err
	}

	p.parser.SetLanguage(tsLang)
	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return &ParseResult{
		Tree:     tree,
		Language: lang,
		Source:   source,
		Path:     path,
	}, nil
}

// Close releases parser resources.
func (p *Parser) Close() {
	p.parser.Close()
}

// grammar binds a language to its tree-sitter grammar and file extensions.
type grammar struct {
	language   func() *sitter.Language
	extensions []string
}

var grammars = map[Language]grammar{
	LangGo:         {golang.GetLanguage, []string{".go"}},
	LangRust:       {rust.GetLanguage, []string{".rs"}},
	LangPython:     {python.GetLanguage, []string{".py", ".pyw", ".pyi"}},
	LangTypeScript: {typescript.GetLanguage, []string{".ts", ".mts", ".cts"}},
	LangTSX:        {tsx.GetLanguage, []string{".tsx", ".jsx"}},
	LangJavaScript: {javascript.GetLanguage, []string{".js", ".mjs", ".cjs"}},
	LangJava:       {java.GetLanguage, []string{".java"}},
	LangC:          {c.GetLanguage, []string{".c", ".h"}},
	LangCPP:        {cpp.GetLanguage, []string{".cpp", ".cc", ".cxx", ".hpp", ".hxx"}},
	LangCSharp:     {csharp.GetLanguage, []string{".cs"}},
	LangRuby:       {ruby.GetLanguage, []string{".rb"}},
	LangPHP:        {php.GetLanguage, []string{".php"}},
	LangBash:       {bash.GetLanguage, []string{".sh", ".bash"}},
}

// byExtension is the reverse index of grammars.
var byExtension = func() map[string]Language {
	m := make(map[string]Language)
	for lang, g := range grammars {
		for _, ext := range g.extensions {
			m[ext] = lang
		}
	}
	return m
}()

// GetTreeSitterLanguage returns the tree-sitter grammar for lang.
func GetTreeSitterLanguage(lang Language) (*sitter.Language, error) {
	g, ok := grammars[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}
	return g.language(), nil
}

// DetectLanguage determines the language from a file path's extension,
// case-insensitively.
func DetectLanguage(path string) Language {
	if lang, ok := byExtension[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return LangUnknown
}

// Languages returns the supported languages in name order.
func Languages() []Language {
	out := make([]Language, 0, len(grammars))
	for lang := range grammars {
		out = append(out, lang)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// TypedNodeVisitor visits AST nodes with pre-cached node type to avoid CGO overhead.
type TypedNodeVisitor func(node *sitter.Node, nodeType string, source []byte) bool

// WalkTyped traverses the AST with cached node types. Returning false from
// the visitor skips the node's children.
func WalkTyped(node *sitter.Node, source []byte, visitor TypedNodeVisitor) {
	if node == nil {
		return
	}

	nodeType := node.Type()
	if !visitor(node, nodeType, source) {
		return
	}

	for i := range int(node.ChildCount()) {
		WalkTyped(node.Child(i), source, visitor)
	}
}

// GetNodeText extracts the source text for a node.
// Returns empty string if node is nil or byte offsets are out of bounds.
func GetNodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	start := node.StartByte()
	end := node.EndByte()
	if start > end || end > uint32(len(source)) {
		return ""
	}
	return string(source[start:end])
}
