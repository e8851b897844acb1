// Package complexity computes per-function cyclomatic complexity with
// tree-sitter. It is the default analyzer behind metric extraction.
package complexity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ayanftw/commit-history/pkg/history"
	"github.com/ayanftw/commit-history/pkg/parser"
	sitter "github.com/smacker/go-tree-sitter"
)

// ErrFileTooLarge is returned for content above the configured size limit.
var ErrFileTooLarge = errors.New("file exceeds size limit")

// Analyzer computes per-function metrics. It is safe for concurrent use:
// each call borrows a tree-sitter parser from an internal pool.
type Analyzer struct {
	parsers     sync.Pool
	maxFileSize int64
	strict      bool
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithMaxFileSize sets the maximum file size to analyze (0 = no limit).
func WithMaxFileSize(maxSize int64) Option {
	return func(a *Analyzer) {
		a.maxFileSize = maxSize
	}
}

// WithStrictSyntax makes files with syntax errors fail with history.ErrParse
// instead of being analyzed on tree-sitter's recovered tree.
func WithStrictSyntax(strict bool) Option {
	return func(a *Analyzer) {
		a.strict = strict
	}
}

// New creates a new complexity analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{}
	a.parsers.New = func() any { return parser.New() }
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Language returns the language name for path, or "" when unsupported.
func (a *Analyzer) Language(path string) string {
	lang := parser.DetectLanguage(path)
	if lang == parser.LangUnknown {
		return ""
	}
	return string(lang)
}

// Analyze returns the functions defined in content along with their
// cyclomatic complexity, line count and parameter count.
func (a *Analyzer) Analyze(path, lang string, content []byte) ([]history.FunctionMetric, error) {
	language := parser.Language(lang)
	if lang == "" {
		language = parser.DetectLanguage(path)
	}
	if _, err := parser.GetTreeSitterLanguage(language); err != nil {
		return nil, fmt.Errorf("%w: %s", history.ErrUnsupportedLanguage, path)
	}
	if a.maxFileSize > 0 && int64(len(content)) > a.maxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrFileTooLarge, path, len(content))
	}

	psr := a.parsers.Get().(*parser.Parser)
	defer a.parsers.Put(psr)

	result, err := psr.Parse(context.Background(), content, language, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", history.ErrParse, err)
	}
	if a.strict && result.HasErrors() {
		return nil, fmt.Errorf("%w: syntax errors in %s", history.ErrParse, path)
	}

	functions := parser.GetFunctions(result)
	metrics := make([]history.FunctionMetric, 0, len(functions))
	for _, fn := range functions {
		metrics = append(metrics, analyzeFunction(fn, result))
	}
	return metrics, nil
}

// analyzeFunction computes complexity metrics for a single function.
func analyzeFunction(fn parser.FunctionNode, result *parser.ParseResult) history.FunctionMetric {
	m := history.FunctionMetric{
		QualifiedName: fn.QualifiedName,
		StartLine:     int(fn.StartLine),
		EndLine:       int(fn.EndLine),
		Lines:         int(fn.EndLine-fn.StartLine) + 1,
		Params:        fn.Params,
		Cyclomatic:    1,
	}
	if fn.Body != nil {
		m.Cyclomatic += int(CountDecisionPoints(fn.Body, result.Source, result.Language))
	}
	return m
}

// CountDecisionPoints counts branching statements for cyclomatic complexity.
func CountDecisionPoints(node *sitter.Node, source []byte, lang parser.Language) uint32 {
	var count uint32

	decisionTypes := makeSet(getDecisionNodeTypes(lang))

	parser.WalkTyped(node, source, func(n *sitter.Node, nodeType string, _ []byte) bool {
		if decisionTypes[nodeType] {
			count++
		}
		// && and || add a path each
		switch nodeType {
		case "binary_expression", "logical_expression", "boolean_operator":
			op := getOperator(n)
			if op == "&&" || op == "||" || op == "and" || op == "or" {
				count++
			}
		}
		return true
	})

	return count
}

// makeSet converts a slice to a map for O(1) lookups.
func makeSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

// getDecisionNodeTypes returns AST node types that represent decision points.
func getDecisionNodeTypes(lang parser.Language) []string {
	common := []string{
		"if_statement",
		"if_expression",
		"while_statement",
		"while_expression",
		"for_statement",
		"for_expression",
		"case_statement",
		"catch_clause",
		"ternary_expression",
		"conditional_expression",
	}

	switch lang {
	case parser.LangGo:
		return append(common, "expression_case", "type_case", "communication_case")
	case parser.LangRust:
		return append(common, "match_arm", "loop_expression", "if_let_expression")
	case parser.LangPython:
		return append(common, "elif_clause", "except_clause", "for_in_clause", "if_clause")
	case parser.LangTypeScript, parser.LangJavaScript, parser.LangTSX:
		return append(common, "switch_case", "do_statement", "for_in_statement")
	case parser.LangJava, parser.LangCSharp:
		return append(common, "switch_label", "do_statement", "enhanced_for_statement", "foreach_statement")
	case parser.LangC, parser.LangCPP:
		return append(common, "do_statement")
	case parser.LangRuby:
		return []string{"if", "elsif", "unless", "while", "until", "for", "when", "rescue", "conditional"}
	case parser.LangPHP:
		return append(common, "case_statement", "elseif_clause", "foreach_statement")
	default:
		return common
	}
}

// getOperator extracts the operator from a binary expression node.
func getOperator(node *sitter.Node) string {
	if op := node.ChildByFieldName("operator"); op != nil {
		return op.Type()
	}
	for i := range int(node.ChildCount()) {
		child := node.Child(i)
		switch child.Type() {
		case "&&", "||", "and", "or":
			return child.Type()
		}
	}
	return ""
}
