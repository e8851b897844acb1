package parser

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// AnonymousName is the name given to functions without one.
const AnonymousName = "<anonymous>"

// FunctionNode represents a parsed function.
type FunctionNode struct {
	Name          string
	QualifiedName string // enclosing type and function names joined with "."
	StartLine     uint32
	EndLine       uint32
	Params        int
	Body          *sitter.Node
}

// GetFunctions extracts all function definitions from parsed code in
// source order. Nested functions are reported as well, qualified by their
// enclosing function.
func GetFunctions(result *ParseResult) []FunctionNode {
	funcTypes := makeSet(functionNodeTypes(result.Language))
	scopeTypes := makeSet(scopeNodeTypes(result.Language))

	var functions []FunctionNode
	var visit func(node *sitter.Node, scope []string)
	visit = func(node *sitter.Node, scope []string) {
		nodeType := node.Type()
		switch {
		case funcTypes[nodeType]:
			fn := extractFunction(node, result.Source, result.Language)
			prefix := scope
			if recv := receiverName(node, result.Source, result.Language); recv != "" {
				prefix = append(append([]string(nil), scope...), recv)
			}
			fn.QualifiedName = qualify(prefix, fn.Name)
			functions = append(functions, fn)
			name := fn.Name
			if name == "" {
				name = AnonymousName
			}
			scope = append(prefix[:len(prefix):len(prefix)], name)
		case scopeTypes[nodeType]:
			if name := scopeName(node, result.Source, result.Language); name != "" {
				scope = append(scope[:len(scope):len(scope)], name)
			}
		}
		for i := range int(node.NamedChildCount()) {
			visit(node.NamedChild(i), scope)
		}
	}
	visit(result.Tree.RootNode(), nil)

	return functions
}

func qualify(scope []string, name string) string {
	if name == "" {
		name = AnonymousName
	}
	if len(scope) == 0 {
		return name
	}
	return strings.Join(scope, ".") + "." + name
}

// functionNodeTypes returns the AST node types for functions in each language.
func functionNodeTypes(lang Language) []string {
	switch lang {
	case LangGo:
		return []string{"function_declaration", "method_declaration"}
	case LangRust:
		return []string{"function_item"}
	case LangPython:
		return []string{"function_definition"}
	case LangTypeScript, LangJavaScript, LangTSX:
		return []string{"function_declaration", "generator_function_declaration", "function", "function_expression", "arrow_function", "method_definition"}
	case LangJava:
		return []string{"method_declaration", "constructor_declaration"}
	case LangC, LangCPP:
		return []string{"function_definition"}
	case LangCSharp:
		return []string{"method_declaration", "constructor_declaration", "local_function_statement"}
	case LangRuby:
		return []string{"method", "singleton_method"}
	case LangPHP:
		return []string{"function_definition", "method_declaration"}
	case LangBash:
		return []string{"function_definition"}
	default:
		return nil
	}
}

// scopeNodeTypes returns the node types whose name prefixes the functions
// they contain.
func scopeNodeTypes(lang Language) []string {
	switch lang {
	case LangRust:
		return []string{"impl_item", "trait_item", "mod_item"}
	case LangPython:
		return []string{"class_definition"}
	case LangTypeScript, LangJavaScript, LangTSX:
		return []string{"class_declaration", "abstract_class_declaration", "class"}
	case LangJava:
		return []string{"class_declaration", "interface_declaration", "enum_declaration", "record_declaration"}
	case LangCPP:
		return []string{"class_specifier", "struct_specifier", "namespace_definition"}
	case LangCSharp:
		return []string{"class_declaration", "struct_declaration", "interface_declaration", "record_declaration", "namespace_declaration"}
	case LangRuby:
		return []string{"class", "module"}
	case LangPHP:
		return []string{"class_declaration", "interface_declaration", "trait_declaration"}
	default:
		return nil
	}
}

func scopeName(node *sitter.Node, source []byte, lang Language) string {
	if lang == LangRust && node.Type() == "impl_item" {
		return stripGenerics(GetNodeText(node.ChildByFieldName("type"), source))
	}
	return strings.ReplaceAll(GetNodeText(node.ChildByFieldName("name"), source), "::", ".")
}

// receiverName returns the receiver type of a Go method.
func receiverName(node *sitter.Node, source []byte, lang Language) string {
	if lang != LangGo || node.Type() != "method_declaration" {
		return ""
	}
	recv := node.ChildByFieldName("receiver")
	if recv == nil || recv.NamedChildCount() == 0 {
		return ""
	}
	typ := recv.NamedChild(0).ChildByFieldName("type")
	text := strings.TrimLeft(GetNodeText(typ, source), "*")
	return stripGenerics(text)
}

func stripGenerics(name string) string {
	if i := strings.IndexAny(name, "[<"); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name)
}

// extractFunction extracts function details from an AST node.
func extractFunction(node *sitter.Node, source []byte, lang Language) FunctionNode {
	fn := FunctionNode{
		StartLine: node.StartPoint().Row + 1,
		EndLine:   node.EndPoint().Row + 1,
	}

	switch lang {
	case LangC, LangCPP:
		decl := innermostDeclarator(node.ChildByFieldName("declarator"))
		fn.Name = strings.ReplaceAll(GetNodeText(decl, source), "::", ".")
		fn.Params = countParams(functionDeclarator(node).ChildByFieldName("parameters"), source, lang)
	default:
		fn.Name = GetNodeText(node.ChildByFieldName("name"), source)
		if fn.Name == "" {
			fn.Name = assignedName(node, source)
		}
		if single := node.ChildByFieldName("parameter"); single != nil {
			fn.Params = 1
		} else {
			fn.Params = countParams(node.ChildByFieldName("parameters"), source, lang)
		}
	}

	fn.Body = node.ChildByFieldName("body")
	if fn.Body == nil {
		fn.Body = node.ChildByFieldName("block")
	}
	if fn.Body == nil {
		fn.Body = node.ChildByFieldName("body_statement")
	}

	return fn
}

// assignedName names an anonymous function after the variable, property or
// key it is bound to.
func assignedName(node *sitter.Node, source []byte) string {
	parent := node.Parent()
	if parent == nil {
		return ""
	}
	switch parent.Type() {
	case "variable_declarator", "public_field_definition", "field_definition":
		if n := parent.ChildByFieldName("name"); n != nil {
			return GetNodeText(n, source)
		}
		return GetNodeText(parent.ChildByFieldName("property"), source)
	case "pair":
		return strings.Trim(GetNodeText(parent.ChildByFieldName("key"), source), `"'`)
	case "assignment_expression":
		return GetNodeText(parent.ChildByFieldName("left"), source)
	default:
		return ""
	}
}

var declaratorWrappers = makeSet([]string{
	"pointer_declarator", "reference_declarator", "function_declarator", "parenthesized_declarator",
})

func innermostDeclarator(node *sitter.Node) *sitter.Node {
	for node != nil && declaratorWrappers[node.Type()] {
		next := node.ChildByFieldName("declarator")
		if next == nil && node.NamedChildCount() > 0 {
			next = node.NamedChild(0)
		}
		node = next
	}
	return node
}

func functionDeclarator(node *sitter.Node) *sitter.Node {
	decl := node.ChildByFieldName("declarator")
	for decl != nil && decl.Type() != "function_declarator" {
		next := decl.ChildByFieldName("declarator")
		if next == nil {
			break
		}
		decl = next
	}
	if decl == nil {
		return node
	}
	return decl
}

// countParams counts declared parameters. Go declarations that share a
// type ("a, b int") count each name.
func countParams(params *sitter.Node, source []byte, lang Language) int {
	if params == nil {
		return 0
	}
	count := 0
	for i := range int(params.NamedChildCount()) {
		child := params.NamedChild(i)
		switch child.Type() {
		case "comment":
			continue
		case "parameter_declaration", "variadic_parameter_declaration":
			if lang == LangGo {
				names := 0
				for j := range int(child.NamedChildCount()) {
					if child.NamedChild(j).Type() == "identifier" {
						names++
					}
				}
				if names == 0 {
					names = 1
				}
				count += names
				continue
			}
			if (lang == LangC || lang == LangCPP) && params.NamedChildCount() == 1 &&
				strings.TrimSpace(GetNodeText(child, source)) == "void" {
				return 0
			}
		}
		count++
	}
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
