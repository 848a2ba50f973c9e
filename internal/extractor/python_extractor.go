package extractor

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

func newPythonExtractor() *treeSitterExtractor {
	return &treeSitterExtractor{
		lang:     "python",
		language: python.GetLanguage(),
		query: `
			(class_definition name: (identifier) @name) @class
			(function_definition name: (identifier) @name) @function
			(import_statement name: (dotted_name) @import)
			(import_statement name: (aliased_import name: (dotted_name) @import))
			(import_from_statement module_name: (dotted_name) @import)
			(import_from_statement module_name: (relative_import (dotted_name) @import))
		`,
		// Files that do not parse contribute no structure.
		policy: emptyOnSyntax,
		handle: handlePythonMatch,
	}
}

func handlePythonMatch(caps captures, src []byte, res *Result) {
	if imp, ok := caps["import"]; ok {
		res.Imports = append(res.Imports, imp.Content(src))
		return
	}
	name, ok := caps["name"]
	if !ok {
		return
	}
	n := name.Content(src)

	if def, ok := caps["class"]; ok {
		res.Classes = append(res.Classes, n)
		res.Symbols = append(res.Symbols, symbolFromNode(KindClass, n, def, src, pythonDocstring(def, src)))
		return
	}
	if def, ok := caps["function"]; ok {
		// Only module level functions count toward the file record.
		if pythonTopLevel(def) {
			res.Functions = append(res.Functions, n)
		}
		res.Symbols = append(res.Symbols, symbolFromNode(KindFunction, n, def, src, pythonDocstring(def, src)))
	}
}

func pythonTopLevel(def *sitter.Node) bool {
	parent := def.Parent()
	if parent != nil && parent.Type() == "decorated_definition" {
		parent = parent.Parent()
	}
	return parent != nil && parent.Type() == "module"
}

func pythonDocstring(def *sitter.Node, src []byte) string {
	body := def.ChildByFieldName("body")
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first == nil || first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	str := first.NamedChild(0)
	if str == nil || str.Type() != "string" {
		return ""
	}
	text := str.Content(src)
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(text, q) && strings.HasSuffix(text, q) && len(text) >= 2*len(q) {
			text = text[len(q) : len(text)-len(q)]
			break
		}
	}
	return strings.TrimSpace(text)
}
