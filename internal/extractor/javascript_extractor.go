package extractor

import (
	"github.com/smacker/go-tree-sitter/javascript"
)

func newJavaScriptExtractor() *treeSitterExtractor {
	return &treeSitterExtractor{
		lang:     "javascript",
		language: javascript.GetLanguage(),
		query: `
			(class_declaration name: (_) @name) @class
			(function_declaration name: (identifier) @name) @function
			(generator_function_declaration name: (identifier) @name) @function
			(variable_declarator name: (identifier) @name value: (_) @value) @binding
			(import_statement source: (string) @import)
			(call_expression function: (identifier) @callee arguments: (arguments (string) @import))
		`,
		// TypeScript and JSX often fail the plain grammar; regexes cope better.
		policy: fallbackOnSyntax,
		handle: handleJavaScriptMatch,
	}
}

func handleJavaScriptMatch(caps captures, src []byte, res *Result) {
	if imp, ok := caps["import"]; ok {
		if callee := caps["callee"]; callee != nil && callee.Content(src) != "require" {
			return
		}
		res.Imports = append(res.Imports, unquote(imp.Content(src)))
		return
	}
	name, ok := caps["name"]
	if !ok {
		return
	}
	n := name.Content(src)

	if def, ok := caps["class"]; ok {
		res.Classes = append(res.Classes, n)
		res.Symbols = append(res.Symbols, symbolFromNode(KindClass, n, def, src, leadingComments(def, src)))
		return
	}
	if def, ok := caps["function"]; ok {
		res.Functions = append(res.Functions, n)
		res.Symbols = append(res.Symbols, symbolFromNode(KindFunction, n, def, src, leadingComments(def, src)))
		return
	}
	if binding, ok := caps["binding"]; ok {
		value := caps["value"]
		if value == nil {
			return
		}
		switch value.Type() {
		case "arrow_function", "function", "function_expression":
		default:
			return
		}
		decl := binding
		if parent := binding.Parent(); parent != nil {
			decl = parent
		}
		res.Functions = append(res.Functions, n)
		res.Symbols = append(res.Symbols, symbolFromNode(KindFunction, n, decl, src, leadingComments(decl, src)))
	}
}
