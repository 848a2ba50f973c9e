package extractor

import (
	"github.com/smacker/go-tree-sitter/ruby"
)

func newRubyExtractor() *treeSitterExtractor {
	return &treeSitterExtractor{
		lang:     "ruby",
		language: ruby.GetLanguage(),
		query: `
			(class name: (_) @name) @class
			(method name: (_) @name) @function
			(singleton_method name: (_) @name) @function
			(call method: (identifier) @callee arguments: (argument_list (string (string_content) @import)))
		`,
		policy: tolerateSyntax,
		handle: handleRubyMatch,
	}
}

func handleRubyMatch(caps captures, src []byte, res *Result) {
	if imp, ok := caps["import"]; ok {
		callee := caps["callee"]
		if callee == nil {
			return
		}
		switch callee.Content(src) {
		case "require", "require_relative":
			res.Imports = append(res.Imports, imp.Content(src))
		}
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
	}
}
