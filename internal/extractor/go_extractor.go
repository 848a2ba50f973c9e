package extractor

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

func newGoExtractor() *treeSitterExtractor {
	return &treeSitterExtractor{
		lang:     "go",
		language: golang.GetLanguage(),
		query: `
			(function_declaration name: (identifier) @name) @function
			(method_declaration name: (field_identifier) @name) @function
			(type_spec name: (type_identifier) @name type: (struct_type)) @class
			(import_spec path: (interpreted_string_literal) @import)
		`,
		policy: tolerateSyntax,
		handle: handleGoMatch,
	}
}

func handleGoMatch(caps captures, src []byte, res *Result) {
	if imp, ok := caps["import"]; ok {
		res.Imports = append(res.Imports, unquote(imp.Content(src)))
		return
	}
	name, ok := caps["name"]
	if !ok {
		return
	}
	n := name.Content(src)

	if def, ok := caps["function"]; ok {
		res.Functions = append(res.Functions, n)
		res.Symbols = append(res.Symbols, symbolFromNode(KindFunction, n, def, src, leadingComments(def, src)))
		return
	}
	if def, ok := caps["class"]; ok {
		res.Classes = append(res.Classes, n)
		res.Symbols = append(res.Symbols, symbolFromNode(KindClass, n, goTypeDecl(def), src, leadingComments(goTypeDecl(def), src)))
	}
}

// goTypeDecl widens a type_spec to its declaration so excerpts include the
// type keyword and doc comments attach.
func goTypeDecl(spec *sitter.Node) *sitter.Node {
	if parent := spec.Parent(); parent != nil && parent.Type() == "type_declaration" && parent.NamedChildCount() == 1 {
		return parent
	}
	return spec
}
