package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

var errSyntax = errors.New("syntax errors in source")

type syntaxPolicy int

const (
	// tolerateSyntax keeps whatever the error-recovering parse produced.
	tolerateSyntax syntaxPolicy = iota
	// emptyOnSyntax yields an empty result for unparseable files.
	emptyOnSyntax
	// fallbackOnSyntax hands the file to the regex strategy.
	fallbackOnSyntax
)

// captures maps capture names of one query match to their nodes.
type captures map[string]*sitter.Node

// treeSitterExtractor runs a tags-style query and hands every match to a
// language specific handler.
type treeSitterExtractor struct {
	lang     string
	language *sitter.Language
	query    string
	policy   syntaxPolicy
	handle   func(caps captures, src []byte, res *Result)

	once       sync.Once
	compiled   *sitter.Query
	compileErr error
}

func (t *treeSitterExtractor) Language() string { return t.lang }

func (t *treeSitterExtractor) getQuery() (*sitter.Query, error) {
	t.once.Do(func() {
		q, err := sitter.NewQuery([]byte(t.query), t.language)
		if err != nil {
			t.compileErr = fmt.Errorf("compiling %s query: %w", t.lang, err)
			return
		}
		t.compiled = q
	})
	return t.compiled, t.compileErr
}

func (t *treeSitterExtractor) Extract(src []byte) (*Result, error) {
	q, err := t.getQuery()
	if err != nil {
		return nil, err
	}

	// Parsers are not safe for concurrent use; queries are.
	parser := sitter.NewParser()
	parser.SetLanguage(t.language)
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s source: %w", t.lang, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		switch t.policy {
		case emptyOnSyntax:
			return &Result{}, nil
		case fallbackOnSyntax:
			return nil, errSyntax
		}
	}

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, root)

	res := &Result{}
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		caps := make(captures, len(m.Captures))
		for _, c := range m.Captures {
			node := c.Node
			caps[q.CaptureNameForId(c.Index)] = node
		}
		t.handle(caps, src, res)
	}
	return res, nil
}

func treeSitterExtractors() []*treeSitterExtractor {
	return []*treeSitterExtractor{
		newGoExtractor(),
		newPythonExtractor(),
		newRubyExtractor(),
		newJavaScriptExtractor(),
	}
}

// symbolFromNode builds a Symbol spanning def.
func symbolFromNode(kind, name string, def *sitter.Node, src []byte, doc string) Symbol {
	code := Clip(def.Content(src), maxSymbolCode)
	return Symbol{
		Kind:      kind,
		Name:      name,
		Signature: firstLineSignature(code),
		Docstring: doc,
		StartLine: int(def.StartPoint().Row) + 1,
		EndLine:   int(def.EndPoint().Row) + 1,
		Code:      code,
	}
}

// leadingComments returns the comment block directly above node.
func leadingComments(node *sitter.Node, src []byte) string {
	var lines []string
	row := node.StartPoint().Row
	for prev := node.PrevSibling(); prev != nil && prev.Type() == "comment"; prev = prev.PrevSibling() {
		if prev.EndPoint().Row+1 < row {
			break
		}
		lines = append([]string{prev.Content(src)}, lines...)
		row = prev.StartPoint().Row
	}
	return cleanDocComment(strings.Join(lines, "\n"))
}

func cleanDocComment(rawComment string) string {
	if rawComment == "" {
		return ""
	}
	lines := strings.Split(rawComment, "\n")
	var cleaned []string
	for _, l := range lines {
		l = strings.TrimSpace(l)
		l = strings.TrimPrefix(l, "//")
		l = strings.TrimPrefix(l, "#")
		l = strings.TrimPrefix(l, "/*")
		l = strings.TrimSuffix(l, "*/")
		l = strings.TrimPrefix(l, "*")
		cleaned = append(cleaned, strings.TrimSpace(l))
	}
	return strings.TrimSpace(strings.Join(cleaned, "\n"))
}

func unquote(s string) string {
	return strings.Trim(s, "\"'`")
}
