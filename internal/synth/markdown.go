package synth

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New(
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
	),
)

func parse(src []byte) ast.Node {
	return markdown.Parser().Parse(text.NewReader(src))
}

// MermaidBlocks returns the bodies of fenced ```mermaid blocks in md.
func MermaidBlocks(md string) []string {
	src := []byte(md)
	var out []string
	ast.Walk(parse(src), func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fcb, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		if strings.EqualFold(string(fcb.Language(src)), "mermaid") {
			if body := strings.TrimSpace(blockText(fcb, src)); body != "" {
				out = append(out, body)
			}
		}
		return ast.WalkSkipChildren, nil
	})
	return out
}

func blockText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(src))
	}
	return buf.String()
}

// codeSpans returns the text of inline code spans in document order.
func codeSpans(md string) []string {
	src := []byte(md)
	var out []string
	ast.Walk(parse(src), func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != ast.KindCodeSpan {
			return ast.WalkContinue, nil
		}
		var buf bytes.Buffer
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				buf.Write(t.Segment.Value(src))
			}
		}
		out = append(out, strings.TrimSpace(buf.String()))
		return ast.WalkSkipChildren, nil
	})
	return out
}

// span is a byte range of a markdown source.
type span struct {
	start, end int
}

// headingSection locates the level-2 heading whose text equals title
// (case-insensitive) and returns the range from the start of its line to
// the next heading of level 2 or above, or the end of md.
func headingSection(md, title string) (span, bool) {
	src := []byte(md)
	result := span{start: -1, end: len(src)}
	ast.Walk(parse(src), func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok || h.Lines().Len() == 0 {
			return ast.WalkContinue, nil
		}
		lineStart := lineStartOf(src, h.Lines().At(0).Start)
		if result.start < 0 {
			if h.Level == 2 && strings.EqualFold(strings.TrimSpace(string(h.Lines().Value(src))), title) {
				result.start = lineStart
			}
			return ast.WalkSkipChildren, nil
		}
		if h.Level <= 2 {
			result.end = lineStart
			return ast.WalkStop, nil
		}
		return ast.WalkSkipChildren, nil
	})
	return result, result.start >= 0
}

func lineStartOf(src []byte, pos int) int {
	if pos > len(src) {
		pos = len(src)
	}
	return bytes.LastIndexByte(src[:pos], '\n') + 1
}

// ExtractDiagram pulls a mermaid body out of a diagram-only reply. A reply
// without a fenced block is taken as the body itself.
func ExtractDiagram(reply string) string {
	if blocks := MermaidBlocks(reply); len(blocks) > 0 {
		return blocks[0]
	}
	body := strings.TrimSpace(reply)
	body = strings.TrimPrefix(body, "```mermaid")
	body = strings.Trim(body, "`")
	return strings.TrimSpace(body)
}

const diagramCaption = "Diagram: auto-generated fallback."

// InsertDiagram places a mermaid block under "## Diagram(s)", adding that
// heading at the end when the page has none.
func InsertDiagram(md, code string) string {
	block := "\n```mermaid\n" + strings.TrimSpace(code) + "\n```\n\n" + diagramCaption + "\n"
	if s, ok := headingSection(md, "Diagram(s)"); ok {
		headingEnd := strings.IndexByte(md[s.start:], '\n')
		if headingEnd < 0 {
			return md + "\n" + block
		}
		at := s.start + headingEnd + 1
		return md[:at] + block + md[at:]
	}
	return strings.TrimRight(md, "\n") + "\n\n## Diagram(s)\n" + block
}
