package extractor

import (
	"regexp"
	"sort"
	"strings"
)

const (
	ident   = `[A-Za-z_][A-Za-z0-9_]*`
	jsIdent = `[A-Za-z_$][A-Za-z0-9_$]*`
)

// maxSymbolCode bounds the code carried on a Symbol.
const maxSymbolCode = 4000

type pattern struct {
	re *regexp.Regexp
	// symbolOnly matches become symbols but not FileRecord names.
	symbolOnly bool
}

func p(expr string) pattern { return pattern{re: regexp.MustCompile(expr)} }

func symbolOnly(expr string) pattern {
	return pattern{re: regexp.MustCompile(expr), symbolOnly: true}
}

// regexExtractor is a heuristic strategy driven by a table of patterns. Each
// pattern captures the name in group 1.
type regexExtractor struct {
	lang      string
	classes   []pattern
	functions []pattern
	imports   []pattern
	// expand turns one import capture into module names.
	expand func(string) []string
	// extraImports finds imports the flat patterns cannot express.
	extraImports func(string) []string
	// skipNames filters false positive function names.
	skipNames map[string]bool
}

func (r *regexExtractor) Language() string { return r.lang }

func (r *regexExtractor) Extract(src []byte) (*Result, error) {
	text := string(src)
	lines := newLineIndex(text)
	res := &Result{}

	type hit struct {
		kind  string
		name  string
		start int
	}
	var hits []hit

	collect := func(patterns []pattern, kind string, names *[]string) {
		for _, pt := range patterns {
			for _, m := range pt.re.FindAllStringSubmatchIndex(text, -1) {
				if len(m) < 4 || m[2] < 0 {
					continue
				}
				name := text[m[2]:m[3]]
				if r.skipNames[name] {
					continue
				}
				if !pt.symbolOnly {
					*names = append(*names, name)
				}
				hits = append(hits, hit{kind: kind, name: name, start: lines.lineStart(m[0])})
			}
		}
	}
	collect(r.classes, KindClass, &res.Classes)
	collect(r.functions, KindFunction, &res.Functions)

	for _, pt := range r.imports {
		for _, m := range pt.re.FindAllStringSubmatch(text, -1) {
			if len(m) < 2 {
				continue
			}
			if r.expand != nil {
				res.Imports = append(res.Imports, r.expand(m[1])...)
			} else {
				res.Imports = append(res.Imports, strings.TrimSpace(m[1]))
			}
		}
	}
	if r.extraImports != nil {
		res.Imports = append(res.Imports, r.extraImports(text)...)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].start < hits[j].start })
	for i, h := range hits {
		end := len(text)
		for k := i + 1; k < len(hits); k++ {
			if hits[k].start > h.start {
				end = hits[k].start
				break
			}
		}
		code := Clip(strings.TrimRight(text[h.start:end], "\n\r\t "), maxSymbolCode)
		res.Symbols = append(res.Symbols, Symbol{
			Kind:      h.kind,
			Name:      h.name,
			Signature: firstLineSignature(code),
			StartLine: lines.lineOf(h.start),
			EndLine:   lines.lineOf(h.start + len(code)),
			Code:      code,
		})
	}
	return res, nil
}

func regexExtractors() []*regexExtractor {
	cKeywords := map[string]bool{
		"if": true, "for": true, "while": true, "switch": true, "return": true,
		"else": true, "sizeof": true, "catch": true,
	}
	cIncludes := p(`#\s*include\s*[<"]([^>"]+)[>"]`)
	cClasses := p(`\b(?:class|struct)\s+(` + ident + `)\b`)
	cFunctions := p(`(?m)^[ \t]*[A-Za-z_][\w:\s\*&<>]*\s+(` + ident + `)\s*\([^;]*\)\s*\{`)

	return []*regexExtractor{
		{
			lang:    "python",
			classes: []pattern{p(`(?m)^[ \t]*class\s+(` + ident + `)`)},
			functions: []pattern{
				p(`(?m)^(?:async\s+)?def\s+(` + ident + `)\s*\(`),
				symbolOnly(`(?m)^[ \t]+(?:async\s+)?def\s+(` + ident + `)\s*\(`),
			},
			imports: []pattern{
				p(`(?m)^[ \t]*import\s+([\w\.]+(?:[ \t]+as[ \t]+\w+)?(?:[ \t]*,[ \t]*[\w\.]+(?:[ \t]+as[ \t]+\w+)?)*)`),
				p(`(?m)^[ \t]*from\s+\.*([\w\.]+)\s+import\b`),
			},
			expand: splitPythonImports,
		},
		{
			lang:    "javascript",
			classes: []pattern{p(`\bclass\s+(` + jsIdent + `)`)},
			functions: []pattern{
				p(`\bfunction\s+(` + jsIdent + `)\s*\(`),
				p(`\b(?:const|let|var)\s+(` + jsIdent + `)\s*=\s*function\b`),
				p(`\b(?:const|let|var)\s+(` + jsIdent + `)\s*=\s*(?:async\s*)?\(`),
			},
			imports: []pattern{
				p(`\bimport\s+(?:[\s\S]*?\s+from\s+)?['"]([^'"]+)['"]`),
				p(`\brequire\(\s*['"]([^'"]+)['"]\s*\)`),
			},
		},
		{
			lang:    "java",
			classes: []pattern{p(`\b(?:class|interface|enum)\s+(` + ident + `)\b`)},
			imports: []pattern{p(`\bimport\s+(?:static\s+)?([A-Za-z0-9_\.\*]+)\s*;`)},
		},
		{
			lang:      "go",
			classes:   []pattern{p(`\btype\s+(` + ident + `)\s+struct\b`)},
			functions: []pattern{p(`\bfunc\s+(?:\([^)]+\)\s*)?(` + ident + `)\s*[\[(]`)},
			imports:   []pattern{p(`\bimport\s+(?:` + ident + `\s+)?"([^"]+)"`)},
			extraImports: goImportBlocks,
		},
		{
			lang:      "c",
			classes:   []pattern{cClasses},
			functions: []pattern{cFunctions},
			imports:   []pattern{cIncludes},
			skipNames: cKeywords,
		},
		{
			lang:      "cpp",
			classes:   []pattern{cClasses},
			functions: []pattern{cFunctions},
			imports:   []pattern{cIncludes},
			skipNames: cKeywords,
		},
		{
			lang:      "rust",
			classes:   []pattern{p(`\b(?:struct|enum)\s+(` + ident + `)\b`)},
			functions: []pattern{p(`\bfn\s+(` + ident + `)\s*[<(]`)},
			imports:   []pattern{p(`\buse\s+([A-Za-z0-9_:\{\}\*,\s]+);`)},
			expand:    func(s string) []string { return []string{CollapseWhitespace(s)} },
		},
		{
			lang:      "ruby",
			classes:   []pattern{p(`\bclass\s+(` + ident + `)\b`)},
			functions: []pattern{p(`(?m)^\s*def\s+(?:self\.)?(` + ident + `[?!=]?)`)},
			imports:   []pattern{p(`\b(?:require|require_relative)\s*\(?\s*['"]([^'"]+)['"]`)},
		},
		{
			lang:      "php",
			classes:   []pattern{p(`\bclass\s+(` + ident + `)\b`)},
			functions: []pattern{p(`\bfunction\s+(` + ident + `)\s*\(`)},
			imports:   []pattern{p(`\buse\s+([A-Za-z0-9_\\]+)\s*;`)},
		},
		{
			lang:      "kotlin",
			classes:   []pattern{p(`\b(?:class|object|interface)\s+(` + ident + `)\b`)},
			functions: []pattern{p(`\bfun\s+(?:<[^>]*>\s*)?(?:` + ident + `\.)?(` + ident + `)\s*\(`)},
			imports:   []pattern{p(`\bimport\s+([A-Za-z0-9_\.]+)`)},
		},
	}
}

var (
	goImportBlockRe = regexp.MustCompile(`(?s)\bimport\s*\((.*?)\)`)
	quotedRe        = regexp.MustCompile(`"([^"]+)"`)
)

func goImportBlocks(text string) []string {
	var out []string
	for _, block := range goImportBlockRe.FindAllStringSubmatch(text, -1) {
		for _, m := range quotedRe.FindAllStringSubmatch(block[1], -1) {
			out = append(out, m[1])
		}
	}
	return out
}

func splitPythonImports(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		fields := strings.Fields(part)
		if len(fields) > 0 {
			out = append(out, fields[0])
		}
	}
	return out
}

type lineIndex struct {
	starts []int
}

func newLineIndex(text string) lineIndex {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return lineIndex{starts: starts}
}

// lineOf returns the 1-based line containing offset.
func (l lineIndex) lineOf(offset int) int {
	return sort.Search(len(l.starts), func(i int) bool { return l.starts[i] > offset })
}

func (l lineIndex) lineStart(offset int) int {
	return l.starts[l.lineOf(offset)-1]
}
