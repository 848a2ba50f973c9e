package extractor

import (
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strings"
)

// LangText is the tag for files no strategy understands.
const LangText = "text"

var extensionLanguages = map[string]string{
	".py":   "python",
	".js":   "javascript",
	".jsx":  "javascript",
	".ts":   "javascript",
	".tsx":  "javascript",
	".mjs":  "javascript",
	".cjs":  "javascript",
	".java": "java",
	".go":   "go",
	".c":    "c",
	".h":    "c",
	".cc":   "cpp",
	".cpp":  "cpp",
	".cxx":  "cpp",
	".hpp":  "cpp",
	".hh":   "cpp",
	".hxx":  "cpp",
	".h++":  "cpp",
	".c++":  "cpp",
	".rs":   "rust",
	".rb":   "ruby",
	".php":  "php",
	".kt":   "kotlin",
	".kts":  "kotlin",
}

// LanguageFor returns the language tag for path, or LangText.
func LanguageFor(path string) string {
	if lang, ok := extensionLanguages[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return LangText
}

// Extractor dispatches files to language strategies. A language may have a
// primary strategy and a fallback used when the primary fails.
type Extractor struct {
	primary  map[string]LanguageExtractor
	fallback map[string]LanguageExtractor
}

// NewExtractor creates an extractor with every built-in strategy registered.
func NewExtractor() *Extractor {
	e := &Extractor{
		primary:  map[string]LanguageExtractor{},
		fallback: map[string]LanguageExtractor{},
	}
	for _, rx := range regexExtractors() {
		e.primary[rx.Language()] = rx
	}
	for _, ts := range treeSitterExtractors() {
		if rx, ok := e.primary[ts.Language()]; ok {
			e.fallback[ts.Language()] = rx
		}
		e.primary[ts.Language()] = ts
	}
	return e
}

// Register replaces the primary strategy for its language.
func (e *Extractor) Register(le LanguageExtractor) {
	e.primary[le.Language()] = le
}

// Extract returns the FileRecord for a file. It never fails.
func (e *Extractor) Extract(path, text string) FileRecord {
	return e.Analyze(path, text).Record
}

// Analyze returns the FileRecord plus the symbols found in the file.
func (e *Extractor) Analyze(path, text string) Analysis {
	lang := LanguageFor(path)
	rec := FileRecord{
		Path:      path,
		Lang:      lang,
		Classes:   []string{},
		Functions: []string{},
		Imports:   []string{},
	}

	le, ok := e.primary[lang]
	if !ok || text == "" {
		return Analysis{Record: rec}
	}

	res, err := runSafely(le, []byte(text))
	if err != nil {
		if fb, ok := e.fallback[lang]; ok {
			res, err = runSafely(fb, []byte(text))
		}
	}
	if err != nil || res == nil {
		log.Printf("WARNING: extraction failed for %s: %v", path, err)
		return Analysis{Record: rec}
	}

	rec.Classes = sortedUnique(res.Classes)
	rec.Functions = sortedUnique(res.Functions)
	rec.Imports = sortedUnique(res.Imports)

	symbols := append([]Symbol(nil), res.Symbols...)
	sort.SliceStable(symbols, func(i, j int) bool {
		if symbols[i].StartLine != symbols[j].StartLine {
			return symbols[i].StartLine < symbols[j].StartLine
		}
		if symbols[i].Kind != symbols[j].Kind {
			return symbols[i].Kind < symbols[j].Kind
		}
		return symbols[i].Name < symbols[j].Name
	})
	return Analysis{Record: rec, Symbols: dedupeSymbols(symbols)}
}

func runSafely(le LanguageExtractor, src []byte) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("%s strategy panicked: %v", le.Language(), r)
		}
	}()
	return le.Extract(src)
}

func sortedUnique(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func dedupeSymbols(symbols []Symbol) []Symbol {
	seen := make(map[string]bool, len(symbols))
	out := symbols[:0]
	for _, s := range symbols {
		key := fmt.Sprintf("%s|%s|%d", s.Kind, s.Name, s.StartLine)
		if s.Name == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
