package extractor

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// FileUnitID is the evidence unit id of a whole file.
func FileUnitID(path string) string {
	return "file::" + path
}

// SymbolUnitID is the evidence unit id of a symbol. The start line keeps
// overloaded or repeated names apart.
func SymbolUnitID(path string, sym Symbol) string {
	kind := strings.TrimSpace(sym.Kind)
	if kind == "" {
		kind = KindFunction
	}
	name := strings.TrimSpace(sym.Name)
	if name == "" {
		name = "_"
	}
	return fmt.Sprintf("symbol::%s::%s::%s::%d", path, kind, name, sym.StartLine)
}

// CollapseWhitespace replaces runs of whitespace with a single space and trims.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// Clip truncates s to at most n bytes without splitting a rune.
func Clip(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func firstLineSignature(code string) string {
	line := code
	if i := strings.IndexByte(code, '\n'); i >= 0 {
		line = code[:i]
	}
	line = CollapseWhitespace(line)
	line = strings.TrimSuffix(line, "{")
	line = strings.TrimSuffix(line, ":")
	return strings.TrimSpace(line)
}
