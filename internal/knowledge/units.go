package knowledge

import (
	"strings"

	"repowiki/internal/extractor"
)

const (
	maxFileCode     = 4000
	maxSymbolCode   = 2000
	maxEmbedCode    = 1500
	maxSummaryInput = 4000
)

// BuildUnits returns the file unit for path followed by one unit per
// extracted symbol. Files without text produce no units.
func BuildUnits(path, text string, a extractor.Analysis) []Unit {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	lang := a.Record.Lang
	if lang == "" {
		lang = extractor.LanguageFor(path)
	}

	units := []Unit{{
		ID:    extractor.FileUnitID(path),
		Level: LevelFile,
		Path:  path,
		Lang:  lang,
		Code:  extractor.Clip(text, maxFileCode),
	}}
	for _, sym := range a.Symbols {
		units = append(units, Unit{
			ID:        extractor.SymbolUnitID(path, sym),
			Level:     LevelSymbol,
			Path:      path,
			Lang:      lang,
			Kind:      sym.Kind,
			Name:      sym.Name,
			Signature: sym.Signature,
			Docstring: sym.Docstring,
			StartLine: sym.StartLine,
			EndLine:   sym.EndLine,
			Code:      extractor.Clip(sym.Code, maxSymbolCode),
		})
	}
	return units
}

// EmbeddingText is the text embedded for u: its summary, or a
// signature/path/code digest when no summary exists.
func EmbeddingText(u Unit) string {
	if s := strings.TrimSpace(u.Summary); s != "" {
		return s
	}
	var parts []string
	if u.Level == LevelSymbol {
		sig := u.Signature
		if sig == "" {
			sig = u.Name
		}
		if sig != "" {
			parts = append(parts, sig)
		}
	}
	parts = append(parts, u.Path)
	if code := extractor.Clip(u.Code, maxEmbedCode); code != "" {
		parts = append(parts, code)
	}
	return strings.Join(parts, "\n")
}

// SplitByLevel partitions units into file and symbol units, keeping order.
func SplitByLevel(units []Unit) (files, symbols []Unit) {
	for _, u := range units {
		if u.Level == LevelSymbol {
			symbols = append(symbols, u)
		} else {
			files = append(files, u)
		}
	}
	return files, symbols
}
