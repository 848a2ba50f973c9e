package retrieval

import (
	"sort"
	"strings"

	"repowiki/internal/knowledge"
)

// Lexical returns file and symbol units containing any keyword,
// case-insensitively. Files match on path; symbols on path, name or
// signature. Units with a summary rank first, then shorter paths; ties keep
// corpus order.
func Lexical(units []knowledge.Unit, keywords []string, maxFiles, maxSymbols int) (files, symbols []knowledge.Unit) {
	kw := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			kw = append(kw, k)
		}
	}
	if len(kw) == 0 {
		return nil, nil
	}

	for _, u := range units {
		switch u.Level {
		case knowledge.LevelFile:
			if containsAny(strings.ToLower(u.Path), kw) {
				files = append(files, u)
			}
		case knowledge.LevelSymbol:
			hay := strings.ToLower(u.Path + " " + u.Name + " " + u.Signature)
			if containsAny(hay, kw) {
				symbols = append(symbols, u)
			}
		}
	}

	return rankLexical(files, maxFiles), rankLexical(symbols, maxSymbols)
}

func rankLexical(units []knowledge.Unit, limit int) []knowledge.Unit {
	sort.SliceStable(units, func(i, j int) bool {
		si, sj := units[i].Summary != "", units[j].Summary != ""
		if si != sj {
			return si
		}
		return len(units[i].Path) < len(units[j].Path)
	})
	if limit >= 0 && len(units) > limit {
		units = units[:limit]
	}
	return units
}

func containsAny(s string, kw []string) bool {
	for _, k := range kw {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
