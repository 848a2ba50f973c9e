package policy

import (
	"path"
	"strings"
)

// Signals are path-derived facts about a repository.
type Signals struct {
	HasPy     bool `json:"has_py"`
	HasJSTS   bool `json:"has_js_ts"`
	HasJava   bool `json:"has_java"`
	HasCpp    bool `json:"has_cpp"`
	HasGo     bool `json:"has_go"`
	HasRust   bool `json:"has_rust"`
	HasKotlin bool `json:"has_kotlin"`
	HasPHP    bool `json:"has_php"`
	HasRuby   bool `json:"has_ruby"`

	ExamplesDir bool `json:"has_examples_dir"`
	Notebooks   bool `json:"has_notebooks"`
	Docs        bool `json:"has_docs"`
	Scripts     bool `json:"has_scripts"`
	Bench       bool `json:"has_bench"`
	Infra       bool `json:"has_infra"`
	Frontend    bool `json:"has_frontend"`
	Backend     bool `json:"has_backend"`
	Data        bool `json:"has_data"`
	Models      bool `json:"has_models"`
}

// BackendLike is true for backend markers or any server-side language.
func (s Signals) BackendLike() bool {
	return s.Backend || s.HasPy || s.HasJava || s.HasGo || s.HasRust || s.HasPHP || s.HasKotlin
}

var (
	infraTokens    = []string{"dockerfile", "docker-compose", "helm", "k8s", "terraform", "ansible", ".github/workflows", "cloudbuild", "jenkinsfile"}
	frontendTokens = []string{"package.json", "vite.config", "webpack.config", "src/components", "src/app", "next.config"}
	backendTokens  = []string{"api/", "/controllers/", "/services/", "/routes/"}
	dataTokens     = []string{"data/", "/dataset", "/etl", "/pipeline", "/db/", ".sql", "migrations/"}
	modelTokens    = []string{"model", "inference", "training", "weights"}
	// Short tokens only count as whole name parts, so "html" is not "ml".
	modelWords = map[string]bool{"ml": true, "nn": true}
)

// DeriveSignals computes signals from repository-relative paths.
func DeriveSignals(paths []string) Signals {
	var s Signals
	for _, raw := range paths {
		p := strings.ToLower(raw)
		switch path.Ext(p) {
		case ".py":
			s.HasPy = true
		case ".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs":
			s.HasJSTS = true
		case ".java":
			s.HasJava = true
		case ".c", ".h", ".cc", ".cpp", ".cxx", ".hpp", ".hh", ".hxx":
			s.HasCpp = true
		case ".go":
			s.HasGo = true
		case ".rs":
			s.HasRust = true
		case ".kt", ".kts":
			s.HasKotlin = true
		case ".php":
			s.HasPHP = true
		case ".rb":
			s.HasRuby = true
		}

		if strings.Contains(p, "/examples/") || strings.HasPrefix(p, "examples/") {
			s.ExamplesDir = true
		}
		if strings.HasSuffix(p, ".ipynb") || strings.Contains(p, "/notebook") {
			s.Notebooks = true
		}
		if p == "readme" || p == "readme.md" || strings.HasPrefix(p, "docs/") || strings.Contains(p, "/docs/") ||
			strings.HasSuffix(p, "mkdocs.yml") || strings.HasSuffix(p, "mkdocs.yaml") {
			s.Docs = true
		}
		if strings.Contains(p, "/scripts/") || strings.HasPrefix(p, "scripts/") {
			s.Scripts = true
		}
		if strings.Contains(p, "bench") || strings.Contains(p, "perf") {
			s.Bench = true
		}
		s.Infra = s.Infra || containsAny(p, infraTokens)
		s.Frontend = s.Frontend || containsAny(p, frontendTokens)
		s.Backend = s.Backend || containsAny(p, backendTokens)
		s.Data = s.Data || containsAny(p, dataTokens)
		s.Models = s.Models || containsAny(p, modelTokens) || hasWord(p, modelWords)
	}
	return s
}

func containsAny(p string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(p, t) {
			return true
		}
	}
	return false
}

func hasWord(p string, words map[string]bool) bool {
	parts := strings.FieldsFunc(p, func(r rune) bool {
		return r == '/' || r == '.' || r == '_' || r == '-'
	})
	for _, part := range parts {
		if words[part] {
			return true
		}
	}
	return false
}
