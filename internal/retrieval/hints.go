// Package retrieval selects grounding evidence for a page or a question by
// combining vector search with section-specific lexical matching.
package retrieval

import "repowiki/internal/policy"

// sectionHints are path and symbol fragments that evidence for a section
// tends to contain. Keys are normalized section titles.
var sectionHints = map[string][]string{
	policy.Architecture:     {"architecture", "design", "diagram", "docs/architecture", "docs/design", ".github/workflows", "dockerfile", "docker-compose", "helm", "k8s", "terraform", "ansible"},
	policy.CoreFeatures:     {"core/", "models/", "pipeline", "api", "feature"},
	policy.DataFlow:         {"data/", "dataset", "db/", ".sql", "migrations", "etl", "pipeline"},
	policy.Backend:          {"api/", "/controllers/", "/services/", "/routes/", "server", "backend"},
	policy.Frontend:         {"frontend/", "web/", "ui/", "components/", ".tsx", ".jsx", ".vue", "package.json"},
	policy.ModelIntegration: {"modeling_", "inference", "training", "weights", "checkpoint", "load_model"},
	policy.Deployment:       {"dockerfile", "docker-compose", "helm", "k8s", "terraform", "ansible", ".github/workflows", "jenkinsfile", "cloudbuild"},
	policy.Examples:         {"examples/", ".ipynb", "notebooks/"},
	policy.Overview:         {"readme", "docs/index", "docs/readme"},
	policy.Extensibility:    {"plugin", "extension", "hooks", "interface", "adapter"},
}

// SectionHints returns the lexical keywords for a section title in any
// casing. Unknown sections have none.
func SectionHints(section string) []string {
	return append([]string(nil), sectionHints[policy.NormalizeTitle(section)]...)
}
