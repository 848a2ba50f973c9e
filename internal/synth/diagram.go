package synth

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"repowiki/internal/retrieval"
	"repowiki/internal/shard"
)

type stageDef struct {
	Key   string
	Label string
	Match []string
}

var stageDefs = []stageDef{
	{Key: "entry", Label: "Entry/API", Match: []string{"main", "cmd", "api", "handler", "controller", "router", "route", "endpoint", "serve", "cli"}},
	{Key: "app", Label: "Orchestration", Match: []string{"service", "orchestr", "pipeline", "runner", "sync", "workflow", "manager", "job"}},
	{Key: "domain", Label: "Domain Logic", Match: []string{"domain", "core", "model", "engine", "extract", "generat", "process"}},
	{Key: "data", Label: "Storage/Index", Match: []string{"store", "repo", "db", "sql", "index", "cache", "vector", "data"}},
	{Key: "output", Label: "Output", Match: []string{"doc", "render", "markdown", "writer", "export", "view", "template"}},
}

// FlowDiagram builds a deterministic mermaid flowchart from evidence. Hits
// are bucketed into pipeline stages by path and name; when fewer than three
// stages are present it falls back to a chain of the busiest top-level
// directories. The result is a mermaid body without fences.
func FlowDiagram(hits []retrieval.Hit) string {
	stageHits := map[string]int{}
	stageExamples := map[string]map[string]int{}
	for _, h := range hits {
		stage := bestStage(h)
		if stage == "" {
			continue
		}
		stageHits[stage]++
		if stageExamples[stage] == nil {
			stageExamples[stage] = map[string]int{}
		}
		stageExamples[stage][shard.Label(shard.TopDir(h.Path))]++
	}

	var ordered []stageDef
	for _, s := range stageDefs {
		if stageHits[s.Key] > 0 {
			ordered = append(ordered, s)
		}
	}
	if len(ordered) < 3 {
		return directoryFlow(hits)
	}

	var sb strings.Builder
	sb.WriteString("flowchart LR\n")
	for _, node := range ordered {
		label := node.Label
		if ex := topExamples(stageExamples[node.Key], 2); len(ex) > 0 {
			label = label + "<br/>" + strings.Join(ex, ", ")
		}
		sb.WriteString(fmt.Sprintf("    %s[%q]\n", sanitizeMermaidID(node.Key), label))
	}
	for i := 1; i < len(ordered); i++ {
		sb.WriteString(fmt.Sprintf("    %s --> %s\n", sanitizeMermaidID(ordered[i-1].Key), sanitizeMermaidID(ordered[i].Key)))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func directoryFlow(hits []retrieval.Hit) string {
	dirCount := make(map[string]int)
	for _, h := range hits {
		if h.Path == "" {
			continue
		}
		dirCount[shard.Label(shard.TopDir(h.Path))]++
	}
	if len(dirCount) == 0 {
		return "flowchart LR\n    A[\"Source\"] --> B[\"Core Logic\"] --> C[\"Output\"]"
	}

	nodes := topExamples(dirCount, 6)
	var sb strings.Builder
	sb.WriteString("flowchart LR\n")
	for i, n := range nodes {
		id := sanitizeMermaidID("dir_" + n)
		sb.WriteString(fmt.Sprintf("    %s[%q]\n", id, n))
		if i > 0 {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", sanitizeMermaidID("dir_"+nodes[i-1]), id))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// topExamples returns up to limit keys of m, most frequent first.
func topExamples(m map[string]int, limit int) []string {
	if len(m) == 0 || limit <= 0 {
		return nil
	}
	type pair struct {
		v string
		n int
	}
	items := make([]pair, 0, len(m))
	for v, n := range m {
		items = append(items, pair{v: v, n: n})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].n == items[j].n {
			return items[i].v < items[j].v
		}
		return items[i].n > items[j].n
	})
	if len(items) > limit {
		items = items[:limit]
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.v)
	}
	return out
}

func bestStage(h retrieval.Hit) string {
	text := strings.ToLower(h.Path + " " + h.Name + " " + h.Summary)
	bestKey := ""
	bestScore := 0
	for _, stage := range stageDefs {
		score := 0
		for _, token := range stage.Match {
			if strings.Contains(text, token) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			bestKey = stage.Key
		}
	}
	return bestKey
}

var nonIDChars = regexp.MustCompile(`[^a-z0-9_]`)

func sanitizeMermaidID(v string) string {
	v = strings.TrimSpace(strings.ToLower(v))
	v = nonIDChars.ReplaceAllString(strings.ReplaceAll(v, "-", "_"), "_")
	if v == "" {
		return "node"
	}
	if v[0] >= '0' && v[0] <= '9' {
		v = "n_" + v
	}
	return v
}
