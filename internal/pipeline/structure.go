package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"repowiki/internal/knowledge"
	"repowiki/internal/policy"
	"repowiki/internal/shard"
	"repowiki/internal/wiki"

	"golang.org/x/sync/errgroup"
)

// StructureOptions configure BuildStructure.
type StructureOptions struct {
	OwnerRepo   string
	SourceURL   string
	Description string
	Language    string
	Policy      policy.Policy
	// Files is the full repository file set; relevant files outside it are
	// pruned.
	Files  map[string]bool
	Readme string

	Workers          int
	MaxFilesPerShard int
	MaxContextFiles  int
	MinPages         int
	MaxPages         int
	Refine           bool

	// PartialDir receives partial__<shard>.xml for inspection when set.
	PartialDir string
}

// BuildStructure runs shard synthesis in parallel, merges the partials,
// prunes and renumbers, optionally refines, and composes the final tree.
// A shard whose generation fails contributes an empty partial.
func BuildStructure(ctx context.Context, gen knowledge.Generator, shards []*shard.Shard, opts StructureOptions) (wiki.Structure, error) {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}

	partials := make([]wiki.Partial, len(shards))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, sh := range shards {
		g.Go(func() error {
			partials[i] = synthesizeShard(gctx, gen, sh, opts)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return wiki.Structure{}, err
	}

	merged := wiki.Merge(partials)
	pruned := wiki.PruneAndRenumber(merged, opts.Policy.IsAllowed, opts.Files)
	log.Printf("Merged %d shard partials: %d sections, %d pages (%d pages before pruning)",
		len(partials), len(pruned.Sections), len(pruned.Pages), len(merged.Pages))

	final := pruned
	if opts.Refine && len(pruned.Pages) > 0 {
		final = refine(ctx, gen, pruned, opts)
	}
	return wiki.Compose(final, opts.OwnerRepo, opts.Description), nil
}

func synthesizeShard(ctx context.Context, gen knowledge.Generator, sh *shard.Shard, opts StructureOptions) wiki.Partial {
	label := sh.Key
	prompt := ShardPrompt(ShardRequest{
		OwnerRepo:    opts.OwnerRepo,
		SourceURL:    opts.SourceURL,
		Language:     opts.Language,
		Shard:        label,
		Files:        RankFiles(sh.Graph, opts.MaxFilesPerShard),
		ContextFiles: opts.MaxContextFiles,
		Allowed:      opts.Policy.AllowedDisplay(),
		Forbidden:    displayAll(opts.Policy.Forbidden),
		Readme:       opts.Readme,
		MinPages:     opts.MinPages,
		MaxPages:     opts.MaxPages,
	})

	text, err := gen.Generate(ctx, "", prompt)
	if err != nil {
		log.Printf("WARNING: shard %s failed, continuing without it: %v", label, err)
		return wiki.Partial{Shard: label}
	}
	p := wiki.ParsePartial(label, text)
	if len(p.Sections) == 0 {
		log.Printf("WARNING: shard %s returned no usable sections", label)
	}
	if opts.PartialDir != "" {
		if err := writePartial(opts.PartialDir, label, p); err != nil {
			log.Printf("WARNING: could not save partial for shard %s: %v", label, err)
		}
	}
	return p
}

func writePartial(dir, label string, p wiki.Partial) error {
	data, err := wiki.MarshalPartialXML(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "partial__"+label+".xml"), data, 0o644)
}

// refine asks for a normalized tree and prunes it again. The input tree is
// kept when the call fails or nothing survives.
func refine(ctx context.Context, gen knowledge.Generator, s wiki.Structure, opts StructureOptions) wiki.Structure {
	merged, err := wiki.MarshalXML(wiki.Compose(s, opts.OwnerRepo, opts.Description))
	if err != nil {
		log.Printf("WARNING: refine skipped: %v", err)
		return s
	}
	text, err := gen.Generate(ctx, "", RefinePrompt(RefineRequest{
		OwnerRepo: opts.OwnerRepo,
		SourceURL: opts.SourceURL,
		Language:  opts.Language,
		Merged:    string(merged),
		Allowed:   opts.Policy.AllowedDisplay(),
		Readme:    opts.Readme,
	}))
	if err != nil {
		log.Printf("WARNING: refine failed, keeping merged tree: %v", err)
		return s
	}

	refined, err := wiki.ParseStructure(text)
	if err != nil {
		if !errors.Is(err, wiki.ErrNoStructure) {
			log.Printf("WARNING: refine output unreadable: %v", err)
		}
		log.Printf("WARNING: refine returned no structure, keeping merged tree")
		return s
	}
	refined = wiki.PruneAndRenumber(wiki.Reconcile(refined), opts.Policy.IsAllowed, opts.Files)
	if len(refined.Pages) == 0 {
		log.Printf("WARNING: refined tree is empty after pruning, keeping merged tree")
		return s
	}
	return refined
}

func displayAll(norm []string) []string {
	out := make([]string, len(norm))
	for i, n := range norm {
		out[i] = policy.DisplayTitle(n)
	}
	return out
}

// ShardsInOrder returns the shards of m in manifest order.
func ShardsInOrder(m *shard.Manifest, shards map[string]*shard.Shard) ([]*shard.Shard, error) {
	out := make([]*shard.Shard, 0, len(m.Shards))
	for _, e := range m.Shards {
		s, ok := shards[e.TopDir]
		if !ok {
			return nil, fmt.Errorf("manifest lists shard %q with no data", e.TopDir)
		}
		out = append(out, s)
	}
	return out, nil
}
