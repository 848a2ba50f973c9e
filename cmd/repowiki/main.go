package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"repowiki/internal/config"
	"repowiki/internal/index"
	"repowiki/internal/pipeline"
	"repowiki/internal/synth"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "repowiki",
		Short: "Turn a repository into a browsable, grounded wiki",
	}
	configPath string
	cacheDir   string

	pageIDs      []string
	changedSince string
	force        bool
	question     string
	nodeID       string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "Directory holding snapshot state (overrides the config)")

	pagesCmd.Flags().StringSliceVar(&pageIDs, "page", nil, "Only render these page ids")
	pagesCmd.Flags().StringVar(&changedSince, "changed-since", "", "Also render pages citing files changed since this git ref")
	pagesCmd.Flags().BoolVar(&force, "force", false, "Ignore cached pages")
	buildCmd.Flags().BoolVar(&force, "force", false, "Ignore cached pages")
	chatCmd.Flags().StringVarP(&question, "question", "q", "", "Answer one question and exit")
	expandCmd.Flags().StringVar(&nodeID, "node", "", "Print only this node with its dependencies and dependents")

	rootCmd.AddCommand(scanCmd, structureCmd, indexCmd, pagesCmd, buildCmd, chatCmd, expandCmd, validateCmd)
}

func loadConfig() *config.Config {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cacheDir != "" {
		cfg.CacheDir = cacheDir
	}
	return cfg
}

// openSnapshot opens the snapshot named by arg. Providers are built only for
// commands that call a model.
func openSnapshot(ctx context.Context, arg string, withProviders bool) *pipeline.Snapshot {
	cfg := loadConfig()
	var providers pipeline.Providers
	if withProviders {
		var err error
		if providers, err = pipeline.NewProviders(ctx, cfg); err != nil {
			log.Fatalf("Setup failed: %v\nCheck your config.yaml and API keys.", err)
		}
	}
	s, err := pipeline.Open(ctx, cfg, arg, providers)
	if err != nil {
		log.Fatalf("Failed to open repository: %v", err)
	}
	return s
}

func fatalIfCorrupt(err error) {
	if errors.Is(err, index.ErrCorrupt) {
		log.Fatalf("Index is corrupt, rerun index: %v", err)
	}
}

var scanCmd = &cobra.Command{
	Use:   "scan <repo-path-or-github-url>",
	Short: "Crawl the repository and persist its graph and shards",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := openSnapshot(ctx, args[0], false)
		defer s.Close()

		fmt.Printf("📂 Scanning %s\n", s.Source.FilesRoot())
		res, err := s.Scan(ctx)
		if err != nil {
			log.Fatalf("Scan failed: %v", err)
		}
		fmt.Printf("✅ %d files, %d classes, %d functions, %d imports in %d shards.\n",
			res.Totals.Files, res.Totals.Classes, res.Totals.Functions, res.Totals.Imports, len(res.Manifest.Shards))
		if mix := res.Totals.LanguageMix(); len(mix) > 0 {
			fmt.Printf("🗂  Languages: %s\n", strings.Join(mix, ", "))
		}
	},
}

var structureCmd = &cobra.Command{
	Use:   "structure <repo-path-or-github-url>",
	Short: "Synthesize the wiki structure from the scanned shards",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := openSnapshot(ctx, args[0], true)
		defer s.Close()

		fmt.Println("🧭 Planning the wiki...")
		w, err := s.Structure(ctx)
		if err != nil {
			log.Fatalf("Structure failed: %v", err)
		}
		fmt.Printf("✅ %q: %d sections, %d pages in %s\n", w.Title, len(w.Sections), len(w.Pages), s.Layout.WikiXML())
	},
}

var indexCmd = &cobra.Command{
	Use:   "index <repo-path-or-github-url>",
	Short: "Build, summarize and embed the evidence units",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := openSnapshot(ctx, args[0], true)
		defer s.Close()

		fmt.Println("🧠 Indexing evidence units...")
		stats, err := s.Index(ctx)
		if err != nil {
			log.Fatalf("Index failed: %v", err)
		}
		fmt.Printf("✅ %d file units, %d symbol units (%d summarized), dimension %d.\n",
			stats.FileUnits, stats.SymbolUnits, stats.Summarized, stats.Dimension)
	},
}

func printPages(results []synth.PageResult) {
	hits := 0
	for _, r := range results {
		mark := "✍️ "
		if r.CacheHit {
			mark = "♻️ "
			hits++
		}
		fmt.Printf("  %s %s  %s (%s)\n", mark, r.ID, r.Title, r.Section)
	}
	fmt.Printf("✅ %d pages (%d from cache).\n", len(results), hits)
}

var pagesCmd = &cobra.Command{
	Use:   "pages <repo-path-or-github-url>",
	Short: "Render wiki pages from the structure and the evidence index",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := openSnapshot(ctx, args[0], true)
		defer s.Close()

		fmt.Println("🚀 Rendering pages...")
		results, err := s.Pages(ctx, pipeline.PagesOptions{PageIDs: pageIDs, ChangedSince: changedSince, Force: force})
		if err != nil {
			fatalIfCorrupt(err)
			log.Fatalf("Pages failed: %v", err)
		}
		printPages(results)
		fmt.Printf("📄 Wiki written to %s\n", s.Layout.Pages())
	},
}

var buildCmd = &cobra.Command{
	Use:   "build <repo-path-or-github-url>",
	Short: "Run scan, structure, index and pages",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := openSnapshot(ctx, args[0], true)
		defer s.Close()

		results, err := s.Build(ctx, force)
		if err != nil {
			fatalIfCorrupt(err)
			log.Fatalf("Build failed: %v", err)
		}
		printPages(results)
		fmt.Printf("📄 Wiki written to %s\n", s.Layout.Pages())
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat <repo-path-or-github-url>",
	Short: "Ask questions grounded in the indexed code",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := openSnapshot(ctx, args[0], true)
		defer s.Close()

		ask := func(history []synth.Turn, q string) synth.Answer {
			ans, err := s.Chat(ctx, history, q)
			if err != nil {
				fatalIfCorrupt(err)
				log.Fatalf("Chat failed: %v", err)
			}
			fmt.Println(ans.Text)
			if len(ans.UnitIDs) > 0 {
				fmt.Printf("\n📎 %s\n", strings.Join(ans.UnitIDs, ", "))
			}
			return ans
		}

		if question != "" {
			ask(nil, question)
			return
		}

		var history []synth.Turn
		in := bufio.NewScanner(os.Stdin)
		fmt.Print("❓ ")
		for in.Scan() {
			q := strings.TrimSpace(in.Text())
			switch q {
			case "":
			case "exit", "quit":
				return
			default:
				ans := ask(history, q)
				history = append(history, synth.Turn{Question: q, Answer: ans.Text})
				fmt.Println()
			}
			fmt.Print("❓ ")
		}
	},
}

var expandCmd = &cobra.Command{
	Use:   "expand <repo-path-or-github-url> <shard>",
	Short: "Print the node/edge view of one shard as JSON",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := openSnapshot(ctx, args[0], false)
		defer s.Close()

		var view any
		var err error
		if nodeID != "" {
			view, err = s.ExpandNode(args[1], nodeID)
		} else {
			view, err = s.Expand(args[1])
		}
		if err != nil {
			log.Fatalf("Expand failed: %v", err)
		}
		out, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			log.Fatalf("Failed to encode view: %v", err)
		}
		fmt.Println(string(out))
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <repo-path-or-github-url>",
	Short: "Check the wiki structure against its invariants and schema",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := openSnapshot(ctx, args[0], false)
		defer s.Close()

		if err := s.Validate(ctx); err != nil {
			log.Fatalf("❌ Wiki is invalid:\n%v", err)
		}
		fmt.Println("✅ Wiki structure is valid.")
	},
}
