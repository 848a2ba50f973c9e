package repo

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"repowiki/internal/git"
)

// ResolveOptions configure Resolve.
type ResolveOptions struct {
	CacheDir    string
	GitHubToken string
	// Branch overrides the branch named in the URL or checked out locally.
	Branch string
}

// IsURL reports whether arg names a remote repository rather than a path.
func IsURL(arg string) bool {
	return strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://")
}

// Resolve identifies the snapshot named by arg, a GitHub URL or a local
// checkout, and makes sure its files are available on disk. A URL is
// shallow-cloned into the snapshot directory on first use.
func Resolve(ctx context.Context, arg string, opts ResolveOptions) (Source, Layout, error) {
	if IsURL(arg) {
		return resolveRemote(ctx, arg, opts)
	}
	return resolveLocal(ctx, arg, opts)
}

func resolveRemote(ctx context.Context, arg string, opts ResolveOptions) (Source, Layout, error) {
	src, err := ParseGitHubURL(arg)
	if err != nil {
		return Source{}, Layout{}, err
	}
	if opts.Branch != "" {
		src.Branch = opts.Branch
	}
	if src.Branch == "" {
		src.Branch = lookupDefaultBranch(ctx, src, opts.GitHubToken)
	}

	layout := NewLayout(opts.CacheDir, src)
	src.Root = layout.Checkout()
	if _, err := os.Stat(filepath.Join(src.Root, ".git")); err != nil {
		log.Printf("Cloning %s (%s)...", src.URL, src.Branch)
		if err := os.MkdirAll(layout.Root, 0o755); err != nil {
			return Source{}, Layout{}, err
		}
		if err := git.Clone(ctx, src.URL+".git", src.Branch, src.Root); err != nil {
			return Source{}, Layout{}, fmt.Errorf("failed to fetch %s: %w", src.URL, err)
		}
	}
	return src, layout, nil
}

func lookupDefaultBranch(ctx context.Context, src Source, token string) string {
	gh, err := NewGitHub(token)
	if err == nil {
		var branch string
		if branch, err = gh.DefaultBranch(ctx, src.Owner, src.Repo); err == nil && branch != "" {
			return branch
		}
	}
	log.Printf("WARNING: could not look up default branch of %s, assuming main: %v", src.OwnerRepo(), err)
	return "main"
}

func resolveLocal(ctx context.Context, arg string, opts ResolveOptions) (Source, Layout, error) {
	abs, err := filepath.Abs(arg)
	if err != nil {
		return Source{}, Layout{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Source{}, Layout{}, fmt.Errorf("repository path: %w", err)
	}
	if !info.IsDir() {
		return Source{}, Layout{}, fmt.Errorf("repository path %s is not a directory", abs)
	}

	src := Source{URL: abs, Root: abs}
	if remote, err := git.OriginURL(ctx, abs); err == nil {
		if owner, name, ok := ParseRemote(remote); ok {
			src.Owner, src.Repo = owner, name
		}
	}
	src.Branch = opts.Branch
	if src.Branch == "" {
		if b, err := git.CurrentBranch(ctx, abs); err == nil && b != "HEAD" {
			src.Branch = b
		}
	}
	return src, NewLayout(opts.CacheDir, src), nil
}
