// Package repo identifies a repository snapshot and lays out its working
// directories.
package repo

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Source identifies one repository snapshot.
type Source struct {
	// URL is the GitHub URL, or the absolute path of a local checkout.
	URL     string
	Owner   string
	Repo    string
	Branch  string
	Subpath string
	// Root is the local directory holding the files.
	Root string
}

var githubURL = regexp.MustCompile(`^https?://github\.com/([^/]+)/([^/]+)(?:/(tree|blob)/([^/]+)(/.*)?)?$`)

// ParseGitHubURL splits a GitHub URL into owner, repo, branch and subpath.
// Branch and subpath are empty when the URL names only the repository.
func ParseGitHubURL(raw string) (Source, error) {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	u = strings.TrimSuffix(u, ".git")
	m := githubURL.FindStringSubmatch(u)
	if m == nil {
		return Source{}, fmt.Errorf("not a GitHub repository URL: %q", raw)
	}
	return Source{
		URL:     "https://github.com/" + m[1] + "/" + m[2],
		Owner:   m[1],
		Repo:    m[2],
		Branch:  m[4],
		Subpath: strings.Trim(m[5], "/"),
	}, nil
}

// ParseRemote reads owner and repo from a git remote URL in https or scp
// form. ok is false for non-GitHub remotes.
func ParseRemote(remote string) (owner, name string, ok bool) {
	r := strings.TrimSpace(remote)
	if rest, found := strings.CutPrefix(r, "git@github.com:"); found {
		r = "https://github.com/" + rest
	}
	r = strings.Replace(r, "ssh://git@github.com/", "https://github.com/", 1)
	src, err := ParseGitHubURL(r)
	if err != nil {
		return "", "", false
	}
	return src.Owner, src.Repo, true
}

// OwnerRepo returns "owner/repo", or "" when unknown.
func (s Source) OwnerRepo() string {
	if s.Owner == "" || s.Repo == "" {
		return ""
	}
	return s.Owner + "/" + s.Repo
}

// Fingerprint is a short stable hash of the snapshot identity.
func (s Source) Fingerprint() string {
	key := fmt.Sprintf("%s/%s@%s:%s|%s", s.Owner, s.Repo, s.Branch, s.Subpath, s.URL)
	sum := sha1.Sum([]byte(key))
	return hex.EncodeToString(sum[:])[:12]
}

var unsafeChars = regexp.MustCompile(`[^\w\-.]+`)

// SafeName turns a display name into a directory-safe token.
func SafeName(s string) string {
	out := strings.Trim(unsafeChars.ReplaceAllString(s, "-"), "-")
	if out == "" {
		return "repo"
	}
	return out
}

// Name is the human part of the snapshot directory name.
func (s Source) Name() string {
	if or := s.OwnerRepo(); or != "" {
		name := or
		if s.Branch != "" {
			name += "@" + s.Branch
		}
		return SafeName(name)
	}
	return SafeName(filepath.Base(s.URL))
}

// BlobBase is the link prefix for files of the snapshot, or "" when the
// origin is not a known GitHub repository.
func (s Source) BlobBase() string {
	if s.OwnerRepo() == "" || s.Branch == "" {
		return ""
	}
	base := fmt.Sprintf("https://github.com/%s/%s/blob/%s/", s.Owner, s.Repo, s.Branch)
	if s.Subpath != "" {
		base += s.Subpath + "/"
	}
	return base
}

// FilesRoot is the directory the crawler walks.
func (s Source) FilesRoot() string {
	if s.Subpath == "" {
		return s.Root
	}
	return filepath.Join(s.Root, filepath.FromSlash(s.Subpath))
}

// Layout names the directories of one snapshot.
type Layout struct {
	Root string
}

// NewLayout places the snapshot of src under cacheDir.
func NewLayout(cacheDir string, src Source) Layout {
	return Layout{Root: filepath.Join(cacheDir, src.Name()+"-"+src.Fingerprint())}
}

func (l Layout) Checkout() string       { return filepath.Join(l.Root, "src") }
func (l Layout) KnowledgeGraph() string { return filepath.Join(l.Root, "knowledge_graph") }
func (l Layout) Shards() string         { return filepath.Join(l.Root, "knowledge_graph", "shards") }
func (l Layout) WikiXML() string        { return filepath.Join(l.Root, "wiki_xml") }
func (l Layout) Embeddings() string     { return filepath.Join(l.Root, "embeddings") }
func (l Layout) Pages() string          { return filepath.Join(l.Root, "wiki_pages") }
func (l Layout) PageCache() string      { return filepath.Join(l.Root, "wiki_pages", ".cache") }
func (l Layout) Database() string       { return filepath.Join(l.Root, "knowledge_graph", "repowiki.db") }

// Ensure creates every directory of the layout.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.KnowledgeGraph(), l.Shards(), l.WikiXML(), l.Embeddings(), l.Pages(), l.PageCache()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}
