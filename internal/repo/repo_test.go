package repo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGitHubURL(t *testing.T) {
	tests := []struct {
		in      string
		owner   string
		repo    string
		branch  string
		subpath string
	}{
		{"https://github.com/acme/app", "acme", "app", "", ""},
		{"https://github.com/acme/app.git", "acme", "app", "", ""},
		{"https://github.com/acme/app/", "acme", "app", "", ""},
		{"https://github.com/acme/app/tree/dev", "acme", "app", "dev", ""},
		{"https://github.com/acme/app/tree/main/pkg/server", "acme", "app", "main", "pkg/server"},
		{"http://github.com/acme/app/blob/v1/README.md", "acme", "app", "v1", "README.md"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			src, err := ParseGitHubURL(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.owner, src.Owner)
			assert.Equal(t, tt.repo, src.Repo)
			assert.Equal(t, tt.branch, src.Branch)
			assert.Equal(t, tt.subpath, src.Subpath)
			assert.Equal(t, "https://github.com/acme/app", src.URL)
		})
	}
}

func TestParseGitHubURL_Rejects(t *testing.T) {
	for _, in := range []string{"https://gitlab.com/a/b", "github.com/a/b", "https://github.com/onlyowner", ""} {
		_, err := ParseGitHubURL(in)
		assert.Error(t, err, in)
	}
}

func TestParseRemote(t *testing.T) {
	owner, name, ok := ParseRemote("git@github.com:acme/app.git")
	assert.True(t, ok)
	assert.Equal(t, "acme", owner)
	assert.Equal(t, "app", name)

	owner, name, ok = ParseRemote("https://github.com/acme/app.git\n")
	assert.True(t, ok)
	assert.Equal(t, "acme/app", owner+"/"+name)

	_, _, ok = ParseRemote("git@gitlab.com:acme/app.git")
	assert.False(t, ok)
}

func TestFingerprint(t *testing.T) {
	a := Source{URL: "https://github.com/acme/app", Owner: "acme", Repo: "app", Branch: "main"}
	b := a
	b.Branch = "dev"

	assert.Len(t, a.Fingerprint(), 12)
	assert.Equal(t, a.Fingerprint(), a.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestSafeNameAndLayout(t *testing.T) {
	assert.Equal(t, "acme-app-main", SafeName("acme/app@main"))
	assert.Equal(t, "repo", SafeName("///"))

	src := Source{URL: "https://github.com/acme/app", Owner: "acme", Repo: "app", Branch: "main"}
	l := NewLayout("/cache", src)
	assert.Equal(t, filepath.Join("/cache", "acme-app-main-"+src.Fingerprint()), l.Root)
	assert.Equal(t, filepath.Join(l.Root, "wiki_pages", ".cache"), l.PageCache())
}

func TestBlobBase(t *testing.T) {
	src := Source{Owner: "acme", Repo: "app", Branch: "main"}
	assert.Equal(t, "https://github.com/acme/app/blob/main/", src.BlobBase())

	src.Subpath = "pkg"
	assert.Equal(t, "https://github.com/acme/app/blob/main/pkg/", src.BlobBase())

	assert.Empty(t, Source{URL: "/tmp/x"}.BlobBase())
}

func TestResolveLocal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644))

	src, layout, err := Resolve(context.Background(), dir, ResolveOptions{CacheDir: filepath.Join(dir, ".cache"), Branch: "feature"})
	require.NoError(t, err)
	assert.Equal(t, dir, src.Root)
	assert.Equal(t, "feature", src.Branch)
	assert.Equal(t, filepath.Join(dir, ".cache"), filepath.Dir(layout.Root))

	_, _, err = Resolve(context.Background(), filepath.Join(dir, "main.go"), ResolveOptions{})
	assert.Error(t, err)
}
