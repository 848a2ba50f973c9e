package crawler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel string, data []byte) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, data, 0o644))
}

func TestCrawler_ScanProject(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "README.md", []byte("# demo\n"))
	writeFile(t, root, "api/routes.py", []byte("def handle_request():\n    pass\n"))
	writeFile(t, root, "api.txt", []byte("notes"))
	writeFile(t, root, "infra/Dockerfile", []byte("FROM alpine\n"))
	writeFile(t, root, "node_modules/x/index.js", []byte("x"))
	writeFile(t, root, ".hidden/secret.txt", []byte("x"))
	writeFile(t, root, ".github/workflows/ci.yml", []byte("on: push\n"))
	writeFile(t, root, "logs/run.log", []byte("x"))
	writeFile(t, root, ".gitignore", []byte("logs/\n"))
	writeFile(t, root, "assets/logo.bin", []byte{0x89, 0x00, 0x01})

	files, err := NewCrawler().Collect(root)
	require.NoError(t, err)

	var paths []string
	byPath := map[string]SourceFile{}
	for _, f := range files {
		paths = append(paths, f.Path)
		byPath[f.Path] = f
	}

	assert.Equal(t, []string{
		".github/workflows/ci.yml",
		".gitignore",
		"README.md",
		"api.txt",
		"api/routes.py",
		"assets/logo.bin",
		"infra/Dockerfile",
	}, paths)

	t.Run("binary files keep their path but carry no text", func(t *testing.T) {
		bin := byPath["assets/logo.bin"]
		assert.False(t, bin.Readable)
		assert.Empty(t, bin.Text)
	})

	t.Run("text files are read", func(t *testing.T) {
		assert.True(t, byPath["api/routes.py"].Readable)
		assert.Contains(t, byPath["api/routes.py"].Text, "handle_request")
	})
}

func TestCrawler_Oversized(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "big.txt", []byte("abcdef"))

	c := NewCrawler()
	c.maxBytes = 3
	files, err := c.Collect(root)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.False(t, files[0].Readable)
}

func TestDecodeText(t *testing.T) {
	text, ok := DecodeText([]byte("ok\xffdone"))
	assert.True(t, ok)
	assert.Equal(t, "okdone", text)

	_, ok = DecodeText([]byte("a\x00b"))
	assert.False(t, ok)
}

func TestIsReadme(t *testing.T) {
	assert.True(t, IsReadme("README.md"))
	assert.True(t, IsReadme("docs/readme.rst"))
	assert.True(t, IsReadme("Readme"))
	assert.False(t, IsReadme("README.html"))
	assert.False(t, IsReadme("docs/readme_old.md"))
}
