package crawler

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	ignore "github.com/sabhiram/go-gitignore"
)

// MaxFileBytes is the largest file whose text is read.
const MaxFileBytes = 2 * 1024 * 1024

// SourceFile is one (relative path, text-or-null) pair. Readable is false for
// binary, oversized or unreadable files; such files still count as paths.
type SourceFile struct {
	Path     string
	Text     string
	Readable bool
}

// Crawler scans a directory for repository files.
type Crawler struct {
	ignored  map[string]bool
	keepDot  map[string]bool
	maxBytes int64
}

// NewCrawler creates a new crawler instance.
func NewCrawler() *Crawler {
	ignored := map[string]bool{}
	for _, name := range []string{
		".git", "__pycache__", "venv", ".venv", "build", "dist", "node_modules",
		".mypy_cache", ".pytest_cache", "target", "out", ".gradle", ".idea",
	} {
		ignored[name] = true
	}
	return &Crawler{
		ignored: ignored,
		// CI manifests live here and feed the infrastructure signal.
		keepDot:  map[string]bool{".github": true},
		maxBytes: MaxFileBytes,
	}
}

// ListFiles returns the slash-separated relative paths of every kept file,
// sorted.
func (c *Crawler) ListFiles(root string) ([]string, error) {
	gi, _ := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}

		name := d.Name()
		if d.IsDir() {
			if path == root {
				return nil
			}
			if c.ignored[name] || (strings.HasPrefix(name, ".") && !c.keepDot[name]) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 || !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(paths)
	return paths, nil
}

// ScanProject walks root and streams every file in path order.
func (c *Crawler) ScanProject(root string, onFile func(SourceFile)) error {
	paths, err := c.ListFiles(root)
	if err != nil {
		return err
	}
	for _, rel := range paths {
		onFile(c.read(root, rel))
	}
	return nil
}

// Collect is ScanProject gathered into a slice.
func (c *Crawler) Collect(root string) ([]SourceFile, error) {
	var files []SourceFile
	err := c.ScanProject(root, func(f SourceFile) {
		files = append(files, f)
	})
	return files, err
}

func (c *Crawler) read(root, rel string) SourceFile {
	file := SourceFile{Path: rel}
	full := filepath.Join(root, filepath.FromSlash(rel))

	info, err := os.Stat(full)
	if err != nil || info.Size() > c.maxBytes {
		return file
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return file
	}
	text, ok := DecodeText(data)
	if !ok {
		return file
	}
	file.Text = text
	file.Readable = true
	return file
}

// DecodeText returns the text of data, or false when data looks binary.
// Invalid UTF-8 sequences are dropped.
func DecodeText(data []byte) (string, bool) {
	if bytes.IndexByte(data, 0) >= 0 {
		return "", false
	}
	if utf8.Valid(data) {
		return string(data), true
	}
	return strings.ToValidUTF8(string(data), ""), true
}

var readmePattern = regexp.MustCompile(`(?i)^readme(\.(md|rst|txt))?$`)

// IsReadme reports whether the base name of path is a README document.
func IsReadme(path string) bool {
	return readmePattern.MatchString(filepath.Base(path))
}
