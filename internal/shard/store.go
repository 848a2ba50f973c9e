package shard

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"repowiki/internal/graph"
)

const manifestFile = "manifest.json.gz"

// Save writes the manifest and every shard under dir.
func Save(dir string, m *Manifest, shards map[string]*Shard) error {
	if err := os.MkdirAll(filepath.Join(dir, "shards"), 0o755); err != nil {
		return err
	}
	for _, e := range m.Shards {
		s, ok := shards[e.TopDir]
		if !ok {
			return fmt.Errorf("manifest lists shard %q with no data", e.TopDir)
		}
		if err := writeJSONGz(filepath.Join(dir, filepath.FromSlash(e.Path)), s.Graph); err != nil {
			return err
		}
	}
	return writeJSONGz(filepath.Join(dir, manifestFile), m)
}

// LoadManifest reads the manifest under dir.
func LoadManifest(dir string) (*Manifest, error) {
	var m Manifest
	if err := readJSONGz(filepath.Join(dir, manifestFile), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadShard reads one shard listed in the manifest.
func LoadShard(dir string, e Entry) (*Shard, error) {
	g := &graph.Graph{}
	if err := readJSONGz(filepath.Join(dir, filepath.FromSlash(e.Path)), g); err != nil {
		return nil, err
	}
	key := e.Key
	if key == "" {
		key = Label(e.TopDir)
	}
	return &Shard{Name: e.TopDir, Key: key, Graph: g}, nil
}

// LoadAll reads the manifest and all shards.
func LoadAll(dir string) (*Manifest, map[string]*Shard, error) {
	m, err := LoadManifest(dir)
	if err != nil {
		return nil, nil, err
	}
	shards := make(map[string]*Shard, len(m.Shards))
	for _, e := range m.Shards {
		s, err := LoadShard(dir, e)
		if err != nil {
			return nil, nil, fmt.Errorf("load shard %q: %w", e.TopDir, err)
		}
		shards[e.TopDir] = s
	}
	return m, shards, nil
}

func writeJSONGz(path string, v any) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	zw := gzip.NewWriter(tmp)
	enc := json.NewEncoder(zw)
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func readJSONGz(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer zr.Close()
	return json.NewDecoder(zr).Decode(v)
}
