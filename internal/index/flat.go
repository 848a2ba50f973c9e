package index

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

var flatMagic = [4]byte{'R', 'W', 'I', 'X'}

// Flat is an exact inner-product index over L2-normalised vectors, so
// scores are cosine similarities. Row i of the matrix belongs to ids[i].
type Flat struct {
	mu   sync.RWMutex
	dim  int
	ids  []string
	rows [][]float32
}

func NewFlat(dim int) *Flat {
	return &Flat{dim: dim}
}

func (f *Flat) Dimension() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dim
}

func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.ids)
}

// IDs returns the id list in row order.
func (f *Flat) IDs() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.ids...)
}

func (f *Flat) Add(_ context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("%w: %d ids for %d vectors", ErrCorrupt, len(ids), len(vectors))
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	// A rejected batch leaves the index untouched, dimension included.
	dim := f.dim
	for i, v := range vectors {
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return fmt.Errorf("%w: %s has %d, index has %d", ErrDimension, ids[i], len(v), dim)
		}
	}
	f.dim = dim
	for i, v := range vectors {
		f.ids = append(f.ids, ids[i])
		f.rows = append(f.rows, normalized(v))
	}
	return nil
}

func (f *Flat) Search(_ context.Context, query []float32, k int) ([]Hit, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if k <= 0 || len(f.rows) == 0 {
		return nil, nil
	}
	if len(query) != f.dim {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimension, len(query), f.dim)
	}
	q := normalized(query)

	hits := make([]Hit, len(f.rows))
	for i, row := range f.rows {
		hits[i] = Hit{ID: f.ids[i], Score: dot(q, row)}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Save writes <prefix>.index and <prefix>_ids.json into dir.
func (f *Flat) Save(dir, prefix string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.ids) != len(f.rows) {
		return fmt.Errorf("%w: %d ids for %d rows", ErrCorrupt, len(f.ids), len(f.rows))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	idsData, err := json.MarshalIndent(f.ids, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFileAtomic(filepath.Join(dir, prefix+"_ids.json"), func(w io.Writer) error {
		_, err := w.Write(idsData)
		return err
	}); err != nil {
		return err
	}

	return writeFileAtomic(filepath.Join(dir, prefix+".index"), func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		header := []uint32{uint32(f.dim), uint32(len(f.rows))}
		if _, err := bw.Write(flatMagic[:]); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, header); err != nil {
			return err
		}
		for _, row := range f.rows {
			if err := binary.Write(bw, binary.LittleEndian, row); err != nil {
				return err
			}
		}
		return bw.Flush()
	})
}

// LoadFlat reads an index written by Save. A row count that differs from
// the id list length is reported as ErrCorrupt.
func LoadFlat(dir, prefix string) (*Flat, error) {
	idsData, err := os.ReadFile(filepath.Join(dir, prefix+"_ids.json"))
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(idsData, &ids); err != nil {
		return nil, fmt.Errorf("%w: id list: %v", ErrCorrupt, err)
	}

	file, err := os.Open(filepath.Join(dir, prefix+".index"))
	if err != nil {
		return nil, err
	}
	defer file.Close()
	r := bufio.NewReader(file)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil || magic != flatMagic {
		return nil, fmt.Errorf("%w: bad header in %s.index", ErrCorrupt, prefix)
	}
	header := make([]uint32, 2)
	if err := binary.Read(r, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	dim, count := int(header[0]), int(header[1])
	if count != len(ids) {
		return nil, fmt.Errorf("%w: %s has %d rows but %d ids", ErrCorrupt, prefix, count, len(ids))
	}

	f := &Flat{dim: dim, ids: ids, rows: make([][]float32, count)}
	for i := range f.rows {
		row := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, row); err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrCorrupt, i, err)
		}
		f.rows[i] = row
	}
	if _, err := r.ReadByte(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data in %s.index", ErrCorrupt, prefix)
	}
	return f, nil
}

func writeFileAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func normalized(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	inv := float32(1 / math.Sqrt(sum))
	for i, x := range v {
		out[i] = x * inv
	}
	return out
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
