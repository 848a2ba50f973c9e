package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"repowiki/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseInputs() KeyInputs {
	cfg := config.Default()
	return KeyInputs{
		Page: PageIdentity{
			ID: "page-1", Title: "Routing", Description: "How requests flow",
			Importance: "high", ParentSection: "section-1",
		},
		Section:    "Backend Systems",
		Retrieval:  cfg.Retrieval,
		Generation: cfg.Generation,
		Language:   "English",
		ContextIDs: []string{"symbol::api/routes.py::function::handle_request::3", "file::api/routes.py"},
	}
}

func TestKey_Deterministic(t *testing.T) {
	a := Key(baseInputs())
	b := Key(baseInputs())
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)
}

func TestKey_EveryInputMatters(t *testing.T) {
	base := Key(baseInputs())

	mutations := map[string]func(*KeyInputs){
		"page title":     func(in *KeyInputs) { in.Page.Title = "Routes" },
		"page parent":    func(in *KeyInputs) { in.Page.ParentSection = "section-2" },
		"importance":     func(in *KeyInputs) { in.Page.Importance = "low" },
		"section":        func(in *KeyInputs) { in.Section = "Core Features" },
		"topk_file":      func(in *KeyInputs) { in.Retrieval.TopKFile++ },
		"max_code_chars": func(in *KeyInputs) { in.Retrieval.MaxCodeChars = 600 },
		"min_refs":       func(in *KeyInputs) { in.Generation.MinRefs = 3 },
		"fallback":       func(in *KeyInputs) { in.Generation.DiagramFallback = false },
		"language":       func(in *KeyInputs) { in.Language = "Korean" },
		"ctx order":      func(in *KeyInputs) { in.ContextIDs[0], in.ContextIDs[1] = in.ContextIDs[1], in.ContextIDs[0] },
		"ctx extra":      func(in *KeyInputs) { in.ContextIDs = append(in.ContextIDs, "file::x.go") },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			in := baseInputs()
			mutate(&in)
			assert.NotEqual(t, base, Key(in))
		})
	}
}

func TestKey_OnlyFirstContextIDsCount(t *testing.T) {
	ids := make([]string, MaxContextIDs+5)
	for i := range ids {
		ids[i] = "file::" + string(rune('a'+i%26)) + ".go"
	}
	a := baseInputs()
	a.ContextIDs = ids
	b := baseInputs()
	b.ContextIDs = append(append([]string(nil), ids[:MaxContextIDs]...), "file::other.go")

	assert.Equal(t, Key(a), Key(b))
}

func TestEntryName(t *testing.T) {
	assert.Equal(t, "page-3__abcdef0123456789.md", EntryName("page-3", "abcdef0123456789"))
}

func TestDiskStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewDiskStore(filepath.Join(dir, "cache"))
	require.NoError(t, err)

	_, err = s.Get(ctx, "page-1__k.md")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, s.Put(ctx, "page-1__k.md", []byte("# Page")))
	require.NoError(t, s.Put(ctx, "page-1__k.md", []byte("# Page v2")))
	data, err := s.Get(ctx, "page-1__k.md")
	require.NoError(t, err)
	assert.Equal(t, "# Page v2", string(data))

	entries, err := os.ReadDir(filepath.Join(dir, "cache"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")

	assert.Error(t, s.Put(ctx, "../escape.md", []byte("x")))
	_, err = s.Get(ctx, "")
	assert.Error(t, err)
}

func TestCache_GetOrComputeOncePerKey(t *testing.T) {
	ctx := context.Background()
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)
	c, err := New(store, 8)
	require.NoError(t, err)

	var calls int32
	compute := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte("rendered"), nil
	}

	data, hit, err := c.GetOrCompute(ctx, "page-1__a.md", compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "rendered", string(data))

	data, hit, err = c.GetOrCompute(ctx, "page-1__a.md", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "rendered", string(data))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	// A fresh cache over the same store still hits.
	c2, err := New(store, 0)
	require.NoError(t, err)
	_, hit, err = c2.GetOrCompute(ctx, "page-1__a.md", compute)
	require.NoError(t, err)
	assert.True(t, hit)

	_, _, err = c.GetOrCompute(ctx, "page-1__b.md", compute)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestCache_ConcurrentSameKey(t *testing.T) {
	ctx := context.Background()
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)
	c, err := New(store, 8)
	require.NoError(t, err)

	var calls int32
	release := make(chan struct{})
	compute := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []byte("same"), nil
	}

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data, _, err := c.GetOrCompute(ctx, "page-1__k.md", compute)
			if err == nil {
				results[i] = string(data)
			}
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "same", r)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(8))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))
}

func TestCache_ComputeErrorStoresNothing(t *testing.T) {
	ctx := context.Background()
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)
	c, err := New(store, 8)
	require.NoError(t, err)

	boom := errors.New("generation failed")
	_, _, err = c.GetOrCompute(ctx, "page-1__k.md", func(context.Context) ([]byte, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	_, err = c.Get(ctx, "page-1__k.md")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestCache_Refresh(t *testing.T) {
	ctx := context.Background()
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)
	c, err := New(store, 8)
	require.NoError(t, err)

	require.NoError(t, c.Put(ctx, "page-1__k.md", []byte("old")))
	data, err := c.Refresh(ctx, "page-1__k.md", func(context.Context) ([]byte, error) { return []byte("new"), nil })
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	got, err := c.Get(ctx, "page-1__k.md")
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

func TestNewS3Store_Validation(t *testing.T) {
	_, err := NewS3Store(S3Config{})
	assert.Error(t, err)
	_, err = NewS3Store(S3Config{Endpoint: "localhost:9000"})
	assert.Error(t, err)
	_, err = NewS3Store(S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"})
	assert.Error(t, err)

	s, err := NewS3Store(S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b", Bucket: "wiki", Prefix: "/acme-app/"})
	require.NoError(t, err)
	assert.Equal(t, "acme-app/page-1__k.md", s.objectKey("page-1__k.md"))
}

type brokenStore struct {
	err error
}

func (s brokenStore) Get(context.Context, string) ([]byte, error)  { return nil, s.err }
func (s brokenStore) Put(context.Context, string, []byte) error    { return s.err }

func TestCache_StoreFailuresStillYieldData(t *testing.T) {
	ctx := context.Background()
	c, err := New(brokenStore{err: errors.New("connection reset")}, 8)
	require.NoError(t, err)

	var calls int32
	compute := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte("# Routing"), nil
	}

	data, hit, err := c.GetOrCompute(ctx, "page-1__abc.md", compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "# Routing", string(data))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// The unstored artifact is served from memory for the rest of the run.
	data, hit, err = c.GetOrCompute(ctx, "page-1__abc.md", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "# Routing", string(data))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	uncached, err := New(brokenStore{err: errors.New("connection reset")}, 0)
	require.NoError(t, err)
	data, err = uncached.Refresh(ctx, "page-1__abc.md", compute)
	require.NoError(t, err)
	assert.Equal(t, "# Routing", string(data))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
