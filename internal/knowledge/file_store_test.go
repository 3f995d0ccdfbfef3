package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pathwright/api/schemas"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "kb", "knowledge.json"), zaptest.NewLogger(t))
	require.NoError(t, err)
	return s
}

func TestFileStore_GetUnknownIntent(t *testing.T) {
	s := newTestFileStore(t)

	got, err := s.Get(context.Background(), "login")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileStore_AddTwice(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)

	first, err := s.Add(ctx, "login", "#login-btn")
	require.NoError(t, err)
	assert.Equal(t, schemas.Added, first)

	second, err := s.Add(ctx, "login", "#login-btn")
	require.NoError(t, err)
	assert.Equal(t, schemas.AlreadyPresent, second)

	got, err := s.Get(ctx, "login")
	require.NoError(t, err)
	assert.Equal(t, []string{"#login-btn"}, got)
}

func TestFileStore_PreservesInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)

	for _, strategy := range []string{"#q", "input[name=q]", "//input[@type='search']"} {
		_, err := s.Add(ctx, "search box", strategy)
		require.NoError(t, err)
	}

	got, err := s.Get(ctx, "search box")
	require.NoError(t, err)
	assert.Equal(t, []string{"#q", "input[name=q]", "//input[@type='search']"}, got)
}

func TestFileStore_PersistedLayout(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)

	_, err := s.Add(ctx, "search box", "#q")
	require.NoError(t, err)
	_, err = s.Add(ctx, "login", "#login-btn")
	require.NoError(t, err)

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	var onDisk map[string][]string
	require.NoError(t, json.Unmarshal(data, &onDisk))
	want := map[string][]string{"search box": {"#q"}, "login": {"#login-btn"}}
	if diff := cmp.Diff(want, onDisk); diff != "" {
		t.Errorf("persisted document mismatch (-want +got):\n%s", diff)
	}

	// A second store over the same file sees the same data.
	reopened, err := NewFileStore(s.Path(), zaptest.NewLogger(t))
	require.NoError(t, err)
	intents, err := reopened.ListIntents(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"login", "search box"}, intents)
}

func TestFileStore_ConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)

	const n = 25
	var wg sync.WaitGroup
	results := make([]schemas.AddResult, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			intent := fmt.Sprintf("intent-%d", i%5)
			res, err := s.Add(ctx, intent, fmt.Sprintf("#el-%d", i))
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		assert.Equal(t, schemas.Added, res, "add %d", i)
	}

	total := 0
	for i := 0; i < 5; i++ {
		got, err := s.Get(ctx, fmt.Sprintf("intent-%d", i))
		require.NoError(t, err)
		assert.Len(t, got, n/5)
		total += len(got)
	}
	assert.Equal(t, n, total, "no concurrent write may be lost")
}

func TestFileStore_CorruptFileIsEmpty(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o600))

	got, err := s.Get(ctx, "login")
	require.NoError(t, err)
	assert.Empty(t, got)

	intents, err := s.ListIntents(ctx)
	require.NoError(t, err)
	assert.Empty(t, intents)

	// Writing over a corrupt document starts a fresh one.
	res, err := s.Add(ctx, "login", "#login")
	require.NoError(t, err)
	assert.Equal(t, schemas.Added, res)
}

func TestFileStore_UnwritableStorage(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "knowledge.json")
	// A directory where the document should be makes every rename fail.
	require.NoError(t, os.Mkdir(path, 0o750))

	s, err := NewFileStore(path, zaptest.NewLogger(t))
	require.NoError(t, err)

	res, err := s.Add(ctx, "login", "#login")
	require.Error(t, err)
	assert.Equal(t, schemas.AddFailed, res)

	info, statErr := os.Stat(path)
	require.NoError(t, statErr)
	assert.True(t, info.IsDir(), "durable storage must be left untouched")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up after a failed write")
}

func TestFileStore_MirrorAndInvalidate(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)

	_, err := s.Get(ctx, "login")
	require.NoError(t, err)

	// An out-of-band edit is hidden by the mirror until it is invalidated.
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"login":["#ext"]}`), 0o600))
	got, err := s.Get(ctx, "login")
	require.NoError(t, err)
	assert.Empty(t, got)

	s.Invalidate()
	got, err = s.Get(ctx, "login")
	require.NoError(t, err)
	assert.Equal(t, []string{"#ext"}, got)
}

func TestFileStore_AddSeesExternalWrites(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)

	_, err := s.Get(ctx, "login")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"login":["#ext"]}`), 0o600))

	res, err := s.Add(ctx, "login", "#ext")
	require.NoError(t, err)
	assert.Equal(t, schemas.AlreadyPresent, res, "Add reads durable storage, not the mirror")
}

func TestFileStore_CanceledContext(t *testing.T) {
	s := newTestFileStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := s.Add(ctx, "login", "#login")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, schemas.AddFailed, res)
}

func TestNewFileStore_RequiresPath(t *testing.T) {
	_, err := NewFileStore("", zaptest.NewLogger(t))
	assert.Error(t, err)
}
