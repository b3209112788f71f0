package local

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpener_ConcurrentOpenSharesStore(t *testing.T) {
	o := NewOpener(filepath.Join(t.TempDir(), "notes.db"))
	t.Cleanup(func() { _ = o.Close() })

	const n = 8
	stores := make([]*Store, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stores[i], errs[i] = o.Open(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, stores[0], stores[i])
	}
}

func TestOpener_FailedOpenIsRetried(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	// parent path is a regular file, so the first open fails
	o := NewOpener(filepath.Join(blocker, "notes.db"))
	_, err := o.Open(context.Background())
	require.Error(t, err)

	require.NoError(t, os.Remove(blocker))
	s, err := o.Open(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s)
	require.NoError(t, o.Close())
}

func TestOpener_CloseThenReopen(t *testing.T) {
	o := NewOpener(filepath.Join(t.TempDir(), "notes.db"))
	ctx := context.Background()

	first, err := o.Open(ctx)
	require.NoError(t, err)
	require.NoError(t, o.Close())
	require.NoError(t, o.Close())

	second, err := o.Open(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	require.NoError(t, o.Close())
}
