package cache

import (
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "cache.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestFingerprintDeterministic(t *testing.T) {
	a, err := Fingerprint(map[string]any{"prompt": "hello", "model": "m1", "temperature": 0.2})
	require.NoError(t, err)
	b, err := Fingerprint(map[string]any{"temperature": 0.2, "model": "m1", "prompt": "hello"})
	require.NoError(t, err)
	assert.Equal(t, a, b, "key order must not affect the digest")

	c, err := Fingerprint(map[string]any{"prompt": "hello", "model": "m2", "temperature": 0.2})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestKeyPrefixesDisjoint(t *testing.T) {
	llm, err := CompletionKey("gemini", "m", "", "payload", "", 0)
	require.NoError(t, err)
	code, err := ExecutionKey("payload", "m", nil)
	require.NoError(t, err)

	assert.True(t, llm[:4] == "llm:")
	assert.True(t, code[:5] == "code:")
	assert.NotEqual(t, llm, code)
}

func TestCompletionKeyVariesWithSpecialist(t *testing.T) {
	plain, err := CompletionKey("gemini", "", "", "plot it", "sys", 0)
	require.NoError(t, err)
	viz, err := CompletionKey("gemini", "", "visualization", "plot it", "sys", 0)
	require.NoError(t, err)
	ml, err := CompletionKey("gemini", "", "ml", "plot it", "sys", 0)
	require.NoError(t, err)

	assert.NotEqual(t, plain, viz, "routed and unrouted requests must not collide")
	assert.NotEqual(t, viz, ml, "same instruction to different specialists must miss")
}

func TestExecutionKeyVariesWithInputs(t *testing.T) {
	a, err := ExecutionKey("print(1)", "python3", map[string]string{"data.csv": "digest-a"})
	require.NoError(t, err)
	b, err := ExecutionKey("print(1)", "python3", map[string]string{"data.csv": "digest-b"})
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "same code over different data must miss")
}

func TestStoreRoundTrip(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get("llm:absent")
	require.ErrorIs(t, err, ErrMiss)

	require.NoError(t, store.Set("llm:k", []byte("value"), time.Hour))
	got, err := store.Get("llm:k")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), got)
}

func TestStoreExpiry(t *testing.T) {
	store := openTestStore(t)

	now := time.Now()
	store.now = func() time.Time { return now }
	require.NoError(t, store.Set("k", []byte("v"), time.Minute))

	store.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, err := store.Get("k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestStoreOverwrite(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Set("k", []byte("old"), time.Hour))
	require.NoError(t, store.Set("k", []byte("new"), time.Hour))

	got, err := store.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got)
}

func TestStoreDelete(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Set("k", []byte("v"), time.Hour))
	require.NoError(t, store.Delete("k"))
	require.NoError(t, store.Delete("k"))

	_, err := store.Get("k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestStorePrune(t *testing.T) {
	store := openTestStore(t)

	now := time.Now()
	store.now = func() time.Time { return now }
	require.NoError(t, store.Set("stale", []byte("v"), time.Minute))
	require.NoError(t, store.Set("fresh", []byte("v"), time.Hour))

	store.now = func() time.Time { return now.Add(10 * time.Minute) }
	removed, err := store.Prune()
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = store.Get("fresh")
	assert.NoError(t, err)
}

func TestGetOrComputeCachesResult(t *testing.T) {
	store := openTestStore(t)

	var calls atomic.Int32
	compute := func() ([]byte, error) {
		calls.Add(1)
		return []byte("computed"), nil
	}

	got, hit, err := store.GetOrCompute("k", time.Hour, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []byte("computed"), got)

	got, hit, err = store.GetOrCompute("k", time.Hour, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []byte("computed"), got)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetOrComputeErrorNotCached(t *testing.T) {
	store := openTestStore(t)

	boom := errors.New("compute failed")
	_, _, err := store.GetOrCompute("k", time.Hour, func() ([]byte, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.Get("k")
	assert.ErrorIs(t, err, ErrMiss, "failed computations must not populate the cache")
}

func TestGetOrComputeCollapsesConcurrent(t *testing.T) {
	store := openTestStore(t)

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func() ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("once"), nil
	}

	const workers = 8
	var wg sync.WaitGroup
	results := make([][]byte, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, _, err := store.GetOrCompute("k", time.Hour, compute)
			assert.NoError(t, err)
			results[i] = got
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "concurrent identical requests must share one computation")
	for _, got := range results {
		assert.Equal(t, []byte("once"), got)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	store := openTestStore(t)

	type record struct {
		Text   string `json:"text"`
		Rounds int    `json:"rounds"`
	}
	require.NoError(t, store.SetJSON("k", record{Text: "answer", Rounds: 3}, time.Hour))

	var out record
	require.NoError(t, store.GetJSON("k", &out))
	assert.Equal(t, record{Text: "answer", Rounds: 3}, out)
}
