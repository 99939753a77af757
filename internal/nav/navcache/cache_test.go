package navcache

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntry(key string) *Entry {
	return &Entry{
		MapKey:         key,
		SampleCount:    40,
		SampleDensity:  1.0,
		KNearest:       8,
		ComponentSizes: []int{25, 10, 5},
		Region: []Vec3{
			{X: 1, Y: 2, Z: 0},
			{X: 3.5, Y: -1, Z: 0.25},
		},
		AnalyzedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

// storeUnderTest runs the shared Store contract against an implementation.
func storeUnderTest(t *testing.T, store Store) {
	t.Helper()

	t.Run("miss before put", func(t *testing.T) {
		_, ok, err := store.Get("absent")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("roundtrip", func(t *testing.T) {
		want := sampleEntry("m1@v1|n=40|d=1|k=8")
		require.NoError(t, store.Put(want.MapKey, want))

		got, ok, err := store.Get(want.MapKey)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want.SampleCount, got.SampleCount)
		assert.Equal(t, want.SampleDensity, got.SampleDensity)
		assert.Equal(t, want.KNearest, got.KNearest)
		assert.Equal(t, want.ComponentSizes, got.ComponentSizes)
		assert.Equal(t, want.Region, got.Region)
	})

	t.Run("replace", func(t *testing.T) {
		e := sampleEntry("m2")
		require.NoError(t, store.Put("m2", e))

		updated := sampleEntry("m2")
		updated.ComponentSizes = []int{99}
		require.NoError(t, store.Put("m2", updated))

		got, ok, err := store.Get("m2")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []int{99}, got.ComponentSizes)
	})

	t.Run("clear key", func(t *testing.T) {
		require.NoError(t, store.Put("m3", sampleEntry("m3")))
		require.NoError(t, store.Clear("m3"))

		_, ok, err := store.Get("m3")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("clear all", func(t *testing.T) {
		require.NoError(t, store.Put("m4", sampleEntry("m4")))
		require.NoError(t, store.Put("m5", sampleEntry("m5")))
		require.NoError(t, store.ClearAll())

		for _, key := range []string{"m4", "m5"} {
			_, ok, err := store.Get(key)
			require.NoError(t, err)
			assert.False(t, ok, "key %q survived ClearAll", key)
		}
	})

	t.Run("per-key lock serializes", func(t *testing.T) {
		unlock := store.Lock("contended")

		entered := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			u := store.Lock("contended")
			close(entered)
			u()
		}()

		select {
		case <-entered:
			t.Fatal("second locker entered while the key was held")
		case <-time.After(50 * time.Millisecond):
		}

		unlock()
		wg.Wait()

		select {
		case <-entered:
		default:
			t.Fatal("second locker never entered after release")
		}
	})
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	storeUnderTest(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()

	store, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer store.Close()

	storeUnderTest(t, store)
}

func TestSQLiteStoreCorruptRowIsMiss(t *testing.T) {
	t.Parallel()

	store, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer store.Close()

	_, err = store.db.Exec(`
		INSERT INTO connectivity_cache
			(map_key, sample_count, sample_density, k_nearest, component_sizes, region, analyzed_at_ns)
		VALUES ('broken', 40, 1.0, 8, 'not json', '{{{', ?)`, time.Now().UnixNano())
	require.NoError(t, err)

	_, ok, err := store.Get("broken")
	require.NoError(t, err)
	assert.False(t, ok, "corrupt row must read as a miss")
}

func TestSQLiteStorePersistsAcrossOpens(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.db")

	first, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, first.Put("persist", sampleEntry("persist")))
	require.NoError(t, first.Close())

	second, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	defer second.Close()

	got, ok, err := second.Get("persist")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []int{25, 10, 5}, got.ComponentSizes)
}
