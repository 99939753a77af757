package nav

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-synth/navroam/internal/nav/navcache"
)

// countingOracle counts oracle traffic on top of a real implementation.
type countingOracle struct {
	NavigationOracle
	projects   int
	pathChecks int
}

func (c *countingOracle) ProjectToSurface(p Vec3) (Vec3, bool, error) {
	c.projects++
	return c.NavigationOracle.ProjectToSurface(p)
}

func (c *countingOracle) PathExists(a, b Vec3) (bool, error) {
	c.pathChecks++
	return c.NavigationOracle.PathExists(a, b)
}

func islandBound() AABB {
	return box(0, 0, -1, 5, 6, 1)
}

func TestEffectiveSampleCount(t *testing.T) {
	t.Parallel()

	t.Run("density clamps to upper bound", func(t *testing.T) {
		n := EffectiveSampleCount(ConnectivityConfig{SampleDensity: 1.0}, 10000)
		assert.Equal(t, MaxSampleCount, n)
	})

	t.Run("density clamps to lower bound", func(t *testing.T) {
		n := EffectiveSampleCount(ConnectivityConfig{SampleDensity: 1.0}, 4)
		assert.Equal(t, MinSampleCount, n)
	})

	t.Run("explicit count wins", func(t *testing.T) {
		n := EffectiveSampleCount(ConnectivityConfig{SampleCount: 77, SampleDensity: 1.0}, 10000)
		assert.Equal(t, 77, n)
	})

	t.Run("in-range density", func(t *testing.T) {
		n := EffectiveSampleCount(ConnectivityConfig{SampleDensity: 0.5}, 300)
		assert.Equal(t, 150, n)
	})
}

func TestAnalyzeConnectivityLargestRegion(t *testing.T) {
	t.Parallel()

	region, err := AnalyzeConnectivity(context.Background(), islandBound(), twoIslands(),
		ConnectivityConfig{MapID: "islands", SampleCount: 40, Seed: 7}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, region.Points)
	assert.False(t, region.FromCache)

	// Sizes are sorted descending and the returned region is the largest.
	require.NotEmpty(t, region.ComponentSizes)
	assert.Equal(t, len(region.Points), region.ComponentSizes[0])
	for i := 1; i < len(region.ComponentSizes); i++ {
		assert.GreaterOrEqual(t, region.ComponentSizes[i-1], region.ComponentSizes[i])
	}

	// Every region point sits on the larger island: both islands are
	// walkable, but only mutually reachable points may share a region.
	first := region.Points[0].Pos
	for _, sp := range region.Points {
		reachable, err := twoIslands().PathExists(first, sp.Pos)
		require.NoError(t, err)
		assert.True(t, reachable, "region point (%v) unreachable from (%v)", sp.Pos, first)
	}
}

func TestAnalyzeConnectivityDeterminism(t *testing.T) {
	t.Parallel()

	cfg := ConnectivityConfig{MapID: "islands", SampleCount: 40, Seed: 99}
	a, err := AnalyzeConnectivity(context.Background(), islandBound(), twoIslands(), cfg, nil)
	require.NoError(t, err)
	b, err := AnalyzeConnectivity(context.Background(), islandBound(), twoIslands(), cfg, nil)
	require.NoError(t, err)

	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("regions differ across identical runs (-first +second):\n%s", diff)
	}
}

func TestAnalyzeConnectivityCacheHit(t *testing.T) {
	t.Parallel()

	store := navcache.NewMemoryStore()
	cfg := ConnectivityConfig{MapID: "islands", SampleCount: 40, Seed: 7}

	first, err := AnalyzeConnectivity(context.Background(), islandBound(), twoIslands(), cfg, store)
	require.NoError(t, err)
	require.False(t, first.FromCache)

	counter := &countingOracle{NavigationOracle: twoIslands()}
	second, err := AnalyzeConnectivity(context.Background(), islandBound(), counter, cfg, store)
	require.NoError(t, err)

	assert.True(t, second.FromCache)
	assert.Zero(t, counter.projects, "cache hit must not sample")
	assert.Zero(t, counter.pathChecks, "cache hit must not run reachability queries")
	assert.Equal(t, len(first.Points), len(second.Points))
	assert.Equal(t, first.ComponentSizes, second.ComponentSizes)
}

func TestAnalyzeConnectivityForceRecompute(t *testing.T) {
	t.Parallel()

	store := navcache.NewMemoryStore()
	cfg := ConnectivityConfig{MapID: "islands", SampleCount: 40, Seed: 7}
	_, err := AnalyzeConnectivity(context.Background(), islandBound(), twoIslands(), cfg, store)
	require.NoError(t, err)

	counter := &countingOracle{NavigationOracle: twoIslands()}
	cfg.ForceRecompute = true
	region, err := AnalyzeConnectivity(context.Background(), islandBound(), counter, cfg, store)
	require.NoError(t, err)

	assert.False(t, region.FromCache)
	assert.NotZero(t, counter.projects)
}

func TestAnalyzeConnectivitySurfaceVersionChangesKey(t *testing.T) {
	t.Parallel()

	a := ConnectivityConfig{MapID: "m", SurfaceVersion: "v1", SampleCount: 40}
	b := ConnectivityConfig{MapID: "m", SurfaceVersion: "v2", SampleCount: 40}
	assert.NotEqual(t, a.cacheKey(), b.cacheKey())
}

func TestAnalyzeConnectivityInsufficientSamples(t *testing.T) {
	t.Parallel()

	blocked := &GridOracle{CellSize: 1, Walkable: parseGrid(".....", ".....")}
	_, err := AnalyzeConnectivity(context.Background(), islandBound(), blocked,
		ConnectivityConfig{MapID: "void", SampleCount: 40, Seed: 1}, nil)
	assert.ErrorIs(t, err, ErrInsufficientSamples)
}

func TestAnalyzeConnectivityUnbakedSurface(t *testing.T) {
	t.Parallel()

	store := navcache.NewMemoryStore()
	unbaked := &GridOracle{CellSize: 1, Walkable: parseGrid("##"), Unbaked: true}
	cfg := ConnectivityConfig{MapID: "raw", SampleCount: 40, Seed: 1}

	_, err := AnalyzeConnectivity(context.Background(), islandBound(), unbaked, cfg, store)
	assert.ErrorIs(t, err, ErrNoNavigableSurface)

	// Failures are never persisted.
	_, ok, err := store.Get(cfg.cacheKey())
	require.NoError(t, err)
	assert.False(t, ok)
}
