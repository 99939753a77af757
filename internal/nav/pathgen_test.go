package nav

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openGrid returns an n x n fully walkable grid with 1m cells.
func openGrid(n int) *GridOracle {
	w := make([][]bool, n)
	for y := range w {
		w[y] = make([]bool, n)
		for x := range w[y] {
			w[y][x] = true
		}
	}
	return &GridOracle{CellSize: 1, Walkable: w}
}

func openPathConfig() PathConfig {
	cfg := DefaultPathConfig()
	cfg.BaseSeed = 1
	// Keep leg throws well inside the 200m test grid.
	cfg.SearchRadius = 16
	return cfg
}

func TestGeneratePathSixLegs(t *testing.T) {
	t.Parallel()

	start := Vec3{X: 100, Y: 100}
	cfg := openPathConfig()
	plan, err := GeneratePath(context.Background(), start, openGrid(200), cfg)
	require.NoError(t, err)

	assert.Len(t, plan.Legs, cfg.NumLegs)
	assert.Equal(t, PlanValid, plan.Status)
	assert.NotEmpty(t, plan.ID)

	// Legs chain start to end.
	assert.Equal(t, start, plan.Legs[0].Start)
	for i := 1; i < len(plan.Legs); i++ {
		assert.Equal(t, plan.Legs[i-1].End, plan.Legs[i].Start)
	}
	for i, leg := range plan.Legs {
		assert.GreaterOrEqual(t, leg.Start.Dist(leg.End), cfg.MinSegmentLength,
			"leg %d shorter than the segment floor", i)
	}
}

func TestGeneratePathWaypointInterpolation(t *testing.T) {
	t.Parallel()

	cfg := openPathConfig()
	plan, err := GeneratePath(context.Background(), Vec3{X: 100, Y: 100}, openGrid(200), cfg)
	require.NoError(t, err)

	step := cfg.Speed * cfg.KeyInterval.Seconds()
	maxYawStep := cfg.MaxYawRate * cfg.KeyInterval.Seconds()

	for li, leg := range plan.Legs {
		require.GreaterOrEqual(t, len(leg.Waypoints), 2, "leg %d", li)
		assert.Equal(t, leg.Start, leg.Waypoints[0].Pos, "leg %d", li)
		assert.Equal(t, leg.End, leg.Waypoints[len(leg.Waypoints)-1].Pos, "leg %d", li)

		for i, w := range leg.Waypoints {
			assert.Equal(t, time.Duration(i)*cfg.KeyInterval, w.T, "leg %d waypoint %d", li, i)
			assert.GreaterOrEqual(t, w.Yaw, -180.0)
			assert.Less(t, w.Yaw, 180.0)

			if i > 0 {
				// Arc-length resampling bounds the Euclidean spacing by the
				// speed step; corner-straddling and final points come closer.
				assert.LessOrEqual(t, leg.Waypoints[i-1].Pos.Dist(w.Pos), step+1e-6,
					"leg %d waypoint %d spacing", li, i)
				delta := math.Abs(normalizeDeg(w.Yaw - leg.Waypoints[i-1].Yaw))
				assert.LessOrEqual(t, delta, maxYawStep+1e-6,
					"leg %d waypoint %d yaw rate", li, i)
			}
		}
	}
}

func TestGeneratePathDeterministic(t *testing.T) {
	t.Parallel()

	cfg := openPathConfig()
	a, err := GeneratePath(context.Background(), Vec3{X: 100, Y: 100}, openGrid(200), cfg)
	require.NoError(t, err)
	b, err := GeneratePath(context.Background(), Vec3{X: 100, Y: 100}, openGrid(200), cfg)
	require.NoError(t, err)

	assert.Equal(t, a.Seed, b.Seed)
	assert.Equal(t, a.Legs, b.Legs)
}

// projectOnlyOracle accepts every projection but reports every target
// unreachable, so every attempt gets stuck. It records the projected throws.
type projectOnlyOracle struct {
	throws []Vec3
}

func (o *projectOnlyOracle) ProjectToSurface(p Vec3) (Vec3, bool, error) {
	o.throws = append(o.throws, p)
	return p, true, nil
}
func (o *projectOnlyOracle) FindReachablePoint(Vec3, float64) (Vec3, bool, error) {
	return Vec3{}, false, nil
}
func (o *projectOnlyOracle) PathExists(Vec3, Vec3) (bool, error) { return false, nil }
func (o *projectOnlyOracle) FindPath(Vec3, Vec3) ([]Vec3, bool, error) {
	return nil, false, nil
}
func (o *projectOnlyOracle) GroundProbe(Vec3, float64) (Vec3, bool, error) {
	return Vec3{}, false, nil
}

// firstThrow reproduces the first leg target draw for a given seed.
func firstThrow(start Vec3, cfg PathConfig, seed int64) Vec3 {
	rng := rand.New(rand.NewSource(seed))
	angle := (rng.Float64()*2 - 1) * math.Pi
	radius := cfg.SearchRadius * (0.25 + 0.75*rng.Float64())
	return Vec3{
		X: start.X + radius*math.Cos(angle),
		Y: start.Y + radius*math.Sin(angle),
		Z: start.Z,
	}
}

func TestGeneratePathStuckRetrySeedSequence(t *testing.T) {
	t.Parallel()

	const baseSeed = 12345
	start := Vec3{X: 0, Y: 0}
	cfg := DefaultPathConfig()
	cfg.BaseSeed = baseSeed
	cfg.MaxTriesPerLeg = 3

	oracle := &projectOnlyOracle{}
	_, err := GeneratePath(context.Background(), start, oracle, cfg)
	require.ErrorIs(t, err, ErrPathGenerationFailed)

	// Exactly stuck_retry_max + 1 attempts ran, each burning the full
	// per-leg try budget on leg 0.
	attempts := cfg.StuckRetryMax + 1
	require.Len(t, oracle.throws, attempts*cfg.MaxTriesPerLeg)

	// Each attempt's first throw betrays its RNG seed: the sequence must be
	// base, base+1000, ..., base+5000.
	for a := 0; a < attempts; a++ {
		wantSeed := baseSeed + int64(a)*cfg.SeedIncrement
		want := firstThrow(start, cfg, wantSeed)
		got := oracle.throws[a*cfg.MaxTriesPerLeg]
		assert.InDelta(t, want.X, got.X, 1e-12, "attempt %d not seeded with %d", a, wantSeed)
		assert.InDelta(t, want.Y, got.Y, 1e-12, "attempt %d not seeded with %d", a, wantSeed)
	}
}

func TestGeneratePathQualityBudget(t *testing.T) {
	t.Parallel()

	cfg := openPathConfig()
	// An impossible diversity radius rejects every otherwise-valid plan.
	cfg.Quality.MinPointDistance = 1e9
	cfg.Quality.RequireDiversity = true

	_, err := GeneratePath(context.Background(), Vec3{X: 100, Y: 100}, openGrid(200), cfg)
	assert.ErrorIs(t, err, ErrPathGenerationFailed)
}

func TestGeneratePathCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := GeneratePath(ctx, Vec3{X: 100, Y: 100}, openGrid(200), openPathConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQualityReject(t *testing.T) {
	t.Parallel()

	q := PathQuality{MinPathLength: 10, MinTurnAngle: 5, MinPointDistance: 1, RequireDiversity: true}

	t.Run("accepts a turning path", func(t *testing.T) {
		ends := []Vec3{{X: 10}, {X: 10, Y: 10}, {X: 0, Y: 10}}
		assert.Empty(t, qualityReject(Vec3{}, ends, q))
	})

	t.Run("rejects short paths", func(t *testing.T) {
		ends := []Vec3{{X: 2}, {X: 2, Y: 2}}
		assert.NotEmpty(t, qualityReject(Vec3{}, ends, q))
	})

	t.Run("rejects monotonic paths", func(t *testing.T) {
		ends := []Vec3{{X: 10}, {X: 20, Y: 0.1}, {X: 30, Y: 0.2}}
		assert.NotEmpty(t, qualityReject(Vec3{}, ends, q))
	})

	t.Run("rejects revisits", func(t *testing.T) {
		ends := []Vec3{{X: 10}, {X: 10, Y: 10}, {X: 0.2, Y: 0.1}}
		assert.NotEmpty(t, qualityReject(Vec3{}, ends, q))
	})

	t.Run("diversity off permits revisits", func(t *testing.T) {
		relaxed := q
		relaxed.RequireDiversity = false
		ends := []Vec3{{X: 10}, {X: 10, Y: 10}, {X: 0.2, Y: 0.1}}
		assert.Empty(t, qualityReject(Vec3{}, ends, relaxed))
	})
}

func TestResamplePolyline(t *testing.T) {
	t.Parallel()

	t.Run("straight segment", func(t *testing.T) {
		got := resamplePolyline([]Vec3{{}, {X: 10}}, 1)
		require.Len(t, got, 11)
		assert.Equal(t, Vec3{}, got[0])
		assert.Equal(t, Vec3{X: 10}, got[10])
		for i, p := range got {
			assert.InDelta(t, float64(i), p.X, 1e-9)
		}
	})

	t.Run("remainder keeps the endpoint", func(t *testing.T) {
		got := resamplePolyline([]Vec3{{}, {X: 2.5}}, 1)
		require.Len(t, got, 4)
		assert.Equal(t, Vec3{X: 2.5}, got[3])
	})

	t.Run("arc length spans vertices", func(t *testing.T) {
		got := resamplePolyline([]Vec3{{}, {X: 1.5}, {X: 1.5, Y: 1.5}}, 2)
		// One 3m polyline: points at arc 0, 2, and the endpoint.
		require.Len(t, got, 3)
		assert.Equal(t, Vec3{X: 1.5, Y: 0.5}, got[1])
	})
}
