package nav

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/meridian-synth/navroam/internal/monitoring"
	"github.com/meridian-synth/navroam/internal/nav/navcache"
)

// Sample count bounds for density-derived sampling.
const (
	MinSampleCount = 30
	MaxSampleCount = 200

	// DefaultKNearest is the neighbour count used to gate reachability
	// queries when building the connectivity graph.
	DefaultKNearest = 8

	// sampleAttemptFactor bounds projection attempts at factor * target
	// count, allowing for unprojectable throws.
	sampleAttemptFactor = 3
)

// ConnectivityConfig parameterizes one connectivity analysis.
type ConnectivityConfig struct {
	// MapID identifies the map; it keys the result cache.
	MapID string
	// SurfaceVersion qualifies MapID with a bake content version so a rebaked
	// surface cannot silently reuse a stale region. Empty disables versioning.
	SurfaceVersion string
	// SampleCount, when positive, fixes the number of surface samples.
	// Otherwise the count derives from SampleDensity and the bound's
	// footprint, clamped to [MinSampleCount, MaxSampleCount].
	SampleCount   int
	SampleDensity float64 // points per m²; 1.0 when zero
	KNearest      int     // DefaultKNearest when zero
	// ForceRecompute bypasses any cached entry.
	ForceRecompute bool
	// Seed drives the sampling RNG; identical inputs and seed yield an
	// identical largest region.
	Seed int64
}

func (c ConnectivityConfig) withDefaults() ConnectivityConfig {
	if c.SampleDensity <= 0 {
		c.SampleDensity = 1.0
	}
	if c.KNearest <= 0 {
		c.KNearest = DefaultKNearest
	}
	return c
}

// cacheKey folds the map identity, surface version, and sample configuration
// into the store key so a configuration change is a miss, not a stale hit.
func (c ConnectivityConfig) cacheKey() string {
	return fmt.Sprintf("%s@%s|n=%d|d=%g|k=%d",
		c.MapID, c.SurfaceVersion, c.SampleCount, c.SampleDensity, c.KNearest)
}

// EffectiveSampleCount resolves the sample count for a bound footprint:
// the explicit count when set, otherwise area·density clamped to
// [MinSampleCount, MaxSampleCount].
func EffectiveSampleCount(cfg ConnectivityConfig, areaM2 float64) int {
	cfg = cfg.withDefaults()
	if cfg.SampleCount > 0 {
		return cfg.SampleCount
	}
	n := int(areaM2 * cfg.SampleDensity)
	if n < MinSampleCount {
		n = MinSampleCount
	}
	if n > MaxSampleCount {
		n = MaxSampleCount
	}
	return n
}

// AnalyzeConnectivity samples the walkable surface inside bound, builds a
// k-nearest-neighbour reachability graph over the samples, and returns the
// largest connected region.
//
// When store is non-nil and ForceRecompute is unset, a cached entry matching
// the map identity and sample configuration is returned directly with zero
// oracle calls. Fresh results are persisted before returning. Analyses for
// one cache key are serialized through the store's per-key lock.
func AnalyzeConnectivity(ctx context.Context, bound AABB, oracle NavigationOracle, cfg ConnectivityConfig, store navcache.Store) (*Region, error) {
	cfg = cfg.withDefaults()
	key := cfg.cacheKey()

	if store != nil {
		unlock := store.Lock(key)
		defer unlock()

		if !cfg.ForceRecompute {
			if entry, ok, err := store.Get(key); err == nil && ok && entryMatches(entry, cfg) {
				monitoring.Logf("[Connectivity] cache hit for %q: region of %d point(s), analyzed %s",
					key, len(entry.Region), entry.AnalyzedAt.Format(time.RFC3339))
				return regionFromEntry(entry), nil
			} else if err != nil {
				// Unreadable store entries behave as misses.
				monitoring.Logf("[Connectivity] cache read for %q failed, recomputing: %v", key, err)
			}
		}
	}

	samples, err := sampleSurface(bound, oracle, cfg)
	if err != nil {
		return nil, err
	}
	monitoring.Logf("[Connectivity] collected %d valid sample point(s)", len(samples))

	adjacency, err := buildReachabilityGraph(ctx, samples, oracle, cfg.KNearest)
	if err != nil {
		return nil, err
	}

	region := largestComponent(samples, adjacency)
	monitoring.Logf("[Connectivity] %d component(s); largest region has %d/%d point(s)",
		len(region.ComponentSizes), len(region.Points), len(samples))

	if store != nil {
		if err := store.Put(key, entryFromRegion(key, region, cfg)); err != nil {
			// Persistence failure never invalidates a computed result.
			monitoring.Logf("[Connectivity] failed to cache result for %q: %v", key, err)
		}
	}
	return region, nil
}

// sampleSurface throws up to sampleAttemptFactor·M uniform points inside the
// bound (full X-Y extent, half Z extent around the centre) and keeps those
// that project onto the walkable surface.
func sampleSurface(bound AABB, oracle NavigationOracle, cfg ConnectivityConfig) ([]SamplePoint, error) {
	target := EffectiveSampleCount(cfg, bound.AreaXY())
	rng := rand.New(rand.NewSource(cfg.Seed))
	center := bound.Center()
	ext := bound.Extent()

	samples := make([]SamplePoint, 0, target)
	for attempts := 0; len(samples) < target && attempts < target*sampleAttemptFactor; attempts++ {
		throw := Vec3{
			X: center.X + (rng.Float64()*2-1)*ext.X,
			Y: center.Y + (rng.Float64()*2-1)*ext.Y,
			Z: center.Z + (rng.Float64()*2-1)*ext.Z*0.5,
		}
		p, ok, err := oracle.ProjectToSurface(throw)
		if err != nil {
			if errors.Is(err, ErrSurfaceNotBaked) {
				return nil, fmt.Errorf("projecting samples: %w: %w", ErrNoNavigableSurface, err)
			}
			return nil, fmt.Errorf("projecting samples: %w", err)
		}
		if !ok {
			continue
		}
		samples = append(samples, SamplePoint{ID: len(samples), Pos: p})
	}

	if len(samples) < 2 {
		return nil, fmt.Errorf("got %d of %d sample(s): %w", len(samples), target, ErrInsufficientSamples)
	}
	return samples, nil
}

// buildReachabilityGraph computes each sample's k nearest neighbours by
// Euclidean distance and gates every candidate pair on a reachability query,
// testing each undirected pair at most once.
func buildReachabilityGraph(ctx context.Context, samples []SamplePoint, oracle NavigationOracle, k int) (map[int][]int, error) {
	pts := make(surfacePoints, len(samples))
	for i, s := range samples {
		pts[i] = surfacePoint{id: s.ID, pos: s.Pos}
	}
	tree := kdtree.New(pts, false)

	adjacency := make(map[int][]int, len(samples))
	tested := make(map[[2]int]bool)
	queries, connected := 0, 0

	for _, s := range samples {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("building reachability graph: %w", err)
		}

		for _, j := range nearestIDs(tree, surfacePoint{id: s.ID, pos: s.Pos}, k) {
			pair := [2]int{s.ID, j}
			if pair[0] > pair[1] {
				pair[0], pair[1] = pair[1], pair[0]
			}
			if tested[pair] {
				continue
			}
			tested[pair] = true

			queries++
			ok, err := oracle.PathExists(s.Pos, samples[j].Pos)
			if err != nil {
				return nil, fmt.Errorf("reachability query %d-%d: %w", s.ID, j, err)
			}
			if ok {
				adjacency[s.ID] = append(adjacency[s.ID], j)
				adjacency[j] = append(adjacency[j], s.ID)
				connected++
			}
		}
	}

	monitoring.Logf("[Connectivity] reachability: %d/%d quer(ies) connected", connected, queries)
	return adjacency, nil
}

// nearestIDs returns up to k neighbour ids of q, nearest first, excluding q
// itself.
func nearestIDs(tree *kdtree.Tree, q surfacePoint, k int) []int {
	keeper := kdtree.NewNKeeper(k + 1) // +1 absorbs q itself
	tree.NearestSet(keeper, q)

	type hit struct {
		id   int
		dist float64
	}
	hits := make([]hit, 0, k+1)
	for _, cd := range keeper.Heap {
		if cd.Comparable == nil {
			continue
		}
		p := cd.Comparable.(surfacePoint)
		if p.id == q.id {
			continue
		}
		hits = append(hits, hit{id: p.id, dist: cd.Dist})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })

	if len(hits) > k {
		hits = hits[:k]
	}
	ids := make([]int, len(hits))
	for i, h := range hits {
		ids[i] = h.id
	}
	return ids
}

// largestComponent finds the connected components of the adjacency and
// returns the maximum-cardinality one. Ties break to the component containing
// the lowest sample id, which matches the first-discovered component of a BFS
// over ascending start ids.
func largestComponent(samples []SamplePoint, adjacency map[int][]int) *Region {
	g := simple.NewUndirectedGraph()
	for _, s := range samples {
		g.AddNode(simple.Node(s.ID))
	}
	for id, neighbors := range adjacency {
		for _, j := range neighbors {
			if id < j {
				g.SetEdge(simple.Edge{F: simple.Node(id), T: simple.Node(j)})
			}
		}
	}

	components := topo.ConnectedComponents(g)

	// gonum's component order follows map iteration; sort ids within each
	// component and order the components deterministically before selection.
	ids := make([][]int, len(components))
	for i, comp := range components {
		ids[i] = make([]int, len(comp))
		for j, n := range comp {
			ids[i][j] = int(n.ID())
		}
		sort.Ints(ids[i])
	}
	sort.Slice(ids, func(i, j int) bool {
		if len(ids[i]) != len(ids[j]) {
			return len(ids[i]) > len(ids[j])
		}
		return ids[i][0] < ids[j][0]
	})

	sizes := make([]int, len(ids))
	for i, comp := range ids {
		sizes[i] = len(comp)
	}

	points := make([]SamplePoint, len(ids[0]))
	for i, id := range ids[0] {
		points[i] = samples[id]
	}
	return &Region{Points: points, ComponentSizes: sizes}
}

func entryMatches(e *navcache.Entry, cfg ConnectivityConfig) bool {
	return e.SampleCount == cfg.SampleCount &&
		e.SampleDensity == cfg.SampleDensity &&
		e.KNearest == cfg.KNearest &&
		len(e.Region) > 0
}

func entryFromRegion(key string, r *Region, cfg ConnectivityConfig) *navcache.Entry {
	region := make([]navcache.Vec3, len(r.Points))
	for i, p := range r.Points {
		region[i] = navcache.Vec3{X: p.Pos.X, Y: p.Pos.Y, Z: p.Pos.Z}
	}
	return &navcache.Entry{
		MapKey:         key,
		SampleCount:    cfg.SampleCount,
		SampleDensity:  cfg.SampleDensity,
		KNearest:       cfg.KNearest,
		ComponentSizes: append([]int(nil), r.ComponentSizes...),
		Region:         region,
		AnalyzedAt:     time.Now().UTC(),
	}
}

func regionFromEntry(e *navcache.Entry) *Region {
	points := make([]SamplePoint, len(e.Region))
	for i, p := range e.Region {
		points[i] = SamplePoint{ID: i, Pos: Vec3{X: p.X, Y: p.Y, Z: p.Z}}
	}
	return &Region{
		Points:         points,
		ComponentSizes: append([]int(nil), e.ComponentSizes...),
		FromCache:      true,
	}
}
