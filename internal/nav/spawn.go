package nav

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/meridian-synth/navroam/internal/monitoring"
)

// SpawnStrategy selects how a region point is drawn when no explicit marker
// validates.
type SpawnStrategy string

const (
	// SpawnRandom draws a uniform region point.
	SpawnRandom SpawnStrategy = "random"
	// SpawnCenter picks the region point nearest the region centroid.
	SpawnCenter SpawnStrategy = "center"
)

// SpawnParams hold the validation thresholds for spawn candidates.
type SpawnParams struct {
	// GroundProbeDistance bounds the downward probe used to recover a marker
	// that sits above the surface, in meters.
	GroundProbeDistance float64
	// MaxGroundOffset is the maximum allowed gap between a candidate and the
	// ground hit beneath it, in meters.
	MaxGroundOffset float64
	// MinFreeRadius is the reachable clearance required around a candidate,
	// in meters.
	MinFreeRadius float64
}

func DefaultSpawnParams() SpawnParams {
	return SpawnParams{
		GroundProbeDistance: 5.0,
		MaxGroundOffset:     2.0,
		MinFreeRadius:       2.0,
	}
}

// SpawnInput carries everything SelectSpawnPoint considers.
type SpawnInput struct {
	// PrimaryMarker and SecondaryMarker are explicit start hints, tried in
	// that order before any region point.
	PrimaryMarker   *Vec3
	SecondaryMarker *Vec3
	// Region is the largest connected region from the connectivity analysis.
	// It may be nil when analysis was skipped.
	Region *Region
	// Bound limits the random fallback.
	Bound    AABB
	Strategy SpawnStrategy
	Params   SpawnParams
	Seed     int64
	// RegionTries and FallbackTries bound the random draws of stages 3 and 4.
	// Both default to 10 when zero.
	RegionTries   int
	FallbackTries int
}

// SelectSpawnPoint walks the candidate chain and returns the first candidate
// that validates: markers first, then a region point per the strategy, then a
// random in-bounds point projected onto the surface. Every candidate is
// validated the same way, including the region centroid. Returns
// ErrAllStrategiesExhausted when nothing validates.
func SelectSpawnPoint(ctx context.Context, oracle NavigationOracle, in SpawnInput) (Vec3, error) {
	if in.RegionTries <= 0 {
		in.RegionTries = 10
	}
	if in.FallbackTries <= 0 {
		in.FallbackTries = 10
	}
	rng := rand.New(rand.NewSource(in.Seed))

	for _, marker := range []*Vec3{in.PrimaryMarker, in.SecondaryMarker} {
		if marker == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return Vec3{}, fmt.Errorf("selecting spawn point: %w", err)
		}
		p, ok, err := validateCandidate(oracle, *marker, in.Params, true)
		if err != nil {
			return Vec3{}, err
		}
		if ok {
			monitoring.Logf("[Spawn] marker at (%.1f, %.1f, %.1f) validated", p.X, p.Y, p.Z)
			return p, nil
		}
	}

	if in.Region != nil && len(in.Region.Points) > 0 {
		for try := 0; try < in.RegionTries; try++ {
			if err := ctx.Err(); err != nil {
				return Vec3{}, fmt.Errorf("selecting spawn point: %w", err)
			}
			candidate := regionCandidate(in.Region, in.Strategy, rng)
			p, ok, err := validateCandidate(oracle, candidate, in.Params, false)
			if err != nil {
				return Vec3{}, err
			}
			if ok {
				monitoring.Logf("[Spawn] region point (%.1f, %.1f, %.1f) validated (strategy %s)",
					p.X, p.Y, p.Z, in.Strategy)
				return p, nil
			}
			if in.Strategy == SpawnCenter {
				// The centroid-nearest point is deterministic; retrying it
				// cannot help.
				break
			}
		}
	}

	center := in.Bound.Center()
	ext := in.Bound.Extent()
	for try := 0; try < in.FallbackTries; try++ {
		if err := ctx.Err(); err != nil {
			return Vec3{}, fmt.Errorf("selecting spawn point: %w", err)
		}
		candidate := Vec3{
			X: center.X + (rng.Float64()*2-1)*ext.X,
			Y: center.Y + (rng.Float64()*2-1)*ext.Y,
			Z: center.Z,
		}
		p, ok, err := validateCandidate(oracle, candidate, in.Params, true)
		if err != nil {
			return Vec3{}, err
		}
		if ok {
			monitoring.Logf("[Spawn] fallback point (%.1f, %.1f, %.1f) validated", p.X, p.Y, p.Z)
			return p, nil
		}
	}

	return Vec3{}, fmt.Errorf("no spawn candidate validated: %w", ErrAllStrategiesExhausted)
}

func regionCandidate(r *Region, strategy SpawnStrategy, rng *rand.Rand) Vec3 {
	if strategy == SpawnCenter {
		centroid := r.Centroid()
		best := r.Points[0].Pos
		bestDist := best.Dist(centroid)
		for _, sp := range r.Points[1:] {
			if d := sp.Pos.Dist(centroid); d < bestDist {
				best, bestDist = sp.Pos, d
			}
		}
		return best
	}
	return r.Points[rng.Intn(len(r.Points))].Pos
}

// validateCandidate projects the candidate, ground-probes beneath it, and
// checks the local free radius. probeDown additionally recovers an
// off-surface candidate by probing straight down before rejecting it.
func validateCandidate(oracle NavigationOracle, candidate Vec3, p SpawnParams, probeDown bool) (Vec3, bool, error) {
	pos, ok, err := oracle.ProjectToSurface(candidate)
	if err != nil {
		return Vec3{}, false, fmt.Errorf("validating spawn candidate: %w", err)
	}
	if !ok {
		if !probeDown {
			return Vec3{}, false, nil
		}
		pos, ok, err = oracle.GroundProbe(candidate, p.GroundProbeDistance)
		if err != nil {
			return Vec3{}, false, fmt.Errorf("validating spawn candidate: %w", err)
		}
		if !ok {
			return Vec3{}, false, nil
		}
	}

	ground, ok, err := oracle.GroundProbe(pos, p.MaxGroundOffset)
	if err != nil {
		return Vec3{}, false, fmt.Errorf("validating spawn candidate: %w", err)
	}
	if !ok || pos.Dist(ground) > p.MaxGroundOffset {
		return Vec3{}, false, nil
	}

	free, ok, err := oracle.FindReachablePoint(pos, p.MinFreeRadius)
	if err != nil {
		return Vec3{}, false, fmt.Errorf("validating spawn candidate: %w", err)
	}
	// Require actual room around the candidate, not just a degenerate
	// reachable point on top of it.
	if !ok || pos.Dist(free) < 0.25*p.MinFreeRadius {
		return Vec3{}, false, nil
	}
	return pos, true, nil
}
