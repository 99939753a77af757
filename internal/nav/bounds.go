package nav

import (
	"fmt"
	"math"

	"github.com/meridian-synth/navroam/internal/monitoring"
)

// BoundsParams holds the agent clearance margins applied to the vertical
// axis of the aggregated volume.
type BoundsParams struct {
	// StepHeight extends the volume below the lowest walkable surface so the
	// bake captures steps and kerbs the agent can descend (metres).
	StepHeight float64
	// JumpHeight extends the volume above the highest geometry so the bake
	// captures ledges the agent can mount (metres).
	JumpHeight float64
}

// DefaultBoundsParams returns the clearance margins used by the standard
// agent profile (0.5m step, 2.0m jump).
func DefaultBoundsParams() BoundsParams {
	return BoundsParams{StepHeight: 0.5, JumpHeight: 2.0}
}

// ComputeBounds aggregates scene geometry into the navigable bounding volume.
//
// Horizontal bounds are the union of all participating boxes projected onto
// the X-Y plane. The vertical axis follows the ground-priority rule: when any
// Ground entity exists, zMin derives from the lowest ground surface minus
// StepHeight, overriding lower non-ground geometry. zMax always derives from
// geometry plus JumpHeight; ground entities never raise it above other
// geometry.
//
// Entities that are non-navigable or KindExcluded do not participate.
func ComputeBounds(entities []GeometryEntity, p BoundsParams) (NavigableBounds, error) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	geomZMin, geomZMax := math.Inf(1), math.Inf(-1)
	groundZMin := math.Inf(1)
	nonGroundZMax := math.Inf(-1)

	used := 0
	groundCount := 0
	for _, e := range entities {
		if !e.Navigable || e.Kind == KindExcluded {
			continue
		}
		used++

		minX = math.Min(minX, e.Box.Min.X)
		minY = math.Min(minY, e.Box.Min.Y)
		maxX = math.Max(maxX, e.Box.Max.X)
		maxY = math.Max(maxY, e.Box.Max.Y)
		geomZMin = math.Min(geomZMin, e.Box.Min.Z)
		geomZMax = math.Max(geomZMax, e.Box.Max.Z)

		if e.Kind == KindGround {
			groundCount++
			groundZMin = math.Min(groundZMin, e.Box.Min.Z)
		} else {
			nonGroundZMax = math.Max(nonGroundZMax, e.Box.Max.Z)
		}
	}

	if used == 0 {
		return NavigableBounds{}, fmt.Errorf("aggregating %d entities: %w", len(entities), ErrNoGeometry)
	}

	var zMin float64
	var groundRef *float64
	if groundCount > 0 {
		zMin = groundZMin - p.StepHeight
		g := groundZMin
		groundRef = &g
	} else {
		zMin = geomZMin - p.StepHeight
	}

	// zMax comes from non-ground geometry where any exists; a ground-only
	// scene falls back to the ground's own top.
	zTop := nonGroundZMax
	if groundCount == used {
		zTop = geomZMax
	}
	zMax := zTop + p.JumpHeight

	box := AABB{
		Min: Vec3{X: minX, Y: minY, Z: zMin},
		Max: Vec3{X: maxX, Y: maxY, Z: zMax},
	}
	ext := box.Extent()
	if ext.X <= 0 || ext.Y <= 0 || ext.Z <= 0 {
		return NavigableBounds{}, fmt.Errorf(
			"extent (%.2f, %.2f, %.2f) from %d entities: %w",
			ext.X, ext.Y, ext.Z, used, ErrDegenerateBounds)
	}

	monitoring.Logf("[Bounds] aggregated %d entities (%d ground): center=(%.1f, %.1f, %.1f) extent=(%.1f, %.1f, %.1f)",
		used, groundCount, box.Center().X, box.Center().Y, box.Center().Z, ext.X, ext.Y, ext.Z)

	return NavigableBounds{
		Center:     box.Center(),
		Extent:     ext,
		GroundZMin: groundRef,
	}, nil
}
