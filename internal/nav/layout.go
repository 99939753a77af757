package nav

import (
	"math"

	"github.com/meridian-synth/navroam/internal/monitoring"
)

// LayoutParams controls how a navigable volume is partitioned into bake-sized
// sub-volumes. Sub-volume footprint drives bake memory and time on the host
// side, and independent sub-volumes can be baked in parallel there.
type LayoutParams struct {
	// Margin scales every sub-bound's extent to give the bake headroom.
	Margin float64
	// MinScale and MaxScale clamp each sub-bound's extent elementwise.
	MinScale Vec3
	MaxScale Vec3
	// SmallArea is the footprint (m²) below which a single volume suffices.
	SmallArea float64
	// MediumArea is the footprint (m²) below which a 2-4 way grid split is
	// used instead of recursive partitioning.
	MediumArea float64
	// LeafAreaCap bounds the footprint of each leaf produced by recursive
	// quad-partitioning.
	LeafAreaCap float64
}

// DefaultLayoutParams returns the partitioning thresholds used by the
// standard bake profile.
func DefaultLayoutParams() LayoutParams {
	return LayoutParams{
		Margin:      1.2,
		MinScale:    Vec3{X: 5, Y: 5, Z: 2},
		MaxScale:    Vec3{X: 250, Y: 250, Z: 50},
		SmallArea:   200,
		MediumArea:  500,
		LeafAreaCap: 250,
	}
}

// PlanVolumes decides whether one or multiple sub-volumes are needed for the
// given bounds and returns the ordered partition.
//
// Footprints at or below SmallArea produce a single sub-bound. Footprints at
// or below MediumArea split into an even 2-4 way grid. Larger footprints are
// recursively quartered until every leaf is at or below LeafAreaCap. Every
// sub-bound is scaled by Margin and clamped elementwise to
// [MinScale, MaxScale].
func PlanVolumes(b NavigableBounds, p LayoutParams) VolumePartition {
	box := b.Box()
	area := box.AreaXY()

	var leaves []AABB
	switch {
	case area <= p.SmallArea:
		leaves = []AABB{box}
	case area <= p.MediumArea:
		leaves = gridSplit(box)
	default:
		leaves = quadPartition(box, p.LeafAreaCap)
	}

	out := make([]AABB, len(leaves))
	for i, leaf := range leaves {
		out[i] = scaleClamp(leaf, p)
	}

	monitoring.Logf("[Layout] area=%.1fm² -> %d sub-volume(s)", area, len(out))
	return VolumePartition{Bounds: out}
}

// gridSplit divides the box into an even axis-aligned grid: two halves along
// the long axis when the footprint is elongated, otherwise 2x2 quarters.
func gridSplit(box AABB) []AABB {
	sx := box.Max.X - box.Min.X
	sy := box.Max.Y - box.Min.Y

	nx, ny := 2, 2
	switch {
	case sx >= 2*sy:
		nx, ny = 2, 1
	case sy >= 2*sx:
		nx, ny = 1, 2
	}

	cells := make([]AABB, 0, nx*ny)
	dx := sx / float64(nx)
	dy := sy / float64(ny)
	for iy := 0; iy < ny; iy++ {
		for ix := 0; ix < nx; ix++ {
			cells = append(cells, AABB{
				Min: Vec3{X: box.Min.X + float64(ix)*dx, Y: box.Min.Y + float64(iy)*dy, Z: box.Min.Z},
				Max: Vec3{X: box.Min.X + float64(ix+1)*dx, Y: box.Min.Y + float64(iy+1)*dy, Z: box.Max.Z},
			})
		}
	}
	return cells
}

// quadPartition recursively quarters the footprint until each leaf area is at
// or below cap. Leaves are emitted in row-major recursion order so the
// partition is deterministic for identical inputs.
func quadPartition(box AABB, cap float64) []AABB {
	if box.AreaXY() <= cap {
		return []AABB{box}
	}
	midX := (box.Min.X + box.Max.X) / 2
	midY := (box.Min.Y + box.Max.Y) / 2

	quads := []AABB{
		{Min: box.Min, Max: Vec3{X: midX, Y: midY, Z: box.Max.Z}},
		{Min: Vec3{X: midX, Y: box.Min.Y, Z: box.Min.Z}, Max: Vec3{X: box.Max.X, Y: midY, Z: box.Max.Z}},
		{Min: Vec3{X: box.Min.X, Y: midY, Z: box.Min.Z}, Max: Vec3{X: midX, Y: box.Max.Y, Z: box.Max.Z}},
		{Min: Vec3{X: midX, Y: midY, Z: box.Min.Z}, Max: box.Max},
	}

	var leaves []AABB
	for _, q := range quads {
		leaves = append(leaves, quadPartition(q, cap)...)
	}
	return leaves
}

// scaleClamp applies the margin multiplier to the box extent and clamps the
// result elementwise to [MinScale, MaxScale], preserving the centre.
func scaleClamp(box AABB, p LayoutParams) AABB {
	c := box.Center()
	e := box.Extent().Scale(p.Margin)
	e = Vec3{
		X: math.Min(math.Max(e.X, p.MinScale.X), p.MaxScale.X),
		Y: math.Min(math.Max(e.Y, p.MinScale.Y), p.MaxScale.Y),
		Z: math.Min(math.Max(e.Z, p.MinScale.Z), p.MaxScale.Z),
	}
	return AABB{Min: c.Sub(e), Max: c.Add(e)}
}
