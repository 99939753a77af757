package nav

import (
	"math"
	"time"
)

// Vec3 is a position or extent in world frame (metres).
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Scale returns v scaled by s.
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// Dist returns the Euclidean distance between v and o.
func (v Vec3) Dist(o Vec3) float64 {
	dx := v.X - o.X
	dy := v.Y - o.Y
	dz := v.Z - o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// DistXY returns the horizontal (X-Y plane) distance between v and o.
func (v Vec3) DistXY(o Vec3) float64 {
	dx := v.X - o.X
	dy := v.Y - o.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Lerp returns the linear interpolation between v and o at parameter t in [0,1].
func (v Vec3) Lerp(o Vec3, t float64) Vec3 {
	return Vec3{
		v.X + (o.X-v.X)*t,
		v.Y + (o.Y-v.Y)*t,
		v.Z + (o.Z-v.Z)*t,
	}
}

// AABB is an axis-aligned bounding box in world frame.
type AABB struct {
	Min Vec3 `json:"min"`
	Max Vec3 `json:"max"`
}

// Center returns the box centre.
func (b AABB) Center() Vec3 {
	return Vec3{(b.Min.X + b.Max.X) / 2, (b.Min.Y + b.Max.Y) / 2, (b.Min.Z + b.Max.Z) / 2}
}

// Extent returns the half-size of the box along each axis.
func (b AABB) Extent() Vec3 {
	return Vec3{(b.Max.X - b.Min.X) / 2, (b.Max.Y - b.Min.Y) / 2, (b.Max.Z - b.Min.Z) / 2}
}

// AreaXY returns the footprint area of the box on the X-Y plane (m²).
func (b AABB) AreaXY() float64 {
	return (b.Max.X - b.Min.X) * (b.Max.Y - b.Min.Y)
}

// Contains reports whether p lies inside the box (inclusive).
func (b AABB) Contains(p Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// EntityKind classifies scene geometry for bounds aggregation.
type EntityKind string

const (
	// KindGround marks terrain geometry. Its lower surface drives the final
	// zMin of the navigable volume regardless of other entities' Z extents.
	KindGround EntityKind = "ground"
	// KindObstacle marks ordinary blocking geometry.
	KindObstacle EntityKind = "obstacle"
	// KindExcluded marks geometry that is ignored entirely.
	KindExcluded EntityKind = "excluded"
)

// GeometryEntity is one piece of scene geometry as supplied by the geometry
// provider. Read-only to this package.
type GeometryEntity struct {
	ID        string     `json:"id"`
	Box       AABB       `json:"box"`
	Kind      EntityKind `json:"kind"`
	Navigable bool       `json:"navigable"`
}

// NavigableBounds is the aggregated navigable volume for a scene.
// GroundZMin is set iff at least one Ground entity participated; when set,
// the final zMin was derived from it (ground-priority rule).
type NavigableBounds struct {
	Center     Vec3     `json:"center"`
	Extent     Vec3     `json:"extent"`
	GroundZMin *float64 `json:"ground_z_min,omitempty"`
}

// Box returns the bounds as an AABB.
func (b NavigableBounds) Box() AABB {
	return AABB{Min: b.Center.Sub(b.Extent), Max: b.Center.Add(b.Extent)}
}

// VolumePartition is an ordered set of sub-bounds covering the navigable
// volume. A single-element partition means no split was needed.
type VolumePartition struct {
	Bounds []AABB `json:"bounds"`
}

// SamplePoint is one projected point on the walkable surface.
type SamplePoint struct {
	ID  int  `json:"id"`
	Pos Vec3 `json:"pos"`
}

// Region is the largest connected set of sample points on the walkable
// surface, together with the sizes of every component found.
type Region struct {
	Points         []SamplePoint `json:"points"`
	ComponentSizes []int         `json:"component_sizes"`
	FromCache      bool          `json:"from_cache"`
}

// Centroid returns the mean position of the region's points.
func (r *Region) Centroid() Vec3 {
	var c Vec3
	if len(r.Points) == 0 {
		return c
	}
	for _, p := range r.Points {
		c = c.Add(p.Pos)
	}
	return c.Scale(1 / float64(len(r.Points)))
}

// Waypoint is one interpolated pose sample along a trajectory leg.
type Waypoint struct {
	Pos Vec3          `json:"pos"`
	Yaw float64       `json:"yaw"` // degrees, [-180, 180]
	T   time.Duration `json:"t"`   // offset from the leg start
}

// TrajectoryLeg is one point-to-point segment of a trajectory, with its
// interpolated waypoints.
type TrajectoryLeg struct {
	Start     Vec3       `json:"start"`
	End       Vec3       `json:"end"`
	Waypoints []Waypoint `json:"waypoints"`
}

// PlanStatus is the terminal state of a generation request.
type PlanStatus string

const (
	PlanValid  PlanStatus = "valid"
	PlanFailed PlanStatus = "failed"
)

// TrajectoryPlan is the output of one successful generation request.
// Immutable once returned.
type TrajectoryPlan struct {
	ID     string          `json:"id"`
	Seed   int64           `json:"seed"`
	Legs   []TrajectoryLeg `json:"legs"`
	Status PlanStatus      `json:"status"`
}

// Length returns the total endpoint-to-endpoint length of the plan (metres).
func (p *TrajectoryPlan) Length() float64 {
	var total float64
	for _, leg := range p.Legs {
		total += leg.Start.Dist(leg.End)
	}
	return total
}

// yawDegreesXY returns the heading in degrees of the movement direction from
// a to b, projected on the X-Y plane.
func yawDegreesXY(a, b Vec3) float64 {
	return math.Atan2(b.Y-a.Y, b.X-a.X) * 180 / math.Pi
}

// normalizeDeg wraps an angle into [-180, 180).
func normalizeDeg(deg float64) float64 {
	for deg >= 180 {
		deg -= 360
	}
	for deg < -180 {
		deg += 360
	}
	return deg
}
