package nav

import "gonum.org/v1/gonum/spatial/kdtree"

// surfacePoint adapts a surface sample to kdtree.Comparable. Distance is
// squared Euclidean, matching the kdtree package's convention.
type surfacePoint struct {
	id  int
	pos Vec3
}

func (p surfacePoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(surfacePoint)
	switch d {
	case 0:
		return p.pos.X - q.pos.X
	case 1:
		return p.pos.Y - q.pos.Y
	default:
		return p.pos.Z - q.pos.Z
	}
}

func (p surfacePoint) Dims() int { return 3 }

func (p surfacePoint) Distance(c kdtree.Comparable) float64 {
	q := c.(surfacePoint)
	dx := p.pos.X - q.pos.X
	dy := p.pos.Y - q.pos.Y
	dz := p.pos.Z - q.pos.Z
	return dx*dx + dy*dy + dz*dz
}

type surfacePoints []surfacePoint

func (p surfacePoints) Index(i int) kdtree.Comparable { return p[i] }
func (p surfacePoints) Len() int                      { return len(p) }
func (p surfacePoints) Pivot(d kdtree.Dim) int {
	return surfacePlane{Dim: d, surfacePoints: p}.Pivot()
}
func (p surfacePoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// surfacePlane sorts surfacePoints along a single dimension for tree
// construction.
type surfacePlane struct {
	kdtree.Dim
	surfacePoints
}

func (p surfacePlane) Less(i, j int) bool {
	return p.surfacePoints[i].Compare(p.surfacePoints[j], p.Dim) < 0
}
func (p surfacePlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p surfacePlane) Slice(start, end int) kdtree.SortSlicer {
	p.surfacePoints = p.surfacePoints[start:end]
	return p
}
func (p surfacePlane) Swap(i, j int) {
	p.surfacePoints[i], p.surfacePoints[j] = p.surfacePoints[j], p.surfacePoints[i]
}
