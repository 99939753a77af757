package nav

// NavigationOracle is the host-provided capability for querying the baked
// walkable surface. All calls are blocking and synchronous; the core issues
// them sequentially within one generation request.
//
// The boolean result distinguishes "no answer on this surface" (false) from a
// successful query. The error return signals oracle-level failure, notably
// ErrSurfaceNotBaked when the surface has not been baked at all.
type NavigationOracle interface {
	// ProjectToSurface snaps p onto the walkable surface, if a surface
	// location exists near p.
	ProjectToSurface(p Vec3) (Vec3, bool, error)

	// FindReachablePoint returns a surface point reachable from origin
	// within radius, if one exists.
	FindReachablePoint(origin Vec3, radius float64) (Vec3, bool, error)

	// PathExists reports whether a walkable path connects a and b.
	PathExists(a, b Vec3) (bool, error)

	// FindPath returns the ordered waypoints of a walkable path from a to b,
	// or false when the points are not connected.
	FindPath(a, b Vec3) ([]Vec3, bool, error)

	// GroundProbe casts downward from p and returns the ground hit within
	// maxDist, if any.
	GroundProbe(p Vec3, maxDist float64) (Vec3, bool, error)
}
