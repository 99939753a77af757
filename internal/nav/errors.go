package nav

import "errors"

// Terminal failures for a generation request. None are retried inside the
// failing stage beyond that stage's own documented retry budget; all are
// surfaced to the caller via errors.Is-compatible wrapping.
var (
	// ErrNoGeometry indicates the geometry provider supplied no navigable
	// entities to aggregate.
	ErrNoGeometry = errors.New("no navigable geometry found")

	// ErrDegenerateBounds indicates the aggregated volume collapsed to zero
	// or negative extent on at least one axis.
	ErrDegenerateBounds = errors.New("degenerate navigable bounds")

	// ErrSurfaceNotBaked is returned by a NavigationOracle whose walkable
	// surface has not been baked yet. It is never cached.
	ErrSurfaceNotBaked = errors.New("walkable surface not baked")

	// ErrNoNavigableSurface wraps ErrSurfaceNotBaked at the analysis layer.
	ErrNoNavigableSurface = errors.New("no navigable surface")

	// ErrInsufficientSamples indicates fewer than two sample points survived
	// projection onto the walkable surface.
	ErrInsufficientSamples = errors.New("insufficient surface samples")

	// ErrAllStrategiesExhausted indicates no spawn candidate from any
	// strategy in the priority chain passed validation.
	ErrAllStrategiesExhausted = errors.New("all spawn strategies exhausted")

	// ErrPathGenerationFailed indicates every attempt in the retry budget was
	// stuck or failed plan-level quality checks. No partial plan is returned.
	ErrPathGenerationFailed = errors.New("path generation failed")
)
