package nav

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-synth/navroam/internal/monitoring"
)

// PathQuality holds the plan-level acceptance thresholds.
type PathQuality struct {
	// MinPathLength is the minimum total plan length in meters.
	MinPathLength float64
	// MinTurnAngle marks a plan as monotonic when every interior turn is
	// below it, in degrees.
	MinTurnAngle float64
	// MinPointDistance is the revisit radius; a leg endpoint closer than this
	// to an earlier non-adjacent endpoint rejects the plan.
	MinPointDistance float64
	RequireDiversity bool
}

// PathConfig parameterizes trajectory generation.
type PathConfig struct {
	NumLegs int
	// SearchRadius bounds the per-leg target draw, in meters.
	SearchRadius     float64
	MinSegmentLength float64
	MaxTriesPerLeg   int
	// StuckRetryMax bounds the stuck and quality retry budgets independently.
	StuckRetryMax int
	BaseSeed      int64
	SeedIncrement int64
	// KeyInterval and Speed drive waypoint interpolation.
	KeyInterval time.Duration
	Speed       float64 // meters per second
	// MaxYawRate clamps heading change, in degrees per second.
	MaxYawRate float64
	Quality    PathQuality
}

func DefaultPathConfig() PathConfig {
	return PathConfig{
		NumLegs:          6,
		SearchRadius:     80,
		MinSegmentLength: 3.0,
		MaxTriesPerLeg:   40,
		StuckRetryMax:    5,
		SeedIncrement:    1000,
		KeyInterval:      250 * time.Millisecond,
		Speed:            1.5,
		MaxYawRate:       45,
		Quality: PathQuality{
			MinPathLength:    10,
			MinTurnAngle:     5,
			MinPointDistance: 1.0,
			RequireDiversity: true,
		},
	}
}

// GeneratePath builds a multi-leg trajectory from start. Each attempt runs
// with its own RNG seeded at BaseSeed + attempt·SeedIncrement, so a failure
// sequence replays exactly given the same inputs. Stuck attempts (no valid
// leg target within budget) and quality rejections (monotonic, revisiting, or
// too-short plans) consume independent retry budgets, each bounded by
// StuckRetryMax. Exhausting either budget fails with ErrPathGenerationFailed
// and no partial plan.
func GeneratePath(ctx context.Context, start Vec3, oracle NavigationOracle, cfg PathConfig) (*TrajectoryPlan, error) {
	stuckCount, qualityCount := 0, 0
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("generating path: %w", err)
		}
		seed := cfg.BaseSeed + int64(attempt)*cfg.SeedIncrement
		monitoring.Logf("[PathGen] attempt %d using seed %d", attempt, seed)

		ends, stuck, err := tryLegSequence(ctx, start, oracle, cfg, seed)
		if err != nil {
			return nil, err
		}
		if stuck {
			stuckCount++
			if stuckCount > cfg.StuckRetryMax {
				return nil, fmt.Errorf("stuck on %d attempt(s): %w", stuckCount, ErrPathGenerationFailed)
			}
			continue
		}
		if reason := qualityReject(start, ends, cfg.Quality); reason != "" {
			monitoring.Logf("[PathGen] attempt %d rejected: %s", attempt, reason)
			qualityCount++
			if qualityCount > cfg.StuckRetryMax {
				return nil, fmt.Errorf("quality rejected on %d attempt(s): %w", qualityCount, ErrPathGenerationFailed)
			}
			continue
		}

		plan, err := assemblePlan(start, ends, oracle, cfg, seed)
		if err != nil {
			return nil, err
		}
		monitoring.Logf("[PathGen] attempt %d succeeded: %d leg(s), %.1f m", attempt, len(plan.Legs), plan.Length())
		return plan, nil
	}
}

// tryLegSequence samples NumLegs leg endpoints. It reports stuck=true when
// some leg finds no valid target within MaxTriesPerLeg draws.
func tryLegSequence(ctx context.Context, start Vec3, oracle NavigationOracle, cfg PathConfig, seed int64) ([]Vec3, bool, error) {
	rng := rand.New(rand.NewSource(seed))
	current := start
	ends := make([]Vec3, 0, cfg.NumLegs)

	for leg := 0; leg < cfg.NumLegs; leg++ {
		found := false
		for try := 0; try < cfg.MaxTriesPerLeg; try++ {
			if err := ctx.Err(); err != nil {
				return nil, false, fmt.Errorf("generating path: %w", err)
			}

			angle := (rng.Float64()*2 - 1) * math.Pi
			radius := cfg.SearchRadius * (0.25 + 0.75*rng.Float64())
			throw := Vec3{
				X: current.X + radius*math.Cos(angle),
				Y: current.Y + radius*math.Sin(angle),
				Z: current.Z,
			}

			target, ok, err := oracle.ProjectToSurface(throw)
			if err != nil {
				return nil, false, fmt.Errorf("sampling leg %d target: %w", leg, err)
			}
			if !ok || current.Dist(target) < cfg.MinSegmentLength {
				continue
			}
			reachable, err := oracle.PathExists(current, target)
			if err != nil {
				return nil, false, fmt.Errorf("checking leg %d reachability: %w", leg, err)
			}
			if !reachable {
				continue
			}

			ends = append(ends, target)
			current = target
			found = true
			break
		}
		if !found {
			return nil, true, nil
		}
	}
	return ends, false, nil
}

// qualityReject returns a non-empty reason when the endpoint sequence fails a
// plan-level gate.
func qualityReject(start Vec3, ends []Vec3, q PathQuality) string {
	points := append([]Vec3{start}, ends...)

	total := 0.0
	for i := 1; i < len(points); i++ {
		total += points[i-1].Dist(points[i])
	}
	if total < q.MinPathLength {
		return fmt.Sprintf("total length %.1f m below %.1f m", total, q.MinPathLength)
	}

	if len(points) >= 3 {
		monotonic := true
		for i := 1; i < len(points)-1; i++ {
			in := yawDegreesXY(points[i-1], points[i])
			out := yawDegreesXY(points[i], points[i+1])
			if math.Abs(normalizeDeg(out-in)) >= q.MinTurnAngle {
				monotonic = false
				break
			}
		}
		if monotonic {
			return fmt.Sprintf("monotonic: every turn below %.1f deg", q.MinTurnAngle)
		}
	}

	if q.RequireDiversity {
		for i := range points {
			for j := 0; j < i-1; j++ {
				if points[i].Dist(points[j]) < q.MinPointDistance {
					return fmt.Sprintf("endpoint %d revisits endpoint %d", i, j)
				}
			}
		}
	}
	return ""
}

// assemblePlan turns accepted leg endpoints into interpolated legs. Each
// leg's geometry comes from the oracle's path query, falling back to the
// straight segment when the oracle returns no polyline.
func assemblePlan(start Vec3, ends []Vec3, oracle NavigationOracle, cfg PathConfig, seed int64) (*TrajectoryPlan, error) {
	step := cfg.Speed * cfg.KeyInterval.Seconds()
	maxYawStep := cfg.MaxYawRate * cfg.KeyInterval.Seconds()

	plan := &TrajectoryPlan{
		ID:     uuid.NewString(),
		Seed:   seed,
		Status: PlanValid,
		Legs:   make([]TrajectoryLeg, 0, len(ends)),
	}

	current := start
	prevYaw := math.NaN()
	for i, end := range ends {
		poly, ok, err := oracle.FindPath(current, end)
		if err != nil {
			return nil, fmt.Errorf("resolving leg %d path: %w", i, err)
		}
		if !ok || len(poly) < 2 {
			poly = []Vec3{current, end}
		}

		positions := resamplePolyline(poly, step)
		waypoints := make([]Waypoint, len(positions))
		for j, pos := range positions {
			yaw := prevYaw
			if j < len(positions)-1 {
				yaw = yawDegreesXY(pos, positions[j+1])
			}
			if math.IsNaN(prevYaw) {
				prevYaw = yaw
			}
			yaw = prevYaw + clampAbs(normalizeDeg(yaw-prevYaw), maxYawStep)
			yaw = normalizeDeg(yaw)
			waypoints[j] = Waypoint{Pos: pos, Yaw: yaw, T: time.Duration(j) * cfg.KeyInterval}
			prevYaw = yaw
		}

		plan.Legs = append(plan.Legs, TrajectoryLeg{Start: current, End: end, Waypoints: waypoints})
		current = end
	}
	return plan, nil
}

// resamplePolyline walks the polyline emitting a point every step meters of
// arc length. The first and last vertices are always included.
func resamplePolyline(poly []Vec3, step float64) []Vec3 {
	if step <= 0 || len(poly) < 2 {
		return append([]Vec3(nil), poly...)
	}

	out := []Vec3{poly[0]}
	carried := 0.0
	for i := 1; i < len(poly); i++ {
		a, b := poly[i-1], poly[i]
		segLen := a.Dist(b)
		if segLen == 0 {
			continue
		}
		for carried+segLen >= step {
			t := (step - carried) / segLen
			p := a.Lerp(b, t)
			out = append(out, p)
			a = p
			segLen = a.Dist(b)
			carried = 0
		}
		carried += segLen
	}

	last := poly[len(poly)-1]
	if out[len(out)-1].Dist(last) > 1e-9 {
		out = append(out, last)
	}
	return out
}

func clampAbs(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}
