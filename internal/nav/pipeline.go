package nav

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/meridian-synth/navroam/internal/monitoring"
	"github.com/meridian-synth/navroam/internal/nav/navcache"
)

// Pipeline runs the full generation chain for one map: bounds, volume
// layout, per-volume connectivity, spawn selection, and path generation.
// Stages execute synchronously; callers parallelize across maps. Store may
// be nil to disable caching.
type Pipeline struct {
	Oracle NavigationOracle
	Store  navcache.Store

	Bounds       BoundsParams
	Layout       LayoutParams
	Connectivity ConnectivityConfig
	Spawn        SpawnParams
	Strategy     SpawnStrategy
	Path         PathConfig
}

// NewPipeline returns a pipeline with default stage parameters.
func NewPipeline(oracle NavigationOracle, store navcache.Store) *Pipeline {
	return &Pipeline{
		Oracle:   oracle,
		Store:    store,
		Bounds:   DefaultBoundsParams(),
		Layout:   DefaultLayoutParams(),
		Spawn:    DefaultSpawnParams(),
		Strategy: SpawnRandom,
		Path:     DefaultPathConfig(),
	}
}

// GenerateRequest is one trajectory generation job.
type GenerateRequest struct {
	MapID          string
	SurfaceVersion string
	Entities       []GeometryEntity
	// PrimaryMarker and SecondaryMarker are optional explicit spawn hints.
	PrimaryMarker   *Vec3
	SecondaryMarker *Vec3
	Seed            int64
	ForceRecompute  bool
}

// GenerateResult carries the pipeline outputs for one request.
type GenerateResult struct {
	RequestID string
	Bounds    NavigableBounds
	Partition VolumePartition
	// VolumeIndex is the partition volume whose region won.
	VolumeIndex int
	Region      *Region
	Spawn       Vec3
	Plan        *TrajectoryPlan
}

// Run executes the pipeline for req. Connectivity runs per partition volume,
// keyed per volume in the cache, and the volume with the largest region
// hosts the spawn and the trajectory.
func (p *Pipeline) Run(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	res := &GenerateResult{RequestID: uuid.NewString()}
	monitoring.Logf("[Pipeline] request %s: map %q, %d entit(ies), seed %d",
		res.RequestID, req.MapID, len(req.Entities), req.Seed)

	bounds, err := ComputeBounds(req.Entities, p.Bounds)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", res.RequestID, err)
	}
	res.Bounds = bounds

	res.Partition = PlanVolumes(bounds, p.Layout)

	for i, volume := range res.Partition.Bounds {
		cfg := p.Connectivity
		cfg.MapID = fmt.Sprintf("%s#%d", req.MapID, i)
		cfg.SurfaceVersion = req.SurfaceVersion
		cfg.ForceRecompute = req.ForceRecompute
		cfg.Seed = req.Seed

		region, err := AnalyzeConnectivity(ctx, volume, p.Oracle, cfg, p.Store)
		if err != nil {
			return nil, fmt.Errorf("request %s, volume %d: %w", res.RequestID, i, err)
		}
		if res.Region == nil || len(region.Points) > len(res.Region.Points) {
			res.Region = region
			res.VolumeIndex = i
		}
	}

	spawn, err := SelectSpawnPoint(ctx, p.Oracle, SpawnInput{
		PrimaryMarker:   req.PrimaryMarker,
		SecondaryMarker: req.SecondaryMarker,
		Region:          res.Region,
		Bound:           res.Partition.Bounds[res.VolumeIndex],
		Strategy:        p.Strategy,
		Params:          p.Spawn,
		Seed:            req.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", res.RequestID, err)
	}
	res.Spawn = spawn

	pathCfg := p.Path
	pathCfg.BaseSeed = req.Seed
	plan, err := GeneratePath(ctx, spawn, p.Oracle, pathCfg)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", res.RequestID, err)
	}
	res.Plan = plan

	monitoring.Logf("[Pipeline] request %s done: plan %s, %d leg(s), %.1f m",
		res.RequestID, plan.ID, len(plan.Legs), plan.Length())
	return res, nil
}
