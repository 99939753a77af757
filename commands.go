package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/meridian-synth/navroam/internal/config"
	"github.com/meridian-synth/navroam/internal/monitoring"
	"github.com/meridian-synth/navroam/internal/nav"
	"github.com/meridian-synth/navroam/internal/nav/monitor"
	"github.com/meridian-synth/navroam/internal/nav/navcache"
)

// sceneFile is the on-disk scene description consumed by generate and
// analyze. The walkable rows describe the demo surface grid: '#' cells are
// walkable, anything else is blocked.
type sceneFile struct {
	MapID          string               `json:"map_id"`
	SurfaceVersion string               `json:"surface_version"`
	Origin         nav.Vec3             `json:"origin"`
	CellSize       float64              `json:"cell_size"`
	Walkable       []string             `json:"walkable"`
	Entities       []nav.GeometryEntity `json:"entities"`
	Markers        struct {
		Primary   *nav.Vec3 `json:"primary,omitempty"`
		Secondary *nav.Vec3 `json:"secondary,omitempty"`
	} `json:"markers"`
}

func loadScene(path string) (*sceneFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene file: %w", err)
	}
	var scene sceneFile
	if err := json.Unmarshal(data, &scene); err != nil {
		return nil, fmt.Errorf("failed to parse scene JSON: %w", err)
	}
	if scene.CellSize <= 0 {
		return nil, fmt.Errorf("scene cell_size must be positive, got %g", scene.CellSize)
	}
	if len(scene.Walkable) == 0 {
		return nil, fmt.Errorf("scene has no walkable rows")
	}
	return &scene, nil
}

// oracle builds the grid-backed navigation oracle for the scene.
func (s *sceneFile) oracle() *nav.GridOracle {
	walkable := make([][]bool, len(s.Walkable))
	for y, row := range s.Walkable {
		walkable[y] = make([]bool, len(row))
		for x, c := range row {
			walkable[y][x] = c == '#'
		}
	}
	return &nav.GridOracle{Origin: s.Origin, CellSize: s.CellSize, Walkable: walkable}
}

func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.EmptyTuningConfig(), nil
	}
	return config.LoadTuningConfig(path)
}

func openStore(path string) (navcache.Store, func(), error) {
	if path == "" {
		return navcache.NewMemoryStore(), func() {}, nil
	}
	store, err := navcache.OpenSQLiteStore(path)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { store.Close() }, nil
}

// buildPipeline maps the tuning config onto the pipeline's stage parameters.
func buildPipeline(cfg *config.TuningConfig, oracle nav.NavigationOracle, store navcache.Store) *nav.Pipeline {
	p := nav.NewPipeline(oracle, store)
	p.Bounds = nav.BoundsParams{
		StepHeight: cfg.GetAgentStepHeight(),
		JumpHeight: cfg.GetAgentJumpHeight(),
	}
	minScale := cfg.GetMinScale()
	maxScale := cfg.GetMaxScale()
	p.Layout = nav.LayoutParams{
		Margin:      cfg.GetMargin(),
		MinScale:    nav.Vec3{X: minScale[0], Y: minScale[1], Z: minScale[2]},
		MaxScale:    nav.Vec3{X: maxScale[0], Y: maxScale[1], Z: maxScale[2]},
		SmallArea:   cfg.GetSmallAreaThreshold(),
		MediumArea:  cfg.GetMediumAreaThreshold(),
		LeafAreaCap: cfg.GetMediumAreaThreshold() / 2,
	}
	p.Connectivity = nav.ConnectivityConfig{
		SampleCount:   cfg.GetSampleCount(),
		SampleDensity: cfg.GetSampleDensity(),
		KNearest:      cfg.GetKNearest(),
	}
	p.Spawn = nav.SpawnParams{
		GroundProbeDistance: cfg.GetGroundProbeDistance(),
		MaxGroundOffset:     cfg.GetMaxGroundOffset(),
		MinFreeRadius:       cfg.GetMinFreeRadius(),
	}
	p.Strategy = nav.SpawnStrategy(cfg.GetSpawnStrategy())
	p.Path = nav.PathConfig{
		NumLegs:          cfg.GetNumLegs(),
		SearchRadius:     cfg.GetRandomPointRadius(),
		MinSegmentLength: cfg.GetMinSegmentStep(),
		MaxTriesPerLeg:   cfg.GetMaxRandomPointTries(),
		StuckRetryMax:    cfg.GetStuckRetryMax(),
		SeedIncrement:    cfg.GetSeedIncrementOnRetry(),
		KeyInterval:      cfg.GetKeyInterval(),
		Speed:            cfg.GetSpeed(),
		MaxYawRate:       cfg.GetMaxYawRate(),
		Quality: nav.PathQuality{
			MinPathLength:    cfg.GetMinPathLength(),
			MinTurnAngle:     cfg.GetMinTurnAngle(),
			MinPointDistance: cfg.GetMinPointDistance(),
			RequireDiversity: cfg.GetRequireDiversity(),
		},
	}
	return p
}

func runGenerate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	scenePath := fs.String("scene", "", "scene JSON file (required)")
	tuningPath := fs.String("tuning", "", "tuning JSON file (defaults when omitted)")
	outPath := fs.String("out", "plan.json", "output plan JSON file")
	mapID := fs.String("map-id", "", "override the scene's map id")
	surfaceVersion := fs.String("surface-version", "", "override the scene's surface version")
	cachePath := fs.String("cache", "", "sqlite cache file (in-memory when omitted)")
	plotDir := fs.String("plot-dir", "", "write debug plots to this directory")
	seed := fs.Int64("seed", -1, "override the tuning seed")
	force := fs.Bool("force-recompute", false, "bypass cached connectivity results")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *scenePath == "" {
		return fmt.Errorf("-scene is required")
	}

	scene, err := loadScene(*scenePath)
	if err != nil {
		return err
	}
	cfg, err := loadTuning(*tuningPath)
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(*cachePath)
	if err != nil {
		return err
	}
	defer closeStore()

	if *mapID != "" {
		scene.MapID = *mapID
	}
	if *surfaceVersion != "" {
		scene.SurfaceVersion = *surfaceVersion
	}

	req := nav.GenerateRequest{
		MapID:           scene.MapID,
		SurfaceVersion:  scene.SurfaceVersion,
		Entities:        scene.Entities,
		PrimaryMarker:   scene.Markers.Primary,
		SecondaryMarker: scene.Markers.Secondary,
		Seed:            cfg.GetSeed(),
		ForceRecompute:  *force || cfg.GetForceRecompute(),
	}
	if *seed >= 0 {
		req.Seed = *seed
	}

	oracle := scene.oracle()
	pipeline := buildPipeline(cfg, oracle, store)

	started := time.Now()
	result, err := pipeline.Run(ctx, req)
	if err != nil {
		return err
	}
	monitoring.Logf("pipeline finished in %s", time.Since(started).Round(time.Millisecond))

	if *plotDir != "" {
		if file, err := monitor.PlotTrajectoryPNG(result.Plan, *plotDir); err != nil {
			monitoring.Logf("trajectory plot failed: %v", err)
		} else {
			monitoring.Logf("wrote %s", file)
		}
		if file, err := monitor.WriteConnectivityHTML(scene.MapID, result.Region.Points, result.Region, *plotDir); err != nil {
			monitoring.Logf("connectivity page failed: %v", err)
		} else {
			monitoring.Logf("wrote %s", file)
		}
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := os.WriteFile(*outPath, out, 0644); err != nil {
		return fmt.Errorf("failed to write plan: %w", err)
	}
	fmt.Printf("plan %s: %d legs, %.1f m, written to %s\n",
		result.Plan.ID, len(result.Plan.Legs), result.Plan.Length(), *outPath)
	return nil
}

func runAnalyze(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	scenePath := fs.String("scene", "", "scene JSON file (required)")
	tuningPath := fs.String("tuning", "", "tuning JSON file (defaults when omitted)")
	cachePath := fs.String("cache", "", "sqlite cache file (in-memory when omitted)")
	seed := fs.Int64("seed", 0, "sampling seed")
	force := fs.Bool("force-recompute", false, "bypass cached connectivity results")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *scenePath == "" {
		return fmt.Errorf("-scene is required")
	}

	scene, err := loadScene(*scenePath)
	if err != nil {
		return err
	}
	cfg, err := loadTuning(*tuningPath)
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(*cachePath)
	if err != nil {
		return err
	}
	defer closeStore()

	bounds, err := nav.ComputeBounds(scene.Entities, nav.BoundsParams{
		StepHeight: cfg.GetAgentStepHeight(),
		JumpHeight: cfg.GetAgentJumpHeight(),
	})
	if err != nil {
		return err
	}

	region, err := nav.AnalyzeConnectivity(ctx, bounds.Box(), scene.oracle(), nav.ConnectivityConfig{
		MapID:          scene.MapID,
		SurfaceVersion: scene.SurfaceVersion,
		SampleCount:    cfg.GetSampleCount(),
		SampleDensity:  cfg.GetSampleDensity(),
		KNearest:       cfg.GetKNearest(),
		ForceRecompute: *force || cfg.GetForceRecompute(),
		Seed:           *seed,
	}, store)
	if err != nil {
		return err
	}

	source := "computed"
	if region.FromCache {
		source = "cached"
	}
	fmt.Printf("map %s (%s): largest region %d points, components %v\n",
		scene.MapID, source, len(region.Points), region.ComponentSizes)
	return nil
}

func runCache(args []string) error {
	fs := flag.NewFlagSet("cache", flag.ExitOnError)
	cachePath := fs.String("cache", "", "sqlite cache file (required)")
	clearKey := fs.String("clear", "", "clear the entry with this key")
	clearAll := fs.Bool("all", false, "clear every entry")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *cachePath == "" {
		return fmt.Errorf("-cache is required")
	}
	if *clearKey == "" && !*clearAll {
		return fmt.Errorf("one of -clear or -all is required")
	}

	store, err := navcache.OpenSQLiteStore(*cachePath)
	if err != nil {
		return err
	}
	defer store.Close()

	if *clearAll {
		if err := store.ClearAll(); err != nil {
			return err
		}
		fmt.Println("cache cleared")
		return nil
	}
	if err := store.Clear(*clearKey); err != nil {
		return err
	}
	fmt.Printf("cleared %q\n", *clearKey)
	return nil
}
