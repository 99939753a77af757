package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// PathValidation groups the plan-level quality thresholds.
type PathValidation struct {
	MinPathLength    *float64 `json:"min_path_length,omitempty"`
	MinTurnAngle     *float64 `json:"min_turn_angle,omitempty"`
	MinPointDistance *float64 `json:"min_point_distance,omitempty"`
	RequireDiversity *bool    `json:"require_diversity,omitempty"`
}

// TuningConfig represents the root configuration for the trajectory
// pipeline. All fields are pointer-optional so a partial JSON file only
// overrides what it names; the Get* methods supply defaults for the rest.
type TuningConfig struct {
	// Connectivity sampling params
	SampleCount    *int     `json:"sample_count,omitempty"`
	SampleDensity  *float64 `json:"sample_density,omitempty"` // points per m²
	KNearest       *int     `json:"k_nearest,omitempty"`
	ForceRecompute *bool    `json:"force_recompute,omitempty"`

	// Path generation params
	NumLegs               *int     `json:"num_legs,omitempty"`
	RandomPointRadius     *float64 `json:"random_point_radius,omitempty"`
	KeyInterval           *string  `json:"key_interval,omitempty"` // duration string like "250ms"
	MinSegmentStep        *float64 `json:"min_segment_step,omitempty"`
	MaxRandomPointTries   *int     `json:"max_random_point_tries,omitempty"`
	StuckRetryMax         *int     `json:"stuck_retry_max,omitempty"`
	SeedIncrementOnRetry  *int64   `json:"seed_increment_on_retry,omitempty"`
	Speed                 *float64 `json:"speed,omitempty"`        // meters per second
	MaxYawRate            *float64 `json:"max_yaw_rate,omitempty"` // degrees per second
	PathValidationOptions *PathValidation `json:"path_validation,omitempty"`

	// Bounds and volume layout params
	Margin              *float64   `json:"margin,omitempty"`
	MinScale            *[3]float64 `json:"min_scale,omitempty"`
	MaxScale            *[3]float64 `json:"max_scale,omitempty"`
	AgentStepHeight     *float64   `json:"agent_step_height,omitempty"`
	AgentJumpHeight     *float64   `json:"agent_jump_height,omitempty"`
	SmallAreaThreshold  *float64   `json:"small_area_threshold,omitempty"`
	MediumAreaThreshold *float64   `json:"medium_area_threshold,omitempty"`

	// Spawn params
	GroundProbeDistance *float64 `json:"ground_probe_distance,omitempty"`
	MaxGroundOffset     *float64 `json:"max_ground_offset,omitempty"`
	MinFreeRadius       *float64 `json:"min_free_radius,omitempty"`
	SpawnStrategy       *string  `json:"spawn_strategy,omitempty"` // "random" or "center"

	Seed *int64 `json:"seed,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.SampleDensity != nil && *c.SampleDensity < 0 {
		return fmt.Errorf("sample_density must be non-negative, got %f", *c.SampleDensity)
	}

	if c.KNearest != nil && *c.KNearest < 1 {
		return fmt.Errorf("k_nearest must be at least 1, got %d", *c.KNearest)
	}

	if c.NumLegs != nil && *c.NumLegs < 1 {
		return fmt.Errorf("num_legs must be at least 1, got %d", *c.NumLegs)
	}

	if c.StuckRetryMax != nil && *c.StuckRetryMax < 0 {
		return fmt.Errorf("stuck_retry_max must be non-negative, got %d", *c.StuckRetryMax)
	}

	// Validate KeyInterval can be parsed if set
	if c.KeyInterval != nil && *c.KeyInterval != "" {
		if _, err := time.ParseDuration(*c.KeyInterval); err != nil {
			return fmt.Errorf("invalid key_interval '%s': %w", *c.KeyInterval, err)
		}
	}

	if c.Margin != nil && *c.Margin < 1 {
		return fmt.Errorf("margin must be at least 1, got %f", *c.Margin)
	}

	if c.SpawnStrategy != nil {
		if s := *c.SpawnStrategy; s != "random" && s != "center" {
			return fmt.Errorf("spawn_strategy must be \"random\" or \"center\", got %q", s)
		}
	}

	return nil
}

// GetSampleCount returns the sample_count value, or 0 meaning
// density-derived.
func (c *TuningConfig) GetSampleCount() int {
	if c.SampleCount == nil {
		return 0
	}
	return *c.SampleCount
}

// GetSampleDensity returns the sample_density value or the default.
func (c *TuningConfig) GetSampleDensity() float64 {
	if c.SampleDensity == nil {
		return 1.0
	}
	return *c.SampleDensity
}

// GetKNearest returns the k_nearest value or the default.
func (c *TuningConfig) GetKNearest() int {
	if c.KNearest == nil {
		return 8
	}
	return *c.KNearest
}

// GetForceRecompute returns the force_recompute value or the default.
func (c *TuningConfig) GetForceRecompute() bool {
	if c.ForceRecompute == nil {
		return false
	}
	return *c.ForceRecompute
}

// GetNumLegs returns the num_legs value or the default.
func (c *TuningConfig) GetNumLegs() int {
	if c.NumLegs == nil {
		return 6
	}
	return *c.NumLegs
}

// GetRandomPointRadius returns the random_point_radius value or the default.
func (c *TuningConfig) GetRandomPointRadius() float64 {
	if c.RandomPointRadius == nil {
		return 80
	}
	return *c.RandomPointRadius
}

// GetKeyInterval parses and returns the KeyInterval as a time.Duration.
func (c *TuningConfig) GetKeyInterval() time.Duration {
	if c.KeyInterval == nil || *c.KeyInterval == "" {
		return 250 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.KeyInterval)
	if err != nil {
		return 250 * time.Millisecond // default on parse error
	}
	return d
}

// GetMinSegmentStep returns the min_segment_step value or the default.
func (c *TuningConfig) GetMinSegmentStep() float64 {
	if c.MinSegmentStep == nil {
		return 3.0
	}
	return *c.MinSegmentStep
}

// GetMaxRandomPointTries returns the max_random_point_tries value or the default.
func (c *TuningConfig) GetMaxRandomPointTries() int {
	if c.MaxRandomPointTries == nil {
		return 40
	}
	return *c.MaxRandomPointTries
}

// GetStuckRetryMax returns the stuck_retry_max value or the default.
func (c *TuningConfig) GetStuckRetryMax() int {
	if c.StuckRetryMax == nil {
		return 5
	}
	return *c.StuckRetryMax
}

// GetSeedIncrementOnRetry returns the seed_increment_on_retry value or the default.
func (c *TuningConfig) GetSeedIncrementOnRetry() int64 {
	if c.SeedIncrementOnRetry == nil {
		return 1000
	}
	return *c.SeedIncrementOnRetry
}

// GetSpeed returns the speed value or the default.
func (c *TuningConfig) GetSpeed() float64 {
	if c.Speed == nil {
		return 1.5
	}
	return *c.Speed
}

// GetMaxYawRate returns the max_yaw_rate value or the default.
func (c *TuningConfig) GetMaxYawRate() float64 {
	if c.MaxYawRate == nil {
		return 45
	}
	return *c.MaxYawRate
}

// GetMinPathLength returns the path_validation.min_path_length value or the default.
func (c *TuningConfig) GetMinPathLength() float64 {
	if c.PathValidationOptions == nil || c.PathValidationOptions.MinPathLength == nil {
		return 10
	}
	return *c.PathValidationOptions.MinPathLength
}

// GetMinTurnAngle returns the path_validation.min_turn_angle value or the default.
func (c *TuningConfig) GetMinTurnAngle() float64 {
	if c.PathValidationOptions == nil || c.PathValidationOptions.MinTurnAngle == nil {
		return 5
	}
	return *c.PathValidationOptions.MinTurnAngle
}

// GetMinPointDistance returns the path_validation.min_point_distance value or the default.
func (c *TuningConfig) GetMinPointDistance() float64 {
	if c.PathValidationOptions == nil || c.PathValidationOptions.MinPointDistance == nil {
		return 1.0
	}
	return *c.PathValidationOptions.MinPointDistance
}

// GetRequireDiversity returns the path_validation.require_diversity value or the default.
func (c *TuningConfig) GetRequireDiversity() bool {
	if c.PathValidationOptions == nil || c.PathValidationOptions.RequireDiversity == nil {
		return true
	}
	return *c.PathValidationOptions.RequireDiversity
}

// GetMargin returns the margin value or the default.
func (c *TuningConfig) GetMargin() float64 {
	if c.Margin == nil {
		return 1.2
	}
	return *c.Margin
}

// GetMinScale returns the min_scale value or the default.
func (c *TuningConfig) GetMinScale() [3]float64 {
	if c.MinScale == nil {
		return [3]float64{5, 5, 2}
	}
	return *c.MinScale
}

// GetMaxScale returns the max_scale value or the default.
func (c *TuningConfig) GetMaxScale() [3]float64 {
	if c.MaxScale == nil {
		return [3]float64{250, 250, 50}
	}
	return *c.MaxScale
}

// GetAgentStepHeight returns the agent_step_height value or the default.
func (c *TuningConfig) GetAgentStepHeight() float64 {
	if c.AgentStepHeight == nil {
		return 0.5
	}
	return *c.AgentStepHeight
}

// GetAgentJumpHeight returns the agent_jump_height value or the default.
func (c *TuningConfig) GetAgentJumpHeight() float64 {
	if c.AgentJumpHeight == nil {
		return 2.0
	}
	return *c.AgentJumpHeight
}

// GetSmallAreaThreshold returns the small_area_threshold value or the default.
func (c *TuningConfig) GetSmallAreaThreshold() float64 {
	if c.SmallAreaThreshold == nil {
		return 200
	}
	return *c.SmallAreaThreshold
}

// GetMediumAreaThreshold returns the medium_area_threshold value or the default.
func (c *TuningConfig) GetMediumAreaThreshold() float64 {
	if c.MediumAreaThreshold == nil {
		return 500
	}
	return *c.MediumAreaThreshold
}

// GetGroundProbeDistance returns the ground_probe_distance value or the default.
func (c *TuningConfig) GetGroundProbeDistance() float64 {
	if c.GroundProbeDistance == nil {
		return 5.0
	}
	return *c.GroundProbeDistance
}

// GetMaxGroundOffset returns the max_ground_offset value or the default.
func (c *TuningConfig) GetMaxGroundOffset() float64 {
	if c.MaxGroundOffset == nil {
		return 2.0
	}
	return *c.MaxGroundOffset
}

// GetMinFreeRadius returns the min_free_radius value or the default.
func (c *TuningConfig) GetMinFreeRadius() float64 {
	if c.MinFreeRadius == nil {
		return 2.0
	}
	return *c.MinFreeRadius
}

// GetSpawnStrategy returns the spawn_strategy value or the default.
func (c *TuningConfig) GetSpawnStrategy() string {
	if c.SpawnStrategy == nil {
		return "random"
	}
	return *c.SpawnStrategy
}

// GetSeed returns the seed value or the default.
func (c *TuningConfig) GetSeed() int64 {
	if c.Seed == nil {
		return 0
	}
	return *c.Seed
}
