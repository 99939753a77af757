package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-synth/navroam/internal/nav"
)

func TestLoadScene(t *testing.T) {
	t.Parallel()

	scene, err := loadScene("testdata/demo_scene.json")
	require.NoError(t, err)

	assert.Equal(t, "courtyard", scene.MapID)
	assert.Equal(t, "v1", scene.SurfaceVersion)
	assert.Len(t, scene.Walkable, 40)
	assert.Len(t, scene.Entities, 2)

	oracle := scene.oracle()
	_, on, err := oracle.ProjectToSurface(nav.Vec3{X: 5, Y: 5})
	require.NoError(t, err)
	assert.True(t, on)

	// Inside the blocked courtyard block.
	_, on, err = oracle.ProjectToSurface(nav.Vec3{X: 40, Y: 40})
	require.NoError(t, err)
	assert.False(t, on)
}

func TestLoadSceneRejectsBadFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"cell_size": 0, "walkable": ["#"]}`), 0644))
	_, err := loadScene(bad)
	assert.ErrorContains(t, err, "cell_size")

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{"cell_size": 1}`), 0644))
	_, err = loadScene(empty)
	assert.ErrorContains(t, err, "walkable")
}

func TestRunGenerateEndToEnd(t *testing.T) {
	dir := t.TempDir()
	planPath := filepath.Join(dir, "plan.json")
	cachePath := filepath.Join(dir, "cache.db")

	args := []string{
		"-scene", "testdata/demo_scene.json",
		"-tuning", "testdata/demo_tuning.json",
		"-out", planPath,
		"-cache", cachePath,
	}
	require.NoError(t, runGenerate(context.Background(), args))

	data, err := os.ReadFile(planPath)
	require.NoError(t, err)

	var result nav.GenerateResult
	require.NoError(t, json.Unmarshal(data, &result))
	require.NotNil(t, result.Plan)
	assert.Len(t, result.Plan.Legs, 6)
	assert.Equal(t, nav.PlanValid, result.Plan.Status)
	assert.NotEmpty(t, result.RequestID)

	// A second run against the same cache file reuses the stored region.
	require.NoError(t, runGenerate(context.Background(), args))
	data, err = os.ReadFile(planPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &result))
	assert.True(t, result.Region.FromCache)

	// And the cache command clears it again.
	require.NoError(t, runCache([]string{"-cache", cachePath, "-all"}))
}

func TestRunAnalyze(t *testing.T) {
	require.NoError(t, runAnalyze(context.Background(), []string{
		"-scene", "testdata/demo_scene.json",
		"-tuning", "testdata/demo_tuning.json",
	}))
}
