package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.Processing.Workers)
	assert.Equal(t, 2, cfg.Mesh.Padding)
	assert.Equal(t, 1.0, cfg.Mesh.SmoothingSigma)
	assert.Equal(t, 0.2, cfg.Mesh.IsoLevel)
	assert.Equal(t, 1, cfg.Centerline.MinFragmentVoxels)
	assert.Equal(t, 60, cfg.Disc.Resolution)
	assert.Equal(t, "outputs", cfg.Output.Dir)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

// TestLoadConfigPartial verifies unspecified keys keep their defaults
func TestLoadConfigPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	data := "processing:\n  workers: 3\nmesh:\n  isoLevel: 0.5\noutput:\n  writeHTML: false\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Processing.Workers)
	assert.Equal(t, 0.5, cfg.Mesh.IsoLevel)
	assert.False(t, cfg.Output.WriteHTML)
	assert.Equal(t, 2, cfg.Mesh.Padding)
	assert.True(t, cfg.Output.WriteSTL)
}

func TestLoadConfigInvalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("mesh: [1, 2"), 0644))
	_, err := LoadConfig(bad)
	assert.Error(t, err)

	out := filepath.Join(dir, "range.yaml")
	require.NoError(t, os.WriteFile(out, []byte("mesh:\n  isoLevel: 1.5\ndisc:\n  resolution: 2\n"), 0644))
	_, err = LoadConfig(out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mesh.isoLevel")
	assert.Contains(t, err.Error(), "disc.resolution")
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "vesselgeom.yaml")
	cfg := DefaultConfig()
	cfg.Processing.Workers = 4
	cfg.Output.Dir = "/tmp/results"
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))
	require.FileExists(t, path)

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), loaded)
}
