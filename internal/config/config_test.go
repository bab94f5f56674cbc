package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	t.Setenv(EnvOutputDir, "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	t.Setenv(EnvOutputDir, "")

	path := filepath.Join(t.TempDir(), "nested", "nnvts.yaml")
	want := Default()
	want.Logging.Level = "debug"
	want.Export.Format = "yaml"
	want.Export.Groups = []string{"depthwise_conv2d_v1_2"}
	want.Check.Workers = 3
	require.NoError(t, want.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	t.Setenv(EnvOutputDir, "")

	path := filepath.Join(t.TempDir(), "nnvts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("export:\n  format: nnvm\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "nnvm", cfg.Export.Format)
	assert.Equal(t, "fixtures", cfg.Export.Dir)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvOutputDir, "/tmp/out")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "/tmp/out", cfg.Export.Dir)
}

func TestLoadInvalid(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	t.Setenv(EnvOutputDir, "")
	dir := t.TempDir()

	t.Run("bad yaml", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("export: [\n"), 0o644))
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("bad format", func(t *testing.T) {
		path := filepath.Join(dir, "format.yaml")
		require.NoError(t, os.WriteFile(path, []byte("export:\n  format: xml\n"), 0o644))
		_, err := Load(path)
		assert.ErrorIs(t, err, ErrInvalidFormat)
	})

	t.Run("bad workers", func(t *testing.T) {
		path := filepath.Join(dir, "workers.yaml")
		require.NoError(t, os.WriteFile(path, []byte("check:\n  workers: 0\n"), 0o644))
		_, err := Load(path)
		assert.ErrorIs(t, err, ErrInvalidWorkers)
	})
}
