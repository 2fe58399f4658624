package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, LogInfo, cfg.StdMessageLevel)
	require.Equal(t, SamplerUniform, cfg.GetTrainDataBy)
	require.Equal(t, 1.0, cfg.Temperature)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "examm.toml")
	cfg := DefaultConfig()
	cfg.BPIterations = 77
	cfg.LearningRate = 0.0123

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 77, loaded.BPIterations)
	require.InDelta(t, 0.0123, loaded.LearningRate, 1e-9)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadMalformedFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("not = [valid toml"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestSharedConfigGetUpdate(t *testing.T) {
	s := NewShared(DefaultConfig())
	cfg := s.Get()
	cfg.BPIterations = 999
	s.Update(cfg)

	require.Equal(t, 999, s.Get().BPIterations)
}
