package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultConfig(t *testing.T) {
	cfg := LoadDefaultConfig()

	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 24, cfg.Enhance.BlockSize)
	assert.InDelta(t, 0.05, cfg.Enhance.SegmentThreshold, 1e-12)
	assert.Equal(t, 36, cfg.Enhance.FrequencyBlockSize)
	assert.Equal(t, 3, cfg.Enhance.AngleStep)
	assert.InDelta(t, 1.9, cfg.Enhance.FilterSizeX, 1e-12)
	assert.False(t, cfg.Enhance.Thin)
	assert.Equal(t, 45, cfg.Match.DistanceThreshold)
	assert.Equal(t, 15, cfg.Match.MinScore)
	assert.InDelta(t, 0.8, cfg.Match.RatioThreshold, 1e-12)
	assert.InDelta(t, 30, cfg.Match.RotationBin, 1e-12)
	assert.InDelta(t, 16, cfg.Match.TranslationBin, 1e-12)
	assert.InDelta(t, 0.3, cfg.Match.MinCoverage, 1e-12)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 168*time.Hour, cfg.Log.MaxAge)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fingerprint.toml")
	data := `
workers = 4
timeout = "5s"

[enhance]
block_size = 16
angle_step = 5

[match]
min_score = 20
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 16, cfg.Enhance.BlockSize)
	assert.Equal(t, 5, cfg.Enhance.AngleStep)
	assert.Equal(t, 20, cfg.Match.MinScore)
	// untouched keys keep their defaults
	assert.Equal(t, 36, cfg.Enhance.FrequencyBlockSize)
	assert.Equal(t, 45, cfg.Match.DistanceThreshold)
}

func TestDecodeFileKeepsBase(t *testing.T) {
	dir := t.TempDir()
	withWorkers := filepath.Join(dir, "workers.toml")
	require.NoError(t, os.WriteFile(withWorkers, []byte("workers = 3\n"), 0o600))
	withoutWorkers := filepath.Join(dir, "server.toml")
	require.NoError(t, os.WriteFile(withoutWorkers, []byte("[server]\naddr = \":8080\"\n"), 0o600))

	base := LoadDefaultConfig()
	base.Workers = 12
	cfg, err := DecodeFile(base, withoutWorkers)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Workers)
	assert.Equal(t, ":8080", cfg.Server.Addr)

	base = LoadDefaultConfig()
	base.Workers = 12
	cfg, err = DecodeFile(base, withWorkers)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workers)
}

func TestLoadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[enhance]\nangle_step = 7\nmin_wave_length = 30\n"), 0o600))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "angle_step")
	assert.Contains(t, err.Error(), "wave length")

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*DefaultConfig)
	}{
		{"workers", func(c *DefaultConfig) { c.Workers = 0 }},
		{"block size", func(c *DefaultConfig) { c.Enhance.BlockSize = 0 }},
		{"sigma", func(c *DefaultConfig) { c.Enhance.BlockSigma = 0 }},
		{"window", func(c *DefaultConfig) { c.Enhance.WindowSize = 0 }},
		{"distance", func(c *DefaultConfig) { c.Match.DistanceThreshold = 300 }},
		{"scale", func(c *DefaultConfig) { c.Match.ScaleFactor = 1 }},
		{"ratio", func(c *DefaultConfig) { c.Match.RatioThreshold = 0 }},
		{"rotation bin", func(c *DefaultConfig) { c.Match.RotationBin = 270 }},
		{"translation bin", func(c *DefaultConfig) { c.Match.TranslationBin = 0 }},
		{"coverage", func(c *DefaultConfig) { c.Match.MinCoverage = 1.5 }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := LoadDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
