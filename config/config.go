package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mcuadros/go-defaults"
)

// EnhanceConfig parameterises every stage of the enhancement pipeline.
type EnhanceConfig struct {
	BlockSize          int     `toml:"block_size" default:"24"`
	SegmentThreshold   float64 `toml:"segment_threshold" default:"0.05"`
	GradientSigma      float64 `toml:"gradient_sigma" default:"1"`
	BlockSigma         float64 `toml:"block_sigma" default:"13"`
	OrientSmoothSigma  float64 `toml:"orient_smooth_sigma" default:"15"`
	FrequencyBlockSize int     `toml:"frequency_block_size" default:"36"`
	WindowSize         int     `toml:"window_size" default:"5"`
	MinWaveLength      float64 `toml:"min_wave_length" default:"5"`
	MaxWaveLength      float64 `toml:"max_wave_length" default:"25"`
	FilterSizeX        float64 `toml:"filter_size_x" default:"1.9"`
	FilterSizeY        float64 `toml:"filter_size_y" default:"1.9"`
	AngleStep          int     `toml:"angle_step" default:"3"`
	BinarizeThreshold  float64 `toml:"binarize_threshold" default:"0"`
	Thin               bool    `toml:"thin" default:"false"`
}

// MatchConfig holds keypoint detection and scoring parameters.
type MatchConfig struct {
	DistanceThreshold int     `toml:"distance_threshold" default:"45"`
	MinScore          int     `toml:"min_score" default:"15"`
	RatioThreshold    float64 `toml:"ratio_threshold" default:"0.8"`
	RotationBin       float64 `toml:"rotation_bin" default:"30"`
	TranslationBin    float64 `toml:"translation_bin" default:"16"`
	MinCoverage       float64 `toml:"min_coverage" default:"0.3"`
	Features          int     `toml:"features" default:"500"`
	Levels            int     `toml:"levels" default:"4"`
	ScaleFactor       float64 `toml:"scale_factor" default:"1.2"`
	FastThreshold     int     `toml:"fast_threshold" default:"20"`
	EdgeThreshold     int     `toml:"edge_threshold" default:"31"`
	PatchSize         int     `toml:"patch_size" default:"31"`
}

type ServerConfig struct {
	Addr          string `toml:"addr" default:":9090"`
	DBPath        string `toml:"db_path" default:"fingerprints.db"`
	BodyLimit     int    `toml:"body_limit" default:"8388608"`
	MaxImageBytes int    `toml:"max_image_bytes" default:"1048576"`
}

type LogConfig struct {
	Dir          string        `toml:"dir" default:"logs"`
	Level        string        `toml:"level" default:"info"`
	MaxAge       time.Duration `toml:"max_age" default:"168h"`
	RotationTime time.Duration `toml:"rotation_time" default:"24h"`
}

type DefaultConfig struct {
	// Workers bounds the goroutines used for row bands and gallery scoring.
	Workers int           `toml:"workers" default:"1"`
	Timeout time.Duration `toml:"timeout" default:"30s"`

	Enhance EnhanceConfig `toml:"enhance"`
	Match   MatchConfig   `toml:"match"`
	Server  ServerConfig  `toml:"server"`
	Log     LogConfig     `toml:"log"`
}

func LoadDefaultConfig() *DefaultConfig {
	cfg := new(DefaultConfig)
	defaults.SetDefaults(cfg)
	return cfg
}

// LoadConfig reads a TOML file on top of the defaults and validates the result.
func LoadConfig(path string) (*DefaultConfig, error) {
	return DecodeFile(LoadDefaultConfig(), path)
}

// DecodeFile overlays the keys set in a TOML file onto cfg. Keys the file
// leaves out keep the values already in cfg.
func DecodeFile(cfg *DefaultConfig, path string) (*DefaultConfig, error) {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *DefaultConfig) Validate() error {
	var errs []error
	if c.Workers < 1 {
		errs = append(errs, errors.New("workers must be positive"))
	}
	if c.Timeout < 0 {
		errs = append(errs, errors.New("timeout must not be negative"))
	}
	errs = append(errs, c.Enhance.validate()...)
	errs = append(errs, c.Match.validate()...)
	return errors.Join(errs...)
}

func (e EnhanceConfig) validate() []error {
	var errs []error
	if e.BlockSize < 1 {
		errs = append(errs, errors.New("enhance.block_size must be positive"))
	}
	if e.SegmentThreshold < 0 {
		errs = append(errs, errors.New("enhance.segment_threshold must not be negative"))
	}
	if e.GradientSigma <= 0 || e.BlockSigma <= 0 || e.OrientSmoothSigma <= 0 {
		errs = append(errs, errors.New("enhance sigmas must be positive"))
	}
	if e.FrequencyBlockSize < 3 {
		errs = append(errs, errors.New("enhance.frequency_block_size must be at least 3"))
	}
	if e.WindowSize < 1 {
		errs = append(errs, errors.New("enhance.window_size must be positive"))
	}
	if e.MinWaveLength <= 0 || e.MaxWaveLength < e.MinWaveLength {
		errs = append(errs, fmt.Errorf("enhance wave length bounds [%v, %v] are invalid", e.MinWaveLength, e.MaxWaveLength))
	}
	if e.FilterSizeX <= 0 || e.FilterSizeY <= 0 {
		errs = append(errs, errors.New("enhance filter sizes must be positive"))
	}
	if e.AngleStep < 1 || 180%e.AngleStep != 0 {
		errs = append(errs, fmt.Errorf("enhance.angle_step %d must divide 180", e.AngleStep))
	}
	return errs
}

func (m MatchConfig) validate() []error {
	var errs []error
	if m.DistanceThreshold < 1 || m.DistanceThreshold > 256 {
		errs = append(errs, fmt.Errorf("match.distance_threshold %d out of range (1..256)", m.DistanceThreshold))
	}
	if m.MinScore < 0 {
		errs = append(errs, errors.New("match.min_score must not be negative"))
	}
	if m.RatioThreshold <= 0 || m.RatioThreshold > 1 {
		errs = append(errs, fmt.Errorf("match.ratio_threshold %g out of range (0..1]", m.RatioThreshold))
	}
	if m.RotationBin <= 0 || m.RotationBin > 180 || m.TranslationBin <= 0 {
		errs = append(errs, errors.New("match.rotation_bin must be in (0..180] and match.translation_bin positive"))
	}
	if m.MinCoverage < 0 || m.MinCoverage > 1 {
		errs = append(errs, fmt.Errorf("match.min_coverage %g out of range [0..1]", m.MinCoverage))
	}
	if m.Features < 1 || m.Levels < 1 {
		errs = append(errs, errors.New("match.features and match.levels must be positive"))
	}
	if m.ScaleFactor <= 1 {
		errs = append(errs, errors.New("match.scale_factor must be greater than 1"))
	}
	if m.PatchSize < 7 || m.EdgeThreshold < m.PatchSize/2 {
		errs = append(errs, errors.New("match.patch_size must be at least 7 and edge_threshold at least half of it"))
	}
	return errs
}
