package enhance

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/high-horse/fingerprint/config"
	"github.com/high-horse/fingerprint/primitives"
	"github.com/high-horse/fingerprint/transparency"
)

// Fingerprint is the binary ridge image produced by Enhance. Ridges, the dark
// lines of the capture, are the foreground.
type Fingerprint struct {
	// Ridges and Mask cover the padded raster; Width and Height are the
	// dimensions of the input image.
	Ridges        *primitives.BooleanMatrix
	Mask          *primitives.BooleanMatrix
	Width, Height int
	Frequency     float64
	ValidBlocks   int
}

// Gray crops the ridge image to the input size, foreground as 255.
func (f *Fingerprint) Gray() *image.Gray {
	return f.Ridges.Gray(f.Width, f.Height)
}

// Empty reports whether no ridge pixel survived.
func (f *Fingerprint) Empty() bool {
	return f.Ridges.Count() == 0
}

type Enhancer struct {
	cfg          *config.DefaultConfig
	logger       *zap.Logger
	transparency *transparency.Logger
}

// NewEnhancer returns a stateless pipeline; it is safe for concurrent use.
// logger and tl may be nil.
func NewEnhancer(cfg *config.DefaultConfig, logger *zap.Logger, tl *transparency.Logger) *Enhancer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enhancer{cfg: cfg, logger: logger, transparency: tl}
}

// Enhance runs normalization, segmentation, orientation and frequency
// estimation, ridge filtering and binarization. Cancellation is honoured
// between stages. When segmentation finds no ridges the returned fingerprint
// is entirely background and the error is ErrNoValidRegions.
func (e *Enhancer) Enhance(ctx context.Context, img image.Image) (*Fingerprint, error) {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, e.cfg.Timeout, ErrTimeout)
		defer cancel()
	}
	p := e.cfg.Enhance
	workers := e.cfg.Workers
	start := time.Now()

	normalized, err := Normalize(img, p.BlockSize)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	fp := &Fingerprint{Width: b.Dx(), Height: b.Dy()}
	if err := e.stage(ctx, transparency.KeyNormalized, normalized); err != nil {
		return nil, err
	}

	seg, segErr := Segment(normalized, p.BlockSize, p.SegmentThreshold, workers)
	fp.Mask = seg.Mask
	fp.ValidBlocks = seg.ValidBlocks
	if errors.Is(segErr, ErrNoValidRegions) {
		e.logger.Warn("no ridge regions found", zap.Int("width", fp.Width), zap.Int("height", fp.Height))
		fp.Ridges = primitives.NewBooleanMatrix(normalized.Width, normalized.Height)
		return fp, segErr
	}
	if err := e.stage(ctx, transparency.KeySegmentation, seg); err != nil {
		return nil, err
	}

	orient := Orientation(seg.Image, p.GradientSigma, p.BlockSigma, p.OrientSmoothSigma, workers)
	if err := e.stage(ctx, transparency.KeyOrientation, orient); err != nil {
		return nil, err
	}

	freq := Frequency(seg.Image, seg.Mask, orient, FrequencyParams{
		BlockSize:     p.FrequencyBlockSize,
		WindowSize:    p.WindowSize,
		MinWaveLength: p.MinWaveLength,
		MaxWaveLength: p.MaxWaveLength,
	}, workers)
	fp.Frequency = freq.Median
	if err := e.stage(ctx, transparency.KeyFrequency, freq); err != nil {
		return nil, err
	}

	filtered := Filter(seg.Image, orient, freq, p.FilterSizeX, p.FilterSizeY, p.AngleStep, workers)
	if err := e.stage(ctx, transparency.KeyFiltered, filtered); err != nil {
		return nil, err
	}

	fp.Ridges = Binarize(filtered, seg.Mask, p.BinarizeThreshold)
	if err := e.stage(ctx, transparency.KeyBinarized, fp.Ridges); err != nil {
		return nil, err
	}
	if p.Thin {
		fp.Ridges = Thin(fp.Ridges)
		if err := e.stage(ctx, transparency.KeyThinned, fp.Ridges); err != nil {
			return nil, err
		}
	}

	e.logger.Debug("fingerprint enhanced",
		zap.Int("width", fp.Width),
		zap.Int("height", fp.Height),
		zap.Int("valid_blocks", fp.ValidBlocks),
		zap.Float64("frequency", fp.Frequency),
		zap.Duration("elapsed", time.Since(start)))
	return fp, nil
}

// stage publishes a stage output and checks for cancellation.
func (e *Enhancer) stage(ctx context.Context, key string, value any) error {
	if err := e.transparency.Log(key, func() any { return value }); err != nil {
		e.logger.Warn("transparency log failed", zap.String("key", key), zap.Error(err))
	}
	if ctx.Err() != nil {
		return fmt.Errorf("after %s: %w", key, context.Cause(ctx))
	}
	return nil
}
