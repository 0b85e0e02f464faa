package fingerprint

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/high-horse/fingerprint/config"
	"github.com/high-horse/fingerprint/enhance"
	"github.com/high-horse/fingerprint/match"
	"github.com/high-horse/fingerprint/transparency"
)

// ErrEmptyTemplate is returned when a template without ridges would be stored.
var ErrEmptyTemplate = errors.New("template has no ridge pixels")

// Template is an enhanced fingerprint ready for matching.
type Template struct {
	ID          string
	Identity    string
	Fingerprint *image.Gray
	Frequency   float64
	CreatedAt   time.Time

	once     sync.Once
	features *match.Features
}

func NewTemplate(identity string, fp *image.Gray) *Template {
	return &Template{
		ID:          uuid.NewString(),
		Identity:    identity,
		Fingerprint: fp,
		CreatedAt:   time.Now().UTC(),
	}
}

// Features detects the template keypoints once; later calls return the cached set.
func (t *Template) Features(cfg config.MatchConfig) *match.Features {
	t.once.Do(func() {
		if t.features == nil {
			t.features = match.Detect(t.Fingerprint, cfg)
		}
	})
	return t.features
}

// Empty reports whether the fingerprint has no foreground pixel.
func (t *Template) Empty() bool {
	if t.Fingerprint == nil {
		return true
	}
	for _, p := range t.Fingerprint.Pix {
		if p != 0 {
			return false
		}
	}
	return true
}

type TemplateCreator struct {
	cfg          *config.DefaultConfig
	enhancer     *enhance.Enhancer
	transparency *transparency.Logger
	logger       *zap.Logger
}

func NewTemplateCreator(cfg *config.DefaultConfig, logger *zap.Logger, tl *transparency.Logger) *TemplateCreator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateCreator{
		cfg:          cfg,
		enhancer:     enhance.NewEnhancer(cfg, logger, tl),
		transparency: tl,
		logger:       logger,
	}
}

// Template enhances img and detects its features. A capture without ridges
// still yields an (empty) template together with enhance.ErrNoValidRegions.
func (c *TemplateCreator) Template(ctx context.Context, img image.Image) (*Template, error) {
	fp, err := c.enhancer.Enhance(ctx, img)
	if err != nil && !errors.Is(err, enhance.ErrNoValidRegions) {
		return nil, err
	}
	t := NewTemplate("", fp.Gray())
	t.Frequency = fp.Frequency
	features := t.Features(c.cfg.Match)
	if lerr := c.transparency.Log(transparency.KeyFeatures, func() any { return features }); lerr != nil {
		c.logger.Warn("transparency log failed", zap.String("key", transparency.KeyFeatures), zap.Error(lerr))
	}
	return t, err
}
