package match

import (
	"context"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/high-horse/fingerprint/config"
	"github.com/high-horse/fingerprint/internal/parallel"
)

// FeatureSource supplies features on demand, typically from a cache.
type FeatureSource interface {
	Features(cfg config.MatchConfig) *Features
}

// Candidate is one gallery entry. Features are taken from Features, then
// Source, and are otherwise detected from Image.
type Candidate struct {
	Identity string
	Image    *image.Gray
	Features *Features
	Source   FeatureSource
}

// Result of a gallery scan. Index is -1 and Found false when no candidate
// scored above the minimum.
type Result struct {
	Identity string
	Score    int
	Index    int
	Found    bool
}

// Matcher holds the features of one probe and scores candidates against it.
type Matcher struct {
	cfg     config.MatchConfig
	workers int
	logger  *zap.Logger
	probe   *Features
}

func NewMatcher(cfg *config.DefaultConfig, logger *zap.Logger, probe *image.Gray) *Matcher {
	return NewMatcherFromFeatures(cfg, logger, Detect(probe, cfg.Match))
}

func NewMatcherFromFeatures(cfg *config.DefaultConfig, logger *zap.Logger, probe *Features) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{cfg: cfg.Match, workers: cfg.Workers, logger: logger, probe: probe}
}

func (m *Matcher) Probe() *Features {
	return m.probe
}

func (m *Matcher) Match(candidate *Features) int {
	return Score(m.probe, candidate, m.cfg)
}

func (m *Matcher) MatchImage(candidate *image.Gray) int {
	return m.Match(Detect(candidate, m.cfg))
}

// Scan scores every candidate and returns the best one above MinScore. Scores
// are computed concurrently but compared in gallery order, so on equal scores
// the earliest candidate wins.
func (m *Matcher) Scan(ctx context.Context, candidates []Candidate) (Result, error) {
	start := time.Now()
	res, err := scan(ctx, len(candidates), m.workers, m.cfg.MinScore, func(_ context.Context, i int) (int, error) {
		c := candidates[i]
		switch {
		case c.Features != nil:
			return m.Match(c.Features), nil
		case c.Source != nil:
			return m.Match(c.Source.Features(m.cfg)), nil
		case c.Image == nil:
			return 0, nil
		}
		return m.MatchImage(c.Image), nil
	})
	if err != nil {
		return Result{Index: -1}, err
	}
	if res.Found {
		res.Identity = candidates[res.Index].Identity
	}
	m.logger.Debug("gallery scanned",
		zap.Int("candidates", len(candidates)),
		zap.Bool("found", res.Found),
		zap.String("identity", res.Identity),
		zap.Int("score", res.Score),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

// MatchAgainstGallery scans candidates for the best match of probe.
func MatchAgainstGallery(ctx context.Context, cfg *config.DefaultConfig, probe *image.Gray, candidates []Candidate) (Result, error) {
	return NewMatcher(cfg, nil, probe).Scan(ctx, candidates)
}

// scan computes n scores with a bounded pool and reduces them in index order
// with a strict comparison starting from minScore.
func scan(ctx context.Context, n, workers, minScore int, score func(context.Context, int) (int, error)) (Result, error) {
	scores := make([]int, n)
	err := parallel.Each(ctx, workers, n, func(ctx context.Context, i int) error {
		s, err := score(ctx, i)
		scores[i] = s
		return err
	})
	if err != nil {
		return Result{Index: -1}, err
	}

	res := Result{Index: -1, Score: minScore}
	for i, s := range scores {
		if s > res.Score {
			res = Result{Index: i, Score: s, Found: true}
		}
	}
	if !res.Found {
		return Result{Index: -1}, nil
	}
	return res, nil
}
