package fingerprint

import (
	"context"

	"go.uber.org/zap"

	"github.com/high-horse/fingerprint/config"
	"github.com/high-horse/fingerprint/match"
)

type Matcher struct {
	cfg     *config.DefaultConfig
	matcher *match.Matcher
}

// NewMatcher prepares probe for repeated comparisons.
func NewMatcher(cfg *config.DefaultConfig, logger *zap.Logger, probe *Template) *Matcher {
	return &Matcher{
		cfg:     cfg,
		matcher: match.NewMatcherFromFeatures(cfg, logger, probe.Features(cfg.Match)),
	}
}

// Match returns the number of probe keypoints with a close counterpart in candidate.
func (m *Matcher) Match(candidate *Template) int {
	return m.matcher.Match(candidate.Features(m.cfg.Match))
}

// IsMatch applies the gallery acceptance rule to a single score.
func (m *Matcher) IsMatch(score int) bool {
	return score > m.cfg.Match.MinScore
}

// Identify finds the best gallery template scoring above the minimum score.
func (m *Matcher) Identify(ctx context.Context, gallery *Gallery) (match.Result, error) {
	templates := gallery.Templates()
	candidates := make([]match.Candidate, len(templates))
	for i, t := range templates {
		candidates[i] = match.Candidate{Identity: t.Identity, Source: t}
	}
	return m.matcher.Scan(ctx, candidates)
}
