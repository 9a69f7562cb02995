package compat

import (
	"cropopt/internal/catalog"
	"cropopt/internal/model"
)

// Policy scores how crop b affects crop a when planted together. Scores are
// directional: Score(a, b) and Score(b, a) are computed independently.
type Policy interface {
	Name() string
	Score(a, b model.CropRecord) float64
}

// RuleScorer combines explicit name listings with categorical rules. The
// result is an unbounded signed sum.
type RuleScorer struct {
	Categories *catalog.Categories
}

func (RuleScorer) Name() string {
	return "rule"
}

func (s RuleScorer) Score(a, b model.CropRecord) float64 {
	score := 0.0
	positive, negative := a.Positive, a.Negative
	has := catalog.Contains
	cats := s.Categories

	if has(positive, b.Name) {
		score += 0.5
	}
	if has(negative, b.Name) {
		score -= 1.0
	}
	if has(negative, catalog.TokenShadeIntolerant) && cats.IsShadeProducing(b.Name) {
		score -= 0.8
	}
	if has(positive, catalog.TokenBenefitsFromShade) && cats.IsShadeProducing(b.Name) {
		score += 0.4
	}
	if has(positive, catalog.TokenBenefitsFromCoverCrop) && cats.IsCoverCrop(b.Name) {
		score += 0.6
	}
	if a.Perennial() && has(negative, catalog.TokenConflictsAnnuals) && cats.IsAnnual(b.Name) {
		score -= 0.7
	}
	if has(negative, catalog.TokenConflictsCompetitive) && cats.IsCompetitiveExotic(b.Name) {
		score -= 1.2
	}
	if has(negative, catalog.TokenConflictsInvasive) && cats.IsInvasiveExotic(b.Name) {
		score -= 1.5
	}
	if has(positive, catalog.TokenBenefitsFromNatives) && cats.IsNative(b.Name) {
		score += 0.3
	}
	return score
}

// ListScorer looks only at explicit name listings and returns +1, -1 or 0.
// A crop listed on both sides counts as positive.
type ListScorer struct{}

func (ListScorer) Name() string {
	return "list"
}

func (ListScorer) Score(a, b model.CropRecord) float64 {
	switch {
	case catalog.Contains(a.Positive, b.Name):
		return 1.0
	case catalog.Contains(a.Negative, b.Name):
		return -1.0
	default:
		return 0.0
	}
}

// BucketScorer classifies b against a's four tabular buckets. Every bucket
// that lists b contributes.
type BucketScorer struct{}

func (BucketScorer) Name() string {
	return "bucket"
}

func (BucketScorer) Score(a, b model.CropRecord) float64 {
	score := 0.0
	if catalog.Contains(a.Synergy, b.Name) {
		score += 1.0
	}
	if catalog.Contains(a.Companion, b.Name) {
		score += 0.5
	}
	if catalog.Contains(a.Antagonistic, b.Name) {
		score -= 1.0
	}
	return score
}
