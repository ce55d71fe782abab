// Package intensity computes a per-verse narrative intensity score.
//
// The score is a display heuristic for ranking verses within a chapter. It
// combines character density, weighted cue counts, verse length and a boost
// for Spirit mentions, clamped to [0,1]. It has no statistical validity and
// is not a narratological measurement.
package intensity

import (
	"math"
	"unicode/utf8"

	"github.com/FocuswithJustin/NarrativeCues/core/cues"
)

// Weights configures the composite.
type Weights struct {
	Density     float64 `json:"density"`
	Cue         float64 `json:"cue"`
	Length      float64 `json:"length"`
	SpiritBoost float64 `json:"spirit_boost"`
	DensityCap  int     `json:"density_cap"` // distinct characters for a full density term
	LengthCap   int     `json:"length_cap"`  // runes of verse text for a full length term
}

// DefaultWeights are the weights used by the CLI and the pipeline.
var DefaultWeights = Weights{
	Density:     0.35,
	Cue:         0.35,
	Length:      0.2,
	SpiritBoost: 0.1,
	DensityCap:  3,
	LengthCap:   200,
}

// Verse is the input for one verse.
type Verse struct {
	Chapter    int
	Verse      int
	Characters []string
	Cues       []cues.Cue
	Text       string
	Spirit     bool
}

// VerseScore is the scored verse with the inputs that drove it.
type VerseScore struct {
	Chapter    int     `json:"chapter"`
	Verse      int     `json:"verse"`
	Score      float64 `json:"score"`
	Characters int     `json:"characters"`
	Cues       int     `json:"cues"`
	TextLength int     `json:"text_length"`
	Spirit     bool    `json:"spirit"`
}

// Scorer applies a set of weights.
type Scorer struct {
	w Weights
}

// NewScorer returns a Scorer. Non-positive caps fall back to the defaults.
func NewScorer(w Weights) *Scorer {
	if w.DensityCap <= 0 {
		w.DensityCap = DefaultWeights.DensityCap
	}
	if w.LengthCap <= 0 {
		w.LengthCap = DefaultWeights.LengthCap
	}
	return &Scorer{w: w}
}

// Weights returns the effective weights.
func (s *Scorer) Weights() Weights {
	return s.w
}

// Score returns the clamped composite for one verse.
func (s *Scorer) Score(v Verse) VerseScore {
	distinct := countDistinct(v.Characters)
	length := utf8.RuneCountInString(v.Text)

	density := capped(float64(distinct), float64(s.w.DensityCap))
	cueSum := 0.0
	for _, c := range v.Cues {
		cueSum += c.Category.Weight()
	}
	cueTerm := math.Min(cueSum, 1)
	lengthTerm := capped(float64(length), float64(s.w.LengthCap))

	score := s.w.Density*density + s.w.Cue*cueTerm + s.w.Length*lengthTerm
	if v.Spirit {
		score += s.w.SpiritBoost
	}

	return VerseScore{
		Chapter:    v.Chapter,
		Verse:      v.Verse,
		Score:      clamp(score),
		Characters: distinct,
		Cues:       len(v.Cues),
		TextLength: length,
		Spirit:     v.Spirit,
	}
}

// Chapter scores every verse, preserving input order.
func (s *Scorer) Chapter(verses []Verse) []VerseScore {
	out := make([]VerseScore, len(verses))
	for i, v := range verses {
		out[i] = s.Score(v)
	}
	return out
}

func capped(n, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	return math.Min(n/limit, 1)
}

func clamp(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func countDistinct(names []string) int {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}
	return len(seen)
}
