package classify

import (
	"context"
	"log/slog"
	"sort"
)

// Threshold is the minimum fused confidence for a category to be reported
const Threshold = 0.3

// CategoryMatch is a category with a confidence in [0, 1]
type CategoryMatch struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// Model is an optional statistical classifier contributing its own matches
type Model interface {
	Predict(ctx context.Context, text string) ([]CategoryMatch, error)
}

// Classification is the outcome of Classify
type Classification struct {
	// Matches are the fused categories at or above Threshold, best first
	Matches []CategoryMatch
	// Scores are all fused categories before thresholding
	Scores    []CategoryMatch
	ModelUsed bool
}

// Classifier fuses vendor, item, keyword and optional model signals. It holds
// no mutable state and is safe for concurrent use.
type Classifier struct {
	model Model
}

// Option configures a Classifier
type Option func(*Classifier)

// WithModel adds a model signal. A nil model leaves the classifier rules-only.
func WithModel(m Model) Option {
	return func(c *Classifier) {
		c.model = m
	}
}

// New creates a new Classifier
func New(opts ...Option) *Classifier {
	c := &Classifier{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify categorizes a receipt from its vendor, item names and full text
func (c *Classifier) Classify(ctx context.Context, vendor string, items []string, text string) Classification {
	signals := []Signal{
		{Source: SourceVendor, Weight: WeightVendor, Matches: vendorMatches(vendor)},
		{Source: SourceItems, Weight: WeightItems, Matches: itemMatches(items)},
		{Source: SourceKeyword, Weight: WeightKeyword, Matches: keywordMatches(text)},
	}

	modelUsed := false
	if c.model != nil {
		matches, err := c.model.Predict(ctx, text)
		if err != nil {
			slog.Warn("category model failed, using rules only", "error", err)
		} else {
			modelUsed = true
			signals = append(signals, Signal{Source: SourceModel, Weight: WeightModel, Matches: matches})
		}
	}

	scores := Fuse(signals)
	matches := make([]CategoryMatch, 0, len(scores))
	for _, m := range scores {
		if m.Confidence >= Threshold {
			matches = append(matches, m)
		}
	}

	slog.Debug("classified receipt", "vendor", vendor, "categories", len(matches), "model_used", modelUsed)
	return Classification{Matches: matches, Scores: scores, ModelUsed: modelUsed}
}

// Fuse combines signals by taking, per category, the maximum of weight times
// confidence across all signals. The result is sorted by descending
// confidence with ties broken by category name.
func Fuse(signals []Signal) []CategoryMatch {
	fused := map[string]float64{}
	for _, s := range signals {
		for _, m := range s.Matches {
			if m.Category == "" {
				continue
			}
			w := clamp01(s.Weight * clamp01(m.Confidence))
			if cur, ok := fused[m.Category]; !ok || w > cur {
				fused[m.Category] = w
			}
		}
	}

	out := make([]CategoryMatch, 0, len(fused))
	for c, v := range fused {
		out = append(out, CategoryMatch{Category: c, Confidence: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// Categories returns the category names of matches in order
func Categories(matches []CategoryMatch) []string {
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m.Category)
	}
	return names
}

func clamp01(v float64) float64 {
	return max(0, min(v, 1))
}
