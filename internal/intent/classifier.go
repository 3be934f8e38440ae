package intent

import (
	"math"
	"strings"
)

const (
	// DefaultNormalizer divides the best score into a confidence.
	DefaultNormalizer = 3.0
	// DefaultLowConfidence is the confidence below which a caller should ask
	// for clarification instead of trusting the intent.
	DefaultLowConfidence = 0.3

	multiKeywordBonus = 0.5
)

// Classification is the result of Classify.
type Classification struct {
	Intent     Intent
	Confidence float64
	Scores     map[Intent]float64
}

// Classifier scores a query against the static pattern tables.
type Classifier struct {
	Normalizer float64
}

// NewClassifier returns a classifier that divides scores by normalizer; a
// non-positive value selects DefaultNormalizer.
func NewClassifier(normalizer float64) Classifier {
	if normalizer <= 0 {
		normalizer = DefaultNormalizer
	}
	return Classifier{Normalizer: normalizer}
}

// Classify picks the best scoring intent for query.
func (c Classifier) Classify(query string) Classification {
	text := strings.ToLower(strings.TrimSpace(query))
	out := Classification{Intent: Unknown, Scores: make(map[Intent]float64, len(Ordered))}
	if text == "" {
		return out
	}
	// padded so a table entry can anchor on the start or end of the query
	text = " " + text + " "

	best := 0.0
	for _, in := range Ordered {
		score := scorePattern(patterns[in], text)
		if score == 0 {
			continue
		}
		out.Scores[in] = score
		if score > best {
			best = score
			out.Intent = in
		}
	}
	if best == 0 {
		return out
	}

	norm := c.Normalizer
	if norm <= 0 {
		norm = DefaultNormalizer
	}
	out.Confidence = math.Min(best/norm, 1)
	return out
}

func scorePattern(p pattern, text string) float64 {
	score := 0.0
	matched := 0
	for _, kw := range p.Keywords {
		if strings.Contains(text, kw) {
			score += p.Weight
			matched++
		}
	}
	for _, ph := range p.Phrases {
		if strings.Contains(text, ph) {
			score += 2 * p.Weight
		}
	}
	if matched >= 2 {
		score += multiKeywordBonus
	}
	return score
}
