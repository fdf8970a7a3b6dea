// Package topics expands a single seed topic into distinct article variations.
package topics

import "fmt"

// angles is the fixed vocabulary of rewrite angles. Expansion cycles through
// it in order, then falls back to numeric suffixes, so the output for a given
// (seed, count) pair is always the same.
var angles = []string{
	"The Beginner's Guide to",
	"Advanced Strategies for",
	"Common Mistakes in",
	"The Future of",
	"A Data-Driven Look at",
	"Everything You Need to Know About",
	"Expert Tips for",
	"The Hidden Costs of",
	"How to Get Started with",
	"Lessons Learned from",
	"The Complete Checklist for",
	"Debunking Myths About",
}

// Expand returns exactly count distinct, non-empty variations of seed.
// The expansion is deterministic: the same seed and count always produce
// the same strings, in the same order.
func Expand(seed string, count int) []string {
	if count <= 0 {
		return []string{}
	}

	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, Variation(seed, i))
	}
	return out
}

// Variation maps (seed, index) to one variation string. Indexes beyond the
// angle vocabulary wrap around with a numeric suffix to keep outputs distinct.
func Variation(seed string, index int) string {
	if index < 0 {
		index = 0
	}
	angle := angles[index%len(angles)]
	round := index / len(angles)
	if round == 0 {
		return fmt.Sprintf("%s %s", angle, seed)
	}
	return fmt.Sprintf("%s %s (Part %d)", angle, seed, round+1)
}
