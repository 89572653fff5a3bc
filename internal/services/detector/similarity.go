package detector

import (
	"github.com/ternarybob/vigil/internal/models"
)

// KeywordSimilarity blends Jaccard, overlap and Dice coefficients over two
// keyword sets, weighted toward overlap, with a bonus when one set largely
// contains the other. Result is clipped to [0, 1].
func KeywordSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection

	jaccard := float64(intersection) / float64(union)

	smaller := len(a)
	if len(b) < smaller {
		smaller = len(b)
	}
	overlap := float64(intersection) / float64(smaller)

	dice := 2 * float64(intersection) / float64(len(a)+len(b))

	score := 0.2*jaccard + 0.6*overlap + 0.2*dice

	// Containment bonus when the smaller set is mostly covered
	if overlap >= 0.5 {
		bonus := 0.2 * overlap
		if bonus > 0.15 {
			bonus = 0.15
		}
		score += bonus
	}

	if score > 1.0 {
		score = 1.0
	}
	if score < 0.0 {
		score = 0.0
	}
	return score
}

// StructuralSimilarity compares two DOM outlines as 1 minus the normalized
// Levenshtein distance over their element signatures.
func StructuralSimilarity(a, b []models.DOMElement) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}

	dist := editDistance(a, b)
	return 1.0 - float64(dist)/float64(longest)
}

// editDistance computes Levenshtein distance over DOM element signatures
// using a rolling two-row table.
func editDistance(a, b []models.DOMElement) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if sameElement(a[i-1], b[j-1]) {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func sameElement(a, b models.DOMElement) bool {
	if a.Tag != b.Tag || a.Depth != b.Depth || a.ID != b.ID {
		return false
	}
	if len(a.Classes) != len(b.Classes) {
		return false
	}
	seen := make(map[string]int, len(a.Classes))
	for _, c := range a.Classes {
		seen[c]++
	}
	for _, c := range b.Classes {
		seen[c]--
		if seen[c] < 0 {
			return false
		}
	}
	return true
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
