package compare

import (
	"strings"

	"github.com/vendorlens/reconciler/internal/domain"
)

// similarityFloor is the minimum score for a line item to be considered
// matched to a pricing term. Below it the item is flagged as unrecognized
// rather than silently skipped.
const similarityFloor = 0.3

// matchPricingTerm finds the best pricing term for a line item description
// using case-insensitive containment and token overlap. Returns -1 when no
// term scores at or above the floor.
func matchPricingTerm(description string, pricing []domain.PricingTerm) (int, float64) {
	best, bestScore := -1, 0.0
	for i, p := range pricing {
		score := similarity(description, p.Item)
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if bestScore < similarityFloor {
		return -1, bestScore
	}
	return best, bestScore
}

// similarity scores two descriptions in [0,1]: 1.0 for containment either
// way, otherwise Jaccard overlap of their word sets.
func similarity(a, b string) float64 {
	na, nb := normalizeDesc(a), normalizeDesc(b)
	if na == "" || nb == "" {
		return 0
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return 1.0
	}

	ta, tb := tokenSet(na), tokenSet(nb)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

func normalizeDesc(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == ' ' {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func tokenSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		out[tok] = struct{}{}
	}
	return out
}

// normalizeTerms canonicalizes payment terms strings so "Net 30", "net30" and
// "NET-30" compare equal.
func normalizeTerms(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
