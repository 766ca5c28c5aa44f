package app

import (
	"strings"

	"hotel_catalog/internal/domain"
)

// MatchConfig holds the fuzzy matcher's weights and acceptance threshold.
// The defaults are empirical and kept configurable.
type MatchConfig struct {
	NameWeight    float64
	AddressWeight float64
	CityWeight    float64
	Threshold     float64
}

func DefaultMatchConfig() MatchConfig {
	return MatchConfig{NameWeight: 0.6, AddressWeight: 0.3, CityWeight: 0.1, Threshold: 0.3}
}

// Matcher picks the catalog record that best resembles a free-text feed
// identifier. It is the legacy path for feed hotels without a usable HID.
type Matcher struct{ cfg MatchConfig }

func NewMatcher(cfg MatchConfig) *Matcher { return &Matcher{cfg: cfg} }

// Score is the weighted composite of name, address and city similarity, each
// measured against the same identifier.
func (m *Matcher) Score(identifier string, c domain.CatalogHotel) float64 {
	id := humanize(identifier)
	return m.cfg.NameWeight*Similarity(id, c.Name) +
		m.cfg.AddressWeight*Similarity(id, c.Address) +
		m.cfg.CityWeight*Similarity(id, c.City)
}

// Best returns the highest-scoring candidate when it beats the threshold.
// Ties keep the earlier candidate.
func (m *Matcher) Best(identifier string, candidates []domain.CatalogHotel) (domain.CatalogHotel, float64, bool) {
	bestIdx, bestScore := -1, 0.0
	for i, c := range candidates {
		if s := m.Score(identifier, c); s > bestScore {
			bestIdx, bestScore = i, s
		}
	}
	if bestIdx < 0 || bestScore <= m.cfg.Threshold {
		return domain.CatalogHotel{}, bestScore, false
	}
	return candidates[bestIdx], bestScore, true
}

// Similarity scores two strings in [0,1], case-insensitively.
//
//	identical            -> 1.0
//	exactly one empty    -> 0.0
//	containment          -> 0.8
//	token overlap > 0.5  -> overlap ratio
//	otherwise            -> normalized edit distance
func Similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.8
	}
	if r := wordOverlap(a, b); r > 0.5 {
		return r
	}

	maxLen := max(len([]rune(a)), len([]rune(b)))
	return float64(maxLen-levenshtein(a, b)) / float64(maxLen)
}

// wordOverlap is shared distinct tokens divided by the larger token count.
func wordOverlap(a, b string) float64 {
	wa, wb := strings.Fields(a), strings.Fields(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(wb))
	for _, w := range wb {
		set[w] = struct{}{}
	}
	shared := 0
	seen := make(map[string]struct{}, len(wa))
	for _, w := range wa {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if _, ok := set[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(max(len(wa), len(wb)))
}

// levenshtein is the rune-level edit distance, two-row variant.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
