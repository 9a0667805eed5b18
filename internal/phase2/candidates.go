package phase2

import (
	"sort"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/sells-group/archivist/internal/model"
	"github.com/sells-group/archivist/internal/registry"
)

// Weights tunes the candidate score components. They should sum to 1 but
// ranking only needs relative magnitudes.
type Weights struct {
	Name     float64
	Temporal float64
	Context  float64
}

// DefaultWeights favors the name signal: it is the only component always
// present.
func DefaultWeights() Weights {
	return Weights{Name: 0.55, Temporal: 0.25, Context: 0.20}
}

// ScoredCandidate pairs a decided entity with its match score against a
// pending item.
type ScoredCandidate struct {
	Entity  model.DecidedEntity
	Score   float64
	NameSim float64
}

// rankCandidates scores pool candidates against a pending item and
// returns those at or above minNameSim, best first, capped at max.
// Ordering is fully deterministic: score, then earliest first_seen, then
// key.
func rankCandidates(item model.PendingItem, itemYears model.YearRange, itemTokens map[string]bool, cands []model.DecidedEntity, w Weights, minNameSim float64, max int) []ScoredCandidate {
	itemNorm := registry.Normalize(item.DisplayText)

	var scored []ScoredCandidate
	for _, cand := range cands {
		nameSim := levenshtein.Similarity(itemNorm, registry.Normalize(cand.DisplayText), levenshtein.NewParams())
		if nameSim < minNameSim {
			continue
		}
		score := w.Name*nameSim +
			w.Temporal*itemYears.Overlap(cand.Years) +
			w.Context*jaccard(itemTokens, tokensOf(cand.DisplayText))
		scored = append(scored, ScoredCandidate{Entity: cand, Score: score, NameSim: nameSim})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if !scored[i].Entity.FirstSeen.Equal(scored[j].Entity.FirstSeen) {
			return scored[i].Entity.FirstSeen.Before(scored[j].Entity.FirstSeen)
		}
		return scored[i].Entity.Key < scored[j].Entity.Key
	})

	if max > 0 && len(scored) > max {
		scored = scored[:max]
	}
	return scored
}

func tokensOf(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, w := range strings.Fields(registry.Normalize(text)) {
		if len(w) > 2 {
			tokens[w] = true
		}
	}
	return tokens
}

// jaccard is intersection over union of two token sets; 0 when either is
// empty.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if b[t] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
