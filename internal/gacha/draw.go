package gacha

import (
	"fmt"

	"critiQuestAPI/internal/philosopher"
)

// Weights maps a rarity tier to its positive draw weight. The effective
// probability of tier T is weight(T) / sum(all weights).
type Weights map[philosopher.Rarity]float64

// DefaultWeights is the canonical summon table: 50/30/15/4/1.
func DefaultWeights() Weights {
	return Weights{
		philosopher.RarityCommon:    50.0,
		philosopher.RarityUncommon:  30.0,
		philosopher.RarityRare:      15.0,
		philosopher.RarityEpic:      4.0,
		philosopher.RarityLegendary: 1.0,
	}
}

// DuplicateExperience is the per-tier conversion value applied when a draw
// lands on an already-owned philosopher.
var DuplicateExperience = map[philosopher.Rarity]int{
	philosopher.RarityCommon:    10,
	philosopher.RarityUncommon:  25,
	philosopher.RarityRare:      50,
	philosopher.RarityEpic:      100,
	philosopher.RarityLegendary: 250,
}

// Engine performs weighted rarity draws. Stateless per call; all randomness
// comes from the injected RandomSource.
type Engine struct {
	weights Weights
	total   float64
	rng     RandomSource
}

func NewEngine(weights Weights, rng RandomSource) (*Engine, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("gacha: no rarity weights configured")
	}
	if rng == nil {
		rng = DefaultRNG()
	}
	var total float64
	for r, w := range weights {
		if !r.Valid() {
			return nil, fmt.Errorf("gacha: weight for invalid rarity %d", r)
		}
		if w <= 0 {
			return nil, fmt.Errorf("gacha: weight for %s must be positive, got %v", r, w)
		}
		total += w
	}
	return &Engine{weights: weights, total: total, rng: rng}, nil
}

// DrawRarity draws a uniform value in [0, totalWeight) and walks the tiers
// in canonical order, returning the first tier whose cumulative weight
// exceeds it. Tiers absent from the table are skipped.
func (e *Engine) DrawRarity() philosopher.Rarity {
	v := e.rng.Float64() * e.total
	var cumulative float64
	for _, r := range philosopher.RarityOrder {
		w, ok := e.weights[r]
		if !ok {
			continue
		}
		cumulative += w
		if v < cumulative {
			return r
		}
	}
	// float accumulation can leave v a hair past the last boundary
	return philosopher.RarityOrder[len(philosopher.RarityOrder)-1]
}

// PickIndex selects uniformly among n eligible items of a tier.
func (e *Engine) PickIndex(n int) int {
	return e.rng.IntN(n)
}

// Rates returns the effective draw probability of each tier as a percentage,
// keyed by tier name.
func (e *Engine) Rates() map[string]float64 {
	rates := make(map[string]float64, len(e.weights))
	for r, w := range e.weights {
		rates[r.String()] = w / e.total * 100
	}
	return rates
}
