package philosopher

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Rarity int

const (
	RarityCommon Rarity = iota + 1
	RarityUncommon
	RarityRare
	RarityEpic
	RarityLegendary
)

// RarityOrder is the canonical walk order for weighted draws.
var RarityOrder = []Rarity{RarityCommon, RarityUncommon, RarityRare, RarityEpic, RarityLegendary}

func (r Rarity) String() string {
	switch r {
	case RarityCommon:
		return "common"
	case RarityUncommon:
		return "uncommon"
	case RarityRare:
		return "rare"
	case RarityEpic:
		return "epic"
	case RarityLegendary:
		return "legendary"
	default:
		return "unknown"
	}
}

func (r Rarity) Valid() bool {
	return r >= RarityCommon && r <= RarityLegendary
}

func (r Rarity) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Rarity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRarity(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func ParseRarity(s string) (Rarity, error) {
	for _, r := range RarityOrder {
		if r.String() == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown rarity %q", s)
}

// Philosopher is a catalog entry. Seeded once at startup, never mutated at
// request time.
type Philosopher struct {
	ID             string          `json:"id" db:"id"`
	Name           string          `json:"name" db:"name"`
	Era            string          `json:"era" db:"era"`
	School         string          `json:"school" db:"school"`
	Rarity         Rarity          `json:"rarity" db:"rarity"`
	Wisdom         int             `json:"wisdom" db:"wisdom"`
	Logic          int             `json:"logic" db:"logic"`
	Rhetoric       int             `json:"rhetoric" db:"rhetoric"`
	Influence      int             `json:"influence" db:"influence"`
	Originality    int             `json:"originality" db:"originality"`
	Description    string          `json:"description" db:"description"`
	ImageURL       string          `json:"image_url" db:"image_url"`
	Quotes         json.RawMessage `json:"quotes" db:"quotes"`
	SpecialAbility json.RawMessage `json:"special_ability" db:"special_ability"`
}

// Summary is the trimmed shape returned inside summon receipts and previews.
type Summary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Era         string `json:"era"`
	School      string `json:"school"`
	Rarity      Rarity `json:"rarity"`
	ImageURL    string `json:"image_url"`
	Description string `json:"description"`
}

func (p *Philosopher) Summary() Summary {
	return Summary{
		ID:          p.ID,
		Name:        p.Name,
		Era:         p.Era,
		School:      p.School,
		Rarity:      p.Rarity,
		ImageURL:    p.ImageURL,
		Description: p.Description,
	}
}

// OwnedPhilosopher is one row of a user's collection. At most one row per
// (user, philosopher) pair; duplicates are absorbed into experience.
type OwnedPhilosopher struct {
	ID                 uuid.UUID `json:"id" db:"id"`
	UserID             uuid.UUID `json:"user_id" db:"user_id"`
	PhilosopherID      string    `json:"philosopher_id" db:"philosopher_id"`
	Level              int       `json:"level" db:"level"`
	Experience         int       `json:"experience" db:"experience"`
	Duplicates         int       `json:"duplicates" db:"duplicates"`
	CurrentWisdom      int       `json:"current_wisdom" db:"current_wisdom"`
	CurrentLogic       int       `json:"current_logic" db:"current_logic"`
	CurrentRhetoric    int       `json:"current_rhetoric" db:"current_rhetoric"`
	CurrentInfluence   int       `json:"current_influence" db:"current_influence"`
	CurrentOriginality int       `json:"current_originality" db:"current_originality"`
	ObtainedAt         time.Time `json:"obtained_at" db:"obtained_at"`
}

// NewOwned creates the level-1 collection row for a first-time draw.
// Current stats start equal to the catalog base stats.
func NewOwned(userID uuid.UUID, p *Philosopher) *OwnedPhilosopher {
	return &OwnedPhilosopher{
		ID:                 uuid.New(),
		UserID:             userID,
		PhilosopherID:      p.ID,
		Level:              1,
		Experience:         0,
		Duplicates:         0,
		CurrentWisdom:      p.Wisdom,
		CurrentLogic:       p.Logic,
		CurrentRhetoric:    p.Rhetoric,
		CurrentInfluence:   p.Influence,
		CurrentOriginality: p.Originality,
		ObtainedAt:         time.Now().UTC(),
	}
}

// ScaleStat applies the flat 5%-per-level multiplier off a base stat.
func ScaleStat(base, level int) int {
	return int(float64(base) * (1 + float64(level-1)*0.05))
}

// AbsorbDuplicate converts a duplicate draw into item experience. The item
// level is a simple 100-XP-per-level curve; on a level increase all current
// stats are rescaled from the catalog base stats. Returns whether the item
// leveled up.
func (o *OwnedPhilosopher) AbsorbDuplicate(p *Philosopher, expGained int) bool {
	o.Experience += expGained
	o.Duplicates++

	newLevel := o.Experience/100 + 1
	if newLevel <= o.Level {
		return false
	}

	o.Level = newLevel
	o.CurrentWisdom = ScaleStat(p.Wisdom, newLevel)
	o.CurrentLogic = ScaleStat(p.Logic, newLevel)
	o.CurrentRhetoric = ScaleStat(p.Rhetoric, newLevel)
	o.CurrentInfluence = ScaleStat(p.Influence, newLevel)
	o.CurrentOriginality = ScaleStat(p.Originality, newLevel)
	return true
}

// OwnedWithPhilosopher joins a collection row with its catalog entry for
// collection reads.
type OwnedWithPhilosopher struct {
	OwnedPhilosopher
	Philosopher Summary `json:"philosopher"`
}
