package philosopher

import (
	"errors"
	"fmt"
)

// ErrNoCommonFallback means the catalog cannot satisfy the draw fallback
// rule. It is a startup-time configuration error, not a request error.
var ErrNoCommonFallback = errors.New("catalog has no common philosophers to fall back to")

// Catalog is the in-memory, read-only view of the philosopher table. Built
// once at startup; safe for concurrent reads.
type Catalog struct {
	all      []*Philosopher
	byID     map[string]*Philosopher
	byRarity map[Rarity][]*Philosopher
}

func NewCatalog(philosophers []*Philosopher) (*Catalog, error) {
	c := &Catalog{
		all:      philosophers,
		byID:     make(map[string]*Philosopher, len(philosophers)),
		byRarity: make(map[Rarity][]*Philosopher),
	}
	for _, p := range philosophers {
		if !p.Rarity.Valid() {
			return nil, fmt.Errorf("philosopher %q has invalid rarity %d", p.ID, p.Rarity)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate philosopher id %q", p.ID)
		}
		c.byID[p.ID] = p
		c.byRarity[p.Rarity] = append(c.byRarity[p.Rarity], p)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate enforces the draw-fallback invariant: every tier may be empty
// except common, which backs all fallbacks.
func (c *Catalog) Validate() error {
	if len(c.all) == 0 {
		return errors.New("catalog is empty")
	}
	if len(c.byRarity[RarityCommon]) == 0 {
		return ErrNoCommonFallback
	}
	return nil
}

func (c *Catalog) All() []*Philosopher { return c.all }

func (c *Catalog) Size() int { return len(c.all) }

func (c *Catalog) ByID(id string) (*Philosopher, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// OfRarity returns the items of a tier, falling back to common when the tier
// has no items. The bool reports whether a fallback happened.
func (c *Catalog) OfRarity(r Rarity) ([]*Philosopher, bool) {
	pool := c.byRarity[r]
	if len(pool) > 0 {
		return pool, false
	}
	return c.byRarity[RarityCommon], true
}

// RarityBreakdown counts catalog entries per tier, keyed by tier name.
func (c *Catalog) RarityBreakdown() map[string]int {
	breakdown := make(map[string]int, len(RarityOrder))
	for _, r := range RarityOrder {
		if n := len(c.byRarity[r]); n > 0 {
			breakdown[r.String()] = n
		}
	}
	return breakdown
}
