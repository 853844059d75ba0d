package philosopher

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

func TestRarityJSONRoundTrip(t *testing.T) {
	for _, r := range RarityOrder {
		raw, err := json.Marshal(r)
		if err != nil {
			t.Fatalf("failed to marshal %v: %v", r, err)
		}

		var decoded Rarity
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("failed to unmarshal %s: %v", raw, err)
		}
		if decoded != r {
			t.Errorf("round trip changed %v to %v", r, decoded)
		}
	}
}

func TestParseRarityRejectsUnknown(t *testing.T) {
	if _, err := ParseRarity("mythic"); err == nil {
		t.Error("expected error for unknown rarity")
	}
}

func TestScaleStat(t *testing.T) {
	cases := []struct {
		base, level, want int
	}{
		{100, 1, 100},
		{100, 2, 105},
		{100, 3, 110},
		{80, 5, 96},
		{95, 4, 109},
	}
	for _, tc := range cases {
		if got := ScaleStat(tc.base, tc.level); got != tc.want {
			t.Errorf("ScaleStat(%d, %d) = %d, want %d", tc.base, tc.level, got, tc.want)
		}
	}
}

func TestNewOwnedStartsAtBase(t *testing.T) {
	p := &Philosopher{
		ID: "socrates", Rarity: RarityLegendary,
		Wisdom: 95, Logic: 90, Rhetoric: 85, Influence: 98, Originality: 92,
	}
	owned := NewOwned(uuid.New(), p)

	if owned.Level != 1 || owned.Experience != 0 || owned.Duplicates != 0 {
		t.Errorf("fresh row has level %d, exp %d, dups %d", owned.Level, owned.Experience, owned.Duplicates)
	}
	if owned.CurrentWisdom != 95 || owned.CurrentOriginality != 92 {
		t.Errorf("fresh row stats not equal to base: %+v", owned)
	}
}

func TestAbsorbDuplicateLevelsUp(t *testing.T) {
	p := &Philosopher{
		ID: "socrates", Rarity: RarityLegendary,
		Wisdom: 95, Logic: 90, Rhetoric: 85, Influence: 98, Originality: 92,
	}
	owned := NewOwned(uuid.New(), p)

	// 250 XP puts the item at level 3 (exp/100 + 1).
	leveled := owned.AbsorbDuplicate(p, 250)
	if !leveled {
		t.Fatal("expected a level up from 250 experience")
	}
	if owned.Level != 3 {
		t.Errorf("level = %d, want 3", owned.Level)
	}
	if owned.Duplicates != 1 {
		t.Errorf("duplicates = %d, want 1", owned.Duplicates)
	}
	// stats rescale from base, not compounding
	if want := ScaleStat(95, 3); owned.CurrentWisdom != want {
		t.Errorf("wisdom = %d, want %d", owned.CurrentWisdom, want)
	}
}

func TestAbsorbDuplicateNoLevelUp(t *testing.T) {
	p := &Philosopher{ID: "thales", Rarity: RarityCommon, Wisdom: 72}
	owned := NewOwned(uuid.New(), p)

	if leveled := owned.AbsorbDuplicate(p, 10); leveled {
		t.Error("10 experience should not level the item")
	}
	if owned.Level != 1 || owned.Experience != 10 {
		t.Errorf("level %d exp %d, want level 1 exp 10", owned.Level, owned.Experience)
	}
	if owned.CurrentWisdom != 72 {
		t.Errorf("stats changed without a level up: %d", owned.CurrentWisdom)
	}
}

func TestAbsorbDuplicateAccumulates(t *testing.T) {
	p := &Philosopher{ID: "thales", Rarity: RarityCommon, Wisdom: 72}
	owned := NewOwned(uuid.New(), p)

	for i := 0; i < 10; i++ {
		owned.AbsorbDuplicate(p, 10)
	}
	if owned.Experience != 100 || owned.Duplicates != 10 {
		t.Fatalf("exp %d dups %d, want 100 and 10", owned.Experience, owned.Duplicates)
	}
	if owned.Level != 2 {
		t.Errorf("level = %d, want 2 at 100 experience", owned.Level)
	}
}
