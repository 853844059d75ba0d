package gacha

import "critiQuestAPI/internal/philosopher"

// SummonResult is the outcome of a single draw inside a summon batch.
type SummonResult struct {
	Philosopher      philosopher.Summary `json:"philosopher"`
	IsNew            bool                `json:"is_new"`
	IsDuplicate      bool                `json:"is_duplicate"`
	ExperienceGained int                 `json:"experience_gained"`
	NewLevel         int                 `json:"new_level"`
}

// SummonReceipt is returned by a successful summon batch. All numeric
// fields are integers; serialization must not lose precision.
type SummonReceipt struct {
	Results               []SummonResult `json:"results"`
	RemainingTickets      int            `json:"remaining_tickets"`
	TotalExperienceGained int            `json:"total_experience_gained"`
}

// RatesResponse is the public, user-independent view of the weight table.
type RatesResponse struct {
	RarityRates         map[string]float64 `json:"rarity_rates"`
	DuplicateExperience map[string]int     `json:"duplicate_experience"`
}

// PreviewResponse summarizes what a user could get from the banner.
type PreviewResponse struct {
	AvailableTickets     int                   `json:"available_tickets"`
	TotalPhilosophers    int                   `json:"total_philosophers"`
	OwnedPhilosophers    int                   `json:"owned_philosophers"`
	RarityBreakdown      map[string]int        `json:"rarity_breakdown"`
	FeaturedPhilosophers []philosopher.Summary `json:"featured_philosophers"`
}
