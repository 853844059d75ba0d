package achievement

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type CriteriaType string

const (
	CriteriaPerfectScore        CriteriaType = "perfect_score"
	CriteriaCollectionCount     CriteriaType = "collection_count"
	CriteriaLegendaryCollection CriteriaType = "legendary_collection"
	CriteriaQuizCompletion      CriteriaType = "quiz_completion"
	CriteriaDailyStreak         CriteriaType = "daily_streak"
	CriteriaPlayerLevel         CriteriaType = "player_level"
	CriteriaLessonCompletion    CriteriaType = "lesson_completion"
	// Acknowledged but without a data source yet; they evaluate to zero.
	CriteriaDebateWins     CriteriaType = "debate_wins"
	CriteriaWinStreak      CriteriaType = "win_streak"
	CriteriaLessonSpeedrun CriteriaType = "lesson_speedrun"
)

// Criteria is the typed form of the criteria JSON column. Exactly one of the
// threshold fields is meaningful for a given type.
type Criteria struct {
	Type     CriteriaType `json:"type"`
	MinCount *int         `json:"minCount,omitempty"`
	MinWins  *int         `json:"minWins,omitempty"`
	MinDays  *int         `json:"minDays,omitempty"`
	MaxTime  *int         `json:"maxTime,omitempty"` // seconds, speedrun only
}

// Target resolves the threshold a user must reach. Unset thresholds default
// to 1 so a malformed catalog row degrades to "do it once" instead of failing.
func (c Criteria) Target() int {
	switch {
	case c.MinCount != nil:
		return *c.MinCount
	case c.MinWins != nil:
		return *c.MinWins
	case c.MinDays != nil:
		return *c.MinDays
	case c.MaxTime != nil:
		return *c.MaxTime
	default:
		return 1
	}
}

// ParseCriteria decodes the stored criteria JSON.
func ParseCriteria(raw []byte) (Criteria, error) {
	var c Criteria
	if len(raw) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return Criteria{}, err
	}
	return c, nil
}

// Achievement is a catalog definition. Seeded at startup, read-only at
// request time.
type Achievement struct {
	ID                 string    `json:"id" db:"id"`
	Name               string    `json:"name" db:"name"`
	Description        string    `json:"description" db:"description"`
	Criteria           Criteria  `json:"criteria" db:"criteria"`
	RewardExperience   int       `json:"reward_experience" db:"reward_experience"`
	RewardGachaTickets int       `json:"reward_gacha_tickets" db:"reward_gacha_tickets"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}

// Progress tracks one user against one achievement. Completed is monotonic:
// once true, the row is never re-evaluated and rewards are never re-granted.
type Progress struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	UserID        uuid.UUID  `json:"user_id" db:"user_id"`
	AchievementID string     `json:"achievement_id" db:"achievement_id"`
	CurrentValue  int        `json:"current_value" db:"current_value"`
	TargetValue   int        `json:"target_value" db:"target_value"`
	Completed     bool       `json:"completed" db:"completed"`
	UnlockedAt    *time.Time `json:"unlocked_at,omitempty" db:"unlocked_at"`
	Viewed        bool       `json:"viewed" db:"viewed"`
}

// Percent reports completion progress for display, capped at 100.
func (p *Progress) Percent() float64 {
	if p.TargetValue <= 0 {
		return 0
	}
	pct := float64(p.CurrentValue) / float64(p.TargetValue) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// WithProgress joins a definition with a user's progress for listing.
type WithProgress struct {
	Achievement
	CurrentValue int        `json:"current_value"`
	TargetValue  int        `json:"target_value"`
	Completed    bool       `json:"completed"`
	UnlockedAt   *time.Time `json:"unlocked_at,omitempty"`
}
