package stats

import (
	"time"

	"github.com/google/uuid"
)

// StartingGachaTickets is the grant applied when a user's stats row is
// lazily created on first access.
const StartingGachaTickets = 3

// UserStats is the per-user counters record. GachaTickets is the spendable
// summon currency; it is decremented only by the summon transaction and
// incremented by level, achievement, and lesson rewards.
type UserStats struct {
	ID               uuid.UUID `json:"id" db:"id"`
	UserID           uuid.UUID `json:"user_id" db:"user_id"`
	TotalTimeSpent   int       `json:"total_time_spent" db:"total_time_spent"` // minutes
	StreakDays       int       `json:"streak_days" db:"streak_days"`
	LastStreakUpdate time.Time `json:"last_streak_update" db:"last_streak_update"`
	QuizzesCompleted int       `json:"quizzes_completed" db:"quizzes_completed"`
	PerfectScores    int       `json:"perfect_scores" db:"perfect_scores"`
	GachaTickets     int       `json:"gacha_tickets" db:"gacha_tickets"`
}
