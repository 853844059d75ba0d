package progression

import (
	"time"

	"github.com/google/uuid"

	"critiQuestAPI/internal/achievement"
)

// DefaultStage is the curriculum stage a fresh progression record starts in.
const DefaultStage = "ancient-philosophy"

// UserProgression is the one-per-user progression record. Level is always
// derived from experience via the level curve; it is never set directly
// outside of a recompute.
type UserProgression struct {
	ID                   uuid.UUID `json:"id" db:"id"`
	UserID               uuid.UUID `json:"user_id" db:"user_id"`
	Level                int       `json:"level" db:"level"`
	Experience           int       `json:"experience" db:"experience"`
	CurrentStage         string    `json:"current_stage" db:"current_stage"`
	CompletedLessons     []string  `json:"completed_lessons" db:"completed_lessons"`
	UnlockedPhilosophers []string  `json:"unlocked_philosophers" db:"unlocked_philosophers"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
}

// LevelReward is what crossing a configured level grants.
type LevelReward struct {
	Level        int `json:"level"`
	GachaTickets int `json:"gacha_tickets"`
	Experience   int `json:"experience"`
}

// levelRewards is the configured reward table. Levels without an entry grant
// nothing.
var levelRewards = map[int]LevelReward{
	2:  {Level: 2, GachaTickets: 2},
	3:  {Level: 3, GachaTickets: 3},
	4:  {Level: 4, GachaTickets: 4},
	5:  {Level: 5, GachaTickets: 5, Experience: 50},
	10: {Level: 10, GachaTickets: 10, Experience: 100},
	15: {Level: 15, GachaTickets: 15, Experience: 150},
	20: {Level: 20, GachaTickets: 20, Experience: 200},
}

// RewardForLevel looks up the configured reward for a single level.
func RewardForLevel(level int) (LevelReward, bool) {
	r, ok := levelRewards[level]
	return r, ok
}

// RewardsBetween collects the rewards for every level in [from, to].
func RewardsBetween(from, to int) []LevelReward {
	var rewards []LevelReward
	for level := from; level <= to; level++ {
		if r, ok := levelRewards[level]; ok {
			rewards = append(rewards, r)
		}
	}
	return rewards
}

// Result is the receipt returned by an experience award.
type Result struct {
	ExperienceGained int                        `json:"experience_gained"`
	TotalExperience  int                        `json:"total_experience"`
	CurrentLevel     int                        `json:"current_level"`
	LeveledUp        bool                       `json:"leveled_up"`
	NewLevel         int                        `json:"new_level,omitempty"`
	Source           string                     `json:"source"`
	LevelRewards     []LevelReward              `json:"level_rewards,omitempty"`
	NewAchievements  []*achievement.Achievement `json:"new_achievements"`
}

// Summary is the read model for the profile progression panel.
type Summary struct {
	CurrentLevel              int `json:"current_level"`
	CurrentExperience         int `json:"current_experience"`
	ExperienceForCurrentLevel int `json:"experience_for_current_level"`
	ExperienceForNextLevel    int `json:"experience_for_next_level"`
	ExperienceToNextLevel     int `json:"experience_to_next_level"`
	UnlockedAchievements      int `json:"unlocked_achievements"`
	TotalAchievements         int `json:"total_achievements"`
	QuizzesCompleted          int `json:"quizzes_completed"`
	PerfectScores             int `json:"perfect_scores"`
	StreakDays                int `json:"streak_days"`
}
