package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"critiQuestAPI/internal/achievement"
	"critiQuestAPI/internal/progression"
	"critiQuestAPI/middleware"
)

// AchievementService evaluates achievement criteria against a user's current
// counters and grants rewards on completion. Definitions are loaded once at
// startup; evaluation runs in its own transaction, after the progression
// write that triggered it has committed.
type AchievementService struct {
	db          *pgxpool.Pool
	definitions []*achievement.Achievement
	byID        map[string]*achievement.Achievement
}

func NewAchievementService(ctx context.Context, db *pgxpool.Pool) (*AchievementService, error) {
	s := &AchievementService{db: db, byID: make(map[string]*achievement.Achievement)}
	if err := s.loadDefinitions(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *AchievementService) loadDefinitions(ctx context.Context) error {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, description, criteria, reward_experience, reward_gacha_tickets, created_at
		FROM achievements ORDER BY id
	`)
	if err != nil {
		return fmt.Errorf("failed to load achievements: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a := &achievement.Achievement{}
		var rawCriteria []byte
		err := rows.Scan(&a.ID, &a.Name, &a.Description, &rawCriteria,
			&a.RewardExperience, &a.RewardGachaTickets, &a.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to scan achievement: %w", err)
		}
		a.Criteria, err = achievement.ParseCriteria(rawCriteria)
		if err != nil {
			return fmt.Errorf("achievement %s has malformed criteria: %w", a.ID, err)
		}
		s.definitions = append(s.definitions, a)
		s.byID[a.ID] = a
	}
	return rows.Err()
}

func (s *AchievementService) TotalDefinitions() int {
	return len(s.definitions)
}

// CheckAchievements re-evaluates every incomplete achievement for the user
// and returns the ones newly completed. Completion is guarded in SQL so a
// concurrent check of the same user cannot double-grant rewards.
func (s *AchievementService) CheckAchievements(ctx context.Context, clerkID string) ([]*achievement.Achievement, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	userID, err := resolveUserID(ctx, tx, clerkID)
	if err != nil {
		return nil, err
	}

	counters, err := s.gatherCounters(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	var unlocked []*achievement.Achievement
	for _, def := range s.definitions {
		current := counters.valueFor(def.Criteria)
		target := def.Criteria.Target()

		completed, err := s.applyProgress(ctx, tx, userID, def, current, target)
		if err != nil {
			return nil, err
		}
		if completed {
			if err := s.grantReward(ctx, tx, userID, def); err != nil {
				return nil, err
			}
			unlocked = append(unlocked, def)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit achievement check: %w", err)
	}

	if len(unlocked) > 0 {
		middleware.RecordAchievementsUnlocked(len(unlocked))
	}
	return unlocked, nil
}

// criteriaCounters is one snapshot of everything the criteria types can
// measure, gathered up front so evaluation stays a pure comparison.
type criteriaCounters struct {
	perfectScores    int
	quizzesCompleted int
	streakDays       int
	collectionCount  int
	legendaryCount   int
	playerLevel      int
	lessonsCompleted int
}

func (c criteriaCounters) valueFor(crit achievement.Criteria) int {
	switch crit.Type {
	case achievement.CriteriaPerfectScore:
		return c.perfectScores
	case achievement.CriteriaQuizCompletion:
		return c.quizzesCompleted
	case achievement.CriteriaDailyStreak:
		return c.streakDays
	case achievement.CriteriaCollectionCount:
		return c.collectionCount
	case achievement.CriteriaLegendaryCollection:
		return c.legendaryCount
	case achievement.CriteriaPlayerLevel:
		return c.playerLevel
	case achievement.CriteriaLessonCompletion:
		return c.lessonsCompleted
	default:
		// debate_wins, win_streak, lesson_speedrun have no data source yet
		return 0
	}
}

func (s *AchievementService) gatherCounters(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (criteriaCounters, error) {
	var c criteriaCounters

	err := tx.QueryRow(ctx, `
		SELECT quizzes_completed, perfect_scores, streak_days
		FROM user_stats WHERE user_id = $1
	`, userID).Scan(&c.quizzesCompleted, &c.perfectScores, &c.streakDays)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return c, fmt.Errorf("failed to read user stats: %w", err)
	}

	err = tx.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE p.rarity = 5)
		FROM owned_philosophers o
		JOIN philosophers p ON p.id = o.philosopher_id
		WHERE o.user_id = $1
	`, userID).Scan(&c.collectionCount, &c.legendaryCount)
	if err != nil {
		return c, fmt.Errorf("failed to count collection: %w", err)
	}

	var completedLessons []string
	err = tx.QueryRow(ctx, `
		SELECT level, completed_lessons FROM user_progressions WHERE user_id = $1
	`, userID).Scan(&c.playerLevel, &completedLessons)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return c, fmt.Errorf("failed to read progression: %w", err)
		}
		c.playerLevel = 1
	}
	c.lessonsCompleted = len(completedLessons)

	return c, nil
}

// applyProgress upserts the progress row and reports whether this call
// transitioned it to completed. The WHERE completed = false guard makes the
// transition happen exactly once even under concurrent evaluation. The target
// is rewritten from the current definition so threshold changes reach rows
// written against an older catalog.
// Speedrun criteria invert the comparison: the reported time must come in at
// or under the target, and the best (lowest) time is kept.
func (s *AchievementService) applyProgress(ctx context.Context, tx pgx.Tx, userID uuid.UUID, def *achievement.Achievement, current, target int) (bool, error) {
	keepValue := `GREATEST(user_achievements.current_value, EXCLUDED.current_value)`
	met := current >= target
	if def.Criteria.Type == achievement.CriteriaLessonSpeedrun {
		keepValue = `CASE WHEN EXCLUDED.current_value = 0 THEN user_achievements.current_value
		             WHEN user_achievements.current_value = 0 THEN EXCLUDED.current_value
		             ELSE LEAST(user_achievements.current_value, EXCLUDED.current_value) END`
		met = current > 0 && current <= target
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO user_achievements (id, user_id, achievement_id, current_value, target_value, completed, viewed)
		VALUES ($1, $2, $3, $4, $5, false, false)
		ON CONFLICT (user_id, achievement_id) DO UPDATE
		SET current_value = `+keepValue+`,
		    target_value = EXCLUDED.target_value
		WHERE user_achievements.completed = false
	`, uuid.New(), userID, def.ID, current, target)
	if err != nil {
		return false, fmt.Errorf("failed to upsert achievement progress: %w", err)
	}

	if !met {
		return false, nil
	}

	result, err := tx.Exec(ctx, `
		UPDATE user_achievements
		SET completed = true, unlocked_at = $1
		WHERE user_id = $2 AND achievement_id = $3 AND completed = false
	`, time.Now(), userID, def.ID)
	if err != nil {
		return false, fmt.Errorf("failed to complete achievement: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// grantReward credits the achievement's experience and tickets. Reward
// experience can push the user over a level threshold, so the stored level is
// recomputed from the curve; level rewards are not granted here to keep the
// reward chain from recursing.
func (s *AchievementService) grantReward(ctx context.Context, tx pgx.Tx, userID uuid.UUID, def *achievement.Achievement) error {
	if def.RewardGachaTickets > 0 {
		if _, err := lockUserStats(ctx, tx, userID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			UPDATE user_stats SET gacha_tickets = gacha_tickets + $1 WHERE user_id = $2
		`, def.RewardGachaTickets, userID)
		if err != nil {
			return fmt.Errorf("failed to grant achievement tickets: %w", err)
		}
	}

	if def.RewardExperience > 0 {
		var experience int
		err := tx.QueryRow(ctx, `
			UPDATE user_progressions SET experience = experience + $1, updated_at = $2
			WHERE user_id = $3
			RETURNING experience
		`, def.RewardExperience, time.Now(), userID).Scan(&experience)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("failed to grant achievement experience: %w", err)
		}

		_, err = tx.Exec(ctx, `
			UPDATE user_progressions SET level = $1 WHERE user_id = $2
		`, progression.LevelForExperience(experience), userID)
		if err != nil {
			return fmt.Errorf("failed to recompute level: %w", err)
		}
	}
	return nil
}

// UpdateAchievementProgress bumps a single criteria counter directly, for
// event-shaped criteria that are reported rather than derived (speedruns,
// debate outcomes).
func (s *AchievementService) UpdateAchievementProgress(ctx context.Context, clerkID string, criteriaType achievement.CriteriaType, value int) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	userID, err := resolveUserID(ctx, tx, clerkID)
	if err != nil {
		return err
	}

	for _, def := range s.definitions {
		if def.Criteria.Type != criteriaType {
			continue
		}
		completed, err := s.applyProgress(ctx, tx, userID, def, value, def.Criteria.Target())
		if err != nil {
			return err
		}
		if completed {
			if err := s.grantReward(ctx, tx, userID, def); err != nil {
				return err
			}
			middleware.RecordAchievementsUnlocked(1)
		}
	}

	return tx.Commit(ctx)
}

// GetAchievements lists every definition joined with the caller's progress.
// Definitions the user has never touched appear with zero progress.
func (s *AchievementService) GetAchievements(ctx context.Context, clerkID string) ([]*achievement.WithProgress, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	userID, err := resolveUserID(ctx, tx, clerkID)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT achievement_id, current_value, target_value, completed, unlocked_at
		FROM user_achievements WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch achievement progress: %w", err)
	}
	defer rows.Close()

	type row struct {
		current    int
		target     int
		completed  bool
		unlockedAt *time.Time
	}
	progressByID := make(map[string]row)
	for rows.Next() {
		var id string
		var r row
		if err := rows.Scan(&id, &r.current, &r.target, &r.completed, &r.unlockedAt); err != nil {
			return nil, fmt.Errorf("failed to scan achievement progress: %w", err)
		}
		progressByID[id] = r
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	list := make([]*achievement.WithProgress, 0, len(s.definitions))
	for _, def := range s.definitions {
		wp := &achievement.WithProgress{
			Achievement: *def,
			TargetValue: def.Criteria.Target(),
		}
		if r, ok := progressByID[def.ID]; ok {
			wp.CurrentValue = r.current
			wp.TargetValue = r.target
			wp.Completed = r.completed
			wp.UnlockedAt = r.unlockedAt
		}
		list = append(list, wp)
	}
	return list, nil
}

// CountUnlocked reports how many achievements the user has completed, for
// the progression summary panel.
func (s *AchievementService) CountUnlocked(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM user_achievements WHERE user_id = $1 AND completed = true
	`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count unlocked achievements: %w", err)
	}
	return n, nil
}

// MarkViewed flags unlocked achievements as seen so clients stop surfacing
// them as new.
func (s *AchievementService) MarkViewed(ctx context.Context, clerkID string, achievementIDs []string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	userID, err := resolveUserID(ctx, tx, clerkID)
	if err != nil {
		return err
	}

	ids, err := json.Marshal(achievementIDs)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		UPDATE user_achievements SET viewed = true
		WHERE user_id = $1 AND achievement_id IN (SELECT jsonb_array_elements_text($2::jsonb))
	`, userID, ids)
	if err != nil {
		return fmt.Errorf("failed to mark achievements viewed: %w", err)
	}

	return tx.Commit(ctx)
}
