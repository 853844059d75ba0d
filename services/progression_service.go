package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"critiQuestAPI/internal/achievement"
	"critiQuestAPI/internal/progression"
	"critiQuestAPI/internal/stats"
	"critiQuestAPI/middleware"
	"critiQuestAPI/utils"
)

// ProgressionService owns the user level curve and every path that awards
// experience: quizzes, lessons, and direct grants. Each path commits its
// counter updates, the experience write, and the level rewards in one
// transaction; achievement evaluation runs afterwards in its own transaction
// so a failure there never rolls back the award.
type ProgressionService struct {
	db            *pgxpool.Pool
	achievements  *AchievementService
	notifications *NotificationService
}

func NewProgressionService(db *pgxpool.Pool, achievements *AchievementService) *ProgressionService {
	return &ProgressionService{db: db, achievements: achievements}
}

// SetNotificationService enables level-up and achievement notifications.
// Without one, awards still work; nothing is announced.
func (s *ProgressionService) SetNotificationService(n *NotificationService) {
	s.notifications = n
}

// AddExperience awards experience from the named source and applies level
// rewards. Zero is a valid no-op award. Level rewards granting bonus
// experience can themselves cross further thresholds, so rewards are applied
// to a fixpoint.
func (s *ProgressionService) AddExperience(ctx context.Context, clerkID string, amount int, source string) (*progression.Result, error) {
	if amount < 0 {
		return nil, ErrInvalidAmount
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	userID, err := resolveUserID(ctx, tx, clerkID)
	if err != nil {
		return nil, err
	}

	result, ticketBonus, err := s.addExperienceTx(ctx, tx, userID, amount, source)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit experience award: %w", err)
	}

	s.afterExperienceCommit(ctx, clerkID, userID, result, ticketBonus)
	return result, nil
}

// addExperienceTx applies an award inside the caller's transaction so the
// completion paths can bundle their counter updates with the experience write.
// Lock order is user_stats before user_progressions; every path that touches
// both tables takes the locks in that order.
func (s *ProgressionService) addExperienceTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int, source string) (*progression.Result, int, error) {
	if _, err := lockUserStats(ctx, tx, userID); err != nil {
		return nil, 0, err
	}
	prog, err := lockProgression(ctx, tx, userID)
	if err != nil {
		return nil, 0, err
	}

	result := &progression.Result{
		ExperienceGained: amount,
		CurrentLevel:     prog.Level,
		Source:           source,
	}

	prog.Experience += amount
	newLevel := progression.LevelForExperience(prog.Experience)

	// Level rewards can grant bonus experience, which can cross further
	// thresholds. Walk until the level stabilizes; rewards are granted once
	// per crossed level.
	var ticketBonus int
	for newLevel > prog.Level {
		rewards := progression.RewardsBetween(prog.Level+1, newLevel)
		prog.Level = newLevel
		for _, r := range rewards {
			ticketBonus += r.GachaTickets
			prog.Experience += r.Experience
			result.LevelRewards = append(result.LevelRewards, r)
		}
		newLevel = progression.LevelForExperience(prog.Experience)
	}

	_, err = tx.Exec(ctx, `
		UPDATE user_progressions SET level = $1, experience = $2, updated_at = $3
		WHERE user_id = $4
	`, prog.Level, prog.Experience, time.Now(), userID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to update progression: %w", err)
	}

	if ticketBonus > 0 {
		_, err = tx.Exec(ctx, `
			UPDATE user_stats SET gacha_tickets = gacha_tickets + $1 WHERE user_id = $2
		`, ticketBonus, userID)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to grant level reward tickets: %w", err)
		}
	}

	result.TotalExperience = prog.Experience
	if prog.Level > result.CurrentLevel {
		result.LeveledUp = true
		result.NewLevel = prog.Level
	}
	result.CurrentLevel = prog.Level

	return result, ticketBonus, nil
}

// afterExperienceCommit runs the effects that must never roll back an award:
// metrics, notifications, and the achievement pass in its own transaction.
func (s *ProgressionService) afterExperienceCommit(ctx context.Context, clerkID string, userID uuid.UUID, result *progression.Result, ticketBonus int) {
	if result.LeveledUp {
		middleware.RecordLevelUp()
		if s.notifications != nil {
			s.notifications.NotifyLevelUp(ctx, userID, result.NewLevel, ticketBonus)
		}
	}

	// The award is durable; a failed achievement pass only costs this
	// response its new_achievements list. The next award re-evaluates.
	unlocked, err := s.achievements.CheckAchievements(ctx, clerkID)
	if err != nil {
		log.Printf("achievement check failed for user %s: %v", clerkID, err)
		return
	}
	result.NewAchievements = unlocked
	if s.notifications != nil && len(unlocked) > 0 {
		s.notifications.NotifyAchievementsUnlocked(ctx, userID, unlocked)
	}
}

// lockProgression takes the per-user progression row lock, creating a fresh
// level-1 record when missing. Same lazy-create shape as lockUserStats.
func lockProgression(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*progression.UserProgression, error) {
	prog := &progression.UserProgression{}
	query := `
	SELECT id, user_id, level, experience, current_stage, completed_lessons, unlocked_philosophers, updated_at
	FROM user_progressions WHERE user_id = $1 FOR UPDATE
	`
	err := tx.QueryRow(ctx, query, userID).Scan(
		&prog.ID, &prog.UserID, &prog.Level, &prog.Experience, &prog.CurrentStage,
		&prog.CompletedLessons, &prog.UnlockedPhilosophers, &prog.UpdatedAt,
	)
	if err == nil {
		return prog, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to lock progression: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO user_progressions (id, user_id, level, experience, current_stage,
		                               completed_lessons, unlocked_philosophers, updated_at)
		VALUES ($1, $2, 1, 0, $3, '[]', '[]', $4)
		ON CONFLICT (user_id) DO NOTHING
	`, uuid.New(), userID, progression.DefaultStage, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to create progression: %w", err)
	}

	err = tx.QueryRow(ctx, query, userID).Scan(
		&prog.ID, &prog.UserID, &prog.Level, &prog.Experience, &prog.CurrentStage,
		&prog.CompletedLessons, &prog.UnlockedPhilosophers, &prog.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to lock progression after create: %w", err)
	}
	return prog, nil
}

// QuizResult is the scored outcome reported by the quiz frontend.
type QuizResult struct {
	QuizID       string `json:"quiz_id"`
	EarnedPoints int    `json:"earned_points"`
	TotalPoints  int    `json:"total_points"`
	Passed       bool   `json:"passed"`
	Perfect      bool   `json:"perfect"`
	TimeSpent    int    `json:"time_spent"` // seconds
}

// QuizCompletionResult is the receipt for a completed quiz.
type QuizCompletionResult struct {
	Experience *progression.Result           `json:"experience"`
	Breakdown  utils.QuizExperienceBreakdown `json:"experience_breakdown"`
}

// CompleteQuiz records a scored quiz: bumps the quiz counters, computes the
// experience award from the score, and applies both in one transaction so a
// counted quiz can never commit without its experience.
func (s *ProgressionService) CompleteQuiz(ctx context.Context, clerkID string, quiz *QuizResult) (*QuizCompletionResult, error) {
	breakdown := utils.QuizExperience(quiz.EarnedPoints, quiz.TotalPoints, quiz.Passed, quiz.Perfect)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	userID, err := resolveUserID(ctx, tx, clerkID)
	if err != nil {
		return nil, err
	}

	us, err := lockUserStats(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	perfectInc := 0
	if quiz.Perfect {
		perfectInc = 1
	}
	streak, lastUpdate := advanceStreak(us)

	_, err = tx.Exec(ctx, `
		UPDATE user_stats
		SET quizzes_completed = quizzes_completed + 1,
		    perfect_scores = perfect_scores + $1,
		    total_time_spent = total_time_spent + $2,
		    streak_days = $3,
		    last_streak_update = $4
		WHERE user_id = $5
	`, perfectInc, quiz.TimeSpent, streak, lastUpdate, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to update quiz stats: %w", err)
	}

	result, ticketBonus, err := s.addExperienceTx(ctx, tx, userID, breakdown.Total(), "quiz_completion")
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit quiz: %w", err)
	}

	s.afterExperienceCommit(ctx, clerkID, userID, result, ticketBonus)
	return &QuizCompletionResult{Experience: result, Breakdown: breakdown}, nil
}

// advanceStreak applies the daily-streak rule to a locked stats row: same
// day keeps the streak, next day extends it, any gap resets to 1.
func advanceStreak(us *stats.UserStats) (int, time.Time) {
	now := time.Now().UTC()
	today := now.Truncate(24 * time.Hour)
	last := us.LastStreakUpdate.UTC().Truncate(24 * time.Hour)

	// A lazily created row carries today's timestamp with no streak yet.
	if us.StreakDays == 0 {
		return 1, now
	}

	switch {
	case last.Equal(today):
		return us.StreakDays, us.LastStreakUpdate
	case last.Equal(today.AddDate(0, 0, -1)):
		return us.StreakDays + 1, now
	default:
		return 1, now
	}
}

// LessonResult is the completion report for a lesson. Reward values are the
// content service's per-lesson numbers, carried in the report.
type LessonResult struct {
	LessonID  string `json:"lesson_id"`
	Stage     string `json:"stage,omitempty"`
	RewardXP  int    `json:"reward_xp"`
	Coins     int    `json:"coins"` // converted 1:1 to gacha tickets
	TimeSpent int    `json:"time_spent"`
}

// LessonCompletionResult is the receipt for a completed lesson.
type LessonCompletionResult struct {
	Experience       *progression.Result `json:"experience"`
	AlreadyCompleted bool                `json:"already_completed"`
	TicketsGranted   int                 `json:"tickets_granted"`
}

// CompleteLesson marks a lesson done and credits the lesson's reward values
// from the report. Repeat completions award no experience or tickets but
// still count toward time spent.
func (s *ProgressionService) CompleteLesson(ctx context.Context, clerkID string, lesson *LessonResult) (*LessonCompletionResult, error) {
	if lesson.RewardXP < 0 {
		return nil, ErrInvalidAmount
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	userID, err := resolveUserID(ctx, tx, clerkID)
	if err != nil {
		return nil, err
	}

	if _, err := lockUserStats(ctx, tx, userID); err != nil {
		return nil, err
	}
	prog, err := lockProgression(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	already := false
	for _, id := range prog.CompletedLessons {
		if id == lesson.LessonID {
			already = true
			break
		}
	}

	if !already {
		prog.CompletedLessons = append(prog.CompletedLessons, lesson.LessonID)
		stage := prog.CurrentStage
		if lesson.Stage != "" {
			stage = lesson.Stage
		}
		_, err = tx.Exec(ctx, `
			UPDATE user_progressions
			SET completed_lessons = $1, current_stage = $2, updated_at = $3
			WHERE user_id = $4
		`, prog.CompletedLessons, stage, time.Now(), userID)
		if err != nil {
			return nil, fmt.Errorf("failed to record lesson: %w", err)
		}
	}

	tickets := 0
	if !already && lesson.Coins > 0 {
		tickets = lesson.Coins
	}
	_, err = tx.Exec(ctx, `
		UPDATE user_stats
		SET total_time_spent = total_time_spent + $1,
		    gacha_tickets = gacha_tickets + $2
		WHERE user_id = $3
	`, lesson.TimeSpent, tickets, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to update lesson stats: %w", err)
	}

	amount := 0
	if !already {
		amount = lesson.RewardXP
	}
	result, ticketBonus, err := s.addExperienceTx(ctx, tx, userID, amount, "lesson_completion")
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit lesson: %w", err)
	}

	s.afterExperienceCommit(ctx, clerkID, userID, result, ticketBonus)

	// Speedrun criteria want the reported time, not a derived counter.
	if !already && lesson.TimeSpent > 0 {
		err := s.achievements.UpdateAchievementProgress(ctx, clerkID, achievement.CriteriaLessonSpeedrun, lesson.TimeSpent)
		if err != nil {
			log.Printf("speedrun progress update failed for user %s: %v", clerkID, err)
		}
	}

	return &LessonCompletionResult{
		Experience:       result,
		AlreadyCompleted: already,
		TicketsGranted:   tickets,
	}, nil
}

// RecalculateLevel rederives the stored level from total experience. A
// repair path for records written before the curve was fixed.
func (s *ProgressionService) RecalculateLevel(ctx context.Context, clerkID string) (*progression.UserProgression, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	userID, err := resolveUserID(ctx, tx, clerkID)
	if err != nil {
		return nil, err
	}

	prog, err := lockProgression(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	correct := progression.LevelForExperience(prog.Experience)
	if correct != prog.Level {
		_, err = tx.Exec(ctx, `
			UPDATE user_progressions SET level = $1, updated_at = $2 WHERE user_id = $3
		`, correct, time.Now(), userID)
		if err != nil {
			return nil, fmt.Errorf("failed to recalculate level: %w", err)
		}
		prog.Level = correct
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return prog, nil
}

// GetProgressionSummary assembles the profile panel read model.
func (s *ProgressionService) GetProgressionSummary(ctx context.Context, clerkID string) (*progression.Summary, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	userID, err := resolveUserID(ctx, tx, clerkID)
	if err != nil {
		return nil, err
	}

	summary := &progression.Summary{CurrentLevel: 1}
	err = tx.QueryRow(ctx, `
		SELECT level, experience FROM user_progressions WHERE user_id = $1
	`, userID).Scan(&summary.CurrentLevel, &summary.CurrentExperience)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to read progression: %w", err)
	}

	err = tx.QueryRow(ctx, `
		SELECT quizzes_completed, perfect_scores, streak_days
		FROM user_stats WHERE user_id = $1
	`, userID).Scan(&summary.QuizzesCompleted, &summary.PerfectScores, &summary.StreakDays)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to read user stats: %w", err)
	}

	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM user_achievements WHERE user_id = $1 AND completed = true
	`, userID).Scan(&summary.UnlockedAchievements)
	if err != nil {
		return nil, fmt.Errorf("failed to count achievements: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	// Thresholds bracket the current level: reaching level L takes
	// (L-1)^2*100 total XP, the next level starts at L^2*100.
	summary.ExperienceForCurrentLevel = progression.ExperienceForLevel(summary.CurrentLevel - 1)
	summary.ExperienceForNextLevel = progression.ExperienceForLevel(summary.CurrentLevel)
	summary.ExperienceToNextLevel = summary.ExperienceForNextLevel - summary.CurrentExperience
	if summary.ExperienceToNextLevel < 0 {
		summary.ExperienceToNextLevel = 0
	}
	summary.TotalAchievements = s.achievements.TotalDefinitions()

	return summary, nil
}
