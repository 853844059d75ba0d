package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"critiQuestAPI/internal/stats"
)

func TestAddExperienceRejectsNegative(t *testing.T) {
	db := setupTestDB(t)

	ach, err := NewAchievementService(context.Background(), db)
	if err != nil {
		t.Fatalf("failed to load achievements: %v", err)
	}
	svc := NewProgressionService(db, ach)
	clerkID, _ := createTestUser(t, db)

	_, err = svc.AddExperience(context.Background(), clerkID, -10, "test")
	if !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("err = %v, want ErrInvalidAmount", err)
	}
}

func TestAddExperienceZeroIsNoOp(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	ach, err := NewAchievementService(ctx, db)
	if err != nil {
		t.Fatalf("failed to load achievements: %v", err)
	}
	svc := NewProgressionService(db, ach)
	clerkID, _ := createTestUser(t, db)

	result, err := svc.AddExperience(ctx, clerkID, 0, "test")
	if err != nil {
		t.Fatalf("zero award failed: %v", err)
	}
	if result.ExperienceGained != 0 || result.TotalExperience != 0 {
		t.Errorf("zero award changed experience: %+v", result)
	}
	if result.LeveledUp || result.CurrentLevel != 1 {
		t.Errorf("zero award changed level: %+v", result)
	}
}

func TestAddExperienceLevelsUpAndGrantsRewards(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	ach, err := NewAchievementService(ctx, db)
	if err != nil {
		t.Fatalf("failed to load achievements: %v", err)
	}
	svc := NewProgressionService(db, ach)
	clerkID, userID := createTestUser(t, db)
	seedStatsRow(t, db, userID)

	// 450 XP crosses the level 2 (100) and level 3 (400) boundaries.
	result, err := svc.AddExperience(ctx, clerkID, 450, "test")
	if err != nil {
		t.Fatalf("award failed: %v", err)
	}

	if !result.LeveledUp || result.NewLevel != 3 {
		t.Errorf("result = %+v, want level up to 3", result)
	}
	if len(result.LevelRewards) != 2 {
		t.Fatalf("got %d level rewards, want 2 (levels 2 and 3)", len(result.LevelRewards))
	}

	// 2 + 3 tickets on top of the starting grant
	want := stats.StartingGachaTickets + 5
	if got := ticketBalance(t, db, userID); got != want {
		t.Errorf("ticket balance = %d, want %d", got, want)
	}
}

func TestAddExperienceRewardBonusCascades(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	ach, err := NewAchievementService(ctx, db)
	if err != nil {
		t.Fatalf("failed to load achievements: %v", err)
	}
	svc := NewProgressionService(db, ach)
	clerkID, _ := createTestUser(t, db)

	// 2490 XP reaches level 5 (1600 <= exp < 2500); the level 5 reward adds
	// 50 XP, pushing the total to 2540 and across the level 6 boundary.
	result, err := svc.AddExperience(ctx, clerkID, 2490, "test")
	if err != nil {
		t.Fatalf("award failed: %v", err)
	}

	if result.NewLevel != 6 {
		t.Errorf("level = %d, want 6 after reward cascade", result.NewLevel)
	}
	if result.TotalExperience != 2540 {
		t.Errorf("total experience = %d, want 2540", result.TotalExperience)
	}
}

func TestRecalculateLevelRepairsDrift(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	ach, err := NewAchievementService(ctx, db)
	if err != nil {
		t.Fatalf("failed to load achievements: %v", err)
	}
	svc := NewProgressionService(db, ach)
	clerkID, userID := createTestUser(t, db)

	if _, err := svc.AddExperience(ctx, clerkID, 450, "test"); err != nil {
		t.Fatalf("award failed: %v", err)
	}

	// Corrupt the stored level, then repair it.
	if _, err := db.Exec(ctx, `UPDATE user_progressions SET level = 99 WHERE user_id = $1`, userID); err != nil {
		t.Fatalf("failed to corrupt level: %v", err)
	}

	prog, err := svc.RecalculateLevel(ctx, clerkID)
	if err != nil {
		t.Fatalf("recalculate failed: %v", err)
	}
	if prog.Level != 3 {
		t.Errorf("recalculated level = %d, want 3", prog.Level)
	}
}

func TestGetProgressionSummary(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	ach, err := NewAchievementService(ctx, db)
	if err != nil {
		t.Fatalf("failed to load achievements: %v", err)
	}
	svc := NewProgressionService(db, ach)
	clerkID, _ := createTestUser(t, db)

	if _, err := svc.AddExperience(ctx, clerkID, 250, "test"); err != nil {
		t.Fatalf("award failed: %v", err)
	}

	summary, err := svc.GetProgressionSummary(ctx, clerkID)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}

	if summary.CurrentLevel != 2 {
		t.Errorf("level = %d, want 2 at 250 experience", summary.CurrentLevel)
	}
	if summary.ExperienceForCurrentLevel != 100 || summary.ExperienceForNextLevel != 400 {
		t.Errorf("thresholds = %d/%d, want 100/400",
			summary.ExperienceForCurrentLevel, summary.ExperienceForNextLevel)
	}
	if summary.ExperienceToNextLevel != 150 {
		t.Errorf("to next level = %d, want 150", summary.ExperienceToNextLevel)
	}
	if summary.TotalAchievements == 0 {
		t.Error("summary should report the seeded achievement count")
	}
}

func TestCheckAchievementsIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	ach, err := NewAchievementService(ctx, db)
	if err != nil {
		t.Fatalf("failed to load achievements: %v", err)
	}
	clerkID, userID := createTestUser(t, db)
	seedStatsRow(t, db, userID)

	// A perfect score satisfies first-perfect-score.
	_, err = db.Exec(ctx, `UPDATE user_stats SET perfect_scores = 1, quizzes_completed = 1 WHERE user_id = $1`, userID)
	if err != nil {
		t.Fatalf("failed to bump stats: %v", err)
	}

	first, err := ach.CheckAchievements(ctx, clerkID)
	if err != nil {
		t.Fatalf("first check failed: %v", err)
	}
	found := false
	for _, a := range first {
		if a.ID == "first-perfect-score" {
			found = true
		}
	}
	if !found {
		t.Fatalf("first check unlocked %v, want first-perfect-score", first)
	}

	balanceAfterFirst := ticketBalance(t, db, userID)

	second, err := ach.CheckAchievements(ctx, clerkID)
	if err != nil {
		t.Fatalf("second check failed: %v", err)
	}
	for _, a := range second {
		if a.ID == "first-perfect-score" {
			t.Error("achievement completed twice")
		}
	}
	if got := ticketBalance(t, db, userID); got != balanceAfterFirst {
		t.Errorf("second check changed balance: %d -> %d", balanceAfterFirst, got)
	}
}

func TestCompleteQuizCommitsCountersWithExperience(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	ach, err := NewAchievementService(ctx, db)
	if err != nil {
		t.Fatalf("failed to load achievements: %v", err)
	}
	svc := NewProgressionService(db, ach)
	clerkID, userID := createTestUser(t, db)

	// 20 base + 8*50/10 points + 10 pass = 70
	result, err := svc.CompleteQuiz(ctx, clerkID, &QuizResult{
		QuizID:       "logic-basics",
		EarnedPoints: 8,
		TotalPoints:  10,
		Passed:       true,
		TimeSpent:    120,
	})
	if err != nil {
		t.Fatalf("quiz completion failed: %v", err)
	}
	if got := result.Breakdown.Total(); got != 70 {
		t.Errorf("experience breakdown total = %d, want 70", got)
	}

	// The counter bump and the award land in the same commit; neither can
	// exist without the other.
	var quizzes, experience int
	err = db.QueryRow(ctx, `SELECT quizzes_completed FROM user_stats WHERE user_id = $1`, userID).Scan(&quizzes)
	if err != nil {
		t.Fatalf("failed to read quiz counter: %v", err)
	}
	err = db.QueryRow(ctx, `SELECT experience FROM user_progressions WHERE user_id = $1`, userID).Scan(&experience)
	if err != nil {
		t.Fatalf("failed to read experience: %v", err)
	}
	if quizzes != 1 || experience != 70 {
		t.Errorf("committed quizzes/experience = %d/%d, want 1/70", quizzes, experience)
	}
}

func TestCompleteLessonAwardsReportedRewards(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	ach, err := NewAchievementService(ctx, db)
	if err != nil {
		t.Fatalf("failed to load achievements: %v", err)
	}
	svc := NewProgressionService(db, ach)
	clerkID, userID := createTestUser(t, db)
	seedStatsRow(t, db, userID)

	lesson := &LessonResult{
		LessonID:  "intro-to-ethics",
		Stage:     "ancient-philosophy",
		RewardXP:  75,
		Coins:     2,
		TimeSpent: 300,
	}

	first, err := svc.CompleteLesson(ctx, clerkID, lesson)
	if err != nil {
		t.Fatalf("lesson completion failed: %v", err)
	}
	if first.AlreadyCompleted {
		t.Error("first completion reported as repeat")
	}
	if first.Experience.ExperienceGained != 75 {
		t.Errorf("experience gained = %d, want the reported 75", first.Experience.ExperienceGained)
	}
	if first.TicketsGranted != 2 {
		t.Errorf("tickets granted = %d, want the reported 2", first.TicketsGranted)
	}

	// Repeat completions award nothing but still count the time.
	second, err := svc.CompleteLesson(ctx, clerkID, lesson)
	if err != nil {
		t.Fatalf("repeat completion failed: %v", err)
	}
	if !second.AlreadyCompleted {
		t.Error("repeat completion not detected")
	}
	if second.Experience.ExperienceGained != 0 || second.TicketsGranted != 0 {
		t.Errorf("repeat awarded %d xp / %d tickets, want 0/0",
			second.Experience.ExperienceGained, second.TicketsGranted)
	}

	want := stats.StartingGachaTickets + 2
	if got := ticketBalance(t, db, userID); got != want {
		t.Errorf("ticket balance = %d, want %d", got, want)
	}
}

func TestCompleteLessonRejectsNegativeReward(t *testing.T) {
	db := setupTestDB(t)

	ach, err := NewAchievementService(context.Background(), db)
	if err != nil {
		t.Fatalf("failed to load achievements: %v", err)
	}
	svc := NewProgressionService(db, ach)
	clerkID, _ := createTestUser(t, db)

	_, err = svc.CompleteLesson(context.Background(), clerkID, &LessonResult{
		LessonID: "intro-to-ethics",
		RewardXP: -5,
	})
	if !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("err = %v, want ErrInvalidAmount", err)
	}
}

func TestCheckAchievementsRefreshesStaleTargets(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	ach, err := NewAchievementService(ctx, db)
	if err != nil {
		t.Fatalf("failed to load achievements: %v", err)
	}
	clerkID, userID := createTestUser(t, db)

	// A progress row written against an older threshold.
	_, err = db.Exec(ctx, `
		INSERT INTO user_achievements (id, user_id, achievement_id, current_value, target_value, completed, viewed)
		VALUES ($1, $2, 'quiz-master', 3, 5, false, false)
	`, uuid.New(), userID)
	if err != nil {
		t.Fatalf("failed to insert stale progress: %v", err)
	}

	if _, err := ach.CheckAchievements(ctx, clerkID); err != nil {
		t.Fatalf("check failed: %v", err)
	}

	var target int
	err = db.QueryRow(ctx, `
		SELECT target_value FROM user_achievements WHERE user_id = $1 AND achievement_id = 'quiz-master'
	`, userID).Scan(&target)
	if err != nil {
		t.Fatalf("failed to read target: %v", err)
	}
	if target != 10 {
		t.Errorf("target_value = %d, want 10 from the current definition", target)
	}
}

func TestConcurrentAwardsAndChecksDoNotDeadlock(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	ach, err := NewAchievementService(ctx, db)
	if err != nil {
		t.Fatalf("failed to load achievements: %v", err)
	}
	svc := NewProgressionService(db, ach)
	clerkID, userID := createTestUser(t, db)
	seedStatsRow(t, db, userID)

	// Awards lock user_stats then user_progressions; reward grants inside the
	// achievement check take the same order. Mixed concurrent traffic on one
	// user must serialize, not abort.
	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.AddExperience(ctx, clerkID, 10, "test"); err != nil {
				errs <- err
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ach.CheckAchievements(ctx, clerkID); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent call failed: %v", err)
	}
}
