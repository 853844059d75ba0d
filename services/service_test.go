package services

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"critiQuestAPI/internal/stats"
)

// setupTestDB connects to the database named by TEST_DATABASE_URL (falling
// back to DATABASE_URL) and skips the test when neither is set, so the
// service tests only run against a provisioned schema.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	_ = godotenv.Load("../.env")

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database test")
	}

	db, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	t.Cleanup(db.Close)

	if err := NewSeedService(db).SeedAll(context.Background()); err != nil {
		t.Fatalf("failed to seed test database: %v", err)
	}
	return db
}

// createTestUser inserts a throwaway user and registers cleanup of every row
// keyed to it.
func createTestUser(t *testing.T, db *pgxpool.Pool) (clerkID string, userID uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	userID = uuid.New()
	clerkID = fmt.Sprintf("test_clerk_%d", time.Now().UnixNano())

	_, err := db.Exec(ctx, `
		INSERT INTO users (id, clerk_id, email, username, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
	`, userID, clerkID, clerkID+"@example.com", clerkID)
	if err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	t.Cleanup(func() {
		for _, table := range []string{
			"user_achievements", "owned_philosophers", "user_progressions",
			"user_stats", "notifications", "device_tokens",
		} {
			db.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE user_id = $1", table), userID)
		}
		db.Exec(ctx, "DELETE FROM users WHERE id = $1", userID)
	})

	return clerkID, userID
}

// seedStatsRow commits a stats row with the starting grant, outside any
// transaction under test.
func seedStatsRow(t *testing.T, db *pgxpool.Pool, userID uuid.UUID) {
	t.Helper()
	_, err := db.Exec(context.Background(), `
		INSERT INTO user_stats (id, user_id, total_time_spent, streak_days, last_streak_update,
		                        quizzes_completed, perfect_scores, gacha_tickets)
		VALUES ($1, $2, 0, 0, NOW(), 0, 0, $3)
		ON CONFLICT (user_id) DO NOTHING
	`, uuid.New(), userID, stats.StartingGachaTickets)
	if err != nil {
		t.Fatalf("failed to seed stats row: %v", err)
	}
}

func ticketBalance(t *testing.T, db *pgxpool.Pool, userID uuid.UUID) int {
	t.Helper()
	var balance int
	err := db.QueryRow(context.Background(),
		`SELECT gacha_tickets FROM user_stats WHERE user_id = $1`, userID).Scan(&balance)
	if err != nil {
		t.Fatalf("failed to read ticket balance: %v", err)
	}
	return balance
}
