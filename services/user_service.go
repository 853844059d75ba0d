package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"critiQuestAPI/internal/stats"
	"critiQuestAPI/internal/user"
)

type UserService struct {
	db *pgxpool.Pool
}

func NewUserService(db *pgxpool.Pool) *UserService {
	return &UserService{db: db}
}

func (s *UserService) CreateUser(ctx context.Context, req *user.CreateUserRequest) (*user.User, error) {
	u := &user.User{
		ID:          uuid.New(),
		ClerkID:     req.ClerkID,
		Email:       req.Email,
		Username:    req.Username,
		DisplayName: req.DisplayName,
		ImageURL:    req.ImageURL,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	query := `
	INSERT INTO users (id, clerk_id, email, username, display_name, image_url, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (clerk_id) DO NOTHING
	`
	_, err := s.db.Exec(ctx, query,
		u.ID, u.ClerkID, u.Email, u.Username, u.DisplayName, u.ImageURL, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return u, nil
}

func (s *UserService) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	u := &user.User{}
	query := `
	SELECT id, clerk_id, email, username, display_name, image_url, created_at, updated_at
	FROM users WHERE clerk_id = $1
	`
	err := s.db.QueryRow(ctx, query, clerkID).Scan(
		&u.ID, &u.ClerkID, &u.Email, &u.Username, &u.DisplayName, &u.ImageURL, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (s *UserService) DeleteUserByClerkID(ctx context.Context, clerkID string) error {
	result, err := s.db.Exec(ctx, `DELETE FROM users WHERE clerk_id = $1`, clerkID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// AddTickets credits summon currency from an external trigger (admin grant,
// promotional reward). The stats row is created with the starting grant when
// missing.
func (s *UserService) AddTickets(ctx context.Context, clerkID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: ticket grant must be positive", ErrInvalidAmount)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	userID, err := resolveUserID(ctx, tx, clerkID)
	if err != nil {
		return 0, err
	}

	if _, err := lockUserStats(ctx, tx, userID); err != nil {
		return 0, err
	}

	var balance int
	err = tx.QueryRow(ctx, `
		UPDATE user_stats SET gacha_tickets = gacha_tickets + $1 WHERE user_id = $2
		RETURNING gacha_tickets
	`, amount, userID).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("failed to add tickets: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return balance, nil
}

// resolveUserID maps the verified external identifier to the internal user
// id inside a transaction.
func resolveUserID(ctx context.Context, tx pgx.Tx, clerkID string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := tx.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrUserNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	return userID, nil
}

// lockUserStats takes the per-user row lock that serializes every ticket
// balance mutation, creating the row with the starting grant when missing.
// Concurrent requests for the same user queue on this lock, so the
// read-validate-decrement sequence never sees a stale balance.
func lockUserStats(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*stats.UserStats, error) {
	us := &stats.UserStats{}
	query := `
	SELECT id, user_id, total_time_spent, streak_days, last_streak_update,
	       quizzes_completed, perfect_scores, gacha_tickets
	FROM user_stats WHERE user_id = $1 FOR UPDATE
	`
	err := tx.QueryRow(ctx, query, userID).Scan(
		&us.ID, &us.UserID, &us.TotalTimeSpent, &us.StreakDays, &us.LastStreakUpdate,
		&us.QuizzesCompleted, &us.PerfectScores, &us.GachaTickets,
	)
	if err == nil {
		return us, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to lock user stats: %w", err)
	}

	// Lazy creation with the starting grant. ON CONFLICT covers the race
	// where another request creates the row first; re-selecting afterwards
	// always leaves us holding the lock.
	_, err = tx.Exec(ctx, `
		INSERT INTO user_stats (id, user_id, total_time_spent, streak_days, last_streak_update,
		                        quizzes_completed, perfect_scores, gacha_tickets)
		VALUES ($1, $2, 0, 0, $3, 0, 0, $4)
		ON CONFLICT (user_id) DO NOTHING
	`, uuid.New(), userID, time.Now(), stats.StartingGachaTickets)
	if err != nil {
		return nil, fmt.Errorf("failed to create user stats: %w", err)
	}

	err = tx.QueryRow(ctx, query, userID).Scan(
		&us.ID, &us.UserID, &us.TotalTimeSpent, &us.StreakDays, &us.LastStreakUpdate,
		&us.QuizzesCompleted, &us.PerfectScores, &us.GachaTickets,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to lock user stats after create: %w", err)
	}
	return us, nil
}
