package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"critiQuestAPI/internal/gacha"
	"critiQuestAPI/internal/philosopher"
	"critiQuestAPI/middleware"
)

const maxSummonBatch = 10

// GachaService runs the summon pipeline: validate ticket count, lock the
// user's balance, draw, apply new-vs-duplicate outcomes, decrement tickets
// once. Everything happens inside a single transaction so a failed summon
// leaves the balance and collection untouched.
type GachaService struct {
	db      *pgxpool.Pool
	catalog *philosopher.Catalog
	engine  *gacha.Engine
}

func NewGachaService(db *pgxpool.Pool, catalog *philosopher.Catalog) (*GachaService, error) {
	engine, err := gacha.NewEngine(gacha.DefaultWeights(), nil)
	if err != nil {
		return nil, err
	}
	return &GachaService{db: db, catalog: catalog, engine: engine}, nil
}

// PerformSummon spends ticketCount tickets on ticketCount draws and returns
// the receipt. Fails atomically with ErrInsufficientTickets when the balance
// cannot cover the batch.
func (s *GachaService) PerformSummon(ctx context.Context, clerkID string, ticketCount int) (*gacha.SummonReceipt, error) {
	if ticketCount < 1 || ticketCount > maxSummonBatch {
		return nil, ErrInvalidTicketCount
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

	us, err := lockUserStats(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if us.GachaTickets < ticketCount {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientTickets, us.GachaTickets, ticketCount)
	}

	receipt := &gacha.SummonReceipt{Results: make([]gacha.SummonResult, 0, ticketCount)}
	for i := 0; i < ticketCount; i++ {
		result, err := s.drawOne(ctx, tx, userID)
		if err != nil {
			return nil, err
		}
		receipt.Results = append(receipt.Results, *result)
		receipt.TotalExperienceGained += result.ExperienceGained
	}

	var balance int
	err = tx.QueryRow(ctx, `
		UPDATE user_stats SET gacha_tickets = gacha_tickets - $1 WHERE user_id = $2
		RETURNING gacha_tickets
	`, ticketCount, userID).Scan(&balance)
	if err != nil {
		return nil, fmt.Errorf("failed to spend tickets: %w", err)
	}
	receipt.RemainingTickets = balance

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit summon: %w", err)
	}

	for _, r := range receipt.Results {
		middleware.RecordSummon(r.Philosopher.Rarity.String(), r.IsNew)
	}
	middleware.RecordTicketsSpent(ticketCount)

	return receipt, nil
}

// drawOne rolls a rarity, picks a philosopher from that tier, and applies the
// outcome to the user's collection inside the caller's transaction.
func (s *GachaService) drawOne(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*gacha.SummonResult, error) {
	rarity := s.engine.DrawRarity()
	pool, fellBack := s.catalog.OfRarity(rarity)
	if fellBack {
		log.Printf("gacha: no %s philosophers seeded, falling back to common", rarity)
	}
	picked := pool[s.engine.PickIndex(len(pool))]

	owned := &philosopher.OwnedPhilosopher{}
	query := `
	SELECT id, user_id, philosopher_id, level, experience, duplicates,
	       current_wisdom, current_logic, current_rhetoric, current_influence, current_originality,
	       obtained_at
	FROM owned_philosophers WHERE user_id = $1 AND philosopher_id = $2 FOR UPDATE
	`
	err := tx.QueryRow(ctx, query, userID, picked.ID).Scan(
		&owned.ID, &owned.UserID, &owned.PhilosopherID, &owned.Level, &owned.Experience, &owned.Duplicates,
		&owned.CurrentWisdom, &owned.CurrentLogic, &owned.CurrentRhetoric, &owned.CurrentInfluence, &owned.CurrentOriginality,
		&owned.ObtainedAt,
	)

	switch {
	case err == nil:
		// Duplicate draw: convert to item experience on the owned row.
		expGained := gacha.DuplicateExperience[picked.Rarity]
		owned.AbsorbDuplicate(picked, expGained)

		_, err := tx.Exec(ctx, `
			UPDATE owned_philosophers
			SET level = $1, experience = $2, duplicates = $3,
			    current_wisdom = $4, current_logic = $5, current_rhetoric = $6,
			    current_influence = $7, current_originality = $8
			WHERE id = $9
		`, owned.Level, owned.Experience, owned.Duplicates,
			owned.CurrentWisdom, owned.CurrentLogic, owned.CurrentRhetoric,
			owned.CurrentInfluence, owned.CurrentOriginality, owned.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to absorb duplicate: %w", err)
		}

		return &gacha.SummonResult{
			Philosopher:      picked.Summary(),
			IsDuplicate:      true,
			ExperienceGained: expGained,
			NewLevel:         owned.Level,
		}, nil

	case errors.Is(err, pgx.ErrNoRows):
		// First time drawing this philosopher.
		row := philosopher.NewOwned(userID, picked)
		_, err := tx.Exec(ctx, `
			INSERT INTO owned_philosophers (id, user_id, philosopher_id, level, experience, duplicates,
			                                current_wisdom, current_logic, current_rhetoric,
			                                current_influence, current_originality, obtained_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, row.ID, row.UserID, row.PhilosopherID, row.Level, row.Experience, row.Duplicates,
			row.CurrentWisdom, row.CurrentLogic, row.CurrentRhetoric,
			row.CurrentInfluence, row.CurrentOriginality, row.ObtainedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to add philosopher to collection: %w", err)
		}

		return &gacha.SummonResult{
			Philosopher: picked.Summary(),
			IsNew:       true,
			NewLevel:    row.Level,
		}, nil

	default:
		return nil, fmt.Errorf("failed to check collection: %w", err)
	}
}

// GetGachaRates exposes the public weight table and duplicate conversion
// values. No user context needed.
func (s *GachaService) GetGachaRates() *gacha.RatesResponse {
	dupExp := make(map[string]int, len(gacha.DuplicateExperience))
	for r, exp := range gacha.DuplicateExperience {
		dupExp[r.String()] = exp
	}
	return &gacha.RatesResponse{
		RarityRates:         s.engine.Rates(),
		DuplicateExperience: dupExp,
	}
}
