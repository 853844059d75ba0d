package services

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"critiQuestAPI/internal/gacha"
	"critiQuestAPI/internal/philosopher"
)

// PhilosopherService owns the read-only philosopher catalog and the
// per-user collection reads. The catalog is loaded once at startup; request
// handling never mutates it.
type PhilosopherService struct {
	db      *pgxpool.Pool
	catalog *philosopher.Catalog
	rng     gacha.RandomSource
}

func NewPhilosopherService(ctx context.Context, db *pgxpool.Pool) (*PhilosopherService, error) {
	catalog, err := loadCatalog(ctx, db)
	if err != nil {
		return nil, err
	}
	return &PhilosopherService{db: db, catalog: catalog, rng: gacha.DefaultRNG()}, nil
}

func (s *PhilosopherService) Catalog() *philosopher.Catalog {
	return s.catalog
}

func loadCatalog(ctx context.Context, db *pgxpool.Pool) (*philosopher.Catalog, error) {
	query := `
	SELECT id, name, era, school, rarity, wisdom, logic, rhetoric, influence, originality,
	       description, image_url, quotes, special_ability
	FROM philosophers
	ORDER BY id
	`
	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load philosopher catalog: %w", err)
	}
	defer rows.Close()

	var philosophers []*philosopher.Philosopher
	for rows.Next() {
		p := &philosopher.Philosopher{}
		err := rows.Scan(
			&p.ID, &p.Name, &p.Era, &p.School, &p.Rarity,
			&p.Wisdom, &p.Logic, &p.Rhetoric, &p.Influence, &p.Originality,
			&p.Description, &p.ImageURL, &p.Quotes, &p.SpecialAbility,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan philosopher: %w", err)
		}
		philosophers = append(philosophers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return philosopher.NewCatalog(philosophers)
}

// GetPhilosophers returns the full catalog grouped nothing special; the
// client renders the encyclopedia from it.
func (s *PhilosopherService) GetPhilosophers(ctx context.Context) []*philosopher.Philosopher {
	return s.catalog.All()
}

// GetCollection returns the caller's owned philosophers joined with their
// catalog entries.
func (s *PhilosopherService) GetCollection(ctx context.Context, clerkID string) ([]*philosopher.OwnedWithPhilosopher, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	userID, err := resolveUserID(ctx, tx, clerkID)
	if err != nil {
		return nil, err
	}

	query := `
	SELECT id, user_id, philosopher_id, level, experience, duplicates,
	       current_wisdom, current_logic, current_rhetoric, current_influence, current_originality,
	       obtained_at
	FROM owned_philosophers
	WHERE user_id = $1
	ORDER BY obtained_at DESC
	`
	rows, err := tx.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch collection: %w", err)
	}
	defer rows.Close()

	var collection []*philosopher.OwnedWithPhilosopher
	for rows.Next() {
		owned := &philosopher.OwnedWithPhilosopher{}
		err := rows.Scan(
			&owned.ID, &owned.UserID, &owned.PhilosopherID, &owned.Level, &owned.Experience, &owned.Duplicates,
			&owned.CurrentWisdom, &owned.CurrentLogic, &owned.CurrentRhetoric, &owned.CurrentInfluence, &owned.CurrentOriginality,
			&owned.ObtainedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan owned philosopher: %w", err)
		}
		if p, ok := s.catalog.ByID(owned.PhilosopherID); ok {
			owned.Philosopher = p.Summary()
		}
		collection = append(collection, owned)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return collection, nil
}

// GetGachaPreview summarizes the banner for the caller: ticket balance,
// collection coverage, and a few featured high-rarity philosophers.
func (s *PhilosopherService) GetGachaPreview(ctx context.Context, clerkID string) (*gacha.PreviewResponse, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	userID, err := resolveUserID(ctx, tx, clerkID)
	if err != nil {
		return nil, err
	}

	var tickets int
	err = tx.QueryRow(ctx, `SELECT COALESCE(gacha_tickets, 0) FROM user_stats WHERE user_id = $1`, userID).Scan(&tickets)
	if err != nil {
		// stats row may not exist yet; the preview just shows zero
		tickets = 0
	}

	var ownedCount int
	err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM owned_philosophers WHERE user_id = $1`, userID).Scan(&ownedCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count owned philosophers: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &gacha.PreviewResponse{
		AvailableTickets:     tickets,
		TotalPhilosophers:    s.catalog.Size(),
		OwnedPhilosophers:    ownedCount,
		RarityBreakdown:      s.catalog.RarityBreakdown(),
		FeaturedPhilosophers: s.featured(3),
	}, nil
}

// featured picks up to n random epic/legendary philosophers for display.
func (s *PhilosopherService) featured(n int) []philosopher.Summary {
	var pool []*philosopher.Philosopher
	for _, p := range s.catalog.All() {
		if p.Rarity == philosopher.RarityEpic || p.Rarity == philosopher.RarityLegendary {
			pool = append(pool, p)
		}
	}

	featured := make([]philosopher.Summary, 0, n)
	for len(featured) < n && len(pool) > 0 {
		i := s.rng.IntN(len(pool))
		featured = append(featured, pool[i].Summary())
		pool = append(pool[:i], pool[i+1:]...)
	}
	return featured
}
