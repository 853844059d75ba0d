package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"critiQuestAPI/internal/philosopher"
)

// SeedService loads the static philosopher and achievement catalogs on
// startup. Inserts are idempotent; rows that already exist are left alone so
// a restart never clobbers live data.
type SeedService struct {
	db *pgxpool.Pool
}

func NewSeedService(db *pgxpool.Pool) *SeedService {
	return &SeedService{db: db}
}

func (s *SeedService) SeedAll(ctx context.Context) error {
	if err := s.seedPhilosophers(ctx); err != nil {
		return err
	}
	return s.seedAchievements(ctx)
}

func quotes(qs ...string) json.RawMessage {
	raw, _ := json.Marshal(qs)
	return raw
}

var philosopherSeeds = []philosopher.Philosopher{
	{
		ID: "socrates", Name: "Socrates", Era: "Ancient", School: "Classical Greek",
		Rarity: philosopher.RarityLegendary,
		Wisdom: 95, Logic: 90, Rhetoric: 85, Influence: 98, Originality: 92,
		Description: "The father of Western philosophy, who taught through relentless questioning.",
		ImageURL:    "/images/philosophers/socrates.png",
		Quotes:      quotes("The unexamined life is not worth living.", "I know that I know nothing."),
	},
	{
		ID: "marcus-aurelius", Name: "Marcus Aurelius", Era: "Ancient", School: "Stoicism",
		Rarity: philosopher.RarityLegendary,
		Wisdom: 92, Logic: 85, Rhetoric: 80, Influence: 95, Originality: 78,
		Description: "The philosopher-emperor whose private meditations became a Stoic classic.",
		ImageURL:    "/images/philosophers/marcus-aurelius.png",
		Quotes:      quotes("You have power over your mind, not outside events.", "Waste no more time arguing about what a good man should be. Be one."),
	},
	{
		ID: "albert-camus", Name: "Albert Camus", Era: "Contemporary", School: "Absurdism",
		Rarity: philosopher.RarityLegendary,
		Wisdom: 84, Logic: 80, Rhetoric: 93, Influence: 88, Originality: 96,
		Description: "Confronted the absurd and concluded we must imagine Sisyphus happy.",
		ImageURL:    "/images/philosophers/albert-camus.png",
		Quotes:      quotes("In the depth of winter, I finally learned that within me there lay an invincible summer."),
	},
	{
		ID: "simone-de-beauvoir", Name: "Simone de Beauvoir", Era: "Contemporary", School: "Existentialism",
		Rarity: philosopher.RarityEpic,
		Wisdom: 88, Logic: 86, Rhetoric: 90, Influence: 91, Originality: 94,
		Description: "Existentialist who reframed freedom, ethics, and what it means to become.",
		ImageURL:    "/images/philosophers/simone-de-beauvoir.png",
		Quotes:      quotes("One is not born, but rather becomes, a woman."),
	},
	{
		ID: "diogenes", Name: "Diogenes", Era: "Ancient", School: "Cynicism",
		Rarity: philosopher.RarityEpic,
		Wisdom: 82, Logic: 75, Rhetoric: 88, Influence: 80, Originality: 98,
		Description: "Lived in a barrel and told Alexander the Great to step out of his sunlight.",
		ImageURL:    "/images/philosophers/diogenes.png",
		Quotes:      quotes("I am looking for an honest man."),
	},
	{
		ID: "john-locke", Name: "John Locke", Era: "Enlightenment", School: "Empiricism",
		Rarity: philosopher.RarityEpic,
		Wisdom: 86, Logic: 90, Rhetoric: 82, Influence: 93, Originality: 85,
		Description: "Empiricist whose theory of natural rights shaped modern democracies.",
		ImageURL:    "/images/philosophers/john-locke.png",
		Quotes:      quotes("No man's knowledge here can go beyond his experience."),
	},
	{
		ID: "avicenna", Name: "Avicenna", Era: "Medieval", School: "Islamic Philosophy",
		Rarity: philosopher.RarityRare,
		Wisdom: 90, Logic: 88, Rhetoric: 78, Influence: 86, Originality: 87,
		Description: "Polymath who fused Aristotle with medicine and metaphysics.",
		ImageURL:    "/images/philosophers/avicenna.png",
		Quotes:      quotes("The knowledge of anything, since all things have causes, is not acquired unless it is known by its causes."),
	},
	{
		ID: "seneca", Name: "Seneca", Era: "Ancient", School: "Stoicism",
		Rarity: philosopher.RarityRare,
		Wisdom: 85, Logic: 80, Rhetoric: 92, Influence: 84, Originality: 76,
		Description: "Stoic statesman who wrote on anger, grief, and the shortness of life.",
		ImageURL:    "/images/philosophers/seneca.png",
		Quotes:      quotes("We suffer more often in imagination than in reality."),
	},
	{
		ID: "epicurus", Name: "Epicurus", Era: "Ancient", School: "Epicureanism",
		Rarity: philosopher.RarityUncommon,
		Wisdom: 80, Logic: 78, Rhetoric: 75, Influence: 82, Originality: 84,
		Description: "Taught that pleasure rightly understood is a quiet, untroubled life.",
		ImageURL:    "/images/philosophers/epicurus.png",
		Quotes:      quotes("Not what we have but what we enjoy constitutes our abundance."),
	},
	{
		ID: "zeno-of-citium", Name: "Zeno of Citium", Era: "Ancient", School: "Stoicism",
		Rarity: philosopher.RarityUncommon,
		Wisdom: 78, Logic: 82, Rhetoric: 74, Influence: 79, Originality: 81,
		Description: "Founded Stoicism on a painted porch after losing everything in a shipwreck.",
		ImageURL:    "/images/philosophers/zeno-of-citium.png",
		Quotes:      quotes("Man conquers the world by conquering himself."),
	},
	{
		ID: "thales", Name: "Thales of Miletus", Era: "Ancient", School: "Pre-Socratic",
		Rarity: philosopher.RarityCommon,
		Wisdom: 72, Logic: 75, Rhetoric: 65, Influence: 78, Originality: 80,
		Description: "The first philosopher, who claimed everything is water.",
		ImageURL:    "/images/philosophers/thales.png",
		Quotes:      quotes("The most difficult thing in life is to know yourself."),
	},
	{
		ID: "heraclitus", Name: "Heraclitus", Era: "Ancient", School: "Pre-Socratic",
		Rarity: philosopher.RarityCommon,
		Wisdom: 74, Logic: 70, Rhetoric: 68, Influence: 75, Originality: 85,
		Description: "The obscure philosopher of flux, for whom everything flows.",
		ImageURL:    "/images/philosophers/heraclitus.png",
		Quotes:      quotes("No man ever steps in the same river twice."),
	},
	{
		ID: "pythagoras", Name: "Pythagoras", Era: "Ancient", School: "Pre-Socratic",
		Rarity: philosopher.RarityCommon,
		Wisdom: 76, Logic: 88, Rhetoric: 66, Influence: 82, Originality: 79,
		Description: "Mystic and mathematician who heard harmony in numbers.",
		ImageURL:    "/images/philosophers/pythagoras.png",
		Quotes:      quotes("Do not say a little in many words but a great deal in a few."),
	},
}

type achievementSeed struct {
	id          string
	name        string
	description string
	criteria    map[string]any
	rewardExp   int
	rewardTix   int
}

var achievementSeeds = []achievementSeed{
	{"first-perfect-score", "Flawless Thinker", "Score 100% on a quiz.",
		map[string]any{"type": "perfect_score", "minCount": 1}, 50, 1},
	{"quiz-master", "Quiz Master", "Complete 10 quizzes.",
		map[string]any{"type": "quiz_completion", "minCount": 10}, 100, 2},
	{"speed-learner", "Speed Learner", "Finish a lesson in under two minutes.",
		map[string]any{"type": "lesson_speedrun", "maxTime": 120}, 75, 1},
	{"first-philosopher", "First Summon", "Add your first philosopher to the collection.",
		map[string]any{"type": "collection_count", "minCount": 1}, 25, 1},
	{"school-collector", "School Collector", "Own 10 different philosophers.",
		map[string]any{"type": "collection_count", "minCount": 10}, 150, 3},
	{"legendary-collector", "Legend Hunter", "Own a legendary philosopher.",
		map[string]any{"type": "legendary_collection", "minCount": 1}, 200, 3},
	{"first-debate-victory", "First Victory", "Win your first debate.",
		map[string]any{"type": "debate_wins", "minWins": 1}, 50, 1},
	{"debate-champion", "Debate Champion", "Win 10 debates.",
		map[string]any{"type": "debate_wins", "minWins": 10}, 150, 3},
	{"undefeated-philosopher", "Undefeated", "Win 5 debates in a row.",
		map[string]any{"type": "win_streak", "minWins": 5}, 100, 2},
	{"daily-thinker", "Daily Thinker", "Keep a 7-day learning streak.",
		map[string]any{"type": "daily_streak", "minDays": 7}, 100, 2},
	{"devoted-student", "Devoted Student", "Keep a 30-day learning streak.",
		map[string]any{"type": "daily_streak", "minDays": 30}, 300, 5},
}

func (s *SeedService) seedPhilosophers(ctx context.Context) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for i := range philosopherSeeds {
		p := &philosopherSeeds[i]
		result, err := tx.Exec(ctx, `
			INSERT INTO philosophers (id, name, era, school, rarity,
			                          wisdom, logic, rhetoric, influence, originality,
			                          description, image_url, quotes, special_ability)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			ON CONFLICT (id) DO NOTHING
		`, p.ID, p.Name, p.Era, p.School, int(p.Rarity),
			p.Wisdom, p.Logic, p.Rhetoric, p.Influence, p.Originality,
			p.Description, p.ImageURL, p.Quotes, p.SpecialAbility)
		if err != nil {
			return fmt.Errorf("failed to seed philosopher %s: %w", p.ID, err)
		}
		inserted += int(result.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit philosopher seed: %w", err)
	}
	if inserted > 0 {
		log.Printf("Seeded %d philosophers", inserted)
	}
	return nil
}

func (s *SeedService) seedAchievements(ctx context.Context) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, a := range achievementSeeds {
		criteria, err := json.Marshal(a.criteria)
		if err != nil {
			return err
		}
		result, err := tx.Exec(ctx, `
			INSERT INTO achievements (id, name, description, criteria,
			                          reward_experience, reward_gacha_tickets, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING
		`, a.id, a.name, a.description, criteria, a.rewardExp, a.rewardTix, time.Now())
		if err != nil {
			return fmt.Errorf("failed to seed achievement %s: %w", a.id, err)
		}
		inserted += int(result.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit achievement seed: %w", err)
	}
	if inserted > 0 {
		log.Printf("Seeded %d achievements", inserted)
	}
	return nil
}
