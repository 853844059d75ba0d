package services

import (
	"context"
	"errors"
	"testing"

	"critiQuestAPI/internal/stats"
)

func TestPerformSummonValidatesTicketCount(t *testing.T) {
	db := setupTestDB(t)

	phil, err := NewPhilosopherService(context.Background(), db)
	if err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}
	svc, err := NewGachaService(db, phil.Catalog())
	if err != nil {
		t.Fatalf("failed to build gacha service: %v", err)
	}

	clerkID, _ := createTestUser(t, db)

	for _, count := range []int{0, -1, 11, 100} {
		_, err := svc.PerformSummon(context.Background(), clerkID, count)
		if !errors.Is(err, ErrInvalidTicketCount) {
			t.Errorf("PerformSummon(%d) err = %v, want ErrInvalidTicketCount", count, err)
		}
	}
}

func TestPerformSummonSpendsTicketsAtomically(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	phil, err := NewPhilosopherService(ctx, db)
	if err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}
	svc, err := NewGachaService(db, phil.Catalog())
	if err != nil {
		t.Fatalf("failed to build gacha service: %v", err)
	}

	clerkID, userID := createTestUser(t, db)

	// The starting grant covers a 3-draw summon exactly.
	receipt, err := svc.PerformSummon(ctx, clerkID, stats.StartingGachaTickets)
	if err != nil {
		t.Fatalf("summon failed: %v", err)
	}

	if len(receipt.Results) != stats.StartingGachaTickets {
		t.Errorf("got %d results, want %d", len(receipt.Results), stats.StartingGachaTickets)
	}
	if receipt.RemainingTickets != 0 {
		t.Errorf("remaining tickets = %d, want 0", receipt.RemainingTickets)
	}
	if got := ticketBalance(t, db, userID); got != 0 {
		t.Errorf("stored balance = %d, want 0", got)
	}

	for i, r := range receipt.Results {
		if r.IsNew == r.IsDuplicate {
			t.Errorf("result %d is both new and duplicate: %+v", i, r)
		}
		if r.IsNew && r.ExperienceGained != 0 {
			t.Errorf("new draw %d gained experience: %+v", i, r)
		}
		if r.IsDuplicate && r.ExperienceGained <= 0 {
			t.Errorf("duplicate draw %d gained no experience: %+v", i, r)
		}
	}
}

func TestPerformSummonInsufficientTicketsLeavesStateUnchanged(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	phil, err := NewPhilosopherService(ctx, db)
	if err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}
	svc, err := NewGachaService(db, phil.Catalog())
	if err != nil {
		t.Fatalf("failed to build gacha service: %v", err)
	}

	clerkID, userID := createTestUser(t, db)
	seedStatsRow(t, db, userID)

	// The starting grant cannot cover a full batch of 10.
	_, err = svc.PerformSummon(ctx, clerkID, 10)
	if !errors.Is(err, ErrInsufficientTickets) {
		t.Fatalf("err = %v, want ErrInsufficientTickets", err)
	}

	if got := ticketBalance(t, db, userID); got != stats.StartingGachaTickets {
		t.Errorf("balance changed on failed summon: %d", got)
	}

	var ownedCount int
	err = db.QueryRow(ctx, `SELECT COUNT(*) FROM owned_philosophers WHERE user_id = $1`, userID).Scan(&ownedCount)
	if err != nil {
		t.Fatalf("failed to count collection: %v", err)
	}
	if ownedCount != 0 {
		t.Errorf("failed summon added %d philosophers", ownedCount)
	}
}

func TestPerformSummonUnknownUser(t *testing.T) {
	db := setupTestDB(t)

	phil, err := NewPhilosopherService(context.Background(), db)
	if err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}
	svc, err := NewGachaService(db, phil.Catalog())
	if err != nil {
		t.Fatalf("failed to build gacha service: %v", err)
	}

	_, err = svc.PerformSummon(context.Background(), "clerk_does_not_exist", 1)
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("err = %v, want ErrUserNotFound", err)
	}
}

func TestGetGachaRates(t *testing.T) {
	db := setupTestDB(t)

	phil, err := NewPhilosopherService(context.Background(), db)
	if err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}
	svc, err := NewGachaService(db, phil.Catalog())
	if err != nil {
		t.Fatalf("failed to build gacha service: %v", err)
	}

	rates := svc.GetGachaRates()
	if rates.RarityRates["common"] != 50 || rates.RarityRates["legendary"] != 1 {
		t.Errorf("rates = %v", rates.RarityRates)
	}
	if rates.DuplicateExperience["epic"] != 100 {
		t.Errorf("duplicate experience = %v", rates.DuplicateExperience)
	}
}
