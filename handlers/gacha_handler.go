package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"critiQuestAPI/middleware"
	"critiQuestAPI/services"
)

type GachaHandler struct {
	gachaService       *services.GachaService
	philosopherService *services.PhilosopherService
}

func NewGachaHandler(gachaService *services.GachaService, philosopherService *services.PhilosopherService) *GachaHandler {
	return &GachaHandler{
		gachaService:       gachaService,
		philosopherService: philosopherService,
	}
}

func (h *GachaHandler) PerformSummon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req struct {
		TicketCount int `json:"ticket_count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	receipt, err := h.gachaService.PerformSummon(ctx, clerkID, req.TicketCount)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidTicketCount):
			respondWithError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrInsufficientTickets):
			respondWithError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrUserNotFound):
			respondWithError(w, http.StatusNotFound, "User not found")
		default:
			respondWithError(w, http.StatusServiceUnavailable, "Summon failed, please retry")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, receipt)
}

func (h *GachaHandler) GetGachaRates(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.gachaService.GetGachaRates())
}

func (h *GachaHandler) GetGachaPreview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	preview, err := h.philosopherService.GetGachaPreview(ctx, clerkID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			respondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to load gacha preview")
		return
	}

	respondWithJSON(w, http.StatusOK, preview)
}
