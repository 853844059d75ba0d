package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"critiQuestAPI/middleware"
	"critiQuestAPI/services"
)

type PhilosopherHandler struct {
	philosopherService *services.PhilosopherService
}

func NewPhilosopherHandler(philosopherService *services.PhilosopherService) *PhilosopherHandler {
	return &PhilosopherHandler{
		philosopherService: philosopherService,
	}
}

func (h *PhilosopherHandler) GetPhilosophers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	respondWithJSON(w, http.StatusOK, h.philosopherService.GetPhilosophers(ctx))
}

func (h *PhilosopherHandler) GetCollection(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	collection, err := h.philosopherService.GetCollection(ctx, clerkID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			respondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to load collection")
		return
	}

	respondWithJSON(w, http.StatusOK, collection)
}
