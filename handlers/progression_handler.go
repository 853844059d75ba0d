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

type ProgressionHandler struct {
	progressionService *services.ProgressionService
	achievementService *services.AchievementService
}

func NewProgressionHandler(progressionService *services.ProgressionService, achievementService *services.AchievementService) *ProgressionHandler {
	return &ProgressionHandler{
		progressionService: progressionService,
		achievementService: achievementService,
	}
}

func (h *ProgressionHandler) CompleteQuiz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var quiz services.QuizResult
	if err := json.NewDecoder(r.Body).Decode(&quiz); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.progressionService.CompleteQuiz(ctx, clerkID, &quiz)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			respondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		respondWithError(w, http.StatusServiceUnavailable, "Failed to record quiz, please retry")
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *ProgressionHandler) CompleteLesson(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var lesson services.LessonResult
	if err := json.NewDecoder(r.Body).Decode(&lesson); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if lesson.LessonID == "" {
		respondWithError(w, http.StatusBadRequest, "lesson_id is required")
		return
	}

	result, err := h.progressionService.CompleteLesson(ctx, clerkID, &lesson)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidAmount):
			respondWithError(w, http.StatusBadRequest, "reward_xp must not be negative")
		case errors.Is(err, services.ErrUserNotFound):
			respondWithError(w, http.StatusNotFound, "User not found")
		default:
			respondWithError(w, http.StatusServiceUnavailable, "Failed to record lesson, please retry")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *ProgressionHandler) AddExperience(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req struct {
		Amount int    `json:"amount"`
		Source string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Source == "" {
		req.Source = "manual"
	}

	result, err := h.progressionService.AddExperience(ctx, clerkID, req.Amount, req.Source)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidAmount):
			respondWithError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrUserNotFound):
			respondWithError(w, http.StatusNotFound, "User not found")
		default:
			respondWithError(w, http.StatusServiceUnavailable, "Failed to award experience, please retry")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *ProgressionHandler) GetProgressionSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	summary, err := h.progressionService.GetProgressionSummary(ctx, clerkID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			respondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to load progression")
		return
	}

	respondWithJSON(w, http.StatusOK, summary)
}

func (h *ProgressionHandler) RecalculateLevel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	prog, err := h.progressionService.RecalculateLevel(ctx, clerkID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			respondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to recalculate level")
		return
	}

	respondWithJSON(w, http.StatusOK, prog)
}

func (h *ProgressionHandler) GetAchievements(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	list, err := h.achievementService.GetAchievements(ctx, clerkID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			respondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to load achievements")
		return
	}

	respondWithJSON(w, http.StatusOK, list)
}

func (h *ProgressionHandler) CheckAchievements(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	unlocked, err := h.achievementService.CheckAchievements(ctx, clerkID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			respondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		respondWithError(w, http.StatusServiceUnavailable, "Failed to check achievements, please retry")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"new_achievements": unlocked})
}

func (h *ProgressionHandler) MarkAchievementsViewed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req struct {
		AchievementIDs []string `json:"achievement_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.achievementService.MarkViewed(ctx, clerkID, req.AchievementIDs); err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			respondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to mark achievements viewed")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}
