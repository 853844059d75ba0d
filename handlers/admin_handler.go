package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"critiQuestAPI/services"
)

// AdminHandler exposes operational endpoints guarded by a shared key rather
// than user auth.
type AdminHandler struct {
	userService *services.UserService
}

func NewAdminHandler(userService *services.UserService) *AdminHandler {
	return &AdminHandler{
		userService: userService,
	}
}

func (h *AdminHandler) authorized(r *http.Request) bool {
	key := os.Getenv("ADMIN_API_KEY")
	if key == "" {
		return false
	}
	provided := r.Header.Get("X-Admin-Key")
	return subtle.ConstantTimeCompare([]byte(provided), []byte(key)) == 1
}

// GrantTickets credits gacha tickets to a user, for support cases and
// promotions.
func (h *AdminHandler) GrantTickets(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		respondWithError(w, http.StatusForbidden, "Forbidden")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req struct {
		ClerkID string `json:"clerk_id"`
		Amount  int    `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	balance, err := h.userService.AddTickets(ctx, req.ClerkID, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidAmount):
			respondWithError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrUserNotFound):
			respondWithError(w, http.StatusNotFound, "User not found")
		default:
			respondWithError(w, http.StatusInternalServerError, "Failed to grant tickets")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]int{"gacha_tickets": balance})
}
