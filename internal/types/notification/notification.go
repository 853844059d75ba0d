package notification

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeAchievementUnlocked Type = "achievement_unlocked"
	TypeLevelUp             Type = "level_up"
	TypeTicketsGranted      Type = "tickets_granted"
)

// Notification is one in-app message. Push delivery happens asynchronously
// after the row is written.
type Notification struct {
	ID        uuid.UUID      `json:"id" db:"id"`
	UserID    uuid.UUID      `json:"user_id" db:"user_id"`
	Type      Type           `json:"type" db:"type"`
	Title     string         `json:"title" db:"title"`
	Body      string         `json:"body" db:"body"`
	Data      map[string]any `json:"data" db:"data"`
	IsRead    bool           `json:"is_read" db:"is_read"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// DeviceToken is a registered push target.
type DeviceToken struct {
	Token    string `json:"token" db:"token"`
	Platform string `json:"platform" db:"platform"`
}

type RegisterDeviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}
