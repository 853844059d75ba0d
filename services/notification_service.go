package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"critiQuestAPI/internal/achievement"
	"critiQuestAPI/internal/types/notification"
)

// PushNotificationProvider abstracts the push channel so tests and local
// development can run without Firebase credentials.
type PushNotificationProvider interface {
	SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error
}

// NotificationService persists in-app notifications and pushes them to
// registered devices through a small worker pool. The in-app row is the
// source of truth; a failed push is only logged.
type NotificationService struct {
	db           *pgxpool.Pool
	pushProvider PushNotificationProvider
	jobQueue     chan *notification.Notification
	stopChan     chan struct{}
	wg           sync.WaitGroup
}

const notificationWorkers = 3

func NewNotificationService(db *pgxpool.Pool) *NotificationService {
	s := &NotificationService{
		db:       db,
		jobQueue: make(chan *notification.Notification, 100),
		stopChan: make(chan struct{}),
	}
	for i := 0; i < notificationWorkers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

// SetPushProvider injects the real FCM provider from main.go. Without one,
// notifications stay in-app only.
func (s *NotificationService) SetPushProvider(provider PushNotificationProvider) {
	s.pushProvider = provider
}

func (s *NotificationService) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}

func (s *NotificationService) worker() {
	defer s.wg.Done()
	for {
		select {
		case notif := <-s.jobQueue:
			s.deliverPush(notif)
		case <-s.stopChan:
			return
		}
	}
}

func (s *NotificationService) deliverPush(notif *notification.Notification) {
	if s.pushProvider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tokens, err := s.deviceTokens(ctx, notif.UserID)
	if err != nil {
		log.Printf("Failed to load device tokens for user %s: %v", notif.UserID, err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	if err := s.pushProvider.SendPush(ctx, tokens, notif.Title, notif.Body, notif.Data); err != nil {
		log.Printf("Push failed for user %s: %v", notif.UserID, err)
	}
}

// CreateNotification writes the in-app row and queues the push. Queueing
// never blocks the request path; if the queue is full the push is dropped.
func (s *NotificationService) CreateNotification(ctx context.Context, userID uuid.UUID, nType notification.Type, title, body string, data map[string]any) (*notification.Notification, error) {
	notif := &notification.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      nType,
		Title:     title,
		Body:      body,
		Data:      data,
		CreatedAt: time.Now(),
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode notification data: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO notifications (id, user_id, type, title, body, data, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, $7)
	`, notif.ID, notif.UserID, notif.Type, notif.Title, notif.Body, dataJSON, notif.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	select {
	case s.jobQueue <- notif:
	default:
		log.Printf("Notification queue full, dropping push for %s", notif.ID)
	}

	return notif, nil
}

// NotifyAchievementsUnlocked fans out one notification per newly completed
// achievement. Failures are logged, not returned; notifications must never
// fail the operation that earned them.
func (s *NotificationService) NotifyAchievementsUnlocked(ctx context.Context, userID uuid.UUID, unlocked []*achievement.Achievement) {
	for _, a := range unlocked {
		_, err := s.CreateNotification(ctx, userID, notification.TypeAchievementUnlocked,
			"Achievement unlocked!",
			fmt.Sprintf("%s: %s", a.Name, a.Description),
			map[string]any{"achievement_id": a.ID},
		)
		if err != nil {
			log.Printf("Failed to create achievement notification: %v", err)
		}
	}
}

// NotifyLevelUp announces a level-up and its ticket reward.
func (s *NotificationService) NotifyLevelUp(ctx context.Context, userID uuid.UUID, newLevel, tickets int) {
	body := fmt.Sprintf("You reached level %d!", newLevel)
	if tickets > 0 {
		body = fmt.Sprintf("You reached level %d and earned %d gacha tickets!", newLevel, tickets)
	}
	_, err := s.CreateNotification(ctx, userID, notification.TypeLevelUp,
		"Level up!", body, map[string]any{"new_level": newLevel})
	if err != nil {
		log.Printf("Failed to create level-up notification: %v", err)
	}
}

// GetNotifications lists the user's most recent notifications.
func (s *NotificationService) GetNotifications(ctx context.Context, clerkID string, limit int) ([]*notification.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
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

	rows, err := tx.Query(ctx, `
		SELECT id, user_id, type, title, body, data, is_read, created_at
		FROM notifications WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	defer rows.Close()

	var list []*notification.Notification
	for rows.Next() {
		n := &notification.Notification{}
		var dataJSON []byte
		err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &dataJSON, &n.IsRead, &n.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if len(dataJSON) > 0 {
			if err := json.Unmarshal(dataJSON, &n.Data); err != nil {
				log.Printf("Malformed notification data for %s: %v", n.ID, err)
			}
		}
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return list, nil
}

// GetUnreadCount returns how many notifications the user has not read.
func (s *NotificationService) GetUnreadCount(ctx context.Context, clerkID string) (int, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	userID, err := resolveUserID(ctx, tx, clerkID)
	if err != nil {
		return 0, err
	}

	var count int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = false
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}

	return count, tx.Commit(ctx)
}

// MarkAsRead marks one notification read. Marking someone else's
// notification is a silent no-op.
func (s *NotificationService) MarkAsRead(ctx context.Context, clerkID string, notificationID uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	userID, err := resolveUserID(ctx, tx, clerkID)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE notifications SET is_read = true WHERE id = $1 AND user_id = $2
	`, notificationID, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	return tx.Commit(ctx)
}

// RegisterDevice stores a push token for the user, replacing a previous
// registration of the same token.
func (s *NotificationService) RegisterDevice(ctx context.Context, clerkID string, req *notification.RegisterDeviceRequest) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	userID, err := resolveUserID(ctx, tx, clerkID)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO device_tokens (id, user_id, token, platform, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (token) DO UPDATE SET user_id = EXCLUDED.user_id, platform = EXCLUDED.platform
	`, uuid.New(), userID, req.Token, req.Platform, time.Now())
	if err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *NotificationService) deviceTokens(ctx context.Context, userID uuid.UUID) ([]notification.DeviceToken, error) {
	rows, err := s.db.Query(ctx, `
		SELECT token, platform FROM device_tokens WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []notification.DeviceToken
	for rows.Next() {
		var t notification.DeviceToken
		if err := rows.Scan(&t.Token, &t.Platform); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}
