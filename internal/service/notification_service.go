package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/commissions-backend/internal/logger"
	"github.com/ignatzorin/commissions-backend/internal/models"
	"github.com/ignatzorin/commissions-backend/internal/pkg/apperror"
	"github.com/ignatzorin/commissions-backend/internal/repository"
)

// NotificationRepository описывает взаимодействие сервиса с хранилищем уведомлений.
type NotificationRepository interface {
	CreateOnce(ctx context.Context, notification *models.Notification) (bool, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, id, userID uuid.UUID) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

// Pusher доставляет событие подключённым клиентам пользователя.
type Pusher interface {
	Push(userID uuid.UUID, event string, data any) error
}

const notificationEvent = "notification"

// NotificationService содержит бизнес-логику работы с уведомлениями.
type NotificationService struct {
	repo   NotificationRepository
	pusher Pusher
}

// NewNotificationService создаёт новый сервис уведомлений. pusher может быть nil.
func NewNotificationService(repo NotificationRepository, pusher Pusher) *NotificationService {
	return &NotificationService{repo: repo, pusher: pusher}
}

// Notify сохраняет уведомление с ID эффекта и отправляет его по websocket.
// Повторный вызов с тем же ID не создаёт дубль и не отправляет повторно.
func (s *NotificationService) Notify(ctx context.Context, id, recipientID uuid.UUID, payload models.NotificationPayload) error {
	if recipientID == uuid.Nil {
		return fmt.Errorf("notification service: пустой получатель")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notification service: marshal payload %w", err)
	}

	notification := &models.Notification{
		ID:      id,
		UserID:  recipientID,
		Payload: raw,
	}

	created, err := s.repo.CreateOnce(ctx, notification)
	if err != nil {
		return err
	}
	if !created || s.pusher == nil {
		return nil
	}

	// Уведомление уже сохранено, клиент получит его через список
	if err := s.pusher.Push(recipientID, notificationEvent, notification); err != nil && logger.Log != nil {
		logger.Log.WithFields(logrus.Fields{
			"user_id":         recipientID,
			"notification_id": id,
			"error":           err.Error(),
		}).Warn("notification service: push не доставлен")
	}

	return nil
}

// ListNotifications возвращает список уведомлений пользователя.
func (s *NotificationService) ListNotifications(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	return s.repo.List(ctx, userID, limit, offset, unreadOnly)
}

// MarkAsRead отмечает уведомление как прочитанное. Чужое уведомление считается ненайденным.
func (s *NotificationService) MarkAsRead(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	if err := s.repo.MarkAsRead(ctx, id, userID); err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			return apperror.New(apperror.ErrCodeNotFound, "уведомление не найдено")
		}
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить уведомление")
	}
	return nil
}

// CountUnread возвращает количество непрочитанных уведомлений.
func (s *NotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}
