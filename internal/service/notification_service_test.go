package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/commissions-backend/internal/models"
	"github.com/ignatzorin/commissions-backend/internal/pkg/apperror"
	"github.com/ignatzorin/commissions-backend/internal/repository"
)

// memoryNotificationRepo хранит уведомления в map и повторяет ON CONFLICT DO NOTHING.
type memoryNotificationRepo struct {
	items map[uuid.UUID]*models.Notification
}

func newMemoryNotificationRepo() *memoryNotificationRepo {
	return &memoryNotificationRepo{items: make(map[uuid.UUID]*models.Notification)}
}

func (r *memoryNotificationRepo) CreateOnce(ctx context.Context, n *models.Notification) (bool, error) {
	if _, ok := r.items[n.ID]; ok {
		return false, nil
	}
	cp := *n
	r.items[n.ID] = &cp
	return true, nil
}

func (r *memoryNotificationRepo) List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range r.items {
		if n.UserID == userID && (!unreadOnly || !n.IsRead) {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (r *memoryNotificationRepo) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	n, ok := r.items[id]
	if !ok || n.UserID != userID {
		return repository.ErrNotificationNotFound
	}
	n.IsRead = true
	return nil
}

func (r *memoryNotificationRepo) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	count := 0
	for _, n := range r.items {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

type mockPusher struct {
	mock.Mock
}

func (m *mockPusher) Push(userID uuid.UUID, event string, data any) error {
	args := m.Called(userID, event, data)
	return args.Error(0)
}

func TestNotificationService_NotifyOnce(t *testing.T) {
	repo := newMemoryNotificationRepo()
	pusher := new(mockPusher)
	svc := NewNotificationService(repo, pusher)
	ctx := context.Background()

	id := uuid.New()
	recipient := uuid.New()
	payload := models.NotificationPayload{Kind: "work_request_paid", Title: "Оплата", WorkRequestID: uuid.New()}

	pusher.On("Push", recipient, "notification", mock.AnythingOfType("*models.Notification")).Return(nil).Once()

	require.NoError(t, svc.Notify(ctx, id, recipient, payload))
	require.NoError(t, svc.Notify(ctx, id, recipient, payload))

	assert.Len(t, repo.items, 1)
	pusher.AssertNumberOfCalls(t, "Push", 1)

	var stored models.NotificationPayload
	require.NoError(t, json.Unmarshal(repo.items[id].Payload, &stored))
	assert.Equal(t, payload, stored)
}

func TestNotificationService_PushFailureIsNotAnError(t *testing.T) {
	repo := newMemoryNotificationRepo()
	pusher := new(mockPusher)
	svc := NewNotificationService(repo, pusher)

	recipient := uuid.New()
	pusher.On("Push", recipient, "notification", mock.Anything).Return(errors.New("buffer full"))

	err := svc.Notify(context.Background(), uuid.New(), recipient, models.NotificationPayload{Kind: "x"})
	assert.NoError(t, err)
	assert.Len(t, repo.items, 1)
}

func TestNotificationService_NotifyWithoutRecipient(t *testing.T) {
	svc := NewNotificationService(newMemoryNotificationRepo(), nil)

	err := svc.Notify(context.Background(), uuid.New(), uuid.Nil, models.NotificationPayload{})
	assert.Error(t, err)
}

func TestNotificationService_MarkAsRead(t *testing.T) {
	repo := newMemoryNotificationRepo()
	svc := NewNotificationService(repo, nil)
	ctx := context.Background()

	id := uuid.New()
	owner := uuid.New()
	require.NoError(t, svc.Notify(ctx, id, owner, models.NotificationPayload{Kind: "x"}))

	err := svc.MarkAsRead(ctx, id, uuid.New())
	assert.True(t, apperror.IsNotFound(err))

	require.NoError(t, svc.MarkAsRead(ctx, id, owner))

	count, err := svc.CountUnread(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
