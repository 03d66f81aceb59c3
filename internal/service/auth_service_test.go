package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ignatzorin/commissions-backend/internal/models"
	"github.com/ignatzorin/commissions-backend/internal/pkg/apperror"
	"github.com/ignatzorin/commissions-backend/internal/repository"
)

// mockAuthRepository реализует AuthRepository для тестов.
type mockAuthRepository struct {
	usersByEmail map[string]*models.User
	usersByID    map[uuid.UUID]*models.User
	sessions     map[string]*models.Session
}

func newMockAuthRepository() *mockAuthRepository {
	return &mockAuthRepository{
		usersByEmail: make(map[string]*models.User),
		usersByID:    make(map[uuid.UUID]*models.User),
		sessions:     make(map[string]*models.Session),
	}
}

func (m *mockAuthRepository) Create(ctx context.Context, user *models.User) error {
	if _, ok := m.usersByEmail[user.Email]; ok {
		return repository.ErrUserExists
	}
	user.ID = uuid.New()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.IsActive = true
	m.usersByEmail[user.Email] = user
	m.usersByID[user.ID] = user
	return nil
}

func (m *mockAuthRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := m.usersByEmail[email]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockAuthRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if user, ok := m.usersByID[id]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockAuthRepository) CreateSession(ctx context.Context, session *models.Session) error {
	session.ID = uuid.New()
	session.CreatedAt = time.Now()
	m.sessions[session.RefreshToken] = session
	return nil
}

func (m *mockAuthRepository) GetSession(ctx context.Context, refreshToken string) (*models.Session, error) {
	if s, ok := m.sessions[refreshToken]; ok {
		return s, nil
	}
	return nil, repository.ErrSessionNotFound
}

func (m *mockAuthRepository) DeleteSession(ctx context.Context, refreshToken string) error {
	delete(m.sessions, refreshToken)
	return nil
}

func (m *mockAuthRepository) UpdateLastLoginAt(ctx context.Context, userID uuid.UUID) error {
	if user, ok := m.usersByID[userID]; ok {
		now := time.Now()
		user.LastLoginAt = &now
	}
	return nil
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	repo := newMockAuthRepository()
	tokenManager := NewTokenManager("access", "refresh", time.Minute, time.Hour)
	service := NewAuthService(repo, tokenManager)

	ctx := context.Background()
	res, err := service.Register(ctx, RegisterInput{
		Email:    "Test.User@example.com",
		Password: "password123",
	}, SessionMeta{IP: "127.0.0.1"})
	if err != nil {
		t.Fatalf("register returned error: %v", err)
	}

	if res.User.ID == uuid.Nil {
		t.Fatalf("user ID должен быть установлен")
	}
	if res.User.Email != "test.user@example.com" {
		t.Fatalf("email должен быть нормализован, получили %q", res.User.Email)
	}
	if res.User.Username != "test_user" || res.User.DisplayName != "test_user" {
		t.Fatalf("username и display_name выводятся из email, получили %q/%q", res.User.Username, res.User.DisplayName)
	}

	if len(repo.sessions) != 1 {
		t.Fatalf("ожидалась одна сессия, получили %d", len(repo.sessions))
	}

	loginRes, err := service.Login(ctx, LoginInput{
		Email:    "test.user@example.com",
		Password: "password123",
	}, SessionMeta{})
	if err != nil {
		t.Fatalf("login returned error: %v", err)
	}

	if loginRes.TokenPair.AccessToken == "" {
		t.Fatalf("ожидался access токен")
	}
	if loginRes.User.LastLoginAt == nil {
		t.Fatalf("last_login_at должен обновиться")
	}

	userID, err := tokenManager.ParseAccess(loginRes.TokenPair.AccessToken)
	if err != nil || userID != res.User.ID {
		t.Fatalf("access токен должен содержать id пользователя: %v", err)
	}
}

func TestAuthService_RegisterDuplicate(t *testing.T) {
	repo := newMockAuthRepository()
	service := NewAuthService(repo, NewTokenManager("a", "r", time.Minute, time.Hour))

	ctx := context.Background()
	in := RegisterInput{Email: "dup@example.com", Password: "password123"}
	if _, err := service.Register(ctx, in, SessionMeta{}); err != nil {
		t.Fatalf("первая регистрация: %v", err)
	}

	_, err := service.Register(ctx, in, SessionMeta{})
	if !apperror.IsConflict(err) {
		t.Fatalf("ожидался CONFLICT, получили %v", err)
	}
}

func TestAuthService_LoginWrongPassword(t *testing.T) {
	repo := newMockAuthRepository()
	service := NewAuthService(repo, NewTokenManager("a", "r", time.Minute, time.Hour))

	ctx := context.Background()
	if _, err := service.Register(ctx, RegisterInput{Email: "u@example.com", Password: "password123"}, SessionMeta{}); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := service.Login(ctx, LoginInput{Email: "u@example.com", Password: "wrong-password"}, SessionMeta{})
	if err != apperror.ErrInvalidCredentials {
		t.Fatalf("ожидалась ErrInvalidCredentials, получили %v", err)
	}
}

func TestAuthService_Refresh(t *testing.T) {
	repo := newMockAuthRepository()
	tokenManager := NewTokenManager("access-secret", "refresh-secret", time.Minute, time.Hour)
	service := NewAuthService(repo, tokenManager)

	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	user := &models.User{
		ID:           uuid.New(),
		Email:        "user@example.com",
		Username:     "user",
		PasswordHash: string(hash),
		IsActive:     true,
	}
	repo.usersByEmail[user.Email] = user
	repo.usersByID[user.ID] = user

	tokenPair, accessExp, refreshExp, err := tokenManager.GeneratePair(user)
	if err != nil {
		t.Fatalf("не удалось сгенерировать токены: %v", err)
	}
	if accessExp.After(refreshExp) {
		t.Fatalf("access должен истекать раньше refresh")
	}

	repo.sessions[tokenPair.RefreshToken] = &models.Session{
		ID:           uuid.New(),
		UserID:       user.ID,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresAt:    refreshExp,
	}

	newPair, err := service.Refresh(ctx, tokenPair.RefreshToken, SessionMeta{})
	if err != nil {
		t.Fatalf("refresh вернул ошибку: %v", err)
	}

	if newPair.RefreshToken == tokenPair.RefreshToken {
		t.Fatalf("ожидался новый refresh токен")
	}
	if _, ok := repo.sessions[tokenPair.RefreshToken]; ok {
		t.Fatalf("старая сессия должна быть удалена")
	}

	// Повторное использование закрытого токена запрещено
	if _, err := service.Refresh(ctx, tokenPair.RefreshToken, SessionMeta{}); err == nil {
		t.Fatalf("ожидалась ошибка при повторном refresh")
	}
}

func TestAuthService_Logout(t *testing.T) {
	repo := newMockAuthRepository()
	service := NewAuthService(repo, NewTokenManager("a", "r", time.Minute, time.Hour))

	ctx := context.Background()
	res, err := service.Register(ctx, RegisterInput{Email: "bye@example.com", Password: "password123"}, SessionMeta{})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := service.Logout(ctx, res.TokenPair.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if len(repo.sessions) != 0 {
		t.Fatalf("сессий не должно остаться, получили %d", len(repo.sessions))
	}
}
