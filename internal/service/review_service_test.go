package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/commissions-backend/internal/domain/entity"
	"github.com/ignatzorin/commissions-backend/internal/domain/valueobject"
	"github.com/ignatzorin/commissions-backend/internal/models"
	"github.com/ignatzorin/commissions-backend/internal/pkg/apperror"
	"github.com/ignatzorin/commissions-backend/internal/repository"
)

type mockReviewRepo struct {
	mock.Mock
}

func (m *mockReviewRepo) Create(ctx context.Context, review *models.Review) error {
	args := m.Called(ctx, review)
	if args.Error(0) == nil {
		review.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockReviewRepo) ListByReviewedID(ctx context.Context, reviewedID uuid.UUID, limit, offset int) ([]models.Review, error) {
	args := m.Called(ctx, reviewedID, limit, offset)
	return args.Get(0).([]models.Review), args.Error(1)
}

func (m *mockReviewRepo) GetRatingSummary(ctx context.Context, userID uuid.UUID) (*models.RatingSummary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RatingSummary), args.Error(1)
}

type mockWorkRequestReader struct {
	mock.Mock
}

func (m *mockWorkRequestReader) FindByID(ctx context.Context, id uuid.UUID) (*entity.WorkRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.WorkRequest), args.Error(1)
}

func completedWorkRequest(requesterID, contractorID uuid.UUID) *entity.WorkRequest {
	now := time.Now()
	return &entity.WorkRequest{
		ID:           uuid.New(),
		RequesterID:  requesterID,
		ContractorID: &contractorID,
		Status:       valueobject.WorkRequestStatusCompleted,
		Positions:    1,
		CompletedAt:  &now,
	}
}

func TestReviewService_CreateReview_Success(t *testing.T) {
	reviewRepo := new(mockReviewRepo)
	workRequests := new(mockWorkRequestReader)
	cache := NewCacheService()
	svc := NewReviewService(reviewRepo, workRequests, cache)
	ctx := context.Background()

	requesterID := uuid.New()
	contractorID := uuid.New()
	wr := completedWorkRequest(requesterID, contractorID)

	cache.Set(RatingCacheKey(contractorID), &models.RatingSummary{Average: 3, Count: 1}, time.Minute)
	cache.Set(RatingCacheKey(requesterID), &models.RatingSummary{Average: 4, Count: 2}, time.Minute)

	workRequests.On("FindByID", ctx, wr.ID).Return(wr, nil)
	reviewRepo.On("Create", ctx, mock.AnythingOfType("*models.Review")).Return(nil)

	comment := "  Отличная работа!  "
	review, err := svc.CreateReview(ctx, wr.ID, requesterID, 5, &comment)

	require.NoError(t, err)
	assert.Equal(t, contractorID, review.ReviewedID)
	assert.Equal(t, 5, review.Rating)
	assert.Equal(t, "Отличная работа!", *review.Comment)

	_, cached := cache.Get(RatingCacheKey(contractorID))
	assert.False(t, cached, "кэш рейтинга должен сбрасываться")
	_, cached = cache.Get(RatingCacheKey(requesterID))
	assert.True(t, cached, "рейтинг автора отзыва не меняется")
}

func TestReviewService_CreateReview_ContractorReviewsRequester(t *testing.T) {
	reviewRepo := new(mockReviewRepo)
	workRequests := new(mockWorkRequestReader)
	svc := NewReviewService(reviewRepo, workRequests, nil)
	ctx := context.Background()

	requesterID := uuid.New()
	contractorID := uuid.New()
	wr := completedWorkRequest(requesterID, contractorID)

	workRequests.On("FindByID", ctx, wr.ID).Return(wr, nil)
	reviewRepo.On("Create", ctx, mock.AnythingOfType("*models.Review")).Return(nil)

	review, err := svc.CreateReview(ctx, wr.ID, contractorID, 4, nil)
	require.NoError(t, err)
	assert.Equal(t, requesterID, review.ReviewedID)
}

func TestReviewService_CreateReview_InvalidRating(t *testing.T) {
	reviewRepo := new(mockReviewRepo)
	workRequests := new(mockWorkRequestReader)
	svc := NewReviewService(reviewRepo, workRequests, nil)
	ctx := context.Background()

	requesterID := uuid.New()
	wr := completedWorkRequest(requesterID, uuid.New())
	workRequests.On("FindByID", ctx, wr.ID).Return(wr, nil)

	for _, rating := range []int{0, 6} {
		_, err := svc.CreateReview(ctx, wr.ID, requesterID, rating, nil)
		assert.True(t, apperror.IsValidation(err))
	}
	reviewRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestReviewService_CreateReview_NotCompleted(t *testing.T) {
	reviewRepo := new(mockReviewRepo)
	workRequests := new(mockWorkRequestReader)
	svc := NewReviewService(reviewRepo, workRequests, nil)
	ctx := context.Background()

	requesterID := uuid.New()
	wr := completedWorkRequest(requesterID, uuid.New())
	wr.Status = valueobject.WorkRequestStatusDelivered
	workRequests.On("FindByID", ctx, wr.ID).Return(wr, nil)

	_, err := svc.CreateReview(ctx, wr.ID, requesterID, 5, nil)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestReviewService_CreateReview_AlreadyReviewed(t *testing.T) {
	reviewRepo := new(mockReviewRepo)
	workRequests := new(mockWorkRequestReader)
	svc := NewReviewService(reviewRepo, workRequests, nil)
	ctx := context.Background()

	requesterID := uuid.New()
	wr := completedWorkRequest(requesterID, uuid.New())

	workRequests.On("FindByID", ctx, wr.ID).Return(wr, nil)
	reviewRepo.On("Create", ctx, mock.AnythingOfType("*models.Review")).Return(repository.ErrReviewExists)

	_, err := svc.CreateReview(ctx, wr.ID, requesterID, 5, nil)
	assert.True(t, apperror.IsConflict(err))
}

func TestReviewService_CreateReview_NotParticipant(t *testing.T) {
	reviewRepo := new(mockReviewRepo)
	workRequests := new(mockWorkRequestReader)
	svc := NewReviewService(reviewRepo, workRequests, nil)
	ctx := context.Background()

	wr := completedWorkRequest(uuid.New(), uuid.New())
	workRequests.On("FindByID", ctx, wr.ID).Return(wr, nil)

	_, err := svc.CreateReview(ctx, wr.ID, uuid.New(), 5, nil)
	assert.True(t, apperror.IsForbidden(err))
}

func TestReviewService_CreateReview_WorkRequestNotFound(t *testing.T) {
	reviewRepo := new(mockReviewRepo)
	workRequests := new(mockWorkRequestReader)
	svc := NewReviewService(reviewRepo, workRequests, nil)
	ctx := context.Background()

	id := uuid.New()
	workRequests.On("FindByID", ctx, id).Return(nil, apperror.ErrWorkRequestNotFound)

	_, err := svc.CreateReview(ctx, id, uuid.New(), 5, nil)
	assert.True(t, apperror.IsNotFound(err))
}

func TestReviewService_ListUserReviews(t *testing.T) {
	reviewRepo := new(mockReviewRepo)
	svc := NewReviewService(reviewRepo, new(mockWorkRequestReader), nil)
	ctx := context.Background()

	userID := uuid.New()
	expected := []models.Review{{ID: uuid.New()}, {ID: uuid.New()}}
	reviewRepo.On("ListByReviewedID", ctx, userID, 20, 0).Return(expected, nil)

	reviews, err := svc.ListUserReviews(ctx, userID, 500, 0)
	assert.NoError(t, err)
	assert.Len(t, reviews, 2)
}

func TestReviewService_GetUserRating_Cached(t *testing.T) {
	reviewRepo := new(mockReviewRepo)
	svc := NewReviewService(reviewRepo, new(mockWorkRequestReader), NewCacheService())
	ctx := context.Background()

	userID := uuid.New()
	reviewRepo.On("GetRatingSummary", ctx, userID).Return(&models.RatingSummary{Average: 4.5, Count: 2}, nil).Once()

	for i := 0; i < 3; i++ {
		summary, err := svc.GetUserRating(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 4.5, summary.Average)
	}
	reviewRepo.AssertNumberOfCalls(t, "GetRatingSummary", 1)
}

func TestReviewService_CanLeaveReview(t *testing.T) {
	workRequests := new(mockWorkRequestReader)
	svc := NewReviewService(new(mockReviewRepo), workRequests, nil)
	ctx := context.Background()

	requesterID := uuid.New()
	wr := completedWorkRequest(requesterID, uuid.New())
	missing := uuid.New()

	workRequests.On("FindByID", ctx, wr.ID).Return(wr, nil)
	workRequests.On("FindByID", ctx, missing).Return(nil, apperror.ErrWorkRequestNotFound)

	ok, err := svc.CanLeaveReview(ctx, wr.ID, requesterID)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.CanLeaveReview(ctx, wr.ID, uuid.New())
	assert.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.CanLeaveReview(ctx, missing, requesterID)
	assert.NoError(t, err)
	assert.False(t, ok)
}
