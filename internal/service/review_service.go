package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/commissions-backend/internal/domain/entity"
	"github.com/ignatzorin/commissions-backend/internal/domain/valueobject"
	"github.com/ignatzorin/commissions-backend/internal/models"
	"github.com/ignatzorin/commissions-backend/internal/pkg/apperror"
	"github.com/ignatzorin/commissions-backend/internal/repository"
	"github.com/ignatzorin/commissions-backend/internal/validation"
)

const ratingCacheTTL = 10 * time.Minute

type ReviewRepository interface {
	Create(ctx context.Context, review *models.Review) error
	ListByReviewedID(ctx context.Context, reviewedID uuid.UUID, limit, offset int) ([]models.Review, error)
	GetRatingSummary(ctx context.Context, userID uuid.UUID) (*models.RatingSummary, error)
}

type WorkRequestReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.WorkRequest, error)
}

type ReviewService struct {
	repo         ReviewRepository
	workRequests WorkRequestReader
	cache        *CacheService
}

func NewReviewService(repo ReviewRepository, workRequests WorkRequestReader, cache *CacheService) *ReviewService {
	return &ReviewService{repo: repo, workRequests: workRequests, cache: cache}
}

// CreateReview создаёт отзыв участника о второй стороне завершённой заявки.
func (s *ReviewService) CreateReview(ctx context.Context, workRequestID, reviewerID uuid.UUID, rating int, comment *string) (*models.Review, error) {
	wr, err := s.workRequests.FindByID(ctx, workRequestID)
	if err != nil {
		return nil, err
	}

	if wr.Status != valueobject.WorkRequestStatusCompleted {
		return nil, apperror.InvalidState("отзыв можно оставить только после завершения заявки")
	}

	reviewedID, ok := wr.Counterparty(reviewerID)
	if !ok {
		return nil, apperror.Forbidden("вы не участник этой заявки")
	}

	if err := validation.ValidateRating(rating); err != nil {
		return nil, apperror.Validation(err.Error())
	}
	if comment != nil {
		trimmed := strings.TrimSpace(*comment)
		if err := validation.ValidateMaxLength("комментарий", trimmed, validation.MaxReviewCommentLength); err != nil {
			return nil, apperror.Validation(err.Error())
		}
		if trimmed == "" {
			comment = nil
		} else {
			comment = &trimmed
		}
	}

	review := &models.Review{
		WorkRequestID: workRequestID,
		ReviewerID:    reviewerID,
		ReviewedID:    reviewedID,
		Rating:        rating,
		Comment:       comment,
	}

	if err := s.repo.Create(ctx, review); err != nil {
		if errors.Is(err, repository.ErrReviewExists) {
			return nil, apperror.Conflict("вы уже оставили отзыв по этой заявке")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось сохранить отзыв")
	}

	if s.cache != nil {
		s.cache.InvalidateUserCache(reviewedID)
	}

	return review, nil
}

// ListUserReviews возвращает отзывы о пользователе.
func (s *ReviewService) ListUserReviews(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Review, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByReviewedID(ctx, userID, limit, offset)
}

// GetUserRating возвращает средний рейтинг и количество отзывов.
func (s *ReviewService) GetUserRating(ctx context.Context, userID uuid.UUID) (*models.RatingSummary, error) {
	if s.cache == nil {
		return s.repo.GetRatingSummary(ctx, userID)
	}

	value, err := s.cache.GetOrSet(ctx, RatingCacheKey(userID), ratingCacheTTL, func() (interface{}, error) {
		return s.repo.GetRatingSummary(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return value.(*models.RatingSummary), nil
}

// CanLeaveReview проверяет, может ли пользователь оставить отзыв.
func (s *ReviewService) CanLeaveReview(ctx context.Context, workRequestID, userID uuid.UUID) (bool, error) {
	wr, err := s.workRequests.FindByID(ctx, workRequestID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if wr.Status != valueobject.WorkRequestStatusCompleted {
		return false, nil
	}
	_, ok := wr.Counterparty(userID)
	return ok, nil
}
