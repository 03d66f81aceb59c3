package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/commissions-backend/internal/models"
	"github.com/ignatzorin/commissions-backend/internal/repository/common"
)

// ErrReviewExists - участник уже оставил отзыв по заявке.
var ErrReviewExists = errors.New("review already exists")

type ReviewRepository struct {
	db *sqlx.DB
}

func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create создаёт отзыв.
func (r *ReviewRepository) Create(ctx context.Context, review *models.Review) error {
	query := `
		INSERT INTO reviews (work_request_id, reviewer_id, reviewed_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		review.WorkRequestID, review.ReviewerID, review.ReviewedID, review.Rating, review.Comment,
	).Scan(&review.ID, &review.CreatedAt)
	if err != nil {
		if common.IsUniqueViolation(err, "uq_reviews_reviewer") {
			return ErrReviewExists
		}
		return fmt.Errorf("review repository: create %w", err)
	}
	return nil
}

// ListByReviewedID возвращает отзывы о пользователе.
func (r *ReviewRepository) ListByReviewedID(ctx context.Context, reviewedID uuid.UUID, limit, offset int) ([]models.Review, error) {
	var reviews []models.Review
	err := r.db.SelectContext(ctx, &reviews, `
		SELECT id, work_request_id, reviewer_id, reviewed_id, rating, comment, created_at
		FROM reviews WHERE reviewed_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, reviewedID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("review repository: list %w", err)
	}
	return reviews, nil
}

// GetRatingSummary возвращает среднюю оценку и количество отзывов.
func (r *ReviewRepository) GetRatingSummary(ctx context.Context, userID uuid.UUID) (*models.RatingSummary, error) {
	var summary models.RatingSummary
	err := r.db.GetContext(ctx, &summary, `
		SELECT COALESCE(AVG(rating), 0)::float8 AS average, COUNT(*) AS count
		FROM reviews WHERE reviewed_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("review repository: rating summary %w", err)
	}
	return &summary, nil
}
