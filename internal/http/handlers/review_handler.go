package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/commissions-backend/internal/http/handlers/common"
	"github.com/ignatzorin/commissions-backend/internal/interface/http/response"
	"github.com/ignatzorin/commissions-backend/internal/service"
)

type ReviewHandler struct {
	reviews *service.ReviewService
}

func NewReviewHandler(reviews *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

// CreateReview POST /work-requests/:id/reviews
func (h *ReviewHandler) CreateReview(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}

	workRequestID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, "неверный ID заявки")
		return
	}

	var req struct {
		Rating  int     `json:"rating" binding:"required,min=1,max=5"`
		Comment *string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "рейтинг должен быть от 1 до 5")
		return
	}

	review, err := h.reviews.CreateReview(c.Request.Context(), workRequestID, userID, req.Rating, req.Comment)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, review)
}

// ListUserReviews GET /profiles/:id/reviews
func (h *ReviewHandler) ListUserReviews(c *gin.Context) {
	userID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, "неверный ID профиля")
		return
	}

	limit, offset := common.GetPagination(c)

	reviews, err := h.reviews.ListUserReviews(c.Request.Context(), userID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	summary, err := h.reviews.GetUserRating(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{
		"reviews":        reviews,
		"average_rating": summary.Average,
		"total_reviews":  summary.Count,
	})
}

// CanLeaveReview GET /work-requests/:id/can-review
func (h *ReviewHandler) CanLeaveReview(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}

	workRequestID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, "неверный ID заявки")
		return
	}

	canReview, err := h.reviews.CanLeaveReview(c.Request.Context(), workRequestID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"can_review": canReview})
}
