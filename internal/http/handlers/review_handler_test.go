package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestReviewHandler_CreateReview_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ReviewHandler{reviews: nil}
	r.POST("/work-requests/:id/reviews", handler.CreateReview)

	workRequestID := uuid.New()
	req, _ := http.NewRequest("POST", "/work-requests/"+workRequestID.String()+"/reviews", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReviewHandler_CreateReview_InvalidRating(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	withUser(r, uuid.New())
	handler := &ReviewHandler{reviews: nil}
	r.POST("/work-requests/:id/reviews", handler.CreateReview)

	req, _ := http.NewRequest("POST", "/work-requests/"+uuid.NewString()+"/reviews", jsonBody(`{"rating":7}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReviewHandler_ListUserReviews_InvalidUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ReviewHandler{reviews: nil}
	r.GET("/profiles/:id/reviews", handler.ListUserReviews)

	req, _ := http.NewRequest("GET", "/profiles/invalid-uuid/reviews", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReviewHandler_CanLeaveReview_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ReviewHandler{reviews: nil}
	r.GET("/work-requests/:id/can-review", handler.CanLeaveReview)

	workRequestID := uuid.New()
	req, _ := http.NewRequest("GET", "/work-requests/"+workRequestID.String()+"/can-review", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReviewHandler_CanLeaveReview_InvalidID_WithAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	withUser(r, uuid.New())
	handler := &ReviewHandler{reviews: nil}
	r.GET("/work-requests/:id/can-review", handler.CanLeaveReview)

	// С авторизацией, но невалидный UUID
	req, _ := http.NewRequest("GET", "/work-requests/invalid-uuid/can-review", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
