package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/commissions-backend/internal/domain/valueobject"
	"github.com/ignatzorin/commissions-backend/internal/interface/http/dto"
	"github.com/ignatzorin/commissions-backend/internal/interface/http/response"
	"github.com/ignatzorin/commissions-backend/internal/logger"
	"github.com/ignatzorin/commissions-backend/internal/storage"
	"github.com/ignatzorin/commissions-backend/internal/usecase/lifecycle"
)

type DeliveryHandler struct {
	submitUC DeliverySubmitter
	reviewUC DeliveryReviewer
	related  RelatedLister
	files    DeliverableStore
}

func NewDeliveryHandler(submitUC DeliverySubmitter, reviewUC DeliveryReviewer, related RelatedLister, files DeliverableStore) *DeliveryHandler {
	return &DeliveryHandler{
		submitUC: submitUC,
		reviewUC: reviewUC,
		related:  related,
		files:    files,
	}
}

// Submit POST /work-requests/:id/deliveries
func (h *DeliveryHandler) Submit(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	workRequestID, ok := pathUUID(c, "id", "некорректный ID заявки")
	if !ok {
		return
	}

	var req dto.SubmitDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}

	result, err := h.submitUC.Execute(c.Request.Context(), lifecycle.SubmitDeliveryInput{
		WorkRequestID: workRequestID,
		ContractorID:  userID,
		Message:       req.Message,
		Locator:       req.Locator,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Action(c, http.StatusCreated, toDeliveryAction(result), result.Warnings)
}

// Upload POST /work-requests/:id/deliveries/upload (multipart: file, message)
func (h *DeliveryHandler) Upload(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	workRequestID, ok := pathUUID(c, "id", "некорректный ID заявки")
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "файл обязателен")
		return
	}
	message := c.PostForm("message")
	if message == "" {
		response.BadRequest(c, "сообщение к сдаче работы обязательно")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.BadRequest(c, "не удалось прочитать файл")
		return
	}
	defer file.Close()

	stored, err := h.files.Save(c.Request.Context(), workRequestID, fileHeader.Filename, file)
	if err != nil {
		storageError(c, err)
		return
	}

	result, err := h.submitUC.Execute(c.Request.Context(), lifecycle.SubmitDeliveryInput{
		WorkRequestID: workRequestID,
		ContractorID:  userID,
		Message:       message,
		Locator:       &stored.Locator,
	})
	if err != nil {
		// Сдача не прошла, файл больше никому не нужен.
		if delErr := h.files.Delete(c.Request.Context(), stored.Locator); delErr != nil {
			logger.Log.WithError(delErr).WithField("locator", stored.Locator).Warn("Failed to remove orphaned deliverable")
		}
		response.Error(c, err)
		return
	}

	response.Action(c, http.StatusCreated, toDeliveryAction(result), result.Warnings)
}

// List GET /work-requests/:id/deliveries
func (h *DeliveryHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	workRequestID, ok := pathUUID(c, "id", "некорректный ID заявки")
	if !ok {
		return
	}

	deliveries, err := h.related.Deliveries(c.Request.Context(), workRequestID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToDeliveryResponses(deliveries))
}

// Review POST /deliveries/:deliveryId/review
func (h *DeliveryHandler) Review(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	deliveryID, ok := pathUUID(c, "deliveryId", "некорректный ID сдачи работы")
	if !ok {
		return
	}

	var req dto.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "решение должно быть approve или reject")
		return
	}
	decision, err := valueobject.NewDecision(req.Decision)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.reviewUC.Execute(c.Request.Context(), lifecycle.ReviewDeliveryInput{
		DeliveryID:  deliveryID,
		RequesterID: userID,
		Decision:    decision,
		Feedback:    req.Feedback,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Action(c, http.StatusOK, toDeliveryAction(result), result.Warnings)
}

func toDeliveryAction(result *lifecycle.DeliveryResult) dto.DeliveryActionResponse {
	return dto.DeliveryActionResponse{
		Delivery:    dto.ToDeliveryResponse(result.Delivery),
		WorkRequest: dto.ToWorkRequestResponse(result.WorkRequest),
	}
}

func storageError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrFileTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, response.Response{
			Success: false,
			Error:   &response.ErrorInfo{Code: "FILE_TOO_LARGE", Message: "размер файла превышает лимит"},
		})
	case errors.Is(err, storage.ErrEmptyFile):
		response.BadRequest(c, "файл пустой")
	case errors.Is(err, storage.ErrUnsupportedType):
		response.BadRequest(c, "неподдерживаемый тип файла")
	case errors.Is(err, storage.ErrExtensionMismatch):
		response.BadRequest(c, "расширение файла не соответствует содержимому")
	default:
		response.Error(c, err)
	}
}
