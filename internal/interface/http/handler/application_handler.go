package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/commissions-backend/internal/interface/http/dto"
	"github.com/ignatzorin/commissions-backend/internal/interface/http/response"
	"github.com/ignatzorin/commissions-backend/internal/usecase/lifecycle"
)

type ApplicationHandler struct {
	submitUC ApplicationSubmitter
	acceptUC ApplicationAcceptor
	related  RelatedLister
}

func NewApplicationHandler(submitUC ApplicationSubmitter, acceptUC ApplicationAcceptor, related RelatedLister) *ApplicationHandler {
	return &ApplicationHandler{
		submitUC: submitUC,
		acceptUC: acceptUC,
		related:  related,
	}
}

// Submit POST /work-requests/:id/applications
func (h *ApplicationHandler) Submit(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	workRequestID, ok := pathUUID(c, "id", "некорректный ID заявки")
	if !ok {
		return
	}

	var req dto.SubmitApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}

	price, err := dto.ParseMoney(req.ProposedPrice)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.submitUC.Execute(c.Request.Context(), lifecycle.SubmitApplicationInput{
		WorkRequestID: workRequestID,
		ApplicantID:   userID,
		Message:       req.Message,
		ProposedPrice: price,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Action(c, http.StatusCreated, dto.ToApplicationResponse(result.Application), result.Warnings)
}

// List GET /work-requests/:id/applications
func (h *ApplicationHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	workRequestID, ok := pathUUID(c, "id", "некорректный ID заявки")
	if !ok {
		return
	}

	apps, err := h.related.Applications(c.Request.Context(), workRequestID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToApplicationResponses(apps))
}

// ListMine GET /applications/my
func (h *ApplicationHandler) ListMine(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	apps, err := h.related.MyApplications(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToApplicationResponses(apps))
}

// Accept POST /work-requests/:id/applications/:applicationId/accept
func (h *ApplicationHandler) Accept(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	workRequestID, ok := pathUUID(c, "id", "некорректный ID заявки")
	if !ok {
		return
	}
	applicationID, ok := pathUUID(c, "applicationId", "некорректный ID отклика")
	if !ok {
		return
	}

	// Тело необязательно: без него цена и дедлайн берутся из отклика и заявки.
	var req dto.AcceptApplicationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "некорректные данные запроса")
			return
		}
	}

	input := lifecycle.AcceptApplicationInput{
		WorkRequestID: workRequestID,
		ApplicationID: applicationID,
		RequesterID:   userID,
	}
	if req.Price != nil && *req.Price != "" {
		price, err := dto.ParseMoney(*req.Price)
		if err != nil {
			response.Error(c, err)
			return
		}
		input.Price = price
	}
	deadline, err := dto.ParseDeadline(req.Deadline)
	if err != nil {
		response.BadRequest(c, "некорректный формат дедлайна")
		return
	}
	input.Deadline = deadline

	result, err := h.acceptUC.Execute(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Action(c, http.StatusOK, dto.ContractResponse{
		WorkRequest:          dto.ToWorkRequestResponse(result.WorkRequest),
		Application:          dto.ToApplicationResponse(result.Application),
		RejectedApplications: result.RejectedApplications,
	}, result.Warnings)
}
