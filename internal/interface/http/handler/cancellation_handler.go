package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/commissions-backend/internal/domain/valueobject"
	"github.com/ignatzorin/commissions-backend/internal/interface/http/dto"
	"github.com/ignatzorin/commissions-backend/internal/interface/http/response"
	"github.com/ignatzorin/commissions-backend/internal/usecase/lifecycle"
)

type CancellationHandler struct {
	proposeUC CancellationProposer
	respondUC CancellationResponder
	related   RelatedLister
}

func NewCancellationHandler(proposeUC CancellationProposer, respondUC CancellationResponder, related RelatedLister) *CancellationHandler {
	return &CancellationHandler{
		proposeUC: proposeUC,
		respondUC: respondUC,
		related:   related,
	}
}

// Propose POST /work-requests/:id/cancellations
func (h *CancellationHandler) Propose(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	workRequestID, ok := pathUUID(c, "id", "некорректный ID заявки")
	if !ok {
		return
	}

	var req dto.ProposeCancellationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "причина отмены обязательна")
		return
	}

	result, err := h.proposeUC.Execute(c.Request.Context(), lifecycle.ProposeCancellationInput{
		WorkRequestID: workRequestID,
		InitiatorID:   userID,
		Reason:        req.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Action(c, http.StatusCreated, toCancellationAction(result), result.Warnings)
}

// Respond POST /cancellations/:cancellationId/respond
func (h *CancellationHandler) Respond(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	cancellationID, ok := pathUUID(c, "cancellationId", "некорректный ID запроса на отмену")
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

	result, err := h.respondUC.Execute(c.Request.Context(), lifecycle.RespondCancellationInput{
		CancellationID: cancellationID,
		ResponderID:    userID,
		Decision:       decision,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Action(c, http.StatusOK, toCancellationAction(result), result.Warnings)
}

// List GET /work-requests/:id/cancellations
func (h *CancellationHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	workRequestID, ok := pathUUID(c, "id", "некорректный ID заявки")
	if !ok {
		return
	}

	items, err := h.related.Cancellations(c.Request.Context(), workRequestID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToCancellationResponses(items))
}

func toCancellationAction(result *lifecycle.CancellationResult) dto.CancellationActionResponse {
	return dto.CancellationActionResponse{
		Cancellation: dto.ToCancellationResponse(result.Cancellation),
		WorkRequest:  dto.ToWorkRequestResponse(result.WorkRequest),
	}
}
