package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/commissions-backend/internal/domain/repository"
	"github.com/ignatzorin/commissions-backend/internal/domain/valueobject"
	"github.com/ignatzorin/commissions-backend/internal/interface/http/dto"
	"github.com/ignatzorin/commissions-backend/internal/interface/http/response"
	"github.com/ignatzorin/commissions-backend/internal/usecase/lifecycle"
)

type WorkRequestHandler struct {
	createUC WorkRequestCreator
	getUC    WorkRequestGetter
	listUC   WorkRequestLister
	related  RelatedLister
	payUC    Payer
}

func NewWorkRequestHandler(
	createUC WorkRequestCreator,
	getUC WorkRequestGetter,
	listUC WorkRequestLister,
	related RelatedLister,
	payUC Payer,
) *WorkRequestHandler {
	return &WorkRequestHandler{
		createUC: createUC,
		getUC:    getUC,
		listUC:   listUC,
		related:  related,
		payUC:    payUC,
	}
}

// Create POST /work-requests
func (h *WorkRequestHandler) Create(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req dto.CreateWorkRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}

	budget, err := dto.ParseMoney(req.Budget)
	if err != nil {
		response.Error(c, err)
		return
	}

	deadline, err := dto.ParseDeadline(req.Deadline)
	if err != nil {
		response.BadRequest(c, "некорректный формат дедлайна")
		return
	}

	wr, err := h.createUC.Execute(c.Request.Context(), lifecycle.CreateWorkRequestInput{
		RequesterID: userID,
		Title:       req.Title,
		Description: req.Description,
		Budget:      budget,
		Deadline:    deadline,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToWorkRequestResponse(wr))
}

// Get GET /work-requests/:id
func (h *WorkRequestHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id", "некорректный ID заявки")
	if !ok {
		return
	}

	view, err := h.getUC.Execute(c.Request.Context(), id, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToWorkRequestDetailResponse(view))
}

// ListOpen GET /work-requests - лента заявок, принимающих отклики.
func (h *WorkRequestHandler) ListOpen(c *gin.Context) {
	limit, offset := pagination(c)
	filter := repository.WorkRequestFilter{
		OnlyOpen: true,
		Limit:    limit,
		Offset:   offset,
	}

	items, total, err := h.listUC.Execute(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, dto.ToWorkRequestResponses(items), total, limit, offset)
}

// ListMine GET /work-requests/my?status=
func (h *WorkRequestHandler) ListMine(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	limit, offset := pagination(c)
	filter := repository.WorkRequestFilter{
		ParticipantID: &userID,
		Limit:         limit,
		Offset:        offset,
	}
	if raw := c.Query("status"); raw != "" {
		status, err := valueobject.NewWorkRequestStatus(raw)
		if err != nil {
			response.Error(c, err)
			return
		}
		filter.Status = &status
	}

	items, total, err := h.listUC.Execute(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, dto.ToWorkRequestResponses(items), total, limit, offset)
}

// History GET /work-requests/:id/history
func (h *WorkRequestHandler) History(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id", "некорректный ID заявки")
	if !ok {
		return
	}

	changes, err := h.related.History(c.Request.Context(), id, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToStatusChangeResponses(changes))
}

// Pay POST /work-requests/:id/pay
func (h *WorkRequestHandler) Pay(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id", "некорректный ID заявки")
	if !ok {
		return
	}

	result, err := h.payUC.Execute(c.Request.Context(), id, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Action(c, http.StatusOK, dto.ToWorkRequestResponse(result.WorkRequest), result.Warnings)
}
