package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/commissions-backend/internal/domain/entity"
	"github.com/ignatzorin/commissions-backend/internal/domain/valueobject"
	"github.com/ignatzorin/commissions-backend/internal/usecase/lifecycle"
)

type CreateWorkRequestRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description"`
	Budget      string  `json:"budget" binding:"required"`
	Deadline    *string `json:"deadline"`
}

type WorkRequestResponse struct {
	ID               uuid.UUID  `json:"id"`
	RequesterID      uuid.UUID  `json:"requester_id"`
	ContractorID     *uuid.UUID `json:"contractor_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Budget           string     `json:"budget"`
	FinalPrice       *string    `json:"final_price"`
	Status           string     `json:"status"`
	Deadline         *time.Time `json:"deadline"`
	Positions        int        `json:"positions"`
	ApplicationsOpen bool       `json:"applications_open"`
	ContractedAt     *time.Time `json:"contracted_at,omitempty"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
	DeliveredAt      *time.Time `json:"delivered_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// WorkRequestDetailResponse - заявка глазами конкретного зрителя.
type WorkRequestDetailResponse struct {
	WorkRequestResponse
	Role      string `json:"role"`
	IsOverdue bool   `json:"is_overdue"`
}

type StatusChangeResponse struct {
	ID         uuid.UUID  `json:"id"`
	FromStatus *string    `json:"from_status"`
	ToStatus   string     `json:"to_status"`
	ActorID    *uuid.UUID `json:"actor_id"`
	Note       string     `json:"note,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func ToWorkRequestResponse(wr *entity.WorkRequest) WorkRequestResponse {
	resp := WorkRequestResponse{
		ID:               wr.ID,
		RequesterID:      wr.RequesterID,
		ContractorID:     wr.ContractorID,
		Title:            wr.Title,
		Description:      wr.Description,
		Budget:           wr.Budget.String(),
		Status:           string(wr.Status),
		Deadline:         wr.Deadline,
		Positions:        wr.Positions,
		ApplicationsOpen: wr.ApplicationsOpen,
		ContractedAt:     wr.ContractedAt,
		PaidAt:           wr.PaidAt,
		DeliveredAt:      wr.DeliveredAt,
		CompletedAt:      wr.CompletedAt,
		CancelledAt:      wr.CancelledAt,
		CreatedAt:        wr.CreatedAt,
		UpdatedAt:        wr.UpdatedAt,
	}
	if wr.FinalPrice != nil {
		price := wr.FinalPrice.String()
		resp.FinalPrice = &price
	}
	return resp
}

func ToWorkRequestResponses(items []*entity.WorkRequest) []WorkRequestResponse {
	responses := make([]WorkRequestResponse, 0, len(items))
	for _, wr := range items {
		responses = append(responses, ToWorkRequestResponse(wr))
	}
	return responses
}

func ToWorkRequestDetailResponse(view *lifecycle.WorkRequestView) WorkRequestDetailResponse {
	return WorkRequestDetailResponse{
		WorkRequestResponse: ToWorkRequestResponse(view.WorkRequest),
		Role:                string(view.Role),
		IsOverdue:           view.IsOverdue,
	}
}

func ToStatusChangeResponses(items []*entity.StatusChange) []StatusChangeResponse {
	responses := make([]StatusChangeResponse, 0, len(items))
	for _, sc := range items {
		var from *string
		if sc.FromStatus != "" {
			s := string(sc.FromStatus)
			from = &s
		}
		responses = append(responses, StatusChangeResponse{
			ID:         sc.ID,
			FromStatus: from,
			ToStatus:   string(sc.ToStatus),
			ActorID:    sc.ActorID,
			Note:       sc.Note,
			CreatedAt:  sc.CreatedAt,
		})
	}
	return responses
}

func ParseDeadline(deadlineStr *string) (*time.Time, error) {
	if deadlineStr == nil || *deadlineStr == "" {
		return nil, nil
	}

	deadline, err := time.Parse(time.RFC3339, *deadlineStr)
	if err != nil {
		return nil, err
	}

	return &deadline, nil
}

// ParseMoney переводит сумму из запроса ("1500.50") в минимальные единицы.
func ParseMoney(raw string) (int64, error) {
	amount, err := valueobject.ParseAmount(raw)
	if err != nil {
		return 0, err
	}
	return amount.Minor(), nil
}
