package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/commissions-backend/internal/domain/entity"
)

type SubmitApplicationRequest struct {
	Message       string `json:"message" binding:"required"`
	ProposedPrice string `json:"proposed_price" binding:"required"`
}

// AcceptApplicationRequest: цена и дедлайн необязательны, по умолчанию берутся из отклика и заявки.
type AcceptApplicationRequest struct {
	Price    *string `json:"price"`
	Deadline *string `json:"deadline"`
}

type SubmitDeliveryRequest struct {
	Message string  `json:"message" binding:"required"`
	Locator *string `json:"locator"`
}

type DecisionRequest struct {
	Decision string `json:"decision" binding:"required,oneof=approve reject"`
	Feedback string `json:"feedback"`
}

type ProposeCancellationRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type ApplicationResponse struct {
	ID            uuid.UUID `json:"id"`
	WorkRequestID uuid.UUID `json:"work_request_id"`
	ApplicantID   uuid.UUID `json:"applicant_id"`
	Message       string    `json:"message"`
	ProposedPrice string    `json:"proposed_price"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ContractResponse struct {
	WorkRequest          WorkRequestResponse `json:"work_request"`
	Application          ApplicationResponse `json:"application"`
	RejectedApplications int64               `json:"rejected_applications"`
}

type DeliveryResponse struct {
	ID            uuid.UUID  `json:"id"`
	WorkRequestID uuid.UUID  `json:"work_request_id"`
	ContractorID  uuid.UUID  `json:"contractor_id"`
	Message       string     `json:"message"`
	Locator       *string    `json:"locator,omitempty"`
	Feedback      *string    `json:"feedback,omitempty"`
	Status        string     `json:"status"`
	ReviewedAt    *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type DeliveryActionResponse struct {
	Delivery    DeliveryResponse    `json:"delivery"`
	WorkRequest WorkRequestResponse `json:"work_request"`
}

type CancellationResponse struct {
	ID             uuid.UUID  `json:"id"`
	WorkRequestID  uuid.UUID  `json:"work_request_id"`
	InitiatorID    uuid.UUID  `json:"initiator_id"`
	Reason         string     `json:"reason"`
	Status         string     `json:"status"`
	ResolvedBy     *uuid.UUID `json:"resolved_by,omitempty"`
	ResolutionNote *string    `json:"resolution_note,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type CancellationActionResponse struct {
	Cancellation CancellationResponse `json:"cancellation"`
	WorkRequest  WorkRequestResponse  `json:"work_request"`
}

func ToApplicationResponse(app *entity.Application) ApplicationResponse {
	return ApplicationResponse{
		ID:            app.ID,
		WorkRequestID: app.WorkRequestID,
		ApplicantID:   app.ApplicantID,
		Message:       app.Message,
		ProposedPrice: app.ProposedPrice.String(),
		Status:        string(app.Status),
		CreatedAt:     app.CreatedAt,
		UpdatedAt:     app.UpdatedAt,
	}
}

func ToApplicationResponses(items []*entity.Application) []ApplicationResponse {
	responses := make([]ApplicationResponse, 0, len(items))
	for _, app := range items {
		responses = append(responses, ToApplicationResponse(app))
	}
	return responses
}

func ToDeliveryResponse(d *entity.Delivery) DeliveryResponse {
	return DeliveryResponse{
		ID:            d.ID,
		WorkRequestID: d.WorkRequestID,
		ContractorID:  d.ContractorID,
		Message:       d.Message,
		Locator:       d.Locator,
		Feedback:      d.Feedback,
		Status:        string(d.Status),
		ReviewedAt:    d.ReviewedAt,
		CreatedAt:     d.CreatedAt,
	}
}

func ToDeliveryResponses(items []*entity.Delivery) []DeliveryResponse {
	responses := make([]DeliveryResponse, 0, len(items))
	for _, d := range items {
		responses = append(responses, ToDeliveryResponse(d))
	}
	return responses
}

func ToCancellationResponse(c *entity.CancellationRequest) CancellationResponse {
	return CancellationResponse{
		ID:             c.ID,
		WorkRequestID:  c.WorkRequestID,
		InitiatorID:    c.InitiatorID,
		Reason:         c.Reason,
		Status:         string(c.Status),
		ResolvedBy:     c.ResolvedBy,
		ResolutionNote: c.ResolutionNote,
		ResolvedAt:     c.ResolvedAt,
		CreatedAt:      c.CreatedAt,
	}
}

func ToCancellationResponses(items []*entity.CancellationRequest) []CancellationResponse {
	responses := make([]CancellationResponse, 0, len(items))
	for _, c := range items {
		responses = append(responses, ToCancellationResponse(c))
	}
	return responses
}
