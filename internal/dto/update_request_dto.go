package dto

import (
	"time"

	"github.com/noah-isme/sma-results-api/internal/models"
)

// RequestUpdateRequest is the payload a teacher posts to propose a score change.
type RequestUpdateRequest struct {
	ResultID uint    `json:"result_id" validate:"required,gt=0"`
	NewScore float64 `json:"new_score" validate:"gte=0"`
	Reason   string  `json:"reason" validate:"required,min=3"`
}

// RejectUpdateRequest carries the mandatory reason for rejecting an update request.
type RejectUpdateRequest struct {
	Reason string `json:"reason" validate:"required,min=3"`
}

// UpdateRequestFilter narrows the update-request listing.
type UpdateRequestFilter struct {
	Status *string `query:"status" validate:"omitempty,oneof=pending approved rejected"`
}

// UpdateRequestResponse is returned when viewing update requests.
type UpdateRequestResponse struct {
	ID             uint            `json:"id"`
	ResultID       uint            `json:"result_id"`
	CurrentScore   float64         `json:"current_score"`
	NewScore       float64         `json:"new_score"`
	Reason         string          `json:"reason"`
	Status         string          `json:"status"`
	ResolutionNote string          `json:"resolution_note,omitempty"`
	RequestedBy    uint            `json:"requested_by"`
	RequestedAt    time.Time       `json:"requested_at"`
	ResolvedBy     *uint           `json:"resolved_by"`
	ResolvedAt     *time.Time      `json:"resolved_at"`
	Result         *ResultResponse `json:"result,omitempty"`
}

// NewUpdateRequestResponse converts a ResultUpdateRequest model into a DTO.
func NewUpdateRequestResponse(model models.ResultUpdateRequest) UpdateRequestResponse {
	response := UpdateRequestResponse{
		ID:             model.ID,
		ResultID:       model.ResultID,
		CurrentScore:   model.CurrentScore,
		NewScore:       model.NewScore,
		Reason:         model.Reason,
		Status:         model.Status,
		ResolutionNote: model.ResolutionNote,
		RequestedBy:    model.RequestedBy,
		RequestedAt:    model.RequestedAt,
		ResolvedBy:     model.ResolvedBy,
		ResolvedAt:     model.ResolvedAt,
	}

	if model.Result.ID != 0 {
		result := NewResultResponse(model.Result)
		response.Result = &result
	}

	return response
}

// NewUpdateRequestResponseSlice converts update request models into DTOs.
func NewUpdateRequestResponseSlice(requests []models.ResultUpdateRequest) []UpdateRequestResponse {
	responses := make([]UpdateRequestResponse, 0, len(requests))
	for _, request := range requests {
		responses = append(responses, NewUpdateRequestResponse(request))
	}

	return responses
}
