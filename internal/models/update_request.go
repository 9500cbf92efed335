package models

import "time"

// Statuses for a result update request.
const (
	UpdateRequestStatusPending  = "pending"
	UpdateRequestStatusApproved = "approved"
	UpdateRequestStatusRejected = "rejected"
)

// ResultUpdateRequest is a proposed change to an already-approved result's
// score, itself subject to exam officer approval before the result mutates.
type ResultUpdateRequest struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	ResultID       uint       `gorm:"not null;index" json:"result_id"`
	CurrentScore   float64    `gorm:"not null" json:"current_score"`
	NewScore       float64    `gorm:"not null" json:"new_score"`
	Reason         string     `gorm:"type:text;not null" json:"reason"`
	Status         string     `gorm:"size:16;not null;index" json:"status"`
	ResolutionNote string     `gorm:"type:text" json:"resolution_note,omitempty"`
	RequestedBy    uint       `gorm:"not null" json:"requested_by"`
	RequestedAt    time.Time  `gorm:"not null" json:"requested_at"`
	ResolvedBy     *uint      `json:"resolved_by"`
	ResolvedAt     *time.Time `json:"resolved_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	Result         Result     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"result"`
}

// IsResolved reports whether the request has received a final decision.
func (r ResultUpdateRequest) IsResolved() bool {
	return r.Status != UpdateRequestStatusPending
}
