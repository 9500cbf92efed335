package models

import "time"

// Approval statuses for a submitted result.
const (
	// ResultStatusPending indicates the result awaits an exam officer decision.
	ResultStatusPending = "pending"
	// ResultStatusApproved indicates the result has been accepted.
	ResultStatusApproved = "approved"
	// ResultStatusRejected indicates the result has been rejected with a reason.
	ResultStatusRejected = "rejected"
)

// Result represents one student's recorded score for one subject within one exam.
//
// Active backs the composite uniqueness guarantee: it is true for pending and
// approved rows and NULL for rejected ones, so the unique index over
// (student, subject, exam, active) lets a teacher resubmit after a rejection
// while the rejected row remains for audit.
type Result struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	StudentID       uint       `gorm:"not null;uniqueIndex:uniq_active_result" json:"student_id"`
	SubjectID       uint       `gorm:"not null;uniqueIndex:uniq_active_result" json:"subject_id"`
	ExamID          uint       `gorm:"not null;uniqueIndex:uniq_active_result" json:"exam_id"`
	Active          *bool      `gorm:"uniqueIndex:uniq_active_result" json:"-"`
	TestScore       *float64   `json:"test_score"`
	ExamScore       *float64   `json:"exam_score"`
	MarksObtained   float64    `gorm:"not null" json:"marks_obtained"`
	TotalScore      float64    `gorm:"not null;default:100" json:"total_score"`
	GradeLetter     string     `gorm:"size:4" json:"grade_letter"`
	Remarks         string     `gorm:"type:text" json:"remarks"`
	ApprovalStatus  string     `gorm:"size:16;not null;index" json:"approval_status"`
	RejectionReason string     `gorm:"type:text" json:"rejection_reason,omitempty"`
	IsVerified      bool       `gorm:"not null;default:false" json:"is_verified"`
	IsPublished     bool       `gorm:"not null;default:false" json:"is_published"`
	SubmittedBy     uint       `gorm:"not null" json:"submitted_by"`
	SubmittedAt     time.Time  `gorm:"not null" json:"submitted_at"`
	ApprovedBy      *uint      `json:"approved_by"`
	ApprovedAt      *time.Time `json:"approved_at"`
	PublishedAt     *time.Time `json:"published_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Student         Student    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
	Subject         Subject    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"subject"`
	Exam            Exam       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"exam"`
}

// IsEditable reports whether the result may still be mutated directly.
// Published results only change through an approved update request.
func (r Result) IsEditable() bool {
	return r.ApprovalStatus == ResultStatusApproved && !r.IsPublished
}

// IsPending reports whether the result still awaits an approval decision.
func (r Result) IsPending() bool {
	return r.ApprovalStatus == ResultStatusPending
}
