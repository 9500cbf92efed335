package dto

import (
	"time"

	"github.com/noah-isme/sma-results-api/internal/models"
)

// SubmitGradeRequest is the payload a teacher posts to record a grade.
type SubmitGradeRequest struct {
	StudentID     uint     `json:"student_id" validate:"required,gt=0"`
	SubjectID     uint     `json:"subject_id" validate:"required,gt=0"`
	ExamID        uint     `json:"exam_id" validate:"required,gt=0"`
	MarksObtained float64  `json:"marks_obtained" validate:"gte=0"`
	TotalScore    *float64 `json:"total_score" validate:"omitempty,gt=0"`
	TestScore     *float64 `json:"test_score" validate:"omitempty,gte=0"`
	ExamScore     *float64 `json:"exam_score" validate:"omitempty,gte=0"`
	Remarks       string   `json:"remarks" validate:"omitempty,max=2000"`
}

// RejectResultRequest carries the mandatory reason for a rejection.
type RejectResultRequest struct {
	Reason string `json:"reason" validate:"required,min=3"`
}

// VerifyResultRequest toggles the independent verification flag.
type VerifyResultRequest struct {
	Verified bool `json:"verified"`
}

// PendingGradeFilter narrows the pending-grades listing.
type PendingGradeFilter struct {
	ExamID    *uint `query:"exam_id"`
	SubjectID *uint `query:"subject_id"`
}

// StudentLite summarizes a student in result responses.
type StudentLite struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Class string `json:"class"`
}

// SubjectLite summarizes a subject in result responses.
type SubjectLite struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// ExamLite summarizes an exam in result responses.
type ExamLite struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Term string `json:"term"`
}

// ResultResponse is returned to API clients when viewing results.
type ResultResponse struct {
	ID              uint        `json:"id"`
	StudentID       uint        `json:"student_id"`
	SubjectID       uint        `json:"subject_id"`
	ExamID          uint        `json:"exam_id"`
	TestScore       *float64    `json:"test_score"`
	ExamScore       *float64    `json:"exam_score"`
	MarksObtained   float64     `json:"marks_obtained"`
	TotalScore      float64     `json:"total_score"`
	GradeLetter     string      `json:"grade_letter"`
	Remarks         string      `json:"remarks,omitempty"`
	ApprovalStatus  string      `json:"approval_status"`
	RejectionReason string      `json:"rejection_reason,omitempty"`
	IsVerified      bool        `json:"is_verified"`
	IsPublished     bool        `json:"is_published"`
	IsEditable      bool        `json:"is_editable"`
	SubmittedBy     uint        `json:"submitted_by"`
	SubmittedAt     time.Time   `json:"submitted_at"`
	ApprovedBy      *uint       `json:"approved_by"`
	ApprovedAt      *time.Time  `json:"approved_at"`
	PublishedAt     *time.Time  `json:"published_at"`
	Student         StudentLite `json:"student"`
	Subject         SubjectLite `json:"subject"`
	Exam            ExamLite    `json:"exam"`
}

// NewResultResponse converts a Result model into a DTO.
func NewResultResponse(model models.Result) ResultResponse {
	response := ResultResponse{
		ID:              model.ID,
		StudentID:       model.StudentID,
		SubjectID:       model.SubjectID,
		ExamID:          model.ExamID,
		TestScore:       model.TestScore,
		ExamScore:       model.ExamScore,
		MarksObtained:   model.MarksObtained,
		TotalScore:      model.TotalScore,
		GradeLetter:     model.GradeLetter,
		Remarks:         model.Remarks,
		ApprovalStatus:  model.ApprovalStatus,
		RejectionReason: model.RejectionReason,
		IsVerified:      model.IsVerified,
		IsPublished:     model.IsPublished,
		IsEditable:      model.IsEditable(),
		SubmittedBy:     model.SubmittedBy,
		SubmittedAt:     model.SubmittedAt,
		ApprovedBy:      model.ApprovedBy,
		ApprovedAt:      model.ApprovedAt,
		PublishedAt:     model.PublishedAt,
	}

	if model.Student.ID != 0 {
		response.Student = StudentLite{
			ID:    model.Student.ID,
			Name:  model.Student.Name,
			Class: model.Student.Class,
		}
	}

	if model.Subject.ID != 0 {
		response.Subject = SubjectLite{
			ID:   model.Subject.ID,
			Name: model.Subject.Name,
			Code: model.Subject.Code,
		}
	}

	if model.Exam.ID != 0 {
		response.Exam = ExamLite{
			ID:   model.Exam.ID,
			Name: model.Exam.Name,
			Term: model.Exam.Term,
		}
	}

	return response
}

// NewResultResponseSlice converts result models into DTOs.
func NewResultResponseSlice(results []models.Result) []ResultResponse {
	responses := make([]ResultResponse, 0, len(results))
	for _, result := range results {
		responses = append(responses, NewResultResponse(result))
	}

	return responses
}
