package dto

// PublishResultsRequest selects the batch of approved results to publish.
type PublishResultsRequest struct {
	ExamID    uint  `json:"exam_id" validate:"required,gt=0"`
	SubjectID *uint `json:"subject_id" validate:"omitempty,gt=0"`
}

// PublishResultsResponse reports how many rows the batch affected.
type PublishResultsResponse struct {
	ExamID    uint  `json:"exam_id"`
	SubjectID *uint `json:"subject_id,omitempty"`
	Affected  int64 `json:"affected"`
}
