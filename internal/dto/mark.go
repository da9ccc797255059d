package dto

// RecordMarkRequest captures POST /marks.
type RecordMarkRequest struct {
	AssessmentID  string   `json:"assessmentId" validate:"required"`
	StudentID     string   `json:"studentId" validate:"required"`
	ScoreObtained *float64 `json:"scoreObtained" validate:"omitempty,gte=0,lte=100"`
	IsAbsent      bool     `json:"isAbsent"`
}
