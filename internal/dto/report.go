package dto

import "github.com/noah-isme/sma-report-engine/internal/models"

// CreateBatchRequest captures POST /report-cards/classes/:classId/batches.
type CreateBatchRequest struct {
	TermID string              `json:"termId" validate:"required"`
	Format models.ExportFormat `json:"format" validate:"omitempty,oneof=pdf csv xlsx"`
	Title  string              `json:"title,omitempty" validate:"max=200"`
}

// BatchJobResponse is returned after enqueueing a batch.
type BatchJobResponse struct {
	ID       string             `json:"id"`
	Status   models.BatchStatus `json:"status"`
	Progress int                `json:"progress"`
}

// BatchStatusResponse exposes batch progress metadata.
type BatchStatusResponse struct {
	ID          string              `json:"id"`
	ClassID     string              `json:"classId"`
	TermID      string              `json:"termId"`
	Format      models.ExportFormat `json:"format"`
	Status      models.BatchStatus  `json:"status"`
	Progress    int                 `json:"progress"`
	RequestedBy string              `json:"requestedBy,omitempty"`
	ResultURL   *string             `json:"resultUrl,omitempty"`
	Error       *string             `json:"error,omitempty"`
}
