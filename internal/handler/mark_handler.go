package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-report-engine/internal/dto"
	"github.com/noah-isme/sma-report-engine/internal/models"
	appErrors "github.com/noah-isme/sma-report-engine/pkg/errors"
	"github.com/noah-isme/sma-report-engine/pkg/response"
)

type markService interface {
	Record(ctx context.Context, req dto.RecordMarkRequest) (*models.Mark, error)
}

// MarkHandler exposes mark entry.
type MarkHandler struct {
	marks markService
}

// NewMarkHandler constructs handler.
func NewMarkHandler(marks markService) *MarkHandler {
	return &MarkHandler{marks: marks}
}

// Record godoc
// @Summary Record a mark
// @Description Stores one score for a student on an assessment. CA and EXAM may be recorded once per subject.
// @Tags Marks
// @Accept json
// @Produce json
// @Param payload body dto.RecordMarkRequest true "Mark payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /marks [post]
func (h *MarkHandler) Record(c *gin.Context) {
	var req dto.RecordMarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	mark, err := h.marks.Record(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, mark)
}
