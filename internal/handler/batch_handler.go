package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-report-engine/internal/dto"
	"github.com/noah-isme/sma-report-engine/internal/models"
	"github.com/noah-isme/sma-report-engine/internal/service"
	appErrors "github.com/noah-isme/sma-report-engine/pkg/errors"
	"github.com/noah-isme/sma-report-engine/pkg/response"
)

type batchService interface {
	CreateBatch(ctx context.Context, classID string, req dto.CreateBatchRequest, actorID string) (*dto.BatchJobResponse, error)
	GetStatus(ctx context.Context, id string) (*dto.BatchStatusResponse, error)
	ListByClass(ctx context.Context, classID string, page, pageSize int) ([]dto.BatchStatusResponse, *models.Pagination, error)
	ResolveDownload(ctx context.Context, token string) (*service.ReportDownload, error)
}

// BatchHandler exposes class report-card batches.
type BatchHandler struct {
	batches batchService
}

// NewBatchHandler constructs handler.
func NewBatchHandler(batches batchService) *BatchHandler {
	return &BatchHandler{batches: batches}
}

// Create godoc
// @Summary Queue a class report-card batch
// @Tags Batches
// @Accept json
// @Produce json
// @Param classId path string true "Class ID"
// @Param payload body dto.CreateBatchRequest true "Batch request"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /report-cards/classes/{classId}/batches [post]
func (h *BatchHandler) Create(c *gin.Context) {
	var req dto.CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	job, err := h.batches.CreateBatch(c.Request.Context(), c.Param("classId"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// List godoc
// @Summary List batches of a class
// @Tags Batches
// @Produce json
// @Param classId path string true "Class ID"
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} response.Envelope
// @Router /report-cards/classes/{classId}/batches [get]
func (h *BatchHandler) List(c *gin.Context) {
	items, pagination, err := h.batches.ListByClass(c.Request.Context(), c.Param("classId"), queryInt(c, "page", 1), queryInt(c, "limit", 20))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Status godoc
// @Summary Batch status
// @Tags Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /report-cards/batches/{id} [get]
func (h *BatchHandler) Status(c *gin.Context) {
	status, err := h.batches.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Download godoc
// @Summary Download a rendered batch
// @Tags Batches
// @Produce application/octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /export/{token} [get]
func (h *BatchHandler) Download(c *gin.Context) {
	download, err := h.batches.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	info, err := download.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read report document"))
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Header("Expires", download.ExpiresAt.UTC().Format(time.RFC1123))
	c.DataFromReader(http.StatusOK, info.Size(), download.ContentType, download.File, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", download.Filename),
	})
}
