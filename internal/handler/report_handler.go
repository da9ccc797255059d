package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-report-engine/internal/middleware"
	"github.com/noah-isme/sma-report-engine/internal/models"
	"github.com/noah-isme/sma-report-engine/internal/service"
	appErrors "github.com/noah-isme/sma-report-engine/pkg/errors"
	"github.com/noah-isme/sma-report-engine/pkg/response"
)

type reportCardService interface {
	Get(ctx context.Context, studentID, termID string) (*models.ReportCard, bool, error)
	ClassRanking(ctx context.Context, classID, termID string) (*models.ClassRanking, error)
}

type reportCardExporter interface {
	RenderReportCard(card *models.ReportCard, format models.ExportFormat) (*service.RenderedDocument, error)
}

// ReportCardHandler exposes report card endpoints.
type ReportCardHandler struct {
	cards    reportCardService
	exporter reportCardExporter
}

// NewReportCardHandler constructs handler.
func NewReportCardHandler(cards reportCardService, exporter reportCardExporter) *ReportCardHandler {
	return &ReportCardHandler{cards: cards, exporter: exporter}
}

// StudentReportCard godoc
// @Summary Student report card
// @Description Reduces every subject of the student for the term and aggregates the overall average and GPA.
// @Tags ReportCards
// @Produce json
// @Param studentId path string true "Student ID"
// @Param termId query string true "Term ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /report-cards/students/{studentId} [get]
func (h *ReportCardHandler) StudentReportCard(c *gin.Context) {
	termID := strings.TrimSpace(c.Query("termId"))
	if termID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "termId is required"))
		return
	}
	card, cacheHit, err := h.cards.Get(c.Request.Context(), c.Param("studentId"), termID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	middleware.SetMeta(c, "mode", card.Mode)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{"cache_hit": cacheHit}
	}
	response.JSON(c, http.StatusOK, card, nil, meta)
}

// ExportStudentReportCard godoc
// @Summary Download a student report card
// @Tags ReportCards
// @Produce application/pdf
// @Produce text/csv
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param studentId path string true "Student ID"
// @Param termId query string true "Term ID"
// @Param format query string false "pdf, csv or xlsx" default(pdf)
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /report-cards/students/{studentId}/export [get]
func (h *ReportCardHandler) ExportStudentReportCard(c *gin.Context) {
	termID := strings.TrimSpace(c.Query("termId"))
	if termID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "termId is required"))
		return
	}
	format, err := service.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	card, _, err := h.cards.Get(c.Request.Context(), c.Param("studentId"), termID)
	if err != nil {
		response.Error(c, err)
		return
	}
	doc, err := h.exporter.RenderReportCard(card, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, doc.Filename, doc.ContentType, doc.Data)
}

// ClassRanking godoc
// @Summary Class ranking
// @Description Ranks every enrolled student of the class by overall average, then GPA.
// @Tags ReportCards
// @Produce json
// @Param classId path string true "Class ID"
// @Param termId query string true "Term ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /report-cards/classes/{classId}/ranking [get]
func (h *ReportCardHandler) ClassRanking(c *gin.Context) {
	termID := strings.TrimSpace(c.Query("termId"))
	if termID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "termId is required"))
		return
	}
	ranking, err := h.cards.ClassRanking(c.Request.Context(), c.Param("classId"), termID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ranking, nil)
}
