package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-report-engine/internal/middleware"
	"github.com/noah-isme/sma-report-engine/internal/models"
	"github.com/noah-isme/sma-report-engine/internal/service"
	appErrors "github.com/noah-isme/sma-report-engine/pkg/errors"
)

type reportCardServiceMock struct {
	card       *models.ReportCard
	hit        bool
	err        error
	ranking    *models.ClassRanking
	rankingErr error
	lastArgs   [2]string
}

func (m *reportCardServiceMock) Get(_ context.Context, studentID, termID string) (*models.ReportCard, bool, error) {
	m.lastArgs = [2]string{studentID, termID}
	return m.card, m.hit, m.err
}

func (m *reportCardServiceMock) ClassRanking(_ context.Context, classID, termID string) (*models.ClassRanking, error) {
	m.lastArgs = [2]string{classID, termID}
	return m.ranking, m.rankingErr
}

type exporterMock struct {
	doc    *service.RenderedDocument
	err    error
	format models.ExportFormat
}

func (m *exporterMock) RenderReportCard(_ *models.ReportCard, format models.ExportFormat) (*service.RenderedDocument, error) {
	m.format = format
	return m.doc, m.err
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestReportCardHandlerRequiresTerm(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportCardHandler(&reportCardServiceMock{}, &exporterMock{})

	c, w := newGinContext(http.MethodGet, "/report-cards/students/s-1", nil)
	c.Params = gin.Params{{Key: "studentId", Value: "s-1"}}
	handler.StudentReportCard(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportCardHandlerReturnsCardWithCacheMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	gpa := 3.33
	svc := &reportCardServiceMock{
		card: &models.ReportCard{Student: models.StudentRef{ID: "s-1"}, Mode: models.ModeUniversity, Subjects: []models.SubjectResult{}, GPA: &gpa},
		hit:  true,
	}
	handler := NewReportCardHandler(svc, &exporterMock{})

	router := gin.New()
	router.Use(middleware.WithResponseMeta())
	router.GET("/report-cards/students/:studentId", handler.StudentReportCard)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/report-cards/students/s-1?termId=t-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, [2]string{"s-1", "t-1"}, svc.lastArgs)

	var body struct {
		Data struct {
			GPA      *float64 `json:"gpa"`
			Subjects []any    `json:"subjects"`
		} `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Data.GPA)
	assert.Equal(t, 3.33, *body.Data.GPA)
	assert.NotNil(t, body.Data.Subjects)
	assert.Equal(t, true, body.Meta["cache_hit"])
}

func TestReportCardHandlerMapsConfigurationError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportCardHandler(&reportCardServiceMock{err: appErrors.ErrInvalidInstitutionMode}, &exporterMock{})

	c, w := newGinContext(http.MethodGet, "/report-cards/students/s-1?termId=t-1", nil)
	c.Params = gin.Params{{Key: "studentId", Value: "s-1"}}
	handler.StudentReportCard(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "CONFIGURATION_ERROR")
}

func TestReportCardHandlerExport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	exporter := &exporterMock{doc: &service.RenderedDocument{
		Filename:    "report_card_s-1_t-1.csv",
		ContentType: "text/csv",
		Format:      models.ExportFormatCSV,
		Data:        []byte("Code,Subject\n"),
	}}
	handler := NewReportCardHandler(&reportCardServiceMock{card: &models.ReportCard{}}, exporter)

	c, w := newGinContext(http.MethodGet, "/report-cards/students/s-1/export?termId=t-1&format=CSV", nil)
	c.Params = gin.Params{{Key: "studentId", Value: "s-1"}}
	handler.ExportStudentReportCard(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ExportFormatCSV, exporter.format)
	assert.Equal(t, `attachment; filename="report_card_s-1_t-1.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "Code,Subject\n", w.Body.String())
}

func TestReportCardHandlerExportRejectsFormat(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportCardHandler(&reportCardServiceMock{card: &models.ReportCard{}}, &exporterMock{})

	c, w := newGinContext(http.MethodGet, "/report-cards/students/s-1/export?termId=t-1&format=docx", nil)
	handler.ExportStudentReportCard(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "UNSUPPORTED_FORMAT")
}

func TestReportCardHandlerClassRanking(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &reportCardServiceMock{ranking: &models.ClassRanking{ClassID: "c-1", TermID: "t-1", Entries: []models.RankedReportCard{{Rank: 1}}}}
	handler := NewReportCardHandler(svc, &exporterMock{})

	c, w := newGinContext(http.MethodGet, "/report-cards/classes/c-1/ranking?termId=t-1", nil)
	c.Params = gin.Params{{Key: "classId", Value: "c-1"}}
	handler.ClassRanking(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, [2]string{"c-1", "t-1"}, svc.lastArgs)
	assert.Contains(t, w.Body.String(), `"rank":1`)
}
