package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-report-engine/internal/models"
	appErrors "github.com/noah-isme/sma-report-engine/pkg/errors"
	"github.com/noah-isme/sma-report-engine/pkg/export"
)

var subjectHeaders = []string{"Code", "Subject", "Credits", "Final Mark", "Grade", "Grade Points"}

var rankingHeaders = []string{"Rank", "Student No.", "Student", "Subjects", "Average", "Grade", "GPA", "Incomplete"}

// RenderedDocument is a report rendered into one file format.
type RenderedDocument struct {
	Filename    string
	ContentType string
	Format      models.ExportFormat
	Data        []byte
}

// ExportService turns report cards and class rankings into documents.
type ExportService struct {
	renderers map[models.ExportFormat]export.Renderer
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService registers renderers by their file extension. Without
// renderers the PDF, CSV and XLSX exporters are used.
func NewExportService(metrics *MetricsService, logger *zap.Logger, renderers ...export.Renderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(renderers) == 0 {
		renderers = []export.Renderer{export.NewPDFExporter(), export.NewCSVExporter(), export.NewXLSXExporter()}
	}
	byFormat := make(map[models.ExportFormat]export.Renderer, len(renderers))
	for _, r := range renderers {
		byFormat[models.ExportFormat(r.Extension())] = r
	}
	return &ExportService{renderers: byFormat, metrics: metrics, logger: logger, now: time.Now}
}

// ParseFormat normalises a requested format, defaulting to PDF when empty.
func ParseFormat(raw string) (models.ExportFormat, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return models.ExportFormatPDF, nil
	}
	format := models.ExportFormat(raw)
	if !format.Valid() {
		return "", appErrors.Clone(appErrors.ErrUnsupportedFormat, fmt.Sprintf("unsupported export format %q", raw))
	}
	return format, nil
}

// RenderReportCard renders a single student's report card.
func (s *ExportService) RenderReportCard(card *models.ReportCard, format models.ExportFormat) (*RenderedDocument, error) {
	if card == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "report card is required")
	}
	doc := export.Document{
		Title:    fmt.Sprintf("Report Card %s", termLabel(card.Term)),
		Sections: []export.Section{reportCardSection(*card)},
	}
	name := fmt.Sprintf("report_card_%s_%s", sanitizeFilename(studentLabel(card.Student)), sanitizeFilename(card.Term.ID))
	return s.render(doc, name, format)
}

// RenderClassReport renders a ranking summary followed by one section per
// ranked card.
func (s *ExportService) RenderClassReport(ranking *models.ClassRanking, title string, format models.ExportFormat) (*RenderedDocument, error) {
	if ranking == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class ranking is required")
	}
	if strings.TrimSpace(title) == "" {
		title = fmt.Sprintf("Class %s Report Cards %s", ranking.ClassID, ranking.TermID)
	}
	rows := make([]map[string]string, 0, len(ranking.Entries))
	for _, entry := range ranking.Entries {
		rows = append(rows, map[string]string{
			"Rank":        strconv.Itoa(entry.Rank),
			"Student No.": entry.Student.Number,
			"Student":     studentLabel(entry.Student),
			"Subjects":    strconv.Itoa(len(entry.Subjects)),
			"Average":     formatMark(entry.OverallAverage),
			"Grade":       entry.OverallGrade,
			"GPA":         formatOptional(entry.GPA),
			"Incomplete":  strconv.FormatBool(entry.Incomplete),
		})
	}
	sections := make([]export.Section, 0, len(ranking.Entries)+1)
	sections = append(sections, export.Section{
		Heading: "Ranking",
		Fields: []export.Field{
			{Label: "Class", Value: ranking.ClassID},
			{Label: "Term", Value: ranking.TermID},
			{Label: "Students", Value: strconv.Itoa(len(ranking.Entries))},
		},
		Table: export.Dataset{Headers: rankingHeaders, Rows: rows},
	})
	for _, entry := range ranking.Entries {
		section := reportCardSection(entry.ReportCard)
		section.Fields = append([]export.Field{{Label: "Rank", Value: strconv.Itoa(entry.Rank)}}, section.Fields...)
		sections = append(sections, section)
	}
	name := fmt.Sprintf("class_%s_%s", sanitizeFilename(ranking.ClassID), sanitizeFilename(ranking.TermID))
	return s.render(export.Document{Title: title, Sections: sections}, name, format)
}

func (s *ExportService) render(doc export.Document, baseName string, format models.ExportFormat) (*RenderedDocument, error) {
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedFormat, fmt.Sprintf("unsupported export format %q", format))
	}
	data, err := renderer.Render(doc)
	if err != nil {
		s.logger.Error("render document failed", zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render document")
	}
	s.metrics.RecordExport(string(format))
	timestamp := s.now().UTC().Format("20060102_150405")
	return &RenderedDocument{
		Filename:    fmt.Sprintf("%s_%s.%s", baseName, timestamp, renderer.Extension()),
		ContentType: renderer.ContentType(),
		Format:      format,
		Data:        data,
	}, nil
}

func reportCardSection(card models.ReportCard) export.Section {
	rows := make([]map[string]string, 0, len(card.Subjects))
	var notes []string
	for _, subject := range card.Subjects {
		rows = append(rows, map[string]string{
			"Code":         subject.SubjectCode,
			"Subject":      subject.SubjectName,
			"Credits":      strconv.FormatFloat(subject.Credits, 'f', -1, 64),
			"Final Mark":   formatMark(subject.FinalMark),
			"Grade":        subject.LetterGrade,
			"Grade Points": formatOptional(subject.GradePoints),
		})
		for _, anomaly := range subject.Anomalies {
			notes = append(notes, fmt.Sprintf("%s: %s", subjectLabel(subject), anomaly))
		}
	}
	fields := []export.Field{
		{Label: "Student", Value: studentLabel(card.Student)},
		{Label: "Student No.", Value: card.Student.Number},
		{Label: "Term", Value: termLabel(card.Term)},
		{Label: "Mode", Value: string(card.Mode)},
		{Label: "Overall Average", Value: formatMark(card.OverallAverage)},
		{Label: "Overall Grade", Value: card.OverallGrade},
	}
	if card.GPA != nil {
		fields = append(fields,
			export.Field{Label: "GPA", Value: formatOptional(card.GPA)},
			export.Field{Label: "Total Credits", Value: strconv.FormatFloat(card.TotalCredits, 'f', -1, 64)},
		)
	}
	if card.Incomplete {
		notes = append(notes, "Some subjects are missing marks or contain inconsistent data.")
	}
	return export.Section{
		Heading: studentLabel(card.Student),
		Fields:  fields,
		Table:   export.Dataset{Headers: subjectHeaders, Rows: rows},
		Notes:   notes,
	}
}

func studentLabel(s models.StudentRef) string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

func termLabel(t models.TermRef) string {
	if t.Name != "" {
		return t.Name
	}
	return t.ID
}

func subjectLabel(s models.SubjectResult) string {
	if s.SubjectCode != "" {
		return s.SubjectCode
	}
	return s.SubjectName
}

func formatMark(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return "-"
	}
	return formatMark(*v)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
