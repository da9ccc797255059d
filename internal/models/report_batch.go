package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ExportFormat enumerates document formats a report card can be rendered to.
type ExportFormat string

const (
	ExportFormatPDF  ExportFormat = "pdf"
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatXLSX ExportFormat = "xlsx"
)

// Valid reports whether the format has a renderer.
func (f ExportFormat) Valid() bool {
	switch f {
	case ExportFormatPDF, ExportFormatCSV, ExportFormatXLSX:
		return true
	default:
		return false
	}
}

// ContentType returns the MIME type of documents in this format.
func (f ExportFormat) ContentType() string {
	switch f {
	case ExportFormatPDF:
		return "application/pdf"
	case ExportFormatCSV:
		return "text/csv"
	case ExportFormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

// BatchStatus captures the lifecycle of a class report-card batch.
type BatchStatus string

const (
	BatchStatusQueued     BatchStatus = "QUEUED"
	BatchStatusProcessing BatchStatus = "PROCESSING"
	BatchStatusFinished   BatchStatus = "FINISHED"
	BatchStatusFailed     BatchStatus = "FAILED"
)

// ReportBatch is a persisted request to render the report cards of a class.
type ReportBatch struct {
	ID           string            `db:"id" json:"id"`
	Params       ReportBatchParams `db:"params" json:"params"`
	Status       BatchStatus       `db:"status" json:"status"`
	Progress     int               `db:"progress" json:"progress"`
	ResultURL    *string           `db:"result_url" json:"result_url,omitempty"`
	RequestedBy  string            `db:"requested_by" json:"requested_by"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time        `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string           `db:"error_message" json:"error_message,omitempty"`
}

// ReportBatchParams is stored as JSONB next to the batch row.
type ReportBatchParams struct {
	ClassID string       `json:"classId"`
	TermID  string       `json:"termId"`
	Format  ExportFormat `json:"format"`
	Title   string       `json:"title,omitempty"`
}

// Value implements driver.Valuer.
func (p ReportBatchParams) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal report batch params: %w", err)
	}
	return data, nil
}

// Scan implements sql.Scanner.
func (p *ReportBatchParams) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*p = ReportBatchParams{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for ReportBatchParams", value)
	}
	if len(data) == 0 {
		*p = ReportBatchParams{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal report batch params: %w", err)
	}
	return nil
}
