package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-report-engine/internal/models"
)

const batchColumns = `id, params, status, progress, result_url, requested_by, created_at, finished_at, error_message`

// BatchRepository persists class report-card batch jobs.
type BatchRepository struct {
	db *sqlx.DB
}

// NewBatchRepository constructs the repository.
func NewBatchRepository(db *sqlx.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// Create inserts a batch row, filling id, status and creation time when unset.
func (r *BatchRepository) Create(ctx context.Context, batch *models.ReportBatch) error {
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	if batch.Status == "" {
		batch.Status = models.BatchStatusQueued
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO report_card_batches (` + batchColumns + `)
VALUES (:id, :params, :status, :progress, :result_url, :requested_by, :created_at, :finished_at, :error_message)`
	if _, err := r.db.NamedExecContext(ctx, query, batch); err != nil {
		return fmt.Errorf("create report batch: %w", err)
	}
	return nil
}

// GetByID returns a batch by id.
func (r *BatchRepository) GetByID(ctx context.Context, id string) (*models.ReportBatch, error) {
	const query = `SELECT ` + batchColumns + ` FROM report_card_batches WHERE id = $1`
	var batch models.ReportBatch
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		return nil, fmt.Errorf("get report batch: %w", err)
	}
	return &batch, nil
}

// BatchUpdate holds the mutable columns of a batch; nil fields are untouched.
type BatchUpdate struct {
	Status       *models.BatchStatus
	Progress     *int
	ResultURL    *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

// Update applies the non-nil fields of update.
func (r *BatchRepository) Update(ctx context.Context, id string, update BatchUpdate) error {
	set := make([]string, 0, 5)
	args := make([]interface{}, 0, 6)
	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Status != nil {
		add("status", *update.Status)
	}
	if update.Progress != nil {
		add("progress", *update.Progress)
	}
	if update.ResultURL != nil {
		add("result_url", *update.ResultURL)
	}
	if update.ErrorMessage != nil {
		add("error_message", *update.ErrorMessage)
	}
	if update.FinishedAt != nil {
		add("finished_at", *update.FinishedAt)
	}
	if len(set) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE report_card_batches SET %s WHERE id = $%d", strings.Join(set, ", "), len(args))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update report batch: %w", err)
	}
	return nil
}

// ListByClass pages through the batches requested for a class, newest first.
func (r *BatchRepository) ListByClass(ctx context.Context, classID string, page, pageSize int) ([]models.ReportBatch, int, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(1) FROM report_card_batches WHERE params->>'classId' = $1`, classID); err != nil {
		return nil, 0, fmt.Errorf("count report batches: %w", err)
	}
	const query = `SELECT ` + batchColumns + ` FROM report_card_batches WHERE params->>'classId' = $1
ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	batches := make([]models.ReportBatch, 0)
	if err := r.db.SelectContext(ctx, &batches, query, classID, pageSize, (page-1)*pageSize); err != nil {
		return nil, 0, fmt.Errorf("list report batches: %w", err)
	}
	return batches, total, nil
}

// ListQueued fetches queued batches so they can be re-enqueued after a restart.
func (r *BatchRepository) ListQueued(ctx context.Context, limit int) ([]models.ReportBatch, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT ` + batchColumns + ` FROM report_card_batches WHERE status IN ('QUEUED', 'PROCESSING')
ORDER BY created_at ASC LIMIT $1`
	var batches []models.ReportBatch
	if err := r.db.SelectContext(ctx, &batches, query, limit); err != nil {
		return nil, fmt.Errorf("list queued report batches: %w", err)
	}
	return batches, nil
}
