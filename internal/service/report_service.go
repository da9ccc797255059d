package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-report-engine/internal/dto"
	"github.com/noah-isme/sma-report-engine/internal/grading"
	"github.com/noah-isme/sma-report-engine/internal/models"
	"github.com/noah-isme/sma-report-engine/internal/repository"
	appErrors "github.com/noah-isme/sma-report-engine/pkg/errors"
	"github.com/noah-isme/sma-report-engine/pkg/jobs"
	"github.com/noah-isme/sma-report-engine/pkg/storage"
)

// BatchJobType is the queue job type of class report-card batches.
const BatchJobType = "class_report_cards"

type batchStore interface {
	Create(ctx context.Context, batch *models.ReportBatch) error
	GetByID(ctx context.Context, id string) (*models.ReportBatch, error)
	Update(ctx context.Context, id string, update repository.BatchUpdate) error
	ListByClass(ctx context.Context, classID string, page, pageSize int) ([]models.ReportBatch, int, error)
	ListQueued(ctx context.Context, limit int) ([]models.ReportBatch, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type fileStorage interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type urlSigner interface {
	Generate(batchID, path string) (string, time.Time, error)
	Verify(token string) (storage.Claims, error)
}

type classCardBuilder interface {
	ClassCards(ctx context.Context, classID, termID string, progress func(done, total int)) ([]models.ReportCard, error)
}

type classReportRenderer interface {
	RenderClassReport(ranking *models.ClassRanking, title string, format models.ExportFormat) (*RenderedDocument, error)
}

// ReportServiceConfig governs retention and cleanup of rendered batches.
type ReportServiceConfig struct {
	Retention       time.Duration
	CleanupInterval time.Duration
}

// ReportDownload aggregates resolved download data.
type ReportDownload struct {
	File        *os.File
	Filename    string
	ContentType string
	ExpiresAt   time.Time
}

// ReportService manages the lifecycle of class report-card batches.
type ReportService struct {
	repo      batchStore
	queue     jobDispatcher
	storage   fileStorage
	signer    urlSigner
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ReportServiceConfig
}

// NewReportService constructs the report service.
func NewReportService(repo batchStore, queue jobDispatcher, files fileStorage, signer urlSigner, validate *validator.Validate, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 7 * 24 * time.Hour
	}
	return &ReportService{
		repo:      repo,
		queue:     queue,
		storage:   files,
		signer:    signer,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// CreateBatch persists a batch for classID and enqueues it.
func (s *ReportService) CreateBatch(ctx context.Context, classID string, req dto.CreateBatchRequest, actorID string) (*dto.BatchJobResponse, error) {
	classID = strings.TrimSpace(classID)
	req.TermID = strings.TrimSpace(req.TermID)
	if classID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "classId is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}
	format, err := ParseFormat(string(req.Format))
	if err != nil {
		return nil, err
	}

	batch := &models.ReportBatch{
		Params:      models.ReportBatchParams{ClassID: classID, TermID: req.TermID, Format: format, Title: strings.TrimSpace(req.Title)},
		Status:      models.BatchStatusQueued,
		RequestedBy: actorID,
	}
	if err := s.repo.Create(ctx, batch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report batch")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: batch.ID, Type: BatchJobType}); err != nil {
		status := models.BatchStatusFailed
		msg := "failed to enqueue batch"
		now := time.Now().UTC()
		progress := 100
		if updateErr := s.repo.Update(ctx, batch.ID, repository.BatchUpdate{
			Status:       &status,
			Progress:     &progress,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		}); updateErr != nil {
			s.logger.Warn("failed to mark batch failed", zap.String("batch_id", batch.ID), zap.Error(updateErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue report batch")
	}
	s.logger.Info("report batch queued",
		zap.String("batch_id", batch.ID),
		zap.String("class_id", classID),
		zap.String("term_id", req.TermID),
		zap.String("format", string(format)))
	return &dto.BatchJobResponse{ID: batch.ID, Status: batch.Status, Progress: batch.Progress}, nil
}

// GetStatus exposes batch metadata to clients.
func (s *ReportService) GetStatus(ctx context.Context, id string) (*dto.BatchStatusResponse, error) {
	batch, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report batch")
	}
	resp := toBatchStatus(*batch)
	return &resp, nil
}

// ListByClass pages through the batches of a class, newest first.
func (s *ReportService) ListByClass(ctx context.Context, classID string, page, pageSize int) ([]dto.BatchStatusResponse, *models.Pagination, error) {
	if strings.TrimSpace(classID) == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "classId is required")
	}
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	batches, total, err := s.repo.ListByClass(ctx, classID, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list report batches")
	}
	items := make([]dto.BatchStatusResponse, 0, len(batches))
	for _, batch := range batches {
		items = append(items, toBatchStatus(batch))
	}
	return items, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// ResolveDownload validates token and opens the stored document.
func (s *ReportService) ResolveDownload(ctx context.Context, token string) (*ReportDownload, error) {
	claims, err := s.signer.Verify(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.ErrLinkExpired
		}
		return nil, appErrors.Clone(appErrors.ErrNotFound, "invalid download token")
	}
	batch, err := s.repo.GetByID(ctx, claims.BatchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report batch")
	}
	if batch.Status != models.BatchStatusFinished {
		return nil, appErrors.ErrBatchNotReady
	}
	if batch.ResultURL == nil || !strings.HasSuffix(*batch.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "download token does not match the batch")
	}
	file, err := s.storage.Open(claims.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrLinkExpired, "report document has been removed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open report document")
	}
	return &ReportDownload{
		File:        file,
		Filename:    filepath.Base(claims.Path),
		ContentType: batch.Params.Format.ContentType(),
		ExpiresAt:   claims.ExpiresAt,
	}, nil
}

// RecoverPendingJobs replays queued batches after a restart.
func (s *ReportService) RecoverPendingJobs(ctx context.Context) int {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warn("failed to recover queued report batches", zap.Error(err))
		return 0
	}
	recovered := 0
	for _, batch := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: batch.ID, Type: BatchJobType}); err != nil {
			s.logger.Warn("failed to requeue pending batch", zap.String("batch_id", batch.ID), zap.Error(err))
			continue
		}
		recovered++
	}
	return recovered
}

// StartCleanup boots a goroutine that purges expired documents periodically.
func (s *ReportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Cleanup()
			}
		}
	}()
}

// Cleanup removes documents older than the retention window.
func (s *ReportService) Cleanup() []string {
	removed, err := s.storage.CleanupOlderThan(s.cfg.Retention)
	if err != nil {
		s.logger.Warn("report document cleanup failed", zap.Error(err))
	}
	if len(removed) > 0 {
		s.logger.Info("expired report documents removed", zap.Int("count", len(removed)))
	}
	return removed
}

func toBatchStatus(batch models.ReportBatch) dto.BatchStatusResponse {
	resp := dto.BatchStatusResponse{
		ID:          batch.ID,
		ClassID:     batch.Params.ClassID,
		TermID:      batch.Params.TermID,
		Format:      batch.Params.Format,
		Status:      batch.Status,
		Progress:    batch.Progress,
		RequestedBy: batch.RequestedBy,
		ResultURL:   batch.ResultURL,
	}
	if batch.ErrorMessage != nil && *batch.ErrorMessage != "" {
		resp.Error = batch.ErrorMessage
	}
	return resp
}

// ReportWorker renders class batches taken from the queue.
type ReportWorker struct {
	repo      batchStore
	cards     classCardBuilder
	renderer  classReportRenderer
	storage   fileStorage
	signer    urlSigner
	metrics   *MetricsService
	logger    *zap.Logger
	apiPrefix string
	now       func() time.Time
}

// ReportWorkerParams groups worker dependencies.
type ReportWorkerParams struct {
	Repo      batchStore
	Cards     classCardBuilder
	Renderer  classReportRenderer
	Storage   fileStorage
	Signer    urlSigner
	Metrics   *MetricsService
	Logger    *zap.Logger
	APIPrefix string
}

// NewReportWorker constructs a worker.
func NewReportWorker(params ReportWorkerParams) *ReportWorker {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix := strings.TrimRight(params.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &ReportWorker{
		repo:      params.Repo,
		cards:     params.Cards,
		renderer:  params.Renderer,
		storage:   params.Storage,
		signer:    params.Signer,
		metrics:   params.Metrics,
		logger:    logger,
		apiPrefix: prefix,
		now:       time.Now,
	}
}

// Handle processes a queue job. Errors that retrying cannot fix finish the
// batch as FAILED and are not returned.
func (w *ReportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("load batch %s: %w", job.ID, err)
	}
	if record.Status == models.BatchStatusFinished || record.Status == models.BatchStatusFailed {
		return nil
	}

	processing := models.BatchStatusProcessing
	progress := 5
	if err := w.repo.Update(ctx, job.ID, repository.BatchUpdate{Status: &processing, Progress: &progress}); err != nil {
		return err
	}

	params := record.Params
	cards, err := w.cards.ClassCards(ctx, params.ClassID, params.TermID, func(done, total int) {
		pct := 5 + done*85/total
		if updateErr := w.repo.Update(ctx, job.ID, repository.BatchUpdate{Progress: &pct}); updateErr != nil {
			w.logger.Debug("batch progress not saved", zap.String("batch_id", job.ID), zap.Error(updateErr))
		}
	})
	if err != nil {
		return w.retryOrFail(ctx, job, err)
	}

	ranking := &models.ClassRanking{ClassID: params.ClassID, TermID: params.TermID, Entries: grading.Rank(cards)}
	doc, err := w.renderer.RenderClassReport(ranking, params.Title, params.Format)
	if err != nil {
		return w.retryOrFail(ctx, job, err)
	}
	relPath, err := w.storage.Save(filepath.Join(job.ID, doc.Filename), doc.Data)
	if err != nil {
		return w.retryOrFail(ctx, job, err)
	}
	token, _, err := w.signer.Generate(job.ID, relPath)
	if err != nil {
		return w.retryOrFail(ctx, job, err)
	}

	finished := models.BatchStatusFinished
	progress = 100
	now := w.now().UTC()
	url := fmt.Sprintf("%s/export/%s", w.apiPrefix, token)
	clear := ""
	if err := w.repo.Update(ctx, job.ID, repository.BatchUpdate{
		Status:       &finished,
		Progress:     &progress,
		ResultURL:    &url,
		ErrorMessage: &clear,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Warn("failed to mark batch finished", zap.String("batch_id", job.ID), zap.Error(err))
		return err
	}
	w.metrics.RecordBatch(string(models.BatchStatusFinished))
	w.logger.Info("report batch finished",
		zap.String("batch_id", job.ID),
		zap.Int("students", len(cards)),
		zap.Int("attempt", job.Attempt))
	return nil
}

// Fail records a batch as FAILED once the queue gives up on it.
func (w *ReportWorker) Fail(ctx context.Context, job jobs.Job, cause error) {
	failed := models.BatchStatusFailed
	progress := 100
	msg := cause.Error()
	now := w.now().UTC()
	if err := w.repo.Update(ctx, job.ID, repository.BatchUpdate{
		Status:       &failed,
		Progress:     &progress,
		ErrorMessage: &msg,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Warn("failed to mark batch failed", zap.String("batch_id", job.ID), zap.Error(err))
	}
	w.metrics.RecordBatch(string(models.BatchStatusFailed))
}

func (w *ReportWorker) retryOrFail(ctx context.Context, job jobs.Job, err error) error {
	if permanent(err) {
		w.logger.Warn("report batch cannot be rendered", zap.String("batch_id", job.ID), zap.Error(err))
		w.Fail(ctx, job, err)
		return nil
	}
	queued := models.BatchStatusQueued
	reset := 0
	msg := err.Error()
	if updateErr := w.repo.Update(ctx, job.ID, repository.BatchUpdate{
		Status:       &queued,
		Progress:     &reset,
		ErrorMessage: &msg,
	}); updateErr != nil {
		w.logger.Warn("failed to mark batch queued", zap.String("batch_id", job.ID), zap.Error(updateErr))
	}
	return err
}

func permanent(err error) bool {
	return appErrors.Is(err, appErrors.ErrNotFound) ||
		appErrors.Is(err, appErrors.ErrValidation) ||
		appErrors.Is(err, appErrors.ErrUnsupportedFormat) ||
		appErrors.Is(err, appErrors.ErrInvalidInstitutionMode)
}
