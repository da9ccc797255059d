package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-report-engine/internal/dto"
	"github.com/noah-isme/sma-report-engine/internal/models"
	"github.com/noah-isme/sma-report-engine/internal/repository"
	appErrors "github.com/noah-isme/sma-report-engine/pkg/errors"
	"github.com/noah-isme/sma-report-engine/pkg/jobs"
	"github.com/noah-isme/sma-report-engine/pkg/storage"
)

type batchRepoStub struct {
	batches map[string]*models.ReportBatch
	updates int
}

func newBatchRepoStub() *batchRepoStub {
	return &batchRepoStub{batches: map[string]*models.ReportBatch{}}
}

func (r *batchRepoStub) Create(_ context.Context, batch *models.ReportBatch) error {
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	batch.CreatedAt = time.Now().UTC()
	r.batches[batch.ID] = batch
	return nil
}

func (r *batchRepoStub) GetByID(_ context.Context, id string) (*models.ReportBatch, error) {
	batch, ok := r.batches[id]
	if !ok {
		return nil, fmt.Errorf("get report batch: %w", sql.ErrNoRows)
	}
	clone := *batch
	return &clone, nil
}

func (r *batchRepoStub) Update(_ context.Context, id string, update repository.BatchUpdate) error {
	batch, ok := r.batches[id]
	if !ok {
		return errors.New("not found")
	}
	r.updates++
	if update.Status != nil {
		batch.Status = *update.Status
	}
	if update.Progress != nil {
		batch.Progress = *update.Progress
	}
	if update.ResultURL != nil {
		batch.ResultURL = update.ResultURL
	}
	if update.ErrorMessage != nil {
		batch.ErrorMessage = update.ErrorMessage
	}
	if update.FinishedAt != nil {
		batch.FinishedAt = update.FinishedAt
	}
	return nil
}

func (r *batchRepoStub) ListByClass(_ context.Context, classID string, page, pageSize int) ([]models.ReportBatch, int, error) {
	var matched []models.ReportBatch
	for _, batch := range r.batches {
		if batch.Params.ClassID == classID {
			matched = append(matched, *batch)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	start := (page - 1) * pageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], len(matched), nil
}

func (r *batchRepoStub) ListQueued(context.Context, int) ([]models.ReportBatch, error) {
	var queued []models.ReportBatch
	for _, batch := range r.batches {
		if batch.Status == models.BatchStatusQueued || batch.Status == models.BatchStatusProcessing {
			queued = append(queued, *batch)
		}
	}
	return queued, nil
}

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type classCardsStub struct {
	cards []models.ReportCard
	err   error
}

func (c classCardsStub) ClassCards(_ context.Context, _, _ string, progress func(done, total int)) ([]models.ReportCard, error) {
	if c.err != nil {
		return nil, c.err
	}
	for i := range c.cards {
		progress(i+1, len(c.cards))
	}
	return c.cards, nil
}

type reportFixture struct {
	repo    *batchRepoStub
	queue   *queueStub
	store   *storage.LocalStorage
	signer  *storage.SignedURLSigner
	service *ReportService
}

func newReportFixture(t *testing.T) *reportFixture {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	f := &reportFixture{
		repo:   newBatchRepoStub(),
		queue:  &queueStub{},
		store:  store,
		signer: storage.NewSignedURLSigner("secret", time.Hour),
	}
	f.service = NewReportService(f.repo, f.queue, store, f.signer, nil, zap.NewNop(), ReportServiceConfig{
		Retention:       time.Hour,
		CleanupInterval: time.Hour,
	})
	return f
}

func (f *reportFixture) worker(cards classCardBuilder) *ReportWorker {
	return NewReportWorker(ReportWorkerParams{
		Repo:      f.repo,
		Cards:     cards,
		Renderer:  newExportServiceForTest(),
		Storage:   f.store,
		Signer:    f.signer,
		Metrics:   NewMetricsService(),
		Logger:    zap.NewNop(),
		APIPrefix: "/api/v1/",
	})
}

func TestReportServiceCreateBatch(t *testing.T) {
	f := newReportFixture(t)
	resp, err := f.service.CreateBatch(context.Background(), "class-1", dto.CreateBatchRequest{TermID: "term-1", Format: models.ExportFormatXLSX}, "teacher-9")
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusQueued, resp.Status)
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, BatchJobType, f.queue.jobs[0].Type)

	stored := f.repo.batches[resp.ID]
	require.NotNil(t, stored)
	assert.Equal(t, "class-1", stored.Params.ClassID)
	assert.Equal(t, models.ExportFormatXLSX, stored.Params.Format)
	assert.Equal(t, "teacher-9", stored.RequestedBy)
}

func TestReportServiceCreateBatchDefaultsToPDF(t *testing.T) {
	f := newReportFixture(t)
	resp, err := f.service.CreateBatch(context.Background(), "class-1", dto.CreateBatchRequest{TermID: "term-1"}, "")
	require.NoError(t, err)
	assert.Equal(t, models.ExportFormatPDF, f.repo.batches[resp.ID].Params.Format)
}

func TestReportServiceCreateBatchValidation(t *testing.T) {
	f := newReportFixture(t)
	_, err := f.service.CreateBatch(context.Background(), "", dto.CreateBatchRequest{TermID: "term-1"}, "")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	_, err = f.service.CreateBatch(context.Background(), "class-1", dto.CreateBatchRequest{}, "")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	_, err = f.service.CreateBatch(context.Background(), "class-1", dto.CreateBatchRequest{TermID: "term-1", Format: "docx"}, "")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, f.repo.batches)
}

func TestReportServiceCreateBatchEnqueueFailure(t *testing.T) {
	f := newReportFixture(t)
	f.queue.err = jobs.ErrNotStarted
	_, err := f.service.CreateBatch(context.Background(), "class-1", dto.CreateBatchRequest{TermID: "term-1"}, "")
	require.Error(t, err)
	require.Len(t, f.repo.batches, 1)
	for _, batch := range f.repo.batches {
		assert.Equal(t, models.BatchStatusFailed, batch.Status)
		assert.NotNil(t, batch.FinishedAt)
	}
}

func TestReportServiceGetStatusNotFound(t *testing.T) {
	f := newReportFixture(t)
	_, err := f.service.GetStatus(context.Background(), "missing")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestReportServiceListByClass(t *testing.T) {
	f := newReportFixture(t)
	for i := 0; i < 3; i++ {
		f.repo.batches[fmt.Sprintf("b-%d", i)] = &models.ReportBatch{
			ID:     fmt.Sprintf("b-%d", i),
			Params: models.ReportBatchParams{ClassID: "class-1", TermID: "term-1", Format: models.ExportFormatCSV},
			Status: models.BatchStatusQueued,
		}
	}
	items, pagination, err := f.service.ListByClass(context.Background(), "class-1", 2, 2)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "b-2", items[0].ID)
	assert.Equal(t, 3, pagination.TotalCount)
	assert.Equal(t, 2, pagination.Page)
}

func TestReportWorkerHandleFinishesBatchAndDownloads(t *testing.T) {
	f := newReportFixture(t)
	resp, err := f.service.CreateBatch(context.Background(), "class-1", dto.CreateBatchRequest{TermID: "term-1", Format: models.ExportFormatCSV}, "")
	require.NoError(t, err)

	worker := f.worker(classCardsStub{cards: []models.ReportCard{*sampleCard()}})
	require.NoError(t, worker.Handle(context.Background(), f.queue.jobs[0]))

	status, err := f.service.GetStatus(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusFinished, status.Status)
	assert.Equal(t, 100, status.Progress)
	require.NotNil(t, status.ResultURL)
	assert.True(t, strings.HasPrefix(*status.ResultURL, "/api/v1/export/"))
	assert.Nil(t, status.Error)

	token := strings.TrimPrefix(*status.ResultURL, "/api/v1/export/")
	download, err := f.service.ResolveDownload(context.Background(), token)
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, "text/csv", download.ContentType)
	assert.True(t, strings.HasSuffix(download.Filename, ".csv"))
	body, err := io.ReadAll(download.File)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Ayu Lestari")
}

func TestReportWorkerHandleSkipsFinishedBatch(t *testing.T) {
	f := newReportFixture(t)
	f.repo.batches["done"] = &models.ReportBatch{ID: "done", Status: models.BatchStatusFinished}
	worker := f.worker(classCardsStub{err: errors.New("must not be called")})
	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "done"}))
	assert.Equal(t, 0, f.repo.updates)
}

func TestReportWorkerHandleRequeuesTransientErrors(t *testing.T) {
	f := newReportFixture(t)
	f.repo.batches["b-1"] = &models.ReportBatch{ID: "b-1", Status: models.BatchStatusQueued,
		Params: models.ReportBatchParams{ClassID: "class-1", TermID: "term-1", Format: models.ExportFormatPDF}}
	worker := f.worker(classCardsStub{err: errors.New("db timeout")})

	err := worker.Handle(context.Background(), jobs.Job{ID: "b-1", Attempt: 1})
	require.Error(t, err)
	assert.Equal(t, models.BatchStatusQueued, f.repo.batches["b-1"].Status)
	require.NotNil(t, f.repo.batches["b-1"].ErrorMessage)
	assert.Equal(t, "db timeout", *f.repo.batches["b-1"].ErrorMessage)

	worker.Fail(context.Background(), jobs.Job{ID: "b-1"}, err)
	assert.Equal(t, models.BatchStatusFailed, f.repo.batches["b-1"].Status)
	assert.NotNil(t, f.repo.batches["b-1"].FinishedAt)
}

func TestReportWorkerHandleFailsPermanentErrorsImmediately(t *testing.T) {
	f := newReportFixture(t)
	f.repo.batches["b-1"] = &models.ReportBatch{ID: "b-1", Status: models.BatchStatusQueued,
		Params: models.ReportBatchParams{ClassID: "empty", TermID: "term-1", Format: models.ExportFormatPDF}}
	worker := f.worker(classCardsStub{err: appErrors.Clone(appErrors.ErrNotFound, "no students")})

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "b-1"}))
	assert.Equal(t, models.BatchStatusFailed, f.repo.batches["b-1"].Status)
	assert.Equal(t, "no students", *f.repo.batches["b-1"].ErrorMessage)
}

func TestReportServiceResolveDownloadRejectsBadTokens(t *testing.T) {
	f := newReportFixture(t)
	_, err := f.service.ResolveDownload(context.Background(), "garbage")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	f.repo.batches["b-1"] = &models.ReportBatch{ID: "b-1", Status: models.BatchStatusProcessing}
	token, _, err := f.signer.Generate("b-1", "b-1/file.pdf")
	require.NoError(t, err)
	_, err = f.service.ResolveDownload(context.Background(), token)
	assert.True(t, appErrors.Is(err, appErrors.ErrBatchNotReady))
}

func TestReportServiceResolveDownloadExpired(t *testing.T) {
	f := newReportFixture(t)
	expired := storage.NewSignedURLSigner("secret", time.Millisecond)
	token, _, err := expired.Generate("b-1", "b-1/file.pdf")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	_, err = f.service.ResolveDownload(context.Background(), token)
	assert.True(t, appErrors.Is(err, appErrors.ErrLinkExpired))
}

func TestReportServiceRecoverPendingJobs(t *testing.T) {
	f := newReportFixture(t)
	f.repo.batches["q"] = &models.ReportBatch{ID: "q", Status: models.BatchStatusQueued}
	f.repo.batches["p"] = &models.ReportBatch{ID: "p", Status: models.BatchStatusProcessing}
	f.repo.batches["d"] = &models.ReportBatch{ID: "d", Status: models.BatchStatusFinished}

	assert.Equal(t, 2, f.service.RecoverPendingJobs(context.Background()))
	assert.Len(t, f.queue.jobs, 2)
}

func TestReportServiceCleanup(t *testing.T) {
	f := newReportFixture(t)
	_, err := f.store.Save("old/report.pdf", []byte("%PDF"))
	require.NoError(t, err)
	f.service.cfg.Retention = -time.Minute

	removed := f.service.Cleanup()
	assert.Equal(t, []string{"old/report.pdf"}, removed)
}
