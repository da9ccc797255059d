package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-report-engine/pkg/errors"
)

type stubCacheRepo struct {
	store   map[string][]byte
	deleted []string
	getErr  error
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	if s.getErr != nil {
		return s.getErr
	}
	if s.store == nil {
		return appErrors.ErrCacheMiss
	}
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	return nil
}

func (s *stubCacheRepo) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.store, key)
		s.deleted = append(s.deleted, key)
	}
	return nil
}

func TestCacheServiceRoundTrip(t *testing.T) {
	repo := &stubCacheRepo{}
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, time.Minute, zap.NewNop(), true)

	var out map[string]int
	assert.False(t, svc.Get(context.Background(), "k", &out))

	svc.Set(context.Background(), "k", map[string]int{"a": 1}, 0)
	require.True(t, svc.Get(context.Background(), "k", &out))
	assert.Equal(t, 1, out["a"])

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.CacheHits)
	assert.Equal(t, uint64(1), snapshot.CacheMisses)
	assert.InDelta(t, 0.5, snapshot.CacheHitRatio, 0.0001)
}

func TestCacheServiceFailsOpen(t *testing.T) {
	repo := &stubCacheRepo{getErr: errors.New("redis down")}
	svc := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
	var out string
	assert.False(t, svc.Get(context.Background(), "k", &out))
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := &stubCacheRepo{}
	svc := NewCacheService(repo, nil, time.Minute, zap.NewNop(), false)
	svc.Set(context.Background(), "k", "v", time.Minute)
	assert.Empty(t, repo.store)
	assert.NoError(t, svc.InvalidateReportCard(context.Background(), "s", "t"))
	assert.Empty(t, repo.deleted)

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
	assert.False(t, nilSvc.Get(context.Background(), "k", new(string)))
}

func TestCacheServiceInvalidateReportCard(t *testing.T) {
	repo := &stubCacheRepo{}
	svc := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
	key := ReportCardCacheKey("student-1", "term-1")
	svc.Set(context.Background(), key, "card", time.Minute)

	require.NoError(t, svc.InvalidateReportCard(context.Background(), "student-1", "term-1"))
	assert.Equal(t, []string{"report_card:student-1:term-1"}, repo.deleted)
	assert.NotContains(t, repo.store, key)
}
