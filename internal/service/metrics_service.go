package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry of the report engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	cardsAssembled  *prometheus.CounterVec
	cardSubjects    prometheus.Histogram
	cardDuration    *prometheus.HistogramVec
	batchesTotal    *prometheus.CounterVec
	exportsTotal    *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
	cardCount      uint64
	batchCount     uint64
}

// MetricsSnapshot is a JSON friendly summary of the counters.
type MetricsSnapshot struct {
	CacheHitRatio float64   `json:"cache_hit_ratio"`
	CacheHits     uint64    `json:"cache_hits"`
	CacheMisses   uint64    `json:"cache_misses"`
	ReportCards   uint64    `json:"report_cards_assembled"`
	ReportBatches uint64    `json:"report_batches_completed"`
	Goroutines    int       `json:"goroutines"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache writes",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	cardsAssembled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "report_cards_assembled_total",
		Help: "Report cards assembled, by institution mode",
	}, []string{"mode"})

	cardSubjects := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "report_card_subjects",
		Help:    "Number of subjects per assembled report card",
		Buckets: []float64{0, 1, 2, 4, 6, 8, 10, 12, 16, 20},
	})

	cardDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "report_card_assembly_seconds",
		Help:    "Time spent loading and assembling a report card",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	batchesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "report_card_batches_total",
		Help: "Class report card batches by terminal status",
	}, []string{"status"})

	exportsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "report_card_exports_total",
		Help: "Rendered report card documents by format",
	}, []string{"format"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		cardsAssembled, cardSubjects, cardDuration, batchesTotal, exportsTotal, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		cardsAssembled:  cardsAssembled,
		cardSubjects:    cardSubjects,
		cardDuration:    cardDuration,
		batchesTotal:    batchesTotal,
		exportsTotal:    exportsTotal,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request latency and count.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache lookup and updates the hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks cache write latency.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveReportCard records one freshly assembled report card.
func (m *MetricsService) ObserveReportCard(mode string, subjects int, duration time.Duration) {
	if m == nil {
		return
	}
	m.cardsAssembled.WithLabelValues(mode).Inc()
	m.cardSubjects.Observe(float64(subjects))
	m.cardDuration.WithLabelValues(mode).Observe(duration.Seconds())
	atomic.AddUint64(&m.cardCount, 1)
}

// RecordBatch records a class batch reaching a terminal status.
func (m *MetricsService) RecordBatch(status string) {
	if m == nil {
		return
	}
	m.batchesTotal.WithLabelValues(status).Inc()
	atomic.AddUint64(&m.batchCount, 1)
}

// RecordExport records a rendered document.
func (m *MetricsService) RecordExport(format string) {
	if m == nil {
		return
	}
	m.exportsTotal.WithLabelValues(format).Inc()
}

// Snapshot returns the in-process counters.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	var ratio float64
	if hits+misses > 0 {
		ratio = float64(hits) / float64(hits+misses)
	}
	return MetricsSnapshot{
		CacheHitRatio: ratio,
		CacheHits:     hits,
		CacheMisses:   misses,
		ReportCards:   atomic.LoadUint64(&m.cardCount),
		ReportBatches: atomic.LoadUint64(&m.batchCount),
		Goroutines:    runtime.NumGoroutine(),
		GeneratedAt:   time.Now().UTC(),
	}
}
