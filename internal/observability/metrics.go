package observability

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/sillsdev/silauto-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests     *CounterVec
	apiLatency      *HistogramVec
	apiInflight     *Gauge
	scanRuns        *CounterVec
	scanDuration    *HistogramVec
	scanFailures    *CounterVec
	scanStored      *GaugeVec
	taskTransitions *CounterVec
	taskWarnings    *CounterVec
	catalogRows     *GaugeVec
	dbStats         *GaugeVec
}

// NewMetrics returns nil when disabled; every method is nil-safe.
func NewMetrics(enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	return &Metrics{
		apiRequests: NewCounterVec("silauto_api_requests_total", "HTTP requests by method, route and status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec("silauto_api_request_seconds", "HTTP request latency.", []string{"method", "route"},
			[]float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}),
		apiInflight: NewGauge("silauto_api_inflight", "HTTP requests in flight."),
		scanRuns:    NewCounterVec("silauto_scan_runs_total", "Reconciliation scans by kind and outcome.", []string{"kind", "status"}),
		scanDuration: NewHistogramVec("silauto_scan_seconds", "Reconciliation scan duration.", []string{"kind"},
			[]float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120}),
		scanFailures:    NewCounterVec("silauto_scan_artifact_failures_total", "Artifacts that failed extraction.", []string{"kind"}),
		scanStored:      NewGaugeVec("silauto_scan_stored", "Records stored by the last scan of a kind.", []string{"kind"}),
		taskTransitions: NewCounterVec("silauto_task_transitions_total", "Task status transitions.", []string{"kind", "status"}),
		taskWarnings:    NewCounterVec("silauto_task_effect_warnings_total", "Completion side effects that failed.", []string{"kind"}),
		catalogRows:     NewGaugeVec("silauto_catalog_rows", "Catalog rows per table.", []string{"table"}),
		dbStats:         NewGaugeVec("silauto_db_stats", "database/sql pool stats.", []string{"stat"}),
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	writers := []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.scanRuns, m.scanDuration, m.scanFailures, m.scanStored,
		m.taskTransitions, m.taskWarnings,
		m.catalogRows, m.dbStats,
	}
	for _, mw := range writers {
		if err := mw.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) APIInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Add(1)
}

func (m *Metrics) APIInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Add(-1)
}

func (m *Metrics) ObserveScan(kind string, stored, failures int, dur time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.scanRuns.Inc(kind, status)
	m.scanDuration.Observe(dur.Seconds(), kind)
	if failures > 0 {
		m.scanFailures.Add(float64(failures), kind)
	}
	if err == nil {
		m.scanStored.Set(float64(stored), kind)
	}
}

func (m *Metrics) IncTaskTransition(kind, status string) {
	if m == nil {
		return
	}
	m.taskTransitions.Inc(kind, status)
}

func (m *Metrics) AddTaskWarnings(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.taskWarnings.Add(float64(n), kind)
}

// StartCatalogCollector samples table sizes and pool stats until ctx ends.
func (m *Metrics) StartCatalogCollector(ctx context.Context, log *logger.Logger, db *gorm.DB, tables []string, interval time.Duration) {
	if m == nil || db == nil {
		return
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.collectCatalog(ctx, log, db, tables)
			}
		}
	}()
}

func (m *Metrics) collectCatalog(ctx context.Context, log *logger.Logger, db *gorm.DB, tables []string) {
	for _, table := range tables {
		var n int64
		if err := db.WithContext(ctx).Table(table).Count(&n).Error; err != nil {
			if log != nil {
				log.Warn("metrics: catalog count failed", "table", table, "error", err)
			}
			continue
		}
		m.catalogRows.Set(float64(n), table)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	stats := sqlDB.Stats()
	m.dbStats.Set(float64(stats.OpenConnections), "open_connections")
	m.dbStats.Set(float64(stats.InUse), "in_use")
	m.dbStats.Set(float64(stats.Idle), "idle")
	m.dbStats.Set(float64(stats.WaitCount), "wait_count")
	m.dbStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
}

// StatusLabel renders an HTTP status code as a metric label.
func StatusLabel(code int) string { return strconv.Itoa(code) }
