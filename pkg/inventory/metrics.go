package inventory

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects Prometheus metrics for the ledger engine.
// A nil *Metrics is valid and records nothing.
// 在庫台帳エンジンのPrometheusメトリクス
type Metrics struct {
	movements        *prometheus.CounterVec
	unitsMoved       *prometheus.CounterVec
	movementDuration prometheus.Histogram
	reportQueries    *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg
// メトリクスを作成してレジストリに登録
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		movements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stockledger",
			Name:      "movements_total",
			Help:      "Stock movement requests by action and result.",
		}, []string{"action", "result"}),
		unitsMoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stockledger",
			Name:      "units_moved_total",
			Help:      "Absolute units moved by committed movements, by action.",
		}, []string{"action"}),
		movementDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "stockledger",
			Name:      "movement_duration_seconds",
			Help:      "Latency of ApplyMovement including the storage commit.",
			Buckets:   prometheus.DefBuckets,
		}),
		reportQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stockledger",
			Name:      "report_queries_total",
			Help:      "Reporter queries by query name and result.",
		}, []string{"query", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.movements, m.unitsMoved, m.movementDuration, m.reportQueries)
	}
	return m
}

func (m *Metrics) observeMovement(action MovementAction, change int64, started time.Time, err error) {
	if m == nil {
		return
	}
	label := string(action)
	if !action.Valid() {
		label = "unknown"
	}
	m.movements.WithLabelValues(label, resultLabel(err)).Inc()
	m.movementDuration.Observe(time.Since(started).Seconds())
	if err == nil {
		if change < 0 {
			change = -change
		}
		m.unitsMoved.WithLabelValues(label).Add(float64(change))
	}
}

func (m *Metrics) observeReport(query string, err error) {
	if m == nil {
		return
	}
	m.reportQueries.WithLabelValues(query, resultLabel(err)).Inc()
}

// resultLabel maps an error to a bounded label value
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrProductNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidDelta), errors.Is(err, ErrInvalidAction), errors.Is(err, ErrInvalidInput):
		return "invalid"
	case errors.Is(err, ErrStorageFailure):
		return "storage_error"
	default:
		return "error"
	}
}
