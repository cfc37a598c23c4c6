package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "token_aggregator_refresh_total",
		Help: "Refresh passes by result (success, failure, skipped)",
	}, []string{"result"})

	refreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "token_aggregator_refresh_seconds",
		Help:    "Time spent building one snapshot",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	snapshotRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "token_aggregator_snapshot_records",
		Help: "Number of records in the served snapshot",
	})

	priceOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "token_aggregator_price_outcomes_total",
		Help: "Per-address price lookup outcomes by source",
	}, []string{"source", "outcome"})

	upstreamRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "token_aggregator_upstream_retries_total",
		Help: "Retries issued against upstream sources",
	}, []string{"source"})

	swapPages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "token_aggregator_swap_pages_total",
		Help: "Swap feed pages by result (ok, empty, failed)",
	}, []string{"result"})

	droppedRows = promauto.NewCounter(prometheus.CounterOpts{
		Name: "token_aggregator_swap_rows_dropped_total",
		Help: "Swap rows dropped by validation",
	})
)

// Refresh results
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
)

// Swap page results
const (
	PageOK     = "ok"
	PageEmpty  = "empty"
	PageFailed = "failed"
)

func RecordRefresh(result string, d time.Duration) {
	refreshTotal.WithLabelValues(result).Inc()
	if result != ResultSkipped {
		refreshDuration.Observe(d.Seconds())
	}
}

func SetSnapshotRecords(n int) {
	snapshotRecords.Set(float64(n))
}

func RecordPriceOutcome(source, outcome string, n int) {
	if n <= 0 {
		return
	}
	priceOutcomes.WithLabelValues(source, outcome).Add(float64(n))
}

func IncrementRetries(source string) {
	upstreamRetries.WithLabelValues(source).Inc()
}

func RecordSwapPage(result string) {
	swapPages.WithLabelValues(result).Inc()
}

func AddDroppedRows(n int) {
	if n > 0 {
		droppedRows.Add(float64(n))
	}
}
