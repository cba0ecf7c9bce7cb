package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "minibet"

// Label names
const (
	LabelMethod = "method"
	LabelPath   = "path"
	LabelStatus = "status"
	LabelDecode = "decode_path"
	LabelTier   = "tier"
	LabelSource = "source"
	LabelResult = "result"
	LabelTopic  = "topic"
)

// HTTP Metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{LabelMethod, LabelPath, LabelStatus},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelMethod, LabelPath},
	)
)

// Chain Metrics
var (
	// ReceiptDecodes counts receipt decodes by path (event, heuristic, no_logs, not_found).
	ReceiptDecodes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipt_decodes_total",
			Help:      "Receipt decodes by decode path",
		},
		[]string{LabelDecode},
	)

	ReceiptWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "receipt_wait_seconds",
			Help:      "Time spent waiting for spin receipts",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60},
		},
	)

	SpinsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spins_total",
			Help:      "Spin submissions by result",
		},
		[]string{LabelResult},
	)

	SpinOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spin_outcomes_total",
			Help:      "Decoded spin outcomes by tier",
		},
		[]string{LabelTier},
	)
)

// History and Event Metrics
var (
	HistoryFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_fetches_total",
			Help:      "History page fetches by source and result",
		},
		[]string{LabelSource, LabelResult},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Events published to Kafka",
		},
		[]string{LabelTopic},
	)

	JackpotProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jackpot_progress_percent",
			Help:      "Last observed jackpot unlock progress",
		},
	)
)
