package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "monkeys"

// Search run Prometheus metrics.
var (
	CandidatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Random candidates generated",
		},
	)

	SurvivorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filter_survivors_total",
			Help:      "Candidates that passed the membership filter",
		},
	)

	HitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verified_hits_total",
			Help:      "Confirmed occurrences of candidates in the corpus",
		},
	)

	MalformedRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_records_total",
			Help:      "Records skipped because they could not be used",
		},
		[]string{"stage"}, // "verify" / "replay"
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of one iteration stage in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"}, // "generate" / "pipeline" / "reduce" / "checkpoint" / "filter_build"
	)

	IterationsCompleted = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "iterations_completed",
			Help:      "Iterations completed including those restored from the checkpoint",
		},
	)

	CheckpointsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoints_total",
			Help:      "Checkpoint attempts by outcome",
		},
		[]string{"result"}, // "ok" / "error"
	)

	CoverageFound = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "coverage_found_chars",
			Help:      "Characters of a work covered by verified hits",
		},
		[]string{"work"},
	)

	CoverageTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "coverage_total_chars",
			Help:      "Characters in a work",
		},
		[]string{"work"},
	)

	FilterCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filter_cache_total",
			Help:      "Membership filter cache lookups",
		},
		[]string{"result"}, // "hit" / "load" / "build"
	)
)

var runMetricsRegistered bool

// RegisterRunMetrics registers the search run metrics. Must be called once from main.
func RegisterRunMetrics() {
	if runMetricsRegistered {
		return
	}
	prometheus.MustRegister(CandidatesTotal)
	prometheus.MustRegister(SurvivorsTotal)
	prometheus.MustRegister(HitsTotal)
	prometheus.MustRegister(MalformedRecordsTotal)
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(IterationsCompleted)
	prometheus.MustRegister(CheckpointsTotal)
	prometheus.MustRegister(CoverageFound)
	prometheus.MustRegister(CoverageTotal)
	prometheus.MustRegister(FilterCacheTotal)
	runMetricsRegistered = true
}
