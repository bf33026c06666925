package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mockenv"

// Catalog reload results
const (
	ReloadSuccess = "success"
	ReloadFailure = "failure"
	ReloadSkipped = "unchanged"
)

// Registry holds every collector exposed on the metrics endpoint
var Registry = prometheus.NewRegistry()

var (
	// ResolutionLatencyBuckets cover in-process resolution, from 100us up to configured delays
	ResolutionLatencyBuckets = []float64{
		0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
	}
)

var (
	resolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Counter of mock resolutions broken out by outcome and HTTP method.",
		},
		[]string{"outcome", "method"},
	)

	resolutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolution_duration_seconds",
			Help:      "Time spent resolving a request, including configured delays.",
			Buckets:   ResolutionLatencyBuckets,
		},
		[]string{"outcome"},
	)

	responseDelay = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_delay_seconds",
			Help:      "Configured delay applied to selected responses.",
			Buckets:   ResolutionLatencyBuckets,
		},
	)

	ruleEvaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_evaluations_total",
			Help:      "Counter of rule evaluations broken out by rule type and result.",
		},
		[]string{"rule_type", "result"},
	)

	catalogReloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_reloads_total",
			Help:      "Counter of catalog file reloads broken out by result.",
		},
		[]string{"result"},
	)
)

var registerMetrics sync.Once

// Register all metrics.
func Register(customCollectors ...prometheus.Collector) {
	registerMetrics.Do(func() {
		Registry.MustRegister(resolutionsTotal)
		Registry.MustRegister(resolutionDuration)
		Registry.MustRegister(responseDelay)
		Registry.MustRegister(ruleEvaluations)
		Registry.MustRegister(catalogReloads)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		for _, collector := range customCollectors {
			Registry.MustRegister(collector)
		}
	})
}

// Reset clears all recorded values. Used by tests.
func Reset() {
	resolutionsTotal.Reset()
	resolutionDuration.Reset()
	ruleEvaluations.Reset()
	catalogReloads.Reset()
}

// Handler serves the registry in the Prometheus exposition format
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// OtherMethod labels requests whose method is not a standard HTTP method
const OtherMethod = "OTHER"

// MethodLabel keeps the method label bounded; clients may send any token.
func MethodLabel(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch,
		http.MethodDelete, http.MethodConnect, http.MethodOptions, http.MethodTrace:
		return method
	}
	return OtherMethod
}

// RecordResolution records one finished resolution.
func RecordResolution(outcome, method string, duration time.Duration) {
	resolutionsTotal.WithLabelValues(outcome, MethodLabel(method)).Inc()
	resolutionDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordResponseDelay records the delay applied to a selected response.
func RecordResponseDelay(delay time.Duration) {
	responseDelay.Observe(delay.Seconds())
}

// RecordRuleEvaluation records the result of evaluating a single rule.
func RecordRuleEvaluation(ruleType string, matched bool) {
	result := "miss"
	if matched {
		result = "match"
	}
	ruleEvaluations.WithLabelValues(ruleType, result).Inc()
}

// RecordCatalogReload records a catalog reload attempt.
func RecordCatalogReload(result string) {
	catalogReloads.WithLabelValues(result).Inc()
}
