package observability

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

type settlementMetrics struct {
	purchases   *prometheus.CounterVec
	passesSold  *prometheus.CounterVec
	revenue     *prometheus.CounterVec
	experiences prometheus.Counter
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	settlementOnce sync.Once
	settlementReg  *settlementMetrics
)

// ModuleMetrics returns the lazily-initialised registry used to record
// JSON-RPC module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "expnet",
				Subsystem: "module",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "expnet",
				Subsystem: "module",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by method and status code.",
			}, []string{"method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "expnet",
				Subsystem: "module",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of an RPC request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// Settlement returns the registry tracking purchase and factory activity.
func Settlement() *settlementMetrics {
	settlementOnce.Do(func() {
		settlementReg = &settlementMetrics{
			purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "expnet",
				Subsystem: "settlement",
				Name:      "purchases_total",
				Help:      "Count of settled purchases segmented by currency.",
			}, []string{"currency"}),
			passesSold: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "expnet",
				Subsystem: "settlement",
				Name:      "passes_sold_total",
				Help:      "Count of passes minted segmented by currency.",
			}, []string{"currency"}),
			revenue: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "expnet",
				Subsystem: "settlement",
				Name:      "revenue_routed_total",
				Help:      "Value routed per settlement leg, in minor units.",
			}, []string{"currency", "leg"}),
			experiences: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "expnet",
				Subsystem: "settlement",
				Name:      "experiences_created_total",
				Help:      "Count of experiences deployed by the factory.",
			}),
		}
		prometheus.MustRegister(
			settlementReg.purchases,
			settlementReg.passesSold,
			settlementReg.revenue,
			settlementReg.experiences,
		)
	})
	return settlementReg
}

// RecordPurchase tracks a settled purchase and its split legs.
func (m *settlementMetrics) RecordPurchase(currency string, quantity uint64, platform, proposer, creator *big.Int) {
	if m == nil {
		return
	}
	label := labelCurrency(currency)
	m.purchases.WithLabelValues(label).Inc()
	m.passesSold.WithLabelValues(label).Add(float64(quantity))
	m.revenue.WithLabelValues(label, "platform").Add(bigToFloat(platform))
	m.revenue.WithLabelValues(label, "proposer").Add(bigToFloat(proposer))
	m.revenue.WithLabelValues(label, "creator").Add(bigToFloat(creator))
}

// RecordExperienceCreated tracks a factory deployment.
func (m *settlementMetrics) RecordExperienceCreated() {
	if m == nil {
		return
	}
	m.experiences.Inc()
}

func labelCurrency(currency string) string {
	trimmed := strings.TrimSpace(currency)
	if trimmed == "" {
		return "UNKNOWN"
	}
	return strings.ToUpper(trimmed)
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		// Guard against NaN/Inf when conversion fails.
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
