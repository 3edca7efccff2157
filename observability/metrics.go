package observability

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type rpcMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

// ChainMetrics tracks runtime and bridge activity.
type ChainMetrics struct {
	transactions *prometheus.CounterVec
	blocks       prometheus.Counter
	height       prometheus.Gauge
	pending      prometheus.Gauge
	limitUsed    prometheus.Gauge
	limitCap     prometheus.Gauge
	emergency    prometheus.Gauge
	forwardFees  *prometheus.CounterVec
}

var (
	rpcMetricsOnce sync.Once
	rpcRegistry    *rpcMetrics

	chainMetricsOnce sync.Once
	chainRegistry    *ChainMetrics
)

// RPC returns the lazily-initialised registry recording JSON-RPC activity.
func RPC() *rpcMetrics {
	rpcMetricsOnce.Do(func() {
		rpcRegistry = &rpcMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lanebridge",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lanebridge",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by method and error code.",
			}, []string{"method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "lanebridge",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lanebridge",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			rpcRegistry.requests,
			rpcRegistry.errors,
			rpcRegistry.latency,
			rpcRegistry.throttles,
		)
	})
	return rpcRegistry
}

// Observe records the outcome of a JSON-RPC request. code is zero on success.
func (m *rpcMetrics) Observe(method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if code != 0 {
		outcome = "error"
		m.errors.WithLabelValues(method, fmt.Sprintf("%d", code)).Inc()
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit".
func (m *rpcMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(reason).Inc()
}

// Chain returns the singleton registry for runtime metrics.
func Chain() *ChainMetrics {
	chainMetricsOnce.Do(func() {
		chainRegistry = &ChainMetrics{
			transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lanebridge",
				Subsystem: "runtime",
				Name:      "transactions_total",
				Help:      "Applied transactions segmented by module, method and outcome.",
			}, []string{"module", "method", "outcome"}),
			blocks: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "lanebridge",
				Subsystem: "runtime",
				Name:      "blocks_total",
				Help:      "Blocks committed by this node.",
			}),
			height: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "lanebridge",
				Subsystem: "runtime",
				Name:      "height",
				Help:      "Height of the last committed block.",
			}),
			pending: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "lanebridge",
				Subsystem: "bridge",
				Name:      "pending_transfers",
				Help:      "Outbound transfers awaiting a failure report or pruning.",
			}),
			limitUsed: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "lanebridge",
				Subsystem: "bridge",
				Name:      "limit_used",
				Help:      "Value issued in the current security period.",
			}),
			limitCap: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "lanebridge",
				Subsystem: "bridge",
				Name:      "limit_cap",
				Help:      "Maximum value issuable per security period.",
			}),
			emergency: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "lanebridge",
				Subsystem: "safeguard",
				Name:      "emergency",
				Help:      "1 while the finality safeguard reports an emergency.",
			}),
			forwardFees: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lanebridge",
				Subsystem: "router",
				Name:      "forward_fees_total",
				Help:      "Execution fees charged for forwarded messages segmented by target.",
			}, []string{"target"}),
		}
		prometheus.MustRegister(
			chainRegistry.transactions,
			chainRegistry.blocks,
			chainRegistry.height,
			chainRegistry.pending,
			chainRegistry.limitUsed,
			chainRegistry.limitCap,
			chainRegistry.emergency,
			chainRegistry.forwardFees,
		)
	})
	return chainRegistry
}

// RecordTransaction counts an applied transaction.
func (m *ChainMetrics) RecordTransaction(module, method string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failed"
	}
	m.transactions.WithLabelValues(module, method, outcome).Inc()
}

// RecordBlock updates the block counters.
func (m *ChainMetrics) RecordBlock(height uint64) {
	if m == nil {
		return
	}
	m.blocks.Inc()
	m.height.Set(float64(height))
}

// SetBridgeState publishes the ledger size and limiter usage.
func (m *ChainMetrics) SetBridgeState(pending int, used, cap *big.Int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(pending))
	m.limitUsed.Set(toFloat(used))
	m.limitCap.Set(toFloat(cap))
}

// SetEmergency toggles the safeguard gauge.
func (m *ChainMetrics) SetEmergency(active bool) {
	if m == nil {
		return
	}
	if active {
		m.emergency.Set(1)
		return
	}
	m.emergency.Set(0)
}

// RecordForwardFee adds a forwarded message fee.
func (m *ChainMetrics) RecordForwardFee(target string, amount *big.Int) {
	if m == nil || amount == nil {
		return
	}
	m.forwardFees.WithLabelValues(target).Add(toFloat(amount))
}

func toFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
