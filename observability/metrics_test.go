package observability

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestChainMetrics(t *testing.T) {
	m := Chain()
	m.RecordTransaction("bridge", "burn_and_remote_unlock", nil)
	m.RecordTransaction("bridge", "burn_and_remote_unlock", errors.New("boom"))
	if got := testutil.ToFloat64(m.transactions.WithLabelValues("bridge", "burn_and_remote_unlock", "failed")); got != 1 {
		t.Fatalf("failed transactions = %v, want 1", got)
	}

	m.SetBridgeState(3, big.NewInt(40), big.NewInt(100))
	if got := testutil.ToFloat64(m.pending); got != 3 {
		t.Fatalf("pending = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.limitCap); got != 100 {
		t.Fatalf("cap = %v, want 100", got)
	}

	m.SetEmergency(true)
	if got := testutil.ToFloat64(m.emergency); got != 1 {
		t.Fatalf("emergency = %v, want 1", got)
	}
	m.SetEmergency(false)
	if got := testutil.ToFloat64(m.emergency); got != 0 {
		t.Fatalf("emergency = %v, want 0", got)
	}

	m.RecordForwardFee("1/Parachain:2023", big.NewInt(6000))
	if got := testutil.ToFloat64(m.forwardFees.WithLabelValues("1/Parachain:2023")); got != 6000 {
		t.Fatalf("fees = %v, want 6000", got)
	}
}

func TestRPCMetricsObserve(t *testing.T) {
	m := RPC()
	m.Observe("bridge_getBalance", 0, 0)
	m.Observe("bridge_getBalance", -32602, 0)
	if got := testutil.ToFloat64(m.errors.WithLabelValues("bridge_getBalance", "-32602")); got != 1 {
		t.Fatalf("errors = %v, want 1", got)
	}
	m.RecordThrottle("")
	if got := testutil.ToFloat64(m.throttles.WithLabelValues("unspecified")); got != 1 {
		t.Fatalf("throttles = %v, want 1", got)
	}
}

func gatherFamilies(t *testing.T) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, family := range families {
		out[family.GetName()] = family
	}
	return out
}

func gaugeValue(t *testing.T, families map[string]*dto.MetricFamily, name string) float64 {
	t.Helper()
	family, ok := families[name]
	if !ok || len(family.Metric) == 0 || family.Metric[0].Gauge == nil {
		t.Fatalf("gauge %s not exported", name)
	}
	return family.Metric[0].Gauge.GetValue()
}

func TestBridgeGaugesExported(t *testing.T) {
	m := Chain()
	m.SetBridgeState(2, big.NewInt(7), big.NewInt(9))
	m.SetEmergency(true)
	defer m.SetEmergency(false)
	m.RecordBlock(12)
	RPC().Observe("bridge_getLimit", 0, 25*time.Millisecond)

	families := gatherFamilies(t)
	if got := gaugeValue(t, families, "lanebridge_bridge_pending_transfers"); got != 2 {
		t.Fatalf("pending = %v, want 2", got)
	}
	if got := gaugeValue(t, families, "lanebridge_bridge_limit_used"); got != 7 {
		t.Fatalf("limit used = %v, want 7", got)
	}
	if got := gaugeValue(t, families, "lanebridge_safeguard_emergency"); got != 1 {
		t.Fatalf("emergency = %v, want 1", got)
	}
	if got := gaugeValue(t, families, "lanebridge_runtime_height"); got != 12 {
		t.Fatalf("height = %v, want 12", got)
	}

	latency, ok := families["lanebridge_rpc_request_duration_seconds"]
	if !ok {
		t.Fatalf("latency histogram not exported")
	}
	var samples uint64
	for _, metric := range latency.Metric {
		if hist := metric.GetHistogram(); hist != nil {
			samples += hist.GetSampleCount()
		}
	}
	if samples == 0 {
		t.Fatalf("latency histogram has no samples")
	}
}
