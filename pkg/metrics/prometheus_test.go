package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCountsAndGauges(t *testing.T) {
	assertion := assert.New(t)
	reg := prometheus.NewRegistry()
	r := NewWith(reg)

	r.RecordAnalysis("BTCUSDT", "buy")
	r.RecordAnalysis("BTCUSDT", "buy")
	r.RecordAnalysis("ETHUSDT", "hold")
	r.RecordError("market_data")
	r.RecordLastPrice("BTCUSDT", 64250.5)
	r.RecordConfidence("BTCUSDT", 0.9)
	r.RecordLatency("analyze_asset", 0.125)

	assertion.InDelta(2, testutil.ToFloat64(r.analyses.WithLabelValues("BTCUSDT", "buy")), 1e-9)
	assertion.InDelta(1, testutil.ToFloat64(r.analyses.WithLabelValues("ETHUSDT", "hold")), 1e-9)
	assertion.InDelta(1, testutil.ToFloat64(r.errorsTotal.WithLabelValues("market_data")), 1e-9)
	assertion.InDelta(64250.5, testutil.ToFloat64(r.lastPrice.WithLabelValues("BTCUSDT")), 1e-9)
	assertion.InDelta(0.9, testutil.ToFloat64(r.confidence.WithLabelValues("BTCUSDT")), 1e-9)

	families, err := reg.Gather()
	assertion.NoError(err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assertion.True(names["tradecouncil_analyses_total"])
	assertion.True(names["tradecouncil_operation_duration_seconds"])
}

func TestNopRecorderIsSilent(t *testing.T) {
	var n Nop
	n.RecordAnalysis("BTCUSDT", "buy")
	n.RecordError("x")
	n.RecordLastPrice("BTCUSDT", 1)
	n.RecordLatency("op", 1)
	n.RecordConfidence("BTCUSDT", 1)
}
