// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// #nosec G404
package metrics

import (
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	dto "github.com/prometheus/client_model/go"
)

func gather(t *testing.T) map[string]*dto.MetricFamily {
	metricFamilies, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	out := make(map[string]*dto.MetricFamily)
	for _, mf := range metricFamilies {
		out[mf.GetName()] = mf
	}
	return out
}

func TestNoopMetrics(t *testing.T) {
	metrics = defaultNoopMetrics()

	server := httptest.NewServer(HTTPHandler())
	t.Cleanup(server.Close)

	Gauge("noopGauge").Add(1)
	CounterVec("noopCountVec", []string{"result"}).AddWithLabel(1, map[string]string{"thisIsNonsense": "butDoesntBreak"})
	Histogram("noopHist", nil).Observe(1)
	HistogramVec("noopHistVec", []string{"result"}, nil).ObserveWithLabels(1, nil)

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPromMetrics(t *testing.T) {
	InitializePrometheusMetrics()

	countVec := CounterVec("countVec1", []string{"zeroOrOne"})
	hist := Histogram("hist1", nil)
	gauge := Gauge("gauge1")

	// same name returns the same meter
	require.Same(t, gauge, Gauge("gauge1"))

	histTotal := 0
	totalCountVec := 0
	n := rand.Intn(100) + 2
	for i := 0; i < n; i++ {
		zeroOrOne := strconv.Itoa(i % 2)
		hist.Observe(int64(i))
		HistogramVec("hist2", []string{"zeroOrOne"}, Bucket10s).
			ObserveWithLabels(int64(i), map[string]string{"zeroOrOne": zeroOrOne})
		countVec.AddWithLabel(int64(i), map[string]string{"zeroOrOne": zeroOrOne})
		histTotal += i
		totalCountVec += i
	}
	gauge.Set(10)
	gauge.Add(-3)

	families := gather(t)

	require.Equal(t, float64(histTotal), families["stakesync_metrics_hist1"].Metric[0].GetHistogram().GetSampleSum())

	sumHistVec := families["stakesync_metrics_hist2"].Metric[0].GetHistogram().GetSampleSum() +
		families["stakesync_metrics_hist2"].Metric[1].GetHistogram().GetSampleSum()
	require.Equal(t, float64(histTotal), sumHistVec)

	sumCountVec := families["stakesync_metrics_countVec1"].Metric[0].GetCounter().GetValue() +
		families["stakesync_metrics_countVec1"].Metric[1].GetCounter().GetValue()
	require.Equal(t, float64(totalCountVec), sumCountVec)

	require.Equal(t, float64(7), families["stakesync_metrics_gauge1"].Metric[0].GetGauge().GetValue())
}

func TestLazyLoading(t *testing.T) {
	metrics = defaultNoopMetrics()

	for _, a := range []any{
		Gauge("noopGauge"),
		CounterVec("noopCounter", nil),
		Histogram("noopHist", nil),
		HistogramVec("noopHist", nil, nil),
	} {
		require.IsType(t, &noopMeters{}, a)
	}

	lazyGauge := LazyLoadGauge("lazyGauge")
	lazyCounterVec := LazyLoadCounterVec("lazyCounterVec", nil)
	lazyHistogram := LazyLoadHistogram("lazyHistogram", nil)
	lazyHistogramVec := LazyLoadHistogramVec("lazyHistogramVec", nil, nil)

	// meters resolved after initialization are backed by prometheus
	InitializePrometheusMetrics()

	require.IsType(t, &promGaugeMeter{}, lazyGauge())
	require.IsType(t, &promCountVecMeter{}, lazyCounterVec())
	require.IsType(t, &promHistogramMeter{}, lazyHistogram())
	require.IsType(t, &promHistogramVecMeter{}, lazyHistogramVec())
}
