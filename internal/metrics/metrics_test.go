package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.WeatherLookup("memory")
	m.WeatherFetch(nil)
	m.WeatherFetch(errors.New("boom"))
	m.Upstream("aviationweather.gov", nil)
	m.DownloadStarted()
	m.DownloadFinished("succeeded", 1024)
	m.SetChartStorage(2048)
	m.SetWeatherEntries(3)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 8)

	assert.InDelta(t, 1, testutil.ToFloat64(m.WeatherFetches.WithLabelValues(ResultError)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.WeatherFetches.WithLabelValues(ResultSuccess)), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.ActiveDownloads), 0)
	assert.InDelta(t, 1024, testutil.ToFloat64(m.ChartBytes), 0)
	assert.InDelta(t, 2048, testutil.ToFloat64(m.ChartStorage), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.UpstreamRequests.WithLabelValues("aviationweather.gov", ResultSuccess)), 0)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.WeatherLookup("miss")
		m.WeatherFetch(nil)
		m.SetWeatherEntries(1)
		m.Upstream("h", nil)
		m.DownloadStarted()
		m.DownloadFinished("failed", 0)
		m.SetChartStorage(0)
	})
}
