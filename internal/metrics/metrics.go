// Package metrics holds the Prometheus collectors for cache and download
// activity. A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "efb"

	ResultSuccess = "success"
	ResultError   = "error"
)

// Metrics bundles the collectors.
type Metrics struct {
	WeatherLookups   *prometheus.CounterVec
	WeatherFetches   *prometheus.CounterVec
	WeatherEntries   prometheus.Gauge
	UpstreamRequests *prometheus.CounterVec
	ChartDownloads   *prometheus.CounterVec
	ChartBytes       prometheus.Counter
	ActiveDownloads  prometheus.Gauge
	ChartStorage     prometheus.Gauge
}

// New constructs the collectors and registers them with reg. Pass
// prometheus.NewRegistry() in tests to avoid global collisions.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		WeatherLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "weather_lookups_total",
				Help:      "Weather cache lookups by tier (memory, store, miss)",
			},
			[]string{"source"},
		),
		WeatherFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "weather_fetches_total",
				Help:      "METAR fetches by result",
			},
			[]string{"result"},
		),
		WeatherEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "weather_memory_entries",
			Help:      "Observations held in the in-memory tier",
		}),
		UpstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "Upstream HTTP attempts by host and result",
			},
			[]string{"host", "result"},
		),
		ChartDownloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chart_downloads_total",
				Help:      "Chart downloads by terminal state",
			},
			[]string{"state"},
		),
		ChartBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chart_download_bytes_total",
			Help:      "Bytes written by completed chart downloads",
		}),
		ActiveDownloads: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chart_downloads_active",
			Help:      "Chart downloads currently transferring",
		}),
		ChartStorage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chart_storage_bytes",
			Help:      "Catalog size of downloaded chart regions",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.WeatherLookups,
			m.WeatherFetches,
			m.WeatherEntries,
			m.UpstreamRequests,
			m.ChartDownloads,
			m.ChartBytes,
			m.ActiveDownloads,
			m.ChartStorage,
		)
	}
	return m
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}

// WeatherLookup counts a Get served from source.
func (m *Metrics) WeatherLookup(source string) {
	if m == nil {
		return
	}
	m.WeatherLookups.WithLabelValues(source).Inc()
}

// WeatherFetch counts one METAR fetch.
func (m *Metrics) WeatherFetch(err error) {
	if m == nil {
		return
	}
	m.WeatherFetches.WithLabelValues(result(err)).Inc()
}

// SetWeatherEntries records the in-memory tier size.
func (m *Metrics) SetWeatherEntries(n int) {
	if m == nil {
		return
	}
	m.WeatherEntries.Set(float64(n))
}

// Upstream counts one upstream attempt. Its signature matches
// fetcher.Options.OnResult.
func (m *Metrics) Upstream(host string, err error) {
	if m == nil {
		return
	}
	m.UpstreamRequests.WithLabelValues(host, result(err)).Inc()
}

// DownloadStarted marks a transfer as active.
func (m *Metrics) DownloadStarted() {
	if m == nil {
		return
	}
	m.ActiveDownloads.Inc()
}

// DownloadFinished records the terminal state of a transfer.
func (m *Metrics) DownloadFinished(state string, bytes int64) {
	if m == nil {
		return
	}
	m.ActiveDownloads.Dec()
	m.ChartDownloads.WithLabelValues(state).Inc()
	if bytes > 0 {
		m.ChartBytes.Add(float64(bytes))
	}
}

// SetChartStorage records the downloaded catalog size.
func (m *Metrics) SetChartStorage(bytes int64) {
	if m == nil {
		return
	}
	m.ChartStorage.Set(float64(bytes))
}
