// Package metrics keeps the dashboard's Prometheus counters and writes them
// to a node_exporter textfile collector file.
package metrics

import (
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "edashboard"

// Metrics holds the Prometheus counters and gauges for the refresh loop.
type Metrics struct {
	registry *prometheus.Registry

	Renders        *prometheus.CounterVec // labels: kind={status,night}
	WeatherFetches *prometheus.CounterVec // labels: result={ok,timeout,transport,status,malformed,unknown}
	IconResolves   *prometheus.CounterVec // labels: result={ok,missing}
	CalendarFetch  *prometheus.CounterVec // labels: result={ok,error}
	LastRender     prometheus.Gauge
	WeatherAge     prometheus.Gauge
	BatteryPercent prometheus.Gauge
}

// New creates all metrics on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renders_total",
			Help:      "Frames pushed to the display by kind.",
		}, []string{"kind"}),
		WeatherFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_fetches_total",
			Help:      "Weather API requests by result.",
		}, []string{"result"}),
		IconResolves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "icon_resolves_total",
			Help:      "Weather icon lookups by result.",
		}, []string{"result"}),
		CalendarFetch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calendar_refreshes_total",
			Help:      "Calendar indicator refreshes by result.",
		}, []string{"result"}),
		LastRender: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_render_timestamp_seconds",
			Help:      "Unix time of the last frame pushed to the display.",
		}),
		WeatherAge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "weather_age_seconds",
			Help:      "Age of the displayed weather reading.",
		}),
		BatteryPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "battery_percent",
			Help:      "Last battery level read, if the indicator is enabled.",
		}),
	}

	m.registry.MustRegister(
		m.Renders,
		m.WeatherFetches,
		m.IconResolves,
		m.CalendarFetch,
		m.LastRender,
		m.WeatherAge,
		m.BatteryPercent,
	)
	return m
}

// Rendered records a frame of kind pushed at t.
func (m *Metrics) Rendered(kind string, t time.Time) {
	m.Renders.WithLabelValues(kind).Inc()
	m.LastRender.Set(float64(t.Unix()))
}

// Registry exposes the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the current values to path in the text exposition
// format. The parent directory must exist, as node_exporter expects.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
