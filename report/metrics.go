package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/FrancoLiuDev/get-printer-count/collector"
	"github.com/FrancoLiuDev/get-printer-count/ledm"
)

const namespace = "ledm"

// Metrics exposes a run's results as Prometheus gauges for the node
// exporter textfile collector.
type Metrics struct {
	registry    *prometheus.Registry
	impressions *prometheus.GaugeVec
	status      *prometheus.GaugeVec
}

// NewMetrics returns gauges registered on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		impressions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "impressions",
				Help:      "Lifetime impression counter reported by the device",
			},
			[]string{"host", "model", "family", "counter"},
		),
		status: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "collect_status",
				Help:      "Outcome of the last collection for a device, 1 for the reported status",
			},
			[]string{"host", "status"},
		),
	}
	m.registry.MustRegister(m.impressions, m.status)
	return m
}

// Observe replaces the gauges with the values in results.
func (m *Metrics) Observe(results []collector.Result) {
	m.impressions.Reset()
	m.status.Reset()
	for _, r := range results {
		m.status.WithLabelValues(r.Host, string(r.Status)).Set(1)
		for _, name := range ledm.CounterNames {
			v := r.Counters.Get(name)
			if v == nil {
				continue
			}
			m.impressions.WithLabelValues(r.Host, r.Model, r.Family, name).Set(float64(*v))
		}
	}
}

// WriteTextfile writes the current gauges to path in the text exposition
// format. The write is atomic.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
