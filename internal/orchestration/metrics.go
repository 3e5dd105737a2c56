package orchestration

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spboyer/wpbench/internal/models"
)

const metricsPrefix = "wpbench_"

// Metrics records a run in a private Prometheus registry, for node-exporter
// style textfile collection.
type Metrics struct {
	registry *prometheus.Registry

	testSeconds *prometheus.GaugeVec
	testErrors  *prometheus.CounterVec
	testsRun    *prometheus.CounterVec
	totalTime   prometheus.Gauge
	score       prometheus.Gauge
	scoreValid  prometheus.Gauge
}

// NewMetrics registers the run metrics in a fresh registry.
func NewMetrics() *Metrics {
	testLabels := []string{"test"}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		testSeconds: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricsPrefix + "test_duration_seconds",
				Help: "Wall time of the most recent run of each test",
			},
			testLabels,
		),
		testErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricsPrefix + "test_errors_total",
				Help: "Number of test runs that finished with an error",
			},
			testLabels,
		),
		testsRun: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricsPrefix + "test_runs_total",
				Help: "Number of test runs",
			},
			testLabels,
		),
		totalTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricsPrefix + "run_duration_seconds",
			Help: "Wall time of the most recent benchmark run",
		}),
		score: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricsPrefix + "score",
			Help: "Benchmark score of the most recent run, 0-100",
		}),
		scoreValid: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricsPrefix + "score_valid",
			Help: "1 when the most recent run produced a score",
		}),
	}

	m.registry.MustRegister(m.testSeconds, m.testErrors, m.testsRun, m.totalTime, m.score, m.scoreValid)
	return m
}

// Registry exposes the underlying registry, e.g. for an HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeTest(id string, res models.TestResult) {
	m.testsRun.WithLabelValues(id).Inc()
	m.testSeconds.WithLabelValues(id).Set(res.Time)
	if res.Failed() {
		m.testErrors.WithLabelValues(id).Inc()
	}
}

func (m *Metrics) observeRun(b *models.RunBundle) {
	m.totalTime.Set(b.TotalTime)
	if b.Score == nil {
		m.score.Set(0)
		m.scoreValid.Set(0)
		return
	}
	m.score.Set(float64(*b.Score))
	m.scoreValid.Set(1)
}

// WriteTextfile writes the current metrics in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
