package reporting

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/launchdarkly/suite-runner/framework/testrun"
)

const MetricsNamespace = "suite_runner"

// Metrics turns events into Prometheus metrics. Each instance has its own registry, so a
// process can record several runs without the metrics colliding.
//
// A test can be reported more than once: a failing afterEach or after hook turns a test that
// already passed into ERR. Tests are therefore counted by their latest status, and each test's
// duration is observed only for its first completion.
type Metrics struct {
	registry     *prometheus.Registry
	tests        *prometheus.GaugeVec
	testDuration prometheus.Histogram
	progress     prometheus.Gauge
	suiteOK      prometheus.Gauge
	lastStatus   map[string]testrun.Status
	lock         sync.Mutex
}

// NewMetrics creates the metrics for one suite; every metric is labeled with the suite id.
func NewMetrics(suiteID string) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	labels := prometheus.Labels{"suite_id": suiteID}
	return &Metrics{
		registry: registry,
		tests: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   MetricsNamespace,
			Name:        "tests",
			Help:        "Number of completed tests by latest status",
			ConstLabels: labels,
		}, []string{"status"}),
		testDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   MetricsNamespace,
			Name:        "test_duration_seconds",
			Help:        "Duration of completed tests, including their beforeEach hooks",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		progress: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   MetricsNamespace,
			Name:        "progress_percent",
			Help:        "Percentage of tests that have completed",
			ConstLabels: labels,
		}),
		suiteOK: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   MetricsNamespace,
			Name:        "suite_ok",
			Help:        "1 if the last finished run passed, 0 if it failed",
			ConstLabels: labels,
		}),
		lastStatus: make(map[string]testrun.Status),
	}
}

// Attach subscribes to both kinds of events.
func (m *Metrics) Attach(src EventSource) {
	src.OnChange(testrun.EventTestStatus, m.Listen)
	src.OnChange(testrun.EventTestSuiteStatus, m.Listen)
}

func (m *Metrics) Listen(e testrun.Event) {
	m.lock.Lock()
	defer m.lock.Unlock()
	switch ev := e.(type) {
	case testrun.TestStatusEvent:
		if !ev.Status.IsTerminal() {
			return
		}
		previous, seen := m.lastStatus[ev.TestID]
		if seen && previous == ev.Status {
			return
		}
		m.lastStatus[ev.TestID] = ev.Status
		if seen {
			m.tests.WithLabelValues(string(previous)).Dec()
		} else {
			m.testDuration.Observe(float64(ev.Time) / 1000)
		}
		m.tests.WithLabelValues(string(ev.Status)).Inc()
	case testrun.SuiteStatusEvent:
		m.progress.Set(ev.Progress)
		switch ev.Status {
		case testrun.StatusOK:
			m.suiteOK.Set(1)
		case testrun.StatusErr:
			m.suiteOK.Set(0)
		}
	}
}

// Registry returns the registry that holds these metrics, for serving or gathering them.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// WriteToTextfile writes the metrics in the text format read by the node exporter's textfile
// collector.
func (m *Metrics) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
