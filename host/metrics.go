package host

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reglet-dev/plughost/domain/errors"
)

// Metrics are the runtime's Prometheus collectors.
type Metrics struct {
	registry  *prometheus.Registry
	calls     *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	panics    prometheus.Counter
	instances prometheus.Gauge
	modules   prometheus.Gauge
	pending   prometheus.Gauge
	hostCalls *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// selects a fresh private registry.
func NewMetrics(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		registry: reg,
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plughost",
			Name:      "plugin_calls_total",
			Help:      "Calls into plugin instances by operation and result code.",
		}, []string{"op", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "plughost",
			Name:      "plugin_call_duration_seconds",
			Help:      "Duration of calls into plugin instances.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		panics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "plughost",
			Name:      "plugin_panics_total",
			Help:      "Panics recovered from plugin code.",
		}),
		instances: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "plughost",
			Name:      "instances_live",
			Help:      "Live plugin instances.",
		}),
		modules: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "plughost",
			Name:      "modules_loaded",
			Help:      "Loaded plugin modules.",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "plughost",
			Name:      "async_pending",
			Help:      "Accepted asynchronous requests not yet completed.",
		}),
		hostCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plughost",
			Name:      "host_function_calls_total",
			Help:      "Host functions called by wasm guests, by function and result code.",
		}, []string{"function", "code"}),
	}
	for _, c := range []prometheus.Collector{m.calls, m.duration, m.panics, m.instances, m.modules, m.pending, m.hostCalls} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(errors.CodeInitializationFailed, "failed to register metrics", err)
		}
	}
	return m, nil
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observe(op string, err error, elapsed time.Duration) {
	code := errors.CodeOf(err)
	m.calls.WithLabelValues(op, strconv.Itoa(int(code))).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
	if code == errors.CodeThreadPanic {
		m.panics.Inc()
	}
}

func (m *Metrics) observeHostCall(function string, _ time.Duration, err error) {
	m.hostCalls.WithLabelValues(function, strconv.Itoa(int(errors.CodeOf(err)))).Inc()
}
