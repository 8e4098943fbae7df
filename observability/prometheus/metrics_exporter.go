package prometheus

import (
	"errors"
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/webriots/fiber"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	WaitBuckets []float64
}

// MetricsExporter adapts fiber.Metrics to Prometheus collectors.
type MetricsExporter struct {
	scopesCreatedTotal  *prom.CounterVec
	scopeErrorsTotal    *prom.CounterVec
	doubleResumeTotal   *prom.CounterVec
	liveFibers          *prom.GaugeVec
	waitDurationSeconds *prom.HistogramVec
}

var _ fiber.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for
// fiber.Metrics. Collectors already registered under the same names are
// reused.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "fiber"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.WaitBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	createdVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "scopes_created_total",
		Help:      "Total number of scopes started by Run.",
	}, []string{"loop"})
	errorsVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "scope_errors_total",
		Help:      "Total number of errors routed through scopes, by outcome.",
	}, []string{"loop", "kind"})
	doubleVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "double_resume_total",
		Help:      "Total number of ignored extra resumes.",
	}, []string{"loop"})
	liveVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "live_fibers",
		Help:      "Fibers started and not yet terminated.",
	}, []string{"loop"})
	waitVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "wait_duration_seconds",
		Help:      "Time fibers spent parked in a wait.",
		Buckets:   buckets,
	}, []string{"loop"})

	var err error
	if createdVec, err = registerCollector(reg, createdVec); err != nil {
		return nil, err
	}
	if errorsVec, err = registerCollector(reg, errorsVec); err != nil {
		return nil, err
	}
	if doubleVec, err = registerCollector(reg, doubleVec); err != nil {
		return nil, err
	}
	if liveVec, err = registerCollector(reg, liveVec); err != nil {
		return nil, err
	}
	if waitVec, err = registerCollector(reg, waitVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		scopesCreatedTotal:  createdVec,
		scopeErrorsTotal:    errorsVec,
		doubleResumeTotal:   doubleVec,
		liveFibers:          liveVec,
		waitDurationSeconds: waitVec,
	}, nil
}

// RecordScopeCreated counts a new scope.
func (m *MetricsExporter) RecordScopeCreated(loop string) {
	if m == nil {
		return
	}
	m.scopesCreatedTotal.WithLabelValues(normalizeLabel(loop, "unknown")).Inc()
}

// RecordScopeError counts an error routed through a scope.
func (m *MetricsExporter) RecordScopeError(loop string, kind fiber.ErrorKind) {
	if m == nil {
		return
	}
	m.scopeErrorsTotal.WithLabelValues(normalizeLabel(loop, "unknown"), normalizeLabel(string(kind), "unknown")).Inc()
}

// RecordWait observes how long a fiber stayed parked.
func (m *MetricsExporter) RecordWait(loop string, d time.Duration) {
	if m == nil {
		return
	}
	m.waitDurationSeconds.WithLabelValues(normalizeLabel(loop, "unknown")).Observe(d.Seconds())
}

// RecordDoubleResume counts an ignored extra resume.
func (m *MetricsExporter) RecordDoubleResume(loop string) {
	if m == nil {
		return
	}
	m.doubleResumeTotal.WithLabelValues(normalizeLabel(loop, "unknown")).Inc()
}

// RecordLiveFibers sets the live fiber gauge.
func (m *MetricsExporter) RecordLiveFibers(loop string, n int) {
	if m == nil {
		return
	}
	m.liveFibers.WithLabelValues(normalizeLabel(loop, "unknown")).Set(float64(n))
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
