package resource

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/stufflebeam/orbeon-forms/pkg/resource"

// Lookup results recorded by Metrics.
const (
	ResultHit      = "hit"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

// Metrics holds the Prometheus collectors for resource lookups.
type Metrics struct {
	Lookups  *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewMetrics registers the collectors with reg. A nil registerer creates
// unregistered collectors. When reg already holds collectors of the same
// name and shape, those are reused so several engines can share a registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formproc_resource_lookups_total",
			Help: "Total number of resource lookups, by manager and result.",
		}, []string{"manager", "result"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "formproc_resource_lookup_seconds",
			Help:    "Resource lookup latency, by manager.",
			Buckets: prometheus.DefBuckets,
		}, []string{"manager"}),
	}
	if reg != nil {
		m.Lookups = register(reg, m.Lookups)
		m.Duration = register(reg, m.Duration)
	}
	return m
}

// register adds c to reg, returning the collector already registered under
// the same descriptor if there is one. Conflicting registrations panic like
// promauto does.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var exists prometheus.AlreadyRegisteredError
	if errors.As(err, &exists) {
		if prior, ok := exists.ExistingCollector.(C); ok {
			return prior
		}
	}
	panic(err)
}

// Instrument wraps next so every lookup is counted, timed and traced under
// the given manager label.
func Instrument(next Manager, name string, metrics *Metrics) Manager {
	return &instrumented{
		next:    next,
		name:    name,
		metrics: metrics,
		tracer:  otel.Tracer(tracerName),
	}
}

type instrumented struct {
	next    Manager
	name    string
	metrics *Metrics
	tracer  trace.Tracer
}

func (m *instrumented) Content(ctx context.Context, path string) ([]byte, error) {
	ctx, span := m.tracer.Start(ctx, "resource.Content", trace.WithAttributes(
		attribute.String("resource.manager", m.name),
		attribute.String("resource.path", path),
	))
	defer span.End()

	start := time.Now()
	data, err := m.next.Content(ctx, path)
	elapsed := time.Since(start)

	result := ResultHit
	switch {
	case err == nil:
		span.SetAttributes(attribute.Int("resource.size", len(data)))
	case IsNotFound(err):
		result = ResultNotFound
	default:
		result = ResultError
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	if m.metrics != nil {
		m.metrics.Lookups.WithLabelValues(m.name, result).Inc()
		m.metrics.Duration.WithLabelValues(m.name).Observe(elapsed.Seconds())
	}
	return data, err
}
