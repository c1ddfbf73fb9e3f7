package otel

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	traceNoop "go.opentelemetry.io/otel/trace/noop"
)

const scopeName = "github.com/hugolhafner/go-listener"

// Telemetry holds all OpenTelemetry instruments for the listener library.
// When no providers are configured, all instruments are noops with zero overhead.
type Telemetry struct {
	Tracer trace.Tracer

	// Delivery metrics
	BatchesDelivered metric.Int64Counter
	RecordsDelivered metric.Int64Counter

	// Recovery metrics
	FailuresHandled metric.Int64Counter
	SeeksIssued     metric.Int64Counter
	BackoffDelay    metric.Float64Histogram

	// Transaction metrics
	TransactionsCommitted metric.Int64Counter
	TransactionsAborted   metric.Int64Counter

	// Escalation metrics
	ContainerStops metric.Int64Counter
}

// NewTelemetry creates a Telemetry instance from the given providers.
// All providers are optional and defaulted to noops if nil.
func NewTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) (*Telemetry, error) {
	if tp == nil {
		tp = traceNoop.NewTracerProvider()
	}
	if mp == nil {
		mp = noop.NewMeterProvider()
	}

	tracer := tp.Tracer(scopeName)
	meter := mp.Meter(scopeName)

	batchesDelivered, err := meter.Int64Counter(
		"listener.batches.delivered",
		metric.WithDescription("Batches handed to the listener callback"),
	)
	if err != nil {
		return nil, err
	}

	recordsDelivered, err := meter.Int64Counter(
		"listener.records.delivered",
		metric.WithDescription("Records handed to the listener callback"),
	)
	if err != nil {
		return nil, err
	}

	failuresHandled, err := meter.Int64Counter(
		"listener.failures.handled",
		metric.WithDescription("Listener failures routed to an error handler"),
	)
	if err != nil {
		return nil, err
	}

	seeksIssued, err := meter.Int64Counter(
		"listener.seeks.issued",
		metric.WithDescription("Partition reposition calls issued during recovery"),
	)
	if err != nil {
		return nil, err
	}

	backoffDelay, err := meter.Float64Histogram(
		"listener.backoff.delay",
		metric.WithDescription("Time slept between redelivery attempts"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	transactionsCommitted, err := meter.Int64Counter(
		"listener.transactions.committed",
		metric.WithDescription("Transactional episodes that ended in a commit"),
	)
	if err != nil {
		return nil, err
	}

	transactionsAborted, err := meter.Int64Counter(
		"listener.transactions.aborted",
		metric.WithDescription("Transactional episodes that ended in an abort"),
	)
	if err != nil {
		return nil, err
	}

	containerStops, err := meter.Int64Counter(
		"listener.container.stops",
		metric.WithDescription("Container stops requested by the stopping error handler"),
	)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Tracer:                tracer,
		BatchesDelivered:      batchesDelivered,
		RecordsDelivered:      recordsDelivered,
		FailuresHandled:       failuresHandled,
		SeeksIssued:           seeksIssued,
		BackoffDelay:          backoffDelay,
		TransactionsCommitted: transactionsCommitted,
		TransactionsAborted:   transactionsAborted,
		ContainerStops:        containerStops,
	}, nil
}

// Noop returns a Telemetry whose instruments all discard their input.
func Noop() *Telemetry {
	t, _ := NewTelemetry(nil, nil)
	return t
}
