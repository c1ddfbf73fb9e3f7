package listener

import (
	"context"

	"github.com/hugolhafner/go-listener/kafka"
	"github.com/hugolhafner/go-listener/logger"
)

// Dispatcher routes a Failure to the configured handler variant. The
// handler is inspected for the capability interfaces it implements;
// container-aware variants win when a container handle is available.
type Dispatcher struct {
	handler   any
	container Container
	logger    logger.Logger
}

func NewDispatcher(handler any, container Container, l logger.Logger) *Dispatcher {
	if l == nil {
		l = logger.NewNoopLogger()
	}
	return &Dispatcher{
		handler:   handler,
		container: container,
		logger:    l,
	}
}

// Dispatch hands the failure to the matching handler capability. The
// cause chain of whatever comes back always reaches f.Cause, so callers
// can assert the originally-thrown error via errors.Is.
func (d *Dispatcher) Dispatch(ctx context.Context, f Failure, consumer kafka.Consumer, state *RetryState) error {
	if f.Record != nil {
		if h, ok := d.handler.(ContainerAwareRecordHandler); ok && d.container != nil {
			return h.HandleRecordWithContainer(ctx, f, consumer, d.container)
		}
		if h, ok := d.handler.(RecordHandler); ok {
			return h.HandleRecord(ctx, f, consumer, state)
		}

		d.logger.Error(
			"No record-capable error handler configured",
			"error", f.Cause,
			"topic", f.Record.Topic,
			"partition", f.Record.Partition,
			"offset", f.Record.Offset,
		)
		return NewFatalError("no record-capable error handler configured", f.Level, f.Cause)
	}

	if f.Batch != nil {
		if h, ok := d.handler.(ContainerAwareBatchHandler); ok && d.container != nil {
			return h.HandleBatchWithContainer(ctx, f, consumer, d.container)
		}
		if h, ok := d.handler.(BatchHandler); ok {
			return h.HandleBatch(ctx, f, consumer, state)
		}

		d.logger.Error("No batch-capable error handler configured", "error", f.Cause)
		return NewFatalError("no batch-capable error handler configured", f.Level, f.Cause)
	}

	return NewFatalError("empty failure envelope", f.Level, f.Cause)
}
