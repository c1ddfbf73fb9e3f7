package listener

import (
	"context"

	"github.com/hugolhafner/go-listener/kafka"
	"github.com/hugolhafner/go-listener/logger"
)

// Failure is the envelope handed to error handlers. It is constructed
// fresh per failure and never persisted.
type Failure struct {
	// Cause is the error thrown by the listener callback.
	Cause error

	// Record is the record whose delivery failed. Nil for batch
	// delivery failures.
	Record *kafka.ConsumerRecord

	// Batch is the batch the failure arose from: the whole delivered
	// batch in both delivery modes.
	Batch *kafka.Batch

	// Processed reports whether a record in Batch was confirmed
	// processed before the failure. Nil means none were.
	Processed func(kafka.ConsumerRecord) bool

	// Level is the severity the container wants fatal outcomes
	// reported at.
	Level logger.LogLevel
}

// Error handlers declare their capabilities by implementing one or more
// of the four interfaces below. Dispatch selects the variant matching how
// the failure arose (record vs batch delivery) and whether the handler
// asked for the container handle.
//
// A handler returning nil means the failure was recovered (typically by
// rewinding positions); the poll loop discards the rest of the current
// batch and re-polls. A non-nil return surfaces to the poll loop, fatal
// when tagged via FatalError.

type RecordHandler interface {
	HandleRecord(ctx context.Context, f Failure, consumer kafka.Consumer, state *RetryState) error
}

type BatchHandler interface {
	HandleBatch(ctx context.Context, f Failure, consumer kafka.Consumer, state *RetryState) error
}

type ContainerAwareRecordHandler interface {
	HandleRecordWithContainer(ctx context.Context, f Failure, consumer kafka.Consumer, container Container) error
}

type ContainerAwareBatchHandler interface {
	HandleBatchWithContainer(ctx context.Context, f Failure, consumer kafka.Consumer, container Container) error
}
