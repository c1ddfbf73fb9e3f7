package listener

import (
	"context"
	"time"

	"github.com/hugolhafner/go-listener/backoff"
	"github.com/hugolhafner/go-listener/kafka"
	"github.com/hugolhafner/go-listener/logger"
	"github.com/hugolhafner/go-listener/otel"
	"go.opentelemetry.io/otel/metric"
)

type seekConfig struct {
	policy backoff.Policy
	level  logger.LogLevel
	logger logger.Logger
	tel    *otel.Telemetry
}

func defaultSeekConfig() seekConfig {
	return seekConfig{
		level:  logger.ErrorLevel,
		logger: logger.NewNoopLogger(),
		tel:    otel.Noop(),
	}
}

type SeekOption func(*seekConfig)

// WithBackOff paces redelivery with the given policy. Without one the
// handler rewinds immediately and never signals exhaustion.
func WithBackOff(p backoff.Policy) SeekOption {
	return func(c *seekConfig) {
		c.policy = p
	}
}

// WithLogLevel sets the level fatal outcomes are reported at.
func WithLogLevel(level logger.LogLevel) SeekOption {
	return func(c *seekConfig) {
		c.level = level
	}
}

func WithLogger(l logger.Logger) SeekOption {
	return func(c *seekConfig) {
		c.logger = l
	}
}

func WithTelemetry(t *otel.Telemetry) SeekOption {
	return func(c *seekConfig) {
		c.tel = t
	}
}

var (
	_ RecordHandler = (*SeekToCurrentHandler)(nil)
	_ BatchHandler  = (*SeekToCurrentBatchHandler)(nil)
)

// SeekToCurrentHandler recovers a single-record delivery failure by
// rewinding every partition of the polled batch so the failed record and
// everything after it is redelivered, while already-processed records are
// not.
type SeekToCurrentHandler struct {
	config seekConfig
}

func NewSeekToCurrentHandler(opts ...SeekOption) *SeekToCurrentHandler {
	config := defaultSeekConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return &SeekToCurrentHandler{config: config}
}

func (h *SeekToCurrentHandler) HandleRecord(
	ctx context.Context, f Failure, consumer kafka.Consumer, state *RetryState,
) error {
	h.config.logger.Warn(
		"Record delivery failed, rewinding to redeliver",
		"error", f.Cause,
		"topic", f.Record.Topic,
		"partition", f.Record.Partition,
		"offset", f.Record.Offset,
	)

	return seekAndPace(ctx, f, consumer, state, h.config)
}

// SeekToCurrentBatchHandler recovers a batch delivery failure by
// rewinding every partition of the batch to its first delivered offset so
// the whole batch is redelivered on the next poll.
type SeekToCurrentBatchHandler struct {
	config seekConfig
}

func NewSeekToCurrentBatchHandler(opts ...SeekOption) *SeekToCurrentBatchHandler {
	config := defaultSeekConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return &SeekToCurrentBatchHandler{config: config}
}

func (h *SeekToCurrentBatchHandler) HandleBatch(
	ctx context.Context, f Failure, consumer kafka.Consumer, state *RetryState,
) error {
	h.config.logger.Warn("Batch delivery failed, rewinding to redeliver", "error", f.Cause, "records", f.Batch.Len())

	return seekAndPace(ctx, f, consumer, state, h.config)
}

// seekAndPace rewinds first so no position is lost even when the episode
// ends fatally, then sleeps the episode's next interval. Exhausted
// episodes still sleep the last interval before surfacing the fatal
// error, keeping a supervisor that redelivers anyway from spinning hot.
func seekAndPace(
	ctx context.Context, f Failure, consumer kafka.Consumer, state *RetryState, config seekConfig,
) error {
	seeks := RewindOffsets(f.Batch, f.Processed)
	for _, so := range seeks {
		consumer.Seek(so.TP, so.Offset)
		config.logger.Debug("Seek issued", "topic", so.TP.Topic, "partition", so.TP.Partition, "offset", so.Offset)
	}
	config.tel.SeeksIssued.Add(ctx, int64(len(seeks)))

	delay, exhausted := state.NextDelay(config.policy)
	if delay > 0 {
		config.tel.BackoffDelay.Record(
			ctx, delay.Seconds(), metric.WithAttributes(otel.AttrFailureKind.String(failureKind(f))),
		)
		if err := sleep(ctx, delay); err != nil {
			// the wait was cancelled; abort it without swallowing the
			// cancellation, the episode is over either way
			return NewFatalError("backoff interrupted", config.level, f.Cause)
		}
	}

	if exhausted {
		return NewFatalError("backoff exhausted, not redelivering", config.level, f.Cause)
	}

	return nil
}

func failureKind(f Failure) string {
	if f.Record != nil {
		return otel.FailureKindRecord
	}
	return otel.FailureKindBatch
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
