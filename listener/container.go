package listener

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/hugolhafner/go-listener/kafka"
	"github.com/hugolhafner/go-listener/otel"
	"go.opentelemetry.io/otel/metric"
)

// Listener is the application callback for single-record delivery.
type Listener interface {
	OnRecord(ctx context.Context, rec kafka.ConsumerRecord) error
}

type ListenerFunc func(ctx context.Context, rec kafka.ConsumerRecord) error

func (f ListenerFunc) OnRecord(ctx context.Context, rec kafka.ConsumerRecord) error {
	return f(ctx, rec)
}

// BatchListener is the application callback for whole-batch delivery.
type BatchListener interface {
	OnBatch(ctx context.Context, batch *kafka.Batch) error
}

type BatchListenerFunc func(ctx context.Context, batch *kafka.Batch) error

func (f BatchListenerFunc) OnBatch(ctx context.Context, batch *kafka.Batch) error {
	return f(ctx, batch)
}

// Container is the lifecycle surface exposed to error handlers.
type Container interface {
	Stop()
	IsRunning() bool
}

var (
	_ Container               = (*ListenerContainer)(nil)
	_ kafka.RebalanceCallback = (*ListenerContainer)(nil)
)

// ListenerContainer owns one consumer and runs the poll-deliver-handle
// loop on a single dedicated goroutine. The consumer and producer handles
// are only ever touched from that goroutine; Stop and IsRunning are the
// only concurrency-safe entry points.
type ListenerContainer struct {
	consumer   kafka.Consumer
	config     containerConfig
	dispatcher *Dispatcher

	running   atomic.Bool
	started   atomic.Bool
	clearReq  atomic.Bool
	stopOnce  sync.Once
	cancelRun context.CancelFunc
	stopCh    chan struct{}
	doneCh    chan struct{}

	errMu sync.Mutex
	err   error
}

func NewContainer(consumer kafka.Consumer, opts ...ContainerOption) *ListenerContainer {
	config := defaultContainerConfig()
	for _, opt := range opts {
		opt(&config)
	}

	c := &ListenerContainer{
		consumer: consumer,
		config:   config,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	c.dispatcher = NewDispatcher(config.handler, c, config.logger)

	return c
}

// Start subscribes the consumer and launches the poll loop goroutine.
func (c *ListenerContainer) Start(ctx context.Context) error {
	if c.config.listener == nil && c.config.batchListener == nil {
		return errors.New("container requires a listener or a batch listener")
	}
	if c.config.listener != nil && c.config.batchListener != nil {
		return errors.New("container accepts a listener or a batch listener, not both")
	}
	if c.config.producer != nil && c.config.batchListener == nil {
		return errors.New("transactional containers require a batch listener")
	}
	if len(c.config.topics) == 0 {
		return errors.New("container requires at least one topic")
	}

	if !c.running.CompareAndSwap(false, true) {
		return errors.New("container already running")
	}

	if err := c.consumer.Subscribe(c.config.topics, c); err != nil {
		c.running.Store(false)
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancelRun = cancel
	c.started.Store(true)

	go c.run(runCtx)

	return nil
}

// Stop requests shutdown and waits for the poll loop to unwind. The
// running flag flips before the wait so a handler polling IsRunning from
// the loop goroutine observes the stop without deadlocking.
func (c *ListenerContainer) Stop() {
	c.stopOnce.Do(
		func() {
			c.running.Store(false)
			close(c.stopCh)
			if c.cancelRun != nil {
				c.cancelRun()
			}
		},
	)

	if c.started.Load() {
		<-c.doneCh
	}
}

func (c *ListenerContainer) IsRunning() bool {
	return c.running.Load()
}

// Err returns the fatal error that terminated the loop, if any.
func (c *ListenerContainer) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Done is closed once the poll loop has fully unwound.
func (c *ListenerContainer) Done() <-chan struct{} {
	return c.doneCh
}

func (c *ListenerContainer) OnAssigned(partitions []kafka.TopicPartition) {
	c.config.logger.Info("Partitions assigned", "count", len(partitions))
}

// OnRevoked ends the current failure episode: the revoked partitions may
// be redelivered elsewhere, so the local attempt count no longer applies.
// The retry state is owned by the poll goroutine, so only a flag is set
// here.
func (c *ListenerContainer) OnRevoked(partitions []kafka.TopicPartition) {
	c.config.logger.Info("Partitions revoked, resetting retry episode", "count", len(partitions))
	c.clearReq.Store(true)
}

func (c *ListenerContainer) setErr(err error) {
	c.errMu.Lock()
	c.err = err
	c.errMu.Unlock()
}

func (c *ListenerContainer) run(ctx context.Context) {
	defer close(c.doneCh)
	defer c.running.Store(false)
	defer c.consumer.Close()

	l := c.config.logger
	state := NewRetryState()

	l.Info("Listener container started", "topics", c.config.topics)

	for {
		select {
		case <-ctx.Done():
			l.Info("Context cancelled, stopping container")
			return
		case <-c.stopCh:
			l.Info("Stop requested, stopping container")
			return
		default:
		}

		if c.clearReq.CompareAndSwap(true, false) {
			state.Clear()
		}

		batch, err := c.consumer.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.Warn("Poll failed", "error", err)
			if serr := sleep(ctx, c.config.pollBackoff); serr != nil {
				return
			}
			continue
		}

		if batch.Empty() {
			continue
		}

		var herr error
		if c.config.batchListener != nil {
			herr = c.deliverBatch(ctx, batch, state)
		} else {
			herr = c.deliverRecords(ctx, batch, state)
		}

		if herr != nil {
			c.setErr(herr)
			if fe, ok := AsFatalError(herr); ok {
				l.Log(fe.Level, "Fatal listener error, stopping container", "error", herr)
			} else {
				l.Error("Listener error, stopping container", "error", herr)
			}
			return
		}
	}
}

// deliverBatch hands the whole batch to the batch listener. On failure
// the handler decides: nil means the positions were rewound and the
// remainder of this (now stale) batch must be discarded, so control
// simply returns to the poll loop.
func (c *ListenerContainer) deliverBatch(ctx context.Context, batch *kafka.Batch, state *RetryState) error {
	if c.config.producer != nil {
		return c.deliverBatchTxn(ctx, batch, state)
	}

	c.config.tel.BatchesDelivered.Add(ctx, 1)

	err := c.config.batchListener.OnBatch(ctx, batch)
	if err == nil {
		state.Clear()
		if cerr := c.consumer.CommitOffsets(ctx, batch.NextOffsets()); cerr != nil {
			c.config.logger.Warn("Offset commit failed, records will be redelivered", "error", cerr)
		}
		return nil
	}

	c.config.tel.FailuresHandled.Add(
		ctx, 1, metric.WithAttributes(otel.AttrFailureKind.String(otel.FailureKindBatch)),
	)

	return c.dispatcher.Dispatch(
		ctx, Failure{
			Cause: err,
			Batch: batch,
			Level: c.config.level,
		}, c.consumer, state,
	)
}

// deliverBatchTxn wraps delivery in one transactional attempt episode.
// Exactly one of commit or abort is issued per attempt: abort always
// precedes any rewind the handler performs, and a failed commit attempt
// is the episode's single outcome.
func (c *ListenerContainer) deliverBatchTxn(ctx context.Context, batch *kafka.Batch, state *RetryState) error {
	if err := c.config.producer.Begin(); err != nil {
		return NewFatalError("begin transaction", c.config.level, err)
	}

	c.config.tel.BatchesDelivered.Add(ctx, 1)

	err := c.config.batchListener.OnBatch(ctx, batch)
	if err == nil {
		if serr := c.config.producer.SendOffsets(ctx, batch.NextOffsets(), c.consumer.GroupMetadata()); serr != nil {
			c.abort(ctx)
			return c.dispatchBatchFailure(ctx, serr, batch, state)
		}
		if cerr := c.config.producer.Commit(ctx); cerr != nil {
			return NewFatalError("commit transaction", c.config.level, cerr)
		}
		c.config.tel.TransactionsCommitted.Add(ctx, 1)
		state.Clear()
		return nil
	}

	// abort before the handler rewinds: a commit racing a rewound read
	// position would observe inconsistent state
	c.abort(ctx)

	return c.dispatchBatchFailure(ctx, err, batch, state)
}

func (c *ListenerContainer) abort(ctx context.Context) {
	if aerr := c.config.producer.Abort(ctx); aerr != nil {
		c.config.logger.Error("Abort transaction failed", "error", aerr)
		return
	}
	c.config.tel.TransactionsAborted.Add(ctx, 1)
}

func (c *ListenerContainer) dispatchBatchFailure(
	ctx context.Context, cause error, batch *kafka.Batch, state *RetryState,
) error {
	c.config.tel.FailuresHandled.Add(
		ctx, 1, metric.WithAttributes(otel.AttrFailureKind.String(otel.FailureKindBatch)),
	)

	return c.dispatcher.Dispatch(
		ctx, Failure{
			Cause: cause,
			Batch: batch,
			Level: c.config.level,
		}, c.consumer, state,
	)
}

// deliverRecords hands records to the listener one at a time. On failure
// the records confirmed processed so far are committed and the failure is
// dispatched with a processed predicate, so the rewind protocol can seek
// each partition to its earliest unprocessed record.
func (c *ListenerContainer) deliverRecords(ctx context.Context, batch *kafka.Batch, state *RetryState) error {
	done := make(map[kafka.TopicPartition]int64)

	for _, rec := range batch.All() {
		select {
		case <-c.stopCh:
			c.commitDone(ctx, done)
			return nil
		default:
		}

		c.config.tel.RecordsDelivered.Add(ctx, 1)

		err := c.config.listener.OnRecord(ctx, rec)
		if err == nil {
			done[rec.TopicPartition()] = rec.Offset + 1
			continue
		}

		c.config.tel.FailuresHandled.Add(
			ctx, 1, metric.WithAttributes(otel.AttrFailureKind.String(otel.FailureKindRecord)),
		)

		c.commitDone(ctx, done)

		recCopy := rec.Copy()
		return c.dispatcher.Dispatch(
			ctx, Failure{
				Cause:  err,
				Record: &recCopy,
				Batch:  batch,
				Processed: func(r kafka.ConsumerRecord) bool {
					end, ok := done[r.TopicPartition()]
					return ok && r.Offset < end
				},
				Level: c.config.level,
			}, c.consumer, state,
		)
	}

	state.Clear()
	c.commitDone(ctx, done)
	return nil
}

func (c *ListenerContainer) commitDone(ctx context.Context, done map[kafka.TopicPartition]int64) {
	if len(done) == 0 {
		return
	}

	offsets := make(map[kafka.TopicPartition]kafka.Offset, len(done))
	for tp, next := range done {
		offsets[tp] = kafka.Offset{Offset: next}
	}

	if err := c.consumer.CommitOffsets(ctx, offsets); err != nil {
		c.config.logger.Warn("Offset commit failed, records will be redelivered", "error", err)
	}
}
