//go:build unit

package listener_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hugolhafner/go-listener/backoff"
	"github.com/hugolhafner/go-listener/kafka"
	mockkafka "github.com/hugolhafner/go-listener/kafka/mock"
	"github.com/hugolhafner/go-listener/listener"
	"github.com/stretchr/testify/require"
)

var ordersP0 = kafka.TopicPartition{Topic: "orders", Partition: 0}

func waitCommitted(t *testing.T, client *mockkafka.Client, tp kafka.TopicPartition, offset int64) {
	t.Helper()
	require.Eventually(
		t, func() bool {
			actual, ok := client.CommittedOffset(tp)
			return ok && actual.Offset == offset
		}, 5*time.Second, time.Millisecond,
	)
}

func TestContainer_BatchFailureRewoundAndRedelivered(t *testing.T) {
	t.Parallel()

	client := mockkafka.NewClient()
	client.AddRecords("orders", 0, mockkafka.SimpleRecords("k0", "v0", "k1", "v1")...)

	var attempts atomic.Int32
	lst := listener.BatchListenerFunc(
		func(ctx context.Context, batch *kafka.Batch) error {
			if attempts.Add(1) == 1 {
				return errors.New("first delivery fails")
			}
			return nil
		},
	)

	c := listener.NewContainer(
		client,
		listener.WithTopics("orders"),
		listener.WithBatchListener(lst),
		listener.WithErrorHandler(
			listener.NewSeekToCurrentBatchHandler(
				listener.WithBackOff(backoff.NewFixed(time.Millisecond, 5)),
			),
		),
	)
	require.NoError(t, c.Start(context.Background()))

	waitCommitted(t, client, ordersP0, 2)
	c.Stop()

	require.NoError(t, c.Err())
	require.EqualValues(t, 2, attempts.Load())
	client.AssertSeek(t, ordersP0, 0)
	client.AssertCallOrder(t, mockkafka.OpSeek, mockkafka.OpPoll, mockkafka.OpCommitOffsets)
	client.AssertClosed(t)
}

func TestContainer_RecordFailureSkipsProcessed(t *testing.T) {
	t.Parallel()

	client := mockkafka.NewClient()
	client.AddRecords("orders", 0, mockkafka.SimpleRecords("k0", "v0", "k1", "v1", "k2", "v2")...)

	var offset1Attempts atomic.Int32
	lst := listener.ListenerFunc(
		func(ctx context.Context, r kafka.ConsumerRecord) error {
			if r.Offset == 1 && offset1Attempts.Add(1) == 1 {
				return errors.New("poison pill, once")
			}
			return nil
		},
	)

	c := listener.NewContainer(
		client,
		listener.WithTopics("orders"),
		listener.WithListener(lst),
		listener.WithErrorHandler(
			listener.NewSeekToCurrentHandler(
				listener.WithBackOff(backoff.NewFixed(time.Millisecond, 5)),
			),
		),
	)
	require.NoError(t, c.Start(context.Background()))

	waitCommitted(t, client, ordersP0, 3)
	c.Stop()

	require.NoError(t, c.Err())
	// the already-processed record at offset 0 is not redelivered
	client.AssertSeek(t, ordersP0, 1)
	client.AssertNoSeek(t, kafka.TopicPartition{Topic: "orders", Partition: 1})
	require.EqualValues(t, 2, offset1Attempts.Load())
}

func TestContainer_TransactionAbortPrecedesSeek(t *testing.T) {
	t.Parallel()

	client := mockkafka.NewClient()
	client.AddRecords("orders", 0, mockkafka.SimpleRecords("k0", "v0", "k1", "v1")...)

	var attempts atomic.Int32
	lst := listener.BatchListenerFunc(
		func(ctx context.Context, batch *kafka.Batch) error {
			if attempts.Add(1) == 1 {
				return errors.New("first delivery fails")
			}
			return nil
		},
	)

	c := listener.NewContainer(
		client,
		listener.WithTopics("orders"),
		listener.WithBatchListener(lst),
		listener.WithTxnProducer(client),
		listener.WithErrorHandler(
			listener.NewSeekToCurrentBatchHandler(
				listener.WithBackOff(backoff.NewFixed(time.Millisecond, 5)),
			),
		),
	)
	require.NoError(t, c.Start(context.Background()))

	waitCommitted(t, client, ordersP0, 2)
	c.Stop()

	require.NoError(t, c.Err())
	client.AssertCallOrder(
		t,
		mockkafka.OpBegin, mockkafka.OpAbortTxn, mockkafka.OpSeek,
		mockkafka.OpBegin, mockkafka.OpSendOffsets, mockkafka.OpCommitTxn,
	)
	client.AssertTxnCounts(t, 1, 1)

	// the offsets sent to the transaction are one past the last record
	sent := client.SentOffsets()
	require.Len(t, sent, 1)
	require.Equal(t, int64(2), sent[0][ordersP0].Offset)
}

func TestContainer_ExhaustedBackoffIsFatal(t *testing.T) {
	t.Parallel()

	client := mockkafka.NewClient()
	client.AddRecords("orders", 0, mockkafka.SimpleRecord("k0", "v0"))

	cause := errors.New("always fails")
	lst := listener.BatchListenerFunc(
		func(ctx context.Context, batch *kafka.Batch) error {
			return cause
		},
	)

	c := listener.NewContainer(
		client,
		listener.WithTopics("orders"),
		listener.WithBatchListener(lst),
		listener.WithErrorHandler(
			listener.NewSeekToCurrentBatchHandler(
				listener.WithBackOff(backoff.NewFixed(time.Millisecond, 1)),
			),
		),
	)
	require.NoError(t, c.Start(context.Background()))

	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("container did not stop after backoff exhaustion")
	}

	require.False(t, c.IsRunning())
	require.True(t, listener.IsFatal(c.Err()))
	require.ErrorIs(t, c.Err(), cause)
	client.AssertNothingCommitted(t)
	client.AssertClosed(t)
}

func TestContainer_StoppingHandlerEscalation(t *testing.T) {
	t.Parallel()

	client := mockkafka.NewClient()
	client.AddRecords("orders", 0, mockkafka.SimpleRecord("k0", "v0"))

	cause := errors.New("unrecoverable")
	lst := listener.ListenerFunc(
		func(ctx context.Context, r kafka.ConsumerRecord) error {
			return cause
		},
	)

	c := listener.NewContainer(
		client,
		listener.WithTopics("orders"),
		listener.WithListener(lst),
		listener.WithErrorHandler(
			listener.NewContainerStoppingHandler(listener.StopWithWait(time.Millisecond, 500)),
		),
	)
	require.NoError(t, c.Start(context.Background()))

	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("container did not stop")
	}

	require.False(t, c.IsRunning())
	require.True(t, listener.IsFatal(c.Err()))
	require.ErrorIs(t, c.Err(), cause)
	client.AssertClosed(t)
}

func TestContainer_StartValidation(t *testing.T) {
	t.Parallel()

	client := mockkafka.NewClient()
	record := listener.ListenerFunc(
		func(ctx context.Context, r kafka.ConsumerRecord) error { return nil },
	)
	batch := listener.BatchListenerFunc(
		func(ctx context.Context, b *kafka.Batch) error { return nil },
	)

	tests := []struct {
		name string
		opts []listener.ContainerOption
	}{
		{
			name: "no listener",
			opts: []listener.ContainerOption{listener.WithTopics("orders")},
		},
		{
			name: "both listener kinds",
			opts: []listener.ContainerOption{
				listener.WithTopics("orders"),
				listener.WithListener(record),
				listener.WithBatchListener(batch),
			},
		},
		{
			name: "transactional without batch listener",
			opts: []listener.ContainerOption{
				listener.WithTopics("orders"),
				listener.WithListener(record),
				listener.WithTxnProducer(client),
			},
		},
		{
			name: "no topics",
			opts: []listener.ContainerOption{listener.WithListener(record)},
		},
	}

	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				t.Parallel()
				c := listener.NewContainer(mockkafka.NewClient(), tt.opts...)
				require.Error(t, c.Start(context.Background()))
			},
		)
	}
}
