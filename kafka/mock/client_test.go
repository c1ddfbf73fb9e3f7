//go:build unit

package mockkafka_test

import (
	"context"
	"testing"

	"github.com/hugolhafner/go-listener/kafka"
	mockkafka "github.com/hugolhafner/go-listener/kafka/mock"
	"github.com/stretchr/testify/require"
)

type noopRebalance struct{}

func (noopRebalance) OnAssigned(partitions []kafka.TopicPartition) {}
func (noopRebalance) OnRevoked(partitions []kafka.TopicPartition)  {}

func TestClient_PollDrainsQueues(t *testing.T) {
	t.Parallel()

	client := mockkafka.NewClient()
	client.AddRecords("orders", 0, mockkafka.SimpleRecords("k1", "v1", "k2", "v2")...)
	require.NoError(t, client.Subscribe([]string{"orders"}, noopRebalance{}))

	batch, err := client.Poll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, batch.Len())

	batch, err = client.Poll(context.Background())
	require.NoError(t, err)
	require.True(t, batch.Empty())
}

func TestClient_SeekRedelivers(t *testing.T) {
	t.Parallel()

	client := mockkafka.NewClient()
	client.AddRecords("orders", 0, mockkafka.SimpleRecords("k0", "v0", "k1", "v1", "k2", "v2")...)
	require.NoError(t, client.Subscribe([]string{"orders"}, noopRebalance{}))

	batch, err := client.Poll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, batch.Len())

	tp := kafka.TopicPartition{Topic: "orders", Partition: 0}
	client.Seek(tp, 1)

	batch, err = client.Poll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, batch.Len())
	require.Equal(t, int64(1), batch.All()[0].Offset)
	require.Equal(t, int64(2), batch.All()[1].Offset)

	client.AssertSeek(t, tp, 1)
}

func TestClient_AutoAssignedOffsets(t *testing.T) {
	t.Parallel()

	client := mockkafka.NewClient()
	client.AddRecords("orders", 0, mockkafka.SimpleRecords("k0", "v0", "k1", "v1")...)
	client.AddRecords("orders", 0, mockkafka.SimpleRecord("k2", "v2"))
	require.NoError(t, client.Subscribe([]string{"orders"}, noopRebalance{}))

	batch, err := client.Poll(context.Background())
	require.NoError(t, err)

	offsets := []int64{}
	for _, rec := range batch.All() {
		offsets = append(offsets, rec.Offset)
	}
	require.Equal(t, []int64{0, 1, 2}, offsets)
}

func TestClient_TransactionSequenceRecorded(t *testing.T) {
	t.Parallel()

	client := mockkafka.NewClient()
	ctx := context.Background()

	require.NoError(t, client.Begin())
	require.True(t, client.InTransaction())

	tp := kafka.TopicPartition{Topic: "orders", Partition: 0}
	offsets := map[kafka.TopicPartition]kafka.Offset{tp: {Offset: 5}}
	require.NoError(t, client.SendOffsets(ctx, offsets, client.GroupMetadata()))
	require.NoError(t, client.Commit(ctx))
	require.False(t, client.InTransaction())

	client.AssertCallOrder(t, mockkafka.OpBegin, mockkafka.OpSendOffsets, mockkafka.OpCommitTxn)
	client.AssertCommittedOffset(t, tp, 5)

	sent := client.SentOffsets()
	require.Len(t, sent, 1)
	require.Equal(t, kafka.Offset{Offset: 5}, sent[0][tp])
}

func TestClient_AbortDiscardsSentOffsets(t *testing.T) {
	t.Parallel()

	client := mockkafka.NewClient()
	ctx := context.Background()

	require.NoError(t, client.Begin())
	tp := kafka.TopicPartition{Topic: "orders", Partition: 0}
	offsets := map[kafka.TopicPartition]kafka.Offset{tp: {Offset: 5}}
	require.NoError(t, client.SendOffsets(ctx, offsets, client.GroupMetadata()))
	require.NoError(t, client.Abort(ctx))

	client.AssertNothingCommitted(t)
	client.AssertTxnCounts(t, 0, 1)
}

func TestClient_CommitOffsets(t *testing.T) {
	t.Parallel()

	client := mockkafka.NewClient()
	tp := kafka.TopicPartition{Topic: "orders", Partition: 2}

	err := client.CommitOffsets(context.Background(), map[kafka.TopicPartition]kafka.Offset{tp: {Offset: 7}})
	require.NoError(t, err)

	client.AssertCommittedOffset(t, tp, 7)
}

func TestClient_RevokeRemovesAssignment(t *testing.T) {
	t.Parallel()

	client := mockkafka.NewClient()
	client.AddRecords("orders", 0, mockkafka.SimpleRecord("k", "v"))
	client.AddRecords("orders", 1, mockkafka.SimpleRecord("k", "v"))
	require.NoError(t, client.Subscribe([]string{"orders"}, noopRebalance{}))
	require.Len(t, client.AssignedPartitions(), 2)

	client.TriggerRevoke([]kafka.TopicPartition{{Topic: "orders", Partition: 1}})
	require.Equal(t, []kafka.TopicPartition{{Topic: "orders", Partition: 0}}, client.AssignedPartitions())
}
