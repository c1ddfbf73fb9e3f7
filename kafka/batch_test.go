//go:build unit

package kafka_test

import (
	"testing"

	"github.com/hugolhafner/go-listener/kafka"
	"github.com/stretchr/testify/require"
)

func rec(topic string, partition int32, offset int64) kafka.ConsumerRecord {
	return kafka.ConsumerRecord{Topic: topic, Partition: partition, Offset: offset}
}

func TestNewBatch_PartitionOrder(t *testing.T) {
	t.Parallel()

	batch := kafka.NewBatch(
		[]kafka.ConsumerRecord{
			rec("payments", 1, 3),
			rec("orders", 2, 5),
			rec("payments", 0, 9),
			rec("orders", 0, 1),
		},
	)

	require.Equal(
		t, []kafka.TopicPartition{
			{Topic: "payments", Partition: 0},
			{Topic: "payments", Partition: 1},
			{Topic: "orders", Partition: 0},
			{Topic: "orders", Partition: 2},
		}, batch.Partitions(),
	)
}

func TestBatch_RecordsKeepDeliveryOrder(t *testing.T) {
	t.Parallel()

	batch := kafka.NewBatch(
		[]kafka.ConsumerRecord{
			rec("orders", 0, 10),
			rec("orders", 0, 11),
			rec("orders", 0, 12),
		},
	)

	recs := batch.Records(kafka.TopicPartition{Topic: "orders", Partition: 0})
	require.Len(t, recs, 3)
	require.Equal(t, int64(10), recs[0].Offset)
	require.Equal(t, int64(12), recs[2].Offset)
}

func TestBatch_NextOffsets(t *testing.T) {
	t.Parallel()

	batch := kafka.NewBatch(
		[]kafka.ConsumerRecord{
			rec("orders", 0, 10),
			rec("orders", 0, 11),
			rec("orders", 1, 4),
		},
	)

	require.Equal(
		t, map[kafka.TopicPartition]kafka.Offset{
			{Topic: "orders", Partition: 0}: {Offset: 12},
			{Topic: "orders", Partition: 1}: {Offset: 5},
		}, batch.NextOffsets(),
	)
}

func TestBatch_Empty(t *testing.T) {
	t.Parallel()

	batch := kafka.NewBatch(nil)
	require.True(t, batch.Empty())
	require.Zero(t, batch.Len())
	require.Empty(t, batch.Partitions())
	require.Empty(t, batch.NextOffsets())
}
