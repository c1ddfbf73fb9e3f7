package kafka

import (
	"sort"
)

// Batch is the set of records delivered by one poll cycle, grouped by
// partition. It is immutable once built; after a mid-batch failure the
// records that were never handed to the listener are the authoritative
// rewind set.
type Batch struct {
	all        []ConsumerRecord
	partitions []TopicPartition
	records    map[TopicPartition][]ConsumerRecord
}

// NewBatch groups the polled records by partition. Partition order is
// deterministic: topics in first-seen order, ascending partition index
// within each topic. Record order within a partition is delivery order.
func NewBatch(records []ConsumerRecord) *Batch {
	b := &Batch{
		all:     records,
		records: make(map[TopicPartition][]ConsumerRecord),
	}

	topicIndex := make(map[string]int)
	for _, r := range records {
		tp := r.TopicPartition()
		if _, ok := b.records[tp]; !ok {
			b.partitions = append(b.partitions, tp)
		}
		if _, ok := topicIndex[tp.Topic]; !ok {
			topicIndex[tp.Topic] = len(topicIndex)
		}
		b.records[tp] = append(b.records[tp], r)
	}

	sort.SliceStable(
		b.partitions, func(i, j int) bool {
			ti, tj := topicIndex[b.partitions[i].Topic], topicIndex[b.partitions[j].Topic]
			if ti != tj {
				return ti < tj
			}
			return b.partitions[i].Partition < b.partitions[j].Partition
		},
	)

	return b
}

// Partitions returns the partitions present in the batch, topics in
// first-seen order and partitions ascending within a topic.
func (b *Batch) Partitions() []TopicPartition {
	out := make([]TopicPartition, len(b.partitions))
	copy(out, b.partitions)
	return out
}

// Records returns the records delivered for the given partition, in
// delivery order.
func (b *Batch) Records(tp TopicPartition) []ConsumerRecord {
	return b.records[tp]
}

// All returns every record in the batch in the order it was polled.
func (b *Batch) All() []ConsumerRecord {
	return b.all
}

func (b *Batch) Len() int {
	return len(b.all)
}

func (b *Batch) Empty() bool {
	return len(b.all) == 0
}

// NextOffsets returns, per partition, one past the last delivered offset.
// This is the offset map a transactional producer sends alongside the
// produced output once the whole batch has been processed.
func (b *Batch) NextOffsets() map[TopicPartition]Offset {
	out := make(map[TopicPartition]Offset, len(b.partitions))
	for tp, recs := range b.records {
		last := recs[len(recs)-1]
		out[tp] = Offset{
			Offset:      last.Offset + 1,
			LeaderEpoch: last.LeaderEpoch,
		}
	}
	return out
}
