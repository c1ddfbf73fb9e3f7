package listener

import (
	"github.com/hugolhafner/go-listener/kafka"
)

// SeekOffset is one reposition instruction produced by the rewind
// protocol.
type SeekOffset struct {
	TP     kafka.TopicPartition
	Offset int64
}

// RewindOffsets computes, for every partition in the batch, the position
// the consumer must be rewound to so that nothing unprocessed is lost and
// nothing already handled is redelivered: the earliest offset of any
// record not confirmed processed, or one past the last delivered offset
// when the whole partition was handled.
//
// processed reports whether a record was confirmed processed; nil means
// nothing was. The result follows Batch.Partitions order (first-seen
// topic order, ascending partition index) so call order is deterministic.
func RewindOffsets(batch *kafka.Batch, processed func(kafka.ConsumerRecord) bool) []SeekOffset {
	partitions := batch.Partitions()
	out := make([]SeekOffset, 0, len(partitions))

	for _, tp := range partitions {
		recs := batch.Records(tp)
		if len(recs) == 0 {
			continue
		}

		target := recs[len(recs)-1].Offset + 1
		for _, r := range recs {
			if processed == nil || !processed(r) {
				target = r.Offset
				break
			}
		}

		out = append(out, SeekOffset{TP: tp, Offset: target})
	}

	return out
}
