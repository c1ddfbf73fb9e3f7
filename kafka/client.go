package kafka

import (
	"context"
)

// Consumer is the client surface the listener container drives. The
// handle is not safe for concurrent use; all calls must come from the
// goroutine that owns the poll loop.
type Consumer interface {
	Subscribe(topics []string, rebalanceCb RebalanceCallback) error
	Poll(ctx context.Context) (*Batch, error)
	// Seek sets the next-fetch position of a partition. The broker-side
	// position is owned by the client; this only issues the reposition.
	Seek(tp TopicPartition, offset int64)
	CommitOffsets(ctx context.Context, offsets map[TopicPartition]Offset) error
	GroupMetadata() GroupMetadata
	Close()
}

// TxnProducer is the transactional producer surface the recovery layer
// sequences. It never constructs the transaction; it only orders begin,
// send-offsets, commit and abort calls on it.
type TxnProducer interface {
	Begin() error
	SendOffsets(ctx context.Context, offsets map[TopicPartition]Offset, meta GroupMetadata) error
	Commit(ctx context.Context) error
	Abort(ctx context.Context) error
}

// GroupMetadata identifies the consumer group membership a transactional
// offset commit is fenced against.
type GroupMetadata struct {
	GroupID    string
	MemberID   string
	Generation int32
}

type RebalanceCallback interface {
	OnAssigned(partitions []TopicPartition)
	OnRevoked(partitions []TopicPartition)
}
