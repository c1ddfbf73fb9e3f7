package mockkafka

import (
	"context"
	"sort"
	"sync"

	"github.com/hugolhafner/go-listener/kafka"
)

var (
	_ kafka.Consumer    = (*Client)(nil)
	_ kafka.TxnProducer = (*Client)(nil)
)

// Op identifies one recorded call on the mock client.
type Op string

const (
	OpSubscribe     Op = "subscribe"
	OpPoll          Op = "poll"
	OpSeek          Op = "seek"
	OpCommitOffsets Op = "commit-offsets"
	OpBegin         Op = "begin"
	OpSendOffsets   Op = "send-offsets"
	OpCommitTxn     Op = "commit-txn"
	OpAbortTxn      Op = "abort-txn"
	OpClose         Op = "close"
)

// Call is one entry of the mock's in-order call log. TP and Offset are
// only meaningful for seek and commit-offsets entries.
type Call struct {
	Op     Op
	TP     kafka.TopicPartition
	Offset int64
}

// Client is an in-memory consumer plus transactional producer. Records
// queued per partition are served by Poll from a read position that Seek
// genuinely rewinds, so redelivery behaves like the real client. Every
// call is appended to an in-order log for sequencing assertions.
type Client struct {
	mu sync.RWMutex

	recordQueues   map[kafka.TopicPartition][]kafka.ConsumerRecord
	queuePositions map[kafka.TopicPartition]int

	committedOffsets map[kafka.TopicPartition]kafka.Offset
	sentOffsets      []map[kafka.TopicPartition]kafka.Offset

	subscriptions      []string
	rebalanceCb        kafka.RebalanceCallback
	assignedPartitions []kafka.TopicPartition

	calls []Call

	meta           kafka.GroupMetadata
	maxPollRecords int

	pollErr        func() error
	commitErr      func() error
	beginErr       func() error
	sendOffsetsErr func() error
	commitTxnErr   func() error
	abortErr       func() error

	inTxn      bool
	closed     bool
	subscribed bool
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		recordQueues:     make(map[kafka.TopicPartition][]kafka.ConsumerRecord),
		queuePositions:   make(map[kafka.TopicPartition]int),
		committedOffsets: make(map[kafka.TopicPartition]kafka.Offset),
		meta:             kafka.GroupMetadata{GroupID: "test-group", MemberID: "test-member", Generation: 1},
		maxPollRecords:   100,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Subscribe registers the topics and rebalance callback, then
// auto-assigns every queued partition of a subscribed topic.
func (c *Client) Subscribe(topics []string, rebalanceCb kafka.RebalanceCallback) error {
	c.mu.Lock()

	if c.subscribed {
		c.mu.Unlock()
		return nil
	}

	c.subscriptions = topics
	c.rebalanceCb = rebalanceCb
	c.subscribed = true
	c.calls = append(c.calls, Call{Op: OpSubscribe})

	var partitions []kafka.TopicPartition
	for tp := range c.recordQueues {
		for _, topic := range topics {
			if tp.Topic == topic {
				partitions = append(partitions, tp)
				break
			}
		}
	}
	sort.Slice(
		partitions, func(i, j int) bool {
			if partitions[i].Topic != partitions[j].Topic {
				return partitions[i].Topic < partitions[j].Topic
			}
			return partitions[i].Partition < partitions[j].Partition
		},
	)
	c.assignedPartitions = partitions
	c.mu.Unlock()

	if len(partitions) > 0 && rebalanceCb != nil {
		rebalanceCb.OnAssigned(partitions)
	}

	return nil
}

// Poll drains up to maxPollRecords from the assigned partitions' read
// positions, round-robin across partitions. An empty batch means every
// queue is exhausted.
func (c *Client) Poll(ctx context.Context) (*kafka.Batch, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.calls = append(c.calls, Call{Op: OpPoll})

	if c.pollErr != nil {
		if err := c.pollErr(); err != nil {
			return nil, err
		}
	}

	var records []kafka.ConsumerRecord
	for len(records) < c.maxPollRecords {
		progress := false

		for _, tp := range c.assignedPartitions {
			queue := c.recordQueues[tp]
			pos := c.queuePositions[tp]
			if pos >= len(queue) {
				continue
			}

			records = append(records, queue[pos])
			c.queuePositions[tp] = pos + 1
			progress = true

			if len(records) >= c.maxPollRecords {
				break
			}
		}

		if !progress {
			break
		}
	}

	return kafka.NewBatch(records), nil
}

// Seek rewinds the partition's read position to the first queued record
// at or past the given offset, so those records are served again.
func (c *Client) Seek(tp kafka.TopicPartition, offset int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, Call{Op: OpSeek, TP: tp, Offset: offset})

	queue, ok := c.recordQueues[tp]
	if !ok {
		return
	}

	pos := len(queue)
	for i, rec := range queue {
		if rec.Offset >= offset {
			pos = i
			break
		}
	}
	c.queuePositions[tp] = pos
}

func (c *Client) CommitOffsets(ctx context.Context, offsets map[kafka.TopicPartition]kafka.Offset) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	for _, tp := range sortedPartitions(offsets) {
		c.calls = append(c.calls, Call{Op: OpCommitOffsets, TP: tp, Offset: offsets[tp].Offset})
	}

	if c.commitErr != nil {
		if err := c.commitErr(); err != nil {
			return err
		}
	}

	for tp, offset := range offsets {
		c.committedOffsets[tp] = offset
	}

	return nil
}

func (c *Client) GroupMetadata() kafka.GroupMetadata {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.meta
}

func (c *Client) Begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, Call{Op: OpBegin})

	if c.beginErr != nil {
		if err := c.beginErr(); err != nil {
			return err
		}
	}

	c.inTxn = true
	return nil
}

func (c *Client) SendOffsets(
	ctx context.Context, offsets map[kafka.TopicPartition]kafka.Offset, meta kafka.GroupMetadata,
) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	for _, tp := range sortedPartitions(offsets) {
		c.calls = append(c.calls, Call{Op: OpSendOffsets, TP: tp, Offset: offsets[tp].Offset})
	}

	if c.sendOffsetsErr != nil {
		if err := c.sendOffsetsErr(); err != nil {
			return err
		}
	}

	sent := make(map[kafka.TopicPartition]kafka.Offset, len(offsets))
	for tp, offset := range offsets {
		sent[tp] = offset
	}
	c.sentOffsets = append(c.sentOffsets, sent)

	return nil
}

func (c *Client) Commit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	c.calls = append(c.calls, Call{Op: OpCommitTxn})

	if c.commitTxnErr != nil {
		if err := c.commitTxnErr(); err != nil {
			return err
		}
	}

	// the transaction carries the last sent offsets to the group on commit
	if c.inTxn && len(c.sentOffsets) > 0 {
		for tp, offset := range c.sentOffsets[len(c.sentOffsets)-1] {
			c.committedOffsets[tp] = offset
		}
	}
	c.inTxn = false

	return nil
}

func (c *Client) Abort(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	c.calls = append(c.calls, Call{Op: OpAbortTxn})

	if c.abortErr != nil {
		if err := c.abortErr(); err != nil {
			return err
		}
	}

	c.inTxn = false
	return nil
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, Call{Op: OpClose})
	c.closed = true
}

// AddRecords queues records for a topic-partition. Missing offsets are
// assigned sequentially from the current end of the queue.
func (c *Client) AddRecords(topic string, partition int32, records ...kafka.ConsumerRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tp := kafka.TopicPartition{Topic: topic, Partition: partition}

	base := int64(len(c.recordQueues[tp]))
	for i := range records {
		records[i].Topic = topic
		records[i].Partition = partition
		if records[i].Offset == 0 {
			records[i].Offset = base + int64(i)
		}
	}

	c.recordQueues[tp] = append(c.recordQueues[tp], records...)
}

// TriggerAssign simulates a partition assignment event.
func (c *Client) TriggerAssign(partitions []kafka.TopicPartition) {
	c.mu.Lock()
	cb := c.rebalanceCb
	c.assignedPartitions = append(c.assignedPartitions, partitions...)
	c.mu.Unlock()

	if cb != nil {
		cb.OnAssigned(partitions)
	}
}

// TriggerRevoke simulates a partition revocation event.
func (c *Client) TriggerRevoke(partitions []kafka.TopicPartition) {
	c.mu.Lock()
	cb := c.rebalanceCb

	remaining := make([]kafka.TopicPartition, 0, len(c.assignedPartitions))
	for _, assigned := range c.assignedPartitions {
		revoked := false
		for _, p := range partitions {
			if assigned == p {
				revoked = true
				break
			}
		}
		if !revoked {
			remaining = append(remaining, assigned)
		}
	}
	c.assignedPartitions = remaining
	c.mu.Unlock()

	if cb != nil {
		cb.OnRevoked(partitions)
	}
}

// Calls returns a copy of the in-order call log.
func (c *Client) Calls() []Call {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]Call, len(c.calls))
	copy(result, c.calls)
	return result
}

// CallsOf returns the log entries matching any of the given ops, in
// order.
func (c *Client) CallsOf(ops ...Op) []Call {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var result []Call
	for _, call := range c.calls {
		for _, op := range ops {
			if call.Op == op {
				result = append(result, call)
				break
			}
		}
	}
	return result
}

// SentOffsets returns the offset maps passed to SendOffsets, in call
// order.
func (c *Client) SentOffsets() []map[kafka.TopicPartition]kafka.Offset {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]map[kafka.TopicPartition]kafka.Offset, len(c.sentOffsets))
	for i, sent := range c.sentOffsets {
		m := make(map[kafka.TopicPartition]kafka.Offset, len(sent))
		for tp, offset := range sent {
			m[tp] = offset
		}
		result[i] = m
	}
	return result
}

func (c *Client) CommittedOffsets() map[kafka.TopicPartition]kafka.Offset {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[kafka.TopicPartition]kafka.Offset, len(c.committedOffsets))
	for tp, offset := range c.committedOffsets {
		result[tp] = offset
	}
	return result
}

func (c *Client) CommittedOffset(tp kafka.TopicPartition) (kafka.Offset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	offset, ok := c.committedOffsets[tp]
	return offset, ok
}

func (c *Client) Subscriptions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]string, len(c.subscriptions))
	copy(result, c.subscriptions)
	return result
}

func (c *Client) AssignedPartitions() []kafka.TopicPartition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]kafka.TopicPartition, len(c.assignedPartitions))
	copy(result, c.assignedPartitions)
	return result
}

// Position returns the partition's current read position as an index
// into its queue.
func (c *Client) Position(tp kafka.TopicPartition) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.queuePositions[tp]
}

func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.closed
}

func (c *Client) InTransaction() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.inTxn
}

func sortedPartitions(offsets map[kafka.TopicPartition]kafka.Offset) []kafka.TopicPartition {
	tps := make([]kafka.TopicPartition, 0, len(offsets))
	for tp := range offsets {
		tps = append(tps, tp)
	}
	sort.Slice(
		tps, func(i, j int) bool {
			if tps[i].Topic != tps[j].Topic {
				return tps[i].Topic < tps[j].Topic
			}
			return tps[i].Partition < tps[j].Partition
		},
	)
	return tps
}
