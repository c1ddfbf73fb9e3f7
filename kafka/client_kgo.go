package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hugolhafner/go-listener/logger"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
)

var (
	_ Consumer    = (*KgoClient)(nil)
	_ TxnProducer = (*KgoClient)(nil)
)

type KgoClientConfig struct {
	BootstrapServers  []string
	GroupID           string
	TransactionalID   string
	SessionTimeout    time.Duration
	HeartbeatInterval time.Duration
	PollTimeout       time.Duration
	MaxPollRecords    int

	Logger logger.Logger
}

func defaultConfig() KgoClientConfig {
	return KgoClientConfig{
		BootstrapServers:  []string{"localhost:9092"},
		GroupID:           "default-group",
		SessionTimeout:    45 * time.Second,
		HeartbeatInterval: 3 * time.Second,
		PollTimeout:       3 * time.Second,
		MaxPollRecords:    500,
		Logger:            logger.NewNoopLogger(),
	}
}

type KgoOption func(*KgoClientConfig)

func WithBootstrapServers(servers []string) KgoOption {
	return func(cfg *KgoClientConfig) {
		cfg.BootstrapServers = servers
	}
}

func WithGroupID(id string) KgoOption {
	return func(cfg *KgoClientConfig) {
		cfg.GroupID = id
	}
}

// WithTransactionalID enables the transactional producer surface. The
// client then expects the Begin/SendOffsets/Commit-or-Abort lifecycle
// around every processed batch.
func WithTransactionalID(id string) KgoOption {
	return func(cfg *KgoClientConfig) {
		cfg.TransactionalID = id
	}
}

func WithPollTimeout(d time.Duration) KgoOption {
	return func(cfg *KgoClientConfig) {
		cfg.PollTimeout = d
	}
}

func WithMaxPollRecords(n int) KgoOption {
	return func(cfg *KgoClientConfig) {
		cfg.MaxPollRecords = n
	}
}

func WithLogger(l logger.Logger) KgoOption {
	return func(cfg *KgoClientConfig) {
		cfg.Logger = l.
			With("client", "kgo")
	}
}

// KgoClient adapts a franz-go client to the Consumer and TxnProducer
// surfaces consumed by the listener container.
type KgoClient struct {
	client *kgo.Client
	config KgoClientConfig

	mu          sync.RWMutex
	subscribed  bool
	rebalanceCb RebalanceCallback
	topics      []string

	logger logger.Logger
}

func NewKgoClient(opts ...KgoOption) (*KgoClient, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	kc := &KgoClient{config: cfg, logger: cfg.Logger}

	kgoOpts := []kgo.Opt{
		kgo.SeedBrokers(cfg.BootstrapServers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.OnPartitionsAssigned(kc.onAssigned),
		kgo.OnPartitionsRevoked(kc.onRevoked),
		kgo.WithLogger(newKgoLogger(kc.logger)),
		kgo.SessionTimeout(cfg.SessionTimeout),
		kgo.HeartbeatInterval(cfg.HeartbeatInterval),
		// offsets are committed explicitly, either directly or via the
		// transaction
		kgo.DisableAutoCommit(),
	}

	if cfg.TransactionalID != "" {
		kgoOpts = append(
			kgoOpts,
			kgo.TransactionalID(cfg.TransactionalID),
			kgo.RequireStableFetchOffsets(),
		)
	}

	client, err := kgo.NewClient(kgoOpts...)
	if err != nil {
		return nil, fmt.Errorf("create kgo client: %w", err)
	}

	kc.client = client

	return kc, nil
}

func (k *KgoClient) onAssigned(ctx context.Context, c *kgo.Client, assigned map[string][]int32) {
	k.mu.RLock()
	cb := k.rebalanceCb
	k.mu.RUnlock()

	if cb == nil {
		return
	}

	cb.OnAssigned(mapToTopicPartitions(assigned))
}

func (k *KgoClient) onRevoked(ctx context.Context, c *kgo.Client, revoked map[string][]int32) {
	k.mu.RLock()
	cb := k.rebalanceCb
	k.mu.RUnlock()

	if cb == nil {
		return
	}

	cb.OnRevoked(mapToTopicPartitions(revoked))
}

func (k *KgoClient) Subscribe(topics []string, rebalanceCb RebalanceCallback) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.subscribed {
		return fmt.Errorf("already subscribed")
	}

	k.rebalanceCb = rebalanceCb
	k.topics = topics
	k.client.AddConsumeTopics(topics...)
	k.subscribed = true

	return nil
}

func (k *KgoClient) Poll(ctx context.Context) (*Batch, error) {
	ctx, cancel := context.WithTimeout(ctx, k.config.PollTimeout)
	defer cancel()

	fetches := k.client.PollRecords(ctx, k.config.MaxPollRecords)
	if errs := fetches.Errors(); len(errs) > 0 {
		for _, err := range errs {
			if !errors.Is(err.Err, context.DeadlineExceeded) && !errors.Is(err.Err, context.Canceled) {
				return nil, fmt.Errorf("poll: %w", err.Err)
			}
		}
	}

	return NewBatch(convertRecords(fetches.Records())), nil
}

func (k *KgoClient) Seek(tp TopicPartition, offset int64) {
	k.client.SetOffsets(
		map[string]map[int32]kgo.EpochOffset{
			tp.Topic: {
				tp.Partition: {Offset: offset, Epoch: -1},
			},
		},
	)
}

func (k *KgoClient) CommitOffsets(ctx context.Context, offsets map[TopicPartition]Offset) error {
	toCommit := make(map[string]map[int32]kgo.EpochOffset, len(offsets))
	for tp, offset := range offsets {
		if _, ok := toCommit[tp.Topic]; !ok {
			toCommit[tp.Topic] = make(map[int32]kgo.EpochOffset)
		}

		toCommit[tp.Topic][tp.Partition] = kgo.EpochOffset{
			Offset: offset.Offset,
			Epoch:  offset.LeaderEpoch,
		}
	}

	onDoneCh := make(chan error, 1)
	onDone := func(_ *kgo.Client, _ *kmsg.OffsetCommitRequest, _ *kmsg.OffsetCommitResponse, err error) {
		onDoneCh <- err
	}

	k.client.CommitOffsets(ctx, toCommit, onDone)
	if err := <-onDoneCh; err != nil {
		return fmt.Errorf("commit offsets: %w", err)
	}

	return nil
}

func (k *KgoClient) GroupMetadata() GroupMetadata {
	memberID, generation := k.client.GroupMetadata()
	return GroupMetadata{
		GroupID:    k.config.GroupID,
		MemberID:   memberID,
		Generation: generation,
	}
}

func (k *KgoClient) Begin() error {
	return k.client.BeginTransaction()
}

// SendOffsets records the intent to commit the given offsets with the
// transaction. franz-go folds the group offsets of records polled inside
// the transaction into EndTransaction, so there is no separate wire call
// to make here; the offsets are validated against the current membership
// instead.
func (k *KgoClient) SendOffsets(ctx context.Context, offsets map[TopicPartition]Offset, meta GroupMetadata) error {
	if meta.GroupID != k.config.GroupID {
		return fmt.Errorf("send offsets: group %q does not match client group %q", meta.GroupID, k.config.GroupID)
	}
	if len(offsets) == 0 {
		return errors.New("send offsets: empty offset map")
	}
	return nil
}

// Commit ends the current transaction with a commit, flushing any
// produced output first.
func (k *KgoClient) Commit(ctx context.Context) error {
	return k.endTransaction(ctx, kgo.TryCommit)
}

func (k *KgoClient) Abort(ctx context.Context) error {
	if err := k.client.AbortBufferedRecords(ctx); err != nil {
		return fmt.Errorf("abort buffered records: %w", err)
	}
	return k.endTransaction(ctx, kgo.TryAbort)
}

func (k *KgoClient) endTransaction(ctx context.Context, try kgo.TransactionEndTry) error {
	if try == kgo.TryCommit {
		if err := k.client.Flush(ctx); err != nil {
			return fmt.Errorf("flush before commit: %w", err)
		}
	}
	if err := k.client.EndTransaction(ctx, try); err != nil {
		return fmt.Errorf("end transaction: %w", err)
	}
	return nil
}

func (k *KgoClient) Close() {
	k.client.CloseAllowingRebalance()
}

func convertRecords(records []*kgo.Record) []ConsumerRecord {
	converted := make([]ConsumerRecord, len(records))
	for i, r := range records {
		converted[i] = ConsumerRecord{
			Topic:       r.Topic,
			Partition:   r.Partition,
			Offset:      r.Offset,
			Key:         r.Key,
			Value:       r.Value,
			Headers:     convertFromKgoHeaders(r.Headers),
			Timestamp:   r.Timestamp,
			LeaderEpoch: r.LeaderEpoch,
		}
	}

	return converted
}

func convertFromKgoHeaders(headers []kgo.RecordHeader) []Header {
	converted := make([]Header, len(headers))
	for i, h := range headers {
		converted[i] = Header{Key: h.Key, Value: h.Value}
	}
	return converted
}

func mapToTopicPartitions(m map[string][]int32) []TopicPartition {
	var tps []TopicPartition
	for topic, partitions := range m {
		for _, partition := range partitions {
			tps = append(
				tps, TopicPartition{
					Topic:     topic,
					Partition: partition,
				},
			)
		}
	}

	return tps
}
