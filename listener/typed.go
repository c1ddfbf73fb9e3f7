package listener

import (
	"context"

	"github.com/hugolhafner/go-listener/kafka"
	"github.com/hugolhafner/go-listener/serde"
)

var _ Listener = (*TypedListener[string, string])(nil)

// TypedRecord carries the decoded key and value alongside the record as
// delivered, including any headers the deserialisers attached.
type TypedRecord[K, V any] struct {
	Key    K
	Value  V
	Record kafka.ConsumerRecord
}

// TypedListener decodes keys and values in front of a typed callback.
// Paired with serde.ErrorHandling deserialisers, decode failures never
// reach the poll loop: the callback receives the zero (or fallback)
// value and finds the failure envelope in the record's headers.
type TypedListener[K, V any] struct {
	keys   serde.RecordDeserialiser[K]
	values serde.RecordDeserialiser[V]
	fn     func(ctx context.Context, rec TypedRecord[K, V]) error
}

func NewTypedListener[K, V any](
	keys serde.RecordDeserialiser[K],
	values serde.RecordDeserialiser[V],
	fn func(ctx context.Context, rec TypedRecord[K, V]) error,
) *TypedListener[K, V] {
	return &TypedListener[K, V]{
		keys:   keys,
		values: values,
		fn:     fn,
	}
}

func (l *TypedListener[K, V]) OnRecord(ctx context.Context, rec kafka.ConsumerRecord) error {
	key, err := l.keys.DeserialiseRecord(rec.Topic, &rec.Headers, rec.Key)
	if err != nil {
		return err
	}

	value, err := l.values.DeserialiseRecord(rec.Topic, &rec.Headers, rec.Value)
	if err != nil {
		return err
	}

	return l.fn(ctx, TypedRecord[K, V]{Key: key, Value: value, Record: rec})
}
