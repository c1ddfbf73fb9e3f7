package serde

import "github.com/hugolhafner/go-listener/kafka"

type recordAdapter[T any] struct {
	typed Deserialiser[T]
}

func (a recordAdapter[T]) DeserialiseRecord(topic string, _ *[]kafka.Header, data []byte) (T, error) {
	return a.typed.Deserialise(topic, data)
}

// ToRecordDeserialiser lifts a plain deserialiser into the
// header-aware interface; headers are left untouched.
func ToRecordDeserialiser[T any](d Deserialiser[T]) RecordDeserialiser[T] {
	return recordAdapter[T]{typed: d}
}

func ToUntypedDeserialiser[T any](d Deserialiser[T]) UntypedDeserialiser {
	return deserialiserAdapter[T]{typed: d}
}

func ToUntypedSerialiser[T any](s Serialiser[T]) UntypedSerialiser {
	return serialiserAdapter[T]{typed: s}
}

func ToUntyped[T any](s Serde[T]) UntypedSerde {
	return serdeAdapter[T]{typed: s}
}
