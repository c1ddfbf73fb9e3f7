package serde

import "github.com/hugolhafner/go-listener/kafka"

type Serde[T any] interface {
	Serialiser[T]
	Deserialiser[T]
}

type Serialiser[T any] interface {
	Serialise(topic string, value T) ([]byte, error)
}

type Deserialiser[T any] interface {
	Deserialise(topic string, data []byte) (T, error)
}

// RecordDeserialiser decodes with access to the record's headers, so a
// decoder can attach side-channel metadata alongside its result.
type RecordDeserialiser[T any] interface {
	DeserialiseRecord(topic string, headers *[]kafka.Header, data []byte) (T, error)
}

type UntypedDeserialiser interface {
	Deserialise(topic string, data []byte) (any, error)
}

type UntypedSerialiser interface {
	Serialise(topic string, value any) ([]byte, error)
}

type UntypedSerde interface {
	UntypedSerialiser
	UntypedDeserialiser
}
