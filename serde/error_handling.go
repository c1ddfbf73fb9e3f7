package serde

import (
	"errors"

	"github.com/hugolhafner/go-listener/kafka"
)

var (
	_ Deserialiser[string]       = (*ErrorHandling[string])(nil)
	_ RecordDeserialiser[string] = (*ErrorHandling[string])(nil)
)

// ErrorHandling wraps a delegate deserialiser and converts its decode
// failures into the header side channel: the caller gets the zero value
// (or a fallback-synthesised substitute) and the failure envelope rides
// along in the record's headers instead of propagating out of the decode
// call.
type ErrorHandling[T any] struct {
	delegate Deserialiser[T]
	isKey    bool
	fallback func(Failure) (T, error)
}

type errorHandlingConfig[T any] struct {
	delegate     Deserialiser[T]
	delegateName string
	isKey        bool
	fallback     func(Failure) (T, error)
	fallbackName string
}

type ErrorHandlingOption[T any] func(*errorHandlingConfig[T])

// WithDelegate sets the decoder whose failures are captured.
func WithDelegate[T any](d Deserialiser[T]) ErrorHandlingOption[T] {
	return func(c *errorHandlingConfig[T]) {
		c.delegate = d
	}
}

// WithDelegateName selects the delegate from the registry, for
// configuration surfaces that only carry strings.
func WithDelegateName[T any](name string) ErrorHandlingOption[T] {
	return func(c *errorHandlingConfig[T]) {
		c.delegateName = name
	}
}

// ForKey marks the decoder as decoding record keys, switching the
// reserved header the envelope is written under.
func ForKey[T any]() ErrorHandlingOption[T] {
	return func(c *errorHandlingConfig[T]) {
		c.isKey = true
	}
}

// WithFallback installs a function that synthesises a substitute value
// from the failure envelope. Without one, decode failures yield the zero
// value.
func WithFallback[T any](fn func(Failure) (T, error)) ErrorHandlingOption[T] {
	return func(c *errorHandlingConfig[T]) {
		c.fallback = fn
	}
}

// WithFallbackName selects the fallback function from the registry.
func WithFallbackName[T any](name string) ErrorHandlingOption[T] {
	return func(c *errorHandlingConfig[T]) {
		c.fallbackName = name
	}
}

func NewErrorHandling[T any](opts ...ErrorHandlingOption[T]) (*ErrorHandling[T], error) {
	var config errorHandlingConfig[T]
	for _, opt := range opts {
		opt(&config)
	}

	if config.delegate == nil && config.delegateName == "" {
		return nil, errors.New("serde: error-handling deserialiser requires a delegate")
	}
	if config.delegate != nil && config.delegateName != "" {
		return nil, errors.New("serde: delegate configured both directly and by name")
	}
	if config.fallback != nil && config.fallbackName != "" {
		return nil, errors.New("serde: fallback configured both directly and by name")
	}

	delegate := config.delegate
	if delegate == nil {
		var err error
		delegate, err = lookupDeserialiser[T](config.delegateName)
		if err != nil {
			return nil, err
		}
	}

	fallback := config.fallback
	if fallback == nil && config.fallbackName != "" {
		var err error
		fallback, err = lookupFallback[T](config.fallbackName)
		if err != nil {
			return nil, err
		}
	}

	return &ErrorHandling[T]{
		delegate: delegate,
		isKey:    config.isKey,
		fallback: fallback,
	}, nil
}

// DeserialiseRecord decodes via the delegate. On failure the envelope is
// written into the record's headers and the zero value is returned with a
// nil error, unless a fallback is configured, in which case its output is
// returned instead. Only a failure of the envelope encoding itself is
// returned as an error.
func (d *ErrorHandling[T]) DeserialiseRecord(topic string, headers *[]kafka.Header, data []byte) (T, error) {
	value, err := d.delegate.Deserialise(topic, data)
	if err == nil {
		return value, nil
	}

	var zero T
	f := NewFailure(err, data, d.isKey)
	if eerr := EncodeFailure(headers, f); eerr != nil {
		return zero, eerr
	}

	if d.fallback != nil {
		return d.fallback(f)
	}
	return zero, nil
}

// Deserialise suppresses decode failures without anywhere to attach the
// envelope. Prefer DeserialiseRecord when the record's headers are at
// hand.
func (d *ErrorHandling[T]) Deserialise(topic string, data []byte) (T, error) {
	var headers []kafka.Header
	return d.DeserialiseRecord(topic, &headers, data)
}
