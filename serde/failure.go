package serde

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hugolhafner/go-listener/kafka"
)

// Reserved header names for the deserialisation failure side channel.
// One name per direction so a consumer can tell a broken key from a
// broken value without decoding the envelope.
const (
	KeyFailureHeader   = "x-deserialization-error-key"
	ValueFailureHeader = "x-deserialization-error-value"
)

// Failure is the envelope carried in a reserved header when a key or
// value could not be decoded. Raw holds the undecoded bytes; Causes is
// the message chain of the decode error, outermost first.
type Failure struct {
	Message string   `json:"message"`
	Raw     []byte   `json:"raw"`
	IsKey   bool     `json:"isKey"`
	Causes  []string `json:"causes"`
}

// Header returns the reserved header name for the envelope's direction.
func (f Failure) Header() string {
	if f.IsKey {
		return KeyFailureHeader
	}
	return ValueFailureHeader
}

func NewFailure(cause error, raw []byte, isKey bool) Failure {
	return Failure{
		Message: cause.Error(),
		Raw:     raw,
		IsKey:   isKey,
		Causes:  causeChain(cause),
	}
}

func causeChain(err error) []string {
	var chain []string
	for err != nil {
		chain = append(chain, err.Error())
		err = errors.Unwrap(err)
	}
	return chain
}

// EnvelopeError reports that the side channel itself broke: an envelope
// could not be encoded, or an incoming header did not hold a decodable
// envelope.
type EnvelopeError struct {
	Msg   string
	Cause error
}

func (e *EnvelopeError) Error() string {
	if e.Cause == nil {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Msg, e.Cause)
}

func (e *EnvelopeError) Unwrap() error {
	return e.Cause
}

func AsEnvelopeError(err error) (*EnvelopeError, bool) {
	var ee *EnvelopeError
	ok := errors.As(err, &ee)
	return ee, ok
}

// EncodeFailure serialises the envelope into the reserved header for its
// direction, replacing any previous occurrence so the reserved name stays
// a singleton. An envelope that cannot be encoded is retried as a minimal
// one describing the encoding failure; if that fails too the error is an
// EnvelopeError, since silently dropping the side channel would lose
// data.
func EncodeFailure(headers *[]kafka.Header, f Failure) error {
	data, err := json.Marshal(f)
	if err != nil {
		minimal := Failure{
			Message: fmt.Sprintf("failed to encode deserialisation failure: %s", err),
			IsKey:   f.IsKey,
		}
		data, err = json.Marshal(minimal)
		if err != nil {
			return &EnvelopeError{Msg: "encode deserialisation failure envelope", Cause: err}
		}
	}

	setHeader(headers, f.Header(), data)
	return nil
}

// DecodeFailure recovers the envelope from the named reserved header.
// The boolean reports whether the header was present at all; a present
// but undecodable header is an EnvelopeError.
func DecodeFailure(headers []kafka.Header, name string) (Failure, bool, error) {
	data, ok := kafka.HeaderValue(headers, name)
	if !ok {
		return Failure{}, false, nil
	}

	var f Failure
	if err := json.Unmarshal(data, &f); err != nil {
		return Failure{}, true, &EnvelopeError{Msg: "decode deserialisation failure envelope", Cause: err}
	}
	return f, true, nil
}

func setHeader(headers *[]kafka.Header, key string, value []byte) {
	for i := range *headers {
		if (*headers)[i].Key == key {
			(*headers)[i].Value = value
			return
		}
	}
	*headers = append(*headers, kafka.Header{Key: key, Value: value})
}
