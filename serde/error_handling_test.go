//go:build unit

package serde_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hugolhafner/go-listener/kafka"
	"github.com/hugolhafner/go-listener/serde"
	"github.com/stretchr/testify/require"
)

type person struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func TestErrorHandling_DecodeFailureRoundTrip(t *testing.T) {
	t.Parallel()

	d, err := serde.NewErrorHandling[person](serde.WithDelegate[person](serde.JSON[person]()))
	require.NoError(t, err)

	garbage := []byte(`{"name":`)
	var headers []kafka.Header

	value, err := d.DeserialiseRecord("people", &headers, garbage)
	require.NoError(t, err)
	require.Equal(t, person{}, value)

	_, present, _ := serde.DecodeFailure(headers, serde.KeyFailureHeader)
	require.False(t, present)

	f, present, err := serde.DecodeFailure(headers, serde.ValueFailureHeader)
	require.NoError(t, err)
	require.True(t, present)
	require.False(t, f.IsKey)
	require.Equal(t, garbage, f.Raw)
	require.NotEmpty(t, f.Causes)
	require.Equal(t, f.Message, f.Causes[0])
}

func TestErrorHandling_KeyDirection(t *testing.T) {
	t.Parallel()

	d, err := serde.NewErrorHandling[person](
		serde.WithDelegate[person](serde.JSON[person]()),
		serde.ForKey[person](),
	)
	require.NoError(t, err)

	var headers []kafka.Header
	_, err = d.DeserialiseRecord("people", &headers, []byte("not json"))
	require.NoError(t, err)

	f, present, err := serde.DecodeFailure(headers, serde.KeyFailureHeader)
	require.NoError(t, err)
	require.True(t, present)
	require.True(t, f.IsKey)

	_, present, _ = serde.DecodeFailure(headers, serde.ValueFailureHeader)
	require.False(t, present)
}

func TestErrorHandling_SuccessAttachesNothing(t *testing.T) {
	t.Parallel()

	d, err := serde.NewErrorHandling[person](serde.WithDelegate[person](serde.JSON[person]()))
	require.NoError(t, err)

	var headers []kafka.Header
	value, err := d.DeserialiseRecord("people", &headers, []byte(`{"name":"Alice","age":30}`))
	require.NoError(t, err)
	require.Equal(t, person{Name: "Alice", Age: 30}, value)
	require.Empty(t, headers)
}

func TestErrorHandling_FallbackSynthesisesValue(t *testing.T) {
	t.Parallel()

	substitute := person{Name: "unknown"}
	d, err := serde.NewErrorHandling[person](
		serde.WithDelegate[person](serde.JSON[person]()),
		serde.WithFallback[person](
			func(f serde.Failure) (person, error) {
				require.NotEmpty(t, f.Causes)
				return substitute, nil
			},
		),
	)
	require.NoError(t, err)

	var headers []kafka.Header
	value, err := d.DeserialiseRecord("people", &headers, []byte("garbage"))
	require.NoError(t, err)
	require.Equal(t, substitute, value)

	_, present, _ := serde.DecodeFailure(headers, serde.ValueFailureHeader)
	require.True(t, present)
}

func TestErrorHandling_CauseChainPreserved(t *testing.T) {
	t.Parallel()

	inner := errors.New("bad field")
	failing := failingDeserialiser{err: fmt.Errorf("decode person: %w", inner)}

	d, err := serde.NewErrorHandling[person](serde.WithDelegate[person](failing))
	require.NoError(t, err)

	var headers []kafka.Header
	_, err = d.DeserialiseRecord("people", &headers, []byte("x"))
	require.NoError(t, err)

	f, present, err := serde.DecodeFailure(headers, serde.ValueFailureHeader)
	require.NoError(t, err)
	require.True(t, present)
	require.Len(t, f.Causes, 2)
	require.Equal(t, "decode person: bad field", f.Causes[0])
	require.Equal(t, "bad field", f.Causes[1])
}

func TestErrorHandling_RegistryByName(t *testing.T) {
	t.Parallel()

	serde.RegisterDeserialiser[person]("person-json", serde.JSON[person]())
	serde.RegisterFallback[person](
		"person-unknown", func(f serde.Failure) (person, error) {
			return person{Name: "fallback"}, nil
		},
	)

	d, err := serde.NewErrorHandling[person](
		serde.WithDelegateName[person]("person-json"),
		serde.WithFallbackName[person]("person-unknown"),
	)
	require.NoError(t, err)

	var headers []kafka.Header
	value, err := d.DeserialiseRecord("people", &headers, []byte("garbage"))
	require.NoError(t, err)
	require.Equal(t, person{Name: "fallback"}, value)
}

func TestErrorHandling_ConfigValidation(t *testing.T) {
	t.Parallel()

	_, err := serde.NewErrorHandling[person]()
	require.Error(t, err)

	_, err = serde.NewErrorHandling[person](serde.WithDelegateName[person]("never-registered"))
	require.Error(t, err)

	_, err = serde.NewErrorHandling[person](
		serde.WithDelegate[person](serde.JSON[person]()),
		serde.WithDelegateName[person]("person-json"),
	)
	require.Error(t, err)
}

func TestDecodeFailure_UndecodableEnvelope(t *testing.T) {
	t.Parallel()

	headers := []kafka.Header{{Key: serde.ValueFailureHeader, Value: []byte("not an envelope")}}

	_, present, err := serde.DecodeFailure(headers, serde.ValueFailureHeader)
	require.True(t, present)
	require.Error(t, err)

	_, ok := serde.AsEnvelopeError(err)
	require.True(t, ok)
}

func TestEncodeFailure_ReservedHeaderStaysSingleton(t *testing.T) {
	t.Parallel()

	headers := []kafka.Header{{Key: "trace-id", Value: []byte("abc")}}

	first := serde.NewFailure(errors.New("first"), []byte("a"), false)
	require.NoError(t, serde.EncodeFailure(&headers, first))

	second := serde.NewFailure(errors.New("second"), []byte("b"), false)
	require.NoError(t, serde.EncodeFailure(&headers, second))

	require.Len(t, headers, 2)

	f, present, err := serde.DecodeFailure(headers, serde.ValueFailureHeader)
	require.NoError(t, err)
	require.True(t, present)
	require.Equal(t, "second", f.Message)
}

type failingDeserialiser struct {
	err error
}

func (d failingDeserialiser) Deserialise(topic string, data []byte) (person, error) {
	return person{}, d.err
}
