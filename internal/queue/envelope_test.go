package queue

import (
	"testing"

	"github.com/golang/snappy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testJob struct {
	StoreID      string `json:"store_id"`
	LookbackDays int    `json:"lookback_days"`
}

func TestEnvelope_EncodeDecode(t *testing.T) {
	env, err := NewEnvelope("training.requested", testJob{StoreID: "S001", LookbackDays: 90})
	require.NoError(t, err)
	assert.NotEmpty(t, env.ID)
	assert.False(t, env.CreatedAt.IsZero())

	wire, err := env.Encode()
	require.NoError(t, err)

	decoded, err := DecodeEnvelope(wire)
	require.NoError(t, err)
	assert.Equal(t, env.ID, decoded.ID)
	assert.Equal(t, "training.requested", decoded.Type)
	assert.True(t, env.CreatedAt.Equal(decoded.CreatedAt))

	var job testJob
	require.NoError(t, decoded.Decode(&job))
	assert.Equal(t, testJob{StoreID: "S001", LookbackDays: 90}, job)
}

func TestEnvelope_UniqueIDs(t *testing.T) {
	a, err := NewEnvelope("t", 1)
	require.NoError(t, err)
	b, err := NewEnvelope("t", 1)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestDecodeEnvelope_Invalid(t *testing.T) {
	_, err := DecodeEnvelope([]byte("not snappy"))
	assert.Error(t, err)

	_, err = DecodeEnvelope(snappy.Encode(nil, nil))
	assert.Error(t, err, "an envelope without an id must be rejected")

	_, err = NewEnvelope("t", func() {})
	assert.Error(t, err, "unmarshalable payload must fail")
}

func TestEnvelope_DecodeWrongShape(t *testing.T) {
	env, err := NewEnvelope("t", []int{1, 2})
	require.NoError(t, err)

	var job testJob
	assert.Error(t, env.Decode(&job))
}
