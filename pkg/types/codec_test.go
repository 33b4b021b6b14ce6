package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRowRoundTrip(t *testing.T) {
	row := Row{
		PK: 42,
		Values: []Value{
			{Int64: 42},
			{String: "hello"},
			{Vector: []float32{1, 2, 3.5}},
			{Bool: true},
		},
	}

	data, err := EncodeRow(row)
	require.NoError(t, err)

	got, err := DecodeRow(data)
	require.NoError(t, err)
	assert.Equal(t, row.PK, got.PK)
	assert.Equal(t, row.Values, got.Values)
	assert.False(t, got.Tombstone())
}

func TestEncodeDecodeTombstone(t *testing.T) {
	row := Row{PK: 7, Values: nil}

	data, err := EncodeRow(row)
	require.NoError(t, err)

	got, err := DecodeRow(data)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.PK)
	assert.True(t, got.Tombstone())
}
