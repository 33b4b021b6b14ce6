package quant

import (
	"testing"

	"github.com/omendb/omendb/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRaBitQQuantizerRejectsBadParams(t *testing.T) {
	_, err := NewRaBitQQuantizer(0, 4)
	require.Error(t, err)
	assert.Equal(t, errs.BadInput, errs.KindOf(err))

	_, err = NewRaBitQQuantizer(4, 0)
	require.Error(t, err)

	_, err = NewRaBitQQuantizer(4, 9)
	require.Error(t, err)
}

func TestEncodeDequantizeRoundTripIsClose(t *testing.T) {
	q, err := NewRaBitQQuantizer(4, 8)
	require.NoError(t, err)

	v := []float32{-2, 0, 1.5, 3}
	code, err := q.Encode(v)
	require.NoError(t, err)
	got := q.Dequantize(code)

	for i := range v {
		assert.InDelta(t, v[i], got[i], 0.05)
	}
}

func TestEncodeConstantVectorDoesNotDivideByZero(t *testing.T) {
	q, err := NewRaBitQQuantizer(3, 4)
	require.NoError(t, err)

	code, err := q.Encode([]float32{5, 5, 5})
	require.NoError(t, err)
	assert.Equal(t, float32(0), code.Scale)
	for _, lvl := range code.Levels {
		assert.Equal(t, uint8(0), lvl)
	}
}

func TestApproxL2SquaredIdenticalCodesIsZero(t *testing.T) {
	q, err := NewRaBitQQuantizer(4, 6)
	require.NoError(t, err)

	v := []float32{1, 2, 3, 4}
	code, err := q.Encode(v)
	require.NoError(t, err)
	assert.Equal(t, float32(0), ApproxL2Squared(code, code))
}

func TestApproxL2SquaredTracksTrueDistanceOrdering(t *testing.T) {
	q, err := NewRaBitQQuantizer(2, 8)
	require.NoError(t, err)

	origin, err := q.Encode([]float32{0, 0})
	require.NoError(t, err)
	near, err := q.Encode([]float32{1, 1})
	require.NoError(t, err)
	far, err := q.Encode([]float32{9, 9})
	require.NoError(t, err)

	assert.Less(t, ApproxL2Squared(near, origin), ApproxL2Squared(far, origin))
}
