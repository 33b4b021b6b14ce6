package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"direct", NewNotFound("kv.Get", nil), NotFound},
		{"wrapped", fmt.Errorf("range: %w", NewCorrupted("kv.Range", errors.New("bad crc"))), Corrupted},
		{"plain error", errors.New("boom"), Kind("")},
		{"nil", nil, Kind("")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestIs(t *testing.T) {
	err := NewConflict("txn.Commit", errors.New("newer version"))
	require.True(t, Is(err, SerializationConflict))
	require.False(t, Is(err, NotFound))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewStorageIo("wal.Append", cause)
	assert.ErrorIs(t, err, cause)
}
