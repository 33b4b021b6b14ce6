package types

import (
	"bytes"

	"github.com/hashicorp/go-msgpack/v2/codec"
)

// msgpackHandle is shared across encode/decode calls; codec.Handle values
// are safe for concurrent use once configured and never mutated afterward.
var msgpackHandle = &codec.MsgpackHandle{}

// wireValue mirrors Value but drops the Vector field's float32 special
// case into something msgpack round-trips cleanly without a custom codec.
type wireValue struct {
	Int64   int64
	Float64 float64
	String  string
	Bytes   []byte
	Bool    bool
	Vector  []float32
}

type wireRow struct {
	PK     int64
	Values []wireValue
}

// EncodeRow serializes a Row into the byte payload stored by KVStore.Put.
// A tombstoned Row (nil Values) encodes to a wireRow with a nil Values
// slice, which DecodeRow restores as Row.Tombstone() == true.
func EncodeRow(row Row) ([]byte, error) {
	w := wireRow{PK: row.PK}
	if row.Values != nil {
		w.Values = make([]wireValue, len(row.Values))
		for i, v := range row.Values {
			w.Values[i] = wireValue(v)
		}
	}

	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, msgpackHandle)
	if err := enc.Encode(w); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeRow is EncodeRow's inverse.
func DecodeRow(data []byte) (Row, error) {
	var w wireRow
	dec := codec.NewDecoder(bytes.NewReader(data), msgpackHandle)
	if err := dec.Decode(&w); err != nil {
		return Row{}, err
	}

	row := Row{PK: w.PK}
	if w.Values != nil {
		row.Values = make([]Value, len(w.Values))
		for i, v := range w.Values {
			row.Values[i] = Value(v)
		}
	}
	return row, nil
}
