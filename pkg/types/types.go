// Package types defines the core data-model values shared across OmenDB's
// storage, index, and transaction packages: rows, schemas, and the handful
// of identifiers that tie a row in the key-value store to an entry in a
// vector index.
package types

import "time"

// DataType enumerates the column types a Schema can declare.
type DataType string

const (
	DataTypeInt64   DataType = "int64"
	DataTypeFloat64 DataType = "float64"
	DataTypeString  DataType = "string"
	DataTypeBytes   DataType = "bytes"
	DataTypeBool    DataType = "bool"
	DataTypeVector  DataType = "vector"
)

// Column describes one field of a table's Schema.
type Column struct {
	ColumnName string   `json:"name"`
	Type       DataType `json:"type"`
	// Dim is the vector dimensionality; only meaningful when Type is DataTypeVector.
	Dim int `json:"dim,omitempty"`
	// PrimaryKey marks the i64 column that keys rows in the KVStore.
	PrimaryKey bool `json:"primary_key,omitempty"`
}

// Schema is the ordered tuple definition of one table.
type Schema struct {
	TableName string    `json:"table_name"`
	Columns   []Column  `json:"columns"`
	CreatedAt time.Time `json:"created_at"`
}

// PrimaryKeyColumn returns the schema's first column marked PrimaryKey,
// or false if no column is marked.
func (s Schema) PrimaryKeyColumn() (Column, bool) {
	for _, c := range s.Columns {
		if c.PrimaryKey {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnByName returns the named column, if present.
func (s Schema) ColumnByName(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.ColumnName == name {
			return c, true
		}
	}
	return Column{}, false
}

// TableID identifies a table within the catalog. Stable for the table's
// lifetime; used as the high bits of RowCache keys and in vector-index names.
type TableID uint32

// Value is a single typed column value. Exactly one field is meaningful,
// selected by the owning Column's Type.
type Value struct {
	Int64   int64
	Float64 float64
	String  string
	Bytes   []byte
	Bool    bool
	Vector  []float32
}

// Row is a schema-defined ordered tuple of typed values. PK is the i64
// primary-key value duplicated out of Values for fast access; Values holds
// every column including the primary key, in schema column order.
type Row struct {
	PK     int64
	Values []Value
}

// Tombstone reports whether this Row represents a logical delete. OmenDB
// represents tombstones as a nil Values slice with a populated PK, mirroring
// the "tombstones are visible values" rule in the MVCC design (spec.md §4.6).
func (r Row) Tombstone() bool {
	return r.Values == nil
}

// VectorIndexParams configures one HNSW index bound to a (table, column).
type VectorIndexParams struct {
	Dim             int
	M               int
	EfConstruction  int
	EfSearch        int
	Quantization    QuantizationKind
	RaBitQBits      int // only meaningful when Quantization == QuantizationRaBitQ
	ExpansionFactor int // rerank candidate multiplier for quantized search
}

// QuantizationKind selects a VectorStorage representation (spec.md §3,
// "Entity: VectorStorage").
type QuantizationKind string

const (
	QuantizationNone   QuantizationKind = "none"
	QuantizationBinary QuantizationKind = "binary"
	QuantizationRaBitQ QuantizationKind = "rabitq"
)

// DefaultVectorIndexParams returns the spec's documented defaults
// (M 32-48, ef_construction >= 200, expansion_factor 200 for ~95% recall@10).
func DefaultVectorIndexParams(dim int) VectorIndexParams {
	return VectorIndexParams{
		Dim:             dim,
		M:               32,
		EfConstruction:  200,
		EfSearch:        100,
		Quantization:    QuantizationNone,
		ExpansionFactor: 200,
	}
}
