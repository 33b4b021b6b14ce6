/*
Package types defines the data model shared across OmenDB's storage,
index, and transaction packages: rows, schemas, and the handful of
identifiers that tie a row in the key-value store to an entry in a
vector index.

# Core types

Schema / Column:
  - Schema: a table's ordered column definitions, plus TableName and
    CreatedAt.
  - Column: one field's name, DataType, and (for a vector column) Dim;
    exactly one Column per Schema has PrimaryKey set.

Row / Value:
  - Row: a schema-defined tuple -- PK duplicated out for fast access,
    Values holding every column (including the primary key) in schema
    order.
  - Value: one typed column value; exactly one field is meaningful,
    selected by the owning Column's DataType.
  - A Row with a nil Values slice is a tombstone (Row.Tombstone),
    OmenDB's representation of a logical delete under MVCC -- the
    tombstone itself is a value, visible to the same snapshot rules as
    any other version.

Identifiers:
  - TableID: stable numeric identifier for a table, used as the high
    bits of KVStore and RowCache keys.

Vector indexing:
  - VectorIndexParams: HNSW/quantization parameters bound to one
    (table, column) vector index (M, EfConstruction, EfSearch,
    Quantization, ExpansionFactor).
  - QuantizationKind: selects the vector representation an index
    stores alongside its full-precision vectors (none, binary,
    rabitq).

# Serialization

EncodeRow/DecodeRow (codec.go) marshal a Row to/from msgpack via
hashicorp/go-msgpack, the wire format pkg/storage and pkg/wal both use
to persist row versions.

# Integration points

This package has no behavior of its own; it is imported by every other
package in the module:

  - pkg/storage: keys rows by (TableID, PK, commit_ts), encodes Row
    values via EncodeRow/DecodeRow.
  - pkg/wal: records Put/Delete entries keyed the same way.
  - pkg/alex: AlexTree routes on a Row's PK (int64) directly.
  - pkg/txn: TxnManager reads and stages Row values per snapshot.
  - pkg/vectorstore: maps a Row's vector Column to an HNSW index entry
    keyed by PK.
*/
package types
