package storage

import (
	"encoding/binary"

	"github.com/omendb/omendb/pkg/types"
)

// Key layout: the KVStore holds every committed version of every row
// under one flat badger keyspace. A row's primary key and commit
// timestamp are both folded into the byte ordering so that a plain
// forward iteration already yields rows in PK order, newest version
// first within a PK.
//
//	[ tableID: 4 bytes BE ][ pk: 8 bytes, sign-flipped BE ][ ~commitTS: 8 bytes BE ]
//
// Flipping the PK's sign bit makes signed int64 comparison match
// unsigned byte-order comparison. Storing the bitwise complement of
// commitTS means larger (newer) timestamps encode to smaller byte
// strings, so iterating forward from a row's prefix visits its
// versions newest-first -- exactly the order MVCC visibility
// resolution (spec.md §4.6, "greatest commit_ts <= read_ts") wants.
const (
	tableIDSize  = 4
	pkSize       = 8
	commitTSSize = 8
	keySize      = tableIDSize + pkSize + commitTSSize
	prefixSize   = tableIDSize + pkSize
)

// EncodeKey builds the full storage key for one row version.
func EncodeKey(tableID types.TableID, pk int64, commitTS uint64) []byte {
	buf := make([]byte, keySize)
	binary.BigEndian.PutUint32(buf[0:4], uint32(tableID))
	binary.BigEndian.PutUint64(buf[4:12], flipSign(pk))
	binary.BigEndian.PutUint64(buf[12:20], ^commitTS)
	return buf
}

// EncodeRowPrefix builds the prefix shared by every version of one row,
// used to scan a single PK's version chain.
func EncodeRowPrefix(tableID types.TableID, pk int64) []byte {
	buf := make([]byte, prefixSize)
	binary.BigEndian.PutUint32(buf[0:4], uint32(tableID))
	binary.BigEndian.PutUint64(buf[4:12], flipSign(pk))
	return buf
}

// EncodeTablePrefix builds the prefix shared by every row of one table.
func EncodeTablePrefix(tableID types.TableID) []byte {
	buf := make([]byte, tableIDSize)
	binary.BigEndian.PutUint32(buf, uint32(tableID))
	return buf
}

// DecodeKey splits a full storage key back into its table, PK, and
// commit timestamp components.
func DecodeKey(key []byte) (tableID types.TableID, pk int64, commitTS uint64) {
	tableID = types.TableID(binary.BigEndian.Uint32(key[0:4]))
	pk = unflipSign(binary.BigEndian.Uint64(key[4:12]))
	commitTS = ^binary.BigEndian.Uint64(key[12:20])
	return
}

func flipSign(pk int64) uint64 {
	return uint64(pk) ^ (1 << 63)
}

func unflipSign(u uint64) int64 {
	return int64(u ^ (1 << 63))
}
