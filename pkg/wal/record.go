package wal

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/omendb/omendb/pkg/errs"
)

// RecordType tags the kind of event a WAL record carries. TxnManager
// writes BeginTxn/CommitTxn/RollbackTxn around each transaction's Put
// and Delete records; Checkpoint marks a point recovery can fast-forward
// past.
type RecordType uint8

const (
	RecordBeginTxn RecordType = iota + 1
	RecordPut
	RecordDelete
	RecordCommitTxn
	RecordRollbackTxn
	RecordCheckpoint
)

// Record is one WAL entry. TableID/PK/Value are only meaningful for
// RecordPut and RecordDelete; CommitTS is set on those and on
// RecordCommitTxn; the others carry just a TxnID.
type Record struct {
	Type     RecordType
	TxnID    uint64
	TableID  uint32
	PK       int64
	CommitTS uint64
	Value    []byte
}

// Wire format per record (all integers big-endian):
//
//	[ length:4 ][ type:1 ][ txnID:8 ][ tableID:4 ][ pk:8 ][ commitTS:8 ][ valueLen:4 ][ value:valueLen ][ crc32:4 ]
//
// length covers everything between itself and the crc32 field
// (inclusive of type..value), so a reader can validate a record is
// fully present before attempting to parse it -- important for
// detecting a torn write left by a crash mid-append.
const (
	fixedHeaderSize = 1 + 8 + 4 + 8 + 8 + 4 // type+txnID+tableID+pk+commitTS+valueLen
	lengthFieldSize = 4
	crcFieldSize    = 4
)

// Encode serializes r into the on-disk record format, including its
// length prefix and trailing CRC32 checksum.
func Encode(r Record) []byte {
	body := make([]byte, fixedHeaderSize+len(r.Value))
	body[0] = byte(r.Type)
	binary.BigEndian.PutUint64(body[1:9], r.TxnID)
	binary.BigEndian.PutUint32(body[9:13], r.TableID)
	binary.BigEndian.PutUint64(body[13:21], uint64(r.PK))
	binary.BigEndian.PutUint64(body[21:29], r.CommitTS)
	binary.BigEndian.PutUint32(body[29:33], uint32(len(r.Value)))
	copy(body[33:], r.Value)

	crc := crc32.ChecksumIEEE(body)

	out := make([]byte, lengthFieldSize+len(body)+crcFieldSize)
	binary.BigEndian.PutUint32(out[0:4], uint32(len(body)))
	copy(out[4:4+len(body)], body)
	binary.BigEndian.PutUint32(out[4+len(body):], crc)
	return out
}

// Decode parses one record from raw, which must contain exactly one
// encoded record (length prefix through trailing CRC). It returns
// errs.Corrupted if the checksum does not match; replay treats that as
// a torn tail when it is a segment's last record and as fatal otherwise.
func Decode(raw []byte) (Record, error) {
	const op = "wal.Decode"
	if len(raw) < lengthFieldSize+crcFieldSize {
		return Record{}, errs.NewCorrupted(op, errShortRecord)
	}
	bodyLen := binary.BigEndian.Uint32(raw[0:4])
	if len(raw) != lengthFieldSize+int(bodyLen)+crcFieldSize {
		return Record{}, errs.NewCorrupted(op, errShortRecord)
	}
	body := raw[4 : 4+bodyLen]
	wantCRC := binary.BigEndian.Uint32(raw[4+bodyLen:])
	if crc32.ChecksumIEEE(body) != wantCRC {
		return Record{}, errs.NewCorrupted(op, errBadChecksum)
	}
	if len(body) < fixedHeaderSize {
		return Record{}, errs.NewCorrupted(op, errShortRecord)
	}

	r := Record{
		Type:     RecordType(body[0]),
		TxnID:    binary.BigEndian.Uint64(body[1:9]),
		TableID:  binary.BigEndian.Uint32(body[9:13]),
		PK:       int64(binary.BigEndian.Uint64(body[13:21])),
		CommitTS: binary.BigEndian.Uint64(body[21:29]),
	}
	valueLen := binary.BigEndian.Uint32(body[29:33])
	if uint32(len(body)-fixedHeaderSize) != valueLen {
		return Record{}, errs.NewCorrupted(op, errShortRecord)
	}
	if valueLen > 0 {
		r.Value = append([]byte(nil), body[33:33+valueLen]...)
	}
	return r, nil
}

// RecordLen returns the total on-disk byte length Encode would produce
// for a record whose value is valueLen bytes, without building it --
// used by segment rotation to decide whether a record fits the current
// segment's remaining budget.
func RecordLen(valueLen int) int64 {
	return int64(lengthFieldSize + fixedHeaderSize + valueLen + crcFieldSize)
}
