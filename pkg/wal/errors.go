package wal

import "errors"

var (
	errShortRecord = errors.New("wal: truncated record")
	errBadChecksum = errors.New("wal: checksum mismatch")
)
