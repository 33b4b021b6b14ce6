package txn

import "errors"

var (
	errTxnNotActive  = errors.New("txn: transaction is not active")
	errWriteConflict = errors.New("txn: write-write conflict, newer committed version exists")
)
