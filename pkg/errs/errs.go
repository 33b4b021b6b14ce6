// Package errs implements OmenDB's error taxonomy (spec.md §7): a small set
// of error Kinds that callers branch on, wrapping the usual Go error chain
// so errors.Is/errors.As keep working through the stack.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation failed. Kinds are not Go types; callers
// branch on the value returned by KindOf, not on a type switch.
type Kind string

const (
	// BadInput covers dimension mismatches, NaN/Inf vectors, duplicate
	// primary keys, and references to unknown tables/columns/indexes.
	BadInput Kind = "bad_input"
	// SerializationConflict is returned by COMMIT when MVCC first-committer-
	// wins detects a newer committed version of a key in the write set.
	SerializationConflict Kind = "serialization_conflict"
	// NotFound marks a missing key for APIs that promise presence (most
	// point reads instead return a plain zero value/false, not this Kind).
	NotFound Kind = "not_found"
	// StorageIo covers KVStore/WAL disk read or write failures.
	StorageIo Kind = "storage_io"
	// Corrupted covers checksum mismatches, bad magic numbers, and
	// detected invariant violations. Never auto-repaired.
	Corrupted Kind = "corrupted"
	// Timeout marks a transaction or query that exceeded its budget.
	Timeout Kind = "timeout"
	// OutOfCapacity marks a structural limit reached (e.g. a u32 HNSW
	// node id space exhausted, or an out-of-memory retrain).
	OutOfCapacity Kind = "out_of_capacity"
)

// Error wraps a cause with a Kind and the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an Error of the given Kind for operation op, wrapping cause
// (which may be nil).
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Newf is New with a formatted cause.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf walks the error chain and returns the first *Error's Kind, or ""
// if neither err nor anything it wraps is one of ours.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err's chain contains an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Convenience constructors for the taxonomy's most common call sites.

func NewBadInput(op string, cause error) *Error      { return New(BadInput, op, cause) }
func NewNotFound(op string, cause error) *Error      { return New(NotFound, op, cause) }
func NewCorrupted(op string, cause error) *Error     { return New(Corrupted, op, cause) }
func NewStorageIo(op string, cause error) *Error     { return New(StorageIo, op, cause) }
func NewConflict(op string, cause error) *Error      { return New(SerializationConflict, op, cause) }
func NewTimeout(op string, cause error) *Error       { return New(Timeout, op, cause) }
func NewOutOfCapacity(op string, cause error) *Error { return New(OutOfCapacity, op, cause) }
