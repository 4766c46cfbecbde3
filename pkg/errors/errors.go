// Package errors defines the typed error kinds the rolling storage core
// can signal to its callers. Each kind is a distinct struct type rather
// than a sentinel value so that callers can carry the offending name or
// offset alongside the classification.
package errors

import (
	"fmt"

	crdberrors "github.com/cockroachdb/errors"
)

// NotExistsError reports that a segment or a required sub-segment blob
// is missing.
type NotExistsError struct {
	Name string
}

func (e *NotExistsError) Error() string {
	return fmt.Sprintf("rollstore: %q does not exist", e.Name)
}

// AlreadyExistsError reports a create conflict against a non-empty or
// sealed blob.
type AlreadyExistsError struct {
	Name string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("rollstore: %q already exists", e.Name)
}

// SealedError reports a mutation attempted against a sealed segment.
type SealedError struct {
	Name string
}

func (e *SealedError) Error() string {
	return fmt.Sprintf("rollstore: %q is sealed", e.Name)
}

// BadOffsetError reports a write offset that does not equal the
// segment's current length, or a header append at a stale offset.
type BadOffsetError struct {
	Name     string
	Offset   int64
	Expected int64
}

func (e *BadOffsetError) Error() string {
	return fmt.Sprintf("rollstore: %q bad offset %d, expected %d", e.Name, e.Offset, e.Expected)
}

// NotPrimaryError reports that a header append was rejected by the
// substrate's fencing mechanism, i.e. another writer has taken over.
type NotPrimaryError struct {
	Name string
}

func (e *NotPrimaryError) Error() string {
	return fmt.Sprintf("rollstore: %q rejected, not primary writer", e.Name)
}

// TruncatedError reports that a read spans a sub-segment that has
// been deleted.
type TruncatedError struct {
	Name string
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("rollstore: %q read hit a truncated range", e.Name)
}

// IllegalStateError reports a precondition failure on a composite
// operation, e.g. concat against a non-sealed or truncated source.
type IllegalStateError struct {
	Name   string
	Reason string
}

func (e *IllegalStateError) Error() string {
	return fmt.Sprintf("rollstore: %q illegal state: %s", e.Name, e.Reason)
}

// IoError wraps an unclassified substrate failure. The cause is
// captured with github.com/cockroachdb/errors so it carries a stack
// trace across the substrate boundary without the core needing its
// own stack-capture machinery.
type IoError struct {
	Name  string
	Cause error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("rollstore: %q io error: %v", e.Name, e.Cause)
}

func (e *IoError) Unwrap() error {
	return e.Cause
}

// WrapIo builds an IoError, annotating cause with a stack trace.
func WrapIo(name string, cause error) *IoError {
	return &IoError{Name: name, Cause: crdberrors.Wrap(cause, "substrate")}
}

// IsNotExists reports whether err (or something it wraps) is a
// NotExistsError.
func IsNotExists(err error) bool {
	var e *NotExistsError
	return crdberrors.As(err, &e)
}

// IsSealed reports whether err (or something it wraps) is a SealedError.
func IsSealed(err error) bool {
	var e *SealedError
	return crdberrors.As(err, &e)
}

// IsAlreadyExists reports whether err (or something it wraps) is an
// AlreadyExistsError.
func IsAlreadyExists(err error) bool {
	var e *AlreadyExistsError
	return crdberrors.As(err, &e)
}

// IsTruncated reports whether err (or something it wraps) is a
// TruncatedError.
func IsTruncated(err error) bool {
	var e *TruncatedError
	return crdberrors.As(err, &e)
}

// IsBadOffset reports whether err (or something it wraps) is a
// BadOffsetError.
func IsBadOffset(err error) bool {
	var e *BadOffsetError
	return crdberrors.As(err, &e)
}
