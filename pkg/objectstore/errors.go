package objectstore

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by all backends. The relay layer maps these onto
// user-facing outcomes, so backends must classify their SDK errors into this
// set rather than leaking provider error types.
var (
	// ErrNotFound indicates the requested object was not found.
	ErrNotFound = errors.New("objectstore: object not found")

	// ErrUnavailable indicates the store could not be reached or refused
	// the session (auth failure, network down). Re-invoking the whole
	// request may succeed.
	ErrUnavailable = errors.New("objectstore: store unavailable")

	// ErrRejected indicates the store permanently rejected the operation
	// (quota, policy). Retrying the same transfer will not help.
	ErrRejected = errors.New("objectstore: store rejected operation")

	// ErrIncomplete indicates a multipart completion was attempted with a
	// non-contiguous or empty part list. This is an internal invariant
	// violation, not a user-retryable condition.
	ErrIncomplete = errors.New("objectstore: incomplete part set")

	// ErrSigning indicates a presigned URL could not be produced, usually
	// because the credentials are invalid.
	ErrSigning = errors.New("objectstore: presign failed")
)

// Error carries the operation context of a failed store call.
type Error struct {
	Op       string
	Key      string
	Provider string
	Err      error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("objectstore %s: %s failed for %s: %v", e.Provider, e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("objectstore %s: %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return errors.Is(e.Err, target) }

// NewError wraps err with operation context.
func NewError(op, key, provider string, err error) error {
	return &Error{Op: op, Key: key, Provider: provider, Err: err}
}

// RetryableError marks an error as transient. Chunk uploads retry these with
// backoff; anything else fails the transfer immediately.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return fmt.Sprintf("retryable error: %v", e.Err) }

func (e *RetryableError) Unwrap() error { return e.Err }

// NewRetryableError wraps err as transient.
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err is marked transient.
func IsRetryable(err error) bool {
	var retryable *RetryableError
	return errors.As(err, &retryable)
}

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsUnavailable reports whether err means the store could not be reached.
func IsUnavailable(err error) bool { return errors.Is(err, ErrUnavailable) }

// IsRejected reports whether err means the store permanently refused.
func IsRejected(err error) bool { return errors.Is(err, ErrRejected) }
