package domain

import (
	"errors"
	"fmt"
)

// Error classes. Validation errors are caller mistakes and must never be
// retried. Transient errors are expected to succeed on a later attempt.
// Fatal errors indicate a broken invariant: processing halts and an operator
// is alerted.
const (
	ClassValidation = "validation"
	ClassTransient  = "transient"
	ClassFatal      = "fatal"
)

// Stable machine-readable error codes.
const (
	CodeInvalidAmount       = "INVALID_AMOUNT"
	CodeSelfTransfer        = "SELF_TRANSFER_NOT_ALLOWED"
	CodeReceiverNotFound    = "RECEIVER_NOT_FOUND"
	CodeWalletBlocked       = "WALLET_BLOCKED"
	CodeLimitExceeded       = "LIMIT_EXCEEDED"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeUnsupportedMethod   = "UNSUPPORTED_METHOD"
	CodeNotCancellable      = "NOT_CANCELLABLE"
	CodeNotFound            = "NOT_FOUND"

	CodeLedgerUnavailable = "LEDGER_UNAVAILABLE"
	CodeTimeout           = "TIMEOUT"
	CodeNetworkError      = "NETWORK_ERROR"

	CodeIdempotencyConflict = "IDEMPOTENCY_CONFLICT"
	CodeInvariantViolation  = "INVARIANT_VIOLATION"
)

// Error is a coded error crossing component boundaries. Wrap with %w to add
// call-site context; CodeOf and the class predicates unwrap.
type Error struct {
	Code    string
	Class   string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches on code so sentinels compare with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// NewValidation builds a non-retryable caller error.
func NewValidation(code, format string, args ...any) *Error {
	return &Error{Code: code, Class: ClassValidation, Message: fmt.Sprintf(format, args...)}
}

// NewTransient builds a retryable error, optionally wrapping a cause.
func NewTransient(code string, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Class: ClassTransient, Message: fmt.Sprintf(format, args...), cause: cause}
}

// NewFatal builds an invariant-violation error. Callers must stop and alert.
func NewFatal(code string, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Class: ClassFatal, Message: fmt.Sprintf(format, args...), cause: cause}
}

// CodeOf returns the machine code of err, or "" if err carries none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// ClassOf returns the error class, defaulting unknown errors to transient so
// an unclassified infrastructure failure is retried rather than dropped.
func ClassOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return ClassTransient
}

// IsRetryable reports whether err should be retried.
func IsRetryable(err error) bool {
	return ClassOf(err) == ClassTransient
}

// IsFatal reports whether err is an invariant violation.
func IsFatal(err error) bool {
	return ClassOf(err) == ClassFatal
}

// Shared sentinels for the common cases.
var (
	ErrInsufficientFunds = NewValidation(CodeInsufficientBalance, "insufficient funds")
	ErrWalletNotFound    = NewValidation(CodeReceiverNotFound, "wallet not found")
	ErrWalletBlocked     = NewValidation(CodeWalletBlocked, "wallet is blocked")
	ErrNotCancellable    = NewValidation(CodeNotCancellable, "intent is not cancellable")
	ErrNotFound          = NewValidation(CodeNotFound, "not found")
)
