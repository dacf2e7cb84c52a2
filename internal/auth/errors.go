package auth

import (
	"errors"
	"fmt"
)

// Kinds of verification failure. An *Error matches its kind with errors.Is.
var (
	ErrKeyExpired      = errors.New("key has expired")
	ErrUnableToReadKey = errors.New("failed to read key")
	ErrKeyVerification = errors.New("key could not be verified")
)

// Error is a key verification failure. Op names the operation that produced
// it so that failures from different call sites can be told apart.
type Error struct {
	Kind error
	Op   string
	// Key is set for ErrUnableToReadKey.
	Key Key
	// Err is the underlying cause for ErrKeyVerification.
	Err error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrUnableToReadKey:
		return fmt.Sprintf("%s: %s, %s", e.Kind, e.Key, e.Op)
	case ErrKeyVerification:
		return fmt.Sprintf("%s: %v, %s", e.Kind, e.Err, e.Op)
	default:
		return fmt.Sprintf("%s, %s", e.Kind, e.Op)
	}
}

// Is reports whether target is the kind of e.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// KeyExpired returns an ErrKeyExpired error raised at op.
func KeyExpired(op string) error {
	return &Error{Kind: ErrKeyExpired, Op: op}
}

// UnableToReadKey returns an ErrUnableToReadKey error for key raised at op.
func UnableToReadKey(op string, key Key) error {
	return &Error{Kind: ErrUnableToReadKey, Op: op, Key: key}
}

// VerificationFailed wraps a storage or driver error raised at op. The cause
// stays reachable through errors.Unwrap and errors.As.
func VerificationFailed(op string, cause error) error {
	return &Error{Kind: ErrKeyVerification, Op: op, Err: cause}
}

// OpOf returns the operation recorded in err, or "" if err is not an *Error.
func OpOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}
