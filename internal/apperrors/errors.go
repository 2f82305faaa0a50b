package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for retry and escalation decisions.
type Kind int

const (
	// KindTransient covers RPC timeouts, connection resets and rate limits.
	// Safe to retry with backoff.
	KindTransient Kind = iota
	// KindPermanent covers validation failures and malformed input.
	// Retrying will not help.
	KindPermanent
	// KindConsistency covers internal invariant violations. Requires an
	// operator, never auto-retried.
	KindConsistency
	// KindInsufficientSupply is returned by the ledger when a burn would
	// drive total supply negative.
	KindInsufficientSupply
	// KindInsufficientBalance is returned when a user balance cannot cover
	// a withdrawal amount plus fee.
	KindInsufficientBalance
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindConsistency:
		return "consistency"
	case KindInsufficientSupply:
		return "insufficient_supply"
	case KindInsufficientBalance:
		return "insufficient_balance"
	default:
		return "unknown"
	}
}

// Error carries a classification kind alongside the wrapped cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient wraps err as retryable.
func Transient(op string, err error) error {
	return &Error{Kind: KindTransient, Op: op, Err: err}
}

// Permanent wraps err as a non-retryable validation failure.
func Permanent(op string, err error) error {
	return &Error{Kind: KindPermanent, Op: op, Err: err}
}

// Permanentf formats a non-retryable validation failure.
func Permanentf(op, format string, args ...interface{}) error {
	return &Error{Kind: KindPermanent, Op: op, Err: fmt.Errorf(format, args...)}
}

// Consistency wraps err as an invariant violation needing operator attention.
func Consistency(op string, err error) error {
	return &Error{Kind: KindConsistency, Op: op, Err: err}
}

// InsufficientSupply reports a burn exceeding the recorded supply.
func InsufficientSupply(op, symbol string) error {
	return &Error{Kind: KindInsufficientSupply, Op: op, Err: fmt.Errorf("burn exceeds total supply for %s", symbol)}
}

// InsufficientBalance reports a withdrawal exceeding the available balance.
func InsufficientBalance(op string, err error) error {
	return &Error{Kind: KindInsufficientBalance, Op: op, Err: err}
}

// Classify returns the Kind of err. Unclassified errors default to
// KindTransient so that infrastructure failures are retried rather than
// silently dropped.
func Classify(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindTransient
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return err != nil && Classify(err) == KindTransient
}

// IsPermanent reports whether err is a validation failure.
func IsPermanent(err error) bool {
	return err != nil && Classify(err) == KindPermanent
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && Classify(err) == kind
}
