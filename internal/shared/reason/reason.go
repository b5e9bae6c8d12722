// Package reason provides failure values with stable, machine-readable codes.
//
// Every user-visible failure of the ledger carries one of these so callers can
// assert on the cause instead of matching message text.
package reason

import (
	"errors"
	"fmt"
	"time"
)

// Class groups failures by what they protect.
type Class string

const (
	// ClassPolicy marks authorization and configuration violations.
	ClassPolicy Class = "policy"
	// ClassEconomic marks solvency protections (thresholds, prices, slippage).
	ClassEconomic Class = "economic"
	// ClassTiming marks operations that become valid later.
	ClassTiming Class = "timing"
	// ClassExternal marks failures of calls into external protocols.
	ClassExternal Class = "external"
	// ClassNotFound marks missing ledger records.
	ClassNotFound Class = "not_found"
)

// Error is a failure with a stable code.
type Error struct {
	Code    string
	Class   Class
	Message string
}

// New builds a reason error. Codes are expected to be unique across the module.
func New(class Class, code, message string) *Error {
	return &Error{Code: code, Class: class, Message: message}
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// Is matches on the code so copies of a reason compare equal.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// With returns the reason wrapped with extra detail, still matching errors.Is.
func (e *Error) With(format string, args ...any) error {
	return fmt.Errorf("%w: %s", e, fmt.Sprintf(format, args...))
}

// WithTiming attaches the instant the failure stops applying.
func (e *Error) WithTiming(validAt time.Time) error {
	return NewTiming(e, validAt)
}

// TimingError is a timing failure that knows when the operation becomes valid.
type TimingError struct {
	Reason  *Error
	ValidAt time.Time
}

// NewTiming wraps a timing reason with the instant it stops applying.
func NewTiming(r *Error, validAt time.Time) *TimingError {
	return &TimingError{Reason: r, ValidAt: validAt}
}

func (e *TimingError) Error() string {
	return fmt.Sprintf("%s (valid at %s)", e.Reason.Error(), e.ValidAt.UTC().Format(time.RFC3339))
}

func (e *TimingError) Unwrap() error { return e.Reason }

// GuardError is a protocol-specific refusal raised by a guard.
type GuardError struct {
	Guard  string
	Reason string
}

// ErrGuardRejected is the reason every GuardError unwraps to.
var ErrGuardRejected = New(ClassPolicy, "GuardRejected", "guard rejected the operation")

// Reject builds a guard refusal.
func Reject(guard, why string) *GuardError {
	return &GuardError{Guard: guard, Reason: why}
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("%s: %s", e.Guard, e.Reason)
}

func (e *GuardError) Unwrap() error { return ErrGuardRejected }

// Of returns the reason carried by err, or nil for uncoded errors.
func Of(err error) *Error {
	var r *Error
	if errors.As(err, &r) {
		return r
	}
	return nil
}

// Code returns the stable code of err, or an empty string.
func Code(err error) string {
	if r := Of(err); r != nil {
		return r.Code
	}
	return ""
}

// ValidAt reports the instant a timing failure stops applying.
func ValidAt(err error) (time.Time, bool) {
	var te *TimingError
	if errors.As(err, &te) {
		return te.ValidAt, true
	}
	return time.Time{}, false
}
