package domain

import (
	"errors"
	"fmt"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// LedgerError represents a failed ledger round-trip (account lookup, action
// or transfer submission, stream subscription)
type LedgerError struct {
	Op        string // Operation that failed (e.g., "resolve", "submit_action")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *LedgerError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *LedgerError) IsRetriable() bool {
	return e.Retriable
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

// NewLedgerError creates a new retriable ledger error
func NewLedgerError(op string, err error) *LedgerError {
	return &LedgerError{Op: op, Err: err, Retriable: true}
}

// NewFatalLedgerError creates a non-retriable ledger error
func NewFatalLedgerError(op string, err error) *LedgerError {
	return &LedgerError{Op: op, Err: err, Retriable: false}
}

// UnknownCurrencyError is returned by the rate registry when a currency code
// is not configured. Never retriable: the registry is immutable for the
// process lifetime.
type UnknownCurrencyError struct {
	Code string
}

func (e *UnknownCurrencyError) Error() string {
	return fmt.Sprintf("unknown currency %q", e.Code)
}

func (e *UnknownCurrencyError) IsRetriable() bool {
	return false
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	// ErrMalformedPayload is returned when an opaque message payload cannot
	// be decoded as an Event. Discardable, never fatal to a listener.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrUnexpectedEvent is returned when a decoded Event is not the variant
	// a processing stage requires (a taxonomy violation)
	ErrUnexpectedEvent = errors.New("unexpected event variant")

	// ErrAccountNotFound is returned when an account lookup finds nothing
	ErrAccountNotFound = errors.New("account not found")
)
