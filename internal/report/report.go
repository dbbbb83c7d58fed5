// Package report holds the error taxonomy of a sync operation and the
// accumulator that collects element-level errors without unwinding.
package report

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Code categorizes an operation error.
type Code string

const (
	// CodeSkippedType marks an element whose shape no converter recognizes.
	// Informational only.
	CodeSkippedType Code = "SKIPPED_TYPE"

	// CodeConversionFailure marks one element whose conversion failed.
	CodeConversionFailure Code = "CONVERSION_FAILURE"

	// CodeTransferFailure marks a node that could not be read or written.
	CodeTransferFailure Code = "TRANSFER_FAILURE"

	// CodeReconciliationFailure marks a mutation that failed while baking.
	CodeReconciliationFailure Code = "RECONCILIATION_FAILURE"

	// CodeFatalSetup aborts an operation before any side effect.
	CodeFatalSetup Code = "FATAL_SETUP_FAILURE"
)

// Error is one accumulated diagnostic.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Subject describes what failed ("Wall(abc)", an object id, a shape name).
	Subject string

	// Message is a human-readable description.
	Message string

	// Fatal reports whether the error ends the operation.
	Fatal bool

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Subject, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Skipped reports an unrecognized shape.
func Skipped(subject, shape string) *Error {
	return &Error{
		Code:    CodeSkippedType,
		Subject: subject,
		Message: fmt.Sprintf("Skipping not supported type: %s", shape),
	}
}

// ConversionFailed reports a failed element conversion.
func ConversionFailed(subject string, err error) *Error {
	return &Error{Code: CodeConversionFailure, Subject: subject, Message: err.Error(), Err: err}
}

// TransferFailed reports a node I/O failure. fatal is true when the
// failure cancels the operation.
func TransferFailed(subject string, err error, fatal bool) *Error {
	return &Error{Code: CodeTransferFailure, Subject: subject, Message: err.Error(), Err: err, Fatal: fatal}
}

// ReconciliationFailed reports a failed mutation.
func ReconciliationFailed(subject string, err error) *Error {
	return &Error{Code: CodeReconciliationFailure, Subject: subject, Message: err.Error(), Err: err}
}

// FatalSetup reports a precondition failure.
func FatalSetup(message string) *Error {
	return &Error{Code: CodeFatalSetup, Message: message, Fatal: true}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsFatal returns true if err carries a fatal *Error.
func IsFatal(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Fatal
}

// IsSkip returns true if err is a skipped-type report.
func IsSkip(err error) bool {
	return CodeOf(err) == CodeSkippedType
}

// Report accumulates errors and log lines for one operation.
// Safe for concurrent use.
type Report struct {
	mu     sync.Mutex
	errors []*Error
	logs   []string
}

// New creates an empty report.
func New() *Report {
	return &Report{}
}

// Add records an error. Plain errors are wrapped as conversion failures.
func (r *Report) Add(err error) {
	if err == nil {
		return
	}
	var e *Error
	if !errors.As(err, &e) {
		e = &Error{Code: CodeConversionFailure, Message: err.Error(), Err: err}
	}
	r.mu.Lock()
	r.errors = append(r.errors, e)
	r.mu.Unlock()
}

// Logf records an informational line.
func (r *Report) Logf(format string, args ...any) {
	r.mu.Lock()
	r.logs = append(r.logs, fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

// Errors returns every recorded error, skips included, in order.
func (r *Report) Errors() []*Error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.errors)
}

// Failures returns the recorded errors that are not skips.
func (r *Report) Failures() []*Error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Error
	for _, e := range r.errors {
		if e.Code != CodeSkippedType {
			out = append(out, e)
		}
	}
	return out
}

// Logs returns the recorded log lines.
func (r *Report) Logs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.logs)
}

// Count returns how many errors carry code.
func (r *Report) Count(code Code) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.errors {
		if e.Code == code {
			n++
		}
	}
	return n
}

// HasFatal reports whether any recorded error is fatal.
func (r *Report) HasFatal() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.ContainsFunc(r.errors, func(e *Error) bool { return e.Fatal })
}

// Merge appends everything recorded in other.
func (r *Report) Merge(other *Report) {
	if other == nil || other == r {
		return
	}
	errs, logs := other.Errors(), other.Logs()
	r.mu.Lock()
	r.errors = append(r.errors, errs...)
	r.logs = append(r.logs, logs...)
	r.mu.Unlock()
}
