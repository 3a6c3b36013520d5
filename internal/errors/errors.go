// internal/errors/errors.go
package appErrors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrCustomerNotFound is returned by the store when a customer id does not exist.
type ErrCustomerNotFound struct {
	CustomerID int64
}

func (e *ErrCustomerNotFound) Error() string {
	return fmt.Sprintf("customer with ID %d not found", e.CustomerID)
}

// NewCustomerNotFound is a helper constructor
func NewCustomerNotFound(id int64) error {
	return &ErrCustomerNotFound{CustomerID: id}
}

// IsCustomerNotFound reports whether any error in err's chain is ErrCustomerNotFound.
func IsCustomerNotFound(err error) bool {
	var nf *ErrCustomerNotFound
	return errors.As(err, &nf)
}

// ErrInvalidArguments means the tool arguments could not be decoded or are
// missing a required value.
type ErrInvalidArguments struct {
	Tool   string
	Reason string
}

func (e *ErrInvalidArguments) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Reason)
}

func NewInvalidArguments(tool, format string, args ...any) error {
	return &ErrInvalidArguments{Tool: tool, Reason: fmt.Sprintf(format, args...)}
}

// ExecutionError is an unanticipated failure while running a tool. It is
// surfaced to the caller as a protocol error, never as tool output.
type ExecutionError struct {
	Tool string
	Err  error
}

func (e *ExecutionError) Error() string {
	return e.Err.Error()
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// NewExecutionError wraps err unless it already is an ExecutionError.
func NewExecutionError(tool string, err error) error {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return err
	}
	return &ExecutionError{Tool: tool, Err: err}
}

// NewPanicError converts a recovered panic value into an ExecutionError.
func NewPanicError(tool string, recovered any) error {
	if err, ok := recovered.(error); ok {
		return &ExecutionError{Tool: tool, Err: errors.Wrap(err, "panic")}
	}
	return &ExecutionError{Tool: tool, Err: errors.Newf("panic: %v", recovered)}
}
