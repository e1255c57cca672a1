package errs

import "github.com/pkg/errors"

// VMErrorReason distinguishes the VM-local failure modes: out of gas,
// execution timeout, an explicit revert, or a trap.
type VMErrorReason uint8

const (
	VMOutOfGas VMErrorReason = iota
	VMTimeout
	VMRevert
	VMTrap
)

func (r VMErrorReason) String() string {
	switch r {
	case VMOutOfGas:
		return "OutOfGas"
	case VMTimeout:
		return "Timeout"
	case VMRevert:
		return "Revert"
	case VMTrap:
		return "Trap"
	default:
		return "UnknownVMError"
	}
}

// VMError is the structured payload carried by a KindVM Error's Cause.
type VMError struct {
	Reason VMErrorReason
	Detail string // revert reason text, when Reason == VMRevert
}

func (e *VMError) Error() string {
	if e.Detail == "" {
		return e.Reason.String()
	}
	return e.Reason.String() + ": " + e.Detail
}

// NewVMError builds a KindVM *Error carrying a *VMError cause.
func NewVMError(reason VMErrorReason, detail string) *Error {
	return New(KindVM, &VMError{Reason: reason, Detail: detail})
}

// AsVMError unwraps err looking for the *VMError payload a NewVMError
// produced, seeing through both the Error wrapper and the stack trace
// New attaches to every Cause.
func AsVMError(err error) (*VMError, bool) {
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindVM {
		return nil, false
	}
	var vmErr *VMError
	if errors.As(e.Cause, &vmErr) {
		return vmErr, true
	}
	return nil, false
}
