package maker

import (
	"errors"
	"fmt"

	"github.com/chazu/jmaker/jtype"
)

// Caller usage errors. Builder calls panic with an *Error wrapping one of
// these; Finish returns them.
var (
	ErrIncompatibleType   = jtype.ErrIncompatibleType
	ErrForeignHandle      = errors.New("handle belongs to a different method")
	ErrDuplicateCase      = errors.New("duplicate switch case")
	ErrUnassigned         = errors.New("variable is possibly unassigned")
	ErrUnpositionedLabel  = errors.New("label is not positioned")
	ErrHandlerFallthrough = errors.New("code flows into an exception handler")
	ErrBadRegion          = errors.New("malformed exception region")
	ErrStackMismatch      = errors.New("operand stack mismatch")
	ErrCodeTooLarge       = errors.New("code is too large")
	ErrLimit              = errors.New("class file limit exceeded")
	ErrNoReturn           = errors.New("end reached without returning")
	ErrUsage              = errors.New("illegal operation")
	ErrFinished           = errors.New("already finished")
)

// Error is a caller usage error. Op names the operation or member that
// failed.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// fail panics with a usage error.
func fail(op string, err error) {
	panic(&Error{Op: op, Err: err})
}

func failf(op string, sentinel error, format string, args ...any) {
	panic(&Error{Op: op, Err: fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))})
}

// internalError reports a defect in the code generator itself. It is never
// recovered by Try.
func internalError(format string, args ...any) {
	panic(fmt.Sprintf("internal error: "+format, args...))
}

// Try runs fn and returns the usage error it panicked with, if any. Other
// panics propagate.
func Try(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(*Error)
			if !ok {
				panic(r)
			}
			err = e
		}
	}()
	fn()
	return nil
}

// catchUsage converts a usage panic raised during fn into an error, for
// the finishing passes.
func catchUsage(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(*Error)
			if !ok {
				panic(r)
			}
			if e.Op == "" {
				e.Op = op
			}
			err = e
		}
	}()
	if err := fn(); err != nil {
		var e *Error
		if errors.As(err, &e) {
			return err
		}
		return &Error{Op: op, Err: err}
	}
	return nil
}
