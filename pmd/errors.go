package pmd

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Error categories.
// Use errors.Is to test whether an error belongs to a category.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrAddressConflict   = errors.New("address already configured at another index")
	ErrAlreadyActive     = errors.New("already active")
	ErrAlreadyInactive   = errors.New("already inactive")
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrHardwareRejected  = errors.New("hardware rejected configuration")
)

// Specific errors.
var (
	ErrInvalidAddress         = fmt.Errorf("%w: broadcast address is reserved", ErrInvalidArgument)
	ErrInvalidDescriptorCount = fmt.Errorf("%w: RX descriptor count must be a non-zero multiple of %d", ErrInvalidArgument, ScatterSegments)
	ErrOutOfBuffers           = fmt.Errorf("%w: buffer pool is empty", ErrResourceExhausted)
)

// HwError is an error reported by the hardware control surface.
type HwError struct {
	// Op is the failed hardware operation.
	Op string
	// Kind is ErrResourceExhausted or ErrHardwareRejected.
	Kind error
	// Err is the underlying error, typically unix.Errno.
	Err error
}

func (e *HwError) Error() string {
	return fmt.Sprintf("%s: %v (%v)", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *HwError) Unwrap() error {
	return e.Err
}

// Is matches the error category.
func (e *HwError) Is(target error) bool {
	return target == e.Kind
}

// HardwareError classifies an error returned by a hardware operation.
// Memory and queue exhaustion errno values are classified as ErrResourceExhausted;
// everything else is ErrHardwareRejected.
// Returns nil if e is nil.
func HardwareError(op string, e error) error {
	if e == nil {
		return nil
	}
	var already *HwError
	if errors.As(e, &already) {
		return e
	}

	kind := ErrHardwareRejected
	var errno unix.Errno
	if errors.As(e, &errno) {
		switch errno {
		case unix.ENOMEM, unix.ENOBUFS, unix.ENOSPC, unix.EAGAIN:
			kind = ErrResourceExhausted
		}
	}
	return &HwError{Op: op, Kind: kind, Err: e}
}

// Status converts an error to the negative errno status code expected by ethdev callbacks.
// Returns 0 if e is nil.
func Status(e error) int {
	if e == nil {
		return 0
	}

	var errno unix.Errno
	if errors.As(e, &errno) && errno != 0 {
		return -int(errno)
	}

	switch {
	case errors.Is(e, ErrInvalidArgument):
		return -int(unix.EINVAL)
	case errors.Is(e, ErrAddressConflict):
		return -int(unix.EADDRINUSE)
	case errors.Is(e, ErrAlreadyActive):
		return -int(unix.EBUSY)
	case errors.Is(e, ErrAlreadyInactive):
		return -int(unix.EALREADY)
	case errors.Is(e, ErrResourceExhausted):
		return -int(unix.ENOMEM)
	}
	return -int(unix.EIO)
}

// PreconditionViolation is the panic value when a caller breaches a teardown contract.
// It indicates a programming error and is not recoverable.
type PreconditionViolation struct {
	What string
}

func (p PreconditionViolation) Error() string {
	return "precondition violation: " + p.What
}

// Require panics with PreconditionViolation if cond is false.
func Require(cond bool, what string) {
	if !cond {
		panic(PreconditionViolation{What: what})
	}
}
